// Package quality scores source images and raw recognized text so the
// pipeline can route low-grade captures through more forgiving prompts.
package quality

import (
	"fmt"
	"image"
	"os"

	// Decoders for the capture formats the watcher accepts.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
)

// grayImage is a flat float64 luma buffer. All metrics work on this form so
// the source image is decoded and converted exactly once per assessment.
type grayImage struct {
	pix  []float64
	w, h int
}

func (g *grayImage) at(x, y int) float64 {
	return g.pix[y*g.w+x]
}

func toGray(img image.Image) *grayImage {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	g := &grayImage{pix: make([]float64, w*h), w: w, h: h}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, gr, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			// ITU-R BT.601 luma, scaled to 0-255.
			luma := (0.299*float64(r) + 0.587*float64(gr) + 0.114*float64(b)) / 257.0
			g.pix[y*w+x] = luma
		}
	}
	return g
}

func loadGray(path string) (*grayImage, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return toGray(img), nil
}
