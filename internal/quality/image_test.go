package quality

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

// checkerboard produces a high-contrast, sharp synthetic capture.
func checkerboard(size, cell int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			if (x/cell+y/cell)%2 == 0 {
				img.SetGray(x, y, color.Gray{Y: 230})
			} else {
				img.SetGray(x, y, color.Gray{Y: 25})
			}
		}
	}
	return img
}

func uniform(size int, v uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			img.SetGray(x, y, color.Gray{Y: v})
		}
	}
	return img
}

func TestAssessImageSharpBeatsFlat(t *testing.T) {
	a := NewAssessor()
	sharp := a.AssessImage(checkerboard(64, 4))
	flat := a.AssessImage(uniform(64, 128))
	if sharp.OverallScore <= flat.OverallScore {
		t.Errorf("sharp capture scored %.1f, flat capture %.1f", sharp.OverallScore, flat.OverallScore)
	}
	if sharp.Metrics.Sharpness <= flat.Metrics.Sharpness {
		t.Error("checkerboard should have higher Laplacian variance than a flat image")
	}
	if sharp.Metrics.TextRegionCount == 0 {
		t.Error("checkerboard should produce edge contours")
	}
}

func TestAssessImageExtremeBrightnessPenalized(t *testing.T) {
	a := NewAssessor()
	mid := a.AssessImage(uniform(32, 128))
	dark := a.AssessImage(uniform(32, 2))
	if dark.OverallScore >= mid.OverallScore {
		t.Errorf("near-black capture scored %.1f, mid-gray %.1f", dark.OverallScore, mid.OverallScore)
	}
}

func TestAssessImageFileUnreadable(t *testing.T) {
	a := NewAssessor()
	q := a.AssessImageFile(filepath.Join(t.TempDir(), "missing.png"))
	if q.Grade != "F" || q.OverallScore != 0 {
		t.Errorf("unreadable file should grade F with score 0, got %q %.1f", q.Grade, q.OverallScore)
	}
}

func TestAssessImageFileDecodes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "board.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := png.Encode(f, checkerboard(32, 4)); err != nil {
		t.Fatal(err)
	}
	f.Close()

	a := NewAssessor()
	q := a.AssessImageFile(path)
	if q.Grade == "F" && q.OverallScore == 0 {
		t.Error("decodable image should not produce the failed-assessment result")
	}
}

func TestGradeBoundaries(t *testing.T) {
	cases := []struct {
		score float64
		grade string
	}{
		{85, "A"}, {80, "A"}, {79.9, "B"}, {65, "B"},
		{64.9, "C"}, {50, "C"}, {49.9, "D"}, {35, "D"}, {34.9, "F"}, {0, "F"},
	}
	for _, c := range cases {
		if g, _ := gradeFor(c.score); g != c.grade {
			t.Errorf("gradeFor(%.1f) = %q, want %q", c.score, g, c.grade)
		}
	}
}

func TestDetectOrientationFlat(t *testing.T) {
	a := NewAssessor()
	o := a.DetectOrientation(uniform(48, 128))
	if o.NeedsRotation {
		t.Error("uniform image should not need rotation")
	}
}

func TestDetectOrientationSidewaysBands(t *testing.T) {
	// Vertical stripes look like text lines photographed sideways.
	img := image.NewGray(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			if (x/6)%2 == 0 {
				img.SetGray(x, y, color.Gray{Y: 240})
			} else {
				img.SetGray(x, y, color.Gray{Y: 20})
			}
		}
	}
	a := NewAssessor()
	o := a.DetectOrientation(img)
	if o.Method != "projection" {
		t.Fatalf("method = %q, want projection", o.Method)
	}
	if !o.NeedsRotation || o.Angle != 90 {
		t.Errorf("sideways bands should report a 90 degree rotation, got angle %.1f", o.Angle)
	}
	if o.RecommendedRotation != -90 {
		t.Errorf("recommended rotation = %.1f, want -90", o.RecommendedRotation)
	}
}

func TestDetectOrientationFileUnreadable(t *testing.T) {
	a := NewAssessor()
	o := a.DetectOrientationFile(filepath.Join(t.TempDir(), "missing.png"))
	if o.Method != "error" || o.Angle != 0 || o.NeedsRotation {
		t.Errorf("unreadable file should yield the error orientation, got %+v", o)
	}
}
