package quality

import (
	"image"
	"math"

	"go.uber.org/zap"

	"github.com/notedrop/seiri/internal/models"
)

// Metric weights for the combined 0-100 score.
const (
	weightSharpness   = 0.30
	weightContrast    = 0.25
	weightBrightness  = 0.20
	weightNoise       = 0.15
	weightTextRegions = 0.10
)

// Reference values that map raw metrics onto a 0-1 subscore.
const (
	sharpnessRef   = 300.0 // Laplacian variance of a crisp capture
	contrastRef    = 60.0  // pixel stddev of a well-lit page
	noiseRef       = 30.0  // blur-difference energy of a very noisy capture
	textRegionsRef = 50.0  // edge contours on a dense page of text
)

// Assessor scores captured images and recognized text. Zero-cost to share;
// all methods are safe for concurrent use.
type Assessor struct {
	logger *zap.Logger
}

// Option configures an Assessor.
type Option func(*Assessor)

// WithLogger sets the logger used for degraded-assessment warnings.
func WithLogger(logger *zap.Logger) Option {
	return func(a *Assessor) {
		a.logger = logger
	}
}

// NewAssessor creates an image and text quality assessor.
func NewAssessor(opts ...Option) *Assessor {
	a := &Assessor{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// AssessImageFile decodes the image at path and scores it. An unreadable or
// undecodable file yields the zero/F result, never an error: one bad capture
// must not abort batch reporting.
func (a *Assessor) AssessImageFile(path string) models.ImageQuality {
	g, err := loadGray(path)
	if err != nil {
		a.logger.Warn("image quality assessment failed",
			zap.String("path", path),
			zap.Error(err))
		return failedQuality()
	}
	return a.assessGray(g)
}

// AssessImage scores a decoded image.
func (a *Assessor) AssessImage(img image.Image) models.ImageQuality {
	return a.assessGray(toGray(img))
}

func (a *Assessor) assessGray(g *grayImage) models.ImageQuality {
	if g.w < 3 || g.h < 3 {
		return failedQuality()
	}

	metrics := models.ImageMetrics{
		Sharpness:       laplacianVariance(g),
		Contrast:        pixelStdDev(g),
		Brightness:      pixelMean(g),
		NoiseLevel:      blurDifferenceEnergy(g),
		TextRegionCount: countEdgeContours(g),
	}

	score := weightSharpness*clamp01(metrics.Sharpness/sharpnessRef) +
		weightContrast*clamp01(metrics.Contrast/contrastRef) +
		// Brightness favors the mid-range: full marks at 127.5, zero at
		// the extremes.
		weightBrightness*(1-math.Abs(metrics.Brightness-127.5)/127.5) +
		weightNoise*clamp01(1-metrics.NoiseLevel/noiseRef) +
		weightTextRegions*clamp01(float64(metrics.TextRegionCount)/textRegionsRef)
	score *= 100

	grade, description := gradeFor(score)
	return models.ImageQuality{
		OverallScore: score,
		Grade:        grade,
		Description:  description,
		Metrics:      metrics,
	}
}

func failedQuality() models.ImageQuality {
	return models.ImageQuality{
		OverallScore: 0,
		Grade:        "F",
		Description:  "Quality could not be assessed",
	}
}

func gradeFor(score float64) (grade, description string) {
	switch {
	case score >= 80:
		return "A", "Excellent quality, text should extract cleanly"
	case score >= 65:
		return "B", "Good quality, minor extraction errors possible"
	case score >= 50:
		return "C", "Fair quality, expect some extraction errors"
	case score >= 35:
		return "D", "Poor quality, extraction will be unreliable"
	default:
		return "F", "Very poor quality, consider retaking the photograph"
	}
}

// laplacianVariance measures sharpness as the variance of the 4-neighbor
// Laplacian response. Blurry images have flat gradients and a low variance.
func laplacianVariance(g *grayImage) float64 {
	n := (g.w - 2) * (g.h - 2)
	if n <= 0 {
		return 0
	}
	var sum, sumSq float64
	for y := 1; y < g.h-1; y++ {
		for x := 1; x < g.w-1; x++ {
			lap := 4*g.at(x, y) - g.at(x-1, y) - g.at(x+1, y) - g.at(x, y-1) - g.at(x, y+1)
			sum += lap
			sumSq += lap * lap
		}
	}
	mean := sum / float64(n)
	return sumSq/float64(n) - mean*mean
}

func pixelMean(g *grayImage) float64 {
	var sum float64
	for _, v := range g.pix {
		sum += v
	}
	return sum / float64(len(g.pix))
}

func pixelStdDev(g *grayImage) float64 {
	mean := pixelMean(g)
	var sumSq float64
	for _, v := range g.pix {
		d := v - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(g.pix)))
}

// blurDifferenceEnergy estimates noise as the mean absolute difference
// between the image and a 3x3 Gaussian blur of itself. Texture and grain
// survive the subtraction; smooth content cancels out.
func blurDifferenceEnergy(g *grayImage) float64 {
	if g.w < 3 || g.h < 3 {
		return 0
	}
	var sum float64
	n := (g.w - 2) * (g.h - 2)
	for y := 1; y < g.h-1; y++ {
		for x := 1; x < g.w-1; x++ {
			blurred := (g.at(x-1, y-1) + 2*g.at(x, y-1) + g.at(x+1, y-1) +
				2*g.at(x-1, y) + 4*g.at(x, y) + 2*g.at(x+1, y) +
				g.at(x-1, y+1) + 2*g.at(x, y+1) + g.at(x+1, y+1)) / 16
			sum += math.Abs(g.at(x, y) - blurred)
		}
	}
	return sum / float64(n)
}

// edgeThreshold is the gradient magnitude above which a pixel counts as an
// edge, and minContourSize filters out speckle components.
const (
	edgeThreshold  = 60.0
	minContourSize = 8
)

// countEdgeContours counts connected components in the thresholded gradient
// map. Dense text produces many small contours; blank or uniform captures
// produce almost none.
func countEdgeContours(g *grayImage) int {
	edges := make([]bool, g.w*g.h)
	for y := 1; y < g.h-1; y++ {
		for x := 1; x < g.w-1; x++ {
			gx := g.at(x+1, y) - g.at(x-1, y)
			gy := g.at(x, y+1) - g.at(x, y-1)
			if math.Hypot(gx, gy) > edgeThreshold {
				edges[y*g.w+x] = true
			}
		}
	}

	visited := make([]bool, len(edges))
	var stack []int
	count := 0
	for start := range edges {
		if !edges[start] || visited[start] {
			continue
		}
		size := 0
		stack = append(stack[:0], start)
		visited[start] = true
		for len(stack) > 0 {
			idx := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			size++
			x, y := idx%g.w, idx/g.w
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					nx, ny := x+dx, y+dy
					if nx < 0 || ny < 0 || nx >= g.w || ny >= g.h {
						continue
					}
					nidx := ny*g.w + nx
					if edges[nidx] && !visited[nidx] {
						visited[nidx] = true
						stack = append(stack, nidx)
					}
				}
			}
		}
		if size >= minContourSize {
			count++
		}
	}
	return count
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
