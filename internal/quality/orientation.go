package quality

import (
	"image"
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/notedrop/seiri/internal/models"
)

const (
	// rotationTolerance is the skew magnitude, in degrees, below which a
	// capture is considered upright.
	rotationTolerance = 5.0
	// houghAngleRange limits line detection to plausible page skew.
	houghAngleRange = 45
	houghTopLines   = 20
)

// DetectOrientationFile estimates the rotation of the image at path. Never
// returns an error; failures yield angle 0 with method "error".
func (a *Assessor) DetectOrientationFile(path string) models.ImageOrientation {
	g, err := loadGray(path)
	if err != nil {
		a.logger.Warn("orientation detection failed",
			zap.String("path", path),
			zap.Error(err))
		return models.ImageOrientation{Method: models.OrientationMethodError}
	}
	return a.detectGray(g)
}

// DetectOrientation estimates the rotation of a decoded image.
func (a *Assessor) DetectOrientation(img image.Image) models.ImageOrientation {
	return a.detectGray(toGray(img))
}

func (a *Assessor) detectGray(g *grayImage) models.ImageOrientation {
	if g.w < 3 || g.h < 3 {
		return models.ImageOrientation{Method: models.OrientationMethodError}
	}

	houghAngle, houghOK := houghSkew(g)
	projAngle, projOK := projectionHint(g)

	var angle float64
	var method string
	switch {
	// The projection estimator only speaks up for gross rotations, and is
	// trusted over line detection when it does.
	case projOK && math.Abs(projAngle) > rotationTolerance:
		angle, method = projAngle, models.OrientationMethodProjection
	case houghOK:
		angle, method = houghAngle, models.OrientationMethodHough
	default:
		return models.ImageOrientation{Method: models.OrientationMethodNone}
	}

	orientation := models.ImageOrientation{
		Angle:  angle,
		Method: method,
	}
	if math.Abs(angle) > rotationTolerance {
		orientation.NeedsRotation = true
		if math.Abs(angle) > 45 {
			// Likely shot sideways; correct with a quarter turn rather
			// than a fine counter-rotation.
			orientation.RecommendedRotation = -math.Round(angle/90) * 90
		} else {
			orientation.RecommendedRotation = -angle
		}
	}
	return orientation
}

// houghSkew estimates page skew from detected text lines: edge pixels vote
// in a (theta, rho) accumulator, the strongest lines are kept, and the
// median of their normalized angles is the skew estimate.
func houghSkew(g *grayImage) (float64, bool) {
	type edgePoint struct{ x, y int }
	var points []edgePoint
	for y := 1; y < g.h-1; y++ {
		for x := 1; x < g.w-1; x++ {
			gx := g.at(x+1, y) - g.at(x-1, y)
			gy := g.at(x, y+1) - g.at(x, y-1)
			if math.Hypot(gx, gy) > edgeThreshold {
				points = append(points, edgePoint{x, y})
			}
		}
	}
	if len(points) < houghTopLines {
		return 0, false
	}

	diag := int(math.Hypot(float64(g.w), float64(g.h))) + 1
	thetas := 2*houghAngleRange + 1
	// Accumulator indexed by [theta bin][rho + diag].
	acc := make([][]int, thetas)
	for i := range acc {
		acc[i] = make([]int, 2*diag+1)
	}
	for _, p := range points {
		for t := 0; t < thetas; t++ {
			theta := float64(t-houghAngleRange) * math.Pi / 180
			rho := int(math.Round(float64(p.x)*math.Cos(theta) + float64(p.y)*math.Sin(theta)))
			acc[t][rho+diag]++
		}
	}

	type line struct {
		votes int
		angle float64
	}
	lines := make([]line, 0, thetas)
	for t := 0; t < thetas; t++ {
		best := 0
		for _, v := range acc[t] {
			if v > best {
				best = v
			}
		}
		lines = append(lines, line{votes: best, angle: float64(t - houghAngleRange)})
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].votes > lines[j].votes })

	n := houghTopLines
	if n > len(lines) {
		n = len(lines)
	}
	angles := make([]float64, 0, n)
	for _, l := range lines[:n] {
		if l.votes > 0 {
			angles = append(angles, l.angle)
		}
	}
	if len(angles) == 0 {
		return 0, false
	}
	sort.Float64s(angles)
	return angles[len(angles)/2], true
}

// projectionHint reports a discrete quarter-turn hint by comparing row and
// column projection-profile variance: upright text produces strongly banded
// rows, sideways text strongly banded columns.
func projectionHint(g *grayImage) (float64, bool) {
	rows := make([]float64, g.h)
	cols := make([]float64, g.w)
	for y := 0; y < g.h; y++ {
		for x := 0; x < g.w; x++ {
			v := g.at(x, y)
			rows[y] += v
			cols[x] += v
		}
	}
	for y := range rows {
		rows[y] /= float64(g.w)
	}
	for x := range cols {
		cols[x] /= float64(g.h)
	}

	rowVar := variance(rows)
	colVar := variance(cols)
	if rowVar == 0 && colVar == 0 {
		return 0, false
	}
	if colVar > rowVar*2 {
		return 90, true
	}
	return 0, true
}

func variance(vs []float64) float64 {
	if len(vs) == 0 {
		return 0
	}
	var sum float64
	for _, v := range vs {
		sum += v
	}
	mean := sum / float64(len(vs))
	var sumSq float64
	for _, v := range vs {
		d := v - mean
		sumSq += d * d
	}
	return sumSq / float64(len(vs))
}
