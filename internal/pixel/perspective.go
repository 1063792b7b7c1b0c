package pixel

import (
	"image"
	"math"
)

// Line-orientation tolerances, in degrees, for classifying edge pixels as
// belonging to vertical structure (walls, frames) or horizontal structure
// (ceiling, floor, sills).
const (
	verticalCenter      = 90.0
	verticalTolerance   = 10.0
	horizontalTolerance = 10.0
)

// orientationSummary aggregates the dominant line angles of one image.
type orientationSummary struct {
	verticalCount   int
	horizontalCount int
	avgVertical     float64
	avgHorizontal   float64
}

// orientations classifies edge-pixel line directions. A pixel's line runs
// perpendicular to its gradient, so the gradient angle is rotated 90°
// before classification.
func orientations(g *image.Gray) orientationSummary {
	gx, gy := sobel(g)

	var s orientationSummary
	var vSum, hSum float64
	for i := range gx {
		fx, fy := float64(gx[i]), float64(gy[i])
		if math.Hypot(fx, fy) < gradientThreshold {
			continue
		}
		lineAngle := math.Abs(math.Mod(math.Atan2(fy, fx)*180/math.Pi+90, 180))

		switch {
		case math.Abs(lineAngle-verticalCenter) <= verticalTolerance:
			s.verticalCount++
			vSum += lineAngle
		case lineAngle <= horizontalTolerance || lineAngle >= 180-horizontalTolerance:
			s.horizontalCount++
			if lineAngle >= 180-horizontalTolerance {
				lineAngle -= 180
			}
			hSum += lineAngle
		}
	}

	if s.verticalCount > 0 {
		s.avgVertical = vSum / float64(s.verticalCount)
	}
	if s.horizontalCount > 0 {
		s.avgHorizontal = hSum / float64(s.horizontalCount)
	}
	return s
}

// perspectiveDeviation measures how far the dominant vertical and
// horizontal line angles drifted between two images, in degrees. Categories
// with no lines in either image contribute nothing.
func perspectiveDeviation(baseline, candidate *image.Gray) float64 {
	a := orientations(baseline)
	b := orientations(candidate)

	var dev float64
	if a.verticalCount > 0 && b.verticalCount > 0 {
		dev += math.Abs(a.avgVertical - b.avgVertical)
	}
	if a.horizontalCount > 0 && b.horizontalCount > 0 {
		dev += math.Abs(a.avgHorizontal - b.avgHorizontal)
	}
	return dev
}
