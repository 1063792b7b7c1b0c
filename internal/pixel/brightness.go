package pixel

import "image"

// brightPercentile is the per-image histogram percentile from which the
// luminance cutoff is derived. Each image gets its own cutoff; there is no
// fixed luminance constant.
const brightPercentile = 0.90

// exteriorSkyRowFraction is the fraction of top rows excluded from the
// brightness statistics for exterior scenes, so sky does not dominate the
// histogram.
const exteriorSkyRowFraction = 0.30

// brightRatio returns the fraction of pixels at or above the image's own
// percentile-derived luminance threshold. skipTopRows excludes that many
// leading rows from both the histogram and the ratio.
//
// For a smooth histogram the ratio hovers near 1-percentile; images with
// heavy tie mass at the bright end (blown-out windows, washed-out walls)
// report substantially larger ratios, which is the signal the shift metric
// keys on.
func brightRatio(g *image.Gray, skipTopRows int) float64 {
	w, h := g.Bounds().Dx(), g.Bounds().Dy()
	if skipTopRows >= h {
		skipTopRows = 0
	}

	var hist [256]int
	total := 0
	for y := skipTopRows; y < h; y++ {
		row := g.Pix[y*g.Stride : y*g.Stride+w]
		for _, p := range row {
			hist[p]++
		}
		total += w
	}
	if total == 0 {
		return 0
	}

	// Smallest value whose cumulative mass reaches the percentile.
	target := int(float64(total) * brightPercentile)
	cum := 0
	threshold := 255
	for v := 0; v < 256; v++ {
		cum += hist[v]
		if cum >= target {
			threshold = v
			break
		}
	}

	above := 0
	for v := threshold; v < 256; v++ {
		above += hist[v]
	}
	return float64(above) / float64(total)
}

// skyRows returns the number of top rows to exclude for a scene.
func skyRows(height int, exterior bool) int {
	if !exterior {
		return 0
	}
	return int(float64(height) * exteriorSkyRowFraction)
}
