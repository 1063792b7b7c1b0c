// Package pixel implements the deterministic structural comparison between
// a baseline and a candidate image: a Sobel edge-map IoU and a per-image
// percentile brightness-shift metric, evaluated against stage- and
// scene-specific threshold bands.
//
// Everything here is synchronous CPU work. Callers running many jobs in
// parallel should invoke it from their worker path rather than an event
// loop.
package pixel

import (
	"fmt"
	"image"

	"github.com/realenhance/restage/internal/config"
	"github.com/realenhance/restage/internal/constants"
	"github.com/realenhance/restage/internal/domain"
	"github.com/realenhance/restage/internal/raster"
)

// preBlurSigma stabilizes micro-edges on the earlier stages. The staging
// stage is compared unblurred.
const preBlurSigma = 1.0

// Metric names reported in verdicts.
const (
	MetricEdgeSimilarity       = "edge_similarity"
	MetricBrightnessShift      = "brightness_shift"
	MetricPerspectiveDeviation = "perspective_deviation"
)

// Metrics carries the two structural scalars plus the supplementary
// perspective drift measurement.
type Metrics struct {
	// EdgeSimilarity is the edge-map IoU in [0,1]; identical inputs yield 1.
	EdgeSimilarity float64

	// BrightnessShift is |ratioA - ratioB| of percentile-bright fractions.
	BrightnessShift float64

	// PerspectiveDeviation is the dominant line-angle drift in degrees.
	PerspectiveDeviation float64
}

// Map renders the metrics for inclusion in a verdict.
func (m Metrics) Map() map[string]float64 {
	return map[string]float64{
		MetricEdgeSimilarity:       m.EdgeSimilarity,
		MetricBrightnessShift:      m.BrightnessShift,
		MetricPerspectiveDeviation: m.PerspectiveDeviation,
	}
}

// Result is the analyzer's verdict on one image pair.
type Result struct {
	// OK reports whether the pair passed the stage's band policy.
	OK bool

	// Reason explains a failure in human-readable terms. Empty when OK.
	Reason string

	// Metrics are always populated when the images could be aligned,
	// even on failure.
	Metrics Metrics
}

// Analyzer compares image pairs. It is stateless and safe for concurrent
// use; per-call parameters arrive through the band argument.
type Analyzer struct {
	aspectTolerance float64
	maxDimension    int
}

// NewAnalyzer builds an analyzer. aspectTolerance is the maximum relative
// aspect-ratio divergence at which a candidate is still resampled onto the
// baseline's dimensions rather than hard-failing.
func NewAnalyzer(aspectTolerance float64) *Analyzer {
	return &Analyzer{
		aspectTolerance: aspectTolerance,
		maxDimension:    constants.MaxProcessingDimension,
	}
}

// Analyze compares candidate against baseline under the given stage, scene
// and band. A dimension mismatch is not a failure by itself: the candidate
// is resampled to the baseline's dimensions first, and only an
// unresolvable mismatch (aspect ratios too divergent) hard-fails.
func (a *Analyzer) Analyze(baseline, candidate image.Image, stage domain.Stage, scene domain.Scene, band config.Band) Result {
	baseline = raster.FitWithin(baseline, a.maxDimension)
	candidate = raster.FitWithin(candidate, a.maxDimension)

	bw, bh := raster.Dimensions(baseline)
	cw, ch := raster.Dimensions(candidate)

	if bw != cw || bh != ch {
		if div := raster.AspectDivergence(bw, bh, cw, ch); div > a.aspectTolerance {
			return Result{
				OK: false,
				Reason: fmt.Sprintf("image dimensions cannot be aligned: baseline %dx%d vs candidate %dx%d (aspect divergence %.3f)",
					bw, bh, cw, ch, div),
			}
		}
		candidate = raster.Resize(candidate, bw, bh)
	}

	grayBase := raster.ToGray(baseline)
	grayCand := raster.ToGray(candidate)

	m := a.measure(grayBase, grayCand, stage, scene)
	ok, reason := evaluateBands(m, band)
	return Result{OK: ok, Reason: reason, Metrics: m}
}

// measure computes the raw metrics for an aligned greyscale pair.
func (a *Analyzer) measure(grayBase, grayCand *image.Gray, stage domain.Stage, scene domain.Scene) Metrics {
	edgeBase, edgeCand := grayBase, grayCand
	if !stage.IsFinal() {
		edgeBase = raster.Blur(grayBase, preBlurSigma)
		edgeCand = raster.Blur(grayCand, preBlurSigma)
	}

	radius := dilationRadius(stage)
	mapBase := edgeMap(edgeBase).Dilate(radius)
	mapCand := edgeMap(edgeCand).Dilate(radius)

	skip := skyRows(grayBase.Bounds().Dy(), scene == domain.SceneExterior)
	shift := brightRatio(grayBase, skip) - brightRatio(grayCand, skip)
	if shift < 0 {
		shift = -shift
	}

	return Metrics{
		EdgeSimilarity:       mapBase.IoU(mapCand),
		BrightnessShift:      shift,
		PerspectiveDeviation: perspectiveDeviation(grayBase, grayCand),
	}
}

// dilationRadius absorbs sub-pixel jitter before edge comparison. The
// staging stage gets the tightest structuring element.
func dilationRadius(stage domain.Stage) int {
	if stage.IsFinal() {
		return 1
	}
	return 2
}

// evaluateBands applies the stage's combination rule:
//
//   - edge similarity below the extreme floor fails unconditionally;
//   - a hard edge floor or hard brightness ceiling breach fails on its own;
//   - the soft band is a two-signal rule: a soft edge dip fails only when
//     the brightness shift also breaches its soft ceiling.
//
// Stages whose band collapses soft==hard (staging) get zero tolerance
// through the same rule.
func evaluateBands(m Metrics, band config.Band) (bool, string) {
	switch {
	case m.EdgeSimilarity < band.ExtremeEdgeMin:
		return false, fmt.Sprintf("edge similarity %.3f below extreme floor %.2f", m.EdgeSimilarity, band.ExtremeEdgeMin)
	case m.EdgeSimilarity < band.HardEdgeMin:
		return false, fmt.Sprintf("edge similarity %.3f below hard floor %.2f", m.EdgeSimilarity, band.HardEdgeMin)
	case m.BrightnessShift > band.HardBrightMax:
		return false, fmt.Sprintf("brightness shift %.3f above hard ceiling %.2f", m.BrightnessShift, band.HardBrightMax)
	case m.EdgeSimilarity < band.SoftEdgeMin && m.BrightnessShift > band.SoftBrightMax:
		return false, fmt.Sprintf("edge similarity %.3f below soft floor %.2f with brightness shift %.3f above soft ceiling %.2f",
			m.EdgeSimilarity, band.SoftEdgeMin, m.BrightnessShift, band.SoftBrightMax)
	default:
		return true, ""
	}
}
