// Package openings detects rectangular openings (windows) in listing
// photos and verifies their correspondence between a baseline and a
// candidate image. Matching is greedy: no backtracking, no global
// re-optimization.
package openings

import (
	"fmt"
	"image"
	"math"

	"github.com/realenhance/restage/internal/config"
	"github.com/realenhance/restage/internal/domain"
	"github.com/realenhance/restage/internal/raster"
)

// Metric names reported in verdicts.
const (
	MetricWindowCountBaseline  = "window_count_baseline"
	MetricWindowCountCandidate = "window_count_candidate"
	MetricWindowMinIoU         = "window_min_iou"
	MetricWindowMaxAreaDelta   = "window_max_area_delta"
	MetricWindowMaxCentroid    = "window_max_centroid_shift"
	MetricWindowMaxOcclusion   = "window_max_occlusion"
)

// PairMetrics carries the geometry deltas of one matched window pair.
type PairMetrics struct {
	// BaselineID and CandidateID are detection-order indexes.
	BaselineID  int
	CandidateID int

	// IoU is the bounding-box overlap of the pair.
	IoU float64

	// AreaDelta is |Δarea| / max(1, baseline area).
	AreaDelta float64

	// CentroidShift is the centroid distance as a fraction of the image
	// diagonal.
	CentroidShift float64

	// Occlusion is the mean luminance drop inside the baseline box,
	// clamped at zero. Furniture placed in front of a window darkens it.
	Occlusion float64
}

// Result is the matcher's verdict on one image pair.
type Result struct {
	// OK reports whether window correspondence held.
	OK bool

	// Skipped is true when both images show zero windows; the check does
	// not apply and OK is true.
	Skipped bool

	// Reasons lists every correspondence failure. Empty when OK.
	Reasons []string

	// Pairs holds the per-pair deltas for every matched pair, failures
	// included.
	Pairs []PairMetrics

	// Metrics summarizes counts and worst-case deltas for the verdict.
	Metrics map[string]float64
}

// Matcher verifies window correspondence. Stateless and safe for
// concurrent use.
type Matcher struct{}

// NewMatcher builds a matcher.
func NewMatcher() *Matcher {
	return &Matcher{}
}

// Match greedily pairs baseline windows to candidate windows and applies
// the stage's geometry policy.
//
// Each baseline window, in detection order, claims the unmatched candidate
// window with the highest IoU; a claimed window is never reassigned. A
// baseline window with no overlapping unmatched partner is a hard
// "window disappeared" failure.
//
// The final staging stage fails on any single breached metric. Earlier
// stages fail a pair only when its IoU is below the soft floor and at
// least one geometry or occlusion limit is also breached; an IoU below
// the extreme floor fails unconditionally.
func (m *Matcher) Match(
	baseline, candidate []domain.WindowObservation,
	grayBase, grayCand *image.Gray,
	stage domain.Stage,
	band config.Band,
) Result {
	if len(baseline) == 0 && len(candidate) == 0 {
		return Result{OK: true, Skipped: true, Metrics: map[string]float64{
			MetricWindowCountBaseline:  0,
			MetricWindowCountCandidate: 0,
		}}
	}

	diagonal := imageDiagonal(grayBase)
	used := make([]bool, len(candidate))

	var reasons []string
	pairs := make([]PairMetrics, 0, len(baseline))

	for _, bw := range baseline {
		best, found := claimBestPartner(bw, candidate, used)
		if !found {
			reasons = append(reasons, fmt.Sprintf(
				"window %d at (%d,%d) disappeared: no overlapping candidate window", bw.ID, bw.BBox.X, bw.BBox.Y))
			continue
		}

		pair := measurePair(bw, candidate[best], grayBase, grayCand, diagonal)
		pairs = append(pairs, pair)

		if reason := evaluatePair(pair, stage, band); reason != "" {
			reasons = append(reasons, reason)
		}
	}

	return Result{
		OK:      len(reasons) == 0,
		Reasons: reasons,
		Pairs:   pairs,
		Metrics: summarize(baseline, candidate, pairs),
	}
}

// claimBestPartner finds the unmatched candidate window with the highest
// IoU against bw and marks it used. Partners with zero overlap do not
// count: a window that moved entirely away from its origin has, for
// correspondence purposes, disappeared.
func claimBestPartner(bw domain.WindowObservation, candidate []domain.WindowObservation, used []bool) (int, bool) {
	best := -1
	bestIoU := 0.0
	for i, cw := range candidate {
		if used[i] {
			continue
		}
		if iou := bw.BBox.IoU(cw.BBox); iou > bestIoU {
			best = i
			bestIoU = iou
		}
	}
	if best < 0 {
		return 0, false
	}
	used[best] = true
	return best, true
}

// measurePair computes the geometry deltas for one matched pair.
func measurePair(bw, cw domain.WindowObservation, grayBase, grayCand *image.Gray, diagonal float64) PairMetrics {
	areaDelta := float64(absInt(cw.AreaPx-bw.AreaPx)) / float64(maxInt(1, bw.AreaPx))

	shift := 0.0
	if diagonal > 0 {
		shift = bw.CentroidDistance(cw) / diagonal
	}

	region := image.Rect(bw.BBox.X, bw.BBox.Y, bw.BBox.X+bw.BBox.W, bw.BBox.Y+bw.BBox.H)
	drop := raster.MeanLuminance(grayBase, region) - raster.MeanLuminance(grayCand, region)
	if drop < 0 {
		drop = 0
	}

	return PairMetrics{
		BaselineID:    bw.ID,
		CandidateID:   cw.ID,
		IoU:           bw.BBox.IoU(cw.BBox),
		AreaDelta:     areaDelta,
		CentroidShift: shift,
		Occlusion:     drop,
	}
}

// evaluatePair applies the stage policy to one pair and returns a failure
// reason, or "" when the pair passes.
func evaluatePair(p PairMetrics, stage domain.Stage, band config.Band) string {
	if p.IoU < band.WindowIoUExtremeMin {
		return fmt.Sprintf("window %d overlap %.3f below extreme floor %.2f", p.BaselineID, p.IoU, band.WindowIoUExtremeMin)
	}

	breaches := pairBreaches(p, band)

	if stage.IsFinal() {
		if p.IoU < band.WindowIoUMin {
			breaches = append([]string{fmt.Sprintf("overlap %.3f below %.2f", p.IoU, band.WindowIoUMin)}, breaches...)
		}
		if len(breaches) > 0 {
			return fmt.Sprintf("window %d: %s", p.BaselineID, breaches[0])
		}
		return ""
	}

	// Earlier stages: two-signal rule. A low IoU alone, or a geometry
	// breach alone, is tolerated.
	if p.IoU < band.WindowIoUMin && len(breaches) > 0 {
		return fmt.Sprintf("window %d: overlap %.3f below %.2f and %s", p.BaselineID, p.IoU, band.WindowIoUMin, breaches[0])
	}
	return ""
}

// pairBreaches lists the geometry/occlusion limits a pair breaches.
func pairBreaches(p PairMetrics, band config.Band) []string {
	var out []string
	if p.AreaDelta > band.AreaDeltaMax {
		out = append(out, fmt.Sprintf("area delta %.3f above %.2f", p.AreaDelta, band.AreaDeltaMax))
	}
	if p.CentroidShift > band.CentroidShiftMax {
		out = append(out, fmt.Sprintf("centroid shift %.4f above %.4f", p.CentroidShift, band.CentroidShiftMax))
	}
	if p.Occlusion > band.OcclusionMax {
		out = append(out, fmt.Sprintf("occlusion %.1f above %.1f", p.Occlusion, band.OcclusionMax))
	}
	return out
}

// summarize renders count and worst-case metrics for the verdict.
func summarize(baseline, candidate []domain.WindowObservation, pairs []PairMetrics) map[string]float64 {
	m := map[string]float64{
		MetricWindowCountBaseline:  float64(len(baseline)),
		MetricWindowCountCandidate: float64(len(candidate)),
	}
	if len(pairs) == 0 {
		return m
	}

	minIoU := pairs[0].IoU
	var maxArea, maxShift, maxOccl float64
	for _, p := range pairs {
		if p.IoU < minIoU {
			minIoU = p.IoU
		}
		if p.AreaDelta > maxArea {
			maxArea = p.AreaDelta
		}
		if p.CentroidShift > maxShift {
			maxShift = p.CentroidShift
		}
		if p.Occlusion > maxOccl {
			maxOccl = p.Occlusion
		}
	}
	m[MetricWindowMinIoU] = minIoU
	m[MetricWindowMaxAreaDelta] = maxArea
	m[MetricWindowMaxCentroid] = maxShift
	m[MetricWindowMaxOcclusion] = maxOccl
	return m
}

func imageDiagonal(g *image.Gray) float64 {
	if g == nil {
		return 0
	}
	w, h := g.Bounds().Dx(), g.Bounds().Dy()
	return math.Hypot(float64(w), float64(h))
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
