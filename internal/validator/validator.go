// Package validator produces the per-stage validation verdict: one
// ValidationVerdict per (baseline, candidate, stage, scene) tuple,
// composed from the pixel analyzer, the window correspondence matcher,
// and, for the staging stage, the semantic check set.
package validator

import (
	"context"
	"image"

	"github.com/rs/zerolog"

	"github.com/realenhance/restage/internal/checks"
	"github.com/realenhance/restage/internal/config"
	"github.com/realenhance/restage/internal/constants"
	"github.com/realenhance/restage/internal/ctxutil"
	"github.com/realenhance/restage/internal/domain"
	"github.com/realenhance/restage/internal/errors"
	"github.com/realenhance/restage/internal/openings"
	"github.com/realenhance/restage/internal/pixel"
	"github.com/realenhance/restage/internal/raster"
	"github.com/realenhance/restage/internal/vision"
)

// MetricCheckScore is the verdict metric carrying the normalized
// semantic score.
const MetricCheckScore = "check_score"

// Validator composes the structural analyzers into stage verdicts. Safe
// for concurrent use; per-job state lives in the arguments.
type Validator struct {
	cfg      *config.Config
	analyzer *pixel.Analyzer
	matcher  *openings.Matcher
	detector openings.Detector
	svc      vision.Service
}

// New builds a validator. svc backs the staging-stage semantic checks;
// detector supplies window observations for correspondence matching.
func New(cfg *config.Config, svc vision.Service, detector openings.Detector) *Validator {
	return &Validator{
		cfg:      cfg,
		analyzer: pixel.NewAnalyzer(cfg.Pipeline.AspectRatioTolerance),
		matcher:  openings.NewMatcher(),
		detector: detector,
		svc:      svc,
	}
}

// Validate runs the full validation protocol for one pair:
//
//  1. pixel structure — any failure short-circuits to ok=false, score=0;
//  2. window correspondence — hard geometry violations short-circuit
//     identically;
//  3. semantic checks, staging stage only — weighted score gated by the
//     accept threshold AND the absence of violation-tagged reasons.
//
// Earlier stages that pass steps 1-2 score 1. The returned error is
// non-nil only for context cancellation; every validation outcome,
// including detection failures, is expressed in the verdict.
func (v *Validator) Validate(ctx context.Context, baseline, candidate image.Image, stage domain.Stage, scene domain.Scene) (domain.ValidationVerdict, error) {
	if err := ctxutil.Canceled(ctx); err != nil {
		return domain.ValidationVerdict{}, err
	}

	log := zerolog.Ctx(ctx)

	band, err := v.cfg.Thresholds.Lookup(stage, scene)
	if err != nil {
		return domain.ValidationVerdict{}, err
	}

	baseline = raster.FitWithin(baseline, constants.MaxProcessingDimension)
	candidate = raster.FitWithin(candidate, constants.MaxProcessingDimension)

	// Step 1: pixel structure. Always hard-fail, bypassing weighting.
	pixelRes := v.analyzer.Analyze(baseline, candidate, stage, scene, band)
	metrics := pixelRes.Metrics.Map()
	if !pixelRes.OK {
		log.Info().
			Str("component", "validator").
			Str("stage", string(stage)).
			Str("reason", pixelRes.Reason).
			Msg("pixel structure hard fail")
		return domain.Reject(0, metrics, pixelRes.Reason), nil
	}

	// Step 2: window correspondence.
	matchRes, err := v.matchWindows(ctx, baseline, candidate, stage, band)
	if err != nil {
		if ctxErr := ctxutil.Canceled(ctx); ctxErr != nil {
			return domain.ValidationVerdict{}, ctxErr
		}
		// Openings are a safety-critical concern: a detection failure is
		// fail-closed, a violation rather than an assumed pass.
		reason := "window correspondence could not be verified: " + err.Error()
		return domain.Reject(0, metrics, reason), nil
	}
	mergeMetrics(metrics, matchRes.Metrics)
	if !matchRes.OK {
		log.Info().
			Str("component", "validator").
			Str("stage", string(stage)).
			Strs("reasons", matchRes.Reasons).
			Msg("window correspondence hard fail")
		return domain.Reject(0, metrics, matchRes.Reasons...), nil
	}

	// Step 3: semantic checks, staging only. Earlier stages that reach
	// this point pass at full score.
	if !stage.IsFinal() {
		return domain.Accept(1, metrics), nil
	}

	agg := checks.NewAggregator(
		checks.StagingChecks(v.svc, scene, v.cfg.Vision.CheckTimeout),
		&v.cfg.Checks,
		v.cfg.Vision.MaxConcurrent,
	)
	results, err := agg.Run(ctx, baseline, candidate)
	if err != nil {
		return domain.ValidationVerdict{}, err
	}

	score := checks.Score(results)
	metrics[MetricCheckScore] = score

	var reasons []string
	violation := false
	for _, r := range results {
		if !r.OK {
			reasons = append(reasons, r.Reason)
			violation = violation || r.Violation
		}
	}

	// Numeric score and violation tags both gate acceptance: a clearing
	// score with a standing violation still rejects.
	switch {
	case violation:
		return domain.Reject(score, metrics, reasons...), nil
	case score < v.cfg.Checks.AcceptScore:
		return domain.Reject(score, metrics, reasons...), nil
	default:
		return domain.Accept(score, metrics), nil
	}
}

// matchWindows detects openings in both images and runs correspondence
// matching. Candidate observations are gathered at baseline dimensions so
// box coordinates compare directly.
func (v *Validator) matchWindows(ctx context.Context, baseline, candidate image.Image, stage domain.Stage, band config.Band) (openings.Result, error) {
	bw, bh := raster.Dimensions(baseline)
	cw, ch := raster.Dimensions(candidate)
	if bw != cw || bh != ch {
		candidate = raster.Resize(candidate, bw, bh)
	}

	baseObs, err := v.detector.Detect(ctx, baseline)
	if err != nil {
		return openings.Result{}, errors.Wrap(err, "baseline detection")
	}
	candObs, err := v.detector.Detect(ctx, candidate)
	if err != nil {
		return openings.Result{}, errors.Wrap(err, "candidate detection")
	}

	grayBase := raster.ToGray(baseline)
	grayCand := raster.ToGray(candidate)
	return v.matcher.Match(baseObs, candObs, grayBase, grayCand, stage, band), nil
}

// mergeMetrics folds src into dst.
func mergeMetrics(dst, src map[string]float64) {
	for k, val := range src {
		dst[k] = val
	}
}
