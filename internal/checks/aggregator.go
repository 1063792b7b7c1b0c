package checks

import (
	"context"
	"image"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/realenhance/restage/internal/config"
	"github.com/realenhance/restage/internal/domain"
)

// Aggregator fans the check set out against the vision service with
// bounded concurrency and folds the answers into weighted CheckResults.
//
// All checks always run to completion (await-all, not racing): a stage
// verdict should report every violation it found, not just the first.
type Aggregator struct {
	checks  []Check
	weights *config.ChecksConfig
	limit   int
}

// NewAggregator builds an aggregator. limit bounds concurrent check calls
// so the external service's request limits are respected; values below 1
// are treated as 1.
func NewAggregator(checkSet []Check, weights *config.ChecksConfig, limit int) *Aggregator {
	if limit < 1 {
		limit = 1
	}
	return &Aggregator{checks: checkSet, weights: weights, limit: limit}
}

// Run executes every check against the pair and returns one CheckResult
// per check, in check-set order. A check error never aborts the others;
// it is folded into that check's result according to its fail policy.
// Only context cancellation surfaces as an error.
func (a *Aggregator) Run(ctx context.Context, baseline, candidate image.Image) ([]domain.CheckResult, error) {
	results := make([]domain.CheckResult, len(a.checks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.limit)

	for i, chk := range a.checks {
		i, chk := i, chk
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = a.runOne(gctx, chk, baseline, candidate)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// runOne executes a single check and applies its fail policy to any
// detection error.
func (a *Aggregator) runOne(ctx context.Context, chk Check, baseline, candidate image.Image) domain.CheckResult {
	name := chk.Name()
	result := domain.CheckResult{
		Name:   name,
		Weight: a.weights.WeightFor(name),
	}

	out, err := chk.Run(ctx, baseline, candidate)
	if err != nil {
		policy := PolicyFor(name)
		log := zerolog.Ctx(ctx)

		if policy == FailOpen {
			log.Warn().
				Str("component", "checks").
				Str("check", name).
				Err(err).
				Msg("detection error on fail-open check, treating as pass")
			result.OK = true
			return result
		}

		log.Error().
			Str("component", "checks").
			Str("check", name).
			Err(err).
			Msg("detection error on fail-closed check, treating as violation")
		result.OK = false
		result.Reason = name + " could not be verified: " + err.Error()
		result.Violation = true
		return result
	}

	result.OK = out.OK
	result.Reason = out.Reason
	// A legitimately failed safety-tier check is a violation; a failed
	// polish check only costs its weight.
	result.Violation = !out.OK && PolicyFor(name) == FailClosed
	return result
}

// Score folds check results into the normalized weighted score
// Σ(ok·weight) / Σ(weight). An empty result set scores 1: nothing was
// checked, nothing failed.
func Score(results []domain.CheckResult) float64 {
	var num, den float64
	for _, r := range results {
		den += r.Weight
		num += float64(r.Score()) * r.Weight
	}
	if den == 0 {
		return 1
	}
	return num / den
}
