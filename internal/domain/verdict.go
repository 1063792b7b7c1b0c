package domain

// CheckResult is the outcome of one named semantic check. Results are
// ephemeral: aggregated into a verdict and discarded.
type CheckResult struct {
	// Name identifies the check (e.g. "perspective", "window_count").
	Name string `json:"name"`

	// OK reports whether the check passed.
	OK bool `json:"ok"`

	// Weight is the check's contribution to the weighted score.
	Weight float64 `json:"weight"`

	// Reason explains a failure. Empty when OK.
	Reason string `json:"reason,omitempty"`

	// Violation marks the failure as a hard violation category. A verdict
	// cannot be accepted while any violation-tagged reason is present,
	// even when the numeric score clears the accept threshold.
	Violation bool `json:"violation,omitempty"`
}

// Score returns the check's binary score contribution (0 or 1).
func (c CheckResult) Score() int {
	if c.OK {
		return 1
	}
	return 0
}

// ValidationVerdict is the sole output of stage validation.
//
// Invariant: OK=false always carries at least one non-empty reason;
// OK=true always carries an empty reason list. Use the constructors to
// preserve this.
type ValidationVerdict struct {
	// OK reports whether the candidate is accepted for this stage.
	OK bool `json:"ok"`

	// Score is the normalized weighted score in [0,1]. It is recomputed
	// from the CheckResult set on every call, never cached.
	Score float64 `json:"score"`

	// Reasons lists every failure reason. Empty when OK.
	Reasons []string `json:"reasons"`

	// Metrics exposes the raw measurements (edge similarity, brightness
	// shift, per-window deltas) for logging and diagnostics.
	Metrics map[string]float64 `json:"metrics,omitempty"`
}

// Accept builds a passing verdict. The reasons list is always empty.
func Accept(score float64, metrics map[string]float64) ValidationVerdict {
	return ValidationVerdict{
		OK:      true,
		Score:   score,
		Reasons: []string{},
		Metrics: metrics,
	}
}

// Reject builds a failing verdict. At least one non-empty reason is
// required; a caller passing none gets a generic reason rather than a
// verdict that violates the invariant.
func Reject(score float64, metrics map[string]float64, reasons ...string) ValidationVerdict {
	kept := make([]string, 0, len(reasons))
	for _, r := range reasons {
		if r != "" {
			kept = append(kept, r)
		}
	}
	if len(kept) == 0 {
		kept = append(kept, "validation failed")
	}
	return ValidationVerdict{
		OK:      false,
		Score:   score,
		Reasons: kept,
		Metrics: metrics,
	}
}

// RetryState tracks the bounded retry ladder for one stage of one job.
// It is owned by the orchestrator, reset per job, mutated only between
// attempts, and never shared across concurrent jobs.
type RetryState struct {
	// Attempt is 0 for the initial generation, 1 for the stricter retry.
	Attempt int `json:"attempt"`

	// StrictnessMultiplier scales sampling temperature on the retry.
	StrictnessMultiplier float64 `json:"strictness_multiplier"`
}
