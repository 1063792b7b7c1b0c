// Package checks runs the semantic validation checks for the furniture
// staging stage: weighted, independent questions answered by the vision
// model about a baseline/candidate image pair.
//
// Checks are polymorphic over the Check interface so new ones can be added
// by composition, without touching the aggregator.
package checks

import (
	"context"
	"image"
)

// Canonical check names. Weights are configured against these.
const (
	CheckPerspective = "perspective"
	CheckWallPlane   = "wall_plane"
	CheckWindowCount = "window_count"
	CheckFurniture   = "furniture"
	CheckFixtures    = "fixtures"
	CheckFieldOfView = "field_of_view"
	CheckRealism     = "realism"
)

// Outcome is one check's raw answer before policy and weighting are
// applied.
type Outcome struct {
	// OK reports whether the check passed.
	OK bool

	// Reason explains a failure. Empty when OK.
	Reason string
}

// Check is one named semantic validation question.
type Check interface {
	// Name identifies the check for weighting and the policy table.
	Name() string

	// Run answers the check for one image pair. An error means the check
	// could not produce an answer at all; the caller's fail policy decides
	// what that means.
	Run(ctx context.Context, baseline, candidate image.Image) (Outcome, error)
}
