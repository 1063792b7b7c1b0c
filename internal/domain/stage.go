// Package domain provides shared domain types for the restage validation
// and orchestration engine. These types are used across all internal packages
// to ensure consistent data structures.
//
// This package follows strict import rules:
//   - CAN import: internal/constants, internal/errors, standard library
//   - MUST NOT import: any other internal packages
//
// All JSON field names use snake_case.
package domain

import (
	"github.com/realenhance/restage/internal/errors"
)

// Stage identifies one step of the three-stage enhancement ladder.
// Stages run strictly in order; each stage's accepted output becomes the
// baseline input to the next.
type Stage string

// The three generation stages.
const (
	// StageEnhance (1A) is quality enhancement: lighting, color, sharpness.
	StageEnhance Stage = "1A"

	// StageDeclutter (1B) removes clutter and personal items.
	StageDeclutter Stage = "1B"

	// StageStaging (2) adds virtual furniture. It is validated under
	// zero-tolerance threshold bands and is the only stage that runs
	// semantic checks.
	StageStaging Stage = "2"
)

// Order is the canonical stage sequence for a job.
func Order() []Stage {
	return []Stage{StageEnhance, StageDeclutter, StageStaging}
}

// ParseStage converts a string into a Stage, accepting both the short IDs
// (1A, 1B, 2) and the descriptive names.
func ParseStage(s string) (Stage, error) {
	switch s {
	case "1A", "1a", "enhance":
		return StageEnhance, nil
	case "1B", "1b", "declutter":
		return StageDeclutter, nil
	case "2", "staging", "stage":
		return StageStaging, nil
	default:
		return "", errors.Wrapf(errors.ErrUnknownStage, "%q", s)
	}
}

// IsFinal reports whether this is the furniture staging stage, which gets
// zero-tolerance bands and the semantic check set.
func (s Stage) IsFinal() bool {
	return s == StageStaging
}

// Next returns the stage that follows s, or "" when s is the last stage.
func (s Stage) Next() Stage {
	switch s {
	case StageEnhance:
		return StageDeclutter
	case StageDeclutter:
		return StageStaging
	default:
		return ""
	}
}

// Scene classifies a photograph by what it shows. Threshold bands and
// semantic check sets differ per scene.
type Scene string

// Supported scene types.
const (
	SceneInterior Scene = "interior"
	SceneExterior Scene = "exterior"
)

// ParseScene converts a string into a Scene.
func ParseScene(s string) (Scene, error) {
	switch s {
	case "interior":
		return SceneInterior, nil
	case "exterior":
		return SceneExterior, nil
	default:
		return "", errors.Wrapf(errors.ErrUnknownScene, "%q", s)
	}
}
