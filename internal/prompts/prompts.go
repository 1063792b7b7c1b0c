// Package prompts builds the instruction text sent to the vision service
// for each generation stage. The validator never inspects instruction
// content; this package exists so the pipeline is runnable end to end.
package prompts

import (
	"strings"

	"github.com/realenhance/restage/internal/domain"
)

// Builder produces the generation instruction for one stage attempt.
// retry is true for the single stricter regeneration.
type Builder interface {
	Build(goal, roomType string, stage domain.Stage, retry bool) string
}

// DefaultBuilder renders a plain-text instruction per stage.
type DefaultBuilder struct{}

// NewBuilder returns the default instruction builder.
func NewBuilder() *DefaultBuilder {
	return &DefaultBuilder{}
}

// stageInstructions is the base instruction per stage.
var stageInstructions = map[domain.Stage]string{
	domain.StageEnhance: `Enhance this real estate photo: correct the lighting, white balance, ` +
		`and sharpness for a bright, professional listing shot.`,
	domain.StageDeclutter: `Remove clutter and personal items from this photo: loose cables, ` +
		`papers, toiletries, and anything that is not furniture or a fixture.`,
	domain.StageStaging: `Virtually stage this room with tasteful, realistically scaled ` +
		`furniture appropriate for the space.`,
}

// preserveClause states the structural invariant every stage must honor.
const preserveClause = ` Keep the camera position, wall geometry, windows, doors, and all ` +
	`permanent fixtures exactly as they are.`

// strictClause is appended on the stricter retry.
const strictClause = ` IMPORTANT: the previous attempt altered the room structure. ` +
	`Change nothing about the layout, viewpoint, or openings; make only the requested ` +
	`cosmetic edit.`

// Build implements Builder.
func (b *DefaultBuilder) Build(goal, roomType string, stage domain.Stage, retry bool) string {
	var sb strings.Builder
	sb.WriteString(stageInstructions[stage])
	if roomType != "" {
		sb.WriteString(" The room is a " + roomType + ".")
	}
	if goal != "" {
		sb.WriteString(" Listing goal: " + goal + ".")
	}
	sb.WriteString(preserveClause)
	if retry {
		sb.WriteString(strictClause)
	}
	return sb.String()
}
