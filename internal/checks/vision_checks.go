package checks

import (
	"context"
	"image"
	"time"

	"github.com/realenhance/restage/internal/domain"
	"github.com/realenhance/restage/internal/errors"
	"github.com/realenhance/restage/internal/vision"
)

// answerFormat is appended to every check instruction so the model's
// answer is machine-readable.
const answerFormat = ` The first image is the original, the second is the edited version. ` +
	`Respond with only a JSON object {"ok": bool, "reason": string} where ok is true ` +
	`when the edit is acceptable and reason explains any problem.`

// visionCheck asks the model one yes/no question about an image pair.
type visionCheck struct {
	name        string
	instruction string
	svc         vision.Service
	timeout     time.Duration
}

// Name implements Check.
func (c *visionCheck) Name() string { return c.name }

// Run implements Check. Errors are returned untyped here; the aggregator
// applies the check's fail policy.
func (c *visionCheck) Run(ctx context.Context, baseline, candidate image.Image) (Outcome, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.svc.Generate(ctx, &vision.Request{
		Images:      []image.Image{baseline, candidate},
		Instruction: c.instruction + answerFormat,
		Sampling:    vision.SamplingParams{Temperature: 0},
	})
	if err != nil {
		return Outcome{}, err
	}
	if resp.Text == "" {
		return Outcome{}, errors.Wrap(errors.ErrVisionEmptyResponse, "check response carries no text part")
	}

	var answer struct {
		OK     bool   `json:"ok"`
		Reason string `json:"reason"`
	}
	if err := vision.ExtractInto(resp.Text, &answer); err != nil {
		return Outcome{}, errors.Wrapf(err, "check %s", c.name)
	}

	out := Outcome{OK: answer.OK, Reason: answer.Reason}
	if !out.OK && out.Reason == "" {
		out.Reason = c.name + " check reported a violation"
	}
	return out, nil
}

// checkInstructions holds the question each named check asks. Interior
// and exterior scenes share most questions; scene-specific wording is
// resolved in StagingChecks.
var checkInstructions = map[string]string{
	CheckPerspective: `Compare the camera perspective of these two photos of the same room. ` +
		`Has the camera position, angle, or tilt changed between them? ` +
		`ok must be false if the viewpoint shifted.`,
	CheckWallPlane: `Compare the wall geometry of these two photos. Have any walls moved, ` +
		`been added, removed, or changed angle? ok must be false on any wall change.`,
	CheckWindowCount: `Count the windows and glass doors visible in each photo. ` +
		`ok must be false if the count differs or any opening moved or changed size.`,
	CheckFurniture: `Look at the furniture added in the second photo. Is every piece ` +
		`plausibly scaled for the room, resting on the floor, and free of distortion? ` +
		`ok must be false for floating, warped, or badly scaled furniture.`,
	CheckFixtures: `Compare the permanent fixtures: radiators, ceiling lights, sockets, ` +
		`built-in cabinets, doors. ok must be false if any fixture was removed, moved, ` +
		`or materially altered.`,
	CheckFieldOfView: `Compare the field of view of the two photos. Does the second photo ` +
		`show more of the scene than the first, as if the lens widened or the image ` +
		`was outpainted? ok must be false if the field of view expanded.`,
	CheckRealism: `Judge whether the second photo still looks like a real estate ` +
		`photograph: consistent lighting, shadows, and reflections. ok must be false ` +
		`for obviously synthetic artifacts.`,
}

// interiorCheckNames is the check set for interior staging shots.
var interiorCheckNames = []string{
	CheckPerspective,
	CheckWallPlane,
	CheckWindowCount,
	CheckFurniture,
	CheckFixtures,
	CheckFieldOfView,
	CheckRealism,
}

// exteriorCheckNames is the check set for exterior shots. Furniture scale
// does not apply outdoors.
var exteriorCheckNames = []string{
	CheckPerspective,
	CheckWallPlane,
	CheckWindowCount,
	CheckFixtures,
	CheckFieldOfView,
	CheckRealism,
}

// StagingChecks builds the semantic check set for the staging stage of a
// scene, all backed by the shared vision service.
func StagingChecks(svc vision.Service, scene domain.Scene, timeout time.Duration) []Check {
	names := interiorCheckNames
	if scene == domain.SceneExterior {
		names = exteriorCheckNames
	}

	out := make([]Check, 0, len(names))
	for _, name := range names {
		out = append(out, &visionCheck{
			name:        name,
			instruction: checkInstructions[name],
			svc:         svc,
			timeout:     timeout,
		})
	}
	return out
}
