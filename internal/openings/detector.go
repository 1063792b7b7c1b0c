package openings

import (
	"context"
	"image"
	"time"

	"github.com/rs/zerolog"

	"github.com/realenhance/restage/internal/domain"
	"github.com/realenhance/restage/internal/errors"
	"github.com/realenhance/restage/internal/vision"
)

// detectInstruction asks the model for machine-readable window boxes.
// The answer format matches windowReport below.
const detectInstruction = `Detect every window and glass door opening in this photo. ` +
	`Respond with only a JSON object of the form ` +
	`{"windows": [{"x": int, "y": int, "w": int, "h": int, "confidence": float}]} ` +
	`where x,y is the top-left corner in pixels and confidence is in [0,1]. ` +
	`Respond with {"windows": []} if there are none.`

// Detector produces window observations for a single image. Production
// uses VisionDetector; tests substitute fixtures.
type Detector interface {
	Detect(ctx context.Context, img image.Image) ([]domain.WindowObservation, error)
}

// VisionDetector detects openings by asking the vision model for bounding
// boxes and parsing its JSON answer.
type VisionDetector struct {
	svc     vision.Service
	timeout time.Duration
}

// NewVisionDetector builds a detector over the shared vision service.
// timeout bounds each detection call.
func NewVisionDetector(svc vision.Service, timeout time.Duration) *VisionDetector {
	return &VisionDetector{svc: svc, timeout: timeout}
}

// windowReport is the wire shape of the model's detection answer.
type windowReport struct {
	Windows []struct {
		X          int     `json:"x"`
		Y          int     `json:"y"`
		W          int     `json:"w"`
		H          int     `json:"h"`
		Confidence float64 `json:"confidence"`
	} `json:"windows"`
}

// Detect returns the openings found in img, in the model's reported
// order. Every failure wraps ErrDetectionFailed so callers can apply
// their fail policy with a single errors.Is check.
func (d *VisionDetector) Detect(ctx context.Context, img image.Image) ([]domain.WindowObservation, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	resp, err := d.svc.Generate(ctx, &vision.Request{
		Images:      []image.Image{img},
		Instruction: detectInstruction,
		// Detection wants determinism, not creativity.
		Sampling: vision.SamplingParams{Temperature: 0},
	})
	if err != nil {
		return nil, errors.Wrap(errors.ErrDetectionFailed, err.Error())
	}
	if resp.Text == "" {
		return nil, errors.Wrap(errors.ErrDetectionFailed, "response carries no text part")
	}

	var report windowReport
	if err := vision.ExtractInto(resp.Text, &report); err != nil {
		return nil, errors.Wrap(errors.ErrDetectionFailed, err.Error())
	}

	obs := make([]domain.WindowObservation, 0, len(report.Windows))
	for i, w := range report.Windows {
		box := domain.BBox{X: w.X, Y: w.Y, W: w.W, H: w.H}
		if box.Area() == 0 {
			zerolog.Ctx(ctx).Debug().
				Str("component", "openings").
				Int("index", i).
				Msg("dropping degenerate window box")
			continue
		}
		obs = append(obs, domain.NewWindowObservation(i, box, w.Confidence))
	}
	return obs, nil
}
