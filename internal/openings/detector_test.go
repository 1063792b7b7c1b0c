package openings

import (
	"context"
	"image"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/realenhance/restage/internal/errors"
	"github.com/realenhance/restage/internal/vision"
)

// stubService returns a canned vision response.
type stubService struct {
	resp *vision.Response
	err  error

	gotInstruction string
	gotTemperature float64
	gotDeadline    bool
}

func (s *stubService) Generate(ctx context.Context, req *vision.Request) (*vision.Response, error) {
	s.gotInstruction = req.Instruction
	s.gotTemperature = req.Sampling.Temperature
	_, s.gotDeadline = ctx.Deadline()
	return s.resp, s.err
}

func TestVisionDetectorParsesWindows(t *testing.T) {
	t.Parallel()

	svc := &stubService{resp: &vision.Response{
		Text: "Here are the openings:\n```json\n" +
			`{"windows": [{"x": 10, "y": 10, "w": 50, "h": 80, "confidence": 0.92},` +
			`{"x": 200, "y": 10, "w": 50, "h": 80, "confidence": 0.87}]}` + "\n```",
	}}

	d := NewVisionDetector(svc, time.Minute)
	obs, err := d.Detect(context.Background(), image.NewGray(image.Rect(0, 0, 300, 200)))
	require.NoError(t, err)
	require.Len(t, obs, 2)

	assert.Equal(t, 0, obs[0].ID)
	assert.Equal(t, 10, obs[0].BBox.X)
	assert.Equal(t, 4000, obs[0].AreaPx)
	assert.InDelta(t, 0.92, obs[0].Confidence, 1e-9)
	assert.InDelta(t, 35.0, obs[0].CentroidX, 1e-9)

	// Detection runs deterministic and bounded.
	assert.Zero(t, svc.gotTemperature)
	assert.True(t, svc.gotDeadline)
	assert.Contains(t, svc.gotInstruction, "JSON")
}

func TestVisionDetectorEmptyScene(t *testing.T) {
	t.Parallel()

	svc := &stubService{resp: &vision.Response{Text: `{"windows": []}`}}
	d := NewVisionDetector(svc, time.Minute)

	obs, err := d.Detect(context.Background(), image.NewGray(image.Rect(0, 0, 100, 100)))
	require.NoError(t, err)
	assert.Empty(t, obs)
}

func TestVisionDetectorDropsDegenerateBoxes(t *testing.T) {
	t.Parallel()

	svc := &stubService{resp: &vision.Response{
		Text: `{"windows": [{"x": 5, "y": 5, "w": 0, "h": 40, "confidence": 0.5},` +
			`{"x": 10, "y": 10, "w": 30, "h": 40, "confidence": 0.9}]}`,
	}}
	d := NewVisionDetector(svc, time.Minute)

	obs, err := d.Detect(context.Background(), image.NewGray(image.Rect(0, 0, 100, 100)))
	require.NoError(t, err)
	require.Len(t, obs, 1)
	assert.Equal(t, 1, obs[0].ID)
}

func TestVisionDetectorFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		svc  *stubService
	}{
		{
			name: "service error",
			svc:  &stubService{err: errors.ErrVisionService},
		},
		{
			name: "no text part",
			svc:  &stubService{resp: &vision.Response{Image: image.NewGray(image.Rect(0, 0, 1, 1))}},
		},
		{
			name: "no json in text",
			svc:  &stubService{resp: &vision.Response{Text: "I cannot find any structured data."}},
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			d := NewVisionDetector(tc.svc, time.Minute)
			_, err := d.Detect(context.Background(), image.NewGray(image.Rect(0, 0, 10, 10)))
			require.Error(t, err)
			assert.ErrorIs(t, err, errors.ErrDetectionFailed)
		})
	}
}
