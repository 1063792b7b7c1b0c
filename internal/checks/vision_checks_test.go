package checks

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

	gotImages      int
	gotInstruction string
	gotDeadline    bool
}

func (s *stubService) Generate(ctx context.Context, req *vision.Request) (*vision.Response, error) {
	s.gotImages = len(req.Images)
	s.gotInstruction = req.Instruction
	_, s.gotDeadline = ctx.Deadline()
	return s.resp, s.err
}

func TestVisionCheckRun(t *testing.T) {
	t.Parallel()

	t.Run("passing answer", func(t *testing.T) {
		t.Parallel()
		svc := &stubService{resp: &vision.Response{Text: `{"ok": true, "reason": ""}`}}
		chk := &visionCheck{name: CheckPerspective, instruction: checkInstructions[CheckPerspective], svc: svc, timeout: time.Minute}

		baseline, candidate := testPair()
		out, err := chk.Run(context.Background(), baseline, candidate)
		require.NoError(t, err)
		assert.True(t, out.OK)
		assert.Empty(t, out.Reason)

		assert.Equal(t, 2, svc.gotImages)
		assert.True(t, svc.gotDeadline)
		assert.Contains(t, svc.gotInstruction, `{"ok": bool, "reason": string}`)
	})

	t.Run("failing answer in fenced block", func(t *testing.T) {
		t.Parallel()
		svc := &stubService{resp: &vision.Response{
			Text: "```json\n{\"ok\": false, \"reason\": \"camera moved left\"}\n```",
		}}
		chk := &visionCheck{name: CheckPerspective, svc: svc, timeout: time.Minute}

		baseline, candidate := testPair()
		out, err := chk.Run(context.Background(), baseline, candidate)
		require.NoError(t, err)
		assert.False(t, out.OK)
		assert.Equal(t, "camera moved left", out.Reason)
	})

	t.Run("failing answer without reason gets a default", func(t *testing.T) {
		t.Parallel()
		svc := &stubService{resp: &vision.Response{Text: `{"ok": false}`}}
		chk := &visionCheck{name: CheckWallPlane, svc: svc, timeout: time.Minute}

		baseline, candidate := testPair()
		out, err := chk.Run(context.Background(), baseline, candidate)
		require.NoError(t, err)
		assert.Contains(t, out.Reason, CheckWallPlane)
	})

	t.Run("no text part is an error", func(t *testing.T) {
		t.Parallel()
		svc := &stubService{resp: &vision.Response{Image: image.NewGray(image.Rect(0, 0, 1, 1))}}
		chk := &visionCheck{name: CheckFixtures, svc: svc, timeout: time.Minute}

		baseline, candidate := testPair()
		_, err := chk.Run(context.Background(), baseline, candidate)
		require.Error(t, err)
		assert.ErrorIs(t, err, errors.ErrVisionEmptyResponse)
	})

	t.Run("unparseable text is an error", func(t *testing.T) {
		t.Parallel()
		svc := &stubService{resp: &vision.Response{Text: "looks fine to me"}}
		chk := &visionCheck{name: CheckFixtures, svc: svc, timeout: time.Minute}

		baseline, candidate := testPair()
		_, err := chk.Run(context.Background(), baseline, candidate)
		require.Error(t, err)
		assert.ErrorIs(t, err, errors.ErrNoJSONFound)
	})
}
