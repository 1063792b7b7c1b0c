package pipeline

import (
	"context"
	"image"
	"os"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/realenhance/restage/internal/config"
	"github.com/realenhance/restage/internal/domain"
	resterrors "github.com/realenhance/restage/internal/errors"
	"github.com/realenhance/restage/internal/prompts"
	"github.com/realenhance/restage/internal/vision"
)

// genService fabricates one distinct candidate image per call and records
// what it was asked.
type genService struct {
	mu           sync.Mutex
	baselines    []image.Image
	temperatures []float64
	instructions []string
	errOnCall    map[int]error
	textOnly     map[int]bool
	produced     []image.Image
}

func (g *genService) Generate(_ context.Context, req *vision.Request) (*vision.Response, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	call := len(g.temperatures)
	g.baselines = append(g.baselines, req.Images[0])
	g.temperatures = append(g.temperatures, req.Sampling.Temperature)
	g.instructions = append(g.instructions, req.Instruction)

	if err := g.errOnCall[call]; err != nil {
		return nil, err
	}
	if g.textOnly[call] {
		return &vision.Response{Text: "no image for you"}, nil
	}

	img := image.NewGray(image.Rect(0, 0, 10, 10))
	g.produced = append(g.produced, img)
	return &vision.Response{Image: img}, nil
}

// scriptedValidator pops verdicts from a per-stage queue and records the
// pairs it saw.
type scriptedValidator struct {
	mu        sync.Mutex
	queues    map[domain.Stage][]domain.ValidationVerdict
	baselines []image.Image
	stages    []domain.Stage
}

func (v *scriptedValidator) Validate(_ context.Context, baseline, _ image.Image, stage domain.Stage, _ domain.Scene) (domain.ValidationVerdict, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.baselines = append(v.baselines, baseline)
	v.stages = append(v.stages, stage)

	q := v.queues[stage]
	if len(q) == 0 {
		return domain.Accept(1, nil), nil
	}
	verdict := q[0]
	v.queues[stage] = q[1:]
	return verdict, nil
}

func acceptAll() *scriptedValidator {
	return &scriptedValidator{queues: map[domain.Stage][]domain.ValidationVerdict{}}
}

func testJob() domain.Job {
	return domain.Job{
		ID:       uuid.NewString(),
		Goal:     "bright and airy",
		RoomType: "living room",
		Scene:    domain.SceneInterior,
	}
}

func newTestOrchestrator(t *testing.T, cfg *config.Config, svc vision.Service, v StageValidator) *Orchestrator {
	t.Helper()
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	return New(cfg, svc, v, prompts.NewBuilder(), store)
}

func TestRunAllStagesAccepted(t *testing.T) {
	t.Parallel()

	svc := &genService{}
	v := acceptAll()
	o := newTestOrchestrator(t, config.DefaultConfig(), svc, v)

	input := image.NewGray(image.Rect(0, 0, 10, 10))
	job := testJob()
	result, err := o.Run(context.Background(), job, input)
	require.NoError(t, err)

	require.Len(t, result.Outcomes, 3)
	for i, stage := range domain.Order() {
		assert.Equal(t, stage, result.Outcomes[i].Stage)
		assert.Equal(t, 1, result.Outcomes[i].Attempts)
		assert.True(t, result.Outcomes[i].Verdict.OK)
		assert.False(t, result.Outcomes[i].FellBack)

		// Artifact written to the job-unique path.
		_, statErr := os.Stat(result.Outcomes[i].Artifact.ImageRef)
		assert.NoError(t, statErr)
		assert.Contains(t, result.Outcomes[i].Artifact.ImageRef, job.ID)
	}

	assert.Equal(t, domain.StageStaging, result.Final.StageID)

	// Each accepted candidate became the next stage's baseline.
	require.Len(t, svc.baselines, 3)
	assert.Same(t, input, svc.baselines[0])
	assert.Same(t, svc.produced[0], svc.baselines[1])
	assert.Same(t, svc.produced[1], svc.baselines[2])
}

func TestRunRetryLadderInvokedExactlyOnce(t *testing.T) {
	t.Parallel()

	svc := &genService{}
	v := &scriptedValidator{queues: map[domain.Stage][]domain.ValidationVerdict{
		domain.StageEnhance: {
			domain.Reject(0, nil, "edge similarity collapsed"),
			domain.Reject(0, nil, "edge similarity collapsed again"),
		},
	}}

	o := newTestOrchestrator(t, config.DefaultConfig(), svc, v)
	result, err := o.Run(context.Background(), testJob(), image.NewGray(image.Rect(0, 0, 10, 10)))
	require.Error(t, err)
	assert.ErrorIs(t, err, resterrors.ErrStageFailed)

	// Two consecutive failures: exactly one retry, never two.
	assert.Len(t, svc.temperatures, 2)

	require.Len(t, result.Outcomes, 1)
	outcome := result.Outcomes[0]
	assert.Equal(t, 2, outcome.Attempts)
	assert.False(t, outcome.Verdict.OK)

	// Both failures' reasons are amassed and surfaced.
	assert.Contains(t, outcome.Verdict.Reasons, "edge similarity collapsed")
	assert.Contains(t, outcome.Verdict.Reasons, "edge similarity collapsed again")
	assert.Contains(t, err.Error(), "edge similarity collapsed")
}

func TestRunRetryReducesTemperature(t *testing.T) {
	t.Parallel()

	svc := &genService{}
	v := &scriptedValidator{queues: map[domain.Stage][]domain.ValidationVerdict{
		domain.StageEnhance: {domain.Reject(0, nil, "too much drift")},
	}}

	o := newTestOrchestrator(t, config.DefaultConfig(), svc, v)
	result, err := o.Run(context.Background(), testJob(), image.NewGray(image.Rect(0, 0, 10, 10)))
	require.NoError(t, err)

	// 0.7 * 0.8 = 0.56 on the stricter attempt.
	require.GreaterOrEqual(t, len(svc.temperatures), 2)
	assert.InDelta(t, 0.7, svc.temperatures[0], 1e-9)
	assert.InDelta(t, 0.56, svc.temperatures[1], 1e-9)

	// The stricter instruction variant was used.
	assert.NotEqual(t, svc.instructions[0], svc.instructions[1])
	assert.Contains(t, svc.instructions[1], "Change nothing")

	assert.Equal(t, 2, result.Outcomes[0].Attempts)
	assert.True(t, result.Outcomes[0].Verdict.OK)
}

func TestRunTemperatureFloor(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()
	cfg.Vision.Temperature = 0.12

	svc := &genService{}
	v := &scriptedValidator{queues: map[domain.Stage][]domain.ValidationVerdict{
		domain.StageEnhance: {domain.Reject(0, nil, "drift")},
	}}

	o := newTestOrchestrator(t, cfg, svc, v)
	_, err := o.Run(context.Background(), testJob(), image.NewGray(image.Rect(0, 0, 10, 10)))
	require.NoError(t, err)

	// 0.12 * 0.8 = 0.096, floored at 0.1.
	require.GreaterOrEqual(t, len(svc.temperatures), 2)
	assert.InDelta(t, cfg.Pipeline.MinTemperature, svc.temperatures[1], 1e-9)
}

func TestRunExplicitFallback(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()
	cfg.Pipeline.AllowStageFallback = true

	svc := &genService{}
	v := &scriptedValidator{queues: map[domain.Stage][]domain.ValidationVerdict{
		domain.StageDeclutter: {
			domain.Reject(0, nil, "clutter check failed"),
			domain.Reject(0, nil, "clutter check failed"),
		},
	}}

	o := newTestOrchestrator(t, cfg, svc, v)
	result, err := o.Run(context.Background(), testJob(), image.NewGray(image.Rect(0, 0, 10, 10)))
	require.NoError(t, err)

	require.Len(t, result.Outcomes, 3)
	assert.True(t, result.Outcomes[1].FellBack, "declutter outcome must be marked as fallback")
	assert.False(t, result.Outcomes[1].Verdict.OK)

	// Staging ran on the enhance output, not a declutter candidate.
	v.mu.Lock()
	stagingBaseline := v.baselines[len(v.baselines)-1]
	v.mu.Unlock()
	assert.Same(t, svc.produced[0], stagingBaseline)

	assert.Equal(t, domain.StageStaging, result.Final.StageID)
}

func TestRunNoSilentFallbackByDefault(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()
	require.False(t, cfg.Pipeline.AllowStageFallback)

	svc := &genService{}
	v := &scriptedValidator{queues: map[domain.Stage][]domain.ValidationVerdict{
		domain.StageDeclutter: {
			domain.Reject(0, nil, "clutter"),
			domain.Reject(0, nil, "clutter"),
		},
	}}

	o := newTestOrchestrator(t, cfg, svc, v)
	result, err := o.Run(context.Background(), testJob(), image.NewGray(image.Rect(0, 0, 10, 10)))
	require.Error(t, err)
	assert.ErrorIs(t, err, resterrors.ErrStageFailed)

	// The run stops at the failed stage; staging never starts.
	require.Len(t, result.Outcomes, 2)
	assert.Zero(t, result.Final.ImageRef)
}

func TestRunGenerationErrorConsumesAttempt(t *testing.T) {
	t.Parallel()

	svc := &genService{errOnCall: map[int]error{0: resterrors.ErrVisionService}}
	o := newTestOrchestrator(t, config.DefaultConfig(), svc, acceptAll())

	result, err := o.Run(context.Background(), testJob(), image.NewGray(image.Rect(0, 0, 10, 10)))
	require.NoError(t, err)

	assert.Equal(t, 2, result.Outcomes[0].Attempts)
	assert.True(t, result.Outcomes[0].Verdict.OK)
}

func TestRunTextOnlyResponseIsGenerationFailure(t *testing.T) {
	t.Parallel()

	svc := &genService{textOnly: map[int]bool{0: true, 1: true}}
	o := newTestOrchestrator(t, config.DefaultConfig(), svc, acceptAll())

	result, err := o.Run(context.Background(), testJob(), image.NewGray(image.Rect(0, 0, 10, 10)))
	require.Error(t, err)
	assert.ErrorIs(t, err, resterrors.ErrStageFailed)
	require.Len(t, result.Outcomes, 1)
	assert.Contains(t, result.Outcomes[0].Verdict.Reasons[0], "text only")
}

func TestRunContextCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	o := newTestOrchestrator(t, config.DefaultConfig(), &genService{}, acceptAll())
	_, err := o.Run(ctx, testJob(), image.NewGray(image.Rect(0, 0, 10, 10)))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStateMachineTransitions(t *testing.T) {
	t.Parallel()

	t.Run("happy path", func(t *testing.T) {
		t.Parallel()
		m := newStateMachine()
		require.NoError(t, m.to(StateGenerating))
		require.NoError(t, m.to(StateValidating))
		require.NoError(t, m.to(StateAccepted))
	})

	t.Run("retry path", func(t *testing.T) {
		t.Parallel()
		m := newStateMachine()
		require.NoError(t, m.to(StateGenerating))
		require.NoError(t, m.to(StateValidating))
		require.NoError(t, m.to(StateRetryStricter))
		require.NoError(t, m.to(StateGenerating))
		require.NoError(t, m.to(StateValidating))
		require.NoError(t, m.to(StateFailed))
	})

	t.Run("invalid transitions rejected", func(t *testing.T) {
		t.Parallel()
		m := newStateMachine()
		err := m.to(StateAccepted)
		require.Error(t, err)
		assert.ErrorIs(t, err, resterrors.ErrInvalidTransition)

		require.NoError(t, m.to(StateGenerating))
		assert.Error(t, m.to(StateGenerating))

		// Terminal states are terminal.
		require.NoError(t, m.to(StateValidating))
		require.NoError(t, m.to(StateAccepted))
		assert.Error(t, m.to(StateGenerating))
	})
}

func TestStorePaths(t *testing.T) {
	t.Parallel()

	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	jobA := uuid.NewString()
	jobB := uuid.NewString()

	pathA := store.Path(jobA, domain.StageEnhance, 0)
	pathB := store.Path(jobB, domain.StageEnhance, 0)
	assert.NotEqual(t, pathA, pathB)
	assert.Contains(t, pathA, jobA)

	// Attempts are distinguishable for ladder debugging.
	assert.NotEqual(t, pathA, store.Path(jobA, domain.StageEnhance, 1))
}

func TestStoreSaveRoundTrip(t *testing.T) {
	t.Parallel()

	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	img := image.NewGray(image.Rect(0, 0, 12, 8))
	artifact, err := store.Save(img, uuid.NewString(), domain.StageStaging, 1)
	require.NoError(t, err)

	assert.Equal(t, domain.StageStaging, artifact.StageID)
	assert.Equal(t, 12, artifact.Width)
	assert.Equal(t, 8, artifact.Height)
	assert.False(t, artifact.CreatedAt.IsZero())

	_, err = os.Stat(artifact.ImageRef)
	assert.NoError(t, err)
}
