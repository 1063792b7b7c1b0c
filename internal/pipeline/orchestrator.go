// Package pipeline orchestrates the three-stage enhancement ladder: it
// drives generation through the vision service, validates every candidate,
// and applies the bounded stricter-retry ladder before finalizing
// accept, fallback, or fail.
package pipeline

import (
	"context"
	"errors"
	"image"
	"strings"

	"github.com/rs/zerolog"

	"github.com/realenhance/restage/internal/config"
	"github.com/realenhance/restage/internal/constants"
	"github.com/realenhance/restage/internal/ctxutil"
	"github.com/realenhance/restage/internal/domain"
	resterrors "github.com/realenhance/restage/internal/errors"
	"github.com/realenhance/restage/internal/prompts"
	"github.com/realenhance/restage/internal/vision"
)

// StageValidator is the verdict seam. Production wires
// validator.Validator; tests substitute scripted verdicts.
type StageValidator interface {
	Validate(ctx context.Context, baseline, candidate image.Image, stage domain.Stage, scene domain.Scene) (domain.ValidationVerdict, error)
}

// StageOutcome records how one stage of a job concluded.
type StageOutcome struct {
	// Stage is the stage this outcome describes.
	Stage domain.Stage `json:"stage"`

	// Artifact is the accepted output, zero-valued when the stage failed.
	Artifact domain.Artifact `json:"artifact"`

	// Verdict is the final validation verdict of the stage.
	Verdict domain.ValidationVerdict `json:"verdict"`

	// Attempts is how many generation attempts ran (1 or 2).
	Attempts int `json:"attempts"`

	// FellBack is true when the stage exhausted its ladder and the job
	// continued on the previous stage's output. Only possible when the
	// caller explicitly enabled stage fallback.
	FellBack bool `json:"fell_back"`
}

// Result is the outcome of a full job run.
type Result struct {
	// JobID identifies the job.
	JobID string `json:"job_id"`

	// Final is the artifact of the last completed stage.
	Final domain.Artifact `json:"final"`

	// Outcomes lists every stage outcome in ladder order.
	Outcomes []StageOutcome `json:"outcomes"`
}

// Orchestrator runs jobs through the stage ladder. Stages within a job
// are strictly sequential: stage N+1 never starts before stage N's
// verdict is accepted (or an explicit fallback is taken).
type Orchestrator struct {
	cfg       *config.Config
	svc       vision.Service
	validator StageValidator
	builder   prompts.Builder
	store     *Store
}

// New builds an orchestrator.
func New(cfg *config.Config, svc vision.Service, v StageValidator, builder prompts.Builder, store *Store) *Orchestrator {
	return &Orchestrator{
		cfg:       cfg,
		svc:       svc,
		validator: v,
		builder:   builder,
		store:     store,
	}
}

// Run executes the full ladder for one job. input is the original
// photograph; each accepted stage output becomes the baseline for the
// next stage.
//
// On stage failure the full reasons list is surfaced. An earlier-stage
// artifact is substituted only when cfg.Pipeline.AllowStageFallback is
// set, and then the outcome is marked FellBack; never silently.
func (o *Orchestrator) Run(ctx context.Context, job domain.Job, input image.Image) (*Result, error) {
	log := zerolog.Ctx(ctx)
	result := &Result{JobID: job.ID}

	baseline := input
	for _, stage := range domain.Order() {
		if err := ctxutil.Canceled(ctx); err != nil {
			return nil, err
		}

		outcome, accepted, err := o.runStage(ctx, job, stage, baseline)
		if err != nil {
			if !errors.Is(err, resterrors.ErrStageFailed) {
				return nil, err
			}
			if !o.cfg.Pipeline.AllowStageFallback {
				result.Outcomes = append(result.Outcomes, outcome)
				return result, err
			}

			log.Warn().
				Str("component", "pipeline").
				Str("job_id", job.ID).
				Str("stage", string(stage)).
				Strs("reasons", outcome.Verdict.Reasons).
				Msg("stage failed, falling back to previous output")
			outcome.FellBack = true
			result.Outcomes = append(result.Outcomes, outcome)
			continue
		}

		result.Outcomes = append(result.Outcomes, outcome)
		result.Final = outcome.Artifact
		baseline = accepted
	}
	return result, nil
}

// runStage drives one stage through the state machine. The returned
// image is the accepted candidate; err wraps ErrStageFailed when the
// ladder is exhausted, with the outcome carrying the amassed reasons.
func (o *Orchestrator) runStage(ctx context.Context, job domain.Job, stage domain.Stage, baseline image.Image) (StageOutcome, image.Image, error) {
	log := zerolog.Ctx(ctx)
	machine := newStateMachine()
	outcome := StageOutcome{Stage: stage}

	retry := domain.RetryState{
		Attempt:              0,
		StrictnessMultiplier: o.cfg.Pipeline.StrictnessMultiplier,
	}
	temperature := o.cfg.Vision.Temperature
	var amassed []string

	for {
		outcome.Attempts = retry.Attempt + 1

		if err := machine.to(StateGenerating); err != nil {
			return outcome, nil, err
		}
		candidate, err := o.generate(ctx, job, stage, baseline, temperature, retry.Attempt > 0)
		if err != nil {
			if ctxErr := ctxutil.Canceled(ctx); ctxErr != nil {
				return outcome, nil, ctxErr
			}
			amassed = append(amassed, err.Error())
			next, stepErr := o.stepAfterFailure(machine, &retry, &temperature)
			if stepErr != nil {
				return outcome, nil, stepErr
			}
			if !next {
				outcome.Verdict = domain.Reject(0, nil, amassed...)
				return outcome, nil, failStage(machine, stage, amassed)
			}
			continue
		}

		if err := machine.to(StateValidating); err != nil {
			return outcome, nil, err
		}
		verdict, err := o.validator.Validate(ctx, baseline, candidate, stage, job.Scene)
		if err != nil {
			return outcome, nil, err
		}
		outcome.Verdict = verdict

		if verdict.OK {
			if err := machine.to(StateAccepted); err != nil {
				return outcome, nil, err
			}
			artifact, err := o.store.Save(candidate, job.ID, stage, retry.Attempt)
			if err != nil {
				return outcome, nil, err
			}
			outcome.Artifact = artifact

			log.Info().
				Str("component", "pipeline").
				Str("job_id", job.ID).
				Str("stage", string(stage)).
				Int("attempts", outcome.Attempts).
				Float64("score", verdict.Score).
				Msg("stage accepted")
			return outcome, candidate, nil
		}

		amassed = append(amassed, verdict.Reasons...)
		next, stepErr := o.stepAfterFailure(machine, &retry, &temperature)
		if stepErr != nil {
			return outcome, nil, stepErr
		}
		if !next {
			outcome.Verdict = domain.Reject(verdict.Score, verdict.Metrics, amassed...)
			return outcome, nil, failStage(machine, stage, amassed)
		}

		log.Info().
			Str("component", "pipeline").
			Str("job_id", job.ID).
			Str("stage", string(stage)).
			Float64("temperature", temperature).
			Strs("reasons", verdict.Reasons).
			Msg("validation failed, retrying stricter")
	}
}

// stepAfterFailure advances the ladder after a failed attempt. It returns
// true when a stricter retry should run, false when the ladder is
// exhausted. The retry is triggered exactly once per stage.
func (o *Orchestrator) stepAfterFailure(machine *stateMachine, retry *domain.RetryState, temperature *float64) (bool, error) {
	if retry.Attempt+1 >= constants.MaxStageAttempts {
		return false, nil
	}
	if err := machine.to(StateRetryStricter); err != nil {
		return false, err
	}

	retry.Attempt++
	*temperature *= retry.StrictnessMultiplier
	if *temperature < o.cfg.Pipeline.MinTemperature {
		*temperature = o.cfg.Pipeline.MinTemperature
	}
	return true, nil
}

// failStage moves the machine to Failed and builds the stage error with
// every amassed reason.
func failStage(machine *stateMachine, stage domain.Stage, reasons []string) error {
	_ = machine.to(StateFailed)
	return resterrors.Wrapf(resterrors.ErrStageFailed, "stage %s: %s", stage, strings.Join(reasons, "; "))
}

// generate calls the vision service for one stage attempt under the
// generation timeout.
func (o *Orchestrator) generate(ctx context.Context, job domain.Job, stage domain.Stage, baseline image.Image, temperature float64, retry bool) (image.Image, error) {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.Vision.GenerationTimeout)
	defer cancel()

	resp, err := o.svc.Generate(ctx, &vision.Request{
		Images:      []image.Image{baseline},
		Instruction: o.builder.Build(job.Goal, job.RoomType, stage, retry),
		Sampling:    vision.SamplingParams{Temperature: temperature},
	})
	if err != nil {
		return nil, resterrors.Wrapf(err, "stage %s generation", stage)
	}
	if resp.Image == nil {
		return nil, resterrors.Wrapf(resterrors.ErrGenerationFailed, "stage %s returned text only", stage)
	}
	return resp.Image, nil
}
