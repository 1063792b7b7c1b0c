package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/realenhance/restage/internal/config"
	"github.com/realenhance/restage/internal/ctxutil"
	"github.com/realenhance/restage/internal/domain"
	"github.com/realenhance/restage/internal/openings"
	"github.com/realenhance/restage/internal/pipeline"
	"github.com/realenhance/restage/internal/prompts"
	"github.com/realenhance/restage/internal/raster"
	"github.com/realenhance/restage/internal/validator"
	"github.com/realenhance/restage/internal/vision"
)

// runOptions holds the flag values for the run command.
type runOptions struct {
	goal          string
	roomType      string
	scene         string
	allowFallback bool
	artifactDir   string
}

// AddRunCommand adds the run command to the root command.
func AddRunCommand(root *cobra.Command, flags *GlobalFlags) {
	root.AddCommand(newRunCmd(flags))
}

func newRunCmd(flags *GlobalFlags) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run <input-image>",
		Short: "Run the full enhancement ladder on a photograph",
		Long: `Run a photograph through the three-stage enhancement ladder:
quality enhancement (1A), decluttering (1B), and virtual staging (2).

Every generated candidate is validated against its baseline before the
next stage starts. A failed stage is retried exactly once with stricter
sampling; with --allow-fallback the job continues on the previous
stage's output instead of failing.

Examples:
  restage run living-room.jpg --goal "modern scandinavian staging"
  restage run exterior.png --scene exterior --room-type none
  restage run photo.jpg --allow-fallback --output json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJob(cmd.Context(), flags, opts, args[0], cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.goal, "goal", "tasteful contemporary staging", "staging goal passed to the vision model")
	cmd.Flags().StringVar(&opts.roomType, "room-type", "living room", "room type of the photograph")
	cmd.Flags().StringVar(&opts.scene, "scene", "interior", "scene type (interior|exterior)")
	cmd.Flags().BoolVar(&opts.allowFallback, "allow-fallback", false, "continue on the previous stage's output when a stage fails")
	cmd.Flags().StringVar(&opts.artifactDir, "artifact-dir", "", "directory for stage artifacts (default ~/.restage/artifacts)")

	return cmd
}

func runJob(ctx context.Context, flags *GlobalFlags, opts *runOptions, inputPath string, w io.Writer) error {
	if err := ctxutil.Canceled(ctx); err != nil {
		return err
	}
	logger := GetLogger()
	ctx = logger.WithContext(ctx)

	scene, err := domain.ParseScene(opts.scene)
	if err != nil {
		return err
	}

	cfg, err := config.Load(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to load config, using defaults")
		cfg = config.DefaultConfig()
	}
	if opts.allowFallback {
		cfg.Pipeline.AllowStageFallback = true
	}
	if opts.artifactDir != "" {
		cfg.Pipeline.ArtifactDir = opts.artifactDir
	}

	input, err := raster.Open(inputPath)
	if err != nil {
		return fmt.Errorf("failed to open input image: %w", err)
	}

	orch, err := buildOrchestrator(cfg)
	if err != nil {
		return err
	}

	job := domain.Job{
		ID:        uuid.NewString(),
		Goal:      opts.goal,
		RoomType:  opts.roomType,
		Scene:     scene,
		InputRef:  inputPath,
		CreatedAt: time.Now().UTC(),
	}
	logger.Info().
		Str("component", "cli").
		Str("job_id", job.ID).
		Str("input", inputPath).
		Str("scene", string(scene)).
		Msg("starting job")

	result, runErr := orch.Run(ctx, job, input)
	if result != nil {
		if werr := writeRunResult(w, flags.Output, result); werr != nil {
			return werr
		}
	}
	return runErr
}

// buildOrchestrator wires the production dependency graph from config:
// vision client, window detector, validator, artifact store, orchestrator.
func buildOrchestrator(cfg *config.Config) (*pipeline.Orchestrator, error) {
	client, err := vision.NewClient(cfg.Vision)
	if err != nil {
		return nil, err
	}
	detector := openings.NewVisionDetector(client, cfg.Vision.CheckTimeout)
	v := validator.New(cfg, client, detector)
	store, err := pipeline.NewStore(cfg.Pipeline.ArtifactDir)
	if err != nil {
		return nil, err
	}
	return pipeline.New(cfg, client, v, prompts.NewBuilder(), store), nil
}

// writeRunResult renders a job result in the requested output format.
func writeRunResult(w io.Writer, format string, result *pipeline.Result) error {
	if format == OutputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	fmt.Fprintf(w, "Job %s\n", result.JobID)
	for _, outcome := range result.Outcomes {
		status := "accepted"
		switch {
		case outcome.FellBack:
			status = "failed (fell back)"
		case !outcome.Verdict.OK:
			status = "failed"
		}
		fmt.Fprintf(w, "  stage %-2s  %-18s score=%.3f attempts=%d\n",
			outcome.Stage, status, outcome.Verdict.Score, outcome.Attempts)
		for _, reason := range outcome.Verdict.Reasons {
			fmt.Fprintf(w, "    - %s\n", reason)
		}
	}
	if result.Final.ImageRef != "" {
		fmt.Fprintf(w, "Final: %s\n", result.Final.ImageRef)
	}
	return nil
}
