package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/realenhance/restage/internal/config"
	"github.com/realenhance/restage/internal/ctxutil"
	"github.com/realenhance/restage/internal/domain"
	"github.com/realenhance/restage/internal/openings"
	"github.com/realenhance/restage/internal/raster"
	"github.com/realenhance/restage/internal/validator"
	"github.com/realenhance/restage/internal/vision"
)

// validateOptions holds the flag values for the validate command.
type validateOptions struct {
	stage string
	scene string
}

// AddValidateCommand adds the validate command to the root command.
func AddValidateCommand(root *cobra.Command, flags *GlobalFlags) {
	root.AddCommand(newValidateCmd(flags))
}

func newValidateCmd(flags *GlobalFlags) *cobra.Command {
	opts := &validateOptions{}

	cmd := &cobra.Command{
		Use:   "validate <baseline-image> <candidate-image>",
		Short: "Validate one candidate against its baseline",
		Long: `Validate a single generated candidate against its baseline image,
without running generation. Prints the full verdict: pass/fail, the
weighted check score, every failure reason, and the raw metrics.

The stage decides the threshold bands: stage 2 (staging) uses the
zero-tolerance bands and additionally runs the semantic check set,
which needs the vision API key in the environment.

Examples:
  restage validate before.jpg after.jpg --stage 1A
  restage validate before.jpg after.jpg --stage 2 --scene interior
  restage validate before.png after.png --stage declutter --output json`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidatePair(cmd.Context(), flags, opts, args[0], args[1], cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.stage, "stage", "2", "stage to validate as (1A|1B|2)")
	cmd.Flags().StringVar(&opts.scene, "scene", "interior", "scene type (interior|exterior)")

	return cmd
}

func runValidatePair(ctx context.Context, flags *GlobalFlags, opts *validateOptions, baselinePath, candidatePath string, w io.Writer) error {
	if err := ctxutil.Canceled(ctx); err != nil {
		return err
	}
	logger := GetLogger()
	ctx = logger.WithContext(ctx)

	stage, err := domain.ParseStage(opts.stage)
	if err != nil {
		return err
	}
	scene, err := domain.ParseScene(opts.scene)
	if err != nil {
		return err
	}

	cfg, err := config.Load(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to load config, using defaults")
		cfg = config.DefaultConfig()
	}

	baseline, err := raster.Open(baselinePath)
	if err != nil {
		return fmt.Errorf("failed to open baseline image: %w", err)
	}
	candidate, err := raster.Open(candidatePath)
	if err != nil {
		return fmt.Errorf("failed to open candidate image: %w", err)
	}

	client, err := vision.NewClient(cfg.Vision)
	if err != nil {
		return err
	}
	detector := openings.NewVisionDetector(client, cfg.Vision.CheckTimeout)
	v := validator.New(cfg, client, detector)

	verdict, err := v.Validate(ctx, baseline, candidate, stage, scene)
	if err != nil {
		return err
	}
	return writeVerdict(w, flags.Output, stage, verdict)
}

// writeVerdict renders a validation verdict in the requested output format.
func writeVerdict(w io.Writer, format string, stage domain.Stage, verdict domain.ValidationVerdict) error {
	if format == OutputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(verdict)
	}

	status := "PASS"
	if !verdict.OK {
		status = "FAIL"
	}
	fmt.Fprintf(w, "stage %s: %s (score %.3f)\n", stage, status, verdict.Score)
	for _, reason := range verdict.Reasons {
		fmt.Fprintf(w, "  - %s\n", reason)
	}
	names := make([]string, 0, len(verdict.Metrics))
	for name := range verdict.Metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %s = %.4f\n", name, verdict.Metrics[name])
	}
	return nil
}
