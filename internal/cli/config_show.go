package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/realenhance/restage/internal/config"
	"github.com/realenhance/restage/internal/ctxutil"
)

// AddConfigCommand adds the config command group to the root command.
func AddConfigCommand(root *cobra.Command, flags *GlobalFlags) {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect restage configuration",
	}
	configCmd.AddCommand(newConfigShowCmd(flags))
	root.AddCommand(configCmd)
}

func newConfigShowCmd(flags *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		Long: `Show the effective configuration after merging defaults, the global
config file (~/.restage/config.yaml), the project config file
(.restage/config.yaml), and RESTAGE_* environment variables.

The vision API key itself is never part of the configuration; only the
name of the environment variable that holds it is shown.

Examples:
  restage config show
  restage config show --output json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigShow(cmd.Context(), flags, cmd.OutOrStdout())
		},
	}
}

func runConfigShow(ctx context.Context, flags *GlobalFlags, w io.Writer) error {
	if err := ctxutil.Canceled(ctx); err != nil {
		return err
	}
	logger := GetLogger()

	cfg, err := config.Load(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to load config, using defaults")
		cfg = config.DefaultConfig()
	}

	if flags.Output == OutputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(cfg)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	_, err = w.Write(data)
	return err
}
