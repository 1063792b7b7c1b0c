package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"runtime"

	"github.com/spf13/cobra"
)

// AddVersionCommand adds the version command to the root command.
func AddVersionCommand(root *cobra.Command, flags *GlobalFlags, info BuildInfo) {
	root.AddCommand(newVersionCmd(flags, info))
}

func newVersionCmd(flags *GlobalFlags, info BuildInfo) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return writeVersion(cmd.OutOrStdout(), flags.Output, info)
		},
	}
}

func writeVersion(w io.Writer, format string, info BuildInfo) error {
	if info.Version == "" {
		info.Version = "dev"
	}
	if format == OutputJSON {
		payload := struct {
			Version   string `json:"version"`
			Commit    string `json:"commit"`
			Date      string `json:"date"`
			GoVersion string `json:"go_version"`
		}{
			Version:   info.Version,
			Commit:    info.Commit,
			Date:      info.Date,
			GoVersion: runtime.Version(),
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(payload)
	}

	_, err := fmt.Fprintf(w, "restage %s\n", formatVersion(info))
	return err
}
