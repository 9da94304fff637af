package commands

import (
	"fmt"
	"io"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/doeshing/notegen/internal/version"
)

// NewVersionCommand creates the version command
func NewVersionCommand() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show build information",
		RunE: func(cmd *cobra.Command, args []string) error {
			return displayVersionInformation(cmd.OutOrStdout(), version.Current(), asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print build information as JSON")
	return cmd
}

func displayVersionInformation(out io.Writer, info version.Info, asJSON bool) error {
	if asJSON {
		return json.NewEncoder(out).Encode(info)
	}
	fmt.Fprintf(out, "notegen version %s (%s)\n", info.Version, info.Platform)
	if info.Commit != "" {
		fmt.Fprintf(out, "Commit: %s\n", info.Commit)
	}
	if info.BuildDate != "" {
		fmt.Fprintf(out, "Built: %s\n", info.BuildDate)
	}
	fmt.Fprintf(out, "Go version: %s\n", info.GoVersion)
	return nil
}
