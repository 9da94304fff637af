package commands

import (
	"errors"
	"fmt"
	"io"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/doeshing/notegen/internal/app"
	"github.com/doeshing/notegen/internal/domain"
)

// NewDoctorCommand creates the doctor command
func NewDoctorCommand(container *app.Container) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration, storage, credentials and the active provider",
		RunE: func(cmd *cobra.Command, args []string) error {
			if container.DoctorService == nil {
				return errors.New(ErrDoctorServiceUnavailable)
			}
			report, err := container.DoctorService.Run(cmd.Context())
			// the partial report is still useful when a check aborts
			if perr := displayDoctorReport(cmd.OutOrStdout(), report, asJSON); perr != nil {
				return perr
			}
			if err != nil {
				return fmt.Errorf("diagnostics aborted: %w", err)
			}
			if failed := report.Failures(); failed > 0 {
				return fmt.Errorf("%w: %d check(s) failed", ErrReported, failed)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the report as JSON")
	return cmd
}

func displayDoctorReport(out io.Writer, report domain.HealthReport, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	for _, check := range report.Checks {
		fmt.Fprintf(out, "[%s] %s - %s\n", strings.ToUpper(string(check.Status)), check.Name, check.Details)
	}
	fmt.Fprintf(out, "overall: %s\n", report.Overall())
	return nil
}
