package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/stormline/provision/internal/provisioning"
)

func newRunCmd() *cobra.Command {
	var (
		filePath string
		apply    bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Provision users from a CSV file",
		Long: `Parses and validates the CSV, then reconciles every valid row against the
identity store and the profile database. Without --apply nothing is written;
the report shows what an apply run would do.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(filePath)
			if err != nil {
				return fmt.Errorf("reading %s: %w", filePath, err)
			}

			ctx := cmd.Context()
			_, be, err := connect(ctx)
			if err != nil {
				return err
			}
			defer be.Close()

			parsed := provisioning.ParseCSV(string(raw))
			if len(parsed.Rows) == 0 && len(parsed.Errors) > 0 {
				for _, msg := range parsed.Errors {
					fmt.Fprintln(cmd.ErrOrStderr(), msg)
				}
				return fmt.Errorf("CSV parsing failed")
			}

			validation := provisioning.ValidateRows(parsed.Rows)

			// Per-line parse errors become warnings so they surface in the
			// report alongside validation notices.
			warnings := append(validation.Warnings, parsed.Errors...)
			result, err := provisioning.Run(ctx, validation.ValidRows, be.newAdapter(), provisioning.RunOptions{
				Apply:    apply,
				Warnings: warnings,
			})
			if err != nil {
				return fmt.Errorf("provisioning failed: %w", err)
			}

			report := provisioning.BuildReport(result, validation.RowIssues, len(parsed.Rows))
			fmt.Fprint(cmd.OutOrStdout(), report.Render())

			if report.FailedRows > 0 {
				return fmt.Errorf("%d row(s) failed", report.FailedRows)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&filePath, "file", "", "path to the provisioning CSV (required)")
	cmd.Flags().BoolVar(&apply, "apply", false, "execute writes instead of previewing")
	cmd.MarkFlagRequired("file")

	return cmd
}
