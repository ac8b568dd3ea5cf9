// Package cli defines the provision command tree. Commands wire config,
// logging, the Postgres pool and the identity client together; the actual
// reconciliation logic lives in internal/provisioning.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stormline/provision/internal/logging"
)

// version is set at build time via -ldflags "-X ...cli.version=v1.2.3".
var version = "dev"

// NewRootCmd builds the provision command tree.
func NewRootCmd() *cobra.Command {
	var (
		logLevel  string
		logFormat string
	)

	root := &cobra.Command{
		Use:   "provision",
		Short: "Provision identities and profiles from a CSV",
		Long: `provision reconciles a CSV of users against the identity store and the
profile database. Runs are dry-run by default; pass --apply to commit.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.Setup(logLevel, logFormat)
		},
	}

	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	root.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format: text or json")

	root.AddCommand(newRunCmd())
	root.AddCommand(newServeCmd())
	root.AddCommand(newContractorCmd())
	root.AddCommand(newVersionCmd())

	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the provision version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "provision %s\n", version)
		},
	}
}
