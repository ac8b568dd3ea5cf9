package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/stormline/provision/internal/web"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the CSV provisioning endpoint over HTTP",
		Long: `Starts an HTTP server exposing POST /api/provision. Uploads are dry-run
only unless PROVISION_ALLOW_HTTP_APPLY is set.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, be, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer be.Close()

			slog.Info("configuration loaded", "config", cfg.String())

			server := web.NewServer(cfg, be.newAdapter)

			errCh := make(chan error, 1)
			go func() {
				if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
			}()

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

			select {
			case err := <-errCh:
				return fmt.Errorf("server failed: %w", err)
			case sig := <-stop:
				slog.Info("shutting down", "signal", sig.String())
			}

			ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			if err := server.Shutdown(ctx); err != nil {
				return fmt.Errorf("shutdown failed: %w", err)
			}

			slog.Info("server stopped")
			return nil
		},
	}
}
