package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hearth-panel/hearth-ctl/internal/api"
	"github.com/hearth-panel/hearth-ctl/internal/app"
	"github.com/hearth-panel/hearth-ctl/internal/logging"
	"github.com/hearth-panel/hearth-ctl/internal/metrics"
	"github.com/hearth-panel/hearth-ctl/internal/tracing"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the application HTTP API",
	Long: `Serve the application API, /health, and Prometheus /metrics.

The listen address and bearer token come from the [api] section of
config.toml or HEARTH_API_LISTEN and HEARTH_API_TOKEN. With tracing enabled,
provisioning spans are written to stdout.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var serveListen string

func init() {
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "Listen address (overrides api.listen)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	a := app.Default
	cfg := a.Config.API
	if serveListen != "" {
		cfg.Listen = serveListen
	}
	if cfg.Token == "" {
		logWarning("api.token is not set; the API accepts unauthenticated requests")
	}

	metrics.Register()

	if a.Config.Tracing.Enabled {
		shutdown, err := tracing.Setup(os.Stdout)
		if err != nil {
			return err
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				logging.Warn("failed to flush traces", "error", err)
			}
		}()
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	f := api.New(a, cfg)

	errCh := make(chan error, 1)
	go func() {
		logging.Info("api listening", "addr", cfg.Listen)
		errCh <- f.Listen(cfg.Listen)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("api server failed: %w", err)
	case <-ctx.Done():
	}

	logInfo("Shutting down...")
	if err := f.ShutdownWithTimeout(shutdownTimeout); err != nil {
		return fmt.Errorf("api shutdown failed: %w", err)
	}
	return nil
}
