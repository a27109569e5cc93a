package cli

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tmcallister/crashkit/internal/health"
	"github.com/tmcallister/crashkit/internal/reporter"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the forwarder daemon",
	Long: `serve activates the reporter as a standalone forwarder: it drains the
offline spool on the configured interval and exposes health and metrics
endpoints until interrupted.`,
	Run: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) {
	cfg := loadConfig()

	rep, err := reporter.New(*cfg)
	if err != nil {
		slog.Error("Failed to build reporter", "error", err)
		os.Exit(1)
	}

	if err := rep.Activate(); err != nil {
		slog.Error("Failed to activate reporter", "error", err)
		os.Exit(1)
	}

	var srv *health.Server
	if cfg.Server.Port > 0 {
		srv = health.NewServer(rep.Store(), cfg.General.OfflineReportLimit, rep.Active, cfg.Server.Port)
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("Health server stopped", "error", err)
			}
		}()
	}
	slog.Info("Forwarder started",
		"interval", cfg.General.CheckInterval,
		"port", cfg.Server.Port,
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	slog.Info("Received signal, shutting down...", "signal", sig)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if srv != nil {
		if err := srv.Stop(shutdownCtx); err != nil {
			slog.Error("Error stopping health server", "error", err)
		}
	}
	rep.Deactivate()
	slog.Info("Forwarder stopped gracefully")
}
