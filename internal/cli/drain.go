package cli

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/tmcallister/crashkit/internal/core/config"
	"github.com/tmcallister/crashkit/internal/core/domain"
	"github.com/tmcallister/crashkit/internal/delivery"
	"github.com/tmcallister/crashkit/internal/reporter"
)

var drainBatch bool

var drainCmd = &cobra.Command{
	Use:   "drain",
	Short: "Attempt delivery of all pending offline reports now",
	Run:   runDrain,
}

func init() {
	drainCmd.Flags().BoolVar(&drainBatch, "batch", false,
		"upload all reports in one collector request instead of one by one")
	rootCmd.AddCommand(drainCmd)
}

func runDrain(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	ctx := context.Background()

	if drainBatch {
		runBatchDrain(ctx, cfg)
		return
	}

	rep, err := reporter.New(*cfg)
	if err != nil {
		slog.Error("Failed to build reporter", "error", err)
		os.Exit(1)
	}
	rep.DrainNow(ctx)
}

// runBatchDrain uploads every pending report in a single collector request.
// Per-report FIFO ordering is preserved inside the batch; individual sends
// remain the scheduler's job.
func runBatchDrain(ctx context.Context, cfg *config.AppConfig) {
	if cfg.Collector == nil {
		slog.Error("Batch drain requires a collector section in the config")
		os.Exit(1)
	}

	store, err := reporter.NewStore(*cfg)
	if err != nil {
		slog.Error("Failed to open spool", "error", err)
		os.Exit(1)
	}
	entries, err := store.Pending(ctx)
	if err != nil {
		slog.Error("Failed to list pending reports", "error", err)
		os.Exit(1)
	}
	if len(entries) == 0 {
		slog.Info("Spool is empty")
		return
	}

	tr, err := delivery.NewCollectorTransport(*cfg.Collector)
	if err != nil {
		slog.Error("Failed to build collector transport", "error", err)
		os.Exit(1)
	}

	reports := make([]*domain.Report, 0, len(entries))
	for _, e := range entries {
		reports = append(reports, e.Report)
	}

	ok, detail := tr.SendBatch(ctx, reports)
	if !ok {
		slog.Error("Batch upload failed", "detail", detail)
		os.Exit(1)
	}
	for _, e := range entries {
		if err := store.Delete(ctx, e.ID); err != nil {
			slog.Warn("Failed to delete delivered report", "report_id", e.ID, "error", err)
		}
	}
	slog.Info("Batch upload complete", "reports", len(reports))
}
