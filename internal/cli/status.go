package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tmcallister/crashkit/internal/reporter"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "List pending offline crash reports",
	Run:   runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	ctx := context.Background()

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
		fmt.Println("spool is empty")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "ID\tCREATED\tKIND\tMESSAGE")
	for _, e := range entries {
		msg := e.Report.Message
		if len(msg) > 60 {
			msg = msg[:60] + "..."
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			e.ID,
			e.CreatedAt.Format("2006-01-02 15:04:05"),
			e.Report.Kind,
			msg,
		)
	}
	_ = w.Flush()
}
