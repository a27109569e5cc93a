package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/tmcallister/crashkit/internal/reporter"
)

var purgeYes bool

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete all pending offline crash reports",
	Run:   runPurge,
}

func init() {
	purgeCmd.Flags().BoolVarP(&purgeYes, "yes", "y", false, "skip the confirmation prompt")
	rootCmd.AddCommand(purgeCmd)
}

func runPurge(cmd *cobra.Command, args []string) {
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

	if !purgeYes {
		fmt.Printf("delete %d pending report(s)? [y/N] ", len(entries))
		var answer string
		_, _ = fmt.Scanln(&answer)
		if answer != "y" && answer != "Y" {
			fmt.Println("aborted")
			return
		}
	}

	deleted := 0
	for _, e := range entries {
		if err := store.Delete(ctx, e.ID); err != nil {
			slog.Warn("Failed to delete report", "report_id", e.ID, "error", err)
			continue
		}
		deleted++
	}
	slog.Info("Purge complete", "deleted", deleted)
}
