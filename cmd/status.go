package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/archivist/internal/checkpoint"
	"github.com/sells-group/archivist/internal/journal"
	"github.com/sells-group/archivist/internal/model"
	"github.com/sells-group/archivist/internal/pool"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show pipeline progress",
	Long:  "Summarize extraction state from the checkpoint and pending queue, and resolution state from the decided pool.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		state, err := checkpoint.NewManager(checkpointPath()).Load()
		if err != nil {
			return eris.Wrap(err, "status: load checkpoint")
		}

		pendingTotal := 0
		if err := journal.ScanPending(pendingPath(), func(model.PendingItem) bool {
			pendingTotal++
			return true
		}); err != nil {
			return eris.Wrap(err, "status: scan pending queue")
		}

		fmt.Println("Extraction:")
		if state.SavedAt.IsZero() {
			fmt.Println("  no checkpoint yet")
		} else {
			fmt.Printf("  last checkpoint:     %s\n", state.SavedAt.Format("2006-01-02 15:04:05 MST"))
		}
		fmt.Printf("  documents processed: %d\n", len(state.Processed))
		fmt.Printf("  flagged for audit:   %d\n", len(state.AuditFlagged))
		fmt.Printf("  registry entities:   %d\n", len(state.Registry))
		fmt.Printf("  pending exported:    %d\n", pendingTotal)

		store, err := pool.New(ctx, cfg.Pool.Driver, cfg.Pool.DatabaseURL)
		if err != nil {
			return eris.Wrap(err, "status: open pool store")
		}
		defer store.Close()

		if err := store.Migrate(ctx); err != nil {
			return eris.Wrap(err, "status: migrate")
		}
		decided, decisions, review, err := store.Counts(ctx)
		if err != nil {
			return eris.Wrap(err, "status: pool counts")
		}

		fmt.Println("Resolution:")
		fmt.Printf("  decided entities:    %d\n", decided)
		fmt.Printf("  decision records:    %d\n", decisions)
		fmt.Printf("  awaiting review:     %d\n", review)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
