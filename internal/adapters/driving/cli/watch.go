package cli

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/canopy-comms/feedvault/internal/watcher"
)

var watchCmd = &cobra.Command{
	Use:   "watch [dir]",
	Short: "Watch a directory and ingest dropped files",
	Long: `Watches a directory and ingests every supported file created or
modified in it. Files are debounced so a burst of writes produces a
single ingestion. Stop with Ctrl-C.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	if ingestionService == nil {
		return errors.New("ingestion service not configured")
	}

	w, err := watcher.New(ingestionService, watcher.Config{
		Dir:     args[0],
		OwnerID: ownerID,
	})
	if err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	results := make(chan watcher.Result)
	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx, results)
	}()

	cmd.Printf("Watching %s (owner %s). Press Ctrl-C to stop.\n", args[0], ownerID)

	for res := range results {
		if res.Err != nil {
			cmd.Printf("  %s: %v\n", res.Path, res.Err)
			continue
		}
		printIngestResult(cmd, res.Ingest)
	}

	if err := <-done; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
