package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Re-embed feeds stored without an embedding",
	Long: `Finds feeds that were stored while the embedding provider was
unavailable and computes their embeddings in a single batch. Content
and version history are not touched.`,
	Args: cobra.NoArgs,
	RunE: runReindex,
}

func init() {
	rootCmd.AddCommand(reindexCmd)
}

func runReindex(cmd *cobra.Command, _ []string) error {
	if ingestionService == nil {
		return errors.New("ingestion service not configured")
	}

	result, err := ingestionService.Reindex(context.Background(), ownerID)
	if err != nil {
		return fmt.Errorf("reindex failed: %w", err)
	}

	if result.Scanned == 0 {
		cmd.Println("All feeds already carry an embedding.")
		return nil
	}

	cmd.Printf("Reindexed %d of %d feeds", result.Indexed, result.Scanned)
	if result.Skipped > 0 {
		cmd.Printf(" (%d skipped, ingestion in progress)", result.Skipped)
	}
	cmd.Println()
	return nil
}
