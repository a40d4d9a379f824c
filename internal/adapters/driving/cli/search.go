package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/canopy-comms/feedvault/internal/core/domain"
)

var (
	searchLimit int
	searchKind  string
	searchJSON  bool
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search feeds by semantic similarity",
	Long: `Embeds the query and ranks the owner's feeds by cosine similarity.
Soft-deleted feeds and feeds stored without a semantic index are
never returned.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 10, "maximum number of results")
	searchCmd.Flags().StringVar(&searchKind, "kind", "", "restrict results to one source kind")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	if searchService == nil {
		return errors.New("search service not configured")
	}

	opts := domain.SearchOptions{
		Limit:      searchLimit,
		SourceKind: domain.SourceKind(searchKind),
	}

	results, err := searchService.SearchSimilar(context.Background(), ownerID, args[0], opts)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		return outputSearchJSON(cmd, results)
	}

	return outputSearchTable(cmd, results)
}

func outputSearchJSON(cmd *cobra.Command, results []domain.SearchResult) error {
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputSearchTable(cmd *cobra.Command, results []domain.SearchResult) error {
	if len(results) == 0 {
		cmd.Println("No results found.")
		return nil
	}

	cmd.Println("Results:")
	cmd.Println()
	for i := range results {
		cmd.Printf("  [%d] %s %s\n", i+1,
			titleStyle.Render(results[i].Name),
			scoreStyle.Render(fmt.Sprintf("(%.4f)", results[i].Score)))
		cmd.Printf("      %s\n", dimStyle.Render(fmt.Sprintf("%s  %s", results[i].FeedID, results[i].SourceKind)))
		cmd.Println()
	}

	return nil
}
