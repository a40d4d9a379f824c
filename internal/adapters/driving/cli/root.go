// Package cli implements the feedvault command line interface using
// cobra. Commands talk to the core through the driving ports; wiring
// happens in main via SetServices.
package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/canopy-comms/feedvault/internal/core/ports/driven"
	"github.com/canopy-comms/feedvault/internal/core/ports/driving"
	"github.com/canopy-comms/feedvault/internal/logger"
)

// version is set at build time via ldflags.
var version = "dev"

// Services wired at startup via SetServices.
var (
	ingestionService driving.IngestionService
	feedService      driving.FeedService
	searchService    driving.SearchService
	configStore      driven.ConfigStore
)

var (
	verbose bool
	ownerID string
)

var rootCmd = &cobra.Command{
	Use:   "feedvault",
	Short: "Ingest, version, and semantically search data feeds",
	Long: `feedvault ingests text, tabular, and spreadsheet uploads into a
versioned local store. Re-ingesting a feed compares embeddings and
only commits a new version when the content meaningfully changed.
Deletions are soft and audited; search ranks feeds by semantic
similarity to a query.`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVar(&ownerID, "owner", defaultOwner(), "acting owner identity")
}

// defaultOwner resolves the owner identity from the environment.
func defaultOwner() string {
	if v := os.Getenv("FEEDVAULT_OWNER"); v != "" {
		return v
	}
	return "local"
}

// SetServices injects the service implementations used by commands.
func SetServices(
	ingestion driving.IngestionService,
	feeds driving.FeedService,
	search driving.SearchService,
	config driven.ConfigStore,
) {
	ingestionService = ingestion
	feedService = feeds
	searchService = search
	configStore = config
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
