package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/canopy-comms/feedvault/internal/core/domain"
	"github.com/canopy-comms/feedvault/internal/core/ports/driving"
)

var (
	ingestName        string
	ingestDescription string
	ingestKind        string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Ingest a file or text into the vault",
	Long: `Ingests content into the versioned store. Re-ingesting under the
same name compares the new content's embedding against the stored
version and only commits a new version when the content meaningfully
changed.`,
}

var ingestFileCmd = &cobra.Command{
	Use:   "file [path]",
	Short: "Ingest a file",
	Args:  cobra.ExactArgs(1),
	RunE:  runIngestFile,
}

var ingestTextCmd = &cobra.Command{
	Use:   "text [name]",
	Short: "Ingest text read from stdin",
	Args:  cobra.ExactArgs(1),
	RunE:  runIngestText,
}

func init() {
	ingestCmd.PersistentFlags().StringVar(&ingestDescription, "description", "", "feed description")
	ingestFileCmd.Flags().StringVar(&ingestName, "name", "", "feed name (defaults to the file's base name)")
	ingestFileCmd.Flags().StringVar(&ingestKind, "kind", "", "override source kind detection (plaintext, csv, spreadsheet)")

	ingestCmd.AddCommand(ingestFileCmd)
	ingestCmd.AddCommand(ingestTextCmd)
	rootCmd.AddCommand(ingestCmd)
}

func runIngestFile(cmd *cobra.Command, args []string) error {
	if ingestionService == nil {
		return errors.New("ingestion service not configured")
	}

	path := args[0]
	payload, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	name := ingestName
	if name == "" {
		name = filepath.Base(path)
	}

	sub := driving.FileSubmission{
		OwnerID:     ownerID,
		Name:        name,
		Description: ingestDescription,
		Kind:        domain.SourceKind(ingestKind),
		Payload:     payload,
	}

	result, err := ingestionService.SubmitFile(context.Background(), sub)
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}

	printIngestResult(cmd, result)
	return nil
}

func runIngestText(cmd *cobra.Command, args []string) error {
	if ingestionService == nil {
		return errors.New("ingestion service not configured")
	}

	content, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return fmt.Errorf("failed to read stdin: %w", err)
	}

	sub := driving.TextSubmission{
		OwnerID:     ownerID,
		Name:        args[0],
		Description: ingestDescription,
		Content:     string(content),
	}

	result, err := ingestionService.SubmitText(context.Background(), sub)
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}

	printIngestResult(cmd, result)
	return nil
}

func printIngestResult(cmd *cobra.Command, result *driving.IngestResult) {
	switch result.Outcome {
	case driving.OutcomeCreated:
		cmd.Printf("Created %s (version %d)\n", result.Name, result.Version)
	case driving.OutcomeUpdated:
		cmd.Printf("Updated %s to version %d\n", result.Name, result.Version)
	case driving.OutcomeUnchanged:
		cmd.Printf("Unchanged: %s stays at version %d\n", result.Name, result.Version)
	}

	cmd.Printf("  Feed ID: %s\n", result.FeedID)
	if result.SimilarityKnown {
		cmd.Printf("  Similarity: %.4f\n", result.Similarity)
	}
	if result.Degraded {
		cmd.Println(warnStyle.Render("  Stored without a semantic index; search will not find this feed until it is reprocessed."))
	}
}
