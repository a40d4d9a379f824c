package cli

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/canopy-comms/feedvault/internal/core/domain"
	"github.com/canopy-comms/feedvault/internal/core/ports/driving"
)

var (
	feedListKind     string
	feedDeleteReason string
	feedAuditMine    bool
	feedAuditSince   time.Duration
)

var feedCmd = &cobra.Command{
	Use:   "feed",
	Short: "Manage stored feeds",
	Long:  `List, view, delete, restore, and inspect the version history of feeds.`,
}

var feedListCmd = &cobra.Command{
	Use:   "list",
	Short: "List active feeds",
	RunE:  runFeedList,
}

var feedDeletedCmd = &cobra.Command{
	Use:   "deleted",
	Short: "List soft-deleted feeds",
	RunE:  runFeedDeleted,
}

var feedShowCmd = &cobra.Command{
	Use:   "show [feed-id]",
	Short: "Show feed content and structure",
	Args:  cobra.ExactArgs(1),
	RunE:  runFeedShow,
}

var feedContentCmd = &cobra.Command{
	Use:   "content [feed-id]",
	Short: "Print feed content",
	Args:  cobra.ExactArgs(1),
	RunE:  runFeedContent,
}

var feedVersionsCmd = &cobra.Command{
	Use:   "versions [feed-id]",
	Short: "List a feed's version history",
	Args:  cobra.ExactArgs(1),
	RunE:  runFeedVersions,
}

var feedVersionCmd = &cobra.Command{
	Use:   "version [feed-id] [n]",
	Short: "Print a historical version's content",
	Args:  cobra.ExactArgs(2),
	RunE:  runFeedVersion,
}

var feedDeleteCmd = &cobra.Command{
	Use:   "delete [feed-id]",
	Short: "Soft-delete a feed",
	Long: `Marks a feed as deleted and records an audit entry. The feed's
content and version history are retained and the feed can be restored.`,
	Args: cobra.ExactArgs(1),
	RunE: runFeedDelete,
}

var feedRestoreCmd = &cobra.Command{
	Use:   "restore [feed-id]",
	Short: "Restore a soft-deleted feed",
	Args:  cobra.ExactArgs(1),
	RunE:  runFeedRestore,
}

var feedAuditCmd = &cobra.Command{
	Use:   "audit [feed-id]",
	Short: "Show a feed's deletion audit trail",
	Long: `Shows the deletion records for a feed. With --mine, shows the
deletions performed by the current owner instead, optionally limited
to a recent window with --since.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runFeedAudit,
}

func init() {
	feedListCmd.Flags().StringVar(&feedListKind, "kind", "", "filter by source kind")
	feedDeleteCmd.Flags().StringVarP(&feedDeleteReason, "reason", "r", "", "reason for deleting the feed")
	feedAuditCmd.Flags().BoolVar(&feedAuditMine, "mine", false, "show deletions performed by the current owner")
	feedAuditCmd.Flags().DurationVar(&feedAuditSince, "since", 0, "with --mine, only show deletions within this window")

	feedCmd.AddCommand(feedListCmd)
	feedCmd.AddCommand(feedDeletedCmd)
	feedCmd.AddCommand(feedShowCmd)
	feedCmd.AddCommand(feedContentCmd)
	feedCmd.AddCommand(feedVersionsCmd)
	feedCmd.AddCommand(feedVersionCmd)
	feedCmd.AddCommand(feedDeleteCmd)
	feedCmd.AddCommand(feedRestoreCmd)
	feedCmd.AddCommand(feedAuditCmd)
	rootCmd.AddCommand(feedCmd)
}

func runFeedList(cmd *cobra.Command, _ []string) error {
	if feedService == nil {
		return errors.New("feed service not configured")
	}

	feeds, err := feedService.List(context.Background(), ownerID, domain.SourceKind(feedListKind))
	if err != nil {
		return fmt.Errorf("failed to list feeds: %w", err)
	}

	if len(feeds) == 0 {
		cmd.Println("No feeds found.")
		return nil
	}

	printFeedSummaries(cmd, feeds)
	return nil
}

func runFeedDeleted(cmd *cobra.Command, _ []string) error {
	if feedService == nil {
		return errors.New("feed service not configured")
	}

	feeds, err := feedService.ListDeleted(context.Background(), ownerID)
	if err != nil {
		return fmt.Errorf("failed to list deleted feeds: %w", err)
	}

	if len(feeds) == 0 {
		cmd.Println("No deleted feeds.")
		return nil
	}

	for i := range feeds {
		cmd.Printf("  %s\n", titleStyle.Render(feeds[i].Name))
		cmd.Printf("    ID: %s\n", feeds[i].ID)
		if feeds[i].DeletedAt != nil {
			cmd.Printf("    Deleted: %s\n", feeds[i].DeletedAt.Format("2006-01-02 15:04:05"))
		}
		cmd.Println()
	}
	cmd.Printf("Total: %d feeds\n", len(feeds))
	return nil
}

func printFeedSummaries(cmd *cobra.Command, feeds []driving.FeedSummary) {
	for i := range feeds {
		indexed := ""
		if !feeds[i].Indexed {
			indexed = warnStyle.Render(" (not indexed)")
		}
		cmd.Printf("  %s%s\n", titleStyle.Render(feeds[i].Name), indexed)
		cmd.Printf("    ID: %s\n", feeds[i].ID)
		cmd.Printf("    Kind: %s  Version: %d  Size: %d bytes\n",
			feeds[i].SourceKind, feeds[i].Version, feeds[i].SizeBytes)
		if feeds[i].Description != "" {
			cmd.Printf("    %s\n", dimStyle.Render(feeds[i].Description))
		}
		cmd.Println()
	}
	cmd.Printf("Total: %d feeds\n", len(feeds))
}

func runFeedShow(cmd *cobra.Command, args []string) error {
	if feedService == nil {
		return errors.New("feed service not configured")
	}

	content, err := feedService.GetContent(context.Background(), ownerID, args[0])
	if err != nil {
		return fmt.Errorf("failed to get feed: %w", err)
	}

	cmd.Printf("Feed: %s\n\n", args[0])
	cmd.Printf("  Encoding:   %s\n", content.Structure.Encoding)
	cmd.Printf("  Characters: %d\n", content.Structure.CharCount)
	cmd.Printf("  Lines:      %d\n", content.Structure.LineCount)
	if content.Structure.RowCount > 0 {
		cmd.Printf("  Rows:       %d\n", content.Structure.RowCount)
		cmd.Printf("  Columns:    %v\n", content.Structure.Columns)
	}
	if content.Structure.SheetCount > 0 {
		cmd.Printf("  Sheets:     %v\n", content.Structure.SheetNames)
	}

	if len(content.ConceptMap) > 0 {
		cmd.Println("\n  Concepts:")
		keys := make([]string, 0, len(content.ConceptMap))
		for k := range content.ConceptMap {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			cmd.Printf("    %s: %v\n", k, content.ConceptMap[k])
		}
	}

	return nil
}

func runFeedContent(cmd *cobra.Command, args []string) error {
	if feedService == nil {
		return errors.New("feed service not configured")
	}

	content, err := feedService.GetContent(context.Background(), ownerID, args[0])
	if err != nil {
		return fmt.Errorf("failed to get feed content: %w", err)
	}

	cmd.Println(content.ProcessedText)
	return nil
}

func runFeedVersions(cmd *cobra.Command, args []string) error {
	if feedService == nil {
		return errors.New("feed service not configured")
	}

	versions, err := feedService.ListVersions(context.Background(), ownerID, args[0])
	if err != nil {
		return fmt.Errorf("failed to list versions: %w", err)
	}

	if len(versions) == 0 {
		cmd.Println("No historical versions; the feed is at version 1.")
		return nil
	}

	cmd.Printf("Versions for feed %s:\n\n", args[0])
	for i := range versions {
		indexed := ""
		if !versions[i].Indexed {
			indexed = " (not indexed)"
		}
		cmd.Printf("  v%d%s\n", versions[i].Version, indexed)
		cmd.Printf("    By: %s at %s\n",
			versions[i].CreatedBy, versions[i].CreatedAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}

func runFeedVersion(cmd *cobra.Command, args []string) error {
	if feedService == nil {
		return errors.New("feed service not configured")
	}

	n, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("invalid version number %q", args[1])
	}

	v, err := feedService.GetVersion(context.Background(), ownerID, args[0], n)
	if err != nil {
		return fmt.Errorf("failed to get version: %w", err)
	}

	cmd.Printf("Feed %s, version %d (by %s at %s)\n\n",
		v.FeedID, v.Version, v.CreatedBy, v.CreatedAt.Format("2006-01-02 15:04:05"))
	cmd.Println(v.ProcessedText)
	return nil
}

func runFeedDelete(cmd *cobra.Command, args []string) error {
	if feedService == nil {
		return errors.New("feed service not configured")
	}

	if err := feedService.Delete(context.Background(), ownerID, args[0], feedDeleteReason); err != nil {
		return fmt.Errorf("failed to delete feed: %w", err)
	}

	cmd.Printf("Feed %s deleted. Use 'feedvault feed restore %s' to undo.\n", args[0], args[0])
	return nil
}

func runFeedRestore(cmd *cobra.Command, args []string) error {
	if feedService == nil {
		return errors.New("feed service not configured")
	}

	if err := feedService.Restore(context.Background(), ownerID, args[0]); err != nil {
		return fmt.Errorf("failed to restore feed: %w", err)
	}

	cmd.Printf("Feed %s restored.\n", args[0])
	return nil
}

func runFeedAudit(cmd *cobra.Command, args []string) error {
	if feedService == nil {
		return errors.New("feed service not configured")
	}

	var (
		records []domain.DeletionRecord
		err     error
		heading string
	)
	switch {
	case feedAuditMine:
		var from time.Time
		if feedAuditSince > 0 {
			from = time.Now().UTC().Add(-feedAuditSince)
		}
		records, err = feedService.ActorTrail(context.Background(), ownerID, from, time.Time{})
		heading = fmt.Sprintf("Deletions by %s:", ownerID)
	case len(args) == 1:
		records, err = feedService.AuditTrail(context.Background(), ownerID, args[0])
		heading = fmt.Sprintf("Deletion records for feed %s:", args[0])
	default:
		return errors.New("a feed id or --mine is required")
	}
	if err != nil {
		return fmt.Errorf("failed to read audit trail: %w", err)
	}

	if len(records) == 0 {
		cmd.Println("No deletion records.")
		return nil
	}

	cmd.Printf("%s\n\n", heading)
	for i := range records {
		cmd.Printf("  %s\n", records[i].DeletedAt.Format("2006-01-02 15:04:05"))
		cmd.Printf("    Name: %s (%s, %d bytes)\n",
			records[i].FeedName, records[i].SourceKind, records[i].SizeBytes)
		cmd.Printf("    By: %s\n", records[i].DeletedBy)
		if records[i].Reason != "" {
			cmd.Printf("    Reason: %s\n", records[i].Reason)
		}
		cmd.Println()
	}
	return nil
}
