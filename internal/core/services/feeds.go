package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/canopy-comms/feedvault/internal/concepts"
	"github.com/canopy-comms/feedvault/internal/core/domain"
	"github.com/canopy-comms/feedvault/internal/core/ports/driven"
	"github.com/canopy-comms/feedvault/internal/core/ports/driving"
	"github.com/canopy-comms/feedvault/internal/logger"
)

// Ensure FeedService implements the interface.
var _ driving.FeedService = (*FeedService)(nil)

// FeedService manages feed lifecycle: listing, content access,
// soft-deletion with audit, restoration, and version history. Shares
// the per-feed locks with the ingestion pipeline so a delete cannot
// interleave with a concurrent re-ingestion of the same identity.
type FeedService struct {
	feedStore  driven.FeedStore
	auditStore driven.AuditStore
	conceptEx  *concepts.Extractor
	vectors    driven.VectorIndex
	locks      *FeedLocks
}

// NewFeedService creates a new feed lifecycle service. The vector
// index is optional.
func NewFeedService(
	feedStore driven.FeedStore,
	auditStore driven.AuditStore,
	conceptEx *concepts.Extractor,
	vectors driven.VectorIndex,
	locks *FeedLocks,
) *FeedService {
	return &FeedService{
		feedStore:  feedStore,
		auditStore: auditStore,
		conceptEx:  conceptEx,
		vectors:    vectors,
		locks:      locks,
	}
}

// List returns active feeds for an owner, newest first.
func (s *FeedService) List(ctx context.Context, ownerID string, kind domain.SourceKind) ([]driving.FeedSummary, error) {
	if ownerID == "" {
		return nil, fmt.Errorf("%w: owner required", domain.ErrInvalidInput)
	}
	if kind != "" && !kind.Valid() {
		return nil, fmt.Errorf("%w: unknown source kind %q", domain.ErrInvalidInput, kind)
	}

	feeds, err := s.feedStore.ListFeeds(ctx, ownerID, driven.FeedFilter{SourceKind: kind})
	if err != nil {
		return nil, fmt.Errorf("listing feeds: %w", err)
	}
	return summarise(feeds), nil
}

// ListDeleted returns soft-deleted feeds for an owner.
func (s *FeedService) ListDeleted(ctx context.Context, ownerID string) ([]driving.FeedSummary, error) {
	if ownerID == "" {
		return nil, fmt.Errorf("%w: owner required", domain.ErrInvalidInput)
	}

	feeds, err := s.feedStore.ListDeleted(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("listing deleted feeds: %w", err)
	}
	return summarise(feeds), nil
}

// GetContent returns the full content view of an active feed.
func (s *FeedService) GetContent(ctx context.Context, ownerID, feedID string) (*driving.FeedContent, error) {
	feed, err := s.ownedFeed(ctx, ownerID, feedID)
	if err != nil {
		return nil, err
	}
	if feed.Deleted {
		return nil, domain.ErrNotFound
	}

	return &driving.FeedContent{
		ProcessedText: feed.ProcessedText,
		OriginalText:  feed.OriginalText,
		Structure:     feed.Structure,
		ConceptMap:    feed.ConceptMap,
	}, nil
}

// Delete soft-deletes a feed. The state change and the audit record
// commit as one unit; a failed audit append aborts the deletion.
func (s *FeedService) Delete(ctx context.Context, ownerID, feedID, reason string) error {
	feed, err := s.ownedFeed(ctx, ownerID, feedID)
	if err != nil {
		return err
	}

	key := identityKey(feed.OwnerID, feed.Name)
	if !s.locks.TryLock(key) {
		return domain.ErrConflict
	}
	defer s.locks.Unlock(key)

	// Re-read under the lock: the feed may have been deleted or
	// re-versioned between the ownership check and lock acquisition.
	feed, err = s.feedStore.GetFeed(ctx, feedID)
	if err != nil {
		return fmt.Errorf("loading feed: %w", err)
	}
	if feed.Deleted {
		return domain.ErrAlreadyDeleted
	}

	rec := domain.DeletionRecord{
		ID:         uuid.New().String(),
		FeedID:     feed.ID,
		FeedName:   feed.Name,
		SourceKind: feed.SourceKind,
		SizeBytes:  feed.SizeBytes,
		ConceptMap: feed.ConceptMap,
		DeletedBy:  ownerID,
		Reason:     reason,
		DeletedAt:  time.Now().UTC(),
	}

	if err := s.feedStore.SoftDelete(ctx, feed.ID, rec); err != nil {
		return fmt.Errorf("deleting feed: %w", err)
	}

	s.dropFromIndex(ctx, feed.ID)
	logger.Info("Soft-deleted feed %s (%s) by %s", feed.Name, feed.ID, ownerID)
	return nil
}

// Restore reverses a soft-delete. The concept map is rebuilt by
// re-extracting from the stored processed text rather than restored
// from the deletion record, so a restore after an extraction rule
// change reflects the current rules.
func (s *FeedService) Restore(ctx context.Context, ownerID, feedID string) error {
	feed, err := s.ownedFeed(ctx, ownerID, feedID)
	if err != nil {
		return err
	}

	key := identityKey(feed.OwnerID, feed.Name)
	if !s.locks.TryLock(key) {
		return domain.ErrConflict
	}
	defer s.locks.Unlock(key)

	feed, err = s.feedStore.GetFeed(ctx, feedID)
	if err != nil {
		return fmt.Errorf("loading feed: %w", err)
	}
	if !feed.Deleted {
		return domain.ErrNotDeleted
	}

	entries, conceptMap := s.conceptEx.Extract(feed.ID, feed.ProcessedText)

	if err := s.feedStore.Restore(ctx, feed.ID, conceptMap, entries); err != nil {
		return fmt.Errorf("restoring feed: %w", err)
	}

	if feed.Embedding != nil && s.vectors != nil {
		if err := s.vectors.Upsert(ctx, feed.ID, feed.Embedding); err != nil {
			logger.Warn("Vector index upsert failed for %s: %v", feed.ID, err)
		}
	}
	logger.Info("Restored feed %s (%s) by %s", feed.Name, feed.ID, ownerID)
	return nil
}

// ListVersions returns the feed's historical snapshots, oldest first.
func (s *FeedService) ListVersions(ctx context.Context, ownerID, feedID string) ([]driving.VersionSummary, error) {
	if _, err := s.ownedFeed(ctx, ownerID, feedID); err != nil {
		return nil, err
	}

	versions, err := s.feedStore.ListVersions(ctx, feedID)
	if err != nil {
		return nil, fmt.Errorf("listing versions: %w", err)
	}

	summaries := make([]driving.VersionSummary, 0, len(versions))
	for _, v := range versions {
		summaries = append(summaries, driving.VersionSummary{
			Version:   v.Version,
			Indexed:   v.Embedding != nil,
			CreatedBy: v.CreatedBy,
			CreatedAt: v.CreatedAt,
		})
	}
	return summaries, nil
}

// GetVersion returns one historical snapshot in full.
func (s *FeedService) GetVersion(ctx context.Context, ownerID, feedID string, version int) (*domain.FeedVersion, error) {
	if _, err := s.ownedFeed(ctx, ownerID, feedID); err != nil {
		return nil, err
	}
	if version < 1 {
		return nil, fmt.Errorf("%w: version must be positive", domain.ErrInvalidInput)
	}

	v, err := s.feedStore.GetVersion(ctx, feedID, version)
	if err != nil {
		return nil, fmt.Errorf("loading version %d: %w", version, err)
	}
	return v, nil
}

// AuditTrail returns the deletion records for a feed, newest first.
// The feed must belong to the caller; deleted feeds still resolve, so
// an owner can read the trail of a feed they deleted.
func (s *FeedService) AuditTrail(ctx context.Context, ownerID, feedID string) ([]domain.DeletionRecord, error) {
	if _, err := s.ownedFeed(ctx, ownerID, feedID); err != nil {
		return nil, err
	}

	records, err := s.auditStore.ListForFeed(ctx, feedID)
	if err != nil {
		return nil, fmt.Errorf("listing audit records: %w", err)
	}
	return records, nil
}

// ActorTrail returns the deletion records the owner wrote within
// [from, to], newest first. Owners only ever see their own records.
func (s *FeedService) ActorTrail(ctx context.Context, ownerID string, from, to time.Time) ([]domain.DeletionRecord, error) {
	if ownerID == "" {
		return nil, fmt.Errorf("%w: owner required", domain.ErrInvalidInput)
	}

	records, err := s.auditStore.ListForActor(ctx, ownerID, from, to)
	if err != nil {
		return nil, fmt.Errorf("listing audit records: %w", err)
	}
	return records, nil
}

// ownedFeed loads a feed and verifies ownership. A feed owned by
// someone else is reported as not found, never as forbidden.
func (s *FeedService) ownedFeed(ctx context.Context, ownerID, feedID string) (*domain.Feed, error) {
	if ownerID == "" || feedID == "" {
		return nil, fmt.Errorf("%w: owner and feed id required", domain.ErrInvalidInput)
	}

	feed, err := s.feedStore.GetFeed(ctx, feedID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("loading feed: %w", err)
	}
	if feed.OwnerID != ownerID {
		return nil, domain.ErrNotFound
	}
	return feed, nil
}

func (s *FeedService) dropFromIndex(ctx context.Context, feedID string) {
	if s.vectors == nil {
		return
	}
	if err := s.vectors.Delete(ctx, feedID); err != nil {
		logger.Warn("Vector index delete failed for %s: %v", feedID, err)
	}
}

func summarise(feeds []domain.Feed) []driving.FeedSummary {
	summaries := make([]driving.FeedSummary, 0, len(feeds))
	for _, f := range feeds {
		summaries = append(summaries, driving.FeedSummary{
			ID:          f.ID,
			Name:        f.Name,
			Description: f.Description,
			SourceKind:  f.SourceKind,
			SizeBytes:   f.SizeBytes,
			Version:     f.Version,
			Indexed:     f.Embedding != nil,
			UpdatedAt:   f.UpdatedAt,
			DeletedAt:   f.DeletedAt,
		})
	}
	return summaries
}
