// Package memory provides in-memory store implementations used by
// tests and as a reference for the transactional semantics the SQLite
// store guarantees.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/canopy-comms/feedvault/internal/core/domain"
	"github.com/canopy-comms/feedvault/internal/core/ports/driven"
)

// Ensure FeedStore implements the interface.
var _ driven.FeedStore = (*FeedStore)(nil)

// FeedStore is an in-memory implementation of driven.FeedStore.
// Mutations hold one lock for their full duration, which mirrors the
// per-transaction atomicity of the SQLite store.
type FeedStore struct {
	mu       sync.RWMutex
	feeds    map[string]domain.Feed
	versions map[string][]domain.FeedVersion
	concepts map[string][]domain.ConceptEntry
	audit    *AuditStore
}

// NewFeedStore creates a new in-memory feed store. The audit store
// receives deletion records atomically with soft-deletes.
func NewFeedStore(audit *AuditStore) *FeedStore {
	return &FeedStore{
		feeds:    make(map[string]domain.Feed),
		versions: make(map[string][]domain.FeedVersion),
		concepts: make(map[string][]domain.ConceptEntry),
		audit:    audit,
	}
}

// CreateFeed inserts a new feed at version 1.
func (s *FeedStore) CreateFeed(_ context.Context, feed *domain.Feed, concepts []domain.ConceptEntry) error {
	if feed.ID == "" || feed.OwnerID == "" || feed.Name == "" {
		return domain.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.feeds[feed.ID]; ok {
		return domain.ErrAlreadyExists
	}
	for _, existing := range s.feeds {
		if existing.OwnerID == feed.OwnerID && existing.Name == feed.Name {
			return domain.ErrAlreadyExists
		}
	}

	s.feeds[feed.ID] = *feed
	s.concepts[feed.ID] = append([]domain.ConceptEntry(nil), concepts...)
	return nil
}

// CommitVersion snapshots, bumps, and stores the new state atomically.
func (s *FeedStore) CommitVersion(
	_ context.Context,
	snapshot domain.FeedVersion,
	updated *domain.Feed,
	concepts []domain.ConceptEntry,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.feeds[updated.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if current.Version != snapshot.Version {
		return domain.ErrConflict
	}

	s.versions[updated.ID] = append(s.versions[updated.ID], snapshot)
	s.feeds[updated.ID] = *updated
	s.concepts[updated.ID] = append([]domain.ConceptEntry(nil), concepts...)
	return nil
}

// GetFeed retrieves a feed by ID.
func (s *FeedStore) GetFeed(_ context.Context, id string) (*domain.Feed, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	feed, ok := s.feeds[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &feed, nil
}

// GetFeedByName retrieves a feed by its (owner, name) identity.
func (s *FeedStore) GetFeedByName(_ context.Context, ownerID, name string) (*domain.Feed, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for id := range s.feeds {
		feed := s.feeds[id]
		if feed.OwnerID == ownerID && feed.Name == name {
			return &feed, nil
		}
	}
	return nil, domain.ErrNotFound
}

// ListFeeds returns active feeds for an owner.
func (s *FeedStore) ListFeeds(_ context.Context, ownerID string, filter driven.FeedFilter) ([]domain.Feed, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.Feed
	for id := range s.feeds {
		feed := s.feeds[id]
		if feed.OwnerID != ownerID || feed.Deleted {
			continue
		}
		if filter.SourceKind != "" && feed.SourceKind != filter.SourceKind {
			continue
		}
		result = append(result, feed)
	}
	sortFeeds(result)
	return result, nil
}

// ListDeleted returns soft-deleted feeds for an owner.
func (s *FeedStore) ListDeleted(_ context.Context, ownerID string) ([]domain.Feed, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.Feed
	for id := range s.feeds {
		feed := s.feeds[id]
		if feed.OwnerID == ownerID && feed.Deleted {
			result = append(result, feed)
		}
	}
	sortFeeds(result)
	return result, nil
}

// SoftDelete marks the feed deleted and appends the audit record.
// The record is appended first; if that fails nothing is mutated.
func (s *FeedStore) SoftDelete(_ context.Context, id string, rec domain.DeletionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	feed, ok := s.feeds[id]
	if !ok {
		return domain.ErrNotFound
	}
	if feed.Deleted {
		return domain.ErrAlreadyDeleted
	}

	if s.audit != nil {
		if err := s.audit.append(rec); err != nil {
			return err
		}
	}

	deletedAt := rec.DeletedAt
	feed.Deleted = true
	feed.DeletedAt = &deletedAt
	feed.DeletedBy = rec.DeletedBy
	feed.ConceptMap = map[string][]string{}
	feed.UpdatedAt = deletedAt
	s.feeds[id] = feed

	entries := s.concepts[id]
	for i := range entries {
		entries[i].Active = false
	}
	return nil
}

// Restore clears the delete flag and installs new concept state.
func (s *FeedStore) Restore(
	_ context.Context,
	id string,
	conceptMap map[string][]string,
	concepts []domain.ConceptEntry,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	feed, ok := s.feeds[id]
	if !ok {
		return domain.ErrNotFound
	}
	if !feed.Deleted {
		return domain.ErrNotDeleted
	}

	feed.Deleted = false
	feed.DeletedAt = nil
	feed.DeletedBy = ""
	feed.ConceptMap = conceptMap
	feed.UpdatedAt = time.Now().UTC()
	s.feeds[id] = feed
	s.concepts[id] = append([]domain.ConceptEntry(nil), concepts...)
	return nil
}

// SetEmbedding installs a current embedding without touching the
// content or the version counter.
func (s *FeedStore) SetEmbedding(_ context.Context, id string, embedding []float32, model string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	feed, ok := s.feeds[id]
	if !ok {
		return domain.ErrNotFound
	}

	feed.Embedding = append([]float32(nil), embedding...)
	feed.EmbeddingModel = model
	feed.UpdatedAt = time.Now().UTC()
	s.feeds[id] = feed
	return nil
}

// ListVersions returns snapshots for a feed, oldest first.
func (s *FeedStore) ListVersions(_ context.Context, feedID string) ([]domain.FeedVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	versions := append([]domain.FeedVersion(nil), s.versions[feedID]...)
	sort.Slice(versions, func(i, j int) bool {
		return versions[i].Version < versions[j].Version
	})
	return versions, nil
}

// GetVersion retrieves one snapshot.
func (s *FeedStore) GetVersion(_ context.Context, feedID string, version int) (*domain.FeedVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, v := range s.versions[feedID] {
		if v.Version == version {
			return &v, nil
		}
	}
	return nil, domain.ErrNotFound
}

// ListConcepts returns the concept entries for a feed.
func (s *FeedStore) ListConcepts(_ context.Context, feedID string) ([]domain.ConceptEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]domain.ConceptEntry(nil), s.concepts[feedID]...), nil
}

// ListEmbeddings returns current embeddings of active feeds.
func (s *FeedStore) ListEmbeddings(
	_ context.Context,
	ownerID string,
	kind domain.SourceKind,
) ([]driven.FeedEmbedding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []driven.FeedEmbedding
	for id := range s.feeds {
		feed := s.feeds[id]
		if feed.OwnerID != ownerID || feed.Deleted || len(feed.Embedding) == 0 {
			continue
		}
		if kind != "" && feed.SourceKind != kind {
			continue
		}
		result = append(result, driven.FeedEmbedding{
			FeedID:     feed.ID,
			Name:       feed.Name,
			SourceKind: feed.SourceKind,
			Embedding:  feed.Embedding,
		})
	}
	return result, nil
}

func sortFeeds(feeds []domain.Feed) {
	sort.Slice(feeds, func(i, j int) bool {
		if feeds[i].UpdatedAt.Equal(feeds[j].UpdatedAt) {
			return feeds[i].Name < feeds[j].Name
		}
		return feeds[i].UpdatedAt.After(feeds[j].UpdatedAt)
	})
}
