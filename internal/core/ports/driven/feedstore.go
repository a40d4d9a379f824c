package driven

import (
	"context"

	"github.com/canopy-comms/feedvault/internal/core/domain"
)

// FeedFilter narrows feed listings.
type FeedFilter struct {
	// SourceKind restricts to one source kind when non-empty.
	SourceKind domain.SourceKind
}

// FeedEmbedding is the projection used by similarity search: the
// current embedding of one active feed.
type FeedEmbedding struct {
	// FeedID is the feed identifier.
	FeedID string

	// Name is the feed's display name.
	Name string

	// SourceKind is the feed's source kind.
	SourceKind domain.SourceKind

	// Embedding is the current vector. Never nil; feeds stored
	// without a semantic index are excluded from this projection.
	Embedding []float32
}

// FeedStore is the authoritative store for feed state, version
// history, and concept entries. Backed by SQLite.
//
// The mutating operations are transactional: CommitVersion writes the
// snapshot, the version bump, and the new current state as one unit,
// and SoftDelete writes the state change and the audit record as one
// unit. A reader never observes a version counter without its
// corresponding history row.
type FeedStore interface {
	// CreateFeed inserts a new feed at version 1 together with its
	// concept entries. Returns domain.ErrAlreadyExists if the
	// (owner, name) identity is taken.
	CreateFeed(ctx context.Context, feed *domain.Feed, concepts []domain.ConceptEntry) error

	// CommitVersion atomically snapshots the feed's prior state into
	// the history table, then stores updated as the current state and
	// replaces the feed's concept entries.
	CommitVersion(ctx context.Context, snapshot domain.FeedVersion, updated *domain.Feed, concepts []domain.ConceptEntry) error

	// GetFeed retrieves a feed by ID, soft-deleted or not.
	GetFeed(ctx context.Context, id string) (*domain.Feed, error)

	// GetFeedByName retrieves a feed by its (owner, name) identity.
	GetFeedByName(ctx context.Context, ownerID, name string) (*domain.Feed, error)

	// ListFeeds returns active (non-deleted) feeds for an owner.
	ListFeeds(ctx context.Context, ownerID string, filter FeedFilter) ([]domain.Feed, error)

	// ListDeleted returns soft-deleted feeds for an owner. This is
	// the only read path that surfaces deleted feeds in bulk.
	ListDeleted(ctx context.Context, ownerID string) ([]domain.Feed, error)

	// SoftDelete marks the feed deleted, clears its live concept map,
	// deactivates its concept entries, and appends the audit record,
	// all in one transaction. A failed audit append rolls back the
	// deletion.
	SoftDelete(ctx context.Context, id string, rec domain.DeletionRecord) error

	// Restore clears the delete flag and timestamp and installs the
	// given re-extracted concept map and entries.
	Restore(ctx context.Context, id string, conceptMap map[string][]string, concepts []domain.ConceptEntry) error

	// ListVersions returns all historical snapshots for a feed,
	// ordered by version ascending.
	ListVersions(ctx context.Context, feedID string) ([]domain.FeedVersion, error)

	// GetVersion retrieves one historical snapshot.
	GetVersion(ctx context.Context, feedID string, version int) (*domain.FeedVersion, error)

	// ListConcepts returns the concept entries for a feed.
	ListConcepts(ctx context.Context, feedID string) ([]domain.ConceptEntry, error)

	// ListEmbeddings returns the current embeddings of active feeds
	// for an owner, optionally filtered by source kind. Feeds without
	// an embedding are excluded.
	ListEmbeddings(ctx context.Context, ownerID string, kind domain.SourceKind) ([]FeedEmbedding, error)

	// SetEmbedding installs a current embedding on a feed without
	// touching its content or version counter. Used when a feed
	// stored during an embedding outage is reprocessed.
	SetEmbedding(ctx context.Context, id string, embedding []float32, model string) error
}
