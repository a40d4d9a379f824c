package driving

import (
	"context"
	"time"

	"github.com/canopy-comms/feedvault/internal/core/domain"
)

// FeedSummary is the listing view of a feed.
type FeedSummary struct {
	// ID is the feed identifier.
	ID string

	// Name is the display name.
	Name string

	// Description is the optional description.
	Description string

	// SourceKind is the upload format.
	SourceKind domain.SourceKind

	// SizeBytes is the raw payload size.
	SizeBytes int64

	// Version is the current version counter.
	Version int

	// Indexed is true when the feed has a current embedding.
	Indexed bool

	// UpdatedAt is the last modification time.
	UpdatedAt time.Time

	// DeletedAt is set for soft-deleted feeds.
	DeletedAt *time.Time
}

// FeedContent is the full content view of a feed.
type FeedContent struct {
	// ProcessedText is the canonical text.
	ProcessedText string

	// OriginalText is the raw text as uploaded.
	OriginalText string

	// Structure is the structural metadata.
	Structure domain.StructuralMetadata

	// ConceptMap maps concept keys to location references.
	ConceptMap map[string][]string
}

// VersionSummary is the listing view of a historical snapshot.
type VersionSummary struct {
	// Version is the snapshot's version number.
	Version int

	// Indexed is true when the snapshot carries an embedding.
	Indexed bool

	// CreatedBy is the actor whose ingestion triggered the snapshot.
	CreatedBy string

	// CreatedAt is when the snapshot was taken.
	CreatedAt time.Time
}

// FeedService manages feed lifecycle: content access, listing,
// soft-deletion, restoration, and version history.
type FeedService interface {
	// List returns active feeds for an owner, optionally filtered by
	// source kind.
	List(ctx context.Context, ownerID string, kind domain.SourceKind) ([]FeedSummary, error)

	// ListDeleted returns soft-deleted feeds for an owner.
	ListDeleted(ctx context.Context, ownerID string) ([]FeedSummary, error)

	// GetContent returns the full content view of a feed.
	GetContent(ctx context.Context, ownerID, feedID string) (*FeedContent, error)

	// Delete soft-deletes a feed and writes one audit record.
	Delete(ctx context.Context, ownerID, feedID, reason string) error

	// Restore reverses a soft-delete and rebuilds the concept map by
	// re-extracting from the stored processed text.
	Restore(ctx context.Context, ownerID, feedID string) error

	// ListVersions returns the feed's historical snapshots.
	ListVersions(ctx context.Context, ownerID, feedID string) ([]VersionSummary, error)

	// GetVersion returns one historical snapshot in full.
	GetVersion(ctx context.Context, ownerID, feedID string, version int) (*domain.FeedVersion, error)

	// AuditTrail returns the deletion records for one of the owner's
	// feeds. Foreign feeds read as not found.
	AuditTrail(ctx context.Context, ownerID, feedID string) ([]domain.DeletionRecord, error)

	// ActorTrail returns the deletion records the owner wrote within
	// [from, to]. Zero times mean unbounded.
	ActorTrail(ctx context.Context, ownerID string, from, to time.Time) ([]domain.DeletionRecord, error)
}
