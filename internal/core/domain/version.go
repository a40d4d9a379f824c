package domain

import "time"

// FeedVersion is an immutable snapshot of a feed's state at the
// moment new content superseded it. Rows are written exactly once by
// the version engine and never mutated or deleted; history outlives a
// soft-delete of the parent feed.
type FeedVersion struct {
	// FeedID is the owning feed.
	FeedID string

	// Version is the version number this snapshot preserves.
	Version int

	// ProcessedText is the canonical text as it existed at this version.
	ProcessedText string

	// Embedding is the vector as it existed at this version. May be
	// nil if the version was stored without a semantic index.
	Embedding []float32

	// Structure is a copy of the structural metadata at this version.
	Structure StructuralMetadata

	// ConceptMap is a copy of the concept/location map at this version.
	ConceptMap map[string][]string

	// CreatedBy is the actor whose ingestion triggered the snapshot.
	CreatedBy string

	// CreatedAt is when the snapshot was taken.
	CreatedAt time.Time
}
