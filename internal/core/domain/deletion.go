package domain

import "time"

// DeletionRecord is an append-only audit entry written on every
// soft-delete. It carries a denormalised snapshot of the feed's
// metadata at deletion time so the record stays meaningful even if
// the feed row is later purged by a retention process.
type DeletionRecord struct {
	// ID is the unique identifier for the record.
	ID string

	// FeedID references the deleted feed. The feed row may no longer
	// exist; the snapshot fields below are authoritative.
	FeedID string

	// FeedName is the feed's name at deletion time.
	FeedName string

	// SourceKind is the feed's source kind at deletion time.
	SourceKind SourceKind

	// SizeBytes is the feed's raw size at deletion time.
	SizeBytes int64

	// ConceptMap is the concept/location map at deletion time,
	// captured before the live map is cleared.
	ConceptMap map[string][]string

	// DeletedBy is the actor that requested the deletion.
	DeletedBy string

	// Reason is optional free text supplied by the actor.
	Reason string

	// DeletedAt is when the deletion committed.
	DeletedAt time.Time
}
