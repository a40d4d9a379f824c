package driving

import (
	"context"

	"github.com/canopy-comms/feedvault/internal/core/domain"
)

// IngestOutcome describes what an ingestion call did.
type IngestOutcome string

const (
	// OutcomeCreated means a new feed was created at version 1.
	OutcomeCreated IngestOutcome = "created"

	// OutcomeUpdated means a new version was committed.
	OutcomeUpdated IngestOutcome = "updated"

	// OutcomeUnchanged means the new content was semantically
	// equivalent to the stored version and reprocessing was skipped.
	OutcomeUnchanged IngestOutcome = "unchanged"
)

// FileSubmission is an uploaded file to ingest.
type FileSubmission struct {
	// OwnerID identifies the submitting user.
	OwnerID string

	// Name is the declared file name; also the feed identity.
	Name string

	// Description is optional free text.
	Description string

	// Kind overrides source kind detection when non-empty.
	// When empty the kind is derived from the file extension.
	Kind domain.SourceKind

	// Payload is the raw file content.
	Payload []byte
}

// TextSubmission is directly entered text to ingest.
type TextSubmission struct {
	// OwnerID identifies the submitting user.
	OwnerID string

	// Name is the feed identity.
	Name string

	// Description is optional free text.
	Description string

	// Content is the submitted text.
	Content string
}

// IngestResult reports the outcome of one ingestion call.
type IngestResult struct {
	// FeedID is the affected feed.
	FeedID string

	// Name is the feed's display name.
	Name string

	// Version is the feed's version after this call.
	Version int

	// Outcome says whether the call created, updated, or skipped.
	Outcome IngestOutcome

	// Similarity is the cosine similarity to the prior version.
	// Only meaningful when SimilarityKnown is true.
	Similarity float64

	// SimilarityKnown is false on first ingestion or when either
	// embedding was unavailable.
	SimilarityKnown bool

	// Degraded is true when the feed was stored without a semantic
	// index because the embedding service was unavailable. Semantic
	// search will not find this feed until it is reprocessed.
	Degraded bool
}

// ReindexResult reports one reindex pass over degraded feeds.
type ReindexResult struct {
	// Scanned is the number of degraded feeds found.
	Scanned int

	// Indexed is the number of feeds that now carry an embedding.
	Indexed int

	// Skipped is the number of feeds left untouched because another
	// operation held their identity lock.
	Skipped int
}

// IngestionService accepts uploads and drives the extraction,
// embedding, and versioning pipeline.
type IngestionService interface {
	// SubmitFile ingests an uploaded file.
	SubmitFile(ctx context.Context, sub FileSubmission) (*IngestResult, error)

	// SubmitText ingests directly entered text.
	SubmitText(ctx context.Context, sub TextSubmission) (*IngestResult, error)

	// Reindex re-embeds the owner's active feeds stored without a
	// semantic index. Content and version counters are unchanged.
	Reindex(ctx context.Context, ownerID string) (*ReindexResult, error)
}
