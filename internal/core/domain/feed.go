package domain

import "time"

// SourceKind identifies the format of an ingested data feed.
// Only the kinds listed here are accepted; anything else is
// rejected with ErrUnsupportedType.
type SourceKind string

const (
	// SourceKindPlainText is a plain text file upload.
	SourceKindPlainText SourceKind = "plaintext"

	// SourceKindCSV is a delimited tabular text upload.
	SourceKindCSV SourceKind = "csv"

	// SourceKindSpreadsheet is an xlsx workbook upload.
	SourceKindSpreadsheet SourceKind = "spreadsheet"

	// SourceKindRawText is text pasted directly by the user.
	SourceKindRawText SourceKind = "rawtext"
)

// Valid reports whether the kind is one of the accepted source kinds.
func (k SourceKind) Valid() bool {
	switch k {
	case SourceKindPlainText, SourceKindCSV, SourceKindSpreadsheet, SourceKindRawText:
		return true
	}
	return false
}

// Feed is the unit of ingestion: one uploaded file or pasted text,
// together with its processed form, embedding, and version state.
// A feed is identified by (OwnerID, Name); re-ingesting under the
// same identity drives the versioning state machine.
type Feed struct {
	// ID is the unique identifier for the feed.
	ID string

	// OwnerID identifies the user that owns this feed.
	OwnerID string

	// Name is the display name; unique per owner.
	Name string

	// Description is optional free text.
	Description string

	// SourceKind is the upload format this feed was ingested from.
	SourceKind SourceKind

	// SizeBytes is the raw payload size at ingestion time.
	SizeBytes int64

	// ProcessedText is the canonical text used for embedding and
	// concept extraction.
	ProcessedText string

	// OriginalText is the raw text as uploaded, before processing.
	OriginalText string

	// Structure describes the shape of the source (encoding, rows,
	// columns, sheets) as recorded by the content extractor.
	Structure StructuralMetadata

	// Embedding is the current semantic vector. Nil when the
	// embedding service was unavailable at ingestion time; the feed
	// is then stored without a semantic index.
	Embedding []float32

	// PreviousEmbedding is the embedding of the prior version.
	// Nil until the second successful embedding commits.
	PreviousEmbedding []float32

	// ConceptMap maps derived concept keys to location references.
	// Cleared on soft-delete.
	ConceptMap map[string][]string

	// Version starts at 1 and only ever increases.
	Version int

	// EmbeddingModel names the model that produced Embedding.
	EmbeddingModel string

	// Deleted marks the feed as soft-deleted. Deleted feeds are
	// hidden from default listings and from similarity search.
	Deleted bool

	// DeletedAt is set iff Deleted is true.
	DeletedAt *time.Time

	// DeletedBy is the actor that performed the soft-delete.
	DeletedBy string

	// CreatedAt is when the feed was first ingested.
	CreatedAt time.Time

	// UpdatedAt is when the feed was last modified.
	UpdatedAt time.Time
}
