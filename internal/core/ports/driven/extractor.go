package driven

import (
	"context"

	"github.com/canopy-comms/feedvault/internal/core/domain"
)

// Extractor converts one source kind's raw payload into canonical
// text plus structural metadata. Extractors have no side effects and
// persist nothing.
type Extractor interface {
	// Kind returns the source kind this extractor handles.
	Kind() domain.SourceKind

	// Extract parses the raw payload. Content failures (undecodable
	// encoding, malformed table) abort the ingestion attempt.
	Extract(ctx context.Context, raw []byte) (*ExtractResult, error)
}

// ExtractResult is the output of content extraction.
type ExtractResult struct {
	// Text is the canonical text used for embedding and concept
	// extraction.
	Text string

	// Structure describes the source's shape.
	Structure domain.StructuralMetadata
}
