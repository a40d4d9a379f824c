// Package rawtext extracts canonical text from direct text submissions.
package rawtext

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/canopy-comms/feedvault/internal/core/domain"
	"github.com/canopy-comms/feedvault/internal/core/ports/driven"
)

// Ensure Extractor implements the interface.
var _ driven.Extractor = (*Extractor)(nil)

// Extractor handles directly entered text. The canonical text is the
// input verbatim after trimming; structure records the character
// count only.
type Extractor struct{}

// New creates a new raw text extractor.
func New() *Extractor {
	return &Extractor{}
}

// Kind returns the source kind this extractor handles.
func (e *Extractor) Kind() domain.SourceKind {
	return domain.SourceKindRawText
}

// Extract trims the submission and counts characters.
func (e *Extractor) Extract(_ context.Context, raw []byte) (*driven.ExtractResult, error) {
	text := strings.TrimSpace(string(raw))

	return &driven.ExtractResult{
		Text: text,
		Structure: domain.StructuralMetadata{
			SchemaVersion: domain.StructureSchemaVersion,
			CharCount:     utf8.RuneCountInString(text),
		},
	}, nil
}
