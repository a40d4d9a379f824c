// Package csv extracts canonical text from delimited tabular uploads.
package csv

import (
	"context"
	"encoding/csv"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/canopy-comms/feedvault/internal/core/domain"
	"github.com/canopy-comms/feedvault/internal/core/ports/driven"
)

// Ensure Extractor implements the interface.
var _ driven.Extractor = (*Extractor)(nil)

// Extractor handles delimited tabular text uploads.
type Extractor struct{}

// New creates a new tabular text extractor.
func New() *Extractor {
	return &Extractor{}
}

// Kind returns the source kind this extractor handles.
func (e *Extractor) Kind() domain.SourceKind {
	return domain.SourceKindCSV
}

// Extract parses rows and columns and renders a row-oriented
// canonical text suitable for embedding: one line per data row,
// "column: value" pairs joined by "; ". The first record is treated
// as the header.
func (e *Extractor) Extract(_ context.Context, raw []byte) (*driven.ExtractResult, error) {
	reader := csv.NewReader(strings.NewReader(string(raw)))
	reader.FieldsPerRecord = -1 // tolerate ragged rows
	reader.Comma = detectDelimiter(raw)

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: parsing tabular text: %v", domain.ErrInvalidInput, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: empty tabular input", domain.ErrInvalidInput)
	}

	header := records[0]
	rows := records[1:]

	var b strings.Builder
	for _, row := range rows {
		for i, val := range row {
			if i > 0 {
				b.WriteString("; ")
			}
			col := fmt.Sprintf("col%d", i+1)
			if i < len(header) {
				col = header[i]
			}
			b.WriteString(col)
			b.WriteString(": ")
			b.WriteString(val)
		}
		b.WriteString("\n")
	}

	text := strings.TrimSpace(b.String())

	return &driven.ExtractResult{
		Text: text,
		Structure: domain.StructuralMetadata{
			SchemaVersion: domain.StructureSchemaVersion,
			CharCount:     utf8.RuneCountInString(text),
			RowCount:      len(rows),
			Columns:       header,
		},
	}, nil
}

// detectDelimiter picks tab when the first line has more tabs than
// commas, comma otherwise. Covers .csv and .tsv without config.
func detectDelimiter(raw []byte) rune {
	firstLine := string(raw)
	if idx := strings.IndexByte(firstLine, '\n'); idx >= 0 {
		firstLine = firstLine[:idx]
	}
	if strings.Count(firstLine, "\t") > strings.Count(firstLine, ",") {
		return '\t'
	}
	return ','
}
