// Package spreadsheet extracts canonical text from xlsx workbooks.
package spreadsheet

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"github.com/canopy-comms/feedvault/internal/core/domain"
	"github.com/canopy-comms/feedvault/internal/core/ports/driven"
)

// Ensure Extractor implements the interface.
var _ driven.Extractor = (*Extractor)(nil)

// Extractor handles xlsx workbook uploads.
type Extractor struct{}

// New creates a new spreadsheet extractor.
func New() *Extractor {
	return &Extractor{}
}

// Kind returns the source kind this extractor handles.
func (e *Extractor) Kind() domain.SourceKind {
	return domain.SourceKindSpreadsheet
}

// Extract flattens every sheet into canonical text. Each sheet
// contributes a "[sheet: name]" header followed by one line per row
// with cell values joined by "; ". Sheet, row, and column counts are
// recorded in the structural metadata.
func (e *Extractor) Extract(_ context.Context, raw []byte) (*driven.ExtractResult, error) {
	wb, err := excelize.OpenReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: opening workbook: %v", domain.ErrInvalidInput, err)
	}
	defer wb.Close()

	sheets := wb.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: workbook has no sheets", domain.ErrInvalidInput)
	}

	var b strings.Builder
	totalRows := 0
	maxCols := 0

	for _, sheet := range sheets {
		rows, err := wb.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("%w: reading sheet %q: %v", domain.ErrInvalidInput, sheet, err)
		}

		b.WriteString("[sheet: ")
		b.WriteString(sheet)
		b.WriteString("]\n")

		for _, row := range rows {
			if len(row) > maxCols {
				maxCols = len(row)
			}
			if isEmptyRow(row) {
				continue
			}
			b.WriteString(strings.Join(row, "; "))
			b.WriteString("\n")
			totalRows++
		}
	}

	text := strings.TrimSpace(b.String())

	return &driven.ExtractResult{
		Text: text,
		Structure: domain.StructuralMetadata{
			SchemaVersion: domain.StructureSchemaVersion,
			CharCount:     utf8.RuneCountInString(text),
			RowCount:      totalRows,
			SheetCount:    len(sheets),
			SheetNames:    sheets,
			Columns:       columnLabels(maxCols),
		},
	}, nil
}

func isEmptyRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// columnLabels returns spreadsheet-style column names (A, B, ... AA).
func columnLabels(n int) []string {
	labels := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		name, err := excelize.ColumnNumberToName(i)
		if err != nil {
			continue
		}
		labels = append(labels, name)
	}
	return labels
}
