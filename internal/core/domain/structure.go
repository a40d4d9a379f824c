package domain

// StructureSchemaVersion is the current shape version of
// StructuralMetadata. Bump when fields are added or change meaning so
// consumers can validate before reading.
const StructureSchemaVersion = 1

// StructuralMetadata describes the shape of an ingested source.
// Which fields are populated depends on the source kind: plain text
// sets Encoding and line counts, tabular kinds set row/column fields,
// spreadsheets additionally set sheet fields, and raw text sets
// CharCount only.
type StructuralMetadata struct {
	// SchemaVersion is the shape version of this struct.
	SchemaVersion int `json:"schema_version"`

	// Encoding is the character encoding that decoded the input.
	Encoding string `json:"encoding,omitempty"`

	// CharCount is the number of runes in the processed text.
	CharCount int `json:"char_count,omitempty"`

	// LineCount is the number of lines in the processed text.
	LineCount int `json:"line_count,omitempty"`

	// RowCount is the number of data rows (tabular kinds).
	RowCount int `json:"row_count,omitempty"`

	// Columns holds the header names (tabular kinds).
	Columns []string `json:"columns,omitempty"`

	// SheetCount is the number of sheets (spreadsheets).
	SheetCount int `json:"sheet_count,omitempty"`

	// SheetNames holds the sheet names in workbook order.
	SheetNames []string `json:"sheet_names,omitempty"`
}
