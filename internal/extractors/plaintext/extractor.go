// Package plaintext extracts canonical text from plain text uploads,
// detecting the character encoding along the way.
package plaintext

import (
	"bytes"
	"context"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"

	"github.com/canopy-comms/feedvault/internal/core/domain"
	"github.com/canopy-comms/feedvault/internal/core/ports/driven"
)

// Ensure Extractor implements the interface.
var _ driven.Extractor = (*Extractor)(nil)

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// Extractor handles plain text uploads.
type Extractor struct{}

// New creates a new plain text extractor.
func New() *Extractor {
	return &Extractor{}
}

// Kind returns the source kind this extractor handles.
func (e *Extractor) Kind() domain.SourceKind {
	return domain.SourceKindPlainText
}

// Extract decodes the payload by trying a fixed, ordered ladder of
// encodings: UTF-8, UTF-16 (BOM), Windows-1252, ISO-8859-1. The
// winning encoding is recorded in the structural metadata. Payloads
// that look binary fail with ErrEncodingUndetected.
func (e *Extractor) Extract(_ context.Context, raw []byte) (*driven.ExtractResult, error) {
	text, enc, err := decode(raw)
	if err != nil {
		return nil, err
	}

	text = strings.TrimSpace(text)

	return &driven.ExtractResult{
		Text: text,
		Structure: domain.StructuralMetadata{
			SchemaVersion: domain.StructureSchemaVersion,
			Encoding:      enc,
			CharCount:     utf8.RuneCountInString(text),
			LineCount:     lineCount(text),
		},
	}, nil
}

// decode runs the encoding ladder.
func decode(raw []byte) (string, string, error) {
	// NUL bytes mean binary content, not mis-encoded text.
	if bytes.IndexByte(raw, 0x00) >= 0 && !hasUTF16BOM(raw) {
		return "", "", domain.ErrEncodingUndetected
	}

	if bytes.HasPrefix(raw, bomUTF8) {
		raw = raw[len(bomUTF8):]
	}
	if utf8.Valid(raw) {
		return string(raw), "utf-8", nil
	}

	if hasUTF16BOM(raw) {
		dec := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder()
		out, err := dec.Bytes(raw)
		if err == nil && utf8.Valid(out) {
			return string(out), "utf-16", nil
		}
	}

	// Windows-1252 covers the 0x80-0x9F range ISO-8859-1 leaves as
	// control characters, so it goes first.
	if out, err := charmap.Windows1252.NewDecoder().Bytes(raw); err == nil && !bytes.ContainsRune(out, utf8.RuneError) {
		return string(out), "windows-1252", nil
	}

	if out, err := charmap.ISO8859_1.NewDecoder().Bytes(raw); err == nil {
		return string(out), "iso-8859-1", nil
	}

	return "", "", domain.ErrEncodingUndetected
}

func hasUTF16BOM(raw []byte) bool {
	return bytes.HasPrefix(raw, bomUTF16LE) || bytes.HasPrefix(raw, bomUTF16BE)
}

func lineCount(text string) int {
	if text == "" {
		return 0
	}
	return strings.Count(text, "\n") + 1
}
