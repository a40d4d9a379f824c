package extractors

import (
	"path/filepath"
	"strings"

	"github.com/canopy-comms/feedvault/internal/core/domain"
	"github.com/canopy-comms/feedvault/internal/core/ports/driven"
)

// Registry resolves source kinds to extractors.
type Registry struct {
	byKind map[domain.SourceKind]driven.Extractor
}

// NewRegistry creates a registry over the given extractors.
func NewRegistry(exts ...driven.Extractor) *Registry {
	r := &Registry{byKind: make(map[domain.SourceKind]driven.Extractor, len(exts))}
	for _, e := range exts {
		r.byKind[e.Kind()] = e
	}
	return r
}

// Get returns the extractor for a kind, or ErrUnsupportedType.
func (r *Registry) Get(kind domain.SourceKind) (driven.Extractor, error) {
	e, ok := r.byKind[kind]
	if !ok {
		return nil, domain.ErrUnsupportedType
	}
	return e, nil
}

// DetectKind derives the source kind from a file name's extension.
// Returns ErrUnsupportedType for anything outside the accepted set;
// unknown uploads are rejected, never best-effort parsed.
func DetectKind(name string) (domain.SourceKind, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".txt", ".text", ".log", ".md":
		return domain.SourceKindPlainText, nil
	case ".csv", ".tsv":
		return domain.SourceKindCSV, nil
	case ".xlsx", ".xlsm":
		return domain.SourceKindSpreadsheet, nil
	default:
		return "", domain.ErrUnsupportedType
	}
}
