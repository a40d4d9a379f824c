// Package concepts scans canonical text for recognisable entities
// (email addresses, phone numbers, document references, proper names,
// salient phrases) and builds the key-to-location map consumed by
// targeted retrieval.
package concepts

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"

	"github.com/canopy-comms/feedvault/internal/core/domain"
)

// Confidence levels per matcher. Pattern matches are deterministic;
// name and phrase extraction are heuristics.
const (
	confidenceExact  = 1.0
	confidenceName   = 0.7
	confidencePhrase = 0.5
)

var (
	emailRe = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)

	// At least 9 digits total, tolerating separators and a leading +.
	phoneRe = regexp.MustCompile(`\+?\d[\d\s\-().]{7,}\d`)

	docRefRe = regexp.MustCompile(`(?i)\b(?:Q[1-4]\s+report|(?:invoice|order|ticket|case)\s*#?\d+|doc(?:ument)?\s+[A-Z0-9][A-Za-z0-9\-]*)\b`)

	// Two or more consecutive capitalised words.
	nameRe = regexp.MustCompile(`\b[A-Z][a-z]+(?:\s+[A-Z][a-z]+)+\b`)

	// Double-quoted runs of a few words.
	phraseRe = regexp.MustCompile(`"([^"\n]{3,80})"`)
)

// Extractor extracts concept entries from canonical text.
type Extractor struct{}

// New creates a new concept extractor.
func New() *Extractor {
	return &Extractor{}
}

// Extract returns the deduplicated concept entries for a feed along
// with the key-to-location map. Identical (kind, value) pairs within
// one feed collapse to a single entry.
func (e *Extractor) Extract(feedID, text string) ([]domain.ConceptEntry, map[string][]string) {
	var entries []domain.ConceptEntry
	seen := make(map[string]bool)

	add := func(kind domain.ConceptKind, value string, confidence float64) {
		value = strings.TrimSpace(value)
		if value == "" {
			return
		}
		dedupe := string(kind) + "\x00" + value
		if seen[dedupe] {
			return
		}
		seen[dedupe] = true
		entries = append(entries, domain.ConceptEntry{
			FeedID:     feedID,
			Kind:       kind,
			Value:      value,
			Confidence: confidence,
			Active:     true,
		})
	}

	for _, m := range emailRe.FindAllString(text, -1) {
		add(domain.ConceptKindEmail, m, confidenceExact)
	}
	for _, m := range phoneRe.FindAllString(text, -1) {
		add(domain.ConceptKindPhone, m, confidenceExact)
	}
	for _, m := range docRefRe.FindAllString(text, -1) {
		add(domain.ConceptKindDocRef, m, confidenceExact)
	}
	for _, m := range nameRe.FindAllString(text, -1) {
		add(domain.ConceptKindName, m, confidenceName)
	}
	for _, m := range phraseRe.FindAllStringSubmatch(text, -1) {
		add(domain.ConceptKindPhrase, m[1], confidencePhrase)
	}

	return entries, BuildMap(feedID, entries)
}

// BuildMap derives the key-to-location map from concept entries.
// Each key points at the feed-and-kind location reference retrieval
// uses to narrow where a matched concept lives.
func BuildMap(feedID string, entries []domain.ConceptEntry) map[string][]string {
	m := make(map[string][]string, len(entries))
	for _, entry := range entries {
		key := Key(entry.Kind, entry.Value, feedID)
		loc := feedID + "_" + string(entry.Kind)
		m[key] = appendUnique(m[key], loc)
	}
	return m
}

// Key derives the stable concept key: the first 16 hex characters of
// sha256(kind|value|feedID).
func Key(kind domain.ConceptKind, value, feedID string) string {
	sum := sha256.Sum256([]byte(string(kind) + "|" + value + "|" + feedID))
	return hex.EncodeToString(sum[:])[:16]
}

func appendUnique(refs []string, ref string) []string {
	for _, r := range refs {
		if r == ref {
			return refs
		}
	}
	return append(refs, ref)
}
