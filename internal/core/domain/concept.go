package domain

// ConceptKind identifies the category of an extracted entity.
type ConceptKind string

const (
	// ConceptKindEmail is an email address.
	ConceptKindEmail ConceptKind = "email"

	// ConceptKindPhone is a phone number.
	ConceptKindPhone ConceptKind = "phone"

	// ConceptKindDocRef is a reference to another document
	// (e.g. "Q3 report", "invoice #1042").
	ConceptKindDocRef ConceptKind = "docref"

	// ConceptKindName is a capitalised proper-name candidate.
	ConceptKindName ConceptKind = "name"

	// ConceptKindPhrase is a salient phrase candidate.
	ConceptKindPhrase ConceptKind = "phrase"
)

// ConceptEntry is one entity extracted from a feed's processed text.
// Deterministic matches (email, phone, docref) carry confidence 1.0;
// heuristic matches carry a lower, matcher-defined confidence.
type ConceptEntry struct {
	// FeedID is the owning feed.
	FeedID string

	// Kind is the concept category.
	Kind ConceptKind

	// Value is the matched text.
	Value string

	// Confidence is the match confidence in [0,1].
	Confidence float64

	// Active is false once the owning feed is soft-deleted.
	Active bool
}
