package domain

// SearchOptions controls similarity search behaviour.
type SearchOptions struct {
	// Limit is the maximum number of results (default 10).
	Limit int

	// SourceKind restricts results to one source kind when non-empty.
	SourceKind SourceKind
}

// SearchResult is one ranked hit from similarity search.
type SearchResult struct {
	// FeedID is the matched feed.
	FeedID string

	// Name is the feed's display name.
	Name string

	// SourceKind is the feed's source kind.
	SourceKind SourceKind

	// Score is the cosine similarity to the query in [-1, 1].
	Score float64
}
