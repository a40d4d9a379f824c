package driven

import "context"

// VectorIndex is an optional external similarity index mirroring the
// current embeddings of active feeds. When nil, search falls back to
// a cosine scan over the feed store.
type VectorIndex interface {
	// Upsert inserts or replaces the vector for a feed.
	Upsert(ctx context.Context, feedID string, embedding []float32) error

	// Delete removes a feed's vector from the index.
	Delete(ctx context.Context, feedID string) error

	// Search finds the k nearest neighbours to the query vector.
	Search(ctx context.Context, query []float32, k int) ([]VectorHit, error)

	// Close releases resources.
	Close() error
}

// VectorHit represents a similarity search result.
type VectorHit struct {
	// FeedID is the matched feed.
	FeedID string

	// Similarity is the cosine similarity score.
	Similarity float64
}
