package services

import (
	"context"
	"fmt"
	"sort"

	"github.com/canopy-comms/feedvault/internal/core/domain"
	"github.com/canopy-comms/feedvault/internal/core/ports/driven"
	"github.com/canopy-comms/feedvault/internal/core/ports/driving"
	"github.com/canopy-comms/feedvault/internal/logger"
)

// Ensure SearchService implements the interface.
var _ driving.SearchService = (*SearchService)(nil)

// DefaultSearchLimit caps results when the caller gives no limit.
const DefaultSearchLimit = 10

// SearchService ranks an owner's active feeds by cosine similarity to
// an embedded query. With a vector index configured, candidates come
// from the index and are re-checked against the store for ownership
// and liveness; otherwise the store's embeddings are scanned directly.
type SearchService struct {
	feedStore driven.FeedStore
	embedder  driven.EmbeddingService
	vectors   driven.VectorIndex
}

// NewSearchService creates a new search service. The vector index is
// optional.
func NewSearchService(feedStore driven.FeedStore, embedder driven.EmbeddingService, vectors driven.VectorIndex) *SearchService {
	return &SearchService{
		feedStore: feedStore,
		embedder:  embedder,
		vectors:   vectors,
	}
}

// SearchSimilar embeds the query and returns the closest feeds,
// highest similarity first. Unlike ingestion, search has no degraded
// mode: without a usable query embedding there is nothing to rank.
func (s *SearchService) SearchSimilar(ctx context.Context, ownerID, query string, opts domain.SearchOptions) ([]domain.SearchResult, error) {
	if ownerID == "" {
		return nil, fmt.Errorf("%w: owner required", domain.ErrInvalidInput)
	}
	if query == "" {
		return nil, fmt.Errorf("%w: query required", domain.ErrInvalidInput)
	}
	if opts.SourceKind != "" && !opts.SourceKind.Valid() {
		return nil, fmt.Errorf("%w: unknown source kind %q", domain.ErrInvalidInput, opts.SourceKind)
	}
	if opts.Limit <= 0 {
		opts.Limit = DefaultSearchLimit
	}

	if s.embedder == nil {
		return nil, domain.ErrEmbeddingUnavailable
	}
	queryVec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	if s.vectors != nil {
		results, err := s.searchIndex(ctx, ownerID, queryVec, opts)
		if err == nil {
			return results, nil
		}
		// The store is authoritative; an index failure degrades to
		// the scan path rather than failing the search.
		logger.Warn("Vector index search failed, falling back to scan: %v", err)
	}

	return s.searchScan(ctx, ownerID, queryVec, opts)
}

// searchIndex queries the external index, then filters hits through
// the store: the index may hold stale entries for feeds deleted or
// re-owned since the last sync.
func (s *SearchService) searchIndex(ctx context.Context, ownerID string, queryVec []float32, opts domain.SearchOptions) ([]domain.SearchResult, error) {
	// Over-fetch to survive post-filtering losses.
	hits, err := s.vectors.Search(ctx, queryVec, opts.Limit*3)
	if err != nil {
		return nil, err
	}

	results := make([]domain.SearchResult, 0, opts.Limit)
	for _, hit := range hits {
		if len(results) == opts.Limit {
			break
		}
		feed, err := s.feedStore.GetFeed(ctx, hit.FeedID)
		if err != nil {
			continue
		}
		if feed.OwnerID != ownerID || feed.Deleted || feed.Embedding == nil {
			continue
		}
		if opts.SourceKind != "" && feed.SourceKind != opts.SourceKind {
			continue
		}
		results = append(results, domain.SearchResult{
			FeedID:     feed.ID,
			Name:       feed.Name,
			SourceKind: feed.SourceKind,
			Score:      hit.Similarity,
		})
	}
	return results, nil
}

// searchScan computes cosine similarity against every indexed feed of
// the owner.
func (s *SearchService) searchScan(ctx context.Context, ownerID string, queryVec []float32, opts domain.SearchOptions) ([]domain.SearchResult, error) {
	embeddings, err := s.feedStore.ListEmbeddings(ctx, ownerID, opts.SourceKind)
	if err != nil {
		return nil, fmt.Errorf("listing embeddings: %w", err)
	}

	results := make([]domain.SearchResult, 0, len(embeddings))
	for _, e := range embeddings {
		score, ok := domain.Cosine(queryVec, e.Embedding)
		if !ok {
			// Dimension mismatch, e.g. a feed embedded under a
			// previous model configuration.
			continue
		}
		results = append(results, domain.SearchResult{
			FeedID:     e.FeedID,
			Name:       e.Name,
			SourceKind: e.SourceKind,
			Score:      score,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > opts.Limit {
		results = results[:opts.Limit]
	}
	return results, nil
}
