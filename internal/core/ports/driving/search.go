package driving

import (
	"context"

	"github.com/canopy-comms/feedvault/internal/core/domain"
)

// SearchService ranks an owner's feeds by semantic similarity to a
// query. Soft-deleted feeds and feeds stored without an embedding are
// never returned.
type SearchService interface {
	// SearchSimilar embeds the query and returns the closest feeds.
	SearchSimilar(ctx context.Context, ownerID, query string, opts domain.SearchOptions) ([]domain.SearchResult, error)
}
