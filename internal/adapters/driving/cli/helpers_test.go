package cli

import (
	"context"

	"github.com/canopy-comms/feedvault/internal/adapters/driven/storage/memory"
	"github.com/canopy-comms/feedvault/internal/concepts"
	"github.com/canopy-comms/feedvault/internal/core/services"
	"github.com/canopy-comms/feedvault/internal/extractors"
	"github.com/canopy-comms/feedvault/internal/extractors/csv"
	"github.com/canopy-comms/feedvault/internal/extractors/plaintext"
	"github.com/canopy-comms/feedvault/internal/extractors/rawtext"
)

// cliStubEmbedder returns a fixed vector for every text so command
// tests never need a live embedding backend.
type cliStubEmbedder struct{}

func (cliStubEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	return []float32{1, 0, 0}, nil
}

func (e cliStubEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

func (cliStubEmbedder) Dimensions() int              { return 3 }
func (cliStubEmbedder) ModelName() string            { return "stub-model" }
func (cliStubEmbedder) Ping(_ context.Context) error { return nil }
func (cliStubEmbedder) Close() error                 { return nil }

// testStore is the in-memory feed store behind the wired services, so
// tests can seed states the commands cannot produce directly.
var testStore *memory.FeedStore

// setupTestServices wires the commands to in-memory implementations
// and returns a cleanup that restores the previous globals.
func setupTestServices() func() {
	oldIngestion := ingestionService
	oldFeeds := feedService
	oldSearch := searchService
	oldOwner := ownerID

	audit := memory.NewAuditStore()
	store := memory.NewFeedStore(audit)
	registry := extractors.NewRegistry(plaintext.New(), csv.New(), rawtext.New())
	conceptEx := concepts.New()
	locks := services.NewFeedLocks()
	embedder := cliStubEmbedder{}

	ingestionService = services.NewIngestionService(
		store, registry, conceptEx, embedder, nil, locks, services.IngestionConfig{})
	feedService = services.NewFeedService(store, audit, conceptEx, nil, locks)
	searchService = services.NewSearchService(store, embedder, nil)
	ownerID = "test-owner"
	testStore = store

	return func() {
		ingestionService = oldIngestion
		feedService = oldFeeds
		searchService = oldSearch
		ownerID = oldOwner
		testStore = nil
	}
}
