// feedvault ingests text, tabular, and spreadsheet uploads into a
// versioned local store with semantic change detection and search.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/canopy-comms/feedvault/internal/adapters/driven/config/file"
	"github.com/canopy-comms/feedvault/internal/adapters/driven/embedding/ollama"
	"github.com/canopy-comms/feedvault/internal/adapters/driven/embedding/openai"
	"github.com/canopy-comms/feedvault/internal/adapters/driven/storage/sqlite"
	"github.com/canopy-comms/feedvault/internal/adapters/driven/vectorindex/qdrant"
	"github.com/canopy-comms/feedvault/internal/adapters/driving/cli"
	"github.com/canopy-comms/feedvault/internal/concepts"
	"github.com/canopy-comms/feedvault/internal/core/ports/driven"
	"github.com/canopy-comms/feedvault/internal/core/services"
	"github.com/canopy-comms/feedvault/internal/extractors"
	"github.com/canopy-comms/feedvault/internal/extractors/csv"
	"github.com/canopy-comms/feedvault/internal/extractors/plaintext"
	"github.com/canopy-comms/feedvault/internal/extractors/rawtext"
	"github.com/canopy-comms/feedvault/internal/extractors/spreadsheet"
	"github.com/canopy-comms/feedvault/internal/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// A .env in the working directory is a convenience for local
	// development; its absence is not an error.
	_ = godotenv.Load()

	configStore, err := file.NewConfigStore(os.Getenv("FEEDVAULT_CONFIG_DIR"))
	if err != nil {
		return fmt.Errorf("failed to open config: %w", err)
	}

	store, err := sqlite.NewStore(os.Getenv("FEEDVAULT_DATA_DIR"))
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer store.Close()

	embedder := buildEmbedder(configStore)
	defer embedder.Close()

	// A typed-nil *qdrant.Index must not reach the services as a
	// non-nil interface.
	var vectors driven.VectorIndex
	if index := buildVectorIndex(configStore, embedder.Dimensions()); index != nil {
		vectors = index
		defer index.Close()
	}

	registry := extractors.NewRegistry(
		plaintext.New(),
		csv.New(),
		spreadsheet.New(),
		rawtext.New(),
	)
	conceptEx := concepts.New()
	locks := services.NewFeedLocks()

	ingestCfg := services.IngestionConfig{}
	if mb := configStore.GetInt("ingest.max_payload_mb"); mb > 0 {
		ingestCfg.MaxPayloadBytes = int64(mb) << 20
	}
	if threshold := configStore.GetFloat("ingest.similarity_threshold"); threshold > 0 {
		ingestCfg.SimilarityThreshold = threshold
	}

	ingestion := services.NewIngestionService(
		store.FeedStore(), registry, conceptEx, embedder, vectors, locks, ingestCfg)
	feeds := services.NewFeedService(
		store.FeedStore(), store.AuditStore(), conceptEx, vectors, locks)
	search := services.NewSearchService(store.FeedStore(), embedder, vectors)

	cli.SetServices(ingestion, feeds, search, configStore)
	return cli.Execute()
}

// buildEmbedder selects the embedding backend from configuration.
// The default is a local Ollama instance; an OpenAI-compatible
// endpoint is used when an API key is configured.
func buildEmbedder(cfg driven.ConfigStore) driven.EmbeddingService {
	provider := cfg.GetString("embedding.provider")
	if provider == "" && apiKey(cfg) != "" {
		provider = "openai"
	}

	if provider == "openai" {
		svc, err := openai.NewEmbeddingService(openai.Config{
			APIKey:     apiKey(cfg),
			BaseURL:    cfg.GetString("embedding.base_url"),
			Model:      cfg.GetString("embedding.model"),
			Dimensions: cfg.GetInt("embedding.dimensions"),
		})
		if err == nil {
			return svc
		}
		logger.Warn("openai embedder unavailable, falling back to ollama: %v", err)
	}

	return ollama.NewEmbeddingService(ollama.Config{
		BaseURL:    cfg.GetString("embedding.base_url"),
		Model:      cfg.GetString("embedding.model"),
		Dimensions: cfg.GetInt("embedding.dimensions"),
	})
}

func apiKey(cfg driven.ConfigStore) string {
	if key := os.Getenv("FEEDVAULT_OPENAI_API_KEY"); key != "" {
		return key
	}
	return cfg.GetString("embedding.api_key")
}

// buildVectorIndex connects to Qdrant when configured. Without an
// index the pipeline falls back to linear similarity scans, which is
// fine for small stores.
func buildVectorIndex(cfg driven.ConfigStore, dimensions int) *qdrant.Index {
	host := cfg.GetString("index.host")
	if host == "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	index, err := qdrant.NewIndex(ctx, qdrant.Config{
		Host:       host,
		Port:       cfg.GetInt("index.port"),
		Collection: cfg.GetString("index.collection"),
		Dimensions: dimensions,
	})
	if err != nil {
		logger.Warn("vector index unavailable, using linear scans: %v", err)
		return nil
	}
	return index
}
