// Package qdrant mirrors feed embeddings into a Qdrant collection for
// approximate nearest-neighbour search. The index is an optional
// acceleration layer; the SQLite store stays authoritative and search
// falls back to a cosine scan when the index is absent or unhealthy.
package qdrant

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"

	"github.com/canopy-comms/feedvault/internal/core/domain"
	"github.com/canopy-comms/feedvault/internal/core/ports/driven"
)

// Ensure Index implements the interface.
var _ driven.VectorIndex = (*Index)(nil)

// DefaultCollection is the Qdrant collection holding feed vectors.
const DefaultCollection = "feedvault_feeds"

// Config holds Qdrant connection settings.
type Config struct {
	// Host is the Qdrant host (default "localhost").
	Host string

	// Port is the gRPC port (default 6334).
	Port int

	// Collection is the collection name (default DefaultCollection).
	Collection string

	// Dimensions is the vector size the collection is created with.
	Dimensions int
}

func (c *Config) applyDefaults() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 6334
	}
	if c.Collection == "" {
		c.Collection = DefaultCollection
	}
	if c.Dimensions == 0 {
		c.Dimensions = 384
	}
}

// Index is a Qdrant-backed vector index keyed by feed ID.
type Index struct {
	client     *qdrant.Client
	collection string
	dimensions int
}

// NewIndex connects to Qdrant and ensures the feed collection exists.
// Creation is idempotent; an existing collection is left untouched.
func NewIndex(ctx context.Context, cfg Config) (*Index, error) {
	cfg.applyDefaults()

	client, err := qdrant.NewClient(&qdrant.Config{
		Host: cfg.Host,
		Port: cfg.Port,
	})
	if err != nil {
		return nil, fmt.Errorf("creating qdrant client: %w", err)
	}

	idx := &Index{
		client:     client,
		collection: cfg.Collection,
		dimensions: cfg.Dimensions,
	}
	if err := idx.ensureCollection(ctx); err != nil {
		client.Close()
		return nil, err
	}
	return idx, nil
}

func (i *Index) ensureCollection(ctx context.Context) error {
	collections, err := i.client.ListCollections(ctx)
	if err != nil {
		return fmt.Errorf("listing collections: %w", err)
	}
	for _, name := range collections {
		if name == i.collection {
			return nil
		}
	}

	err = i.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: i.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(i.dimensions),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("creating collection %q: %w", i.collection, err)
	}
	return nil
}

// Upsert inserts or replaces the vector for a feed.
func (i *Index) Upsert(ctx context.Context, feedID string, embedding []float32) error {
	if len(embedding) != i.dimensions {
		return fmt.Errorf("%w: vector has %d dimensions, collection expects %d",
			domain.ErrInvalidInput, len(embedding), i.dimensions)
	}

	_, err := i.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: i.collection,
		Points: []*qdrant.PointStruct{{
			Id:      qdrant.NewIDUUID(feedID),
			Vectors: qdrant.NewVectors(embedding...),
		}},
	})
	if err != nil {
		return fmt.Errorf("upserting vector for feed %s: %w", feedID, err)
	}
	return nil
}

// Delete removes a feed's vector from the index.
func (i *Index) Delete(ctx context.Context, feedID string) error {
	_, err := i.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: i.collection,
		Points: qdrant.NewPointsSelector(
			qdrant.NewIDUUID(feedID),
		),
	})
	if err != nil {
		return fmt.Errorf("deleting vector for feed %s: %w", feedID, err)
	}
	return nil
}

// Search finds the k nearest neighbours to the query vector.
func (i *Index) Search(ctx context.Context, query []float32, k int) ([]driven.VectorHit, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive", domain.ErrInvalidInput)
	}

	results, err := i.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: i.collection,
		Query:          qdrant.NewQuery(query...),
		Limit:          qdrant.PtrOf(uint64(k)),
	})
	if err != nil {
		return nil, fmt.Errorf("querying index: %w", err)
	}

	hits := make([]driven.VectorHit, 0, len(results))
	for _, point := range results {
		hits = append(hits, driven.VectorHit{
			FeedID:     point.Id.GetUuid(),
			Similarity: float64(point.Score),
		})
	}
	return hits, nil
}

// Close releases the client connection.
func (i *Index) Close() error {
	return i.client.Close()
}
