package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/canopy-comms/feedvault/internal/concepts"
	"github.com/canopy-comms/feedvault/internal/core/domain"
	"github.com/canopy-comms/feedvault/internal/core/ports/driven"
	"github.com/canopy-comms/feedvault/internal/core/ports/driving"
	"github.com/canopy-comms/feedvault/internal/extractors"
	"github.com/canopy-comms/feedvault/internal/logger"
)

// Ensure IngestionService implements the interface.
var _ driving.IngestionService = (*IngestionService)(nil)

// Default pipeline configuration.
const (
	// DefaultMaxPayloadBytes is the upload size ceiling (100 MiB).
	// A payload of exactly this size is accepted; one byte over is
	// rejected before any parsing begins.
	DefaultMaxPayloadBytes = 100 << 20

	// DefaultSimilarityThreshold classifies a re-ingestion as
	// unchanged when cosine similarity is at or above it.
	DefaultSimilarityThreshold = 0.95

	// DefaultEmbedTimeout bounds the embedding call. A timeout is
	// treated as unavailability, not as a retryable error.
	DefaultEmbedTimeout = 30 * time.Second
)

// IngestionConfig holds pipeline tuning. Passed explicitly at
// construction so tests can run independently configured pipelines.
type IngestionConfig struct {
	// MaxPayloadBytes is the upload size ceiling.
	MaxPayloadBytes int64

	// SimilarityThreshold is the unchanged/changed boundary. The
	// unchanged side is a closed interval: similarity equal to the
	// threshold skips reprocessing.
	SimilarityThreshold float64

	// EmbedTimeout bounds each embedding request.
	EmbedTimeout time.Duration
}

func (c *IngestionConfig) applyDefaults() {
	if c.MaxPayloadBytes == 0 {
		c.MaxPayloadBytes = DefaultMaxPayloadBytes
	}
	if c.SimilarityThreshold == 0 {
		c.SimilarityThreshold = DefaultSimilarityThreshold
	}
	if c.EmbedTimeout == 0 {
		c.EmbedTimeout = DefaultEmbedTimeout
	}
}

// IngestionService runs the pipeline: extract content, extract
// concepts, embed, and drive the per-feed versioning state machine.
type IngestionService struct {
	feedStore driven.FeedStore
	registry  *extractors.Registry
	conceptEx *concepts.Extractor
	embedder  driven.EmbeddingService
	vectors   driven.VectorIndex
	locks     *FeedLocks
	cfg       IngestionConfig
}

// NewIngestionService creates a new ingestion service. The embedder
// and vector index are optional; without an embedder every feed is
// stored degraded (no semantic index).
func NewIngestionService(
	feedStore driven.FeedStore,
	registry *extractors.Registry,
	conceptEx *concepts.Extractor,
	embedder driven.EmbeddingService,
	vectors driven.VectorIndex,
	locks *FeedLocks,
	cfg IngestionConfig,
) *IngestionService {
	cfg.applyDefaults()
	return &IngestionService{
		feedStore: feedStore,
		registry:  registry,
		conceptEx: conceptEx,
		embedder:  embedder,
		vectors:   vectors,
		locks:     locks,
		cfg:       cfg,
	}
}

// SubmitFile ingests an uploaded file. The source kind comes from the
// submission override or the file extension; unsupported kinds are
// rejected outright, never best-effort parsed.
func (s *IngestionService) SubmitFile(ctx context.Context, sub driving.FileSubmission) (*driving.IngestResult, error) {
	if sub.OwnerID == "" || sub.Name == "" {
		return nil, fmt.Errorf("%w: owner and name required", domain.ErrInvalidInput)
	}

	kind := sub.Kind
	if kind == "" {
		detected, err := extractors.DetectKind(sub.Name)
		if err != nil {
			return nil, err
		}
		kind = detected
	}
	if !kind.Valid() {
		return nil, domain.ErrUnsupportedType
	}

	return s.ingest(ctx, sub.OwnerID, sub.Name, sub.Description, kind, sub.Payload)
}

// SubmitText ingests directly entered text.
func (s *IngestionService) SubmitText(ctx context.Context, sub driving.TextSubmission) (*driving.IngestResult, error) {
	if sub.OwnerID == "" || sub.Name == "" {
		return nil, fmt.Errorf("%w: owner and name required", domain.ErrInvalidInput)
	}
	if sub.Content == "" {
		return nil, fmt.Errorf("%w: content required", domain.ErrInvalidInput)
	}

	return s.ingest(ctx, sub.OwnerID, sub.Name, sub.Description, domain.SourceKindRawText, []byte(sub.Content))
}

// ingest runs the pipeline under the feed identity's lock.
//
//nolint:gocyclo // the versioning state machine is one sequential unit
func (s *IngestionService) ingest(
	ctx context.Context,
	ownerID, name, description string,
	kind domain.SourceKind,
	payload []byte,
) (*driving.IngestResult, error) {
	// Size ceiling check runs before any extractor touches the
	// payload. Exactly at the ceiling is accepted.
	if int64(len(payload)) > s.cfg.MaxPayloadBytes {
		return nil, fmt.Errorf("%w: %d bytes exceeds ceiling of %d",
			domain.ErrPayloadTooLarge, len(payload), s.cfg.MaxPayloadBytes)
	}

	key := identityKey(ownerID, name)
	if !s.locks.TryLock(key) {
		return nil, domain.ErrConflict
	}
	defer s.locks.Unlock(key)

	extractor, err := s.registry.Get(kind)
	if err != nil {
		return nil, err
	}

	// Extraction failures abort the attempt; nothing is persisted.
	extracted, err := extractor.Extract(ctx, payload)
	if err != nil {
		return nil, fmt.Errorf("extracting content: %w", err)
	}

	existing, err := s.feedStore.GetFeedByName(ctx, ownerID, name)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("looking up feed: %w", err)
	}
	if existing != nil && existing.Deleted {
		// A deleted identity stays reserved until restored or purged.
		return nil, domain.ErrAlreadyDeleted
	}

	feedID := uuid.New().String()
	if existing != nil {
		feedID = existing.ID
	}

	entries, conceptMap := s.conceptEx.Extract(feedID, extracted.Text)

	embedding, modelName := s.embed(ctx, extracted.Text)
	degraded := embedding == nil

	originalText := ""
	if kind != domain.SourceKindSpreadsheet {
		originalText = string(payload)
	}

	now := time.Now().UTC()

	if existing == nil {
		feed := &domain.Feed{
			ID:             feedID,
			OwnerID:        ownerID,
			Name:           name,
			Description:    description,
			SourceKind:     kind,
			SizeBytes:      int64(len(payload)),
			ProcessedText:  extracted.Text,
			OriginalText:   originalText,
			Structure:      extracted.Structure,
			Embedding:      embedding,
			ConceptMap:     conceptMap,
			Version:        1,
			EmbeddingModel: modelName,
			CreatedAt:      now,
			UpdatedAt:      now,
		}

		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := s.feedStore.CreateFeed(ctx, feed, entries); err != nil {
			return nil, fmt.Errorf("creating feed: %w", err)
		}

		s.syncVectorIndex(ctx, feedID, embedding)
		logger.Info("Created feed %s (%s) version 1, degraded=%t", name, feedID, degraded)

		return &driving.IngestResult{
			FeedID:   feedID,
			Name:     name,
			Version:  1,
			Outcome:  driving.OutcomeCreated,
			Degraded: degraded,
		}, nil
	}

	// Re-ingestion: compare against the stored embedding. When either
	// vector is unavailable, equivalence cannot be proven and the
	// change is committed to preserve history.
	similarity, known := domain.Cosine(embedding, existing.Embedding)
	if known && similarity >= s.cfg.SimilarityThreshold {
		logger.Info("Feed %s unchanged (similarity %.4f), skipping reprocess", name, similarity)
		return &driving.IngestResult{
			FeedID:          existing.ID,
			Name:            name,
			Version:         existing.Version,
			Outcome:         driving.OutcomeUnchanged,
			Similarity:      similarity,
			SimilarityKnown: true,
			Degraded:        existing.Embedding == nil,
		}, nil
	}

	snapshot := domain.FeedVersion{
		FeedID:        existing.ID,
		Version:       existing.Version,
		ProcessedText: existing.ProcessedText,
		Embedding:     existing.Embedding,
		Structure:     existing.Structure,
		ConceptMap:    existing.ConceptMap,
		CreatedBy:     ownerID,
		CreatedAt:     now,
	}

	updated := *existing
	updated.Description = orDefault(description, existing.Description)
	updated.SourceKind = kind
	updated.SizeBytes = int64(len(payload))
	updated.ProcessedText = extracted.Text
	updated.OriginalText = originalText
	updated.Structure = extracted.Structure
	updated.PreviousEmbedding = existing.Embedding
	updated.Embedding = embedding
	updated.ConceptMap = conceptMap
	updated.Version = existing.Version + 1
	updated.EmbeddingModel = modelName
	updated.UpdatedAt = now

	// Last cancellation point: once the commit runs, the operation is
	// no longer cancellable through the public interface.
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.feedStore.CommitVersion(ctx, snapshot, &updated, entries); err != nil {
		return nil, fmt.Errorf("committing version: %w", err)
	}

	s.syncVectorIndex(ctx, updated.ID, embedding)
	logger.Info("Committed feed %s version %d, degraded=%t", name, updated.Version, degraded)

	return &driving.IngestResult{
		FeedID:          updated.ID,
		Name:            name,
		Version:         updated.Version,
		Outcome:         driving.OutcomeUpdated,
		Similarity:      similarity,
		SimilarityKnown: known,
		Degraded:        degraded,
	}, nil
}

// embed generates the embedding, mapping every failure mode
// (unconfigured service, timeout, transport error) to a nil vector.
// Reindex re-embeds the owner's active feeds that were stored without
// a semantic index, in one batch call. Feeds whose identity lock is
// held are skipped; the caller can run another pass later.
func (s *IngestionService) Reindex(ctx context.Context, ownerID string) (*driving.ReindexResult, error) {
	if ownerID == "" {
		return nil, fmt.Errorf("%w: owner required", domain.ErrInvalidInput)
	}
	if s.embedder == nil {
		return nil, domain.ErrEmbeddingUnavailable
	}

	feeds, err := s.feedStore.ListFeeds(ctx, ownerID, driven.FeedFilter{})
	if err != nil {
		return nil, fmt.Errorf("listing feeds: %w", err)
	}

	result := &driving.ReindexResult{}
	var locked []domain.Feed
	for _, feed := range feeds {
		if feed.Embedding != nil {
			continue
		}
		result.Scanned++
		key := identityKey(ownerID, feed.Name)
		if !s.locks.TryLock(key) {
			result.Skipped++
			continue
		}
		defer s.locks.Unlock(key)
		locked = append(locked, feed)
	}
	if len(locked) == 0 {
		return result, nil
	}

	texts := make([]string, len(locked))
	for i, feed := range locked {
		texts[i] = feed.ProcessedText
	}

	embedCtx, cancel := context.WithTimeout(ctx, s.cfg.EmbedTimeout)
	defer cancel()
	embeddings, err := s.embedder.EmbedBatch(embedCtx, texts)
	if err != nil {
		return nil, fmt.Errorf("embedding batch: %w", err)
	}
	if len(embeddings) != len(locked) {
		return nil, fmt.Errorf("%w: batch returned %d vectors for %d feeds",
			domain.ErrEmbeddingUnavailable, len(embeddings), len(locked))
	}

	model := s.embedder.ModelName()
	for i, feed := range locked {
		if err := s.feedStore.SetEmbedding(ctx, feed.ID, embeddings[i], model); err != nil {
			return result, fmt.Errorf("storing embedding for %s: %w", feed.ID, err)
		}
		s.syncVectorIndex(ctx, feed.ID, embeddings[i])
		result.Indexed++
	}
	logger.Info("Reindexed %d of %d degraded feeds for %s", result.Indexed, result.Scanned, ownerID)
	return result, nil
}

func (s *IngestionService) embed(ctx context.Context, text string) ([]float32, string) {
	if s.embedder == nil {
		return nil, ""
	}

	embedCtx, cancel := context.WithTimeout(ctx, s.cfg.EmbedTimeout)
	defer cancel()

	embedding, err := s.embedder.Embed(embedCtx, text)
	if err != nil {
		logger.Warn("Embedding unavailable: %v", err)
		return nil, ""
	}
	return embedding, s.embedder.ModelName()
}

// syncVectorIndex mirrors the current embedding into the optional
// external index. Index failures are logged, never fatal; the store
// remains authoritative.
func (s *IngestionService) syncVectorIndex(ctx context.Context, feedID string, embedding []float32) {
	if s.vectors == nil {
		return
	}
	var err error
	if embedding == nil {
		err = s.vectors.Delete(ctx, feedID)
	} else {
		err = s.vectors.Upsert(ctx, feedID, embedding)
	}
	if err != nil {
		logger.Warn("Vector index sync failed for %s: %v", feedID, err)
	}
}

func identityKey(ownerID, name string) string {
	return ownerID + "/" + name
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
