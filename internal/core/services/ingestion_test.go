package services

import (
	"bytes"
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canopy-comms/feedvault/internal/adapters/driven/storage/memory"
	"github.com/canopy-comms/feedvault/internal/concepts"
	"github.com/canopy-comms/feedvault/internal/core/domain"
	"github.com/canopy-comms/feedvault/internal/core/ports/driving"
	"github.com/canopy-comms/feedvault/internal/extractors"
	"github.com/canopy-comms/feedvault/internal/extractors/plaintext"
	"github.com/canopy-comms/feedvault/internal/extractors/rawtext"
)

type ingestFixture struct {
	svc      *IngestionService
	store    *memory.FeedStore
	audit    *memory.AuditStore
	embedder *stubEmbedder
	index    *recordingIndex
	locks    *FeedLocks
	counting *countingExtractor
}

func newIngestFixture(t *testing.T, cfg IngestionConfig) *ingestFixture {
	t.Helper()

	audit := memory.NewAuditStore()
	store := memory.NewFeedStore(audit)
	embedder := newStubEmbedder()
	index := newRecordingIndex()
	locks := NewFeedLocks()
	counting := &countingExtractor{inner: plaintext.New()}
	registry := extractors.NewRegistry(counting, rawtext.New())

	svc := NewIngestionService(store, registry, concepts.New(), embedder, index, locks, cfg)
	return &ingestFixture{
		svc:      svc,
		store:    store,
		audit:    audit,
		embedder: embedder,
		index:    index,
		locks:    locks,
		counting: counting,
	}
}

func TestIngestionService_SubmitFile_Creates(t *testing.T) {
	fx := newIngestFixture(t, IngestionConfig{})
	ctx := context.Background()

	res, err := fx.svc.SubmitFile(ctx, driving.FileSubmission{
		OwnerID: "alice",
		Name:    "notes.txt",
		Payload: []byte("quarterly planning notes"),
	})
	require.NoError(t, err)
	assert.Equal(t, driving.OutcomeCreated, res.Outcome)
	assert.Equal(t, 1, res.Version)
	assert.False(t, res.Degraded)

	feed, err := fx.store.GetFeed(ctx, res.FeedID)
	require.NoError(t, err)
	assert.Equal(t, domain.SourceKindPlainText, feed.SourceKind)
	assert.Equal(t, "quarterly planning notes", feed.ProcessedText)
	assert.Equal(t, "stub-model", feed.EmbeddingModel)
	assert.True(t, fx.index.has(res.FeedID))

	// Version 1 has no history yet; snapshots record prior states.
	versions, err := fx.store.ListVersions(ctx, res.FeedID)
	require.NoError(t, err)
	assert.Empty(t, versions)
}

func TestIngestionService_SubmitFile_KindFromExtension(t *testing.T) {
	fx := newIngestFixture(t, IngestionConfig{})

	_, err := fx.svc.SubmitFile(context.Background(), driving.FileSubmission{
		OwnerID: "alice",
		Name:    "report.exe",
		Payload: []byte("binary"),
	})
	assert.ErrorIs(t, err, domain.ErrUnsupportedType)
}

func TestIngestionService_SubmitText(t *testing.T) {
	fx := newIngestFixture(t, IngestionConfig{})
	ctx := context.Background()

	res, err := fx.svc.SubmitText(ctx, driving.TextSubmission{
		OwnerID: "alice",
		Name:    "pasted",
		Content: "  some pasted content  ",
	})
	require.NoError(t, err)
	assert.Equal(t, driving.OutcomeCreated, res.Outcome)

	feed, err := fx.store.GetFeed(ctx, res.FeedID)
	require.NoError(t, err)
	assert.Equal(t, domain.SourceKindRawText, feed.SourceKind)
	assert.Equal(t, "some pasted content", feed.ProcessedText)
}

func TestIngestionService_SubmitText_EmptyContent(t *testing.T) {
	fx := newIngestFixture(t, IngestionConfig{})

	_, err := fx.svc.SubmitText(context.Background(), driving.TextSubmission{
		OwnerID: "alice",
		Name:    "empty",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestIngestionService_PayloadCeiling(t *testing.T) {
	fx := newIngestFixture(t, IngestionConfig{MaxPayloadBytes: 64})
	ctx := context.Background()

	// Exactly at the ceiling is accepted.
	atLimit := bytes.Repeat([]byte("a"), 64)
	_, err := fx.svc.SubmitFile(ctx, driving.FileSubmission{
		OwnerID: "alice", Name: "exact.txt", Payload: atLimit,
	})
	require.NoError(t, err)

	// One byte over is rejected before extraction runs.
	before := fx.counting.callCount()
	over := bytes.Repeat([]byte("a"), 65)
	_, err = fx.svc.SubmitFile(ctx, driving.FileSubmission{
		OwnerID: "alice", Name: "over.txt", Payload: over,
	})
	assert.ErrorIs(t, err, domain.ErrPayloadTooLarge)
	assert.Equal(t, before, fx.counting.callCount())
}

func TestIngestionService_Reingest_Unchanged(t *testing.T) {
	fx := newIngestFixture(t, IngestionConfig{})
	ctx := context.Background()
	fx.embedder.set("draft one", []float32{1, 0, 0})
	fx.embedder.set("draft one, barely edited", []float32{0.999, 0.04, 0})

	first, err := fx.svc.SubmitFile(ctx, driving.FileSubmission{
		OwnerID: "alice", Name: "doc.txt", Payload: []byte("draft one"),
	})
	require.NoError(t, err)

	second, err := fx.svc.SubmitFile(ctx, driving.FileSubmission{
		OwnerID: "alice", Name: "doc.txt", Payload: []byte("draft one, barely edited"),
	})
	require.NoError(t, err)
	assert.Equal(t, driving.OutcomeUnchanged, second.Outcome)
	assert.Equal(t, 1, second.Version)
	assert.True(t, second.SimilarityKnown)
	assert.Greater(t, second.Similarity, 0.95)

	// No mutation: stored text is still the first draft.
	feed, err := fx.store.GetFeed(ctx, first.FeedID)
	require.NoError(t, err)
	assert.Equal(t, "draft one", feed.ProcessedText)
	assert.Equal(t, 1, feed.Version)
}

func TestIngestionService_Reingest_Changed(t *testing.T) {
	fx := newIngestFixture(t, IngestionConfig{})
	ctx := context.Background()
	fx.embedder.set("original text", []float32{1, 0, 0})
	fx.embedder.set("completely different subject", []float32{0, 1, 0})

	first, err := fx.svc.SubmitFile(ctx, driving.FileSubmission{
		OwnerID: "alice", Name: "doc.txt", Payload: []byte("original text"),
	})
	require.NoError(t, err)

	second, err := fx.svc.SubmitFile(ctx, driving.FileSubmission{
		OwnerID: "alice", Name: "doc.txt", Payload: []byte("completely different subject"),
	})
	require.NoError(t, err)
	assert.Equal(t, driving.OutcomeUpdated, second.Outcome)
	assert.Equal(t, 2, second.Version)
	assert.Equal(t, first.FeedID, second.FeedID)

	// The prior state is snapshotted as version 1.
	snap, err := fx.store.GetVersion(ctx, first.FeedID, 1)
	require.NoError(t, err)
	assert.Equal(t, "original text", snap.ProcessedText)
	assert.Equal(t, []float32{1, 0, 0}, snap.Embedding)

	feed, err := fx.store.GetFeed(ctx, first.FeedID)
	require.NoError(t, err)
	assert.Equal(t, 2, feed.Version)
	assert.Equal(t, "completely different subject", feed.ProcessedText)
	assert.Equal(t, []float32{1, 0, 0}, feed.PreviousEmbedding)
}

func TestIngestionService_ThresholdBoundary(t *testing.T) {
	// cos({1,0,0}, {1,1,0}) is exactly 1/sqrt(2), computed the same
	// way the engine computes it, so the threshold can be set to the
	// boundary bit-for-bit. The threshold is a closed interval:
	// exactly at it means unchanged.
	boundary := 1 / math.Sqrt(2)
	fx := newIngestFixture(t, IngestionConfig{SimilarityThreshold: boundary})
	ctx := context.Background()
	fx.embedder.set("base", []float32{1, 0, 0})
	fx.embedder.set("at threshold", []float32{1, 1, 0})
	fx.embedder.set("below threshold", []float32{1, 2, 0})

	_, err := fx.svc.SubmitText(ctx, driving.TextSubmission{
		OwnerID: "alice", Name: "doc", Content: "base",
	})
	require.NoError(t, err)

	res, err := fx.svc.SubmitText(ctx, driving.TextSubmission{
		OwnerID: "alice", Name: "doc", Content: "at threshold",
	})
	require.NoError(t, err)
	assert.Equal(t, driving.OutcomeUnchanged, res.Outcome)
	assert.InDelta(t, boundary, res.Similarity, 1e-9)

	res, err = fx.svc.SubmitText(ctx, driving.TextSubmission{
		OwnerID: "alice", Name: "doc", Content: "below threshold",
	})
	require.NoError(t, err)
	assert.Equal(t, driving.OutcomeUpdated, res.Outcome)
	assert.Equal(t, 2, res.Version)
}

func TestIngestionService_DegradedWhenEmbedderFails(t *testing.T) {
	fx := newIngestFixture(t, IngestionConfig{})
	ctx := context.Background()
	fx.embedder.err = domain.ErrEmbeddingUnavailable

	res, err := fx.svc.SubmitFile(ctx, driving.FileSubmission{
		OwnerID: "alice", Name: "doc.txt", Payload: []byte("content"),
	})
	require.NoError(t, err)
	assert.True(t, res.Degraded)

	feed, err := fx.store.GetFeed(ctx, res.FeedID)
	require.NoError(t, err)
	assert.Nil(t, feed.Embedding)
	assert.Empty(t, feed.EmbeddingModel)
	assert.False(t, fx.index.has(res.FeedID))
}

func TestIngestionService_DegradedReingestCommitsVersion(t *testing.T) {
	// With either vector missing, equivalence cannot be proven, so
	// the change is committed rather than skipped.
	fx := newIngestFixture(t, IngestionConfig{})
	ctx := context.Background()

	res, err := fx.svc.SubmitFile(ctx, driving.FileSubmission{
		OwnerID: "alice", Name: "doc.txt", Payload: []byte("content"),
	})
	require.NoError(t, err)

	fx.embedder.err = domain.ErrEmbeddingUnavailable
	res2, err := fx.svc.SubmitFile(ctx, driving.FileSubmission{
		OwnerID: "alice", Name: "doc.txt", Payload: []byte("content"),
	})
	require.NoError(t, err)
	assert.Equal(t, driving.OutcomeUpdated, res2.Outcome)
	assert.Equal(t, 2, res2.Version)
	assert.False(t, res2.SimilarityKnown)
	assert.True(t, res2.Degraded)

	feed, err := fx.store.GetFeed(ctx, res.FeedID)
	require.NoError(t, err)
	assert.Nil(t, feed.Embedding)
	assert.NotNil(t, feed.PreviousEmbedding)
}

func TestIngestionService_Reindex(t *testing.T) {
	fx := newIngestFixture(t, IngestionConfig{})
	ctx := context.Background()

	// Two feeds stored during an embedding outage, one healthy.
	fx.embedder.err = domain.ErrEmbeddingUnavailable
	a, err := fx.svc.SubmitFile(ctx, driving.FileSubmission{
		OwnerID: "alice", Name: "a.txt", Payload: []byte("alpha"),
	})
	require.NoError(t, err)
	b, err := fx.svc.SubmitFile(ctx, driving.FileSubmission{
		OwnerID: "alice", Name: "b.txt", Payload: []byte("bravo"),
	})
	require.NoError(t, err)

	fx.embedder.err = nil
	healthy, err := fx.svc.SubmitFile(ctx, driving.FileSubmission{
		OwnerID: "alice", Name: "c.txt", Payload: []byte("charlie"),
	})
	require.NoError(t, err)
	calls := fx.embedder.callCount()

	fx.embedder.set("alpha", []float32{0, 1, 0})
	result, err := fx.svc.Reindex(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 2, result.Scanned)
	assert.Equal(t, 2, result.Indexed)
	assert.Zero(t, result.Skipped)

	// The embedding lands without a new version or content change.
	feed, err := fx.store.GetFeed(ctx, a.FeedID)
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 1, 0}, feed.Embedding)
	assert.Equal(t, "stub-model", feed.EmbeddingModel)
	assert.Equal(t, 1, feed.Version)
	assert.Equal(t, "alpha", feed.ProcessedText)
	assert.True(t, fx.index.has(a.FeedID))
	assert.True(t, fx.index.has(b.FeedID))

	versions, err := fx.store.ListVersions(ctx, a.FeedID)
	require.NoError(t, err)
	assert.Empty(t, versions)

	// The healthy feed was not re-embedded.
	assert.Equal(t, calls+2, fx.embedder.callCount())
	_ = healthy

	// A second pass finds nothing to do.
	result, err = fx.svc.Reindex(ctx, "alice")
	require.NoError(t, err)
	assert.Zero(t, result.Scanned)
}

func TestIngestionService_Reindex_SkipsHeldIdentity(t *testing.T) {
	fx := newIngestFixture(t, IngestionConfig{})
	ctx := context.Background()

	fx.embedder.err = domain.ErrEmbeddingUnavailable
	res, err := fx.svc.SubmitFile(ctx, driving.FileSubmission{
		OwnerID: "alice", Name: "a.txt", Payload: []byte("alpha"),
	})
	require.NoError(t, err)
	fx.embedder.err = nil

	require.True(t, fx.locks.TryLock(identityKey("alice", "a.txt")))
	defer fx.locks.Unlock(identityKey("alice", "a.txt"))

	result, err := fx.svc.Reindex(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Scanned)
	assert.Zero(t, result.Indexed)
	assert.Equal(t, 1, result.Skipped)

	feed, err := fx.store.GetFeed(ctx, res.FeedID)
	require.NoError(t, err)
	assert.Nil(t, feed.Embedding)
}

func TestIngestionService_Reindex_EmbedderStillDown(t *testing.T) {
	fx := newIngestFixture(t, IngestionConfig{})
	ctx := context.Background()

	fx.embedder.err = domain.ErrEmbeddingUnavailable
	_, err := fx.svc.SubmitFile(ctx, driving.FileSubmission{
		OwnerID: "alice", Name: "a.txt", Payload: []byte("alpha"),
	})
	require.NoError(t, err)

	_, err = fx.svc.Reindex(ctx, "alice")
	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)

	_, err = fx.svc.Reindex(ctx, "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestIngestionService_VersionsMonotonic(t *testing.T) {
	fx := newIngestFixture(t, IngestionConfig{})
	ctx := context.Background()

	texts := []string{"alpha", "bravo", "charlie", "delta"}
	vecs := [][]float32{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}, {1, 1, 0}}
	for i, text := range texts {
		fx.embedder.set(text, vecs[i])
	}

	var feedID string
	for i, text := range texts {
		res, err := fx.svc.SubmitText(ctx, driving.TextSubmission{
			OwnerID: "alice", Name: "doc", Content: text,
		})
		require.NoError(t, err)
		assert.Equal(t, i+1, res.Version)
		feedID = res.FeedID
	}

	versions, err := fx.store.ListVersions(ctx, feedID)
	require.NoError(t, err)
	require.Len(t, versions, 3)
	for i, v := range versions {
		assert.Equal(t, i+1, v.Version)
	}
}

func TestIngestionService_ConflictOnHeldLock(t *testing.T) {
	fx := newIngestFixture(t, IngestionConfig{})

	require.True(t, fx.locks.TryLock("alice/doc.txt"))
	defer fx.locks.Unlock("alice/doc.txt")

	_, err := fx.svc.SubmitFile(context.Background(), driving.FileSubmission{
		OwnerID: "alice", Name: "doc.txt", Payload: []byte("content"),
	})
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestIngestionService_DeletedIdentityRejected(t *testing.T) {
	fx := newIngestFixture(t, IngestionConfig{})
	ctx := context.Background()

	res, err := fx.svc.SubmitFile(ctx, driving.FileSubmission{
		OwnerID: "alice", Name: "doc.txt", Payload: []byte("content"),
	})
	require.NoError(t, err)

	require.NoError(t, fx.store.SoftDelete(ctx, res.FeedID, domain.DeletionRecord{
		ID: "rec-1", FeedID: res.FeedID, DeletedBy: "alice",
	}))

	_, err = fx.svc.SubmitFile(ctx, driving.FileSubmission{
		OwnerID: "alice", Name: "doc.txt", Payload: []byte("new content"),
	})
	assert.ErrorIs(t, err, domain.ErrAlreadyDeleted)
}

func TestIngestionService_ExtractionFailurePersistsNothing(t *testing.T) {
	fx := newIngestFixture(t, IngestionConfig{})
	ctx := context.Background()

	// A NUL byte makes the payload undecodable as text.
	_, err := fx.svc.SubmitFile(ctx, driving.FileSubmission{
		OwnerID: "alice", Name: "doc.txt", Payload: []byte{'a', 0x00, 'b'},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrEncodingUndetected)
	assert.Zero(t, fx.embedder.callCount())

	_, err = fx.store.GetFeedByName(ctx, "alice", "doc.txt")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestIngestionService_ConceptsExtracted(t *testing.T) {
	fx := newIngestFixture(t, IngestionConfig{})
	ctx := context.Background()

	res, err := fx.svc.SubmitText(ctx, driving.TextSubmission{
		OwnerID: "alice",
		Name:    "contacts",
		Content: "Reach Jane Doe at jane.doe@example.com about invoice #42.",
	})
	require.NoError(t, err)

	entries, err := fx.store.ListConcepts(ctx, res.FeedID)
	require.NoError(t, err)

	kinds := make(map[domain.ConceptKind]bool)
	for _, e := range entries {
		kinds[e.Kind] = true
	}
	assert.True(t, kinds[domain.ConceptKindEmail])
	assert.True(t, kinds[domain.ConceptKindDocRef])

	feed, err := fx.store.GetFeed(ctx, res.FeedID)
	require.NoError(t, err)
	assert.NotEmpty(t, feed.ConceptMap)
	for _, refs := range feed.ConceptMap {
		require.NotEmpty(t, refs)
		assert.Contains(t, refs[0], res.FeedID)
	}
}

func TestIngestionService_CancelledContextBeforeCommit(t *testing.T) {
	fx := newIngestFixture(t, IngestionConfig{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := fx.svc.SubmitText(ctx, driving.TextSubmission{
		OwnerID: "alice", Name: "doc", Content: "content",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))

	_, err = fx.store.GetFeedByName(context.Background(), "alice", "doc")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
