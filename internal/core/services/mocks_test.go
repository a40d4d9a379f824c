package services

import (
	"context"
	"sync"

	"github.com/canopy-comms/feedvault/internal/core/domain"
	"github.com/canopy-comms/feedvault/internal/core/ports/driven"
)

// stubEmbedder returns canned vectors keyed by input text, so tests
// can steer the similarity comparison precisely.
type stubEmbedder struct {
	mu      sync.Mutex
	vectors map[string][]float32
	err     error
	calls   int
}

var _ driven.EmbeddingService = (*stubEmbedder)(nil)

func newStubEmbedder() *stubEmbedder {
	return &stubEmbedder{vectors: make(map[string][]float32)}
}

func (s *stubEmbedder) set(text string, vec []float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vectors[text] = vec
}

func (s *stubEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	if vec, ok := s.vectors[text]; ok {
		return vec, nil
	}
	return []float32{1, 0, 0}, nil
}

func (s *stubEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for _, t := range texts {
		vec, err := s.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out = append(out, vec)
	}
	return out, nil
}

func (s *stubEmbedder) Dimensions() int              { return 3 }
func (s *stubEmbedder) ModelName() string            { return "stub-model" }
func (s *stubEmbedder) Ping(_ context.Context) error { return s.err }
func (s *stubEmbedder) Close() error                 { return nil }

func (s *stubEmbedder) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// countingExtractor wraps another extractor and counts invocations,
// used to assert that rejected payloads never reach extraction.
type countingExtractor struct {
	inner driven.Extractor
	mu    sync.Mutex
	calls int
}

var _ driven.Extractor = (*countingExtractor)(nil)

func (c *countingExtractor) Kind() domain.SourceKind { return c.inner.Kind() }

func (c *countingExtractor) Extract(ctx context.Context, raw []byte) (*driven.ExtractResult, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	return c.inner.Extract(ctx, raw)
}

func (c *countingExtractor) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// recordingIndex captures vector index operations.
type recordingIndex struct {
	mu      sync.Mutex
	vectors map[string][]float32
}

var _ driven.VectorIndex = (*recordingIndex)(nil)

func newRecordingIndex() *recordingIndex {
	return &recordingIndex{vectors: make(map[string][]float32)}
}

func (r *recordingIndex) Upsert(_ context.Context, feedID string, embedding []float32) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.vectors[feedID] = embedding
	return nil
}

func (r *recordingIndex) Delete(_ context.Context, feedID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.vectors, feedID)
	return nil
}

func (r *recordingIndex) Search(_ context.Context, query []float32, k int) ([]driven.VectorHit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	hits := make([]driven.VectorHit, 0, len(r.vectors))
	for id, vec := range r.vectors {
		if sim, ok := domain.Cosine(query, vec); ok {
			hits = append(hits, driven.VectorHit{FeedID: id, Similarity: sim})
		}
	}
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func (r *recordingIndex) Close() error { return nil }

func (r *recordingIndex) has(feedID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.vectors[feedID]
	return ok
}
