package driven

import "context"

// EmbeddingService generates vector embeddings from text.
//
// Unavailability is a first-class outcome, not a fatal one: adapters
// return domain.ErrEmbeddingUnavailable when the model cannot be
// reached or times out, and callers store the feed without a semantic
// index rather than failing ingestion. Retry policy, if any, belongs
// to the caller, never to the adapter.
//
// Implementations may include:
//   - Ollama (all-minilm, nomic-embed-text)
//   - OpenAI-compatible endpoints (text-embedding-3-small)
//   - Mocks for tests
type EmbeddingService interface {
	// Embed generates a vector embedding for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts. Results
	// correspond positionally to the input; no other ordering is
	// guaranteed. More efficient than calling Embed in a loop when
	// the backend supports batching.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding vector size (e.g. 384).
	// Fixed for the lifetime of a deployment.
	Dimensions() int

	// ModelName returns the name of the embedding model being used.
	ModelName() string

	// Ping validates the service is reachable with a lightweight request.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}
