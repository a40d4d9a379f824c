package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates an entity already exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedType indicates a source kind outside the accepted set.
	ErrUnsupportedType = errors.New("unsupported source kind")

	// ErrPayloadTooLarge indicates the upload exceeds the size ceiling.
	// Raised before any parsing begins.
	ErrPayloadTooLarge = errors.New("payload too large")

	// ErrEncodingUndetected indicates no candidate character encoding
	// decoded the input.
	ErrEncodingUndetected = errors.New("character encoding not detected")

	// ErrEmbeddingUnavailable indicates the embedding service could not
	// be reached or timed out. Ingestion still succeeds; the feed is
	// stored without a semantic index.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrConflict indicates two mutating operations overlapped on the
	// same feed identity. The losing caller must retry.
	ErrConflict = errors.New("concurrent operation on feed")

	// ErrAlreadyDeleted indicates a delete on a feed that is already
	// soft-deleted.
	ErrAlreadyDeleted = errors.New("feed already deleted")

	// ErrNotDeleted indicates a restore on a feed that is not deleted.
	ErrNotDeleted = errors.New("feed not deleted")
)
