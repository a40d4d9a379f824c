package driven

import (
	"context"
	"time"

	"github.com/canopy-comms/feedvault/internal/core/domain"
)

// AuditStore is the append-only deletion ledger. Records are written
// once and never updated or deleted through this interface; retention
// is a separately authorised process outside this system.
type AuditStore interface {
	// Append writes one deletion record. Each deletion is a distinct
	// event; idempotence is not required.
	Append(ctx context.Context, rec domain.DeletionRecord) error

	// ListForFeed returns all deletion records referencing a feed,
	// newest first.
	ListForFeed(ctx context.Context, feedID string) ([]domain.DeletionRecord, error)

	// ListForActor returns deletion records by an actor within
	// [from, to], newest first. Zero times mean unbounded.
	ListForActor(ctx context.Context, actor string, from, to time.Time) ([]domain.DeletionRecord, error)
}
