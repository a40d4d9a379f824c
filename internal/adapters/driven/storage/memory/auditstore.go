package memory

import (
	"context"
	"sync"
	"time"

	"github.com/canopy-comms/feedvault/internal/core/domain"
	"github.com/canopy-comms/feedvault/internal/core/ports/driven"
)

// Ensure AuditStore implements the interface.
var _ driven.AuditStore = (*AuditStore)(nil)

// AuditStore is an in-memory implementation of driven.AuditStore.
type AuditStore struct {
	mu      sync.RWMutex
	records []domain.DeletionRecord

	// FailAppend forces append errors, for testing that a failed
	// ledger write aborts the soft-delete.
	FailAppend error
}

// NewAuditStore creates a new in-memory audit store.
func NewAuditStore() *AuditStore {
	return &AuditStore{}
}

// Append writes one deletion record.
func (s *AuditStore) Append(_ context.Context, rec domain.DeletionRecord) error {
	return s.append(rec)
}

// append takes the audit lock itself so FeedStore can call it inside
// its own critical section without ordering concerns.
func (s *AuditStore) append(rec domain.DeletionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailAppend != nil {
		return s.FailAppend
	}
	s.records = append(s.records, rec)
	return nil
}

// ListForFeed returns deletion records for a feed, newest first.
func (s *AuditStore) ListForFeed(_ context.Context, feedID string) ([]domain.DeletionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.DeletionRecord
	for i := len(s.records) - 1; i >= 0; i-- {
		if s.records[i].FeedID == feedID {
			result = append(result, s.records[i])
		}
	}
	return result, nil
}

// ListForActor returns records by an actor within [from, to].
func (s *AuditStore) ListForActor(
	_ context.Context,
	actor string,
	from, to time.Time,
) ([]domain.DeletionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.DeletionRecord
	for i := len(s.records) - 1; i >= 0; i-- {
		rec := s.records[i]
		if rec.DeletedBy != actor {
			continue
		}
		if !from.IsZero() && rec.DeletedAt.Before(from) {
			continue
		}
		if !to.IsZero() && rec.DeletedAt.After(to) {
			continue
		}
		result = append(result, rec)
	}
	return result, nil
}
