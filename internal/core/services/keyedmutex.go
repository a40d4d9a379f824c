package services

import "sync"

// FeedLocks provides per-feed-identity mutual exclusion with try-lock
// semantics. All operations that mutate one feed identity (ingestion,
// soft-delete, restore) must hold its key; the losing side of a race
// gets domain.ErrConflict and retries, it is never queued or silently
// merged. One instance is shared between the ingestion and feed
// services at wiring time.
type FeedLocks struct {
	mu   sync.Mutex
	held map[string]bool
}

// NewFeedLocks creates an empty lock table.
func NewFeedLocks() *FeedLocks {
	return &FeedLocks{held: make(map[string]bool)}
}

// TryLock acquires the key if it is free. Returns false when another
// operation holds it.
func (k *FeedLocks) TryLock(key string) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.held[key] {
		return false
	}
	k.held[key] = true
	return true
}

// Unlock releases the key.
func (k *FeedLocks) Unlock(key string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	delete(k.held, key)
}
