// Package watcher ingests files dropped into a watched directory.
// Create and write events trigger ingestion after a short settle
// delay; an ingestion that loses the per-feed lock is retried with
// exponential backoff.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/canopy-comms/feedvault/internal/core/domain"
	"github.com/canopy-comms/feedvault/internal/core/ports/driving"
	"github.com/canopy-comms/feedvault/internal/extractors"
	"github.com/canopy-comms/feedvault/internal/logger"
)

// Default tuning.
const (
	// DefaultSettleDelay is how long a file must be quiet before it
	// is read. Editors and copies produce bursts of write events.
	DefaultSettleDelay = 500 * time.Millisecond

	// DefaultMaxRetryElapsed bounds conflict retries per file.
	DefaultMaxRetryElapsed = 30 * time.Second
)

// Config holds watcher tuning.
type Config struct {
	// Dir is the directory to watch.
	Dir string

	// OwnerID is the actor all ingestions run as.
	OwnerID string

	// SettleDelay overrides DefaultSettleDelay when positive.
	SettleDelay time.Duration

	// MaxRetryElapsed overrides DefaultMaxRetryElapsed when positive.
	MaxRetryElapsed time.Duration
}

// Result reports one processed file.
type Result struct {
	// Path is the file that was ingested.
	Path string

	// Ingest is the pipeline outcome, nil when Err is set.
	Ingest *driving.IngestResult

	// Err is the terminal ingestion error, if any.
	Err error
}

// Watcher feeds dropped files into the ingestion pipeline.
type Watcher struct {
	ingestion driving.IngestionService
	cfg       Config

	mu      sync.Mutex
	pending map[string]*time.Timer

	// inflight counts armed settle timers and running timer
	// callbacks. Run waits on it before closing the results channel
	// so a late-firing timer can never send on a closed channel.
	inflight sync.WaitGroup
}

// New creates a watcher over the given directory.
func New(ingestion driving.IngestionService, cfg Config) (*Watcher, error) {
	if cfg.Dir == "" || cfg.OwnerID == "" {
		return nil, fmt.Errorf("%w: watch directory and owner required", domain.ErrInvalidInput)
	}
	info, err := os.Stat(cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("checking watch directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", domain.ErrInvalidInput, cfg.Dir)
	}

	if cfg.SettleDelay <= 0 {
		cfg.SettleDelay = DefaultSettleDelay
	}
	if cfg.MaxRetryElapsed <= 0 {
		cfg.MaxRetryElapsed = DefaultMaxRetryElapsed
	}

	return &Watcher{
		ingestion: ingestion,
		cfg:       cfg,
		pending:   make(map[string]*time.Timer),
	}, nil
}

// Run watches until the context is cancelled. Each processed file is
// reported on results; the channel is closed on return.
func (w *Watcher) Run(ctx context.Context, results chan<- Result) error {
	defer close(results)
	defer func() {
		w.stopPending()
		w.inflight.Wait()
	}()

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(w.cfg.Dir); err != nil {
		return fmt.Errorf("watching %s: %w", w.cfg.Dir, err)
	}
	logger.Info("Watching %s for drops", w.cfg.Dir)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(ctx, event, results)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			logger.Warn("Watcher error: %v", err)
		}
	}
}

// handleEvent schedules ingestion for create and write events on
// eligible files. Repeated events on the same path reset the settle
// timer so a file is read once, after the burst ends.
func (w *Watcher) handleEvent(ctx context.Context, event fsnotify.Event, results chan<- Result) {
	if !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Write) {
		return
	}
	if skipPath(event.Name) {
		return
	}
	if info, err := os.Stat(event.Name); err != nil || info.IsDir() {
		return
	}
	if _, err := extractors.DetectKind(event.Name); err != nil {
		logger.Debug("Skipping %s: unsupported extension", event.Name)
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, ok := w.pending[event.Name]; ok {
		if !timer.Reset(w.cfg.SettleDelay) {
			// The timer already fired, so the reset schedules a
			// second callback run that needs its own accounting.
			w.inflight.Add(1)
		}
		return
	}
	path := event.Name
	w.inflight.Add(1)
	w.pending[path] = time.AfterFunc(w.cfg.SettleDelay, func() {
		defer w.inflight.Done()

		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()

		res, err := w.process(ctx, path)
		select {
		case results <- Result{Path: path, Ingest: res, Err: err}:
		case <-ctx.Done():
		}
	})
}

// stopPending cancels armed settle timers at shutdown. A timer whose
// callback already started is left to finish; inflight accounts for
// it either way.
func (w *Watcher) stopPending() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, timer := range w.pending {
		if timer.Stop() {
			w.inflight.Done()
		}
		delete(w.pending, path)
	}
}

// process reads the file and submits it, retrying lock conflicts with
// exponential backoff. Every other error is terminal.
func (w *Watcher) process(ctx context.Context, path string) (*driving.IngestResult, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	sub := driving.FileSubmission{
		OwnerID: w.cfg.OwnerID,
		Name:    filepath.Base(path),
		Payload: payload,
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 100 * time.Millisecond
	policy.MaxElapsedTime = w.cfg.MaxRetryElapsed

	var result *driving.IngestResult
	operation := func() error {
		res, err := w.ingestion.SubmitFile(ctx, sub)
		if err != nil {
			if errors.Is(err, domain.ErrConflict) {
				return err
			}
			return backoff.Permanent(err)
		}
		result = res
		return nil
	}
	if err := backoff.Retry(operation, backoff.WithContext(policy, ctx)); err != nil {
		return nil, err
	}

	logger.Info("Ingested drop %s: %s version %d", path, result.Outcome, result.Version)
	return result, nil
}

// skipPath filters hidden files and common partial-transfer suffixes.
func skipPath(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return true
	}
	switch strings.ToLower(filepath.Ext(base)) {
	case ".tmp", ".part", ".swp", ".crdownload":
		return true
	}
	return false
}
