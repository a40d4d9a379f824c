// Package sqlite is the authoritative store for feed state, version
// history, concept entries, and the deletion ledger.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/canopy-comms/feedvault/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/canopy-comms/feedvault/internal/core/domain"
	"github.com/canopy-comms/feedvault/internal/core/ports/driven"
)

// Store is a unified SQLite-based storage that provides access to the
// feed store and audit store interfaces through wrapper types.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates a new SQLite store at the specified data directory.
// If dataDir is empty, defaults to ~/.feedvault/data/feedvault.db.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".feedvault", "data")
	}

	// Ensure directory exists
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "feedvault.db")

	// Open database with WAL mode for better concurrency
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}

	// Run migrations
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// FeedStore returns a FeedStore interface backed by this store.
func (s *Store) FeedStore() driven.FeedStore {
	return &feedStore{store: s}
}

// AuditStore returns an AuditStore interface backed by this store.
func (s *Store) AuditStore() driven.AuditStore {
	return &auditStore{store: s}
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys embed.FS) error {
	// Ensure schema_migrations table exists
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	// Get current version
	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	// Find all up migrations
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// Extract version number (e.g., "001_initial.up.sql" -> 1)
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue // Skip files that don't match pattern
		}

		if version <= currentVersion {
			continue // Already applied
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}

		if _, err := s.db.Exec(
			"INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}

	return nil
}

// ==================== Feed Store ====================

// feedStore implements driven.FeedStore.
type feedStore struct {
	store *Store
}

var _ driven.FeedStore = (*feedStore)(nil)

// feedColumns is the canonical column list for feed scans.
const feedColumns = `id, owner_id, name, description, source_kind, size_bytes,
	processed_text, original_text, structure, embedding, previous_embedding,
	concept_map, version, embedding_model, deleted, deleted_at, deleted_by,
	created_at, updated_at`

// CreateFeed inserts a new feed at version 1 with its concept entries.
func (s *feedStore) CreateFeed(ctx context.Context, feed *domain.Feed, concepts []domain.ConceptEntry) error {
	if feed.ID == "" || feed.OwnerID == "" || feed.Name == "" {
		return domain.ErrInvalidInput
	}

	structureJSON, conceptMapJSON, err := marshalFeedJSON(feed)
	if err != nil {
		return err
	}

	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx, `
		INSERT INTO feeds (id, owner_id, name, description, source_kind, size_bytes,
			processed_text, original_text, structure, embedding, previous_embedding,
			concept_map, version, embedding_model, deleted, deleted_at, deleted_by,
			created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, NULL, '', ?, ?)
	`, feed.ID, feed.OwnerID, feed.Name, feed.Description, string(feed.SourceKind),
		feed.SizeBytes, feed.ProcessedText, feed.OriginalText, structureJSON,
		float32SliceToBytes(feed.Embedding), float32SliceToBytes(feed.PreviousEmbedding),
		conceptMapJSON, feed.Version, feed.EmbeddingModel, feed.CreatedAt, feed.UpdatedAt)

	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("inserting feed: %w", err)
	}

	if err := insertConcepts(ctx, tx, feed.ID, concepts); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// CommitVersion atomically snapshots the prior state into the history
// table, bumps the version counter, and stores the new current state.
// The UPDATE is guarded on the snapshot's version number so a
// concurrent bump surfaces as domain.ErrConflict instead of silently
// overwriting.
func (s *feedStore) CommitVersion(
	ctx context.Context,
	snapshot domain.FeedVersion,
	updated *domain.Feed,
	concepts []domain.ConceptEntry,
) error {
	structureJSON, conceptMapJSON, err := marshalFeedJSON(updated)
	if err != nil {
		return err
	}

	snapStructureJSON, err := json.Marshal(snapshot.Structure)
	if err != nil {
		return fmt.Errorf("marshalling snapshot structure: %w", err)
	}
	snapConceptJSON, err := json.Marshal(orEmptyMap(snapshot.ConceptMap))
	if err != nil {
		return fmt.Errorf("marshalling snapshot concept map: %w", err)
	}

	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx, `
		INSERT INTO feed_versions (feed_id, version, processed_text, embedding,
			structure, concept_map, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, snapshot.FeedID, snapshot.Version, snapshot.ProcessedText,
		float32SliceToBytes(snapshot.Embedding), string(snapStructureJSON),
		string(snapConceptJSON), snapshot.CreatedBy, snapshot.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting version snapshot: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE feeds SET
			size_bytes = ?,
			processed_text = ?,
			original_text = ?,
			structure = ?,
			embedding = ?,
			previous_embedding = ?,
			concept_map = ?,
			version = ?,
			embedding_model = ?,
			updated_at = ?
		WHERE id = ? AND version = ?
	`, updated.SizeBytes, updated.ProcessedText, updated.OriginalText, structureJSON,
		float32SliceToBytes(updated.Embedding), float32SliceToBytes(updated.PreviousEmbedding),
		conceptMapJSON, updated.Version, updated.EmbeddingModel, updated.UpdatedAt,
		updated.ID, snapshot.Version)
	if err != nil {
		return fmt.Errorf("updating feed: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking update: %w", err)
	}
	if affected == 0 {
		return domain.ErrConflict
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM concepts WHERE feed_id = ?", updated.ID); err != nil {
		return fmt.Errorf("clearing concepts: %w", err)
	}
	if err := insertConcepts(ctx, tx, updated.ID, concepts); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// GetFeed retrieves a feed by ID, soft-deleted or not.
func (s *feedStore) GetFeed(ctx context.Context, id string) (*domain.Feed, error) {
	row := s.store.db.QueryRowContext(ctx,
		`SELECT `+feedColumns+` FROM feeds WHERE id = ?`, id)
	return scanFeed(row)
}

// GetFeedByName retrieves a feed by its (owner, name) identity.
func (s *feedStore) GetFeedByName(ctx context.Context, ownerID, name string) (*domain.Feed, error) {
	row := s.store.db.QueryRowContext(ctx,
		`SELECT `+feedColumns+` FROM feeds WHERE owner_id = ? AND name = ?`, ownerID, name)
	return scanFeed(row)
}

// ListFeeds returns active feeds for an owner.
func (s *feedStore) ListFeeds(ctx context.Context, ownerID string, filter driven.FeedFilter) ([]domain.Feed, error) {
	query := `SELECT ` + feedColumns + ` FROM feeds WHERE owner_id = ? AND deleted = 0`
	args := []any{ownerID}
	if filter.SourceKind != "" {
		query += ` AND source_kind = ?`
		args = append(args, string(filter.SourceKind))
	}
	query += ` ORDER BY updated_at DESC`

	return s.queryFeeds(ctx, query, args...)
}

// ListDeleted returns soft-deleted feeds for an owner.
func (s *feedStore) ListDeleted(ctx context.Context, ownerID string) ([]domain.Feed, error) {
	return s.queryFeeds(ctx,
		`SELECT `+feedColumns+` FROM feeds WHERE owner_id = ? AND deleted = 1 ORDER BY deleted_at DESC`,
		ownerID)
}

// SoftDelete marks the feed deleted, clears the live concept map,
// deactivates concept entries, and appends the audit record in one
// transaction. A failed ledger append rolls everything back; an
// audit-less deletion never commits.
func (s *feedStore) SoftDelete(ctx context.Context, id string, rec domain.DeletionRecord) error {
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var deleted bool
	err = tx.QueryRowContext(ctx, "SELECT deleted FROM feeds WHERE id = ?", id).Scan(&deleted)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("checking feed: %w", err)
	}
	if deleted {
		return domain.ErrAlreadyDeleted
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE feeds SET deleted = 1, deleted_at = ?, deleted_by = ?,
			concept_map = '{}', updated_at = ?
		WHERE id = ?
	`, rec.DeletedAt, rec.DeletedBy, rec.DeletedAt, id)
	if err != nil {
		return fmt.Errorf("marking feed deleted: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE concepts SET active = 0 WHERE feed_id = ?", id); err != nil {
		return fmt.Errorf("deactivating concepts: %w", err)
	}

	if err := appendDeletionRecord(ctx, tx, rec); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Restore clears the delete flag and installs the re-extracted
// concept map and entries.
func (s *feedStore) Restore(
	ctx context.Context,
	id string,
	conceptMap map[string][]string,
	concepts []domain.ConceptEntry,
) error {
	conceptMapJSON, err := json.Marshal(orEmptyMap(conceptMap))
	if err != nil {
		return fmt.Errorf("marshalling concept map: %w", err)
	}

	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var deleted bool
	err = tx.QueryRowContext(ctx, "SELECT deleted FROM feeds WHERE id = ?", id).Scan(&deleted)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("checking feed: %w", err)
	}
	if !deleted {
		return domain.ErrNotDeleted
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE feeds SET deleted = 0, deleted_at = NULL, deleted_by = '',
			concept_map = ?, updated_at = ?
		WHERE id = ?
	`, string(conceptMapJSON), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("restoring feed: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM concepts WHERE feed_id = ?", id); err != nil {
		return fmt.Errorf("clearing concepts: %w", err)
	}
	if err := insertConcepts(ctx, tx, id, concepts); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// SetEmbedding installs a current embedding without touching the
// content or the version counter.
func (s *feedStore) SetEmbedding(ctx context.Context, id string, embedding []float32, model string) error {
	result, err := s.store.db.ExecContext(ctx, `
		UPDATE feeds SET embedding = ?, embedding_model = ?, updated_at = ?
		WHERE id = ?
	`, float32SliceToBytes(embedding), model, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("setting embedding: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking update: %w", err)
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListVersions returns all snapshots for a feed, oldest first.
func (s *feedStore) ListVersions(ctx context.Context, feedID string) ([]domain.FeedVersion, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT feed_id, version, processed_text, embedding, structure, concept_map,
			created_by, created_at
		FROM feed_versions WHERE feed_id = ?
		ORDER BY version
	`, feedID)
	if err != nil {
		return nil, fmt.Errorf("querying versions: %w", err)
	}
	defer rows.Close()

	var versions []domain.FeedVersion //nolint:prealloc // size unknown from query
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, err
		}
		versions = append(versions, *v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating versions: %w", err)
	}

	return versions, nil
}

// GetVersion retrieves one snapshot.
func (s *feedStore) GetVersion(ctx context.Context, feedID string, version int) (*domain.FeedVersion, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT feed_id, version, processed_text, embedding, structure, concept_map,
			created_by, created_at
		FROM feed_versions WHERE feed_id = ? AND version = ?
	`, feedID, version)
	if err != nil {
		return nil, fmt.Errorf("querying version: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("iterating version: %w", err)
		}
		return nil, domain.ErrNotFound
	}

	return scanVersion(rows)
}

// ListConcepts returns the concept entries for a feed.
func (s *feedStore) ListConcepts(ctx context.Context, feedID string) ([]domain.ConceptEntry, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT feed_id, kind, value, confidence, active
		FROM concepts WHERE feed_id = ?
		ORDER BY kind, value
	`, feedID)
	if err != nil {
		return nil, fmt.Errorf("querying concepts: %w", err)
	}
	defer rows.Close()

	var entries []domain.ConceptEntry //nolint:prealloc // size unknown from query
	for rows.Next() {
		var e domain.ConceptEntry
		var kind string
		if err := rows.Scan(&e.FeedID, &kind, &e.Value, &e.Confidence, &e.Active); err != nil {
			return nil, fmt.Errorf("scanning concept: %w", err)
		}
		e.Kind = domain.ConceptKind(kind)
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating concepts: %w", err)
	}

	return entries, nil
}

// ListEmbeddings returns current embeddings of active feeds for an
// owner. Feeds stored without a semantic index are excluded.
func (s *feedStore) ListEmbeddings(
	ctx context.Context,
	ownerID string,
	kind domain.SourceKind,
) ([]driven.FeedEmbedding, error) {
	query := `
		SELECT id, name, source_kind, embedding
		FROM feeds
		WHERE owner_id = ? AND deleted = 0 AND embedding IS NOT NULL`
	args := []any{ownerID}
	if kind != "" {
		query += ` AND source_kind = ?`
		args = append(args, string(kind))
	}

	rows, err := s.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying embeddings: %w", err)
	}
	defer rows.Close()

	var results []driven.FeedEmbedding //nolint:prealloc // size unknown from query
	for rows.Next() {
		var fe driven.FeedEmbedding
		var kindStr string
		var blob []byte
		if err := rows.Scan(&fe.FeedID, &fe.Name, &kindStr, &blob); err != nil {
			return nil, fmt.Errorf("scanning embedding: %w", err)
		}
		fe.SourceKind = domain.SourceKind(kindStr)
		fe.Embedding = bytesToFloat32Slice(blob)
		results = append(results, fe)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating embeddings: %w", err)
	}

	return results, nil
}

// queryFeeds runs a feed query and scans all rows.
func (s *feedStore) queryFeeds(ctx context.Context, query string, args ...any) ([]domain.Feed, error) {
	rows, err := s.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying feeds: %w", err)
	}
	defer rows.Close()

	var feeds []domain.Feed //nolint:prealloc // size unknown from query
	for rows.Next() {
		feed, err := scanFeedRows(rows)
		if err != nil {
			return nil, err
		}
		feeds = append(feeds, *feed)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating feeds: %w", err)
	}

	return feeds, nil
}

// ==================== Audit Store ====================

// auditStore implements driven.AuditStore.
type auditStore struct {
	store *Store
}

var _ driven.AuditStore = (*auditStore)(nil)

// Append writes one deletion record.
func (s *auditStore) Append(ctx context.Context, rec domain.DeletionRecord) error {
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := appendDeletionRecord(ctx, tx, rec); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// ListForFeed returns deletion records for a feed, newest first.
func (s *auditStore) ListForFeed(ctx context.Context, feedID string) ([]domain.DeletionRecord, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, feed_id, feed_name, source_kind, size_bytes, concept_map,
			deleted_by, reason, deleted_at
		FROM deletion_log WHERE feed_id = ?
		ORDER BY deleted_at DESC
	`, feedID)
	if err != nil {
		return nil, fmt.Errorf("querying deletion log: %w", err)
	}
	defer rows.Close()

	return scanDeletionRecords(rows)
}

// ListForActor returns deletion records by an actor within [from, to].
func (s *auditStore) ListForActor(
	ctx context.Context,
	actor string,
	from, to time.Time,
) ([]domain.DeletionRecord, error) {
	query := `
		SELECT id, feed_id, feed_name, source_kind, size_bytes, concept_map,
			deleted_by, reason, deleted_at
		FROM deletion_log WHERE deleted_by = ?`
	args := []any{actor}
	if !from.IsZero() {
		query += ` AND deleted_at >= ?`
		args = append(args, from)
	}
	if !to.IsZero() {
		query += ` AND deleted_at <= ?`
		args = append(args, to)
	}
	query += ` ORDER BY deleted_at DESC`

	rows, err := s.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying deletion log: %w", err)
	}
	defer rows.Close()

	return scanDeletionRecords(rows)
}

// ==================== Helper Functions ====================

// float32SliceToBytes converts a []float32 to a byte slice for storage.
// Nil input stores as NULL.
func float32SliceToBytes(floats []float32) []byte {
	if len(floats) == 0 {
		return nil
	}
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToFloat32Slice converts a byte slice back to []float32.
func bytesToFloat32Slice(data []byte) []float32 {
	if len(data) == 0 {
		return nil
	}
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats
}

// marshalFeedJSON marshals a feed's structure and concept map columns.
func marshalFeedJSON(feed *domain.Feed) (structureJSON, conceptMapJSON string, err error) {
	structure, err := json.Marshal(feed.Structure)
	if err != nil {
		return "", "", fmt.Errorf("marshalling structure: %w", err)
	}
	conceptMap, err := json.Marshal(orEmptyMap(feed.ConceptMap))
	if err != nil {
		return "", "", fmt.Errorf("marshalling concept map: %w", err)
	}
	return string(structure), string(conceptMap), nil
}

// orEmptyMap normalises a nil concept map to empty so the column is
// always valid JSON.
func orEmptyMap(m map[string][]string) map[string][]string {
	if m == nil {
		return map[string][]string{}
	}
	return m
}

// insertConcepts writes concept entries inside an open transaction.
func insertConcepts(ctx context.Context, tx *sql.Tx, feedID string, concepts []domain.ConceptEntry) error {
	if len(concepts) == 0 {
		return nil
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO concepts (feed_id, kind, value, confidence, active)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(feed_id, kind, value) DO UPDATE SET
			confidence = excluded.confidence,
			active = excluded.active
	`)
	if err != nil {
		return fmt.Errorf("preparing concept statement: %w", err)
	}
	defer stmt.Close()

	for _, c := range concepts {
		if _, err := stmt.ExecContext(ctx, feedID, string(c.Kind), c.Value,
			c.Confidence, c.Active); err != nil {
			return fmt.Errorf("inserting concept: %w", err)
		}
	}
	return nil
}

// appendDeletionRecord writes one ledger row inside an open transaction.
func appendDeletionRecord(ctx context.Context, tx *sql.Tx, rec domain.DeletionRecord) error {
	conceptMapJSON, err := json.Marshal(orEmptyMap(rec.ConceptMap))
	if err != nil {
		return fmt.Errorf("marshalling deletion concept map: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO deletion_log (id, feed_id, feed_name, source_kind, size_bytes,
			concept_map, deleted_by, reason, deleted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.FeedID, rec.FeedName, string(rec.SourceKind), rec.SizeBytes,
		string(conceptMapJSON), rec.DeletedBy, rec.Reason, rec.DeletedAt)
	if err != nil {
		return fmt.Errorf("appending deletion record: %w", err)
	}
	return nil
}

// scanner abstracts *sql.Row and *sql.Rows for shared scan logic.
type scanner interface {
	Scan(dest ...any) error
}

func scanFeedFrom(sc scanner) (*domain.Feed, error) {
	var feed domain.Feed
	var sourceKind string
	var structureJSON, conceptMapJSON string
	var embeddingBlob, prevEmbeddingBlob []byte
	var deletedAt sql.NullTime

	if err := sc.Scan(&feed.ID, &feed.OwnerID, &feed.Name, &feed.Description,
		&sourceKind, &feed.SizeBytes, &feed.ProcessedText, &feed.OriginalText,
		&structureJSON, &embeddingBlob, &prevEmbeddingBlob, &conceptMapJSON,
		&feed.Version, &feed.EmbeddingModel, &feed.Deleted, &deletedAt,
		&feed.DeletedBy, &feed.CreatedAt, &feed.UpdatedAt); err != nil {
		return nil, err
	}

	feed.SourceKind = domain.SourceKind(sourceKind)
	feed.Embedding = bytesToFloat32Slice(embeddingBlob)
	feed.PreviousEmbedding = bytesToFloat32Slice(prevEmbeddingBlob)
	if deletedAt.Valid {
		feed.DeletedAt = &deletedAt.Time
	}

	if err := json.Unmarshal([]byte(structureJSON), &feed.Structure); err != nil {
		return nil, fmt.Errorf("unmarshalling structure: %w", err)
	}
	if err := json.Unmarshal([]byte(conceptMapJSON), &feed.ConceptMap); err != nil {
		return nil, fmt.Errorf("unmarshalling concept map: %w", err)
	}

	return &feed, nil
}

// scanFeed scans a single feed row.
func scanFeed(row *sql.Row) (*domain.Feed, error) {
	feed, err := scanFeedFrom(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning feed: %w", err)
	}
	return feed, nil
}

// scanFeedRows scans a feed from *sql.Rows.
func scanFeedRows(rows *sql.Rows) (*domain.Feed, error) {
	feed, err := scanFeedFrom(rows)
	if err != nil {
		return nil, fmt.Errorf("scanning feed: %w", err)
	}
	return feed, nil
}

// scanVersion scans a snapshot from *sql.Rows.
func scanVersion(rows *sql.Rows) (*domain.FeedVersion, error) {
	var v domain.FeedVersion
	var embeddingBlob []byte
	var structureJSON, conceptMapJSON string

	if err := rows.Scan(&v.FeedID, &v.Version, &v.ProcessedText, &embeddingBlob,
		&structureJSON, &conceptMapJSON, &v.CreatedBy, &v.CreatedAt); err != nil {
		return nil, fmt.Errorf("scanning version: %w", err)
	}

	v.Embedding = bytesToFloat32Slice(embeddingBlob)

	if err := json.Unmarshal([]byte(structureJSON), &v.Structure); err != nil {
		return nil, fmt.Errorf("unmarshalling version structure: %w", err)
	}
	if err := json.Unmarshal([]byte(conceptMapJSON), &v.ConceptMap); err != nil {
		return nil, fmt.Errorf("unmarshalling version concept map: %w", err)
	}

	return &v, nil
}

// scanDeletionRecords scans multiple ledger rows.
func scanDeletionRecords(rows *sql.Rows) ([]domain.DeletionRecord, error) {
	var records []domain.DeletionRecord //nolint:prealloc // size unknown from query
	for rows.Next() {
		var rec domain.DeletionRecord
		var sourceKind string
		var feedID sql.NullString
		var conceptMapJSON string

		if err := rows.Scan(&rec.ID, &feedID, &rec.FeedName, &sourceKind,
			&rec.SizeBytes, &conceptMapJSON, &rec.DeletedBy, &rec.Reason,
			&rec.DeletedAt); err != nil {
			return nil, fmt.Errorf("scanning deletion record: %w", err)
		}

		rec.FeedID = feedID.String
		rec.SourceKind = domain.SourceKind(sourceKind)
		if err := json.Unmarshal([]byte(conceptMapJSON), &rec.ConceptMap); err != nil {
			return nil, fmt.Errorf("unmarshalling deletion concept map: %w", err)
		}

		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating deletion records: %w", err)
	}

	return records, nil
}
