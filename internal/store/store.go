// Package store implements the durable index over FileEntry and
// UsageStat records: a single SQLite file with a schema-versioned
// migration path, batched transactional writes with contention
// retry, and the tiered ranked query used by the query UI.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	sqlite3 "github.com/mutecomm/go-sqlcipher/v4"
	"github.com/novasearch/novasearch/internal/model"
)

// retryAttempts and the backoff schedule implement §4.1's apply_batch
// contention policy: up to 5 attempts, waiting 100ms, 200ms, 400ms and
// 800ms between them (each wait capped at 1600ms), then give up.
const (
	retryAttempts  = 5
	initialBackoff = 100 * time.Millisecond
	maxBackoff     = 1600 * time.Millisecond
)

// Store is the durable FileEntry/UsageStat index. All mutating
// operations serialize through a single writer mutex; readers may
// proceed concurrently subject to SQLite's own isolation.
type Store struct {
	db   *sql.DB
	path string
	mu   sync.RWMutex
}

// Open opens or creates the index store at path, applying any
// pending schema migrations. A fresh file is created at the current
// schema version; an existing file older than the current version is
// migrated forward in place.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, &SchemaError{Err: fmt.Errorf("create store directory: %w", err)}
		}
	}

	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_foreign_keys=on", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, &SchemaError{Err: fmt.Errorf("open %s: %w", path, err)}
	}
	db.SetMaxOpenConns(1) // single-writer store; avoids cross-connection lock storms

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, &SchemaError{Err: fmt.Errorf("connect to %s: %w", path, err)}
	}

	version, err := currentVersion(db)
	if err != nil {
		db.Close()
		return nil, &SchemaError{Err: fmt.Errorf("read schema version: %w", err)}
	}
	if version > schemaVersion {
		db.Close()
		return nil, &SchemaError{Err: fmt.Errorf("store at version %d is newer than supported version %d", version, schemaVersion)}
	}
	if version < schemaVersion {
		if err := migrate(db, version); err != nil {
			db.Close()
			return nil, &SchemaError{Err: fmt.Errorf("migrate from version %d: %w", version, err)}
		}
	}

	return &Store{db: db, path: path}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the on-disk store location, for status reporting.
func (s *Store) Path() string { return s.path }

// Insert creates a record, failing with ConflictError if path already exists.
func (s *Store) Insert(ctx context.Context, entry model.FileEntry) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO files (filename, path, size, modified_time, file_type, indexed_time)
		VALUES (?, ?, ?, ?, ?, ?)
	`, entry.Filename, entry.Path, entry.Size, entry.ModifiedTime.Unix(), string(entry.FileType), entry.IndexedTime.Unix())
	if err != nil {
		if isUniqueConstraint(err) {
			return 0, &ConflictError{Path: entry.Path, Err: err}
		}
		return 0, &StorageError{Err: err}
	}
	return res.LastInsertId()
}

// Upsert is the idempotent insert-or-overwrite used by Add/Update
// operations: fields other than id are refreshed on a path collision.
func (s *Store) Upsert(ctx context.Context, entry model.FileEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return upsertLocked(ctx, s.db, entry)
}

func upsertLocked(ctx context.Context, q queryer, entry model.FileEntry) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO files (filename, path, size, modified_time, file_type, indexed_time)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			filename = excluded.filename,
			size = excluded.size,
			modified_time = excluded.modified_time,
			file_type = excluded.file_type,
			indexed_time = excluded.indexed_time
	`, entry.Filename, entry.Path, entry.Size, entry.ModifiedTime.Unix(), string(entry.FileType), entry.IndexedTime.Unix())
	if err != nil {
		return &StorageError{Err: err}
	}
	return nil
}

// Delete removes the record at path, silently succeeding when absent.
func (s *Store) Delete(ctx context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deleteLocked(ctx, s.db, path)
}

func deleteLocked(ctx context.Context, q queryer, path string) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM files WHERE path = ?`, path); err != nil {
		return &StorageError{Err: err}
	}
	return nil
}

// Move atomically re-keys the record at from to path to, re-deriving
// filename from to's basename. Silently succeeds if from is absent;
// fails with ConflictError if to is already occupied by a distinct
// record.
func (s *Store) Move(ctx context.Context, from, to string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return moveLocked(ctx, s.db, from, to)
}

func moveLocked(ctx context.Context, q queryer, from, to string) error {
	filename := filepath.Base(to)
	_, err := q.ExecContext(ctx, `UPDATE files SET path = ?, filename = ? WHERE path = ?`, to, filename, from)
	if err != nil {
		if isUniqueConstraint(err) {
			return &ConflictError{Path: to, Err: err}
		}
		return &StorageError{Err: err}
	}
	return nil
}

// queryer is the subset of *sql.DB/*sql.Tx used by the per-operation
// helpers, so ApplyBatch can route them through a transaction.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// ApplyBatch applies ops as one atomic transaction. On contention
// (SQLITE_BUSY/SQLITE_LOCKED) it retries with exponential backoff
// (100ms doubling to a 1600ms cap, 5 attempts) before giving up with
// BusyError. Any other failure aborts the batch immediately; a
// partially applied batch is never visible.
func (s *Store) ApplyBatch(ctx context.Context, ops []model.IndexOperation) error {
	correlationID := uuid.NewString()

	backoff := initialBackoff
	var lastErr error
	for attempt := 1; attempt <= retryAttempts; attempt++ {
		err := s.tryApplyBatch(ctx, ops)
		if err == nil {
			return nil
		}
		if !isBusy(err) {
			return err
		}
		lastErr = err
		if attempt == retryAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
		_ = correlationID // generated per call; not attached to any log line or returned error
	}
	return &BusyError{Attempts: retryAttempts, Err: lastErr}
}

func (s *Store) tryApplyBatch(ctx context.Context, ops []model.IndexOperation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		if isBusy(err) {
			return err
		}
		return &StorageError{Err: err}
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	for _, op := range ops {
		var opErr error
		switch op.Kind {
		case model.OpAdd, model.OpUpdate:
			opErr = upsertLocked(ctx, tx, op.Entry)
		case model.OpDelete:
			opErr = deleteLocked(ctx, tx, op.Path)
		case model.OpMove:
			opErr = moveLocked(ctx, tx, op.From, op.To)
		default:
			opErr = fmt.Errorf("unknown operation kind %q", op.Kind)
		}
		if opErr != nil {
			return opErr
		}
	}

	if err := tx.Commit(); err != nil {
		if isBusy(err) {
			return err
		}
		return &StorageError{Err: err}
	}
	committed = true
	return nil
}

// Query returns up to limit records whose filename contains prefix
// case-insensitively, ordered exact-match first, then prefix-match,
// then substring-match; within a tier by launch_count descending,
// ties broken by case-insensitive filename ascending.
func (s *Store) Query(ctx context.Context, prefix string, limit int) ([]model.FileEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT f.id, f.filename, f.path, f.size, f.modified_time, f.file_type, f.indexed_time,
		       COALESCE(u.launch_count, 0)
		FROM files f
		LEFT JOIN usage_stats u ON f.id = u.file_id
		WHERE f.filename LIKE '%' || ? || '%'
		ORDER BY
			CASE
				WHEN f.filename = ? THEN 0
				WHEN f.filename LIKE ? || '%' THEN 1
				ELSE 2
			END,
			COALESCE(u.launch_count, 0) DESC,
			f.filename COLLATE NOCASE
		LIMIT ?
	`, prefix, prefix, prefix, limit)
	if err != nil {
		return nil, &StorageError{Err: err}
	}
	defer rows.Close()

	return scanEntries(rows)
}

// RecordLaunch increments launch_count and refreshes last_launched
// for the record at path; no-op if path is not indexed.
func (s *Store) RecordLaunch(ctx context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var fileID int64
	err := s.db.QueryRowContext(ctx, `SELECT id FROM files WHERE path = ?`, path).Scan(&fileID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return &StorageError{Err: err}
	}

	now := time.Now().Unix()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO usage_stats (file_id, launch_count, last_launched) VALUES (?, 1, ?)
		ON CONFLICT(file_id) DO UPDATE SET
			launch_count = launch_count + 1,
			last_launched = excluded.last_launched
	`, fileID, now)
	if err != nil {
		return &StorageError{Err: err}
	}
	return nil
}

// Count returns the exact cardinality of indexed files.
func (s *Store) Count(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM files`).Scan(&count); err != nil {
		return 0, &StorageError{Err: err}
	}
	return count, nil
}

// MostUsed returns up to limit records with a non-zero launch count,
// ordered by launch_count desc then last_launched desc. The INNER
// JOIN against usage_stats naturally excludes never-launched files.
func (s *Store) MostUsed(ctx context.Context, limit int) ([]model.FileEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT f.id, f.filename, f.path, f.size, f.modified_time, f.file_type, f.indexed_time,
		       u.launch_count
		FROM files f
		JOIN usage_stats u ON f.id = u.file_id
		ORDER BY u.launch_count DESC, u.last_launched DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, &StorageError{Err: err}
	}
	defer rows.Close()

	return scanEntries(rows)
}

// Truncate removes every indexed file (cascading to usage_stats),
// used by the CLI reindex command before a fresh scan.
func (s *Store) Truncate(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, `DELETE FROM files`); err != nil {
		return &StorageError{Err: err}
	}
	return nil
}

func scanEntries(rows *sql.Rows) ([]model.FileEntry, error) {
	var entries []model.FileEntry
	for rows.Next() {
		var (
			e                          model.FileEntry
			fileType                   string
			modifiedUnix, indexedUnix  int64
			launchCount                int64
		)
		if err := rows.Scan(&e.ID, &e.Filename, &e.Path, &e.Size, &modifiedUnix, &fileType, &indexedUnix, &launchCount); err != nil {
			return nil, &StorageError{Err: err}
		}
		e.FileType = model.ParseFileType(fileType)
		e.ModifiedTime = time.Unix(modifiedUnix, 0).UTC()
		e.IndexedTime = time.Unix(indexedUnix, 0).UTC()
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Err: err}
	}
	return entries, nil
}

func isUniqueConstraint(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrConstraint
	}
	return false
}

func isBusy(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
	}
	return false
}
