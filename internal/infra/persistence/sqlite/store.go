// Package sqlite keeps the catalog in memory and writes changed snapshot
// buckets to a SQLite file after every committed transaction.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"cultureplan/internal/infra/persistence/memory"
	"cultureplan/pkg/domain"
)

var _ domain.PersistentStore = (*Store)(nil)

// DefaultPath is used when no database path is configured.
const DefaultPath = "cultureplan.db"

const (
	createTable = `CREATE TABLE IF NOT EXISTS catalog_buckets (
		bucket     TEXT PRIMARY KEY,
		payload    BLOB NOT NULL,
		updated_at TEXT NOT NULL
	)`
	selectBuckets = `SELECT bucket, payload FROM catalog_buckets`
	upsertBucket  = `INSERT INTO catalog_buckets(bucket, payload, updated_at) VALUES(?, ?, ?)
		ON CONFLICT(bucket) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`
)

// Store is a memory.Store whose commits are mirrored to SQLite.
type Store struct {
	*memory.Store
	db      *sql.DB
	path    string
	mu      sync.Mutex
	written memory.Digests
}

// NewStore opens (creating if needed) the database at path and loads any
// previously committed catalog.
func NewStore(path string, engine *domain.RulesEngine) (*Store, error) {
	if path == "" {
		path = DefaultPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create database dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// One writer; the memory store already serialises transactions.
	db.SetMaxOpenConns(1)
	s := &Store{Store: memory.NewStore(engine), db: db, path: path, written: memory.Digests{}}
	if err := s.init(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, createTable); err != nil {
		return fmt.Errorf("create catalog table: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, selectBuckets)
	if err != nil {
		return fmt.Errorf("select catalog: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var (
		snapshot memory.Snapshot
		loaded   []string
	)
	for rows.Next() {
		var (
			bucket  string
			payload []byte
		)
		if err := rows.Scan(&bucket, &payload); err != nil {
			return fmt.Errorf("scan bucket: %w", err)
		}
		if err := snapshot.DecodeBucket(bucket, payload); err != nil {
			return err
		}
		loaded = append(loaded, bucket)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate catalog: %w", err)
	}
	if len(loaded) == 0 {
		return nil
	}
	s.ImportState(snapshot)
	current, err := s.ExportState().EncodeBuckets()
	if err != nil {
		return err
	}
	s.written.Record(current, loaded)
	return nil
}

func (s *Store) persist(ctx context.Context) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	buckets, err := s.ExportState().EncodeBuckets()
	if err != nil {
		return err
	}
	changed := s.written.Changed(buckets)
	if len(changed) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	stamp := s.NowFunc()().UTC().Format(time.RFC3339Nano)
	for _, bucket := range changed {
		if _, err = tx.ExecContext(ctx, upsertBucket, bucket, buckets[bucket], stamp); err != nil {
			return fmt.Errorf("upsert %s: %w", bucket, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	s.written.Record(buckets, changed)
	return nil
}

// RunInTransaction commits fn against the in-memory catalog and then writes
// the buckets it changed.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx domain.Transaction) error) (domain.Result, error) {
	res, err := s.Store.RunInTransaction(ctx, fn)
	if err != nil {
		return res, err
	}
	return res, s.persist(ctx)
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the database handle to tests.
func (s *Store) DB() *sql.DB { return s.db }

// Path returns the database file location.
func (s *Store) Path() string { return s.path }
