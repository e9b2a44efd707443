// Package postgres mirrors the in-memory catalog into a PostgreSQL table of
// JSONB snapshot buckets.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver

	"cultureplan/internal/infra/persistence/memory"
	"cultureplan/pkg/domain"
)

var _ domain.PersistentStore = (*Store)(nil)

// DefaultDSN is used when no connection string is configured.
const DefaultDSN = "postgres://localhost/cultureplan?sslmode=disable"

const (
	driverName  = "pgx"
	createTable = `CREATE TABLE IF NOT EXISTS catalog_buckets (
		bucket     TEXT PRIMARY KEY,
		payload    JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`
	selectBuckets = `SELECT bucket, payload FROM catalog_buckets`
	upsertBucket  = `INSERT INTO catalog_buckets (bucket, payload, updated_at) VALUES ($1, $2, $3)
		ON CONFLICT (bucket) DO UPDATE SET payload = EXCLUDED.payload, updated_at = EXCLUDED.updated_at`
)

var (
	openMu  sync.Mutex
	sqlOpen = sql.Open
)

// Store is a memory.Store whose commits are mirrored to Postgres.
type Store struct {
	*memory.Store
	db      *sql.DB
	mu      sync.Mutex
	written memory.Digests
}

// NewStore connects to dsn (DefaultDSN when empty), creates the bucket table
// and hydrates the catalog from it.
func NewStore(ctx context.Context, dsn string, engine *domain.RulesEngine) (*Store, error) {
	if dsn == "" {
		dsn = DefaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(driverName, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	s := &Store{Store: memory.NewStore(engine), db: db, written: memory.Digests{}}
	if err := s.init(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
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
	s.ImportState(snapshot)
	if len(loaded) > 0 {
		// JSONB normalises payloads, so digest what this process would write.
		current, err := s.ExportState().EncodeBuckets()
		if err != nil {
			return err
		}
		s.written.Record(current, loaded)
	}
	return nil
}

// RunInTransaction commits fn against the in-memory catalog and then upserts
// the buckets it changed in one database transaction.
func (s *Store) RunInTransaction(ctx context.Context, fn func(domain.Transaction) error) (domain.Result, error) {
	res, err := s.Store.RunInTransaction(ctx, fn)
	if err != nil {
		return res, err
	}
	return res, s.persist(ctx)
}

func (s *Store) persist(ctx context.Context) error {
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
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	stamp := s.NowFunc()().UTC()
	for _, bucket := range changed {
		if _, err := tx.ExecContext(ctx, upsertBucket, bucket, buckets[bucket], stamp); err != nil {
			return fmt.Errorf("upsert %s: %w", bucket, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	committed = true
	s.written.Record(buckets, changed)
	return nil
}

// Close releases the connection pool.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the connection pool to tests.
func (s *Store) DB() *sql.DB { return s.db }

// OverrideSQLOpen replaces the database opener, returning a restore func.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}
