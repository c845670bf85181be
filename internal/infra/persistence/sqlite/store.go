// Package sqlite persists the experiment catalog to a single SQLite
// table as JSON blobs, snapshotting after every mutation.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"connmatrix/internal/infra/persistence/memory"
	"connmatrix/pkg/domain"
)

const bucketExperiments = "experiments"

// Store wraps the in-memory store, persisting a snapshot after each
// successful mutation.
type Store struct {
	*memory.Store
	db   *sql.DB
	mu   sync.Mutex
	path string
}

// NewStore opens (creating if needed) a SQLite-backed experiment store.
func NewStore(path string) (*Store, error) {
	if path == "" {
		path = "connmatrix.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS state (
		bucket TEXT PRIMARY KEY,
		payload BLOB NOT NULL
	)`); err != nil {
		return nil, fmt.Errorf("create state table: %w", err)
	}
	s := &Store{Store: memory.New(), db: db, path: path}
	if err := s.load(context.Background()); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) load(ctx context.Context) error {
	var payload []byte
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM state WHERE bucket = ?`, bucketExperiments).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("select state: %w", err)
	}
	var snap memory.Snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return fmt.Errorf("decode experiments: %w", err)
	}
	return s.Store.ImportState(ctx, snap)
}

func (s *Store) persist(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, err := s.Store.ExportState(ctx)
	if err != nil {
		return err
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `INSERT INTO state(bucket,payload) VALUES(?,?) ON CONFLICT(bucket) DO UPDATE SET payload=excluded.payload`, bucketExperiments, data); err != nil {
		return fmt.Errorf("upsert %s: %w", bucketExperiments, err)
	}
	return nil
}

// AddExperiment registers an experiment and snapshots state to SQLite.
func (s *Store) AddExperiment(ctx context.Context, exp domain.Experiment) error {
	if err := s.Store.AddExperiment(ctx, exp); err != nil {
		return err
	}
	return s.persist(ctx)
}

// ImportState replaces the catalog and snapshots state to SQLite.
func (s *Store) ImportState(ctx context.Context, snap memory.Snapshot) error {
	if err := s.Store.ImportState(ctx, snap); err != nil {
		return err
	}
	return s.persist(ctx)
}

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }
