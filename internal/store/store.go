// Package store caches track features in SQLite, keyed by file content.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/satindergrewal/automix/internal/compat"
)

// analysisVersion is bumped whenever feature extraction changes so stale rows
// are ignored.
const analysisVersion = 1

// ErrNotFound is returned by Get when no current row exists for a hash.
var ErrNotFound = errors.New("features not cached")

const schema = `
CREATE TABLE IF NOT EXISTS track_features (
	hash            TEXT PRIMARY KEY,
	path            TEXT NOT NULL,
	version         INTEGER NOT NULL,
	bpm             REAL NOT NULL,
	beat_confidence REAL NOT NULL,
	key             TEXT NOT NULL,
	key_confidence  REAL NOT NULL,
	duration        REAL NOT NULL,
	analyzed_at     INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_track_features_path ON track_features(path);
`

// Entry is a cached row. Hash is the lookup key, a content hash optionally
// followed by the analysis settings.
type Entry struct {
	Hash       string
	Path       string
	Features   compat.Features
	AnalyzedAt time.Time
}

// Store is a SQLite-backed feature cache.
type Store struct {
	db *sql.DB
}

// Open opens or creates the cache database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create cache dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}
	// one writer at a time keeps SQLite from reporting busy under parallel scans
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns the cached features for hash.
func (s *Store) Get(ctx context.Context, hash string) (Entry, error) {
	e := Entry{Hash: hash}
	var analyzedAt int64
	err := s.db.QueryRowContext(ctx, `
		SELECT path, bpm, beat_confidence, key, key_confidence, duration, analyzed_at
		FROM track_features WHERE hash = ? AND version = ?`, hash, analysisVersion).
		Scan(&e.Path, &e.Features.BPM, &e.Features.BeatConfidence, &e.Features.Key,
			&e.Features.KeyConfidence, &e.Features.Duration, &analyzedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, ErrNotFound
	}
	if err != nil {
		return Entry{}, fmt.Errorf("query features: %w", err)
	}
	e.AnalyzedAt = time.Unix(analyzedAt, 0)
	return e, nil
}

// Put stores features for hash, replacing any previous row.
func (s *Store) Put(ctx context.Context, hash, path string, f compat.Features) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO track_features
			(hash, path, version, bpm, beat_confidence, key, key_confidence, duration, analyzed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		hash, path, analysisVersion, f.BPM, f.BeatConfidence, f.Key, f.KeyConfidence, f.Duration,
		time.Now().Unix())
	if err != nil {
		return fmt.Errorf("store features: %w", err)
	}
	return nil
}

// List returns every current row ordered by path.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT hash, path, bpm, beat_confidence, key, key_confidence, duration, analyzed_at
		FROM track_features WHERE version = ? ORDER BY path`, analysisVersion)
	if err != nil {
		return nil, fmt.Errorf("list features: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var analyzedAt int64
		if err := rows.Scan(&e.Hash, &e.Path, &e.Features.BPM, &e.Features.BeatConfidence,
			&e.Features.Key, &e.Features.KeyConfidence, &e.Features.Duration, &analyzedAt); err != nil {
			return nil, fmt.Errorf("scan features: %w", err)
		}
		e.AnalyzedAt = time.Unix(analyzedAt, 0)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
