package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/satindergrewal/automix/internal/compat"
)

// Source supplies features for a file.
type Source interface {
	Features(ctx context.Context, path string) (compat.Features, error)
}

// Settings identifies the analysis parameters cached features depend on.
func Settings(sampleRate int, window time.Duration) string {
	return fmt.Sprintf("sr%d-w%s", sampleRate, window)
}

// CachedSource answers from the store when it can and analyzes otherwise.
// Rows are keyed by file content and settings, so features analyzed at one
// sample rate or window never answer for another.
type CachedSource struct {
	log      *zap.SugaredLogger
	store    *Store
	next     Source
	settings string
}

// NewCachedSource wraps next with the store. settings is usually the result
// of Settings for the analyzer behind next.
func NewCachedSource(log *zap.SugaredLogger, store *Store, next Source, settings string) *CachedSource {
	return &CachedSource{log: log, store: store, next: next, settings: settings}
}

func (c *CachedSource) key(hash string) string {
	if c.settings == "" {
		return hash
	}
	return hash + "/" + c.settings
}

// Features returns cached features for path, analyzing and caching on a miss.
// Cache failures are logged and never fail the lookup.
func (c *CachedSource) Features(ctx context.Context, path string) (compat.Features, error) {
	hash, err := FileHash(path)
	if err != nil {
		c.log.Warnw("Could not hash file, analyzing uncached", "path", path, "error", err)
		return c.next.Features(ctx, path)
	}
	key := c.key(hash)

	e, err := c.store.Get(ctx, key)
	switch {
	case err == nil:
		c.log.Debugw("Feature cache hit", "path", path, "key", key)
		return e.Features, nil
	case !errors.Is(err, ErrNotFound):
		c.log.Warnw("Feature cache read failed", "path", path, "error", err)
	}

	f, err := c.next.Features(ctx, path)
	if err != nil {
		return compat.Features{}, err
	}
	if err := c.store.Put(ctx, key, path, f); err != nil {
		c.log.Warnw("Feature cache write failed", "path", path, "error", err)
	}
	return f, nil
}
