package resolver

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

const diskCacheSchema = `
CREATE TABLE IF NOT EXISTS resources (
	url        TEXT PRIMARY KEY,
	data_uri   TEXT NOT NULL,
	fetched_at INTEGER NOT NULL
);
`

// DiskCache decorates a Resolver with an SQLite-backed cache so repeated
// captures of the same pages do not refetch unchanged resources. The core
// capture engine never touches it; the CLI and daemon opt in.
type DiskCache struct {
	db     *sql.DB
	inner  Resolver
	ttl    time.Duration
	logger *slog.Logger
}

// OpenDiskCache opens (and if needed creates) the cache database.
// The modernc.org/sqlite driver must be linked by the importing binary.
// ttl <= 0 means entries never expire.
func OpenDiskCache(path string, inner Resolver, ttl time.Duration, logger *slog.Logger) (*DiskCache, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("resolver: open cache %s: %w", path, err)
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("resolver: %s: %w", pragma, err)
		}
	}
	if _, err := db.Exec(diskCacheSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("resolver: create cache schema: %w", err)
	}
	return &DiskCache{db: db, inner: inner, ttl: ttl, logger: logger}, nil
}

// Resolve serves from the cache when fresh, otherwise delegates and
// stores. Cache read/write failures degrade to the inner resolver.
func (c *DiskCache) Resolve(ctx context.Context, url, declaredMIME string) (string, error) {
	var (
		uri       string
		fetchedAt int64
	)
	err := c.db.QueryRowContext(ctx,
		`SELECT data_uri, fetched_at FROM resources WHERE url = ?`, url).
		Scan(&uri, &fetchedAt)
	switch {
	case err == nil:
		if c.ttl <= 0 || time.Since(time.Unix(fetchedAt, 0)) < c.ttl {
			return uri, nil
		}
	case !errors.Is(err, sql.ErrNoRows):
		c.logger.Warn("resolver: cache read failed", "url", url, "error", err)
	}

	uri, err = c.inner.Resolve(ctx, url, declaredMIME)
	if err != nil {
		return "", err
	}
	if _, werr := c.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO resources (url, data_uri, fetched_at) VALUES (?, ?, ?)`,
		url, uri, time.Now().Unix()); werr != nil {
		c.logger.Warn("resolver: cache write failed", "url", url, "error", werr)
	}
	return uri, nil
}

// Close releases the cache database.
func (c *DiskCache) Close() error { return c.db.Close() }
