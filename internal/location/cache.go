package location

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// DefaultCacheTTL keeps geocoder answers for a month.
const DefaultCacheTTL = 30 * 24 * time.Hour

const cacheMigration = `
CREATE TABLE IF NOT EXISTS location_cache (
	key       TEXT PRIMARY KEY,
	query     TEXT NOT NULL,
	address   TEXT,
	cached_at INTEGER NOT NULL
);
`

// Cache stores resolved addresses in SQLite. A NULL address records a
// location the geocoder could not resolve.
type Cache struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

// OpenCache opens (and migrates) the cache database at path.
func OpenCache(ctx context.Context, path string, ttl time.Duration) (*Cache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "location cache: open")
	}
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "location cache: exec %s", pragma)
		}
	}
	if _, err := db.ExecContext(ctx, cacheMigration); err != nil {
		db.Close()
		return nil, eris.Wrap(err, "location cache: migrate")
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cache{db: db, ttl: ttl, now: time.Now}, nil
}

// Close closes the database.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Get returns the cached address for text. found is false when there is no
// fresh entry; a found entry with a nil address is a cached failure.
func (c *Cache) Get(ctx context.Context, text string) (addr *Address, found bool, err error) {
	var raw sql.NullString
	var cachedAt int64
	row := c.db.QueryRowContext(ctx,
		"SELECT address, cached_at FROM location_cache WHERE key = ?", cacheKey(text))
	if err := row.Scan(&raw, &cachedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, eris.Wrap(err, "location cache: get")
	}
	if c.now().Sub(time.Unix(cachedAt, 0)) > c.ttl {
		return nil, false, nil
	}
	if !raw.Valid {
		return nil, true, nil
	}
	var a Address
	if err := json.Unmarshal([]byte(raw.String), &a); err != nil {
		return nil, false, eris.Wrap(err, "location cache: decode")
	}
	return &a, true, nil
}

// Set stores addr (nil for a failed lookup) for text.
func (c *Cache) Set(ctx context.Context, text string, addr *Address) error {
	var raw any
	if addr != nil {
		data, err := json.Marshal(addr)
		if err != nil {
			return eris.Wrap(err, "location cache: encode")
		}
		raw = string(data)
	}
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO location_cache (key, query, address, cached_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET
			query = excluded.query,
			address = excluded.address,
			cached_at = excluded.cached_at`,
		cacheKey(text), text, raw, c.now().Unix(),
	)
	if err != nil {
		return eris.Wrap(err, "location cache: set")
	}
	return nil
}

// Purge removes expired entries and returns how many were deleted.
func (c *Cache) Purge(ctx context.Context) (int64, error) {
	cutoff := c.now().Add(-c.ttl).Unix()
	res, err := c.db.ExecContext(ctx, "DELETE FROM location_cache WHERE cached_at < ?", cutoff)
	if err != nil {
		return 0, eris.Wrap(err, "location cache: purge")
	}
	return res.RowsAffected()
}

func cacheKey(text string) string {
	h := sha256.Sum256([]byte(strings.ToLower(collapse(text))))
	return fmt.Sprintf("%x", h)
}

// CachedResolver answers from the cache before asking the wrapped resolver.
// Only successes and *UnresolvableError are cached; transport errors are not.
type CachedResolver struct {
	inner Resolver
	cache *Cache
}

// NewCachedResolver wraps inner with cache.
func NewCachedResolver(inner Resolver, cache *Cache) *CachedResolver {
	return &CachedResolver{inner: inner, cache: cache}
}

// Resolve implements Resolver.
func (r *CachedResolver) Resolve(ctx context.Context, text string) (*Address, error) {
	addr, found, err := r.cache.Get(ctx, text)
	if err != nil {
		zap.L().Warn("location cache read failed", zap.Error(err))
	} else if found {
		if addr == nil {
			return nil, &UnresolvableError{Text: text, Reason: "cached failure"}
		}
		return addr, nil
	}

	addr, err = r.inner.Resolve(ctx, text)
	var unresolvable *UnresolvableError
	switch {
	case err == nil:
		if err := r.cache.Set(ctx, text, addr); err != nil {
			zap.L().Warn("location cache write failed", zap.Error(err))
		}
		return addr, nil
	case errors.As(err, &unresolvable):
		if err := r.cache.Set(ctx, text, nil); err != nil {
			zap.L().Warn("location cache write failed", zap.Error(err))
		}
		return nil, err
	default:
		return nil, err
	}
}
