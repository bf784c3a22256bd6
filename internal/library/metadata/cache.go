package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/narwhalmedia/catalog/internal/library/domain"
	"github.com/narwhalmedia/catalog/internal/library/parser"
	"github.com/narwhalmedia/catalog/pkg/cache"
	"github.com/narwhalmedia/catalog/pkg/interfaces"
)

// CachedProvider memoizes search and details responses. The job cache lives
// as long as one scan job; the optional persistent cache outlives it.
// Concurrent identical lookups share one upstream call. Errors are never
// cached.
type CachedProvider struct {
	next       Provider
	job        interfaces.Cache
	persistent interfaces.Cache
	ttl        time.Duration
	logger     interfaces.Logger
	group      singleflight.Group
}

// NewJobCache returns a fresh cache scoped to a single scan job.
func NewJobCache() *cache.MemoryCache {
	return cache.NewMemoryCache()
}

// NewCachedProvider decorates next. persistent may be nil.
func NewCachedProvider(next Provider, job, persistent interfaces.Cache, ttl time.Duration, logger interfaces.Logger) *CachedProvider {
	return &CachedProvider{
		next:       next,
		job:        job,
		persistent: persistent,
		ttl:        ttl,
		logger:     logger,
	}
}

func (c *CachedProvider) Name() string {
	return c.next.Name()
}

// SearchKey is the cache key of a query.
func SearchKey(q Query) string {
	year := "-"
	if q.Year != nil {
		year = strconv.Itoa(*q.Year)
	}
	return fmt.Sprintf("search:%s:%s:%s", q.Kind, year, parser.Normalize(q.Title))
}

// DetailsKey is the cache key of a details lookup.
func DetailsKey(externalID string, kind domain.Kind) string {
	return fmt.Sprintf("details:%s:%s", kind, externalID)
}

func (c *CachedProvider) Search(ctx context.Context, q Query) ([]Candidate, error) {
	var out []Candidate
	err := c.lookup(ctx, SearchKey(q), &out, func() (interface{}, error) {
		return c.next.Search(ctx, q)
	})
	return out, err
}

func (c *CachedProvider) Details(ctx context.Context, externalID string, kind domain.Kind) (*Details, error) {
	var out *Details
	err := c.lookup(ctx, DetailsKey(externalID, kind), &out, func() (interface{}, error) {
		return c.next.Details(ctx, externalID, kind)
	})
	return out, err
}

// lookup reads key into out, or loads and stores it.
func (c *CachedProvider) lookup(ctx context.Context, key string, out interface{}, load func() (interface{}, error)) error {
	if c.read(ctx, c.job, key, out) {
		return nil
	}
	if c.persistent != nil && c.read(ctx, c.persistent, key, out) {
		c.write(ctx, c.job, key, out, 0)
		return nil
	}

	raw, err, _ := c.group.Do(key, func() (interface{}, error) {
		value, err := load()
		if err != nil {
			return nil, err
		}
		payload, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", key, err)
		}
		c.store(ctx, c.job, key, payload, 0)
		if c.persistent != nil {
			c.store(ctx, c.persistent, key, payload, c.ttl)
		}
		return payload, nil
	})
	if err != nil {
		return err
	}
	return json.Unmarshal(raw.([]byte), out)
}

func (c *CachedProvider) read(ctx context.Context, store interfaces.Cache, key string, out interface{}) bool {
	payload, err := store.Get(ctx, key)
	if err != nil {
		if !cache.IsMiss(err) {
			c.logger.Warn("Metadata cache read failed", interfaces.String("key", key), interfaces.Error(err))
		}
		return false
	}
	if err := json.Unmarshal(payload, out); err != nil {
		c.logger.Warn("Dropping undecodable cache entry", interfaces.String("key", key), interfaces.Error(err))
		_ = store.Delete(ctx, key)
		return false
	}
	return true
}

func (c *CachedProvider) write(ctx context.Context, store interfaces.Cache, key string, value interface{}, ttl time.Duration) {
	payload, err := json.Marshal(value)
	if err != nil {
		return
	}
	c.store(ctx, store, key, payload, ttl)
}

func (c *CachedProvider) store(ctx context.Context, store interfaces.Cache, key string, payload []byte, ttl time.Duration) {
	if err := store.Set(ctx, key, payload, ttl); err != nil {
		c.logger.Warn("Metadata cache write failed", interfaces.String("key", key), interfaces.Error(err))
	}
}
