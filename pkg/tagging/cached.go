package tagging

import (
	"context"
	"encoding/json"
	"time"

	"github.com/m4bforge/m4bforge/pkg/cache"
)

// CachedCatalog wraps a CatalogClient with an in-memory TTL cache for
// searches and detail lookups. The catalog rate-limits repeated queries, so
// re-running a search while picking a candidate should not hit it again.
// Errors and cover downloads are never cached.
type CachedCatalog struct {
	inner CatalogClient
	cache *cache.LRUCache
}

// NewCachedCatalog wraps the given client. maxSize and ttl follow LRUCache
// semantics.
func NewCachedCatalog(inner CatalogClient, maxSize int, ttl time.Duration) *CachedCatalog {
	return &CachedCatalog{
		inner: inner,
		cache: cache.NewLRUCache(maxSize, ttl),
	}
}

func (c *CachedCatalog) Search(ctx context.Context, query string) ([]SearchResult, error) {
	key := "search:" + query
	if raw, ok := c.cache.Get(key); ok {
		var results []SearchResult
		if err := json.Unmarshal(raw, &results); err == nil {
			return results, nil
		}
		c.cache.Invalidate(key)
	}

	results, err := c.inner.Search(ctx, query)
	if err != nil {
		return nil, err
	}
	if raw, err := json.Marshal(results); err == nil {
		c.cache.Set(key, raw)
	}
	return results, nil
}

func (c *CachedCatalog) FetchDetails(ctx context.Context, asin string) (*Metadata, error) {
	key := "details:" + asin
	if raw, ok := c.cache.Get(key); ok {
		var meta Metadata
		if err := json.Unmarshal(raw, &meta); err == nil {
			return &meta, nil
		}
		c.cache.Invalidate(key)
	}

	meta, err := c.inner.FetchDetails(ctx, asin)
	if err != nil {
		return nil, err
	}
	if raw, err := json.Marshal(meta); err == nil {
		c.cache.Set(key, raw)
	}
	return meta, nil
}

func (c *CachedCatalog) DownloadCover(ctx context.Context, coverURL string) ([]byte, error) {
	return c.inner.DownloadCover(ctx, coverURL)
}
