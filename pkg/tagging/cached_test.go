package tagging

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingCatalog struct {
	fakeCatalog
	searches int
	fetches  int
}

func (c *countingCatalog) Search(ctx context.Context, query string) ([]SearchResult, error) {
	c.searches++
	return c.fakeCatalog.Search(ctx, query)
}

func (c *countingCatalog) FetchDetails(ctx context.Context, asin string) (*Metadata, error) {
	c.fetches++
	return c.fakeCatalog.FetchDetails(ctx, asin)
}

func TestCachedCatalogSearch(t *testing.T) {
	inner := &countingCatalog{}
	inner.results = []SearchResult{{ASIN: "A1", Title: "A Book"}}
	c := NewCachedCatalog(inner, 10, time.Minute)

	first, err := c.Search(context.Background(), "wizard")
	require.NoError(t, err)
	second, err := c.Search(context.Background(), "wizard")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, inner.searches)

	// A different query is a different cache key.
	_, err = c.Search(context.Background(), "dragon")
	require.NoError(t, err)
	assert.Equal(t, 2, inner.searches)
}

func TestCachedCatalogDoesNotCacheErrors(t *testing.T) {
	inner := &countingCatalog{}
	inner.searchErr = errors.New("status 503")
	c := NewCachedCatalog(inner, 10, time.Minute)

	_, err := c.Search(context.Background(), "wizard")
	require.Error(t, err)
	_, err = c.Search(context.Background(), "wizard")
	require.Error(t, err)
	assert.Equal(t, 2, inner.searches)
}

func TestCachedCatalogFetchDetails(t *testing.T) {
	inner := &countingCatalog{}
	inner.details = &Metadata{ASIN: "A1", Title: "A Book"}
	c := NewCachedCatalog(inner, 10, time.Minute)

	first, err := c.FetchDetails(context.Background(), "A1")
	require.NoError(t, err)
	second, err := c.FetchDetails(context.Background(), "A1")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, inner.fetches)
}
