package web

import (
	"context"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/JonMunkholm/sheetload/internal/core"
)

// cachedCatalog serves GetColumns from an LRU of column snapshots. Every
// other call goes to the wrapped catalog.
type cachedCatalog struct {
	core.Catalog
	cache *lru.Cache[string, []core.DestinationColumn]
}

// lookupCatalog keeps the batched existence check of catalogs that have one.
type lookupCatalog struct {
	*cachedCatalog
	core.KeyLookup
}

func withColumnCache(c core.Catalog, cache *lru.Cache[string, []core.DestinationColumn]) core.Catalog {
	cc := &cachedCatalog{Catalog: c, cache: cache}
	if kl, ok := c.(core.KeyLookup); ok {
		return &lookupCatalog{cachedCatalog: cc, KeyLookup: kl}
	}
	return cc
}

func cacheKey(schema, table string) string {
	return strings.ToLower(schema) + "." + strings.ToLower(table)
}

func (c *cachedCatalog) GetColumns(ctx context.Context, schema, table string) ([]core.DestinationColumn, error) {
	key := cacheKey(schema, table)
	if cols, ok := c.cache.Get(key); ok {
		return cols, nil
	}
	cols, err := c.Catalog.GetColumns(ctx, schema, table)
	if err != nil {
		return nil, err
	}
	if len(cols) > 0 {
		c.cache.Add(key, cols)
	}
	return cols, nil
}
