// Package resolver resolves the full set of product identifiers for a
// category, falling through ordered strategies: a locally cached
// category→URL mapping, the direct category API, and finally a
// headless-browser replay that bypasses bot defenses. Exhaustion is
// non-fatal; the category is skipped and the run continues.
package resolver

import (
	"context"
	"log/slog"

	"github.com/stylefeed/stylefeed/internal/config"
	"github.com/stylefeed/stylefeed/internal/jsonpath"
	"github.com/stylefeed/stylefeed/internal/types"
)

// productIDsPath locates the identifier list in a category listing
// response.
const productIDsPath = "productIds"

// Client is the subset of the HTTP client the resolver needs.
type Client interface {
	FetchJSON(ctx context.Context, url string, headers map[string]string) (any, error)
}

// BrowserResolver is the headless-browser fallback boundary. The core
// resolution logic is tested against substitute implementations; the
// rod-backed one lives in internal/browser.
type BrowserResolver interface {
	ResolveProductIDs(ctx context.Context, category config.CategoryRef) ([]int64, error)
}

// Resolver resolves product identifier lists per category.
type Resolver struct {
	client  Client
	browser BrowserResolver // nil disables the browser fallback
	api     *config.APIConfig
	cache   CategoryURLs
	logger  *slog.Logger
}

// New creates a Resolver. The cache file is read once; a missing file
// is logged and treated as an empty cache.
func New(client Client, browser BrowserResolver, api *config.APIConfig, logger *slog.Logger) *Resolver {
	log := logger.With("component", "resolver")

	cache, err := LoadCategoryURLs(api.CacheFile)
	if err != nil {
		log.Warn("category url cache unavailable, will use API fallback",
			"file", api.CacheFile,
			"error", err,
		)
	}

	return &Resolver{
		client:  client,
		browser: browser,
		api:     api,
		cache:   cache,
		logger:  log,
	}
}

// Resolve walks the fallback chain for one category until a strategy
// yields a non-empty identifier list or all are exhausted. An empty
// result means the category should be skipped.
func (r *Resolver) Resolve(ctx context.Context, category config.CategoryRef) []int64 {
	if ids := r.fromCache(ctx, category); len(ids) > 0 {
		r.logger.Info("product ids resolved from cached url", "category", category.ID, "ids", len(ids))
		return ids
	}

	if ids := r.fromAPI(ctx, category); len(ids) > 0 {
		r.logger.Info("product ids resolved from category api", "category", category.ID, "ids", len(ids))
		return ids
	}

	if r.browser == nil {
		r.logger.Warn("all strategies exhausted, browser fallback disabled", "category", category.ID)
		return nil
	}

	r.logger.Info("cache and api failed, trying browser replay", "category", category.ID)
	ids, err := r.browser.ResolveProductIDs(ctx, category)
	if err != nil {
		r.logger.Warn("browser replay failed", "category", category.ID, "error", err)
		return nil
	}
	if len(ids) > 0 {
		r.logger.Info("product ids resolved via browser", "category", category.ID, "ids", len(ids))
	}
	return ids
}

// fromCache resolves ids through the locally cached category URL.
func (r *Resolver) fromCache(ctx context.Context, category config.CategoryRef) []int64 {
	url, ok := r.cache[category.ID]
	if !ok {
		return nil
	}

	doc, err := r.client.FetchJSON(ctx, url, r.api.Headers)
	if err != nil {
		r.logger.Warn("cached url fetch failed", "category", category.ID, "url", url, "error", err)
		return nil
	}
	return ExtractProductIDs(doc)
}

// fromAPI calls the category-scoped products-listing endpoint. A 403
// indicates bot defenses; any non-200 or missing identifier field
// falls through to the next strategy.
func (r *Resolver) fromAPI(ctx context.Context, category config.CategoryRef) []int64 {
	if r.api.CategoryIDsURL == "" {
		return nil
	}
	url := config.Expand(r.api.CategoryIDsURL, map[string]string{"category_id": category.ID})

	doc, err := r.client.FetchJSON(ctx, url, r.api.Headers)
	if err != nil {
		if types.StatusOf(err) == 403 {
			r.logger.Warn("category api blocked by bot defenses", "category", category.ID, "status", 403)
		} else {
			r.logger.Warn("category api call failed", "category", category.ID, "error", err)
		}
		return nil
	}

	ids := ExtractProductIDs(doc)
	if len(ids) == 0 {
		r.logger.Warn("category api response had no product ids", "category", category.ID)
	}
	return ids
}

// ExtractProductIDs pulls the identifier list out of a category
// listing document. Identifiers arrive as JSON numbers or numeric
// strings; anything else is skipped.
func ExtractProductIDs(doc any) []int64 {
	var ids []int64
	for _, v := range jsonpath.LookupList(productIDsPath, doc) {
		if id, ok := toInt64(v); ok {
			ids = append(ids, id)
		}
	}
	return ids
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case float64:
		return int64(n), true
	case int64:
		return n, true
	case int:
		return int64(n), true
	case string:
		var id int64
		for _, r := range n {
			if r < '0' || r > '9' {
				return 0, false
			}
			id = id*10 + int64(r-'0')
		}
		if n == "" {
			return 0, false
		}
		return id, true
	default:
		return 0, false
	}
}
