// Package discovery resolves the list of product endpoints to crawl
// for a site, using layered strategies: a static endpoint list, JSON
// category discovery, or HTML category-page scraping. Every strategy
// returns an order-preserving, de-duplicated list and swallows
// per-item errors; category discovery that resolves nothing reports
// types.ErrNoEndpoint, which callers treat as non-fatal.
package discovery

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/stylefeed/stylefeed/internal/config"
	"github.com/stylefeed/stylefeed/internal/fetcher"
	"github.com/stylefeed/stylefeed/internal/jsonpath"
	"github.com/stylefeed/stylefeed/internal/types"
)

// Client is the subset of the HTTP client the discoverer needs.
type Client interface {
	Get(ctx context.Context, url string, headers map[string]string) (*fetcher.Response, error)
	FetchJSON(ctx context.Context, url string, headers map[string]string) (any, error)
}

// Discoverer resolves category/product endpoints for one site.
type Discoverer struct {
	client Client
	logger *slog.Logger
}

// New creates a Discoverer.
func New(client Client, logger *slog.Logger) *Discoverer {
	return &Discoverer{
		client: client,
		logger: logger.With("component", "discovery"),
	}
}

// Static returns the configured endpoint list verbatim, de-duplicated
// with first-seen order preserved.
func (d *Discoverer) Static(endpoints []string) []string {
	return dedupe(endpoints)
}

// FromCategories fetches a categories JSON document and resolves one
// endpoint per category item: a direct URL string, a URL extracted via
// url_path, or an id extracted via id_path templated into
// url_template. If nothing resolves, it falls back to a recursive scan
// of the whole document for numeric identifier fields, a last-resort
// heuristic known to pick up unrelated ids.
func (d *Discoverer) FromCategories(ctx context.Context, cfg *config.CategoriesConfig, headers map[string]string) ([]string, error) {
	data, err := d.client.FetchJSON(ctx, cfg.Endpoint, headers)
	if err != nil {
		return nil, err
	}

	var endpoints []string
	items := jsonpath.LookupList(cfg.ItemsPath, data)

	for _, item := range items {
		// Direct URL strings
		if s, ok := item.(string); ok && strings.HasPrefix(s, "http") {
			endpoints = append(endpoints, s)
			continue
		}

		// URL from path
		if cfg.URLPath != "" {
			if u := jsonpath.LookupString(cfg.URLPath, item); strings.HasPrefix(u, "http") {
				endpoints = append(endpoints, u)
				continue
			}
		}

		// ID + template
		if cfg.IDPath != "" && cfg.URLTemplate != "" {
			if cid := jsonpath.Lookup(cfg.IDPath, item); cid != nil {
				endpoints = append(endpoints, config.Expand(cfg.URLTemplate, map[string]string{
					"id": types.Stringify(cid),
				}))
			}
		}
	}

	if len(endpoints) == 0 && cfg.URLTemplate != "" {
		ids := dedupe(collectNumericIDs(data))
		if len(ids) > 0 {
			d.logger.Warn("category discovery fell back to recursive id scan",
				"endpoint", cfg.Endpoint,
				"ids", len(ids),
			)
		}
		for _, cid := range ids {
			endpoints = append(endpoints, config.Expand(cfg.URLTemplate, map[string]string{"id": cid}))
		}
	}

	result := dedupe(endpoints)
	if len(result) == 0 {
		return nil, types.ErrNoEndpoint
	}
	return result, nil
}

// collectNumericIDs walks the document and gathers every "id" field
// whose value is purely numeric. Map keys are visited in sorted order
// so repeated runs over the same document yield the same list.
func collectNumericIDs(node any) []string {
	var acc []string
	var walk func(any)
	walk = func(n any) {
		switch v := n.(type) {
		case map[string]any:
			if id, ok := v["id"]; ok {
				if s := types.Stringify(id); isDigits(s) {
					acc = append(acc, s)
				}
			}
			keys := make([]string, 0, len(v))
			for k := range v {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				walk(v[k])
			}
		case []any:
			for _, e := range v {
				walk(e)
			}
		}
	}
	walk(node)
	return acc
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// dedupe removes duplicates while preserving first-seen order.
func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
