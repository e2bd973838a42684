// Package runner orchestrates a scrape: per site, discover or resolve
// product identifiers, ingest detail batches, normalize, embed, and
// upsert. Everything inside one site is sequential; only storage
// failures at startup abort the run.
package runner

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/stylefeed/stylefeed/internal/browser"
	"github.com/stylefeed/stylefeed/internal/config"
	"github.com/stylefeed/stylefeed/internal/discovery"
	"github.com/stylefeed/stylefeed/internal/fetcher"
	"github.com/stylefeed/stylefeed/internal/ingest"
	"github.com/stylefeed/stylefeed/internal/normalize"
	"github.com/stylefeed/stylefeed/internal/resolver"
	"github.com/stylefeed/stylefeed/internal/storage"
	"github.com/stylefeed/stylefeed/internal/types"
)

// videoMarkers flag image URLs that actually point at product videos.
var videoMarkers = []string{".mp4", ".m3u8", ".webm", "video"}

// Embedder produces an image embedding; nil vector with nil error
// means the image was skipped.
type Embedder interface {
	Embed(ctx context.Context, imageURL string) ([]float32, error)
}

// Stats summarizes one run.
type Stats struct {
	Sites      int
	Discovered int
	Unique     int
	Collected  int
	Upserted   int
	Duration   time.Duration
}

// Runner executes the pipeline for configured sites.
type Runner struct {
	cfg    *config.Config
	store  storage.Storage
	embed  Embedder // nil disables embedding; rows are stored without vectors
	logger *slog.Logger
}

// New creates a Runner.
func New(cfg *config.Config, store storage.Storage, embed Embedder, logger *slog.Logger) *Runner {
	return &Runner{
		cfg:    cfg,
		store:  store,
		embed:  embed,
		logger: logger.With("component", "runner"),
	}
}

// Run scrapes every site in order. limit, when positive, caps the
// number of rows collected per site; the cap may be overshot by at
// most one detail batch.
func (r *Runner) Run(ctx context.Context, sites []config.Site, limit int) (*Stats, error) {
	start := time.Now()
	stats := &Stats{}

	for _, site := range sites {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		if err := site.ValidateSite(); err != nil {
			r.logger.Warn("skipping invalid site", "site", site.Brand, "error", err)
			continue
		}
		r.runSite(ctx, site, limit, stats)
		stats.Sites++
	}

	stats.Duration = time.Since(start)
	r.logger.Info("run complete",
		"sites", stats.Sites,
		"discovered", stats.Discovered,
		"unique", stats.Unique,
		"collected", stats.Collected,
		"upserted", stats.Upserted,
		"duration", stats.Duration,
	)
	return stats, nil
}

func (r *Runner) runSite(ctx context.Context, site config.Site, limit int, stats *Stats) {
	log := r.logger.With("site", site.Brand)
	api := site.API

	client, err := fetcher.New(&r.cfg.HTTP, log, fetcher.WithDefaultHeaders(api.Headers))
	if err != nil {
		log.Error("http client setup failed", "error", err)
		return
	}
	defer client.Close()

	for _, warmURL := range api.Prewarm {
		if _, err := client.Get(ctx, warmURL, nil); err != nil {
			log.Debug("prewarm request failed", "url", warmURL, "error", err)
		}
	}

	ing := ingest.New(client, api, site.Source, log)

	var rows []types.Row
	if len(api.CategoryEndpoints) > 0 {
		rows = r.runCategories(ctx, client, ing, site, limit, log, stats)
	} else {
		rows = r.runDiscovered(ctx, client, ing, site, limit, log, stats)
	}

	stats.Collected += len(rows)
	if len(rows) == 0 {
		log.Info("no products collected")
		return
	}

	log.Info("upserting products", "count", len(rows))
	r.upsertRows(ctx, rows, log, stats)
}

// runCategories is the two-step flow: resolve the full identifier list
// per category, then fetch details in batches. Products appearing in
// multiple categories are ingested once, under the first category.
func (r *Runner) runCategories(ctx context.Context, client *fetcher.Client, ing *ingest.Ingestor, site config.Site, limit int, log *slog.Logger, stats *Stats) []types.Row {
	api := site.API

	var br resolver.BrowserResolver
	if r.cfg.Browser.Enabled {
		br = browser.New(r.cfg.Browser, api, log)
	}
	res := resolver.New(client, br, api, log)

	seen := make(map[int64]bool)
	var rows []types.Row
	for _, cat := range api.CategoryEndpoints {
		if cat.ID == "" {
			continue
		}
		log.Info("processing category", "category", cat.ID, "name", cat.Name)

		ids := res.Resolve(ctx, cat)
		if len(ids) == 0 {
			log.Warn("no products found, skipping category", "category", cat.ID)
			continue
		}
		stats.Discovered += len(ids)

		fresh := make([]int64, 0, len(ids))
		for _, id := range ids {
			if !seen[id] {
				seen[id] = true
				fresh = append(fresh, id)
			}
		}
		if dup := len(ids) - len(fresh); dup > 0 {
			log.Info("duplicate products filtered", "category", cat.ID, "duplicates", dup, "new", len(fresh))
		}
		if len(fresh) == 0 {
			continue
		}

		remaining := 0
		if limit > 0 {
			remaining = limit - len(rows)
			if remaining <= 0 {
				break
			}
		}

		products := ing.Run(ctx, cat.ID, fresh, remaining)
		rows = append(rows, r.materialize(ctx, products, site, cat, log)...)
		log.Info("category done", "category", cat.ID, "collected_so_far", len(rows))

		if limit > 0 && len(rows) >= limit {
			log.Info("product limit reached", "limit", limit)
			break
		}
	}
	stats.Unique += len(seen)
	return rows
}

// runDiscovered is the single-step flow: discover listing endpoints
// and ingest each one directly.
func (r *Runner) runDiscovered(ctx context.Context, client *fetcher.Client, ing *ingest.Ingestor, site config.Site, limit int, log *slog.Logger, stats *Stats) []types.Row {
	api := site.API
	disc := discovery.New(client, log)

	endpoints := disc.Static(api.Endpoints)
	if api.Categories != nil {
		more, err := disc.FromCategories(ctx, api.Categories, api.Headers)
		if err != nil {
			log.Warn("category discovery failed", "error", err)
		}
		endpoints = append(endpoints, more...)
	}
	if api.HTML != nil {
		endpoints = append(endpoints, disc.FromHTML(ctx, api.HTML, api.Headers)...)
	}
	stats.Discovered += len(endpoints)

	seen := make(map[string]bool)
	var rows []types.Row
	for _, endpoint := range endpoints {
		if seen[endpoint] {
			continue
		}
		seen[endpoint] = true

		products, err := ing.FetchBatch(ctx, endpoint)
		if err != nil {
			log.Warn("endpoint ingestion failed, continuing", "endpoint", endpoint, "error", err)
			continue
		}
		rows = append(rows, r.materialize(ctx, products, site, config.CategoryRef{}, log)...)

		if limit > 0 && len(rows) >= limit {
			log.Info("product limit reached", "limit", limit)
			break
		}
	}
	stats.Unique += len(seen)
	return rows
}

// materialize enriches, normalizes, filters, and embeds one batch of
// mapped products.
func (r *Runner) materialize(ctx context.Context, products []*types.Product, site config.Site, cat config.CategoryRef, log *slog.Logger) []types.Row {
	var rows []types.Row
	for _, p := range products {
		flat := enrich(p, site, cat)
		row := normalize.ToRow(flat, site)

		if row.ImageURL == "" || skipImage(row.ImageURL, site) {
			continue
		}

		if r.embed != nil {
			vec, err := r.embed.Embed(ctx, row.ImageURL)
			if err != nil {
				log.Warn("embedding failed, skipping product", "id", row.ID, "error", err)
				continue
			}
			if vec == nil {
				continue
			}
			row.Embedding = vec
		}
		rows = append(rows, row)
	}
	return rows
}

// enrich layers run-scoped facts over the mapped fields: category
// assignment, site provenance, identifier backfill, and public URL
// synthesis.
func enrich(p *types.Product, site config.Site, cat config.CategoryRef) map[string]any {
	flat := make(map[string]any, len(p.Fields)+6)
	for k, v := range p.Fields {
		flat[k] = v
	}

	if cat.Gender != "" {
		flat["gender"] = cat.Gender
	}
	if cat.Category != "" {
		flat["category"] = cat.Category
	}
	if site.Source != "" {
		flat["source"] = site.Source
	}

	if asString(flat["external_id"]) == "" {
		if id := firstNonEmpty(flat, "product_id", "id"); id != nil {
			flat["external_id"] = id
		}
	}

	externalID := asString(flat["external_id"])
	if externalID != "" && site.API.ProductURLTemplate != "" {
		flat["product_url"] = config.Expand(site.API.ProductURLTemplate, map[string]string{
			"slug":       normalize.Slugify(asString(flat["title"])),
			"product_id": externalID,
			"id":         externalID,
		})
	}

	meta := map[string]any{"endpoint": p.Meta.Endpoint}
	if site.Merchant != "" {
		meta["merchant"] = site.Merchant
	}
	if cat.ID != "" {
		meta["category_id"] = cat.ID
	}
	flat["_meta"] = meta
	flat["_raw_item"] = p.Raw
	return flat
}

// skipImage filters image URLs no embedding or storefront can use:
// video renditions and truncated CDN paths.
func skipImage(url string, site config.Site) bool {
	lower := strings.ToLower(url)
	for _, m := range videoMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	if site.RequiredImageMarker != "" && !strings.Contains(url, site.RequiredImageMarker) {
		return true
	}
	return false
}

// upsertRows writes rows in chunks; a failed chunk is retried row by
// row so one poison row cannot sink its neighbors.
func (r *Runner) upsertRows(ctx context.Context, rows []types.Row, log *slog.Logger, stats *Stats) {
	size := r.cfg.Storage.BatchSize
	if size <= 0 {
		size = 50
	}

	for start := 0; start < len(rows); start += size {
		end := start + size
		if end > len(rows) {
			end = len(rows)
		}
		chunk := rows[start:end]

		if err := r.store.Upsert(ctx, chunk); err != nil {
			log.Warn("chunk upsert failed, retrying row by row", "size", len(chunk), "error", err)
			for _, row := range chunk {
				if err := r.store.Upsert(ctx, []types.Row{row}); err != nil {
					log.Error("row upsert failed", "id", row.ID, "error", err)
					continue
				}
				stats.Upserted++
			}
			continue
		}
		stats.Upserted += len(chunk)
	}
}

func asString(v any) string {
	if v == nil {
		return ""
	}
	return strings.TrimSpace(types.Stringify(v))
}

func firstNonEmpty(flat map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := flat[k]; ok && v != nil && asString(v) != "" {
			return v
		}
	}
	return nil
}
