// Package ingest fetches product listing batches and maps the raw
// items into products. Batches fail independently; one bad response
// never aborts the run.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/stylefeed/stylefeed/internal/config"
	"github.com/stylefeed/stylefeed/internal/jsonpath"
	"github.com/stylefeed/stylefeed/internal/mapper"
	"github.com/stylefeed/stylefeed/internal/types"
)

// Client is the subset of the HTTP client the ingestor needs.
type Client interface {
	FetchJSON(ctx context.Context, url string, headers map[string]string) (any, error)
}

// Ingestor fetches listing endpoints and maps their items.
type Ingestor struct {
	client Client
	api    *config.APIConfig
	meta   types.Provenance
	logger *slog.Logger
}

// New creates an Ingestor for one site.
func New(client Client, api *config.APIConfig, source string, logger *slog.Logger) *Ingestor {
	return &Ingestor{
		client: client,
		api:    api,
		meta:   types.Provenance{Source: source},
		logger: logger.With("component", "ingest"),
	}
}

// FetchBatch fetches one listing endpoint and maps every item the
// field map accepts. Items that fail the accept check are counted and
// dropped, not returned as errors.
func (in *Ingestor) FetchBatch(ctx context.Context, endpoint string) ([]*types.Product, error) {
	doc, err := in.client.FetchJSON(ctx, endpoint, in.api.Headers)
	if err != nil {
		return nil, fmt.Errorf("fetching batch: %w", err)
	}

	items := in.extractItems(doc)
	if len(items) == 0 {
		return nil, types.ErrEmptyResponse
	}

	meta := in.meta
	meta.Endpoint = endpoint

	var products []*types.Product
	rejected := 0
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			rejected++
			continue
		}
		prod := mapper.Flatten(obj, in.api.FieldMap, meta)
		if err := mapper.Accept(prod, in.api.FieldMap); err != nil {
			rejected++
			continue
		}
		products = append(products, prod)
	}

	in.logger.Debug("batch mapped",
		"endpoint", endpoint,
		"items", len(items),
		"accepted", len(products),
		"rejected", rejected,
	)
	return products, nil
}

// Run partitions ids into batches and fetches them sequentially. A
// failed batch is logged and skipped. When limit > 0, ingestion stops
// once the collected count reaches it; the final batch may push the
// total past the limit.
func (in *Ingestor) Run(ctx context.Context, categoryID string, ids []int64, limit int) []*types.Product {
	size := in.api.BatchSizeOrDefault()

	var collected []*types.Product
	for start := 0; start < len(ids); start += size {
		if err := ctx.Err(); err != nil {
			in.logger.Warn("ingestion cancelled", "error", err)
			break
		}
		if limit > 0 && len(collected) >= limit {
			in.logger.Info("product limit reached, stopping ingestion", "limit", limit)
			break
		}

		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		endpoint := in.batchEndpoint(categoryID, ids[start:end])

		products, err := in.FetchBatch(ctx, endpoint)
		if err != nil {
			in.logger.Warn("batch failed, continuing",
				"endpoint", endpoint,
				"batch_start", start,
				"error", err,
			)
			continue
		}
		collected = append(collected, products...)
	}
	return collected
}

// batchEndpoint renders the products URL template for one id batch.
func (in *Ingestor) batchEndpoint(categoryID string, ids []int64) string {
	joined := make([]string, len(ids))
	for i, id := range ids {
		joined[i] = strconv.FormatInt(id, 10)
	}
	return config.Expand(in.api.ProductsURL, map[string]string{
		"category_id": categoryID,
		"product_ids": strings.Join(joined, ","),
	})
}

// extractItems locates the item list in a listing response. The
// configured items_path may be a single expression or an ordered
// fallback list; the first path yielding items wins. When no path is
// configured and the document itself is a list, it is used directly.
func (in *Ingestor) extractItems(doc any) []any {
	paths := config.ItemsPathList(in.api.ItemsPath)
	if len(paths) == 0 {
		if list, ok := doc.([]any); ok {
			return list
		}
		return nil
	}
	for _, path := range paths {
		if items := jsonpath.LookupList(path, doc); len(items) > 0 {
			return items
		}
	}
	return nil
}
