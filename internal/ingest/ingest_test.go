package ingest

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/stylefeed/stylefeed/internal/config"
	"github.com/stylefeed/stylefeed/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

type fakeClient struct {
	respond func(url string) (any, error)
	calls   []string
}

func (f *fakeClient) FetchJSON(_ context.Context, url string, _ map[string]string) (any, error) {
	f.calls = append(f.calls, url)
	return f.respond(url)
}

func item(id, title, image string) map[string]any {
	return map[string]any{"id": id, "name": title, "image": image}
}

func testAPI() *config.APIConfig {
	return &config.APIConfig{
		ProductsURL: "https://api.example.com/products?ids={product_ids}&cat={category_id}",
		ItemsPath:   []any{"products", "results.items"},
		BatchSize:   2,
		FieldMap: map[string]any{
			"external_id": "id",
			"title":       "name",
			"image_url":   "image",
		},
	}
}

func TestFetchBatchItemsPathFallback(t *testing.T) {
	client := &fakeClient{respond: func(string) (any, error) {
		// First path yields nothing, second one wins.
		return map[string]any{
			"results": map[string]any{
				"items": []any{item("1", "Shirt", "/a.jpg")},
			},
		}, nil
	}}

	in := New(client, testAPI(), "api", testLogger)
	products, err := in.FetchBatch(context.Background(), "https://api.example.com/x")
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if len(products) != 1 || products[0].GetString("title") != "Shirt" {
		t.Fatalf("unexpected products: %v", products)
	}
}

func TestFetchBatchDropsUnacceptableItems(t *testing.T) {
	client := &fakeClient{respond: func(string) (any, error) {
		return map[string]any{"products": []any{
			item("1", "Good", "/a.jpg"),
			map[string]any{"name": "No identifier", "image": "/b.jpg"},
			map[string]any{"id": "3", "name": "No image"},
		}}, nil
	}}

	in := New(client, testAPI(), "api", testLogger)
	products, err := in.FetchBatch(context.Background(), "https://api.example.com/x")
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if len(products) != 1 || products[0].Identifier() != "1" {
		t.Fatalf("expected only the complete item, got %d products", len(products))
	}
}

func TestFetchBatchEmptyResponse(t *testing.T) {
	client := &fakeClient{respond: func(string) (any, error) {
		return map[string]any{"products": []any{}}, nil
	}}

	in := New(client, testAPI(), "api", testLogger)
	if _, err := in.FetchBatch(context.Background(), "https://api.example.com/x"); !errors.Is(err, types.ErrEmptyResponse) {
		t.Errorf("expected ErrEmptyResponse, got %v", err)
	}
}

func TestRunPartitionsAndIsolatesFailures(t *testing.T) {
	client := &fakeClient{respond: func(url string) (any, error) {
		// The middle batch fails; the others succeed.
		if strings.Contains(url, "ids=3,4") {
			return nil, &types.FetchError{URL: url, StatusCode: 500, Retryable: true}
		}
		return map[string]any{"products": []any{item(url, "P", "/p.jpg")}}, nil
	}}

	in := New(client, testAPI(), "api", testLogger)
	products := in.Run(context.Background(), "77", []int64{1, 2, 3, 4, 5}, 0)

	if len(client.calls) != 3 {
		t.Fatalf("expected 3 batch calls, got %v", client.calls)
	}
	if !strings.Contains(client.calls[0], "ids=1,2&cat=77") {
		t.Errorf("unexpected first batch url %q", client.calls[0])
	}
	if !strings.Contains(client.calls[2], "ids=5&cat=77") {
		t.Errorf("unexpected final batch url %q", client.calls[2])
	}
	if len(products) != 2 {
		t.Errorf("failed batch must not abort the run, got %d products", len(products))
	}
}

func TestRunLimitShortCircuits(t *testing.T) {
	client := &fakeClient{respond: func(url string) (any, error) {
		return map[string]any{"products": []any{
			item(url+"-a", "A", "/a.jpg"),
			item(url+"-b", "B", "/b.jpg"),
		}}, nil
	}}

	in := New(client, testAPI(), "api", testLogger)
	products := in.Run(context.Background(), "77", []int64{1, 2, 3, 4, 5, 6}, 3)

	// Limit 3 is reached after two batches of two; overshoot by one is
	// allowed, the third batch is not fetched.
	if len(client.calls) != 2 {
		t.Fatalf("expected 2 batch calls, got %v", client.calls)
	}
	if len(products) != 4 {
		t.Errorf("expected 4 products (limit overshoot within a batch), got %d", len(products))
	}
}
