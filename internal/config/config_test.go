package config

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/stylefeed/stylefeed/internal/types"
)

func TestExpand(t *testing.T) {
	got := Expand("https://api.example.com/cat/{category_id}/products?ids={product_ids}", map[string]string{
		"category_id": "77",
		"product_ids": "1,2,3",
	})
	want := "https://api.example.com/cat/77/products?ids=1,2,3"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}

	// Unknown placeholders stay untouched.
	if got := Expand("x/{missing}", map[string]string{"other": "1"}); got != "x/{missing}" {
		t.Errorf("unexpected expansion %q", got)
	}
}

func TestFieldMapExpressions(t *testing.T) {
	if got := FieldMapExpressions("detail.name"); !reflect.DeepEqual(got, []string{"detail.name"}) {
		t.Errorf("string entry: %v", got)
	}
	got := FieldMapExpressions([]any{"a", nil, "b"})
	if !reflect.DeepEqual(got, []string{"a", "", "b"}) {
		t.Errorf("list entry: %v", got)
	}
	if got := FieldMapExpressions(nil); got != nil {
		t.Errorf("nil entry: %v", got)
	}
	if got := FieldMapExpressions(42); got != nil {
		t.Errorf("non-string entry: %v", got)
	}
}

func TestDefaultConfigValidates(t *testing.T) {
	if err := Validate(DefaultConfig()); err != nil {
		t.Errorf("default config must validate: %v", err)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Storage.Type = "redis"
	if err := Validate(cfg); err == nil {
		t.Error("expected error for unsupported storage type")
	}

	cfg = DefaultConfig()
	cfg.HTTP.RequestTimeout = 0
	if err := Validate(cfg); err == nil {
		t.Error("expected error for zero request timeout")
	}
}

func validSite() Site {
	return Site{
		Brand: "Nordwear",
		API: &APIConfig{
			CategoryIDsURL:    "https://api.example.com/cat/{category_id}/products",
			ProductsURL:       "https://api.example.com/products?ids={product_ids}",
			CategoryEndpoints: []CategoryRef{{ID: "1", Gender: "WOMAN"}},
			FieldMap:          map[string]any{"external_id": "id"},
		},
	}
}

func TestValidateSite(t *testing.T) {
	s := validSite()
	if err := s.ValidateSite(); err != nil {
		t.Fatalf("valid site rejected: %v", err)
	}

	s = validSite()
	s.Brand = " "
	if err := s.ValidateSite(); err == nil {
		t.Error("expected error for blank brand")
	}

	s = validSite()
	s.API.ProductsURL = ""
	err := s.ValidateSite()
	if err == nil {
		t.Fatal("expected error for missing products_url")
	}
	var ce *types.ConfigError
	if !errors.As(err, &ce) {
		t.Fatalf("expected a ConfigError, got %T", err)
	}
	if ce.Site != s.Brand || ce.Field != "products_url" {
		t.Errorf("unexpected ConfigError %+v", ce)
	}

	s = validSite()
	s.API.FieldMap = nil
	if err := s.ValidateSite(); err == nil {
		t.Error("expected error for missing field_map")
	}

	s = validSite()
	s.API.CategoryEndpoints = nil
	if err := s.ValidateSite(); err == nil {
		t.Error("expected error when no discovery strategy is configured")
	}

	s = validSite()
	s.API.Prewarm = []string{"ftp://example.com"}
	if err := s.ValidateSite(); err == nil {
		t.Error("expected error for non-http prewarm URL")
	}
}

func TestBatchSizeOrDefault(t *testing.T) {
	a := &APIConfig{}
	if got := a.BatchSizeOrDefault(); got != 50 {
		t.Errorf("expected default 50, got %d", got)
	}
	a.BatchSize = 25
	if got := a.BatchSizeOrDefault(); got != 25 {
		t.Errorf("expected 25, got %d", got)
	}
}

const sitesYAML = `
sites:
  - brand: Nordwear
    merchant: Nordwear US
    source: scraper
    country: US
    static_asset_host: https://static.nordwear.net
    api:
      category_ids_url: "https://api.example.com/cat/{category_id}/products"
      products_url: "https://api.example.com/products?ids={product_ids}"
      batch_size: 25
      category_endpoints:
        - id: "100"
          name: women
          gender: WOMAN
          category: clothing
      items_path:
        - products
        - results.items
      field_map:
        external_id: id
        title:
          - displayName
          - detail.name
        image_url: media.main
      headers:
        Accept: application/json
  - brand: Thornproof
    api:
      endpoints:
        - "https://api.thornproof.example/products?ajax=true"
      field_map:
        external_id: sku
`

func TestLoadSites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sites.yaml")
	if err := os.WriteFile(path, []byte(sitesYAML), 0o644); err != nil {
		t.Fatal(err)
	}

	sites, err := LoadSites(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(sites) != 2 {
		t.Fatalf("expected 2 sites, got %d", len(sites))
	}

	nw := sites[0]
	if nw.Brand != "Nordwear" || nw.Country != "US" {
		t.Errorf("unexpected site %+v", nw)
	}
	if nw.API.BatchSize != 25 {
		t.Errorf("expected batch size 25, got %d", nw.API.BatchSize)
	}
	if len(nw.API.CategoryEndpoints) != 1 || nw.API.CategoryEndpoints[0].Gender != "WOMAN" {
		t.Errorf("unexpected category endpoints %+v", nw.API.CategoryEndpoints)
	}

	paths := ItemsPathList(nw.API.ItemsPath)
	if !reflect.DeepEqual(paths, []string{"products", "results.items"}) {
		t.Errorf("unexpected items path list %v", paths)
	}
	exprs := FieldMapExpressions(nw.API.FieldMap["title"])
	if !reflect.DeepEqual(exprs, []string{"displayName", "detail.name"}) {
		t.Errorf("unexpected title expressions %v", exprs)
	}
	if err := nw.ValidateSite(); err != nil {
		t.Errorf("loaded site must validate: %v", err)
	}

	if got := FilterSites(sites, "thornproof"); len(got) != 1 || got[0].Brand != "Thornproof" {
		t.Errorf("brand filter failed: %+v", got)
	}
	if got := FilterSites(sites, ""); len(got) != 2 {
		t.Errorf("empty filter must keep all sites, got %d", len(got))
	}
}
