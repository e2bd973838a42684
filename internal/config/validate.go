package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/stylefeed/stylefeed/internal/types"
)

// Validate checks the root configuration for invalid values.
func Validate(cfg *Config) error {
	if cfg.HTTP.RequestTimeout <= 0 {
		return fmt.Errorf("http.request_timeout must be > 0")
	}
	if cfg.HTTP.PolitenessDelay < 0 {
		return fmt.Errorf("http.politeness_delay must be >= 0")
	}
	if cfg.HTTP.MaxBodySize <= 0 {
		return fmt.Errorf("http.max_body_size must be > 0")
	}
	if cfg.HTTP.MaxRedirects < 0 {
		return fmt.Errorf("http.max_redirects must be >= 0")
	}

	switch cfg.Storage.Type {
	case "postgres", "mongodb", "jsonl":
	default:
		return fmt.Errorf("storage.type must be 'postgres', 'mongodb' or 'jsonl', got %q", cfg.Storage.Type)
	}
	if cfg.Storage.BatchSize < 1 {
		return fmt.Errorf("storage.batch_size must be >= 1, got %d", cfg.Storage.BatchSize)
	}

	if cfg.Embedding.Dimensions < 0 {
		return fmt.Errorf("embedding.dimensions must be >= 0, got %d", cfg.Embedding.Dimensions)
	}
	if cfg.Embedding.MaxRetries < 1 {
		return fmt.Errorf("embedding.max_retries must be >= 1, got %d", cfg.Embedding.MaxRetries)
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be debug/info/warn/error, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" && cfg.Logging.Format != "json" {
		return fmt.Errorf("logging.format must be 'text' or 'json', got %q", cfg.Logging.Format)
	}

	return nil
}

// ValidateSite checks a site configuration. A failing site is reported
// once and skipped; the run continues with the remaining sites.
func (s *Site) ValidateSite() error {
	if strings.TrimSpace(s.Brand) == "" {
		return &types.ConfigError{Field: "brand", Err: errors.New("brand is required")}
	}
	if s.API == nil {
		return &types.ConfigError{Site: s.Brand, Field: "api", Err: errors.New("api block is required")}
	}
	api := s.API

	hasStatic := len(api.Endpoints) > 0
	hasCategories := api.Categories != nil
	hasHTML := api.HTML != nil
	hasTwoStep := len(api.CategoryEndpoints) > 0
	if !hasStatic && !hasCategories && !hasHTML && !hasTwoStep {
		return &types.ConfigError{Site: s.Brand, Field: "api", Err: errors.New("no discovery strategy configured")}
	}

	if hasTwoStep {
		if api.CategoryIDsURL == "" {
			return &types.ConfigError{Site: s.Brand, Field: "category_ids_url", Err: errors.New("required for category_endpoints")}
		}
		if api.ProductsURL == "" {
			return &types.ConfigError{Site: s.Brand, Field: "products_url", Err: errors.New("required for category_endpoints")}
		}
	}
	if hasCategories && api.Categories.Endpoint == "" {
		return &types.ConfigError{Site: s.Brand, Field: "categories.endpoint", Err: errors.New("required for category discovery")}
	}
	if len(api.FieldMap) == 0 {
		return &types.ConfigError{Site: s.Brand, Field: "field_map", Err: errors.New("field_map is required")}
	}

	for _, u := range api.Prewarm {
		if err := validateURL(u); err != nil {
			return &types.ConfigError{Site: s.Brand, Field: "prewarm", Err: err}
		}
	}
	return nil
}

// BatchSizeOrDefault returns the configured detail-batch size.
func (a *APIConfig) BatchSizeOrDefault() int {
	if a.BatchSize > 0 {
		return a.BatchSize
	}
	return 50
}

func validateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL %q must use http or https", rawURL)
	}
	if u.Host == "" {
		return fmt.Errorf("URL %q has no host", rawURL)
	}
	return nil
}
