package types

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for common failure modes.
var (
	ErrBlocked       = errors.New("blocked by robots.txt")
	ErrEmptyResponse = errors.New("empty response body")
	ErrNoIdentifier  = errors.New("record has no external_id or product_id")
	ErrNoImage       = errors.New("record has no image_url")
	ErrNoEndpoint    = errors.New("no endpoint resolved")
)

// FetchError wraps errors that occur during fetching.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
	Retryable  bool
	RetryAfter time.Duration // populated from Retry-After header on HTTP 429
}

func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch error for %s (status %d): %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch error for %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func (e *FetchError) IsRetryable() bool { return e.Retryable }

// StatusOf returns the HTTP status carried by err, or 0 when err is not
// a FetchError. The resolver uses it to recognize bot-defense 403s.
func StatusOf(err error) int {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.StatusCode
	}
	return 0
}

// ConfigError reports a site configuration problem. The affected site
// or category is skipped; the run continues.
type ConfigError struct {
	Site  string
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error for site %q (field %q): %v", e.Site, e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// StorageError wraps errors from the storage backend. Storage being
// unreachable is the only error class fatal to a whole run.
type StorageError struct {
	Backend string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error (%s): %v", e.Backend, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }
