package fetcher

import (
	"compress/gzip"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/stylefeed/stylefeed/internal/config"
	"github.com/stylefeed/stylefeed/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

func testHTTPConfig() *config.HTTPConfig {
	return &config.HTTPConfig{
		RequestTimeout:  5 * time.Second,
		FollowRedirects: true,
		MaxRedirects:    5,
		MaxBodySize:     1 << 20,
		MaxIdleConns:    10,
		IdleConnTimeout: time.Second,
		UserAgent:       "stylefeed-test/1.0",
	}
}

func newTestClient(t *testing.T, opts ...Option) *Client {
	t.Helper()
	opts = append(opts, WithLimiter(rate.NewLimiter(rate.Inf, 1)))
	c, err := New(testHTTPConfig(), testLogger, opts...)
	if err != nil {
		t.Fatalf("create client: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestGetSendsHeaders(t *testing.T) {
	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c := newTestClient(t, WithDefaultHeaders(map[string]string{"X-Site": "default", "X-Token": "abc"}))

	resp, err := c.Get(context.Background(), srv.URL, map[string]string{"X-Site": "override"})
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if resp.StatusCode != 200 || resp.Text() != "ok" {
		t.Fatalf("unexpected response: %d %q", resp.StatusCode, resp.Text())
	}
	if got.Get("User-Agent") != "stylefeed-test/1.0" {
		t.Errorf("unexpected user agent %q", got.Get("User-Agent"))
	}
	if got.Get("X-Token") != "abc" {
		t.Errorf("default header not sent, got %q", got.Get("X-Token"))
	}
	if got.Get("X-Site") != "override" {
		t.Errorf("per-call header must win, got %q", got.Get("X-Site"))
	}
}

func TestGetNon2xxReturnsFetchError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer srv.Close()

	c := newTestClient(t)
	_, err := c.Get(context.Background(), srv.URL, nil)
	if err == nil {
		t.Fatal("expected error for 403")
	}

	var fe *types.FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *types.FetchError, got %T", err)
	}
	if fe.StatusCode != 403 {
		t.Errorf("expected status 403, got %d", fe.StatusCode)
	}
	if fe.Retryable {
		t.Error("4xx must not be retryable")
	}
	if types.StatusOf(err) != 403 {
		t.Errorf("StatusOf should unwrap the status, got %d", types.StatusOf(err))
	}
}

func TestGetServerErrorIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := newTestClient(t)
	_, err := c.Get(context.Background(), srv.URL, nil)

	var fe *types.FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *types.FetchError, got %T", err)
	}
	if !fe.Retryable {
		t.Error("5xx must be retryable")
	}
}

func TestGetRateLimitedCarriesRetryAfter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := newTestClient(t)
	_, err := c.Get(context.Background(), srv.URL, nil)

	var fe *types.FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *types.FetchError, got %T", err)
	}
	if !fe.Retryable || fe.RetryAfter != 7*time.Second {
		t.Errorf("expected retryable with 7s retry-after, got %v/%v", fe.Retryable, fe.RetryAfter)
	}
}

func TestGetDecompressesGzip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "gzip")
		gz := gzip.NewWriter(w)
		gz.Write([]byte(`{"ok":true}`))
		gz.Close()
	}))
	defer srv.Close()

	c := newTestClient(t)
	doc, err := c.FetchJSON(context.Background(), srv.URL, nil)
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	m, ok := doc.(map[string]any)
	if !ok || m["ok"] != true {
		t.Errorf("unexpected document %v", doc)
	}
}

func TestFetchJSONEmptyBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := newTestClient(t)
	if _, err := c.FetchJSON(context.Background(), srv.URL, nil); !errors.Is(err, types.ErrEmptyResponse) {
		t.Errorf("expected ErrEmptyResponse, got %v", err)
	}
}

func TestParseRetryAfter(t *testing.T) {
	if d := parseRetryAfter("10"); d != 10*time.Second {
		t.Errorf("expected 10s, got %v", d)
	}
	if d := parseRetryAfter("600"); d != 120*time.Second {
		t.Errorf("expected 2m cap, got %v", d)
	}
	if d := parseRetryAfter(""); d != 5*time.Second {
		t.Errorf("expected 5s default, got %v", d)
	}
}

func TestResponseDocument(t *testing.T) {
	resp := &Response{Body: []byte(`<html><body><a href="/collections/knitwear">Knitwear</a></body></html>`)}

	doc, err := resp.Document()
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	href, _ := doc.Find("a").Attr("href")
	if href != "/collections/knitwear" {
		t.Errorf("unexpected href %q", href)
	}

	again, err := resp.Document()
	if err != nil {
		t.Fatalf("second parse failed: %v", err)
	}
	if again != doc {
		t.Error("parsed document must be reused across calls")
	}
}
