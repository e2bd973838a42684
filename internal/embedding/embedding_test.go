package embedding

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stylefeed/stylefeed/internal/config"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

func testConfig(endpoint string) config.EmbeddingConfig {
	return config.EmbeddingConfig{
		Endpoint:       endpoint,
		Model:          "test-model",
		Dimensions:     4,
		MaxRetries:     3,
		RequestTimeout: 5 * time.Second,
	}
}

func TestEmbedSuccess(t *testing.T) {
	var gotReq embedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotReq)
		json.NewEncoder(w).Encode(embedResponse{Embedding: []float32{1, 2, 3, 4}})
	}))
	defer srv.Close()

	c := New(testConfig(srv.URL), testLogger)
	vec, err := c.Embed(context.Background(), "https://cdn.example.com/a.jpg")
	if err != nil {
		t.Fatalf("embed failed: %v", err)
	}
	if len(vec) != 4 {
		t.Fatalf("expected 4 dims, got %d", len(vec))
	}
	if gotReq.ImageURL != "https://cdn.example.com/a.jpg" || gotReq.Model != "test-model" {
		t.Errorf("unexpected request payload %+v", gotReq)
	}
}

func TestEmbedNormalizesProtocolRelativeURL(t *testing.T) {
	var gotURL string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req embedRequest
		json.NewDecoder(r.Body).Decode(&req)
		gotURL = req.ImageURL
		json.NewEncoder(w).Encode(embedResponse{Embedding: []float32{1, 2, 3, 4}})
	}))
	defer srv.Close()

	c := New(testConfig(srv.URL), testLogger)
	if _, err := c.Embed(context.Background(), "//cdn.example.com/a.jpg"); err != nil {
		t.Fatalf("embed failed: %v", err)
	}
	if gotURL != "https://cdn.example.com/a.jpg" {
		t.Errorf("expected https prefix, got %q", gotURL)
	}
}

func TestEmbedSkipsUnusableURLs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("skippable URL must not hit the endpoint")
	}))
	defer srv.Close()

	c := New(testConfig(srv.URL), testLogger)
	for _, url := range []string{
		"",
		"data:image/gif;base64,R0lGOD",
		"https://cdn.example.com/clip.mp4",
		"https://cdn.example.com/stream.m3u8",
		"https://cdn.example.com/page.html",
	} {
		vec, err := c.Embed(context.Background(), url)
		if vec != nil || err != nil {
			t.Errorf("Embed(%q) = %v, %v; want nil, nil", url, vec, err)
		}
	}
}

func TestEmbedDimensionMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(embedResponse{Embedding: []float32{1, 2}})
	}))
	defer srv.Close()

	c := New(testConfig(srv.URL), testLogger)
	if _, err := c.Embed(context.Background(), "https://cdn.example.com/a.jpg"); err == nil {
		t.Error("expected dimension mismatch error")
	}
}

func TestEmbedRetriesTransientFailures(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 2 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(embedResponse{Embedding: []float32{1, 2, 3, 4}})
	}))
	defer srv.Close()

	c := New(testConfig(srv.URL), testLogger)
	vec, err := c.Embed(context.Background(), "https://cdn.example.com/a.jpg")
	if err != nil {
		t.Fatalf("embed failed after retry: %v", err)
	}
	if attempts != 2 || len(vec) != 4 {
		t.Errorf("expected success on attempt 2, got attempts=%d vec=%v", attempts, vec)
	}
}

func TestEmbedDisabled(t *testing.T) {
	c := New(config.EmbeddingConfig{MaxRetries: 3}, testLogger)
	vec, err := c.Embed(context.Background(), "https://cdn.example.com/a.jpg")
	if vec != nil || err != nil {
		t.Errorf("disabled client must skip, got %v, %v", vec, err)
	}
}
