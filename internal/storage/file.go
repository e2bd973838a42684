package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/stylefeed/stylefeed/internal/types"
)

// JSONL writes rows as newline-delimited JSON. Used for dry runs and
// debugging, so no database is required to inspect a scrape. Rows are
// appended, not upserted; re-runs produce duplicate lines.
type JSONL struct {
	path   string
	file   *os.File
	enc    *json.Encoder
	mu     sync.Mutex
	count  int
	logger *slog.Logger
}

// NewJSONL creates a JSONL file sink with streaming writes.
func NewJSONL(path string, logger *slog.Logger) (*JSONL, error) {
	if path == "" {
		path = "results.jsonl"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, &types.StorageError{Backend: "jsonl", Err: fmt.Errorf("create output dir: %w", err)}
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, &types.StorageError{Backend: "jsonl", Err: fmt.Errorf("create output file: %w", err)}
	}

	return &JSONL{
		path:   path,
		file:   f,
		enc:    json.NewEncoder(f),
		logger: logger.With("component", "jsonl_storage"),
	}, nil
}

func (s *JSONL) Name() string { return "jsonl" }

func (s *JSONL) Upsert(_ context.Context, rows []types.Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range rows {
		if err := s.enc.Encode(r); err != nil {
			return &types.StorageError{Backend: "jsonl", Err: fmt.Errorf("encode row %s: %w", r.ID, err)}
		}
		s.count++
	}
	return nil
}

func (s *JSONL) Close() error {
	s.logger.Info("jsonl written", "path", s.path, "rows", s.count)
	return s.file.Close()
}
