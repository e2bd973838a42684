package storage

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stylefeed/stylefeed/internal/config"
	"github.com/stylefeed/stylefeed/internal/types"
)

// Postgres upserts rows into a products table keyed by id.
type Postgres struct {
	pool   *pgxpool.Pool
	table  string
	count  int
	logger *slog.Logger
}

// NewPostgres connects to Postgres and verifies the connection.
func NewPostgres(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (*Postgres, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, &types.StorageError{Backend: "postgres", Err: fmt.Errorf("parsing dsn: %w", err)}
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(pingCtx, poolCfg)
	if err != nil {
		return nil, &types.StorageError{Backend: "postgres", Err: fmt.Errorf("creating pool: %w", err)}
	}
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, &types.StorageError{Backend: "postgres", Err: fmt.Errorf("ping: %w", err)}
	}

	return &Postgres{
		pool:   pool,
		table:  cfg.Table,
		logger: logger.With("component", "postgres_storage"),
	}, nil
}

func (s *Postgres) Name() string { return "postgres" }

// Upsert writes one batch as a pipelined pgx batch. Rows sharing an id
// within the batch are deduplicated first; ON CONFLICT cannot touch
// the same row twice in one statement set without serialization
// failures.
func (s *Postgres) Upsert(ctx context.Context, rows []types.Row) error {
	rows = dedupeByID(rows)
	if len(rows) == 0 {
		return nil
	}

	b := &pgx.Batch{}
	for _, r := range rows {
		b.Queue(
			`INSERT INTO `+s.table+`
			(id, source, title, description, brand, price, currency,
			 image_url, product_url, affiliate_url, gender, category,
			 size, availability, second_hand, country, metadata, embedding)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
			ON CONFLICT (id) DO UPDATE SET
			 source = EXCLUDED.source,
			 title = EXCLUDED.title,
			 description = EXCLUDED.description,
			 brand = EXCLUDED.brand,
			 price = EXCLUDED.price,
			 currency = EXCLUDED.currency,
			 image_url = EXCLUDED.image_url,
			 product_url = EXCLUDED.product_url,
			 affiliate_url = EXCLUDED.affiliate_url,
			 gender = EXCLUDED.gender,
			 category = EXCLUDED.category,
			 size = EXCLUDED.size,
			 availability = EXCLUDED.availability,
			 second_hand = EXCLUDED.second_hand,
			 country = EXCLUDED.country,
			 metadata = EXCLUDED.metadata,
			 embedding = COALESCE(EXCLUDED.embedding, `+s.table+`.embedding)`,
			r.ID, r.Source, r.Title, nullable(r.Description), r.Brand, r.Price, r.Currency,
			nullable(r.ImageURL), nullable(r.ProductURL), nullable(r.AffiliateURL),
			nullable(r.Gender), nullable(r.Category), nullable(r.Size),
			nullable(r.Availability), r.SecondHand, nullable(r.Country),
			r.Metadata, embeddingValue(r.Embedding),
		)
	}

	br := s.pool.SendBatch(ctx, b)
	for range rows {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return &types.StorageError{Backend: "postgres", Err: fmt.Errorf("upsert: %w", err)}
		}
	}
	if err := br.Close(); err != nil {
		return &types.StorageError{Backend: "postgres", Err: err}
	}

	s.count += len(rows)
	s.logger.Debug("rows upserted", "count", len(rows), "total", s.count)
	return nil
}

func (s *Postgres) Close() error {
	s.logger.Info("postgres storage closing", "total_rows", s.count)
	s.pool.Close()
	return nil
}

// dedupeByID keeps the last row per id, preserving order of first
// appearance.
func dedupeByID(rows []types.Row) []types.Row {
	index := make(map[string]int, len(rows))
	var out []types.Row
	for _, r := range rows {
		if i, seen := index[r.ID]; seen {
			out[i] = r
			continue
		}
		index[r.ID] = len(out)
		out = append(out, r)
	}
	return out
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// embeddingValue renders the vector as a pgvector literal, nil when
// absent so COALESCE keeps any previously stored embedding.
func embeddingValue(vec []float32) *string {
	if len(vec) == 0 {
		return nil
	}
	buf := make([]byte, 0, len(vec)*10)
	buf = append(buf, '[')
	for i, v := range vec {
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = strconv.AppendFloat(buf, float64(v), 'g', -1, 32)
	}
	buf = append(buf, ']')
	s := string(buf)
	return &s
}
