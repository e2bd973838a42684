package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/stylefeed/stylefeed/internal/config"
	"github.com/stylefeed/stylefeed/internal/types"
)

// Mongo upserts rows into a MongoDB collection keyed by _id.
type Mongo struct {
	client     *mongo.Client
	collection *mongo.Collection
	count      int
	logger     *slog.Logger
}

// NewMongo connects to MongoDB and verifies the connection.
func NewMongo(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (*Mongo, error) {
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(pingCtx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, &types.StorageError{Backend: "mongodb", Err: fmt.Errorf("connect: %w", err)}
	}
	if err := client.Ping(pingCtx, nil); err != nil {
		return nil, &types.StorageError{Backend: "mongodb", Err: fmt.Errorf("ping: %w", err)}
	}

	return &Mongo{
		client:     client,
		collection: client.Database(cfg.Database).Collection(cfg.Collection),
		logger:     logger.With("component", "mongo_storage"),
	}, nil
}

func (s *Mongo) Name() string { return "mongodb" }

// Upsert replaces each row document keyed by _id.
func (s *Mongo) Upsert(ctx context.Context, rows []types.Row) error {
	opts := options.Replace().SetUpsert(true)
	for _, r := range rows {
		doc := rowDocument(r)
		_, err := s.collection.ReplaceOne(ctx, bson.M{"_id": r.ID}, doc, opts)
		if err != nil {
			return &types.StorageError{Backend: "mongodb", Err: fmt.Errorf("upsert %s: %w", r.ID, err)}
		}
		s.count++
	}
	s.logger.Debug("rows upserted", "count", len(rows), "total", s.count)
	return nil
}

func (s *Mongo) Close() error {
	s.logger.Info("mongodb storage closing", "total_rows", s.count)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func rowDocument(r types.Row) bson.M {
	doc := bson.M{
		"_id":          r.ID,
		"source":       r.Source,
		"title":        r.Title,
		"brand":        r.Brand,
		"currency":     r.Currency,
		"second_hand":  r.SecondHand,
		"availability": r.Availability,
	}
	if r.Description != "" {
		doc["description"] = r.Description
	}
	if r.Price != nil {
		doc["price"] = *r.Price
	}
	if r.ImageURL != "" {
		doc["image_url"] = r.ImageURL
	}
	if r.ProductURL != "" {
		doc["product_url"] = r.ProductURL
	}
	if r.AffiliateURL != "" {
		doc["affiliate_url"] = r.AffiliateURL
	}
	if r.Gender != "" {
		doc["gender"] = r.Gender
	}
	if r.Category != "" {
		doc["category"] = r.Category
	}
	if r.Size != "" {
		doc["size"] = r.Size
	}
	if r.Country != "" {
		doc["country"] = r.Country
	}
	if len(r.Metadata) > 0 {
		doc["metadata"] = r.Metadata
	}
	if len(r.Embedding) > 0 {
		doc["embedding"] = r.Embedding
	}
	return doc
}
