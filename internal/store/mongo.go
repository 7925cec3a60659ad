package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"sjsage522/listingworker/internal/listing"
)

const uniqueIndexName = "link_source_unique"

// MongoStore implements Store on a MongoDB collection
type MongoStore struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// Ensure MongoStore implements Store
var _ Store = (*MongoStore)(nil)

// NewMongoStore connects to MongoDB and verifies the connection
func NewMongoStore(ctx context.Context, uri, database, collection string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	return &MongoStore{
		client:     client,
		collection: client.Database(database).Collection(collection),
	}, nil
}

// EnsureIndexes creates the unique (link, source) index and a scraped_at index
// for retention sweeps
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "link", Value: 1}, {Key: "source", Value: 1}},
			Options: options.Index().SetUnique(true).SetName(uniqueIndexName),
		},
		{
			Keys:    bson.D{{Key: "scraped_at", Value: 1}},
			Options: options.Index().SetName("scraped_at"),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}

// Upsert writes the listing with a single upserting update, so repeated or
// concurrent writes of the same (link, source) never insert twice
func (s *MongoStore) Upsert(ctx context.Context, l *listing.Listing, mode Mode, now time.Time) (bool, error) {
	filter := bson.D{{Key: "link", Value: l.Link}, {Key: "source", Value: l.Source}}
	update := upsertDocument(l, mode, now)
	opts := options.Update().SetUpsert(true)

	res, err := s.collection.UpdateOne(ctx, filter, update, opts)
	if mongo.IsDuplicateKeyError(err) {
		// Another writer inserted the same key between our match and insert;
		// the retry matches that document instead.
		res, err = s.collection.UpdateOne(ctx, filter, update, opts)
	}
	if err != nil {
		return false, err
	}
	return res.UpsertedCount > 0, nil
}

func upsertDocument(l *listing.Listing, mode Mode, now time.Time) bson.D {
	content := bson.M{
		"title":       l.Title,
		"description": l.Description,
		"main_image":  l.MainImage,
		"price":       l.Price,
		"timestamp":   l.Timestamp,
		"category":    l.CategoryOrDefault(),
	}

	if mode == ModeSkip {
		content["scraped_at"] = now
		content["last_updated"] = now
		return bson.D{{Key: "$setOnInsert", Value: content}}
	}

	content["last_updated"] = now
	return bson.D{
		{Key: "$set", Value: content},
		{Key: "$setOnInsert", Value: bson.M{"scraped_at": now}},
	}
}

// Count returns the number of stored listings
func (s *MongoStore) Count(ctx context.Context) (int64, error) {
	return s.collection.CountDocuments(ctx, bson.D{})
}

// CountScrapedBefore counts listings first scraped before cutoff
func (s *MongoStore) CountScrapedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return s.collection.CountDocuments(ctx, scrapedBefore(cutoff))
}

// DeleteScrapedBefore deletes listings first scraped before cutoff
func (s *MongoStore) DeleteScrapedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.collection.DeleteMany(ctx, scrapedBefore(cutoff))
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func scrapedBefore(cutoff time.Time) bson.D {
	return bson.D{{Key: "scraped_at", Value: bson.D{{Key: "$lt", Value: cutoff}}}}
}

// Close disconnects from MongoDB
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
