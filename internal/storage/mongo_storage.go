// Path: internal/storage/mongo_storage.go
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"media-search/internal/domain"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoSessionStorage is the MongoDB implementation of the SessionStorage interface.
type MongoSessionStorage struct {
	collection *mongo.Collection
}

// NewMongoSessionStorage creates a new storage adapter for search sessions.
func NewMongoSessionStorage(db *mongo.Database, collectionName string) *MongoSessionStorage {
	return &MongoSessionStorage{
		collection: db.Collection(collectionName),
	}
}

// Connect opens a client, pings it and returns it with the named database.
func Connect(ctx context.Context, uri, dbName string) (*mongo.Client, *mongo.Database, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}
	return client, client.Database(dbName), nil
}

// EnsureIndexes creates the updatedAt index used to find stale sessions.
func (s *MongoSessionStorage) EnsureIndexes(ctx context.Context) error {
	_, err := s.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "updatedAt", Value: 1}},
	})
	return err
}

// Save implements the SessionStorage interface.
func (s *MongoSessionStorage) Save(ctx context.Context, doc domain.SessionDocument) error {
	opts := options.Replace().SetUpsert(true)
	filter := bson.M{"_id": doc.ID}
	_, err := s.collection.ReplaceOne(ctx, filter, doc, opts)
	return err
}

// Load implements the SessionStorage interface.
func (s *MongoSessionStorage) Load(ctx context.Context, id string) (*domain.SessionDocument, error) {
	var doc domain.SessionDocument
	filter := bson.M{"_id": id}
	err := s.collection.FindOne(ctx, filter).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil // Return nil, nil if not found
		}
		return nil, err
	}
	return &doc, nil
}

// Delete implements the SessionStorage interface.
func (s *MongoSessionStorage) Delete(ctx context.Context, id string) error {
	_, err := s.collection.DeleteOne(ctx, bson.M{"_id": id})
	return err
}

// DeleteOlderThan removes sessions not updated since cutoff.
func (s *MongoSessionStorage) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.collection.DeleteMany(ctx, bson.M{"updatedAt": bson.M{"$lt": cutoff}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
