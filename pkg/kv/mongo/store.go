// Package mongo implements kv.Store on a MongoDB collection.
//
// Each key is one document: {_id: key, value: <binary>, updated_at: <date>}.
package mongo

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/matzehuels/starmark/pkg/kv"
)

// Defaults for Config.
const (
	DefaultDatabase   = "starmark"
	DefaultCollection = "kv"
)

// Config configures the MongoDB connection.
type Config struct {
	URI        string
	Database   string // defaults to DefaultDatabase
	Collection string // defaults to DefaultCollection
}

// Store is a MongoDB-backed kv.Store.
type Store struct {
	client *mongo.Client
	coll   *mongo.Collection
	owned  bool
	closed atomic.Bool
}

type document struct {
	Key       string    `bson:"_id"`
	Value     []byte    `bson:"value"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// New connects to MongoDB and pings the primary.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.URI == "" {
		return nil, fmt.Errorf("mongo uri is required")
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	s := NewWithClient(client, cfg.Database, cfg.Collection)
	s.owned = true
	return s, nil
}

// NewWithClient uses an existing client. The caller keeps ownership of it.
func NewWithClient(client *mongo.Client, database, collection string) *Store {
	if database == "" {
		database = DefaultDatabase
	}
	if collection == "" {
		collection = DefaultCollection
	}
	return &Store{client: client, coll: client.Database(database).Collection(collection)}
}

// Get finds all requested keys with one $in query.
func (s *Store) Get(ctx context.Context, keys ...string) (map[string][]byte, error) {
	if s.closed.Load() {
		return nil, kv.ErrClosed
	}
	out := make(map[string][]byte, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	cur, err := s.coll.Find(ctx, bson.M{"_id": bson.M{"$in": keys}})
	if err != nil {
		return nil, fmt.Errorf("mongo find: %w", err)
	}
	defer cur.Close(ctx)

	for cur.Next(ctx) {
		var doc document
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("mongo decode: %w", err)
		}
		if doc.Value == nil {
			doc.Value = []byte{}
		}
		out[doc.Key] = doc.Value
	}
	return out, cur.Err()
}

// Set upserts every value with one unordered bulk write.
func (s *Store) Set(ctx context.Context, values map[string][]byte) error {
	if s.closed.Load() {
		return kv.ErrClosed
	}
	if len(values) == 0 {
		return nil
	}

	now := time.Now().UTC()
	models := make([]mongo.WriteModel, 0, len(values))
	for k, v := range values {
		if v == nil {
			v = []byte{}
		}
		models = append(models, mongo.NewReplaceOneModel().
			SetFilter(bson.M{"_id": k}).
			SetReplacement(document{Key: k, Value: v, UpdatedAt: now}).
			SetUpsert(true))
	}
	if _, err := s.coll.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false)); err != nil {
		return fmt.Errorf("mongo bulk write: %w", err)
	}
	return nil
}

// Remove deletes keys.
func (s *Store) Remove(ctx context.Context, keys ...string) error {
	if s.closed.Load() {
		return kv.ErrClosed
	}
	if len(keys) == 0 {
		return nil
	}
	if _, err := s.coll.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": keys}}); err != nil {
		return fmt.Errorf("mongo delete: %w", err)
	}
	return nil
}

// Close disconnects the client if the store created it.
func (s *Store) Close() error {
	if s.closed.Swap(true) || !s.owned {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

var _ kv.Store = (*Store)(nil)
