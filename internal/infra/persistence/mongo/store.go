// Package mongo provides the document-database backend. Entities are stored
// one collection per type with the 24-hex id as _id; geometry fields are
// GeoJSON documents backed by 2dsphere indexes, so proximity and containment
// queries run server-side.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"fieldops/pkg/domain"
)

// Compile-time contract assertions.
var (
	_ domain.Store         = (*Store)(nil)
	_ domain.ExtendedStore = (*Store)(nil)
)

const (
	colUsers      = "users"
	colTeams      = "teams"
	colTasks      = "tasks"
	colFeatures   = "features"
	colBoundaries = "boundaries"
	colUpdates    = "taskUpdates"
	colEvidence   = "taskEvidence"
)

// caseInsensitive is the collation used for username lookups and the unique
// username index, so "Alice" and "alice" are the same account.
var caseInsensitive = &options.Collation{Locale: "en", Strength: 2}

// Store is the document-database backend.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
	nowFn  func() time.Time
	idFn   func() string
}

// Connect dials the database, verifies the connection with a ping, and
// ensures the indexes the contract depends on. Failures surface as
// ConnectionError so callers can fall back to another backend.
func Connect(ctx context.Context, uri, dbName string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, &domain.ConnectionError{Backend: string(domain.DriverMongo), Err: err}
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, &domain.ConnectionError{Backend: string(domain.DriverMongo), Err: err}
	}
	s := &Store{
		client: client,
		db:     client.Database(dbName),
		nowFn:  func() time.Time { return time.Now().UTC() },
		idFn:   domain.NewID,
	}
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, &domain.ConnectionError{Backend: string(domain.DriverMongo), Err: err}
	}
	return s, nil
}

// SetNowFunc overrides the clock, for tests.
func (s *Store) SetNowFunc(fn func() time.Time) { s.nowFn = fn }

// Driver identifies the backend.
func (s *Store) Driver() domain.Driver { return domain.DriverMongo }

// Close disconnects the underlying client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *Store) now() time.Time { return s.nowFn().UTC().Truncate(time.Millisecond) }

func (s *Store) col(name string) *mongo.Collection { return s.db.Collection(name) }

func (s *Store) ensureIndexes(ctx context.Context) error {
	type spec struct {
		col     string
		indexes []mongo.IndexModel
	}
	specs := []spec{
		{colUsers, []mongo.IndexModel{
			{
				Keys:    bson.D{{Key: "username", Value: 1}},
				Options: options.Index().SetUnique(true).SetCollation(caseInsensitive),
			},
			{Keys: bson.D{{Key: "currentLocation", Value: "2dsphere"}}},
			{Keys: bson.D{{Key: "teamId", Value: 1}}},
		}},
		{colTasks, []mongo.IndexModel{
			{Keys: bson.D{{Key: "location", Value: "2dsphere"}}},
			{Keys: bson.D{{Key: "assignedTo", Value: 1}}},
			{Keys: bson.D{{Key: "createdBy", Value: 1}}},
		}},
		{colFeatures, []mongo.IndexModel{
			{Keys: bson.D{{Key: "geometry", Value: "2dsphere"}}},
			{Keys: bson.D{{Key: "feaType", Value: 1}}},
		}},
		{colUpdates, []mongo.IndexModel{
			{Keys: bson.D{{Key: "taskId", Value: 1}}},
		}},
		{colEvidence, []mongo.IndexModel{
			{Keys: bson.D{{Key: "taskId", Value: 1}}},
		}},
	}
	for _, sp := range specs {
		if _, err := s.col(sp.col).Indexes().CreateMany(ctx, sp.indexes); err != nil {
			return fmt.Errorf("ensure %s indexes: %w", sp.col, err)
		}
	}
	return nil
}

// exists reports whether a document with the id is present in the collection.
func (s *Store) exists(ctx context.Context, col, id string) (bool, error) {
	n, err := s.col(col).CountDocuments(ctx, bson.M{"_id": id}, options.Count().SetLimit(1))
	if err != nil {
		return false, &domain.PersistenceError{Op: "count " + col, Err: err}
	}
	return n > 0, nil
}

// getByID decodes one document, treating a malformed id as absent.
func getByID[T any](ctx context.Context, s *Store, col string, entity domain.EntityType, id string) (T, error) {
	var out T
	if !domain.IsValidID(id) {
		return out, &domain.NotFoundError{Entity: entity, ID: id}
	}
	err := s.col(col).FindOne(ctx, bson.M{"_id": id}).Decode(&out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return out, &domain.NotFoundError{Entity: entity, ID: id}
	}
	if err != nil {
		return out, &domain.PersistenceError{Op: "get " + col, Err: err}
	}
	return out, nil
}

// findAll decodes every document matching the filter in _id order.
func findAll[T any](ctx context.Context, s *Store, col string, filter any, opts ...*options.FindOptions) ([]T, error) {
	opts = append(opts, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	cur, err := s.col(col).Find(ctx, filter, opts...)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "find " + col, Err: err}
	}
	out := make([]T, 0)
	if err := cur.All(ctx, &out); err != nil {
		return nil, &domain.PersistenceError{Op: "decode " + col, Err: err}
	}
	return out, nil
}

// insert writes one document, retrying with a fresh id on _id collision.
// Other duplicate-key failures (e.g. the unique username index) surface as a
// PersistenceError wrapping the driver error for the caller to translate.
func (s *Store) insert(ctx context.Context, col string, doc any, setID func(string)) error {
	for {
		_, err := s.col(col).InsertOne(ctx, doc)
		if err == nil {
			return nil
		}
		if mongo.IsDuplicateKeyError(err) && setID != nil && strings.Contains(err.Error(), "_id") {
			setID(s.idFn())
			continue
		}
		return &domain.PersistenceError{Op: "insert " + col, Err: err}
	}
}

// updateOne applies a $set update and decodes the post-update document.
func updateOne[T any](ctx context.Context, s *Store, col string, entity domain.EntityType, id string, set bson.M) (T, error) {
	var out T
	if err := domain.ValidateID(id); err != nil {
		return out, err
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	err := s.col(col).FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return out, &domain.NotFoundError{Entity: entity, ID: id}
	}
	if err != nil {
		return out, &domain.PersistenceError{Op: "update " + col, Err: err}
	}
	return out, nil
}
