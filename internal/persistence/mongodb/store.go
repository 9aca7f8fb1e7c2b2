// Package mongodb implements persistence.Store on MongoDB, one Mongo collection per store
// collection with the document id as _id.
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/example/facility-reservations/internal/persistence"
)

const (
	idKey  = "_id"
	seqKey = "_seq"
)

// Store keeps documents in MongoDB. Each document carries a _seq ObjectID taken when it
// was first written, so listings follow insertion order.
type Store struct {
	db    *mongo.Database
	newID func() string
}

// New wraps an existing database handle.
func New(db *mongo.Database) *Store {
	return &Store{db: db, newID: uuid.NewString}
}

// Connect dials uri, pings the server and returns a store on database together with a
// function that disconnects the client.
func Connect(ctx context.Context, uri, database string) (*Store, func(context.Context) error, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, nil, fmt.Errorf("mongo: connect: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, nil, fmt.Errorf("mongo: ping: %w", err)
	}
	return New(client.Database(database)), client.Disconnect, nil
}

// EnsureIndexes creates the _seq index used for ordered listings and the admin token index.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	for _, name := range []string{persistence.CollectionReservations, persistence.CollectionFacilities, persistence.CollectionAdmin} {
		if _, err := s.db.Collection(name).Indexes().CreateOne(ctx, mongo.IndexModel{
			Keys: bson.D{{Key: seqKey, Value: 1}},
		}); err != nil {
			return fmt.Errorf("mongo: index %s: %w", name, err)
		}
	}
	if _, err := s.db.Collection(persistence.CollectionAdmin).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: persistence.FieldToken, Value: 1}},
	}); err != nil {
		return fmt.Errorf("mongo: index admin token: %w", err)
	}
	return nil
}

func listOptions() *options.FindOptions {
	return options.Find().SetSort(bson.D{{Key: seqKey, Value: 1}})
}

// ListAll returns every document of the collection in insertion order.
func (s *Store) ListAll(ctx context.Context, collection string) ([]persistence.Document, error) {
	cur, err := s.db.Collection(collection).Find(ctx, bson.M{}, listOptions())
	if err != nil {
		return nil, fmt.Errorf("mongo: list %s: %w", collection, err)
	}
	return decodeCursor(ctx, cur)
}

// Insert stores a new document under a generated id.
func (s *Store) Insert(ctx context.Context, collection string, fields map[string]any) (string, error) {
	id := s.newID()
	if _, err := s.db.Collection(collection).InsertOne(ctx, toBSON(id, fields, primitive.NewObjectID())); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return "", fmt.Errorf("mongo: insert %s/%s: %w", collection, id, persistence.ErrDuplicate)
		}
		return "", fmt.Errorf("mongo: insert %s/%s: %w", collection, id, err)
	}
	return id, nil
}

// SetByID creates or replaces the document with the given id, keeping its original _seq.
func (s *Store) SetByID(ctx context.Context, collection, id string, fields map[string]any) error {
	coll := s.db.Collection(collection)

	seq := primitive.NewObjectID()
	var existing bson.M
	err := coll.FindOne(ctx, bson.M{idKey: id}, options.FindOne().SetProjection(bson.M{seqKey: 1})).Decode(&existing)
	switch {
	case err == nil:
		if prev, ok := existing[seqKey].(primitive.ObjectID); ok {
			seq = prev
		}
	case !errors.Is(err, mongo.ErrNoDocuments):
		return fmt.Errorf("mongo: set %s/%s: %w", collection, id, err)
	}

	if _, err := coll.ReplaceOne(ctx, bson.M{idKey: id}, toBSON(id, fields, seq), options.Replace().SetUpsert(true)); err != nil {
		return fmt.Errorf("mongo: set %s/%s: %w", collection, id, err)
	}
	return nil
}

// UpdateByID merges fields into an existing document.
func (s *Store) UpdateByID(ctx context.Context, collection, id string, fields map[string]any) error {
	coll := s.db.Collection(collection)
	if len(fields) == 0 {
		n, err := coll.CountDocuments(ctx, bson.M{idKey: id})
		if err != nil {
			return fmt.Errorf("mongo: update %s/%s: %w", collection, id, err)
		}
		if n == 0 {
			return persistence.ErrNotFound
		}
		return nil
	}

	res, err := coll.UpdateOne(ctx, bson.M{idKey: id}, bson.M{"$set": bson.M(persistence.CloneFields(fields))})
	if err != nil {
		return fmt.Errorf("mongo: update %s/%s: %w", collection, id, err)
	}
	if res.MatchedCount == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

// DeleteByID removes a document.
func (s *Store) DeleteByID(ctx context.Context, collection, id string) error {
	res, err := s.db.Collection(collection).DeleteOne(ctx, bson.M{idKey: id})
	if err != nil {
		return fmt.Errorf("mongo: delete %s/%s: %w", collection, id, err)
	}
	if res.DeletedCount == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

// GetByID returns a single document.
func (s *Store) GetByID(ctx context.Context, collection, id string) (persistence.Document, error) {
	var raw bson.M
	if err := s.db.Collection(collection).FindOne(ctx, bson.M{idKey: id}).Decode(&raw); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return persistence.Document{}, persistence.ErrNotFound
		}
		return persistence.Document{}, fmt.Errorf("mongo: get %s/%s: %w", collection, id, err)
	}
	return fromBSON(raw), nil
}

// QueryByField returns the documents whose field equals value.
func (s *Store) QueryByField(ctx context.Context, collection, field string, value any) ([]persistence.Document, error) {
	cur, err := s.db.Collection(collection).Find(ctx, bson.M{field: value}, listOptions())
	if err != nil {
		return nil, fmt.Errorf("mongo: query %s.%s: %w", collection, field, err)
	}
	return decodeCursor(ctx, cur)
}

func decodeCursor(ctx context.Context, cur *mongo.Cursor) ([]persistence.Document, error) {
	defer cur.Close(ctx)

	var docs []persistence.Document
	for cur.Next(ctx) {
		var raw bson.M
		if err := cur.Decode(&raw); err != nil {
			return nil, fmt.Errorf("mongo: decode: %w", err)
		}
		docs = append(docs, fromBSON(raw))
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("mongo: cursor: %w", err)
	}
	return docs, nil
}

func toBSON(id string, fields map[string]any, seq primitive.ObjectID) bson.M {
	doc := bson.M{}
	for k, v := range fields {
		doc[k] = v
	}
	doc[idKey] = id
	doc[seqKey] = seq
	return doc
}

func fromBSON(raw bson.M) persistence.Document {
	doc := persistence.Document{Fields: make(map[string]any, len(raw))}
	for k, v := range raw {
		switch k {
		case idKey:
			doc.ID = fmt.Sprint(v)
		case seqKey:
		default:
			doc.Fields[k] = v
		}
	}
	return doc
}

var _ persistence.Store = (*Store)(nil)
