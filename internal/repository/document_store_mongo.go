package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoDocumentStore maps collections onto MongoDB collections, using the key as _id.
type MongoDocumentStore struct {
	db *mongo.Database
}

// NewMongoDocumentStore constructs a MongoDB backed document store.
func NewMongoDocumentStore(db *mongo.Database) *MongoDocumentStore {
	return &MongoDocumentStore{db: db}
}

// WriteDocument replaces the document, or sets only the provided paths when merge is set.
func (s *MongoDocumentStore) WriteDocument(ctx context.Context, collection, key string, record interface{}, merge bool) error {
	doc, err := toDocument(record)
	if err != nil {
		return err
	}
	coll := s.db.Collection(collection)
	filter := bson.M{"_id": key}

	if merge {
		set := bson.M{}
		flattenPaths("", doc, set)
		if len(set) == 0 {
			return nil
		}
		if _, err := coll.UpdateOne(ctx, filter, bson.M{"$set": set}, options.Update().SetUpsert(true)); err != nil {
			return fmt.Errorf("merge document %s/%s: %w", collection, key, err)
		}
		return nil
	}

	replacement := bson.M{"_id": key}
	for k, v := range doc {
		replacement[k] = v
	}
	if _, err := coll.ReplaceOne(ctx, filter, replacement, options.Replace().SetUpsert(true)); err != nil {
		return fmt.Errorf("write document %s/%s: %w", collection, key, err)
	}
	return nil
}

// ReadDocument loads a document or returns ErrDocumentNotFound.
func (s *MongoDocumentStore) ReadDocument(ctx context.Context, collection, key string) (Document, error) {
	raw, err := s.db.Collection(collection).FindOne(ctx, bson.M{"_id": key}).Raw()
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrDocumentNotFound
		}
		return nil, fmt.Errorf("read document %s/%s: %w", collection, key, err)
	}
	return fromBSON(raw)
}

// AddDocument inserts the record under a generated key.
func (s *MongoDocumentStore) AddDocument(ctx context.Context, collection string, record interface{}) (string, error) {
	doc, err := toDocument(record)
	if err != nil {
		return "", err
	}
	id := uuid.NewString()
	insert := bson.M{"_id": id}
	for k, v := range doc {
		insert[k] = v
	}
	if _, err := s.db.Collection(collection).InsertOne(ctx, insert); err != nil {
		return "", fmt.Errorf("add document to %s: %w", collection, err)
	}
	return id, nil
}

// flattenPaths turns nested objects into dotted $set paths so a merge leaves sibling fields untouched.
func flattenPaths(prefix string, doc map[string]interface{}, out bson.M) {
	for key, value := range doc {
		path := key
		if prefix != "" {
			path = prefix + "." + key
		}
		if nested, ok := asMap(value); ok && len(nested) > 0 {
			flattenPaths(path, nested, out)
			continue
		}
		out[path] = value
	}
}

// fromBSON converts a stored document to plain JSON values. Stored values are already JSON shaped,
// so relaxed extended JSON carries them unchanged.
func fromBSON(raw bson.Raw) (Document, error) {
	payload, err := bson.MarshalExtJSON(raw, false, false)
	if err != nil {
		return nil, fmt.Errorf("convert document: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	delete(doc, "_id")
	return doc, nil
}
