package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// PostgresDocumentStore keeps documents as JSONB rows keyed by collection and key.
type PostgresDocumentStore struct {
	db *sqlx.DB
}

// NewPostgresDocumentStore constructs a JSONB backed document store.
func NewPostgresDocumentStore(db *sqlx.DB) *PostgresDocumentStore {
	return &PostgresDocumentStore{db: db}
}

const upsertDocumentQuery = `INSERT INTO documents (collection, key, data, updated_at) VALUES ($1, $2, $3, $4)
ON CONFLICT (collection, key) DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`

// WriteDocument upserts the document. With merge set the current row is locked and merged first.
func (s *PostgresDocumentStore) WriteDocument(ctx context.Context, collection, key string, record interface{}, merge bool) error {
	doc, err := toDocument(record)
	if err != nil {
		return err
	}
	if !merge {
		payload, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("encode document %s/%s: %w", collection, key, err)
		}
		if _, err := s.db.ExecContext(ctx, upsertDocumentQuery, collection, key, payload, time.Now().UTC()); err != nil {
			return fmt.Errorf("write document %s/%s: %w", collection, key, err)
		}
		return nil
	}
	return s.mergeDocument(ctx, collection, key, doc)
}

func (s *PostgresDocumentStore) mergeDocument(ctx context.Context, collection, key string, doc Document) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin document transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var current []byte
	const selectQuery = `SELECT data FROM documents WHERE collection = $1 AND key = $2 FOR UPDATE`
	existing := Document{}
	if err = tx.GetContext(ctx, &current, selectQuery, collection, key); err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("lock document %s/%s: %w", collection, key, err)
		}
		err = nil
	} else if err = json.Unmarshal(current, &existing); err != nil {
		return fmt.Errorf("decode document %s/%s: %w", collection, key, err)
	}

	payload, err := json.Marshal(mergeDocuments(existing, doc))
	if err != nil {
		return fmt.Errorf("encode document %s/%s: %w", collection, key, err)
	}
	if _, err = tx.ExecContext(ctx, upsertDocumentQuery, collection, key, payload, time.Now().UTC()); err != nil {
		return fmt.Errorf("merge document %s/%s: %w", collection, key, err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit document %s/%s: %w", collection, key, err)
	}
	return nil
}

// ReadDocument loads a document or returns ErrDocumentNotFound.
func (s *PostgresDocumentStore) ReadDocument(ctx context.Context, collection, key string) (Document, error) {
	const query = `SELECT data FROM documents WHERE collection = $1 AND key = $2`
	var raw []byte
	if err := s.db.GetContext(ctx, &raw, query, collection, key); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDocumentNotFound
		}
		return nil, fmt.Errorf("read document %s/%s: %w", collection, key, err)
	}
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode document %s/%s: %w", collection, key, err)
	}
	return doc, nil
}

// AddDocument inserts the record under a generated key.
func (s *PostgresDocumentStore) AddDocument(ctx context.Context, collection string, record interface{}) (string, error) {
	doc, err := toDocument(record)
	if err != nil {
		return "", err
	}
	payload, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("encode document: %w", err)
	}
	id := uuid.NewString()
	const query = `INSERT INTO documents (collection, key, data, updated_at) VALUES ($1, $2, $3, $4)`
	if _, err := s.db.ExecContext(ctx, query, collection, id, payload, time.Now().UTC()); err != nil {
		return "", fmt.Errorf("add document to %s: %w", collection, err)
	}
	return id, nil
}
