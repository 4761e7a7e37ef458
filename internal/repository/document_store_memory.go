package repository

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemoryDocumentStore keeps documents in process memory.
type MemoryDocumentStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]Document
}

// NewMemoryDocumentStore constructs an empty in-memory store.
func NewMemoryDocumentStore() *MemoryDocumentStore {
	return &MemoryDocumentStore{collections: make(map[string]map[string]Document)}
}

// WriteDocument replaces the document, or deep-merges into it when merge is set.
func (s *MemoryDocumentStore) WriteDocument(ctx context.Context, collection, key string, record interface{}, merge bool) error {
	doc, err := toDocument(record)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	docs, ok := s.collections[collection]
	if !ok {
		docs = make(map[string]Document)
		s.collections[collection] = docs
	}
	if merge {
		docs[key] = mergeDocuments(docs[key], doc)
		return nil
	}
	docs[key] = doc
	return nil
}

// ReadDocument returns a copy of the stored document.
func (s *MemoryDocumentStore) ReadDocument(ctx context.Context, collection, key string) (Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	doc, ok := s.collections[collection][key]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrDocumentNotFound
	}
	return cloneDocument(doc)
}

// AddDocument stores the record under a generated key.
func (s *MemoryDocumentStore) AddDocument(ctx context.Context, collection string, record interface{}) (string, error) {
	id := uuid.NewString()
	if err := s.WriteDocument(ctx, collection, id, record, false); err != nil {
		return "", err
	}
	return id, nil
}
