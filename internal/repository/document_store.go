package repository

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrDocumentNotFound is returned when a collection has no document under the key.
var ErrDocumentNotFound = errors.New("document not found")

// Document is a schemaless record as stored by a document store.
type Document map[string]interface{}

// toDocument normalises any JSON-encodable record into a Document.
func toDocument(record interface{}) (Document, error) {
	if doc, ok := record.(Document); ok {
		return cloneDocument(doc)
	}
	raw, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	if doc == nil {
		return nil, errors.New("document must encode to an object")
	}
	return doc, nil
}

func cloneDocument(doc Document) (Document, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	var out Document
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	if out == nil {
		out = Document{}
	}
	return out, nil
}

// mergeDocuments writes src into dst, descending into nested objects so sibling fields survive.
func mergeDocuments(dst, src Document) Document {
	if dst == nil {
		dst = Document{}
	}
	for key, value := range src {
		srcMap, srcIsMap := asMap(value)
		dstMap, dstIsMap := asMap(dst[key])
		if srcIsMap && dstIsMap {
			dst[key] = map[string]interface{}(mergeDocuments(Document(dstMap), Document(srcMap)))
			continue
		}
		dst[key] = value
	}
	return dst
}

func asMap(value interface{}) (map[string]interface{}, bool) {
	switch v := value.(type) {
	case map[string]interface{}:
		return v, true
	case Document:
		return v, true
	default:
		return nil, false
	}
}

// DecodeDocument fills dest from a stored document.
func DecodeDocument(doc Document, dest interface{}) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	return nil
}
