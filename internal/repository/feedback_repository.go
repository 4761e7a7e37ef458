package repository

import (
	"context"
	"fmt"

	"github.com/noah-isme/school-portal-api/internal/models"
)

// FeedbackRepository appends feedback entries to the feedback collection.
type FeedbackRepository struct {
	store DocumentStore
}

// NewFeedbackRepository constructs a FeedbackRepository.
func NewFeedbackRepository(store DocumentStore) *FeedbackRepository {
	return &FeedbackRepository{store: store}
}

// Append stores the entry under a generated id and records the id on the entry.
func (r *FeedbackRepository) Append(ctx context.Context, entry *models.FeedbackEntry) (string, error) {
	id, err := r.store.AddDocument(ctx, models.CollectionFeedback, entry)
	if err != nil {
		return "", fmt.Errorf("append feedback: %w", err)
	}
	entry.ID = id
	return id, nil
}
