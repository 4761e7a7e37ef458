package repository

import (
	"context"
	"fmt"

	"github.com/noah-isme/school-portal-api/internal/models"
)

// DocumentStore is the generic document database the profile and feedback data live in.
type DocumentStore interface {
	WriteDocument(ctx context.Context, collection, key string, record interface{}, merge bool) error
	ReadDocument(ctx context.Context, collection, key string) (Document, error)
	AddDocument(ctx context.Context, collection string, record interface{}) (string, error)
}

// ProfileRepository stores user profiles in the users collection keyed by uid.
type ProfileRepository struct {
	store DocumentStore
}

// NewProfileRepository constructs a ProfileRepository.
func NewProfileRepository(store DocumentStore) *ProfileRepository {
	return &ProfileRepository{store: store}
}

// Create writes the full profile, replacing anything under the same uid.
func (r *ProfileRepository) Create(ctx context.Context, profile *models.UserProfile) error {
	if err := r.store.WriteDocument(ctx, models.CollectionUsers, profile.UID, profile, false); err != nil {
		return fmt.Errorf("create profile %s: %w", profile.UID, err)
	}
	return nil
}

// FindByUID loads a profile. A missing profile returns ErrDocumentNotFound.
func (r *ProfileRepository) FindByUID(ctx context.Context, uid string) (*models.UserProfile, error) {
	doc, err := r.store.ReadDocument(ctx, models.CollectionUsers, uid)
	if err != nil {
		return nil, fmt.Errorf("find profile %s: %w", uid, err)
	}
	var profile models.UserProfile
	if err := DecodeDocument(doc, &profile); err != nil {
		return nil, fmt.Errorf("find profile %s: %w", uid, err)
	}
	return &profile, nil
}

// MergeDocument sets documents.{kind} on the profile without touching other fields.
func (r *ProfileRepository) MergeDocument(ctx context.Context, uid string, kind models.DocumentKind, ref models.DocumentRef) error {
	patch := Document{
		"documents": map[string]interface{}{string(kind): ref},
	}
	if err := r.store.WriteDocument(ctx, models.CollectionUsers, uid, patch, true); err != nil {
		return fmt.Errorf("merge %s into profile %s: %w", kind, uid, err)
	}
	return nil
}
