package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/school-portal-api/internal/models"
	appErrors "github.com/noah-isme/school-portal-api/pkg/errors"
)

// SessionCacheRepository abstracts persistence for per-session entries.
type SessionCacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// SessionStore keeps the cached current user and the navigation slot of each signed-in account.
type SessionStore struct {
	repo    SessionCacheRepository
	metrics *MetricsService
	ttl     time.Duration
	logger  *zap.Logger
}

// NewSessionStore constructs a session store.
func NewSessionStore(repo SessionCacheRepository, metrics *MetricsService, ttl time.Duration, logger *zap.Logger) *SessionStore {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionStore{repo: repo, metrics: metrics, ttl: ttl, logger: logger}
}

func currentUserKey(uid string) string { return "session:" + uid + ":user" }

func navigationKey(uid string) string { return "session:" + uid + ":navigation" }

// SetCurrentUser caches the profile as the account's single current-user entry.
func (s *SessionStore) SetCurrentUser(ctx context.Context, profile *models.UserProfile) error {
	return s.set(ctx, currentUserKey(profile.UID), profile)
}

// CurrentUser returns the cached profile, reporting whether it was present.
func (s *SessionStore) CurrentUser(ctx context.Context, uid string) (*models.UserProfile, bool, error) {
	var profile models.UserProfile
	hit, err := s.get(ctx, currentUserKey(uid), &profile)
	if !hit || err != nil {
		return nil, false, err
	}
	return &profile, true, nil
}

// SetNavigation replaces the navigation slot.
func (s *SessionStore) SetNavigation(ctx context.Context, uid string, state models.NavigationState) error {
	return s.set(ctx, navigationKey(uid), state)
}

// Navigation returns the navigation slot, reporting whether it was present.
func (s *SessionStore) Navigation(ctx context.Context, uid string) (models.NavigationState, bool, error) {
	var state models.NavigationState
	hit, err := s.get(ctx, navigationKey(uid), &state)
	if !hit || err != nil {
		return models.NavigationState{}, false, err
	}
	return state, true, nil
}

// ClearCurrentUser drops the cached profile.
func (s *SessionStore) ClearCurrentUser(ctx context.Context, uid string) error {
	if err := s.repo.Delete(ctx, currentUserKey(uid)); err != nil {
		s.logger.Warn("session cache delete failed", zap.String("uid", uid), zap.Error(err))
		return err
	}
	return nil
}

func (s *SessionStore) get(ctx context.Context, key string, dest interface{}) (bool, error) {
	start := time.Now()
	err := s.repo.Get(ctx, key, dest)
	duration := time.Since(start)
	if err != nil {
		s.metrics.RecordCacheOperation(false, duration)
		if errors.Is(err, appErrors.ErrCacheMiss) {
			return false, nil
		}
		s.logger.Warn("session cache get failed", zap.String("key", key), zap.Error(err))
		return false, err
	}
	s.metrics.RecordCacheOperation(true, duration)
	return true, nil
}

func (s *SessionStore) set(ctx context.Context, key string, value interface{}) error {
	start := time.Now()
	err := s.repo.Set(ctx, key, value, s.ttl)
	s.metrics.ObserveCacheWrite(time.Since(start))
	if err != nil {
		s.logger.Warn("session cache set failed", zap.String("key", key), zap.Error(err))
	}
	return err
}
