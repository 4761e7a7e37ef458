package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/school-portal-api/internal/models"
	appErrors "github.com/noah-isme/school-portal-api/pkg/errors"
)

func TestMemorySessionCacheExpiry(t *testing.T) {
	repo := NewMemorySessionCacheRepository()
	now := time.Date(2026, 10, 15, 8, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "session:u1:user", models.UserProfile{UID: "u1", Role: models.RoleParent}, time.Minute))

	var profile models.UserProfile
	require.NoError(t, repo.Get(ctx, "session:u1:user", &profile))
	assert.Equal(t, models.RoleParent, profile.Role)

	now = now.Add(2 * time.Minute)
	assert.ErrorIs(t, repo.Get(ctx, "session:u1:user", &profile), appErrors.ErrCacheMiss)
}

func TestMemorySessionCacheDelete(t *testing.T) {
	repo := NewMemorySessionCacheRepository()
	ctx := context.Background()
	require.NoError(t, repo.Set(ctx, "a", 1, 0))
	require.NoError(t, repo.Set(ctx, "b", 2, 0))
	require.NoError(t, repo.Delete(ctx, "a", "b"))

	var v int
	assert.ErrorIs(t, repo.Get(ctx, "a", &v), appErrors.ErrCacheMiss)
	assert.ErrorIs(t, repo.Get(ctx, "b", &v), appErrors.ErrCacheMiss)
}

func TestRedisSessionCacheWithoutClient(t *testing.T) {
	repo := NewSessionCacheRepository(nil, nil)
	ctx := context.Background()
	var v string
	assert.ErrorIs(t, repo.Get(ctx, "k", &v), appErrors.ErrCacheMiss)
	assert.NoError(t, repo.Set(ctx, "k", "v", time.Minute))
	assert.NoError(t, repo.Delete(ctx, "k"))
	assert.NoError(t, repo.Close())
}

func TestMemoryLoginThrottleWindow(t *testing.T) {
	repo := NewMemoryLoginThrottleRepository()
	now := time.Date(2026, 10, 15, 8, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		count, err := repo.RecordFailure(ctx, "a@school.test", time.Minute)
		require.NoError(t, err)
		assert.EqualValues(t, i, count)
	}

	failures, err := repo.Failures(ctx, "a@school.test")
	require.NoError(t, err)
	assert.EqualValues(t, 3, failures)

	now = now.Add(2 * time.Minute)
	failures, err = repo.Failures(ctx, "a@school.test")
	require.NoError(t, err)
	assert.Zero(t, failures)

	_, err = repo.RecordFailure(ctx, "a@school.test", time.Minute)
	require.NoError(t, err)
	require.NoError(t, repo.Reset(ctx, "a@school.test"))
	failures, err = repo.Failures(ctx, "a@school.test")
	require.NoError(t, err)
	assert.Zero(t, failures)
}
