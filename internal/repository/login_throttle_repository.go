package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// LoginThrottleRepository counts failed sign-in attempts per email in Redis.
type LoginThrottleRepository struct {
	client *redis.Client
	prefix string
}

// NewLoginThrottleRepository constructs a Redis backed throttle.
func NewLoginThrottleRepository(client *redis.Client) *LoginThrottleRepository {
	return &LoginThrottleRepository{client: client, prefix: "login:failures:"}
}

// Failures returns the number of failures inside the current window.
func (r *LoginThrottleRepository) Failures(ctx context.Context, key string) (int64, error) {
	count, err := r.client.Get(ctx, r.prefix+key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("redis get failures: %w", err)
	}
	return count, nil
}

// RecordFailure increments the failure counter, starting the window on the first failure.
func (r *LoginThrottleRepository) RecordFailure(ctx context.Context, key string, window time.Duration) (int64, error) {
	fullKey := r.prefix + key
	count, err := r.client.Incr(ctx, fullKey).Result()
	if err != nil {
		return 0, fmt.Errorf("redis incr failures: %w", err)
	}
	if count == 1 {
		if err := r.client.Expire(ctx, fullKey, window).Err(); err != nil {
			return count, fmt.Errorf("redis expire failures: %w", err)
		}
	}
	return count, nil
}

// Reset clears the failure counter.
func (r *LoginThrottleRepository) Reset(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.prefix+key).Err(); err != nil {
		return fmt.Errorf("redis delete failures: %w", err)
	}
	return nil
}

type failureWindow struct {
	count   int64
	resetAt time.Time
}

// MemoryLoginThrottleRepository counts failures in process memory.
type MemoryLoginThrottleRepository struct {
	mu      sync.Mutex
	windows map[string]failureWindow
	now     func() time.Time
}

// NewMemoryLoginThrottleRepository constructs an empty in-memory throttle.
func NewMemoryLoginThrottleRepository() *MemoryLoginThrottleRepository {
	return &MemoryLoginThrottleRepository{windows: make(map[string]failureWindow), now: time.Now}
}

// Failures returns the number of failures inside the current window.
func (r *MemoryLoginThrottleRepository) Failures(_ context.Context, key string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.windows[key]
	if !ok || r.now().After(w.resetAt) {
		delete(r.windows, key)
		return 0, nil
	}
	return w.count, nil
}

// RecordFailure increments the failure counter, starting the window on the first failure.
func (r *MemoryLoginThrottleRepository) RecordFailure(_ context.Context, key string, window time.Duration) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	w, ok := r.windows[key]
	if !ok || now.After(w.resetAt) {
		w = failureWindow{resetAt: now.Add(window)}
	}
	w.count++
	r.windows[key] = w
	return w.count, nil
}

// Reset clears the failure counter.
func (r *MemoryLoginThrottleRepository) Reset(_ context.Context, key string) error {
	r.mu.Lock()
	delete(r.windows, key)
	r.mu.Unlock()
	return nil
}
