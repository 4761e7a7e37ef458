package service

import (
	"context"
	"errors"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/school-portal-api/internal/models"
	"github.com/noah-isme/school-portal-api/internal/repository"
)

// Messages shown in the navigation slot when a signed-in account cannot be routed.
const (
	MessageProfileMissing    = "Registration completed but profile not found. Please try logging in again."
	MessageProfileReadFailed = "Registration completed. Please try logging in manually."
)

type profileReader interface {
	FindByUID(ctx context.Context, uid string) (*models.UserProfile, error)
}

type currentUserWriter interface {
	SetCurrentUser(ctx context.Context, profile *models.UserProfile) error
}

// RetryPolicy bounds how long the router waits for a freshly written profile to become readable.
type RetryPolicy struct {
	MaxAttempts     int
	InitialDelay    time.Duration
	RetryInterval   time.Duration
	Multiplier      float64
	NavigationDelay time.Duration
}

// DefaultRetryPolicy waits 500ms, reads, waits 2s, reads once more.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     2,
		InitialDelay:    500 * time.Millisecond,
		RetryInterval:   2 * time.Second,
		Multiplier:      2,
		NavigationDelay: time.Second,
	}
}

func (p RetryPolicy) normalised() RetryPolicy {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.Multiplier < 1 {
		p.Multiplier = 1
	}
	return p
}

// DelayBefore returns the wait before the given 1-based attempt.
func (p RetryPolicy) DelayBefore(attempt int) time.Duration {
	if attempt <= 1 {
		return p.InitialDelay
	}
	factor := math.Pow(p.Multiplier, float64(attempt-2))
	return time.Duration(float64(p.RetryInterval) * factor)
}

// RoleRouter maps a signed-in account to its dashboard. It never writes to the profile store.
type RoleRouter struct {
	profiles profileReader
	cache    currentUserWriter
	policy   RetryPolicy
	metrics  *MetricsService
	logger   *zap.Logger
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewRoleRouter constructs a RoleRouter.
func NewRoleRouter(profiles profileReader, cache currentUserWriter, policy RetryPolicy, metrics *MetricsService, logger *zap.Logger) *RoleRouter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RoleRouter{
		profiles: profiles,
		cache:    cache,
		policy:   policy.normalised(),
		metrics:  metrics,
		logger:   logger,
		sleep:    sleepContext,
	}
}

// Resolve reads the account's profile, retrying while it is not yet visible, and returns where to navigate.
func (r *RoleRouter) Resolve(ctx context.Context, uid string) models.RouteOutcome {
	outcome := r.resolve(ctx, uid)
	r.metrics.RecordRoute(outcome)
	return outcome
}

func (r *RoleRouter) resolve(ctx context.Context, uid string) models.RouteOutcome {
	logger := r.logger.With(zap.String("uid", uid))

	for attempt := 1; attempt <= r.policy.MaxAttempts; attempt++ {
		if err := r.sleep(ctx, r.policy.DelayBefore(attempt)); err != nil {
			logger.Warn("route resolution interrupted", zap.Int("attempt", attempt), zap.Error(err))
			return failedOutcome(attempt-1, MessageProfileReadFailed)
		}

		profile, err := r.profiles.FindByUID(ctx, uid)
		if err != nil {
			if errors.Is(err, repository.ErrDocumentNotFound) {
				logger.Info("profile not visible yet", zap.Int("attempt", attempt), zap.Int("max_attempts", r.policy.MaxAttempts))
				continue
			}
			logger.Error("profile read failed", zap.Int("attempt", attempt), zap.Error(err))
			return failedOutcome(attempt, MessageProfileReadFailed)
		}

		decision := models.DestinationForRole(profile.Role)
		if decision.Unrecognized {
			logger.Warn("unrecognized role, routing to student view", zap.String("role", string(profile.Role)))
		}

		if r.cache != nil {
			if err := r.cache.SetCurrentUser(ctx, profile); err != nil {
				logger.Warn("failed to cache current user", zap.Error(err))
			}
		}

		if err := r.sleep(ctx, r.policy.NavigationDelay); err != nil {
			logger.Warn("navigation delay interrupted", zap.Error(err))
		}

		logger.Info("route resolved", zap.String("destination", decision.Destination.String()), zap.Int("attempts", attempt))
		return models.RouteOutcome{
			Status:   models.NavigationRouted,
			Decision: decision,
			Profile:  profile,
			Attempts: attempt,
		}
	}

	logger.Warn("profile still missing after retries", zap.Int("attempts", r.policy.MaxAttempts))
	return failedOutcome(r.policy.MaxAttempts, MessageProfileMissing)
}

func failedOutcome(attempts int, message string) models.RouteOutcome {
	return models.RouteOutcome{Status: models.NavigationFailed, Attempts: attempts, Message: message}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
