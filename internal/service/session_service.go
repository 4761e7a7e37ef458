package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/school-portal-api/internal/dto"
	"github.com/noah-isme/school-portal-api/internal/models"
)

// ErrSessionServiceStarted is returned when Start is called twice.
var ErrSessionServiceStarted = errors.New("session service already started")

type sessionSubscriber interface {
	Subscribe(listener SessionListener) (func(), error)
}

type routeResolver interface {
	Resolve(ctx context.Context, uid string) models.RouteOutcome
}

type sessionSlots interface {
	SetNavigation(ctx context.Context, uid string, state models.NavigationState) error
	Navigation(ctx context.Context, uid string) (models.NavigationState, bool, error)
	CurrentUser(ctx context.Context, uid string) (*models.UserProfile, bool, error)
	ClearCurrentUser(ctx context.Context, uid string) error
}

// SessionService observes the credential gateway and drives routing on every sign-in.
type SessionService struct {
	gateway sessionSubscriber
	router  routeResolver
	slots   sessionSlots
	logger  *zap.Logger
	now     func() time.Time

	mu          sync.RWMutex
	states      map[string]models.SessionState
	unsubscribe func()
	inflight    sync.WaitGroup
}

// NewSessionService constructs a SessionService. Call Start to begin observing.
func NewSessionService(gateway sessionSubscriber, router routeResolver, slots sessionSlots, logger *zap.Logger) *SessionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionService{
		gateway: gateway,
		router:  router,
		slots:   slots,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
		states:  make(map[string]models.SessionState),
	}
}

// Start subscribes to the gateway.
func (s *SessionService) Start() error {
	s.mu.Lock()
	if s.unsubscribe != nil {
		s.mu.Unlock()
		return ErrSessionServiceStarted
	}
	s.mu.Unlock()

	unsubscribe, err := s.gateway.Subscribe(s.handle)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.unsubscribe = unsubscribe
	s.mu.Unlock()
	return nil
}

// Stop releases the gateway subscription. Resolutions already running keep going; use Wait to join them.
func (s *SessionService) Stop() {
	s.mu.Lock()
	unsubscribe := s.unsubscribe
	s.unsubscribe = nil
	s.mu.Unlock()
	if unsubscribe != nil {
		unsubscribe()
	}
}

// Wait blocks until every scheduled route resolution has finished.
func (s *SessionService) Wait() {
	s.inflight.Wait()
}

// State returns the account's session state.
func (s *SessionService) State(uid string) models.SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if state, ok := s.states[uid]; ok {
		return state
	}
	return models.SessionSignedOut
}

// IsSignedIn reports whether the account currently holds a session.
func (s *SessionService) IsSignedIn(uid string) bool {
	return s.State(uid) == models.SessionSignedIn
}

// Snapshot returns the navigation slot and cached current user of the account.
func (s *SessionService) Snapshot(ctx context.Context, uid string) (*dto.SessionView, error) {
	view := &dto.SessionView{UID: uid, State: s.State(uid)}

	navigation, ok, err := s.slots.Navigation(ctx, uid)
	if err != nil {
		return nil, err
	}
	if !ok {
		navigation = models.NavigationState{Status: models.NavigationPending}
		if view.State == models.SessionSignedOut {
			navigation = signedOutNavigation(s.now())
		}
	}
	view.Navigation = navigation

	profile, ok, err := s.slots.CurrentUser(ctx, uid)
	if err != nil {
		return nil, err
	}
	if ok {
		view.CurrentUser = profile
	}
	return view, nil
}

func (s *SessionService) handle(change models.SessionChange) {
	if change.UID == "" {
		s.logger.Debug("session observer attached")
		return
	}
	if change.SignedIn() {
		s.signedIn(change.UID)
		return
	}
	s.signedOut(change.UID)
}

func (s *SessionService) signedIn(uid string) {
	s.mu.Lock()
	previous := s.states[uid]
	s.states[uid] = models.SessionSignedIn
	s.mu.Unlock()

	if previous == models.SessionSignedIn {
		s.logger.Debug("account already signed in", zap.String("uid", uid))
		return
	}

	ctx := context.Background()
	pending := models.NavigationState{Status: models.NavigationPending, UpdatedAt: s.now()}
	if err := s.slots.SetNavigation(ctx, uid, pending); err != nil {
		s.logger.Warn("failed to mark navigation pending", zap.String("uid", uid), zap.Error(err))
	}

	// Resolution is detached from the triggering request and is not cancelled by a later sign-out.
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		outcome := s.router.Resolve(ctx, uid)
		if err := s.slots.SetNavigation(ctx, uid, outcome.Navigation(s.now())); err != nil {
			s.logger.Warn("failed to store navigation", zap.String("uid", uid), zap.Error(err))
		}
	}()
}

func (s *SessionService) signedOut(uid string) {
	s.mu.Lock()
	delete(s.states, uid)
	s.mu.Unlock()

	ctx := context.Background()
	if err := s.slots.ClearCurrentUser(ctx, uid); err != nil {
		s.logger.Warn("failed to clear current user", zap.String("uid", uid), zap.Error(err))
	}
	if err := s.slots.SetNavigation(ctx, uid, signedOutNavigation(s.now())); err != nil {
		s.logger.Warn("failed to store signed out navigation", zap.String("uid", uid), zap.Error(err))
	}
	s.logger.Info("account signed out", zap.String("uid", uid))
}

func signedOutNavigation(now time.Time) models.NavigationState {
	return models.NavigationState{
		Status:      models.NavigationSignedOut,
		Destination: models.DestinationEntry.String(),
		Path:        models.DestinationEntry.Path(),
		UpdatedAt:   now,
	}
}
