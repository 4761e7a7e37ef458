package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/school-portal-api/internal/models"
	"github.com/noah-isme/school-portal-api/internal/repository"
	appErrors "github.com/noah-isme/school-portal-api/pkg/errors"
)

// Provider error codes reported by the credential gateway.
const (
	CodeEmailInUse        = "auth/email-already-in-use"
	CodeWeakPassword      = "auth/weak-password"
	CodeInvalidEmail      = "auth/invalid-email"
	CodeUserNotFound      = "auth/user-not-found"
	CodeWrongPassword     = "auth/wrong-password"
	CodeInvalidCredential = "auth/invalid-credential"
	CodeTooManyRequests   = "auth/too-many-requests"
	CodeInternal          = "auth/internal-error"
)

// ErrAlreadySubscribed is returned when a second session observer tries to subscribe.
var ErrAlreadySubscribed = errors.New("session observer already subscribed")

// ProviderError is a credential failure carrying a provider code.
type ProviderError struct {
	Code    string
	Message string
	Err     error
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return e.Code + ": " + e.Message
}

func (e *ProviderError) Unwrap() error { return e.Err }

func providerError(code, message string, err error) *ProviderError {
	return &ProviderError{Code: code, Message: message, Err: err}
}

// AccountRepository persists credential accounts.
type AccountRepository interface {
	Create(ctx context.Context, account *models.Account) error
	FindByEmail(ctx context.Context, email string) (*models.Account, error)
	FindByID(ctx context.Context, id string) (*models.Account, error)
	UpdateLastSignIn(ctx context.Context, id string, ts time.Time) error
}

// LoginThrottle counts failed sign-ins per email within a window.
type LoginThrottle interface {
	Failures(ctx context.Context, key string) (int64, error)
	RecordFailure(ctx context.Context, key string, window time.Duration) (int64, error)
	Reset(ctx context.Context, key string) error
}

// SessionListener receives every session state change.
type SessionListener func(change models.SessionChange)

// CredentialConfig tunes account creation, sign-in and session tokens.
type CredentialConfig struct {
	TokenSecret       string
	TokenExpiry       time.Duration
	Issuer            string
	MinPasswordLength int
	MaxFailedAttempts int
	LockoutWindow     time.Duration
	PasswordCost      int
}

// CredentialGateway owns accounts and notifies one session observer about sign-in state.
type CredentialGateway struct {
	accounts  AccountRepository
	throttle  LoginThrottle
	validator *validator.Validate
	logger    *zap.Logger
	config    CredentialConfig
	now       func() time.Time

	mu           sync.Mutex
	listener     SessionListener
	subscription uint64
}

// NewCredentialGateway constructs a CredentialGateway. throttle may be nil.
func NewCredentialGateway(accounts AccountRepository, throttle LoginThrottle, validate *validator.Validate, logger *zap.Logger, config CredentialConfig) *CredentialGateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if config.TokenExpiry <= 0 {
		config.TokenExpiry = 24 * time.Hour
	}
	if config.MinPasswordLength <= 0 {
		config.MinPasswordLength = 6
	}
	if config.LockoutWindow <= 0 {
		config.LockoutWindow = 15 * time.Minute
	}
	if config.PasswordCost == 0 {
		config.PasswordCost = bcrypt.DefaultCost
	}
	return &CredentialGateway{
		accounts:  accounts,
		throttle:  throttle,
		validator: validate,
		logger:    logger,
		config:    config,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// CreateAccount registers a new account and signs it in.
func (g *CredentialGateway) CreateAccount(ctx context.Context, email, password string) (*models.AuthSession, error) {
	email = normaliseEmail(email)
	if err := g.validator.Var(email, "required,email"); err != nil {
		return nil, providerError(CodeInvalidEmail, "the email address is badly formatted", err)
	}
	if len(password) < g.config.MinPasswordLength {
		return nil, providerError(CodeWeakPassword, fmt.Sprintf("password should be at least %d characters", g.config.MinPasswordLength), nil)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), g.config.PasswordCost)
	if err != nil {
		return nil, providerError(CodeInternal, "failed to hash password", err)
	}

	now := g.now()
	account := &models.Account{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    now,
		LastSignInAt: &now,
	}
	if err := g.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, repository.ErrAccountExists) {
			return nil, providerError(CodeEmailInUse, "the email address is already in use by another account", err)
		}
		return nil, providerError(CodeInternal, "failed to create account", err)
	}

	session, err := g.issueSession(account)
	if err != nil {
		return nil, providerError(CodeInternal, "failed to issue session token", err)
	}

	g.logger.Info("account created", zap.String("uid", account.ID))
	g.emit(models.SessionChange{UID: account.ID, Account: account})
	return session, nil
}

// SignIn verifies the credentials and signs the account in.
func (g *CredentialGateway) SignIn(ctx context.Context, email, password string) (*models.AuthSession, error) {
	email = normaliseEmail(email)
	if err := g.validator.Var(email, "required,email"); err != nil {
		return nil, providerError(CodeInvalidEmail, "the email address is badly formatted", err)
	}

	if g.locked(ctx, email) {
		return nil, providerError(CodeTooManyRequests, "access to this account has been temporarily disabled due to many failed login attempts", nil)
	}

	account, err := g.accounts.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return nil, providerError(CodeUserNotFound, "there is no user record corresponding to this identifier", err)
		}
		return nil, providerError(CodeInternal, "failed to load account", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		g.recordFailure(ctx, email)
		return nil, providerError(CodeWrongPassword, "the password is invalid", err)
	}

	if g.throttle != nil {
		if err := g.throttle.Reset(ctx, email); err != nil {
			g.logger.Warn("failed to reset login throttle", zap.Error(err))
		}
	}
	now := g.now()
	if err := g.accounts.UpdateLastSignIn(ctx, account.ID, now); err != nil {
		g.logger.Warn("failed to update last sign in", zap.String("uid", account.ID), zap.Error(err))
	}
	account.LastSignInAt = &now

	session, err := g.issueSession(account)
	if err != nil {
		return nil, providerError(CodeInternal, "failed to issue session token", err)
	}

	g.emit(models.SessionChange{UID: account.ID, Account: account})
	return session, nil
}

// SignOut ends the account's session and notifies the observer.
func (g *CredentialGateway) SignOut(ctx context.Context, uid string) error {
	if uid == "" {
		return providerError(CodeInternal, "no signed in account", nil)
	}
	if _, err := g.accounts.FindByID(ctx, uid); err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return providerError(CodeUserNotFound, "there is no user record corresponding to this identifier", err)
		}
		return providerError(CodeInternal, "failed to load account", err)
	}
	g.emit(models.SessionChange{UID: uid})
	return nil
}

// Subscribe registers the single session observer. The listener is invoked once immediately
// with no account, then on every change, until the returned func is called.
func (g *CredentialGateway) Subscribe(listener SessionListener) (func(), error) {
	if listener == nil {
		return nil, errors.New("session listener is required")
	}
	g.mu.Lock()
	if g.listener != nil {
		g.mu.Unlock()
		return nil, ErrAlreadySubscribed
	}
	g.subscription++
	id := g.subscription
	g.listener = listener
	g.mu.Unlock()

	listener(models.SessionChange{})

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			if g.subscription == id {
				g.listener = nil
			}
			g.mu.Unlock()
		})
	}, nil
}

// ValidateToken parses and validates a session token returning the claims.
func (g *CredentialGateway) ValidateToken(tokenString string) (*models.SessionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(g.config.TokenSecret), nil
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}

	claims, ok := token.Claims.(*models.SessionClaims)
	if !ok || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}

	return claims, nil
}

func (g *CredentialGateway) emit(change models.SessionChange) {
	g.mu.Lock()
	listener := g.listener
	g.mu.Unlock()
	if listener != nil {
		listener(change)
	}
}

func (g *CredentialGateway) locked(ctx context.Context, email string) bool {
	if g.throttle == nil || g.config.MaxFailedAttempts <= 0 {
		return false
	}
	failures, err := g.throttle.Failures(ctx, email)
	if err != nil {
		g.logger.Warn("failed to read login throttle", zap.Error(err))
		return false
	}
	return failures >= int64(g.config.MaxFailedAttempts)
}

func (g *CredentialGateway) recordFailure(ctx context.Context, email string) {
	if g.throttle == nil || g.config.MaxFailedAttempts <= 0 {
		return
	}
	if _, err := g.throttle.RecordFailure(ctx, email, g.config.LockoutWindow); err != nil {
		g.logger.Warn("failed to record login failure", zap.Error(err))
	}
}

func (g *CredentialGateway) issueSession(account *models.Account) (*models.AuthSession, error) {
	issuedAt := g.now()
	expiresAt := issuedAt.Add(g.config.TokenExpiry)
	claims := &models.SessionClaims{
		UserID: account.ID,
		Email:  account.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    g.config.Issuer,
			Subject:   account.ID,
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(g.config.TokenSecret))
	if err != nil {
		return nil, err
	}
	return &models.AuthSession{UID: account.ID, Email: account.Email, Token: signed, ExpiresAt: expiresAt}, nil
}

func normaliseEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
