package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/school-portal-api/internal/models"
	"github.com/noah-isme/school-portal-api/internal/repository"
)

type changeRecorder struct {
	mu      sync.Mutex
	changes []models.SessionChange
}

func (r *changeRecorder) listen(change models.SessionChange) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, change)
}

func (r *changeRecorder) all() []models.SessionChange {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.SessionChange(nil), r.changes...)
}

func newTestGateway(maxFailures int) *CredentialGateway {
	return NewCredentialGateway(
		repository.NewMemoryAccountRepository(),
		repository.NewMemoryLoginThrottleRepository(),
		nil,
		nil,
		CredentialConfig{
			TokenSecret:       "test-secret",
			TokenExpiry:       time.Hour,
			Issuer:            "school-portal-test",
			MaxFailedAttempts: maxFailures,
			LockoutWindow:     time.Minute,
			PasswordCost:      bcrypt.MinCost,
		},
	)
}

func requireProviderCode(t *testing.T, err error, code string) {
	t.Helper()
	var perr *ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, code, perr.Code)
}

func TestCredentialGatewayCreateAndSignIn(t *testing.T) {
	gateway := newTestGateway(5)
	recorder := &changeRecorder{}
	unsubscribe, err := gateway.Subscribe(recorder.listen)
	require.NoError(t, err)
	defer unsubscribe()

	created, err := gateway.CreateAccount(context.Background(), " Ada@School.test ", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "ada@school.test", created.Email)
	assert.NotEmpty(t, created.Token)

	claims, err := gateway.ValidateToken(created.Token)
	require.NoError(t, err)
	assert.Equal(t, created.UID, claims.UserID)

	signedIn, err := gateway.SignIn(context.Background(), "ada@school.test", "secret1")
	require.NoError(t, err)
	assert.Equal(t, created.UID, signedIn.UID)

	changes := recorder.all()
	require.Len(t, changes, 3)
	assert.Empty(t, changes[0].UID)
	assert.False(t, changes[0].SignedIn())
	assert.True(t, changes[1].SignedIn())
	assert.Equal(t, created.UID, changes[1].UID)
	assert.True(t, changes[2].SignedIn())
}

func TestCredentialGatewayCreateAccountErrors(t *testing.T) {
	gateway := newTestGateway(5)
	ctx := context.Background()

	_, err := gateway.CreateAccount(ctx, "not-an-email", "secret1")
	requireProviderCode(t, err, CodeInvalidEmail)

	_, err = gateway.CreateAccount(ctx, "ada@school.test", "123")
	requireProviderCode(t, err, CodeWeakPassword)

	_, err = gateway.CreateAccount(ctx, "ada@school.test", "secret1")
	require.NoError(t, err)
	_, err = gateway.CreateAccount(ctx, "ADA@school.test", "secret2")
	requireProviderCode(t, err, CodeEmailInUse)
}

func TestCredentialGatewaySignInErrors(t *testing.T) {
	gateway := newTestGateway(2)
	ctx := context.Background()
	_, err := gateway.CreateAccount(ctx, "ada@school.test", "secret1")
	require.NoError(t, err)

	_, err = gateway.SignIn(ctx, "bob@school.test", "secret1")
	requireProviderCode(t, err, CodeUserNotFound)

	_, err = gateway.SignIn(ctx, "ada@school.test", "wrong-1")
	requireProviderCode(t, err, CodeWrongPassword)
	_, err = gateway.SignIn(ctx, "ada@school.test", "wrong-2")
	requireProviderCode(t, err, CodeWrongPassword)

	_, err = gateway.SignIn(ctx, "ada@school.test", "secret1")
	requireProviderCode(t, err, CodeTooManyRequests)
}

func TestCredentialGatewaySingleSubscription(t *testing.T) {
	gateway := newTestGateway(0)
	first := &changeRecorder{}

	unsubscribe, err := gateway.Subscribe(first.listen)
	require.NoError(t, err)

	_, err = gateway.Subscribe((&changeRecorder{}).listen)
	assert.ErrorIs(t, err, ErrAlreadySubscribed)

	unsubscribe()
	unsubscribe()

	second := &changeRecorder{}
	unsubscribeSecond, err := gateway.Subscribe(second.listen)
	require.NoError(t, err)
	defer unsubscribeSecond()

	_, err = gateway.CreateAccount(context.Background(), "ada@school.test", "secret1")
	require.NoError(t, err)
	assert.Len(t, first.all(), 1)
	assert.Len(t, second.all(), 2)
}

func TestCredentialGatewaySignOutNotifies(t *testing.T) {
	gateway := newTestGateway(0)
	recorder := &changeRecorder{}
	unsubscribe, err := gateway.Subscribe(recorder.listen)
	require.NoError(t, err)
	defer unsubscribe()

	session, err := gateway.CreateAccount(context.Background(), "ada@school.test", "secret1")
	require.NoError(t, err)
	require.NoError(t, gateway.SignOut(context.Background(), session.UID))

	changes := recorder.all()
	require.Len(t, changes, 3)
	assert.Equal(t, session.UID, changes[2].UID)
	assert.False(t, changes[2].SignedIn())

	requireProviderCode(t, gateway.SignOut(context.Background(), "missing"), CodeUserNotFound)
}

func TestCredentialGatewayRejectsForeignToken(t *testing.T) {
	gateway := newTestGateway(0)
	other := NewCredentialGateway(repository.NewMemoryAccountRepository(), nil, nil, nil, CredentialConfig{TokenSecret: "other", PasswordCost: bcrypt.MinCost})

	session, err := other.CreateAccount(context.Background(), "ada@school.test", "secret1")
	require.NoError(t, err)

	_, err = gateway.ValidateToken(session.Token)
	assert.Error(t, err)
}
