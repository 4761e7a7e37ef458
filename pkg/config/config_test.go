package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsKeepTwoAttemptRouting(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	cfg := fromViper(v)
	require.NotNil(t, cfg)
	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, StoreMemory, cfg.ProfileStore.Backend)
	assert.Equal(t, StoreMemory, cfg.Credentials.AccountStore)
	assert.Equal(t, 2, cfg.Router.MaxAttempts)
	assert.Equal(t, 500*time.Millisecond, cfg.Router.InitialDelay)
	assert.Equal(t, 2*time.Second, cfg.Router.RetryInterval)
	assert.Equal(t, time.Second, cfg.Router.NavigationDelay)
	assert.Equal(t, 6, cfg.Credentials.MinPasswordLength)
	assert.Equal(t, []string{"application/pdf", "image/jpeg", "image/png"}, cfg.Documents.AllowedMIMEs)
	assert.Empty(t, cfg.Documents.PreviousSecrets)
}

func TestOverridesAndFallbacks(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("PROFILE_STORE", "Mongo")
	v.Set("ROUTER_INITIAL_DELAY", "not-a-duration")
	v.Set("ROUTER_BACKOFF_MULTIPLIER", 0.5)
	v.Set("ALLOWED_ORIGINS", " https://a.example , ,https://b.example")
	v.Set("DOCUMENTS_MAX_FILE_SIZE", -1)
	v.Set("PUBLIC_URL", "https://portal.example/")
	v.Set("DOCUMENTS_SIGNED_URL_PREVIOUS_SECRETS", "old-1, old-2")

	cfg := fromViper(v)
	assert.Equal(t, StoreMongo, cfg.ProfileStore.Backend)
	assert.Equal(t, 500*time.Millisecond, cfg.Router.InitialDelay)
	assert.Equal(t, 2.0, cfg.Router.Multiplier)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, int64(10*1024*1024), cfg.Documents.MaxFileSizeBytes)
	assert.Equal(t, "https://portal.example", cfg.PublicURL)
	assert.Equal(t, []string{"old-1", "old-2"}, cfg.Documents.PreviousSecrets)
}
