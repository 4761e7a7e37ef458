package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Profile store backends.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreMongo    = "mongo"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string
	PublicURL string

	Database     DatabaseConfig
	Mongo        MongoConfig
	Redis        RedisConfig
	JWT          JWTConfig
	CORS         CORSConfig
	Log          LogConfig
	ProfileStore ProfileStoreConfig
	Session      SessionConfig
	Router       RouterConfig
	Documents    DocumentsConfig
	Credentials  CredentialsConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

// MongoConfig points at the document database used for profiles and feedback.
type MongoConfig struct {
	URI            string
	Database       string
	ConnectTimeout time.Duration
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
	Issuer     string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// ProfileStoreConfig selects where profile and feedback documents live.
type ProfileStoreConfig struct {
	Backend string
}

// SessionConfig controls the per-account session cache entries.
type SessionConfig struct {
	TTL time.Duration
}

// RouterConfig tunes the read-after-write retry used when routing a signed-in user.
type RouterConfig struct {
	MaxAttempts     int
	InitialDelay    time.Duration
	RetryInterval   time.Duration
	Multiplier      float64
	NavigationDelay time.Duration
}

// DocumentsConfig controls student document blob storage.
type DocumentsConfig struct {
	StorageDir       string
	SignedURLSecret  string
	PreviousSecrets  []string
	MaxFileSizeBytes int64
	AllowedMIMEs     []string
	Workers          int
	BufferSize       int
}

// CredentialsConfig tunes the credential gateway.
type CredentialsConfig struct {
	AccountStore      string
	MinPasswordLength int
	MaxFailedAttempts int
	LockoutWindow     time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")
	cfg.PublicURL = strings.TrimRight(v.GetString("PUBLIC_URL"), "/")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Mongo = MongoConfig{
		URI:            v.GetString("MONGO_URI"),
		Database:       v.GetString("MONGO_DATABASE"),
		ConnectTimeout: parseDuration(v.GetString("MONGO_CONNECT_TIMEOUT"), 10*time.Second),
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("ENABLE_REDIS"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		Issuer:     v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.ProfileStore = ProfileStoreConfig{
		Backend: strings.ToLower(v.GetString("PROFILE_STORE")),
	}

	cfg.Session = SessionConfig{
		TTL: parseDuration(v.GetString("SESSION_TTL"), 12*time.Hour),
	}

	multiplier := v.GetFloat64("ROUTER_BACKOFF_MULTIPLIER")
	if multiplier < 1 {
		multiplier = 2
	}
	cfg.Router = RouterConfig{
		MaxAttempts:     v.GetInt("ROUTER_MAX_ATTEMPTS"),
		InitialDelay:    parseDuration(v.GetString("ROUTER_INITIAL_DELAY"), 500*time.Millisecond),
		RetryInterval:   parseDuration(v.GetString("ROUTER_RETRY_INTERVAL"), 2*time.Second),
		Multiplier:      multiplier,
		NavigationDelay: parseDuration(v.GetString("ROUTER_NAVIGATION_DELAY"), time.Second),
	}

	maxDocSize := v.GetInt64("DOCUMENTS_MAX_FILE_SIZE")
	if maxDocSize <= 0 {
		maxDocSize = 10 * 1024 * 1024
	}
	cfg.Documents = DocumentsConfig{
		StorageDir:       v.GetString("DOCUMENTS_STORAGE_DIR"),
		SignedURLSecret:  v.GetString("DOCUMENTS_SIGNED_URL_SECRET"),
		PreviousSecrets:  splitAndTrim(v.GetString("DOCUMENTS_SIGNED_URL_PREVIOUS_SECRETS")),
		MaxFileSizeBytes: maxDocSize,
		AllowedMIMEs:     splitAndTrim(v.GetString("DOCUMENTS_ALLOWED_MIME_TYPES")),
		Workers:          v.GetInt("DOCUMENTS_WORKERS"),
		BufferSize:       v.GetInt("DOCUMENTS_BUFFER_SIZE"),
	}

	cfg.Credentials = CredentialsConfig{
		AccountStore:      strings.ToLower(v.GetString("ACCOUNT_STORE")),
		MinPasswordLength: v.GetInt("PASSWORD_MIN_LENGTH"),
		MaxFailedAttempts: v.GetInt("LOGIN_MAX_FAILED_ATTEMPTS"),
		LockoutWindow:     parseDuration(v.GetString("LOGIN_LOCKOUT_WINDOW"), 15*time.Minute),
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")
	v.SetDefault("PUBLIC_URL", "http://localhost:8080")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "school_portal")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("MONGO_URI", "mongodb://localhost:27017")
	v.SetDefault("MONGO_DATABASE", "school_portal")
	v.SetDefault("MONGO_CONNECT_TIMEOUT", "10s")

	v.SetDefault("ENABLE_REDIS", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("JWT_ISSUER", "school-portal-api")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("PROFILE_STORE", StoreMemory)
	v.SetDefault("SESSION_TTL", "12h")

	v.SetDefault("ROUTER_MAX_ATTEMPTS", 2)
	v.SetDefault("ROUTER_INITIAL_DELAY", "500ms")
	v.SetDefault("ROUTER_RETRY_INTERVAL", "2s")
	v.SetDefault("ROUTER_BACKOFF_MULTIPLIER", 2.0)
	v.SetDefault("ROUTER_NAVIGATION_DELAY", "1s")

	v.SetDefault("DOCUMENTS_STORAGE_DIR", "./documents")
	v.SetDefault("DOCUMENTS_SIGNED_URL_SECRET", "dev_documents_secret")
	v.SetDefault("DOCUMENTS_SIGNED_URL_PREVIOUS_SECRETS", "")
	v.SetDefault("DOCUMENTS_MAX_FILE_SIZE", 10*1024*1024)
	v.SetDefault("DOCUMENTS_ALLOWED_MIME_TYPES", "application/pdf,image/jpeg,image/png")
	v.SetDefault("DOCUMENTS_WORKERS", 2)
	v.SetDefault("DOCUMENTS_BUFFER_SIZE", 64)

	v.SetDefault("ACCOUNT_STORE", StoreMemory)
	v.SetDefault("PASSWORD_MIN_LENGTH", 6)
	v.SetDefault("LOGIN_MAX_FAILED_ATTEMPTS", 5)
	v.SetDefault("LOGIN_LOCKOUT_WINDOW", "15m")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
