package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"

	_ "github.com/noah-isme/school-portal-api/api/swagger"
	"github.com/noah-isme/school-portal-api/internal/handler"
	"github.com/noah-isme/school-portal-api/internal/middleware"
	"github.com/noah-isme/school-portal-api/internal/models"
	"github.com/noah-isme/school-portal-api/internal/repository"
	"github.com/noah-isme/school-portal-api/internal/service"
	"github.com/noah-isme/school-portal-api/pkg/cache"
	"github.com/noah-isme/school-portal-api/pkg/config"
	"github.com/noah-isme/school-portal-api/pkg/database"
	"github.com/noah-isme/school-portal-api/pkg/jobs"
	"github.com/noah-isme/school-portal-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/school-portal-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/school-portal-api/pkg/middleware/requestid"
	"github.com/noah-isme/school-portal-api/pkg/storage"
)

// @title School Portal API
// @version 1.0.0
// @description Registration, login, role routing and student dashboard for the school portal
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

// backends holds the optional connections opened at startup.
type backends struct {
	db    *sqlx.DB
	mongo *mongo.Client
	mdb   *mongo.Database
	redis *redis.Client
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logr); err != nil {
		logr.Fatal("server stopped with error", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logr *zap.Logger) error {
	conns, err := connect(ctx, cfg, logr)
	if err != nil {
		return err
	}
	defer conns.close(logr)

	metrics := service.NewMetricsService()
	validate := validator.New()

	var documents repository.DocumentStore
	switch cfg.ProfileStore.Backend {
	case config.StorePostgres:
		documents = repository.NewPostgresDocumentStore(conns.db)
	case config.StoreMongo:
		documents = repository.NewMongoDocumentStore(conns.mdb)
	default:
		documents = repository.NewMemoryDocumentStore()
	}
	profiles := repository.NewProfileRepository(documents)
	feedback := repository.NewFeedbackRepository(documents)

	var accounts service.AccountRepository
	if cfg.Credentials.AccountStore == config.StorePostgres {
		accounts = repository.NewAccountRepository(conns.db)
	} else {
		accounts = repository.NewMemoryAccountRepository()
	}

	var sessionCache service.SessionCacheRepository = repository.NewMemorySessionCacheRepository()
	var throttle service.LoginThrottle = repository.NewMemoryLoginThrottleRepository()
	if conns.redis != nil {
		sessionCache = repository.NewSessionCacheRepository(conns.redis, logr)
		throttle = repository.NewLoginThrottleRepository(conns.redis)
	}
	sessions := service.NewSessionStore(sessionCache, metrics, cfg.Session.TTL, logr)

	gateway := service.NewCredentialGateway(accounts, throttle, validate, logr, service.CredentialConfig{
		TokenSecret:       cfg.JWT.Secret,
		TokenExpiry:       cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
		MinPasswordLength: cfg.Credentials.MinPasswordLength,
		MaxFailedAttempts: cfg.Credentials.MaxFailedAttempts,
		LockoutWindow:     cfg.Credentials.LockoutWindow,
	})

	router := service.NewRoleRouter(profiles, sessions, service.RetryPolicy{
		MaxAttempts:     cfg.Router.MaxAttempts,
		InitialDelay:    cfg.Router.InitialDelay,
		RetryInterval:   cfg.Router.RetryInterval,
		Multiplier:      cfg.Router.Multiplier,
		NavigationDelay: cfg.Router.NavigationDelay,
	}, metrics, logr)

	sessionSvc := service.NewSessionService(gateway, router, sessions, logr)
	if err := sessionSvc.Start(); err != nil {
		return fmt.Errorf("start session service: %w", err)
	}
	defer sessionSvc.Stop()

	fileStorage, err := storage.NewLocalStorage(cfg.Documents.StorageDir)
	if err != nil {
		return fmt.Errorf("init document storage: %w", err)
	}
	blobs := service.NewBlobService(fileStorage, storage.NewSignedURLSigner(cfg.Documents.SignedURLSecret, cfg.Documents.PreviousSecrets...), logr, service.BlobServiceConfig{
		MaxFileSize:  cfg.Documents.MaxFileSizeBytes,
		AllowedMIMEs: cfg.Documents.AllowedMIMEs,
		PublicURL:    cfg.PublicURL,
		APIPrefix:    cfg.APIPrefix,
	})

	uploads := service.NewDocumentUploadWorker(blobs, profiles, metrics, logr, jobs.QueueConfig{
		Workers:    cfg.Documents.Workers,
		BufferSize: cfg.Documents.BufferSize,
	})
	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()
	uploads.Start(workerCtx)
	defer uploads.Stop()

	registration := service.NewRegistrationService(gateway, profiles, uploads, validate, metrics, logr)
	dashboard := service.NewStudentDashboardService(profiles, sessions, feedback, nil, validate, logr)

	checks := map[string]handler.ReadinessCheck{
		"documents": func(context.Context) error { return fileStorage.Ping() },
	}
	if conns.db != nil {
		checks["postgres"] = conns.db.PingContext
	}
	if conns.mongo != nil {
		checks["mongo"] = func(ctx context.Context) error { return conns.mongo.Ping(ctx, readpref.Primary()) }
	}
	if conns.redis != nil {
		checks["redis"] = func(ctx context.Context) error { return conns.redis.Ping(ctx).Err() }
	}

	engine := newEngine(cfg, logr, metrics)
	registerRoutes(engine, cfg, routeDeps{
		auth:      handler.NewAuthHandler(registration, cfg.Documents.MaxFileSizeBytes, cfg.Documents.AllowedMIMEs...),
		session:   handler.NewSessionHandler(sessionSvc),
		students:  handler.NewStudentHandler(dashboard),
		documents: handler.NewDocumentHandler(blobs),
		ops:       handler.NewMetricsHandler(metrics, checks),
		tokens:    gateway,
		sessions:  sessionSvc,
		profiles:  profiles,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env),
			zap.String("profile_store", cfg.ProfileStore.Backend), zap.String("account_store", cfg.Credentials.AccountStore))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
	}

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	sessionSvc.Wait()
	return nil
}

func connect(ctx context.Context, cfg *config.Config, logr *zap.Logger) (*backends, error) {
	conns := &backends{}

	if cfg.ProfileStore.Backend == config.StorePostgres || cfg.Credentials.AccountStore == config.StorePostgres {
		db, err := database.NewPostgres(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := database.Migrate(ctx, db); err != nil {
			_ = db.Close()
			return nil, err
		}
		conns.db = db
		logr.Info("postgres connected", zap.String("database", cfg.Database.Name))
	}

	if cfg.ProfileStore.Backend == config.StoreMongo {
		client, mdb, err := database.NewMongo(ctx, cfg.Mongo)
		if err != nil {
			conns.close(logr)
			return nil, err
		}
		conns.mongo, conns.mdb = client, mdb
		logr.Info("mongo connected", zap.String("database", cfg.Mongo.Database))
	}

	client, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, using in-process session cache", zap.Error(err))
	} else if client != nil {
		conns.redis = client
		logr.Info("redis connected")
	}

	return conns, nil
}

func (b *backends) close(logr *zap.Logger) {
	if b.redis != nil {
		if err := b.redis.Close(); err != nil {
			logr.Warn("close redis", zap.Error(err))
		}
	}
	if b.mongo != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := b.mongo.Disconnect(ctx); err != nil {
			logr.Warn("disconnect mongo", zap.Error(err))
		}
	}
	if b.db != nil {
		if err := b.db.Close(); err != nil {
			logr.Warn("close postgres", zap.Error(err))
		}
	}
}

func newEngine(cfg *config.Config, logr *zap.Logger, metrics *service.MetricsService) *gin.Engine {
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.MaxMultipartMemory = 3*cfg.Documents.MaxFileSizeBytes + (1 << 20)
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))
	return r
}

type routeDeps struct {
	auth      *handler.AuthHandler
	session   *handler.SessionHandler
	students  *handler.StudentHandler
	documents *handler.DocumentHandler
	ops       *handler.MetricsHandler
	tokens    *service.CredentialGateway
	sessions  *service.SessionService
	profiles  *repository.ProfileRepository
}

func registerRoutes(r *gin.Engine, cfg *config.Config, deps routeDeps) {
	r.GET("/health", deps.ops.Health)
	r.GET("/ready", deps.ops.Ready)
	r.GET("/metrics", deps.ops.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	requireSession := middleware.JWT(deps.tokens, deps.sessions)

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/register", deps.auth.Register)
	auth.POST("/login", deps.auth.Login)
	auth.POST("/logout", requireSession, deps.auth.Logout)

	api.GET("/session", requireSession, deps.session.Current)
	api.GET("/documents/download", deps.documents.Download)

	students := api.Group("/students/me", requireSession, middleware.RequireDestination(deps.profiles, models.DestinationStudent))
	students.GET("", deps.students.Me)
	students.POST("/feedback", deps.students.SubmitFeedback)
	students.GET("/report", deps.students.Report)
}
