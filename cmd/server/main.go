package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"saska-advisor-go/internal/admin"
	"saska-advisor-go/internal/ai"
	"saska-advisor-go/internal/assessment"
	"saska-advisor-go/internal/auth"
	"saska-advisor-go/internal/config"
	"saska-advisor-go/internal/database"
	"saska-advisor-go/internal/events"
	httpserver "saska-advisor-go/internal/http"
	"saska-advisor-go/internal/logging"
	"saska-advisor-go/internal/store"
)

func main() {
	_ = godotenv.Load(".env")

	cfg, err := config.Load()
	if err != nil {
		l := logging.New("production")
		l.Fatal().Err(err).Msg("load config")
	}
	logger := logging.New(cfg.AppEnv)
	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("startup failed")
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           a.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().Msgf("listening on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	a.close()
	logger.Info().Msg("server stopped")
}

// app holds the wired router and everything that has to be closed on exit.
type app struct {
	router    *gin.Engine
	store     store.Store
	db        *gorm.DB
	rdb       *redis.Client
	publisher events.Publisher
	log       zerolog.Logger
}

func newApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*app, error) {
	st, db, err := openStore(cfg, logger)
	if err != nil {
		return nil, err
	}
	a := &app{store: st, db: db, publisher: events.Noop{}, log: logger}

	denylist := auth.Denylist(auth.NewMemoryDenylist())
	progress := assessment.MemoryProgressFactory()
	if cfg.RedisAddr != "" {
		a.rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		if err := a.rdb.Ping(ctx).Err(); err != nil {
			a.close()
			return nil, fmt.Errorf("connect redis %s: %w", cfg.RedisAddr, err)
		}
		denylist = auth.NewRedisDenylist(a.rdb)
		progress = assessment.RedisProgressFactory(a.rdb, assessment.DefaultProgressTTL)
		logger.Info().Str("addr", cfg.RedisAddr).Msg("connected to redis")
	}

	if len(cfg.KafkaBrokers) > 0 {
		kp, err := events.NewKafkaPublisher(ctx, cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("connect kafka: %w", err)
		}
		a.publisher = kp
		a.store = events.Mirror(a.store, kp, logger)
	}

	authSvc := auth.NewService(a.store, auth.NewTokens(cfg.JWTSecret, cfg.JWTTTL), denylist, logger)
	if _, err := authSvc.EnsureAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword, cfg.AdminName); err != nil {
		a.close()
		return nil, fmt.Errorf("seed admin account: %w", err)
	}

	gateway, err := ai.New(cfg, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("AI provider not configured; AI routes disabled")
	}

	a.router = httpserver.NewServer(httpserver.Deps{
		Config:   cfg,
		Store:    a.store,
		Auth:     authSvc,
		Admin:    admin.NewService(a.store, authSvc, logger),
		Gateway:  gateway,
		Progress: progress,
		Logger:   logger,
	})
	return a, nil
}

func (a *app) close() {
	if err := database.Close(a.db); err != nil {
		a.log.Error().Err(err).Msg("close database")
	}
	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			a.log.Error().Err(err).Msg("close redis")
		}
	}
	if err := a.publisher.Close(); err != nil {
		a.log.Error().Err(err).Msg("close kafka producer")
	}
}

func openStore(cfg *config.Config, logger zerolog.Logger) (store.Store, *gorm.DB, error) {
	opts := []store.Option{store.WithRetention(cfg.LogRetention)}
	switch cfg.StoreDriver {
	case "memory":
		logger.Warn().Msg("using in-memory store; data is lost on restart")
		return store.NewMemoryStore(opts...), nil, nil
	case "postgres", "":
		db, err := database.Connect(cfg.DatabaseDSN, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("connect database: %w", err)
		}
		return store.NewGormStore(db, opts...), db, nil
	default:
		return nil, nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}
}
