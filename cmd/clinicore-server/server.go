package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/clinicore/clinicore/internal/config"
	"github.com/clinicore/clinicore/internal/domain/lab"
	"github.com/clinicore/clinicore/internal/domain/record"
	"github.com/clinicore/clinicore/internal/platform/alert"
	"github.com/clinicore/clinicore/internal/platform/auth"
	"github.com/clinicore/clinicore/internal/platform/cache"
	"github.com/clinicore/clinicore/internal/platform/db"
	"github.com/clinicore/clinicore/internal/platform/metrics"
	"github.com/clinicore/clinicore/internal/platform/middleware"
	"github.com/clinicore/clinicore/internal/platform/openapi"
	"github.com/clinicore/clinicore/internal/platform/summarizer"
)

// deps is everything the HTTP layer is built from.
type deps struct {
	cfg         *config.Config
	logger      zerolog.Logger
	metrics     *metrics.Collector
	checks      []db.Check
	poolHealth  echo.HandlerFunc
	records     *record.Service
	labs        *lab.Service
	revocations auth.RevocationStore
}

func newLogger(cfg *config.Config) zerolog.Logger {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if cfg.IsDev() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil && cfg.LogLevel != "" {
		logger = logger.Level(lvl)
	}
	return logger
}

// newClassifier builds the classifier from the configured range table and
// escalation multiple.
func newClassifier(cfg *config.Config) (*lab.Classifier, error) {
	table, err := loadRangeTable(cfg.ReferenceRangesFile)
	if err != nil {
		return nil, err
	}
	return lab.NewClassifier(table, lab.DefaultEscalationRule(cfg.CriticalWidthMultiple)), nil
}

// newServices wires the domain services over the pool. rdb may be nil.
func newServices(cfg *config.Config, logger zerolog.Logger, pool *pgxpool.Pool, rdb *redis.Client, col *metrics.Collector) (*record.Service, *lab.Service, error) {
	records := record.NewService(record.NewRecordRepoPG(pool), record.NewEditWindow(cfg.EditWindow))
	records.SetMetrics(col)
	records.SetLogger(logger.With().Str("component", "record").Logger())
	if cfg.SummarizerURL != "" {
		records.SetSummarizer(summarizer.New(cfg.SummarizerURL, cfg.SummarizerTimeout))
	}

	classifier, err := newClassifier(cfg)
	if err != nil {
		return nil, nil, err
	}
	labs := lab.NewService(lab.NewPanelRepoPG(pool), classifier, cfg.TrendTolerance)
	labs.SetMetrics(col)
	labs.SetLogger(logger.With().Str("component", "lab").Logger())
	labs.SetTxRunner(func(ctx context.Context, fn func(ctx context.Context) error) error {
		return db.WithTx(ctx, pool, fn)
	})
	if rdb != nil {
		labs.SetAlertPublisher(alert.NewRedisPublisher(rdb))
	} else {
		labs.SetAlertPublisher(alert.NewLogPublisher(logger))
	}
	return records, labs, nil
}

func newServer(d deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(d.logger))
	e.Use(middleware.Recovery(d.logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.BodyLimit(d.cfg.BodyLimit))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: d.cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut},
		AllowHeaders: []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
	}))
	e.Use(middleware.RateLimit(middleware.RateLimitConfig{
		RequestsPerSecond: d.cfg.RateLimitRPS,
		BurstSize:         d.cfg.RateLimitBurst,
		IdleTTL:           10 * time.Minute,
		Skipper:           auth.AuthSkipper,
	}))
	e.Use(middleware.RequestTimeout(d.cfg.RequestTimeout))
	if d.metrics != nil {
		e.Use(middleware.Metrics(d.metrics))
		e.GET("/metrics", echo.WrapHandler(d.metrics.Handler()))
	}

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	if d.poolHealth != nil {
		e.GET("/health/db", d.poolHealth)
	} else {
		e.GET("/health/db", db.ReadinessHandler(d.checks...))
	}

	api := e.Group("/api/v1")
	if d.cfg.DevAuth() {
		api.Use(auth.DevAuthMiddleware(auth.DefaultDevActor()))
	} else {
		api.Use(auth.JWTMiddleware(auth.JWTConfig{
			Issuer:      d.cfg.AuthIssuer,
			Audience:    d.cfg.AuthAudience,
			SigningKey:  []byte(d.cfg.AuthSigningKey),
			Revocations: d.revocations,
		}))
	}

	record.NewHandler(d.records).RegisterRoutes(api)
	lab.NewHandler(d.labs).RegisterRoutes(api)
	if d.revocations != nil {
		auth.RegisterRevocationRoutes(api, d.revocations)
	}
	openapi.NewGenerator(e.Routes, "/api/v1", version).RegisterRoutes(e)
	return e
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	if err := cfg.Validate(); err != nil {
		logger.Error().Err(err).Msg("invalid configuration")
		return err
	}
	for _, w := range cfg.Warnings() {
		logger.Warn().Msg(w)
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Error().Err(err).Msg("failed to connect to database")
		return err
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	rdb, err := cache.NewRedis(ctx, cfg.RedisURL)
	if err != nil {
		logger.Error().Err(err).Msg("failed to connect to redis")
		return err
	}
	var (
		revocations auth.RevocationStore
		extraChecks []db.Check
	)
	if rdb != nil {
		defer rdb.Close()
		revocations = auth.NewRedisRevocationStore(rdb)
		extraChecks = append(extraChecks, db.Check{
			Name: "redis",
			Ping: func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		})
		logger.Info().Msg("connected to redis")
	} else {
		mem := auth.NewMemoryRevocationStore(5 * time.Minute)
		defer mem.Close()
		revocations = mem
	}

	col := metrics.NewCollector()
	col.WatchPool(func() (int32, int32, int32) {
		s := db.GetPoolStats(pool)
		return s.AcquiredConns, s.IdleConns, s.TotalConns
	})

	records, labs, err := newServices(cfg, logger, pool, rdb, col)
	if err != nil {
		logger.Error().Err(err).Msg("failed to load reference ranges")
		return err
	}

	e := newServer(deps{
		cfg:         cfg,
		logger:      logger,
		metrics:     col,
		poolHealth:  db.HealthHandler(pool, extraChecks...),
		records:     records,
		labs:        labs,
		revocations: revocations,
	})

	errCh := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Dur("edit_window", cfg.EditWindow).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		logger.Error().Err(err).Msg("server error")
		return err
	}

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}
