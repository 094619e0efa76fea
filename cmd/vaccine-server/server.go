package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/spacedreammer/vaccineSchedule/internal/config"
	"github.com/spacedreammer/vaccineSchedule/internal/domain/catalog"
	"github.com/spacedreammer/vaccineSchedule/internal/domain/dashboard"
	"github.com/spacedreammer/vaccineSchedule/internal/domain/feedback"
	"github.com/spacedreammer/vaccineSchedule/internal/domain/identity"
	"github.com/spacedreammer/vaccineSchedule/internal/domain/scheduling"
	"github.com/spacedreammer/vaccineSchedule/internal/platform/apperr"
	"github.com/spacedreammer/vaccineSchedule/internal/platform/auth"
	"github.com/spacedreammer/vaccineSchedule/internal/platform/cache"
	"github.com/spacedreammer/vaccineSchedule/internal/platform/db"
	"github.com/spacedreammer/vaccineSchedule/internal/platform/middleware"
	"github.com/spacedreammer/vaccineSchedule/internal/platform/telemetry"
	"github.com/spacedreammer/vaccineSchedule/internal/platform/validate"
)

const version = "0.1.0"

// Pool is what the server needs from the database: *pgxpool.Pool in
// production, a pgxmock pool in tests.
type Pool interface {
	db.Beginner
	db.Pinger
}

type server struct {
	echo   *echo.Echo
	warmer *dashboard.Warmer
}

func jwtConfig(cfg *config.Config) auth.JWTConfig {
	return auth.JWTConfig{
		Issuer:     cfg.AuthIssuer,
		Audience:   cfg.AuthAudience,
		SigningKey: []byte(cfg.JWTSigningKey),
	}
}

func newSchedulingService(pool Pool, users scheduling.UserDirectory, loc *time.Location, logger zerolog.Logger) *scheduling.Service {
	return scheduling.NewService(
		scheduling.NewScheduleRepoPG(pool),
		scheduling.NewAppointmentRepoPG(pool),
		users,
		db.NewTxManager(pool),
		scheduling.WithLocation(loc),
		scheduling.WithLogger(logger.With().Str("component", "scheduling").Logger()),
	)
}

// buildServer wires middleware, services and routes. It does not start
// listening or the dashboard warmer.
func buildServer(cfg *config.Config, pool Pool, c cache.Cache, logger zerolog.Logger) (*server, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = apperr.HTTPErrorHandler(logger)
	e.Validator = validate.New()

	// Global middleware
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.Recovery(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID", "X-Dev-User", "X-Dev-Role"},
	}))
	e.Use(middleware.SecurityHeaders(cfg.IsProduction()))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout, "/metrics", "/health"))
	e.Use(telemetry.Middleware())

	// Health and metrics are served without credentials.
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	e.GET("/health/db", db.HealthHandler(pool))
	e.GET("/metrics", echo.WrapHandler(telemetry.Handler()))

	jwtCfg := jwtConfig(cfg)
	var authMW echo.MiddlewareFunc
	if cfg.IsDev() {
		logger.Warn().Msg("development auth enabled: X-Dev-User and X-Dev-Role headers are trusted")
		authMW = auth.DevAuthMiddleware(jwtCfg)
	} else {
		authMW = auth.JWTMiddleware(jwtCfg)
	}

	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}

	apiV1 := e.Group("/api/v1", authMW, middleware.RateLimit(rateLimitCfg))

	// Identity
	users := identity.NewUserRepoPG(pool)
	identitySvc := identity.NewService(users)
	identity.NewHandler(identitySvc).RegisterRoutes(apiV1)

	// Vaccine catalog
	catalog.NewHandler(catalog.NewService(catalog.NewRepoPG(pool))).RegisterRoutes(apiV1)

	// Schedules and appointments
	schedulingSvc := newSchedulingService(pool, identitySvc, loc, logger)
	scheduling.NewHandler(schedulingSvc).RegisterRoutes(apiV1)

	// Feedback
	feedbackSvc := feedback.NewService(
		feedback.NewRepoPG(pool),
		db.NewTxManager(pool),
		feedback.WithLogger(logger.With().Str("component", "feedback").Logger()),
	)
	feedback.NewHandler(feedbackSvc).RegisterRoutes(apiV1)

	// Dashboards
	dashboardSvc := dashboard.NewService(
		dashboard.NewRepoPG(pool),
		dashboard.WithCache(c, cfg.DashboardCacheTTL),
		dashboard.WithLocation(loc),
		dashboard.WithLogger(logger.With().Str("component", "dashboard").Logger()),
	)
	dashboard.NewHandler(dashboardSvc).RegisterRoutes(apiV1)

	warmer, err := dashboard.NewWarmer(dashboardSvc, cfg.DashboardRefreshCron, logger)
	if err != nil {
		return nil, err
	}

	return &server{echo: e, warmer: warmer}, nil
}

func runServer() error {
	// Config
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Env)
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx := context.Background()

	// Tracing
	shutdownTracing, err := telemetry.SetupTracing(ctx, cfg.OTelServiceName, cfg.OTelEndpoint)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to set up tracing")
	}

	// Database
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Cache
	var c cache.Cache = cache.Noop{}
	if cfg.RedisURL != "" {
		rc, err := cache.NewRedis(ctx, cfg.RedisURL, "vaccine")
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer rc.Close()
		c = rc
		logger.Info().Msg("connected to redis")
	} else {
		logger.Info().Msg("REDIS_URL not set, dashboard caching disabled")
	}

	srv, err := buildServer(cfg, pool, c, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build server")
	}
	srv.warmer.Start()

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("starting server")
		if err := srv.echo.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	srv.warmer.Stop(shutdownCtx)
	if err := srv.echo.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("tracing shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
