package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/zoomi/household-auth/internal/config"
	"github.com/zoomi/household-auth/internal/database"
	"github.com/zoomi/household-auth/internal/handler"
	"github.com/zoomi/household-auth/internal/jobs"
	"github.com/zoomi/household-auth/internal/middleware"
	"github.com/zoomi/household-auth/internal/redis"
	"github.com/zoomi/household-auth/internal/repository"
	"github.com/zoomi/household-auth/internal/service"
	"github.com/zoomi/household-auth/internal/sse"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	setLogLevel(cfg.LogLevel)

	isProduction := cfg.IsProduction()
	if err := cfg.Validate(isProduction); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), config.DBPingTimeout)
	if err := db.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to ping database")
	}
	if err := db.Migrate(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to apply migrations")
	}
	cancel()
	log.Info().Msg("database connected")

	redisClient, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()
	log.Info().Msg("redis connected")

	accountRepo := repository.NewAccountRepository(db)
	childRepo := repository.NewChildRepository(db)
	linkingCodeRepo := repository.NewLinkingCodeRepository(db)
	sessionRepo := repository.NewSessionRepository(redisClient.Client)

	broker := sse.NewBroker(redisClient.Client)
	defer broker.Close()

	rateLimiter := service.NewRateLimiter(redisClient.Client)
	authService := service.NewAuthService(accountRepo, sessionRepo, broker, cfg.SessionTTL())
	familyService := service.NewFamilyService(accountRepo, childRepo)
	linkingService := service.NewLinkingService(familyService, linkingCodeRepo, childRepo, cfg.LinkingCodeTTL())

	authMiddleware := middleware.NewAuthMiddleware(authService)
	signInLimit := middleware.NewIPRateLimitMiddleware(
		rateLimiter, cfg.VerifyRateLimitPerMin, config.VerifyRateLimitWindow, service.ScopeSignIn,
	)
	verifyLimit := middleware.NewIPRateLimitMiddleware(
		rateLimiter, cfg.VerifyRateLimitPerMin, config.VerifyRateLimitWindow, service.ScopeVerifyCode,
	)
	lookupLimit := middleware.NewIPRateLimitMiddleware(
		rateLimiter, cfg.LookupRateLimitPerMin, config.VerifyRateLimitWindow, service.ScopeLinkedChild,
	)
	bodyLimitMiddleware := middleware.NewBodyLimitMiddleware(0)
	securityHeadersMiddleware := middleware.NewSecurityHeadersMiddleware(isProduction)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(bodyLimitMiddleware.Handler)
	r.Use(securityHeadersMiddleware.Handler)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), config.DBPingTimeout)
		defer cancel()

		status := http.StatusOK
		state := "ok"
		if db.Ping(ctx) != nil || redisClient.Ping(ctx).Err() != nil {
			status = http.StatusServiceUnavailable
			state = "degraded"
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(map[string]any{
			"status":    state,
			"timestamp": time.Now().UnixMilli(),
		})
	})

	// The event stream is long-lived and must not inherit the request timeout.
	r.Group(func(r chi.Router) {
		r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))
		handler.Routes{
			Auth:        handler.NewAuthHandler(authService),
			Gateway:     handler.NewGatewayHandler(familyService, linkingService),
			Events:      handler.NewEventsHandler(broker),
			RequireAuth: authMiddleware.Handler,
			SignInLimit: signInLimit.Handler,
			VerifyLimit: verifyLimit.Handler,
			LookupLimit: lookupLimit.Handler,
		}.Mount(r)
	})

	cleanupJob := jobs.NewCleanupJob(linkingCodeRepo.DeleteExpired, sessionRepo.PruneStale, config.CleanupJobInterval)
	cleanupJob.Start()
	defer cleanupJob.Stop()

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: 0,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	runCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(runCtx)

	g.Go(func() error {
		log.Info().Str("addr", cfg.Addr()).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down server")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
		defer shutdownCancel()

		// open event streams would otherwise hold Shutdown until the timeout
		broker.Close()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("server stopped with error")
		return
	}

	log.Info().Msg("server stopped")
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
