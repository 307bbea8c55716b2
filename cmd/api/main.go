package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"taixiu-dealer/config"
	"taixiu-dealer/internal/adapter/commentary"
	httpHandler "taixiu-dealer/internal/adapter/http/handler"
	"taixiu-dealer/internal/adapter/metrics"
	pgStorage "taixiu-dealer/internal/adapter/storage/postgres"
	redisStorage "taixiu-dealer/internal/adapter/storage/redis"
	"taixiu-dealer/internal/adapter/ws"
	"taixiu-dealer/internal/core/ports"
	"taixiu-dealer/internal/game/dice"
	"taixiu-dealer/internal/jobs"
	"taixiu-dealer/internal/service"
	"taixiu-dealer/pkg/logger"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
)

func main() {
	// .env is optional; real environment variables win.
	envErr := godotenv.Load()

	// Load configuration
	cfg, err := config.Load(os.Getenv("TXD_CONFIG_FILE"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)
	if envErr != nil && !errors.Is(envErr, os.ErrNotExist) {
		log.Warn().Err(envErr).Msg("could not read .env file")
	}
	if cfg.JWT.Secret == "" {
		log.Fatal().Msg("jwt.secret is required (TXD_JWT_SECRET)")
	}

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Str("commentary", cfg.Commentary.Provider).
		Msg("Starting Tai Xiu dealer")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize PostgreSQL pool
	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()
	log.Info().Msg("PostgreSQL connected")

	// Initialize Redis client
	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()
	log.Info().Msg("Redis connected")

	// Metrics. Interfaces stay nil when disabled so services fall back to no-ops.
	var (
		gameMetrics    ports.GameMetrics
		connMetrics    ws.ConnMetrics
		engineGauge    jobs.EngineGauge
		metricsHandler http.Handler
	)
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		m := metrics.New("txd", reg)
		gameMetrics, connMetrics, engineGauge, metricsHandler = m, m, m, m.Handler()
	}

	// Initialize repositories
	accountRepo := pgStorage.NewAccountRepo(pool)
	roundRepo := pgStorage.NewRoundRepo(pool)
	auditRepo := pgStorage.NewAuditRepo(pool)

	// Initialize Redis stores
	sessionStore := redisStorage.NewSessionStore(rdb)
	historyStore := redisStorage.NewHistoryStore(rdb, cfg.Game.HistoryCap)
	transcriptStore := redisStorage.NewTranscriptStore(rdb, cfg.Game.TranscriptCap)
	idempotencyCache := redisStorage.NewIdempotencyCache(rdb)
	rateLimitStore := redisStorage.NewRateLimitStore(rdb)

	// Event hub
	hub := ws.NewHub(connMetrics, logger.Component(log, "ws_hub"))
	go hub.Run(ctx)

	// Initialize core services
	hashSvc := service.NewArgon2HashService()
	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)
	commentaryLog := logger.Component(log, "commentary")
	commentarySvc := service.NewCommentaryService(newCommentator(cfg.Commentary, commentaryLog), cfg.Commentary.Timeout, gameMetrics, commentaryLog)

	// Initialize business services
	authSvc := service.NewAuthService(
		accountRepo,
		sessionStore,
		transcriptStore,
		hashSvc,
		tokenSvc,
		gameMetrics,
		service.AuthSettings{StartingBalance: cfg.Game.StartingBalance, SessionTTL: cfg.Session.TTL},
		log,
	)
	gameSvc := service.NewGameService(service.GameDeps{
		Accounts:    accountRepo,
		Rounds:      roundRepo,
		History:     historyStore,
		Transcripts: transcriptStore,
		Sessions:    sessionStore,
		Roller:      dice.NewLoggedRoller(dice.NewCryptoSource(), log),
		Commentary:  commentarySvc,
		Observer:    hub,
		Metrics:     gameMetrics,
	}, service.GameSettings{
		StartingBalance: cfg.Game.StartingBalance,
		Stakes:          cfg.Game.Stakes,
		DefaultStake:    cfg.Game.DefaultStake,
		SettleDelay:     cfg.Game.SettleDelay,
		EngineIdleTTL:   cfg.Game.EngineIdleTTL,
		HistoryCap:      cfg.Game.HistoryCap,
	}, logger.Component(log, "round_engine"))
	chatSvc := service.NewChatService(transcriptStore, log)
	auditSvc := service.NewAuditService(auditRepo, log)

	// Background jobs
	scheduler := jobs.NewScheduler(gameSvc, engineGauge, logger.Component(log, "jobs"))
	if err := scheduler.Start(cfg.Jobs.ReapSchedule); err != nil {
		log.Fatal().Err(err).Msg("Failed to start scheduler")
	}
	defer scheduler.Stop()

	// Setup Gin router with all routes
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		AuthSvc:          authSvc,
		GameSvc:          gameSvc,
		ChatSvc:          chatSvc,
		TokenSvc:         tokenSvc,
		Stream:           hub,
		IdempotencyCache: idempotencyCache,
		RateLimitStore:   rateLimitStore,
		HealthCheckers:   []ports.HealthChecker{pgStorage.NewHealthCheck(pool), redisStorage.NewHealthCheck(rdb)},
		AuditSvc:         auditSvc,
		MetricsHandler:   metricsHandler,
		MetricsPath:      cfg.Metrics.Path,
		Logger:           log,
	})

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	<-ctx.Done()
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Rounds committed just before the signal still owe a settlement; the
	// deferred pool and client closes must run after it lands.
	gameSvc.Drain(shutdownCtx)

	log.Info().Msg("Server exited")
}

// newCommentator picks the dealer voice. Without an API key the scripted dealer is used.
func newCommentator(cfg config.CommentaryConfig, log zerolog.Logger) ports.Commentator {
	if cfg.Provider == "anthropic" {
		if cfg.APIKey != "" {
			return commentary.NewAnthropicCommentator(commentary.AnthropicConfig{
				APIKey:      cfg.APIKey,
				Model:       cfg.Model,
				MaxTokens:   cfg.MaxTokens,
				Temperature: cfg.Temperature,
				BaseURL:     cfg.BaseURL,
			}, log)
		}
		log.Warn().Msg("commentary.provider is anthropic but no api_key is set, using scripted dealer")
	}
	return commentary.NewScriptedCommentator()
}
