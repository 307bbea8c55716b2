package handler

import (
	"net/http"

	"taixiu-dealer/internal/adapter/http/middleware"
	redisStore "taixiu-dealer/internal/adapter/storage/redis"
	"taixiu-dealer/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	AuthSvc          ports.AuthService
	GameSvc          ports.GameService
	ChatSvc          ports.ChatService
	TokenSvc         ports.TokenService
	Stream           EventStream                // nil = /ws disabled
	IdempotencyCache ports.IdempotencyCache     // nil = Idempotency-Key ignored
	RateLimitStore   *redisStore.RateLimitStore // nil = rate limiting disabled
	HealthCheckers   []ports.HealthChecker
	AuditSvc         ports.AuditService // nil = audit logging disabled
	MetricsHandler   http.Handler       // nil = /metrics disabled
	MetricsPath      string
	Logger           zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(64 << 10))

	// Audit logging (after response)
	if deps.AuditSvc != nil {
		r.Use(middleware.AuditLog(deps.AuditSvc))
	}

	// Pings Postgres and Redis.
	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	if deps.MetricsHandler != nil {
		path := deps.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.GET(path, gin.WrapH(deps.MetricsHandler))
	}

	// Rate limit rules
	rules := middleware.DefaultRateLimitRules()

	// Helper: return rate limiter middleware if store is available, else noop.
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimitStore == nil {
			return func(c *gin.Context) { c.Next() }
		}
		rule, ok := rules[group]
		if !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}

	// API v1 routes
	v1 := r.Group("/api/v1")

	// --- Public routes (no session) ---
	authHandler := NewAuthHandler(deps.AuthSvc)
	auth := v1.Group("/auth")
	{
		auth.POST("/register", rl("auth_register"), authHandler.Register)
		auth.POST("/login", rl("auth_login"), authHandler.Login)
	}

	// --- Session routes ---
	sessionAuth := middleware.SessionAuth(deps.TokenSvc, deps.AuthSvc, deps.Logger)
	player := v1.Group("", sessionAuth)

	player.POST("/auth/logout", authHandler.Logout)
	player.GET("/me", rl("read"), authHandler.Me)

	tableHandler := NewTableHandler(deps.GameSvc, deps.IdempotencyCache, deps.Logger)
	table := player.Group("/table")
	{
		table.GET("", rl("read"), tableHandler.Table)
		table.PUT("/side", rl("table"), tableHandler.SelectSide)
		table.PUT("/stake", rl("table"), tableHandler.SelectStake)
		table.POST("/roll", rl("roll"), tableHandler.Roll)
	}
	player.POST("/wallet/topup", rl("wallet_topup"), tableHandler.TopUp)

	historyHandler := NewHistoryHandler(deps.GameSvc)
	player.GET("/history", rl("read"), historyHandler.History)
	player.GET("/stats", rl("read"), historyHandler.Stats)

	chatHandler := NewChatHandler(deps.ChatSvc)
	chat := player.Group("/chat")
	{
		chat.GET("", rl("read"), chatHandler.Transcript)
		chat.POST("", rl("chat"), chatHandler.Say)
	}

	if deps.Stream != nil {
		streamHandler := NewStreamHandler(deps.GameSvc, deps.Stream)
		player.GET("/ws", streamHandler.Stream)
	}

	return r
}
