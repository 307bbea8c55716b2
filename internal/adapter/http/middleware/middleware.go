package middleware

import (
	"net/http"
	"strings"
	"time"

	"taixiu-dealer/internal/core/ports"
	"taixiu-dealer/pkg/apperror"
	"taixiu-dealer/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	// HeaderRequestID carries a caller-supplied request id.
	HeaderRequestID = "X-Request-ID"

	// TokenQueryParam carries the bearer token on WebSocket upgrades, where
	// browsers cannot set headers.
	TokenQueryParam = "token"

	// Context keys
	CtxRequestID = response.RequestIDKey
	CtxUsername  = "username"
	CtxSessionID = "session_id"
	CtxSession   = "session"
)

// SessionAuth validates the bearer token and requires its session to still be
// live. A newer login for the same user ends the older session, so its token
// stops working here even though the JWT itself has not expired.
func SessionAuth(tokenSvc ports.TokenService, authSvc ports.AuthService, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := bearerToken(c)
		if tokenStr == "" {
			response.Error(c, apperror.ErrInvalidToken())
			c.Abort()
			return
		}

		claims, err := tokenSvc.Validate(tokenStr)
		if err != nil {
			response.Error(c, apperror.ErrInvalidToken())
			c.Abort()
			return
		}

		session, err := authSvc.Current(c.Request.Context(), claims.SessionID)
		if err != nil {
			if !apperror.HasCode(err, apperror.ErrInvalidToken().Code) {
				log.Error().Err(err).Str("session_id", claims.SessionID).Msg("failed to load session")
			}
			response.Error(c, err)
			c.Abort()
			return
		}
		if session.Username != claims.Username {
			response.Error(c, apperror.ErrInvalidToken())
			c.Abort()
			return
		}

		c.Set(CtxUsername, session.Username)
		c.Set(CtxSessionID, session.ID)
		c.Set(CtxSession, session)
		c.Next()
	}
}

// bearerToken reads the Authorization header, falling back to the token query
// parameter.
func bearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") && len(authHeader) > len("Bearer ") {
		return authHeader[len("Bearer "):]
	}
	return c.Query(TokenQueryParam)
}

// RequestID tags every request with an id echoed in the response envelope and header.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if id == "" || len(id) > 64 {
			id = uuid.New().String()
		}
		c.Set(CtxRequestID, id)
		c.Header(HeaderRequestID, id)
		c.Next()
	}
}

// RequestLogger creates a middleware that logs every HTTP request.
func RequestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		status := c.Writer.Status()

		event := log.Info()
		if status >= http.StatusInternalServerError {
			event = log.Error()
		} else if status >= http.StatusBadRequest {
			event = log.Warn()
		}

		event.
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("latency", latency).
			Str("client_ip", c.ClientIP()).
			Str("request_id", c.GetString(CtxRequestID)).
			Str("username", c.GetString(CtxUsername)).
			Msg("http request")
	}
}

// Recovery creates a panic recovery middleware.
func Recovery(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error().Interface("panic", r).Str("path", c.Request.URL.Path).Msg("panic recovered")
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error_code": "SYS_001",
					"message":    "Internal server error",
				})
			}
		}()
		c.Next()
	}
}
