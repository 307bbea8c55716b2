package handler

import (
	"net/http"

	"taixiu-dealer/internal/adapter/http/dto"
	"taixiu-dealer/internal/adapter/http/middleware"
	"taixiu-dealer/internal/core/domain"
	"taixiu-dealer/internal/core/ports"
	"taixiu-dealer/pkg/apperror"
	"taixiu-dealer/pkg/response"

	"github.com/gin-gonic/gin"
)

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	authSvc ports.AuthService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authSvc ports.AuthService) *AuthHandler {
	return &AuthHandler{authSvc: authSvc}
}

// Register handles POST /api/v1/auth/register.
func (h *AuthHandler) Register(c *gin.Context) {
	var req dto.RegisterRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.authSvc.Register(c.Request.Context(), ports.RegisterRequest{
		Username:    req.Username,
		Password:    req.Password,
		DisplayName: req.DisplayName,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Set(middleware.CtxAuditUsername, result.Session.Username)
	response.Created(c, dto.NewSessionResponse(result.Token, result.Expiry, result.Session))
}

// Login handles POST /api/v1/auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.authSvc.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Set(middleware.CtxAuditUsername, result.Session.Username)
	response.OK(c, dto.NewSessionResponse(result.Token, result.Expiry, result.Session))
}

// Logout handles POST /api/v1/auth/logout.
func (h *AuthHandler) Logout(c *gin.Context) {
	sessionID := c.GetString(middleware.CtxSessionID)
	if sessionID == "" {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	if err := h.authSvc.Logout(c.Request.Context(), sessionID); err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, gin.H{"logged_out": true})
}

// Me handles GET /api/v1/me.
func (h *AuthHandler) Me(c *gin.Context) {
	v, ok := c.Get(middleware.CtxSession)
	session, _ := v.(*domain.Session)
	if !ok || session == nil {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	response.OK(c, dto.NewMeResponse(session))
}

// HealthCheck handles GET /health by pinging every backing store.
func HealthCheck(checkers ...ports.HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		type depStatus struct {
			Status string `json:"status"`
			Error  string `json:"error,omitempty"`
		}

		deps := make(map[string]depStatus)
		allHealthy := true

		for _, checker := range checkers {
			if err := checker.Ping(c.Request.Context()); err != nil {
				deps[checker.Name()] = depStatus{Status: "unhealthy", Error: err.Error()}
				allHealthy = false
			} else {
				deps[checker.Name()] = depStatus{Status: "healthy"}
			}
		}

		status := "healthy"
		httpCode := http.StatusOK
		if !allHealthy {
			status = "degraded"
			httpCode = http.StatusServiceUnavailable
		}

		c.JSON(httpCode, gin.H{
			"status":       status,
			"dependencies": deps,
		})
	}
}

// playerName returns the username SessionAuth stored on the context.
func playerName(c *gin.Context) (string, bool) {
	username := c.GetString(middleware.CtxUsername)
	return username, username != ""
}
