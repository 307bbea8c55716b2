package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"taixiu-dealer/internal/core/domain"
	"taixiu-dealer/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// CtxAuditUsername lets unauthenticated handlers (register, login) name the
// player they just signed in.
const CtxAuditUsername = "audit_username"

// AuditLog creates an audit middleware that logs successful write operations.
// It maps HTTP methods and paths to audit actions.
func AuditLog(auditSvc ports.AuditService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		// Only audit successful write operations (status 2xx)
		if c.Writer.Status() < 200 || c.Writer.Status() >= 300 {
			return
		}
		if c.Request.Method == http.MethodGet || c.Request.Method == http.MethodHead || c.Request.Method == http.MethodOptions {
			return
		}

		action, resourceType := mapPathToAction(c.FullPath(), c.Request.Method)
		if action == "" {
			return
		}

		var username *string
		if u := c.GetString(CtxUsername); u != "" {
			username = &u
		} else if u := c.GetString(CtxAuditUsername); u != "" {
			username = &u
		}

		details, _ := json.Marshal(map[string]interface{}{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"request_id": c.GetString(CtxRequestID),
		})

		auditSvc.Log(c.Request.Context(), &domain.AuditLog{
			ID:           uuid.New(),
			Username:     username,
			Action:       action,
			ResourceType: resourceType,
			ResourceID:   c.GetString(CtxSessionID),
			IPAddress:    c.ClientIP(),
			Details:      string(details),
			CreatedAt:    time.Now(),
		})
	}
}

func mapPathToAction(path, method string) (domain.AuditAction, string) {
	if method != http.MethodPost {
		return "", ""
	}
	switch path {
	case "/api/v1/auth/register":
		return domain.AuditActionRegister, "account"
	case "/api/v1/auth/login":
		return domain.AuditActionLogin, "session"
	case "/api/v1/auth/logout":
		return domain.AuditActionLogout, "session"
	case "/api/v1/table/roll":
		return domain.AuditActionRoll, "round"
	case "/api/v1/wallet/topup":
		return domain.AuditActionTopUp, "account"
	}
	return "", ""
}
