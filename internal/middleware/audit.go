package middleware

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-announcement-api/internal/models"
)

// ContextAuditResourceKey holds a resource id set by a handler for the audit entry.
const ContextAuditResourceKey = "auditResourceID"

// AuditWriter persists audit records.
type AuditWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// SetAuditResource records the id of the resource a handler created or acted on.
func SetAuditResource(c *gin.Context, id string) {
	if id != "" {
		c.Set(ContextAuditResourceKey, id)
	}
}

// Audit records an audit log entry after every successful request on the route.
// The resource id comes from SetAuditResource, falling back to the :id path parameter.
func Audit(writer AuditWriter, logger *zap.Logger, action, resource string) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		start := time.Now().UTC()
		c.Next()

		if c.Writer.Status() >= 400 || writer == nil {
			return
		}

		entry := &models.AuditLog{
			Action:    action,
			Resource:  resource,
			IPAddress: c.ClientIP(),
			UserAgent: c.GetHeader("User-Agent"),
		}
		if claims := Claims(c); claims != nil {
			userID := claims.UserID
			entry.UserID = &userID
		}
		if id := auditResourceID(c); id != "" {
			entry.ResourceID = &id
		}
		entry.NewValues, _ = json.Marshal(map[string]interface{}{
			"path":       c.FullPath(),
			"method":     c.Request.Method,
			"status":     c.Writer.Status(),
			"latency_ms": time.Since(start).Milliseconds(),
		})

		if err := writer.CreateAuditLog(c.Request.Context(), entry); err != nil {
			logger.Warn("failed to write audit log", zap.String("action", action), zap.Error(err))
		}
	}
}

func auditResourceID(c *gin.Context) string {
	if id := c.GetString(ContextAuditResourceKey); id != "" {
		return id
	}
	return c.Param("id")
}
