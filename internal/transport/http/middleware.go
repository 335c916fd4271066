package http

import (
	"net/http"
	"strings"
	"time"

	"drill-review-service/internal/domain"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Actor headers. Authentication happens upstream; these carry its result.
const (
	HeaderUserID   = "X-User-ID"
	HeaderUserRole = "X-User-Role"
)

const actorKey = "drill.actor"

// RequestLogger logs every request with zap; successful ones at debug level.
func RequestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if actor, ok := actorFrom(c); ok {
			fields = append(fields, zap.String("actor", actor.ID))
		}

		switch {
		case status >= 500:
			log.Error("Server error", fields...)
		case status >= 400:
			log.Warn("Client error", fields...)
		default:
			log.Debug("Request processed", fields...)
		}
	}
}

// Identify reads the actor headers when present. Malformed roles are rejected.
func Identify() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(HeaderUserID))
		if id == "" {
			c.Next()
			return
		}
		role, ok := parseRole(c.GetHeader(HeaderUserRole))
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse{Error: "unknown role in " + HeaderUserRole})
			return
		}
		c.Set(actorKey, domain.Reviewer{ID: id, Role: role})
		c.Next()
	}
}

// RequireRole aborts with 401 when no actor is identified and 403 when the
// actor's role is not among roles.
func RequireRole(roles ...domain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := actorFrom(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse{Error: "missing " + HeaderUserID})
			return
		}
		for _, r := range roles {
			if actor.Role == r {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, errorResponse{Error: "role " + string(actor.Role) + " may not perform this action"})
	}
}

func actorFrom(c *gin.Context) (domain.Reviewer, bool) {
	v, ok := c.Get(actorKey)
	if !ok {
		return domain.Reviewer{}, false
	}
	actor, ok := v.(domain.Reviewer)
	return actor, ok
}

func parseRole(raw string) (domain.Role, bool) {
	role := domain.Role(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(raw)), "-", "_"))
	switch role {
	case domain.RoleSuperAdmin, domain.RoleXcon, domain.RoleLeader:
		return role, true
	case "":
		return domain.RoleLeader, true
	}
	return "", false
}
