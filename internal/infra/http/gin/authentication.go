package ginserver

import (
	"log/slog"
	"net/http"
	"strings"

	gin "github.com/gin-gonic/gin"

	"stationbeds/internal/app/caller"
)

const callerContextKey = "caller"

// Authenticator resolves a bearer token to the caller it belongs to.
type Authenticator interface {
	Authenticate(token string) (caller.Caller, error)
}

// AuthMiddleware resolves the bearer token, if any, and stores the caller in
// both the gin context and the request context. Anonymous requests pass
// through; handlers and the command bus decide what they may do.
type AuthMiddleware struct {
	Keys   Authenticator
	Logger *slog.Logger
}

func (m AuthMiddleware) Handle(c *gin.Context) {
	token := extractBearerToken(c.GetHeader("Authorization"))
	if token == "" || m.Keys == nil {
		c.Next()
		return
	}
	who, err := m.Keys.Authenticate(token)
	if err != nil {
		if m.Logger != nil {
			m.Logger.Debug("token validation failed", "error", err)
		}
		c.Next()
		return
	}
	c.Set(callerContextKey, who.Name)
	c.Request = c.Request.WithContext(caller.WithCaller(c.Request.Context(), who))
	c.Next()
}

func requireCaller(c *gin.Context) (caller.Caller, bool) {
	who := caller.FromContext(c.Request.Context())
	if !who.Known() {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "auth required"})
		return caller.Caller{}, false
	}
	return who, true
}

func extractBearerToken(header string) string {
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}
