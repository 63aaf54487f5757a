package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/auroralabs/aurora-backend/internal/apperror"
	"github.com/auroralabs/aurora-backend/internal/session"
)

const sessionCtxKey = "aurora_session"

// sessionResolver resolves an access token to the caller's session.
type sessionResolver interface {
	Authenticate(ctx context.Context, accessToken string) (*session.Session, error)
}

// Middleware carries the authentication guard shared by protected routes.
type Middleware struct {
	sessions sessionResolver
}

// NewMiddleware creates the route middleware.
func NewMiddleware(sessions sessionResolver) *Middleware {
	return &Middleware{sessions: sessions}
}

// RequireAuth extracts the bearer token, resolves the session, and aborts
// with 401 when the token is missing or invalid.
func (m *Middleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		sess, err := m.sessions.Authenticate(c.Request.Context(), token)
		if err != nil {
			writeError(c, err)
			c.Abort()
			return
		}
		c.Set(sessionCtxKey, sess)
		c.Next()
	}
}

// SessionFromCtx returns the session attached by RequireAuth, or nil.
func SessionFromCtx(c *gin.Context) *session.Session {
	v, ok := c.Get(sessionCtxKey)
	if !ok {
		return nil
	}
	sess, _ := v.(*session.Session)
	return sess
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// writeError maps a domain error onto its HTTP status and JSON body.
func writeError(c *gin.Context, err error) {
	appErr := apperror.From(err)
	c.JSON(appErr.HTTPStatus(), gin.H{"error": appErr.Message})
}
