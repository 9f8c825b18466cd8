package middlewares

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/geocoder89/leadhub/internal/actorctx"
	"github.com/geocoder89/leadhub/internal/auth"
	"github.com/geocoder89/leadhub/internal/session"
	"github.com/gin-gonic/gin"
)

// SessionCookieName carries the session token for browser clients.
const SessionCookieName = "leadhub_session"

// Keep these small interfaces so tests can fake them easily.
type TokenVerifier interface {
	VerifySessionToken(token string) (*auth.Claims, error)
}

type SessionReader interface {
	Get(ctx context.Context, id string) (session.Session, error)
}

type AuthMiddleware struct {
	jwt      TokenVerifier
	sessions SessionReader
}

func NewAuthMiddleware(jwt TokenVerifier, sessions SessionReader) *AuthMiddleware {
	return &AuthMiddleware{jwt: jwt, sessions: sessions}
}

func abortUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error": gin.H{
			"code":      "unauthorized",
			"message":   message,
			"requestId": c.GetString(CtxRequestID),
		},
	})
}

// RequireAuth accepts a Bearer token or the session cookie. The token must
// verify and its session must still exist in the store.
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := tokenFromRequest(c)
		if raw == "" {
			abortUnauthorized(c, "Missing session token")
			return
		}

		claims, err := m.jwt.VerifySessionToken(raw)
		if err != nil {
			abortUnauthorized(c, "Invalid or expired session")
			return
		}

		s, err := m.sessions.Get(c.Request.Context(), claims.SessionID)
		if err != nil {
			if !errors.Is(err, session.ErrNotFound) {
				slog.Default().ErrorContext(c.Request.Context(), "session lookup failed", "err", err)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error": gin.H{
						"code":    "internal_error",
						"message": "Could not verify session",
					},
				})
				return
			}
			abortUnauthorized(c, "Session has ended")
			return
		}

		// the session record is authoritative for role and password state
		c.Set(CtxUsername, s.Username)
		c.Set(CtxRole, s.Role)
		c.Set(CtxSessionID, s.ID)
		c.Set(CtxMustChangePassword, s.MustChangePassword)
		c.Request = c.Request.WithContext(actorctx.WithUsername(c.Request.Context(), s.Username))

		c.Next()
	}
}

// RequirePasswordChanged blocks everything except the given routes while the
// account still carries its seeded password.
func (m *AuthMiddleware) RequirePasswordChanged(allowedRoutes ...string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(allowedRoutes))
	for _, r := range allowedRoutes {
		allowed[r] = struct{}{}
	}

	return func(c *gin.Context) {
		if !c.GetBool(CtxMustChangePassword) {
			c.Next()
			return
		}

		if _, ok := allowed[c.FullPath()]; ok {
			c.Next()
			return
		}

		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"error": gin.H{
				"code":      "password_change_required",
				"message":   "Change your password before continuing.",
				"requestId": c.GetString(CtxRequestID),
			},
		})
	}
}

func tokenFromRequest(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}

	if raw, err := c.Cookie(SessionCookieName); err == nil {
		return raw
	}

	return ""
}

// Helpers so handlers don't need to know the context keys.

func UsernameFromContext(c *gin.Context) (string, bool) {
	username := c.GetString(CtxUsername)
	return username, username != ""
}

func RoleFromContext(c *gin.Context) (string, bool) {
	role := c.GetString(CtxRole)
	return role, role != ""
}

func SessionIDFromContext(c *gin.Context) (string, bool) {
	id := c.GetString(CtxSessionID)
	return id, id != ""
}
