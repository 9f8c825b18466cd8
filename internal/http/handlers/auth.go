package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/geocoder89/leadhub/internal/auth"
	"github.com/geocoder89/leadhub/internal/config"
	"github.com/geocoder89/leadhub/internal/domain/user"
	"github.com/geocoder89/leadhub/internal/http/middlewares"
	"github.com/geocoder89/leadhub/internal/observability"
	"github.com/geocoder89/leadhub/internal/security"
	"github.com/geocoder89/leadhub/internal/session"
	"github.com/gin-gonic/gin"
)

type CredentialStore interface {
	GetByUsername(ctx context.Context, username string) (user.User, error)
	UpdatePassword(ctx context.Context, username, passwordHash string, mustChange bool) error
}

type AuthHandler struct {
	users    CredentialStore
	jwt      *auth.Manager
	sessions session.Store
	prom     *observability.Prom
	cfg      config.Config
}

func NewAuthHandler(users CredentialStore, jwtManager *auth.Manager, sessions session.Store, prom *observability.Prom, cfg config.Config) *AuthHandler {
	return &AuthHandler{
		users:    users,
		jwt:      jwtManager,
		sessions: sessions,
		prom:     prom,
		cfg:      cfg,
	}
}

type LoginRequest struct {
	Username string `json:"username" binding:"required,max=64"`
	Password string `json:"password" binding:"required,max=72"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"required,max=72"`
	NewPassword     string `json:"newPassword" binding:"required,min=8,max=72,nefield=CurrentPassword"`
}

type SessionResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	User      Identity  `json:"user"`
}

type Identity struct {
	Username           string `json:"username"`
	Role               string `json:"role"`
	MustChangePassword bool   `json:"mustChangePassword"`
}

const invalidCredentialsMessage = "Username or password is incorrect."

func (h *AuthHandler) Login(ctx *gin.Context) {
	var req LoginRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := requestContext(ctx, 3*time.Second)
	defer cancel()

	found, err := h.users.GetByUsername(cctx, req.Username)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			// spend the same bcrypt time as a real check
			security.BurnPasswordCheck(req.Password)
			h.prom.IncLogin("invalid")
			RespondUnAuthorized(ctx, "invalid_credentials", invalidCredentialsMessage)
			return
		}

		slog.Default().ErrorContext(cctx, "credential lookup failed", "err", err)
		h.prom.IncLogin("error")
		RespondInternal(ctx, "Could not sign in")
		return
	}

	if err := security.CheckPassword(found.PasswordHash, req.Password); err != nil {
		h.prom.IncLogin("invalid")
		RespondUnAuthorized(ctx, "invalid_credentials", invalidCredentialsMessage)
		return
	}

	resp, err := h.startSession(cctx, ctx, found.Username, found.Role, found.MustChangePassword)
	if err != nil {
		slog.Default().ErrorContext(cctx, "session start failed", "err", err, "username", found.Username)
		h.prom.IncLogin("error")
		RespondInternal(ctx, "Could not sign in")
		return
	}

	h.prom.IncLogin("ok")
	ctx.JSON(http.StatusOK, resp)
}

func (h *AuthHandler) Logout(ctx *gin.Context) {
	if sid, ok := middlewares.SessionIDFromContext(ctx); ok {
		cctx, cancel := requestContext(ctx, 2*time.Second)
		defer cancel()

		if err := h.sessions.Delete(cctx, sid); err != nil {
			slog.Default().ErrorContext(cctx, "session delete failed", "err", err)
			RespondInternal(ctx, "Could not sign out")
			return
		}
	}

	h.clearSessionCookie(ctx)
	ctx.Status(http.StatusNoContent)
}

func (h *AuthHandler) Me(ctx *gin.Context) {
	username, _ := middlewares.UsernameFromContext(ctx)
	role, _ := middlewares.RoleFromContext(ctx)

	ctx.JSON(http.StatusOK, Identity{
		Username:           username,
		Role:               role,
		MustChangePassword: ctx.GetBool(middlewares.CtxMustChangePassword),
	})
}

// ChangePassword replaces the caller's password, ends every other session of
// the account and hands back a fresh one.
func (h *AuthHandler) ChangePassword(ctx *gin.Context) {
	var req ChangePasswordRequest

	if !BindJSON(ctx, &req) {
		return
	}

	username, _ := middlewares.UsernameFromContext(ctx)

	cctx, cancel := requestContext(ctx, 5*time.Second)
	defer cancel()

	found, err := h.users.GetByUsername(cctx, username)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			RespondUnAuthorized(ctx, "unauthorized", "Account no longer exists")
			return
		}
		slog.Default().ErrorContext(cctx, "credential lookup failed", "err", err)
		RespondInternal(ctx, "Could not change password")
		return
	}

	if err := security.CheckPassword(found.PasswordHash, req.CurrentPassword); err != nil {
		RespondUnAuthorized(ctx, "invalid_credentials", "Current password is incorrect.")
		return
	}

	hash, err := security.HashPassword(req.NewPassword)
	if err != nil {
		RespondInternal(ctx, "Could not change password")
		return
	}

	if err := h.users.UpdatePassword(cctx, username, hash, false); err != nil {
		slog.Default().ErrorContext(cctx, "password update failed", "err", err)
		RespondInternal(ctx, "Could not change password")
		return
	}

	if err := h.sessions.DeleteUser(cctx, username); err != nil {
		slog.Default().ErrorContext(cctx, "session revoke failed", "err", err, "username", username)
	}

	resp, err := h.startSession(cctx, ctx, found.Username, found.Role, false)
	if err != nil {
		RespondInternal(ctx, "Password changed, sign in again")
		return
	}

	ctx.JSON(http.StatusOK, resp)
}

func (h *AuthHandler) startSession(cctx context.Context, ctx *gin.Context, username, role string, mustChange bool) (SessionResponse, error) {
	raw, sid, expiresAt, err := h.jwt.GenerateSessionToken(username, role)
	if err != nil {
		return SessionResponse{}, err
	}

	err = h.sessions.Save(cctx, session.Session{
		ID:                 sid,
		Username:           username,
		Role:               role,
		MustChangePassword: mustChange,
		ExpiresAt:          expiresAt,
	})
	if err != nil {
		return SessionResponse{}, err
	}

	h.setSessionCookie(ctx, raw, expiresAt)

	return SessionResponse{
		Token:     raw,
		ExpiresAt: expiresAt,
		User:      Identity{Username: username, Role: role, MustChangePassword: mustChange},
	}, nil
}

func (h *AuthHandler) setSessionCookie(ctx *gin.Context, raw string, expiresAt time.Time) {
	secure := h.cfg.Env == "prod"

	maxAge := int(time.Until(expiresAt).Seconds())

	ctx.SetSameSite(http.SameSiteStrictMode)

	ctx.SetCookie(
		middlewares.SessionCookieName,
		raw,
		maxAge,
		"/",
		"",
		secure,
		true, // HttpOnly.
	)
}

func (h *AuthHandler) clearSessionCookie(ctx *gin.Context) {
	secure := h.cfg.Env == "prod"
	ctx.SetSameSite(http.SameSiteStrictMode)
	ctx.SetCookie(middlewares.SessionCookieName, "", -1, "/", "", secure, true)
}

func requestContext(ctx *gin.Context, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx.Request.Context(), d)
}
