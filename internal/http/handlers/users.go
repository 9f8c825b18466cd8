package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/geocoder89/leadhub/internal/domain/user"
	"github.com/geocoder89/leadhub/internal/security"
	"github.com/gin-gonic/gin"
)

type UsersStore interface {
	Create(ctx context.Context, u user.User) (user.User, error)
	List(ctx context.Context) ([]user.User, error)
	Delete(ctx context.Context, username string) error
}

type SessionRevoker interface {
	DeleteUser(ctx context.Context, username string) error
}

type UsersHandler struct {
	users    UsersStore
	sessions SessionRevoker
}

func NewUsersHandler(users UsersStore, sessions SessionRevoker) *UsersHandler {
	return &UsersHandler{users: users, sessions: sessions}
}

func (h *UsersHandler) ListUsers(ctx *gin.Context) {
	cctx, cancel := requestContext(ctx, 3*time.Second)
	defer cancel()

	users, err := h.users.List(cctx)
	if err != nil {
		slog.Default().ErrorContext(cctx, "list users failed", "err", err)
		RespondInternal(ctx, "Could not list users")
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, gin.H{
		"items": users,
		"count": len(users),
	})
}

func (h *UsersHandler) CreateUser(ctx *gin.Context) {
	var req user.CreateUserRequest

	if !BindJSON(ctx, &req) {
		return
	}

	hash, err := security.HashPassword(req.Password)
	if err != nil {
		RespondInternal(ctx, "Could not create user")
		return
	}

	cctx, cancel := requestContext(ctx, 3*time.Second)
	defer cancel()

	created, err := h.users.Create(cctx, user.User{
		Username:     req.Username,
		PasswordHash: hash,
		Role:         req.Role,
	})
	if err != nil {
		if errors.Is(err, user.ErrUsernameTaken) {
			RespondConflict(ctx, "username_taken", "Username already exists.")
			return
		}
		slog.Default().ErrorContext(cctx, "create user failed", "err", err)
		RespondInternal(ctx, "Could not create user")
		return
	}

	ctx.JSON(http.StatusCreated, created)
}

func (h *UsersHandler) DeleteUser(ctx *gin.Context) {
	username := ctx.Param("username")

	if username == user.SeedAdminUsername {
		RespondForbidden(ctx, "protected_user", "The admin account cannot be deleted.")
		return
	}

	cctx, cancel := requestContext(ctx, 3*time.Second)
	defer cancel()

	err := h.users.Delete(cctx, username)
	switch {
	case errors.Is(err, user.ErrProtectedUser):
		RespondForbidden(ctx, "protected_user", "The admin account cannot be deleted.")
		return
	case errors.Is(err, user.ErrNotFound):
		RespondNotFound(ctx, "User not found")
		return
	case err != nil:
		slog.Default().ErrorContext(cctx, "delete user failed", "err", err)
		RespondInternal(ctx, "Could not delete user")
		return
	}

	if err := h.sessions.DeleteUser(cctx, username); err != nil {
		slog.Default().ErrorContext(cctx, "session revoke failed", "err", err, "username", username)
	}

	ctx.Status(http.StatusNoContent)
}
