package user

import (
	"errors"
	"time"
)

const (
	RoleAdmin = "admin"
	RoleUser  = "user"

	// SeedAdminUsername is created at first boot and can never be deleted.
	SeedAdminUsername = "admin"
	SeedUserUsername  = "user"
)

var (
	ErrNotFound      = errors.New("user not found")
	ErrUsernameTaken = errors.New("username already exists")
	ErrProtectedUser = errors.New("user cannot be deleted")
)

type User struct {
	ID                 int64     `json:"id"`
	Username           string    `json:"username"`
	PasswordHash       string    `json:"-"` // never expose hash in JSON
	Role               string    `json:"role"`
	MustChangePassword bool      `json:"mustChangePassword"`
	CreatedAt          time.Time `json:"createdAt"`
}

func IsValidRole(role string) bool {
	return role == RoleAdmin || role == RoleUser
}

type CreateUserRequest struct {
	Username string `json:"username" binding:"required,min=3,max=64,username"`
	Password string `json:"password" binding:"required,min=8,max=72"`
	Role     string `json:"role" binding:"required,oneof=user admin"`
}
