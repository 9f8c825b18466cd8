package db

import (
	"context"
	"errors"
	"log/slog"

	"github.com/geocoder89/leadhub/internal/config"
	"github.com/geocoder89/leadhub/internal/domain/user"
	"github.com/geocoder89/leadhub/internal/security"
)

type UserSeeder interface {
	GetByUsername(ctx context.Context, username string) (user.User, error)
	Create(ctx context.Context, u user.User) (user.User, error)
}

// EnsureSeedUsers creates the protected admin account, and the optional
// non-privileged account, when missing. Seeded accounts must change their
// password at first login.
func EnsureSeedUsers(ctx context.Context, users UserSeeder, cfg config.Config, log *slog.Logger) error {
	password := cfg.AdminPassword
	generated := false

	if password == "" {
		p, err := security.RandomPassword(12)
		if err != nil {
			return err
		}
		password = p
		generated = true
	}

	created, err := ensureUser(ctx, users, user.SeedAdminUsername, password, user.RoleAdmin)
	if err != nil {
		return err
	}

	if created && generated {
		log.Warn("seeded admin account with a generated password, change it at first login",
			"username", user.SeedAdminUsername, "password", password)
	} else if created {
		log.Info("seeded admin account", "username", user.SeedAdminUsername)
	}

	if cfg.SeedUserPassword != "" {
		created, err = ensureUser(ctx, users, user.SeedUserUsername, cfg.SeedUserPassword, user.RoleUser)
		if err != nil {
			return err
		}
		if created {
			log.Info("seeded user account", "username", user.SeedUserUsername)
		}
	}

	return nil
}

func ensureUser(ctx context.Context, users UserSeeder, username, password, role string) (bool, error) {
	_, err := users.GetByUsername(ctx, username)

	if err == nil {
		return false, nil
	}

	if !errors.Is(err, user.ErrNotFound) {
		return false, err
	}

	hash, err := security.HashPassword(password)

	if err != nil {
		return false, err
	}

	_, err = users.Create(ctx, user.User{
		Username:           username,
		PasswordHash:       hash,
		Role:               role,
		MustChangePassword: true,
	})

	// lost a race with another instance
	if errors.Is(err, user.ErrUsernameTaken) {
		return false, nil
	}

	return err == nil, err
}
