package sqlite

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/geocoder89/leadhub/internal/domain/user"
	"github.com/geocoder89/leadhub/internal/observability"
	"gorm.io/gorm"
)

type UsersRepo struct {
	db   *gorm.DB
	prom *observability.Prom
}

func NewUsersRepo(db *gorm.DB, prom *observability.Prom) *UsersRepo {
	return &UsersRepo{db: db, prom: prom}
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func observe(prom *observability.Prom, op string, fn func() error) error {
	if prom != nil {
		return prom.ObserveDB(op, fn)
	}
	return fn()
}

func toUser(row UserRow) user.User {
	return user.User{
		ID:                 row.ID,
		Username:           row.Username,
		PasswordHash:       row.PasswordHash,
		Role:               row.Role,
		MustChangePassword: row.MustChangePassword,
		CreatedAt:          row.CreatedAt,
	}
}

func (r *UsersRepo) GetByUsername(ctx context.Context, username string) (user.User, error) {
	var row UserRow

	err := observe(r.prom, "users.get_by_username", func() error {
		return r.db.WithContext(ctx).Where("username = ?", username).First(&row).Error
	})

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, err
	}

	return toUser(row), nil
}

func (r *UsersRepo) Create(ctx context.Context, u user.User) (user.User, error) {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}

	row := UserRow{
		Username:           u.Username,
		PasswordHash:       u.PasswordHash,
		Role:               u.Role,
		MustChangePassword: u.MustChangePassword,
		CreatedAt:          u.CreatedAt,
	}

	err := observe(r.prom, "users.create", func() error {
		return r.db.WithContext(ctx).Create(&row).Error
	})

	if err != nil {
		if isUniqueViolation(err) {
			return user.User{}, user.ErrUsernameTaken
		}
		return user.User{}, err
	}

	return toUser(row), nil
}

func (r *UsersRepo) List(ctx context.Context) ([]user.User, error) {
	var rows []UserRow

	err := observe(r.prom, "users.list", func() error {
		return r.db.WithContext(ctx).Order("id ASC").Find(&rows).Error
	})
	if err != nil {
		return nil, err
	}

	out := make([]user.User, 0, len(rows))
	for _, row := range rows {
		out = append(out, toUser(row))
	}
	return out, nil
}

func (r *UsersRepo) Delete(ctx context.Context, username string) error {
	if username == user.SeedAdminUsername {
		return user.ErrProtectedUser
	}

	var affected int64
	err := observe(r.prom, "users.delete", func() error {
		res := r.db.WithContext(ctx).
			Where("username = ? AND username <> ?", username, user.SeedAdminUsername).
			Delete(&UserRow{})
		affected = res.RowsAffected
		return res.Error
	})

	if err != nil {
		return err
	}
	if affected == 0 {
		return user.ErrNotFound
	}
	return nil
}

func (r *UsersRepo) UpdatePassword(ctx context.Context, username, passwordHash string, mustChange bool) error {
	var affected int64
	err := observe(r.prom, "users.update_password", func() error {
		res := r.db.WithContext(ctx).Model(&UserRow{}).
			Where("username = ?", username).
			Updates(map[string]any{"password_hash": passwordHash, "must_change_password": mustChange})
		affected = res.RowsAffected
		return res.Error
	})

	if err != nil {
		return err
	}
	if affected == 0 {
		return user.ErrNotFound
	}
	return nil
}
