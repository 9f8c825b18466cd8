package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/geocoder89/leadhub/internal/domain/user"
	"github.com/geocoder89/leadhub/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type UsersRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewUsersRepo(pool *pgxpool.Pool, prom *observability.Prom) *UsersRepo {
	return &UsersRepo{pool: pool, prom: prom}
}

func (r *UsersRepo) GetByUsername(ctx context.Context, username string) (user.User, error) {
	var u user.User

	err := observe(r.prom, "users.get_by_username", func() error {
		return r.pool.QueryRow(
			ctx,
			`SELECT id, username, password_hash, role, must_change_password, created_at
			 FROM users
			 WHERE username = $1`,
			username,
		).Scan(
			&u.ID,
			&u.Username,
			&u.PasswordHash,
			&u.Role,
			&u.MustChangePassword,
			&u.CreatedAt,
		)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}

		return user.User{}, err
	}
	return u, nil
}

func (r *UsersRepo) Create(ctx context.Context, u user.User) (user.User, error) {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}

	err := observe(r.prom, "users.create", func() error {
		return r.pool.QueryRow(ctx,
			`INSERT INTO users (username, password_hash, role, must_change_password, created_at)
			 VALUES ($1, $2, $3, $4, $5)
			 RETURNING id`,
			u.Username, u.PasswordHash, u.Role, u.MustChangePassword, u.CreatedAt,
		).Scan(&u.ID)
	})

	if err != nil {
		if IsUniqueViolation(err) {
			return user.User{}, user.ErrUsernameTaken
		}
		return user.User{}, err
	}

	return u, nil
}

func (r *UsersRepo) List(ctx context.Context) ([]user.User, error) {
	var out []user.User

	err := observe(r.prom, "users.list", func() error {
		rows, err := r.pool.Query(ctx,
			`SELECT id, username, role, must_change_password, created_at FROM users ORDER BY id ASC`)
		if err != nil {
			return err
		}
		defer rows.Close()

		out = make([]user.User, 0)
		for rows.Next() {
			var u user.User
			if err := rows.Scan(&u.ID, &u.Username, &u.Role, &u.MustChangePassword, &u.CreatedAt); err != nil {
				return err
			}
			out = append(out, u)
		}
		return rows.Err()
	})

	if err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes the named user. The seed admin row is excluded in SQL as well.
func (r *UsersRepo) Delete(ctx context.Context, username string) error {
	if username == user.SeedAdminUsername {
		return user.ErrProtectedUser
	}

	var affected int64
	err := observe(r.prom, "users.delete", func() error {
		tag, err := r.pool.Exec(ctx,
			`DELETE FROM users WHERE username = $1 AND username <> $2`,
			username, user.SeedAdminUsername,
		)
		if err != nil {
			return err
		}
		affected = tag.RowsAffected()
		return nil
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
		tag, err := r.pool.Exec(ctx,
			`UPDATE users SET password_hash = $2, must_change_password = $3 WHERE username = $1`,
			username, passwordHash, mustChange,
		)
		if err != nil {
			return err
		}
		affected = tag.RowsAffected()
		return nil
	})

	if err != nil {
		return err
	}

	if affected == 0 {
		return user.ErrNotFound
	}
	return nil
}
