package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/geocoder89/leadhub/internal/domain/user"
)

type UsersRepo struct {
	mu     sync.RWMutex
	nextID int64
	items  map[string]user.User // keyed by username
}

func NewUsersRepo() *UsersRepo {
	return &UsersRepo{
		items: make(map[string]user.User),
	}
}

func (r *UsersRepo) GetByUsername(_ context.Context, username string) (user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.items[username]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	return u, nil
}

func (r *UsersRepo) Create(_ context.Context, u user.User) (user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[u.Username]; ok {
		return user.User{}, user.ErrUsernameTaken
	}

	r.nextID++
	u.ID = r.nextID
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	r.items[u.Username] = u

	return u, nil
}

func (r *UsersRepo) List(_ context.Context) ([]user.User, error) {
	r.mu.RLock()
	out := make([]user.User, 0, len(r.items))
	for _, u := range r.items {
		out = append(out, u)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *UsersRepo) Delete(_ context.Context, username string) error {
	if username == user.SeedAdminUsername {
		return user.ErrProtectedUser
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[username]; !ok {
		return user.ErrNotFound
	}
	delete(r.items, username)
	return nil
}

func (r *UsersRepo) UpdatePassword(_ context.Context, username, passwordHash string, mustChange bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.items[username]
	if !ok {
		return user.ErrNotFound
	}
	u.PasswordHash = passwordHash
	u.MustChangePassword = mustChange
	r.items[username] = u
	return nil
}
