package session

import (
	"context"
	"time"

	"github.com/geocoder89/leadhub/internal/cache"
)

type MemoryStore struct {
	c *cache.Cache
}

func NewMemoryStore(defaultTTL time.Duration) *MemoryStore {
	return &MemoryStore{c: cache.New(defaultTTL)}
}

func (m *MemoryStore) Save(_ context.Context, s Session) error {
	ttl := time.Until(s.ExpiresAt)
	if ttl <= 0 {
		return nil
	}
	m.c.SetWithTTL(s.ID, s, ttl)
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (Session, error) {
	v, ok := m.c.Get(id)
	if !ok {
		return Session{}, ErrNotFound
	}
	return v.(Session), nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.c.Delete(id)
	return nil
}

func (m *MemoryStore) DeleteUser(_ context.Context, username string) error {
	m.c.DeleteFunc(func(_ string, val any) bool {
		s, ok := val.(Session)
		return ok && s.Username == username
	})
	return nil
}
