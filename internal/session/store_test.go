package session

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/geocoder89/leadhub/internal/redisclient"
	"github.com/google/uuid"
)

func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()
	exp := time.Now().Add(time.Minute)

	sam1 := Session{ID: uuid.NewString(), Username: "sam-" + t.Name(), Role: "user", ExpiresAt: exp}
	sam2 := Session{ID: uuid.NewString(), Username: sam1.Username, Role: "user", ExpiresAt: exp}
	kim := Session{ID: uuid.NewString(), Username: "kim-" + t.Name(), Role: "admin", MustChangePassword: true, ExpiresAt: exp}

	for _, s := range []Session{sam1, sam2, kim} {
		if err := store.Save(ctx, s); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}

	got, err := store.Get(ctx, kim.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Username != kim.Username || got.Role != "admin" || !got.MustChangePassword {
		t.Fatalf("unexpected session %+v", got)
	}

	if err := store.Delete(ctx, kim.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Get(ctx, kim.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}

	// deleting twice is fine
	if err := store.Delete(ctx, kim.ID); err != nil {
		t.Fatalf("second Delete: %v", err)
	}

	if err := store.DeleteUser(ctx, sam1.Username); err != nil {
		t.Fatalf("DeleteUser: %v", err)
	}
	for _, id := range []string{sam1.ID, sam2.ID} {
		if _, err := store.Get(ctx, id); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected session %s revoked, got %v", id, err)
		}
	}
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore(time.Minute))
}

func TestMemoryStore_Expiry(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	ctx := context.Background()

	s := Session{ID: "short", Username: "sam", ExpiresAt: time.Now().Add(5 * time.Millisecond)}
	_ = store.Save(ctx, s)

	time.Sleep(20 * time.Millisecond)

	if _, err := store.Get(ctx, "short"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected expired session, got %v", err)
	}
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}

	client := redisclient.New(redisclient.Config{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })

	if err := client.Ping(context.Background()); err != nil {
		t.Fatalf("redis ping: %v", err)
	}

	exerciseStore(t, NewRedisStore(client))
}
