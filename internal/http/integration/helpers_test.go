package integration_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/geocoder89/leadhub/internal/auth"
	"github.com/geocoder89/leadhub/internal/config"
	"github.com/geocoder89/leadhub/internal/db"
	apphttp "github.com/geocoder89/leadhub/internal/http"
	"github.com/geocoder89/leadhub/internal/http/handlers"
	"github.com/geocoder89/leadhub/internal/observability"
	"github.com/geocoder89/leadhub/internal/repo/memory"
	"github.com/geocoder89/leadhub/internal/repo/postgres"
	"github.com/geocoder89/leadhub/internal/repo/sqlite"
	"github.com/geocoder89/leadhub/internal/session"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	adminPassword = "first-boot-secret"
	newAdminPass  = "rotated-admin-secret"
)

type apiErrorResponse struct {
	Error struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

type backend struct {
	name  string
	leads interface {
		handlers.LeadsStore
		Ping(ctx context.Context) error
	}
	users apphttp.UserStore
}

func testConfig() config.Config {
	return config.Config{
		Env:            "test",
		StoreDriver:    "memory",
		JWTSecret:      "test-secret-key",
		AdminPassword:  adminPassword,
		LoginRateLimit: 100,
		MaxUploadBytes: 1 << 20,
	}
}

// backends returns memory and sqlite always, postgres when TEST_DB_DSN is set.
func backends(t *testing.T) []backend {
	t.Helper()

	out := []backend{{name: "memory", leads: memory.NewLeadsRepo(), users: memory.NewUsersRepo()}}

	gdb, err := db.OpenSQLite(filepath.Join(t.TempDir(), "leads.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	out = append(out, backend{name: "sqlite", leads: sqlite.NewLeadsRepo(gdb, nil), users: sqlite.NewUsersRepo(gdb, nil)})

	if dsn := os.Getenv("TEST_DB_DSN"); dsn != "" {
		ctx := context.Background()
		pool, err := db.NewPool(ctx, dsn)
		if err != nil {
			t.Fatalf("connect postgres: %v", err)
		}
		t.Cleanup(pool.Close)

		if err := db.EnsureSchema(ctx, pool); err != nil {
			t.Fatalf("schema: %v", err)
		}
		if _, err := pool.Exec(ctx, `TRUNCATE lead_sources, users RESTART IDENTITY`); err != nil {
			t.Fatalf("truncate: %v", err)
		}
		out = append(out, backend{name: "postgres", leads: postgres.NewLeadsRepo(pool, nil), users: postgres.NewUsersRepo(pool, nil)})
	}

	return out
}

func newRouter(t *testing.T, b backend, cfg config.Config) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	if err := db.EnsureSeedUsers(context.Background(), b.users, cfg, logger); err != nil {
		t.Fatalf("seed users: %v", err)
	}

	reg := prometheus.NewRegistry()

	router, err := apphttp.NewRouter(logger, apphttp.Deps{
		Config:   cfg,
		Leads:    b.leads,
		Users:    b.users,
		Sessions: session.NewMemoryStore(time.Hour),
		JWT:      auth.NewManager(cfg.JWTSecret, time.Hour),
		Prom:     observability.NewProm(reg),
		Gatherer: reg,
		Checks:   map[string]handlers.Check{"store": b.leads.Ping},
	})
	if err != nil {
		t.Fatalf("NewRouter: %v", err)
	}

	return router
}

func doRequest(router http.Handler, method, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))

	if method == http.MethodPost && body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	return w
}

func mustReadJSON[T any](t *testing.T, w *httptest.ResponseRecorder, out *T) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), out); err != nil {
		t.Fatalf("failed to unmarshal json: %v, body=%s", err, w.Body.String())
	}
}

func login(t *testing.T, router http.Handler, username, password string) handlers.SessionResponse {
	t.Helper()

	w := doRequest(router, http.MethodPost, "/auth/login",
		`{"username":"`+username+`","password":"`+password+`"}`, "")
	if w.Code != http.StatusOK {
		t.Fatalf("login %s got status %d, body=%s", username, w.Code, w.Body.String())
	}

	var resp handlers.SessionResponse
	mustReadJSON(t, w, &resp)
	return resp
}

// adminToken logs in as the seeded admin and rotates the first-boot password.
func adminToken(t *testing.T, router http.Handler) string {
	t.Helper()

	first := login(t, router, "admin", adminPassword)

	w := doRequest(router, http.MethodPost, "/auth/password",
		`{"currentPassword":"`+adminPassword+`","newPassword":"`+newAdminPass+`"}`, first.Token)
	if w.Code != http.StatusOK {
		t.Fatalf("change password got status %d, body=%s", w.Code, w.Body.String())
	}

	var resp handlers.SessionResponse
	mustReadJSON(t, w, &resp)
	return resp.Token
}

func createUser(t *testing.T, router http.Handler, adminTok, username, password, role string) {
	t.Helper()

	w := doRequest(router, http.MethodPost, "/users",
		`{"username":"`+username+`","password":"`+password+`","role":"`+role+`"}`, adminTok)
	if w.Code != http.StatusCreated {
		t.Fatalf("create user got status %d, body=%s", w.Code, w.Body.String())
	}
}
