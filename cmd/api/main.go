package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/geocoder89/leadhub/internal/auth"
	"github.com/geocoder89/leadhub/internal/config"
	"github.com/geocoder89/leadhub/internal/db"
	httpx "github.com/geocoder89/leadhub/internal/http"
	"github.com/geocoder89/leadhub/internal/http/handlers"
	"github.com/geocoder89/leadhub/internal/observability"
	"github.com/geocoder89/leadhub/internal/redisclient"
	"github.com/geocoder89/leadhub/internal/repo/memory"
	"github.com/geocoder89/leadhub/internal/repo/postgres"
	"github.com/geocoder89/leadhub/internal/repo/sqlite"
	"github.com/geocoder89/leadhub/internal/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

type pinger interface {
	Ping(ctx context.Context) error
}

// stores is the backend picked by STORE_DRIVER.
type stores struct {
	leads interface {
		handlers.LeadsStore
		pinger
	}
	users   httpx.UserStore
	closeFn func()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := observability.NewLogger(cfg.Env)
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx := context.Background()

	if cfg.OTelEnabled {
		shutdownTracer, err := observability.InitTracer(ctx, "leadhub-api", cfg.Env, cfg.OTelEndpoint)
		if err != nil {
			return err
		}
		defer func() {
			sctx, cancel := config.WithTimeout(5 * time.Second)
			defer cancel()
			_ = shutdownTracer(sctx)
		}()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	prom := observability.NewProm(reg)

	st, err := openStores(ctx, cfg, prom, log)
	if err != nil {
		return err
	}
	defer st.closeFn()

	checks := map[string]handlers.Check{"store": st.leads.Ping}

	var sessions session.Store
	if cfg.RedisAddr != "" {
		rdb := redisclient.New(redisclient.Config{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		defer func() { _ = rdb.Close() }()

		pctx, cancel := config.WithTimeout(3 * time.Second)
		err := rdb.Ping(pctx)
		cancel()
		if err != nil {
			return fmt.Errorf("redis ping: %w", err)
		}

		sessions = session.NewRedisStore(rdb)
		checks["redis"] = rdb.Ping
		log.Info("session store", "backend", "redis", "addr", cfg.RedisAddr)
	} else {
		sessions = session.NewMemoryStore(cfg.SessionTTL())
		log.Info("session store", "backend", "memory")
	}

	sctx, cancel := config.WithTimeout(10 * time.Second)
	err = db.EnsureSeedUsers(sctx, st.users, cfg, log)
	cancel()
	if err != nil {
		return fmt.Errorf("seed users: %w", err)
	}

	router, err := httpx.NewRouter(log, httpx.Deps{
		Config:   cfg,
		Leads:    st.leads,
		Users:    st.users,
		Sessions: sessions,
		JWT:      auth.NewManager(cfg.JWTSecret, cfg.SessionTTL()),
		Prom:     prom,
		Gatherer: reg,
		Checks:   checks,
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       60 * time.Second, // uploads
		WriteTimeout:      2 * time.Minute,  // imports run inside the request
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("server starting", "port", cfg.Port, "env", cfg.Env, "store", cfg.StoreDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// Graceful shutdown

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serveErr:
		return err
	case <-stop:
	}

	log.Info("server shutting down")

	shutdownCtx, cancelShutdown := config.WithTimeout(10 * time.Second)
	defer cancelShutdown()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}

	log.Info("shutdown complete")
	return nil
}

func openStores(ctx context.Context, cfg config.Config, prom *observability.Prom, log *slog.Logger) (stores, error) {
	switch cfg.StoreDriver {
	case "postgres":
		pool, err := db.NewPool(ctx, cfg.DBURL)
		if err != nil {
			return stores{}, err
		}
		if err := db.EnsureSchema(ctx, pool); err != nil {
			pool.Close()
			return stores{}, err
		}
		log.Info("lead store", "backend", "postgres")
		return stores{
			leads:   postgres.NewLeadsRepo(pool, prom),
			users:   postgres.NewUsersRepo(pool, prom),
			closeFn: pool.Close,
		}, nil

	case "sqlite":
		gdb, err := db.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return stores{}, err
		}
		log.Info("lead store", "backend", "sqlite", "path", cfg.SQLitePath)
		return stores{
			leads: sqlite.NewLeadsRepo(gdb, prom),
			users: sqlite.NewUsersRepo(gdb, prom),
			closeFn: func() {
				if sqlDB, err := gdb.DB(); err == nil {
					_ = sqlDB.Close()
				}
			},
		}, nil

	case "memory":
		log.Warn("lead store is in memory, data is lost on restart")
		return stores{
			leads:   memory.NewLeadsRepo(),
			users:   memory.NewUsersRepo(),
			closeFn: func() {},
		}, nil

	default:
		return stores{}, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}
}
