package http

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/geocoder89/leadhub/internal/auth"
	"github.com/geocoder89/leadhub/internal/cache"
	"github.com/geocoder89/leadhub/internal/config"
	"github.com/geocoder89/leadhub/internal/domain/user"
	"github.com/geocoder89/leadhub/internal/http/handlers"
	"github.com/geocoder89/leadhub/internal/http/middlewares"
	"github.com/geocoder89/leadhub/internal/observability"
	"github.com/geocoder89/leadhub/internal/session"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

const (
	jsonBodyLimit      = 1 << 20
	loginWindow        = time.Minute
	organizationsTTL   = 30 * time.Second
	serviceNameForOTel = "leadhub-api"
)

// UserStore is everything the auth and user handlers need from the account table.
type UserStore interface {
	GetByUsername(ctx context.Context, username string) (user.User, error)
	Create(ctx context.Context, u user.User) (user.User, error)
	List(ctx context.Context) ([]user.User, error)
	Delete(ctx context.Context, username string) error
	UpdatePassword(ctx context.Context, username, passwordHash string, mustChange bool) error
}

type Deps struct {
	Config   config.Config
	Leads    handlers.LeadsStore
	Users    UserStore
	Sessions session.Store
	JWT      *auth.Manager

	// optional
	Prom     *observability.Prom
	Gatherer prometheus.Gatherer
	Checks   map[string]handlers.Check
}

func NewRouter(log *slog.Logger, deps Deps) (*gin.Engine, error) {
	cfg := deps.Config

	if cfg.Env != "dev" && cfg.Env != "test" {
		gin.SetMode(gin.ReleaseMode)
	}

	enforcer, err := middlewares.NewEnforcer()
	if err != nil {
		return nil, err
	}

	r := gin.New()

	// gin trusts every proxy unless told otherwise; the login limiter keys on ClientIP
	if err := r.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, fmt.Errorf("trusted proxies: %w", err)
	}

	// middleware

	r.Use(gin.Recovery())
	r.Use(middlewares.RequestID())
	if cfg.OTelEnabled {
		r.Use(otelgin.Middleware(serviceNameForOTel))
	}
	if deps.Prom != nil {
		r.Use(deps.Prom.GinHandleMiddleware())
	}
	r.Use(middlewares.RequestLogger(log))
	r.Use(middlewares.SecurityHeaders(cfg.Env == "prod"))
	r.Use(middlewares.CORSMiddleware(cfg.CORSAllowedOrigins))

	// health and metrics
	health := handlers.NewHealthHandler(deps.Checks)
	r.GET("/healthz", health.Healthz)
	r.GET("/readyz", health.Readyz)

	if deps.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	// wire up handlers
	authHandler := handlers.NewAuthHandler(deps.Users, deps.JWT, deps.Sessions, deps.Prom, cfg)
	usersHandler := handlers.NewUsersHandler(deps.Users, deps.Sessions)
	leadsHandler := handlers.NewLeadsHandlerWithCache(deps.Leads, cache.New(organizationsTTL), deps.Prom)

	authMW := middlewares.NewAuthMiddleware(deps.JWT, deps.Sessions)
	loginLimiter := middlewares.NewRateLimiter(cfg.LoginRateLimit, loginWindow)

	maxJSON := middlewares.MaxBodyBytes(jsonBodyLimit)
	requireJSON := middlewares.RequireJSON()
	maxUpload := middlewares.MaxBodyBytes(cfg.MaxUploadBytes)

	// public
	r.POST("/auth/login", loginLimiter.RateLimiterMiddleware(middlewares.KeyByIP), maxJSON, requireJSON, authHandler.Login)

	// everything below needs a live session, a changed seed password and a permitted role
	protected := r.Group("/")
	protected.Use(
		authMW.RequireAuth(),
		authMW.RequirePasswordChanged("/auth/me", "/auth/password", "/auth/logout"),
		middlewares.Authorize(enforcer),
	)

	protected.GET("/auth/me", authHandler.Me)
	protected.POST("/auth/logout", authHandler.Logout)
	protected.POST("/auth/password", maxJSON, requireJSON, authHandler.ChangePassword)

	protected.GET("/dashboard", leadsHandler.Dashboard)
	protected.GET("/leads", leadsHandler.ListLeads)
	protected.POST("/leads", maxJSON, requireJSON, leadsHandler.CreateLead)
	protected.GET("/leads/organizations", leadsHandler.ListOrganizations)
	protected.GET("/leads/source-types", leadsHandler.ListSourceTypes)
	protected.GET("/leads/export.csv", leadsHandler.ExportCSV)
	protected.POST("/leads/import/preview", maxUpload, leadsHandler.ImportPreview)
	protected.POST("/leads/import", maxUpload, leadsHandler.ImportLeads)

	protected.GET("/users", usersHandler.ListUsers)
	protected.POST("/users", maxJSON, requireJSON, usersHandler.CreateUser)
	protected.DELETE("/users/:username", usersHandler.DeleteUser)

	return r, nil
}
