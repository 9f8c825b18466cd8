package config

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Env  string
	Port int

	// lead store backend: postgres | sqlite | memory
	StoreDriver string
	DBURL       string
	SQLitePath  string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	JWTSecret         string
	SessionTTLMinutes int

	// seeded accounts. Empty AdminPassword means a random one is generated at first boot.
	AdminPassword    string
	SeedUserPassword string

	CORSAllowedOrigins []string

	// proxies whose X-Forwarded-For is believed; empty trusts none
	TrustedProxies []string
	LoginRateLimit int
	MaxUploadBytes int64

	OTelEnabled  bool
	OTelEndpoint string
}

var ErrMissingJWTSecret = errors.New("JWT_SECRET must be set outside dev/test")

func Load() (Config, error) {
	// .env is optional, real environment wins
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("leadhub")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, err
		}
	}

	return fromViper(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "dev")
	v.SetDefault("PORT", 8080)
	v.SetDefault("STORE_DRIVER", "postgres")
	v.SetDefault("DB_HOST", "127.0.0.1")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "leadhub")
	v.SetDefault("DB_PASSWORD", "")
	v.SetDefault("DB_NAME", "leadhub")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("SQLITE_PATH", "leads.db")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("SESSION_TTL_MINUTES", 480)
	v.SetDefault("ADMIN_PASSWORD", "")
	v.SetDefault("SEED_USER_PASSWORD", "")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "")
	v.SetDefault("TRUSTED_PROXIES", "")
	v.SetDefault("LOGIN_RATE_LIMIT", 10)
	v.SetDefault("MAX_UPLOAD_BYTES", 10<<20)
	v.SetDefault("OTEL_ENABLED", false)
	v.SetDefault("OTEL_ENDPOINT", "localhost:4317")
}

func fromViper(v *viper.Viper) (Config, error) {
	cfg := Config{
		Env:                v.GetString("APP_ENV"),
		Port:               v.GetInt("PORT"),
		StoreDriver:        strings.ToLower(v.GetString("STORE_DRIVER")),
		DBURL:              v.GetString("DATABASE_URL"),
		SQLitePath:         v.GetString("SQLITE_PATH"),
		RedisAddr:          v.GetString("REDIS_ADDR"),
		RedisPassword:      v.GetString("REDIS_PASSWORD"),
		RedisDB:            v.GetInt("REDIS_DB"),
		JWTSecret:          v.GetString("JWT_SECRET"),
		SessionTTLMinutes:  v.GetInt("SESSION_TTL_MINUTES"),
		AdminPassword:      v.GetString("ADMIN_PASSWORD"),
		SeedUserPassword:   v.GetString("SEED_USER_PASSWORD"),
		CORSAllowedOrigins: splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
		TrustedProxies:     splitList(v.GetString("TRUSTED_PROXIES")),
		LoginRateLimit:     v.GetInt("LOGIN_RATE_LIMIT"),
		MaxUploadBytes:     v.GetInt64("MAX_UPLOAD_BYTES"),
		OTelEnabled:        v.GetBool("OTEL_ENABLED"),
		OTelEndpoint:       v.GetString("OTEL_ENDPOINT"),
	}

	if cfg.DBURL == "" {
		cfg.DBURL = buildDBURL(v)
	}

	if cfg.JWTSecret == "" {
		if cfg.Env != "dev" && cfg.Env != "test" {
			return Config{}, ErrMissingJWTSecret
		}
		slog.Warn("JWT_SECRET not set, using an insecure development secret")
		cfg.JWTSecret = "leadhub-dev-secret"
	}

	return cfg, nil
}

func buildDBURL(v *viper.Viper) string {
	host := v.GetString("DB_HOST")
	port := v.GetString("DB_PORT")
	user := v.GetString("DB_USER")
	pass := v.GetString("DB_PASSWORD")
	name := v.GetString("DB_NAME")
	ssl := v.GetString("DB_SSLMODE")

	return "postgres://" + user + ":" + pass + "@" + host + ":" + port + "/" + name + "?sslmode=" + ssl
}

func (c Config) SessionTTL() time.Duration {
	if c.SessionTTLMinutes <= 0 {
		return 8 * time.Hour
	}
	return time.Duration(c.SessionTTLMinutes) * time.Minute
}

func WithTimeout(duration time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), duration)
}

func splitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
