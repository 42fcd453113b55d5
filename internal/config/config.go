package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Env  string
	Port int

	// Token signing. JWTSecret is mandatory; startup fails without it.
	JWTSecret string
	TokenTTL  time.Duration

	// Backend selection
	UseRedis      bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Seed super admin
	AdminName     string
	AdminEmail    string
	AdminPassword string

	// Request throttle
	RateLimitMax    int
	RateLimitWindow time.Duration

	AllowedOrigins []string
	UploadDir      string
	MaxBodyBytes   int64

	OTELEnabled  bool
	OTELEndpoint string
}

func Load() Config {
	return Config{
		Env:  getEnv("APP_ENV", "dev"),
		Port: getEnvInt("PORT", 8080),

		JWTSecret: getEnv("JWT_SECRET", ""),
		TokenTTL:  time.Duration(getEnvInt("TOKEN_TTL_HOURS", 24)) * time.Hour,

		UseRedis:      getEnv("USE_REDIS", "false") == "true",
		RedisAddr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		AdminName:     getEnv("ADMIN_NAME", "Super Admin"),
		AdminEmail:    getEnv("ADMIN_EMAIL", "admin@userhub.local"),
		AdminPassword: getEnv("ADMIN_PASSWORD", ""),

		RateLimitMax:    getEnvInt("RATE_LIMIT_MAX", 100),
		RateLimitWindow: time.Duration(getEnvInt("RATE_LIMIT_WINDOW_MINUTES", 15)) * time.Minute,

		AllowedOrigins: splitCSV(getEnv("ALLOWED_ORIGINS", "")),
		UploadDir:      getEnv("UPLOAD_DIR", "uploads"),
		MaxBodyBytes:   int64(getEnvInt("MAX_BODY_BYTES", 1<<20)),

		OTELEnabled:  getEnv("OTEL_ENABLED", "false") == "true",
		OTELEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
	}
}

// Validate catches misconfiguration that must stop the process before it
// serves a single request.
func (c Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET must be set")
	}

	if c.AdminPassword == "" {
		return errors.New("ADMIN_PASSWORD must be set")
	}

	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PORT out of range: %d", c.Port)
	}

	return nil
}

func WithTimeout(duration time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), duration)
}

func splitCSV(v string) []string {
	if v == "" {
		return nil
	}

	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))

	for _, p := range parts {
		p = strings.TrimSpace(p)

		if p != "" {
			out = append(out, p)
		}
	}

	return out
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		num, err := strconv.Atoi(v)

		if err != nil {
			fmt.Println(err)
			return fallback
		}

		return num
	}
	return fallback
}
