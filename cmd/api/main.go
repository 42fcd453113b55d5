package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/geocoder89/userhub/internal/auth"
	"github.com/geocoder89/userhub/internal/config"
	httpx "github.com/geocoder89/userhub/internal/http"
	"github.com/geocoder89/userhub/internal/observability"
	"github.com/geocoder89/userhub/internal/security"
	"github.com/geocoder89/userhub/internal/store"
	"github.com/geocoder89/userhub/internal/store/memory"
	"github.com/geocoder89/userhub/internal/store/redisstore"
)

func main() {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	cfg := config.Load()

	log := observability.NewLogger(cfg.Env)

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	if cfg.OTELEnabled {
		shutdownTracer, err := observability.InitTracer(context.Background(), "userhub", cfg.OTELEndpoint)

		if err != nil {
			log.Error("tracing init failed", "err", err)
			os.Exit(1)
		}

		defer func() {
			ctx, cancel := config.WithTimeout(5 * time.Second)
			defer cancel()
			_ = shutdownTracer(ctx)
		}()
	}

	prom := observability.NewProm(prometheus.DefaultRegisterer)

	users, err := openStore(cfg, log)

	if err != nil {
		log.Error("store init failed", "err", err)
		os.Exit(1)
	}

	defer users.Close()

	users = store.Instrument(users, prom)

	jwtManager := auth.NewManager(cfg.JWTSecret, cfg.TokenTTL, log)

	router := httpx.NewRouter(log, cfg, users, jwtManager, prom)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("Server starting", "port", cfg.Port, "env", cfg.Env)
		err := srv.ListenAndServe()

		if err != nil && err != http.ErrServerClosed {
			log.Error("server failed", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Info("server shutting down")

	shutdownCh := make(chan struct{})

	go func() {
		defer close(shutdownCh)

		ctx, cancel := config.WithTimeout(10 * time.Second)

		defer cancel()

		err := srv.Shutdown(ctx)

		if err != nil {
			log.Error("graceful shutdown failed", "err", err)

			return
		}
	}()

	select {
	case <-shutdownCh:
		log.Info("shutdown complete")

	case <-time.After(12 * time.Second):
		log.Error("shutdown timed out")
	}
}

// openStore selects the backend once at startup. A redis backend that fails
// to come up degrades to the in-memory store rather than refusing to serve;
// that trade of durability for availability is logged loudly.
func openStore(cfg config.Config, log *slog.Logger) (store.Store, error) {
	seedHash, err := security.HashPassword(cfg.AdminPassword)

	if err != nil {
		return nil, fmt.Errorf("hash admin password: %w", err)
	}

	seed := store.SeedAdmin{
		Name:       cfg.AdminName,
		Email:      cfg.AdminEmail,
		Credential: seedHash,
	}

	if !cfg.UseRedis {
		log.Info("using in-memory user store")
		return memory.New(seed), nil
	}

	ctx, cancel := config.WithTimeout(5 * time.Second)
	defer cancel()

	rs, err := redisstore.New(ctx, redisstore.Config{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, seed, log)

	if err != nil {
		log.Warn("redis store unavailable, degrading to in-memory store", "err", err)
		return memory.New(seed), nil
	}

	log.Info("using redis user store", "addr", cfg.RedisAddr)

	return rs, nil
}
