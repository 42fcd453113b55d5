package http

import (
	"context"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/geocoder89/userhub/internal/auth"
	"github.com/geocoder89/userhub/internal/config"
	"github.com/geocoder89/userhub/internal/http/handlers"
	"github.com/geocoder89/userhub/internal/http/middlewares"
	"github.com/geocoder89/userhub/internal/observability"
	"github.com/geocoder89/userhub/internal/store"
)

func NewRouter(log *slog.Logger, cfg config.Config, users store.Store, jwtManager *auth.Manager, prom *observability.Prom) *gin.Engine {
	if cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	// middleware, outermost first: the throttle runs before the auth gate so
	// excessive traffic is cut before any token work happens

	r.Use(gin.Recovery())
	r.Use(RequestID())
	r.Use(RequestLogger(log))
	r.Use(otelgin.Middleware("userhub"))
	r.Use(prom.GinHandleMiddleware())
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddleware(cfg.AllowedOrigins))
	r.Use(middlewares.MaxBodyBytes(cfg.MaxBodyBytes))

	limiter := middlewares.NewRateLimiter(cfg.RateLimitMax, cfg.RateLimitWindow, log)
	r.Use(limiter.Middleware(middlewares.KeyByIP))

	gate := middlewares.NewAuthGate(jwtManager, log)
	r.Use(gate.Gate())

	// health + docs

	ping := func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
		defer cancel()

		return users.Ping(ctx)
	}

	h := handlers.NewHealthHandler(ping)
	r.GET("/", h.Root)
	r.GET("/health", h.Health)
	r.GET("/docs", handlers.SwaggerUI)
	r.StaticFile("/docs/openapi.yaml", "docs/openapi.yaml")
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{})))
	r.Static("/uploads", cfg.UploadDir)

	// auth

	authHandler := handlers.NewAuthHandler(users, jwtManager, log, prom)
	r.POST("/auth/login", authHandler.Login)

	// users

	avatars := handlers.NewAvatarSaver(cfg.UploadDir, 2<<20)
	usersHandler := handlers.NewUsersHandler(users, avatars, log)

	// Writes get a tighter per-account budget on top of the per-address
	// limit, so one authenticated client cannot burn the shared allowance.
	writeMax := cfg.RateLimitMax / 4
	if writeMax < 1 {
		writeMax = 1
	}
	writeLimiter := middlewares.NewRateLimiter(writeMax, cfg.RateLimitWindow, log)
	writeLimit := writeLimiter.Middleware(middlewares.KeyByUserOrIP)

	ug := r.Group("/users")
	ug.Use(middlewares.RequireBody())
	ug.GET("", middlewares.Authenticated(), usersHandler.ListUsers)
	ug.GET("/:id", middlewares.Authenticated(), usersHandler.GetUser)
	ug.POST("", writeLimit, middlewares.AdminOnly(), usersHandler.CreateUser)
	ug.PUT("/:id", writeLimit, middlewares.AdminOrOwner("id"), usersHandler.UpdateUser)
	ug.DELETE("/:id", writeLimit, middlewares.AdminOnly(), usersHandler.DeleteUser)

	return r
}
