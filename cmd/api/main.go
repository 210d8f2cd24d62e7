package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/overmark/roomaccess/internal/handlers"
	"github.com/overmark/roomaccess/internal/identity"
	"github.com/overmark/roomaccess/internal/repository"
	"github.com/overmark/roomaccess/internal/service"
	"github.com/overmark/roomaccess/migrations"
	"github.com/overmark/roomaccess/pkg/config"
	"github.com/overmark/roomaccess/pkg/database"
	"github.com/overmark/roomaccess/pkg/events"
	"github.com/overmark/roomaccess/pkg/logger"
	mw "github.com/overmark/roomaccess/pkg/middleware"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	ctx := context.Background()
	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool, migrations.FS); err != nil {
		logger.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	redisOpts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		logger.Error("Invalid Redis URL", "error", err)
		os.Exit(1)
	}
	rdb := redis.NewClient(redisOpts)
	defer rdb.Close()

	eventBus, err := events.NewNATSEventBus(cfg.NATS.URL)
	if err != nil {
		logger.Error("Failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer eventBus.Close()

	// Repositories
	codeRepo := repository.NewRoomCodeRepository(pool)
	rateLimitRepo := repository.NewRateLimitRepository(rdb)

	// Collaborators and services
	authenticator := identity.NewClient(cfg.Identity)
	registry := service.NewRegistryService(codeRepo, eventBus, cfg)
	loginService := service.NewLoginService(registry, authenticator, eventBus, cfg)

	h := handlers.New(registry, loginService, rateLimitRepo, cfg)

	r := chi.NewRouter()

	r.Use(mw.RequestID)
	r.Use(mw.ServiceName("roomaccess"))
	r.Use(mw.Logging)
	r.Use(mw.Health)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.App.Origin},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.With(h.LoginRateLimit()).Post("/login/code", h.CodeLogin)

	r.Route("/admin", func(r chi.Router) {
		r.Post("/login", h.StaffLogin)

		r.Group(func(r chi.Router) {
			r.Use(h.RequireStaff())
			r.Get("/rooms", h.RoomOverview)
			r.Get("/codes", h.ListCodes)
			r.Get("/codes/login-url", h.LoginURL)
			r.Post("/rooms/{room}/code", h.IssueCode)
			r.Post("/rooms/{room}/code/rotate", h.RotateCode)
			r.Get("/rooms/{room}/history", h.RoomHistory)
			r.Get("/rooms/{room}/qr.png", h.QRCodePNG)
		})
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("Shutting down room access service...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Shutdown error", "error", err)
		}
	}()

	logger.Info("Starting room access service", "port", cfg.Server.Port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err)
		os.Exit(1)
	}
}
