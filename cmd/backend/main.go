package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"ml-backend/cmd"
	"ml-backend/internal/api"
	"ml-backend/internal/config"
	"ml-backend/internal/core"
	"ml-backend/internal/database"
	"ml-backend/internal/metrics"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func main() {
	cmd.LoadEnvFile()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("error loading config: %v", err)
	}

	level, _ := cfg.SlogLevel()
	cmd.ConfigureLogging(level)

	slog.Info("starting backend", "port", cfg.Port, "model_type", cfg.ModelType, "state_backend", cfg.StateBackend, "rabbitmq", cfg.RabbitMQURL != "")

	ctx := context.Background()

	db, err := database.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	store, closeStore, err := cmd.CreateStateStore(ctx, cfg, db)
	if err != nil {
		log.Fatalf("Failed to create state store: %v", err)
	}
	defer func() {
		if err := closeStore(); err != nil {
			slog.Error("error closing state store", "error", err)
		}
	}()

	models, err := core.NewModelManager(core.ModelType(cfg.ModelType), core.NewModelLoaders(), store)
	if err != nil {
		log.Fatalf("Failed to create model manager: %v", err)
	}

	publisher, receiver, err := cmd.CreateQueue(ctx, cfg.RabbitMQURL, db)
	if err != nil {
		log.Fatalf("Failed to create event queue: %v", err)
	}
	defer publisher.Close()

	m := metrics.New()

	processor := core.NewEventProcessor(db, models, receiver, m)
	go processor.Start()

	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(m.Middleware)
	r.Use(middleware.Timeout(60 * time.Second))

	opts := []api.Option{api.WithMetrics(m)}
	if cfg.BasicAuthUser != "" {
		opts = append(opts, api.WithBasicAuth(cfg.BasicAuthUser, cfg.BasicAuthPass))
	}

	api.NewBackendService(db, models, publisher, opts...).AddRoutes(r)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		slog.Info("shutting down server")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			slog.Error("server forced to shutdown", "error", err)
		}

		processor.Stop()
	}()

	slog.Info("backend listening", "port", cfg.Port)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Could not listen on %d: %v", cfg.Port, err)
	}

	<-stopped

	slog.Info("server stopped")
}
