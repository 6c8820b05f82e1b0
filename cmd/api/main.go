package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"pneumo-backend/cmd"
	"pneumo-backend/internal/api"
	"pneumo-backend/internal/core"
	"pneumo-backend/internal/messaging"

	"github.com/caarlos0/env/v11"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type Config struct {
	Root             string `env:"ROOT" envDefault:"./pneumo-backend"`
	Port             int    `env:"PORT" envDefault:"3001"`
	ModelManifest    string `env:"MODEL_MANIFEST" envDefault:"./models.yaml"`
	OnnxRuntimeDylib string `env:"ONNX_RUNTIME_DYLIB"`
}

func createServer(service *api.BackendService, port int) *http.Server {
	r := chi.NewRouter()

	// Middleware
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"*"},
		AllowCredentials: true,
		MaxAge:           300, // Cache preflight response for 5 minutes
	}))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)    // Log requests
	r.Use(middleware.Recoverer) // Recover from panics

	r.Route("/api/v1", func(r chi.Router) {
		service.AddRoutes(r)
	})

	return &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: r,
	}
}

func main() {
	cmd.LoadEnvFile()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("error parsing config: %v", err)
	}

	destroyOrt := cmd.InitOnnxRuntime(cfg.OnnxRuntimeDylib)
	defer destroyOrt()

	log.SetFlags(log.LstdFlags | log.Lshortfile)
	if err := os.MkdirAll(cfg.Root, os.ModePerm); err != nil {
		log.Fatalf("error creating root directory: %v", err)
	}
	artifactDir := filepath.Join(cfg.Root, "artifacts")
	if err := os.MkdirAll(artifactDir, os.ModePerm); err != nil {
		log.Fatalf("error creating artifact directory: %v", err)
	}

	db := cmd.CreateDatabase(cfg.Root)

	manifest, models := cmd.LoadEnsemble(cfg.ModelManifest)
	defer func() {
		for _, model := range models {
			model.Release()
		}
	}()
	slog.Info("loaded segmentation ensemble", "models", len(models), "image_size", manifest.ImageSize, "channels", manifest.Channels)

	queue := messaging.NewInMemoryQueue()

	processor := core.NewTaskProcessor(db, queue, models, manifest.ImageSize, manifest.Channels, artifactDir)
	go processor.Start()

	service := api.NewBackendService(db, queue)
	server := createServer(service, cfg.Port)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("starting api server", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("error running server: %v", err)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("error shutting down server", "error", err)
	}
	processor.Stop()
}
