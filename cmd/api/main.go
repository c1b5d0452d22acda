package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/pageza/nutricalc/backend/config"
	"github.com/pageza/nutricalc/backend/internal/api"
	"github.com/pageza/nutricalc/backend/internal/database"
	"github.com/pageza/nutricalc/backend/internal/middleware"
	"github.com/pageza/nutricalc/backend/internal/router"
	"github.com/pageza/nutricalc/backend/internal/server"
	"github.com/pageza/nutricalc/backend/internal/service"
	"github.com/pageza/nutricalc/backend/internal/store"
)

func main() {
	// Initialize configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	engine, err := config.LoadEngineConfig(cfg.EngineConfigPath)
	if err != nil {
		log.Fatalf("Failed to load engine configuration: %v", err)
	}

	db, err := database.Open(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}
	st := store.New(db)

	meal, err := service.NewMealService(st, engine)
	if err != nil {
		log.Fatalf("Failed to create meal service: %v", err)
	}
	search := service.NewSearchService(st)
	defer search.Close()

	hub := api.NewEventHub()
	defer hub.Listen(meal)()

	deps := api.Deps{
		Auth:    service.NewAuthService(db, middleware.NewTokenService(cfg.JWTSecret)),
		Meal:    meal,
		Catalog: st,
		Search:  search,
		Hub:     hub,
	}

	// Redis backs drafts and search rate limiting
	redisClient, err := database.NewRedisClient(cfg)
	if err != nil {
		log.Printf("Warning: Failed to connect to Redis: %v", err)
	} else {
		defer redisClient.Close()
		deps.Drafts = service.NewDraftService(redisClient)
		deps.SearchLimiter = middleware.NewSearchRateLimiter(redisClient)
	}

	if cfg.ExportBucket != "" {
		s3Config, err := config.NewS3Config(context.Background(), cfg)
		if err != nil {
			log.Printf("Warning: report exports disabled: %v", err)
		} else {
			deps.Export = service.NewExportService(s3Config)
		}
	}

	srv := server.New(cfg, router.SetupRouter(cfg, deps))

	// Channel to listen for errors coming from the server
	errChan := make(chan error, 1)
	go func() {
		log.Println("Starting server...")
		errChan <- srv.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		if err != nil {
			log.Fatalf("Server error: %v", err)
		}
	case sig := <-quit:
		log.Printf("Received signal: %v", sig)
	}

	log.Println("Shutting down server...")
	if err := srv.Shutdown(context.Background()); err != nil {
		log.Fatalf("Server shutdown error: %v", err)
	}
	log.Println("Server stopped")
}
