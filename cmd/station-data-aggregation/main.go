package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/joho/godotenv"
	httpapi "github.com/txcoastal/station-data-aggregation/internal/api/http"
	"github.com/txcoastal/station-data-aggregation/internal/config"
	"github.com/txcoastal/station-data-aggregation/internal/hydro"
	"github.com/txcoastal/station-data-aggregation/internal/hydro/sources"
	"github.com/txcoastal/station-data-aggregation/internal/scheduler"
	"github.com/txcoastal/station-data-aggregation/internal/store"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}

	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Shared HTTP client for outbound calls to the station networks.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	// In-memory store with configured retention.
	memStore := store.NewMemoryStore(cfg.StoreMaxHistory, cfg.StoreMaxAge)

	// One source per station network, each behind its own circuit breaker.
	// Empty base URLs select the public endpoints.
	service := hydro.NewService(hydro.Sources{
		Buoy:    sources.NewTABSSource(httpClient, ""),
		Gauge:   sources.NewUSGSSource(httpClient, ""),
		Portal:  sources.NewTWDBSource(httpClient, ""),
		Generic: sources.NewGenericSource(httpClient, ""),
	})

	// Scheduler that periodically refreshes and stores station tables.
	sched := scheduler.New(cfg.Stations, cfg.FetchInterval, cfg.FetchWindow, service, memStore)
	if err := sched.Start(); err != nil {
		log.Fatalf("failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	// Basic app configuration
	app := fiber.New(fiber.Config{
		AppName:               "station-data-aggregation",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		// Live reads fan out to several upstream feeds; give them room.
		WriteTimeout: 2 * time.Minute,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	// Global middleware
	app.Use(logger.New())
	app.Use(recover.New())

	// Basic health endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "station-data-aggregation",
		})
	})

	// API routes.
	httpapi.RegisterRoutes(app, service, memStore)

	// Start server with graceful shutdown
	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Printf("fiber server stopped: %v", err)
		}
	}()

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("error during shutdown: %v", err)
	}
}
