package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	httpapi "github.com/i474232898/assistant-api-facade/internal/api/http"
	"github.com/i474232898/assistant-api-facade/internal/config"
	"github.com/i474232898/assistant-api-facade/internal/external"
	"github.com/i474232898/assistant-api-facade/internal/pairing"
	"github.com/i474232898/assistant-api-facade/internal/providers"
	"github.com/i474232898/assistant-api-facade/internal/scheduler"
	"github.com/i474232898/assistant-api-facade/internal/store"
	"github.com/i474232898/assistant-api-facade/internal/transport"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	// Load configuration.
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Shared HTTP client and session for outbound provider calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTP.Timeout,
	}
	session := transport.NewSession(transport.Config{
		Client: httpClient,
		Backoff: transport.BackoffConfig{
			MaxRetries:      cfg.HTTP.MaxRetries,
			InitialInterval: 500 * time.Millisecond,
			MaxInterval:     5 * time.Second,
		},
		MaxBodyBytes: cfg.HTTP.MaxBodyBytes,
	})

	// Federated fallback is only wired when an intermediary is configured.
	var fallback external.FederatedKnowledge
	if cfg.Federated.URL != "" {
		fallback = providers.NewFederatedClient(session, cfg.Federated.URL)
	}

	manager := external.NewManager(external.Settings{
		UnitSystem:   cfg.SystemUnit,
		WolframKey:   cfg.Microservices.WolframKey,
		OWMKey:       cfg.Microservices.OWMKey,
		WeatherURL:   cfg.Endpoints.Weather,
		KnowledgeURL: cfg.Endpoints.Knowledge,
	}, session, providers.NewGeocoder(cfg.Microservices.GeocoderKey), fallback)

	// Pairing codes with expiry sweeps.
	registry := pairing.NewRegistry(store.NewMemoryStore(cfg.Pairing.MaxActive), cfg.Pairing.TTL)

	sched := scheduler.New(cfg.Pairing.SweepInterval, registry)
	if err := sched.Start(); err != nil {
		log.Fatalf("failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	// Basic app configuration
	app := fiber.New(fiber.Config{
		AppName:               "assistant-api-facade",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          cfg.HTTP.Timeout + 10*time.Second,
		ErrorHandler:          httpapi.ErrorHandler,
	})

	// Global middleware
	app.Use(logger.New())
	app.Use(recover.New())

	// API routes.
	httpapi.RegisterRoutes(app, manager, registry)

	go func() {
		log.Printf("INFO: listening on :%s", cfg.Port)
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
