// Forte Clube Payments Service
//
// This is the main entry point for the membership payments and event
// registration service. It wires up all dependencies, starts the background
// reconciliation sweep and the HTTP server.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/forteclube/forte-payments/config"
	"github.com/forteclube/forte-payments/internal/adapters/cache"
	"github.com/forteclube/forte-payments/internal/adapters/mercadopago"
	"github.com/forteclube/forte-payments/internal/adapters/storage"
	"github.com/forteclube/forte-payments/internal/api"
	"github.com/forteclube/forte-payments/internal/core/domain"
	"github.com/forteclube/forte-payments/internal/core/service"
)

func main() {
	log.Println("Starting Forte Clube Payments Service...")

	// Load configuration
	cfg := config.Load()
	log.Printf("Configuration loaded: Port=%s, DB=%s@%s", cfg.Server.Port, cfg.Database.Name, cfg.Database.Host)

	if err := validateConfig(cfg); err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	// Wire up dependencies (manual dependency injection)
	//
	// Infrastructure Layer
	db, err := storage.Open(cfg.Database.User, cfg.Database.Password,
		cfg.Database.Host, cfg.Database.Port, cfg.Database.Name)
	if err != nil {
		log.Fatalf("Database error: %v", err)
	}

	members := storage.NewMemberRepository(db)
	events := storage.NewEventRepository(db)
	registrations := storage.NewRegistrationRepository(db)
	subscriptions := storage.NewSubscriptionRepository(db)
	payments := storage.NewPaymentRepository(db)
	webhookEvents := storage.NewWebhookEventRepository(db)
	ledger := storage.NewLedgerRepository(db)
	reporting := storage.NewReportingRepository(db)

	reportCache := cache.NewReportCache(cfg.Cache.Addr, cfg.Cache.Password, cfg.Cache.DB)
	gateway, err := mercadopago.NewAdapter(cfg.Gateway.AccessToken, cfg.Gateway.NotifyBaseURL)
	if err != nil {
		log.Fatalf("Gateway error: %v", err)
	}
	validator := mercadopago.NewWebhookValidator()

	// Service Layer
	lifecycle := service.NewLifecycleManager(events)
	registrationService := service.NewRegistrationService(members, registrations, events, gateway, lifecycle)
	subscriptionService := service.NewSubscriptionService(members, subscriptions, gateway, cfg.Billing.MonthlyDuesCents)
	webhookService := service.NewWebhookService(webhookEvents, payments, registrations, subscriptions, ledger)
	reportingService := service.NewReportingService(reporting, ledger, reportCache)

	// Background reconciliation sweep
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if cfg.Sweep.Enabled {
		reparse := func(payload string) (*domain.GatewayEvent, error) {
			return gateway.Normalize(ctx, []byte(payload))
		}
		sweeper := service.NewSweeper(lifecycle, webhookService, payments, reparse, cfg.Sweep.Interval)
		go sweeper.Run(ctx)
	} else {
		log.Println("Reconciliation sweep disabled")
	}

	// API Layer
	handler := api.NewHandler(registrationService, subscriptionService,
		webhookService, reportingService, gateway, validator, cfg.Gateway.WebhookSecret)
	router := api.SetupRouter(handler, cfg.Server.GinMode)

	// Start server in a goroutine
	serverAddr := fmt.Sprintf(":%s", cfg.Server.Port)
	go func() {
		log.Printf("Server listening on %s", serverAddr)
		if err := router.Run(serverAddr); err != nil {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
}

// validateConfig checks that required configuration values are set.
func validateConfig(cfg *config.Config) error {
	if cfg.Gateway.AccessToken == "" {
		return fmt.Errorf("MP_ACCESS_TOKEN is required")
	}
	if cfg.Gateway.WebhookSecret == "" {
		log.Println("Warning: MP_WEBHOOK_SECRET not set, webhook signatures will not be validated")
	}
	if cfg.Database.Password == "" {
		log.Println("Warning: DB_PASSWORD not set")
	}
	return nil
}
