package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"reseller-hub/internal/config"
	"reseller-hub/internal/handler"
	"reseller-hub/internal/middleware"
	"reseller-hub/internal/repository"
	"reseller-hub/internal/service"
	"reseller-hub/pkg/logger"
)

func main() {
	// Create .env from .env.example if not exists
	if err := ensureEnvFile(); err != nil {
		log.Printf("Warning: Failed to create .env file: %v", err)
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	appLogger := logger.New(cfg.LogLevel)
	appLogger.Info("Starting reseller hub", "store", cfg.Store.Backend)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Open the key-value store
	store, err := repository.Open(ctx, cfg.Store)
	if err != nil {
		appLogger.Error("Failed to open store", "error", err)
		log.Fatalf("Failed to open store: %v", err)
	}
	defer store.Close()

	// Provider configuration and PIX client
	settings := service.NewSettingsStore(store, appLogger)
	providerCfg := settings.Load(ctx)

	pixClient := service.NewPixClient(cfg.Inter, cfg.Foursend, providerCfg, appLogger)
	settings.OnChange(pixClient.UpdateSettings)
	pixClient.StartRetention(ctx)

	// Fulfillment and sales
	fulfillment := service.NewFulfillmentClient(ctx, cfg.Fulfillment, store, appLogger)
	sales := service.NewSalesBook(store, nil, appLogger)

	// Shipment observers
	callbacks := service.NewCallbackDispatcher(settings, appLogger)
	observers := []service.ShipmentObserver{callbacks}

	var (
		notifier      *service.WhatsAppNotifier
		notifierState handler.StatusReporter
		payments      handler.PaymentNotifier
		groupsHandler *handler.GroupsHandler
	)
	if cfg.Notifier.Enabled {
		notifier, err = service.NewWhatsAppNotifier(ctx, cfg.Notifier, appLogger)
		if err != nil {
			appLogger.Error("Failed to initialize WhatsApp notifier", "error", err)
			log.Fatalf("Failed to initialize WhatsApp notifier: %v", err)
		}
		if err := notifier.Connect(ctx); err != nil {
			appLogger.Error("Failed to connect to WhatsApp", "error", err)
			log.Fatalf("Failed to connect to WhatsApp: %v\nPlease scan QR code first", err)
		}
		defer notifier.Disconnect()

		observers = append(observers, notifier)
		notifierState = notifier
		payments = notifier
		groupsHandler = handler.NewGroupsHandler(notifier, appLogger)
	}

	tracker := service.NewShipmentTracker(ctx, store, fulfillment, sales, appLogger,
		service.WithConfirmationDelay(cfg.Fulfillment.ConfirmationDelay),
		service.WithObservers(observers...),
	)

	// Setup HTTP routes
	routes := handler.Routes{
		Health:      handler.NewHealthHandler(fulfillment, notifierState, cfg, appLogger),
		Config:      handler.NewConfigHandler(settings, appLogger),
		Pix:         handler.NewPixHandler(pixClient, appLogger),
		Webhook:     handler.NewWebhookHandler(pixClient, payments, appLogger),
		Fulfillment: handler.NewFulfillmentHandler(fulfillment, appLogger),
		Shipments:   handler.NewShipmentHandler(tracker, sales, appLogger),
		Sales:       handler.NewSalesHandler(sales, appLogger),
		Groups:      groupsHandler,
	}
	mux := http.NewServeMux()
	routes.Register(mux, middleware.NewAuthMiddleware(cfg.Security.APIKey, appLogger))

	// Create HTTP server. Shipment processing includes the simulated
	// distribution delay plus the confirmation delay.
	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		appLogger.Info("HTTP server starting", "address", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Error("HTTP server error", "error", err)
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	appLogger.Info("Reseller hub started successfully",
		"address", addr,
		"notifier_enabled", cfg.Notifier.Enabled,
		"simulation_mode", fulfillment.IsSimulationMode(ctx),
	)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")
	stop()

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("Server forced to shutdown", "error", err)
	}
	callbacks.Wait()

	appLogger.Info("Server stopped gracefully")
}

// ensureEnvFile creates .env from .env.example if .env doesn't exist
func ensureEnvFile() error {
	if _, err := os.Stat(".env"); err == nil {
		return nil
	}

	if _, err := os.Stat(".env.example"); os.IsNotExist(err) {
		return fmt.Errorf(".env.example not found")
	}

	source, err := os.Open(".env.example")
	if err != nil {
		return fmt.Errorf("failed to open .env.example: %w", err)
	}
	defer source.Close()

	destination, err := os.Create(".env")
	if err != nil {
		return fmt.Errorf("failed to create .env: %w", err)
	}
	defer destination.Close()

	if _, err := io.Copy(destination, source); err != nil {
		return fmt.Errorf("failed to copy .env.example to .env: %w", err)
	}

	log.Println("Created .env file from .env.example")
	return nil
}
