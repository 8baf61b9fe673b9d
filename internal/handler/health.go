package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"reseller-hub/internal/config"
	"reseller-hub/internal/service"
	"reseller-hub/pkg/logger"
)

// StatusReporter reports the state of an optional component
type StatusReporter interface {
	Status() map[string]any
}

// HealthHandler handles health check requests
type HealthHandler struct {
	fulfillment *service.FulfillmentClient
	notifier    StatusReporter
	config      *config.Config
	logger      *logger.Logger
	startTime   time.Time
}

// NewHealthHandler creates a new health handler. notifier may be nil.
func NewHealthHandler(fulfillment *service.FulfillmentClient, notifier StatusReporter, cfg *config.Config, log *logger.Logger) *HealthHandler {
	return &HealthHandler{
		fulfillment: fulfillment,
		notifier:    notifier,
		config:      cfg,
		logger:      log,
		startTime:   time.Now(),
	}
}

// CheckHealth handles GET /health
func (h *HealthHandler) CheckHealth(w http.ResponseWriter, r *http.Request) {
	notifier := map[string]any{"enabled": false}
	if h.notifier != nil {
		notifier = h.notifier.Status()
		notifier["enabled"] = true
	}

	response := map[string]any{
		"status": "healthy",
		"store":  h.config.Store.Backend,
		"fulfillment": map[string]any{
			"connected":      h.fulfillment.ConnectionStatus().IsConnected,
			"simulationMode": h.fulfillment.IsSimulationMode(r.Context()),
		},
		"notifier":  notifier,
		"uptime":    time.Since(h.startTime).String(),
		"timestamp": time.Now().Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}
