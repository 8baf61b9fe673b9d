package handler

import (
	"net/http"

	"reseller-hub/internal/model"
	"reseller-hub/internal/service"
	"reseller-hub/pkg/logger"
)

// FulfillmentHandler handles fulfillment platform session and distribution requests
type FulfillmentHandler struct {
	fulfillment *service.FulfillmentClient
	logger      *logger.Logger
}

// NewFulfillmentHandler creates a new fulfillment handler
func NewFulfillmentHandler(fulfillment *service.FulfillmentClient, log *logger.Logger) *FulfillmentHandler {
	return &FulfillmentHandler{
		fulfillment: fulfillment,
		logger:      log,
	}
}

// Connect handles POST /api/v1/fulfillment/connect
func (h *FulfillmentHandler) Connect(w http.ResponseWriter, r *http.Request) {
	result, err := h.fulfillment.Connect(r.Context())
	if err != nil {
		h.logger.Error("Failed to connect to fulfillment platform", "error", err)
		sendServiceError(w, err)
		return
	}

	sendSuccessResponse(w, http.StatusOK, result.Message, result)
}

// Disconnect handles POST /api/v1/fulfillment/disconnect
func (h *FulfillmentHandler) Disconnect(w http.ResponseWriter, r *http.Request) {
	if err := h.fulfillment.Disconnect(r.Context()); err != nil {
		sendServiceError(w, err)
		return
	}

	sendSuccessResponse(w, http.StatusOK, "Disconnected", h.fulfillment.ConnectionStatus())
}

// Status handles GET /api/v1/fulfillment/status
func (h *FulfillmentHandler) Status(w http.ResponseWriter, r *http.Request) {
	data := map[string]any{
		"session":    h.fulfillment.ConnectionStatus(),
		"statistics": h.fulfillment.Statistics(r.Context()),
		"logs":       h.fulfillment.Logs(),
	}
	sendSuccessResponse(w, http.StatusOK, "Fulfillment status retrieved", data)
}

// DisableSimulation handles DELETE /api/v1/fulfillment/simulation
func (h *FulfillmentHandler) DisableSimulation(w http.ResponseWriter, r *http.Request) {
	if err := h.fulfillment.DisableSimulationMode(r.Context()); err != nil {
		sendServiceError(w, err)
		return
	}

	sendSuccessResponse(w, http.StatusOK, "Simulation mode disabled", nil)
}

// Distribute handles POST /api/v1/fulfillment/distribute
func (h *FulfillmentHandler) Distribute(w http.ResponseWriter, r *http.Request) {
	var req model.DistributionRequest
	if err := decodeJSON(r, &req); err != nil {
		sendServiceError(w, err)
		return
	}

	result, err := h.fulfillment.Distribute(r.Context(), req)
	if err != nil {
		h.logger.WithRecipient(req.RecipientID).Error("Distribution failed", "error", err)
		sendServiceError(w, err)
		return
	}

	sendSuccessResponse(w, http.StatusOK, result.Message, result)
}
