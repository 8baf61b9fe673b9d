package handler

import (
	"net/http"

	"reseller-hub/internal/model"
	"reseller-hub/internal/service"
	"reseller-hub/pkg/logger"
)

// ShipmentHandler handles shipment tracking requests
type ShipmentHandler struct {
	tracker *service.ShipmentTracker
	sales   *service.SalesBook
	logger  *logger.Logger
}

// NewShipmentHandler creates a new shipment handler
func NewShipmentHandler(tracker *service.ShipmentTracker, sales *service.SalesBook, log *logger.Logger) *ShipmentHandler {
	return &ShipmentHandler{
		tracker: tracker,
		sales:   sales,
		logger:  log,
	}
}

// List handles GET /api/v1/shipments
func (h *ShipmentHandler) List(w http.ResponseWriter, r *http.Request) {
	sendSuccessResponse(w, http.StatusOK, "Shipments retrieved", h.tracker.List())
}

// Create handles POST /api/v1/shipments
func (h *ShipmentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in model.NewShipment
	if err := decodeJSON(r, &in); err != nil {
		sendServiceError(w, err)
		return
	}

	record, err := h.tracker.Create(r.Context(), in)
	if err != nil {
		h.logger.WithRecipient(in.RecipientID).Error("Failed to create shipment", "error", err)
		sendServiceError(w, err)
		return
	}

	sendSuccessResponse(w, http.StatusCreated, "Shipment created", record)
}

// Get handles GET /api/v1/shipments/{id}
func (h *ShipmentHandler) Get(w http.ResponseWriter, r *http.Request) {
	record, err := h.tracker.Get(r.PathValue("id"))
	if err != nil {
		sendServiceError(w, err)
		return
	}

	sendSuccessResponse(w, http.StatusOK, "Shipment retrieved", record)
}

// Stats handles GET /api/v1/shipments/stats
func (h *ShipmentHandler) Stats(w http.ResponseWriter, r *http.Request) {
	sendSuccessResponse(w, http.StatusOK, "Shipment statistics retrieved", h.tracker.Stats())
}

// Import handles POST /api/v1/shipments/import
func (h *ShipmentHandler) Import(w http.ResponseWriter, r *http.Request) {
	sales, err := h.sales.List(r.Context())
	if err != nil {
		sendServiceError(w, err)
		return
	}

	imported, err := h.tracker.ImportFromSales(r.Context(), sales)
	if err != nil {
		h.logger.Error("Failed to import shipments from sales", "error", err)
		sendServiceError(w, err)
		return
	}

	sendSuccessResponse(w, http.StatusOK, "Shipments imported", map[string]int{"imported": imported})
}

// Process handles POST /api/v1/shipments/{id}/process
func (h *ShipmentHandler) Process(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	outcome, err := h.tracker.Process(r.Context(), id)
	if err != nil {
		h.logger.WithShipmentID(id).Error("Failed to process shipment", "error", err)
		sendServiceError(w, err)
		return
	}

	sendSuccessResponse(w, http.StatusOK, outcome.Distribution.Message, outcome)
}

type updateShipmentRequest struct {
	Status model.ShipmentStatus `json:"status" validate:"required"`
	model.ShipmentPatch
}

// Update handles PATCH /api/v1/shipments/{id}
func (h *ShipmentHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req updateShipmentRequest
	if err := decodeJSON(r, &req); err != nil {
		sendServiceError(w, err)
		return
	}
	if !req.Status.Valid() {
		sendErrorResponse(w, "ERR_INVALID_PARAMETER", "Unknown shipment status: "+string(req.Status), http.StatusBadRequest)
		return
	}

	record, err := h.tracker.UpdateStatus(r.Context(), r.PathValue("id"), req.Status, req.ShipmentPatch)
	if err != nil {
		sendServiceError(w, err)
		return
	}

	sendSuccessResponse(w, http.StatusOK, "Shipment updated", record)
}
