package handler

import (
	"net/http"

	"reseller-hub/internal/model"
	"reseller-hub/internal/service"
	"reseller-hub/pkg/logger"
)

// SalesHandler handles sales book requests
type SalesHandler struct {
	sales  *service.SalesBook
	logger *logger.Logger
}

// NewSalesHandler creates a new sales handler
func NewSalesHandler(sales *service.SalesBook, log *logger.Logger) *SalesHandler {
	return &SalesHandler{
		sales:  sales,
		logger: log,
	}
}

// List handles GET /api/v1/sales
func (h *SalesHandler) List(w http.ResponseWriter, r *http.Request) {
	sales, err := h.sales.List(r.Context())
	if err != nil {
		sendServiceError(w, err)
		return
	}
	sendSuccessResponse(w, http.StatusOK, "Sales retrieved", sales)
}

// Create handles POST /api/v1/sales
func (h *SalesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in model.NewSale
	if err := decodeJSON(r, &in); err != nil {
		sendServiceError(w, err)
		return
	}

	sale, err := h.sales.Add(r.Context(), in)
	if err != nil {
		h.logger.WithRecipient(in.RecipientID).Error("Failed to record sale", "error", err)
		sendServiceError(w, err)
		return
	}

	sendSuccessResponse(w, http.StatusCreated, "Sale recorded", sale)
}

// MarkPaid handles POST /api/v1/sales/{id}/paid
func (h *SalesHandler) MarkPaid(w http.ResponseWriter, r *http.Request) {
	sale, err := h.sales.MarkPaid(r.Context(), r.PathValue("id"))
	if err != nil {
		sendServiceError(w, err)
		return
	}
	sendSuccessResponse(w, http.StatusOK, "Sale marked as paid", sale)
}
