package handler

import (
	"net/http"

	"reseller-hub/internal/model"
	"reseller-hub/internal/service"
	"reseller-hub/pkg/logger"
)

// PixHandler handles PIX charge and provider setup requests
type PixHandler struct {
	pix    *service.PixClient
	logger *logger.Logger
}

// NewPixHandler creates a new PIX handler
func NewPixHandler(pix *service.PixClient, log *logger.Logger) *PixHandler {
	return &PixHandler{
		pix:    pix,
		logger: log,
	}
}

type createChargeRequest struct {
	model.PaymentRequest
	Provider model.Provider `json:"provider" validate:"omitempty,oneof=inter 4send"`
}

// CreateCharge handles POST /api/v1/pix/charges
func (h *PixHandler) CreateCharge(w http.ResponseWriter, r *http.Request) {
	var req createChargeRequest
	if err := decodeJSON(r, &req); err != nil {
		sendServiceError(w, err)
		return
	}

	charge, err := h.pix.CreatePayment(r.Context(), req.PaymentRequest, req.Provider)
	if err != nil {
		h.logger.Error("Failed to create charge", "error", err, "provider", req.Provider)
		sendServiceError(w, err)
		return
	}

	sendSuccessResponse(w, http.StatusCreated, "Charge created", charge)
}

// GetCharge handles GET /api/v1/pix/charges/{id}
func (h *PixHandler) GetCharge(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	provider := model.Provider(r.URL.Query().Get("provider"))

	charge, err := h.pix.CheckPaymentStatus(r.Context(), id, provider)
	if err != nil {
		h.logger.WithTxID(id).Error("Failed to check charge status", "error", err)
		sendServiceError(w, err)
		return
	}

	sendSuccessResponse(w, http.StatusOK, "Charge status retrieved", charge)
}

// ChargeQRCode handles GET /api/v1/pix/charges/{id}/qrcode?code=
func (h *PixHandler) ChargeQRCode(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if code == "" {
		sendErrorResponse(w, "ERR_MISSING_PARAMETER", "Missing required parameter: code", http.StatusBadRequest)
		return
	}

	png, err := service.EncodeQRCodePNG(code, queryInt(r, "size", 0))
	if err != nil {
		sendServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}

// BuildBRCode handles POST /api/v1/pix/brcode
func (h *PixHandler) BuildBRCode(w http.ResponseWriter, r *http.Request) {
	var in service.BRCodeInput
	if err := decodeJSON(r, &in); err != nil {
		sendServiceError(w, err)
		return
	}

	payload, err := service.BuildStaticBRCode(in)
	if err != nil {
		sendServiceError(w, err)
		return
	}

	sendSuccessResponse(w, http.StatusOK, "BR Code generated", map[string]string{"brCode": payload})
}

// TestConnectivity handles POST /api/v1/pix/connectivity
func (h *PixHandler) TestConnectivity(w http.ResponseWriter, r *http.Request) {
	result := h.pix.TestConnectivity(r.Context())
	sendSuccessResponse(w, http.StatusOK, result.Message, result)
}

type registerWebhookRequest struct {
	WebhookURL string `json:"webhookUrl" validate:"required,url"`
	PixKey     string `json:"pixKey"`
}

// RegisterWebhook handles POST /api/v1/pix/webhook
func (h *PixHandler) RegisterWebhook(w http.ResponseWriter, r *http.Request) {
	var req registerWebhookRequest
	if err := decodeJSON(r, &req); err != nil {
		sendServiceError(w, err)
		return
	}

	pixKey := req.PixKey
	if pixKey == "" {
		pixKey = h.pix.Settings().InterPixKey
	}
	if pixKey == "" {
		sendErrorResponse(w, "ERR_MISSING_PARAMETER", "Missing required parameter: pixKey", http.StatusBadRequest)
		return
	}

	result := h.pix.RegisterWebhook(r.Context(), req.WebhookURL, pixKey)
	sendSuccessResponse(w, http.StatusOK, result.Message, result)
}

// Setup handles POST /api/v1/pix/setup
func (h *PixHandler) Setup(w http.ResponseWriter, r *http.Request) {
	var opts model.SetupOptions
	if err := decodeJSON(r, &opts); err != nil {
		sendServiceError(w, err)
		return
	}

	result := h.pix.SetupPixEnvironment(r.Context(), opts)
	sendSuccessResponse(w, http.StatusOK, result.Message, result)
}

// Logs handles GET /api/v1/pix/logs?provider=&limit=
func (h *PixHandler) Logs(w http.ResponseWriter, r *http.Request) {
	provider := model.Provider(r.URL.Query().Get("provider"))
	entries := h.pix.Logs(provider, queryInt(r, "limit", 0))
	sendSuccessResponse(w, http.StatusOK, "Logs retrieved", entries)
}
