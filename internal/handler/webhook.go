package handler

import (
	"context"
	"io"
	"net/http"

	"reseller-hub/internal/model"
	"reseller-hub/internal/service"
	"reseller-hub/pkg/logger"
)

// PaymentNotifier is told about settled PIX payments
type PaymentNotifier interface {
	NotifyPayments(ctx context.Context, settled []model.SettledPix) error
}

// WebhookHandler receives inbound provider notifications
type WebhookHandler struct {
	pix      *service.PixClient
	notifier PaymentNotifier
	logger   *logger.Logger
}

// NewWebhookHandler creates a new webhook handler. notifier may be nil.
func NewWebhookHandler(pix *service.PixClient, notifier PaymentNotifier, log *logger.Logger) *WebhookHandler {
	return &WebhookHandler{
		pix:      pix,
		notifier: notifier,
		logger:   log,
	}
}

// ReceivePixNotification handles POST /api/v1/pix/notifications
func (h *WebhookHandler) ReceivePixNotification(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		sendErrorResponse(w, "ERR_INVALID_PARAMETER", "Failed to read request body", http.StatusBadRequest)
		return
	}

	if err := h.pix.VerifyWebhookSignature(payload, r.Header.Get(service.SignatureHeader)); err != nil {
		h.logger.Warn("Rejected PIX notification",
			"remote_addr", r.RemoteAddr,
			"error", err,
		)
		sendServiceError(w, err)
		return
	}

	settled, err := h.pix.HandleWebhookNotification(r.Context(), payload)
	if err != nil {
		sendErrorResponse(w, "ERR_INVALID_PARAMETER", err.Error(), http.StatusBadRequest)
		return
	}

	if h.notifier != nil && len(settled) > 0 {
		if err := h.notifier.NotifyPayments(r.Context(), settled); err != nil {
			h.logger.Warn("Failed to forward payment notification", "error", err)
		}
	}

	sendSuccessResponse(w, http.StatusOK, "Notification processed", map[string]int{"settled": len(settled)})
}
