package handler

import (
	"net/http"

	"reseller-hub/internal/model"
	"reseller-hub/internal/service"
	"reseller-hub/pkg/logger"
)

// ConfigHandler exposes the provider configuration
type ConfigHandler struct {
	settings *service.SettingsStore
	logger   *logger.Logger
}

// NewConfigHandler creates a new config handler
func NewConfigHandler(settings *service.SettingsStore, log *logger.Logger) *ConfigHandler {
	return &ConfigHandler{
		settings: settings,
		logger:   log,
	}
}

// GetConfig handles GET /api/v1/config
func (h *ConfigHandler) GetConfig(w http.ResponseWriter, r *http.Request) {
	sendSuccessResponse(w, http.StatusOK, "Configuration retrieved", h.settings.Get().Masked())
}

// UpdateConfig handles PUT /api/v1/config
func (h *ConfigHandler) UpdateConfig(w http.ResponseWriter, r *http.Request) {
	var patch model.ProviderConfigPatch
	if err := decodeJSON(r, &patch); err != nil {
		sendServiceError(w, err)
		return
	}

	cfg, err := h.settings.Save(r.Context(), patch)
	if err != nil {
		h.logger.Error("Failed to save configuration", "error", err)
		sendServiceError(w, err)
		return
	}

	sendSuccessResponse(w, http.StatusOK, "Configuration saved", cfg.Masked())
}

// ResetConfig handles POST /api/v1/config/reset
func (h *ConfigHandler) ResetConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.settings.Reset(r.Context())
	if err != nil {
		h.logger.Error("Failed to reset configuration", "error", err)
		sendServiceError(w, err)
		return
	}

	sendSuccessResponse(w, http.StatusOK, "Configuration reset to defaults", cfg.Masked())
}
