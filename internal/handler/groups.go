package handler

import (
	"net/http"

	"reseller-hub/internal/service"
	"reseller-hub/pkg/logger"
)

// GroupsHandler lists the notifier account's WhatsApp groups
type GroupsHandler struct {
	notifier *service.WhatsAppNotifier
	logger   *logger.Logger
}

// NewGroupsHandler creates a new groups handler
func NewGroupsHandler(notifier *service.WhatsAppNotifier, log *logger.Logger) *GroupsHandler {
	return &GroupsHandler{
		notifier: notifier,
		logger:   log,
	}
}

// GroupInfo represents group information for API response
type GroupInfo struct {
	JID          string `json:"jid"`
	Name         string `json:"name"`
	Topic        string `json:"topic,omitempty"`
	Participants int    `json:"participants"`
	IsAnnounce   bool   `json:"is_announce"`
}

// ListGroups handles GET /api/v1/notifier/groups
func (h *GroupsHandler) ListGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := h.notifier.JoinedGroups(r.Context())
	if err != nil {
		h.logger.Error("Failed to get joined groups", "error", err)
		sendServiceError(w, err)
		return
	}

	groupsList := make([]GroupInfo, 0, len(groups))
	for _, group := range groups {
		groupsList = append(groupsList, GroupInfo{
			JID:          group.JID.String(),
			Name:         group.Name,
			Topic:        group.Topic,
			Participants: len(group.Participants),
			IsAnnounce:   group.IsAnnounce,
		})
	}

	h.logger.Info("Groups list retrieved", "total", len(groupsList))
	sendSuccessResponse(w, http.StatusOK, "Groups retrieved", groupsList)
}
