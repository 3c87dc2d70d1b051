package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"gridengine/internal/grouplog"
)

// NotificationHandler exposes the engine's event log over HTTP.
//
// Endpoints:
// - GET /api/v1/notifications                   - recent events, newest first
// - GET /api/v1/notifications?types=tp,sl&limit=50 - filtered
// - DELETE /api/v1/notifications                - clear the in-memory log
type NotificationHandler struct {
	history *grouplog.HistoryWriter
}

func NewNotificationHandler(history *grouplog.HistoryWriter) *NotificationHandler {
	return &NotificationHandler{history: history}
}

// GetNotificationsResponse is the list response body.
type GetNotificationsResponse struct {
	Events []NotificationDTO `json:"events"`
	Total  int               `json:"total"`
}

// NotificationDTO is one event as rendered over the API.
type NotificationDTO struct {
	Timestamp string `json:"timestamp"`
	Symbol    string `json:"symbol"`
	GroupID   uint32 `json:"group_id"`
	Type      string `json:"type"`
	Severity  string `json:"severity"`
	PairIndex *int32 `json:"pair_index,omitempty"`
	Message   string `json:"message"`
}

// GetNotifications returns recent events, filtered by type and capped
// by limit (default 100, max 500).
//
// GET /api/v1/notifications?types=tp,sl,hedge_open&limit=50
func (h *NotificationHandler) GetNotifications(w http.ResponseWriter, r *http.Request) {
	var types []string
	if raw := r.URL.Query().Get("types"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				types = append(types, trimmed)
			}
		}
	}

	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
			if limit > 500 {
				limit = 500
			}
		}
	}

	events := h.history.List(types, limit)
	dtos := make([]NotificationDTO, 0, len(events))
	for _, e := range events {
		dtos = append(dtos, NotificationDTO{
			Timestamp: e.Timestamp.Format("2006-01-02T15:04:05Z07:00"),
			Symbol:    e.Symbol,
			GroupID:   e.GroupID,
			Type:      string(e.Type),
			Severity:  e.Severity,
			PairIndex: e.PairIndex,
			Message:   e.Message,
		})
	}

	respondWithJSON(w, http.StatusOK, GetNotificationsResponse{Events: dtos, Total: len(dtos)})
}

// ClearNotifications discards the in-memory event log.
//
// DELETE /api/v1/notifications
func (h *NotificationHandler) ClearNotifications(w http.ResponseWriter, r *http.Request) {
	h.history.Clear()
	respondWithJSON(w, http.StatusOK, SuccessResponse{Message: "notifications cleared"})
}
