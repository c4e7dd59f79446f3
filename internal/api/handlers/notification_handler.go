package handlers

import (
	"net/http"

	apiContext "postdeck/internal/api/context"
	"postdeck/internal/api/middleware"
	"postdeck/internal/engine/notifications"
	"postdeck/internal/pkg/errors"
)

type NotificationHandler struct {
	notifications *notifications.Service
}

func NewNotificationHandler(notificationSvc *notifications.Service) *NotificationHandler {
	return &NotificationHandler{notifications: notificationSvc}
}

func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	unread := r.URL.Query().Get("unread")
	list, err := h.notifications.List(r.Context(), middleware.OrganizationID(r), unread == "1" || unread == "true", queryInt(r, "limit"))
	if err != nil {
		errors.Write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"notifications": list})
}

func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	if err := h.notifications.MarkRead(r.Context(), middleware.OrganizationID(r), apiContext.Param(r, "notification_id")); err != nil {
		errors.Write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	n, err := h.notifications.MarkAllRead(r.Context(), middleware.OrganizationID(r))
	if err != nil {
		errors.Write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"updated": n})
}
