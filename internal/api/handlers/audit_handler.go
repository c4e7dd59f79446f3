package handlers

import (
	"net/http"

	"postdeck/internal/api/middleware"
	"postdeck/internal/pkg/errors"
	"postdeck/internal/platform/audit"
)

type AuditHandler struct {
	audit *audit.Logger
}

func NewAuditHandler(auditLogger *audit.Logger) *AuditHandler {
	return &AuditHandler{audit: auditLogger}
}

func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	logs, err := h.audit.List(r.Context(), middleware.OrganizationID(r), queryInt(r, "limit"))
	if err != nil {
		errors.Write(w, r, errors.Internal("Failed to list audit logs", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"auditLogs": logs})
}
