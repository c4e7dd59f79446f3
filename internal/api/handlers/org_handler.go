package handlers

import (
	"net/http"

	apiContext "postdeck/internal/api/context"
	"postdeck/internal/engine/membership"
	"postdeck/internal/pkg/errors"
)

type OrgHandler struct {
	members *membership.Service
}

func NewOrgHandler(members *membership.Service) *OrgHandler {
	return &OrgHandler{members: members}
}

type CreateOrgRequest struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description" validate:"max=500"`
	LogoURL     string `json:"logoUrl" validate:"omitempty,url"`
}

func (h *OrgHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims, _ := apiContext.ClaimsFrom(r.Context())

	var req CreateOrgRequest
	if err := decode(w, r, &req); err != nil {
		errors.Write(w, r, err)
		return
	}

	org, err := h.members.CreateOrganization(r.Context(), claims.UserID, membership.CreateOrganizationInput{
		Name:        req.Name,
		Description: req.Description,
		LogoURL:     req.LogoURL,
	})
	if err != nil {
		errors.Write(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, org)
}

func (h *OrgHandler) List(w http.ResponseWriter, r *http.Request) {
	claims, _ := apiContext.ClaimsFrom(r.Context())

	orgs, err := h.members.ListForUser(r.Context(), claims.UserID)
	if err != nil {
		errors.Write(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"organizations": orgs})
}
