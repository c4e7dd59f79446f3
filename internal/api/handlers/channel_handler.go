package handlers

import (
	"net/http"
	"strings"

	apiContext "postdeck/internal/api/context"
	"postdeck/internal/api/middleware"
	"postdeck/internal/engine/channels"
	"postdeck/internal/pkg/errors"
	"postdeck/internal/platform/models"
)

type ChannelHandler struct {
	channels *channels.Service
}

func NewChannelHandler(channelSvc *channels.Service) *ChannelHandler {
	return &ChannelHandler{channels: channelSvc}
}

// List accepts ?platform=FACEBOOK&platform=TIKTOK or ?platforms=FACEBOOK,TIKTOK.
func (h *ChannelHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	raw := append(q["platform"], q["platforms"]...)

	list, err := h.channels.ListActive(r.Context(), middleware.OrganizationID(r), channels.ParsePlatforms(raw))
	if err != nil {
		errors.Write(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"channels": list})
}

type UpsertChannelRequest struct {
	Platform       string `json:"platform" validate:"required"`
	ExternalID     string `json:"externalId" validate:"required,max=255"`
	Name           string `json:"name" validate:"max=255"`
	AccessToken    string `json:"accessToken"`
	RefreshToken   string `json:"refreshToken"`
	TokenExpiresAt *int64 `json:"tokenExpiresAt"`
}

func (h *ChannelHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	var req UpsertChannelRequest
	if err := decode(w, r, &req); err != nil {
		errors.Write(w, r, err)
		return
	}

	platform, ok := models.ParsePlatform(req.Platform)
	if !ok {
		errors.Write(w, r, errors.BadRequest("platform must be one of FACEBOOK, INSTAGRAM, TIKTOK"))
		return
	}

	ch, err := h.channels.Upsert(r.Context(), channels.UpsertInput{
		OrganizationID: middleware.OrganizationID(r),
		Platform:       platform,
		ExternalID:     strings.TrimSpace(req.ExternalID),
		Name:           req.Name,
		AccessToken:    req.AccessToken,
		RefreshToken:   req.RefreshToken,
		TokenExpiresAt: req.TokenExpiresAt,
	})
	if err != nil {
		errors.Write(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, ch)
}

func (h *ChannelHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	if err := h.channels.Deactivate(r.Context(), middleware.OrganizationID(r), apiContext.Param(r, "channel_id")); err != nil {
		errors.Write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *ChannelHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.channels.Delete(r.Context(), middleware.OrganizationID(r), apiContext.Param(r, "channel_id")); err != nil {
		errors.Write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *ChannelHandler) Diagnostics(w http.ResponseWriter, r *http.Request) {
	d, err := h.channels.Diagnostics(r.Context(), middleware.OrganizationID(r), apiContext.Param(r, "channel_id"))
	if err != nil {
		errors.Write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// Reset disconnects a channel by clearing its tokens. The row is kept so a
// later relink updates it in place.
func (h *ChannelHandler) Reset(w http.ResponseWriter, r *http.Request) {
	ch, err := h.channels.Reset(r.Context(), middleware.OrganizationID(r), apiContext.Param(r, "channel_id"))
	if err != nil {
		errors.Write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ch)
}
