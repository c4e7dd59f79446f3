package handlers

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"
	apiContext "postdeck/internal/api/context"
	"postdeck/internal/api/middleware"
	"postdeck/internal/engine/oauth"
	"postdeck/internal/pkg/errors"
	"postdeck/internal/platform/models"
)

type OAuthHandler struct {
	flow         *oauth.Flow
	dashboardURL string
}

func NewOAuthHandler(flow *oauth.Flow, dashboardURL string) *OAuthHandler {
	return &OAuthHandler{flow: flow, dashboardURL: dashboardURL}
}

// Initiate starts linking platform to the organization named by ?organizationId.
// With ?redirect=1 the browser is sent straight to the provider.
func (h *OAuthHandler) Initiate(platform models.Platform) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, _ := apiContext.ClaimsFrom(r.Context())

		authURL, err := h.flow.Initiate(r.Context(), platform, middleware.OrganizationID(r), claims.UserID)
		if err != nil {
			errors.Write(w, r, err)
			return
		}

		if r.URL.Query().Get("redirect") == "1" {
			http.Redirect(w, r, authURL, http.StatusFound)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"authUrl": authURL})
	}
}

// Callback is the provider's redirect target. It always answers with a redirect
// to the dashboard carrying either success or error parameters.
func (h *OAuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	raw := apiContext.Param(r, "platform")
	q := r.URL.Query()

	platform, ok := models.ParsePlatform(raw)
	if !ok {
		h.redirect(w, r, url.Values{"error": {"unsupported_platform"}, "platform": {strings.ToLower(raw)}})
		return
	}

	if providerErr := q.Get("error"); providerErr != "" {
		log.Warn().Str("platform", string(platform)).Str("error", providerErr).
			Str("description", q.Get("error_description")).Msg("oauth provider returned an error")
		h.redirect(w, r, url.Values{"error": {providerErr}, "platform": {platform.Slug()}})
		return
	}

	ch, err := h.flow.Callback(r.Context(), platform, q.Get("code"), q.Get("state"))
	if err != nil {
		code := "link_failed"
		if stage := oauth.StageOf(err); stage != "" {
			code = strings.ToLower(string(stage))
		} else {
			log.Error().Err(err).Str("platform", string(platform)).Msg("oauth callback failed")
		}
		h.redirect(w, r, url.Values{"error": {code}, "platform": {platform.Slug()}})
		return
	}

	h.redirect(w, r, url.Values{
		"success":   {platform.Slug() + "_connected"},
		"channelId": {ch.ID},
	})
}

func (h *OAuthHandler) redirect(w http.ResponseWriter, r *http.Request, params url.Values) {
	target, err := url.Parse(h.dashboardURL)
	if err != nil {
		errors.Write(w, r, errors.Internal("Invalid dashboard URL", err))
		return
	}
	q := target.Query()
	for k, vs := range params {
		q[k] = vs
	}
	target.RawQuery = q.Encode()
	http.Redirect(w, r, target.String(), http.StatusFound)
}
