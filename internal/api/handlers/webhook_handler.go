package handlers

import (
	"crypto/subtle"
	"io"
	"net/http"

	"postdeck/internal/engine/webhooks"
	"postdeck/internal/pkg/errors"
	"postdeck/internal/platform/config"
)

// WebhookHandler receives platform event callbacks.
type WebhookHandler struct {
	dispatcher *webhooks.Dispatcher
	config     config.WebhooksConfig
}

func NewWebhookHandler(dispatcher *webhooks.Dispatcher, cfg config.WebhooksConfig) *WebhookHandler {
	return &WebhookHandler{dispatcher: dispatcher, config: cfg}
}

// Verify answers the subscription handshake by echoing hub.challenge.
func (h *WebhookHandler) Verify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	token := q.Get("hub.verify_token")

	if q.Get("hub.mode") != "subscribe" || h.config.VerifyToken == "" ||
		subtle.ConstantTimeCompare([]byte(token), []byte(h.config.VerifyToken)) != 1 {
		errors.Write(w, r, errors.Forbidden("Webhook verification failed"))
		return
	}

	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, q.Get("hub.challenge"))
}

func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		errors.Write(w, r, errors.BadRequest("Invalid request body"))
		return
	}

	if h.config.AppSecret != "" && !webhooks.Verify(h.config.AppSecret, body, r.Header.Get(webhooks.SignatureHeader)) {
		errors.Write(w, r, errors.Unauthorized("Invalid webhook signature"))
		return
	}

	env, platform, err := webhooks.Decode(body)
	if err != nil {
		errors.Write(w, r, err)
		return
	}

	if _, err := h.dispatcher.Dispatch(r.Context(), platform, env); err != nil {
		errors.Write(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, "EVENT_RECEIVED")
}
