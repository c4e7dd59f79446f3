package handlers

import (
	"net/http"

	apiContext "postdeck/internal/api/context"
	"postdeck/internal/engine/membership"
	"postdeck/internal/pkg/errors"
	"postdeck/internal/platform/config"
	"postdeck/internal/platform/models"
)

type AuthHandler struct {
	members *membership.Service
	session config.SessionConfig
	maxAge  int
	secure  bool
}

func NewAuthHandler(members *membership.Service, cfg *config.Config) *AuthHandler {
	return &AuthHandler{
		members: members,
		session: cfg.Session,
		maxAge:  int(cfg.JWT.SessionTTL.Seconds()),
		secure:  cfg.IsProduction(),
	}
}

func (h *AuthHandler) setCookie(w http.ResponseWriter, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.session.CookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

type RegisterRequest struct {
	Email            string `json:"email" validate:"required,email,max=254"`
	Password         string `json:"password" validate:"required,min=8,max=72"`
	FirstName        string `json:"firstName" validate:"max=100"`
	LastName         string `json:"lastName" validate:"max=100"`
	OrganizationName string `json:"organizationName" validate:"required,max=100"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decode(w, r, &req); err != nil {
		errors.Write(w, r, err)
		return
	}

	res, err := h.members.Register(r.Context(), membership.RegisterInput{
		Email:            req.Email,
		Password:         req.Password,
		FirstName:        req.FirstName,
		LastName:         req.LastName,
		OrganizationName: req.OrganizationName,
	})
	if err != nil {
		errors.Write(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, res)
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	User  *models.User `json:"user"`
	Token string       `json:"token"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decode(w, r, &req); err != nil {
		errors.Write(w, r, err)
		return
	}

	user, token, err := h.members.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		errors.Write(w, r, err)
		return
	}

	h.setCookie(w, token, h.maxAge)
	writeJSON(w, http.StatusOK, LoginResponse{User: user, Token: token})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.setCookie(w, "", -1)
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

type SessionResponse struct {
	User          *models.User                 `json:"user"`
	Organizations []models.OrganizationSummary `json:"organizations"`
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := apiContext.ClaimsFrom(r.Context())
	if !ok {
		errors.Write(w, r, errors.Unauthorized("Authentication required"))
		return
	}

	user, orgs, err := h.members.Session(r.Context(), claims.UserID)
	if err != nil {
		errors.Write(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, SessionResponse{User: user, Organizations: orgs})
}
