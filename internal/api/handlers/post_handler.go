package handlers

import (
	"net/http"

	apiContext "postdeck/internal/api/context"
	"postdeck/internal/api/middleware"
	"postdeck/internal/engine/posts"
	"postdeck/internal/pkg/errors"
)

type PostHandler struct {
	posts *posts.Service
}

func NewPostHandler(postSvc *posts.Service) *PostHandler {
	return &PostHandler{posts: postSvc}
}

type AssetRequest struct {
	URL       string `json:"url" validate:"required,url"`
	MediaType string `json:"mediaType" validate:"omitempty,oneof=IMAGE VIDEO image video"`
}

type CreatePostRequest struct {
	ChannelID   string         `json:"channelId" validate:"required"`
	Type        string         `json:"type" validate:"required"`
	Caption     string         `json:"caption" validate:"max=5000"`
	ScheduledAt *int64         `json:"scheduledAt"`
	Assets      []AssetRequest `json:"assets" validate:"max=20,dive"`
}

func (h *PostHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims, _ := apiContext.ClaimsFrom(r.Context())

	var req CreatePostRequest
	if err := decode(w, r, &req); err != nil {
		errors.Write(w, r, err)
		return
	}

	assets := make([]posts.AssetInput, 0, len(req.Assets))
	for _, a := range req.Assets {
		assets = append(assets, posts.AssetInput{URL: a.URL, MediaType: a.MediaType})
	}

	post, err := h.posts.Create(r.Context(), posts.CreateInput{
		OrganizationID: middleware.OrganizationID(r),
		ChannelID:      req.ChannelID,
		Type:           req.Type,
		Caption:        req.Caption,
		ScheduledAt:    req.ScheduledAt,
		Assets:         assets,
		CreatedBy:      claims.UserID,
	})
	if err != nil {
		errors.Write(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, post)
}

func (h *PostHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	list, err := h.posts.List(r.Context(), posts.ListInput{
		OrganizationID: middleware.OrganizationID(r),
		Status:         q.Get("status"),
		Type:           q.Get("type"),
		ChannelID:      q.Get("channelId"),
		Limit:          queryInt(r, "limit"),
	})
	if err != nil {
		errors.Write(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"posts": list})
}

func (h *PostHandler) Publish(w http.ResponseWriter, r *http.Request) {
	post, err := h.posts.Publish(r.Context(), middleware.OrganizationID(r), apiContext.Param(r, "post_id"))
	if err != nil {
		errors.Write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

func (h *PostHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	post, err := h.posts.Cancel(r.Context(), middleware.OrganizationID(r), apiContext.Param(r, "post_id"))
	if err != nil {
		errors.Write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}
