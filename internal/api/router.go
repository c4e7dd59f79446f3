package api

import (
	"context"
	"net/http"

	"github.com/go-chi/cors"
	"github.com/julienschmidt/httprouter"
	apiContext "postdeck/internal/api/context"
	"postdeck/internal/api/handlers"
	"postdeck/internal/api/middleware"
	"postdeck/internal/engine/oauth"
	"postdeck/internal/pkg/errors"
	"postdeck/internal/platform/config"
	"postdeck/internal/platform/models"
)

type Dependencies struct {
	AuthHandler         *handlers.AuthHandler
	OrgHandler          *handlers.OrgHandler
	ChannelHandler      *handlers.ChannelHandler
	PostHandler         *handlers.PostHandler
	NotificationHandler *handlers.NotificationHandler
	OAuthHandler        *handlers.OAuthHandler
	WebhookHandler      *handlers.WebhookHandler
	AuditHandler        *handlers.AuditHandler
	HealthHandler       *handlers.HealthHandler
	AuthMiddleware      *middleware.AuthMiddleware
	GateMiddleware      *middleware.GateMiddleware
	RateLimiter         *middleware.RateLimiter
	RateLimits          config.RateLimitConfig
	OAuthFlow           *oauth.Flow
}

func NewRouter(deps *Dependencies) *httprouter.Router {
	router := httprouter.New()
	router.NotFound = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		errors.Write(w, r, errors.NotFound("Route not found"))
	})

	authMid := deps.AuthMiddleware.Handle
	gateMid := deps.GateMiddleware.Handle
	managers := middleware.RequireRole(models.RoleOwner, models.RoleAdmin)
	authLimit := deps.RateLimiter.Limit("auth", deps.RateLimits.AuthPerMinute)
	oauthLimit := deps.RateLimiter.Limit("oauth", deps.RateLimits.OAuthPerMinute)

	router.GET("/healthz", wrap(deps.HealthHandler.Check))

	// Session
	router.POST("/auth/register", chain(deps.AuthHandler.Register, authLimit))
	router.POST("/auth/login", chain(deps.AuthHandler.Login, authLimit))
	router.POST("/auth/logout", wrap(deps.AuthHandler.Logout))
	router.GET("/auth/me", chain(deps.AuthHandler.Me, authMid))

	// Organizations
	router.GET("/organizations", chain(deps.OrgHandler.List, authMid))
	router.POST("/organizations", chain(deps.OrgHandler.Create, authMid))

	// Channels
	router.GET("/organizations/:org_id/channels",
		chain(deps.ChannelHandler.List, authMid, gateMid))
	router.PUT("/organizations/:org_id/channels",
		chain(deps.ChannelHandler.Upsert, authMid, gateMid, managers))
	router.DELETE("/organizations/:org_id/channels/:channel_id",
		chain(deps.ChannelHandler.Delete, authMid, gateMid, managers))
	router.POST("/organizations/:org_id/channels/:channel_id/deactivate",
		chain(deps.ChannelHandler.Deactivate, authMid, gateMid, managers))
	router.GET("/organizations/:org_id/channels/:channel_id/diagnostics",
		chain(deps.ChannelHandler.Diagnostics, authMid, gateMid, managers))
	router.POST("/organizations/:org_id/channels/:channel_id/reset",
		chain(deps.ChannelHandler.Reset, authMid, gateMid, managers))

	// Posts
	router.GET("/organizations/:org_id/posts",
		chain(deps.PostHandler.List, authMid, gateMid))
	router.POST("/organizations/:org_id/posts",
		chain(deps.PostHandler.Create, authMid, gateMid))
	router.POST("/organizations/:org_id/posts/:post_id/publish",
		chain(deps.PostHandler.Publish, authMid, gateMid))
	router.POST("/organizations/:org_id/posts/:post_id/cancel",
		chain(deps.PostHandler.Cancel, authMid, gateMid))

	// Notifications
	router.GET("/organizations/:org_id/notifications",
		chain(deps.NotificationHandler.List, authMid, gateMid))
	router.PATCH("/organizations/:org_id/notifications",
		chain(deps.NotificationHandler.MarkAllRead, authMid, gateMid))
	router.PATCH("/organizations/:org_id/notifications/:notification_id",
		chain(deps.NotificationHandler.MarkRead, authMid, gateMid))

	router.GET("/organizations/:org_id/audit-logs",
		chain(deps.AuditHandler.List, authMid, gateMid, managers))

	// OAuth linking
	for _, p := range models.Platforms {
		router.GET("/oauth/"+p.Slug(),
			chain(deps.OAuthHandler.Initiate(p), oauthLimit, authMid, gateMid))
	}
	router.GET("/oauth/callback/:platform", chain(deps.OAuthHandler.Callback, oauthLimit))

	// Platform webhooks
	router.GET("/webhooks", wrap(deps.WebhookHandler.Verify))
	router.POST("/webhooks", wrap(deps.WebhookHandler.Receive))

	return router
}

// NewHandler wraps the router with recovery, request logging and CORS.
func NewHandler(deps *Dependencies, corsCfg config.CORSConfig) http.Handler {
	var h http.Handler = NewRouter(deps)
	h = cors.Handler(cors.Options{
		AllowedOrigins:   corsCfg.AllowedOrigins,
		AllowedMethods:   corsCfg.AllowedMethods,
		AllowedHeaders:   corsCfg.AllowedHeaders,
		AllowCredentials: true,
		MaxAge:           corsCfg.MaxAge,
	})(h)
	h = middleware.Recover(h)
	return middleware.RequestLogger(h)
}

// Helper function to chain middlewares
func chain(handler http.HandlerFunc, middlewares ...func(http.HandlerFunc) http.HandlerFunc) httprouter.Handle {
	for i := len(middlewares) - 1; i >= 0; i-- {
		handler = middlewares[i](handler)
	}
	return wrap(handler)
}

// Convert http.HandlerFunc to httprouter.Handle
func wrap(handler http.HandlerFunc) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		ctx := context.WithValue(r.Context(), apiContext.Params, ps)
		handler(w, r.WithContext(ctx))
	}
}
