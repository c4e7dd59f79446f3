package api

import (
	"database/sql"

	"postdeck/internal/api/handlers"
	"postdeck/internal/api/middleware"
	"postdeck/internal/engine/channels"
	"postdeck/internal/engine/membership"
	"postdeck/internal/engine/notifications"
	"postdeck/internal/engine/oauth"
	"postdeck/internal/engine/posts"
	"postdeck/internal/engine/webhooks"
	"postdeck/internal/platform/audit"
	"postdeck/internal/platform/auth"
	"postdeck/internal/platform/config"
	"postdeck/internal/platform/repositories"
)

// NewDependencies builds every repository, service and handler on top of db.
// The returned RateLimiter must be closed by the caller.
func NewDependencies(cfg *config.Config, db *sql.DB) *Dependencies {
	// Repositories
	orgRepo := repositories.NewOrganizationRepository(db)
	userRepo := repositories.NewUserRepository(db)
	memberRepo := repositories.NewMembershipRepository(db)
	channelRepo := repositories.NewChannelRepository(db)
	postRepo := repositories.NewPostRepository(db)
	notificationRepo := repositories.NewNotificationRepository(db)
	stateRepo := repositories.NewOAuthStateRepository(db)

	// Services
	tokenSvc := auth.NewTokenService(cfg.JWT)
	auditLogger := audit.NewLogger(repositories.NewAuditLogRepository(db))
	memberSvc := membership.NewService(orgRepo, userRepo, memberRepo, channelRepo, tokenSvc,
		auth.NewHasher(cfg.Security.BcryptCost), auditLogger)
	channelSvc := channels.NewService(channelRepo, auditLogger)
	postSvc := posts.NewService(postRepo, channelRepo, auditLogger)
	notificationSvc := notifications.NewService(notificationRepo)
	flow := oauth.NewFlow(cfg.OAuth, cfg.JWT, stateRepo, memberRepo, channelSvc, auditLogger)
	dispatcher := webhooks.NewDispatcher(channelRepo, notificationSvc)

	return &Dependencies{
		AuthHandler:         handlers.NewAuthHandler(memberSvc, cfg),
		OrgHandler:          handlers.NewOrgHandler(memberSvc),
		ChannelHandler:      handlers.NewChannelHandler(channelSvc),
		PostHandler:         handlers.NewPostHandler(postSvc),
		NotificationHandler: handlers.NewNotificationHandler(notificationSvc),
		OAuthHandler:        handlers.NewOAuthHandler(flow, cfg.OAuth.DashboardURL),
		WebhookHandler:      handlers.NewWebhookHandler(dispatcher, cfg.Webhooks),
		AuditHandler:        handlers.NewAuditHandler(auditLogger),
		HealthHandler:       handlers.NewHealthHandler(db),
		AuthMiddleware:      middleware.NewAuthMiddleware(tokenSvc, cfg.Session.CookieName),
		GateMiddleware:      middleware.NewGateMiddleware(memberSvc),
		RateLimiter:         middleware.NewRateLimiter(),
		RateLimits:          cfg.RateLimit,
		OAuthFlow:           flow,
	}
}
