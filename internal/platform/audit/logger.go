package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"postdeck/internal/pkg/useragent"
	"postdeck/internal/platform/models"
	"postdeck/internal/platform/repositories"
)

const (
	ActionOrganizationCreated = "organization.created"
	ActionChannelLinked       = "channel.linked"
	ActionChannelDeactivated  = "channel.deactivated"
	ActionChannelDeleted      = "channel.deleted"
	ActionChannelReset        = "channel.reset"
	ActionPostCreated         = "post.created"
	ActionPostPublished       = "post.published"
	ActionPostFailed          = "post.failed"
	ActionPostCancelled       = "post.cancelled"
)

// Actor identifies who performed a request.
type Actor struct {
	UserID    string
	IPAddress string
	UserAgent string
}

type actorKey struct{}

func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

func ActorFrom(ctx context.Context) Actor {
	a, _ := ctx.Value(actorKey{}).(Actor)
	return a
}

type Logger struct {
	repo *repositories.AuditLogRepository
}

func NewLogger(repo *repositories.AuditLogRepository) *Logger {
	return &Logger{repo: repo}
}

// Log records action against a resource of orgID. Failures are logged and
// never returned; the audited operation has already happened.
func (l *Logger) Log(ctx context.Context, orgID, action, resourceType, resourceID string, metadata map[string]interface{}) {
	if l == nil {
		return
	}

	actor := ActorFrom(ctx)
	if client := useragent.Summary(actor.UserAgent); client != "" {
		md := make(map[string]interface{}, len(metadata)+1)
		for k, v := range metadata {
			md[k] = v
		}
		md["client"] = client
		metadata = md
	}

	entry := &models.AuditLog{
		ID:             "audit_" + uuid.NewString(),
		OrganizationID: orgID,
		UserID:         actor.UserID,
		Action:         action,
		ResourceType:   resourceType,
		ResourceID:     resourceID,
		Metadata:       metadata,
		IPAddress:      actor.IPAddress,
		UserAgent:      actor.UserAgent,
		CreatedAt:      time.Now().Unix(),
	}

	// The request may already be cancelled by the time the outcome is recorded.
	if err := l.repo.Create(context.WithoutCancel(ctx), entry); err != nil {
		log.Warn().Err(err).Str("action", action).Str("organization_id", orgID).Msg("failed to write audit log")
	}
}

func (l *Logger) List(ctx context.Context, orgID string, limit int) ([]*models.AuditLog, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return l.repo.List(ctx, orgID, limit)
}
