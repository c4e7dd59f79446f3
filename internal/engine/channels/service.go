package channels

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"postdeck/internal/pkg/errors"
	"postdeck/internal/platform/audit"
	"postdeck/internal/platform/models"
	"postdeck/internal/platform/repositories"
)

type Service struct {
	repo  *repositories.ChannelRepository
	audit *audit.Logger
	now   func() time.Time
}

func NewService(repo *repositories.ChannelRepository, auditLogger *audit.Logger) *Service {
	return &Service{repo: repo, audit: auditLogger, now: time.Now}
}

// UpsertInput is everything known about a linked account after a token exchange.
type UpsertInput struct {
	OrganizationID string
	Platform       models.Platform
	ExternalID     string
	Name           string
	AccessToken    string
	RefreshToken   string
	TokenExpiresAt *int64
	Metadata       models.ChannelMetadata
}

// Upsert is the only way channels are written: reconnecting the same external
// account updates the existing row instead of adding one.
func (s *Service) Upsert(ctx context.Context, in UpsertInput) (*models.Channel, error) {
	if in.OrganizationID == "" || in.ExternalID == "" {
		return nil, errors.BadRequest("Organization ID and external account ID are required")
	}
	if _, ok := models.ParsePlatform(string(in.Platform)); !ok {
		return nil, errors.BadRequest("Unsupported platform")
	}
	if in.Metadata != nil && in.Metadata.Platform() != in.Platform {
		return nil, errors.BadRequest("Channel metadata does not match platform")
	}

	name := strings.TrimSpace(in.Name)
	if name == "" {
		name = in.ExternalID
	}

	now := s.now().Unix()
	ch, err := s.repo.Upsert(ctx, &models.Channel{
		ID:             "ch_" + uuid.NewString(),
		OrganizationID: in.OrganizationID,
		Platform:       in.Platform,
		ExternalID:     in.ExternalID,
		Name:           name,
		AccessToken:    in.AccessToken,
		RefreshToken:   in.RefreshToken,
		TokenExpiresAt: in.TokenExpiresAt,
		Metadata:       in.Metadata,
		CreatedAt:      now,
		UpdatedAt:      now,
	})
	if err != nil {
		return nil, errors.Internal("Failed to save channel", err)
	}
	return ch, nil
}

// ParsePlatforms keeps the recognized platform names in raw and drops the rest.
// A result of nil means no filter.
func ParsePlatforms(raw []string) []models.Platform {
	var out []models.Platform
	seen := map[models.Platform]bool{}
	for _, item := range raw {
		for _, name := range strings.Split(item, ",") {
			p, ok := models.ParsePlatform(name)
			if !ok || seen[p] {
				continue
			}
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}

func (s *Service) ListActive(ctx context.Context, orgID string, platforms []models.Platform) ([]*models.Channel, error) {
	channels, err := s.repo.ListActive(ctx, orgID, platforms)
	if err != nil {
		return nil, errors.Internal("Failed to list channels", err)
	}
	return channels, nil
}

func (s *Service) Get(ctx context.Context, orgID, channelID string) (*models.Channel, error) {
	ch, err := s.repo.GetByID(ctx, orgID, channelID)
	if err != nil {
		return nil, errors.Internal("Failed to load channel", err)
	}
	if ch == nil {
		return nil, errors.NotFound("Channel not found")
	}
	return ch, nil
}

func (s *Service) Deactivate(ctx context.Context, orgID, channelID string) error {
	ok, err := s.repo.Deactivate(ctx, orgID, channelID, s.now().Unix())
	if err != nil {
		return errors.Internal("Failed to deactivate channel", err)
	}
	if !ok {
		return errors.NotFound("Channel not found")
	}
	s.audit.Log(ctx, orgID, audit.ActionChannelDeactivated, "channel", channelID, nil)
	return nil
}

func (s *Service) Delete(ctx context.Context, orgID, channelID string) error {
	ok, err := s.repo.Delete(ctx, orgID, channelID)
	if err != nil {
		return errors.Internal("Failed to delete channel", err)
	}
	if !ok {
		return errors.NotFound("Channel not found")
	}
	s.audit.Log(ctx, orgID, audit.ActionChannelDeleted, "channel", channelID, nil)
	return nil
}

// Reset clears the stored tokens but keeps the channel and its history. The
// channel stays listed until it is reconnected or deactivated.
func (s *Service) Reset(ctx context.Context, orgID, channelID string) (*models.Channel, error) {
	ok, err := s.repo.ClearTokens(ctx, orgID, channelID, s.now().Unix())
	if err != nil {
		return nil, errors.Internal("Failed to reset channel", err)
	}
	if !ok {
		return nil, errors.NotFound("Channel not found")
	}
	s.audit.Log(ctx, orgID, audit.ActionChannelReset, "channel", channelID, nil)
	return s.Get(ctx, orgID, channelID)
}

// Diagnostics describes a channel's connection health without exposing tokens.
type Diagnostics struct {
	ChannelID        string                 `json:"channelId"`
	Platform         models.Platform        `json:"platform"`
	ExternalID       string                 `json:"externalId"`
	IsActive         bool                   `json:"isActive"`
	HasAccessToken   bool                   `json:"hasAccessToken"`
	HasRefreshToken  bool                   `json:"hasRefreshToken"`
	TokenExpiresAt   *int64                 `json:"tokenExpiresAt,omitempty"`
	TokenExpired     bool                   `json:"tokenExpired"`
	ExpiresInSeconds *int64                 `json:"expiresInSeconds,omitempty"`
	CanPublish       bool                   `json:"canPublish"`
	Metadata         models.ChannelMetadata `json:"metadata,omitempty"`
	UpdatedAt        int64                  `json:"updatedAt"`
}

func (s *Service) Diagnostics(ctx context.Context, orgID, channelID string) (*Diagnostics, error) {
	ch, err := s.Get(ctx, orgID, channelID)
	if err != nil {
		return nil, err
	}

	d := &Diagnostics{
		ChannelID:       ch.ID,
		Platform:        ch.Platform,
		ExternalID:      ch.ExternalID,
		IsActive:        ch.IsActive,
		HasAccessToken:  ch.AccessToken != "",
		HasRefreshToken: ch.RefreshToken != "",
		TokenExpiresAt:  ch.TokenExpiresAt,
		Metadata:        ch.Metadata,
		UpdatedAt:       ch.UpdatedAt,
	}
	if ch.TokenExpiresAt != nil {
		remaining := *ch.TokenExpiresAt - s.now().Unix()
		d.ExpiresInSeconds = &remaining
		d.TokenExpired = remaining <= 0
	}
	d.CanPublish = ch.IsActive && ch.CanPublish() && !d.TokenExpired
	return d, nil
}
