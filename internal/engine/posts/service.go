package posts

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"postdeck/internal/pkg/errors"
	"postdeck/internal/platform/audit"
	"postdeck/internal/platform/models"
	"postdeck/internal/platform/repositories"
)

const (
	DefaultLimit = 50
	MaxLimit     = 100
)

type Service struct {
	posts    *repositories.PostRepository
	channels *repositories.ChannelRepository
	audit    *audit.Logger
	now      func() time.Time
}

func NewService(posts *repositories.PostRepository, channels *repositories.ChannelRepository, auditLogger *audit.Logger) *Service {
	return &Service{posts: posts, channels: channels, audit: auditLogger, now: time.Now}
}

type AssetInput struct {
	URL       string
	MediaType string
}

type CreateInput struct {
	OrganizationID string
	ChannelID      string
	Type           string
	Caption        string
	ScheduledAt    *int64
	Assets         []AssetInput
	CreatedBy      string
}

// Create stores a post as SCHEDULED when a schedule time is given and as DRAFT
// otherwise. The channel must belong to the post's organization.
func (s *Service) Create(ctx context.Context, in CreateInput) (*models.Post, error) {
	if in.OrganizationID == "" || in.ChannelID == "" || in.Type == "" {
		return nil, errors.BadRequest("Organization ID, channel ID and type are required")
	}
	postType, ok := models.ParsePostType(in.Type)
	if !ok {
		return nil, errors.BadRequest("Unknown post type").WithDetails(map[string]string{"type": in.Type})
	}

	ch, err := s.channels.GetByID(ctx, in.OrganizationID, in.ChannelID)
	if err != nil {
		return nil, errors.Internal("Failed to load channel", err)
	}
	if ch == nil {
		return nil, errors.NotFound("Channel not found")
	}

	now := s.now().Unix()
	status := models.PostStatusDraft
	if in.ScheduledAt != nil {
		status = models.PostStatusScheduled
	}

	post := &models.Post{
		ID:             "post_" + uuid.NewString(),
		OrganizationID: in.OrganizationID,
		ChannelID:      ch.ID,
		Type:           postType,
		Caption:        in.Caption,
		Status:         status,
		ScheduledAt:    in.ScheduledAt,
		CreatedBy:      in.CreatedBy,
		Assets:         make([]models.PostAsset, 0, len(in.Assets)),
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	for i, a := range in.Assets {
		if strings.TrimSpace(a.URL) == "" {
			return nil, errors.BadRequest("Asset URL is required")
		}
		post.Assets = append(post.Assets, models.PostAsset{
			ID:        "asset_" + uuid.NewString(),
			PostID:    post.ID,
			URL:       a.URL,
			MediaType: mediaType(a.MediaType, a.URL),
			Position:  i,
			CreatedAt: now,
		})
	}

	if err := s.posts.Create(ctx, post); err != nil {
		return nil, errors.Internal("Failed to create post", err)
	}

	s.audit.Log(ctx, post.OrganizationID, audit.ActionPostCreated, "post", post.ID, map[string]interface{}{"status": string(status), "channelId": ch.ID})
	return post, nil
}

var videoExtensions = []string{".mp4", ".mov", ".webm", ".m4v"}

// mediaType uses the declared type when valid and otherwise guesses from the
// URL's extension.
func mediaType(declared, url string) models.MediaType {
	switch models.MediaType(strings.ToUpper(declared)) {
	case models.MediaTypeImage:
		return models.MediaTypeImage
	case models.MediaTypeVideo:
		return models.MediaTypeVideo
	}
	lower := strings.ToLower(url)
	if i := strings.IndexAny(lower, "?#"); i >= 0 {
		lower = lower[:i]
	}
	for _, ext := range videoExtensions {
		if strings.HasSuffix(lower, ext) {
			return models.MediaTypeVideo
		}
	}
	return models.MediaTypeImage
}

type ListInput struct {
	OrganizationID string
	Status         string
	Type           string
	ChannelID      string
	Limit          int
}

// List applies status and type filters only when they name known values;
// anything else is ignored rather than rejected.
func (s *Service) List(ctx context.Context, in ListInput) ([]*models.Post, error) {
	filter := repositories.PostFilter{ChannelID: in.ChannelID, Limit: in.Limit}
	if st, ok := models.ParsePostStatus(in.Status); ok {
		filter.Status = st
	}
	if t, ok := models.ParsePostType(in.Type); ok {
		filter.Type = t
	}
	if filter.Limit <= 0 {
		filter.Limit = DefaultLimit
	}
	if filter.Limit > MaxLimit {
		filter.Limit = MaxLimit
	}

	posts, err := s.posts.List(ctx, in.OrganizationID, filter)
	if err != nil {
		return nil, errors.Internal("Failed to list posts", err)
	}
	return posts, nil
}

func (s *Service) get(ctx context.Context, orgID, postID string) (*models.Post, error) {
	post, err := s.posts.GetByID(ctx, orgID, postID)
	if err != nil {
		return nil, errors.Internal("Failed to load post", err)
	}
	if post == nil {
		return nil, errors.NotFound("Post not found")
	}
	return post, nil
}

var pending = []models.PostStatus{models.PostStatusDraft, models.PostStatusScheduled}

// Publish simulates delivery to the platform. The post ends PUBLISHED, or
// FAILED when its channel is inactive or has no usable token.
func (s *Service) Publish(ctx context.Context, orgID, postID string) (*models.Post, error) {
	post, err := s.get(ctx, orgID, postID)
	if err != nil {
		return nil, err
	}

	now := s.now().Unix()
	ok, err := s.posts.UpdateStatus(ctx, orgID, postID, models.PostStatusPublishing, nil, now, pending...)
	if err != nil {
		return nil, errors.Internal("Failed to update post", err)
	}
	if !ok {
		return nil, errors.Conflict("Only draft or scheduled posts can be published").WithDetails(map[string]string{"status": string(post.Status)})
	}

	ch, err := s.channels.GetByID(ctx, orgID, post.ChannelID)
	if err != nil {
		return nil, errors.Internal("Failed to load channel", err)
	}

	final, action := models.PostStatusPublished, audit.ActionPostPublished
	var publishedAt *int64
	if ch == nil || !ch.IsActive || !ch.CanPublish() {
		final, action = models.PostStatusFailed, audit.ActionPostFailed
	} else {
		publishedAt = &now
	}

	if _, err := s.posts.UpdateStatus(ctx, orgID, postID, final, publishedAt, now, models.PostStatusPublishing); err != nil {
		return nil, errors.Internal("Failed to update post", err)
	}
	log.Info().Str("post_id", postID).Str("organization_id", orgID).Str("status", string(final)).Msg("post publish simulated")
	s.audit.Log(ctx, orgID, action, "post", postID, map[string]interface{}{"channelId": post.ChannelID})

	return s.get(ctx, orgID, postID)
}

func (s *Service) Cancel(ctx context.Context, orgID, postID string) (*models.Post, error) {
	post, err := s.get(ctx, orgID, postID)
	if err != nil {
		return nil, err
	}

	ok, err := s.posts.UpdateStatus(ctx, orgID, postID, models.PostStatusCancelled, nil, s.now().Unix(), pending...)
	if err != nil {
		return nil, errors.Internal("Failed to update post", err)
	}
	if !ok {
		return nil, errors.Conflict("Only draft or scheduled posts can be cancelled").WithDetails(map[string]string{"status": string(post.Status)})
	}

	s.audit.Log(ctx, orgID, audit.ActionPostCancelled, "post", postID, nil)
	return s.get(ctx, orgID, postID)
}
