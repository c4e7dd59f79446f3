package notifications

import (
	"context"
	"time"

	"github.com/google/uuid"
	"postdeck/internal/pkg/errors"
	"postdeck/internal/platform/models"
	"postdeck/internal/platform/repositories"
)

type Service struct {
	repo *repositories.NotificationRepository
	now  func() time.Time
}

func NewService(repo *repositories.NotificationRepository) *Service {
	return &Service{repo: repo, now: time.Now}
}

func (s *Service) Create(ctx context.Context, n *models.Notification) (*models.Notification, error) {
	if n.OrganizationID == "" || n.Type == "" || n.Title == "" {
		return nil, errors.BadRequest("Organization ID, type and title are required")
	}
	n.ID = "ntf_" + uuid.NewString()
	n.IsRead = false
	n.ReadAt = nil
	n.CreatedAt = s.now().Unix()

	if err := s.repo.Create(ctx, n); err != nil {
		return nil, errors.Internal("Failed to create notification", err)
	}
	return n, nil
}

func (s *Service) List(ctx context.Context, orgID string, unreadOnly bool, limit int) ([]*models.Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	list, err := s.repo.List(ctx, orgID, unreadOnly, limit)
	if err != nil {
		return nil, errors.Internal("Failed to list notifications", err)
	}
	return list, nil
}

func (s *Service) MarkRead(ctx context.Context, orgID, id string) error {
	ok, err := s.repo.MarkRead(ctx, orgID, id, s.now().Unix())
	if err != nil {
		return errors.Internal("Failed to update notification", err)
	}
	if !ok {
		return errors.NotFound("Notification not found")
	}
	return nil
}

// MarkAllRead returns how many notifications changed.
func (s *Service) MarkAllRead(ctx context.Context, orgID string) (int64, error) {
	n, err := s.repo.MarkAllRead(ctx, orgID, s.now().Unix())
	if err != nil {
		return 0, errors.Internal("Failed to update notifications", err)
	}
	return n, nil
}
