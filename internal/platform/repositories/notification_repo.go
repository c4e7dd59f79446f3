package repositories

import (
	"context"
	"database/sql"

	"postdeck/internal/platform/models"
)

type NotificationRepository struct {
	db *sql.DB
}

func NewNotificationRepository(db *sql.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

func (r *NotificationRepository) Create(ctx context.Context, n *models.Notification) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO notifications (id, organization_id, channel_id, type, title, body, is_read, created_at)
		VALUES (?, ?, ?, ?, ?, ?, 0, ?)
	`, n.ID, n.OrganizationID, nullString(n.ChannelID), n.Type, n.Title, n.Body, n.CreatedAt)
	return err
}

func (r *NotificationRepository) List(ctx context.Context, orgID string, unreadOnly bool, limit int) ([]*models.Notification, error) {
	query := `
		SELECT id, organization_id, channel_id, type, title, body, is_read, read_at, created_at
		FROM notifications WHERE organization_id = ?`
	args := []interface{}{orgID}
	if unreadOnly {
		query += ` AND is_read = 0`
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	notifications := []*models.Notification{}
	for rows.Next() {
		n := &models.Notification{}
		var channelID sql.NullString
		var readAt sql.NullInt64
		if err := rows.Scan(&n.ID, &n.OrganizationID, &channelID, &n.Type, &n.Title, &n.Body, &n.IsRead, &readAt, &n.CreatedAt); err != nil {
			return nil, err
		}
		n.ChannelID = channelID.String
		if readAt.Valid {
			n.ReadAt = &readAt.Int64
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

// MarkRead reports false when the notification does not belong to orgID.
// Marking an already-read notification keeps its original readAt.
func (r *NotificationRepository) MarkRead(ctx context.Context, orgID, id string, timestamp int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE notifications SET is_read = 1, read_at = COALESCE(read_at, ?)
		WHERE id = ? AND organization_id = ?
	`, timestamp, id, orgID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *NotificationRepository) MarkAllRead(ctx context.Context, orgID string, timestamp int64) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE notifications SET is_read = 1, read_at = ?
		WHERE organization_id = ? AND is_read = 0
	`, timestamp, orgID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
