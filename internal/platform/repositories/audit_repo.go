package repositories

import (
	"context"
	"database/sql"
	"encoding/json"

	"postdeck/internal/platform/models"
)

type AuditLogRepository struct {
	db *sql.DB
}

func NewAuditLogRepository(db *sql.DB) *AuditLogRepository {
	return &AuditLogRepository{db: db}
}

func (r *AuditLogRepository) Create(ctx context.Context, entry *models.AuditLog) error {
	var metadata interface{}
	if len(entry.Metadata) > 0 {
		b, err := json.Marshal(entry.Metadata)
		if err != nil {
			return err
		}
		metadata = string(b)
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, organization_id, user_id, action, resource_type, resource_id, metadata, ip_address, user_agent, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, entry.ID, entry.OrganizationID, nullString(entry.UserID), entry.Action, entry.ResourceType, entry.ResourceID, metadata, nullString(entry.IPAddress), nullString(entry.UserAgent), entry.CreatedAt)
	return err
}

func (r *AuditLogRepository) List(ctx context.Context, orgID string, limit int) ([]*models.AuditLog, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, organization_id, user_id, action, resource_type, resource_id, metadata, ip_address, user_agent, created_at
		FROM audit_logs WHERE organization_id = ?
		ORDER BY created_at DESC, id DESC LIMIT ?
	`, orgID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := []*models.AuditLog{}
	for rows.Next() {
		l := &models.AuditLog{}
		var userID, metadata, ip, ua sql.NullString
		if err := rows.Scan(&l.ID, &l.OrganizationID, &userID, &l.Action, &l.ResourceType, &l.ResourceID, &metadata, &ip, &ua, &l.CreatedAt); err != nil {
			return nil, err
		}
		l.UserID, l.IPAddress, l.UserAgent = userID.String, ip.String, ua.String
		if metadata.Valid && metadata.String != "" {
			if err := json.Unmarshal([]byte(metadata.String), &l.Metadata); err != nil {
				return nil, err
			}
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
