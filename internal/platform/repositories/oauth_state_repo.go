package repositories

import (
	"context"
	"database/sql"

	"postdeck/internal/platform/models"
)

type OAuthStateRepository struct {
	db *sql.DB
}

func NewOAuthStateRepository(db *sql.DB) *OAuthStateRepository {
	return &OAuthStateRepository{db: db}
}

func (r *OAuthStateRepository) Create(ctx context.Context, s *models.OAuthState) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO oauth_states (nonce, organization_id, user_id, platform, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, s.Nonce, s.OrganizationID, s.UserID, s.Platform, s.ExpiresAt, s.CreatedAt)
	return err
}

// Consume marks the state as used. It reports false when the nonce is unknown,
// expired, already consumed or was issued for another organization or platform.
func (r *OAuthStateRepository) Consume(ctx context.Context, nonce, orgID string, platform models.Platform, now int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE oauth_states SET consumed_at = ?
		WHERE nonce = ? AND organization_id = ? AND platform = ? AND consumed_at IS NULL AND expires_at > ?
	`, now, nonce, orgID, platform, now)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// DeleteExpired removes states that can no longer be consumed.
func (r *OAuthStateRepository) DeleteExpired(ctx context.Context, now int64) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM oauth_states WHERE expires_at <= ? OR consumed_at IS NOT NULL`, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
