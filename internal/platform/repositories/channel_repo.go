package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"postdeck/internal/platform/models"
)

type ChannelRepository struct {
	db *sql.DB
}

func NewChannelRepository(db *sql.DB) *ChannelRepository {
	return &ChannelRepository{db: db}
}

const channelColumns = `id, organization_id, platform, external_id, name, access_token, refresh_token, token_expires_at, is_active, metadata, created_at, updated_at`

func scanChannel(row scanner) (*models.Channel, error) {
	ch := &models.Channel{}
	var (
		refresh  sql.NullString
		expires  sql.NullInt64
		metadata sql.NullString
	)
	err := row.Scan(&ch.ID, &ch.OrganizationID, &ch.Platform, &ch.ExternalID, &ch.Name, &ch.AccessToken, &refresh, &expires, &ch.IsActive, &metadata, &ch.CreatedAt, &ch.UpdatedAt)
	if err != nil {
		return nil, err
	}
	ch.RefreshToken = refresh.String
	if expires.Valid {
		ch.TokenExpiresAt = &expires.Int64
	}
	if metadata.Valid {
		ch.Metadata, err = models.DecodeMetadata(ch.Platform, []byte(metadata.String))
		if err != nil {
			return nil, fmt.Errorf("channel %s: %w", ch.ID, err)
		}
	}
	return ch, nil
}

// Upsert inserts ch or, when (organization, platform, external id) already
// exists, refreshes its name, tokens and metadata and reactivates it. ch.ID and
// ch.CreatedAt are only used for a fresh row. The stored row is returned.
func (r *ChannelRepository) Upsert(ctx context.Context, ch *models.Channel) (*models.Channel, error) {
	if ch.Metadata != nil && ch.Metadata.Platform() != ch.Platform {
		return nil, models.ErrMetadataPlatform
	}
	metadata, err := models.EncodeMetadata(ch.Metadata)
	if err != nil {
		return nil, err
	}

	var metadataArg interface{}
	if metadata != nil {
		metadataArg = string(metadata)
	}

	row := r.db.QueryRowContext(ctx, `
		INSERT INTO channels (id, organization_id, platform, external_id, name, access_token, refresh_token, token_expires_at, is_active, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?, ?)
		ON CONFLICT (organization_id, platform, external_id) DO UPDATE SET
			name = excluded.name,
			access_token = excluded.access_token,
			refresh_token = COALESCE(excluded.refresh_token, channels.refresh_token),
			token_expires_at = excluded.token_expires_at,
			metadata = COALESCE(excluded.metadata, channels.metadata),
			is_active = 1,
			updated_at = excluded.updated_at
		RETURNING `+channelColumns,
		ch.ID, ch.OrganizationID, ch.Platform, ch.ExternalID, ch.Name, ch.AccessToken,
		nullString(ch.RefreshToken), ch.TokenExpiresAt, metadataArg, ch.CreatedAt, ch.UpdatedAt)

	return scanChannel(row)
}

// GetByID returns the channel only if it belongs to orgID.
func (r *ChannelRepository) GetByID(ctx context.Context, orgID, id string) (*models.Channel, error) {
	ch, err := scanChannel(r.db.QueryRowContext(ctx, `
		SELECT `+channelColumns+` FROM channels WHERE id = ? AND organization_id = ?
	`, id, orgID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return ch, nil
}

// ListActive returns active channels of orgID, newest first. An empty platforms
// slice means every platform.
func (r *ChannelRepository) ListActive(ctx context.Context, orgID string, platforms []models.Platform) ([]*models.Channel, error) {
	query := `SELECT ` + channelColumns + ` FROM channels WHERE organization_id = ? AND is_active = 1`
	args := []interface{}{orgID}

	if len(platforms) > 0 {
		placeholders := make([]string, len(platforms))
		for i, p := range platforms {
			placeholders[i] = "?"
			args = append(args, p)
		}
		query += ` AND platform IN (` + strings.Join(placeholders, ", ") + `)`
	}
	query += ` ORDER BY created_at DESC`

	return r.list(ctx, query, args...)
}

// ListActiveByExternalID finds active channels in any organization linked to
// the given platform account.
func (r *ChannelRepository) ListActiveByExternalID(ctx context.Context, platform models.Platform, externalID string) ([]*models.Channel, error) {
	return r.list(ctx, `
		SELECT `+channelColumns+` FROM channels
		WHERE platform = ? AND external_id = ? AND is_active = 1
	`, platform, externalID)
}

func (r *ChannelRepository) list(ctx context.Context, query string, args ...interface{}) ([]*models.Channel, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	channels := []*models.Channel{}
	for rows.Next() {
		ch, err := scanChannel(rows)
		if err != nil {
			return nil, err
		}
		channels = append(channels, ch)
	}
	return channels, rows.Err()
}

func (r *ChannelRepository) ListSummaries(ctx context.Context, orgID string) ([]models.ChannelSummary, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, platform, name, is_active FROM channels
		WHERE organization_id = ? ORDER BY created_at ASC
	`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	summaries := []models.ChannelSummary{}
	for rows.Next() {
		var s models.ChannelSummary
		if err := rows.Scan(&s.ID, &s.Platform, &s.Name, &s.IsActive); err != nil {
			return nil, err
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

// Deactivate marks the channel inactive. It reports false when no channel with
// that id belongs to orgID.
func (r *ChannelRepository) Deactivate(ctx context.Context, orgID, id string, timestamp int64) (bool, error) {
	return r.affectOne(ctx, `
		UPDATE channels SET is_active = 0, updated_at = ? WHERE id = ? AND organization_id = ?
	`, timestamp, id, orgID)
}

// ClearTokens puts the channel in the disconnected state while keeping the row.
func (r *ChannelRepository) ClearTokens(ctx context.Context, orgID, id string, timestamp int64) (bool, error) {
	return r.affectOne(ctx, `
		UPDATE channels SET access_token = '', refresh_token = NULL, token_expires_at = NULL, updated_at = ?
		WHERE id = ? AND organization_id = ?
	`, timestamp, id, orgID)
}

func (r *ChannelRepository) Delete(ctx context.Context, orgID, id string) (bool, error) {
	return r.affectOne(ctx, `DELETE FROM channels WHERE id = ? AND organization_id = ?`, id, orgID)
}

func (r *ChannelRepository) affectOne(ctx context.Context, query string, args ...interface{}) (bool, error) {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
