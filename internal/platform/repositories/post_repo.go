package repositories

import (
	"context"
	"database/sql"
	"strings"

	"postdeck/internal/platform/models"
)

type PostRepository struct {
	db *sql.DB
}

func NewPostRepository(db *sql.DB) *PostRepository {
	return &PostRepository{db: db}
}

// PostFilter narrows List. Zero values mean no filter.
type PostFilter struct {
	Status    models.PostStatus
	Type      models.PostType
	ChannelID string
	Limit     int
}

// Create inserts the post and its assets in one transaction.
func (r *PostRepository) Create(ctx context.Context, post *models.Post) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO posts (id, organization_id, channel_id, type, caption, status, scheduled_at, published_at, created_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, post.ID, post.OrganizationID, post.ChannelID, post.Type, post.Caption, post.Status, post.ScheduledAt, post.PublishedAt, post.CreatedBy, post.CreatedAt, post.UpdatedAt)
	if err != nil {
		return err
	}

	for _, a := range post.Assets {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO post_assets (id, post_id, url, media_type, position, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, a.ID, post.ID, a.URL, a.MediaType, a.Position, a.CreatedAt)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

const postColumns = `id, organization_id, channel_id, type, caption, status, scheduled_at, published_at, created_by, created_at, updated_at`

func scanPost(row scanner) (*models.Post, error) {
	p := &models.Post{}
	var scheduled, published sql.NullInt64
	err := row.Scan(&p.ID, &p.OrganizationID, &p.ChannelID, &p.Type, &p.Caption, &p.Status, &scheduled, &published, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if scheduled.Valid {
		p.ScheduledAt = &scheduled.Int64
	}
	if published.Valid {
		p.PublishedAt = &published.Int64
	}
	p.Assets = []models.PostAsset{}
	return p, nil
}

func (r *PostRepository) GetByID(ctx context.Context, orgID, id string) (*models.Post, error) {
	p, err := scanPost(r.db.QueryRowContext(ctx, `
		SELECT `+postColumns+` FROM posts WHERE id = ? AND organization_id = ?
	`, id, orgID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	if err := r.attachAssets(ctx, []*models.Post{p}); err != nil {
		return nil, err
	}
	return p, nil
}

// List returns posts of orgID, newest first, with their assets.
func (r *PostRepository) List(ctx context.Context, orgID string, f PostFilter) ([]*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE organization_id = ?`
	args := []interface{}{orgID}

	if f.Status != "" {
		query += ` AND status = ?`
		args = append(args, f.Status)
	}
	if f.Type != "" {
		query += ` AND type = ?`
		args = append(args, f.Type)
	}
	if f.ChannelID != "" {
		query += ` AND channel_id = ?`
		args = append(args, f.ChannelID)
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, f.Limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	posts := []*models.Post{}
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	// Release the connection before the asset query.
	rows.Close()

	if err := r.attachAssets(ctx, posts); err != nil {
		return nil, err
	}
	return posts, nil
}

func (r *PostRepository) attachAssets(ctx context.Context, posts []*models.Post) error {
	if len(posts) == 0 {
		return nil
	}

	byID := make(map[string]*models.Post, len(posts))
	placeholders := make([]string, len(posts))
	args := make([]interface{}, len(posts))
	for i, p := range posts {
		byID[p.ID] = p
		placeholders[i] = "?"
		args[i] = p.ID
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, post_id, url, media_type, position, created_at FROM post_assets
		WHERE post_id IN (`+strings.Join(placeholders, ", ")+`)
		ORDER BY position ASC
	`, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var a models.PostAsset
		if err := rows.Scan(&a.ID, &a.PostID, &a.URL, &a.MediaType, &a.Position, &a.CreatedAt); err != nil {
			return err
		}
		if p, ok := byID[a.PostID]; ok {
			p.Assets = append(p.Assets, a)
		}
	}
	return rows.Err()
}

// UpdateStatus moves the post to status only if it is currently in one of from.
// It reports whether a row changed.
func (r *PostRepository) UpdateStatus(ctx context.Context, orgID, id string, status models.PostStatus, publishedAt *int64, timestamp int64, from ...models.PostStatus) (bool, error) {
	query := `UPDATE posts SET status = ?, published_at = COALESCE(?, published_at), updated_at = ? WHERE id = ? AND organization_id = ?`
	args := []interface{}{status, publishedAt, timestamp, id, orgID}

	if len(from) > 0 {
		placeholders := make([]string, len(from))
		for i, s := range from {
			placeholders[i] = "?"
			args = append(args, s)
		}
		query += ` AND status IN (` + strings.Join(placeholders, ", ") + `)`
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}
