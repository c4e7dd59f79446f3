package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/mattn/go-sqlite3"
	"postdeck/internal/platform/models"
)

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

type scanner interface {
	Scan(dest ...interface{}) error
}

// IsUniqueViolation reports whether err is a SQLite UNIQUE or PRIMARY KEY constraint failure.
func IsUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

type OrganizationRepository struct {
	db *sql.DB
}

func NewOrganizationRepository(db *sql.DB) *OrganizationRepository {
	return &OrganizationRepository{db: db}
}

func (r *OrganizationRepository) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return r.db.BeginTx(ctx, nil)
}

func (r *OrganizationRepository) CreateTx(ctx context.Context, tx *sql.Tx, org *models.Organization) error {
	return insertOrganization(ctx, tx, org)
}

func (r *OrganizationRepository) Create(ctx context.Context, org *models.Organization) error {
	return insertOrganization(ctx, r.db, org)
}

func insertOrganization(ctx context.Context, ex execer, org *models.Organization) error {
	_, err := ex.ExecContext(ctx, `
		INSERT INTO organizations (id, name, slug, description, logo_url, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, org.ID, org.Name, org.Slug, org.Description, org.LogoURL, org.CreatedAt, org.UpdatedAt)
	return err
}

func (r *OrganizationRepository) GetByID(ctx context.Context, id string) (*models.Organization, error) {
	org := &models.Organization{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, slug, description, logo_url, created_at, updated_at
		FROM organizations WHERE id = ?
	`, id).Scan(&org.ID, &org.Name, &org.Slug, &org.Description, &org.LogoURL, &org.CreatedAt, &org.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return org, nil
}

func (r *OrganizationRepository) SlugExists(ctx context.Context, slug string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM organizations WHERE slug = ?)`, slug).Scan(&exists)
	return exists, err
}

// ListForUser returns every organization userID belongs to, with the user's role.
func (r *OrganizationRepository) ListForUser(ctx context.Context, userID string) ([]models.OrganizationSummary, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT o.id, o.name, o.slug, o.description, o.logo_url, o.created_at, o.updated_at, m.role
		FROM organizations o
		JOIN memberships m ON m.organization_id = o.id
		WHERE m.user_id = ?
		ORDER BY m.created_at ASC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orgs []models.OrganizationSummary
	for rows.Next() {
		var s models.OrganizationSummary
		if err := rows.Scan(&s.ID, &s.Name, &s.Slug, &s.Description, &s.LogoURL, &s.CreatedAt, &s.UpdatedAt, &s.Role); err != nil {
			return nil, err
		}
		orgs = append(orgs, s)
	}
	return orgs, rows.Err()
}

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) CreateTx(ctx context.Context, tx *sql.Tx, user *models.User) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO users (id, email, password_hash, first_name, last_name, avatar_url, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, user.ID, user.Email, user.PasswordHash, user.FirstName, user.LastName, user.AvatarURL, user.IsActive, user.CreatedAt, user.UpdatedAt)
	return err
}

const userColumns = `id, email, password_hash, first_name, last_name, avatar_url, is_active, last_login_at, created_at, updated_at`

func scanUser(row scanner) (*models.User, error) {
	user := &models.User{}
	var lastLogin sql.NullInt64
	err := row.Scan(&user.ID, &user.Email, &user.PasswordHash, &user.FirstName, &user.LastName, &user.AvatarURL, &user.IsActive, &lastLogin, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if lastLogin.Valid {
		user.LastLoginAt = &lastLogin.Int64
	}
	return user, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}

func (r *UserRepository) UpdateLastLogin(ctx context.Context, userID string, timestamp int64) error {
	_, err := r.db.ExecContext(ctx, `UPDATE users SET last_login_at = ?, updated_at = ? WHERE id = ?`, timestamp, timestamp, userID)
	return err
}

func (r *UserRepository) SetActive(ctx context.Context, userID string, active bool, timestamp int64) error {
	_, err := r.db.ExecContext(ctx, `UPDATE users SET is_active = ?, updated_at = ? WHERE id = ?`, active, timestamp, userID)
	return err
}

type MembershipRepository struct {
	db *sql.DB
}

func NewMembershipRepository(db *sql.DB) *MembershipRepository {
	return &MembershipRepository{db: db}
}

func (r *MembershipRepository) CreateTx(ctx context.Context, tx *sql.Tx, m *models.Membership) error {
	return insertMembership(ctx, tx, m)
}

func (r *MembershipRepository) Create(ctx context.Context, m *models.Membership) error {
	return insertMembership(ctx, r.db, m)
}

func insertMembership(ctx context.Context, ex execer, m *models.Membership) error {
	_, err := ex.ExecContext(ctx, `
		INSERT INTO memberships (id, user_id, organization_id, role, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, m.ID, m.UserID, m.OrganizationID, m.Role, m.CreatedAt)
	return err
}

// Get returns the membership of userID in orgID, or nil if there is none.
func (r *MembershipRepository) Get(ctx context.Context, userID, orgID string) (*models.Membership, error) {
	m := &models.Membership{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, organization_id, role, created_at
		FROM memberships WHERE user_id = ? AND organization_id = ?
	`, userID, orgID).Scan(&m.ID, &m.UserID, &m.OrganizationID, &m.Role, &m.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return m, nil
}

func (r *MembershipRepository) ListForUser(ctx context.Context, userID string) ([]models.Membership, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, organization_id, role, created_at
		FROM memberships WHERE user_id = ? ORDER BY created_at ASC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Membership
	for rows.Next() {
		var m models.Membership
		if err := rows.Scan(&m.ID, &m.UserID, &m.OrganizationID, &m.Role, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *MembershipRepository) ListMembers(ctx context.Context, orgID string) ([]models.MemberSummary, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT u.id, u.email, u.first_name, u.last_name, m.role
		FROM memberships m
		JOIN users u ON u.id = m.user_id
		WHERE m.organization_id = ?
		ORDER BY m.created_at ASC
	`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	members := []models.MemberSummary{}
	for rows.Next() {
		var s models.MemberSummary
		if err := rows.Scan(&s.UserID, &s.Email, &s.FirstName, &s.LastName, &s.Role); err != nil {
			return nil, err
		}
		members = append(members, s)
	}
	return members, rows.Err()
}
