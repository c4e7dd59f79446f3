package membership

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"postdeck/internal/pkg/errors"
	"postdeck/internal/platform/audit"
	"postdeck/internal/platform/auth"
	"postdeck/internal/platform/models"
	"postdeck/internal/platform/repositories"
)

type Service struct {
	orgs     *repositories.OrganizationRepository
	users    *repositories.UserRepository
	members  *repositories.MembershipRepository
	channels *repositories.ChannelRepository
	tokens   *auth.TokenService
	hasher   *auth.Hasher
	audit    *audit.Logger
	now      func() time.Time
}

func NewService(
	orgs *repositories.OrganizationRepository,
	users *repositories.UserRepository,
	members *repositories.MembershipRepository,
	channels *repositories.ChannelRepository,
	tokens *auth.TokenService,
	hasher *auth.Hasher,
	auditLogger *audit.Logger,
) *Service {
	return &Service{
		orgs:     orgs,
		users:    users,
		members:  members,
		channels: channels,
		tokens:   tokens,
		hasher:   hasher,
		audit:    auditLogger,
		now:      time.Now,
	}
}

type RegisterInput struct {
	Email            string
	Password         string
	FirstName        string
	LastName         string
	OrganizationName string
}

type RegisterResult struct {
	User         *models.User         `json:"user"`
	Organization *models.Organization `json:"organization"`
}

type CreateOrganizationInput struct {
	Name        string
	Description string
	LogoURL     string
}

var whitespace = regexp.MustCompile(`\s+`)

// Slugify lower-cases name and replaces each run of whitespace with a hyphen.
func Slugify(name string) string {
	return whitespace.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "-")
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates an organization, its first user and the OWNER membership
// atomically.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*RegisterResult, error) {
	email := normalizeEmail(in.Email)
	orgName := strings.TrimSpace(in.OrganizationName)
	if email == "" || in.Password == "" || orgName == "" {
		return nil, errors.BadRequest("Email, password and organization name are required")
	}

	existing, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, errors.Internal("Failed to look up user", err)
	}
	if existing != nil {
		return nil, errors.Conflict("User already exists")
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, errors.Internal("Failed to hash password", err)
	}

	slug, err := s.uniqueSlug(ctx, orgName)
	if err != nil {
		return nil, err
	}

	now := s.now().Unix()
	org := &models.Organization{
		ID:        "org_" + uuid.NewString(),
		Name:      orgName,
		Slug:      slug,
		CreatedAt: now,
		UpdatedAt: now,
	}
	user := &models.User{
		ID:           "usr_" + uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	membership := &models.Membership{
		ID:             "mem_" + uuid.NewString(),
		UserID:         user.ID,
		OrganizationID: org.ID,
		Role:           models.RoleOwner,
		CreatedAt:      now,
	}

	tx, err := s.orgs.BeginTx(ctx)
	if err != nil {
		return nil, errors.Internal("Failed to start transaction", err)
	}
	defer tx.Rollback()

	if err := s.orgs.CreateTx(ctx, tx, org); err != nil {
		return nil, s.registerConflict("Failed to create organization", err)
	}
	if err := s.users.CreateTx(ctx, tx, user); err != nil {
		return nil, s.registerConflict("Failed to create user", err)
	}
	if err := s.members.CreateTx(ctx, tx, membership); err != nil {
		return nil, errors.Internal("Failed to create membership", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.Internal("Failed to commit registration", err)
	}

	log.Info().Str("user_id", user.ID).Str("organization_id", org.ID).Msg("user registered")
	s.audit.Log(audit.WithActor(ctx, audit.Actor{UserID: user.ID}), org.ID, audit.ActionOrganizationCreated, "organization", org.ID, map[string]interface{}{"slug": org.Slug})

	return &RegisterResult{User: user, Organization: org}, nil
}

// registerConflict maps a unique violation lost to a concurrent registration
// onto Conflict.
func (s *Service) registerConflict(msg string, err error) error {
	if repositories.IsUniqueViolation(err) {
		return errors.Conflict("User already exists")
	}
	return errors.Internal(msg, err)
}

func (s *Service) uniqueSlug(ctx context.Context, name string) (string, error) {
	base := Slugify(name)
	slug := base
	for i := 0; i < 5; i++ {
		exists, err := s.orgs.SlugExists(ctx, slug)
		if err != nil {
			return "", errors.Internal("Failed to check organization slug", err)
		}
		if !exists {
			return slug, nil
		}
		slug = base + "-" + uuid.NewString()[:8]
	}
	return "", errors.Conflict("Could not allocate a unique organization slug")
}

// Authenticate checks credentials and issues a session token carrying the
// user's current memberships.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*models.User, string, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, "", errors.BadRequest("Email and password are required")
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, "", errors.Internal("Failed to look up user", err)
	}
	if user == nil || !s.hasher.Compare(user.PasswordHash, password) {
		return nil, "", errors.Unauthorized("Invalid credentials")
	}
	if !user.IsActive {
		return nil, "", errors.Unauthorized("User account is inactive")
	}

	memberships, err := s.members.ListForUser(ctx, user.ID)
	if err != nil {
		return nil, "", errors.Internal("Failed to load memberships", err)
	}
	roles := make([]auth.OrgRole, 0, len(memberships))
	for _, m := range memberships {
		roles = append(roles, auth.OrgRole{OrganizationID: m.OrganizationID, Role: m.Role})
	}

	token, err := s.tokens.Issue(user, roles)
	if err != nil {
		return nil, "", errors.Internal("Failed to generate token", err)
	}

	now := s.now().Unix()
	if err := s.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		log.Warn().Err(err).Str("user_id", user.ID).Msg("failed to update last login")
	} else {
		user.LastLoginAt = &now
	}

	return user, token, nil
}

// CreateOrganization inserts the organization and then the caller's OWNER
// membership. The two writes are not atomic.
func (s *Service) CreateOrganization(ctx context.Context, ownerID string, in CreateOrganizationInput) (*models.Organization, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, errors.BadRequest("Organization name is required")
	}

	slug, err := s.uniqueSlug(ctx, name)
	if err != nil {
		return nil, err
	}

	now := s.now().Unix()
	org := &models.Organization{
		ID:          "org_" + uuid.NewString(),
		Name:        name,
		Slug:        slug,
		Description: in.Description,
		LogoURL:     in.LogoURL,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.orgs.Create(ctx, org); err != nil {
		if repositories.IsUniqueViolation(err) {
			return nil, errors.Conflict("Organization slug already taken")
		}
		return nil, errors.Internal("Failed to create organization", err)
	}

	err = s.members.Create(ctx, &models.Membership{
		ID:             "mem_" + uuid.NewString(),
		UserID:         ownerID,
		OrganizationID: org.ID,
		Role:           models.RoleOwner,
		CreatedAt:      now,
	})
	if err != nil {
		return nil, errors.Internal("Failed to create membership", err)
	}

	s.audit.Log(ctx, org.ID, audit.ActionOrganizationCreated, "organization", org.ID, map[string]interface{}{"slug": org.Slug})
	return org, nil
}

func (s *Service) ListForUser(ctx context.Context, userID string) ([]models.OrganizationSummary, error) {
	orgs, err := s.orgs.ListForUser(ctx, userID)
	if err != nil {
		return nil, errors.Internal("Failed to list organizations", err)
	}

	out := make([]models.OrganizationSummary, 0, len(orgs))
	for _, o := range orgs {
		if o.Members, err = s.members.ListMembers(ctx, o.ID); err != nil {
			return nil, errors.Internal("Failed to list members", err)
		}
		if o.Channels, err = s.channels.ListSummaries(ctx, o.ID); err != nil {
			return nil, errors.Internal("Failed to list channels", err)
		}
		out = append(out, o)
	}
	return out, nil
}

// Session re-reads the user and their organizations; the token's embedded
// roles are not consulted.
func (s *Service) Session(ctx context.Context, userID string) (*models.User, []models.OrganizationSummary, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, nil, errors.Internal("Failed to load user", err)
	}
	if user == nil {
		return nil, nil, errors.NotFound("User not found")
	}

	orgs, err := s.ListForUser(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	return user, orgs, nil
}

// Authorize returns the caller's membership in orgID, or Forbidden. A missing
// organization is indistinguishable from one the user does not belong to.
func (s *Service) Authorize(ctx context.Context, userID, orgID string) (*models.Membership, error) {
	if orgID == "" {
		return nil, errors.BadRequest("Organization ID is required")
	}
	m, err := s.members.Get(ctx, userID, orgID)
	if err != nil {
		return nil, errors.Internal("Failed to check membership", err)
	}
	if m == nil {
		return nil, errors.Forbidden("You do not have access to this organization")
	}
	return m, nil
}
