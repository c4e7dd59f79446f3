package middleware

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apiContext "postdeck/internal/api/context"
	"postdeck/internal/engine/membership"
	"postdeck/internal/pkg/errors"
	"postdeck/internal/platform/audit"
	"postdeck/internal/platform/auth"
	"postdeck/internal/platform/config"
	"postdeck/internal/platform/database"
	"postdeck/internal/platform/models"
	"postdeck/internal/platform/repositories"
)

var testJWT = config.JWTConfig{Secret: "gate-secret-gate-secret-gate-secret", SessionTTL: time.Hour, Issuer: "postdeck"}

type gateFixture struct {
	tokens  *auth.TokenService
	members *membership.Service
	owner   *models.User
	orgID   string
}

func setupGate(t *testing.T) *gateFixture {
	t.Helper()
	db, err := database.Open(config.DatabaseConfig{URL: ":memory:"})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db, "up"))
	t.Cleanup(func() { db.Close() })

	tokens := auth.NewTokenService(testJWT)
	svc := newMembershipService(db, tokens)

	res, err := svc.Register(context.Background(), membership.RegisterInput{
		Email: "owner@acme.io", Password: "password1", OrganizationName: "Acme",
	})
	require.NoError(t, err)

	return &gateFixture{tokens: tokens, members: svc, owner: res.User, orgID: res.Organization.ID}
}

func newMembershipService(db *sql.DB, tokens *auth.TokenService) *membership.Service {
	return membership.NewService(
		repositories.NewOrganizationRepository(db),
		repositories.NewUserRepository(db),
		repositories.NewMembershipRepository(db),
		repositories.NewChannelRepository(db),
		tokens,
		auth.NewHasher(4),
		audit.NewLogger(repositories.NewAuditLogRepository(db)),
	)
}

// serve runs the auth and gate middleware in front of a handler that records
// the membership it saw, with orgID bound as the :org_id route parameter.
func (f *gateFixture) serve(t *testing.T, req *http.Request, orgID string, extra ...func(http.HandlerFunc) http.HandlerFunc) (*httptest.ResponseRecorder, *models.Membership) {
	t.Helper()
	var seen *models.Membership
	handler := func(w http.ResponseWriter, r *http.Request) {
		seen, _ = apiContext.MembershipFrom(r.Context())
		w.WriteHeader(http.StatusOK)
	}

	var h http.HandlerFunc = handler
	for i := len(extra) - 1; i >= 0; i-- {
		h = extra[i](h)
	}
	h = NewAuthMiddleware(f.tokens, "auth-token").Handle(NewGateMiddleware(f.members).Handle(h))

	if orgID != "" {
		ps := httprouter.Params{{Key: "org_id", Value: orgID}}
		req = req.WithContext(context.WithValue(req.Context(), apiContext.Params, ps))
	}
	rr := httptest.NewRecorder()
	h(rr, req)
	return rr, seen
}

func (f *gateFixture) token(t *testing.T, user *models.User) string {
	t.Helper()
	tok, err := f.tokens.Issue(user, nil)
	require.NoError(t, err)
	return tok
}

func errorCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var body errors.ErrorResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	return body.Code
}

func TestGate_MemberViaBearer(t *testing.T) {
	f := setupGate(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+f.token(t, f.owner))

	rr, seen := f.serve(t, req, f.orgID)

	assert.Equal(t, http.StatusOK, rr.Code)
	require.NotNil(t, seen)
	assert.Equal(t, models.RoleOwner, seen.Role)
	assert.Equal(t, f.orgID, seen.OrganizationID)
}

func TestGate_MemberViaCookieAndQuery(t *testing.T) {
	f := setupGate(t)
	req := httptest.NewRequest(http.MethodGet, "/?organizationId="+f.orgID, nil)
	req.AddCookie(&http.Cookie{Name: "auth-token", Value: f.token(t, f.owner)})

	rr, seen := f.serve(t, req, "")

	assert.Equal(t, http.StatusOK, rr.Code)
	require.NotNil(t, seen)
}

func TestGate_MissingCredential(t *testing.T) {
	f := setupGate(t)
	rr, seen := f.serve(t, httptest.NewRequest(http.MethodGet, "/", nil), f.orgID)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, errors.ErrCodeUnauthorized, errorCode(t, rr))
	assert.Nil(t, seen)
}

func TestGate_InvalidToken(t *testing.T) {
	f := setupGate(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")

	rr, _ := f.serve(t, req, f.orgID)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, errors.ErrCodeInvalidToken, errorCode(t, rr))
}

func TestGate_NonMemberForbiddenWhetherOrNotOrgExists(t *testing.T) {
	f := setupGate(t)
	other, err := f.members.Register(context.Background(), membership.RegisterInput{
		Email: "mallory@evil.io", Password: "password1", OrganizationName: "Evil",
	})
	require.NoError(t, err)
	tok := f.token(t, other.User)

	for _, orgID := range []string{f.orgID, "org_does_not_exist"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+tok)

		rr, seen := f.serve(t, req, orgID)

		assert.Equal(t, http.StatusForbidden, rr.Code, orgID)
		assert.Equal(t, errors.ErrCodeForbidden, errorCode(t, rr), orgID)
		assert.Nil(t, seen)
	}
}

func TestGate_IgnoresRolesEmbeddedInToken(t *testing.T) {
	f := setupGate(t)
	other, err := f.members.Register(context.Background(), membership.RegisterInput{
		Email: "mallory@evil.io", Password: "password1", OrganizationName: "Evil",
	})
	require.NoError(t, err)

	tok, err := f.tokens.Issue(other.User, []auth.OrgRole{{OrganizationID: f.orgID, Role: models.RoleOwner}})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)

	rr, _ := f.serve(t, req, f.orgID)
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestRequireRole(t *testing.T) {
	f := setupGate(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+f.token(t, f.owner))

	rr, _ := f.serve(t, req, f.orgID, RequireRole(models.RoleOwner, models.RoleAdmin))
	assert.Equal(t, http.StatusOK, rr.Code)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+f.token(t, f.owner))
	rr, _ = f.serve(t, req, f.orgID, RequireRole(models.RoleMember))
	assert.Equal(t, http.StatusForbidden, rr.Code)
}
