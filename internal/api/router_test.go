package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"postdeck/internal/engine/webhooks"
	"postdeck/internal/pkg/errors"
	"postdeck/internal/platform/config"
	"postdeck/internal/platform/database"
)

const dashboard = "http://localhost:3000/dashboard/channels"

type testServer struct {
	t       *testing.T
	handler http.Handler
}

func testConfig(tiktok config.ProviderConfig) *config.Config {
	return &config.Config{
		Environment: "development",
		Database:    config.DatabaseConfig{URL: ":memory:"},
		JWT: config.JWTConfig{
			Secret:     "router-secret-router-secret-router",
			SessionTTL: 7 * 24 * time.Hour,
			StateTTL:   10 * time.Minute,
			Issuer:     "postdeck",
		},
		Session:   config.SessionConfig{CookieName: "auth-token"},
		Security:  config.SecurityConfig{BcryptCost: 4},
		CORS:      config.CORSConfig{AllowedOrigins: []string{"http://localhost:3000"}, AllowedMethods: []string{"GET", "POST"}},
		RateLimit: config.RateLimitConfig{AuthPerMinute: 1000, OAuthPerMinute: 1000},
		OAuth:     config.OAuthConfig{DashboardURL: dashboard, HTTPTimeout: 5 * time.Second, TikTok: tiktok},
		Webhooks:  config.WebhooksConfig{VerifyToken: "verify-me", AppSecret: "app-secret"},
	}
}

func newTestServer(t *testing.T, cfg *config.Config) *testServer {
	t.Helper()
	db, err := database.Open(cfg.Database)
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db, "up"))
	t.Cleanup(func() { db.Close() })

	deps := NewDependencies(cfg, db)
	t.Cleanup(deps.RateLimiter.Close)
	return &testServer{t: t, handler: NewHandler(deps, cfg.CORS)}
}

// do sends a request with an optional JSON body and bearer token.
func (s *testServer) do(method, target string, body interface{}, token string) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	s.handler.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(rr.Body).Decode(v))
}

type registered struct {
	User struct {
		ID string `json:"id"`
	} `json:"user"`
	Organization struct {
		ID   string `json:"id"`
		Slug string `json:"slug"`
	} `json:"organization"`
}

// signup registers an account and logs in, returning the org id and session token.
func (s *testServer) signup(email, orgName string) (string, string) {
	s.t.Helper()
	rr := s.do(http.MethodPost, "/auth/register", map[string]string{
		"email": email, "password": "password1", "organizationName": orgName,
	}, "")
	require.Equal(s.t, http.StatusOK, rr.Code, rr.Body.String())
	var reg registered
	decodeBody(s.t, rr, &reg)

	rr = s.do(http.MethodPost, "/auth/login", map[string]string{"email": email, "password": "password1"}, "")
	require.Equal(s.t, http.StatusOK, rr.Code, rr.Body.String())
	var login struct {
		Token string `json:"token"`
	}
	decodeBody(s.t, rr, &login)
	return reg.Organization.ID, login.Token
}

func TestRegister_SlugThenConflict(t *testing.T) {
	s := newTestServer(t, testConfig(config.ProviderConfig{}))
	body := map[string]string{"email": "founder@acme.io", "password": "password1", "organizationName": "Acme"}

	rr := s.do(http.MethodPost, "/auth/register", body, "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var reg registered
	decodeBody(t, rr, &reg)
	assert.Equal(t, "acme", reg.Organization.Slug)
	assert.NotContains(t, rr.Body.String(), "password")

	rr = s.do(http.MethodPost, "/auth/register", body, "")
	assert.Equal(t, http.StatusConflict, rr.Code)
	var e errors.ErrorResponse
	decodeBody(t, rr, &e)
	assert.Equal(t, errors.ErrCodeConflict, e.Code)
}

func TestRegister_ValidationDetails(t *testing.T) {
	s := newTestServer(t, testConfig(config.ProviderConfig{}))

	rr := s.do(http.MethodPost, "/auth/register", map[string]string{"email": "not-an-email", "password": "pw"}, "")
	require.Equal(t, http.StatusBadRequest, rr.Code)

	var e struct {
		Code    string            `json:"code"`
		Details map[string]string `json:"details"`
	}
	decodeBody(t, rr, &e)
	assert.Equal(t, errors.ErrCodeInvalidInput, e.Code)
	assert.Contains(t, e.Details, "email")
	assert.Contains(t, e.Details, "password")
	assert.Contains(t, e.Details, "organizationName")
}

func TestLogin_CookieAndSession(t *testing.T) {
	s := newTestServer(t, testConfig(config.ProviderConfig{}))
	s.signup("founder@acme.io", "Acme")

	rr := s.do(http.MethodPost, "/auth/login", map[string]string{"email": "founder@acme.io", "password": "password1"}, "")
	require.Equal(t, http.StatusOK, rr.Code)

	var cookie *http.Cookie
	for _, c := range rr.Result().Cookies() {
		if c.Name == "auth-token" {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)
	assert.False(t, cookie.Secure)
	assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)
	assert.Equal(t, 7*24*60*60, cookie.MaxAge)

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.AddCookie(cookie)
	me := httptest.NewRecorder()
	s.handler.ServeHTTP(me, req)
	require.Equal(t, http.StatusOK, me.Code)

	var session struct {
		User struct {
			Email string `json:"email"`
		} `json:"user"`
		Organizations []struct {
			Slug string `json:"slug"`
			Role string `json:"role"`
		} `json:"organizations"`
	}
	decodeBody(t, me, &session)
	assert.Equal(t, "founder@acme.io", session.User.Email)
	require.Len(t, session.Organizations, 1)
	assert.Equal(t, "OWNER", session.Organizations[0].Role)

	rr = s.do(http.MethodPost, "/auth/login", map[string]string{"email": "founder@acme.io", "password": "wrong-password"}, "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = s.do(http.MethodGet, "/auth/me", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestLogout_ClearsCookie(t *testing.T) {
	s := newTestServer(t, testConfig(config.ProviderConfig{}))
	rr := s.do(http.MethodPost, "/auth/logout", nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "", cookies[0].Value)
	assert.Less(t, cookies[0].MaxAge, 0)
}

func TestOrganizationScopedRoutes_RequireMembership(t *testing.T) {
	s := newTestServer(t, testConfig(config.ProviderConfig{}))
	acme, _ := s.signup("founder@acme.io", "Acme")
	_, mallory := s.signup("mallory@evil.io", "Evil")

	paths := []string{
		"/organizations/" + acme + "/channels",
		"/organizations/" + acme + "/posts",
		"/organizations/" + acme + "/notifications",
		"/organizations/org_missing/channels",
		"/oauth/tiktok?organizationId=" + acme,
	}
	for _, p := range paths {
		rr := s.do(http.MethodGet, p, nil, mallory)
		assert.Equal(t, http.StatusForbidden, rr.Code, p)

		rr = s.do(http.MethodGet, p, nil, "")
		assert.Equal(t, http.StatusUnauthorized, rr.Code, p)

		rr = s.do(http.MethodGet, p, nil, "garbage")
		assert.Equal(t, http.StatusUnauthorized, rr.Code, p)
	}
}

type channelJSON struct {
	ID         string `json:"id"`
	Platform   string `json:"platform"`
	ExternalID string `json:"externalId"`
	IsActive   bool   `json:"isActive"`
	CanPublish bool   `json:"canPublish"`
}

func (s *testServer) listChannels(orgID, token, query string) []channelJSON {
	s.t.Helper()
	rr := s.do(http.MethodGet, "/organizations/"+orgID+"/channels"+query, nil, token)
	require.Equal(s.t, http.StatusOK, rr.Code, rr.Body.String())
	var body struct {
		Channels []channelJSON `json:"channels"`
	}
	decodeBody(s.t, rr, &body)
	return body.Channels
}

func TestChannels_UpsertResetAndPublish(t *testing.T) {
	s := newTestServer(t, testConfig(config.ProviderConfig{}))
	org, token := s.signup("founder@acme.io", "Acme")
	path := "/organizations/" + org + "/channels"

	for _, tok := range []string{"first", "second"} {
		rr := s.do(http.MethodPut, path, map[string]interface{}{
			"platform": "facebook", "externalId": "page-1", "name": "Acme Page", "accessToken": tok,
		}, token)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		assert.NotContains(t, rr.Body.String(), tok)
	}

	list := s.listChannels(org, token, "")
	require.Len(t, list, 1)
	ch := list[0]
	assert.Equal(t, "FACEBOOK", ch.Platform)
	assert.True(t, ch.CanPublish)

	assert.Len(t, s.listChannels(org, token, "?platforms=TIKTOK"), 0)
	assert.Len(t, s.listChannels(org, token, "?platforms=bogus"), 1)

	rr := s.do(http.MethodGet, path+"/"+ch.ID+"/diagnostics", nil, token)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.NotContains(t, rr.Body.String(), "second")

	rr = s.do(http.MethodPost, path+"/"+ch.ID+"/reset", nil, token)
	require.Equal(t, http.StatusOK, rr.Code)

	list = s.listChannels(org, token, "")
	require.Len(t, list, 1)
	assert.True(t, list[0].IsActive)
	assert.False(t, list[0].CanPublish)

	rr = s.do(http.MethodPost, "/organizations/"+org+"/posts", map[string]interface{}{
		"channelId": ch.ID, "type": "POST", "caption": "hello",
		"assets": []map[string]string{{"url": "https://cdn.example.com/a.mp4"}},
	}, token)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var post struct {
		ID     string `json:"id"`
		Status string `json:"status"`
		Assets []struct {
			MediaType string `json:"mediaType"`
		} `json:"assets"`
	}
	decodeBody(t, rr, &post)
	assert.Equal(t, "DRAFT", post.Status)
	require.Len(t, post.Assets, 1)
	assert.Equal(t, "VIDEO", post.Assets[0].MediaType)

	rr = s.do(http.MethodPost, "/organizations/"+org+"/posts/"+post.ID+"/publish", nil, token)
	require.Equal(t, http.StatusOK, rr.Code)
	decodeBody(t, rr, &post)
	assert.Equal(t, "FAILED", post.Status)

	rr = s.do(http.MethodPost, "/organizations/"+org+"/posts/"+post.ID+"/cancel", nil, token)
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = s.do(http.MethodDelete, path+"/"+ch.ID, nil, token)
	require.Equal(t, http.StatusOK, rr.Code)
	rr = s.do(http.MethodDelete, path+"/"+ch.ID, nil, token)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = s.do(http.MethodGet, "/organizations/"+org+"/audit-logs", nil, token)
	require.Equal(t, http.StatusOK, rr.Code)
	var audit struct {
		AuditLogs []struct {
			Action string `json:"action"`
		} `json:"auditLogs"`
	}
	decodeBody(t, rr, &audit)
	assert.NotEmpty(t, audit.AuditLogs)
}

func TestPosts_ChannelFromAnotherOrganization(t *testing.T) {
	s := newTestServer(t, testConfig(config.ProviderConfig{}))
	acme, acmeToken := s.signup("founder@acme.io", "Acme")
	other, otherToken := s.signup("owner@other.io", "Other")

	rr := s.do(http.MethodPut, "/organizations/"+other+"/channels", map[string]interface{}{
		"platform": "TIKTOK", "externalId": "x", "accessToken": "t",
	}, otherToken)
	require.Equal(t, http.StatusOK, rr.Code)
	var ch channelJSON
	decodeBody(t, rr, &ch)

	rr = s.do(http.MethodPost, "/organizations/"+acme+"/posts", map[string]interface{}{
		"channelId": ch.ID, "type": "VIDEO",
	}, acmeToken)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestOAuth_TikTokLinkScenario(t *testing.T) {
	var accessToken atomic.Value
	accessToken.Store("T")
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": accessToken.Load(), "open_id": "X", "expires_in": 86400, "token_type": "Bearer",
		})
	})
	mux.HandleFunc("/me", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	})
	provider := httptest.NewServer(mux)
	t.Cleanup(provider.Close)

	s := newTestServer(t, testConfig(config.ProviderConfig{
		ClientID:     "key",
		ClientSecret: "secret",
		RedirectURI:  "http://localhost:8080/oauth/callback/tiktok",
		Scopes:       []string{"user.info.basic"},
		AuthURL:      provider.URL + "/authorize",
		TokenURL:     provider.URL + "/token",
		ProfileURL:   provider.URL + "/me",
	}))
	org, token := s.signup("founder@acme.io", "Acme")

	link := func() *url.URL {
		rr := s.do(http.MethodGet, "/oauth/tiktok?organizationId="+org, nil, token)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		var body struct {
			AuthURL string `json:"authUrl"`
		}
		decodeBody(t, rr, &body)
		authURL, err := url.Parse(body.AuthURL)
		require.NoError(t, err)
		state := authURL.Query().Get("state")

		rr = s.do(http.MethodGet, "/oauth/callback/tiktok?code=C&state="+url.QueryEscape(state), nil, "")
		require.Equal(t, http.StatusFound, rr.Code)
		loc, err := url.Parse(rr.Header().Get("Location"))
		require.NoError(t, err)

		// Replaying the same state must fail.
		rr = s.do(http.MethodGet, "/oauth/callback/tiktok?code=C&state="+url.QueryEscape(state), nil, "")
		replay, err := url.Parse(rr.Header().Get("Location"))
		require.NoError(t, err)
		assert.Equal(t, "failed_unauthorized_org", replay.Query().Get("error"))
		return loc
	}

	loc := link()
	assert.Equal(t, "tiktok_connected", loc.Query().Get("success"))
	channelID := loc.Query().Get("channelId")
	require.NotEmpty(t, channelID)

	accessToken.Store("T2")
	loc = link()
	assert.Equal(t, channelID, loc.Query().Get("channelId"))

	list := s.listChannels(org, token, "?platforms=tiktok")
	require.Len(t, list, 1)
	assert.Equal(t, "X", list[0].ExternalID)
}

func TestOAuth_InitiateRedirectAndErrors(t *testing.T) {
	s := newTestServer(t, testConfig(config.ProviderConfig{
		ClientID: "key", ClientSecret: "secret", RedirectURI: "http://localhost/cb",
		AuthURL: "https://tiktok.example/authorize", TokenURL: "https://tiktok.example/token",
	}))
	org, token := s.signup("founder@acme.io", "Acme")

	rr := s.do(http.MethodGet, "/oauth/tiktok?redirect=1&organizationId="+org, nil, token)
	require.Equal(t, http.StatusFound, rr.Code)
	assert.Contains(t, rr.Header().Get("Location"), "https://tiktok.example/authorize")

	rr = s.do(http.MethodGet, "/oauth/facebook?organizationId="+org, nil, token)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	var e errors.ErrorResponse
	decodeBody(t, rr, &e)
	assert.Equal(t, errors.ErrCodeConfiguration, e.Code)

	rr = s.do(http.MethodGet, "/oauth/callback/tiktok?error=access_denied", nil, "")
	require.Equal(t, http.StatusFound, rr.Code)
	loc, _ := url.Parse(rr.Header().Get("Location"))
	assert.Equal(t, "access_denied", loc.Query().Get("error"))
	assert.Equal(t, "tiktok", loc.Query().Get("platform"))

	rr = s.do(http.MethodGet, "/oauth/callback/tiktok?code=C&state=forged", nil, "")
	loc, _ = url.Parse(rr.Header().Get("Location"))
	assert.Equal(t, "failed_unauthorized_org", loc.Query().Get("error"))

	rr = s.do(http.MethodGet, "/oauth/callback/myspace?code=C&state=x", nil, "")
	loc, _ = url.Parse(rr.Header().Get("Location"))
	assert.Equal(t, "unsupported_platform", loc.Query().Get("error"))
}

func TestWebhooks_HandshakeAndDispatch(t *testing.T) {
	s := newTestServer(t, testConfig(config.ProviderConfig{}))
	org, token := s.signup("founder@acme.io", "Acme")

	rr := s.do(http.MethodGet, "/webhooks?hub.mode=subscribe&hub.verify_token=verify-me&hub.challenge=42", nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "42", rr.Body.String())

	rr = s.do(http.MethodGet, "/webhooks?hub.mode=subscribe&hub.verify_token=nope&hub.challenge=42", nil, "")
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = s.do(http.MethodPut, "/organizations/"+org+"/channels", map[string]interface{}{
		"platform": "INSTAGRAM", "externalId": "17841400000000001", "name": "acme.ig", "accessToken": "t",
	}, token)
	require.Equal(t, http.StatusOK, rr.Code)

	payload := []byte(`{"object":"instagram","entry":[{"id":"17841400000000001","time":1700000000,"changes":[{"field":"comments","value":{"text":"nice"}}]}]}`)
	post := func(sig string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/webhooks", bytes.NewReader(payload))
		req.Header.Set(webhooks.SignatureHeader, sig)
		rr := httptest.NewRecorder()
		s.handler.ServeHTTP(rr, req)
		return rr
	}

	assert.Equal(t, http.StatusUnauthorized, post("sha256=00").Code)

	rr = post("sha256=" + webhooks.Sign("app-secret", payload))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "EVENT_RECEIVED", rr.Body.String())

	rr = s.do(http.MethodGet, "/organizations/"+org+"/notifications?unread=1", nil, token)
	require.Equal(t, http.StatusOK, rr.Code)
	var body struct {
		Notifications []struct {
			ID   string `json:"id"`
			Type string `json:"type"`
		} `json:"notifications"`
	}
	decodeBody(t, rr, &body)
	require.Len(t, body.Notifications, 1)
	assert.Equal(t, "comments", body.Notifications[0].Type)

	rr = s.do(http.MethodPatch, "/organizations/"+org+"/notifications/"+body.Notifications[0].ID, nil, token)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = s.do(http.MethodGet, "/organizations/"+org+"/notifications?unread=1", nil, token)
	decodeBody(t, rr, &body)
	assert.Empty(t, body.Notifications)
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t, testConfig(config.ProviderConfig{}))
	rr := s.do(http.MethodGet, "/healthz", nil, "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"healthy"`)
}

func TestRateLimit_AuthEndpoints(t *testing.T) {
	cfg := testConfig(config.ProviderConfig{})
	cfg.RateLimit.AuthPerMinute = 2
	s := newTestServer(t, cfg)

	body := map[string]string{"email": "nobody@acme.io", "password": "x"}
	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodPost, "/auth/login", body, "").Code)
	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodPost, "/auth/login", body, "").Code)

	rr := s.do(http.MethodPost, "/auth/login", body, "")
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	var e errors.ErrorResponse
	decodeBody(t, rr, &e)
	assert.Equal(t, errors.ErrCodeRateLimitExceeded, e.Code)
}
