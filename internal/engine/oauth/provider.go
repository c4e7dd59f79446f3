package oauth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"postdeck/internal/platform/config"
	"postdeck/internal/platform/models"
)

// Account is the platform identity a token was issued for.
type Account struct {
	ExternalID string
	Name       string
	Metadata   models.ChannelMetadata
}

// Provider wraps one platform's OAuth client.
type Provider struct {
	platform models.Platform
	cfg      config.ProviderConfig
	conf     *oauth2.Config
}

func NewProvider(platform models.Platform, cfg config.ProviderConfig) *Provider {
	conf := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURI,
		Scopes:       cfg.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   cfg.AuthURL,
			TokenURL:  cfg.TokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
	// TikTok separates scopes with commas and names the client id client_key.
	if platform == models.PlatformTikTok {
		conf.Scopes = nil
	}
	return &Provider{platform: platform, cfg: cfg, conf: conf}
}

func (p *Provider) Platform() models.Platform {
	return p.platform
}

func (p *Provider) Configured() bool {
	return p.cfg.Configured()
}

func (p *Provider) AuthCodeURL(state string) string {
	var opts []oauth2.AuthCodeOption
	switch p.platform {
	case models.PlatformTikTok:
		opts = append(opts,
			oauth2.SetAuthURLParam("client_key", p.cfg.ClientID),
			oauth2.SetAuthURLParam("scope", strings.Join(p.cfg.Scopes, ",")),
		)
	case models.PlatformFacebook:
		opts = append(opts, oauth2.SetAuthURLParam("auth_type", "rerequest"))
	}
	return p.conf.AuthCodeURL(state, opts...)
}

// Exchange trades an authorization code for tokens. ctx must carry the HTTP
// client under oauth2.HTTPClient.
func (p *Provider) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	var opts []oauth2.AuthCodeOption
	if p.platform == models.PlatformTikTok {
		opts = append(opts, oauth2.SetAuthURLParam("client_key", p.cfg.ClientID))
	}
	return p.conf.Exchange(ctx, code, opts...)
}

// Account resolves the platform account behind tok. When the token response
// already names the account, the profile lookup only enriches the result and
// a failed lookup is logged rather than returned.
func (p *Provider) Account(ctx context.Context, tok *oauth2.Token) (*Account, error) {
	switch p.platform {
	case models.PlatformTikTok:
		return p.tiktokAccount(ctx, tok)
	case models.PlatformInstagram:
		return p.instagramAccount(ctx, tok)
	case models.PlatformFacebook:
		return p.facebookAccount(ctx, tok)
	}
	return nil, fmt.Errorf("unsupported platform %s", p.platform)
}

func (p *Provider) warnProfile(err error) {
	if err != nil {
		log.Warn().Err(err).Str("platform", string(p.platform)).Msg("profile lookup failed, linking with token response data")
	}
}

func (p *Provider) getJSON(ctx context.Context, tok *oauth2.Token, out interface{}) error {
	if p.cfg.ProfileURL == "" {
		return fmt.Errorf("%s profile url not configured", p.platform)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.ProfileURL, nil)
	if err != nil {
		return err
	}

	resp, err := p.conf.Client(ctx, tok).Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &ProfileError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	return dec.Decode(out)
}

// ProfileError is a non-2xx answer from a profile endpoint.
type ProfileError struct {
	StatusCode int
	Body       string
}

func (e *ProfileError) Error() string {
	return fmt.Sprintf("profile request failed with status %d", e.StatusCode)
}

func (p *Provider) tiktokAccount(ctx context.Context, tok *oauth2.Token) (*Account, error) {
	meta := models.TikTokMetadata{
		OpenID: extraString(tok, "open_id"),
		Scopes: extraScopes(tok, "scope", p.cfg.Scopes),
	}
	if secs := extraInt(tok, "refresh_expires_in"); secs > 0 {
		at := time.Now().Add(time.Duration(secs) * time.Second).Unix()
		meta.RefreshExpiresAt = &at
	}

	var profile struct {
		Data struct {
			User struct {
				OpenID      string `json:"open_id"`
				DisplayName string `json:"display_name"`
				AvatarURL   string `json:"avatar_url"`
			} `json:"user"`
		} `json:"data"`
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	profileErr := p.getJSON(ctx, tok, &profile)
	if profileErr == nil && profile.Error.Code != "" && profile.Error.Code != "ok" {
		profileErr = fmt.Errorf("tiktok user info: %s: %s", profile.Error.Code, profile.Error.Message)
	}
	if profileErr == nil {
		if meta.OpenID == "" {
			meta.OpenID = profile.Data.User.OpenID
		}
		meta.DisplayName = profile.Data.User.DisplayName
		meta.AvatarURL = profile.Data.User.AvatarURL
	}

	if meta.OpenID == "" {
		if profileErr != nil {
			return nil, profileErr
		}
		return nil, fmt.Errorf("tiktok token response has no open_id")
	}
	p.warnProfile(profileErr)

	name := meta.DisplayName
	if name == "" {
		name = meta.OpenID
	}
	return &Account{ExternalID: meta.OpenID, Name: name, Metadata: meta}, nil
}

// Instagram ids exceed float64 precision, so the profile's string id is
// preferred over the numeric user_id in the token response.
func (p *Provider) instagramAccount(ctx context.Context, tok *oauth2.Token) (*Account, error) {
	meta := models.InstagramMetadata{Scopes: extraScopes(tok, "permissions", p.cfg.Scopes)}

	var profile struct {
		UserID      json.Number `json:"user_id"`
		ID          json.Number `json:"id"`
		Username    string      `json:"username"`
		AccountType string      `json:"account_type"`
	}
	profileErr := p.getJSON(ctx, tok, &profile)

	externalID := ""
	if profileErr == nil {
		externalID = profile.UserID.String()
		if externalID == "" {
			externalID = profile.ID.String()
		}
		meta.Username = profile.Username
		meta.AccountType = profile.AccountType
	}
	if externalID == "" {
		externalID = extraString(tok, "user_id")
	}
	if externalID == "" {
		if profileErr != nil {
			return nil, profileErr
		}
		return nil, fmt.Errorf("instagram account id missing")
	}
	p.warnProfile(profileErr)

	name := meta.Username
	if name == "" {
		name = externalID
	}
	return &Account{ExternalID: externalID, Name: name, Metadata: meta}, nil
}

func (p *Provider) facebookAccount(ctx context.Context, tok *oauth2.Token) (*Account, error) {
	var profile struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	if err := p.getJSON(ctx, tok, &profile); err != nil {
		return nil, err
	}
	if profile.ID == "" {
		return nil, fmt.Errorf("facebook profile has no id")
	}

	name := profile.Name
	if name == "" {
		name = profile.ID
	}
	return &Account{
		ExternalID: profile.ID,
		Name:       name,
		Metadata:   models.FacebookMetadata{UserName: profile.Name, Scopes: p.cfg.Scopes},
	}, nil
}

// extraString reads a token response field that may be a string or a number.
func extraString(tok *oauth2.Token, key string) string {
	switch v := tok.Extra(key).(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		return v.String()
	}
	return ""
}

func extraInt(tok *oauth2.Token, key string) int64 {
	switch v := tok.Extra(key).(type) {
	case float64:
		return int64(v)
	case string:
		n, _ := strconv.ParseInt(v, 10, 64)
		return n
	}
	return 0
}

// extraScopes reads granted scopes from the token response, falling back to
// the requested ones.
func extraScopes(tok *oauth2.Token, key string, fallback []string) []string {
	switch v := tok.Extra(key).(type) {
	case string:
		if v != "" {
			return strings.FieldsFunc(v, func(r rune) bool { return r == ',' || r == ' ' })
		}
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, s := range v {
			if str, ok := s.(string); ok {
				out = append(out, str)
			}
		}
		return out
	}
	return fallback
}
