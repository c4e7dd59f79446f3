package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

type Platform string

const (
	PlatformFacebook  Platform = "FACEBOOK"
	PlatformInstagram Platform = "INSTAGRAM"
	PlatformTikTok    Platform = "TIKTOK"
)

var Platforms = []Platform{PlatformFacebook, PlatformInstagram, PlatformTikTok}

// ParsePlatform accepts either the stored form ("TIKTOK") or the URL form ("tiktok").
func ParsePlatform(s string) (Platform, bool) {
	p := Platform(strings.ToUpper(strings.TrimSpace(s)))
	switch p {
	case PlatformFacebook, PlatformInstagram, PlatformTikTok:
		return p, true
	}
	return "", false
}

// Slug is the lowercase form used in URLs and redirect parameters.
func (p Platform) Slug() string {
	return strings.ToLower(string(p))
}

type Channel struct {
	ID             string          `json:"id"`
	OrganizationID string          `json:"organizationId"`
	Platform       Platform        `json:"platform"`
	ExternalID     string          `json:"externalId"`
	Name           string          `json:"name"`
	AccessToken    string          `json:"-"`
	RefreshToken   string          `json:"-"`
	TokenExpiresAt *int64          `json:"tokenExpiresAt,omitempty"`
	IsActive       bool            `json:"isActive"`
	Metadata       ChannelMetadata `json:"metadata,omitempty"`
	CreatedAt      int64           `json:"createdAt"`
	UpdatedAt      int64           `json:"updatedAt"`
}

// CanPublish reports whether the stored token can be used for API calls. An
// empty token marks a disconnected channel whose row is kept; it says nothing
// about IsActive.
func (c *Channel) CanPublish() bool {
	return c.AccessToken != ""
}

func (c Channel) MarshalJSON() ([]byte, error) {
	type alias Channel
	return json.Marshal(struct {
		alias
		CanPublish bool `json:"canPublish"`
	}{alias: alias(c), CanPublish: c.CanPublish()})
}

// ChannelMetadata is the platform-specific part of a channel. Each platform has
// exactly one declared variant.
type ChannelMetadata interface {
	Platform() Platform
}

type FacebookMetadata struct {
	UserName string   `json:"userName,omitempty"`
	Scopes   []string `json:"scopes,omitempty"`
}

func (FacebookMetadata) Platform() Platform { return PlatformFacebook }

type InstagramMetadata struct {
	Username    string   `json:"username,omitempty"`
	AccountType string   `json:"accountType,omitempty"`
	Scopes      []string `json:"scopes,omitempty"`
}

func (InstagramMetadata) Platform() Platform { return PlatformInstagram }

type TikTokMetadata struct {
	OpenID           string   `json:"openId"`
	DisplayName      string   `json:"displayName,omitempty"`
	AvatarURL        string   `json:"avatarUrl,omitempty"`
	Scopes           []string `json:"scopes,omitempty"`
	RefreshExpiresAt *int64   `json:"refreshExpiresAt,omitempty"`
}

func (TikTokMetadata) Platform() Platform { return PlatformTikTok }

var ErrMetadataPlatform = errors.New("metadata platform does not match channel platform")

type metadataEnvelope struct {
	Platform Platform        `json:"platform"`
	Data     json.RawMessage `json:"data"`
}

// EncodeMetadata serializes m for storage, tagged with its platform. A nil m
// encodes to nil.
func EncodeMetadata(m ChannelMetadata) ([]byte, error) {
	if m == nil {
		return nil, nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return json.Marshal(metadataEnvelope{Platform: m.Platform(), Data: data})
}

// DecodeMetadata parses stored metadata for a channel on platform. Unknown
// fields and a mismatched tag are rejected.
func DecodeMetadata(platform Platform, raw []byte) (ChannelMetadata, error) {
	if len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}

	var env metadataEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode metadata envelope: %w", err)
	}
	if env.Platform != platform {
		return nil, ErrMetadataPlatform
	}

	var target ChannelMetadata
	switch platform {
	case PlatformFacebook:
		target = &FacebookMetadata{}
	case PlatformInstagram:
		target = &InstagramMetadata{}
	case PlatformTikTok:
		target = &TikTokMetadata{}
	default:
		return nil, fmt.Errorf("unknown platform %q", platform)
	}

	dec := json.NewDecoder(bytes.NewReader(env.Data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(target); err != nil {
		return nil, fmt.Errorf("decode %s metadata: %w", platform, err)
	}

	switch m := target.(type) {
	case *FacebookMetadata:
		return *m, nil
	case *InstagramMetadata:
		return *m, nil
	case *TikTokMetadata:
		return *m, nil
	}
	return nil, nil
}
