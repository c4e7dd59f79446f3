package models

import (
	"encoding/json"
	"testing"
)

func TestMetadataRoundTrip(t *testing.T) {
	in := TikTokMetadata{OpenID: "X", DisplayName: "creator", Scopes: []string{"user.info.basic"}}

	raw, err := EncodeMetadata(in)
	if err != nil {
		t.Fatalf("EncodeMetadata() error = %v", err)
	}

	out, err := DecodeMetadata(PlatformTikTok, raw)
	if err != nil {
		t.Fatalf("DecodeMetadata() error = %v", err)
	}

	got, ok := out.(TikTokMetadata)
	if !ok {
		t.Fatalf("expected TikTokMetadata, got %T", out)
	}
	if got.OpenID != "X" || got.DisplayName != "creator" {
		t.Errorf("unexpected metadata: %+v", got)
	}
}

func TestDecodeMetadata_Rejects(t *testing.T) {
	tests := []struct {
		name     string
		platform Platform
		raw      string
	}{
		{"tag mismatch", PlatformFacebook, `{"platform":"TIKTOK","data":{"openId":"X"}}`},
		{"unknown field", PlatformInstagram, `{"platform":"INSTAGRAM","data":{"followers":10}}`},
		{"not json", PlatformTikTok, `{{`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeMetadata(tt.platform, []byte(tt.raw)); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestDecodeMetadata_Empty(t *testing.T) {
	for _, raw := range []string{"", "null"} {
		m, err := DecodeMetadata(PlatformTikTok, []byte(raw))
		if err != nil || m != nil {
			t.Errorf("DecodeMetadata(%q) = %v, %v; want nil, nil", raw, m, err)
		}
	}
}

func TestChannelJSON_HidesTokens(t *testing.T) {
	ch := Channel{ID: "ch_1", Platform: PlatformTikTok, AccessToken: "secret-token", IsActive: true}

	b, err := json.Marshal(ch)
	if err != nil {
		t.Fatal(err)
	}

	var out map[string]interface{}
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatal(err)
	}
	if _, ok := out["accessToken"]; ok {
		t.Error("access token must not be serialized")
	}
	if out["canPublish"] != true {
		t.Errorf("canPublish = %v, want true", out["canPublish"])
	}

	ch.AccessToken = ""
	b, _ = json.Marshal(ch)
	json.Unmarshal(b, &out)
	if out["canPublish"] != false || out["isActive"] != true {
		t.Errorf("disconnected channel: canPublish=%v isActive=%v", out["canPublish"], out["isActive"])
	}
}

func TestParsePlatform(t *testing.T) {
	if p, ok := ParsePlatform("tiktok"); !ok || p != PlatformTikTok {
		t.Errorf("ParsePlatform(tiktok) = %v, %v", p, ok)
	}
	if _, ok := ParsePlatform("myspace"); ok {
		t.Error("ParsePlatform(myspace) should fail")
	}
	if PlatformInstagram.Slug() != "instagram" {
		t.Errorf("Slug() = %s", PlatformInstagram.Slug())
	}
}
