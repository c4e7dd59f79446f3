package oauth

import (
	"context"
	stderrors "errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"postdeck/internal/engine/channels"
	"postdeck/internal/pkg/errors"
	"postdeck/internal/platform/audit"
	"postdeck/internal/platform/config"
	"postdeck/internal/platform/models"
	"postdeck/internal/platform/repositories"
)

type Stage string

const (
	StageInitiated             Stage = "INITIATED"
	StageAwaitingCallback      Stage = "AWAITING_CALLBACK"
	StageExchanged             Stage = "EXCHANGED"
	StageLinked                Stage = "LINKED"
	StageFailedConfig          Stage = "FAILED_CONFIG"
	StageFailedExchange        Stage = "FAILED_EXCHANGE"
	StageFailedUnauthorizedOrg Stage = "FAILED_UNAUTHORIZED_ORG"
)

// StageError records the stage a linking attempt failed in.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return string(e.Stage) + ": " + e.Err.Error()
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// StageOf returns the failure stage recorded in err, or "" if there is none.
func StageOf(err error) Stage {
	var se *StageError
	if stderrors.As(err, &se) {
		return se.Stage
	}
	return ""
}

type Flow struct {
	providers map[models.Platform]*Provider
	codec     *StateCodec
	states    *repositories.OAuthStateRepository
	members   *repositories.MembershipRepository
	channels  *channels.Service
	audit     *audit.Logger
	client    *http.Client
	stateTTL  time.Duration
	now       func() time.Time
}

func NewFlow(
	cfg config.OAuthConfig,
	jwtCfg config.JWTConfig,
	states *repositories.OAuthStateRepository,
	members *repositories.MembershipRepository,
	channelSvc *channels.Service,
	auditLogger *audit.Logger,
) *Flow {
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Flow{
		providers: map[models.Platform]*Provider{
			models.PlatformFacebook:  NewProvider(models.PlatformFacebook, cfg.Facebook),
			models.PlatformInstagram: NewProvider(models.PlatformInstagram, cfg.Instagram),
			models.PlatformTikTok:    NewProvider(models.PlatformTikTok, cfg.TikTok),
		},
		codec:    NewStateCodec(jwtCfg.Secret, jwtCfg.Issuer),
		states:   states,
		members:  members,
		channels: channelSvc,
		audit:    auditLogger,
		client:   &http.Client{Timeout: timeout},
		stateTTL: jwtCfg.StateTTL,
		now:      time.Now,
	}
}

func (f *Flow) stage(stage Stage, platform models.Platform, orgID string, err error) {
	evt := log.Info()
	if err != nil {
		evt = log.Warn().Err(err)
	}
	evt.Str("stage", string(stage)).Str("platform", string(platform)).Str("organization_id", orgID).Msg("oauth link")
}

func (f *Flow) fail(stage Stage, platform models.Platform, orgID string, err error) error {
	f.stage(stage, platform, orgID, err)
	return &StageError{Stage: stage, Err: err}
}

func (f *Flow) provider(platform models.Platform) (*Provider, error) {
	p, ok := f.providers[platform]
	if !ok {
		return nil, errors.BadRequest("Unsupported platform")
	}
	if !p.Configured() {
		return nil, errors.Configuration(string(platform) + " OAuth is not configured")
	}
	return p, nil
}

// Initiate records a single-use state for orgID and returns the provider's
// authorization URL. The caller must already be a verified member of orgID.
func (f *Flow) Initiate(ctx context.Context, platform models.Platform, orgID, userID string) (string, error) {
	f.stage(StageInitiated, platform, orgID, nil)

	p, err := f.provider(platform)
	if err != nil {
		return "", f.fail(StageFailedConfig, platform, orgID, err)
	}

	now := f.now()
	expiresAt := now.Add(f.stateTTL)
	nonce := uuid.NewString()

	err = f.states.Create(ctx, &models.OAuthState{
		Nonce:          nonce,
		OrganizationID: orgID,
		UserID:         userID,
		Platform:       platform,
		ExpiresAt:      expiresAt.Unix(),
		CreatedAt:      now.Unix(),
	})
	if err != nil {
		return "", errors.Internal("Failed to store OAuth state", err)
	}

	state, err := f.codec.Encode(nonce, orgID, userID, platform, expiresAt)
	if err != nil {
		return "", errors.Internal("Failed to sign OAuth state", err)
	}

	f.stage(StageAwaitingCallback, platform, orgID, nil)
	return p.AuthCodeURL(state), nil
}

// Callback completes a linking attempt: it verifies and consumes state,
// exchanges code and upserts the channel.
func (f *Flow) Callback(ctx context.Context, platform models.Platform, code, state string) (*models.Channel, error) {
	p, err := f.provider(platform)
	if err != nil {
		return nil, f.fail(StageFailedConfig, platform, "", err)
	}

	claims, err := f.codec.Decode(state)
	if err != nil {
		return nil, f.fail(StageFailedUnauthorizedOrg, platform, "", errors.Wrap(errors.KindForbidden, "Invalid OAuth state", err))
	}
	orgID := claims.OrganizationID
	if claims.Platform != platform {
		return nil, f.fail(StageFailedUnauthorizedOrg, platform, orgID, errors.Forbidden("OAuth state was issued for another platform"))
	}

	consumed, err := f.states.Consume(ctx, claims.Nonce(), orgID, platform, f.now().Unix())
	if err != nil {
		return nil, errors.Internal("Failed to consume OAuth state", err)
	}
	if !consumed {
		return nil, f.fail(StageFailedUnauthorizedOrg, platform, orgID, errors.Forbidden("OAuth state expired or already used"))
	}

	member, err := f.members.Get(ctx, claims.InitiatedBy, orgID)
	if err != nil {
		return nil, errors.Internal("Failed to check membership", err)
	}
	if member == nil {
		return nil, f.fail(StageFailedUnauthorizedOrg, platform, orgID, errors.Forbidden("Initiating user is no longer a member"))
	}

	if code == "" {
		return nil, f.fail(StageFailedExchange, platform, orgID, errors.BadRequest("Authorization code is required"))
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, f.client)

	tok, err := p.Exchange(ctx, code)
	if err != nil {
		return nil, f.fail(StageFailedExchange, platform, orgID, exchangeError(err))
	}
	f.stage(StageExchanged, platform, orgID, nil)

	acct, err := p.Account(ctx, tok)
	if err != nil {
		var details interface{}
		var pe *ProfileError
		if stderrors.As(err, &pe) {
			details = map[string]interface{}{"status": pe.StatusCode, "body": truncate(pe.Body)}
		}
		return nil, f.fail(StageFailedExchange, platform, orgID, errors.Upstream("Failed to resolve the connected account", err, details))
	}

	var expiresAt *int64
	if !tok.Expiry.IsZero() {
		at := tok.Expiry.Unix()
		expiresAt = &at
	}

	ch, err := f.channels.Upsert(ctx, channels.UpsertInput{
		OrganizationID: orgID,
		Platform:       platform,
		ExternalID:     acct.ExternalID,
		Name:           acct.Name,
		AccessToken:    tok.AccessToken,
		RefreshToken:   tok.RefreshToken,
		TokenExpiresAt: expiresAt,
		Metadata:       acct.Metadata,
	})
	if err != nil {
		return nil, err
	}

	f.stage(StageLinked, platform, orgID, nil)
	f.audit.Log(audit.WithActor(ctx, audit.Actor{UserID: claims.InitiatedBy}), orgID, audit.ActionChannelLinked, "channel", ch.ID,
		map[string]interface{}{"platform": string(platform), "externalId": ch.ExternalID})
	return ch, nil
}

// exchangeError surfaces the provider's answer for diagnosis. The request we
// sent, which holds the client secret, is never included.
func exchangeError(err error) error {
	var re *oauth2.RetrieveError
	if stderrors.As(err, &re) {
		details := map[string]interface{}{
			"error":             re.ErrorCode,
			"error_description": re.ErrorDescription,
			"body":              truncate(string(re.Body)),
		}
		if re.Response != nil {
			details["status"] = re.Response.StatusCode
		}
		return errors.Upstream("Token exchange failed", err, details)
	}
	return errors.Upstream("Token exchange failed", err, nil)
}

func truncate(s string) string {
	const max = 2048
	if len(s) > max {
		return s[:max]
	}
	return s
}

// PurgeStates deletes expired and consumed state records.
func (f *Flow) PurgeStates(ctx context.Context) (int64, error) {
	return f.states.DeleteExpired(ctx, f.now().Unix())
}
