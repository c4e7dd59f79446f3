package oauth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"postdeck/internal/platform/models"
)

const stateAudience = "oauth-state"

var ErrInvalidState = errors.New("invalid oauth state")

// StateClaims bind a pending authorization to the organization and user that
// started it. The nonce (jti) must also exist unconsumed in oauth_states.
type StateClaims struct {
	OrganizationID string          `json:"org"`
	InitiatedBy    string          `json:"usr"`
	Platform       models.Platform `json:"plt"`
	jwt.RegisteredClaims
}

func (c *StateClaims) Nonce() string {
	return c.ID
}

// StateCodec signs and verifies the OAuth state parameter. Its audience keeps
// state values and session tokens from being accepted in place of each other.
type StateCodec struct {
	secret []byte
	issuer string
	now    func() time.Time
}

func NewStateCodec(secret, issuer string) *StateCodec {
	return &StateCodec{secret: []byte(secret), issuer: issuer, now: time.Now}
}

func (c *StateCodec) Encode(nonce, orgID, userID string, platform models.Platform, expiresAt time.Time) (string, error) {
	claims := StateClaims{
		OrganizationID: orgID,
		InitiatedBy:    userID,
		Platform:       platform,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        nonce,
			Issuer:    c.issuer,
			Audience:  jwt.ClaimStrings{stateAudience},
			IssuedAt:  jwt.NewNumericDate(c.now()),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
}

func (c *StateCodec) Decode(state string) (*StateClaims, error) {
	if state == "" {
		return nil, ErrInvalidState
	}

	token, err := jwt.ParseWithClaims(state, &StateClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return c.secret, nil
	},
		jwt.WithAudience(stateAudience),
		jwt.WithIssuer(c.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return nil, errors.Join(ErrInvalidState, err)
	}

	claims, ok := token.Claims.(*StateClaims)
	if !ok || !token.Valid || claims.ID == "" || claims.OrganizationID == "" {
		return nil, ErrInvalidState
	}
	return claims, nil
}
