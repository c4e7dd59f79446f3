package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"postdeck/internal/platform/config"
	"postdeck/internal/platform/models"
)

var (
	ErrMissingToken = errors.New("missing token")
	ErrInvalidToken = errors.New("invalid token")
)

// OrgRole is one organization membership as known when the token was issued.
type OrgRole struct {
	OrganizationID string      `json:"organizationId"`
	Role           models.Role `json:"role"`
}

// Claims carry a snapshot of the user's memberships. They are not refreshed when
// roles change, so authorization must re-query the membership table.
type Claims struct {
	UserID        string    `json:"uid"`
	Email         string    `json:"email"`
	Organizations []OrgRole `json:"orgs"`
	jwt.RegisteredClaims
}

type TokenService struct {
	config config.JWTConfig
	now    func() time.Time
}

func NewTokenService(cfg config.JWTConfig) *TokenService {
	return &TokenService{config: cfg, now: time.Now}
}

// TTL is the lifetime of issued session tokens.
func (s *TokenService) TTL() time.Duration {
	return s.config.SessionTTL
}

func (s *TokenService) Issue(user *models.User, orgs []OrgRole) (string, error) {
	now := s.now()
	claims := Claims{
		UserID:        user.ID,
		Email:         user.Email,
		Organizations: orgs,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.config.SessionTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    s.config.Issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.config.Secret))
}

func (s *TokenService) Verify(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, ErrMissingToken
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(s.config.Secret), nil
	}, jwt.WithIssuer(s.config.Issuer), jwt.WithTimeFunc(s.now), jwt.WithExpirationRequired())
	if err != nil {
		return nil, errors.Join(ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
