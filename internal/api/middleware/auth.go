package middleware

import (
	"context"
	stderrors "errors"
	"net"
	"net/http"
	"strings"

	apiContext "postdeck/internal/api/context"
	"postdeck/internal/pkg/errors"
	"postdeck/internal/platform/audit"
	"postdeck/internal/platform/auth"
)

type AuthMiddleware struct {
	tokenSvc   *auth.TokenService
	cookieName string
}

func NewAuthMiddleware(tokenSvc *auth.TokenService, cookieName string) *AuthMiddleware {
	return &AuthMiddleware{tokenSvc: tokenSvc, cookieName: cookieName}
}

// credential returns the bearer token if present, otherwise the session cookie.
func (m *AuthMiddleware) credential(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		if token, ok := strings.CutPrefix(header, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
		return ""
	}
	if c, err := r.Cookie(m.cookieName); err == nil {
		return c.Value
	}
	return ""
}

func (m *AuthMiddleware) Handle(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, err := m.tokenSvc.Verify(m.credential(r))
		if err != nil {
			if stderrors.Is(err, auth.ErrMissingToken) {
				errors.Write(w, r, errors.Unauthorized("Authentication required"))
				return
			}
			errors.Write(w, r, errors.InvalidToken("Invalid or expired token"))
			return
		}

		ctx := context.WithValue(r.Context(), apiContext.Claims, claims)
		ctx = audit.WithActor(ctx, audit.Actor{
			UserID:    claims.UserID,
			IPAddress: ClientIP(r),
			UserAgent: r.UserAgent(),
		})
		next(w, r.WithContext(ctx))
	}
}

// ClientIP is the peer address of the connection without its port.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
