package middleware

import (
	"context"
	"net/http"

	apiContext "postdeck/internal/api/context"
	"postdeck/internal/engine/membership"
	"postdeck/internal/pkg/errors"
	"postdeck/internal/platform/models"
)

// GateMiddleware admits a request to an organization only if the caller holds a
// membership in it right now. Roles embedded in the token are not trusted.
type GateMiddleware struct {
	members *membership.Service
}

func NewGateMiddleware(members *membership.Service) *GateMiddleware {
	return &GateMiddleware{members: members}
}

// OrganizationID reads the target organization from the :org_id route
// parameter or the organizationId query parameter.
func OrganizationID(r *http.Request) string {
	if id := apiContext.Param(r, "org_id"); id != "" {
		return id
	}
	return r.URL.Query().Get("organizationId")
}

func (m *GateMiddleware) Handle(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := apiContext.ClaimsFrom(r.Context())
		if !ok {
			errors.Write(w, r, errors.Unauthorized("Authentication required"))
			return
		}

		mem, err := m.members.Authorize(r.Context(), claims.UserID, OrganizationID(r))
		if err != nil {
			errors.Write(w, r, err)
			return
		}

		ctx := context.WithValue(r.Context(), apiContext.Membership, mem)
		next(w, r.WithContext(ctx))
	}
}

// RequireRole must run after GateMiddleware.
func RequireRole(roles ...models.Role) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			m, ok := apiContext.MembershipFrom(r.Context())
			if !ok {
				errors.Write(w, r, errors.Forbidden("Organization membership required"))
				return
			}

			for _, role := range roles {
				if m.Role == role {
					next(w, r)
					return
				}
			}
			errors.Write(w, r, errors.Forbidden("Insufficient permissions"))
		}
	}
}
