package context

import (
	"context"
	"net/http"

	"github.com/julienschmidt/httprouter"
	"postdeck/internal/platform/auth"
	"postdeck/internal/platform/models"
)

type Key string

const (
	Claims     Key = "claims"
	Membership Key = "membership"
	Params     Key = "params"
)

func ClaimsFrom(ctx context.Context) (*auth.Claims, bool) {
	c, ok := ctx.Value(Claims).(*auth.Claims)
	return c, ok && c != nil
}

func MembershipFrom(ctx context.Context) (*models.Membership, bool) {
	m, ok := ctx.Value(Membership).(*models.Membership)
	return m, ok && m != nil
}

// Param returns the named route parameter, or "" when the route has none.
func Param(r *http.Request, name string) string {
	ps, _ := r.Context().Value(Params).(httprouter.Params)
	return ps.ByName(name)
}
