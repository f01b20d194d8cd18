package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/maoni-app/maoni/core/user"
)

// Portal page handlers. The frontend renders the actual pages; these
// endpoints carry the authorization decision for each portal path so the
// rule table is enforced server-side. Unlike the route guard they resolve
// the role from the store, tolerating stale or hinted claims.
type portal struct {
	users user.Service
}

func registerPortalPages(e *echo.Echo, svc user.Service) {
	p := &portal{users: svc}

	e.GET(loginPath, p.authPage("login"))
	e.GET(adminLoginPath, p.authPage("admin-login"))
	for _, rule := range guardRules {
		e.GET(rule.prefix, p.page(rule))
	}
}

func (p *portal) authPage(name string) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		return ctx.JSON(http.StatusOK, echo.Map{"page": name})
	}
}

func (p *portal) page(rule guardRule) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		claims, authed := requestClaims(ctx)
		if !authed {
			return ctx.Redirect(http.StatusFound, rule.loginPath)
		}

		role := p.users.ResolveRole(ctx.Request().Context(), claims.Subject, claims.Role)
		if role == "" {
			// no profile row and no usable hint: unauthenticated for
			// protected-path purposes
			return ctx.Redirect(http.StatusFound, rule.loginPath)
		}
		if !roleAllowed(role, rule.roles) {
			return ctx.Redirect(http.StatusFound, user.RoleHome(role))
		}
		return ctx.JSON(http.StatusOK, echo.Map{"page": rule.prefix, "role": role})
	}
}
