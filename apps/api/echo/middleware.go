package echoapi

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/maoni-app/maoni/core/user"
)

const (
	loginPath      = "/login"
	adminLoginPath = "/admin-login"
)

// guardRule maps a protected path prefix to the roles allowed past it and
// the login page anonymous visitors are redirected to. An empty role list
// means any authenticated role.
type guardRule struct {
	prefix    string
	roles     []string
	loginPath string
}

var guardRules = []guardRule{
	{prefix: "/admin", roles: []string{user.RoleAdmin}, loginPath: adminLoginPath},
	{prefix: "/teacher", roles: []string{user.RoleTeacher}, loginPath: loginPath},
	{prefix: "/student", roles: []string{user.RoleStudent}, loginPath: loginPath},
	{prefix: "/feedback", roles: []string{user.RoleStudent}, loginPath: loginPath},
	{prefix: "/reviews", roles: []string{user.RoleStudent}, loginPath: loginPath},
	{prefix: "/analytics", roles: []string{user.RoleTeacher, user.RoleAdmin}, loginPath: loginPath},
	{prefix: "/profile", roles: nil, loginPath: loginPath},
}

func matchGuardRule(path string) (guardRule, bool) {
	for _, rule := range guardRules {
		if path == rule.prefix || strings.HasPrefix(path, rule.prefix+"/") {
			return rule, true
		}
	}
	return guardRule{}, false
}

func roleAllowed(role string, roles []string) bool {
	if len(roles) == 0 {
		return true
	}
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

// routeGuard is the edge gate over the portal pages: anonymous visitors of
// protected paths bounce to the login page, authenticated visitors of the
// wrong role bounce to their own role home, and authenticated visitors of
// the auth pages bounce home. It trusts the token's role claim and never
// touches the store; page handlers re-check against fresh data and remain
// the enforcement point.
func routeGuard() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			path := ctx.Request().URL.Path
			claims, authed := requestClaims(ctx)

			if path == loginPath || path == adminLoginPath {
				if authed && user.ValidRole(claims.Role) {
					return ctx.Redirect(http.StatusFound, user.RoleHome(claims.Role))
				}
				return next(ctx)
			}

			rule, ok := matchGuardRule(path)
			if !ok {
				return next(ctx)
			}
			// no role at all is treated as unauthenticated
			if !authed || !user.ValidRole(claims.Role) {
				return ctx.Redirect(http.StatusFound, rule.loginPath)
			}
			if !roleAllowed(claims.Role, rule.roles) {
				return ctx.Redirect(http.StatusFound, user.RoleHome(claims.Role))
			}
			return next(ctx)
		}
	}
}

// roleMiddleware is the authoritative API gate: it loads the caller from
// the store and rejects with 403 unless their current role is one of roles.
// Runs after the JWT middleware; never skipped even though the route guard
// may have passed the same request already.
func roleMiddleware(svc user.Service, roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			usr, err := getContextUser(ctx, svc)
			if err != nil {
				return errors.Wrap(err, "getting context user")
			}
			if !usr.IsActive {
				return errAccountDeactivated
			}
			if roleAllowed(usr.Role, roles) {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

func adminMiddleware(svc user.Service) echo.MiddlewareFunc {
	return roleMiddleware(svc, user.RoleAdmin)
}
