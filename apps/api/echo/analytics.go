package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/maoni-app/maoni/core/analytics"
	"github.com/maoni-app/maoni/core/user"
)

type analyticsApi struct {
	svc     *analytics.Service
	userSvc user.Service
}

func registerAnalyticsAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *analytics.Service, userSvc user.Service) {
	api := analyticsApi{svc: svc, userSvc: userSvc}

	ag := g.Group("/analytics", jwt)
	ag.GET("", api.overview, roleMiddleware(userSvc, user.RoleTeacher, user.RoleAdmin))
}

// overview serves the role-scoped aggregation; ?course=CODE narrows it.
func (api *analyticsApi) overview(ctx echo.Context) error {
	caller, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	summary, err := api.svc.Overview(ctx.Request().Context(), caller, analytics.Query{
		CourseCode: ctx.QueryParam("course"),
	})
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, summary)
}
