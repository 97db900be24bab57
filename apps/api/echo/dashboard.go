package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/fitprize/fitprize/core/school"
)

type dashboardApi struct {
	svc *school.Service
}

func registerDashboardAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := dashboardApi{svc: deps.SchoolSvc}

	dg := g.Group("/dashboard", jwt, adminMiddleware())
	dg.GET("/stats", api.stats)
}

func (api *dashboardApi) stats(ctx echo.Context) error {
	caller, err := contextCaller(ctx)
	if err != nil {
		return err
	}
	stats, err := api.svc.Stats(ctx.Request().Context(), caller)
	if err != nil {
		return errors.Wrap(err, "gathering stats")
	}
	return respondOK(ctx, stats)
}
