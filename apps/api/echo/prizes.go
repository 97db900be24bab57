package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/fitprize/fitprize/core/school"
)

type prizeApi struct {
	svc      *school.Service
	validate *validator.Validate
}

func registerGradeGroupAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := prizeApi{svc: deps.SchoolSvc, validate: deps.Validate}

	gg := g.Group("/grade-groups", jwt)
	gg.GET("", api.queryGradeGroups)
	gg.POST("", api.createGradeGroup, adminMiddleware())
	gg.GET("/:id", api.retrieveGradeGroup)
	gg.GET("/:id/prizes", api.gradeGroupPrizes)
	gg.PUT("/:id", api.updateGradeGroup, adminMiddleware())
	gg.DELETE("/:id", api.destroyGradeGroup, adminMiddleware())
}

func registerPrizeAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := prizeApi{svc: deps.SchoolSvc, validate: deps.Validate}

	pg := g.Group("/prizes", jwt)
	pg.GET("", api.queryPrizes)
	pg.POST("", api.createPrize, adminMiddleware())
	pg.GET("/:id", api.retrievePrize)
	pg.PUT("/:id", api.updatePrize, adminMiddleware())
	pg.DELETE("/:id", api.destroyPrize, adminMiddleware())
}

func registerEarnedPrizeAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := prizeApi{svc: deps.SchoolSvc, validate: deps.Validate}

	eg := g.Group("/earned-prizes", jwt)
	eg.GET("", api.queryEarnedPrizes)
	eg.GET("/pending-count", api.pendingCount, adminMiddleware())
	eg.GET("/:id", api.retrieveEarnedPrize)
	eg.PATCH("/:id", api.markDelivered)
}

// Grade groups

func (api *prizeApi) queryGradeGroups(ctx echo.Context) error {
	caller, err := contextCaller(ctx)
	if err != nil {
		return err
	}
	var q school.GradeGroupQuery
	if err = bindQuery(ctx, &q); err != nil {
		return err
	}

	groups, total, err := api.svc.QueryGradeGroups(ctx.Request().Context(), caller, q)
	if err != nil {
		return errors.Wrap(err, "querying grade groups")
	}
	return paginated(ctx, groups, q.Page, total)
}

func (api *prizeApi) retrieveGradeGroup(ctx echo.Context) error {
	caller, err := contextCaller(ctx)
	if err != nil {
		return err
	}
	grp, err := api.svc.GetGradeGroup(ctx.Request().Context(), caller, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting grade group")
	}
	return respondOK(ctx, grp)
}

func (api *prizeApi) gradeGroupPrizes(ctx echo.Context) error {
	caller, err := contextCaller(ctx)
	if err != nil {
		return err
	}
	prizes, err := api.svc.GradeGroupPrizes(ctx.Request().Context(), caller, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting grade group prizes")
	}
	if prizes == nil {
		prizes = []school.Prize{}
	}
	return respondOK(ctx, prizes)
}

func (api *prizeApi) createGradeGroup(ctx echo.Context) error {
	caller, err := contextCaller(ctx)
	if err != nil {
		return err
	}
	var data school.NewGradeGroup
	if err = bindJSON(ctx, &data); err != nil {
		return err
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	grp, err := api.svc.CreateGradeGroup(ctx.Request().Context(), caller, data)
	if err != nil {
		return errors.Wrap(err, "creating grade group")
	}
	return respondCreated(ctx, grp)
}

func (api *prizeApi) updateGradeGroup(ctx echo.Context) error {
	caller, err := contextCaller(ctx)
	if err != nil {
		return err
	}
	var data school.UpdateGradeGroup
	if err = bindJSON(ctx, &data); err != nil {
		return err
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	grp, err := api.svc.UpdateGradeGroup(ctx.Request().Context(), caller, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating grade group")
	}
	return respondOK(ctx, grp)
}

func (api *prizeApi) destroyGradeGroup(ctx echo.Context) error {
	caller, err := contextCaller(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.DeleteGradeGroup(ctx.Request().Context(), caller, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting grade group")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Prizes

func (api *prizeApi) queryPrizes(ctx echo.Context) error {
	caller, err := contextCaller(ctx)
	if err != nil {
		return err
	}
	var q school.PrizeQuery
	if err = bindQuery(ctx, &q); err != nil {
		return err
	}

	prizes, total, err := api.svc.QueryPrizes(ctx.Request().Context(), caller, q)
	if err != nil {
		return errors.Wrap(err, "querying prizes")
	}
	return paginated(ctx, prizes, q.Page, total)
}

func (api *prizeApi) retrievePrize(ctx echo.Context) error {
	caller, err := contextCaller(ctx)
	if err != nil {
		return err
	}
	prz, err := api.svc.GetPrize(ctx.Request().Context(), caller, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting prize")
	}
	return respondOK(ctx, prz)
}

func (api *prizeApi) createPrize(ctx echo.Context) error {
	caller, err := contextCaller(ctx)
	if err != nil {
		return err
	}
	var data school.NewPrize
	if err = bindJSON(ctx, &data); err != nil {
		return err
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	prz, err := api.svc.CreatePrize(ctx.Request().Context(), caller, data)
	if err != nil {
		return errors.Wrap(err, "creating prize")
	}
	return respondCreated(ctx, prz)
}

func (api *prizeApi) updatePrize(ctx echo.Context) error {
	caller, err := contextCaller(ctx)
	if err != nil {
		return err
	}
	var data school.UpdatePrize
	if err = bindJSON(ctx, &data); err != nil {
		return err
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	prz, err := api.svc.UpdatePrize(ctx.Request().Context(), caller, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating prize")
	}
	return respondOK(ctx, prz)
}

func (api *prizeApi) destroyPrize(ctx echo.Context) error {
	caller, err := contextCaller(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.DeletePrize(ctx.Request().Context(), caller, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting prize")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Earned prizes

func (api *prizeApi) queryEarnedPrizes(ctx echo.Context) error {
	caller, err := contextCaller(ctx)
	if err != nil {
		return err
	}
	var q school.EarnedPrizeQuery
	if err = bindQuery(ctx, &q); err != nil {
		return err
	}
	if q.Delivered, err = boolParam(ctx, "delivered"); err != nil {
		return err
	}

	earned, total, err := api.svc.QueryEarnedPrizes(ctx.Request().Context(), caller, q)
	if err != nil {
		return errors.Wrap(err, "querying earned prizes")
	}
	return paginated(ctx, earned, q.Page, total)
}

func (api *prizeApi) pendingCount(ctx echo.Context) error {
	caller, err := contextCaller(ctx)
	if err != nil {
		return err
	}
	schoolID := ctx.QueryParam("schoolId")
	if schoolID == "" {
		schoolID = caller.SchoolID
	}
	n, err := api.svc.PendingCount(ctx.Request().Context(), caller, schoolID)
	if err != nil {
		return errors.Wrap(err, "counting pending prizes")
	}
	return respondOK(ctx, echo.Map{"count": n})
}

func (api *prizeApi) retrieveEarnedPrize(ctx echo.Context) error {
	caller, err := contextCaller(ctx)
	if err != nil {
		return err
	}
	ep, err := api.svc.GetEarnedPrize(ctx.Request().Context(), caller, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting earned prize")
	}
	return respondOK(ctx, ep)
}

func (api *prizeApi) markDelivered(ctx echo.Context) error {
	caller, err := contextCaller(ctx)
	if err != nil {
		return err
	}
	var data school.MarkDelivered
	if err = bindJSON(ctx, &data); err != nil {
		return err
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	ep, err := api.svc.MarkDelivered(ctx.Request().Context(), caller, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "marking earned prize delivered")
	}
	return respondOK(ctx, ep)
}
