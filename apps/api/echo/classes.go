package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/fitprize/fitprize/core/school"
)

type classApi struct {
	svc      *school.Service
	validate *validator.Validate
}

func registerClassAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := classApi{svc: deps.SchoolSvc, validate: deps.Validate}

	cg := g.Group("/classes", jwt)
	cg.GET("", api.query)
	cg.POST("", api.create, adminMiddleware())
	cg.GET("/:id", api.retrieve)
	cg.PUT("/:id", api.update)
	cg.DELETE("/:id", api.destroy, adminMiddleware())
	cg.POST("/:id/add-minutes", api.addMinutes)
}

func (api *classApi) query(ctx echo.Context) error {
	caller, err := contextCaller(ctx)
	if err != nil {
		return err
	}
	var q school.ClassQuery
	if err = bindQuery(ctx, &q); err != nil {
		return err
	}

	classes, total, err := api.svc.QueryClasses(ctx.Request().Context(), caller, q)
	if err != nil {
		return errors.Wrap(err, "querying classes")
	}
	return paginated(ctx, classes, q.Page, total)
}

func (api *classApi) retrieve(ctx echo.Context) error {
	caller, err := contextCaller(ctx)
	if err != nil {
		return err
	}
	cls, err := api.svc.GetClass(ctx.Request().Context(), caller, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting class")
	}
	return respondOK(ctx, cls)
}

func (api *classApi) create(ctx echo.Context) error {
	caller, err := contextCaller(ctx)
	if err != nil {
		return err
	}
	var data school.NewClass
	if err = bindJSON(ctx, &data); err != nil {
		return err
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	cls, err := api.svc.CreateClass(ctx.Request().Context(), caller, data)
	if err != nil {
		return errors.Wrap(err, "creating class")
	}
	return respondCreated(ctx, cls)
}

func (api *classApi) update(ctx echo.Context) error {
	caller, err := contextCaller(ctx)
	if err != nil {
		return err
	}
	var data school.UpdateClass
	if err = bindJSON(ctx, &data); err != nil {
		return err
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	cls, err := api.svc.UpdateClass(ctx.Request().Context(), caller, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating class")
	}
	return respondOK(ctx, cls)
}

func (api *classApi) destroy(ctx echo.Context) error {
	caller, err := contextCaller(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.DeleteClass(ctx.Request().Context(), caller, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting class")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *classApi) addMinutes(ctx echo.Context) error {
	caller, err := contextCaller(ctx)
	if err != nil {
		return err
	}
	var data school.AddMinutes
	if err = bindJSON(ctx, &data); err != nil {
		return err
	}

	res, err := api.svc.AddMinutes(ctx.Request().Context(), caller, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "adding minutes")
	}
	return ctx.JSON(http.StatusOK, res)
}
