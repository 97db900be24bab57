package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/fitprize/fitprize/core/school"
)

type schoolApi struct {
	svc      *school.Service
	validate *validator.Validate
}

func registerSchoolAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := schoolApi{svc: deps.SchoolSvc, validate: deps.Validate}

	sg := g.Group("/schools", jwt)
	sg.GET("", api.query)
	sg.POST("", api.create, superAdminMiddleware())
	sg.GET("/:id", api.retrieve)
	sg.PUT("/:id", api.update, superAdminMiddleware())
	sg.DELETE("/:id", api.destroy, superAdminMiddleware())
}

func (api *schoolApi) query(ctx echo.Context) error {
	caller, err := contextCaller(ctx)
	if err != nil {
		return err
	}
	var filter school.SchoolFilter
	if err = bindQuery(ctx, &filter); err != nil {
		return err
	}

	schools, total, err := api.svc.QuerySchools(ctx.Request().Context(), caller, filter)
	if err != nil {
		return errors.Wrap(err, "querying schools")
	}
	return paginated(ctx, schools, filter.Page, total)
}

func (api *schoolApi) retrieve(ctx echo.Context) error {
	caller, err := contextCaller(ctx)
	if err != nil {
		return err
	}
	sch, err := api.svc.GetSchool(ctx.Request().Context(), caller, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting school")
	}
	return respondOK(ctx, sch)
}

func (api *schoolApi) create(ctx echo.Context) error {
	caller, err := contextCaller(ctx)
	if err != nil {
		return err
	}
	var data school.NewSchool
	if err = bindJSON(ctx, &data); err != nil {
		return err
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	sch, err := api.svc.CreateSchool(ctx.Request().Context(), caller, data)
	if err != nil {
		return errors.Wrap(err, "creating school")
	}
	return respondCreated(ctx, sch)
}

func (api *schoolApi) update(ctx echo.Context) error {
	caller, err := contextCaller(ctx)
	if err != nil {
		return err
	}
	var data school.UpdateSchool
	if err = bindJSON(ctx, &data); err != nil {
		return err
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	sch, err := api.svc.UpdateSchool(ctx.Request().Context(), caller, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating school")
	}
	return respondOK(ctx, sch)
}

func (api *schoolApi) destroy(ctx echo.Context) error {
	caller, err := contextCaller(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.DeleteSchool(ctx.Request().Context(), caller, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting school")
	}
	return ctx.NoContent(http.StatusNoContent)
}
