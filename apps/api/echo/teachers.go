package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/fitprize/fitprize/core/school"
)

type teacherApi struct {
	svc      *school.Service
	validate *validator.Validate
}

func registerTeacherAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := teacherApi{svc: deps.SchoolSvc, validate: deps.Validate}

	tg := g.Group("/teachers", jwt)
	tg.GET("", api.query, adminMiddleware())
	tg.POST("", api.create, adminMiddleware())
	tg.POST("/assign", api.assign, adminMiddleware())
	tg.GET("/code/:code", api.retrieveByCode, adminMiddleware())
	tg.GET("/:id", api.retrieve)
	tg.PUT("/:id", api.update)
	tg.DELETE("/:id", api.destroy, adminMiddleware())
}

func (api *teacherApi) query(ctx echo.Context) error {
	caller, err := contextCaller(ctx)
	if err != nil {
		return err
	}
	var q school.TeacherQuery
	if err = bindQuery(ctx, &q); err != nil {
		return err
	}

	teachers, total, err := api.svc.QueryTeachers(ctx.Request().Context(), caller, q)
	if err != nil {
		return errors.Wrap(err, "querying teachers")
	}
	return paginated(ctx, teachers, q.Page, total)
}

func (api *teacherApi) retrieve(ctx echo.Context) error {
	caller, err := contextCaller(ctx)
	if err != nil {
		return err
	}
	tchr, err := api.svc.GetTeacher(ctx.Request().Context(), caller, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting teacher")
	}
	return respondOK(ctx, tchr)
}

func (api *teacherApi) retrieveByCode(ctx echo.Context) error {
	caller, err := contextCaller(ctx)
	if err != nil {
		return err
	}
	tchr, err := api.svc.GetTeacherByCode(ctx.Request().Context(), caller, ctx.Param("code"))
	if err != nil {
		return errors.Wrap(err, "getting teacher by code")
	}
	return respondOK(ctx, tchr)
}

func (api *teacherApi) create(ctx echo.Context) error {
	caller, err := contextCaller(ctx)
	if err != nil {
		return err
	}
	var data school.NewTeacher
	if err = bindJSON(ctx, &data); err != nil {
		return err
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	tchr, err := api.svc.CreateTeacher(ctx.Request().Context(), caller, data)
	if err != nil {
		return errors.Wrap(err, "creating teacher")
	}
	return respondCreated(ctx, tchr)
}

func (api *teacherApi) update(ctx echo.Context) error {
	caller, err := contextCaller(ctx)
	if err != nil {
		return err
	}
	var data school.UpdateTeacher
	if err = bindJSON(ctx, &data); err != nil {
		return err
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	tchr, err := api.svc.UpdateTeacher(ctx.Request().Context(), caller, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating teacher")
	}
	return respondOK(ctx, tchr)
}

func (api *teacherApi) assign(ctx echo.Context) error {
	caller, err := contextCaller(ctx)
	if err != nil {
		return err
	}
	var data school.AssignTeacher
	if err = bindJSON(ctx, &data); err != nil {
		return err
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	tchr, err := api.svc.AssignTeacher(ctx.Request().Context(), caller, data)
	if err != nil {
		return errors.Wrap(err, "assigning teacher")
	}
	return respondOK(ctx, tchr)
}

func (api *teacherApi) destroy(ctx echo.Context) error {
	caller, err := contextCaller(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.DeleteTeacher(ctx.Request().Context(), caller, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting teacher")
	}
	return ctx.NoContent(http.StatusNoContent)
}
