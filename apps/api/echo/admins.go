package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/fitprize/fitprize/core/school"
	"github.com/fitprize/fitprize/core/user"
)

type adminApi struct {
	svc       user.Service
	schoolSvc *school.Service
	validate  *validator.Validate
}

func registerAdminAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := adminApi{svc: deps.UserSvc, schoolSvc: deps.SchoolSvc, validate: deps.Validate}

	ag := g.Group("/admins", jwt, superAdminMiddleware())
	ag.GET("", api.query)
	ag.POST("", api.create)

	// detail endpoints
	dg := ag.Group("/:id", api.objectMiddleware())
	dg.GET("", api.retrieve)
	dg.PUT("", api.update)
	dg.DELETE("", api.destroy)
}

func (api *adminApi) query(ctx echo.Context) error {
	var filter user.QueryFilter
	if err := bindQuery(ctx, &filter); err != nil {
		return err
	}
	if filter.Role == "" {
		filter.Role = user.RoleSchoolAdmin
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)
	filter.Orderings = ordering.Orderings

	users, total, err := api.svc.Query(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying admins")
	}
	return paginated(ctx, users, filter.Page, total)
}

func (api *adminApi) create(ctx echo.Context) error {
	caller, err := contextCaller(ctx)
	if err != nil {
		return err
	}
	var data user.NewUser
	if err = bindJSON(ctx, &data); err != nil {
		return err
	}
	data.Role = user.RoleSchoolAdmin

	rctx := ctx.Request().Context()
	if err = data.Validate(rctx, api.validate, api.svc); err != nil {
		return err
	}
	if _, err = api.schoolSvc.GetSchool(rctx, caller, data.SchoolID); err != nil {
		return errors.Wrap(err, "getting school")
	}

	usr, err := api.svc.Create(rctx, data)
	if err != nil {
		return errors.Wrap(err, "creating admin")
	}
	return respondCreated(ctx, usr)
}

func (api *adminApi) retrieve(ctx echo.Context) error {
	return respondOK(ctx, ctx.Get("object"))
}

func (api *adminApi) update(ctx echo.Context) error {
	caller, err := contextCaller(ctx)
	if err != nil {
		return err
	}
	usr, _ := ctx.Get("object").(user.User)

	var data user.UpdateUser
	if err = bindJSON(ctx, &data); err != nil {
		return err
	}
	rctx := ctx.Request().Context()
	if err = data.Validate(rctx, usr, api.validate, api.svc); err != nil {
		return err
	}
	if data.SchoolID != nil {
		if _, err = api.schoolSvc.GetSchool(rctx, caller, *data.SchoolID); err != nil {
			return errors.Wrap(err, "getting school")
		}
	}

	if usr, err = api.svc.Update(rctx, usr.ID, data); err != nil {
		return errors.Wrap(err, "updating admin")
	}
	return respondOK(ctx, usr)
}

func (api *adminApi) destroy(ctx echo.Context) error {
	caller, err := contextCaller(ctx)
	if err != nil {
		return err
	}
	usr, _ := ctx.Get("object").(user.User)

	// Say No to Suicide! the caller cannot delete themselves
	if usr.ID == caller.ID {
		return errHttpForbidden
	}
	if err = api.svc.Delete(ctx.Request().Context(), usr.ID); err != nil {
		return errors.Wrap(err, "deleting admin")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// objectMiddleware loads the user of the `id` path param as "object".
func (api *adminApi) objectMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			usr, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
			if err != nil {
				return errors.Wrap(err, "finding user by ID")
			}
			ctx.Set("object", usr)
			return next(ctx)
		}
	}
}
