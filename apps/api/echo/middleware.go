package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/fitprize/fitprize/core/user"
)

// roleMiddleware lets through callers holding one of roles.
func roleMiddleware(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			caller, err := contextCaller(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context caller")
			}
			for _, role := range roles {
				if caller.Role == role {
					return next(ctx)
				}
			}
			return errHttpForbidden
		}
	}
}

func adminMiddleware() echo.MiddlewareFunc {
	return roleMiddleware(user.AdminRoles...)
}

func superAdminMiddleware() echo.MiddlewareFunc {
	return roleMiddleware(user.RoleSuperAdmin)
}
