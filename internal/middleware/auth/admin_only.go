package auth

import (
	"net/http"
	"slices"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/pharmacy_portal/internal/logging"
	"github.com/Skotchmaster/pharmacy_portal/internal/models"
	"github.com/Skotchmaster/pharmacy_portal/internal/routes"
)

// RequireRole rejects requests whose user holds none of roles. Anonymous
// requests are sent to the login page.
func RequireRole(user routes.UserFunc, roles ...models.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			u := user(c)
			if u == nil {
				return c.Redirect(http.StatusSeeOther, routes.LoginURL(c.Request().URL.Path))
			}
			if !slices.Contains(roles, u.Role) {
				logging.FromContext(c.Request().Context()).Warn("role_denied",
					"path", c.Request().URL.Path, "user_id", u.ID, "role", u.Role)
				return echo.NewHTTPError(http.StatusForbidden, "you don't have enough rights")
			}
			return next(c)
		}
	}
}

func AdminOnly(user routes.UserFunc) echo.MiddlewareFunc {
	return RequireRole(user, models.RoleAdmin)
}
