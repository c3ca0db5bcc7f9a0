package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/pharmacy_portal/internal/logging"
	"github.com/Skotchmaster/pharmacy_portal/internal/models"
)

// UserFunc returns the bootstrapped user of a request, or nil.
type UserFunc func(c echo.Context) *models.UserProfile

// Guard enforces Decide on page requests. It must run after the session
// bootstrap so that user reflects the validated session.
func Guard(user UserFunc) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			path := c.Request().URL.Path
			u := user(c)
			target := Decide(path, u)
			if target == "" {
				return next(c)
			}

			l := logging.FromContext(c.Request().Context()).With("middleware", "guard")
			if u != nil {
				l.Info("route_redirect", "path", path, "role", u.Role, "target", target)
			} else {
				l.Info("route_redirect", "path", path, "target", target)
			}
			return c.Redirect(http.StatusSeeOther, target)
		}
	}
}
