// Package edge gates page requests on the cookie-mirrored session alone,
// before any handler or store lookup runs.
package edge

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/pharmacy_portal/internal/logging"
	"github.com/Skotchmaster/pharmacy_portal/internal/routes"
	"github.com/Skotchmaster/pharmacy_portal/internal/tokenstore"
)

var skipPrefixes = []string{"/static", "/assets", "/api", "/health", "/metrics"}

var skipExact = []string{"/favicon.ico", "/robots.txt"}

// Skip reports whether path is outside edge gating.
func Skip(path string) bool {
	for _, p := range skipExact {
		if path == p {
			return true
		}
	}
	for _, p := range skipPrefixes {
		if routes.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

func Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if Skip(req.URL.Path) {
				return next(c)
			}

			user, ok := tokenstore.UserFromCookies(req)
			if !ok && hasCookie(req, tokenstore.KeyUserData) {
				logging.FromContext(req.Context()).Warn("edge_bad_user_cookie", "path", req.URL.Path)
			}

			target := routes.Decide(req.URL.Path, user)
			if target == "" {
				return next(c)
			}
			return c.Redirect(http.StatusSeeOther, target)
		}
	}
}

func hasCookie(r *http.Request, name string) bool {
	ck, err := r.Cookie(name)
	return err == nil && ck.Value != ""
}
