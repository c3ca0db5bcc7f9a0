// Package handlers serves the portal pages.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/pharmacy_portal/internal/apiclient"
	"github.com/Skotchmaster/pharmacy_portal/internal/auth"
	"github.com/Skotchmaster/pharmacy_portal/internal/logging"
	"github.com/Skotchmaster/pharmacy_portal/internal/middleware/csrf"
	"github.com/Skotchmaster/pharmacy_portal/internal/mykafka"
	"github.com/Skotchmaster/pharmacy_portal/internal/resources"
	"github.com/Skotchmaster/pharmacy_portal/internal/routes"
	"github.com/Skotchmaster/pharmacy_portal/internal/service/search"
	"github.com/Skotchmaster/pharmacy_portal/internal/view"
)

const (
	genericError     = "Something went wrong. Please try again."
	unavailableError = "The pharmacy service is unavailable. Please try again later."
)

type Handler struct {
	// Catalog serves the storefront; nil searches through the backend.
	Catalog search.Catalog
	// Index is kept in sync with medicine edits when set.
	Index  *search.Index
	Events mykafka.Publisher
}

var errNoSession = echo.NewHTTPError(http.StatusInternalServerError, "session middleware not installed")

func session(c echo.Context) (*auth.Request, error) {
	r := auth.FromEcho(c)
	if r == nil {
		return nil, errNoSession
	}
	return r, nil
}

func api(c echo.Context) (*resources.API, error) {
	r, err := session(c)
	if err != nil {
		return nil, err
	}
	return resources.New(r.Pipeline), nil
}

func page(c echo.Context, title string, data any) view.Page {
	return view.Page{
		Title: title,
		Path:  c.Request().URL.Path,
		User:  auth.CurrentUser(c),
		CSRF:  csrf.Token(c),
		Data:  data,
	}
}

// navigate follows the destination chosen by the session manager.
func navigate(c echo.Context, r *auth.Request) error {
	target := r.Nav.Target()
	if target == "" {
		target = "/"
	}
	return c.Redirect(http.StatusSeeOther, target)
}

// fail renders name again with the backend's message. A lost session sends
// the browser to login and brings it back here afterwards.
func fail(c echo.Context, err error, name string, p view.Page) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx)

	if apiclient.IsSessionExpired(err) {
		l.Info("session_expired_redirect", "path", c.Request().URL.Path)
		return c.Redirect(http.StatusSeeOther, routes.LoginURL(c.Request().URL.Path))
	}
	if errors.Is(err, context.Canceled) {
		return err
	}

	status := apiclient.StatusOf(err)
	code := status
	p.Error = apiclient.MessageOf(err, genericError)
	switch {
	case errors.Is(err, apiclient.ErrUnavailable):
		code = http.StatusServiceUnavailable
		p.Error = unavailableError
		l.Error("backend_unavailable", "error", err)
	case status == 0 || status >= 500:
		code = http.StatusBadGateway
		l.Error("backend_error", "status", status, "error", err)
	default:
		l.Warn("backend_rejected", "status", status, "error", err)
	}
	return c.Render(code, name, p)
}

// invalid re-renders a form with a validation message.
func invalid(c echo.Context, msg, name string, p view.Page) error {
	p.Error = msg
	return c.Render(http.StatusBadRequest, name, p)
}

func parseID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

// pageParam reads the 1-based page query parameter.
func pageParam(c echo.Context) int {
	if v, err := strconv.Atoi(c.QueryParam("page")); err == nil && v > 1 {
		return v
	}
	return 1
}

// optBool reads a tri-state filter: absent or unparsable means unset.
func optBool(c echo.Context, name string) *bool {
	b, err := strconv.ParseBool(c.QueryParam(name))
	if err != nil {
		return nil
	}
	return &b
}
