package httpserver

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/Skotchmaster/pharmacy_portal/internal/auth"
	"github.com/Skotchmaster/pharmacy_portal/internal/handlers"
	"github.com/Skotchmaster/pharmacy_portal/internal/logging"
	"github.com/Skotchmaster/pharmacy_portal/internal/metrics"
	authmw "github.com/Skotchmaster/pharmacy_portal/internal/middleware/auth"
	"github.com/Skotchmaster/pharmacy_portal/internal/middleware/csrf"
	"github.com/Skotchmaster/pharmacy_portal/internal/middleware/edge"
	loggingmw "github.com/Skotchmaster/pharmacy_portal/internal/middleware/logging"
	"github.com/Skotchmaster/pharmacy_portal/internal/routes"
	"github.com/Skotchmaster/pharmacy_portal/internal/view"
)

type Deps struct {
	Logger   *slog.Logger
	Renderer *view.Renderer
	Handler  *handlers.Handler
	Auth     auth.Config
	CSRF     csrf.Config
	// Ready reports whether the session store can serve requests.
	Ready func(ctx context.Context) error
	// APIProxy serves APIPrefix/* when set.
	APIProxy  echo.HandlerFunc
	APIPrefix string
}

// New builds the echo instance with the middleware chain and every route.
func New(d *Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	if d.Renderer != nil {
		e.Renderer = d.Renderer
	}
	e.HTTPErrorHandler = errorHandler(e)

	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(
		middleware.Recover(),
		middleware.RequestID(),
		loggingmw.RequestLogger(d.Logger),
		metrics.Middleware(),
		middleware.Secure(),
	)

	Register(e, d)
	return e
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error {
		if d.Ready != nil {
			if err := d.Ready(c.Request().Context()); err != nil {
				logging.FromContext(c.Request().Context()).Error("readiness_failed", "error", err)
				return c.NoContent(http.StatusServiceUnavailable)
			}
		}
		return c.NoContent(http.StatusOK)
	})
	e.GET("/metrics", metrics.Handler())
	if d.APIProxy != nil && d.APIPrefix != "" {
		e.Any(d.APIPrefix+"/*", d.APIProxy)
	}

	h := d.Handler
	admin := authmw.AdminOnly(auth.CurrentUser)

	pages := e.Group("",
		edge.Middleware(),
		csrf.Middleware(d.CSRF),
		auth.Middleware(d.Auth),
		routes.Guard(auth.CurrentUser),
	)

	pages.GET(routes.LoginPath, h.LoginForm)
	pages.POST(routes.LoginPath, h.Login)
	pages.GET(routes.RegisterPath, h.RegisterForm)
	pages.POST(routes.RegisterPath, h.Register)
	pages.GET(routes.ForgotPasswordPath, h.ForgotPasswordForm)
	pages.POST(routes.ForgotPasswordPath, h.ForgotPassword)
	pages.POST(routes.LogoutPath, h.Logout)

	pages.GET("/", h.Storefront)

	dash := pages.Group("/dashboard")
	dash.GET("", h.Dashboard)
	dash.GET("/admin", h.AdminDashboard)
	dash.GET("/alerts", h.Alerts)

	dash.GET("/profile", h.Profile)
	dash.GET("/profile/edit", h.EditProfile)
	dash.POST("/profile/edit", h.UpdateProfile)

	dash.GET("/medicines", h.ListMedicines)
	dash.GET("/medicines/new", h.NewMedicine, admin)
	dash.POST("/medicines/new", h.CreateMedicine, admin)
	dash.GET("/medicines/:id", h.ShowMedicine)
	dash.GET("/medicines/:id/edit", h.EditMedicine, admin)
	dash.POST("/medicines/:id/edit", h.UpdateMedicine, admin)
	dash.POST("/medicines/:id/delete", h.DeleteMedicine, admin)

	dash.GET("/inventory", h.ListInventory)
	dash.GET("/inventory/new", h.NewInventory, admin)
	dash.POST("/inventory/new", h.CreateInventory, admin)
	dash.GET("/inventory/:id/edit", h.EditInventory, admin)
	dash.POST("/inventory/:id/edit", h.UpdateInventory, admin)
	dash.POST("/inventory/:id/delete", h.DeleteInventory, admin)
	dash.GET("/inventory/:id/adjust", h.AdjustForm)
	dash.POST("/inventory/:id/adjust", h.AdjustStock)

	ph := dash.Group("/pharmacies", admin)
	ph.GET("", h.ListPharmacies)
	ph.GET("/new", h.NewPharmacy)
	ph.POST("/new", h.CreatePharmacy)
	ph.GET("/:id", h.ShowPharmacy)
	ph.GET("/:id/edit", h.EditPharmacy)
	ph.POST("/:id/edit", h.UpdatePharmacy)
	ph.POST("/:id/delete", h.DeletePharmacy)
	ph.GET("/:id/staff", h.Staff)
	ph.POST("/:id/staff/add", h.AddStaff)
	ph.POST("/:id/staff/remove", h.RemoveStaff)

	users := dash.Group("/users", admin)
	users.GET("", h.ListUsers)
	users.GET("/new", h.NewUserForm)
	users.POST("/new", h.CreateUser)
	users.GET("/:id", h.ShowUser)
	users.GET("/:id/edit", h.EditUser)
	users.POST("/:id/edit", h.UpdateUser)

	dash.GET("/reports", h.Reports, admin)
}

// errorHandler renders echo errors as pages. Responses already sent are left
// alone.
func errorHandler(e *echo.Echo) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		code := http.StatusInternalServerError
		msg := http.StatusText(code)
		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			if s, ok := he.Message.(string); ok {
				msg = s
			} else {
				msg = http.StatusText(code)
			}
		}
		if e.Renderer == nil || c.Request().Method == http.MethodHead {
			e.DefaultHTTPErrorHandler(err, c)
			return
		}
		p := view.Page{
			Title: http.StatusText(code),
			Path:  c.Request().URL.Path,
			User:  auth.CurrentUser(c),
			CSRF:  csrf.Token(c),
			Error: msg,
		}
		if rerr := c.Render(code, "error", p); rerr != nil {
			e.DefaultHTTPErrorHandler(err, c)
		}
	}
}
