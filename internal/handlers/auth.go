package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/pharmacy_portal/internal/apiclient"
	"github.com/Skotchmaster/pharmacy_portal/internal/auth"
	"github.com/Skotchmaster/pharmacy_portal/internal/logging"
	"github.com/Skotchmaster/pharmacy_portal/internal/metrics"
	"github.com/Skotchmaster/pharmacy_portal/internal/models"
	"github.com/Skotchmaster/pharmacy_portal/internal/routes"
	"github.com/Skotchmaster/pharmacy_portal/internal/validate"
)

const resetRequested = "If an account exists for that email, reset instructions are on their way."

type loginData struct {
	Username   string
	Callback   string
	Registered bool
}

type registerData struct {
	Action string
	Admin  bool
	Form   models.RegistrationData
}

func (h *Handler) LoginForm(c echo.Context) error {
	return c.Render(http.StatusOK, "login", page(c, "Sign in", loginData{
		Callback:   c.QueryParam(routes.CallbackParam),
		Registered: c.QueryParam("registered") == "true",
	}))
}

func (h *Handler) Login(c echo.Context) error {
	r, err := session(c)
	if err != nil {
		return err
	}
	var creds models.LoginCredentials
	if err := c.Bind(&creds); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid form")
	}
	callback := c.FormValue(routes.CallbackParam)
	if callback == "" {
		callback = c.QueryParam(routes.CallbackParam)
	}

	if err := r.Manager.Login(c.Request().Context(), creds, callback); err != nil {
		code := http.StatusUnauthorized
		if errors.Is(err, auth.ErrInvalidInput) {
			code = http.StatusBadRequest
		}
		p := page(c, "Sign in", loginData{Username: creds.Username, Callback: callback})
		p.Error = r.Manager.Error()
		return c.Render(code, "login", p)
	}
	return navigate(c, r)
}

func (h *Handler) RegisterForm(c echo.Context) error {
	return c.Render(http.StatusOK, "register", page(c, "Register", registerData{
		Action: routes.RegisterPath,
		Form:   models.RegistrationData{Role: models.RoleCustomer},
	}))
}

func (h *Handler) Register(c echo.Context) error {
	return h.register(c, routes.RegisterPath, false)
}

// NewUserForm lets an administrator create an account through registration.
func (h *Handler) NewUserForm(c echo.Context) error {
	return c.Render(http.StatusOK, "register", page(c, "New user", registerData{
		Action: "/dashboard/users/new",
		Admin:  true,
		Form:   models.RegistrationData{Role: models.RoleCustomer},
	}))
}

func (h *Handler) CreateUser(c echo.Context) error {
	return h.register(c, "/dashboard/users/new", true)
}

func (h *Handler) register(c echo.Context, action string, admin bool) error {
	r, err := session(c)
	if err != nil {
		return err
	}
	var data models.RegistrationData
	if err := c.Bind(&data); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid form")
	}
	data.Username = strings.TrimSpace(data.Username)
	data.Email = strings.TrimSpace(data.Email)

	title := "Register"
	if admin {
		title = "New user"
	}
	if err := r.Manager.Register(c.Request().Context(), data); err != nil {
		code := http.StatusBadRequest
		if st := apiclient.StatusOf(err); !errors.Is(err, auth.ErrInvalidInput) && (st == 0 || st >= 500) {
			code = http.StatusBadGateway
		}
		form := data
		form.Password, form.Password2 = "", ""
		p := page(c, title, registerData{Action: action, Admin: admin, Form: form})
		p.Error = r.Manager.Error()
		return c.Render(code, "register", p)
	}
	if admin {
		return c.Redirect(http.StatusSeeOther, "/dashboard/users")
	}
	return navigate(c, r)
}

func (h *Handler) Logout(c echo.Context) error {
	r, err := session(c)
	if err != nil {
		return err
	}
	if err := r.Manager.Logout(c.Request().Context()); err != nil {
		logging.FromContext(c.Request().Context()).Warn("logout_incomplete", "error", err)
	}
	return navigate(c, r)
}

func (h *Handler) ForgotPasswordForm(c echo.Context) error {
	return c.Render(http.StatusOK, "forgot_password", page(c, "Forgot password", nil))
}

// ForgotPassword hands the request to the mail pipeline through the event
// stream. The answer is the same whether or not the account exists.
func (h *Handler) ForgotPassword(c echo.Context) error {
	ctx := c.Request().Context()
	email := strings.TrimSpace(c.FormValue("email"))

	in := struct {
		Email string `json:"email" validate:"required,email"`
	}{Email: email}
	if errs := validate.Struct(in); len(errs) > 0 {
		return invalid(c, validate.First(errs), "forgot_password", page(c, "Forgot password", nil))
	}

	if h.Events != nil {
		metrics.SessionEvents.WithLabelValues(auth.EventPasswordResetRequested).Inc()
		ev := auth.Event{Type: auth.EventPasswordResetRequested, Email: email, At: time.Now().UTC()}
		if err := h.Events.PublishEvent(ctx, email, ev); err != nil {
			logging.FromContext(ctx).Error("event_publish_failed", "type", ev.Type, "error", err)
		}
	}

	p := page(c, "Forgot password", nil)
	p.Flash = resetRequested
	return c.Render(http.StatusOK, "forgot_password", p)
}
