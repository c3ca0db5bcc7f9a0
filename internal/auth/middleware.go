package auth

import (
	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/pharmacy_portal/internal/apiclient"
	"github.com/Skotchmaster/pharmacy_portal/internal/logging"
	"github.com/Skotchmaster/pharmacy_portal/internal/models"
	"github.com/Skotchmaster/pharmacy_portal/internal/mykafka"
	"github.com/Skotchmaster/pharmacy_portal/internal/refresh"
	"github.com/Skotchmaster/pharmacy_portal/internal/routes"
	"github.com/Skotchmaster/pharmacy_portal/internal/tokenstore"
)

const requestKey = "auth.request"

type Config struct {
	Client   *apiclient.Client
	KV       tokenstore.KV
	Cookies  tokenstore.Options
	Registry *refresh.Registry
	Cache    *ValidationCache
	Events   mykafka.Publisher
}

// Request carries the session objects of one page request.
type Request struct {
	Manager  *Manager
	Nav      *routes.Recorder
	Pipeline *apiclient.Session
	Store    *tokenstore.Store
}

// Middleware wires the token store, refresh coordinator and session manager
// for the request and bootstraps the stored session.
func Middleware(cfg Config) echo.MiddlewareFunc {
	if cfg.Registry == nil {
		cfg.Registry = refresh.NewRegistry()
	}
	if cfg.Cache == nil {
		cfg.Cache = NewValidationCache(0)
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()

			store := tokenstore.New(cfg.KV, c, cfg.Cookies)
			coord, release := cfg.Registry.Acquire(store.ClientID())
			defer release()

			pipe := cfg.Client.Session(store, coord)
			nav := &routes.Recorder{}
			m := NewManager(Deps{
				Backend:   cfg.Client,
				Store:     store,
				Validator: pipe,
				Navigator: nav,
				Events:    cfg.Events,
				Cache:     cfg.Cache,
			})
			pipe.OnExpired = m.Expired

			if err := m.Bootstrap(ctx); err != nil {
				logging.FromContext(ctx).Error("session_bootstrap_failed", "error", err)
			}

			c.Set(requestKey, &Request{Manager: m, Nav: nav, Pipeline: pipe, Store: store})
			return next(c)
		}
	}
}

func FromEcho(c echo.Context) *Request {
	r, _ := c.Get(requestKey).(*Request)
	return r
}

// CurrentUser returns the bootstrapped user of c, or nil.
func CurrentUser(c echo.Context) *models.UserProfile {
	if r := FromEcho(c); r != nil {
		return r.Manager.User()
	}
	return nil
}
