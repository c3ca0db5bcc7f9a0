// Package auth owns the session state of one browser request: login,
// registration, logout and the startup validation of a stored session.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Skotchmaster/pharmacy_portal/internal/apiclient"
	"github.com/Skotchmaster/pharmacy_portal/internal/logging"
	"github.com/Skotchmaster/pharmacy_portal/internal/models"
	"github.com/Skotchmaster/pharmacy_portal/internal/mykafka"
	"github.com/Skotchmaster/pharmacy_portal/internal/routes"
	"github.com/Skotchmaster/pharmacy_portal/internal/tokenstore"
	"github.com/Skotchmaster/pharmacy_portal/internal/validate"
)

const (
	DefaultLoginError    = "Login failed. Please check your credentials."
	DefaultRegisterError = "Registration failed. Please try again."

	RegisteredPath = routes.LoginPath + "?registered=true"
)

var (
	ErrInvalidInput = errors.New("auth: invalid input")
	ErrLoginFailed  = errors.New("auth: login failed")
)

type State int

const (
	Anonymous State = iota
	Loading
	Authenticated
	Error
)

func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case Authenticated:
		return "authenticated"
	case Error:
		return "error"
	default:
		return "anonymous"
	}
}

// Backend is the unauthenticated part of the pharmacy API.
// *apiclient.Client satisfies it.
type Backend interface {
	IssueTokens(ctx context.Context, creds models.LoginCredentials) (*models.TokenPair, error)
	CurrentUser(ctx context.Context, accessToken string) (*models.UserProfile, error)
	Register(ctx context.Context, data models.RegistrationData) error
}

// Store is the token store of the request. *tokenstore.Store satisfies it.
type Store interface {
	ClientID() string
	HasCookies() bool
	Save(ctx context.Context, sess models.Session) error
	Load(ctx context.Context) (*models.Session, error)
	SetUser(ctx context.Context, user models.UserProfile) error
	Clear(ctx context.Context) error
}

// Validator checks the stored session against the backend through the
// refreshing pipeline. *apiclient.Session satisfies it.
type Validator interface {
	CurrentUser(ctx context.Context) (*models.UserProfile, error)
}

// Service is the session API page handlers depend on.
type Service interface {
	State() State
	User() *models.UserProfile
	IsAuthenticated() bool
	Error() string

	Login(ctx context.Context, creds models.LoginCredentials, callbackURL string) error
	Register(ctx context.Context, data models.RegistrationData) error
	Logout(ctx context.Context) error
	ClearError()
	Bootstrap(ctx context.Context) error
	RefreshProfile(ctx context.Context, user models.UserProfile) error
	Expired(ctx context.Context)
}

type Deps struct {
	Backend   Backend
	Store     Store
	Validator Validator
	Navigator routes.Navigator
	Events    mykafka.Publisher
	Cache     *ValidationCache
}

type Manager struct {
	backend   Backend
	store     Store
	validator Validator
	nav       routes.Navigator
	events    mykafka.Publisher
	cache     *ValidationCache

	mu     sync.Mutex
	state  State
	prior  State
	user   *models.UserProfile
	errMsg string
}

var _ Service = (*Manager)(nil)

func NewManager(d Deps) *Manager {
	if d.Events == nil {
		d.Events = mykafka.Nop{}
	}
	if d.Cache == nil {
		d.Cache = NewValidationCache(0)
	}
	return &Manager{
		backend:   d.Backend,
		store:     d.Store,
		validator: d.Validator,
		nav:       d.Navigator,
		events:    d.Events,
		cache:     d.Cache,
	}
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Manager) User() *models.UserProfile {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.user
}

func (m *Manager) IsAuthenticated() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.user != nil
}

func (m *Manager) Error() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.errMsg
}

func (m *Manager) begin() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != Loading && m.state != Error {
		m.prior = m.state
	}
	m.state = Loading
	m.errMsg = ""
}

func (m *Manager) fail(msg string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = Error
	m.errMsg = msg
}

func (m *Manager) settle(state State, user *models.UserProfile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = state
	m.user = user
	m.errMsg = ""
}

// Login exchanges credentials for tokens, fetches the profile with the new
// access token and persists the session. It navigates to callbackURL when it
// is a safe local path, else to the role's default route.
func (m *Manager) Login(ctx context.Context, creds models.LoginCredentials, callbackURL string) error {
	l := logging.FromContext(ctx).With("op", "login", "username", creds.Username)
	m.begin()

	if errs := validate.Struct(creds); len(errs) > 0 {
		m.fail(validate.First(errs))
		l.Warn("login_failed", "reason", "invalid_input")
		return ErrInvalidInput
	}

	pair, err := m.backend.IssueTokens(ctx, creds)
	if err != nil {
		m.fail(apiclient.MessageOf(err, DefaultLoginError))
		l.Warn("login_failed", "reason", "token_issue", "status", apiclient.StatusOf(err), "error", err)
		return fmt.Errorf("%w: %w", ErrLoginFailed, err)
	}

	user, err := m.backend.CurrentUser(ctx, pair.Access)
	if err != nil {
		m.fail(apiclient.MessageOf(err, DefaultLoginError))
		l.Warn("login_failed", "reason", "profile_fetch", "status", apiclient.StatusOf(err), "error", err)
		return fmt.Errorf("%w: %w", ErrLoginFailed, err)
	}

	if err := m.store.Save(ctx, models.Session{AccessToken: pair.Access, RefreshToken: pair.Refresh, User: user}); err != nil {
		m.fail(DefaultLoginError)
		l.Error("login_failed", "reason", "store_save", "error", err)
		return fmt.Errorf("%w: %w", ErrLoginFailed, err)
	}

	m.settle(Authenticated, user)
	m.cache.Mark(m.store.ClientID())
	m.publish(ctx, EventLoggedIn, user)
	l.Info("login_succeeded", "user_id", user.ID, "role", user.Role)

	target := routes.SafeCallback(callbackURL)
	if target == "" {
		target = routes.DefaultRoute(user.Role)
	}
	m.nav.Navigate(target)
	return nil
}

// Register creates an account; it never signs the browser in.
func (m *Manager) Register(ctx context.Context, data models.RegistrationData) error {
	l := logging.FromContext(ctx).With("op", "register", "username", data.Username)
	m.begin()

	if errs := validate.Struct(data); len(errs) > 0 {
		m.fail(validate.First(errs))
		l.Warn("register_failed", "reason", "invalid_input")
		return ErrInvalidInput
	}

	if err := m.backend.Register(ctx, data); err != nil {
		m.fail(apiclient.MessageOf(err, DefaultRegisterError))
		l.Warn("register_failed", "reason", "backend", "status", apiclient.StatusOf(err), "error", err)
		return err
	}

	m.mu.Lock()
	m.state = m.prior
	m.errMsg = ""
	m.mu.Unlock()

	m.publish(ctx, EventRegistered, &models.UserProfile{Username: data.Username, Email: data.Email, Role: data.Role})
	l.Info("register_succeeded")
	m.nav.Navigate(RegisteredPath)
	return nil
}

func (m *Manager) Logout(ctx context.Context) error {
	if user := m.User(); user != nil {
		m.publish(ctx, EventLoggedOut, user)
	}
	m.cache.Forget(m.store.ClientID())
	err := m.store.Clear(ctx)
	m.settle(Anonymous, nil)
	m.nav.Navigate(routes.LoginPath)
	if err != nil {
		logging.FromContext(ctx).Error("logout_clear_failed", "error", err)
		return err
	}
	return nil
}

// dropOrphanCookies clears cookies left behind by a session the persistent
// store no longer holds, so the edge gate and the guard agree.
func (m *Manager) dropOrphanCookies(ctx context.Context, l *slog.Logger) {
	if !m.store.HasCookies() {
		return
	}
	l.Info("session_orphan_cookies_cleared")
	m.cache.Forget(m.store.ClientID())
	if err := m.store.Clear(ctx); err != nil {
		l.Error("session_clear_failed", "error", err)
	}
}

func (m *Manager) ClearError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == Error {
		m.state = m.prior
	}
	m.errMsg = ""
}

// Bootstrap restores a stored session. The cached user is trusted at once and
// then confirmed with the backend unless it was confirmed recently. A failed
// confirmation clears the session. Bootstrap never navigates.
func (m *Manager) Bootstrap(ctx context.Context) error {
	l := logging.FromContext(ctx).With("op", "bootstrap")

	sess, err := m.store.Load(ctx)
	if errors.Is(err, tokenstore.ErrNoSession) || (err == nil && sess.User == nil) {
		m.settle(Anonymous, nil)
		m.dropOrphanCookies(ctx, l)
		return nil
	}
	if err != nil {
		m.settle(Anonymous, nil)
		return fmt.Errorf("load session: %w", err)
	}

	m.settle(Authenticated, sess.User)
	id := m.store.ClientID()
	if m.cache.Fresh(id) {
		return nil
	}

	user, err := m.validator.CurrentUser(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		l.Warn("session_validation_failed", "status", apiclient.StatusOf(err), "error", err)
		if !apiclient.IsSessionExpired(err) {
			m.cache.Forget(id)
			if cerr := m.store.Clear(ctx); cerr != nil {
				l.Error("session_clear_failed", "error", cerr)
			}
			m.Expired(ctx)
		}
		return nil
	}

	if err := m.store.SetUser(ctx, *user); err != nil {
		return fmt.Errorf("store user: %w", err)
	}
	m.settle(Authenticated, user)
	m.cache.Mark(id)
	return nil
}

// RefreshProfile writes an edited profile through both stores.
func (m *Manager) RefreshProfile(ctx context.Context, user models.UserProfile) error {
	if err := m.store.SetUser(ctx, user); err != nil {
		return fmt.Errorf("store user: %w", err)
	}
	m.settle(Authenticated, &user)
	m.cache.Mark(m.store.ClientID())
	return nil
}

// Expired drops the in-memory session after the pipeline purged the stored one.
func (m *Manager) Expired(ctx context.Context) {
	user := m.User()
	m.cache.Forget(m.store.ClientID())
	m.settle(Anonymous, nil)
	if user != nil {
		m.publish(ctx, EventSessionExpired, user)
	}
}
