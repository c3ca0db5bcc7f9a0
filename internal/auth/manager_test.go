package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/pharmacy_portal/internal/apiclient"
	"github.com/Skotchmaster/pharmacy_portal/internal/models"
	"github.com/Skotchmaster/pharmacy_portal/internal/mykafka"
	"github.com/Skotchmaster/pharmacy_portal/internal/routes"
	"github.com/Skotchmaster/pharmacy_portal/internal/tokenstore"
)

type fakeBackend struct {
	pair        *models.TokenPair
	issueErr    error
	user        *models.UserProfile
	userErr     error
	registerErr error

	gotBearer  string
	registered []models.RegistrationData
}

func (f *fakeBackend) IssueTokens(_ context.Context, _ models.LoginCredentials) (*models.TokenPair, error) {
	return f.pair, f.issueErr
}

func (f *fakeBackend) CurrentUser(_ context.Context, token string) (*models.UserProfile, error) {
	f.gotBearer = token
	return f.user, f.userErr
}

func (f *fakeBackend) Register(_ context.Context, d models.RegistrationData) error {
	f.registered = append(f.registered, d)
	return f.registerErr
}

type fakeValidator struct {
	user  *models.UserProfile
	err   error
	calls int
}

func (f *fakeValidator) CurrentUser(context.Context) (*models.UserProfile, error) {
	f.calls++
	return f.user, f.err
}

type harness struct {
	kv      *tokenstore.MemoryKV
	rec     *httptest.ResponseRecorder
	store   *tokenstore.Store
	backend *fakeBackend
	valid   *fakeValidator
	nav     *routes.Recorder
	events  *mykafka.Recorder
	cache   *ValidationCache
	m       *Manager
}

func newHarness(t *testing.T, kv *tokenstore.MemoryKV, cache *ValidationCache, cookies ...*http.Cookie) *harness {
	t.Helper()
	if kv == nil {
		kv = tokenstore.NewMemoryKV()
	}
	if cache == nil {
		cache = NewValidationCache(time.Minute)
	}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(req, rec)

	h := &harness{
		kv:      kv,
		rec:     rec,
		store:   tokenstore.New(kv, c, tokenstore.Options{}),
		backend: &fakeBackend{},
		valid:   &fakeValidator{},
		nav:     &routes.Recorder{},
		events:  &mykafka.Recorder{},
		cache:   cache,
	}
	h.m = NewManager(Deps{
		Backend:   h.backend,
		Store:     h.store,
		Validator: h.valid,
		Navigator: h.nav,
		Events:    h.events,
		Cache:     cache,
	})
	return h
}

func (h *harness) cookies() map[string]*http.Cookie {
	out := map[string]*http.Cookie{}
	for _, ck := range h.rec.Result().Cookies() {
		out[ck.Name] = ck
	}
	return out
}

func (h *harness) eventTypes() []string {
	var out []string
	for _, e := range h.events.Events() {
		out = append(out, e.Event.(Event).Type)
	}
	return out
}

func staff() *models.UserProfile {
	return &models.UserProfile{ID: 11, Username: "sam", Role: models.RolePharmacyStaff}
}

var creds = models.LoginCredentials{Username: "sam", Password: "pw"}

func TestLogin_PersistsBothSinksAndNavigatesToRoleDefault(t *testing.T) {
	h := newHarness(t, nil, nil)
	h.backend.pair = &models.TokenPair{Access: "a1", Refresh: "r1"}
	h.backend.user = staff()

	require.NoError(t, h.m.Login(context.Background(), creds, ""))

	assert.Equal(t, Authenticated, h.m.State())
	assert.Equal(t, "sam", h.m.User().Username)
	assert.Equal(t, "a1", h.backend.gotBearer)
	assert.Equal(t, "/dashboard", h.nav.Target())

	sess, err := h.store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "a1", sess.AccessToken)
	assert.Equal(t, "r1", sess.RefreshToken)

	ck := h.cookies()
	assert.Equal(t, "a1", ck[tokenstore.KeyAccessToken].Value)
	raw, err := tokenstore.DecodeCookieValue(ck[tokenstore.KeyUserData].Value)
	require.NoError(t, err)
	var u models.UserProfile
	require.NoError(t, json.Unmarshal([]byte(raw), &u))
	assert.Equal(t, models.RolePharmacyStaff, u.Role)

	assert.Equal(t, []string{EventLoggedIn}, h.eventTypes())
	assert.True(t, h.cache.Fresh(h.store.ClientID()))
}

func TestLogin_CallbackURL(t *testing.T) {
	tests := []struct {
		callback string
		want     string
	}{
		{"/dashboard/inventory", "/dashboard/inventory"},
		{"%2Fdashboard%2Falerts", "/dashboard/alerts"},
		{"/auth/login", "/dashboard/admin"},
		{"https://evil.example", "/dashboard/admin"},
		{"", "/dashboard/admin"},
	}
	for _, tt := range tests {
		t.Run(tt.callback, func(t *testing.T) {
			h := newHarness(t, nil, nil)
			h.backend.pair = &models.TokenPair{Access: "a1", Refresh: "r1"}
			h.backend.user = &models.UserProfile{ID: 1, Username: "root", Role: models.RoleAdmin}

			require.NoError(t, h.m.Login(context.Background(), creds, tt.callback))
			assert.Equal(t, tt.want, h.nav.Target())
		})
	}
}

func TestLogin_Failures(t *testing.T) {
	tests := []struct {
		name    string
		issue   error
		userErr error
		creds   models.LoginCredentials
		want    string
	}{
		{
			name:  "detail from backend",
			issue: &apiclient.HTTPError{Status: 401, Payload: models.APIError{Detail: "No active account found with the given credentials"}},
			creds: creds,
			want:  "No active account found with the given credentials",
		},
		{
			name:  "message fallback",
			issue: &apiclient.HTTPError{Status: 400, Payload: models.APIError{Message: "Bad request"}},
			creds: creds,
			want:  "Bad request",
		},
		{
			name:  "field error fallback",
			issue: &apiclient.HTTPError{Status: 400, Payload: models.APIError{Errors: map[string][]string{"password": {"This field may not be blank."}}}},
			creds: creds,
			want:  "password: This field may not be blank.",
		},
		{
			name:  "no payload",
			issue: errors.New("connection refused"),
			creds: creds,
			want:  DefaultLoginError,
		},
		{
			name:    "profile fetch fails",
			userErr: &apiclient.HTTPError{Status: 500},
			creds:   creds,
			want:    DefaultLoginError,
		},
		{
			name:  "missing password",
			creds: models.LoginCredentials{Username: "sam"},
			want:  "The field 'password' is required.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, nil, nil)
			h.backend.pair = &models.TokenPair{Access: "a1", Refresh: "r1"}
			h.backend.issueErr = tt.issue
			h.backend.user = staff()
			h.backend.userErr = tt.userErr

			err := h.m.Login(context.Background(), tt.creds, "")
			require.Error(t, err)

			assert.Equal(t, Error, h.m.State())
			assert.Equal(t, tt.want, h.m.Error())
			assert.False(t, h.m.IsAuthenticated())
			assert.Empty(t, h.nav.Target())
			assert.Empty(t, h.store.ClientID())
			assert.Empty(t, h.events.Events())

			h.m.ClearError()
			assert.Equal(t, Anonymous, h.m.State())
			assert.Empty(t, h.m.Error())
		})
	}
}

func TestRegister(t *testing.T) {
	data := models.RegistrationData{
		Username:  "newbie",
		Email:     "newbie@example.com",
		Password:  "longenough",
		Password2: "longenough",
	}

	t.Run("success navigates to login", func(t *testing.T) {
		h := newHarness(t, nil, nil)
		require.NoError(t, h.m.Register(context.Background(), data))

		assert.Equal(t, Anonymous, h.m.State())
		assert.False(t, h.m.IsAuthenticated())
		assert.Equal(t, "/auth/login?registered=true", h.nav.Target())
		assert.Len(t, h.backend.registered, 1)
		assert.Equal(t, []string{EventRegistered}, h.eventTypes())
		assert.Empty(t, h.store.ClientID())
	})

	t.Run("backend error surfaces message", func(t *testing.T) {
		h := newHarness(t, nil, nil)
		h.backend.registerErr = &apiclient.HTTPError{Status: 400, Payload: models.APIError{
			Errors: map[string][]string{"username": {"A user with that username already exists."}},
		}}
		require.Error(t, h.m.Register(context.Background(), data))
		assert.Equal(t, Error, h.m.State())
		assert.Equal(t, "username: A user with that username already exists.", h.m.Error())
		assert.Empty(t, h.nav.Target())
	})

	t.Run("backend error without payload", func(t *testing.T) {
		h := newHarness(t, nil, nil)
		h.backend.registerErr = &apiclient.HTTPError{Status: 502}
		require.Error(t, h.m.Register(context.Background(), data))
		assert.Equal(t, DefaultRegisterError, h.m.Error())
	})

	t.Run("mismatched passwords never reach backend", func(t *testing.T) {
		h := newHarness(t, nil, nil)
		bad := data
		bad.Password2 = "different!"
		assert.ErrorIs(t, h.m.Register(context.Background(), bad), ErrInvalidInput)
		assert.Empty(t, h.backend.registered)
		assert.Equal(t, Error, h.m.State())
	})
}

func TestLogout_ClearsEverything(t *testing.T) {
	kv := tokenstore.NewMemoryKV()
	first := newHarness(t, kv, nil)
	first.backend.pair = &models.TokenPair{Access: "a1", Refresh: "r1"}
	first.backend.user = staff()
	require.NoError(t, first.m.Login(context.Background(), creds, ""))
	id := first.store.ClientID()

	h := newHarness(t, kv, first.cache, &http.Cookie{Name: tokenstore.ClientCookie, Value: id})
	h.valid.user = staff()
	require.NoError(t, h.m.Bootstrap(context.Background()))
	require.True(t, h.m.IsAuthenticated())

	require.NoError(t, h.m.Logout(context.Background()))

	assert.Equal(t, Anonymous, h.m.State())
	assert.Nil(t, h.m.User())
	assert.Equal(t, "/auth/login", h.nav.Target())
	assert.Zero(t, kv.Len(id))
	assert.False(t, h.cache.Fresh(id))
	assert.Equal(t, []string{EventLoggedOut}, h.eventTypes())

	ck := h.cookies()
	for _, name := range []string{tokenstore.KeyAccessToken, tokenstore.KeyRefreshToken, tokenstore.KeyUserData, tokenstore.ClientCookie} {
		require.Contains(t, ck, name)
		assert.Equal(t, -1, ck[name].MaxAge)
	}
}

func loggedIn(t *testing.T, kv *tokenstore.MemoryKV) string {
	t.Helper()
	h := newHarness(t, kv, NewValidationCache(time.Minute))
	h.backend.pair = &models.TokenPair{Access: "a1", Refresh: "r1"}
	h.backend.user = staff()
	require.NoError(t, h.m.Login(context.Background(), creds, ""))
	return h.store.ClientID()
}

func TestBootstrap(t *testing.T) {
	t.Run("no session stays anonymous", func(t *testing.T) {
		h := newHarness(t, nil, nil)
		require.NoError(t, h.m.Bootstrap(context.Background()))
		assert.Equal(t, Anonymous, h.m.State())
		assert.Zero(t, h.valid.calls)
		assert.Empty(t, h.nav.Target())
	})

	t.Run("valid session refreshes cached user", func(t *testing.T) {
		kv := tokenstore.NewMemoryKV()
		id := loggedIn(t, kv)

		h := newHarness(t, kv, nil, &http.Cookie{Name: tokenstore.ClientCookie, Value: id})
		updated := staff()
		updated.Email = "sam@new.example"
		h.valid.user = updated

		require.NoError(t, h.m.Bootstrap(context.Background()))
		assert.Equal(t, Authenticated, h.m.State())
		assert.Equal(t, "sam@new.example", h.m.User().Email)
		assert.Equal(t, 1, h.valid.calls)
		assert.Empty(t, h.nav.Target())

		sess, err := h.store.Load(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "sam@new.example", sess.User.Email)
		assert.Contains(t, h.cookies(), tokenstore.KeyUserData)
	})

	t.Run("recently validated session skips backend", func(t *testing.T) {
		kv := tokenstore.NewMemoryKV()
		id := loggedIn(t, kv)
		cache := NewValidationCache(time.Minute)
		cache.Mark(id)

		h := newHarness(t, kv, cache, &http.Cookie{Name: tokenstore.ClientCookie, Value: id})
		require.NoError(t, h.m.Bootstrap(context.Background()))
		assert.Equal(t, Authenticated, h.m.State())
		assert.Zero(t, h.valid.calls)
	})

	t.Run("rejected session is cleared", func(t *testing.T) {
		kv := tokenstore.NewMemoryKV()
		id := loggedIn(t, kv)

		h := newHarness(t, kv, nil, &http.Cookie{Name: tokenstore.ClientCookie, Value: id})
		h.valid.err = &apiclient.HTTPError{Status: http.StatusForbidden}

		require.NoError(t, h.m.Bootstrap(context.Background()))
		assert.Equal(t, Anonymous, h.m.State())
		assert.Nil(t, h.m.User())
		assert.Zero(t, kv.Len(id))
		assert.Empty(t, h.nav.Target())
		assert.Equal(t, []string{EventSessionExpired}, h.eventTypes())
	})

	t.Run("malformed stored user is no session", func(t *testing.T) {
		kv := tokenstore.NewMemoryKV()
		id := loggedIn(t, kv)
		require.NoError(t, kv.Set(context.Background(), id, map[string]string{tokenstore.KeyUserData: "{broken"}, time.Hour))

		h := newHarness(t, kv, nil, &http.Cookie{Name: tokenstore.ClientCookie, Value: id})
		require.NoError(t, h.m.Bootstrap(context.Background()))
		assert.Equal(t, Anonymous, h.m.State())
		assert.Zero(t, h.valid.calls)
		assert.Zero(t, kv.Len(id))
		assert.Equal(t, -1, h.cookies()[tokenstore.KeyUserData].MaxAge)
	})

	t.Run("cookies without stored session are expired", func(t *testing.T) {
		kv := tokenstore.NewMemoryKV()
		id := loggedIn(t, kv)
		raw, err := json.Marshal(staff())
		require.NoError(t, err)

		h := newHarness(t, tokenstore.NewMemoryKV(), nil,
			&http.Cookie{Name: tokenstore.ClientCookie, Value: id},
			&http.Cookie{Name: tokenstore.KeyAccessToken, Value: "a1"},
			&http.Cookie{Name: tokenstore.KeyUserData, Value: tokenstore.EncodeCookieValue(string(raw))},
		)
		require.NoError(t, h.m.Bootstrap(context.Background()))
		assert.Equal(t, Anonymous, h.m.State())
		assert.Zero(t, h.valid.calls)
		assert.Empty(t, h.nav.Target())

		cookies := h.cookies()
		for _, name := range []string{tokenstore.KeyAccessToken, tokenstore.KeyUserData, tokenstore.ClientCookie} {
			require.Contains(t, cookies, name)
			assert.Equal(t, -1, cookies[name].MaxAge, name)
		}
	})

	t.Run("no cookies sets none", func(t *testing.T) {
		h := newHarness(t, nil, nil)
		require.NoError(t, h.m.Bootstrap(context.Background()))
		assert.Empty(t, h.cookies())
	})
}

func TestRefreshProfile(t *testing.T) {
	kv := tokenstore.NewMemoryKV()
	id := loggedIn(t, kv)
	h := newHarness(t, kv, nil, &http.Cookie{Name: tokenstore.ClientCookie, Value: id})

	u := *staff()
	u.FirstName = "Samantha"
	require.NoError(t, h.m.RefreshProfile(context.Background(), u))

	assert.Equal(t, "Samantha", h.m.User().FirstName)
	sess, err := h.store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Samantha", sess.User.FirstName)
	assert.Contains(t, h.cookies(), tokenstore.KeyUserData)
}

func TestValidationCache(t *testing.T) {
	c := NewValidationCache(time.Minute)
	now := time.Now()
	c.now = func() time.Time { return now }

	assert.False(t, c.Fresh(""))
	c.Mark("a")
	c.Mark("b")
	assert.True(t, c.Fresh("a"))

	now = now.Add(2 * time.Minute)
	assert.False(t, c.Fresh("a"))
	assert.Equal(t, 1, c.Len())
	assert.Zero(t, c.Prune())
	assert.Zero(t, c.Len())
}
