package csrf

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, req *http.Request) (*httptest.ResponseRecorder, string, error) {
	t.Helper()
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	var seen string
	h := Middleware(Config{SkipPrefixes: []string{"/api"}})(func(c echo.Context) error {
		seen = Token(c)
		return c.NoContent(http.StatusNoContent)
	})
	err := h(c)
	return rec, seen, err
}

func TestGetIssuesToken(t *testing.T) {
	rec, seen, err := run(t, httptest.NewRequest(http.MethodGet, "/auth/login", nil))
	require.NoError(t, err)
	require.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get("X-CSRF-Token"))

	var found bool
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == "XSRF-TOKEN" {
			found = true
			assert.Equal(t, seen, ck.Value)
		}
	}
	assert.True(t, found)
}

func formPost(token, field string) *http.Request {
	form := url.Values{"csrf_token": {field}}
	req := httptest.NewRequest(http.MethodPost, "http://example.com/auth/login", strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	req.Header.Set("Origin", "http://example.com")
	if token != "" {
		req.AddCookie(&http.Cookie{Name: "XSRF-TOKEN", Value: token})
	}
	return req
}

func TestPostRequiresMatchingToken(t *testing.T) {
	_, _, err := run(t, formPost("tok123", "tok123"))
	assert.NoError(t, err)

	_, _, err = run(t, formPost("tok123", "other"))
	var he *echo.HTTPError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, http.StatusForbidden, he.Code)

	_, _, err = run(t, formPost("", ""))
	require.ErrorAs(t, err, &he)
	assert.Equal(t, http.StatusForbidden, he.Code)
}

func TestPostRejectsForeignOrigin(t *testing.T) {
	req := formPost("tok123", "tok123")
	req.Header.Set("Origin", "http://evil.example")
	_, _, err := run(t, req)
	var he *echo.HTTPError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, "invalid origin", he.Message)
}

func TestSkipPrefixes(t *testing.T) {
	_, _, err := run(t, httptest.NewRequest(http.MethodPost, "/api/anything", nil))
	assert.NoError(t, err)
}
