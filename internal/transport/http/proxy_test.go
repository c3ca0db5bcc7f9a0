package httpserver

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPIProxy(t *testing.T) {
	var got *http.Request
	var body string
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r
		b, _ := io.ReadAll(r.Body)
		body = string(b)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"id":1}`)
	}))
	t.Cleanup(backend.Close)

	proxy, err := NewAPIProxy(backend.URL)
	require.NoError(t, err)

	e := echo.New()
	e.Any("/api/*", proxy)

	req := httptest.NewRequest(http.MethodPost, "/api/medicines/?page=2", strings.NewReader(`{"name":"x"}`))
	req.Header.Set("Authorization", "Bearer abc")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"id":1}`, rec.Body.String())
	require.NotNil(t, got)
	assert.Equal(t, "/api/medicines/", got.URL.Path)
	assert.Equal(t, "page=2", got.URL.RawQuery)
	assert.Equal(t, "Bearer abc", got.Header.Get("Authorization"))
	assert.Equal(t, "example.com", got.Header.Get("X-Forwarded-Host"))
	assert.Equal(t, `{"name":"x"}`, body)
}

func TestAPIProxy_BackendDown(t *testing.T) {
	backend := httptest.NewServer(http.NotFoundHandler())
	url := backend.URL
	backend.Close()

	proxy, err := NewAPIProxy(url)
	require.NoError(t, err)
	e := echo.New()
	e.Any("/api/*", proxy)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/medicines/", nil))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestNewAPIProxy_RejectsRelativeTarget(t *testing.T) {
	_, err := NewAPIProxy("localhost:8000")
	assert.Error(t, err)
}
