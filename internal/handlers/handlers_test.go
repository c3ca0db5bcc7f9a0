package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/pharmacy_portal/internal/apiclient"
	"github.com/Skotchmaster/pharmacy_portal/internal/auth"
	"github.com/Skotchmaster/pharmacy_portal/internal/models"
	"github.com/Skotchmaster/pharmacy_portal/internal/tokenstore"
	"github.com/Skotchmaster/pharmacy_portal/internal/view"
)

var (
	admin = models.UserProfile{ID: 1, Username: "admin", Email: "admin@example.com", FirstName: "Ada", Role: models.RoleAdmin}
	staff = models.UserProfile{ID: 2, Username: "sam", Email: "sam@example.com", FirstName: "Sam", Role: models.RolePharmacyStaff}

	medicine = models.Medicine{ID: 9, Name: "Paracetamol", Manufacturer: "Acme", DosageForm: "tablet", Strength: "500mg"}
	item     = models.Inventory{ID: 5, Medicine: medicine, UnitPrice: 2.5, CostPrice: 1, Quantity: 2, MinStockLevel: 10}
	pharmacy = models.Pharmacy{ID: 3, Name: "Central", Address: "Main St 1", ContactEmail: "c@example.com", IsActive: true}
)

type call struct {
	Method string
	Path   string
	Query  string
	Body   string
}

// fakeAPI answers every resource endpoint with canned data and records calls.
type fakeAPI struct {
	mu     sync.Mutex
	calls  []call
	status map[string]int
}

func (f *fakeAPI) last(method, path string) (call, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.calls) - 1; i >= 0; i-- {
		if f.calls[i].Method == method && f.calls[i].Path == path {
			return f.calls[i], true
		}
	}
	return call{}, false
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	key := r.Method + " " + r.URL.Path
	f.mu.Lock()
	f.calls = append(f.calls, call{Method: r.Method, Path: r.URL.Path, Query: r.URL.RawQuery, Body: string(body)})
	code, forced := f.status[key]
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if forced {
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(map[string]any{"errors": map[string][]string{"quantity": {"Not enough stock."}}})
		return
	}
	if r.Header.Get("Authorization") != "Bearer tok" {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"detail":"unauthorized"}`)
		return
	}

	var out any
	switch key {
	case "GET /api/auth/users/me/", "PATCH /api/auth/users/me/":
		out = admin
	case "GET /api/medicines/":
		out = models.ListResponse[models.Medicine]{Count: 1, Results: []models.Medicine{medicine}}
	case "GET /api/medicines/9/", "PUT /api/medicines/9/":
		out = medicine
	case "POST /api/medicines/":
		m := medicine
		m.ID = 10
		out = m
	case "GET /api/inventory/", "GET /api/inventory/low_stock/":
		out = models.ListResponse[models.Inventory]{Count: 1, Results: []models.Inventory{item}}
	case "GET /api/inventory/5/":
		out = item
	case "GET /api/pharmacies/":
		out = models.ListResponse[models.Pharmacy]{Count: 1, Results: []models.Pharmacy{pharmacy}}
	case "GET /api/pharmacies/3/", "POST /api/pharmacies/3/add_staff/", "PATCH /api/pharmacies/3/":
		out = pharmacy
	case "GET /api/auth/users/":
		out = models.ListResponse[models.UserProfile]{Count: 1, Results: []models.UserProfile{staff}}
	case "GET /api/auth/users/2/", "PATCH /api/auth/users/2/":
		out = staff
	case "GET /api/sales/dashboard/":
		out = models.SalesDashboard{TotalSales: 4, TotalRevenue: 99.5, AverageOrderValue: 24.875}
	case "GET /api/sales/sales_by_type/":
		out = []models.SalesByType{{Type: "OTC", Count: 3, Revenue: 50}}
	case "GET /api/daily-sales-reports/":
		out = []models.DailySalesReport{{Date: "2026-01-02", TotalSales: 4, TotalRevenue: 99.5}}
	case "GET /api/product-sales-reports/":
		out = []models.ProductSalesReport{{ProductID: 9, ProductName: "Paracetamol", QuantitySold: 7, Revenue: 17.5}}
	case "DELETE /api/medicines/9/", "POST /api/inventory/5/adjust_stock/", "POST /api/inventory/":
		w.WriteHeader(http.StatusNoContent)
		return
	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"detail":"Not found."}`)
		return
	}
	_ = json.NewEncoder(w).Encode(out)
}

type harness struct {
	api *fakeAPI
	e   *echo.Echo
	sid string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	api := &fakeAPI{status: map[string]int{}}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	kv := tokenstore.NewMemoryKV()
	sid := uuid.NewString()
	raw, err := json.Marshal(admin)
	require.NoError(t, err)
	require.NoError(t, kv.Set(context.Background(), sid, map[string]string{
		tokenstore.KeyAccessToken:  "tok",
		tokenstore.KeyRefreshToken: "ref",
		tokenstore.KeyUserData:     string(raw),
	}, time.Hour))

	r, err := view.New()
	require.NoError(t, err)

	e := echo.New()
	e.Renderer = r
	e.Use(auth.Middleware(auth.Config{
		Client: apiclient.New(apiclient.Options{BaseURL: srv.URL, Prefix: "/api"}),
		KV:     kv,
	}))
	h := &Handler{}

	e.GET("/", h.Storefront)
	e.GET("/auth/login", h.LoginForm)
	e.GET("/auth/register", h.RegisterForm)
	e.GET("/auth/forgot-password", h.ForgotPasswordForm)
	e.GET("/dashboard", h.Dashboard)
	e.GET("/dashboard/admin", h.AdminDashboard)
	e.GET("/dashboard/alerts", h.Alerts)
	e.GET("/dashboard/profile", h.Profile)
	e.GET("/dashboard/profile/edit", h.EditProfile)
	e.POST("/dashboard/profile/edit", h.UpdateProfile)
	e.GET("/dashboard/medicines", h.ListMedicines)
	e.GET("/dashboard/medicines/new", h.NewMedicine)
	e.POST("/dashboard/medicines/new", h.CreateMedicine)
	e.GET("/dashboard/medicines/:id", h.ShowMedicine)
	e.GET("/dashboard/medicines/:id/edit", h.EditMedicine)
	e.POST("/dashboard/medicines/:id/delete", h.DeleteMedicine)
	e.GET("/dashboard/inventory", h.ListInventory)
	e.GET("/dashboard/inventory/new", h.NewInventory)
	e.POST("/dashboard/inventory/new", h.CreateInventory)
	e.GET("/dashboard/inventory/:id/edit", h.EditInventory)
	e.GET("/dashboard/inventory/:id/adjust", h.AdjustForm)
	e.POST("/dashboard/inventory/:id/adjust", h.AdjustStock)
	e.GET("/dashboard/pharmacies", h.ListPharmacies)
	e.GET("/dashboard/pharmacies/new", h.NewPharmacy)
	e.GET("/dashboard/pharmacies/:id", h.ShowPharmacy)
	e.GET("/dashboard/pharmacies/:id/edit", h.EditPharmacy)
	e.GET("/dashboard/pharmacies/:id/staff", h.Staff)
	e.POST("/dashboard/pharmacies/:id/staff/add", h.AddStaff)
	e.GET("/dashboard/users", h.ListUsers)
	e.GET("/dashboard/users/new", h.NewUserForm)
	e.GET("/dashboard/users/:id", h.ShowUser)
	e.GET("/dashboard/users/:id/edit", h.EditUser)
	e.GET("/dashboard/reports", h.Reports)

	return &harness{api: api, e: e, sid: sid}
}

func (hs *harness) do(method, target string, form url.Values) *httptest.ResponseRecorder {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req := httptest.NewRequest(method, target, body)
	if form != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	}
	req.AddCookie(&http.Cookie{Name: tokenstore.ClientCookie, Value: hs.sid})
	rec := httptest.NewRecorder()
	hs.e.ServeHTTP(rec, req)
	return rec
}

func TestPagesRender(t *testing.T) {
	hs := newHarness(t)

	tests := []struct {
		path string
		want string
	}{
		{"/", "Paracetamol"},
		{"/auth/login?registered=true", "Registration successful"},
		{"/auth/register", "Create an account"},
		{"/auth/forgot-password", "Forgot password"},
		{"/dashboard", "1 low stock alerts"},
		{"/dashboard/admin", "$99.50"},
		{"/dashboard/alerts", "high"},
		{"/dashboard/profile", "admin@example.com"},
		{"/dashboard/profile/edit", "Edit profile"},
		{"/dashboard/medicines?search=para&requires_prescription=true", "Paracetamol"},
		{"/dashboard/medicines/new", "New medicine"},
		{"/dashboard/medicines/9", "Acme"},
		{"/dashboard/medicines/9/edit", `value="Paracetamol"`},
		{"/dashboard/inventory", "Low stock"},
		{"/dashboard/inventory/new", "Paracetamol 500mg"},
		{"/dashboard/inventory/5/edit", "Edit inventory item"},
		{"/dashboard/inventory/5/adjust", "Current quantity 2"},
		{"/dashboard/pharmacies", "Central"},
		{"/dashboard/pharmacies/new", "New pharmacy"},
		{"/dashboard/pharmacies/3", "Main St 1"},
		{"/dashboard/pharmacies/3/edit", `value="Central"`},
		{"/dashboard/pharmacies/3/staff", "sam@example.com"},
		{"/dashboard/users?role=STAFF", "sam@example.com"},
		{"/dashboard/users/new", "New user"},
		{"/dashboard/users/2", "Pharmacy Staff"},
		{"/dashboard/users/2/edit", "Edit user"},
		{"/dashboard/reports?start_date=2026-01-01&pharmacy_id=3", "OTC"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := hs.do(http.MethodGet, tt.path, nil)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			assert.Contains(t, rec.Body.String(), tt.want)
		})
	}
}

func TestListFiltersReachBackend(t *testing.T) {
	hs := newHarness(t)

	hs.do(http.MethodGet, "/dashboard/medicines?search=para&fda_approved=false&page=2", nil)
	c, ok := hs.api.last(http.MethodGet, "/api/medicines/")
	require.True(t, ok)
	q, err := url.ParseQuery(c.Query)
	require.NoError(t, err)
	assert.Equal(t, "para", q.Get("search"))
	assert.Equal(t, "2", q.Get("page"))
	assert.Equal(t, "false", q.Get("fda_approved"))
	assert.False(t, q.Has("requires_prescription"))

	hs.do(http.MethodGet, "/dashboard/reports?start_date=2026-01-01&pharmacy_id=3", nil)
	c, ok = hs.api.last(http.MethodGet, "/api/daily-sales-reports/")
	require.True(t, ok)
	assert.Equal(t, "pharmacy_id=3&start_date=2026-01-01", c.Query)
}

func TestPagination(t *testing.T) {
	hs := newHarness(t)
	rec := hs.do(http.MethodGet, "/dashboard/medicines?page=2&search=x", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "page=1&amp;search=x")
}

func TestPageBelowOneIsClamped(t *testing.T) {
	lists := map[string]string{
		"/dashboard/medicines":  "/api/medicines/",
		"/dashboard/inventory":  "/api/inventory/",
		"/dashboard/pharmacies": "/api/pharmacies/",
		"/dashboard/users":      "/api/auth/users/",
	}
	for page, backend := range lists {
		for _, raw := range []string{"0", "-3", "abc"} {
			t.Run(page+"?page="+raw, func(t *testing.T) {
				hs := newHarness(t)
				rec := hs.do(http.MethodGet, page+"?page="+raw, nil)
				require.Equal(t, http.StatusOK, rec.Code)

				c, ok := hs.api.last(http.MethodGet, backend)
				require.True(t, ok)
				q, err := url.ParseQuery(c.Query)
				require.NoError(t, err)
				assert.Equal(t, "1", q.Get("page"))
			})
		}
	}
}

func TestCreateMedicine(t *testing.T) {
	hs := newHarness(t)

	rec := hs.do(http.MethodPost, "/dashboard/medicines/new", url.Values{
		"name": {"Ibuprofen"}, "manufacturer": {"Acme"}, "dosage_form": {"tablet"},
		"strength": {"200mg"}, "requires_prescription": {"true"},
	})
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/dashboard/medicines/10", rec.Header().Get(echo.HeaderLocation))

	c, ok := hs.api.last(http.MethodPost, "/api/medicines/")
	require.True(t, ok)
	var sent models.Medicine
	require.NoError(t, json.Unmarshal([]byte(c.Body), &sent))
	assert.Equal(t, "Ibuprofen", sent.Name)
	assert.True(t, sent.RequiresPrescription)
}

func TestCreateMedicineValidation(t *testing.T) {
	hs := newHarness(t)

	rec := hs.do(http.MethodPost, "/dashboard/medicines/new", url.Values{"name": {"Ibuprofen"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "is required")
	_, called := hs.api.last(http.MethodPost, "/api/medicines/")
	assert.False(t, called)
}

func TestDeleteMedicine(t *testing.T) {
	hs := newHarness(t)
	rec := hs.do(http.MethodPost, "/dashboard/medicines/9/delete", url.Values{})
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/dashboard/medicines", rec.Header().Get(echo.HeaderLocation))
}

func TestAdjustStock(t *testing.T) {
	tests := []struct {
		name     string
		quantity string
		backend  int
		wantCode int
		wantText string
	}{
		{name: "applied", quantity: "-1", wantCode: http.StatusSeeOther},
		{name: "zero rejected", quantity: "0", wantCode: http.StatusBadRequest, wantText: "must not be 0"},
		{name: "backend error shown", quantity: "-50", backend: http.StatusBadRequest, wantCode: http.StatusBadRequest, wantText: "quantity: Not enough stock."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hs := newHarness(t)
			if tt.backend != 0 {
				hs.api.status["POST /api/inventory/5/adjust_stock/"] = tt.backend
			}
			rec := hs.do(http.MethodPost, "/dashboard/inventory/5/adjust", url.Values{"quantity": {tt.quantity}})
			assert.Equal(t, tt.wantCode, rec.Code)
			if tt.wantText != "" {
				assert.Contains(t, rec.Body.String(), tt.wantText)
			}
			if tt.wantCode == http.StatusSeeOther {
				c, ok := hs.api.last(http.MethodPost, "/api/inventory/5/adjust_stock/")
				require.True(t, ok)
				assert.JSONEq(t, `{"quantity":-1}`, c.Body)
			}
		})
	}
}

func TestCreateInventory(t *testing.T) {
	hs := newHarness(t)
	rec := hs.do(http.MethodPost, "/dashboard/inventory/new", url.Values{
		"medicine": {"9"}, "unit_price": {"2.5"}, "cost_price": {"1"}, "quantity": {"20"}, "min_stock_level": {"5"},
	})
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	c, ok := hs.api.last(http.MethodPost, "/api/inventory/")
	require.True(t, ok)
	assert.JSONEq(t, `{"medicine":9,"unit_price":2.5,"cost_price":1,"quantity":20,"min_stock_level":5}`, c.Body)
}

func TestAddStaff(t *testing.T) {
	hs := newHarness(t)
	rec := hs.do(http.MethodPost, "/dashboard/pharmacies/3/staff/add", url.Values{"user_id": {"2"}})
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/dashboard/pharmacies/3/staff", rec.Header().Get(echo.HeaderLocation))
	c, ok := hs.api.last(http.MethodPost, "/api/pharmacies/3/add_staff/")
	require.True(t, ok)
	assert.JSONEq(t, `{"user_id":2}`, c.Body)

	rec = hs.do(http.MethodPost, "/dashboard/pharmacies/3/staff/add", url.Values{"user_id": {"x"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateProfileRefreshesSession(t *testing.T) {
	hs := newHarness(t)
	rec := hs.do(http.MethodPost, "/dashboard/profile/edit", url.Values{"first_name": {"Ada"}, "role": {"ADMIN"}})
	assert.Equal(t, http.StatusSeeOther, rec.Code)

	c, ok := hs.api.last(http.MethodPatch, "/api/auth/users/me/")
	require.True(t, ok)
	assert.NotContains(t, c.Body, "role")

	var userCookie *http.Cookie
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == tokenstore.KeyUserData {
			userCookie = ck
		}
	}
	require.NotNil(t, userCookie)
	raw, err := tokenstore.DecodeCookieValue(userCookie.Value)
	require.NoError(t, err)
	assert.Contains(t, raw, `"username":"admin"`)
}

func TestInvalidID(t *testing.T) {
	hs := newHarness(t)
	rec := hs.do(http.MethodGet, "/dashboard/medicines/abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
