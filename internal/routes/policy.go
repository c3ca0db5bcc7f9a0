// Package routes holds the role based navigation policy shared by the page
// guard and the edge middleware.
package routes

import (
	"net/url"
	"slices"
	"strings"

	"github.com/Skotchmaster/pharmacy_portal/internal/models"
)

const (
	LoginPath          = "/auth/login"
	RegisterPath       = "/auth/register"
	ForgotPasswordPath = "/auth/forgot-password"
	LogoutPath         = "/auth/logout"

	CallbackParam = "callbackUrl"
)

var PublicRoutes = []string{LoginPath, RegisterPath, ForgotPasswordPath}

// RoleRoutes lists the route prefixes each role may visit. The first entry is
// where the role lands by default.
var RoleRoutes = map[models.Role][]string{
	models.RoleAdmin:         {"/dashboard/admin", "/dashboard", "/"},
	models.RolePharmacyStaff: {"/dashboard", "/"},
	models.RoleCustomer:      {"/"},
}

type restriction struct {
	prefix string
	roles  []models.Role
}

// Most specific prefix first.
var restricted = []restriction{
	{prefix: "/dashboard/admin", roles: []models.Role{models.RoleAdmin}},
	{prefix: "/dashboard", roles: []models.Role{models.RoleAdmin, models.RolePharmacyStaff}},
}

func clean(path string) string {
	if path == "" {
		return "/"
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
		if path == "" {
			return "/"
		}
	}
	return path
}

// HasPrefix matches whole path segments: /dashboard covers /dashboard/x but
// not /dashboardx. "/" covers every path.
func HasPrefix(path, prefix string) bool {
	path, prefix = clean(path), clean(prefix)
	if prefix == "/" {
		return strings.HasPrefix(path, "/")
	}
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}

func IsPublic(path string) bool {
	return slices.Contains(PublicRoutes, clean(path))
}

func DefaultRoute(role models.Role) string {
	if r, ok := RoleRoutes[role]; ok && len(r) > 0 {
		return r[0]
	}
	return "/"
}

// Allowed reports whether role may visit path: one of its prefixes must match
// and every restricted area containing path must admit it.
func Allowed(role models.Role, path string) bool {
	ok := false
	for _, p := range RoleRoutes[role] {
		if HasPrefix(path, p) {
			ok = true
			break
		}
	}
	if !ok {
		return false
	}
	for _, r := range restricted {
		if HasPrefix(path, r.prefix) && !slices.Contains(r.roles, role) {
			return false
		}
	}
	return true
}

// LoginURL is the login page carrying path as the post-login destination.
func LoginURL(path string) string {
	return LoginPath + "?" + CallbackParam + "=" + url.QueryEscape(path)
}

// Decide returns where a request for path must be redirected, or "" when it
// may proceed. user is nil for anonymous requests.
func Decide(path string, user *models.UserProfile) string {
	public := IsPublic(path)
	switch {
	case public && user != nil:
		return DefaultRoute(user.Role)
	case public:
		return ""
	case user == nil:
		return LoginURL(path)
	case !Allowed(user.Role, path):
		return DefaultRoute(user.Role)
	}
	return ""
}

// SafeCallback returns a local post-login destination taken from raw, or ""
// when raw is empty, points off-site or back at the login page.
func SafeCallback(raw string) string {
	if raw == "" {
		return ""
	}
	if dec, err := url.QueryUnescape(raw); err == nil {
		raw = dec
	}
	if !strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "//") || strings.Contains(raw, `\`) {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host != "" || clean(u.Path) == LoginPath {
		return ""
	}
	return raw
}
