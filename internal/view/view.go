// Package view renders the portal pages from embedded html templates.
package view

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"net/url"
	"path"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/pharmacy_portal/internal/models"
	"github.com/Skotchmaster/pharmacy_portal/internal/util"
)

//go:embed templates
var templates embed.FS

// Page is the data every template receives.
type Page struct {
	Title string
	Path  string
	User  *models.UserProfile
	CSRF  string
	Error string
	Flash string
	Data  any
}

// Pager links the previous and next pages of a list screen.
type Pager struct {
	util.Page
	PrevURL string
	NextURL string
}

// NewPager keeps the current filters in the page links.
func NewPager(p util.Page, base string, q url.Values) Pager {
	link := func(n int) string {
		v := url.Values{}
		for k, vals := range q {
			v[k] = vals
		}
		v.Set("page", strconv.Itoa(n))
		return base + "?" + v.Encode()
	}
	pg := Pager{Page: p}
	if p.HasPrev {
		pg.PrevURL = link(p.Prev())
	}
	if p.HasNext {
		pg.NextURL = link(p.Next())
	}
	return pg
}

var funcs = template.FuncMap{
	"money": func(v float64) string { return fmt.Sprintf("$%.2f", v) },
	"role":  func(r models.Role) string { return r.Label() },
	"yesno": func(b bool) string {
		if b {
			return "Yes"
		}
		return "No"
	},
	"isAdmin": func(u *models.UserProfile) bool { return u != nil && u.Role == models.RoleAdmin },
	"isStaff": func(u *models.UserProfile) bool {
		return u != nil && (u.Role == models.RoleAdmin || u.Role == models.RolePharmacyStaff)
	},
	"deref": func(p *int64) int64 {
		if p == nil {
			return 0
		}
		return *p
	},
	"roles": func() []models.Role {
		return []models.Role{models.RoleAdmin, models.RolePharmacyStaff, models.RoleCustomer}
	},
}

// Renderer implements echo.Renderer. Each page is parsed together with the
// shared layout.
type Renderer struct {
	pages map[string]*template.Template
}

func New() (*Renderer, error) {
	layout, err := template.New("layout").Funcs(funcs).ParseFS(templates, "templates/layout.html")
	if err != nil {
		return nil, fmt.Errorf("parse layout: %w", err)
	}
	files, err := fs.Glob(templates, "templates/*.html")
	if err != nil {
		return nil, err
	}
	r := &Renderer{pages: map[string]*template.Template{}}
	for _, f := range files {
		name := strings.TrimSuffix(path.Base(f), ".html")
		if name == "layout" {
			continue
		}
		t, err := template.Must(layout.Clone()).ParseFS(templates, f)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		r.pages[name] = t
	}
	return r, nil
}

func (r *Renderer) Render(w io.Writer, name string, data any, _ echo.Context) error {
	t, ok := r.pages[name]
	if !ok {
		return fmt.Errorf("view: unknown page %q", name)
	}
	return t.ExecuteTemplate(w, "layout", data)
}

// Has reports whether a page template exists.
func (r *Renderer) Has(name string) bool {
	_, ok := r.pages[name]
	return ok
}
