package handlers

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/pharmacy_portal/internal/models"
	"github.com/Skotchmaster/pharmacy_portal/internal/service/search"
	"github.com/Skotchmaster/pharmacy_portal/internal/view"
)

type catalogData struct {
	Query string
	Items []models.Medicine
	Pager view.Pager
}

func (h *Handler) catalog(c echo.Context) (search.Catalog, error) {
	if h.Catalog != nil {
		return h.Catalog, nil
	}
	a, err := api(c)
	if err != nil {
		return nil, err
	}
	return search.Backend{Medicines: a.Medicines}, nil
}

// Storefront lists and searches the medicine catalog.
func (h *Handler) Storefront(c echo.Context) error {
	q := strings.TrimSpace(c.QueryParam("q"))
	pg := pageParam(c)

	cat, err := h.catalog(c)
	if err != nil {
		return err
	}
	res, err := cat.Find(c.Request().Context(), q, pg)
	if err != nil {
		return fail(c, err, "catalog", page(c, "Catalog", catalogData{Query: q}))
	}

	keep := url.Values{}
	if q != "" {
		keep.Set("q", q)
	}
	return c.Render(http.StatusOK, "catalog", page(c, "Catalog", catalogData{
		Query: q,
		Items: res.Items,
		Pager: view.NewPager(res.Page, "/", keep),
	}))
}
