package handlers

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/pharmacy_portal/internal/logging"
	"github.com/Skotchmaster/pharmacy_portal/internal/models"
	"github.com/Skotchmaster/pharmacy_portal/internal/util"
	"github.com/Skotchmaster/pharmacy_portal/internal/validate"
	"github.com/Skotchmaster/pharmacy_portal/internal/view"
)

type medicineList struct {
	Filters models.MedicineFilters
	Items   []models.Medicine
	Pager   view.Pager
}

type medicineView struct {
	Medicine *models.Medicine
}

type medicineForm struct {
	Action   string
	Edit     bool
	Medicine models.Medicine
}

func medicineFilters(c echo.Context) models.MedicineFilters {
	return models.MedicineFilters{
		Search:               c.QueryParam("search"),
		RequiresPrescription: optBool(c, "requires_prescription"),
		FDAApproved:          optBool(c, "fda_approved"),
		Manufacturer:         c.QueryParam("manufacturer"),
		DosageForm:           c.QueryParam("dosage_form"),
		Page:                 pageParam(c),
	}
}

// keepQuery carries the request filters into pagination links.
func keepQuery(c echo.Context) url.Values {
	q := url.Values{}
	for k, v := range c.QueryParams() {
		if k != "page" {
			q[k] = v
		}
	}
	return q
}

func (h *Handler) ListMedicines(c echo.Context) error {
	a, err := api(c)
	if err != nil {
		return err
	}
	f := medicineFilters(c)
	list, err := a.Medicines.List(c.Request().Context(), f)
	if err != nil {
		return fail(c, err, "medicines", page(c, "Medicines", medicineList{Filters: f}))
	}
	meta := util.Calculate(f.Page, list.Count, util.DefaultPageSize, list.Next, list.Previous)
	return c.Render(http.StatusOK, "medicines", page(c, "Medicines", medicineList{
		Filters: f,
		Items:   list.Results,
		Pager:   view.NewPager(meta, "/dashboard/medicines", keepQuery(c)),
	}))
}

func (h *Handler) ShowMedicine(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	a, err := api(c)
	if err != nil {
		return err
	}
	m, err := a.Medicines.Get(c.Request().Context(), id)
	if err != nil {
		return fail(c, err, "error", page(c, "Medicine not available", nil))
	}
	return c.Render(http.StatusOK, "medicine", page(c, m.Name, medicineView{Medicine: m}))
}

func (h *Handler) NewMedicine(c echo.Context) error {
	return c.Render(http.StatusOK, "medicine_form", page(c, "New medicine", medicineForm{
		Action: "/dashboard/medicines/new",
	}))
}

func (h *Handler) CreateMedicine(c echo.Context) error {
	a, err := api(c)
	if err != nil {
		return err
	}
	var in models.Medicine
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid form")
	}
	form := medicineForm{Action: "/dashboard/medicines/new", Medicine: in}
	if errs := validate.Struct(in); len(errs) > 0 {
		return invalid(c, validate.First(errs), "medicine_form", page(c, "New medicine", form))
	}

	m, err := a.Medicines.Create(c.Request().Context(), in)
	if err != nil {
		return fail(c, err, "medicine_form", page(c, "New medicine", form))
	}
	h.indexMedicine(c, *m)
	return c.Redirect(http.StatusSeeOther, fmt.Sprintf("/dashboard/medicines/%d", m.ID))
}

func (h *Handler) EditMedicine(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	a, err := api(c)
	if err != nil {
		return err
	}
	m, err := a.Medicines.Get(c.Request().Context(), id)
	if err != nil {
		return fail(c, err, "error", page(c, "Medicine not available", nil))
	}
	return c.Render(http.StatusOK, "medicine_form", page(c, "Edit medicine", medicineForm{
		Action:   fmt.Sprintf("/dashboard/medicines/%d/edit", id),
		Edit:     true,
		Medicine: *m,
	}))
}

func (h *Handler) UpdateMedicine(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	a, err := api(c)
	if err != nil {
		return err
	}
	var in models.Medicine
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid form")
	}
	in.ID = id
	form := medicineForm{Action: fmt.Sprintf("/dashboard/medicines/%d/edit", id), Edit: true, Medicine: in}
	if errs := validate.Struct(in); len(errs) > 0 {
		return invalid(c, validate.First(errs), "medicine_form", page(c, "Edit medicine", form))
	}

	m, err := a.Medicines.Update(c.Request().Context(), id, in)
	if err != nil {
		return fail(c, err, "medicine_form", page(c, "Edit medicine", form))
	}
	h.indexMedicine(c, *m)
	return c.Redirect(http.StatusSeeOther, fmt.Sprintf("/dashboard/medicines/%d", id))
}

func (h *Handler) DeleteMedicine(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	a, err := api(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	if err := a.Medicines.Delete(ctx, id); err != nil {
		return fail(c, err, "error", page(c, "Medicine could not be deleted", nil))
	}
	if h.Index != nil {
		if err := h.Index.Delete(ctx, id); err != nil {
			logging.FromContext(ctx).Warn("search_index_failed", "op", "delete", "medicine_id", id, "error", err)
		}
	}
	return c.Redirect(http.StatusSeeOther, "/dashboard/medicines")
}

// indexMedicine keeps the storefront index current. The backend stays the
// source of truth, so a failure is only logged.
func (h *Handler) indexMedicine(c echo.Context, m models.Medicine) {
	if h.Index == nil {
		return
	}
	ctx := c.Request().Context()
	if err := h.Index.Put(ctx, m); err != nil {
		logging.FromContext(ctx).Warn("search_index_failed", "op", "put", "medicine_id", m.ID, "error", err)
	}
}
