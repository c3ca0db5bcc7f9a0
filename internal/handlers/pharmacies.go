package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/pharmacy_portal/internal/models"
	"github.com/Skotchmaster/pharmacy_portal/internal/util"
	"github.com/Skotchmaster/pharmacy_portal/internal/validate"
	"github.com/Skotchmaster/pharmacy_portal/internal/view"
)

type pharmacyList struct {
	Filters models.PharmacyFilters
	Items   []models.Pharmacy
	Pager   view.Pager
}

type pharmacyView struct {
	Pharmacy *models.Pharmacy
}

type pharmacyForm struct {
	Action string
	Edit   bool
	Input  models.PharmacyInput
}

type staffData struct {
	Pharmacy  *models.Pharmacy
	Available []models.UserProfile
}

func (h *Handler) ListPharmacies(c echo.Context) error {
	a, err := api(c)
	if err != nil {
		return err
	}
	f := models.PharmacyFilters{
		Search:   c.QueryParam("search"),
		IsActive: optBool(c, "is_active"),
		Page:     pageParam(c),
	}
	list, err := a.Pharmacies.List(c.Request().Context(), f)
	if err != nil {
		return fail(c, err, "pharmacies", page(c, "Pharmacies", pharmacyList{Filters: f}))
	}
	meta := util.Calculate(f.Page, list.Count, util.DefaultPageSize, list.Next, list.Previous)
	return c.Render(http.StatusOK, "pharmacies", page(c, "Pharmacies", pharmacyList{
		Filters: f,
		Items:   list.Results,
		Pager:   view.NewPager(meta, "/dashboard/pharmacies", keepQuery(c)),
	}))
}

func (h *Handler) ShowPharmacy(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	a, err := api(c)
	if err != nil {
		return err
	}
	ph, err := a.Pharmacies.Get(c.Request().Context(), id)
	if err != nil {
		return fail(c, err, "error", page(c, "Pharmacy not available", nil))
	}
	return c.Render(http.StatusOK, "pharmacy", page(c, ph.Name, pharmacyView{Pharmacy: ph}))
}

func (h *Handler) NewPharmacy(c echo.Context) error {
	return c.Render(http.StatusOK, "pharmacy_form", page(c, "New pharmacy", pharmacyForm{
		Action: "/dashboard/pharmacies/new",
		Input:  models.PharmacyInput{IsActive: true},
	}))
}

func (h *Handler) CreatePharmacy(c echo.Context) error {
	a, err := api(c)
	if err != nil {
		return err
	}
	var in models.PharmacyInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid form")
	}
	form := pharmacyForm{Action: "/dashboard/pharmacies/new", Input: in}
	if errs := validate.Struct(in); len(errs) > 0 {
		return invalid(c, validate.First(errs), "pharmacy_form", page(c, "New pharmacy", form))
	}
	ph, err := a.Pharmacies.Create(c.Request().Context(), in)
	if err != nil {
		return fail(c, err, "pharmacy_form", page(c, "New pharmacy", form))
	}
	return c.Redirect(http.StatusSeeOther, fmt.Sprintf("/dashboard/pharmacies/%d", ph.ID))
}

func (h *Handler) EditPharmacy(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	a, err := api(c)
	if err != nil {
		return err
	}
	ph, err := a.Pharmacies.Get(c.Request().Context(), id)
	if err != nil {
		return fail(c, err, "error", page(c, "Pharmacy not available", nil))
	}
	return c.Render(http.StatusOK, "pharmacy_form", page(c, "Edit pharmacy", pharmacyForm{
		Action: fmt.Sprintf("/dashboard/pharmacies/%d/edit", id),
		Edit:   true,
		Input: models.PharmacyInput{
			Name:         ph.Name,
			Address:      ph.Address,
			ContactPhone: ph.ContactPhone,
			ContactEmail: ph.ContactEmail,
			IsActive:     ph.IsActive,
		},
	}))
}

func (h *Handler) UpdatePharmacy(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	a, err := api(c)
	if err != nil {
		return err
	}
	var in models.PharmacyInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid form")
	}
	form := pharmacyForm{Action: fmt.Sprintf("/dashboard/pharmacies/%d/edit", id), Edit: true, Input: in}
	if errs := validate.Struct(in); len(errs) > 0 {
		return invalid(c, validate.First(errs), "pharmacy_form", page(c, "Edit pharmacy", form))
	}
	if _, err := a.Pharmacies.Update(c.Request().Context(), id, in); err != nil {
		return fail(c, err, "pharmacy_form", page(c, "Edit pharmacy", form))
	}
	return c.Redirect(http.StatusSeeOther, fmt.Sprintf("/dashboard/pharmacies/%d", id))
}

func (h *Handler) DeletePharmacy(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	a, err := api(c)
	if err != nil {
		return err
	}
	if err := a.Pharmacies.Delete(c.Request().Context(), id); err != nil {
		return fail(c, err, "error", page(c, "Pharmacy could not be deleted", nil))
	}
	return c.Redirect(http.StatusSeeOther, "/dashboard/pharmacies")
}

// Staff lists the pharmacy's staff together with staff members not yet
// assigned to it.
func (h *Handler) Staff(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	data, err := h.staffData(c, id)
	if err != nil {
		return fail(c, err, "error", page(c, "Pharmacy not available", nil))
	}
	return c.Render(http.StatusOK, "staff", page(c, "Staff", data))
}

func (h *Handler) staffData(c echo.Context, id int64) (staffData, error) {
	a, err := api(c)
	if err != nil {
		return staffData{}, err
	}
	ctx := c.Request().Context()
	ph, err := a.Pharmacies.Get(ctx, id)
	if err != nil {
		return staffData{}, err
	}
	users, err := a.Users.List(ctx, models.UserFilters{Role: string(models.RolePharmacyStaff)})
	if err != nil {
		return staffData{}, err
	}
	assigned := make(map[int64]bool, len(ph.Staff))
	for _, s := range ph.Staff {
		assigned[s.ID] = true
	}
	var available []models.UserProfile
	for _, u := range users.Results {
		if !assigned[u.ID] {
			available = append(available, u)
		}
	}
	return staffData{Pharmacy: ph, Available: available}, nil
}

func (h *Handler) AddStaff(c echo.Context) error {
	return h.changeStaff(c, true)
}

func (h *Handler) RemoveStaff(c echo.Context) error {
	return h.changeStaff(c, false)
}

func (h *Handler) changeStaff(c echo.Context, add bool) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	a, err := api(c)
	if err != nil {
		return err
	}
	userID, err := strconv.ParseInt(c.FormValue("user_id"), 10, 64)
	if err != nil || userID <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid user_id")
	}
	m := models.StaffMembership{UserID: userID}

	ctx := c.Request().Context()
	if add {
		_, err = a.Pharmacies.AddStaff(ctx, id, m)
	} else {
		_, err = a.Pharmacies.RemoveStaff(ctx, id, m)
	}
	if err != nil {
		data, derr := h.staffData(c, id)
		if derr != nil {
			return fail(c, err, "error", page(c, "Staff could not be changed", nil))
		}
		return fail(c, err, "staff", page(c, "Staff", data))
	}
	return c.Redirect(http.StatusSeeOther, fmt.Sprintf("/dashboard/pharmacies/%d/staff", id))
}
