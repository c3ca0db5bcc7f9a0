package handlers

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/pharmacy_portal/internal/auth"
	"github.com/Skotchmaster/pharmacy_portal/internal/models"
	"github.com/Skotchmaster/pharmacy_portal/internal/util"
	"github.com/Skotchmaster/pharmacy_portal/internal/validate"
	"github.com/Skotchmaster/pharmacy_portal/internal/view"
)

type userList struct {
	Filters models.UserFilters
	Items   []models.UserProfile
	Pager   view.Pager
}

type userView struct {
	Profile *models.UserProfile
}

type userForm struct {
	Action   string
	WithRole bool
	Profile  models.UserProfile
}

func (h *Handler) ListUsers(c echo.Context) error {
	a, err := api(c)
	if err != nil {
		return err
	}
	f := models.UserFilters{
		Search: c.QueryParam("search"),
		Role:   c.QueryParam("role"),
		Page:   pageParam(c),
	}
	list, err := a.Users.List(c.Request().Context(), f)
	if err != nil {
		return fail(c, err, "users", page(c, "Users", userList{Filters: f}))
	}
	meta := util.Calculate(f.Page, list.Count, util.DefaultPageSize, list.Next, list.Previous)
	return c.Render(http.StatusOK, "users", page(c, "Users", userList{
		Filters: f,
		Items:   list.Results,
		Pager:   view.NewPager(meta, "/dashboard/users", keepQuery(c)),
	}))
}

func (h *Handler) ShowUser(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	a, err := api(c)
	if err != nil {
		return err
	}
	u, err := a.Users.Get(c.Request().Context(), id)
	if err != nil {
		return fail(c, err, "error", page(c, "User not available", nil))
	}
	return c.Render(http.StatusOK, "user", page(c, u.FullName(), userView{Profile: u}))
}

func (h *Handler) EditUser(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	a, err := api(c)
	if err != nil {
		return err
	}
	u, err := a.Users.Get(c.Request().Context(), id)
	if err != nil {
		return fail(c, err, "error", page(c, "User not available", nil))
	}
	return c.Render(http.StatusOK, "user_form", page(c, "Edit user", userForm{
		Action:   fmt.Sprintf("/dashboard/users/%d/edit", id),
		WithRole: true,
		Profile:  *u,
	}))
}

func (h *Handler) UpdateUser(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	a, err := api(c)
	if err != nil {
		return err
	}
	var in models.UserUpdate
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid form")
	}
	form := userForm{Action: fmt.Sprintf("/dashboard/users/%d/edit", id), WithRole: true, Profile: profileFrom(in)}
	if errs := validate.Struct(in); len(errs) > 0 {
		return invalid(c, validate.First(errs), "user_form", page(c, "Edit user", form))
	}

	ctx := c.Request().Context()
	u, err := a.Users.Update(ctx, id, in)
	if err != nil {
		return fail(c, err, "user_form", page(c, "Edit user", form))
	}
	if me := auth.CurrentUser(c); me != nil && me.ID == u.ID {
		r, err := session(c)
		if err != nil {
			return err
		}
		if err := r.Manager.RefreshProfile(ctx, *u); err != nil {
			return err
		}
	}
	return c.Redirect(http.StatusSeeOther, fmt.Sprintf("/dashboard/users/%d", id))
}

func (h *Handler) Profile(c echo.Context) error {
	a, err := api(c)
	if err != nil {
		return err
	}
	u, err := a.Users.Current(c.Request().Context())
	if err != nil {
		return fail(c, err, "error", page(c, "Profile not available", nil))
	}
	return c.Render(http.StatusOK, "profile", page(c, "My profile", userView{Profile: u}))
}

func (h *Handler) EditProfile(c echo.Context) error {
	a, err := api(c)
	if err != nil {
		return err
	}
	u, err := a.Users.Current(c.Request().Context())
	if err != nil {
		return fail(c, err, "error", page(c, "Profile not available", nil))
	}
	return c.Render(http.StatusOK, "user_form", page(c, "Edit profile", userForm{
		Action:  "/dashboard/profile/edit",
		Profile: *u,
	}))
}

// UpdateProfile saves the current user's profile and writes the result
// through both session sinks so the next navigation sees it.
func (h *Handler) UpdateProfile(c echo.Context) error {
	r, err := session(c)
	if err != nil {
		return err
	}
	a, err := api(c)
	if err != nil {
		return err
	}
	var in models.UserUpdate
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid form")
	}
	in.Role = ""
	form := userForm{Action: "/dashboard/profile/edit", Profile: profileFrom(in)}
	if errs := validate.Struct(in); len(errs) > 0 {
		return invalid(c, validate.First(errs), "user_form", page(c, "Edit profile", form))
	}

	ctx := c.Request().Context()
	u, err := a.Users.UpdateCurrent(ctx, in)
	if err != nil {
		return fail(c, err, "user_form", page(c, "Edit profile", form))
	}
	if err := r.Manager.RefreshProfile(ctx, *u); err != nil {
		return err
	}
	return c.Redirect(http.StatusSeeOther, "/dashboard/profile")
}

func profileFrom(in models.UserUpdate) models.UserProfile {
	return models.UserProfile{
		Email:       in.Email,
		FirstName:   in.FirstName,
		LastName:    in.LastName,
		PhoneNumber: in.PhoneNumber,
		Address:     in.Address,
		Role:        in.Role,
	}
}
