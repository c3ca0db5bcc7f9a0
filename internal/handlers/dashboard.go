package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/pharmacy_portal/internal/models"
)

type dashboardData struct {
	InventoryCount int
	LowStock       int
}

type adminData struct {
	Sales  *models.SalesDashboard
	Alerts int
}

func (h *Handler) Dashboard(c echo.Context) error {
	a, err := api(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()

	inv, err := a.Inventory.List(ctx, models.InventoryFilters{})
	if err != nil {
		return fail(c, err, "dashboard", page(c, "Dashboard", dashboardData{}))
	}
	alerts, err := a.Inventory.Alerts(ctx)
	if err != nil {
		return fail(c, err, "dashboard", page(c, "Dashboard", dashboardData{InventoryCount: inv.Count}))
	}
	return c.Render(http.StatusOK, "dashboard", page(c, "Dashboard", dashboardData{
		InventoryCount: inv.Count,
		LowStock:       len(alerts),
	}))
}

func (h *Handler) AdminDashboard(c echo.Context) error {
	a, err := api(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()

	sales, err := a.Reports.Dashboard(ctx)
	if err != nil {
		return fail(c, err, "admin", page(c, "Admin", adminData{}))
	}
	alerts, err := a.Inventory.Alerts(ctx)
	if err != nil {
		return fail(c, err, "admin", page(c, "Admin", adminData{Sales: sales}))
	}
	return c.Render(http.StatusOK, "admin", page(c, "Admin", adminData{Sales: sales, Alerts: len(alerts)}))
}
