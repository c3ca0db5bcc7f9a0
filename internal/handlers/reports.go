package handlers

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/pharmacy_portal/internal/models"
)

type reportsData struct {
	Params    models.ReportParams
	Dashboard *models.SalesDashboard
	ByType    []models.SalesByType
	Daily     []models.DailySalesReport
	Products  []models.ProductSalesReport
}

func (h *Handler) Reports(c echo.Context) error {
	a, err := api(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()

	params := models.ReportParams{
		StartDate: c.QueryParam("start_date"),
		EndDate:   c.QueryParam("end_date"),
	}
	if v := c.QueryParam("pharmacy_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id < 0 {
			return invalid(c, "The field 'pharmacy_id' must be a number.", "reports", page(c, "Reports", reportsData{Params: params}))
		}
		params.PharmacyID = id
	}

	data := reportsData{Params: params}
	if data.Dashboard, err = a.Reports.Dashboard(ctx); err != nil {
		return fail(c, err, "reports", page(c, "Reports", data))
	}
	if data.ByType, err = a.Reports.SalesByType(ctx, params); err != nil {
		return fail(c, err, "reports", page(c, "Reports", data))
	}
	if data.Daily, err = a.Reports.DailySales(ctx, params); err != nil {
		return fail(c, err, "reports", page(c, "Reports", data))
	}
	if data.Products, err = a.Reports.ProductSales(ctx, params); err != nil {
		return fail(c, err, "reports", page(c, "Reports", data))
	}
	return c.Render(http.StatusOK, "reports", page(c, "Reports", data))
}
