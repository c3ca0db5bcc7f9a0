package handlers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/pharmacy_portal/internal/models"
	"github.com/Skotchmaster/pharmacy_portal/internal/resources"
	"github.com/Skotchmaster/pharmacy_portal/internal/util"
	"github.com/Skotchmaster/pharmacy_portal/internal/validate"
	"github.com/Skotchmaster/pharmacy_portal/internal/view"
)

type inventoryList struct {
	LowOnly bool
	Items   []models.Inventory
	Pager   view.Pager
}

type inventoryForm struct {
	Action       string
	DeleteAction string
	Edit         bool
	Input        models.InventoryInput
	Medicines    []models.Medicine
}

type adjustData struct {
	Item *models.Inventory
}

type alertsData struct {
	Alerts []models.Alert
}

func (h *Handler) ListInventory(c echo.Context) error {
	a, err := api(c)
	if err != nil {
		return err
	}
	f := models.InventoryFilters{
		LowStock: optBool(c, "low_stock"),
		Page:     pageParam(c),
	}
	lowOnly := f.LowStock != nil && *f.LowStock
	list, err := a.Inventory.List(c.Request().Context(), f)
	if err != nil {
		return fail(c, err, "inventory", page(c, "Inventory", inventoryList{LowOnly: lowOnly}))
	}
	meta := util.Calculate(f.Page, list.Count, util.DefaultPageSize, list.Next, list.Previous)
	return c.Render(http.StatusOK, "inventory", page(c, "Inventory", inventoryList{
		LowOnly: lowOnly,
		Items:   list.Results,
		Pager:   view.NewPager(meta, "/dashboard/inventory", keepQuery(c)),
	}))
}

// medicineChoices loads the first page of medicines for the item form.
func medicineChoices(ctx context.Context, a *resources.API) []models.Medicine {
	list, err := a.Medicines.List(ctx, models.MedicineFilters{})
	if err != nil {
		return nil
	}
	return list.Results
}

func (h *Handler) NewInventory(c echo.Context) error {
	a, err := api(c)
	if err != nil {
		return err
	}
	return c.Render(http.StatusOK, "inventory_form", page(c, "New inventory item", inventoryForm{
		Action:    "/dashboard/inventory/new",
		Medicines: medicineChoices(c.Request().Context(), a),
	}))
}

func (h *Handler) CreateInventory(c echo.Context) error {
	a, err := api(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	var in models.InventoryInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid form")
	}
	form := inventoryForm{Action: "/dashboard/inventory/new", Input: in}
	if errs := validate.Struct(in); len(errs) > 0 {
		form.Medicines = medicineChoices(ctx, a)
		return invalid(c, validate.First(errs), "inventory_form", page(c, "New inventory item", form))
	}
	if err := a.Inventory.Create(ctx, in); err != nil {
		form.Medicines = medicineChoices(ctx, a)
		return fail(c, err, "inventory_form", page(c, "New inventory item", form))
	}
	return c.Redirect(http.StatusSeeOther, "/dashboard/inventory")
}

func (h *Handler) EditInventory(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	a, err := api(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	it, err := a.Inventory.Get(ctx, id)
	if err != nil {
		return fail(c, err, "error", page(c, "Inventory item not available", nil))
	}
	return c.Render(http.StatusOK, "inventory_form", page(c, "Edit inventory item", inventoryForm{
		Action:       fmt.Sprintf("/dashboard/inventory/%d/edit", id),
		DeleteAction: fmt.Sprintf("/dashboard/inventory/%d/delete", id),
		Edit:         true,
		Input: models.InventoryInput{
			Medicine:      it.Medicine.ID,
			UnitPrice:     it.UnitPrice,
			CostPrice:     it.CostPrice,
			Quantity:      it.Quantity,
			MinStockLevel: it.MinStockLevel,
		},
		Medicines: medicineChoices(ctx, a),
	}))
}

func (h *Handler) UpdateInventory(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	a, err := api(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	var in models.InventoryInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid form")
	}
	form := inventoryForm{
		Action:       fmt.Sprintf("/dashboard/inventory/%d/edit", id),
		DeleteAction: fmt.Sprintf("/dashboard/inventory/%d/delete", id),
		Edit:         true,
		Input:        in,
	}
	if errs := validate.Struct(in); len(errs) > 0 {
		form.Medicines = medicineChoices(ctx, a)
		return invalid(c, validate.First(errs), "inventory_form", page(c, "Edit inventory item", form))
	}
	if err := a.Inventory.Update(ctx, id, in); err != nil {
		form.Medicines = medicineChoices(ctx, a)
		return fail(c, err, "inventory_form", page(c, "Edit inventory item", form))
	}
	return c.Redirect(http.StatusSeeOther, "/dashboard/inventory")
}

func (h *Handler) DeleteInventory(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	a, err := api(c)
	if err != nil {
		return err
	}
	if err := a.Inventory.Delete(c.Request().Context(), id); err != nil {
		return fail(c, err, "error", page(c, "Inventory item could not be deleted", nil))
	}
	return c.Redirect(http.StatusSeeOther, "/dashboard/inventory")
}

func (h *Handler) AdjustForm(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	a, err := api(c)
	if err != nil {
		return err
	}
	it, err := a.Inventory.Get(c.Request().Context(), id)
	if err != nil {
		return fail(c, err, "error", page(c, "Inventory item not available", nil))
	}
	return c.Render(http.StatusOK, "inventory_adjust", page(c, "Adjust stock", adjustData{Item: it}))
}

func (h *Handler) AdjustStock(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	a, err := api(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	var adj models.StockAdjustment
	if err := c.Bind(&adj); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid form")
	}

	if errs := validate.Struct(adj); len(errs) > 0 {
		it, gerr := a.Inventory.Get(ctx, id)
		if gerr != nil {
			return fail(c, gerr, "error", page(c, "Inventory item not available", nil))
		}
		return invalid(c, validate.First(errs), "inventory_adjust", page(c, "Adjust stock", adjustData{Item: it}))
	}
	if err := a.Inventory.AdjustStock(ctx, id, adj); err != nil {
		it, gerr := a.Inventory.Get(ctx, id)
		if gerr != nil {
			return fail(c, err, "error", page(c, "Stock could not be adjusted", nil))
		}
		return fail(c, err, "inventory_adjust", page(c, "Adjust stock", adjustData{Item: it}))
	}
	return c.Redirect(http.StatusSeeOther, "/dashboard/inventory")
}

func (h *Handler) Alerts(c echo.Context) error {
	a, err := api(c)
	if err != nil {
		return err
	}
	alerts, err := a.Inventory.Alerts(c.Request().Context())
	if err != nil {
		return fail(c, err, "alerts", page(c, "Alerts", alertsData{}))
	}
	return c.Render(http.StatusOK, "alerts", page(c, "Alerts", alertsData{Alerts: alerts}))
}
