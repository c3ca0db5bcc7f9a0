package resources

import (
	"context"
	"net/http"

	"github.com/Skotchmaster/pharmacy_portal/internal/apiclient"
	"github.com/Skotchmaster/pharmacy_portal/internal/models"
)

const inventoryPath = "/inventory/"

type Inventory struct {
	d apiclient.Doer
}

func (i *Inventory) List(ctx context.Context, f models.InventoryFilters) (*models.ListResponse[models.Inventory], error) {
	return get[models.ListResponse[models.Inventory]](ctx, i.d, inventoryPath, f)
}

func (i *Inventory) LowStock(ctx context.Context) (*models.ListResponse[models.Inventory], error) {
	return get[models.ListResponse[models.Inventory]](ctx, i.d, inventoryPath+"low_stock/", nil)
}

func (i *Inventory) Get(ctx context.Context, id int64) (*models.Inventory, error) {
	return get[models.Inventory](ctx, i.d, item(inventoryPath, id), nil)
}

func (i *Inventory) Create(ctx context.Context, in models.InventoryInput) error {
	return i.d.Do(ctx, apiclient.Request{Method: http.MethodPost, Path: inventoryPath, Body: in}, nil)
}

func (i *Inventory) Update(ctx context.Context, id int64, in models.InventoryInput) error {
	return i.d.Do(ctx, apiclient.Request{Method: http.MethodPut, Path: item(inventoryPath, id), Body: in}, nil)
}

func (i *Inventory) Delete(ctx context.Context, id int64) error {
	return remove(ctx, i.d, item(inventoryPath, id))
}

// AdjustStock adds a signed quantity to the stock level of an item.
func (i *Inventory) AdjustStock(ctx context.Context, id int64, adj models.StockAdjustment) error {
	return i.d.Do(ctx, apiclient.Request{
		Method: http.MethodPost,
		Path:   item(inventoryPath, id) + "adjust_stock/",
		Body:   adj,
	}, nil)
}

// Alerts derives low stock alerts, most severe first.
func (i *Inventory) Alerts(ctx context.Context) ([]models.Alert, error) {
	low, err := i.LowStock(ctx)
	if err != nil {
		return nil, err
	}
	var high, medium []models.Alert
	for _, it := range low.Results {
		a, ok := models.AlertFromInventory(it)
		if !ok {
			continue
		}
		if a.Severity == models.SeverityHigh {
			high = append(high, a)
		} else {
			medium = append(medium, a)
		}
	}
	return append(high, medium...), nil
}
