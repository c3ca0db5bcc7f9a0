package resources

import (
	"context"

	"github.com/Skotchmaster/pharmacy_portal/internal/apiclient"
	"github.com/Skotchmaster/pharmacy_portal/internal/models"
)

type Reports struct {
	d apiclient.Doer
}

func (r *Reports) Dashboard(ctx context.Context) (*models.SalesDashboard, error) {
	return get[models.SalesDashboard](ctx, r.d, "/sales/dashboard/", nil)
}

func (r *Reports) SalesByType(ctx context.Context, p models.ReportParams) ([]models.SalesByType, error) {
	out, err := get[[]models.SalesByType](ctx, r.d, "/sales/sales_by_type/", p)
	if err != nil {
		return nil, err
	}
	return *out, nil
}

func (r *Reports) DailySales(ctx context.Context, p models.ReportParams) ([]models.DailySalesReport, error) {
	out, err := get[[]models.DailySalesReport](ctx, r.d, "/daily-sales-reports/", p)
	if err != nil {
		return nil, err
	}
	return *out, nil
}

func (r *Reports) ProductSales(ctx context.Context, p models.ReportParams) ([]models.ProductSalesReport, error) {
	out, err := get[[]models.ProductSalesReport](ctx, r.d, "/product-sales-reports/", p)
	if err != nil {
		return nil, err
	}
	return *out, nil
}
