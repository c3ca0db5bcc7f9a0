package resources

import (
	"context"
	"net/http"

	"github.com/Skotchmaster/pharmacy_portal/internal/apiclient"
	"github.com/Skotchmaster/pharmacy_portal/internal/models"
)

const pharmaciesPath = "/pharmacies/"

type Pharmacies struct {
	d apiclient.Doer
}

func (p *Pharmacies) List(ctx context.Context, f models.PharmacyFilters) (*models.ListResponse[models.Pharmacy], error) {
	return get[models.ListResponse[models.Pharmacy]](ctx, p.d, pharmaciesPath, f)
}

func (p *Pharmacies) Get(ctx context.Context, id int64) (*models.Pharmacy, error) {
	return get[models.Pharmacy](ctx, p.d, item(pharmaciesPath, id), nil)
}

func (p *Pharmacies) Create(ctx context.Context, in models.PharmacyInput) (*models.Pharmacy, error) {
	return send[models.Pharmacy](ctx, p.d, http.MethodPost, pharmaciesPath, in)
}

func (p *Pharmacies) Update(ctx context.Context, id int64, in models.PharmacyInput) (*models.Pharmacy, error) {
	return send[models.Pharmacy](ctx, p.d, http.MethodPatch, item(pharmaciesPath, id), in)
}

func (p *Pharmacies) Delete(ctx context.Context, id int64) error {
	return remove(ctx, p.d, item(pharmaciesPath, id))
}

func (p *Pharmacies) AddStaff(ctx context.Context, id int64, m models.StaffMembership) (*models.Pharmacy, error) {
	return send[models.Pharmacy](ctx, p.d, http.MethodPost, item(pharmaciesPath, id)+"add_staff/", m)
}

func (p *Pharmacies) RemoveStaff(ctx context.Context, id int64, m models.StaffMembership) (*models.Pharmacy, error) {
	return send[models.Pharmacy](ctx, p.d, http.MethodPost, item(pharmaciesPath, id)+"remove_staff/", m)
}
