package resources

import (
	"context"
	"net/http"

	"github.com/Skotchmaster/pharmacy_portal/internal/apiclient"
	"github.com/Skotchmaster/pharmacy_portal/internal/models"
)

const medicinesPath = "/medicines/"

type Medicines struct {
	d apiclient.Doer
}

func (m *Medicines) List(ctx context.Context, f models.MedicineFilters) (*models.ListResponse[models.Medicine], error) {
	return get[models.ListResponse[models.Medicine]](ctx, m.d, medicinesPath, f)
}

func (m *Medicines) Get(ctx context.Context, id int64) (*models.Medicine, error) {
	return get[models.Medicine](ctx, m.d, item(medicinesPath, id), nil)
}

func (m *Medicines) Create(ctx context.Context, in models.Medicine) (*models.Medicine, error) {
	return send[models.Medicine](ctx, m.d, http.MethodPost, medicinesPath, in)
}

func (m *Medicines) Update(ctx context.Context, id int64, in models.Medicine) (*models.Medicine, error) {
	return send[models.Medicine](ctx, m.d, http.MethodPut, item(medicinesPath, id), in)
}

func (m *Medicines) Delete(ctx context.Context, id int64) error {
	return remove(ctx, m.d, item(medicinesPath, id))
}
