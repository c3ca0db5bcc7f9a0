package search

import (
	"context"

	"github.com/Skotchmaster/pharmacy_portal/internal/models"
	"github.com/Skotchmaster/pharmacy_portal/internal/resources"
	"github.com/Skotchmaster/pharmacy_portal/internal/util"
)

// CatalogPage is one page of storefront results.
type CatalogPage struct {
	Items []models.Medicine
	Page  util.Page
}

// Catalog answers storefront searches.
type Catalog interface {
	Find(ctx context.Context, q string, page int) (CatalogPage, error)
}

func (ix *Index) Find(ctx context.Context, q string, page int) (CatalogPage, error) {
	if page < 1 {
		page = 1
	}
	size := util.DefaultPageSize
	res, err := ix.Search(ctx, q, (page-1)*size, size)
	if err != nil {
		return CatalogPage{}, err
	}
	p := util.Calculate(page, int(res.Total), size, nil, nil)
	p.HasNext = page < p.Pages
	p.HasPrev = page > 1
	return CatalogPage{Items: res.Items, Page: p}, nil
}

// Backend searches the catalog through the medicines endpoint.
type Backend struct {
	Medicines *resources.Medicines
}

func (b Backend) Find(ctx context.Context, q string, page int) (CatalogPage, error) {
	if page < 1 {
		page = 1
	}
	list, err := b.Medicines.List(ctx, models.MedicineFilters{Search: sanitizeQuery(q), Page: page})
	if err != nil {
		return CatalogPage{}, err
	}
	return CatalogPage{
		Items: list.Results,
		Page:  util.Calculate(page, list.Count, util.DefaultPageSize, list.Next, list.Previous),
	}, nil
}

// BackendSource pages through the medicines endpoint for Reindex.
func BackendSource(m *resources.Medicines) Source {
	return func(ctx context.Context, page int) ([]models.Medicine, bool, error) {
		list, err := m.List(ctx, models.MedicineFilters{Page: page})
		if err != nil {
			return nil, false, err
		}
		return list.Results, list.Next != nil, nil
	}
}
