// Package resources holds typed clients for the pharmacy API resources.
package resources

import (
	"context"
	"fmt"
	"net/http"

	"github.com/Skotchmaster/pharmacy_portal/internal/apiclient"
)

// API groups every resource client over one request pipeline.
type API struct {
	Medicines  *Medicines
	Inventory  *Inventory
	Pharmacies *Pharmacies
	Users      *Users
	Reports    *Reports
}

func New(d apiclient.Doer) *API {
	return &API{
		Medicines:  &Medicines{d: d},
		Inventory:  &Inventory{d: d},
		Pharmacies: &Pharmacies{d: d},
		Users:      &Users{d: d},
		Reports:    &Reports{d: d},
	}
}

func item(base string, id int64) string {
	return fmt.Sprintf("%s%d/", base, id)
}

func get[T any](ctx context.Context, d apiclient.Doer, path string, q any) (*T, error) {
	var out T
	if err := d.Do(ctx, apiclient.Request{Method: http.MethodGet, Path: path, Query: q}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func send[T any](ctx context.Context, d apiclient.Doer, method, path string, body any) (*T, error) {
	var out T
	if err := d.Do(ctx, apiclient.Request{Method: method, Path: path, Body: body}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func remove(ctx context.Context, d apiclient.Doer, path string) error {
	return d.Do(ctx, apiclient.Request{Method: http.MethodDelete, Path: path}, nil)
}
