package resources

import (
	"context"
	"net/http"

	"github.com/Skotchmaster/pharmacy_portal/internal/apiclient"
	"github.com/Skotchmaster/pharmacy_portal/internal/models"
)

const (
	usersPath = "/auth/users/"
	mePath    = "/auth/users/me/"
)

type Users struct {
	d apiclient.Doer
}

func (u *Users) List(ctx context.Context, f models.UserFilters) (*models.ListResponse[models.UserProfile], error) {
	return get[models.ListResponse[models.UserProfile]](ctx, u.d, usersPath, f)
}

func (u *Users) Get(ctx context.Context, id int64) (*models.UserProfile, error) {
	return get[models.UserProfile](ctx, u.d, item(usersPath, id), nil)
}

func (u *Users) Current(ctx context.Context) (*models.UserProfile, error) {
	return get[models.UserProfile](ctx, u.d, mePath, nil)
}

func (u *Users) Update(ctx context.Context, id int64, in models.UserUpdate) (*models.UserProfile, error) {
	return send[models.UserProfile](ctx, u.d, http.MethodPatch, item(usersPath, id), in)
}

func (u *Users) UpdateCurrent(ctx context.Context, in models.UserUpdate) (*models.UserProfile, error) {
	return send[models.UserProfile](ctx, u.d, http.MethodPatch, mePath, in)
}
