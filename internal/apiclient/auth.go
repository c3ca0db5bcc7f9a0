package apiclient

import (
	"context"
	"net/http"

	"github.com/Skotchmaster/pharmacy_portal/internal/models"
)

const (
	pathToken        = "/auth/token/"
	pathTokenRefresh = "/auth/token/refresh/"
	pathCurrentUser  = "/auth/users/me/"
	pathRegister     = "/auth/register/"
)

func (c *Client) IssueTokens(ctx context.Context, creds models.LoginCredentials) (*models.TokenPair, error) {
	var out models.TokenPair
	err := c.Do(ctx, Request{
		Method: http.MethodPost,
		Path:   pathToken,
		Body:   map[string]string{"username": creds.Username, "password": creds.Password},
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (string, error) {
	var out models.RefreshedToken
	err := c.Do(ctx, Request{
		Method: http.MethodPost,
		Path:   pathTokenRefresh,
		Body:   map[string]string{"refresh": refreshToken},
	}, &out)
	if err != nil {
		return "", err
	}
	return out.Access, nil
}

// CurrentUser fetches the profile the given access token belongs to.
func (c *Client) CurrentUser(ctx context.Context, accessToken string) (*models.UserProfile, error) {
	var out models.UserProfile
	err := c.Do(ctx, Request{
		Method: http.MethodGet,
		Path:   pathCurrentUser,
		Header: http.Header{"Authorization": {"Bearer " + accessToken}},
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Register(ctx context.Context, data models.RegistrationData) error {
	return c.Do(ctx, Request{
		Method: http.MethodPost,
		Path:   pathRegister,
		Body:   data,
	}, nil)
}

// CurrentUser validates the stored session against the backend, refreshing the
// access token when needed.
func (s *Session) CurrentUser(ctx context.Context) (*models.UserProfile, error) {
	var out models.UserProfile
	if err := s.Do(ctx, Request{Method: http.MethodGet, Path: pathCurrentUser}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
