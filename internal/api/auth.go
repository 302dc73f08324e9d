package api

import (
	"context"
	"net/http"

	"github.com/and161185/agrimarket/internal/model"
)

// ObtainToken exchanges credentials for an access/refresh pair.
func (c *Client) ObtainToken(ctx context.Context, creds model.Credentials) (model.TokenPair, error) {
	var out model.TokenPair
	err := c.call(ctx, http.MethodPost, "/accounts/token/", withJSON(creds), &out)
	return out, err
}

// RefreshToken exchanges a refresh token for a new access token.
func (c *Client) RefreshToken(ctx context.Context, refresh string) (string, error) {
	var out struct {
		Access string `json:"access"`
	}
	body := map[string]string{"refresh": refresh}
	err := c.call(ctx, http.MethodPost, "/accounts/token/refresh/", withJSON(body), &out)
	return out.Access, err
}

// Me fetches the current user.
func (c *Client) Me(ctx context.Context) (model.User, error) {
	var u model.User
	err := c.call(ctx, http.MethodGet, "/accounts/me/", nil, &u)
	return u, err
}

// UpdateMe patches the current user's editable fields.
func (c *Client) UpdateMe(ctx context.Context, upd model.UserUpdate) (model.User, error) {
	var u model.User
	err := c.call(ctx, http.MethodPatch, "/accounts/me/", withJSON(upd), &u)
	return u, err
}

// Register creates a new account.
func (c *Client) Register(ctx context.Context, p model.RegisterPayload) (model.User, error) {
	var u model.User
	err := c.call(ctx, http.MethodPost, "/accounts/register/", withJSON(p), &u)
	return u, err
}
