package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-resty/resty/v2"

	"github.com/and161185/agrimarket/internal/model"
)

// ListFavorites returns the current user's favorites.
func (c *Client) ListFavorites(ctx context.Context) ([]model.Favorite, error) {
	var out []model.Favorite
	if err := c.call(ctx, http.MethodGet, "/favorites/products/", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// AddFavorite marks productID as favorite and returns the created relation.
func (c *Client) AddFavorite(ctx context.Context, productID int64) (model.Favorite, error) {
	var out model.Favorite
	body := map[string]int64{"product_id": productID}
	err := c.call(ctx, http.MethodPost, "/favorites/products/", withJSON(body), &out)
	return out, err
}

// RemoveFavorite deletes a favorite relation by its relation id.
func (c *Client) RemoveFavorite(ctx context.Context, relationID int64) error {
	return c.call(ctx, http.MethodDelete, "/favorites/products/{id}/", func(r *resty.Request) {
		r.SetPathParam("id", strconv.FormatInt(relationID, 10))
	}, nil)
}
