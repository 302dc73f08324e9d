package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-resty/resty/v2"

	"github.com/and161185/agrimarket/internal/model"
)

// ListProducts returns catalog entries matching f. Without Owner or Status only active products are listed.
func (c *Client) ListProducts(ctx context.Context, f model.ProductFilters) ([]model.Product, error) {
	var out []model.Product
	err := c.call(ctx, http.MethodGet, "/products/", func(r *resty.Request) {
		r.SetQueryParamsFromValues(productQuery(f))
	}, &out)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// MyProducts lists every product of the current producer regardless of status.
func (c *Client) MyProducts(ctx context.Context) ([]model.Product, error) {
	return c.ListProducts(ctx, model.ProductFilters{Owner: "me"})
}

// GetProduct fetches one product.
func (c *Client) GetProduct(ctx context.Context, id int64) (model.Product, error) {
	var out model.Product
	err := c.call(ctx, http.MethodGet, "/products/{id}/", pathID(id), &out)
	return out, err
}

// CreateProduct submits a multipart product form.
func (c *Client) CreateProduct(ctx context.Context, in model.ProductInput) (model.Product, error) {
	var out model.Product
	err := c.call(ctx, http.MethodPost, "/products/", productForm(in), &out)
	return out, err
}

// UpdateProduct patches a product with the non-empty fields of in.
func (c *Client) UpdateProduct(ctx context.Context, id int64, in model.ProductInput) (model.Product, error) {
	var out model.Product
	form := productForm(in)
	err := c.call(ctx, http.MethodPatch, "/products/{id}/", func(r *resty.Request) {
		pathID(id)(r)
		form(r)
	}, &out)
	return out, err
}

// DeleteProduct removes a product.
func (c *Client) DeleteProduct(ctx context.Context, id int64) error {
	return c.call(ctx, http.MethodDelete, "/products/{id}/", pathID(id), nil)
}

// ChangeProductStatus moves a product to status.
func (c *Client) ChangeProductStatus(ctx context.Context, id int64, status model.ProductStatus) (model.Product, error) {
	var out model.Product
	err := c.call(ctx, http.MethodPost, "/products/{id}/change-status/", func(r *resty.Request) {
		pathID(id)(r)
		withJSON(map[string]model.ProductStatus{"status": status})(r)
	}, &out)
	return out, err
}

func pathID(id int64) func(*resty.Request) {
	return func(r *resty.Request) { r.SetPathParam("id", strconv.FormatInt(id, 10)) }
}

func productQuery(f model.ProductFilters) url.Values {
	q := url.Values{}
	set := func(k, v string) {
		if v != "" {
			q.Set(k, v)
		}
	}
	set("search", f.Search)
	set("category", f.Category)
	set("min_price", f.MinPrice)
	set("max_price", f.MaxPrice)
	set("ordering", f.Ordering)
	set("producer_username", f.ProducerUsername)
	set("owner", f.Owner)
	set("status", string(f.Status))
	if f.Owner == "" && f.Status == "" {
		q.Set("status", string(model.ProductActive))
	}
	for _, m := range f.CultivationMethod {
		q.Add("cultivation_method", m)
	}
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}
	return q
}

func productForm(in model.ProductInput) func(*resty.Request) {
	return func(r *resty.Request) {
		fields := map[string]string{}
		set := func(k, v string) {
			if v != "" {
				fields[k] = v
			}
		}
		set("name", in.Name)
		set("description", in.Description)
		set("category", in.Category)
		set("price", in.Price)
		set("quantity", in.Quantity)
		set("unit", in.Unit)
		set("cultivation_method", in.CultivationMethod)
		set("status", string(in.Status))
		r.SetFormData(fields)
		if in.Image != "" {
			r.SetFile("image", in.Image)
		}
	}
}
