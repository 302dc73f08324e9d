package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-resty/resty/v2"

	"github.com/and161185/agrimarket/internal/model"
)

// CreateOrder places an order.
func (c *Client) CreateOrder(ctx context.Context, p model.OrderPayload) (model.Order, error) {
	var out model.Order
	err := c.call(ctx, http.MethodPost, "/orders/", withJSON(p), &out)
	return out, err
}

// MyOrders lists the current user's orders, newest first.
func (c *Client) MyOrders(ctx context.Context, page, pageSize int) (model.Page[model.Order], error) {
	var out model.Page[model.Order]
	err := c.call(ctx, http.MethodGet, "/my-orders/", func(r *resty.Request) {
		paging(r, page, pageSize)
		r.SetQueryParam("ordering", "-created_at")
	}, &out)
	return out, err
}

// MyOrder fetches one of the current user's orders by its public order id.
func (c *Client) MyOrder(ctx context.Context, orderID string) (model.Order, error) {
	var out model.Order
	err := c.call(ctx, http.MethodGet, "/my-orders/{orderId}/", pathOrder(orderID), &out)
	return out, err
}

// ProducerOrders lists orders that contain the current producer's products.
func (c *Client) ProducerOrders(ctx context.Context, page, pageSize int, f model.OrderFilters) (model.Page[model.Order], error) {
	var out model.Page[model.Order]
	err := c.call(ctx, http.MethodGet, "/producer-orders/", func(r *resty.Request) {
		paging(r, page, pageSize)
		ordering := f.Ordering
		if ordering == "" {
			ordering = "-created_at"
		}
		r.SetQueryParam("ordering", ordering)
		if f.OrderStatus != "" {
			r.SetQueryParam("order_status", f.OrderStatus)
		}
		if f.Search != "" {
			r.SetQueryParam("search", f.Search)
		}
	}, &out)
	return out, err
}

// ProducerOrder fetches one received order.
func (c *Client) ProducerOrder(ctx context.Context, orderID string) (model.Order, error) {
	var out model.Order
	err := c.call(ctx, http.MethodGet, "/producer-orders/{orderId}/", pathOrder(orderID), &out)
	return out, err
}

// UpdateOrderStatus sets the order_status of a received order.
func (c *Client) UpdateOrderStatus(ctx context.Context, orderID, status string) (model.Order, error) {
	var out model.Order
	err := c.call(ctx, http.MethodPatch, "/producer-orders/{orderId}/", func(r *resty.Request) {
		pathOrder(orderID)(r)
		withJSON(map[string]string{"order_status": status})(r)
	}, &out)
	return out, err
}

// MarkShipped flags a received order as shipped.
func (c *Client) MarkShipped(ctx context.Context, orderID string) (model.Order, error) {
	var out model.Order
	err := c.call(ctx, http.MethodPost, "/orders/producer-orders/{orderId}/mark-shipped/", pathOrder(orderID), &out)
	return out, err
}

func pathOrder(orderID string) func(*resty.Request) {
	return func(r *resty.Request) { r.SetPathParam("orderId", orderID) }
}

func paging(r *resty.Request, page, pageSize int) {
	if page > 0 {
		r.SetQueryParam("page", strconv.Itoa(page))
	}
	if pageSize > 0 {
		r.SetQueryParam("page_size", strconv.Itoa(pageSize))
	}
}
