package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/and161185/agrimarket/internal/errs"
	"github.com/and161185/agrimarket/internal/model"
)

// PlaceOrder submits the cart as an order. The cart is cleared only when the server accepts it;
// rejected orders leave the cart as it was and return the server's error.
func (s *Storefront) PlaceOrder(ctx context.Context, shipping model.Shipping, payment, notes string) (model.Order, error) {
	lines := s.st.Cart.Get()
	if len(lines) == 0 {
		return model.Order{}, errs.ErrEmptyCart
	}

	payload := model.OrderPayload{
		Shipping:      shipping,
		PaymentMethod: payment,
		Notes:         notes,
		Items:         make([]model.OrderPayloadItem, 0, len(lines)),
	}
	for _, l := range lines {
		payload.Items = append(payload.Items, model.OrderPayloadItem{ProductID: l.Product.ID, Quantity: l.Quantity})
	}

	order, err := s.api.CreateOrder(ctx, payload)
	if err != nil {
		return model.Order{}, err
	}
	if err := s.ClearCart(); err != nil {
		s.log.Warn("cart not cleared after order", zap.String("order_id", order.OrderID), zap.Error(err))
	}
	s.log.Info("order placed",
		zap.String("order_id", order.OrderID),
		zap.Int("lines", len(payload.Items)),
		zap.String("total", order.TotalAmount),
	)
	return order, nil
}
