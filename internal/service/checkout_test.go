package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/and161185/agrimarket/internal/errs"
	"github.com/and161185/agrimarket/internal/model"
)

var testShipping = model.Shipping{
	FullName: "Hanako Yamada", PostalCode: "100-0001", Prefecture: "Tokyo",
	City: "Chiyoda", Address1: "1-1", PhoneNumber: "0300000000",
}

func TestPlaceOrder_EmptyCart(t *testing.T) {
	t.Parallel()
	f := &fakeAPI{}
	s := newStorefront(t, f, nil)

	_, err := s.PlaceOrder(context.Background(), testShipping, "credit_card", "")
	require.ErrorIs(t, err, errs.ErrEmptyCart)
	require.Nil(t, f.lastOrder.Items)
}

func TestPlaceOrder_Success(t *testing.T) {
	t.Parallel()
	f := &fakeAPI{}
	s := newStorefront(t, f, nil)
	require.NoError(t, s.AddToCart(product(1, "10"), 2))
	require.NoError(t, s.AddToCart(product(2, "20"), 1))

	o, err := s.PlaceOrder(context.Background(), testShipping, "bank_transfer", "leave at door")
	require.NoError(t, err)
	require.Equal(t, "ord-1", o.OrderID)

	require.Equal(t, []model.OrderPayloadItem{{ProductID: 1, Quantity: 2}, {ProductID: 2, Quantity: 1}}, f.lastOrder.Items)
	require.Equal(t, "bank_transfer", f.lastOrder.PaymentMethod)
	require.Equal(t, "leave at door", f.lastOrder.Notes)
	require.Equal(t, testShipping, f.lastOrder.Shipping)
	require.Empty(t, s.CartItems())
}

func TestPlaceOrder_ValidationKeepsCart(t *testing.T) {
	t.Parallel()
	ve := &errs.ValidationError{Fields: map[string][]string{"shipping_postal_code": {"This field is required."}}}
	f := &fakeAPI{orderErr: ve}
	s := newStorefront(t, f, nil)
	require.NoError(t, s.AddToCart(product(1, "10"), 2))

	_, err := s.PlaceOrder(context.Background(), model.Shipping{}, "credit_card", "")
	var got *errs.ValidationError
	require.True(t, errors.As(err, &got))
	require.Same(t, ve, got)
	require.Equal(t, 2, s.ItemQuantity(1))
}
