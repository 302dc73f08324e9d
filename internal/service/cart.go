package service

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/and161185/agrimarket/internal/errs"
	"github.com/and161185/agrimarket/internal/model"
)

// MaxLineQuantity caps the quantity of a single cart line.
const MaxLineQuantity = 9999

func quantityError(msg string) error {
	return &errs.ValidationError{Fields: map[string][]string{"quantity": {msg}}}
}

// AddToCart adds quantity units of p, incrementing the existing line for p.ID if any.
// The returned error is a validation error for quantity < 1 or a line above
// MaxLineQuantity, or a persistence failure; in the latter case the in-memory cart has
// still changed.
func (s *Storefront) AddToCart(p model.Product, quantity int) error {
	if quantity < 1 {
		return quantityError("Ensure quantity is greater than or equal to 1.")
	}
	if quantity > MaxLineQuantity {
		return quantityError(fmt.Sprintf("Ensure quantity is less than or equal to %d.", MaxLineQuantity))
	}
	var over bool
	_, err := s.st.Cart.Update(func(lines []model.CartLine) []model.CartLine {
		out := make([]model.CartLine, len(lines), len(lines)+1)
		copy(out, lines)
		for i := range out {
			if out[i].Product.ID == p.ID {
				if out[i].Quantity > MaxLineQuantity-quantity {
					over = true
					return lines
				}
				out[i].Quantity += quantity
				return out
			}
		}
		return append(out, model.CartLine{Product: p, Quantity: quantity})
	})
	if over {
		return quantityError(fmt.Sprintf("Ensure quantity is less than or equal to %d.", MaxLineQuantity))
	}
	return err
}

// RemoveFromCart drops the line for productID. Absent ids are ignored.
func (s *Storefront) RemoveFromCart(productID int64) error {
	_, err := s.st.Cart.Update(func(lines []model.CartLine) []model.CartLine {
		out := make([]model.CartLine, 0, len(lines))
		for _, l := range lines {
			if l.Product.ID != productID {
				out = append(out, l)
			}
		}
		return out
	})
	return err
}

// UpdateItemQuantity sets the quantity of productID's line. n <= 0 removes the line.
func (s *Storefront) UpdateItemQuantity(productID int64, n int) error {
	if n <= 0 {
		return s.RemoveFromCart(productID)
	}
	if n > MaxLineQuantity {
		return quantityError(fmt.Sprintf("Ensure quantity is less than or equal to %d.", MaxLineQuantity))
	}
	_, err := s.st.Cart.Update(func(lines []model.CartLine) []model.CartLine {
		out := make([]model.CartLine, len(lines))
		copy(out, lines)
		for i := range out {
			if out[i].Product.ID == productID {
				out[i].Quantity = n
			}
		}
		return out
	})
	return err
}

// ClearCart empties the cart.
func (s *Storefront) ClearCart() error {
	return s.st.Cart.Set([]model.CartLine{})
}

// CartItems returns the cart lines in insertion order.
func (s *Storefront) CartItems() []model.CartLine { return s.st.Cart.Get() }

// IsInCart reports whether productID has a line.
func (s *Storefront) IsInCart(productID int64) bool { return s.ItemQuantity(productID) > 0 }

// ItemQuantity returns the quantity of productID in the cart, or 0.
func (s *Storefront) ItemQuantity(productID int64) int {
	for _, l := range s.st.Cart.Get() {
		if l.Product.ID == productID {
			return l.Quantity
		}
	}
	return 0
}

// CartTotalItems is the sum of line quantities.
func (s *Storefront) CartTotalItems() int { return s.st.CartTotalItems.Get() }

// CartTotalPrice is the sum of price*quantity over all lines.
func (s *Storefront) CartTotalPrice() decimal.Decimal { return s.st.CartTotalPrice.Get() }

// normalizeCart merges duplicate lines in first-seen order, drops lines with quantity < 1
// and caps quantities at MaxLineQuantity. It reports whether anything changed.
func normalizeCart(lines []model.CartLine) ([]model.CartLine, bool) {
	out := make([]model.CartLine, 0, len(lines))
	at := make(map[int64]int, len(lines))
	changed := false
	for _, l := range lines {
		if l.Quantity < 1 {
			changed = true
			continue
		}
		if i, ok := at[l.Product.ID]; ok {
			out[i].Quantity = min(MaxLineQuantity, out[i].Quantity+min(l.Quantity, MaxLineQuantity))
			changed = true
			continue
		}
		if l.Quantity > MaxLineQuantity {
			l.Quantity = MaxLineQuantity
			changed = true
		}
		at[l.Product.ID] = len(out)
		out = append(out, l)
	}
	return out, changed
}

func totalItems(lines []model.CartLine) int {
	n := 0
	for _, l := range lines {
		n += l.Quantity
	}
	return n
}

// totalPrice treats an unparsable price as zero.
func totalPrice(lines []model.CartLine) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range lines {
		price, err := decimal.NewFromString(l.Product.Price)
		if err != nil {
			continue
		}
		sum = sum.Add(price.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	return sum
}
