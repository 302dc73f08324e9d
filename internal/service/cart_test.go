package service

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	evbus "github.com/asaskevich/EventBus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/and161185/agrimarket/internal/errs"
	"github.com/and161185/agrimarket/internal/kv"
	"github.com/and161185/agrimarket/internal/model"
)

// checkCart asserts the cart invariants: one line per product, positive quantities and
// totals that equal the sums over the lines.
func checkCart(t *testing.T, s *Storefront) {
	t.Helper()
	seen := map[int64]bool{}
	items := 0
	price := decimal.Zero
	for _, l := range s.CartItems() {
		require.False(t, seen[l.Product.ID], "duplicate line for product %d", l.Product.ID)
		seen[l.Product.ID] = true
		require.GreaterOrEqual(t, l.Quantity, 1)
		items += l.Quantity
		p, err := decimal.NewFromString(l.Product.Price)
		if err == nil {
			price = price.Add(p.Mul(decimal.NewFromInt(int64(l.Quantity))))
		}
	}
	require.Equal(t, items, s.CartTotalItems())
	require.True(t, price.Equal(s.CartTotalPrice()), "total %s != %s", s.CartTotalPrice(), price)
}

func TestCart_AddMergesLines(t *testing.T) {
	t.Parallel()
	s := newStorefront(t, &fakeAPI{}, nil)
	p1 := product(1, "480.00")

	require.NoError(t, s.AddToCart(p1, 1))
	require.NoError(t, s.AddToCart(p1, 2))
	checkCart(t, s)

	lines := s.CartItems()
	require.Len(t, lines, 1)
	require.Equal(t, 3, lines[0].Quantity)
	require.Equal(t, "1440", s.CartTotalPrice().String())
	require.True(t, s.IsInCart(1))
	require.Equal(t, 3, s.ItemQuantity(1))
	require.Zero(t, s.ItemQuantity(2))
}

func TestCart_RejectsNonPositiveQuantity(t *testing.T) {
	t.Parallel()
	s := newStorefront(t, &fakeAPI{}, nil)

	err := s.AddToCart(product(1, "1"), 0)
	require.ErrorIs(t, err, errs.ErrValidation)
	var ve *errs.ValidationError
	require.True(t, errors.As(err, &ve))
	require.NotEmpty(t, ve.Field("quantity"))
	require.Empty(t, s.CartItems())
}

func TestCart_InsertionOrderAndTotals(t *testing.T) {
	t.Parallel()
	s := newStorefront(t, &fakeAPI{}, nil)

	steps := []func() error{
		func() error { return s.AddToCart(product(3, "150.00"), 2) },
		func() error { return s.AddToCart(product(1, "650.50"), 1) },
		func() error { return s.AddToCart(product(2, "not-a-price"), 4) },
		func() error { return s.UpdateItemQuantity(3, 5) },
		func() error { return s.AddToCart(product(1, "650.50"), 1) },
		func() error { return s.RemoveFromCart(99) },
		func() error { return s.UpdateItemQuantity(99, 3) },
	}
	for i, step := range steps {
		require.NoError(t, step(), "step %d", i)
		checkCart(t, s)
	}

	var ids []int64
	for _, l := range s.CartItems() {
		ids = append(ids, l.Product.ID)
	}
	require.Equal(t, []int64{3, 1, 2}, ids)
	require.Equal(t, 11, s.CartTotalItems())
	require.Equal(t, "2051", s.CartTotalPrice().String())
}

func TestCart_RandomSequencesKeepInvariants(t *testing.T) {
	t.Parallel()
	prices := []string{"480.00", "3200.00", "150.00", "2800.00", "650.50", "bad"}
	rng := rand.New(rand.NewPCG(2024, 11))

	for run := 0; run < 20; run++ {
		s := newStorefront(t, &fakeAPI{}, nil)
		// want mirrors the cart as an ordered list of (id, qty).
		var want []model.CartLine
		find := func(id int64) int {
			for i, l := range want {
				if l.Product.ID == id {
					return i
				}
			}
			return -1
		}

		for step := 0; step < 200; step++ {
			id := int64(rng.IntN(len(prices)))
			switch op := rng.IntN(10); {
			case op < 5:
				q := 1 + rng.IntN(5)
				require.NoError(t, s.AddToCart(product(id, prices[id]), q))
				if i := find(id); i >= 0 {
					want[i].Quantity += q
				} else {
					want = append(want, model.CartLine{Product: product(id, prices[id]), Quantity: q})
				}
			case op < 7:
				require.NoError(t, s.RemoveFromCart(id))
				if i := find(id); i >= 0 {
					want = append(want[:i:i], want[i+1:]...)
				}
			case op < 9:
				n := rng.IntN(9) - 2
				require.NoError(t, s.UpdateItemQuantity(id, n))
				if i := find(id); i >= 0 {
					if n <= 0 {
						want = append(want[:i:i], want[i+1:]...)
					} else {
						want[i].Quantity = n
					}
				}
			default:
				require.NoError(t, s.ClearCart())
				want = nil
			}
			checkCart(t, s)
			require.Len(t, s.CartItems(), len(want), "run %d step %d", run, step)
			for i, l := range s.CartItems() {
				require.Equal(t, want[i].Product.ID, l.Product.ID, "run %d step %d", run, step)
				require.Equal(t, want[i].Quantity, l.Quantity, "run %d step %d", run, step)
			}
		}
	}
}

func TestCart_QuantityCap(t *testing.T) {
	t.Parallel()
	s := newStorefront(t, &fakeAPI{}, nil)

	require.ErrorIs(t, s.AddToCart(product(1, "10"), MaxLineQuantity+1), errs.ErrValidation)
	require.Empty(t, s.CartItems())

	require.NoError(t, s.AddToCart(product(1, "10"), MaxLineQuantity-1))
	err := s.AddToCart(product(1, "10"), 2)
	var ve *errs.ValidationError
	require.True(t, errors.As(err, &ve))
	require.NotEmpty(t, ve.Field("quantity"))
	require.Equal(t, MaxLineQuantity-1, s.ItemQuantity(1))

	require.ErrorIs(t, s.UpdateItemQuantity(1, math.MaxInt), errs.ErrValidation)
	require.Equal(t, MaxLineQuantity-1, s.ItemQuantity(1))
	require.NoError(t, s.AddToCart(product(1, "10"), 1))
	require.Equal(t, MaxLineQuantity, s.ItemQuantity(1))
	checkCart(t, s)
}

func TestCart_StoredCartIsRepairedOnLoad(t *testing.T) {
	t.Parallel()
	store := newStore(t)
	require.NoError(t, kv.Set(store, kv.KeyCartItems, []model.CartLine{
		{Product: product(1, "10"), Quantity: 2},
		{Product: product(2, "20"), Quantity: 0},
		{Product: product(3, "30"), Quantity: -4},
		{Product: product(1, "10"), Quantity: 3},
		{Product: product(4, "1"), Quantity: math.MaxInt},
	}))

	s := newStorefront(t, &fakeAPI{}, store)
	checkCart(t, s)
	require.Equal(t, []model.CartLine{
		{Product: product(1, "10"), Quantity: 5},
		{Product: product(4, "1"), Quantity: MaxLineQuantity},
	}, s.CartItems())
	require.Equal(t, s.CartItems(), kv.Get(store, kv.KeyCartItems, []model.CartLine(nil)))
}

func TestCart_UpdateToZeroEqualsRemove(t *testing.T) {
	t.Parallel()
	for _, n := range []int{0, -5} {
		a := newStorefront(t, &fakeAPI{}, nil)
		b := newStorefront(t, &fakeAPI{}, nil)
		for _, s := range []*Storefront{a, b} {
			require.NoError(t, s.AddToCart(product(1, "10"), 2))
			require.NoError(t, s.AddToCart(product(2, "20"), 1))
		}

		require.NoError(t, a.UpdateItemQuantity(1, n))
		require.NoError(t, b.RemoveFromCart(1))

		require.Equal(t, b.CartItems(), a.CartItems())
		require.False(t, a.IsInCart(1))
		checkCart(t, a)
	}
}

func TestCart_Clear(t *testing.T) {
	t.Parallel()
	s := newStorefront(t, &fakeAPI{}, nil)
	require.NoError(t, s.AddToCart(product(1, "10"), 2))
	require.NoError(t, s.ClearCart())
	require.Zero(t, s.CartTotalItems())
	require.True(t, s.CartTotalPrice().IsZero())
	require.Empty(t, s.CartItems())
}

func TestCart_PersistsAcrossReload(t *testing.T) {
	t.Parallel()
	store := newStore(t)
	s := newStorefront(t, &fakeAPI{}, store)
	require.NoError(t, s.AddToCart(product(5, "2800.00"), 2))

	reloaded := newStorefront(t, &fakeAPI{}, store)
	require.Equal(t, 2, reloaded.ItemQuantity(5))
	require.Equal(t, "5600", reloaded.CartTotalPrice().String())
}

func TestCart_SnapshotsAreNotShared(t *testing.T) {
	t.Parallel()
	s := newStorefront(t, &fakeAPI{}, nil)
	require.NoError(t, s.AddToCart(product(1, "10"), 1))
	before := s.CartItems()

	require.NoError(t, s.AddToCart(product(1, "10"), 1))
	require.Equal(t, 1, before[0].Quantity)
	require.Equal(t, 2, s.ItemQuantity(1))
}

type brokenBackend struct{ kv.Backend }

func (brokenBackend) Save(context.Context, string, []byte) error { return errs.ErrTransport }

func TestCart_PersistFailureStillUpdatesMemory(t *testing.T) {
	t.Parallel()
	store := kv.New(brokenBackend{kv.NewMemory()}, zaptest.NewLogger(t))
	s := newStorefront(t, &fakeAPI{}, store)

	err := s.AddToCart(product(1, "10"), 1)
	require.ErrorIs(t, err, errs.ErrTransport)
	require.Equal(t, 1, s.ItemQuantity(1))
}

func TestCart_NotifiesSubscribersAndBus(t *testing.T) {
	t.Parallel()
	bus := evbus.New()
	s := New(Options{API: &fakeAPI{}, Bus: bus, Logger: zaptest.NewLogger(t)})

	var totals []int
	unsub := s.State().CartTotalItems.Subscribe(func(n int) { totals = append(totals, n) })
	var published int
	require.NoError(t, bus.Subscribe(kv.KeyCartItems+".changed", func(lines []model.CartLine) {
		published = len(lines)
	}))

	require.NoError(t, s.AddToCart(product(1, "10"), 2))
	require.NoError(t, s.AddToCart(product(2, "10"), 1))
	unsub()
	require.NoError(t, s.ClearCart())

	require.Equal(t, []int{2, 3}, totals)
	require.Zero(t, published)
}
