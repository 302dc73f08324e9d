package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap/zaptest"

	"github.com/and161185/agrimarket/internal/api"
	"github.com/and161185/agrimarket/internal/errs"
	"github.com/and161185/agrimarket/internal/kv"
	"github.com/and161185/agrimarket/internal/model"
)

type fakeAPI struct {
	mu sync.Mutex

	tokens   model.TokenPair
	tokenErr error
	// password, when set, is the only one ObtainToken accepts.
	password string

	access     string
	refreshErr error

	user  model.User
	meErr error

	favs      []model.Favorite
	nextRel   int64
	listErr   error
	addErr    error
	removeErr error

	orderErr  error
	lastOrder model.OrderPayload

	// gate, when set, holds ObtainToken and RefreshToken until closed.
	gate chan struct{}

	obtainCalls  int
	refreshCalls int
	meCalls      int
	bearer       string
}

var _ API = (*fakeAPI)(nil)

func (f *fakeAPI) wait(ctx context.Context) error {
	f.mu.Lock()
	g := f.gate
	f.mu.Unlock()
	if g == nil {
		return nil
	}
	select {
	case <-g:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeAPI) ObtainToken(ctx context.Context, creds model.Credentials) (model.TokenPair, error) {
	f.mu.Lock()
	f.obtainCalls++
	f.mu.Unlock()
	if err := f.wait(ctx); err != nil {
		return model.TokenPair{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.password != "" && creds.Password != f.password {
		return model.TokenPair{}, &api.Error{Status: 401, Detail: "No active account found with the given credentials"}
	}
	return f.tokens, f.tokenErr
}

func (f *fakeAPI) RefreshToken(ctx context.Context, _ string) (string, error) {
	f.mu.Lock()
	f.refreshCalls++
	f.mu.Unlock()
	if err := f.wait(ctx); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.refreshErr != nil {
		return "", f.refreshErr
	}
	return f.access, nil
}

func (f *fakeAPI) Me(context.Context) (model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.meCalls++
	if f.bearer == "" {
		return model.User{}, errs.ErrUnauthorized
	}
	return f.user, f.meErr
}

func (f *fakeAPI) ListFavorites(context.Context) ([]model.Favorite, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]model.Favorite(nil), f.favs...), nil
}

func (f *fakeAPI) AddFavorite(_ context.Context, productID int64) (model.Favorite, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.addErr != nil {
		return model.Favorite{}, f.addErr
	}
	f.nextRel++
	fav := model.Favorite{ID: 100 + f.nextRel, Product: product(productID, "100")}
	f.favs = append(f.favs, fav)
	return fav, nil
}

func (f *fakeAPI) RemoveFavorite(_ context.Context, relationID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.removeErr != nil {
		return f.removeErr
	}
	for i, fav := range f.favs {
		if fav.ID == relationID {
			f.favs = append(f.favs[:i], f.favs[i+1:]...)
			return nil
		}
	}
	return errs.ErrNotFound
}

func (f *fakeAPI) CreateOrder(_ context.Context, p model.OrderPayload) (model.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastOrder = p
	if f.orderErr != nil {
		return model.Order{}, f.orderErr
	}
	return model.Order{ID: 1, OrderID: "ord-1", TotalAmount: "0.00", OrderStatus: model.OrderPending}, nil
}

func (f *fakeAPI) SetAuthToken(token string) {
	f.mu.Lock()
	f.bearer = token
	f.mu.Unlock()
}

func (f *fakeAPI) ClearAuthToken() { f.SetAuthToken("") }

func (f *fakeAPI) authHeader() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bearer
}

func product(id int64, price string) model.Product {
	return model.Product{ID: id, Name: "p", Price: price, Status: model.ProductActive}
}

func signed(t *testing.T, exp time.Time) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "1",
		ExpiresAt: jwt.NewNumericDate(exp),
	}).SignedString([]byte("test"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return tok
}

func newStore(t *testing.T) *kv.Store {
	t.Helper()
	return kv.New(kv.NewMemory(), zaptest.NewLogger(t))
}

func newStorefront(t *testing.T, f *fakeAPI, store *kv.Store) *Storefront {
	t.Helper()
	if store == nil {
		store = newStore(t)
	}
	return New(Options{API: f, Store: store, Logger: zaptest.NewLogger(t)})
}
