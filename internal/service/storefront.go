// Package service holds the client-side session and shopping state of the storefront
// and the dispatchers that change it.
//
// A Storefront owns every container. Persisted containers (tokens and cart) live in a
// kv.Store; the current user, favorites and UI flags are in memory only.
package service

import (
	"context"
	"sync/atomic"
	"time"

	evbus "github.com/asaskevich/EventBus"
	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/and161185/agrimarket/internal/kv"
	"github.com/and161185/agrimarket/internal/model"
	"github.com/and161185/agrimarket/internal/state"
)

// API is the subset of the REST transport the dispatchers use. *api.Client implements it.
type API interface {
	ObtainToken(ctx context.Context, creds model.Credentials) (model.TokenPair, error)
	RefreshToken(ctx context.Context, refresh string) (string, error)
	Me(ctx context.Context) (model.User, error)
	ListFavorites(ctx context.Context) ([]model.Favorite, error)
	AddFavorite(ctx context.Context, productID int64) (model.Favorite, error)
	RemoveFavorite(ctx context.Context, relationID int64) error
	CreateOrder(ctx context.Context, p model.OrderPayload) (model.Order, error)
	SetAuthToken(token string)
	ClearAuthToken()
}

// Navigator moves the UI to another view.
type Navigator interface {
	Navigate(path string)
}

// NavigatorFunc adapts a func to Navigator.
type NavigatorFunc func(path string)

// Navigate implements Navigator.
func (f NavigatorFunc) Navigate(path string) { f(path) }

// Options configures a Storefront.
type Options struct {
	API API
	// Store holds the persisted containers; nil keeps them in memory.
	Store     *kv.Store
	Logger    *zap.Logger
	Navigator Navigator
	// Bus receives "<container>.changed" events; nil creates a private bus.
	Bus evbus.Bus
}

// State exposes the containers and derived views for reading and subscribing.
// Writes go through the Storefront dispatchers.
type State struct {
	AccessToken  *state.Cell[*string]
	RefreshToken *state.Cell[*string]
	User         *state.Cell[*model.User]
	Cart         *state.Cell[[]model.CartLine]
	Favorites    *state.Cell[[]model.Favorite]
	Loading      *state.Cell[bool]
	Error        *state.Cell[string]
	Phase        *state.Cell[Phase]

	IsAuthenticated    *state.Derived[bool]
	AccessExpiresAt    *state.Derived[time.Time]
	CartTotalItems     *state.Derived[int]
	CartTotalPrice     *state.Derived[decimal.Decimal]
	FavoriteProductIDs *state.Derived[[]int64]
}

// Storefront is the client state manager.
type Storefront struct {
	api API
	log *zap.Logger
	nav Navigator
	bus evbus.Bus
	st  State

	sf     singleflight.Group
	booted atomic.Bool
}

// New wires the containers, loads persisted values and returns a ready Storefront.
// Bootstrap must still be called to restore the session.
func New(opts Options) *Storefront {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Store == nil {
		opts.Store = kv.New(kv.NewMemory(), opts.Logger)
	}
	if opts.Navigator == nil {
		opts.Navigator = NavigatorFunc(func(string) {})
	}
	if opts.Bus == nil {
		opts.Bus = evbus.New()
	}

	bus := state.WithBus(opts.Bus)
	st := State{
		AccessToken:  state.NewPersisted[*string](opts.Store, kv.KeyAccessToken, nil, bus),
		RefreshToken: state.NewPersisted[*string](opts.Store, kv.KeyRefreshToken, nil, bus),
		User:         state.NewCell[*model.User]("currentUser", nil, bus),
		Cart:         state.NewPersisted(opts.Store, kv.KeyCartItems, []model.CartLine{}, bus),
		Favorites:    state.NewCell("favoriteItems", []model.Favorite{}, bus),
		Loading:      state.NewCell("loading", true, bus),
		Error:        state.NewCell("error", "", bus),
		Phase:        state.NewCell("phase", PhaseUninitialized, bus),
	}
	st.IsAuthenticated = state.NewDerived(func() bool {
		return deref(st.AccessToken.Get()) != "" && st.User.Get() != nil
	}, st.AccessToken, st.User)
	st.AccessExpiresAt = state.NewDerived(func() time.Time {
		return tokenExpiry(deref(st.AccessToken.Get()))
	}, st.AccessToken)
	st.CartTotalItems = state.NewDerived(func() int {
		return totalItems(st.Cart.Get())
	}, st.Cart)
	st.CartTotalPrice = state.NewDerived(func() decimal.Decimal {
		return totalPrice(st.Cart.Get())
	}, st.Cart)
	st.FavoriteProductIDs = state.NewDerived(func() []int64 {
		return productIDs(st.Favorites.Get())
	}, st.Favorites)

	s := &Storefront{
		api: opts.API,
		log: opts.Logger,
		nav: opts.Navigator,
		bus: opts.Bus,
		st:  st,
	}
	if lines, changed := normalizeCart(st.Cart.Get()); changed {
		s.log.Warn("stored cart repaired", zap.Int("lines", len(lines)))
		s.set(st.Cart.Set(lines))
	}
	s.observe()
	return s
}

// State returns the containers and views.
func (s *Storefront) State() *State { return &s.st }

// Bus returns the event bus the containers publish on.
func (s *Storefront) Bus() evbus.Bus { return s.bus }

// observe logs every container change at debug level. Values are never logged.
func (s *Storefront) observe() {
	names := []string{
		s.st.AccessToken.Name(), s.st.RefreshToken.Name(), s.st.User.Name(), s.st.Cart.Name(),
		s.st.Favorites.Name(), s.st.Loading.Name(), s.st.Error.Name(), s.st.Phase.Name(),
	}
	for _, name := range names {
		if err := s.bus.Subscribe(name+".changed", func(any) {
			s.log.Debug("state changed", zap.String("container", name))
		}); err != nil {
			s.log.Warn("bus subscribe failed", zap.String("container", name), zap.Error(err))
		}
	}
}

// IsAuthenticated reports whether an access token and a user are both present.
func (s *Storefront) IsAuthenticated() bool { return s.st.IsAuthenticated.Get() }

// CurrentUser returns the fetched user or nil.
func (s *Storefront) CurrentUser() *model.User { return s.st.User.Get() }

// Loading reports whether an auth flow is in progress. It is true from construction
// until Bootstrap (or a login) settles.
func (s *Storefront) Loading() bool { return s.st.Loading.Get() }

// LastError is the human-readable message of the last failed login, or "".
func (s *Storefront) LastError() string { return s.st.Error.Get() }

// Phase returns the bootstrap phase.
func (s *Storefront) Phase() Phase { return s.st.Phase.Get() }

// AccessExpiresAt is the unverified exp claim of the access token; zero when unknown.
func (s *Storefront) AccessExpiresAt() time.Time { return s.st.AccessExpiresAt.Get() }

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func ptr(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func tokenExpiry(tok string) time.Time {
	if tok == "" {
		return time.Time{}
	}
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(tok, &claims); err != nil || claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}
