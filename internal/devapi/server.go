// Package devapi is an in-memory stand-in for the marketplace REST API.
//
// It serves the same routes and JSON shapes as the real backend closely enough for the
// client and CLI to be developed and tested without it. Failures can be injected per route.
package devapi

import (
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/and161185/agrimarket/internal/limiter"
	"github.com/and161185/agrimarket/internal/model"
	"github.com/and161185/agrimarket/internal/obs"
)

// FaultDrop makes FailNext close the connection without answering.
const FaultDrop = -1

const defaultPageSize = 10

// Options configures a Server.
type Options struct {
	Logger     *zap.Logger
	SigningKey []byte
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	// Limiter guards the token endpoint; nil uses 5 failures per 15 minutes.
	Limiter limiter.Limiter
	// Registry receives server metrics and backs /metrics; nil creates a private one.
	Registry *prometheus.Registry
	// Now overrides the clock (tests).
	Now func() time.Time
}

type fault struct {
	status int
	delay  time.Duration
}

type account struct {
	model.User
	pwdHash string
}

type favoriteRow struct {
	id        int64
	userID    int64
	productID int64
	createdAt time.Time
}

type orderRow struct {
	model.Order
	userID int64
}

// Server is the dev API. The zero value is not usable; use New.
type Server struct {
	log     *zap.Logger
	tokens  *tokenIssuer
	lim     limiter.Limiter
	reg     *prometheus.Registry
	metrics *obs.ServerMetrics
	now     func() time.Time
	router  chi.Router

	mu        sync.RWMutex
	users     map[int64]*account
	byName    map[string]int64
	profiles  map[int64]*model.Profile
	products  map[int64]*model.Product
	favorites map[int64]*favoriteRow
	orders    []*orderRow
	seq       int64

	faultMu sync.Mutex
	pending map[string][]fault
	hits    map[string]int
}

// New constructs an empty Server.
func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if len(opts.SigningKey) == 0 {
		opts.SigningKey = []byte("devapi-insecure-signing-key")
	}
	if opts.AccessTTL <= 0 {
		opts.AccessTTL = 15 * time.Minute
	}
	if opts.RefreshTTL <= 0 {
		opts.RefreshTTL = 24 * time.Hour
	}
	if opts.Limiter == nil {
		opts.Limiter = limiter.NewMemory(15*time.Minute, 5, 15*time.Minute)
	}
	if opts.Registry == nil {
		opts.Registry = prometheus.NewRegistry()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	s := &Server{
		log: opts.Logger,
		tokens: &tokenIssuer{
			key:        opts.SigningKey,
			accessTTL:  opts.AccessTTL,
			refreshTTL: opts.RefreshTTL,
			now:        opts.Now,
		},
		lim:       opts.Limiter,
		reg:       opts.Registry,
		metrics:   obs.NewServerMetrics(opts.Registry),
		now:       opts.Now,
		users:     map[int64]*account{},
		byName:    map[string]int64{},
		profiles:  map[int64]*model.Profile{},
		products:  map[int64]*model.Product{},
		favorites: map[int64]*favoriteRow{},
		pending:   map[string][]fault{},
		hits:      map[string]int{},
	}
	s.router = s.routes()
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(Recover(s.log))
	r.Use(Logging(s.log))
	r.Use(s.metrics.Instrument)
	r.Use(s.faults)

	r.Handle("/metrics", obs.Handler(s.reg))

	r.Route("/api", func(r chi.Router) {
		r.Use(s.authenticate)

		r.Route("/accounts", func(r chi.Router) {
			r.Post("/token/", s.handleObtainToken)
			r.Post("/token/refresh/", s.handleRefreshToken)
			r.Post("/register/", s.handleRegister)
			r.With(requireAuth).Get("/me/", s.handleMe)
			r.With(requireAuth).Patch("/me/", s.handleUpdateMe)
		})

		r.Route("/favorites/products", func(r chi.Router) {
			r.Use(requireAuth)
			r.Get("/", s.handleListFavorites)
			r.Post("/", s.handleAddFavorite)
			r.Delete("/{id}/", s.handleRemoveFavorite)
		})

		r.Route("/products", func(r chi.Router) {
			r.Get("/", s.handleListProducts)
			r.Get("/{id}/", s.handleGetProduct)
			r.Group(func(r chi.Router) {
				r.Use(requireAuth)
				r.Post("/", s.handleCreateProduct)
				r.Patch("/{id}/", s.handleUpdateProduct)
				r.Delete("/{id}/", s.handleDeleteProduct)
				r.Post("/{id}/change-status/", s.handleChangeStatus)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Post("/orders/", s.handleCreateOrder)
			r.Get("/my-orders/", s.handleMyOrders)
			r.Get("/my-orders/{orderId}/", s.handleMyOrder)
			r.Get("/producer-orders/", s.handleProducerOrders)
			r.Get("/producer-orders/{orderId}/", s.handleProducerOrder)
			r.Patch("/producer-orders/{orderId}/", s.handleUpdateOrderStatus)
			r.Get("/orders/producer-orders/{orderId}/", s.handleProducerOrder)
			r.Post("/orders/producer-orders/{orderId}/mark-shipped/", s.handleMarkShipped)
		})

		r.Route("/profiles", func(r chi.Router) {
			r.Get("/", s.handleListProfiles)
			r.With(requireAuth).Get("/me/", s.handleMyProfile)
			r.With(requireAuth).Patch("/me/", s.handleUpdateMyProfile)
			r.Get("/{username}/", s.handleGetProfile)
		})
	})
	return r
}

// FailNext makes the next request to route ("METHOD /api/path/") answer status with a detail body.
// FaultDrop closes the connection instead. Faults queue per route.
func (s *Server) FailNext(route string, status int) {
	s.faultMu.Lock()
	s.pending[route] = append(s.pending[route], fault{status: status})
	s.faultMu.Unlock()
}

// DelayNext holds the next request to route for d before handling it normally.
func (s *Server) DelayNext(route string, d time.Duration) {
	s.faultMu.Lock()
	s.pending[route] = append(s.pending[route], fault{delay: d})
	s.faultMu.Unlock()
}

// Hits reports how many requests reached route.
func (s *Server) Hits(route string) int {
	s.faultMu.Lock()
	defer s.faultMu.Unlock()
	return s.hits[route]
}

func (s *Server) takeFault(route string) (int, time.Duration) {
	s.faultMu.Lock()
	defer s.faultMu.Unlock()
	s.hits[route]++
	q := s.pending[route]
	if len(q) == 0 {
		return 0, 0
	}
	f := q[0]
	if len(q) == 1 {
		delete(s.pending, route)
	} else {
		s.pending[route] = q[1:]
	}
	return f.status, f.delay
}

func (s *Server) nextID() int64 {
	s.seq++
	return s.seq
}

func (s *Server) userExists(id int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.users[id]
	return ok
}
