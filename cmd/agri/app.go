package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/and161185/agrimarket/internal/api"
	"github.com/and161185/agrimarket/internal/config"
	"github.com/and161185/agrimarket/internal/errs"
	"github.com/and161185/agrimarket/internal/kv"
	"github.com/and161185/agrimarket/internal/model"
	"github.com/and161185/agrimarket/internal/service"
)

var errUsage = errors.New("usage")

// app is one CLI invocation: a transport, a store and the storefront over both.
type app struct {
	log    *zap.Logger
	out    io.Writer
	client *api.Client
	store  *kv.Store
	sf     *service.Storefront
	once   sync.Once
}

func newApp(ctx context.Context, cfg config.Config, log *zap.Logger, out io.Writer) (*app, error) {
	store, err := openStore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	var lim *rate.Limiter
	if cfg.RateLimit > 0 {
		lim = rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst)
	}
	client := api.New(api.Options{
		BaseURL: cfg.APIBaseURL,
		Timeout: cfg.HTTPTimeout,
		Limiter: lim,
		Logger:  log.Named("api"),
	})
	a := &app{log: log, out: out, client: client, store: store}
	a.sf = service.New(service.Options{
		API:       client,
		Store:     store,
		Logger:    log.Named("state"),
		Navigator: service.NavigatorFunc(func(path string) { log.Debug("navigate", zap.String("path", path)) }),
	})
	return a, nil
}

func (a *app) close() {
	a.once.Do(func() {
		if err := a.store.Close(); err != nil {
			a.log.Warn("store close", zap.Error(err))
		}
	})
}

// run restores the session and dispatches args[0].
func (a *app) run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	if err := a.sf.Bootstrap(ctx); err != nil {
		a.log.Warn("continuing without a session", zap.Error(err))
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "register":
		return a.register(ctx, rest)
	case "login":
		return a.login(ctx, rest)
	case "logout":
		a.sf.Logout()
		fmt.Fprintln(a.out, "logged out")
		return nil
	case "whoami":
		return a.whoami()
	case "products":
		return a.products(ctx, rest)
	case "product":
		return a.product(ctx, rest)
	case "producers":
		return a.producers(ctx, rest)
	case "producer":
		return a.producer(ctx, rest)
	case "cart":
		return a.cart(ctx, rest)
	case "fav":
		return a.fav(ctx, rest)
	case "checkout":
		return a.checkout(ctx, rest)
	case "orders":
		return a.orders(ctx, rest)
	case "order":
		return a.order(ctx, rest)
	case "my-products":
		return a.myProducts(ctx)
	case "received":
		return a.received(ctx, rest)
	case "ship":
		return a.ship(ctx, rest)
	}
	return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
}

func (a *app) requireLogin() error {
	if !a.sf.IsAuthenticated() {
		return fmt.Errorf("not logged in (run agri login): %w", errs.ErrUnauthorized)
	}
	return nil
}

func (a *app) register(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("register", flag.ContinueOnError)
	u := fs.String("u", "", "username")
	email := fs.String("email", "", "email")
	p := fs.String("p", "", "password")
	first := fs.String("first", "", "first name")
	last := fs.String("last", "", "last name")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if *u == "" || *p == "" || *email == "" {
		return fmt.Errorf("%w: register needs -u, -email and -p", errUsage)
	}
	user, err := a.client.Register(ctx, model.RegisterPayload{
		Username: *u, Email: *email, Password: *p, Password2: *p, FirstName: *first, LastName: *last,
	})
	if err != nil {
		return err
	}
	printJSON(a.out, user)
	return nil
}

func (a *app) login(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	u := fs.String("u", "", "username")
	p := fs.String("p", "", "password")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if *u == "" || *p == "" {
		return fmt.Errorf("%w: login needs -u and -p", errUsage)
	}
	if err := a.sf.Login(ctx, model.Credentials{Username: *u, Password: *p}); err != nil {
		return err
	}
	user := a.sf.CurrentUser()
	fmt.Fprintf(a.out, "logged in as %s (favorites: %d)\n", user.Username, a.sf.FavoritesCount())
	return nil
}

func (a *app) whoami() error {
	user := a.sf.CurrentUser()
	if user == nil {
		fmt.Fprintln(a.out, "anonymous")
		return nil
	}
	printJSON(a.out, struct {
		model.User
		AccessExpiresAt string `json:"access_expires_at,omitempty"`
	}{User: *user, AccessExpiresAt: formatTime(a.sf.AccessExpiresAt())})
	return nil
}

// multiFlag collects a repeated string flag.
type multiFlag []string

func (m *multiFlag) String() string { return strings.Join(*m, ",") }

func (m *multiFlag) Set(v string) error {
	*m = append(*m, v)
	return nil
}

func (a *app) products(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("products", flag.ContinueOnError)
	var f model.ProductFilters
	fs.StringVar(&f.Search, "search", "", "free text")
	fs.StringVar(&f.Category, "category", "", "category")
	fs.StringVar(&f.MinPrice, "min", "", "min price")
	fs.StringVar(&f.MaxPrice, "max", "", "max price")
	fs.StringVar(&f.Ordering, "ordering", "", "price|-price|created_at|-created_at")
	fs.StringVar(&f.ProducerUsername, "producer", "", "producer username")
	fs.IntVar(&f.Limit, "limit", 0, "max results")
	var methods multiFlag
	fs.Var(&methods, "method", "cultivation method (repeatable)")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	f.CultivationMethod = methods

	ps, err := a.client.ListProducts(ctx, f)
	if err != nil {
		return err
	}
	for _, p := range ps {
		marks := ""
		if a.sf.IsFavorite(p.ID) {
			marks += "*"
		}
		if q := a.sf.ItemQuantity(p.ID); q > 0 {
			marks += fmt.Sprintf(" [cart %d]", q)
		}
		fmt.Fprintf(a.out, "%5d  %-24s %10s / %-6s %-14s%s\n", p.ID, p.Name, p.Price, p.Unit, p.ProducerUsername, marks)
	}
	return nil
}

func idFlag(name string, args []string) (int64, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	id := fs.Int64("id", 0, "product id")
	if err := fs.Parse(args); err != nil || *id <= 0 {
		return 0, fmt.Errorf("%w: %s needs -id", errUsage, name)
	}
	return *id, nil
}

func (a *app) product(ctx context.Context, args []string) error {
	id, err := idFlag("product", args)
	if err != nil {
		return err
	}
	p, err := a.client.GetProduct(ctx, id)
	if err != nil {
		return err
	}
	printJSON(a.out, p)
	return nil
}

func (a *app) producers(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("producers", flag.ContinueOnError)
	var f model.ProfileFilters
	fs.StringVar(&f.Search, "search", "", "free text")
	fs.StringVar(&f.LocationPrefecture, "pref", "", "prefecture")
	fs.StringVar(&f.LocationCity, "city", "", "city")
	fs.StringVar(&f.Ordering, "ordering", "", "farm_name|-farm_name|created_at|-created_at")
	fs.IntVar(&f.Page, "page", 0, "page number")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	pg, err := a.client.Profiles(ctx, f)
	if err != nil {
		return err
	}
	for _, p := range pg.Results {
		fmt.Fprintf(a.out, "%-16s %-24s %s %s\n", p.Username, p.FarmName, p.LocationPrefecture, p.LocationCity)
	}
	fmt.Fprintf(a.out, "%d producer(s)\n", pg.Count)
	return nil
}

func (a *app) producer(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("producer", flag.ContinueOnError)
	u := fs.String("u", "", "username")
	if err := fs.Parse(args); err != nil || *u == "" {
		return fmt.Errorf("%w: producer needs -u", errUsage)
	}
	p, err := a.client.Profile(ctx, *u)
	if err != nil {
		return err
	}
	printJSON(a.out, p)
	return nil
}

func (a *app) cart(ctx context.Context, args []string) error {
	sub := "show"
	if len(args) > 0 {
		sub, args = args[0], args[1:]
	}
	switch sub {
	case "show":
		for _, l := range a.sf.CartItems() {
			fmt.Fprintf(a.out, "%5d  %-24s %10s x %d\n", l.Product.ID, l.Product.Name, l.Product.Price, l.Quantity)
		}
		fmt.Fprintf(a.out, "items: %d  total: %s\n", a.sf.CartTotalItems(), a.sf.CartTotalPrice().StringFixed(2))
		return nil
	case "add", "set":
		fs := flag.NewFlagSet("cart "+sub, flag.ContinueOnError)
		id := fs.Int64("id", 0, "product id")
		qty := fs.Int("qty", 1, "quantity")
		if err := fs.Parse(args); err != nil || *id <= 0 {
			return fmt.Errorf("%w: cart %s needs -id", errUsage, sub)
		}
		if sub == "set" {
			if err := a.sf.UpdateItemQuantity(*id, *qty); err != nil {
				return err
			}
			break
		}
		p, err := a.client.GetProduct(ctx, *id)
		if err != nil {
			return err
		}
		if err := a.sf.AddToCart(p, *qty); err != nil {
			return err
		}
	case "rm":
		id, err := idFlag("cart rm", args)
		if err != nil {
			return err
		}
		if err := a.sf.RemoveFromCart(id); err != nil {
			return err
		}
	case "clear":
		if err := a.sf.ClearCart(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: unknown cart command %q", errUsage, sub)
	}
	fmt.Fprintf(a.out, "items: %d  total: %s\n", a.sf.CartTotalItems(), a.sf.CartTotalPrice().StringFixed(2))
	return nil
}

func (a *app) fav(ctx context.Context, args []string) error {
	if err := a.requireLogin(); err != nil {
		return err
	}
	sub := "list"
	if len(args) > 0 {
		sub, args = args[0], args[1:]
	}
	switch sub {
	case "list":
		for _, f := range a.sf.Favorites() {
			fmt.Fprintf(a.out, "%5d  %-24s %10s\n", f.Product.ID, f.Product.Name, f.Product.Price)
		}
		return nil
	case "toggle":
		id, err := idFlag("fav toggle", args)
		if err != nil {
			return err
		}
		on, err := a.sf.ToggleFavorite(ctx, id)
		if err != nil {
			return err
		}
		if on {
			fmt.Fprintf(a.out, "product %d added to favorites\n", id)
		} else {
			fmt.Fprintf(a.out, "product %d removed from favorites\n", id)
		}
		return nil
	}
	return fmt.Errorf("%w: unknown fav command %q", errUsage, sub)
}

func (a *app) checkout(ctx context.Context, args []string) error {
	if err := a.requireLogin(); err != nil {
		return err
	}
	fs := flag.NewFlagSet("checkout", flag.ContinueOnError)
	var s model.Shipping
	fs.StringVar(&s.FullName, "name", "", "recipient")
	fs.StringVar(&s.PostalCode, "postal", "", "postal code")
	fs.StringVar(&s.Prefecture, "pref", "", "prefecture")
	fs.StringVar(&s.City, "city", "", "city")
	fs.StringVar(&s.Address1, "addr1", "", "address line 1")
	fs.StringVar(&s.Address2, "addr2", "", "address line 2")
	fs.StringVar(&s.PhoneNumber, "phone", "", "phone number")
	payment := fs.String("payment", "credit_card", "credit_card|bank_transfer")
	notes := fs.String("notes", "", "notes for the producer")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	o, err := a.sf.PlaceOrder(ctx, s, *payment, *notes)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "order %s placed, total %s (%s)\n", o.OrderID, o.TotalAmount, o.OrderStatus)
	return nil
}

func pageFlags(fs *flag.FlagSet) (*int, *int) {
	return fs.Int("page", 0, "page number"), fs.Int("size", 0, "page size")
}

func (a *app) orders(ctx context.Context, args []string) error {
	if err := a.requireLogin(); err != nil {
		return err
	}
	fs := flag.NewFlagSet("orders", flag.ContinueOnError)
	page, size := pageFlags(fs)
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	pg, err := a.client.MyOrders(ctx, *page, *size)
	if err != nil {
		return err
	}
	a.printOrders(pg)
	return nil
}

func (a *app) printOrders(pg model.Page[model.Order]) {
	for _, o := range pg.Results {
		fmt.Fprintf(a.out, "%s  %s  %10s  %-14s %d item(s)\n",
			o.OrderID, formatTime(o.CreatedAt), o.TotalAmount, o.OrderStatus, len(o.Items))
	}
	fmt.Fprintf(a.out, "%d order(s)\n", pg.Count)
}

func orderIDFlag(name string, args []string) (string, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	id := fs.String("id", "", "order id")
	if err := fs.Parse(args); err != nil || *id == "" {
		return "", fmt.Errorf("%w: %s needs -id", errUsage, name)
	}
	return *id, nil
}

func (a *app) order(ctx context.Context, args []string) error {
	if err := a.requireLogin(); err != nil {
		return err
	}
	id, err := orderIDFlag("order", args)
	if err != nil {
		return err
	}
	o, err := a.client.MyOrder(ctx, id)
	if err != nil {
		return err
	}
	printJSON(a.out, o)
	return nil
}

func (a *app) myProducts(ctx context.Context) error {
	if err := a.requireLogin(); err != nil {
		return err
	}
	ps, err := a.client.MyProducts(ctx)
	if err != nil {
		return err
	}
	for _, p := range ps {
		fmt.Fprintf(a.out, "%5d  %-24s %10s  %-8s qty %s\n", p.ID, p.Name, p.Price, p.Status, p.Quantity)
	}
	return nil
}

func (a *app) received(ctx context.Context, args []string) error {
	if err := a.requireLogin(); err != nil {
		return err
	}
	fs := flag.NewFlagSet("received", flag.ContinueOnError)
	var f model.OrderFilters
	fs.StringVar(&f.OrderStatus, "status", "", "order status")
	fs.StringVar(&f.Search, "search", "", "free text")
	page, size := pageFlags(fs)
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	pg, err := a.client.ProducerOrders(ctx, *page, *size, f)
	if err != nil {
		return err
	}
	a.printOrders(pg)
	return nil
}

func (a *app) ship(ctx context.Context, args []string) error {
	if err := a.requireLogin(); err != nil {
		return err
	}
	id, err := orderIDFlag("ship", args)
	if err != nil {
		return err
	}
	o, err := a.client.MarkShipped(ctx, id)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "order %s is %s\n", o.OrderID, o.OrderStatus)
	return nil
}
