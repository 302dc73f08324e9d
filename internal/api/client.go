// Package api is the REST transport to the marketplace API.
//
// A single Client is shared by all dispatchers. It carries the default bearer
// token that login, refresh and logout set or clear.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/gofrs/uuid/v5"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/and161185/agrimarket/internal/errs"
	"github.com/and161185/agrimarket/internal/obs"
)

// DefaultBaseURL is used when no base URL is configured.
const DefaultBaseURL = "http://localhost:8000/api"

// Options configures a Client.
type Options struct {
	BaseURL    string
	Timeout    time.Duration
	Limiter    *rate.Limiter
	Registerer prometheus.Registerer
	Logger     *zap.Logger
	// HTTPClient overrides the underlying transport (tests).
	HTTPClient *http.Client
}

// Client talks to the marketplace REST API.
type Client struct {
	rc      *resty.Client
	log     *zap.Logger
	metrics *obs.ClientMetrics
	limiter *rate.Limiter

	mu    sync.RWMutex
	token string
}

// New constructs a Client.
func New(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	var rc *resty.Client
	if opts.HTTPClient != nil {
		rc = resty.NewWithClient(opts.HTTPClient)
	} else {
		rc = resty.New()
	}
	rc.SetBaseURL(strings.TrimRight(opts.BaseURL, "/")).
		SetTimeout(opts.Timeout).
		SetHeader("Accept", "application/json")

	c := &Client{
		rc:      rc,
		log:     opts.Logger,
		metrics: obs.NewClientMetrics(opts.Registerer),
		limiter: opts.Limiter,
	}
	rc.OnBeforeRequest(c.beforeRequest)
	return c
}

// BaseURL returns the configured API root.
func (c *Client) BaseURL() string { return c.rc.BaseURL }

// SetAuthToken installs the default bearer token for subsequent requests.
func (c *Client) SetAuthToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// ClearAuthToken removes the default bearer token.
func (c *Client) ClearAuthToken() { c.SetAuthToken("") }

// AuthToken returns the current default bearer token ("" when anonymous).
func (c *Client) AuthToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Client) beforeRequest(_ *resty.Client, r *resty.Request) error {
	if r.Header.Get("X-Request-ID") == "" {
		if id, err := uuid.NewV4(); err == nil {
			r.SetHeader("X-Request-ID", id.String())
		}
	}
	if r.Header.Get("Authorization") == "" {
		if tok := c.AuthToken(); tok != "" {
			r.SetHeader("Authorization", "Bearer "+tok)
		}
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(r.Context()); err != nil {
			return err
		}
	}
	return nil
}

// call executes one request. route is a resty URL template ("/products/{id}/") and is used
// as-is for logs and metrics. out, when non-nil, receives the decoded 2xx body.
func (c *Client) call(ctx context.Context, method, route string, prepare func(*resty.Request), out any) error {
	req := c.rc.R().SetContext(ctx)
	if prepare != nil {
		prepare(req)
	}

	start := time.Now()
	resp, err := req.Execute(method, route)
	elapsed := time.Since(start)

	if err != nil {
		c.metrics.Observe(method, route, 0, elapsed)
		c.log.Warn("api request failed",
			zap.String("method", method),
			zap.String("route", route),
			zap.Duration("duration", elapsed),
			zap.Error(err),
		)
		return fmt.Errorf("%w: %s %s: %w", errs.ErrTransport, method, route, err)
	}

	status := resp.StatusCode()
	c.metrics.Observe(method, route, status, elapsed)
	c.log.Debug("api request",
		zap.String("method", method),
		zap.String("route", route),
		zap.Int("status", status),
		zap.Duration("duration", elapsed),
	)

	if !resp.IsSuccess() {
		return decodeError(status, resp.Body())
	}
	if out == nil || len(resp.Body()) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("%w: decode %s %s: %w", errs.ErrTransport, method, route, err)
	}
	return nil
}

func withJSON(body any) func(*resty.Request) {
	return func(r *resty.Request) {
		r.SetHeader("Content-Type", "application/json").SetBody(body)
	}
}
