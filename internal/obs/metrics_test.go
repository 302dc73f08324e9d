package obs

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestClientMetrics_Observe(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewClientMetrics(reg)

	m.Observe(http.MethodGet, "/products/", 200, 10*time.Millisecond)
	m.Observe(http.MethodGet, "/products/", 200, 5*time.Millisecond)
	m.Observe(http.MethodPost, "/accounts/token/", 0, time.Millisecond)

	require.Equal(t, 2.0, testutil.ToFloat64(m.requests.WithLabelValues("GET", "/products/", "200")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("POST", "/accounts/token/", "error")))
}

func TestClientMetrics_NilRegisterer(t *testing.T) {
	m := NewClientMetrics(nil)
	require.NotPanics(t, func() { m.Observe("GET", "/x", 500, 0) })
}

func TestServerMetrics_InstrumentUsesRoutePattern(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewServerMetrics(reg)

	r := chi.NewRouter()
	r.Use(m.Instrument)
	r.Get("/products/{id}/", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	r.Handle("/metrics", Handler(reg))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/products/42/", nil))
	require.Equal(t, http.StatusTeapot, rec.Code)

	require.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("GET", "/products/{id}/", "418")))

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, strings.Contains(rec.Body.String(), "http_requests_total"))
}
