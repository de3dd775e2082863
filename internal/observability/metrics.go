package observability

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus registry and collectors of the API.
type Metrics struct {
	registry          *prometheus.Registry
	handler           http.Handler
	requestsTotal     *prometheus.CounterVec
	requestDuration   *prometheus.HistogramVec
	ordersPlaced      *prometheus.CounterVec
	itemsDropped      *prometheus.CounterVec
	statusTransitions *prometheus.CounterVec
	totalsClamped     prometheus.Counter
}

// NewMetrics initialises the registry with HTTP and ordering collectors.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "eatandrun_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "eatandrun_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	placed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "eatandrun_orders_placed_total",
		Help: "Orders committed, by menu type.",
	}, []string{"tipo_menu"})
	dropped := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "eatandrun_order_items_dropped_total",
		Help: "Order items discarded before persistence, by reason.",
	}, []string{"reason"})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "eatandrun_order_status_transitions_total",
		Help: "Order status transitions, by target status.",
	}, []string{"status"})
	clamped := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "eatandrun_order_totals_clamped_total",
		Help: "Order totals that the discount drove below zero.",
	})
	registry.MustRegister(requests, duration, placed, dropped, transitions, clamped)
	return &Metrics{
		registry:          registry,
		handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:     requests,
		requestDuration:   duration,
		ordersPlaced:      placed,
		itemsDropped:      dropped,
		statusTransitions: transitions,
		totalsClamped:     clamped,
	}
}

// Handler returns the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records count and latency of every HTTP request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// Registerer exposes the registry for additional collectors.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

// OrderPlaced counts a committed order.
func (m *Metrics) OrderPlaced(menuType string) {
	if m == nil {
		return
	}
	m.ordersPlaced.WithLabelValues(menuType).Inc()
}

// ItemsDropped counts items filtered out of an order.
func (m *Metrics) ItemsDropped(reason string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.itemsDropped.WithLabelValues(reason).Add(float64(n))
}

// StatusChanged counts a status transition.
func (m *Metrics) StatusChanged(status string) {
	if m == nil {
		return
	}
	m.statusTransitions.WithLabelValues(status).Inc()
}

// TotalClamped counts a total floored at zero.
func (m *Metrics) TotalClamped() {
	if m == nil {
		return
	}
	m.totalsClamped.Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Hijack lets websocket upgrades pass through the recorder.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("observability: response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return hj.Hijack()
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
