// Package metrics exposes Prometheus counters for profile traffic and the REST API.
package metrics

import (
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// to prevent metrics from being registered twice
	isMetricsInitVar uint32 = 0

	activeRESTConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "taply_active_rest_connections",
			Help: "Number of in-flight REST API requests",
		},
	)

	responseTimeRESTAPI = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "taply_restapi_response_time_milliseconds",
			Help:    "REST API response time distributions",
			Buckets: []float64{1, 10, 50, 100, 200, 300, 400, 500},
		},
		[]string{"method", "endpoint"},
	)

	// Number of requests processed by the REST API
	RESTRequestMetricsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "taply_rest_requests_processed_total",
		Help: "The total number of processed REST requests",
	}, []string{"method", "endpoint", "status"})

	// Public profile views recorded
	ProfileViewsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "taply_profile_views_total",
		Help: "The total number of recorded profile views",
	})

	// Link clicks recorded
	LinkClicksTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "taply_link_clicks_total",
		Help: "The total number of recorded link clicks",
	})

	// Registrations completed
	RegistrationsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "taply_registrations_total",
		Help: "The total number of accounts registered",
	})
)

func setIsMetricsInit() {
	atomic.StoreUint32(&isMetricsInitVar, 1)
}

func isMetricsInit() bool {
	return atomic.LoadUint32(&isMetricsInitVar) == 1
}

// InitMetrics registers every collector with the default registry. Safe to call more than once.
func InitMetrics() {
	if !isMetricsInit() {
		setIsMetricsInit()

		prometheus.MustRegister(activeRESTConnections)
		prometheus.MustRegister(responseTimeRESTAPI)
		prometheus.MustRegister(RESTRequestMetricsTotal)
		prometheus.MustRegister(ProfileViewsTotal)
		prometheus.MustRegister(LinkClicksTotal)
		prometheus.MustRegister(RegistrationsTotal)
	}
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware counts and times every request by its route pattern.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		activeRESTConnections.Inc()
		defer activeRESTConnections.Dec()

		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		endpoint := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				endpoint = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		RESTRequestMetricsTotal.WithLabelValues(r.Method, endpoint, strconv.Itoa(status)).Inc()
		responseTimeRESTAPI.WithLabelValues(r.Method, endpoint).Observe(float64(time.Since(start).Milliseconds()))
	})
}
