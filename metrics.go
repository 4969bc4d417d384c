package guard

import (
	"context"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the security counters of one application instance.
type Metrics struct {
	httpRequests   *prometheus.CounterVec
	authentication *prometheus.CounterVec
	csrfRejections prometheus.Counter
	accessDenied   prometheus.Counter

	registry *prometheus.Registry
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "guard_http_requests_total",
				Help: "HTTP requests by method and status code",
			},
			[]string{"method", "code"},
		),
		authentication: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "guard_authentication_total",
				Help: "Authentication attempts by method and outcome",
			},
			[]string{"method", "outcome"},
		),
		csrfRejections: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "guard_csrf_rejections_total",
			Help: "Requests rejected for a missing or invalid CSRF token",
		}),
		accessDenied: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "guard_access_denied_total",
			Help: "Requests to protected areas without authentication",
		}),
		registry: registry,
	}
	registry.MustRegister(m.httpRequests, m.authentication, m.csrfRejections, m.accessDenied)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveResponse counts a response. Methods outside the known set share the OTHER label.
func (m *Metrics) ObserveResponse(method string, code int) {
	m.httpRequests.WithLabelValues(methodLabel(method), strconv.Itoa(code)).Inc()
}

func methodLabel(method string) string {
	switch method {
	case GET, HEAD, POST, PUT, PATCH, DELETE, OPTIONS, TRACE:
		return method
	}
	return "OTHER"
}

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() Handler {
	h := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	return func(req Request) Response {
		rec := newResponseRecorder()
		h.ServeHTTP(rec, req.Request)
		return rec.Response()
	}
}

// Subscribers feeds security events into the counters.
func (m *Metrics) Subscribers() EventDispatcherConfig {
	return EventDispatcherConfig{
		{
			Event: AuthenticationSuccessEventName,
			Subscriber: func(_ context.Context, e Event) error {
				m.authentication.WithLabelValues(e.(AuthenticationSuccessEvent).Token.Provider(), "success").Inc()
				return nil
			},
			Priority: 10,
		},
		{
			Event: AuthenticationFailureEventName,
			Subscriber: func(_ context.Context, e Event) error {
				m.authentication.WithLabelValues(e.(AuthenticationFailureEvent).Method, "failure").Inc()
				return nil
			},
			Priority: 10,
		},
		{
			Event: CsrfRejectedEventName,
			Subscriber: func(context.Context, Event) error {
				m.csrfRejections.Inc()
				return nil
			},
			Priority: 10,
		},
		{
			Event: AccessDeniedEventName,
			Subscriber: func(context.Context, Event) error {
				m.accessDenied.Inc()
				return nil
			},
			Priority: 10,
		},
	}
}

// responseRecorder adapts an http.Handler to the Response model.
type responseRecorder struct {
	header http.Header
	code   int
	body   []byte
}

func newResponseRecorder() *responseRecorder {
	return &responseRecorder{header: http.Header{}, code: http.StatusOK}
}

func (r *responseRecorder) Header() http.Header {
	return r.header
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	r.body = append(r.body, b...)
	return len(b), nil
}

func (r *responseRecorder) WriteHeader(code int) {
	r.code = code
}

func (r *responseRecorder) Response() Response {
	var headers Headers
	for name, values := range r.header {
		for _, v := range values {
			headers = append(headers, Header{Name: name, Value: v})
		}
	}
	return NewResponse(r.body, nil, r.code, headers...)
}
