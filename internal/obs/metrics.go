package obs

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	jobTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trusthub_job_transitions_total",
			Help: "Job status transitions by source and target status.",
		},
		[]string{"from", "to"},
	)

	escrowsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trusthub_escrows_created_total",
			Help: "Escrows created by service tier.",
		},
		[]string{"tier"},
	)

	disputesResolved = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trusthub_disputes_resolved_total",
			Help: "Resolved disputes by winning party.",
		},
		[]string{"winner"},
	)

	initOnce sync.Once
)

// Init registers all collectors with the default registry. Safe to call twice.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(httpInFlight, httpRequestsTotal, httpRequestDuration,
			jobTransitions, escrowsCreated, disputesResolved)
	})
}

func Handler() http.Handler {
	return promhttp.Handler()
}

func RecordJobTransition(from, to string) { jobTransitions.WithLabelValues(from, to).Inc() }

func RecordEscrowCreated(tier string) { escrowsCreated.WithLabelValues(tier).Inc() }

func RecordDisputeResolved(winner string) { disputesResolved.WithLabelValues(winner).Inc() }

// Instrument records RPS, latency and in-flight requests. The path label is
// the matched chi route when there is one, CanonicalPath otherwise.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method := r.Method

		httpInFlight.Inc()
		defer httpInFlight.Dec()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)

		path := routeLabel(r)
		duration := time.Since(start).Seconds()
		status := strconv.Itoa(sw.code)

		httpRequestDuration.WithLabelValues(method, path, status).Observe(duration)
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	})
}

func routeLabel(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" && pattern != "/*" {
			return patternToLabel(pattern)
		}
	}
	return CanonicalPath(r.URL.Path)
}

// patternToLabel rewrites chi's {param} segments into :param.
func patternToLabel(pattern string) string {
	segs := strings.Split(pattern, "/")
	for i, s := range segs {
		if strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}") {
			name, _, _ := strings.Cut(s[1:len(s)-1], ":")
			segs[i] = ":" + name
		}
	}
	return strings.Join(segs, "/")
}

// idParents lists the collections whose next path segment is an identifier.
var idParents = map[string]bool{
	"/api/jobs":           true,
	"/api/admin/kyc":      true,
	"/api/admin/disputes": true,
}

// CanonicalPath collapses identifiers so label cardinality stays bounded.
func CanonicalPath(p string) string {
	if i := strings.IndexByte(p, '?'); i >= 0 {
		p = p[:i]
	}
	p = strings.Trim(p, "/")
	if p == "" {
		return "/"
	}
	segs := strings.Split(p, "/")
	prefix := ""
	for i, s := range segs {
		orig := s
		if idParents[prefix] {
			segs[i] = ":id"
		}
		prefix += "/" + orig
	}
	return "/" + strings.Join(segs, "/")
}

type statusWriter struct {
	http.ResponseWriter
	code        int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.code = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	w.wroteHeader = true
	return w.ResponseWriter.Write(b)
}
