// Package httpapi exposes the TrustHub JSON API over chi.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/netip"
	"time"

	"github.com/go-chi/chi/v5"

	"trusthub.org/internal/auth"
	"trusthub.org/internal/disputes"
	"trusthub.org/internal/domain"
	"trusthub.org/internal/escrow"
	"trusthub.org/internal/jobs"
	"trusthub.org/internal/obs"
	"trusthub.org/internal/store"
)

const serviceName = "trusthub-api"

// Options tunes the HTTP surface. Zero values fall back to defaults.
type Options struct {
	Version      string
	RateBurst    int
	RatePerSec   float64
	MaxBodyBytes int64
	AuthOptions  []auth.Option
	// Peers allowed to set X-Forwarded-For. Empty means the header is ignored.
	TrustedProxies []netip.Prefix
}

// API is the HTTP layer.
type API struct {
	store    store.Store
	auth     *auth.Service
	jobs     *jobs.Service
	escrow   *escrow.Service
	disputes *disputes.Service

	version      string
	maxBodyBytes int64
	proxies      []netip.Prefix
	limiter      *rateLimiter
	router       chi.Router
}

func New(st store.Store, opts Options) *API {
	if opts.RateBurst <= 0 {
		opts.RateBurst = 100
	}
	if opts.RatePerSec <= 0 {
		opts.RatePerSec = 50
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 1 << 20
	}
	a := &API{
		store:        st,
		auth:         auth.NewService(st, opts.AuthOptions...),
		jobs:         jobs.NewService(st),
		escrow:       escrow.NewService(st),
		disputes:     disputes.NewService(st),
		version:      opts.Version,
		maxBodyBytes: opts.MaxBodyBytes,
		proxies:      opts.TrustedProxies,
		limiter:      newRateLimiter(opts.RateBurst, opts.RatePerSec),
	}
	a.router = a.routes()
	return a
}

func (a *API) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(RequestID, ClientIP(a.proxies), LoggingJSON, obs.Instrument, SecurityHeaders, CORS, a.limiter.Middleware)
	r.Use(func(next http.Handler) http.Handler { return MaxBodyBytes(next, a.maxBodyBytes) })
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Get("/healthz", a.Healthz)
	r.Get("/readyz", a.Ready)
	r.Handle("/metrics", obs.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", a.health)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", a.register)
			r.Post("/login", a.login)
			r.Post("/logout", a.logout)
			r.With(a.Authenticate).Get("/me", a.me)
		})

		r.Route("/jobs", func(r chi.Router) {
			r.Get("/", a.listJobs)
			r.Post("/", a.createJob)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", a.getJob)
				r.Post("/submit", a.submitJob)
				r.Group(func(r chi.Router) {
					r.Use(a.Authenticate)
					r.Post("/start", a.startJob)
					r.Post("/deliver", a.deliverJob)
					r.Post("/complete", a.completeJob)
					r.Post("/milestones", a.addMilestone)
				})
				r.Group(func(r chi.Router) {
					r.Use(a.Authenticate, RequireRole(domain.RoleAdmin))
					r.Post("/approve", a.approveJob)
					r.Post("/close", a.closeJob)
				})
			})
		})

		r.Post("/escrow", a.createEscrow)
		r.With(a.Authenticate).Post("/disputes", a.openDispute)

		r.Route("/admin", func(r chi.Router) {
			r.Use(a.Authenticate, RequireRole(domain.RoleAdmin))
			r.Get("/users", a.listUsers)
			r.Post("/kyc/{id}/verify", a.verifyKYC)
			r.Post("/kyc/{id}/reject", a.rejectKYC)
			r.Get("/jobs/pending", a.listPendingJobs)
			r.Get("/disputes", a.listDisputes)
			r.Get("/disputes/{id}", a.getDispute)
			r.Post("/disputes/{id}/assign", a.assignDispute)
			r.Post("/disputes/{id}/resolve", a.resolveDispute)
		})
	})
	return r
}

// Handler returns the fully wrapped router.
func (a *API) Handler() http.Handler {
	return a.router
}

// Close stops background work owned by the API.
func (a *API) Close() {
	a.limiter.Stop()
}

// --- Handlers ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": serviceName,
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := a.store.Ping(ctx); err != nil {
		obs.Error("readiness_failed", map[string]any{"error": err.Error(), "request_id": RequestIDFromContext(r.Context())})
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
