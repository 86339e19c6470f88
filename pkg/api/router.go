package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/blulok/blulok-cloud/internal/logger"
	"github.com/blulok/blulok-cloud/pkg/access/cascade"
	"github.com/blulok/blulok-cloud/pkg/access/denylist"
	"github.com/blulok/blulok-cloud/pkg/access/routepass"
	"github.com/blulok/blulok-cloud/pkg/access/signing"
	"github.com/blulok/blulok-cloud/pkg/access/store"
)

// Deps carries the access core services the API exposes.
type Deps struct {
	Signer   *signing.Service
	Store    store.Store
	Issuer   *routepass.Orchestrator
	Fallback *routepass.FallbackVerifier
	Pruner   *denylist.Pruner
	Cascade  *cascade.Listener
}

// NewRouter creates and configures the chi router with all middleware and
// routes.
//
// Routes:
//   - GET /health - Liveness probe
//   - GET /health/ready - Readiness probe
//   - POST /api/v1/route-pass - Route Pass issuance
//   - POST /api/v1/route-pass/fallback - Fallback token exchange
//   - GET /api/v1/denylist - Denylist inspection
//   - POST /api/v1/denylist/prune - On-demand expired-entry sweep
//   - POST /api/v1/users/{userID}/deactivate - User deactivation
//   - POST /api/v1/units/{unitID}/assignments - Tenant assignment
//   - DELETE /api/v1/units/{unitID}/assignments/{tenantID} - Tenant removal
//   - POST /api/v1/shares/{shareID}/revoke - Key sharing revocation
//
// Everything under /api/v1 requires an operator bearer token.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	// Middleware stack - order matters
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	healthHandler := &healthHandler{store: deps.Store}

	// Health routes - unauthenticated
	r.Route("/health", func(r chi.Router) {
		r.Get("/", healthHandler.Liveness)
		r.Get("/ready", healthHandler.Readiness)
	})

	// Root redirect to health for convenience
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/health", http.StatusTemporaryRedirect)
	})

	routePassHandler := &routePassHandler{
		store:    deps.Store,
		issuer:   deps.Issuer,
		fallback: deps.Fallback,
	}
	denylistHandler := &denylistHandler{
		store:  deps.Store,
		pruner: deps.Pruner,
	}
	managementHandler := &managementHandler{
		store:   deps.Store,
		cascade: deps.Cascade,
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(operatorAuth(serviceVerifier{signer: deps.Signer}))

		r.Route("/route-pass", func(r chi.Router) {
			r.Post("/", routePassHandler.Issue)
			r.Post("/fallback", routePassHandler.ExchangeFallback)
		})

		r.Route("/denylist", func(r chi.Router) {
			r.Get("/", denylistHandler.List)
			r.Post("/prune", denylistHandler.Prune)
		})

		r.Post("/users/{userID}/deactivate", managementHandler.DeactivateUser)

		r.Route("/units/{unitID}/assignments", func(r chi.Router) {
			r.Post("/", managementHandler.CreateAssignment)
			r.Delete("/{tenantID}", managementHandler.RemoveAssignment)
		})

		r.Post("/shares/{shareID}/revoke", managementHandler.RevokeKeySharing)
	})

	return r
}

// requestLogger logs each API request with method, path, status, and
// duration using the internal structured logger.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := middleware.GetReqID(r.Context())

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		logger.Debug("API request completed",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start).String(),
		)
	})
}
