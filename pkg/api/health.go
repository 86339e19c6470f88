package api

import (
	"context"
	"net/http"
	"time"
)

// Pinger is the health slice of the store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// healthHandler serves liveness and readiness probes.
type healthHandler struct {
	store Pinger
}

// Liveness reports that the process is up. It never checks dependencies.
func (h *healthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, Response{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
	})
}

// Readiness reports whether the server can serve traffic. It fails when the
// database is unreachable.
func (h *healthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, Response{
			Status:    "unhealthy",
			Timestamp: time.Now().UTC(),
			Error:     "database unreachable",
		})
		return
	}

	writeJSON(w, http.StatusOK, Response{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
	})
}
