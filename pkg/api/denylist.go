package api

import (
	"net/http"

	"github.com/blulok/blulok-cloud/pkg/access/denylist"
	"github.com/blulok/blulok-cloud/pkg/access/models"
	"github.com/blulok/blulok-cloud/pkg/access/store"
)

// denylistHandler serves denylist inspection and on-demand pruning.
type denylistHandler struct {
	store  store.Store
	pruner *denylist.Pruner
}

// denylistEntryView is the wire shape of a denylist row.
type denylistEntryView struct {
	ID        string `json:"id"`
	DeviceID  string `json:"device_id"`
	UserID    string `json:"user_id"`
	Source    string `json:"source"`
	CreatedBy string `json:"created_by,omitempty"`
	ExpiresAt int64  `json:"expires_at"`
}

func denylistView(entries []models.DenylistEntry) []denylistEntryView {
	views := make([]denylistEntryView, 0, len(entries))
	for _, e := range entries {
		views = append(views, denylistEntryView{
			ID:        e.ID,
			DeviceID:  e.DeviceID,
			UserID:    e.UserID,
			Source:    e.Source,
			CreatedBy: e.CreatedBy,
			ExpiresAt: e.ExpiresAt.Unix(),
		})
	}
	return views
}

// List handles GET /api/v1/denylist.
//
// Exactly one of the device_id and user_id query parameters selects the
// listing dimension.
func (h *denylistHandler) List(w http.ResponseWriter, r *http.Request) {
	deviceID := r.URL.Query().Get("device_id")
	userID := r.URL.Query().Get("user_id")

	switch {
	case deviceID != "" && userID != "":
		errorResponse(w, http.StatusBadRequest, "device_id and user_id are mutually exclusive")
	case deviceID != "":
		entries, err := h.store.ListDenylistByDevice(r.Context(), deviceID)
		if err != nil {
			errorResponse(w, http.StatusInternalServerError, "failed to list denylist")
			return
		}
		writeJSON(w, http.StatusOK, okResponse(denylistView(entries)))
	case userID != "":
		entries, err := h.store.ListDenylistByUser(r.Context(), userID)
		if err != nil {
			errorResponse(w, http.StatusInternalServerError, "failed to list denylist")
			return
		}
		writeJSON(w, http.StatusOK, okResponse(denylistView(entries)))
	default:
		errorResponse(w, http.StatusBadRequest, "device_id or user_id is required")
	}
}

// pruneResponse reports an on-demand sweep result.
type pruneResponse struct {
	Removed int64 `json:"removed"`
}

// Prune handles POST /api/v1/denylist/prune, sweeping expired entries
// immediately instead of waiting for the next scheduled pass.
func (h *denylistHandler) Prune(w http.ResponseWriter, r *http.Request) {
	removed, err := h.pruner.Sweep(r.Context())
	if err != nil {
		errorResponse(w, http.StatusInternalServerError, "prune sweep failed")
		return
	}
	writeJSON(w, http.StatusOK, okResponse(pruneResponse{Removed: removed}))
}
