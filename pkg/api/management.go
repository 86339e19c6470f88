package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/blulok/blulok-cloud/internal/logger"
	"github.com/blulok/blulok-cloud/pkg/access/cascade"
	"github.com/blulok/blulok-cloud/pkg/access/models"
	"github.com/blulok/blulok-cloud/pkg/access/store"
)

// managementHandler serves the state-changing operations that feed the
// revocation cascade: user deactivation, unit assignment changes, and key
// sharing revocation. Each mutation commits to the store first, then
// enqueues the matching cascade event.
type managementHandler struct {
	store   store.Store
	cascade *cascade.Listener
}

// DeactivateUser handles POST /api/v1/users/{userID}/deactivate.
func (h *managementHandler) DeactivateUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	if err := h.store.DeactivateUser(r.Context(), userID); err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			errorResponse(w, http.StatusNotFound, "user not found")
			return
		}
		errorResponse(w, http.StatusInternalServerError, "failed to deactivate user")
		return
	}

	h.enqueue(r, cascade.UserDeactivated{
		UserID:  userID,
		ActorID: ActorID(r.Context()),
	})

	writeJSON(w, http.StatusOK, okResponse(map[string]string{"user_id": userID}))
}

// assignRequest is the body of POST /api/v1/units/{unitID}/assignments.
type assignRequest struct {
	TenantID string `json:"tenant_id"`
	Primary  bool   `json:"primary"`
}

// CreateAssignment handles POST /api/v1/units/{unitID}/assignments.
//
// Assigning a tenant clears any denylist entries a previous cascade left
// for them on the unit's locks.
func (h *managementHandler) CreateAssignment(w http.ResponseWriter, r *http.Request) {
	unitID := chi.URLParam(r, "unitID")

	var req assignRequest
	if err := decodeJSON(r, &req); err != nil {
		errorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.TenantID == "" {
		errorResponse(w, http.StatusBadRequest, "tenant_id is required")
		return
	}

	unit, err := h.store.GetUnit(r.Context(), unitID)
	if err != nil {
		if errors.Is(err, models.ErrUnitNotFound) {
			errorResponse(w, http.StatusNotFound, "unit not found")
			return
		}
		errorResponse(w, http.StatusInternalServerError, "failed to load unit")
		return
	}

	assignment := &models.UnitAssignment{
		UnitID:   unitID,
		TenantID: req.TenantID,
		Primary:  req.Primary,
	}
	if err := h.store.CreateAssignment(r.Context(), assignment); err != nil {
		errorResponse(w, http.StatusInternalServerError, "failed to create assignment")
		return
	}

	h.enqueue(r, cascade.TenantAssigned{
		TenantID:   req.TenantID,
		UnitID:     unitID,
		FacilityID: unit.FacilityID,
	})

	writeJSON(w, http.StatusCreated, okResponse(assignment))
}

// RemoveAssignment handles DELETE /api/v1/units/{unitID}/assignments/{tenantID}.
//
// The fms_sync query parameter marks removals that originated in the
// property-management sync.
func (h *managementHandler) RemoveAssignment(w http.ResponseWriter, r *http.Request) {
	unitID := chi.URLParam(r, "unitID")
	tenantID := chi.URLParam(r, "tenantID")

	unit, err := h.store.GetUnit(r.Context(), unitID)
	if err != nil {
		if errors.Is(err, models.ErrUnitNotFound) {
			errorResponse(w, http.StatusNotFound, "unit not found")
			return
		}
		errorResponse(w, http.StatusInternalServerError, "failed to load unit")
		return
	}

	if err := h.store.RemoveAssignment(r.Context(), unitID, tenantID); err != nil {
		errorResponse(w, http.StatusInternalServerError, "failed to remove assignment")
		return
	}

	h.enqueue(r, cascade.TenantUnassigned{
		TenantID:   tenantID,
		UnitID:     unitID,
		FacilityID: unit.FacilityID,
		ActorID:    ActorID(r.Context()),
		ViaFMSSync: r.URL.Query().Get("fms_sync") == "true",
	})

	writeJSON(w, http.StatusOK, okResponse(map[string]string{
		"unit_id":   unitID,
		"tenant_id": tenantID,
	}))
}

// RevokeKeySharing handles POST /api/v1/shares/{shareID}/revoke.
func (h *managementHandler) RevokeKeySharing(w http.ResponseWriter, r *http.Request) {
	shareID := chi.URLParam(r, "shareID")

	share, err := h.store.GetKeySharing(r.Context(), shareID)
	if err != nil {
		if errors.Is(err, models.ErrKeySharingNotFound) {
			errorResponse(w, http.StatusNotFound, "key sharing not found")
			return
		}
		errorResponse(w, http.StatusInternalServerError, "failed to load key sharing")
		return
	}

	unit, err := h.store.GetUnit(r.Context(), share.UnitID)
	if err != nil {
		errorResponse(w, http.StatusInternalServerError, "failed to load unit")
		return
	}

	if err := h.store.SetKeySharingActive(r.Context(), shareID, false); err != nil {
		errorResponse(w, http.StatusInternalServerError, "failed to revoke key sharing")
		return
	}

	h.enqueue(r, cascade.KeySharingRevoked{
		PrimaryTenantID:  share.PrimaryTenantID,
		SharedWithUserID: share.SharedWithUserID,
		UnitID:           share.UnitID,
		FacilityID:       unit.FacilityID,
	})

	writeJSON(w, http.StatusOK, okResponse(map[string]string{"share_id": shareID}))
}

// enqueue hands an event to the cascade listener. A full or stopped queue
// is logged rather than failing the request: the store mutation has already
// committed and the denylist state will be reconciled by the next sync.
func (h *managementHandler) enqueue(r *http.Request, e cascade.Event) {
	if err := h.cascade.Enqueue(r.Context(), e); err != nil {
		logger.Error("failed to enqueue cascade event",
			"event", e.Kind(),
			"error", err,
		)
	}
}
