package api

import (
	"errors"
	"net/http"

	"github.com/blulok/blulok-cloud/pkg/access/models"
	"github.com/blulok/blulok-cloud/pkg/access/routepass"
	"github.com/blulok/blulok-cloud/pkg/access/signing"
	"github.com/blulok/blulok-cloud/pkg/access/store"
)

// routePassHandler serves Route Pass issuance and fallback exchange.
type routePassHandler struct {
	store    store.Store
	issuer   *routepass.Orchestrator
	fallback *routepass.FallbackVerifier
}

// issueRequest is the body of POST /api/v1/route-pass.
type issueRequest struct {
	UserID      string   `json:"user_id"`
	FacilityIDs []string `json:"facility_ids,omitempty"`
}

// routePassResponse carries a freshly signed Route Pass.
type routePassResponse struct {
	RoutePass string   `json:"route_pass"`
	JTI       string   `json:"jti"`
	ExpiresAt int64    `json:"expires_at"`
	Audiences []string `json:"audiences"`
}

// Issue handles POST /api/v1/route-pass.
//
// The optional X-Device-Id header pins issuance to a specific enrolled
// device; without it the user's most recently seen issuable device is used.
// FacilityIDs scopes facility admins to their facilities.
func (h *routePassHandler) Issue(w http.ResponseWriter, r *http.Request) {
	var req issueRequest
	if err := decodeJSON(r, &req); err != nil {
		errorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == "" {
		errorResponse(w, http.StatusBadRequest, "user_id is required")
		return
	}

	user, err := h.store.GetUserByID(r.Context(), req.UserID)
	if err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			errorResponse(w, http.StatusNotFound, "user not found")
			return
		}
		errorResponse(w, http.StatusInternalServerError, "failed to load user")
		return
	}
	if !user.Active {
		errorResponse(w, http.StatusForbidden, "user is deactivated")
		return
	}

	ident := routepass.Identity{
		UserID:      user.ID,
		Role:        user.GetRole(),
		FacilityIDs: req.FacilityIDs,
	}

	token, claims, err := h.issuer.IssueForUser(r.Context(), ident, r.Header.Get("X-Device-Id"))
	if err != nil {
		writeIssueError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, okResponse(routePassResponse{
		RoutePass: token,
		JTI:       claims.ID,
		ExpiresAt: claims.ExpiresAt,
		Audiences: claims.Audience,
	}))
}

// fallbackRequest is the body of POST /api/v1/route-pass/fallback.
type fallbackRequest struct {
	Token string `json:"token"`
}

// ExchangeFallback handles POST /api/v1/route-pass/fallback.
//
// The app presents a device-signed emergency token; a fresh bootstrap
// Route Pass with an empty audience set is returned on success.
func (h *routePassHandler) ExchangeFallback(w http.ResponseWriter, r *http.Request) {
	var req fallbackRequest
	if err := decodeJSON(r, &req); err != nil {
		errorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Token == "" {
		errorResponse(w, http.StatusBadRequest, "token is required")
		return
	}

	token, claims, err := h.fallback.Exchange(r.Context(), req.Token)
	if err != nil {
		writeFallbackError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, okResponse(routePassResponse{
		RoutePass: token,
		JTI:       claims.ID,
		ExpiresAt: claims.ExpiresAt,
		Audiences: claims.Audience,
	}))
}

func writeIssueError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, routepass.ErrInvalidDeviceHint):
		errorResponse(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, routepass.ErrNoRegisteredDevice):
		// Conflict rather than not-found: the user exists but must
		// re-enroll a device before a pass can be issued.
		errorResponse(w, http.StatusConflict, err.Error())
	case errors.Is(err, routepass.ErrDeviceKeyMissing):
		errorResponse(w, http.StatusConflict, err.Error())
	default:
		errorResponse(w, http.StatusInternalServerError, "failed to issue route pass")
	}
}

func writeFallbackError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, routepass.ErrMalformedFallback):
		errorResponse(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, routepass.ErrStaleFallback),
		errors.Is(err, signing.ErrBadSignature),
		errors.Is(err, signing.ErrExpired),
		errors.Is(err, signing.ErrBadIssuer),
		errors.Is(err, signing.ErrBadAudience):
		errorResponse(w, http.StatusUnauthorized, "fallback token rejected")
	case errors.Is(err, routepass.ErrUnknownFallbackDevice):
		errorResponse(w, http.StatusNotFound, err.Error())
	default:
		errorResponse(w, http.StatusInternalServerError, "failed to exchange fallback token")
	}
}
