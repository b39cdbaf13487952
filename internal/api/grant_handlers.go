package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"building-access-service/internal/access"
	"building-access-service/internal/store"
	"building-access-service/internal/types"
)

// GeneratePIN handles POST /api/v1/access/grants
func (h *Handlers) GeneratePIN(w http.ResponseWriter, r *http.Request) {
	var req GeneratePINRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.accessSvc.GeneratePIN(r.Context(), access.GenerateRequest{
		UserID:        req.UserID,
		BuildingID:    req.BuildingID,
		DoorIDs:       req.DoorIDs,
		AccessType:    req.AccessType,
		ValidFrom:     req.ValidFrom,
		ValidUntil:    req.ValidUntil,
		MaxUsageCount: req.MaxUsageCount,
		Schedule:      req.Schedule,
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, err.Error())
			return
		}
		// Remaining service errors are request problems (unknown doors,
		// foreign-building doors, bad windows)
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// The raw PIN appears in this response exactly once and is never
	// persisted or logged
	h.writeJSON(w, http.StatusCreated, GeneratePINResponse{
		Grant: result.Grant,
		PIN:   result.PIN,
	})
}

// ListGrants handles GET /api/v1/access/grants
func (h *Handlers) ListGrants(w http.ResponseWriter, r *http.Request) {
	filter := store.GrantFilter{
		BuildingID: r.URL.Query().Get("buildingId"),
		UserID:     r.URL.Query().Get("userId"),
		Status:     types.GrantStatus(r.URL.Query().Get("status")),
		AccessType: types.AccessType(r.URL.Query().Get("accessType")),
		Page:       parsePage(r),
	}

	grants, total, err := h.stores.Grants.List(r.Context(), filter)
	if err != nil {
		h.storeError(w, err)
		return
	}

	filter.Page.Normalize()
	h.writeJSON(w, http.StatusOK, ListResponse{
		Items:  grants,
		Total:  total,
		Limit:  filter.Page.Limit,
		Offset: filter.Page.Offset,
	})
}

// GetGrant handles GET /api/v1/access/grants/{id}
func (h *Handlers) GetGrant(w http.ResponseWriter, r *http.Request) {
	grant, err := h.stores.Grants.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.storeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, grant)
}

// SuspendGrant handles POST /api/v1/access/grants/{id}/suspend
func (h *Handlers) SuspendGrant(w http.ResponseWriter, r *http.Request) {
	h.grantAction(w, r, h.accessSvc.Suspend)
}

// RevokeGrant handles POST /api/v1/access/grants/{id}/revoke
func (h *Handlers) RevokeGrant(w http.ResponseWriter, r *http.Request) {
	h.grantAction(w, r, h.accessSvc.Revoke)
}

// ReactivateGrant handles POST /api/v1/access/grants/{id}/reactivate
func (h *Handlers) ReactivateGrant(w http.ResponseWriter, r *http.Request) {
	grantID := mux.Vars(r)["id"]
	if err := h.accessSvc.Reactivate(r.Context(), grantID); err != nil {
		h.grantActionError(w, err)
		return
	}
	h.respondWithGrant(w, r, grantID)
}

// grantAction runs a reasoned lifecycle operation against the grant named
// in the path
func (h *Handlers) grantAction(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, grantID, reason string) error) {
	var req GrantActionRequest
	if r.ContentLength > 0 {
		if !h.decodeJSON(w, r, &req) {
			return
		}
	}

	grantID := mux.Vars(r)["id"]
	if err := op(r.Context(), grantID, req.Reason); err != nil {
		h.grantActionError(w, err)
		return
	}
	h.respondWithGrant(w, r, grantID)
}

func (h *Handlers) grantActionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		h.writeError(w, http.StatusNotFound, "Grant not found")
	case errors.Is(err, access.ErrInvalidTransition):
		h.writeError(w, http.StatusConflict, err.Error())
	default:
		h.logger.WithError(err).Error("Grant operation failed")
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func (h *Handlers) respondWithGrant(w http.ResponseWriter, r *http.Request, grantID string) {
	grant, err := h.stores.Grants.Get(r.Context(), grantID)
	if err != nil {
		h.storeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, grant)
}

// BulkSuspendGrants handles POST /api/v1/access/grants/bulk/suspend
func (h *Handlers) BulkSuspendGrants(w http.ResponseWriter, r *http.Request) {
	h.bulkGrantAction(w, r, h.accessSvc.BulkSuspend)
}

// BulkRevokeGrants handles POST /api/v1/access/grants/bulk/revoke
func (h *Handlers) BulkRevokeGrants(w http.ResponseWriter, r *http.Request) {
	h.bulkGrantAction(w, r, h.accessSvc.BulkRevoke)
}

// bulkGrantAction applies a lifecycle operation to each id best-effort and
// reports per-id outcomes with 200 regardless of individual failures
func (h *Handlers) bulkGrantAction(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, grantIDs []string, reason string) []access.BulkResult) {
	var req BulkGrantRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	results := op(r.Context(), req.GrantIDs, req.Reason)
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"results": results,
	})
}

// ValidateAccess handles POST /api/v1/access/validate, the hot path called
// by door hardware on every PIN entry. Denials return 200 with the denial
// result; only infrastructure failures surface as errors.
func (h *Handlers) ValidateAccess(w http.ResponseWriter, r *http.Request) {
	var req ValidateAccessRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	decision, err := h.accessSvc.Validate(r.Context(), access.ValidateRequest{
		PIN:        req.PIN,
		DoorID:     req.DoorID,
		Direction:  req.Direction,
		Method:     req.Method,
		DeviceInfo: req.DeviceInfo,
	})
	if err != nil {
		if errors.Is(err, access.ErrDoorNotFound) {
			h.writeError(w, http.StatusNotFound, "Door not found")
			return
		}
		h.logger.WithError(err).Error("Access validation failed")
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	resp := ValidateAccessResponse{
		Allowed:   decision.Allowed(),
		Result:    decision.Result,
		Timestamp: decision.LogEntry.Timestamp,
	}
	if decision.Grant != nil {
		resp.GrantID = decision.Grant.ID
		resp.UserID = decision.Grant.UserID
	}

	h.writeJSON(w, http.StatusOK, resp)
}
