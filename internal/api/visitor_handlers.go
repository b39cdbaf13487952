package api

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"building-access-service/internal/store"
	"building-access-service/internal/types"
	"building-access-service/internal/visitor"
)

// ScheduleVisitor handles POST /api/v1/visitors
func (h *Handlers) ScheduleVisitor(w http.ResponseWriter, r *http.Request) {
	var req ScheduleVisitorRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	v, err := h.visitorSvc.Schedule(r.Context(), visitor.ScheduleRequest{
		BuildingID:        req.BuildingID,
		FirstName:         req.FirstName,
		LastName:          req.LastName,
		Email:             req.Email,
		Phone:             req.Phone,
		Company:           req.Company,
		VisitorType:       req.VisitorType,
		HostUserID:        req.HostUserID,
		ExpectedArrival:   req.ExpectedArrival,
		ExpectedDeparture: req.ExpectedDeparture,
		AllowedAreas:      req.AllowedAreas,
		PreRegistered:     req.PreRegistered,
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, err.Error())
			return
		}
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.writeJSON(w, http.StatusCreated, v)
}

// ListVisitors handles GET /api/v1/visitors
func (h *Handlers) ListVisitors(w http.ResponseWriter, r *http.Request) {
	filter := store.VisitorFilter{
		BuildingID:   r.URL.Query().Get("buildingId"),
		HostUserID:   r.URL.Query().Get("hostUserId"),
		Status:       types.VisitorStatus(r.URL.Query().Get("status")),
		ArrivingFrom: parseTimeParam(r, "arrivingFrom"),
		ArrivingTo:   parseTimeParam(r, "arrivingTo"),
		Page:         parsePage(r),
	}

	visitors, total, err := h.stores.Visitors.List(r.Context(), filter)
	if err != nil {
		h.storeError(w, err)
		return
	}

	filter.Page.Normalize()
	h.writeJSON(w, http.StatusOK, ListResponse{
		Items:  visitors,
		Total:  total,
		Limit:  filter.Page.Limit,
		Offset: filter.Page.Offset,
	})
}

// GetVisitor handles GET /api/v1/visitors/{id}
func (h *Handlers) GetVisitor(w http.ResponseWriter, r *http.Request) {
	v, err := h.stores.Visitors.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.storeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, v)
}

// CheckInVisitor handles POST /api/v1/visitors/{id}/checkin
func (h *Handlers) CheckInVisitor(w http.ResponseWriter, r *http.Request) {
	var req CheckInVisitorRequest
	if r.ContentLength > 0 {
		if !h.decodeJSON(w, r, &req) {
			return
		}
	}
	if err := req.Validate(); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.visitorSvc.CheckIn(r.Context(), mux.Vars(r)["id"], visitor.CheckInOptions{
		DoorIDs:       req.DoorIDs,
		MaxUsageCount: req.MaxUsageCount,
	})
	if err != nil {
		h.visitorActionError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, CheckInVisitorResponse{
		Visitor: result.Visitor,
		PIN:     result.PIN,
	})
}

// CheckOutVisitor handles POST /api/v1/visitors/{id}/checkout
func (h *Handlers) CheckOutVisitor(w http.ResponseWriter, r *http.Request) {
	v, err := h.visitorSvc.CheckOut(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.visitorActionError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, v)
}

// CancelVisitor handles POST /api/v1/visitors/{id}/cancel
func (h *Handlers) CancelVisitor(w http.ResponseWriter, r *http.Request) {
	var req CancelVisitorRequest
	if r.ContentLength > 0 {
		if !h.decodeJSON(w, r, &req) {
			return
		}
	}

	v, err := h.visitorSvc.Cancel(r.Context(), mux.Vars(r)["id"], req.Reason)
	if err != nil {
		h.visitorActionError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, v)
}

func (h *Handlers) visitorActionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		h.writeError(w, http.StatusNotFound, "Visitor not found")
	case errors.Is(err, visitor.ErrInvalidTransition):
		h.writeError(w, http.StatusConflict, err.Error())
	default:
		h.logger.WithError(err).Error("Visitor operation failed")
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}
