package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"building-access-service/internal/store"
	"building-access-service/internal/types"
)

// CreateDoor handles POST /api/v1/buildings/{id}/doors
func (h *Handlers) CreateDoor(w http.ResponseWriter, r *http.Request) {
	var req CreateDoorRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	buildingID := mux.Vars(r)["id"]
	if _, err := h.stores.Buildings.Get(r.Context(), buildingID); err != nil {
		h.storeError(w, err)
		return
	}

	door := &types.Door{
		ID:            uuid.NewString(),
		BuildingID:    buildingID,
		Code:          req.Code,
		Name:          req.Name,
		Floor:         req.Floor,
		Area:          req.Area,
		DoorType:      req.DoorType,
		LockType:      req.LockType,
		Status:        types.DoorLocked,
		SecurityLevel: req.SecurityLevel,
		HardwareInfo:  req.HardwareInfo,
		AccessMethods: req.AccessMethods,
	}

	if err := h.stores.Doors.Create(r.Context(), door); err != nil {
		h.storeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, door)
}

// ListDoors handles GET /api/v1/buildings/{id}/doors
func (h *Handlers) ListDoors(w http.ResponseWriter, r *http.Request) {
	filter := store.DoorFilter{
		BuildingID: mux.Vars(r)["id"],
		Status:     types.DoorStatus(r.URL.Query().Get("status")),
		Page:       parsePage(r),
	}
	if v := r.URL.Query().Get("floor"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Floor = &n
		}
	}

	doors, total, err := h.stores.Doors.List(r.Context(), filter)
	if err != nil {
		h.storeError(w, err)
		return
	}

	filter.Page.Normalize()
	h.writeJSON(w, http.StatusOK, ListResponse{
		Items:  doors,
		Total:  total,
		Limit:  filter.Page.Limit,
		Offset: filter.Page.Offset,
	})
}

// GetDoor handles GET /api/v1/doors/{id}
func (h *Handlers) GetDoor(w http.ResponseWriter, r *http.Request) {
	door, err := h.stores.Doors.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.storeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, door)
}

// UpdateDoor handles PUT /api/v1/doors/{id}
func (h *Handlers) UpdateDoor(w http.ResponseWriter, r *http.Request) {
	var req UpdateDoorRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	door, err := h.stores.Doors.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.storeError(w, err)
		return
	}

	door.Name = req.Name
	door.Floor = req.Floor
	door.Area = req.Area
	door.DoorType = req.DoorType
	door.LockType = req.LockType
	door.SecurityLevel = req.SecurityLevel
	door.HardwareInfo = req.HardwareInfo
	door.AccessMethods = req.AccessMethods

	if err := h.stores.Doors.Update(r.Context(), door); err != nil {
		h.storeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, door)
}

// DeleteDoor handles DELETE /api/v1/doors/{id}
func (h *Handlers) DeleteDoor(w http.ResponseWriter, r *http.Request) {
	if err := h.stores.Doors.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		h.storeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ReportDoorStatus handles POST /api/v1/doors/{id}/status, called by door
// hardware when its state changes
func (h *Handlers) ReportDoorStatus(w http.ResponseWriter, r *http.Request) {
	var req DoorStatusReportRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	doorID := mux.Vars(r)["id"]
	if err := h.accessSvc.ReportDoorStatus(r.Context(), doorID, req.Status, req.Detail); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "Door not found")
			return
		}
		h.logger.WithError(err).Error("Door status report failed")
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	door, err := h.stores.Doors.Get(r.Context(), doorID)
	if err != nil {
		h.storeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, door)
}
