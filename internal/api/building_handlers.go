package api

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"building-access-service/internal/store"
	"building-access-service/internal/types"
)

// CreateBuilding handles POST /api/v1/buildings
func (h *Handlers) CreateBuilding(w http.ResponseWriter, r *http.Request) {
	var req CreateBuildingRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	timezone := req.Timezone
	if timezone == "" {
		timezone = "UTC"
	}

	building := &types.Building{
		ID:                uuid.NewString(),
		Code:              req.Code,
		Name:              req.Name,
		Address:           req.Address,
		Timezone:          timezone,
		Status:            types.BuildingActive,
		SecurityLevel:     req.SecurityLevel,
		OperatingHours:    req.OperatingHours,
		EmergencyContacts: req.EmergencyContacts,
	}

	if err := h.stores.Buildings.Create(r.Context(), building); err != nil {
		h.storeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, building)
}

// ListBuildings handles GET /api/v1/buildings
func (h *Handlers) ListBuildings(w http.ResponseWriter, r *http.Request) {
	filter := store.BuildingFilter{
		Status: types.BuildingStatus(r.URL.Query().Get("status")),
		Search: r.URL.Query().Get("search"),
		Page:   parsePage(r),
	}

	buildings, total, err := h.stores.Buildings.List(r.Context(), filter)
	if err != nil {
		h.storeError(w, err)
		return
	}

	filter.Page.Normalize()
	h.writeJSON(w, http.StatusOK, ListResponse{
		Items:  buildings,
		Total:  total,
		Limit:  filter.Page.Limit,
		Offset: filter.Page.Offset,
	})
}

// GetBuilding handles GET /api/v1/buildings/{id}
func (h *Handlers) GetBuilding(w http.ResponseWriter, r *http.Request) {
	building, err := h.stores.Buildings.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.storeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, building)
}

// UpdateBuilding handles PUT /api/v1/buildings/{id}
func (h *Handlers) UpdateBuilding(w http.ResponseWriter, r *http.Request) {
	var req UpdateBuildingRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	building, err := h.stores.Buildings.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.storeError(w, err)
		return
	}

	building.Name = req.Name
	building.Address = req.Address
	building.SecurityLevel = req.SecurityLevel
	building.OperatingHours = req.OperatingHours
	building.EmergencyContacts = req.EmergencyContacts
	if req.Timezone != "" {
		building.Timezone = req.Timezone
	}
	if req.Status != "" {
		building.Status = req.Status
	}

	if err := h.stores.Buildings.Update(r.Context(), building); err != nil {
		h.storeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, building)
}

// DeleteBuilding handles DELETE /api/v1/buildings/{id}
func (h *Handlers) DeleteBuilding(w http.ResponseWriter, r *http.Request) {
	if err := h.stores.Buildings.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		h.storeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
