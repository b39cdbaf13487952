package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"building-access-service/internal/access"
	"building-access-service/internal/database"
	"building-access-service/internal/store"
	"building-access-service/internal/visitor"
)

// BusHealthChecker reports message bus availability for the health endpoint
type BusHealthChecker interface {
	Health(ctx context.Context) error
}

// Handlers contains all HTTP handlers for the API
type Handlers struct {
	db         *database.DB
	stores     *store.Stores
	accessSvc  *access.Service
	visitorSvc *visitor.Service
	busHealth  BusHealthChecker
	logger     *logrus.Logger
	wsHub      *EventHub
	startTime  time.Time
	version    string
}

// NewHandlers creates a new handlers instance. The hub is passed in so the
// caller can wire it as a secondary event publisher before handlers exist.
func NewHandlers(db *database.DB, stores *store.Stores, accessSvc *access.Service, visitorSvc *visitor.Service, busHealth BusHealthChecker, wsHub *EventHub, logger *logrus.Logger, version string) *Handlers {
	return &Handlers{
		db:         db,
		stores:     stores,
		accessSvc:  accessSvc,
		visitorSvc: visitorSvc,
		busHealth:  busHealth,
		logger:     logger,
		wsHub:      wsHub,
		startTime:  time.Now(),
		version:    version,
	}
}

// HealthCheck handles GET /api/v1/health
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	checks := map[string]string{}
	status := "healthy"

	if err := h.db.Health(); err != nil {
		checks["database"] = err.Error()
		status = "unhealthy"
	} else {
		checks["database"] = "ok"
	}

	if h.busHealth != nil {
		if err := h.busHealth.Health(ctx); err != nil {
			checks["message_bus"] = err.Error()
			// The bus buffers and retries, so a down bus degrades rather
			// than fails the service
			if status == "healthy" {
				status = "degraded"
			}
		} else {
			checks["message_bus"] = "ok"
		}
	}

	code := http.StatusOK
	if status == "unhealthy" {
		code = http.StatusServiceUnavailable
	}

	h.writeJSON(w, code, HealthCheckResponse{
		Status:    status,
		Timestamp: time.Now().UTC(),
		Version:   h.version,
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		Checks:    checks,
	})
}

// writeJSON writes a JSON response with the given status code
func (h *Handlers) writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.WithError(err).Error("Failed to encode response")
	}
}

// writeError writes a JSON error response
func (h *Handlers) writeError(w http.ResponseWriter, code int, message string) {
	h.writeJSON(w, code, ErrorResponse{
		Error:     true,
		Message:   message,
		Timestamp: time.Now().Unix(),
	})
}

// decodeJSON parses the request body into target, replying 400 on failure
func (h *Handlers) decodeJSON(w http.ResponseWriter, r *http.Request, target interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid JSON body: "+err.Error())
		return false
	}
	return true
}

// storeError maps store errors to HTTP status codes
func (h *Handlers) storeError(w http.ResponseWriter, err error) {
	switch {
	case err == store.ErrNotFound:
		h.writeError(w, http.StatusNotFound, "Record not found")
	case err == store.ErrConflict:
		h.writeError(w, http.StatusConflict, "Record conflicts with an existing one")
	default:
		h.logger.WithError(err).Error("Storage operation failed")
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// parsePage reads limit/offset query parameters
func parsePage(r *http.Request) store.Page {
	page := store.Page{}
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			page.Limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			page.Offset = n
		}
	}
	return page
}

// parseTimeParam reads an RFC3339 query parameter, nil when absent
func parseTimeParam(r *http.Request, name string) *time.Time {
	v := r.URL.Query().Get(name)
	if v == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil
	}
	return &t
}
