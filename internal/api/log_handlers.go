package api

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"building-access-service/internal/export"
	"building-access-service/internal/store"
	"building-access-service/internal/types"
)

// logFilterFromQuery builds a log filter from request query parameters
func logFilterFromQuery(r *http.Request) store.LogFilter {
	return store.LogFilter{
		BuildingID: r.URL.Query().Get("buildingId"),
		DoorID:     r.URL.Query().Get("doorId"),
		UserID:     r.URL.Query().Get("userId"),
		VisitorID:  r.URL.Query().Get("visitorId"),
		Result:     types.AccessResult(r.URL.Query().Get("result")),
		From:       parseTimeParam(r, "from"),
		To:         parseTimeParam(r, "to"),
		Page:       parsePage(r),
	}
}

// QueryAccessLogs handles GET /api/v1/access/logs
func (h *Handlers) QueryAccessLogs(w http.ResponseWriter, r *http.Request) {
	filter := logFilterFromQuery(r)

	entries, total, err := h.stores.AccessLogs.Query(r.Context(), filter)
	if err != nil {
		h.storeError(w, err)
		return
	}

	filter.Page.Normalize()
	h.writeJSON(w, http.StatusOK, ListResponse{
		Items:  entries,
		Total:  total,
		Limit:  filter.Page.Limit,
		Offset: filter.Page.Offset,
	})
}

// AccessLogStats handles GET /api/v1/access/logs/stats
func (h *Handlers) AccessLogStats(w http.ResponseWriter, r *http.Request) {
	filter := logFilterFromQuery(r)

	counts, err := h.stores.AccessLogs.CountByResult(r.Context(), filter)
	if err != nil {
		h.storeError(w, err)
		return
	}

	var total int64
	for _, n := range counts {
		total += n
	}

	h.writeJSON(w, http.StatusOK, AccessLogStatsResponse{
		Total:    total,
		ByResult: counts,
	})
}

// ExportAccessLogs handles GET /api/v1/access/logs/export. The filtered
// entries stream back as CSV; passing rowField, columnField, valueField and
// aggregate pivots them into a summary table instead.
func (h *Handlers) ExportAccessLogs(w http.ResponseWriter, r *http.Request) {
	filter := logFilterFromQuery(r)
	filter.Page.Limit = 500

	var records []export.Record
	for {
		entries, _, err := h.stores.AccessLogs.Query(r.Context(), filter)
		if err != nil {
			h.storeError(w, err)
			return
		}
		for _, e := range entries {
			records = append(records, logRecord(e))
		}
		if len(entries) < filter.Page.Limit {
			break
		}
		filter.Page.Offset += filter.Page.Limit
	}

	var data []byte
	var err error

	if rowField := r.URL.Query().Get("rowField"); rowField != "" {
		spec := export.PivotSpec{
			RowField:    rowField,
			ColumnField: r.URL.Query().Get("columnField"),
			ValueField:  r.URL.Query().Get("valueField"),
			Aggregate:   export.Aggregate(r.URL.Query().Get("aggregate")),
		}
		if spec.Aggregate == "" {
			spec.Aggregate = export.AggCount
		}
		data, err = export.ExportPivot(records, spec)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	} else {
		opts := export.Options{}
		if fields := r.URL.Query().Get("fields"); fields != "" {
			opts.Fields = strings.Split(fields, ",")
		}
		data, err = export.Export(records, opts)
		if err != nil {
			h.logger.WithError(err).Error("CSV export failed")
			h.writeError(w, http.StatusInternalServerError, "Export failed")
			return
		}
	}

	filename := fmt.Sprintf("access-logs-%s.csv", time.Now().UTC().Format("2006-01-02"))
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// logRecord flattens a log entry for CSV export
func logRecord(e *types.AccessLogEntry) export.Record {
	return export.Record{
		"id":         e.ID,
		"timestamp":  e.Timestamp,
		"buildingId": e.BuildingID,
		"doorId":     e.DoorID,
		"grantId":    e.GrantID,
		"userId":     e.UserID,
		"visitorId":  e.VisitorID,
		"method":     string(e.Method),
		"direction":  string(e.Direction),
		"result":     string(e.Result),
		"deviceInfo": e.DeviceInfo,
	}
}
