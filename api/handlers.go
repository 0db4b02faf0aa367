/*
handlers.go - HTTP handlers of the report server

PURPOSE:
  Read-only access to the persisted vendor summary and the run history.
  Nothing here computes or writes; `vendorctl summarize` owns the table.

ENDPOINTS:
  GET /healthz                         Liveness
  GET /api/summary                     Summary rows (?vendor=&limit=&offset=)
  GET /api/summary/{vendor}/{brand}    One summary row
  GET /api/vendors/{vendor}            Vendor rollup
  GET /api/runs                        Run history (?limit=)

ERROR HANDLING:
  Errors are returned as JSON with an HTTP status:
  - 400: Malformed path or query parameter
  - 404: No such row or vendor
  - 409: Summary table not built yet (ErrSchema)
  - 500: Anything else

SEE ALSO:
  - dto.go: Response types
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/warp/vendor-analytics/inventory"
)

// Paging limits.
const (
	DefaultSummaryLimit = 100
	MaxSummaryLimit     = 1000
	DefaultRunsLimit    = 50
)

// Reader is what the handlers need from a store.
type Reader interface {
	inventory.SummaryReader
	ListRuns(ctx context.Context, limit int) ([]inventory.Run, error)
}

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store  Reader
	Logger *slog.Logger
}

// NewHandler creates a new handler over store.
func NewHandler(store Reader, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{Store: store, Logger: logger}
}

// =============================================================================
// HEALTH
// =============================================================================

// Health reports that the server is up.
// GET /healthz
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]string{"status": "ok"})
}

// =============================================================================
// SUMMARY ENDPOINTS
// =============================================================================

// ListSummary returns summary rows by descending purchase dollars.
// GET /api/summary?vendor=&limit=&offset=
func (h *Handler) ListSummary(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := inventory.SummaryFilter{Limit: DefaultSummaryLimit}

	if v := q.Get("vendor"); v != "" {
		vendor, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			h.writeError(w, r, http.StatusBadRequest, "Invalid vendor", err)
			return
		}
		filter.VendorNumber = &vendor
	}
	limit, err := intParam(q.Get("limit"), DefaultSummaryLimit)
	if err != nil || limit < 1 || limit > MaxSummaryLimit {
		h.writeError(w, r, http.StatusBadRequest, "limit must be between 1 and "+strconv.Itoa(MaxSummaryLimit), err)
		return
	}
	offset, err := intParam(q.Get("offset"), 0)
	if err != nil || offset < 0 {
		h.writeError(w, r, http.StatusBadRequest, "offset must be a non-negative integer", err)
		return
	}
	filter.Limit, filter.Offset = limit, offset

	rows, err := h.Store.ListSummary(r.Context(), filter)
	if err != nil {
		h.writeStoreError(w, r, "Failed to list summary", err)
		return
	}

	dtos := make([]SummaryDTO, len(rows))
	for i, s := range rows {
		dtos[i] = toSummaryDTO(s)
	}
	render.JSON(w, r, SummaryListResponse{Rows: dtos, Count: len(dtos), Limit: limit, Offset: offset})
}

// GetSummaryRow returns the summary row of one (vendor, brand).
// GET /api/summary/{vendor}/{brand}
func (h *Handler) GetSummaryRow(w http.ResponseWriter, r *http.Request) {
	vendor, err := strconv.ParseInt(chi.URLParam(r, "vendor"), 10, 64)
	if err != nil {
		h.writeError(w, r, http.StatusBadRequest, "Invalid vendor", err)
		return
	}
	brand, err := strconv.ParseInt(chi.URLParam(r, "brand"), 10, 64)
	if err != nil {
		h.writeError(w, r, http.StatusBadRequest, "Invalid brand", err)
		return
	}

	rows, err := h.Store.ListSummary(r.Context(), inventory.SummaryFilter{
		VendorNumber: &vendor,
		Brand:        &brand,
		Limit:        1,
	})
	if err != nil {
		h.writeStoreError(w, r, "Failed to get summary row", err)
		return
	}
	if len(rows) == 0 {
		h.writeStoreError(w, r, "Summary row not found", inventory.ErrNotFound)
		return
	}
	render.JSON(w, r, toSummaryDTO(rows[0]))
}

// GetVendor returns the rollup of all summary rows of a vendor.
// GET /api/vendors/{vendor}
func (h *Handler) GetVendor(w http.ResponseWriter, r *http.Request) {
	vendor, err := strconv.ParseInt(chi.URLParam(r, "vendor"), 10, 64)
	if err != nil {
		h.writeError(w, r, http.StatusBadRequest, "Invalid vendor", err)
		return
	}

	rows, err := h.Store.ListSummary(r.Context(), inventory.SummaryFilter{VendorNumber: &vendor})
	if err != nil {
		h.writeStoreError(w, r, "Failed to get vendor", err)
		return
	}
	if len(rows) == 0 {
		h.writeStoreError(w, r, "Vendor not found", inventory.ErrNotFound)
		return
	}
	render.JSON(w, r, toVendorDTO(inventory.Rollup(vendor, rows)))
}

// =============================================================================
// RUN HISTORY
// =============================================================================

// ListRuns returns the most recent pipeline runs, newest first.
// GET /api/runs?limit=
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r.URL.Query().Get("limit"), DefaultRunsLimit)
	if err != nil || limit < 1 {
		h.writeError(w, r, http.StatusBadRequest, "limit must be a positive integer", err)
		return
	}

	runs, err := h.Store.ListRuns(r.Context(), limit)
	if err != nil {
		h.writeStoreError(w, r, "Failed to list runs", err)
		return
	}

	dtos := make([]RunDTO, len(runs))
	for i, run := range runs {
		dtos[i] = toRunDTO(run)
	}
	render.JSON(w, r, dtos)
}

// =============================================================================
// HELPERS
// =============================================================================

func intParam(v string, def int) (int, error) {
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}

// writeStoreError maps store errors to a status.
func (h *Handler) writeStoreError(w http.ResponseWriter, r *http.Request, message string, err error) {
	switch {
	case errors.Is(err, inventory.ErrNotFound):
		h.writeError(w, r, http.StatusNotFound, message, err)
	case errors.Is(err, inventory.ErrSchema):
		h.writeError(w, r, http.StatusConflict, "Summary not built yet, run `vendorctl summarize`", err)
	default:
		h.Logger.Error(message, slog.String("path", r.URL.Path), slog.String("error", err.Error()))
		h.writeError(w, r, http.StatusInternalServerError, message, err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	render.Status(r, status)
	render.JSON(w, r, resp)
}
