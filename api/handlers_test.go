package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/vendor-analytics/inventory"
	"github.com/warp/vendor-analytics/store/memory"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func setupTestRouter(t *testing.T, store Reader) http.Handler {
	t.Helper()
	h := NewHandler(store, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return NewRouter(h, RouterOptions{
		AllowedOrigins: []string{"http://localhost:5173"},
		Metrics:        http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { io.WriteString(w, "# metrics\n") }),
	})
}

func seededStore(t *testing.T) *memory.Memory {
	t.Helper()
	store := memory.NewMemory()
	require.NoError(t, store.ReplaceSummary(context.Background(), []inventory.VendorSummary{
		{
			VendorNumber: 2, VendorName: "Vendor Two", Brand: 20, Description: "Gin",
			TotalPurchaseDollars: decimal.RequireFromString("100.50"),
			TotalSalesDollars:    decimal.RequireFromString("150"),
			GrossProfit:          decimal.RequireFromString("49.50"),
			FreightCost:          decimal.RequireFromString("7"),
			ProfitMargin:         33, StockTurnover: 0.8, SalestoPurchaseRatio: 1.5,
		},
		{
			VendorNumber: 2, VendorName: "Vendor Two", Brand: 21,
			TotalPurchaseDollars: decimal.RequireFromString("10"),
			TotalSalesDollars:    decimal.RequireFromString("20"),
			GrossProfit:          decimal.RequireFromString("10"),
			FreightCost:          decimal.RequireFromString("7"),
			ProfitMargin:         50, StockTurnover: 1, SalestoPurchaseRatio: 2,
		},
		{
			VendorNumber: 4, VendorName: "Vendor Four", Brand: 40,
			TotalPurchaseDollars: decimal.RequireFromString("9"),
			GrossProfit:          decimal.RequireFromString("-9"),
			ProfitMargin:         math.Inf(-1), StockTurnover: math.NaN(),
		},
	}))
	return store
}

func get(t *testing.T, router http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

// failingStore fails every call with err.
type failingStore struct{ err error }

func (f failingStore) ListSummary(context.Context, inventory.SummaryFilter) ([]inventory.VendorSummary, error) {
	return nil, f.err
}

func (f failingStore) ListRuns(context.Context, int) ([]inventory.Run, error) {
	return nil, f.err
}

// =============================================================================
// HEALTH AND METRICS
// =============================================================================

func TestHealth(t *testing.T) {
	rec := get(t, setupTestRouter(t, memory.NewMemory()), "/healthz")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode[map[string]string](t, rec)["status"])
}

func TestMetricsRoute(t *testing.T) {
	rec := get(t, setupTestRouter(t, memory.NewMemory()), "/metrics")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "# metrics")
}

// =============================================================================
// SUMMARY
// =============================================================================

func TestListSummary(t *testing.T) {
	// GIVEN: A persisted summary of three rows
	router := setupTestRouter(t, seededStore(t))

	// WHEN: Listing without parameters
	rec := get(t, router, "/api/summary")

	// THEN: All rows, highest purchase dollars first, money as strings
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")
	resp := decode[SummaryListResponse](t, rec)
	require.Equal(t, 3, resp.Count)
	assert.Equal(t, int64(20), resp.Rows[0].Brand)
	assert.Equal(t, "100.5", resp.Rows[0].TotalPurchaseDollars)
	assert.Equal(t, DefaultSummaryLimit, resp.Limit)
}

func TestListSummary_NonFiniteRatiosAreStrings(t *testing.T) {
	router := setupTestRouter(t, seededStore(t))

	rec := get(t, router, "/api/summary?vendor=4")

	require.Equal(t, http.StatusOK, rec.Code)
	var raw struct {
		Rows []map[string]any `json:"rows"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	require.Len(t, raw.Rows, 1)
	assert.Equal(t, "-Inf", raw.Rows[0]["profit_margin"])
	assert.Equal(t, "NaN", raw.Rows[0]["stock_turnover"])
	assert.Equal(t, 0.0, raw.Rows[0]["sales_to_purchase_ratio"])
}

func TestListSummary_Paging(t *testing.T) {
	router := setupTestRouter(t, seededStore(t))

	rec := get(t, router, "/api/summary?limit=1&offset=1")

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[SummaryListResponse](t, rec)
	require.Len(t, resp.Rows, 1)
	assert.Equal(t, int64(21), resp.Rows[0].Brand)
	assert.Equal(t, 1, resp.Offset)
}

func TestListSummary_BadParameters(t *testing.T) {
	router := setupTestRouter(t, seededStore(t))

	for _, path := range []string{
		"/api/summary?vendor=abc",
		"/api/summary?limit=0",
		"/api/summary?limit=5000",
		"/api/summary?offset=-1",
		"/api/summary?offset=x",
	} {
		rec := get(t, router, path)
		assert.Equal(t, http.StatusBadRequest, rec.Code, path)
		assert.NotEmpty(t, decode[ErrorResponse](t, rec).Error, path)
	}
}

func TestListSummary_NotBuiltYet(t *testing.T) {
	// GIVEN: A store without vendor_sales_summary
	router := setupTestRouter(t, memory.NewMemory())

	// WHEN: Listing
	rec := get(t, router, "/api/summary")

	// THEN: 409 tells the caller to summarize first
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, decode[ErrorResponse](t, rec).Error, "summarize")
}

func TestListSummary_StoreFailure(t *testing.T) {
	router := setupTestRouter(t, failingStore{err: errors.New("connection reset")})

	rec := get(t, router, "/api/summary")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestGetSummaryRow(t *testing.T) {
	router := setupTestRouter(t, seededStore(t))

	rec := get(t, router, "/api/summary/2/21")
	require.Equal(t, http.StatusOK, rec.Code)
	row := decode[SummaryDTO](t, rec)
	assert.Equal(t, int64(2), row.VendorNumber)
	assert.Equal(t, int64(21), row.Brand)

	assert.Equal(t, http.StatusNotFound, get(t, router, "/api/summary/2/99").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, router, "/api/summary/2/x").Code)
}

// =============================================================================
// VENDORS
// =============================================================================

func TestGetVendor(t *testing.T) {
	// GIVEN: Vendor 2 with two brands
	router := setupTestRouter(t, seededStore(t))

	// WHEN: Fetching the rollup
	rec := get(t, router, "/api/vendors/2")

	// THEN: Sums across brands, freight counted once
	require.Equal(t, http.StatusOK, rec.Code)
	v := decode[VendorDTO](t, rec)
	assert.Equal(t, "Vendor Two", v.VendorName)
	assert.Equal(t, 2, v.Brands)
	assert.Equal(t, "110.5", v.TotalPurchaseDollars)
	assert.Equal(t, "170", v.TotalSalesDollars)
	assert.Equal(t, "59.5", v.GrossProfit)
	assert.Equal(t, "7", v.FreightCost)
}

func TestGetVendor_NotFound(t *testing.T) {
	router := setupTestRouter(t, seededStore(t))

	assert.Equal(t, http.StatusNotFound, get(t, router, "/api/vendors/999").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, router, "/api/vendors/abc").Code)
}

// =============================================================================
// RUNS
// =============================================================================

func TestListRuns(t *testing.T) {
	store := memory.NewMemory()
	start := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	done := start.Add(time.Minute)
	require.NoError(t, store.SaveRun(context.Background(), inventory.Run{
		ID: "old", Kind: inventory.RunLoad, Status: inventory.RunSucceeded, Rows: 10, StartedAt: start, CompletedAt: &done,
	}))
	require.NoError(t, store.SaveRun(context.Background(), inventory.Run{
		ID: "new", Kind: inventory.RunSummarize, Status: inventory.RunRunning, StartedAt: start.Add(time.Hour),
	}))
	router := setupTestRouter(t, store)

	rec := get(t, router, "/api/runs")
	require.Equal(t, http.StatusOK, rec.Code)
	runs := decode[[]RunDTO](t, rec)
	require.Len(t, runs, 2)
	assert.Equal(t, "new", runs[0].ID)
	assert.Empty(t, runs[0].CompletedAt)
	assert.Equal(t, "succeeded", runs[1].Status)
	assert.NotEmpty(t, runs[1].CompletedAt)

	runs = decode[[]RunDTO](t, get(t, router, "/api/runs?limit=1"))
	assert.Len(t, runs, 1)

	assert.Equal(t, http.StatusBadRequest, get(t, router, "/api/runs?limit=0").Code)
}

func TestCORSPreflight(t *testing.T) {
	router := setupTestRouter(t, memory.NewMemory())
	req := httptest.NewRequest(http.MethodOptions, "/api/summary", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRatio_JSONRoundTrip(t *testing.T) {
	for _, f := range []float64{1.25, 0, math.Inf(1), math.Inf(-1)} {
		data, err := json.Marshal(Ratio(f))
		require.NoError(t, err)
		var back Ratio
		require.NoError(t, json.Unmarshal(data, &back))
		assert.Equal(t, f, float64(back))
	}

	data, err := json.Marshal(Ratio(math.NaN()))
	require.NoError(t, err)
	assert.JSONEq(t, `"NaN"`, string(data))
	var back Ratio
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, math.IsNaN(float64(back)))

	assert.Error(t, json.Unmarshal([]byte(`"lots"`), &back))
}
