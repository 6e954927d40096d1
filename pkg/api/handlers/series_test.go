package handlers

import (
	"bytes"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/ridopark/chanlun-engine/internal/chanlun/engine"
	"github.com/ridopark/chanlun-engine/internal/health"
	"github.com/ridopark/chanlun-engine/internal/models"
	"github.com/ridopark/chanlun-engine/internal/worker"
	"github.com/ridopark/chanlun-engine/pkg/api/types"
)

func zigzag(n int) []models.Candle {
	out := make([]models.Candle, n)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		amp := 100 + 10*math.Sin(float64(i)*0.3)
		out[i] = models.Candle{
			Symbol:    "AAPL",
			Timeframe: models.Timeframe1m,
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			High:      amp + 5,
			Low:       amp - 5,
			Open:      amp - 2,
			Close:     amp + 2,
			Volume:    1000,
		}
	}
	return out
}

func newTestRouter(t *testing.T) (*mux.Router, *worker.Pool) {
	t.Helper()
	mon := health.NewMonitor(health.DefaultConfig())
	pool := worker.NewPool(worker.DefaultPoolConfig(), engine.DefaultConfig(), mon, nil, zerolog.Nop())
	pool.Start()
	t.Cleanup(pool.Stop)

	r := mux.NewRouter()
	sh := NewSeriesHandler(pool)
	hh := NewHealthHandler(mon, pool, nil, "test")

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/series", sh.ListSeries).Methods("GET")
	api.HandleFunc("/series/{symbol}/{timeframe}/submit", sh.Submit).Methods("POST")
	api.HandleFunc("/series/{symbol}/{timeframe}/pens", sh.Pens).Methods("GET")
	api.HandleFunc("/health", hh.GetHealth).Methods("GET")
	api.HandleFunc("/status", hh.GetStatus).Methods("GET")

	return r, pool
}

func TestSeriesHandler_SubmitThenPens(t *testing.T) {
	r, _ := newTestRouter(t)

	body, _ := json.Marshal(types.SubmitRequest{Candles: zigzag(40)})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/series/AAPL/1m/submit", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("submit status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var submitResp types.SubmitResponse
	if err := json.NewDecoder(rec.Body).Decode(&submitResp); err != nil {
		t.Fatalf("decode submit response: %v", err)
	}
	if !submitResp.OK || submitResp.ProcessedCount != 40 {
		t.Errorf("unexpected submit response: %+v", submitResp)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/series/AAPL/1m/pens", nil)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("pens status = %d", rec.Code)
	}
	var pensResp types.PensResponse
	if err := json.NewDecoder(rec.Body).Decode(&pensResp); err != nil {
		t.Fatalf("decode pens response: %v", err)
	}
	if pensResp.Count != len(pensResp.Pens) {
		t.Errorf("pens count mismatch: %d vs %d entries", pensResp.Count, len(pensResp.Pens))
	}
}

func TestSeriesHandler_PensForUnknownSeriesIsEmpty(t *testing.T) {
	r, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/series/ZZZZ/1d/pens", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp types.PensResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Count != 0 || len(resp.Pens) != 0 {
		t.Errorf("expected empty pens for an untouched series, got %+v", resp)
	}
}

func TestSeriesHandler_SubmitInvalidSymbol(t *testing.T) {
	r, _ := newTestRouter(t)

	body, _ := json.Marshal(types.SubmitRequest{Candles: zigzag(5)})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/series/toolongsymbolname/1m/submit", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHealthHandler_GetHealth(t *testing.T) {
	r, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp types.HealthResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status == "" {
		t.Errorf("expected a non-empty status")
	}
}

func TestHealthHandler_GetStatus(t *testing.T) {
	r, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp types.StatusResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.ActiveEngine == "" {
		t.Errorf("expected a non-empty active engine")
	}
}
