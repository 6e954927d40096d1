package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/ridopark/chanlun-engine/internal/logger"
	"github.com/ridopark/chanlun-engine/internal/models"
	"github.com/ridopark/chanlun-engine/internal/worker"
	"github.com/ridopark/chanlun-engine/pkg/api/types"
)

// SeriesHandler exposes the core's Submit and Get* operations over HTTP,
// one (symbol, timeframe) worker per series, routed through the pool.
type SeriesHandler struct {
	pool   *worker.Pool
	logger zerolog.Logger
}

// NewSeriesHandler creates a new series API handler.
func NewSeriesHandler(pool *worker.Pool) *SeriesHandler {
	return &SeriesHandler{
		pool:   pool,
		logger: logger.NewContextLogger("series_handler"),
	}
}

func (h *SeriesHandler) seriesVars(r *http.Request) (symbol string, timeframe models.Timeframe, err error) {
	vars := mux.Vars(r)
	symbol = vars["symbol"]
	if err := validateSymbol(symbol); err != nil {
		return "", "", err
	}
	timeframe, err = models.ParseTimeframe(vars["timeframe"])
	return symbol, timeframe, err
}

func lastNParam(r *http.Request) int {
	lastN := 0
	if v := r.URL.Query().Get("lastN"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			lastN = n
		}
	}
	return lastN
}

func writeJSON(w http.ResponseWriter, correlationID string, status int, body interface{}, reqLogger zerolog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Correlation-ID", correlationID)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		reqLogger.Error().Err(err).Msg("failed to encode response")
	}
}

// ListSeries handles GET /api/v1/series and reports every tracked
// (symbol, timeframe) worker's status.
func (h *SeriesHandler) ListSeries(w http.ResponseWriter, r *http.Request) {
	correlationID := uuid.New().String()
	reqLogger := logger.NewRequestLogger(correlationID, r.Method, r.URL.Path)

	metrics := h.pool.Metrics()
	seriesMap, _ := metrics["workers"].(map[string]interface{})
	writeJSON(w, correlationID, http.StatusOK, types.SeriesListResponse{
		Count: len(seriesMap), Series: seriesMap,
	}, reqLogger)
}

// Submit handles POST /api/v1/series/{symbol}/{timeframe}/submit.
func (h *SeriesHandler) Submit(w http.ResponseWriter, r *http.Request) {
	correlationID := uuid.New().String()
	reqLogger := logger.NewRequestLogger(correlationID, r.Method, r.URL.Path)

	symbol, timeframe, err := h.seriesVars(r)
	if err != nil {
		reqLogger.Error().Err(err).Msg("invalid series identifier")
		http.Error(w, "invalid series identifier: "+err.Error(), http.StatusBadRequest)
		return
	}

	var req types.SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		reqLogger.Error().Err(err).Msg("invalid submit body")
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	ok, processed, errMsg := h.pool.Submit(ctx, symbol, timeframe, req.Candles)

	status := http.StatusOK
	if !ok {
		status = http.StatusBadRequest
	}
	writeJSON(w, correlationID, status, types.SubmitResponse{OK: ok, ProcessedCount: processed, ErrorMessage: errMsg}, reqLogger)

	reqLogger.Info().
		Str("symbol", symbol).
		Str("timeframe", string(timeframe)).
		Bool("ok", ok).
		Int("processed", processed).
		Msg("submit completed")
}

// Pens handles GET /api/v1/series/{symbol}/{timeframe}/pens.
func (h *SeriesHandler) Pens(w http.ResponseWriter, r *http.Request) {
	correlationID := uuid.New().String()
	reqLogger := logger.NewRequestLogger(correlationID, r.Method, r.URL.Path)

	symbol, timeframe, err := h.seriesVars(r)
	if err != nil {
		http.Error(w, "invalid series identifier: "+err.Error(), http.StatusBadRequest)
		return
	}
	sw, ok := h.pool.Get(symbol, timeframe)
	if !ok {
		writeJSON(w, correlationID, http.StatusOK, types.PensResponse{Symbol: symbol, Timeframe: string(timeframe)}, reqLogger)
		return
	}
	pens := sw.Engine().Pens(lastNParam(r))
	writeJSON(w, correlationID, http.StatusOK, types.PensResponse{
		Symbol: symbol, Timeframe: string(timeframe), Count: len(pens), Pens: pens,
	}, reqLogger)
}

// Segments handles GET /api/v1/series/{symbol}/{timeframe}/segments.
func (h *SeriesHandler) Segments(w http.ResponseWriter, r *http.Request) {
	correlationID := uuid.New().String()
	reqLogger := logger.NewRequestLogger(correlationID, r.Method, r.URL.Path)

	symbol, timeframe, err := h.seriesVars(r)
	if err != nil {
		http.Error(w, "invalid series identifier: "+err.Error(), http.StatusBadRequest)
		return
	}
	sw, ok := h.pool.Get(symbol, timeframe)
	if !ok {
		writeJSON(w, correlationID, http.StatusOK, types.SegmentsResponse{Symbol: symbol, Timeframe: string(timeframe)}, reqLogger)
		return
	}
	segs := sw.Engine().Segments(lastNParam(r))
	writeJSON(w, correlationID, http.StatusOK, types.SegmentsResponse{
		Symbol: symbol, Timeframe: string(timeframe), Count: len(segs), Segments: segs,
	}, reqLogger)
}

// MACD handles GET /api/v1/series/{symbol}/{timeframe}/macd.
func (h *SeriesHandler) MACD(w http.ResponseWriter, r *http.Request) {
	correlationID := uuid.New().String()
	reqLogger := logger.NewRequestLogger(correlationID, r.Method, r.URL.Path)

	symbol, timeframe, err := h.seriesVars(r)
	if err != nil {
		http.Error(w, "invalid series identifier: "+err.Error(), http.StatusBadRequest)
		return
	}
	sw, ok := h.pool.Get(symbol, timeframe)
	if !ok {
		writeJSON(w, correlationID, http.StatusOK, types.MACDResponse{Symbol: symbol, Timeframe: string(timeframe)}, reqLogger)
		return
	}
	latest, history := sw.Engine().MACD(lastNParam(r))
	writeJSON(w, correlationID, http.StatusOK, types.MACDResponse{
		Symbol: symbol, Timeframe: string(timeframe), Latest: latest, History: history,
	}, reqLogger)
}

// Divergences handles GET /api/v1/series/{symbol}/{timeframe}/divergences.
func (h *SeriesHandler) Divergences(w http.ResponseWriter, r *http.Request) {
	correlationID := uuid.New().String()
	reqLogger := logger.NewRequestLogger(correlationID, r.Method, r.URL.Path)

	symbol, timeframe, err := h.seriesVars(r)
	if err != nil {
		http.Error(w, "invalid series identifier: "+err.Error(), http.StatusBadRequest)
		return
	}
	sw, ok := h.pool.Get(symbol, timeframe)
	if !ok {
		writeJSON(w, correlationID, http.StatusOK, types.DivergencesResponse{Symbol: symbol, Timeframe: string(timeframe)}, reqLogger)
		return
	}
	divs := sw.Engine().Divergences(lastNParam(r))
	writeJSON(w, correlationID, http.StatusOK, types.DivergencesResponse{
		Symbol: symbol, Timeframe: string(timeframe), Count: len(divs), Divergences: divs,
	}, reqLogger)
}

// BSPs handles GET /api/v1/series/{symbol}/{timeframe}/bsps.
func (h *SeriesHandler) BSPs(w http.ResponseWriter, r *http.Request) {
	correlationID := uuid.New().String()
	reqLogger := logger.NewRequestLogger(correlationID, r.Method, r.URL.Path)

	symbol, timeframe, err := h.seriesVars(r)
	if err != nil {
		http.Error(w, "invalid series identifier: "+err.Error(), http.StatusBadRequest)
		return
	}
	sw, ok := h.pool.Get(symbol, timeframe)
	if !ok {
		writeJSON(w, correlationID, http.StatusOK, types.BSPsResponse{Symbol: symbol, Timeframe: string(timeframe)}, reqLogger)
		return
	}
	bsps := sw.Engine().BSPs(lastNParam(r))
	writeJSON(w, correlationID, http.StatusOK, types.BSPsResponse{
		Symbol: symbol, Timeframe: string(timeframe), Count: len(bsps), BSPs: bsps,
	}, reqLogger)
}

func validateSymbol(symbol string) error {
	if symbol == "" {
		return fmt.Errorf("symbol is required")
	}
	if len(symbol) > 12 {
		return fmt.Errorf("symbol too long: maximum 12 characters")
	}
	return nil
}
