package types

import (
	"time"

	"github.com/ridopark/chanlun-engine/internal/models"
)

// SeriesListResponse is the response for the Get series operation, one
// entry per (symbol, timeframe) the pool currently tracks.
type SeriesListResponse struct {
	Count  int                    `json:"count"`
	Series map[string]interface{} `json:"series"`
}

// SubmitRequest is the body of POST /api/v1/series/{symbol}/{timeframe}/submit.
type SubmitRequest struct {
	Candles []models.Candle `json:"candles" validate:"required,min=1"`
}

// SubmitResponse mirrors the core's Submit return shape.
type SubmitResponse struct {
	OK             bool   `json:"ok"`
	ProcessedCount int    `json:"processed_count"`
	ErrorMessage   string `json:"error_message,omitempty"`
}

// PensResponse is the response for the Get pens operation.
type PensResponse struct {
	Symbol    string        `json:"symbol"`
	Timeframe string        `json:"timeframe"`
	Count     int           `json:"count"`
	Pens      []models.Pen  `json:"pens"`
}

// SegmentsResponse is the response for the Get segments operation.
type SegmentsResponse struct {
	Symbol    string            `json:"symbol"`
	Timeframe string            `json:"timeframe"`
	Count     int               `json:"count"`
	Segments  []models.Segment  `json:"segments"`
}

// MACDResponse is the response for the Get MACD operation.
type MACDResponse struct {
	Symbol    string             `json:"symbol"`
	Timeframe string             `json:"timeframe"`
	Latest    models.MACDValue   `json:"latest"`
	History   []models.MACDValue `json:"history"`
}

// DivergencesResponse is the response for the Get divergences operation.
type DivergencesResponse struct {
	Symbol      string                     `json:"symbol"`
	Timeframe   string                     `json:"timeframe"`
	Count       int                        `json:"count"`
	Divergences []models.DivergenceSignal  `json:"divergences"`
}

// BSPsResponse is the response for the Get BSPs operation.
type BSPsResponse struct {
	Symbol    string                `json:"symbol"`
	Timeframe string                `json:"timeframe"`
	Count     int                   `json:"count"`
	BSPs      []models.BuySellPoint `json:"bsps"`
}

// HealthResponse is the response for the Health check operation.
type HealthResponse struct {
	Status     string                 `json:"status"`
	LatencyMs  float64                `json:"latency_ms"`
	Message    string                 `json:"message"`
	Timestamp  time.Time              `json:"timestamp"`
	Version    string                 `json:"version"`
	Components map[string]interface{} `json:"components,omitempty"`
}

// StatusResponse is the response for the Get status operation.
type StatusResponse struct {
	ActiveEngine     string `json:"active_engine"`
	FailoverEnabled  bool   `json:"failover_enabled"`
	PrimaryFailures  int32  `json:"primary_failures"`
	BackupFailures   int32  `json:"backup_failures"`
	LastSwitchReason string `json:"last_switch_reason,omitempty"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error         string    `json:"error"`
	Message       string    `json:"message"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}
