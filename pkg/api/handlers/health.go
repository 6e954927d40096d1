package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ridopark/chanlun-engine/internal/database"
	"github.com/ridopark/chanlun-engine/internal/health"
	"github.com/ridopark/chanlun-engine/internal/logger"
	"github.com/ridopark/chanlun-engine/internal/worker"
	"github.com/ridopark/chanlun-engine/pkg/api/types"
)

// HealthHandler exposes the Health check and Get status operations.
type HealthHandler struct {
	monitor *health.Monitor
	pool    *worker.Pool
	db      *database.DB // nil when no confirmed-record sink is configured
	logger  zerolog.Logger
	version string
}

// NewHealthHandler creates a new health check handler. db may be nil.
func NewHealthHandler(monitor *health.Monitor, pool *worker.Pool, db *database.DB, version string) *HealthHandler {
	return &HealthHandler{
		monitor: monitor,
		pool:    pool,
		db:      db,
		logger:  logger.NewContextLogger("health_handler"),
		version: version,
	}
}

// GetHealth handles GET /api/v1/health.
func (h *HealthHandler) GetHealth(w http.ResponseWriter, r *http.Request) {
	correlationID := uuid.New().String()
	reqLogger := logger.NewRequestLogger(correlationID, r.Method, r.URL.Path)

	result := h.monitor.Check()

	response := &types.HealthResponse{
		Status:    result.Status.String(),
		LatencyMs: result.LatencyMs,
		Message:   result.Message,
		Timestamp: time.Now(),
		Version:   h.version,
		Components: map[string]interface{}{
			"worker_pool": h.pool.Status(),
		},
	}
	if h.db != nil {
		response.Components["bsp_sink"] = h.db.Status(r.Context())
	}

	statusCode := http.StatusOK
	if result.Status == health.Unhealthy {
		statusCode = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Correlation-ID", correlationID)
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		reqLogger.Error().Err(err).Msg("failed to encode health response")
		return
	}

	reqLogger.Info().Str("status", response.Status).Msg("health check completed")
}

// GetStatus handles GET /api/v1/status.
func (h *HealthHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	correlationID := uuid.New().String()
	reqLogger := logger.NewRequestLogger(correlationID, r.Method, r.URL.Path)

	report := h.monitor.StatusReport()
	response := &types.StatusResponse{
		ActiveEngine:     report.ActiveEngine.String(),
		FailoverEnabled:  report.FailoverEnabled,
		PrimaryFailures:  report.PrimaryFailures,
		BackupFailures:   report.BackupFailures,
		LastSwitchReason: report.LastSwitchReason,
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Correlation-ID", correlationID)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		reqLogger.Error().Err(err).Msg("failed to encode status response")
	}
}
