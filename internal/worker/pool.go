package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ridopark/chanlun-engine/internal/chanlun/engine"
	"github.com/ridopark/chanlun-engine/internal/database"
	"github.com/ridopark/chanlun-engine/internal/health"
	"github.com/ridopark/chanlun-engine/internal/models"
)

// Pool manages one SeriesWorker per (symbol, timeframe) combination, reports
// per-series failures to a shared health.Monitor, and optionally forwards
// newly confirmed buy/sell points to a durable sink.
type Pool struct {
	workers   map[string]*SeriesWorker
	workersMu sync.RWMutex

	config    PoolConfig
	engineCfg engine.Config
	health    *health.Monitor
	bspSink   *database.BSPRepository

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	logger zerolog.Logger
}

// PoolConfig holds configuration for the worker pool.
type PoolConfig struct {
	MaxWorkers          int
	RequestBufferSize   int
	BSPBufferSize       int
	HealthCheckInterval time.Duration
}

// DefaultPoolConfig returns a default configuration.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxWorkers:          100,
		RequestBufferSize:   256,
		BSPBufferSize:       64,
		HealthCheckInterval: 30 * time.Second,
	}
}

// NewPool creates a new worker pool. bspSink may be nil, in which case
// confirmed points are computed but never persisted.
func NewPool(config PoolConfig, engineCfg engine.Config, mon *health.Monitor, bspSink *database.BSPRepository, logger zerolog.Logger) *Pool {
	ctx, cancel := context.WithCancel(context.Background())

	return &Pool{
		workers:   make(map[string]*SeriesWorker),
		config:    config,
		engineCfg: engineCfg,
		health:    mon,
		bspSink:   bspSink,
		ctx:       ctx,
		cancel:    cancel,
		logger:    logger.With().Str("component", "worker_pool").Logger(),
	}
}

// Start begins the pool's health checker.
func (p *Pool) Start() {
	p.logger.Info().Int("max_workers", p.config.MaxWorkers).Msg("starting worker pool")
	p.wg.Add(1)
	go p.healthCheck()
}

// Stop gracefully shuts down every series worker and the pool itself.
func (p *Pool) Stop() {
	p.logger.Info().Msg("stopping worker pool")
	p.cancel()

	p.workersMu.Lock()
	for _, w := range p.workers {
		w.Stop()
	}
	p.workersMu.Unlock()

	p.wg.Wait()
	p.logger.Info().Msg("worker pool stopped")
}

func seriesKey(symbol string, timeframe models.Timeframe) string {
	return fmt.Sprintf("%s:%s", symbol, timeframe)
}

// AddSeries adds a new symbol-timeframe worker to the pool.
func (p *Pool) AddSeries(symbol string, timeframe models.Timeframe) (*SeriesWorker, error) {
	p.workersMu.Lock()
	defer p.workersMu.Unlock()

	key := seriesKey(symbol, timeframe)
	if w, exists := p.workers[key]; exists {
		return w, nil
	}

	if len(p.workers) >= p.config.MaxWorkers {
		return nil, fmt.Errorf("maximum worker limit reached (%d)", p.config.MaxWorkers)
	}

	w := NewSeriesWorker(SeriesWorkerConfig{
		Symbol:        symbol,
		Timeframe:     timeframe,
		Engine:        p.engineCfg,
		RequestBuffer: p.config.RequestBufferSize,
		BSPBuffer:     p.config.BSPBufferSize,
	}, p.logger)

	p.workers[key] = w
	w.Start()

	p.wg.Add(1)
	go p.forwardBSPs(w)

	p.logger.Info().
		Str("symbol", symbol).
		Str("timeframe", string(timeframe)).
		Int("total_workers", len(p.workers)).
		Msg("added series worker")

	return w, nil
}

// RemoveSeries removes and stops a symbol-timeframe worker.
func (p *Pool) RemoveSeries(symbol string, timeframe models.Timeframe) error {
	p.workersMu.Lock()
	defer p.workersMu.Unlock()

	key := seriesKey(symbol, timeframe)
	w, exists := p.workers[key]
	if !exists {
		return fmt.Errorf("worker for %s not found", key)
	}

	w.Stop()
	delete(p.workers, key)

	p.logger.Info().
		Str("symbol", symbol).
		Str("timeframe", string(timeframe)).
		Int("total_workers", len(p.workers)).
		Msg("removed series worker")

	return nil
}

// Submit forwards a batch to the series worker, creating one on demand.
func (p *Pool) Submit(ctx context.Context, symbol string, timeframe models.Timeframe, candles []models.Candle) (bool, int, string) {
	w, err := p.AddSeries(symbol, timeframe)
	if err != nil {
		return false, 0, err.Error()
	}

	ok, processed, errMsg := w.Submit(ctx, candles)
	if p.health != nil {
		if ok {
			p.health.RecordSuccess(p.health.Active())
		} else {
			p.health.RecordFailure(p.health.Active())
		}
	}
	return ok, processed, errMsg
}

// Get returns the worker for a series, if it exists.
func (p *Pool) Get(symbol string, timeframe models.Timeframe) (*SeriesWorker, bool) {
	p.workersMu.RLock()
	defer p.workersMu.RUnlock()
	w, ok := p.workers[seriesKey(symbol, timeframe)]
	return w, ok
}

// forwardBSPs drains a series worker's confirmed-point notifications into
// the optional database sink.
func (p *Pool) forwardBSPs(w *SeriesWorker) {
	defer p.wg.Done()

	for b := range w.NewBuySellPoints() {
		if p.bspSink == nil {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := p.bspSink.Insert(ctx, w.Symbol, string(w.Timeframe), b, time.Now()); err != nil {
			p.logger.Error().Err(err).
				Str("symbol", w.Symbol).
				Str("timeframe", string(w.Timeframe)).
				Msg("failed to persist confirmed bsp")
		}
		cancel()
	}
}

// healthCheck periodically logs pool-wide status.
func (p *Pool) healthCheck() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.config.HealthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.workersMu.RLock()
			count := len(p.workers)
			p.workersMu.RUnlock()

			p.logger.Info().
				Int("active_workers", count).
				Msg("worker pool health check")
		}
	}
}

// Metrics returns pool-wide and per-series worker statistics.
func (p *Pool) Metrics() map[string]interface{} {
	p.workersMu.RLock()
	defer p.workersMu.RUnlock()

	details := make(map[string]interface{}, len(p.workers))
	for key, w := range p.workers {
		details[key] = w.Status()
	}

	return map[string]interface{}{
		"active_workers": len(p.workers),
		"max_workers":    p.config.MaxWorkers,
		"workers":        details,
	}
}

// Status returns the pool's lifecycle state.
func (p *Pool) Status() string {
	select {
	case <-p.ctx.Done():
		return "stopped"
	default:
		return "running"
	}
}
