package worker

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/ridopark/chanlun-engine/internal/chanlun/engine"
	"github.com/ridopark/chanlun-engine/internal/models"
)

// SeriesWorker owns the single analytical engine for one (symbol, timeframe)
// series. Submits are serialized through a channel rather than relying on
// the engine's internal mutex alone, because a series must be processed
// strictly in submission order, and a channel-fed loop is the natural way to
// express that ordering guarantee in Go without callers needing to
// coordinate amongst themselves.
type SeriesWorker struct {
	Symbol    string
	Timeframe models.Timeframe

	engine *engine.Engine

	requests chan submitRequest
	newBSPs  chan models.BuySellPoint

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu             sync.RWMutex
	stopped        bool
	submitsHandled int64
	candlesHandled int64

	logger zerolog.Logger
}

type submitRequest struct {
	ctx     context.Context
	candles []models.Candle
	result  chan submitResult
}

type submitResult struct {
	ok             bool
	processedCount int
	errMsg         string
}

// SeriesWorkerConfig holds the per-series construction parameters.
type SeriesWorkerConfig struct {
	Symbol        string
	Timeframe     models.Timeframe
	Engine        engine.Config
	RequestBuffer int
	BSPBuffer     int
}

// NewSeriesWorker creates a worker wrapping a fresh engine for one series.
func NewSeriesWorker(cfg SeriesWorkerConfig, logger zerolog.Logger) *SeriesWorker {
	ctx, cancel := context.WithCancel(context.Background())

	return &SeriesWorker{
		Symbol:    cfg.Symbol,
		Timeframe: cfg.Timeframe,
		engine:    engine.New(cfg.Symbol, cfg.Timeframe, cfg.Engine),
		requests:  make(chan submitRequest, cfg.RequestBuffer),
		newBSPs:   make(chan models.BuySellPoint, cfg.BSPBuffer),
		ctx:       ctx,
		cancel:    cancel,
		logger: logger.With().
			Str("component", "series_worker").
			Str("symbol", cfg.Symbol).
			Str("timeframe", string(cfg.Timeframe)).
			Logger(),
	}
}

// Start begins the worker's request loop.
func (w *SeriesWorker) Start() {
	w.logger.Info().Msg("series worker started")
	w.wg.Add(1)
	go w.run()
}

// Stop drains pending requests and shuts the worker down. Holding the write
// lock here guarantees no Submit call is mid-send on w.requests when it is
// closed.
func (w *SeriesWorker) Stop() {
	w.logger.Info().Msg("stopping series worker")
	w.cancel()

	w.mu.Lock()
	w.stopped = true
	close(w.requests)
	w.mu.Unlock()

	w.wg.Wait()
	close(w.newBSPs)
}

// Submit enqueues a batch for this series and blocks until it is processed
// or the caller's context is cancelled first.
func (w *SeriesWorker) Submit(ctx context.Context, candles []models.Candle) (bool, int, string) {
	w.mu.RLock()
	if w.stopped {
		w.mu.RUnlock()
		return false, 0, "series worker stopped"
	}

	req := submitRequest{ctx: ctx, candles: candles, result: make(chan submitResult, 1)}

	select {
	case w.requests <- req:
		w.mu.RUnlock()
	case <-ctx.Done():
		w.mu.RUnlock()
		return false, 0, ctx.Err().Error()
	case <-w.ctx.Done():
		w.mu.RUnlock()
		return false, 0, "series worker stopped"
	}

	select {
	case res := <-req.result:
		return res.ok, res.processedCount, res.errMsg
	case <-ctx.Done():
		return false, 0, ctx.Err().Error()
	}
}

// NewBuySellPoints exposes freshly confirmed points for an async consumer
// (the pool forwards these to the optional database sink).
func (w *SeriesWorker) NewBuySellPoints() <-chan models.BuySellPoint {
	return w.newBSPs
}

func (w *SeriesWorker) run() {
	defer w.wg.Done()

	for req := range w.requests {
		before := len(w.engine.BSPs(0))
		ok, processed, errMsg := w.engine.Submit(req.ctx, req.candles)

		w.mu.Lock()
		w.submitsHandled++
		if ok {
			w.candlesHandled += int64(processed)
		}
		w.mu.Unlock()

		if ok {
			for _, b := range w.engine.BSPs(0)[before:] {
				select {
				case w.newBSPs <- b:
				default:
					w.logger.Warn().Msg("new bsp buffer full, dropping notification")
				}
			}
		}

		req.result <- submitResult{ok: ok, processedCount: processed, errMsg: errMsg}
	}
}

// Engine exposes the underlying engine for query operations.
func (w *SeriesWorker) Engine() *engine.Engine {
	return w.engine
}

// Status returns lightweight per-series worker statistics.
func (w *SeriesWorker) Status() map[string]interface{} {
	w.mu.RLock()
	defer w.mu.RUnlock()

	return map[string]interface{}{
		"symbol":          w.Symbol,
		"timeframe":       string(w.Timeframe),
		"submits_handled": w.submitsHandled,
		"candles_handled": w.candlesHandled,
		"active":          w.ctx.Err() == nil,
		"metrics":         w.engine.Metrics(),
	}
}
