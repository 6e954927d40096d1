// Package engine implements C7: the pipeline orchestrator that sequences
// C1 (canonicalization) through C6 (BSP classification) over one series'
// accumulated candles, deterministically and without mutating state a
// prior call already confirmed.
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ridopark/chanlun-engine/internal/chanlun/bsp"
	"github.com/ridopark/chanlun-engine/internal/chanlun/candle"
	"github.com/ridopark/chanlun-engine/internal/chanlun/center"
	"github.com/ridopark/chanlun-engine/internal/chanlun/divergence"
	"github.com/ridopark/chanlun-engine/internal/chanlun/segment"

	penpkg "github.com/ridopark/chanlun-engine/internal/chanlun/pen"
	"github.com/ridopark/chanlun-engine/internal/indicators"
	"github.com/ridopark/chanlun-engine/internal/logger"
	"github.com/ridopark/chanlun-engine/internal/models"
)

// Config aggregates every component's configuration plus the MACD cache's
// TTL, so one value fully determines a series' pipeline behavior.
type Config struct {
	Canon      candle.Config
	MACD       indicators.Config
	Pen        penpkg.Config
	Segment    segment.Config
	Divergence divergence.Config
	BSP        bsp.Config
	Center     center.Config

	MACDCacheTTL time.Duration
}

func DefaultConfig() Config {
	return Config{
		Canon:        candle.DefaultConfig(),
		MACD:         indicators.DefaultConfig(),
		Pen:          penpkg.DefaultConfig(),
		Segment:      segment.DefaultConfig(),
		Divergence:   divergence.DefaultConfig(),
		BSP:          bsp.DefaultConfig(),
		Center:       center.DefaultConfig(),
		MACDCacheTTL: 5 * time.Minute,
	}
}

// Metrics tracks per-series processing statistics.
type Metrics struct {
	TotalSubmits     int64
	TotalCandles     int64
	AverageLatencyMs float64
	MaxLatencyMs     float64
	LastUpdated      time.Time
}

// Engine holds all state for one (symbol, timeframe) series and recomputes
// the full C1-C6 pipeline over the series' accumulated candles on every
// Submit. Recomputing from the full prefix, rather than threading
// incremental deltas through each component, is what makes processing the
// same series twice byte-identical and keeps one-shot and one-by-one
// ingestion agree on every confirmed record.
type Engine struct {
	symbol    string
	timeframe models.Timeframe
	cfg       Config
	log       zerolog.Logger
	macdCache *indicators.Cache

	mu      sync.RWMutex
	raws    []models.Candle
	canon   *candle.Canonicalizer
	metrics Metrics

	pens             []models.Pen
	tentativePen     *models.Pen
	segments         []models.Segment
	tentativeSegment *models.Segment
	macd             []models.MACDValue
	penDivergences   []models.DivergenceSignal
	segDivergences   []models.DivergenceSignal
	multiDivergences []models.DivergenceSignal
	centers          []models.Center
	bsps             []models.BuySellPoint
}

func New(symbol string, timeframe models.Timeframe, cfg Config) *Engine {
	return &Engine{
		symbol:    symbol,
		timeframe: timeframe,
		cfg:       cfg,
		log:       logger.NewSeriesLogger("chanlun_engine", symbol, timeframe),
		macdCache: indicators.NewCache(cfg.MACDCacheTTL),
		canon:     candle.New(cfg.Canon),
	}
}

// Submit ingests a batch of candles for this series and recomputes the full
// analytical pipeline. It rejects the whole batch, without mutating any
// prior state, if a candle violates the OHLCV invariants or arrives with a
// timestamp earlier than the series' last accepted candle.
func (e *Engine) Submit(ctx context.Context, candles []models.Candle) (ok bool, processedCount int, errMsg string) {
	start := time.Now()
	defer func() { e.updateMetrics(start, processedCount) }()

	e.mu.Lock()
	defer e.mu.Unlock()

	if len(candles) == 0 {
		return true, 0, ""
	}

	lastT := time.Time{}
	if len(e.raws) > 0 {
		lastT = e.raws[len(e.raws)-1].Timestamp
	}
	for i, c := range candles {
		if err := c.Validate(); err != nil {
			be := &models.BatchError{Symbol: e.symbol, Timeframe: string(e.timeframe), FirstBadIndex: i, Count: len(candles) - i, Accepted: false, Err: err}
			return false, 0, be.Error()
		}
		if !lastT.IsZero() && c.Timestamp.Before(lastT) {
			be := &models.BatchError{Symbol: e.symbol, Timeframe: string(e.timeframe), FirstBadIndex: i, Count: len(candles) - i, Accepted: false, Err: models.ErrNonMonotonicTime}
			return false, 0, be.Error()
		}
		lastT = c.Timestamp
	}

	if ctx.Err() != nil {
		return false, 0, ctx.Err().Error()
	}

	e.raws = append(e.raws, candles...)
	canon := e.canon.PushAll(candles)

	if ctx.Err() != nil {
		return false, 0, ctx.Err().Error()
	}
	pens, tentativePen := penpkg.NewBuilder(e.cfg.Pen).Build(canon)

	if ctx.Err() != nil {
		return false, 0, ctx.Err().Error()
	}
	segments, tentativeSegment := segment.NewBuilder(e.cfg.Segment).Build(pens)

	if ctx.Err() != nil {
		return false, 0, ctx.Err().Error()
	}
	closes := indicators.ClosesFrom(canon, e.raws)
	// A batch folded into the last canonical candle by inclusion changes its
	// close without changing the count the cache is keyed by, so the
	// previous Submit's entry no longer matches these closes.
	if len(e.macd) == len(closes) {
		e.macdCache.Clear(e.symbol, e.timeframe)
	}
	macd := indicators.CalculateCached(e.cfg.MACD, e.macdCache, e.symbol, e.timeframe, closes)

	if ctx.Err() != nil {
		return false, 0, ctx.Err().Error()
	}
	det := divergence.NewDetector(e.cfg.Divergence)
	penDivs := det.PenDivergences(pens, macd)
	segDivs := det.SegmentDivergences(segments, macd)
	multiDivs := det.MultiLevel(penDivs, segDivs)

	if ctx.Err() != nil {
		return false, 0, ctx.Err().Error()
	}
	centers := center.NewBuilder(e.cfg.Center).Build(pens)

	allDivs := make([]models.DivergenceSignal, 0, len(penDivs)+len(segDivs)+len(multiDivs))
	allDivs = append(allDivs, penDivs...)
	allDivs = append(allDivs, segDivs...)
	allDivs = append(allDivs, multiDivs...)
	bsps := bsp.NewClassifier(e.cfg.BSP).Classify(pens, allDivs, centers)

	e.pens = pens
	e.tentativePen = tentativePen
	e.segments = segments
	e.tentativeSegment = tentativeSegment
	e.macd = macd
	e.penDivergences = penDivs
	e.segDivergences = segDivs
	e.multiDivergences = multiDivs
	e.centers = centers
	e.bsps = bsps

	e.log.Debug().
		Str("symbol", e.symbol).
		Str("timeframe", string(e.timeframe)).
		Int("submitted", len(candles)).
		Int("pens", len(pens)).
		Int("segments", len(segments)).
		Int("bsps", len(bsps)).
		Msg("series pipeline recomputed")

	return true, len(candles), ""
}

// Pens returns the last n confirmed pens (all of them if n <= 0).
func (e *Engine) Pens(lastN int) []models.Pen {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return windowed(e.pens, lastN)
}

// Segments returns the last n confirmed segments (all of them if n <= 0).
func (e *Engine) Segments(lastN int) []models.Segment {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return windowed(e.segments, lastN)
}

// MACD returns the latest sample plus the last n samples of history.
func (e *Engine) MACD(lastN int) (latest models.MACDValue, history []models.MACDValue) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if len(e.macd) == 0 {
		return models.MACDValue{}, nil
	}
	return e.macd[len(e.macd)-1], windowed(e.macd, lastN)
}

// Divergences returns the last n divergence signals across all levels,
// combined and ordered by their terminating candle index.
func (e *Engine) Divergences(lastN int) []models.DivergenceSignal {
	e.mu.RLock()
	defer e.mu.RUnlock()
	all := make([]models.DivergenceSignal, 0, len(e.penDivergences)+len(e.segDivergences)+len(e.multiDivergences))
	all = append(all, e.penDivergences...)
	all = append(all, e.segDivergences...)
	all = append(all, e.multiDivergences...)
	sortByIdx(all)
	return windowed(all, lastN)
}

// BSPs returns the last n buy/sell points.
func (e *Engine) BSPs(lastN int) []models.BuySellPoint {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return windowed(e.bsps, lastN)
}

// Metrics returns a snapshot of this series' processing statistics.
func (e *Engine) Metrics() Metrics {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.metrics
}

func (e *Engine) updateMetrics(start time.Time, processed int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	latencyMs := float64(time.Since(start).Nanoseconds()) / 1e6
	e.metrics.TotalSubmits++
	e.metrics.TotalCandles += int64(processed)
	if e.metrics.AverageLatencyMs == 0 {
		e.metrics.AverageLatencyMs = latencyMs
	} else {
		e.metrics.AverageLatencyMs = (e.metrics.AverageLatencyMs + latencyMs) / 2
	}
	if latencyMs > e.metrics.MaxLatencyMs {
		e.metrics.MaxLatencyMs = latencyMs
	}
	e.metrics.LastUpdated = time.Now()
}

func windowed[T any](xs []T, lastN int) []T {
	if lastN <= 0 || lastN >= len(xs) {
		out := make([]T, len(xs))
		copy(out, xs)
		return out
	}
	out := make([]T, lastN)
	copy(out, xs[len(xs)-lastN:])
	return out
}

func sortByIdx(sigs []models.DivergenceSignal) {
	for i := 1; i < len(sigs); i++ {
		for j := i; j > 0 && sigs[j].Idx < sigs[j-1].Idx; j-- {
			sigs[j], sigs[j-1] = sigs[j-1], sigs[j]
		}
	}
}
