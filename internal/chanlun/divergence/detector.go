// Package divergence implements C5: pen-level, segment-level and
// multi-level price/MACD divergence detection.
package divergence

import (
	"github.com/rs/zerolog"

	"github.com/ridopark/chanlun-engine/internal/indicators"
	"github.com/ridopark/chanlun-engine/internal/logger"
	"github.com/ridopark/chanlun-engine/internal/models"
)

// Config controls divergence detection.
type Config struct {
	MinPriceChangePct float64 // percent, e.g. 0.5 means 0.5%
	MinMacdChange     float64 // epsilon_macd
	EnableSegment     bool
	IdxTolerance      int
}

func DefaultConfig() Config {
	return Config{
		MinPriceChangePct: 0.5,
		MinMacdChange:     0.01,
		EnableSegment:     true,
		IdxTolerance:      2,
	}
}

// Detector finds divergence signals between successive same-direction
// trend structures (pens or segments) two apart: price makes a new extreme
// while the MACD histogram at the terminating candle moves against it.
type Detector struct {
	cfg Config
	log zerolog.Logger
}

func NewDetector(cfg Config) *Detector {
	return &Detector{cfg: cfg, log: logger.NewContextLogger("divergence_detector")}
}

// PenDivergences compares every pair of pens (Pi, Pj) with j = i+2 for
// divergence.
func (d *Detector) PenDivergences(pens []models.Pen, macd []models.MACDValue) []models.DivergenceSignal {
	var out []models.DivergenceSignal
	for i := 0; i+2 < len(pens); i++ {
		a, b := pens[i], pens[i+2]
		if a.Direction != b.Direction {
			continue
		}
		histA := histAt(macd, a.EndIdx)
		histB := histAt(macd, b.EndIdx)
		areaA := indicators.Area(macd, a.StartIdx, a.EndIdx)
		areaB := indicators.Area(macd, b.StartIdx, b.EndIdx)
		if sig, ok := d.evaluate(a.Direction, a.StartPrice, a.EndPrice, b.EndPrice, b.EndIdx, histA, histB, areaA, areaB, models.LevelPen); ok {
			out = append(out, sig)
		}
	}
	return out
}

// SegmentDivergences compares every pair of segments (Si, Si+2) for
// divergence, using the MACD histogram at each segment's terminating pen's
// actual candle index.
func (d *Detector) SegmentDivergences(segments []models.Segment, macd []models.MACDValue) []models.DivergenceSignal {
	if !d.cfg.EnableSegment {
		return nil
	}
	var out []models.DivergenceSignal
	for i := 0; i+2 < len(segments); i++ {
		a, b := segments[i], segments[i+2]
		if a.Direction != b.Direction {
			continue
		}
		histA := histAt(macd, a.EndPenEndIdx())
		histB := histAt(macd, b.EndPenEndIdx())
		areaA := indicators.Area(macd, startCandleIdx(a), a.EndPenEndIdx())
		areaB := indicators.Area(macd, startCandleIdx(b), b.EndPenEndIdx())
		if sig, ok := d.evaluate(a.Direction, a.StartPrice, a.EndPrice, b.EndPrice, b.EndPenEndIdx(), histA, histB, areaA, areaB, models.LevelSegment); ok {
			out = append(out, sig)
		}
	}
	return out
}

// startCandleIdx returns a segment's first pen's starting candle index, or 0
// if the segment carries no pens.
func startCandleIdx(s models.Segment) int {
	if len(s.Pens) == 0 {
		return 0
	}
	return s.Pens[0].StartIdx
}

// MultiLevel intersects pen-level and segment-level signals by type at
// overlapping structural positions (within IdxTolerance candles), emitting
// a combined signal whose strength is the mean of the two.
func (d *Detector) MultiLevel(penSigs, segSigs []models.DivergenceSignal) []models.DivergenceSignal {
	var out []models.DivergenceSignal
	for _, s := range segSigs {
		for _, p := range penSigs {
			if s.Type != p.Type {
				continue
			}
			if absInt(s.Idx-p.Idx) > d.cfg.IdxTolerance {
				continue
			}
			out = append(out, models.DivergenceSignal{
				Type:     p.Type,
				Level:    models.LevelMultiLevel,
				PriceA:   s.PriceA,
				PriceB:   p.PriceB,
				HistA:    s.HistA,
				HistB:    p.HistB,
				Idx:      p.Idx,
				Strength: (p.Strength + s.Strength) / 2,
			})
		}
	}
	return out
}

// evaluate implements the Bearish/Bullish divergence test: Bearish requires
// an Up structure making a new high while histB - histA < -MinMacdChange;
// Bullish requires a Down structure making a new low while
// histB - histA > +MinMacdChange. Strength is the clamped mean of three
// signals: the relative price move (against basePrice), the pointwise MACD
// histogram delta, and the area-under-histogram ratio between the two
// structures (a smaller second-swing area corroborates the weakening
// momentum the pointwise delta already flagged).
func (d *Detector) evaluate(dir models.Direction, basePrice, priceA, priceB float64, idxB int, histA, histB, areaA, areaB float64, level models.DivergenceLevel) (models.DivergenceSignal, bool) {
	deltaHist := histB - histA

	var typ models.DivergenceType
	var triggers bool
	if dir == models.DirectionUp {
		typ = models.DivergenceBearish
		triggers = priceB > priceA && deltaHist < -d.cfg.MinMacdChange
	} else {
		typ = models.DivergenceBullish
		triggers = priceB < priceA && deltaHist > d.cfg.MinMacdChange
	}
	if !triggers {
		return models.DivergenceSignal{}, false
	}

	priceRel := 0.0
	if basePrice != 0 {
		priceRel = (priceB - priceA) / basePrice
	}
	if absF(priceRel)*100 < d.cfg.MinPriceChangePct {
		return models.DivergenceSignal{}, false
	}

	areaWeaken := 0.0
	if areaA > 0 {
		areaWeaken = clamp01(1 - areaB/areaA)
	}

	strength := (clamp01(absF(priceRel)) + clamp01(absF(deltaHist)) + areaWeaken) / 3

	return models.DivergenceSignal{
		Type:     typ,
		Level:    level,
		PriceA:   priceA,
		PriceB:   priceB,
		HistA:    histA,
		HistB:    histB,
		Idx:      idxB,
		Strength: strength,
	}, true
}

// histAt returns the MACD histogram at idx, falling back to idx-1 when the
// exact candle index is unavailable.
func histAt(macd []models.MACDValue, idx int) float64 {
	if idx >= 0 && idx < len(macd) {
		return macd[idx].Histogram
	}
	if idx-1 >= 0 && idx-1 < len(macd) {
		return macd[idx-1].Histogram
	}
	return 0
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

func absF(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

func absInt(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
