// Package pen implements C3: fractal detection and pen formation over a
// canonical candle sequence under the strict three-candle separation rule.
package pen

import (
	"github.com/rs/zerolog"

	"github.com/ridopark/chanlun-engine/internal/logger"
	"github.com/ridopark/chanlun-engine/internal/models"
)

// Config controls pen formation.
type Config struct {
	UseNewDefinition       bool
	StrictValidation       bool
	MinCandlesBetweenTurns int
}

func DefaultConfig() Config {
	return Config{
		UseNewDefinition:       true,
		StrictValidation:       true,
		MinCandlesBetweenTurns: 3,
	}
}

// Builder turns a canonical candle sequence into pens.
type Builder struct {
	cfg Config
	log zerolog.Logger
}

func NewBuilder(cfg Config) *Builder {
	return &Builder{cfg: cfg, log: logger.NewContextLogger("pen_builder")}
}

// Fractals scans the canonical sequence with a window of three and records
// every strict Top/Bottom fractal. Endpoints (first and last index) are
// excluded since they lack both neighbors.
func Fractals(canon []models.CanonicalCandle) []models.Fractal {
	var out []models.Fractal
	for i := 1; i < len(canon)-1; i++ {
		prev, cur, next := canon[i-1], canon[i], canon[i+1]
		if cur.High > prev.High && cur.High > next.High {
			out = append(out, models.Fractal{Kind: models.FractalTop, Idx: cur.Idx, Price: cur.High})
		}
		if cur.Low < prev.Low && cur.Low < next.Low {
			out = append(out, models.Fractal{Kind: models.FractalBottom, Idx: cur.Idx, Price: cur.Low})
		}
	}
	return out
}

// Build runs fractal enumeration and pen formation over the given canonical
// sequence and returns the confirmed pens plus an optional tentative tail
// pen (the most recently formed pen, not yet superseded by a subsequent one).
func (b *Builder) Build(canon []models.CanonicalCandle) (confirmed []models.Pen, tentative *models.Pen) {
	if len(canon) < 3 {
		return nil, nil
	}

	fractals := Fractals(canon)
	if len(fractals) == 0 {
		return nil, nil
	}

	anchor := fractals[0]
	var pens []models.Pen

	for i := 1; i < len(fractals); i++ {
		f := fractals[i]

		if f.Kind == anchor.Kind {
			if extends(anchor, f) {
				anchor = f
			}
			continue
		}

		if !b.formsValidPen(canon, anchor, f) {
			continue
		}

		dir := models.DirectionUp
		if f.Kind == models.FractalBottom {
			dir = models.DirectionDown
		}
		pens = append(pens, models.Pen{
			Direction:  dir,
			StartIdx:   anchor.Idx,
			EndIdx:     f.Idx,
			StartPrice: anchor.Price,
			EndPrice:   f.Price,
			Confirmed:  true,
		})
		anchor = f
	}

	if len(pens) == 0 {
		return nil, nil
	}

	last := pens[len(pens)-1]
	last.Confirmed = false
	pens[len(pens)-1] = last

	return pens[:len(pens)-1], &pens[len(pens)-1]
}

// extends reports whether f is a more extreme fractal of the same kind as
// anchor: a higher Top, or a lower Bottom.
func extends(anchor, f models.Fractal) bool {
	if f.Kind == models.FractalTop {
		return f.Price > anchor.Price
	}
	return f.Price < anchor.Price
}

func (b *Builder) formsValidPen(canon []models.CanonicalCandle, anchor, f models.Fractal) bool {
	minGap := b.cfg.MinCandlesBetweenTurns
	if minGap <= 0 {
		minGap = 3
	}
	if f.Idx-anchor.Idx < minGap {
		return false
	}

	// Anchor is Bottom -> f is Top: Up pen, needs f.Price > anchor.Price.
	// Anchor is Top -> f is Bottom: Down pen, needs f.Price < anchor.Price.
	if anchor.Kind == models.FractalBottom {
		if f.Price <= anchor.Price {
			return false
		}
	} else {
		if f.Price >= anchor.Price {
			return false
		}
	}

	if b.cfg.StrictValidation && windowsOverlap(canon, anchor.Idx, f.Idx) {
		return false
	}

	return true
}

// windowsOverlap reports whether the price range spanned by one fractal's
// three-candle window contains the other's.
func windowsOverlap(canon []models.CanonicalCandle, aIdx, bIdx int) bool {
	aLow, aHigh := windowRange(canon, aIdx)
	bLow, bHigh := windowRange(canon, bIdx)
	if aLow <= bLow && aHigh >= bHigh {
		return true
	}
	if bLow <= aLow && bHigh >= aHigh {
		return true
	}
	return false
}

func windowRange(canon []models.CanonicalCandle, idx int) (low, high float64) {
	lo := idx - 1
	if lo < 0 {
		lo = 0
	}
	hi := idx + 1
	if hi > len(canon)-1 {
		hi = len(canon) - 1
	}
	low, high = canon[lo].Low, canon[lo].High
	for i := lo + 1; i <= hi; i++ {
		if canon[i].Low < low {
			low = canon[i].Low
		}
		if canon[i].High > high {
			high = canon[i].High
		}
	}
	return low, high
}
