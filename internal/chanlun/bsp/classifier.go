// Package bsp classifies buy/sell points (C6): class 1 at a confirmed
// divergence, class 2 at the pullback that fails to exceed it, and class 3
// at the pullback that retests but does not re-enter a center.
package bsp

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"github.com/ridopark/chanlun-engine/internal/logger"
	"github.com/ridopark/chanlun-engine/internal/models"
)

// Config controls classification.
type Config struct {
	MinConfidence     float64
	PullbackThreshold float64
	Enable1           bool
	Enable2           bool
	Enable3           bool
}

func DefaultConfig() Config {
	return Config{
		MinConfidence:     0.6,
		PullbackThreshold: 0.382,
		Enable1:           true,
		Enable2:           true,
		Enable3:           true,
	}
}

// Classifier derives buy/sell points from a pen sequence, its divergence
// signals and its centers.
type Classifier struct {
	cfg Config
	log zerolog.Logger
}

func NewClassifier(cfg Config) *Classifier {
	return &Classifier{cfg: cfg, log: logger.NewContextLogger("bsp_classifier")}
}

// Classify runs the enabled classes and filters the result by MinConfidence.
func (c *Classifier) Classify(pens []models.Pen, divergences []models.DivergenceSignal, centers []models.Center) []models.BuySellPoint {
	var out []models.BuySellPoint
	var bsp1s []models.BuySellPoint
	if c.cfg.Enable1 {
		bsp1s = c.classifyClass1(pens, divergences)
		out = append(out, bsp1s...)
	}
	if c.cfg.Enable2 {
		out = append(out, c.classifyClass2(pens, bsp1s)...)
	}
	if c.cfg.Enable3 {
		out = append(out, c.classifyClass3(pens, centers)...)
	}

	minConfidence := c.cfg.MinConfidence
	filtered := out[:0]
	for _, p := range out {
		if p.Confidence >= minConfidence {
			filtered = append(filtered, p)
		}
	}
	return filtered
}

// classifyClass1 anchors each divergence on the actual pen that ends it
// (matched by candle index, not by indexing the candle array with a pen
// position). Confidence starts from divergence strength, then is boosted
// toward 1.0 by a 0.5-weighted mean when the signal is multi-level, and
// toward 0.8 when the preceding run of same-direction pens is >= 5.
func (c *Classifier) classifyClass1(pens []models.Pen, divergences []models.DivergenceSignal) []models.BuySellPoint {
	var out []models.BuySellPoint
	for _, d := range divergences {
		d := d
		penIdx, ok := findPenByEndIdx(pens, d.Idx)
		if !ok {
			continue
		}
		p := pens[penIdx]

		confidence := d.Strength
		if d.Level == models.LevelMultiLevel {
			confidence = 0.5*confidence + 0.5*1.0
		}
		if countTrendPens(pens, penIdx) >= 5 {
			confidence = 0.5*confidence + 0.5*0.8
		}
		if confidence > 1.0 {
			confidence = 1.0
		}

		kind := models.Sell1
		if p.Direction == models.PenDown {
			kind = models.Buy1
		}

		out = append(out, models.BuySellPoint{
			Kind:       kind,
			Price:      p.EndPrice,
			Idx:        p.EndIdx,
			Confidence: confidence,
			Divergence: &d,
			Notes:      fmt.Sprintf("%s %s divergence, strength %.4f", d.Level, d.Type, d.Strength),
		})
	}
	return out
}

// classifyClass2 looks two pens past each class-1 point for a pullback P
// whose extremum does not exceed the class-1 extremum, and whose
// retracement ratio against the class-1 pen's range stays within
// PullbackThreshold.
func (c *Classifier) classifyClass2(pens []models.Pen, bsp1s []models.BuySellPoint) []models.BuySellPoint {
	var out []models.BuySellPoint
	for _, b1 := range bsp1s {
		penIdx, ok := findPenByEndIdx(pens, b1.Idx)
		if !ok || penIdx+2 >= len(pens) {
			continue
		}
		point1 := pens[penIdx]
		p := pens[penIdx+2]
		if p.Direction != point1.Direction {
			continue
		}

		var kind models.BSPKind
		var holds bool
		switch b1.Kind {
		case models.Buy1:
			kind = models.Buy2
			holds = p.EndPrice > point1.EndPrice
		case models.Sell1:
			kind = models.Sell2
			holds = p.EndPrice < point1.EndPrice
		default:
			continue
		}
		if !holds {
			continue
		}

		rng := point1.Magnitude()
		if rng == 0 {
			continue
		}
		ratio := math.Abs((p.EndPrice - point1.EndPrice) / rng)
		if ratio > c.cfg.PullbackThreshold {
			continue
		}

		out = append(out, models.BuySellPoint{
			Kind:       kind,
			Price:      p.EndPrice,
			Idx:        p.EndIdx,
			Confidence: 0.7,
			Notes:      fmt.Sprintf("retracement ratio %.4f within threshold %.4f", ratio, c.cfg.PullbackThreshold),
		})
	}
	return out
}

// classifyClass3 looks for a pen that departs a center followed by a
// pullback pen that retests but does not re-enter the center's zone.
func (c *Classifier) classifyClass3(pens []models.Pen, centers []models.Center) []models.BuySellPoint {
	var out []models.BuySellPoint
	for _, ctr := range centers {
		departIdx := ctr.EndPenIdx + 1
		pullbackIdx := departIdx + 1
		if departIdx >= len(pens) || pullbackIdx >= len(pens) {
			continue
		}
		depart := pens[departIdx]
		pullback := pens[pullbackIdx]
		if pullback.Direction == depart.Direction {
			continue
		}

		var kind models.BSPKind
		var holds bool
		if depart.Direction == models.DirectionUp {
			kind = models.Buy3
			holds = pullback.EndPrice > ctr.Top
		} else {
			kind = models.Sell3
			holds = pullback.EndPrice < ctr.Bottom
		}
		if !holds {
			continue
		}

		out = append(out, models.BuySellPoint{
			Kind:       kind,
			Price:      pullback.EndPrice,
			Idx:        pullback.EndIdx,
			Confidence: 0.7,
			Notes:      fmt.Sprintf("pullback to %.4f stays clear of center [%.4f,%.4f]", pullback.EndPrice, ctr.Bottom, ctr.Top),
		})
	}
	return out
}

// findPenByEndIdx locates the pen whose terminating candle index matches
// idx exactly.
func findPenByEndIdx(pens []models.Pen, idx int) (int, bool) {
	for i, p := range pens {
		if p.EndIdx == idx {
			return i, true
		}
	}
	return 0, false
}

// countTrendPens counts consecutive pens of the same direction as pens[at],
// walking backward two at a time (pens alternate, so same-direction pens
// sit two apart).
func countTrendPens(pens []models.Pen, at int) int {
	if at < 0 || at >= len(pens) {
		return 0
	}
	dir := pens[at].Direction
	count := 0
	for i := at; i >= 0; i -= 2 {
		if pens[i].Direction != dir {
			break
		}
		count++
	}
	return count
}
