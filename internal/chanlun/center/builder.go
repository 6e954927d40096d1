// Package center constructs centers (pivot zones): the price overlap of
// three or more consecutive pens, used by BSP class 3.
package center

import (
	"github.com/rs/zerolog"

	"github.com/ridopark/chanlun-engine/internal/logger"
	"github.com/ridopark/chanlun-engine/internal/models"
)

// Config controls center detection.
type Config struct {
	MinPens int
}

func DefaultConfig() Config {
	return Config{MinPens: 3}
}

// Builder clusters consecutive pens into centers wherever their price
// ranges keep overlapping.
type Builder struct {
	cfg Config
	log zerolog.Logger
}

func NewBuilder(cfg Config) *Builder {
	return &Builder{cfg: cfg, log: logger.NewContextLogger("center_builder")}
}

// Build scans pens for maximal runs of three-or-more consecutive pens whose
// [low,high] ranges share a common overlap, and returns one center per run.
// A run extends pen by pen as long as the running intersection stays valid
// (bottom < top); it closes as soon as the next pen would collapse it.
func (b *Builder) Build(pens []models.Pen) []models.Center {
	minPens := b.cfg.MinPens
	if minPens <= 0 {
		minPens = 3
	}
	if len(pens) < minPens {
		return nil
	}

	var out []models.Center
	i := 0
	for i+minPens <= len(pens) {
		top, bottom := rangeOf(pens[i])
		end := i
		for j := i + 1; j < len(pens); j++ {
			pTop, pBottom := rangeOf(pens[j])
			newTop := minF(top, pTop)
			newBottom := maxF(bottom, pBottom)
			if newBottom >= newTop {
				break
			}
			top, bottom = newTop, newBottom
			end = j
		}

		if end-i+1 < minPens {
			i++
			continue
		}

		out = append(out, models.Center{
			Top:         top,
			Bottom:      bottom,
			Direction:   pens[i].Direction,
			StartPenIdx: i,
			EndPenIdx:   end,
		})
		i = end + 1
	}

	return out
}

func rangeOf(p models.Pen) (top, bottom float64) {
	return p.High(), p.Low()
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxF(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
