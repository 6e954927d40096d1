// Package candle implements C1: collapsing inclusion relationships between
// adjacent raw candles into a canonical sequence.
package candle

import (
	"math"

	"github.com/rs/zerolog"

	"github.com/ridopark/chanlun-engine/internal/logger"
	"github.com/ridopark/chanlun-engine/internal/models"
)

// Config controls the canonicalizer's behavior at series boundaries.
type Config struct {
	// SeedDirectionUp is the prior-direction seed used for the very first
	// inclusion merge of a series, before two canonical candles exist to
	// compare. Defaults to true (Up), per the documented convention.
	SeedDirectionUp bool
}

func DefaultConfig() Config {
	return Config{SeedDirectionUp: true}
}

// Canonicalizer consumes raw candles one at a time and produces the
// canonical sequence incrementally. Output is a pure function of the raw
// prefix seen so far: no lookahead.
type Canonicalizer struct {
	cfg    Config
	log    zerolog.Logger
	out    []models.CanonicalCandle
	dir    models.Direction
	rawIdx int
}

func New(cfg Config) *Canonicalizer {
	dir := models.DirectionDown
	if cfg.SeedDirectionUp {
		dir = models.DirectionUp
	}
	return &Canonicalizer{
		cfg: cfg,
		log: logger.NewContextLogger("canonicalizer"),
		dir: dir,
	}
}

// Push folds one raw candle into the canonical sequence and returns the
// canonical candle it produced or merged into.
func (c *Canonicalizer) Push(raw models.Candle) models.CanonicalCandle {
	idx := c.rawIdx
	c.rawIdx++

	if len(c.out) == 0 {
		cc := models.CanonicalCandle{
			Idx:     0,
			TFirst:  raw.Timestamp,
			TLast:   raw.Timestamp,
			High:    raw.High,
			Low:     raw.Low,
			Members: []int{idx},
		}
		c.out = append(c.out, cc)
		return cc
	}

	last := &c.out[len(c.out)-1]
	if includes(*last, raw) {
		if c.dir == models.DirectionUp {
			last.High = math.Max(last.High, raw.High)
			last.Low = math.Max(last.Low, raw.Low)
		} else {
			last.High = math.Min(last.High, raw.High)
			last.Low = math.Min(last.Low, raw.Low)
		}
		last.TLast = raw.Timestamp
		last.Members = append(last.Members, idx)
		return *last
	}

	prev := *last
	cc := models.CanonicalCandle{
		Idx:     len(c.out),
		TFirst:  raw.Timestamp,
		TLast:   raw.Timestamp,
		High:    raw.High,
		Low:     raw.Low,
		Members: []int{idx},
	}
	c.out = append(c.out, cc)
	c.dir = directionFrom(prev, cc)
	return cc
}

// PushAll folds a batch of raw candles and returns the full canonical
// sequence accumulated so far.
func (c *Canonicalizer) PushAll(raws []models.Candle) []models.CanonicalCandle {
	for _, raw := range raws {
		c.Push(raw)
	}
	return c.Result()
}

// Result returns the canonical sequence built so far. The slice is owned by
// the caller; Canonicalizer does not mutate previously returned elements
// except for extending the trailing (open) one via Members/High/Low updates,
// which Push always re-returns by value.
func (c *Canonicalizer) Result() []models.CanonicalCandle {
	out := make([]models.CanonicalCandle, len(c.out))
	copy(out, c.out)
	return out
}

// includes reports whether raw and last stand in an inclusion relation:
// one's [low,high] range contains the other's.
func includes(last models.CanonicalCandle, raw models.Candle) bool {
	if last.High >= raw.High && last.Low <= raw.Low {
		return true
	}
	if raw.High >= last.High && raw.Low <= last.Low {
		return true
	}
	return false
}

// directionFrom compares a newly formed canonical candle to the one before
// it: Up if both high and low rose, Down if both fell, Up on any tie.
func directionFrom(prev, cur models.CanonicalCandle) models.Direction {
	if cur.High > prev.High && cur.Low > prev.Low {
		return models.DirectionUp
	}
	if cur.High < prev.High && cur.Low < prev.Low {
		return models.DirectionDown
	}
	return models.DirectionUp
}

// Canonicalize is a pure convenience wrapper for one-shot batch processing.
func Canonicalize(cfg Config, raws []models.Candle) []models.CanonicalCandle {
	c := New(cfg)
	return c.PushAll(raws)
}
