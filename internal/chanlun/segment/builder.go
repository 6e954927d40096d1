// Package segment implements C4: feature-sequence construction, inclusion
// handling and the two-case gap/no-gap break rule that divides pens into
// segments.
package segment

import (
	"github.com/rs/zerolog"

	"github.com/ridopark/chanlun-engine/internal/invariant"
	"github.com/ridopark/chanlun-engine/internal/logger"
	"github.com/ridopark/chanlun-engine/internal/models"
)

// Config controls segment division.
type Config struct {
	UseFeatureSequence bool
	HandleInclusion    bool
	MinFeatures        int
	GapThreshold       float64
}

func DefaultConfig() Config {
	return Config{
		UseFeatureSequence: true,
		HandleInclusion:    true,
		MinFeatures:        3,
		GapThreshold:       0,
	}
}

// Builder divides a pen sequence into segments.
type Builder struct {
	cfg Config
	log zerolog.Logger
}

func NewBuilder(cfg Config) *Builder {
	return &Builder{cfg: cfg, log: logger.NewContextLogger("segment_builder")}
}

// Build divides pens into confirmed segments plus an optional tentative tail
// segment still awaiting its break confirmation.
//
// Fatal misuse (non-alternating pens) is a programmer error: the builder
// asserts the invariant and aborts rather than silently producing nonsense.
func (bu *Builder) Build(pens []models.Pen) (segments []models.Segment, tentative *models.Segment) {
	for i := 1; i < len(pens); i++ {
		invariant.Assert(pens[i].Direction != pens[i-1].Direction,
			"segment builder requires strictly alternating pens, got repeat direction at index %d", i)
	}

	segStart := 0
	for segStart < len(pens) {
		dir := pens[segStart].Direction
		features := bu.buildFeatures(pens, segStart, dir)

		minFeatures := bu.cfg.MinFeatures
		if minFeatures <= 0 {
			minFeatures = 3
		}
		if len(features) < minFeatures {
			return segments, bu.buildTentative(pens, segStart, dir)
		}

		breakPenIdx, found := findBreak(features, dir)
		if !found {
			return segments, bu.buildTentative(pens, segStart, dir)
		}

		segEnd := breakPenIdx - 1
		seg := models.Segment{
			Direction:   dir,
			StartPenIdx: segStart,
			EndPenIdx:   segEnd,
			StartPrice:  pens[segStart].StartPrice,
			EndPrice:    pens[segEnd].EndPrice,
			Pens:        append([]models.Pen{}, pens[segStart:segEnd+1]...),
			Confirmed:   true,
		}
		segments = append(segments, seg)
		segStart = breakPenIdx
	}

	return segments, nil
}

func (bu *Builder) buildTentative(pens []models.Pen, segStart int, dir models.Direction) *models.Segment {
	if segStart >= len(pens) {
		return nil
	}
	last := len(pens) - 1
	return &models.Segment{
		Direction:   dir,
		StartPenIdx: segStart,
		EndPenIdx:   last,
		StartPrice:  pens[segStart].StartPrice,
		EndPrice:    pens[last].EndPrice,
		Pens:        append([]models.Pen{}, pens[segStart:]...),
		Confirmed:   false,
	}
}

// buildFeatures constructs the merged feature sequence for a segment of the
// given direction, starting at segStart: the subsequence of opposite-
// direction pens, with adjacent inclusion merged per the prevailing trend.
func (bu *Builder) buildFeatures(pens []models.Pen, segStart int, dir models.Direction) []models.FeatureElement {
	oppDir := dir.Opposite()
	var processed []models.FeatureElement
	ascending := true

	for i := segStart; i < len(pens); i++ {
		p := pens[i]
		if p.Direction != oppDir {
			continue
		}
		elem := models.FeatureElement{High: p.High(), Low: p.Low(), Direction: p.Direction, PenIdx: i}

		if len(processed) == 0 {
			processed = append(processed, elem)
			continue
		}

		if bu.cfg.HandleInclusion && len(processed) >= 2 {
			p2, p1 := processed[len(processed)-2], processed[len(processed)-1]
			if p1.High > p2.High && p1.Low > p2.Low {
				ascending = true
			} else if p1.High < p2.High && p1.Low < p2.Low {
				ascending = false
			}
		}

		last := &processed[len(processed)-1]
		if bu.cfg.HandleInclusion && featuresOverlap(*last, elem) {
			if ascending {
				last.High = max(last.High, elem.High)
				last.Low = max(last.Low, elem.Low)
			} else {
				last.High = min(last.High, elem.High)
				last.Low = min(last.Low, elem.Low)
			}
			last.PenIdx = elem.PenIdx
			continue
		}

		if ascending {
			elem.HasGapWithPrev = elem.Low > last.High
		} else {
			elem.HasGapWithPrev = elem.High < last.Low
		}
		processed = append(processed, elem)
	}

	return processed
}

// featuresOverlap reports whether a and b stand in an inclusion relation.
func featuresOverlap(a, b models.FeatureElement) bool {
	if a.Low <= b.Low && a.High >= b.High {
		return true
	}
	if b.Low <= a.Low && b.High >= a.High {
		return true
	}
	return false
}

// findBreak walks the feature sequence applying the two-case break rule and
// returns the pen index of the feature (F2) that terminates the segment, per
// the design decision that both the no-gap and gap-confirmed cases break at
// F2's pen.
func findBreak(features []models.FeatureElement, dir models.Direction) (terminusPenIdx int, found bool) {
	for i := 2; i < len(features); i++ {
		f1, f2, f3 := features[i-2], features[i-1], features[i]
		violates3 := violatesDirection(f3, f1, dir)

		if !f2.HasGapWithPrev {
			if violates3 {
				return f2.PenIdx, true
			}
			continue
		}

		if !violates3 {
			continue
		}

		if i+1 >= len(features) {
			return 0, false
		}
		f4 := features[i+1]
		if violatesDirection(f4, f1, dir) {
			return f2.PenIdx, true
		}
	}
	return 0, false
}

// violatesDirection reports whether f makes a new extreme against the
// segment direction relative to f1: for Up segments, a new low; for Down, a
// new high.
func violatesDirection(f, f1 models.FeatureElement, dir models.Direction) bool {
	if dir == models.DirectionUp {
		return f.Low < f1.Low
	}
	return f.High > f1.High
}
