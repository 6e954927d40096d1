package divergence

import (
	"math"
	"testing"

	"github.com/ridopark/chanlun-engine/internal/models"
)

func macdWith(n int, at map[int]float64) []models.MACDValue {
	out := make([]models.MACDValue, n)
	for i, h := range at {
		out[i].Histogram = h
	}
	return out
}

// S6 — pen-level bearish divergence: a higher high on the second Up pen,
// with the MACD histogram at its endpoint weaker than at the first pen's.
func TestPenDivergences_Bearish(t *testing.T) {
	pens := []models.Pen{
		{Direction: models.PenUp, StartIdx: 0, EndIdx: 3, StartPrice: 100, EndPrice: 110},
		{Direction: models.PenDown, StartIdx: 3, EndIdx: 5, StartPrice: 110, EndPrice: 105},
		{Direction: models.PenUp, StartIdx: 5, EndIdx: 9, StartPrice: 105, EndPrice: 115},
	}
	macd := macdWith(10, map[int]float64{3: 2.0, 9: 0.3})

	d := NewDetector(DefaultConfig())
	sigs := d.PenDivergences(pens, macd)

	if len(sigs) != 1 {
		t.Fatalf("expected 1 pen-level divergence, got %d: %+v", len(sigs), sigs)
	}
	s := sigs[0]
	if s.Type != models.DivergenceBearish {
		t.Errorf("expected bearish divergence, got %v", s.Type)
	}
	if s.Level != models.LevelPen {
		t.Errorf("expected pen-level, got %v", s.Level)
	}
	if s.PriceB <= s.PriceA {
		t.Errorf("expected price to extend (new high), got A=%v B=%v", s.PriceA, s.PriceB)
	}
	if s.HistB >= s.HistA {
		t.Errorf("expected weaker histogram at the new high, got A=%v B=%v", s.HistA, s.HistB)
	}
	if s.Strength <= 0 || s.Strength > 1 {
		t.Errorf("expected strength in (0,1], got %v", s.Strength)
	}
}

// A second swing whose histogram stays small throughout its range (small
// area) corroborates a weakening-momentum divergence more than one that was
// only briefly small right at its endpoint (large area overall), so the
// small-area case should score a higher strength.
func TestPenDivergences_SmallerSecondSwingAreaStrengthensSignal(t *testing.T) {
	pens := []models.Pen{
		{Direction: models.PenUp, StartIdx: 0, EndIdx: 3, StartPrice: 100, EndPrice: 110},
		{Direction: models.PenDown, StartIdx: 3, EndIdx: 5, StartPrice: 110, EndPrice: 105},
		{Direction: models.PenUp, StartIdx: 5, EndIdx: 9, StartPrice: 105, EndPrice: 115},
	}
	d := NewDetector(DefaultConfig())

	largeArea := macdWith(10, map[int]float64{3: 2.0, 6: 1.9, 7: 1.9, 8: 1.9, 9: 0.3})
	sigsLargeArea := d.PenDivergences(pens, largeArea)

	smallArea := macdWith(10, map[int]float64{3: 2.0, 6: 0.3, 7: 0.3, 8: 0.3, 9: 0.3})
	sigsSmallArea := d.PenDivergences(pens, smallArea)

	if len(sigsLargeArea) != 1 || len(sigsSmallArea) != 1 {
		t.Fatalf("expected both scenarios to trigger a divergence, got %d and %d", len(sigsLargeArea), len(sigsSmallArea))
	}
	if sigsSmallArea[0].Strength <= sigsLargeArea[0].Strength {
		t.Errorf("expected a smaller second-swing area to strengthen the signal: small=%v large=%v",
			sigsSmallArea[0].Strength, sigsLargeArea[0].Strength)
	}
}

func TestPenDivergences_NoPriceExtension_NoSignal(t *testing.T) {
	pens := []models.Pen{
		{Direction: models.PenUp, StartIdx: 0, EndIdx: 3, StartPrice: 100, EndPrice: 110},
		{Direction: models.PenDown, StartIdx: 3, EndIdx: 5, StartPrice: 110, EndPrice: 105},
		{Direction: models.PenUp, StartIdx: 5, EndIdx: 9, StartPrice: 105, EndPrice: 108}, // lower high
	}
	macd := macdWith(10, map[int]float64{3: 2.0, 9: 0.1})

	d := NewDetector(DefaultConfig())
	sigs := d.PenDivergences(pens, macd)
	if len(sigs) != 0 {
		t.Fatalf("expected no divergence without a price extension, got %+v", sigs)
	}
}

func TestPenDivergences_MacdDeltaBelowEpsilon_NoSignal(t *testing.T) {
	pens := []models.Pen{
		{Direction: models.PenUp, StartIdx: 0, EndIdx: 3, StartPrice: 100, EndPrice: 110},
		{Direction: models.PenDown, StartIdx: 3, EndIdx: 5, StartPrice: 110, EndPrice: 105},
		{Direction: models.PenUp, StartIdx: 5, EndIdx: 9, StartPrice: 105, EndPrice: 115},
	}
	macd := macdWith(10, map[int]float64{3: 2.0, 9: 1.995}) // delta = -0.005, below default epsilon 0.01

	d := NewDetector(DefaultConfig())
	sigs := d.PenDivergences(pens, macd)
	if len(sigs) != 0 {
		t.Fatalf("expected no divergence when the MACD delta is within epsilon, got %+v", sigs)
	}
}

func TestSegmentDivergences_Bullish(t *testing.T) {
	segments := []models.Segment{
		{
			Direction: models.DirectionDown, StartPenIdx: 0, EndPenIdx: 2, StartPrice: 110, EndPrice: 90,
			Pens: []models.Pen{
				{Direction: models.PenDown, StartIdx: 0, EndIdx: 4, StartPrice: 110, EndPrice: 90},
			},
		},
		{
			Direction: models.DirectionUp, StartPenIdx: 3, EndPenIdx: 3, StartPrice: 90, EndPrice: 95,
			Pens: []models.Pen{
				{Direction: models.PenUp, StartIdx: 4, EndIdx: 6, StartPrice: 90, EndPrice: 95},
			},
		},
		{
			Direction: models.DirectionDown, StartPenIdx: 4, EndPenIdx: 4, StartPrice: 95, EndPrice: 80,
			Pens: []models.Pen{
				{Direction: models.PenDown, StartIdx: 6, EndIdx: 10, StartPrice: 95, EndPrice: 80},
			},
		},
	}
	macd := macdWith(11, map[int]float64{4: -2.0, 10: -0.3})

	d := NewDetector(DefaultConfig())
	sigs := d.SegmentDivergences(segments, macd)
	if len(sigs) != 1 {
		t.Fatalf("expected 1 segment-level divergence, got %d: %+v", len(sigs), sigs)
	}
	if sigs[0].Type != models.DivergenceBullish {
		t.Errorf("expected bullish divergence (new low, weaker histogram), got %v", sigs[0].Type)
	}
	if sigs[0].Level != models.LevelSegment {
		t.Errorf("expected segment-level, got %v", sigs[0].Level)
	}
}

func TestSegmentDivergences_Disabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EnableSegment = false
	d := NewDetector(cfg)
	segments := []models.Segment{
		{Direction: models.DirectionDown, Pens: []models.Pen{{EndIdx: 4}}},
		{Direction: models.DirectionUp, Pens: []models.Pen{{EndIdx: 6}}},
		{Direction: models.DirectionDown, Pens: []models.Pen{{EndIdx: 10}}},
	}
	if sigs := d.SegmentDivergences(segments, nil); sigs != nil {
		t.Fatalf("expected nil when segment-level divergence is disabled, got %+v", sigs)
	}
}

func TestMultiLevel_CombinesCoincidentSignals(t *testing.T) {
	penSigs := []models.DivergenceSignal{
		{Type: models.DivergenceBearish, Level: models.LevelPen, Idx: 20, Strength: 0.4},
	}
	segSigs := []models.DivergenceSignal{
		{Type: models.DivergenceBearish, Level: models.LevelSegment, Idx: 21, Strength: 0.8},
	}
	d := NewDetector(DefaultConfig())
	out := d.MultiLevel(penSigs, segSigs)
	if len(out) != 1 {
		t.Fatalf("expected 1 multi-level signal, got %d", len(out))
	}
	if out[0].Level != models.LevelMultiLevel {
		t.Errorf("expected LevelMultiLevel, got %v", out[0].Level)
	}
	if math.Abs(out[0].Strength-0.6) > 1e-9 {
		t.Errorf("expected mean strength 0.6, got %v", out[0].Strength)
	}
}

func TestMultiLevel_OutsideTolerance_NoCombination(t *testing.T) {
	penSigs := []models.DivergenceSignal{
		{Type: models.DivergenceBearish, Level: models.LevelPen, Idx: 20, Strength: 1.0},
	}
	segSigs := []models.DivergenceSignal{
		{Type: models.DivergenceBearish, Level: models.LevelSegment, Idx: 30, Strength: 2.0},
	}
	d := NewDetector(DefaultConfig())
	out := d.MultiLevel(penSigs, segSigs)
	if len(out) != 0 {
		t.Fatalf("expected no combination outside tolerance, got %+v", out)
	}
}
