package models

// DivergenceType is the direction of the disagreement between price and
// MACD-histogram progression.
type DivergenceType int

const (
	DivergenceBullish DivergenceType = iota
	DivergenceBearish
)

func (t DivergenceType) String() string {
	if t == DivergenceBullish {
		return "bullish"
	}
	return "bearish"
}

// DivergenceLevel tags which structural level produced the signal. Algorithms
// dispatch on this tag rather than on a type hierarchy.
type DivergenceLevel int

const (
	LevelPen DivergenceLevel = iota
	LevelSegment
	LevelMultiLevel
)

func (l DivergenceLevel) String() string {
	switch l {
	case LevelPen:
		return "pen"
	case LevelSegment:
		return "segment"
	default:
		return "multi_level"
	}
}

// DivergenceSignal records disagreement between price extremum progression
// and MACD-histogram progression between two same-direction structures.
type DivergenceSignal struct {
	Type     DivergenceType
	Level    DivergenceLevel
	PriceA   float64
	PriceB   float64
	HistA    float64
	HistB    float64
	Idx      int
	Strength float64
}
