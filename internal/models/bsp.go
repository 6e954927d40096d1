package models

// BSPKind is one of the three buy/sell point classes, signed by side.
type BSPKind int

const (
	Buy1 BSPKind = iota
	Buy2
	Buy3
	Sell1
	Sell2
	Sell3
)

func (k BSPKind) String() string {
	switch k {
	case Buy1:
		return "buy1"
	case Buy2:
		return "buy2"
	case Buy3:
		return "buy3"
	case Sell1:
		return "sell1"
	case Sell2:
		return "sell2"
	case Sell3:
		return "sell3"
	default:
		return "unknown"
	}
}

// IsBuy reports whether the point is on the buy side.
func (k BSPKind) IsBuy() bool {
	return k == Buy1 || k == Buy2 || k == Buy3
}

// BuySellPoint is a classified structural buy/sell point.
type BuySellPoint struct {
	Kind       BSPKind
	Price      float64
	Idx        int
	Confidence float64
	Divergence *DivergenceSignal
	Notes      string
}
