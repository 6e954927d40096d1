package indicators

import "github.com/ridopark/chanlun-engine/internal/models"

// ClosesFrom derives one closing price per canonical candle: the close of
// the last raw candle merged into it. Inclusion collapses a run of raw
// candles into one canonical bar, but the bar's most recent price action is
// the last member's close, not an average across the run.
func ClosesFrom(canon []models.CanonicalCandle, raws []models.Candle) []float64 {
	out := make([]float64, len(canon))
	for i, cc := range canon {
		if len(cc.Members) == 0 {
			continue
		}
		lastRaw := cc.Members[len(cc.Members)-1]
		if lastRaw >= 0 && lastRaw < len(raws) {
			out[i] = raws[lastRaw].Close
		}
	}
	return out
}
