// Package indicators computes MACD aligned to the canonical candle index.
package indicators

import (
	"github.com/ridopark/chanlun-engine/internal/models"
)

// Config holds the MACD periods.
type Config struct {
	Fast   int
	Slow   int
	Signal int
}

func DefaultConfig() Config {
	return Config{Fast: 12, Slow: 26, Signal: 9}
}

// EMA computes the exponential moving average of closes with the given
// period. The first emitted value is the SMA of the first `period` closes;
// subsequent values follow the standard recurrence with smoothing 2/(p+1).
// Indices before the warm-up point are filled with that initial SMA so the
// output length always equals len(closes).
func EMA(closes []float64, period int) []float64 {
	out := make([]float64, len(closes))
	if len(closes) == 0 || period <= 0 {
		return out
	}
	if len(closes) < period {
		sum := 0.0
		for _, c := range closes {
			sum += c
		}
		avg := sum / float64(len(closes))
		for i := range out {
			out[i] = avg
		}
		return out
	}

	sum := 0.0
	for i := 0; i < period; i++ {
		sum += closes[i]
	}
	seed := sum / float64(period)
	for i := 0; i < period; i++ {
		out[i] = seed
	}

	k := 2.0 / float64(period+1)
	prev := seed
	for i := period; i < len(closes); i++ {
		v := (closes[i]-prev)*k + prev
		out[i] = v
		prev = v
	}
	return out
}

// Calculate computes fastEMA and slowEMA and returns the MACD line, signal
// line and histogram, one entry per candle index.
func Calculate(cfg Config, closes []float64) []models.MACDValue {
	fast := EMA(closes, cfg.Fast)
	slow := EMA(closes, cfg.Slow)

	macdLine := make([]float64, len(closes))
	for i := range closes {
		macdLine[i] = fast[i] - slow[i]
	}

	signal := EMA(macdLine, cfg.Signal)

	out := make([]models.MACDValue, len(closes))
	for i := range closes {
		out[i] = models.MACDValue{
			MACDLine:   macdLine[i],
			SignalLine: signal[i],
			Histogram:  macdLine[i] - signal[i],
		}
	}
	return out
}

// Area sums the absolute histogram values over [start,end] inclusive,
// clamped to the slice bounds. Used as a secondary divergence-strength
// signal alongside the pointwise histogram delta.
func Area(values []models.MACDValue, start, end int) float64 {
	if start < 0 {
		start = 0
	}
	if end >= len(values) {
		end = len(values) - 1
	}
	sum := 0.0
	for i := start; i <= end && i < len(values); i++ {
		h := values[i].Histogram
		if h < 0 {
			h = -h
		}
		sum += h
	}
	return sum
}
