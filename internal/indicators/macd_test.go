package indicators

import "testing"

func TestEMA_WarmUpIsSeedSMA(t *testing.T) {
	closes := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	out := EMA(closes, 4)
	seed := (1.0 + 2 + 3 + 4) / 4
	for i := 0; i < 4; i++ {
		if out[i] != seed {
			t.Errorf("warm-up index %d: expected seed %v, got %v", i, seed, out[i])
		}
	}
	if out[4] == seed {
		t.Errorf("expected recurrence to move away from seed at index 4")
	}
}

func TestCalculate_HistogramIsLineDiff(t *testing.T) {
	closes := make([]float64, 40)
	for i := range closes {
		closes[i] = float64(i) + 100
	}
	values := Calculate(DefaultConfig(), closes)
	for i, v := range values {
		want := v.MACDLine - v.SignalLine
		if v.Histogram != want {
			t.Errorf("index %d: histogram %v != macd-signal %v", i, v.Histogram, want)
		}
	}
}

func TestArea_SumsAbsoluteHistogram(t *testing.T) {
	closes := make([]float64, 40)
	for i := range closes {
		closes[i] = 100 + float64(i%5)
	}
	values := Calculate(DefaultConfig(), closes)
	area := Area(values, 0, len(values)-1)
	if area < 0 {
		t.Errorf("area must be non-negative, got %v", area)
	}
}
