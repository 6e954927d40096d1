package models

// MACDValue is one aligned MACD sample: histogram = macdLine - signalLine.
type MACDValue struct {
	MACDLine   float64
	SignalLine float64
	Histogram  float64
}
