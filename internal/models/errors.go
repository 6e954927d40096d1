package models

import (
	"errors"
	"fmt"
)

// Sentinel errors for OHLCV invariant violations, returned wrapped via
// fmt.Errorf("%w", ...) so callers can errors.Is against them.
var (
	ErrInvalidSymbol     = errors.New("symbol is required")
	ErrInvalidPriceRange = errors.New("high must be greater than or equal to low")
	ErrInvalidOHLC       = errors.New("open/close must fall within the high/low range")
	ErrNegativePrice     = errors.New("price fields must be non-negative")
	ErrNegativeVolume    = errors.New("volume must be non-negative")
	ErrNonMonotonicTime  = errors.New("candle timestamps must be non-decreasing within a series")
	ErrUnknownTimeframe  = errors.New("unrecognized timeframe code")
)

// BatchError describes a batch that Submit rejected because one or more of
// its candles violate an invariant; Submit reports its Error() text. It never reflects a partial mutation of prior
// state: Accepted is false whenever any candle in the batch was rejected.
type BatchError struct {
	Symbol        string
	Timeframe     string
	FirstBadIndex int
	Count         int
	Accepted      bool
	Err           error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf(
		"%s/%s: batch rejected at first offending index %d (%d candles from there to the end of the batch): %v",
		e.Symbol, e.Timeframe, e.FirstBadIndex, e.Count, e.Err,
	)
}

func (e *BatchError) Unwrap() error { return e.Err }
