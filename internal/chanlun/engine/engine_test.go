package engine

import (
	"context"
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/ridopark/chanlun-engine/internal/models"
)

// zigzag builds n deterministic, OHLCV-valid candles oscillating around a
// base price so the pipeline has real fractals, pens and segments to find.
func zigzag(n int) []models.Candle {
	out := make([]models.Candle, n)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		amp := 100 + 10*math.Sin(float64(i)*0.3)
		out[i] = models.Candle{
			Symbol:    "TEST",
			Timeframe: models.Timeframe1m,
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			High:      amp + 5,
			Low:       amp - 5,
			Open:      amp - 2,
			Close:     amp + 2,
			Volume:    1000,
		}
	}
	return out
}

func TestEngine_Submit_OneShotVsOneByOne(t *testing.T) {
	candles := zigzag(40)

	oneShot := New("TEST", models.Timeframe1m, DefaultConfig())
	ok, processed, errMsg := oneShot.Submit(context.Background(), candles)
	if !ok || processed != len(candles) || errMsg != "" {
		t.Fatalf("one-shot submit failed: ok=%v processed=%d err=%q", ok, processed, errMsg)
	}

	oneByOne := New("TEST", models.Timeframe1m, DefaultConfig())
	for _, c := range candles {
		ok, _, errMsg := oneByOne.Submit(context.Background(), []models.Candle{c})
		if !ok {
			t.Fatalf("incremental submit failed: %q", errMsg)
		}
	}

	if !reflect.DeepEqual(oneShot.Pens(0), oneByOne.Pens(0)) {
		t.Errorf("confirmed pens differ between one-shot and incremental submission")
	}
	if !reflect.DeepEqual(oneShot.Segments(0), oneByOne.Segments(0)) {
		t.Errorf("confirmed segments differ between one-shot and incremental submission")
	}
	if !reflect.DeepEqual(oneShot.BSPs(0), oneByOne.BSPs(0)) {
		t.Errorf("BSPs differ between one-shot and incremental submission")
	}
}

func TestEngine_Submit_Deterministic(t *testing.T) {
	candles := zigzag(40)

	a := New("TEST", models.Timeframe1m, DefaultConfig())
	b := New("TEST", models.Timeframe1m, DefaultConfig())
	a.Submit(context.Background(), candles)
	b.Submit(context.Background(), candles)

	if !reflect.DeepEqual(a.Pens(0), b.Pens(0)) {
		t.Errorf("two engines fed the same series produced different pens")
	}
	if !reflect.DeepEqual(a.Segments(0), b.Segments(0)) {
		t.Errorf("two engines fed the same series produced different segments")
	}
	if !reflect.DeepEqual(a.BSPs(0), b.BSPs(0)) {
		t.Errorf("two engines fed the same series produced different BSPs")
	}
}

func TestEngine_Submit_ProducesStructure(t *testing.T) {
	e := New("TEST", models.Timeframe1m, DefaultConfig())
	ok, processed, errMsg := e.Submit(context.Background(), zigzag(60))
	if !ok {
		t.Fatalf("submit failed: %q", errMsg)
	}
	if processed != 60 {
		t.Fatalf("expected 60 processed, got %d", processed)
	}
	if len(e.Pens(0)) == 0 {
		t.Errorf("expected a zigzag series to produce at least one pen")
	}
	latest, history := e.MACD(0)
	if len(history) == 0 || len(history) > 60 {
		t.Errorf("expected MACD history aligned to at most 60 canonical candles, got %d", len(history))
	}
	if latest != history[len(history)-1] {
		t.Errorf("latest MACD sample should be the last of history")
	}
}

func TestEngine_Submit_RejectsNonMonotonicTimestamp(t *testing.T) {
	e := New("TEST", models.Timeframe1m, DefaultConfig())
	candles := zigzag(5)
	if ok, _, _ := e.Submit(context.Background(), candles); !ok {
		t.Fatalf("initial submit should succeed")
	}

	metricsBefore := e.Metrics()

	stale := candles[0]
	stale.Timestamp = candles[0].Timestamp.Add(-time.Hour)
	ok, processed, errMsg := e.Submit(context.Background(), []models.Candle{stale})
	if ok {
		t.Fatalf("expected rejection of a non-monotonic timestamp")
	}
	if processed != 0 || errMsg == "" {
		t.Errorf("expected processed=0 and a populated error message, got processed=%d errMsg=%q", processed, errMsg)
	}
	if got := e.Metrics().TotalCandles; got != metricsBefore.TotalCandles {
		t.Errorf("rejection must not count toward processed candles, before=%d after=%d", metricsBefore.TotalCandles, got)
	}
}

func TestEngine_Submit_RejectsInvalidCandle(t *testing.T) {
	e := New("TEST", models.Timeframe1m, DefaultConfig())
	bad := models.Candle{Symbol: "TEST", Timeframe: models.Timeframe1m, High: 1, Low: 10, Open: 5, Close: 5}
	ok, processed, errMsg := e.Submit(context.Background(), []models.Candle{bad})
	if ok || processed != 0 || errMsg == "" {
		t.Fatalf("expected rejection of an invalid candle, got ok=%v processed=%d errMsg=%q", ok, processed, errMsg)
	}
}

func TestEngine_Submit_CancelledContextStopsBeforeCommit(t *testing.T) {
	e := New("TEST", models.Timeframe1m, DefaultConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ok, processed, errMsg := e.Submit(ctx, zigzag(10))
	if ok {
		t.Fatalf("expected a cancelled context to stop the submit")
	}
	if processed != 0 || errMsg == "" {
		t.Errorf("expected processed=0 and an error message, got processed=%d errMsg=%q", processed, errMsg)
	}
	if len(e.Pens(0)) != 0 {
		t.Errorf("a cancelled submit must not commit any tentative or confirmed structure")
	}
}

func TestEngine_Metrics_TracksSubmits(t *testing.T) {
	e := New("TEST", models.Timeframe1m, DefaultConfig())
	candles := zigzag(15)
	e.Submit(context.Background(), candles[:10])
	e.Submit(context.Background(), candles[10:])

	m := e.Metrics()
	if m.TotalSubmits != 2 {
		t.Errorf("expected 2 submits, got %d", m.TotalSubmits)
	}
	if m.TotalCandles != 15 {
		t.Errorf("expected 15 candles total, got %d", m.TotalCandles)
	}
	if m.LastUpdated.IsZero() {
		t.Errorf("expected LastUpdated to be set")
	}
}
