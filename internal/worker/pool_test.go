package worker

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/ridopark/chanlun-engine/internal/chanlun/engine"
	"github.com/ridopark/chanlun-engine/internal/health"
	"github.com/ridopark/chanlun-engine/internal/models"
)

func newTestPool(t *testing.T) *Pool {
	t.Helper()
	mon := health.NewMonitor(health.DefaultConfig())
	p := NewPool(DefaultPoolConfig(), engine.DefaultConfig(), mon, nil, zerolog.Nop())
	p.Start()
	t.Cleanup(p.Stop)
	return p
}

func TestPool_SubmitCreatesSeriesOnDemand(t *testing.T) {
	p := newTestPool(t)

	ok, processed, errMsg := p.Submit(context.Background(), "AAPL", models.Timeframe1m, zigzag(30))
	if !ok {
		t.Fatalf("submit failed: %q", errMsg)
	}
	if processed != 30 {
		t.Errorf("processed = %d, want 30", processed)
	}

	if _, ok := p.Get("AAPL", models.Timeframe1m); !ok {
		t.Errorf("expected a worker to exist for AAPL:1m after submit")
	}
}

func TestPool_GetUnknownSeries(t *testing.T) {
	p := newTestPool(t)

	if _, ok := p.Get("MSFT", models.Timeframe5m); ok {
		t.Errorf("did not expect a worker for a series never submitted to")
	}
}

func TestPool_AddSeriesIsIdempotent(t *testing.T) {
	p := newTestPool(t)

	w1, err := p.AddSeries("GOOGL", models.Timeframe1d)
	if err != nil {
		t.Fatalf("AddSeries: %v", err)
	}
	w2, err := p.AddSeries("GOOGL", models.Timeframe1d)
	if err != nil {
		t.Fatalf("AddSeries (second call): %v", err)
	}
	if w1 != w2 {
		t.Errorf("expected the same worker instance for a repeated AddSeries call")
	}
}

func TestPool_RemoveSeries(t *testing.T) {
	p := newTestPool(t)

	if _, err := p.AddSeries("TSLA", models.Timeframe1h); err != nil {
		t.Fatalf("AddSeries: %v", err)
	}
	if err := p.RemoveSeries("TSLA", models.Timeframe1h); err != nil {
		t.Fatalf("RemoveSeries: %v", err)
	}
	if _, ok := p.Get("TSLA", models.Timeframe1h); ok {
		t.Errorf("expected series to be gone after RemoveSeries")
	}
	if err := p.RemoveSeries("TSLA", models.Timeframe1h); err == nil {
		t.Errorf("expected an error removing an already-removed series")
	}
}

func TestPool_MetricsReflectsActiveWorkers(t *testing.T) {
	p := newTestPool(t)

	if _, err := p.AddSeries("NFLX", models.Timeframe15m); err != nil {
		t.Fatalf("AddSeries: %v", err)
	}

	metrics := p.Metrics()
	if metrics["active_workers"].(int) != 1 {
		t.Errorf("active_workers = %v, want 1", metrics["active_workers"])
	}
}
