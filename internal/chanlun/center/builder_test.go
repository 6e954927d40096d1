package center

import (
	"testing"

	"github.com/ridopark/chanlun-engine/internal/models"
)

func pen(high, low float64) models.Pen {
	return models.Pen{Direction: models.PenUp, StartIdx: 0, EndIdx: 1, StartPrice: low, EndPrice: high, Confirmed: true}
}

func TestBuild_ThreeOverlappingPensFormCenter(t *testing.T) {
	pens := []models.Pen{
		pen(110, 90),
		pen(105, 95),
		pen(108, 92),
		pen(90, 80), // breaks the overlap
	}
	b := NewBuilder(DefaultConfig())
	centers := b.Build(pens)

	if len(centers) != 1 {
		t.Fatalf("expected 1 center, got %d: %+v", len(centers), centers)
	}
	c := centers[0]
	if c.StartPenIdx != 0 || c.EndPenIdx != 2 {
		t.Errorf("expected center spanning pens 0-2, got %d-%d", c.StartPenIdx, c.EndPenIdx)
	}
	if c.Top != 105 || c.Bottom != 95 {
		t.Errorf("expected [top=105,bottom=95], got [top=%v,bottom=%v]", c.Top, c.Bottom)
	}
	if !c.Valid() {
		t.Errorf("expected center to be valid (bottom < top)")
	}
}

func TestBuild_RunExtendsPastThreePens(t *testing.T) {
	pens := []models.Pen{
		pen(110, 90),
		pen(105, 95),
		pen(108, 92),
		pen(104, 96),
	}
	b := NewBuilder(DefaultConfig())
	centers := b.Build(pens)

	if len(centers) != 1 {
		t.Fatalf("expected 1 center, got %d", len(centers))
	}
	if centers[0].EndPenIdx != 3 {
		t.Errorf("expected run to extend through pen 3, got end=%d", centers[0].EndPenIdx)
	}
	if centers[0].Top != 104 || centers[0].Bottom != 96 {
		t.Errorf("expected tightened range [104,96], got [%v,%v]", centers[0].Top, centers[0].Bottom)
	}
}

func TestBuild_NoOverlap_NoCenter(t *testing.T) {
	pens := []models.Pen{
		pen(110, 100),
		pen(95, 85),
		pen(80, 70),
	}
	b := NewBuilder(DefaultConfig())
	centers := b.Build(pens)
	if len(centers) != 0 {
		t.Fatalf("expected no centers, got %+v", centers)
	}
}

func TestBuild_FewerThanMinPens_NoCenter(t *testing.T) {
	pens := []models.Pen{pen(110, 90), pen(105, 95)}
	b := NewBuilder(DefaultConfig())
	centers := b.Build(pens)
	if len(centers) != 0 {
		t.Fatalf("expected no centers with fewer than MinPens, got %+v", centers)
	}
}
