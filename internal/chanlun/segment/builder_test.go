package segment

import (
	"testing"

	"github.com/ridopark/chanlun-engine/internal/models"
)

func up(start, end int, lo, hi float64) models.Pen {
	return models.Pen{Direction: models.PenUp, StartIdx: start, EndIdx: end, StartPrice: lo, EndPrice: hi, Confirmed: true}
}

func down(start, end int, hi, lo float64) models.Pen {
	return models.Pen{Direction: models.PenDown, StartIdx: start, EndIdx: end, StartPrice: hi, EndPrice: lo, Confirmed: true}
}

// S4 — no-gap break: an Up segment built from pens
//
//	0 Up(0->1, 100->110) 1 Down(1->2, 110->103) 2 Up(2->3, 103->108)
//	3 Down(3->4, 108->96) 4 Up(4->5, 96->99) 5 Down(5->6, 99->90)
//
// Feature sequence (Down pens): F1=[103,110] F2=[96,108] F3=[90,99].
// F1->F2 is no gap (F2.low=96 <= F1.high=110, in fact overlapping so
// ascending trend continues to hold by default). F3.low=90 < F1.low=103:
// breaks. Segment terminates at F2's pen (index 3), new segment starts
// there.
func TestBuild_S4_NoGapBreak(t *testing.T) {
	pens := []models.Pen{
		up(0, 1, 100, 110),
		down(1, 2, 110, 103),
		up(2, 3, 103, 108),
		down(3, 4, 108, 96),
		up(4, 5, 96, 99),
		down(5, 6, 99, 90),
	}

	b := NewBuilder(DefaultConfig())
	confirmed, tentative := b.Build(pens)

	if len(confirmed) != 1 {
		t.Fatalf("expected 1 confirmed segment, got %d: %+v", len(confirmed), confirmed)
	}
	seg := confirmed[0]
	if seg.Direction != models.DirectionUp {
		t.Errorf("expected Up segment, got %v", seg.Direction)
	}
	if seg.StartPenIdx != 0 || seg.EndPenIdx != 2 {
		t.Errorf("expected segment 0->2, got %d->%d", seg.StartPenIdx, seg.EndPenIdx)
	}
	if len(seg.Pens) != 3 {
		t.Errorf("expected 3 pens in segment, got %d", len(seg.Pens))
	}

	if tentative == nil {
		t.Fatalf("expected a tentative remainder segment")
	}
	if tentative.StartPenIdx != 3 {
		t.Errorf("expected next segment to start at pen 3 (F2), got %d", tentative.StartPenIdx)
	}
	if tentative.Direction != models.DirectionDown {
		t.Errorf("expected remainder segment direction Down, got %v", tentative.Direction)
	}
}

// S5 — gap pending then confirmed: an Up segment whose F1->F2 feature gap
// is initially suspect (F3 violates) but only resolves once F4 also
// violates, confirming the break at F2.
func TestBuild_S5_GapPendingThenConfirmed(t *testing.T) {
	pens := []models.Pen{
		up(0, 1, 100, 110),
		down(1, 2, 110, 105), // F1 = [105,110]
		up(2, 3, 105, 130),
		down(3, 4, 130, 120), // F2 = [120,130], gap vs F1 (120 > 110)
		up(4, 5, 120, 125),
		down(5, 6, 125, 100), // F3 = [100,125], violates (100 < 105)
		up(6, 7, 100, 118),
		down(7, 8, 118, 95), // F4 = [95,118], violates (95 < 105): confirms
	}

	b := NewBuilder(DefaultConfig())
	confirmed, tentative := b.Build(pens)

	if len(confirmed) != 1 {
		t.Fatalf("expected 1 confirmed segment, got %d: %+v", len(confirmed), confirmed)
	}
	seg := confirmed[0]
	if seg.StartPenIdx != 0 || seg.EndPenIdx != 2 {
		t.Errorf("expected segment 0->2 (terminating before F2 at pen 3), got %d->%d", seg.StartPenIdx, seg.EndPenIdx)
	}
	if tentative == nil || tentative.StartPenIdx != 3 {
		t.Fatalf("expected remainder segment starting at pen 3 (F2), got %+v", tentative)
	}
}

// When a gap is suspect but the fourth feature fails to confirm, the
// segment must continue uninterrupted rather than break at F2.
func TestBuild_GapNotConfirmed_SegmentContinues(t *testing.T) {
	pens := []models.Pen{
		up(0, 1, 100, 110),
		down(1, 2, 110, 105), // F1 = [105,110]
		up(2, 3, 105, 130),
		down(3, 4, 130, 120), // F2 = [120,130], gap vs F1
		up(4, 5, 120, 125),
		down(5, 6, 125, 100), // F3 = [100,125], violates (100 < 105)
		up(6, 7, 100, 140),
		down(7, 8, 140, 130), // F4 = [130,140], does NOT violate (130 >= 105)
	}

	b := NewBuilder(DefaultConfig())
	confirmed, tentative := b.Build(pens)

	if len(confirmed) != 0 {
		t.Fatalf("expected no confirmed break, got %+v", confirmed)
	}
	if tentative == nil || tentative.StartPenIdx != 0 {
		t.Fatalf("expected the whole pen run to remain one tentative segment, got %+v", tentative)
	}
}

func TestBuild_FewerThanThreeFeatures_Tentative(t *testing.T) {
	pens := []models.Pen{
		up(0, 1, 100, 110),
		down(1, 2, 110, 103),
		up(2, 3, 103, 108),
	}
	b := NewBuilder(DefaultConfig())
	confirmed, tentative := b.Build(pens)
	if len(confirmed) != 0 {
		t.Fatalf("expected no confirmed segments, got %+v", confirmed)
	}
	if tentative == nil || tentative.StartPenIdx != 0 || tentative.EndPenIdx != 2 {
		t.Fatalf("expected a tentative segment spanning all given pens, got %+v", tentative)
	}
}

func TestBuild_EmptyInput(t *testing.T) {
	b := NewBuilder(DefaultConfig())
	confirmed, tentative := b.Build(nil)
	if confirmed != nil || tentative != nil {
		t.Fatalf("expected nil output for empty input")
	}
}
