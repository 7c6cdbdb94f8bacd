package rangefinder

import (
	"context"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/bulk-consume-coordinator/internal/bulkconsume/probe"
	"github.com/Adithya-Monish-Kumar-K/bulk-consume-coordinator/internal/bulkconsume/probe/scripted"
	"github.com/Adithya-Monish-Kumar-K/bulk-consume-coordinator/internal/bulkconsume/timer"
)

func int64p(v int64) *int64 { return &v }

const ample = time.Hour

// E1: empty corpus. Seed finds no record, so toSeed falls back to now and
// the expand loop immediately hits the now-bounded edge, which accepts on
// a zero count.
func TestFind_EmptyCorpusFallsBackToNow(t *testing.T) {
	p := &scripted.Prober{
		Seeds:  []*int64{nil},
		Counts: []int64{0},
	}
	now := int64(2_000_000_000)

	got, err := Find(context.Background(), p, probe.Params{}, 0, 100, timer.New(ample), now)
	if err != nil {
		t.Fatalf("Find returned error: %v", err)
	}
	want := CurrRange{From: 0, To: now, NextToHint: nil}
	if got != want {
		t.Errorf("Find() = %+v, want %+v", got, want)
	}
}

// E2: exact fit on the first count probe after seeding, no expand/shrink
// iterations needed.
func TestFind_ExactFitOnFirstProbe(t *testing.T) {
	const from = int64(1_000_000)
	const to = int64(2_000_000)

	p := &scripted.Prober{
		Seeds:  []*int64{int64p(to)},
		Counts: []int64{120},
	}
	now := int64(10_000_000_000)

	got, err := Find(context.Background(), p, probe.Params{}, from, 100, timer.New(ample), now)
	if err != nil {
		t.Fatalf("Find returned error: %v", err)
	}
	want := CurrRange{From: from, To: to, NextToHint: nil}
	if got != want {
		t.Errorf("Find() = %+v, want %+v", got, want)
	}
	if len(p.Calls) != 2 {
		t.Fatalf("expected 2 probe calls (seed + count), got %d", len(p.Calls))
	}
	if p.Calls[1].IsSeed || p.Calls[1].TimeFrom != from || p.Calls[1].TimeTo == nil || *p.Calls[1].TimeTo != to {
		t.Errorf("count probe interval = [%d,%v), want [%d,%d)", p.Calls[1].TimeFrom, p.Calls[1].TimeTo, from, to)
	}
}

// E3: expand overshoots once, then a single shrink iteration lands in the
// acceptance band.
func TestFind_ExpandOnceThenShrink(t *testing.T) {
	p := &scripted.Prober{
		Seeds:  []*int64{int64p(1_000_000)},
		Counts: []int64{30, 400, 140},
	}
	now := int64(10_000_000_000)

	got, err := Find(context.Background(), p, probe.Params{}, 0, 100, timer.New(ample), now)
	if err != nil {
		t.Fatalf("Find returned error: %v", err)
	}
	want := CurrRange{From: 0, To: 1_500_000, NextToHint: nil}
	if got != want {
		t.Errorf("Find() = %+v, want %+v", got, want)
	}

	wantCalls := []struct {
		from int64
		to   int64
	}{
		{0, 1_000_000},
		{0, 2_000_000},
		{0, 1_500_000},
	}
	if len(p.Calls) != 1+len(wantCalls) {
		t.Fatalf("expected %d probe calls, got %d", 1+len(wantCalls), len(p.Calls))
	}
	for i, wc := range wantCalls {
		call := p.Calls[i+1]
		if call.TimeFrom != wc.from || call.TimeTo == nil || *call.TimeTo != wc.to {
			t.Errorf("count call %d = [%d,%v), want [%d,%d)", i, call.TimeFrom, call.TimeTo, wc.from, wc.to)
		}
	}
}

// E5: the timer expires mid-shrink; the fallback formula subtracts 2*step
// from position when the last verdict was too-many, and carries the
// already-learned nextToHint through untouched.
func TestShrink_TimerExpiryUsesTooManyFallback(t *testing.T) {
	p := &scripted.Prober{}
	expired := timer.New(-1 * time.Second)
	hint := int64(6_000_000)

	got, err := shrink(context.Background(), p, probe.Params{}, 0, 100, expired, 5_000_000, 500_000, &hint, verdictTooMany)
	if err != nil {
		t.Fatalf("shrink returned error: %v", err)
	}
	want := CurrRange{From: 0, To: 4_000_000, NextToHint: &hint}
	if got.From != want.From || got.To != want.To || got.NextToHint == nil || *got.NextToHint != *want.NextToHint {
		t.Errorf("shrink() = %+v, want %+v", got, want)
	}
	if len(p.Calls) != 0 {
		t.Errorf("expired budget must not issue any further probes, got %d calls", len(p.Calls))
	}
}

// E5 symmetric case: a too-few last verdict adds step instead of
// subtracting 2*step.
func TestShrink_TimerExpiryUsesTooFewFallback(t *testing.T) {
	p := &scripted.Prober{}
	expired := timer.New(-1 * time.Second)

	got, err := shrink(context.Background(), p, probe.Params{}, 0, 100, expired, 5_000_000, 500_000, nil, verdictTooFew)
	if err != nil {
		t.Fatalf("shrink returned error: %v", err)
	}
	want := CurrRange{From: 0, To: 5_500_000, NextToHint: nil}
	if got != want {
		t.Errorf("shrink() = %+v, want %+v", got, want)
	}
}

// E6: when the 1001st record's indexTime collides with from, toSeed is
// bumped to from+1729 rather than leaving a zero-width window.
func TestFind_SeedCollisionFloor(t *testing.T) {
	const from = int64(1_000_000)

	p := &scripted.Prober{
		Seeds:  []*int64{int64p(from)}, // collides with from
		Counts: []int64{100},
	}
	now := int64(10_000_000_000)

	got, err := Find(context.Background(), p, probe.Params{}, from, 100, timer.New(ample), now)
	if err != nil {
		t.Fatalf("Find returned error: %v", err)
	}
	if len(p.Calls) != 2 {
		t.Fatalf("expected 2 probe calls, got %d", len(p.Calls))
	}
	countCall := p.Calls[1]
	wantTo := from + 1729
	if countCall.TimeFrom != from || countCall.TimeTo == nil || *countCall.TimeTo != wantTo {
		t.Fatalf("first count probe = [%d,%v), want [%d,%d)", countCall.TimeFrom, countCall.TimeTo, from, wantTo)
	}
	if got.To != wantTo {
		t.Errorf("Find().To = %d, want %d", got.To, wantTo)
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		total     int64
		threshold int
		want      verdict
	}{
		{total: 49, threshold: 100, want: verdictTooFew},
		{total: 50, threshold: 100, want: verdictAccept},
		{total: 149, threshold: 100, want: verdictAccept},
		{total: 150, threshold: 100, want: verdictTooMany},
	}
	for _, c := range cases {
		if got := classify(c.total, c.threshold); got != c.want {
			t.Errorf("classify(%d, %d) = %v, want %v", c.total, c.threshold, got, c.want)
		}
	}
}

func TestIsModeratelyTooMany(t *testing.T) {
	if !isModeratelyTooMany(299, 100) {
		t.Error("299 should be moderately too many against threshold 100")
	}
	if isModeratelyTooMany(300, 100) {
		t.Error("300 should not be moderately too many against threshold 100")
	}
}
