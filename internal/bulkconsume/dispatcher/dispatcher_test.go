package dispatcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/bulk-consume-coordinator/internal/bulkconsume/cursor"
	"github.com/Adithya-Monish-Kumar-K/bulk-consume-coordinator/internal/bulkconsume/probe"
	"github.com/Adithya-Monish-Kumar-K/bulk-consume-coordinator/internal/bulkconsume/probe/scripted"
	"github.com/Adithya-Monish-Kumar-K/bulk-consume-coordinator/internal/record"
	"github.com/Adithya-Monish-Kumar-K/bulk-consume-coordinator/pkg/config"
)

func testConfig() config.BulkConsumeConfig {
	return config.BulkConsumeConfig{
		DefaultChunkSizeHint: 100,
		MaxChunkSizeHint:     10000,
		RangeDiscoveryBudget: time.Hour,
		NowSkewMs:            0,
	}
}

// fakeScroller returns a fixed record slice regardless of range, letting
// tests focus on the dispatcher's range-resolution and header behavior.
type fakeScroller struct {
	records []record.Record
	err     error
}

func (f *fakeScroller) Scroll(_ context.Context, _ probe.Params, _, _ int64) ([]record.Record, error) {
	return f.records, f.err
}

func newDispatcher(p *scripted.Prober, scroller Scroller) *Dispatcher {
	return New(p, scroller, scroller, nil, nil, testConfig())
}

// E1: empty corpus on the very first request returns 204, X-CM-WELL-N: 0,
// and a next cursor carrying toOpt = now (skewed).
func TestDispatcher_EmptyCorpus(t *testing.T) {
	p := &scripted.Prober{Seeds: []*int64{nil}}
	d := newDispatcher(p, &fakeScroller{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/consume?path=/&recursive=true&length-hint=100", nil)
	rec := httptest.NewRecorder()

	d.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d; body=%s", rec.Code, http.StatusNoContent, rec.Body.String())
	}
	if got := rec.Header().Get(headerN); got != "0" {
		t.Errorf("X-CM-WELL-N = %q, want \"0\"", got)
	}

	token := rec.Header().Get(headerPosition)
	if token == "" {
		t.Fatal("X-CM-WELL-POSITION header missing")
	}
	state, err := cursor.Decode(token)
	if err != nil {
		t.Fatalf("decoding next cursor: %v", err)
	}
	if state.From != 0 || state.Path != "/" || !state.Recursive || state.ChunkSizeHint != 100 {
		t.Errorf("decoded cursor = %+v, want from=0 path=/ recursive=true chunkSizeHint=100", state)
	}
	if state.WithHistory || state.WithDeleted {
		t.Errorf("decoded cursor = %+v, want withHistory=false withDeleted=false", state)
	}
	if state.ToOpt == nil {
		t.Error("decoded cursor.ToOpt should be set to the skewed now")
	}
}

// E2: exact fit on the first probe yields a 200 chunk whose headers report
// the resolved range and a next cursor continuing from it.
func TestDispatcher_ExactFitOnFirstProbe(t *testing.T) {
	p := &scripted.Prober{
		Seeds:  []*int64{int64p(2_000_000)},
		Counts: []int64{120},
	}
	records := make([]record.Record, 120)
	for i := range records {
		records[i] = record.Record{UUID: strconv.Itoa(i), Path: "/data/a", IndexTime: 1_000_000 + int64(i)}
	}
	d := newDispatcher(p, &fakeScroller{records: records})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/consume?path=/data/a&recursive=true&length-hint=100&index-time=1000000", nil)
	rec := httptest.NewRecorder()

	d.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body=%s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get(headerN); got != "120" {
		t.Errorf("X-CM-WELL-N = %q, want \"120\"", got)
	}
	if got := rec.Header().Get(headerTo); got != "2000000" {
		t.Errorf("X-CM-WELL-TO = %q, want \"2000000\"", got)
	}

	token := rec.Header().Get(headerPosition)
	state, err := cursor.Decode(token)
	if err != nil {
		t.Fatalf("decoding next cursor: %v", err)
	}
	if state.From != 2_000_000 || state.ToOpt != nil {
		t.Errorf("next cursor = %+v, want from=2000000 toOpt=none", state)
	}
}

// E4: supplying a position token alongside a session-owned parameter is
// rejected before any probing happens.
func TestDispatcher_CursorParameterConflict(t *testing.T) {
	state := cursor.State{From: 0, Path: "/", Recursive: true, ChunkSizeHint: 100}
	token, err := cursor.Encode(state)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	p := &scripted.Prober{}
	d := newDispatcher(p, &fakeScroller{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/consume?position="+token+"&with-history=true", nil)
	rec := httptest.NewRecorder()

	d.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400; body=%s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "with-history` is determined in the beginning of the iteration") {
		t.Errorf("body = %q, want it to mention the with-history conflict", rec.Body.String())
	}
	if len(p.Calls) != 0 {
		t.Errorf("expected no probe calls before validation rejects the request, got %d", len(p.Calls))
	}
}

func int64p(v int64) *int64 { return &v }
