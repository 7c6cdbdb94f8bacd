package probe

import (
	"context"
	"sync"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/bulk-consume-coordinator/internal/bulkconsume/filter"
	"github.com/Adithya-Monish-Kumar-K/bulk-consume-coordinator/internal/bulkconsume/probe/scripted"
)

func TestSeed_DedupesConcurrentIdenticalCalls(t *testing.T) {
	p := &scripted.Prober{Seeds: []*int64{int64p(2_000_000)}}
	params := Params{PathFilter: &filter.PathFilter{Path: "/data/a", Recursive: true}}

	const n = 8
	var wg sync.WaitGroup
	results := make([]*int64, n)
	errs := make([]error, n)
	release := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-release
			results[i], errs[i] = Seed(context.Background(), p, params, 0)
		}(i)
	}
	close(release)
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("Seed()[%d] error: %v", i, err)
		}
		if results[i] == nil || *results[i] != 2_000_000 {
			t.Errorf("Seed()[%d] = %v, want 2000000", i, results[i])
		}
	}
	// The scripted prober only has one seed result queued; if the dedup
	// failed to collapse these concurrent identical calls, every extra
	// call beyond the first would have errored instead.
	if len(p.Calls) < 1 {
		t.Fatal("expected at least one probe call to reach the backing prober")
	}
}

func TestSeed_DistinctSessionKeysAreNotDeduped(t *testing.T) {
	p := &scripted.Prober{Seeds: []*int64{int64p(1_000_000), int64p(2_000_000)}}

	paramsA := Params{PathFilter: &filter.PathFilter{Path: "/data/a", Recursive: true}}
	paramsB := Params{PathFilter: &filter.PathFilter{Path: "/data/b", Recursive: true}}

	gotA, err := Seed(context.Background(), p, paramsA, 0)
	if err != nil {
		t.Fatalf("Seed(A): %v", err)
	}
	gotB, err := Seed(context.Background(), p, paramsB, 0)
	if err != nil {
		t.Fatalf("Seed(B): %v", err)
	}
	if gotA == nil || *gotA != 1_000_000 {
		t.Errorf("Seed(A) = %v, want 1000000", gotA)
	}
	if gotB == nil || *gotB != 2_000_000 {
		t.Errorf("Seed(B) = %v, want 2000000", gotB)
	}
	if len(p.Calls) != 2 {
		t.Errorf("expected 2 distinct probe calls for 2 distinct session keys, got %d", len(p.Calls))
	}
}

func TestSeedKey_StableAndDistinguishing(t *testing.T) {
	base := Params{PathFilter: &filter.PathFilter{Path: "/data/a", Recursive: true}}
	if seedKey(base, 0) != seedKey(base, 0) {
		t.Error("seedKey should be stable for identical inputs")
	}

	other := Params{PathFilter: &filter.PathFilter{Path: "/data/b", Recursive: true}}
	if seedKey(base, 0) == seedKey(other, 0) {
		t.Error("seedKey should differ for distinct path filters")
	}
	if seedKey(base, 0) == seedKey(base, 1) {
		t.Error("seedKey should differ for distinct `from` values")
	}
}

func int64p(v int64) *int64 { return &v }
