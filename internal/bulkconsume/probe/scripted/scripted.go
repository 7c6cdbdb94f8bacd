// Package scripted provides a deterministic Prober whose responses follow a
// scripted sequence, for driving Range Finder tests without a real backing
// index (per spec's "dependency injection" design note).
package scripted

import (
	"context"
	"fmt"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/bulk-consume-coordinator/internal/bulkconsume/probe"
)

// Call records one invocation the Prober received, for test assertions.
type Call struct {
	TimeFrom int64
	TimeTo   *int64
	IsSeed   bool
}

// Prober replays a fixed sequence of results: seed probes (timeTo == nil)
// consume from Seeds in order, count probes consume from Counts in order.
type Prober struct {
	mu     sync.Mutex
	Seeds  []*int64
	Counts []int64
	Calls  []Call

	seedIdx  int
	countIdx int
}

// Probe implements probe.Prober.
func (p *Prober) Probe(_ context.Context, _ probe.Params, from int64, to *int64, _ probe.Pagination, _ *probe.Sort) (probe.Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.Calls = append(p.Calls, Call{TimeFrom: from, TimeTo: to, IsSeed: to == nil})

	if to == nil {
		if p.seedIdx >= len(p.Seeds) {
			return probe.Result{}, fmt.Errorf("scripted: no more seed results scripted (call %d)", p.seedIdx+1)
		}
		r := p.Seeds[p.seedIdx]
		p.seedIdx++
		return probe.Result{FirstIndexTime: r}, nil
	}

	if p.countIdx >= len(p.Counts) {
		return probe.Result{}, fmt.Errorf("scripted: no more count results scripted (call %d)", p.countIdx+1)
	}
	total := p.Counts[p.countIdx]
	p.countIdx++
	return probe.Result{Total: total}, nil
}
