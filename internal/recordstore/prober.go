package recordstore

import (
	"context"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/bulk-consume-coordinator/internal/bulkconsume/probe"
)

// Prober adapts an Engine to the bulk-consume core's probe.Prober
// interface, for in-process use (tests, or a single-shard deployment that
// skips the pkg/rpc hop to a separate cmd/recordstored process).
type Prober struct {
	Engine *Engine
}

// Probe implements probe.Prober. timeTo == nil selects the seed-probe
// shape (offset 1000, limit 1, sorted); non-nil selects a count probe over
// [timeFrom, *timeTo).
func (p Prober) Probe(ctx context.Context, params probe.Params, timeFrom int64, timeTo *int64, pagination probe.Pagination, sort *probe.Sort) (probe.Result, error) {
	if timeTo == nil {
		rec, ok := p.Engine.SeedNth(ctx, timeFrom, pagination.Offset)
		if !ok {
			return probe.Result{}, nil
		}
		it := rec.IndexTime
		return probe.Result{FirstIndexTime: &it}, nil
	}

	if pagination.Offset != 0 || pagination.Limit != 1 {
		return probe.Result{}, fmt.Errorf("recordstore: unsupported count-probe pagination %+v", pagination)
	}
	total, err := p.Engine.Count(ctx, params, timeFrom, *timeTo)
	if err != nil {
		return probe.Result{}, err
	}
	return probe.Result{Total: total}, nil
}
