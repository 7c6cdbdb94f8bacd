// Package probe defines the Search Probe collaborator: a count-only "thin"
// search against the backing record store, used both as a seed probe
// (to discover a non-trivial initial `to`) and as a count probe (to test
// whether a candidate [from, to) interval falls in the acceptance band).
package probe

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/bulk-consume-coordinator/internal/bulkconsume/filter"
	"golang.org/x/sync/singleflight"
)

// Params carries the invariant selection criteria of an iteration session
// (spec's ThinSearchParams).
type Params struct {
	PathFilter  *filter.PathFilter
	FieldFilter *filter.Filter
	WithHistory bool
	WithDeleted bool
}

// Pagination mirrors the backing search engine's offset/limit contract.
type Pagination struct {
	Offset int
	Limit  int
}

// Sort selects the sort applied before pagination; nil means unsorted.
type Sort struct {
	Field     string
	Ascending bool
}

// Result is the subset of a thin-search response the core ever consumes:
// the total match count, and optionally the first returned record's
// indexTime (only populated by seed probes).
type Result struct {
	Total           int64
	FirstIndexTime  *int64
}

// Prober issues a count-only search to the backing index.
//
// timeTo == nil means "no upper time bound" (seed probe shape); timeTo
// non-nil means the interval [timeFrom, *timeTo) is conjoined onto
// Params.FieldFilter via filter.ConjoinTimeRange before the call reaches
// the backing collaborator.
type Prober interface {
	Probe(ctx context.Context, params Params, timeFrom int64, timeTo *int64, pagination Pagination, sort *Sort) (Result, error)
}

// SeedPagination is the offset=1000, limit=1 shape used to discover a
// non-trivial initial `to`: the 1000 offset gives the algorithm a lower
// bound on the initial window that is already near the right magnitude.
var SeedPagination = Pagination{Offset: 1000, Limit: 1}

// SeedSort is the sort applied by a seed probe.
var SeedSort = &Sort{Field: "indexTime", Ascending: true}

// CountPagination is the offset=0, limit=1 shape used by a count probe;
// only the Total field of the result is consumed.
var CountPagination = Pagination{Offset: 0, Limit: 1}

// seedDedup collapses concurrent identical seed probes for the same
// session key (the same path/field filter/history/deleted selection and
// the same `from`) into a single in-flight Probe call: two goroutines
// opening the same iteration session at the same `from` would otherwise
// both pay the 1000-offset seed probe's cost for an identical answer.
var seedDedup singleflight.Group

// seedKey builds a stable singleflight key from the parts of a seed probe
// that determine its answer.
func seedKey(params Params, from int64) string {
	data, err := json.Marshal(struct {
		Path        *filter.PathFilter
		FieldFilter *filter.Filter
		WithHistory bool
		WithDeleted bool
		From        int64
	}{params.PathFilter, params.FieldFilter, params.WithHistory, params.WithDeleted, from})
	if err != nil {
		// Falls back to an always-unique key, degrading to "no dedup"
		// rather than risking a collision across distinct sessions.
		return fmt.Sprintf("seed-marshal-error-%p-%d", params.PathFilter, from)
	}
	return string(data)
}

// Seed runs a seed probe: sorted, offset-1000, limit-1, no upper time
// bound. It returns the 1001st record's indexTime, or nil if fewer than
// 1001 records exist. Concurrent calls sharing the same session key are
// deduplicated via singleflight.
func Seed(ctx context.Context, p Prober, params Params, from int64) (*int64, error) {
	key := seedKey(params, from)
	v, err, _ := seedDedup.Do(key, func() (interface{}, error) {
		res, err := p.Probe(ctx, params, from, nil, SeedPagination, SeedSort)
		if err != nil {
			return nil, err
		}
		return res.FirstIndexTime, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*int64), nil
}

// Count runs a count probe over [from, to) and returns the total match
// count; no sort, no first-record lookup.
func Count(ctx context.Context, p Prober, params Params, from, to int64) (int64, error) {
	res, err := p.Probe(ctx, params, from, &to, CountPagination, nil)
	if err != nil {
		return 0, err
	}
	return res.Total, nil
}
