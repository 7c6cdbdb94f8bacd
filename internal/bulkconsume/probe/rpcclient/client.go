// Package rpcclient implements the Search Probe and Scroll Source
// collaborators as RPC calls to an out-of-process record-store service. Each
// call is traced as a child span (the pipeline's suspension points are
// exactly these round trips), bounded by a context timeout, retried with
// backoff, and guarded by a circuit breaker so a flapping backend degrades
// the range finder's loop with fast failures instead of blocking it.
package rpcclient

import (
	"context"
	"fmt"
	"time"

	"github.com/Adithya-Monish-Kumar-K/bulk-consume-coordinator/internal/bulkconsume/filter"
	"github.com/Adithya-Monish-Kumar-K/bulk-consume-coordinator/internal/bulkconsume/probe"
	"github.com/Adithya-Monish-Kumar-K/bulk-consume-coordinator/internal/record"
	"github.com/Adithya-Monish-Kumar-K/bulk-consume-coordinator/pkg/resilience"
	"github.com/Adithya-Monish-Kumar-K/bulk-consume-coordinator/pkg/rpc"
	"github.com/Adithya-Monish-Kumar-K/bulk-consume-coordinator/pkg/tracing"
	"github.com/Adithya-Monish-Kumar-K/bulk-consume-coordinator/pkg/wire"
)

// rpcRetry governs the small number of immediate retries worth attempting
// inside the timeout budget before surfacing the failure to the circuit
// breaker's own accounting.
var rpcRetry = resilience.RetryConfig{
	MaxAttempts:    2,
	InitialDelay:   25 * time.Millisecond,
	MaxDelay:       200 * time.Millisecond,
	Multiplier:     2.0,
	JitterFraction: 0.2,
}

// Client is a probe.Prober and dispatcher.Scroller backed by a pkg/rpc
// connection to cmd/recordstored, each call guarded by a circuit breaker.
type Client struct {
	conn    *rpc.Client
	breaker *resilience.CircuitBreaker
}

// Dial connects to a record-store RPC server at addr.
func Dial(addr string) (*Client, error) {
	conn, err := rpc.Dial(addr)
	if err != nil {
		return nil, fmt.Errorf("dialing record store at %s: %w", addr, err)
	}
	return &Client{
		conn:    conn,
		breaker: resilience.NewCircuitBreaker("recordstore-rpc", resilience.CircuitBreakerConfig{}),
	}, nil
}

// Probe implements probe.Prober over the wire.
func (c *Client) Probe(ctx context.Context, params probe.Params, timeFrom int64, timeTo *int64, pagination probe.Pagination, sort_ *probe.Sort) (probe.Result, error) {
	req := &wire.ProbeRequest{
		PathFilter:  toWirePath(params.PathFilter),
		FieldFilter: toWireFilter(params.FieldFilter),
		WithHistory: params.WithHistory,
		WithDeleted: params.WithDeleted,
		TimeFrom:    timeFrom,
		TimeTo:      timeTo,
		Pagination:  wire.Pagination{Offset: int32(pagination.Offset), Limit: int32(pagination.Limit)},
		Sort:        toWireSort(sort_),
	}

	var resp wire.ProbeResponse
	err := resilience.WithTimeout(ctx, Timeout, "recordstore.Probe", func(ctx context.Context) error {
		return resilience.Retry(ctx, "recordstore.Probe", rpcRetry, func() error {
			_, span := tracing.StartChildSpan(ctx, "recordstore.Probe")
			defer span.End()
			span.SetAttr("time_from", timeFrom)
			span.SetAttr("is_seed", timeTo == nil)
			if timeTo != nil {
				span.SetAttr("time_to", *timeTo)
			}
			return c.breaker.Execute(func() error {
				return c.conn.Call("RecordStore.Probe", req, &resp)
			})
		})
	})
	if err != nil {
		return probe.Result{}, fmt.Errorf("probe rpc: %w", err)
	}
	return probe.Result{Total: resp.Total, FirstIndexTime: resp.FirstIndexTime}, nil
}

// Scroll implements dispatcher.Scroller over the wire.
func (c *Client) Scroll(ctx context.Context, params probe.Params, from, to int64) ([]record.Record, error) {
	req := &wire.ScrollRequest{
		PathFilter:  toWirePath(params.PathFilter),
		FieldFilter: toWireFilter(params.FieldFilter),
		WithHistory: params.WithHistory,
		WithDeleted: params.WithDeleted,
		From:        from,
		To:          to,
	}

	var resp wire.ScrollResponse
	err := resilience.WithTimeout(ctx, Timeout, "recordstore.Scroll", func(ctx context.Context) error {
		return resilience.Retry(ctx, "recordstore.Scroll", rpcRetry, func() error {
			_, span := tracing.StartChildSpan(ctx, "recordstore.Scroll")
			defer span.End()
			span.SetAttr("from", from)
			span.SetAttr("to", to)
			return c.breaker.Execute(func() error {
				return c.conn.Call("RecordStore.Scroll", req, &resp)
			})
		})
	})
	if err != nil {
		return nil, fmt.Errorf("scroll rpc: %w", err)
	}

	out := make([]record.Record, len(resp.Records))
	for i, r := range resp.Records {
		out[i] = record.Record{UUID: r.UUID, Path: r.Path, IndexTime: r.IndexTime, Deleted: r.Deleted, Fields: r.Fields}
	}
	return out, nil
}

// Close releases the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Timeout bounds a single RPC round trip independent of the circuit
// breaker's own cool-down window.
const Timeout = 5 * time.Second

func toWirePath(pf *filter.PathFilter) *wire.PathFilter {
	if pf == nil {
		return nil
	}
	return &wire.PathFilter{Path: pf.Path, Recursive: pf.Recursive}
}

func toWireFilter(f *filter.Filter) *wire.FieldFilter {
	if f == nil {
		return nil
	}
	out := &wire.FieldFilter{}
	if f.IsLeaf() {
		out.Condition = &wire.Condition{
			Field:      f.Condition.Field,
			Comparator: string(f.Condition.Comparator),
			Value:      f.Condition.Value,
		}
		return out
	}
	for _, child := range f.Must {
		out.Must = append(out.Must, toWireFilter(child))
	}
	for _, child := range f.Should {
		out.Should = append(out.Should, toWireFilter(child))
	}
	for _, child := range f.MustNot {
		out.MustNot = append(out.MustNot, toWireFilter(child))
	}
	return out
}

func toWireSort(s *probe.Sort) *wire.Sort {
	if s == nil {
		return nil
	}
	return &wire.Sort{Field: s.Field, Ascending: s.Ascending}
}
