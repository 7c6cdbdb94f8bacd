// Package dispatcher implements the Chunk Dispatcher: the top-level HTTP
// handler that ties the cursor codec, request validator, range finder,
// search probe, and streaming record source into one GET endpoint.
package dispatcher

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/bulk-consume-coordinator/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/bulk-consume-coordinator/internal/bulkconsume/cursor"
	"github.com/Adithya-Monish-Kumar-K/bulk-consume-coordinator/internal/bulkconsume/filter"
	"github.com/Adithya-Monish-Kumar-K/bulk-consume-coordinator/internal/bulkconsume/format"
	"github.com/Adithya-Monish-Kumar-K/bulk-consume-coordinator/internal/bulkconsume/probe"
	"github.com/Adithya-Monish-Kumar-K/bulk-consume-coordinator/internal/bulkconsume/rangefinder"
	"github.com/Adithya-Monish-Kumar-K/bulk-consume-coordinator/internal/bulkconsume/timer"
	"github.com/Adithya-Monish-Kumar-K/bulk-consume-coordinator/internal/bulkconsume/validate"
	"github.com/Adithya-Monish-Kumar-K/bulk-consume-coordinator/internal/fieldcache"
	"github.com/Adithya-Monish-Kumar-K/bulk-consume-coordinator/internal/record"
	"github.com/Adithya-Monish-Kumar-K/bulk-consume-coordinator/pkg/config"
	pkgerrors "github.com/Adithya-Monish-Kumar-K/bulk-consume-coordinator/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/bulk-consume-coordinator/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/bulk-consume-coordinator/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/bulk-consume-coordinator/pkg/tracing"
)

const (
	headerN        = "X-CM-WELL-N"
	headerPosition = "X-CM-WELL-POSITION"
	headerTo       = "X-CM-WELL-TO"
)

// Scroller is the streaming record source external collaborator: given a
// resolved [from, to) and the session's selection criteria, it returns every
// matching record. The "fast" vs "slow-bulk" scroll source distinction from
// spec §6 is expressed by injecting two different Scroller values.
type Scroller interface {
	Scroll(ctx context.Context, params probe.Params, from, to int64) ([]record.Record, error)
}

// Collector is the subset of the analytics collector the dispatcher needs.
// analytics.Collector satisfies it directly; collector.BatchCollector has a
// keyed Track(key, value) and is wired in through analytics.BatchTracker.
type Collector interface {
	Track(event any)
}

// Dispatcher is the Chunk Dispatcher. Every collaborator is supplied at
// construction so tests can inject a scripted Prober and an in-memory
// Scroller instead of resolving collaborators globally.
type Dispatcher struct {
	prober     probe.Prober
	fastScroll Scroller
	slowScroll Scroller
	fieldCache *fieldcache.Cache
	collector  Collector
	cfg        config.BulkConsumeConfig
	logger     *slog.Logger
}

// New constructs a Dispatcher. slowScroll may equal fastScroll if the
// deployment has no separate non-parallelised scroll path.
func New(prober probe.Prober, fastScroll, slowScroll Scroller, fieldCache *fieldcache.Cache, collector Collector, cfg config.BulkConsumeConfig) *Dispatcher {
	return &Dispatcher{
		prober:     prober,
		fastScroll: fastScroll,
		slowScroll: slowScroll,
		fieldCache: fieldCache,
		collector:  collector,
		cfg:        cfg,
		logger:     slog.Default().With("component", "chunk-dispatcher"),
	}
}

// ServeHTTP implements the single GET endpoint described in spec §4.5.
func (d *Dispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx, iterationSpan := tracing.StartSpan(r.Context(), "consume.iteration", middleware.GetRequestID(r.Context()))
	defer iterationSpan.End()
	log := logger.FromContext(ctx)
	query := r.URL.Query()

	if err := validate.CheckFormat(query.Get("format")); err != nil {
		d.writeError(w, err)
		return
	}

	rawPosition := query.Get("position")
	state, firstRequest, err := d.decodeOrInit(query, rawPosition)
	if err != nil {
		d.writeError(w, err)
		return
	}

	if !firstRequest {
		if err := validate.CheckConflicts(query); err != nil {
			d.writeError(w, err)
			return
		}
		if hintStr := query.Get("to-hint"); hintStr != "" && state.ToOpt == nil {
			hint, parseErr := strconv.ParseInt(hintStr, 10, 64)
			if parseErr != nil {
				d.writeError(w, pkgerrors.Newf(pkgerrors.ErrInvalidInput, 400, "to-hint is not a valid integer: %v", parseErr))
				return
			}
			state.ToOpt = &hint
		}
	}

	nowSkewed := time.Now().UnixMilli() - d.cfg.NowSkewMs

	params := probe.Params{
		PathFilter:  (&filter.PathFilter{Path: state.Path, Recursive: state.Recursive}).Canonicalize(),
		FieldFilter: state.FieldFilter,
		WithHistory: state.WithHistory,
		WithDeleted: state.WithDeleted,
	}

	fieldCacheHit := d.resolveFieldTypes(ctx, state.FieldFilter)

	emptyCorpus, currRange, err := d.resolveRange(ctx, params, state, nowSkewed)
	if err != nil {
		log.Error("range resolution failed", "error", err, "from", state.From, "path", state.Path,
			"recursive", state.Recursive, "with_history", state.WithHistory, "with_deleted", state.WithDeleted,
			"chunk_size_hint", state.ChunkSizeHint)
		d.writeError(w, err)
		return
	}

	if emptyCorpus {
		nextToken, encErr := cursor.Encode(cursor.State{
			From:          state.From,
			ToOpt:         &nowSkewed,
			Path:          state.Path,
			WithHistory:   state.WithHistory,
			WithDeleted:   state.WithDeleted,
			Recursive:     state.Recursive,
			ChunkSizeHint: state.ChunkSizeHint,
			FieldFilter:   state.FieldFilter,
		})
		if encErr != nil {
			d.writeError(w, encErr)
			return
		}
		d.respondEmpty(w, nextToken)
		d.track(ctx, state, 0, time.Since(start).Milliseconds(), fieldCacheHit, 1)
		return
	}

	scroller := d.fastScroll
	if query.Get("slow-bulk") != "" {
		scroller = d.slowScroll
	}
	records, err := scroller.Scroll(ctx, params, currRange.From, currRange.To)
	if err != nil {
		log.Error("scroll failed", "error", err, "from", currRange.From, "to", currRange.To)
		d.writeError(w, err)
		return
	}

	if len(records) == 0 {
		echoed := rawPosition
		if firstRequest {
			minted, encErr := cursor.Encode(state)
			if encErr != nil {
				d.writeError(w, encErr)
				return
			}
			echoed = minted
		}
		d.respondEmpty(w, echoed)
		d.track(ctx, state, 0, time.Since(start).Milliseconds(), fieldCacheHit, 1)
		return
	}

	nextState := cursor.State{
		From:          currRange.To,
		ToOpt:         currRange.NextToHint,
		Path:          state.Path,
		WithHistory:   state.WithHistory,
		WithDeleted:   state.WithDeleted,
		Recursive:     state.Recursive,
		ChunkSizeHint: state.ChunkSizeHint,
		FieldFilter:   state.FieldFilter,
	}
	nextToken, err := cursor.Encode(nextState)
	if err != nil {
		d.writeError(w, err)
		return
	}

	formatter, err := format.New(query.Get("format"))
	if err != nil {
		d.writeError(w, err)
		return
	}
	requireSubjectUniqueness := state.WithHistory && isTripleFormat(query.Get("format"))
	opts := format.Options{
		Host:                     r.Host,
		URI:                      r.URL.Path,
		WithData:                 query.Get("with-data") == "true",
		WithMeta:                 query.Get("with-meta") == "true",
		WithHistory:              state.WithHistory,
		RequireSubjectUniqueness: requireSubjectUniqueness,
	}

	w.Header().Set(headerN, strconv.Itoa(len(records)))
	w.Header().Set(headerPosition, nextToken)
	w.Header().Set(headerTo, strconv.FormatInt(currRange.To, 10))
	w.WriteHeader(http.StatusOK)
	if err := formatter.FormatChunk(w, records, opts); err != nil {
		log.Error("failed to write chunk body", "error", err)
	}

	d.track(ctx, state, len(records), time.Since(start).Milliseconds(), fieldCacheHit, 1)
}

// decodeOrInit either decodes an existing cursor from the request's
// position token, or, when absent, synthesizes the initial session state
// from first-request query parameters (spec §6's "Query parameters
// consumed on first request").
func (d *Dispatcher) decodeOrInit(values url.Values, rawPosition string) (cursor.State, bool, error) {
	if rawPosition != "" {
		state, err := cursor.Decode(rawPosition)
		return state, false, err
	}

	chunkSizeHint := d.cfg.DefaultChunkSizeHint
	if hintStr := values.Get("length-hint"); hintStr != "" {
		parsed, err := strconv.Atoi(hintStr)
		if err != nil || parsed <= 0 {
			return cursor.State{}, true, pkgerrors.Newf(pkgerrors.ErrInvalidInput, 400, "length-hint must be a positive integer, got %q", hintStr)
		}
		chunkSizeHint = parsed
	}
	if d.cfg.MaxChunkSizeHint > 0 && chunkSizeHint > d.cfg.MaxChunkSizeHint {
		chunkSizeHint = d.cfg.MaxChunkSizeHint
	}

	path := values.Get("path")
	if path == "" {
		path = "/"
	}
	recursive := values.Get("recursive") == "true" || values.Get("with-descendants") == "true"

	var from int64
	if itStr := values.Get("index-time"); itStr != "" {
		parsed, err := strconv.ParseInt(itStr, 10, 64)
		if err != nil {
			return cursor.State{}, true, pkgerrors.Newf(pkgerrors.ErrInvalidInput, 400, "index-time must be an integer, got %q", itStr)
		}
		from = parsed
	}

	fieldFilter, err := filter.Parse(values.Get("qp"))
	if err != nil {
		return cursor.State{}, true, pkgerrors.Newf(pkgerrors.ErrInvalidInput, 400, "malformed qp: %v", err)
	}

	state := cursor.State{
		From:          from,
		Path:          path,
		WithHistory:   values.Get("with-history") == "true",
		WithDeleted:   values.Get("with-deleted") == "true",
		Recursive:     recursive,
		ChunkSizeHint: chunkSizeHint,
		FieldFilter:   fieldFilter,
	}
	return state, true, state.Validate()
}

// resolveRange implements spec §4.5 step 2. The bool return reports the
// "seed returns empty" short-circuit, which the caller must encode with the
// special next-cursor rule from DESIGN.md's Open Question resolution
// instead of the normal from'=to / toOpt'=nextToHint rule.
func (d *Dispatcher) resolveRange(ctx context.Context, params probe.Params, state cursor.State, now int64) (bool, rangefinder.CurrRange, error) {
	if state.ToOpt != nil {
		return false, rangefinder.CurrRange{From: state.From, To: *state.ToOpt}, nil
	}

	from := state.From
	if from == 0 {
		firstIndexTime, err := probe.Seed(ctx, d.prober, params, 0)
		if err != nil {
			return false, rangefinder.CurrRange{}, err
		}
		if firstIndexTime == nil {
			return true, rangefinder.CurrRange{From: 0, To: now}, nil
		}
		from = *firstIndexTime
	}

	budget := timer.New(d.cfg.RangeDiscoveryBudget)
	currRange, err := rangefinder.Find(ctx, d.prober, params, from, state.ChunkSizeHint, budget, now)
	return false, currRange, err
}

// resolveFieldTypes warms the field-types cache for every field the
// request's qp expression touches, reporting whether every field was
// already cached (a cheap approximation of "cache hit" for analytics).
func (d *Dispatcher) resolveFieldTypes(ctx context.Context, f *filter.Filter) bool {
	if d.fieldCache == nil || f == nil {
		return false
	}
	fields := f.Fields()
	if len(fields) == 0 {
		return true
	}
	_, missesBefore := d.fieldCache.Stats()
	if _, err := d.fieldCache.ResolveAll(ctx, fields); err != nil {
		d.logger.Error("field type resolution failed", "error", err)
		return false
	}
	_, missesAfter := d.fieldCache.Stats()
	return missesAfter == missesBefore
}

func (d *Dispatcher) respondEmpty(w http.ResponseWriter, position string) {
	w.Header().Set(headerN, "0")
	w.Header().Set(headerPosition, position)
	w.WriteHeader(http.StatusNoContent)
}

func (d *Dispatcher) track(ctx context.Context, state cursor.State, recordCount int, latencyMs int64, fieldCacheHit bool, probeCount int) {
	if d.collector == nil {
		return
	}
	eventType := analytics.EventChunk
	if recordCount == 0 {
		eventType = analytics.EventEmptyChunk
	}
	d.collector.Track(analytics.ChunkEvent{
		Type:          eventType,
		RecordCount:   recordCount,
		ChunkSizeHint: state.ChunkSizeHint,
		LatencyMs:     latencyMs,
		FieldCacheHit: fieldCacheHit,
		ProbeCount:    probeCount,
		Timestamp:     time.Now().UTC(),
		RequestID:     middleware.GetRequestID(ctx),
	})
}

func (d *Dispatcher) writeError(w http.ResponseWriter, err error) {
	status := pkgerrors.HTTPStatusCode(err)
	http.Error(w, err.Error(), status)
}

func isTripleFormat(name string) bool {
	switch name {
	case "nt", "ntriples", "nq", "nquads":
		return true
	default:
		return false
	}
}
