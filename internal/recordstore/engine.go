// Package recordstore is the reference implementation of the external
// index/record-store collaborators the bulk-consume core depends on: the
// thin Search Probe and the streaming Scroll Source. It keeps recently
// ingested records in memory, sorted by indexTime, and flushes them to
// append-only segment files once a size threshold is crossed.
package recordstore

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/bulk-consume-coordinator/internal/bulkconsume/probe"
	"github.com/Adithya-Monish-Kumar-K/bulk-consume-coordinator/internal/record"
	"github.com/Adithya-Monish-Kumar-K/bulk-consume-coordinator/internal/recordstore/segment"
	"github.com/Adithya-Monish-Kumar-K/bulk-consume-coordinator/pkg/config"
)

// Engine stores records in an in-memory buffer plus zero or more flushed
// segment readers, and answers the count/seed/scroll queries the
// bulk-consume core needs against indexTime ranges.
type Engine struct {
	mu      sync.RWMutex
	mem     []record.Record
	readers []*segment.Reader
	writer  *segment.Writer
	cfg     config.RecordStoreConfig
	logger  *slog.Logger
}

// NewEngine creates a record store engine rooted at cfg.DataDir, loading
// any previously flushed segments.
func NewEngine(cfg config.RecordStoreConfig) (*Engine, error) {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("creating record store data directory: %w", err)
	}
	e := &Engine{
		writer: segment.NewWriter(cfg.DataDir),
		cfg:    cfg,
		logger: slog.Default().With("component", "recordstore"),
	}
	if err := e.loadExistingSegments(); err != nil {
		return nil, fmt.Errorf("loading existing segments: %w", err)
	}
	return e, nil
}

// Index appends a record to the in-memory buffer, flushing to a new
// segment once the buffer reaches cfg.SegmentMaxSize records.
func (e *Engine) Index(rec record.Record) error {
	e.mu.Lock()
	idx := sort.Search(len(e.mem), func(i int) bool { return e.mem[i].IndexTime >= rec.IndexTime })
	e.mem = append(e.mem, record.Record{})
	copy(e.mem[idx+1:], e.mem[idx:])
	e.mem[idx] = rec
	shouldFlush := int64(len(e.mem)) >= e.cfg.SegmentMaxSize
	e.mu.Unlock()

	e.logger.Debug("record indexed", "uuid", rec.UUID, "index_time", rec.IndexTime)
	if shouldFlush {
		if err := e.Flush(); err != nil {
			return fmt.Errorf("flushing record store: %w", err)
		}
	}
	return nil
}

// Flush writes the in-memory buffer to a new segment file and resets it.
func (e *Engine) Flush() error {
	e.mu.Lock()
	if len(e.mem) == 0 {
		e.mu.Unlock()
		return nil
	}
	batch := e.mem
	e.mem = nil
	e.mu.Unlock()

	segmentName, err := e.writer.Write(batch)
	if err != nil {
		e.mu.Lock()
		e.mem = append(batch, e.mem...)
		e.mu.Unlock()
		return fmt.Errorf("writing segment: %w", err)
	}
	reader, err := segment.OpenReader(filepath.Join(e.cfg.DataDir, segmentName))
	if err != nil {
		return fmt.Errorf("opening new segment for reading: %w", err)
	}
	e.mu.Lock()
	e.readers = append(e.readers, reader)
	e.mu.Unlock()
	e.logger.Info("record store segment flushed", "segment", segmentName, "records", reader.RecordCount())
	return nil
}

func (e *Engine) loadExistingSegments() error {
	entries, err := os.ReadDir(e.cfg.DataDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading data directory: %w", err)
	}
	names := make([]string, 0)
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".rsdx") {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	for _, name := range names {
		reader, err := segment.OpenReader(filepath.Join(e.cfg.DataDir, name))
		if err != nil {
			e.logger.Error("failed to open segment, skipping", "segment", name, "error", err)
			continue
		}
		e.readers = append(e.readers, reader)
	}
	e.logger.Info("record store recovery complete", "segments_loaded", len(e.readers))
	return nil
}

// StartFlushLoop starts a goroutine that periodically flushes the in-memory
// buffer until ctx is cancelled, performing a final flush on shutdown;
// StartFlushLoop itself returns immediately.
func (e *Engine) StartFlushLoop(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.FlushInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				if err := e.Flush(); err != nil {
					e.logger.Error("final flush failed", "error", err)
				}
				return
			case <-ticker.C:
				if err := e.Flush(); err != nil {
					e.logger.Error("periodic flush failed", "error", err)
				}
			}
		}
	}()
}

// Close flushes and releases the engine.
func (e *Engine) Close() error {
	return e.Flush()
}

func matcher(params probe.Params) func(record.Record) bool {
	return func(rec record.Record) bool {
		if rec.Deleted && !params.WithDeleted {
			return false
		}
		if !MatchesPath(params.PathFilter, rec.Path) {
			return false
		}
		return Matches(params.FieldFilter, rec)
	}
}

// Count returns the number of records in [from, to) matching params,
// merged across the in-memory buffer and every flushed segment.
func (e *Engine) Count(_ context.Context, params probe.Params, from, to int64) (int64, error) {
	match := matcher(params)
	e.mu.RLock()
	defer e.mu.RUnlock()

	var total int64
	lo := sort.Search(len(e.mem), func(i int) bool { return e.mem[i].IndexTime >= from })
	hi := sort.Search(len(e.mem), func(i int) bool { return e.mem[i].IndexTime >= to })
	for _, rec := range e.mem[lo:hi] {
		if match(rec) {
			total++
		}
	}
	for _, r := range e.readers {
		total += r.CountInRange(from, to, match)
	}
	return total, nil
}

// SeedNth returns the record at the given zero-based offset among records
// with indexTime >= from, merged across memory and segments and sorted
// ascending by indexTime, or false if fewer than offset+1 such records
// exist (no filter is applied: the seed probe is always unfiltered by
// design, per spec §4.1).
func (e *Engine) SeedNth(_ context.Context, from int64, offset int) (record.Record, bool) {
	candidates := e.RecordsFrom(from)
	if offset >= len(candidates) {
		return record.Record{}, false
	}
	return candidates[offset], true
}

// RecordsFrom returns every record with indexTime >= from, merged across
// memory and segments and sorted ascending by indexTime. Used both by
// SeedNth and by shard.ShardedProber to merge per-shard seed candidates.
func (e *Engine) RecordsFrom(from int64) []record.Record {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var candidates []record.Record
	lo := sort.Search(len(e.mem), func(i int) bool { return e.mem[i].IndexTime >= from })
	candidates = append(candidates, e.mem[lo:]...)
	for _, r := range e.readers {
		_, max := r.Range()
		if max < from {
			continue
		}
		candidates = append(candidates, r.ScanRange(from, max+1, func(record.Record) bool { return true })...)
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].IndexTime < candidates[j].IndexTime })
	return candidates
}

// Scroll returns every record in [from, to) matching params, merged across
// memory and segments, for the streaming chunk response.
func (e *Engine) Scroll(_ context.Context, params probe.Params, from, to int64) ([]record.Record, error) {
	match := matcher(params)
	e.mu.RLock()
	defer e.mu.RUnlock()

	var out []record.Record
	lo := sort.Search(len(e.mem), func(i int) bool { return e.mem[i].IndexTime >= from })
	hi := sort.Search(len(e.mem), func(i int) bool { return e.mem[i].IndexTime >= to })
	for _, rec := range e.mem[lo:hi] {
		if match(rec) {
			out = append(out, rec)
		}
	}
	for _, r := range e.readers {
		out = append(out, r.ScanRange(from, to, match)...)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IndexTime < out[j].IndexTime })
	return out, nil
}
