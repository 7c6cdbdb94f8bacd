// Command recordstored is the reference out-of-process record-store
// service: it owns the sharded recordstore.Engine fleet and exposes the
// Probe/Scroll/Ingest/Flush RPCs the Chunk Dispatcher (or any other
// RPC-connected consumer) drives over pkg/rpc.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Adithya-Monish-Kumar-K/bulk-consume-coordinator/internal/bulkconsume/filter"
	"github.com/Adithya-Monish-Kumar-K/bulk-consume-coordinator/internal/bulkconsume/probe"
	"github.com/Adithya-Monish-Kumar-K/bulk-consume-coordinator/internal/record"
	"github.com/Adithya-Monish-Kumar-K/bulk-consume-coordinator/internal/recordstore/shard"
	"github.com/Adithya-Monish-Kumar-K/bulk-consume-coordinator/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/bulk-consume-coordinator/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/bulk-consume-coordinator/pkg/rpc"
	"github.com/Adithya-Monish-Kumar-K/bulk-consume-coordinator/pkg/wire"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting record store service", "rpc_addr", cfg.RecordStore.RPCAddr, "num_shards", cfg.RecordStore.ShardCount)

	router, err := shard.NewRouter(cfg.RecordStore, cfg.RecordStore.ShardCount)
	if err != nil {
		slog.Error("failed to create shard router", "error", err)
		os.Exit(1)
	}
	defer router.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	for _, engine := range router.AllEngines() {
		engine.StartFlushLoop(ctx)
	}

	prober := shard.NewShardedProber(router)
	scroller := shard.NewShardedScroller(router)

	server := rpc.NewServer()
	registerHandlers(server, router, prober, scroller)

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		server.Stop()
		if err := router.FlushAll(); err != nil {
			slog.Error("final flush failed", "error", err)
		}
	}()

	slog.Info("record store service listening", "addr", cfg.RecordStore.RPCAddr)
	if err := server.Serve(cfg.RecordStore.RPCAddr); err != nil {
		slog.Error("rpc server error", "error", err)
		os.Exit(1)
	}
	slog.Info("record store service stopped")
}

func registerHandlers(server *rpc.Server, router *shard.Router, prober probe.Prober, scroller *shard.ShardedScroller) {
	server.Register("RecordStore.Probe", func(ctx context.Context, raw json.RawMessage) (any, error) {
		var req wire.ProbeRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			return nil, fmt.Errorf("decoding probe request: %w", err)
		}
		params := probe.Params{
			PathFilter:  fromWirePath(req.PathFilter),
			FieldFilter: fromWireFilter(req.FieldFilter),
			WithHistory: req.WithHistory,
			WithDeleted: req.WithDeleted,
		}
		var sort_ *probe.Sort
		if req.Sort != nil {
			sort_ = &probe.Sort{Field: req.Sort.Field, Ascending: req.Sort.Ascending}
		}
		result, err := prober.Probe(ctx, params, req.TimeFrom, req.TimeTo,
			probe.Pagination{Offset: int(req.Pagination.Offset), Limit: int(req.Pagination.Limit)}, sort_)
		if err != nil {
			return nil, err
		}
		return wire.ProbeResponse{Total: result.Total, FirstIndexTime: result.FirstIndexTime}, nil
	})

	server.Register("RecordStore.Scroll", func(ctx context.Context, raw json.RawMessage) (any, error) {
		var req wire.ScrollRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			return nil, fmt.Errorf("decoding scroll request: %w", err)
		}
		params := probe.Params{
			PathFilter:  fromWirePath(req.PathFilter),
			FieldFilter: fromWireFilter(req.FieldFilter),
			WithHistory: req.WithHistory,
			WithDeleted: req.WithDeleted,
		}
		records, err := scroller.Scroll(ctx, params, req.From, req.To)
		if err != nil {
			return nil, err
		}
		out := make([]wire.Record, len(records))
		for i, r := range records {
			out[i] = wire.Record{UUID: r.UUID, Path: r.Path, IndexTime: r.IndexTime, Deleted: r.Deleted, Fields: r.Fields}
		}
		return wire.ScrollResponse{Records: out}, nil
	})

	server.Register("RecordStore.Ingest", func(ctx context.Context, raw json.RawMessage) (any, error) {
		var req wire.IngestRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			return nil, fmt.Errorf("decoding ingest request: %w", err)
		}
		engine, err := router.RouteForPath(req.Record.Path)
		if err != nil {
			return nil, err
		}
		rec := record.Record{
			UUID:      req.Record.UUID,
			Path:      req.Record.Path,
			IndexTime: req.Record.IndexTime,
			Deleted:   req.Record.Deleted,
			Fields:    req.Record.Fields,
		}
		if err := engine.Index(rec); err != nil {
			return wire.IngestResponse{Success: false, Message: err.Error()}, nil
		}
		return wire.IngestResponse{Success: true}, nil
	})

	server.Register("RecordStore.Flush", func(ctx context.Context, raw json.RawMessage) (any, error) {
		var req wire.FlushRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			return nil, fmt.Errorf("decoding flush request: %w", err)
		}
		if req.ShardID == 0 {
			if err := router.FlushAll(); err != nil {
				return wire.FlushResponse{Success: false, Message: err.Error()}, nil
			}
			return wire.FlushResponse{Success: true}, nil
		}
		engine, err := router.Route(int(req.ShardID))
		if err != nil {
			return nil, err
		}
		if err := engine.Flush(); err != nil {
			return wire.FlushResponse{Success: false, Message: err.Error()}, nil
		}
		return wire.FlushResponse{Success: true}, nil
	})
}

func fromWirePath(pf *wire.PathFilter) *filter.PathFilter {
	if pf == nil {
		return nil
	}
	return &filter.PathFilter{Path: pf.Path, Recursive: pf.Recursive}
}

func fromWireFilter(f *wire.FieldFilter) *filter.Filter {
	if f == nil {
		return nil
	}
	out := &filter.Filter{}
	if f.Condition != nil {
		return filter.Leaf(f.Condition.Field, filter.Comparator(f.Condition.Comparator), f.Condition.Value)
	}
	for _, child := range f.Must {
		out.Must = append(out.Must, fromWireFilter(child))
	}
	for _, child := range f.Should {
		out.Should = append(out.Should, fromWireFilter(child))
	}
	for _, child := range f.MustNot {
		out.MustNot = append(out.MustNot, fromWireFilter(child))
	}
	return out
}
