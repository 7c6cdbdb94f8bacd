// Package benchmark contains Go benchmarks for the record store engine and
// its tokenizer, measuring throughput and allocation behaviour.
package benchmark

import (
	"context"
	"fmt"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/bulk-consume-coordinator/internal/bulkconsume/probe"
	"github.com/Adithya-Monish-Kumar-K/bulk-consume-coordinator/internal/record"
	"github.com/Adithya-Monish-Kumar-K/bulk-consume-coordinator/internal/recordstore"
	"github.com/Adithya-Monish-Kumar-K/bulk-consume-coordinator/pkg/config"
)

func benchConfig(b *testing.B) config.RecordStoreConfig {
	return config.RecordStoreConfig{
		DataDir:        b.TempDir(),
		SegmentMaxSize: 100 * 1024 * 1024,
		FlushInterval:  0,
	}
}

// BenchmarkEngineIndex measures record store indexing throughput at various
// pre-loaded corpus sizes.
func BenchmarkEngineIndex(b *testing.B) {
	sizes := []int{100, 1000, 5000}
	for _, preload := range sizes {
		b.Run(fmt.Sprintf("preload_%d", preload), func(b *testing.B) {
			engine, err := recordstore.NewEngine(benchConfig(b))
			if err != nil {
				b.Fatal(err)
			}
			defer engine.Close()

			for i := 0; i < preload; i++ {
				if err := engine.Index(record.Record{UUID: fmt.Sprintf("preload-%d", i), Path: "/a/b", IndexTime: int64(i)}); err != nil {
					b.Fatal(err)
				}
			}

			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				rec := record.Record{UUID: fmt.Sprintf("bench-%d", i), Path: "/a/b", IndexTime: int64(preload + i)}
				if err := engine.Index(rec); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkEngineCount measures count-probe latency across a 10 000-record
// engine.
func BenchmarkEngineCount(b *testing.B) {
	engine, err := recordstore.NewEngine(benchConfig(b))
	if err != nil {
		b.Fatal(err)
	}
	defer engine.Close()

	for i := 0; i < 10000; i++ {
		rec := record.Record{UUID: fmt.Sprintf("doc-%d", i), Path: "/a/b", IndexTime: int64(i)}
		if err := engine.Index(rec); err != nil {
			b.Fatal(err)
		}
	}

	ctx := context.Background()
	params := probe.Params{}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		total, err := engine.Count(ctx, params, 0, 10000)
		if err != nil {
			b.Fatal(err)
		}
		_ = total
	}
}

// BenchmarkEngineScroll measures scroll throughput over a fixed time range.
func BenchmarkEngineScroll(b *testing.B) {
	engine, err := recordstore.NewEngine(benchConfig(b))
	if err != nil {
		b.Fatal(err)
	}
	defer engine.Close()

	for i := 0; i < 10000; i++ {
		rec := record.Record{UUID: fmt.Sprintf("doc-%d", i), Path: "/a/b", IndexTime: int64(i)}
		if err := engine.Index(rec); err != nil {
			b.Fatal(err)
		}
	}

	ctx := context.Background()
	params := probe.Params{}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		records, err := engine.Scroll(ctx, params, 0, 1000)
		if err != nil {
			b.Fatal(err)
		}
		_ = records
	}
}
