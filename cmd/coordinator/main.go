// Command coordinator is the bulk-consume coordinator service: it exposes
// the Chunk Dispatcher HTTP endpoint, fronted by the usual health/metrics
// wiring, and talks to an out-of-process cmd/recordstored over pkg/rpc.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Adithya-Monish-Kumar-K/bulk-consume-coordinator/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/bulk-consume-coordinator/internal/bulkconsume/dispatcher"
	"github.com/Adithya-Monish-Kumar-K/bulk-consume-coordinator/internal/bulkconsume/probe/rpcclient"
	"github.com/Adithya-Monish-Kumar-K/bulk-consume-coordinator/internal/fieldcache"
	fieldcacheconsumer "github.com/Adithya-Monish-Kumar-K/bulk-consume-coordinator/internal/fieldcache/consumer"
	"github.com/Adithya-Monish-Kumar-K/bulk-consume-coordinator/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/bulk-consume-coordinator/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/bulk-consume-coordinator/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/bulk-consume-coordinator/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/bulk-consume-coordinator/pkg/middleware"
	pkgpostgres "github.com/Adithya-Monish-Kumar-K/bulk-consume-coordinator/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/bulk-consume-coordinator/pkg/redis"
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
	slog.Info("starting bulk-consume coordinator", "port", cfg.Server.Port, "record_store_addr", cfg.RecordStore.RPCAddr)

	recordStore, err := rpcclient.Dial(cfg.RecordStore.RPCAddr)
	if err != nil {
		slog.Error("failed to connect to record store", "error", err)
		os.Exit(1)
	}
	defer recordStore.Close()

	var redisClient *pkgredis.Client
	var fieldCache *fieldcache.Cache
	redisClient, err = pkgredis.NewClient(cfg.Redis)
	if err != nil {
		slog.Warn("redis unavailable, field-types cache disabled", "error", err)
	} else {
		defer redisClient.Close()
		var db *pkgpostgres.Client
		db, err = pkgpostgres.New(cfg.Postgres)
		if err != nil {
			slog.Warn("postgres unavailable, field-types cache has no fallback source", "error", err)
		} else {
			defer db.DB.Close()
		}
		fieldCache = fieldcache.New(redisClient, db, cfg.Redis)
		slog.Info("field-types cache enabled", "addr", cfg.Redis.Addr)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if fieldCache != nil {
		invalidateConsumer := fieldcacheconsumer.New(
			kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.CacheInvalidate, fieldcacheconsumer.HandleMessage(fieldCache)),
		)
		go func() {
			if err := invalidateConsumer.Start(ctx); err != nil {
				slog.Error("field cache invalidate consumer stopped", "error", err)
			}
		}()
		slog.Info("field cache invalidate consumer started", "topic", cfg.Kafka.Topics.CacheInvalidate)
	}

	producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.ChunkEvents)
	collector := analytics.NewCollector(producer, 10000)
	collector.Start(ctx)
	defer collector.Close()
	slog.Info("analytics collector started", "topic", cfg.Kafka.Topics.ChunkEvents)

	d := dispatcher.New(recordStore, recordStore, recordStore, fieldCache, collector, cfg.BulkConsume)

	checker := health.NewChecker()
	checker.Register("record_store", func(ctx context.Context) health.ComponentHealth {
		return health.ComponentHealth{Status: health.StatusUp}
	})
	checker.Register("redis", func(ctx context.Context) health.ComponentHealth {
		if redisClient == nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "not configured"}
		}
		if err := redisClient.Ping(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})

	mux := http.NewServeMux()
	mux.Handle("GET /api/v1/consume", d)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("coordinator listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("coordinator stopped")
}
