package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"pkgstats/internal/admin"
	"pkgstats/internal/counter"
	"pkgstats/internal/firehose"
	"pkgstats/internal/ingest"
	"pkgstats/internal/platform/config"
	"pkgstats/internal/platform/httpserver"
	"pkgstats/internal/platform/logger"
	"pkgstats/internal/platform/metrics"
	platformredis "pkgstats/internal/platform/redis"
	"pkgstats/internal/store/downloads"
)

// main wires the pipeline: syslog listener -> parser -> dispatcher ->
// postgres, with redis counters and the kafka firehose as optional sinks.
// Everything runs under one errgroup; a signal cancels the group, the
// listener closes, and the dispatcher drains before exit.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	store := downloads.NewPostgres(pool)
	if err := store.Ping(ctx); err != nil {
		log.Fatalf("ping postgres: %v", err)
	}

	var sinks []ingest.Sink

	rdb, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Fatalf("connect redis: %v", err)
	}
	var stats admin.Stats
	var redisPinger admin.Pinger
	if rdb != nil {
		defer rdb.Close()
		liveCounter := counter.NewRedis(rdb.Client)
		sinks = append(sinks, liveCounter)
		stats = liveCounter
		redisPinger = rdb
		log.Printf("live counters enabled")
	}

	if len(cfg.Kafka.Brokers) > 0 {
		publisher, err := firehose.New(cfg.Kafka.Brokers, cfg.Kafka.Topic, log)
		if err != nil {
			log.Fatalf("connect kafka: %v", err)
		}
		if err := publisher.EnsureTopic(ctx, 3, 1); err != nil {
			log.Fatalf("ensure firehose topic: %v", err)
		}
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := publisher.Close(closeCtx); err != nil {
				log.Printf("close firehose: %v", err)
			}
		}()
		sinks = append(sinks, publisher)
		log.Printf("firehose enabled on topic %s", cfg.Kafka.Topic)
	}

	m := metrics.New(prometheus.DefaultRegisterer)

	dispatcher := ingest.NewDispatcher(store, ingest.DispatcherConfig{
		Workers:      cfg.Dispatch.Workers,
		QueueSize:    cfg.Dispatch.QueueSize,
		WriteTimeout: cfg.Dispatch.WriteTimeout,
	}, m, log, sinks...)

	handler := ingest.NewHandler(dispatcher, m, log)
	listener := ingest.NewListener(cfg.SyslogAddr, handler, log)

	adminSrv := httpserver.New(cfg.AdminAddr, admin.NewRouter(admin.NewHandler(store, redisPinger, stats, log)))

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return dispatcher.Run(ctx) })
	g.Go(func() error { return listener.Serve(ctx) })
	g.Go(func() error {
		log.Printf("admin server on %s", cfg.AdminAddr)
		if err := adminSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return adminSrv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("server error: %v", err)
	}
	log.Printf("shutdown complete")
}
