package ingest

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"pkgstats/internal/platform/metrics"
)

// Store is the persistence gateway consumed by the dispatcher. It is the only
// operation the pipeline needs from durable storage; implementations must be
// safe for concurrent use by multiple workers.
type Store interface {
	CreateDownload(ctx context.Context, d Download) error
}

// Sink receives a copy of every successfully stored download. Sinks are
// best-effort: their errors are logged and never propagated.
type Sink interface {
	RecordDownload(ctx context.Context, d Download) error
}

// writeResult is the completion signal a worker sends back after one
// persistence call. Consumed for logging, metrics and sink fan-out only;
// intake never waits on it.
type writeResult struct {
	download Download
	elapsed  time.Duration
	err      error
}

// DispatcherConfig sizes the worker pool.
type DispatcherConfig struct {
	// Workers is the number of concurrent persistence calls.
	Workers int
	// QueueSize bounds the task queue; a full queue drops events rather
	// than blocking intake.
	QueueSize int
	// WriteTimeout caps a single persistence call so a hung write cannot
	// pin a worker forever.
	WriteTimeout time.Duration
}

func (c DispatcherConfig) withDefaults() DispatcherConfig {
	if c.Workers <= 0 {
		c.Workers = 8
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 1024
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 30 * time.Second
	}
	return c
}

// Dispatcher executes persistence calls off the intake path on a bounded
// worker pool. Submit never blocks; completions arrive on an internal results
// channel in whatever order the writes finish.
type Dispatcher struct {
	store   Store
	sinks   []Sink
	cfg     DispatcherConfig
	metrics *metrics.Metrics
	log     *log.Logger

	tasks   chan Download
	results chan writeResult
}

// NewDispatcher builds a dispatcher writing to store, with sinks notified
// after each successful write.
func NewDispatcher(store Store, cfg DispatcherConfig, m *metrics.Metrics, logger *log.Logger, sinks ...Sink) *Dispatcher {
	cfg = cfg.withDefaults()
	return &Dispatcher{
		store:   store,
		sinks:   sinks,
		cfg:     cfg,
		metrics: m,
		log:     logger,
		tasks:   make(chan Download, cfg.QueueSize),
		results: make(chan writeResult, cfg.QueueSize),
	}
}

// Submit enqueues one download for persistence without blocking. A full
// queue drops the event and reports false; intake must never stall on
// storage.
func (d *Dispatcher) Submit(ev Download) bool {
	select {
	case d.tasks <- ev:
		return true
	default:
		d.metrics.EventsDropped.Inc()
		return false
	}
}

// Run drives the worker pool until ctx is cancelled, then drains whatever was
// already submitted before returning. Already-dispatched writes are allowed
// to finish; there is no abandonment on shutdown.
func (d *Dispatcher) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for range d.cfg.Workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.worker(ctx)
		}()
	}

	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		d.completionLoop(ctx)
	}()

	wg.Wait()
	close(d.results)
	<-loopDone
	return nil
}

func (d *Dispatcher) worker(ctx context.Context) {
	for {
		select {
		case ev := <-d.tasks:
			d.process(ctx, ev)
		case <-ctx.Done():
			for {
				select {
				case ev := <-d.tasks:
					d.process(ctx, ev)
				default:
					return
				}
			}
		}
	}
}

// process runs one persistence call and reports its completion. In-flight
// writes outlive intake cancellation, so the call runs on a detached context
// bounded only by the write timeout.
func (d *Dispatcher) process(ctx context.Context, ev Download) {
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.cfg.WriteTimeout)
	defer cancel()

	start := time.Now()
	err := d.createDownload(writeCtx, ev)
	d.results <- writeResult{download: ev, elapsed: time.Since(start), err: err}
}

// createDownload converts a panicking store into an ordinary failure so one
// bad event can never take down the pool.
func (d *Dispatcher) createDownload(ctx context.Context, ev Download) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("create download panicked: %v", r)
		}
	}()
	return d.store.CreateDownload(ctx, ev)
}

// completionLoop consumes write completions for logging, metrics and sink
// fan-out. Failures are counted and logged, never retried or escalated.
func (d *Dispatcher) completionLoop(ctx context.Context) {
	for res := range d.results {
		d.metrics.ObserveWrite(res.elapsed, res.err)
		if res.err != nil {
			d.log.Printf("store download %s %s: %v",
				res.download.PackageName, res.download.PackageVersion, res.err)
			continue
		}
		for _, sink := range d.sinks {
			sinkCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.cfg.WriteTimeout)
			if err := sink.RecordDownload(sinkCtx, res.download); err != nil {
				d.log.Printf("record download %s in sink: %v", res.download.PackageName, err)
			}
			cancel()
		}
	}
}
