package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"pkgstats/internal/platform/metrics"
)

// memoryStore is a minimal Store double; the real in-memory implementation
// lives in internal/store/downloads, but the pipeline tests only need append
// and inspect plus failure injection.
type memoryStore struct {
	mu        sync.Mutex
	downloads []Download
	failPkg   string // CreateDownload fails for this package name
	panicPkg  string // CreateDownload panics for this package name
}

func newMemoryStore() *memoryStore {
	return &memoryStore{}
}

func (s *memoryStore) CreateDownload(ctx context.Context, d Download) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.panicPkg != "" && d.PackageName == s.panicPkg {
		panic("store blew up on " + d.PackageName)
	}
	if s.failPkg != "" && d.PackageName == s.failPkg {
		return errors.New("connection reset")
	}
	s.downloads = append(s.downloads, d)
	return nil
}

func (s *memoryStore) Downloads() []Download {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Download, len(s.downloads))
	copy(out, s.downloads)
	return out
}

// recordingSink captures successful-write notifications.
type recordingSink struct {
	mu       sync.Mutex
	recorded []Download
	failAll  bool
}

func newRecordingSink() *recordingSink {
	return &recordingSink{}
}

func (s *recordingSink) RecordDownload(ctx context.Context, d Download) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll {
		return errors.New("sink unavailable")
	}
	s.recorded = append(s.recorded, d)
	return nil
}

func (s *recordingSink) Recorded() []Download {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Download, len(s.recorded))
	copy(out, s.recorded)
	return out
}

type HandlerSuite struct {
	suite.Suite
	store      *memoryStore
	sink       *recordingSink
	dispatcher *Dispatcher
	handler    *Handler
	cancel     context.CancelFunc
	done       chan error
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.store = newMemoryStore()
	s.sink = newRecordingSink()

	m := metrics.New(prometheus.NewRegistry())
	logger := log.New(io.Discard, "", 0)

	s.dispatcher = NewDispatcher(s.store, DispatcherConfig{
		Workers:      4,
		QueueSize:    4096,
		WriteTimeout: 5 * time.Second,
	}, m, logger, s.sink)
	s.handler = NewHandler(s.dispatcher, m, logger)

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan error, 1)
	go func() { s.done <- s.dispatcher.Run(ctx) }()
}

// drain cancels the dispatcher and waits for it to finish every submitted
// write.
func (s *HandlerSuite) drain() {
	s.cancel()
	select {
	case err := <-s.done:
		s.Require().NoError(err)
	case <-time.After(10 * time.Second):
		s.FailNow("dispatcher did not drain")
	}
}

func downloadLineFor(pkg string, version int) string {
	return fmt.Sprintf(`2013-12-08T23:24:40Z cache-c31 pypi-cdn[18322]: 199.182.120.6 `+
		`"Sun, 08 Dec 2013 23:24:40 GMT" "-" `+
		`"GET /packages/source/X/%s/%s-0.%d.tar.gz" HTTP/1.1 200 `+
		`16930 156751 HIT 326 "(null)" "(null)" "Python-urllib/2.7"`, pkg, pkg, version)
}

// One valid line in, exactly one event persisted, every field populated from
// the combination of path and user-agent parsing.
func (s *HandlerSuite) TestSingleDownloadPersisted() {
	s.handler.HandleLine(downloadLine)
	s.drain()

	stored := s.store.Downloads()
	s.Require().Len(stored, 1)
	s.Equal(wantINITools, stored[0])
}

// N distinct valid lines in rapid succession yield N persisted events, no
// loss, regardless of write completion order.
func (s *HandlerSuite) TestNoLossUnderBurst() {
	const n = 500
	for i := range n {
		s.handler.HandleLine(downloadLineFor("burstpkg", i))
	}
	s.drain()

	stored := s.store.Downloads()
	s.Require().Len(stored, n)

	versions := make(map[string]bool, n)
	for _, d := range stored {
		versions[d.PackageVersion] = true
	}
	s.Len(versions, n, "every submitted event stored exactly once")
}

// Non-download lines never produce events, no matter how often they repeat.
func (s *HandlerSuite) TestDiscardProducesNothing() {
	for range 50 {
		s.handler.HandleLine(indexLine)
		s.handler.HandleLine("complete nonsense")
	}
	s.drain()

	s.Empty(s.store.Downloads())
	s.Empty(s.sink.Recorded())
}

// A failing store must not interrupt intake; unaffected events still persist.
func (s *HandlerSuite) TestWriteFailureIsolated() {
	s.store.failPkg = "INITools"

	s.handler.HandleLine(downloadLine)
	s.handler.HandleLine(downloadLineFor("afterfail", 1))
	s.drain()

	stored := s.store.Downloads()
	s.Require().Len(stored, 1)
	s.Equal("afterfail", stored[0].PackageName)
}

// A panicking store is converted into a per-event failure at the pool
// boundary; the pool and subsequent events survive.
func (s *HandlerSuite) TestStorePanicContained() {
	s.store.panicPkg = "INITools"

	s.handler.HandleLine(downloadLine)
	s.handler.HandleLine(downloadLineFor("afterpanic", 1))
	s.drain()

	stored := s.store.Downloads()
	s.Require().Len(stored, 1)
	s.Equal("afterpanic", stored[0].PackageName)
}

// Sinks see each stored event; a sink failure is logged, not propagated, and
// does not affect persistence.
func (s *HandlerSuite) TestSinkNotifiedAfterWrite() {
	s.handler.HandleLine(downloadLine)
	s.drain()

	recorded := s.sink.Recorded()
	s.Require().Len(recorded, 1)
	s.Equal(wantINITools, recorded[0])
}

func (s *HandlerSuite) TestSinkFailureDoesNotAffectStorage() {
	s.sink.failAll = true
	s.handler.HandleLine(downloadLine)
	s.drain()

	s.Len(s.store.Downloads(), 1)
	s.Empty(s.sink.Recorded())
}

// HandleConn splits the stream into lines and survives the transport
// closing mid-session.
func (s *HandlerSuite) TestHandleConn() {
	client, server := net.Pipe()
	connDone := make(chan struct{})
	go func() {
		defer close(connDone)
		s.handler.HandleConn(server)
	}()

	_, err := fmt.Fprintf(client, "%s\n%s\n%s\n", downloadLine, indexLine, downloadLineFor("streamed", 1))
	s.Require().NoError(err)
	s.Require().NoError(client.Close())

	select {
	case <-connDone:
	case <-time.After(5 * time.Second):
		s.FailNow("connection handler did not finish")
	}
	s.drain()

	stored := s.store.Downloads()
	s.Require().Len(stored, 2)
}

// Submit never blocks: with no workers draining and a full queue, extra
// events are dropped rather than stalling the caller.
func TestDispatcherSubmitNeverBlocks(t *testing.T) {
	store := newMemoryStore()
	m := metrics.New(prometheus.NewRegistry())
	d := NewDispatcher(store, DispatcherConfig{Workers: 1, QueueSize: 2}, m, log.New(io.Discard, "", 0))

	// Dispatcher not running: queue fills, then Submit reports drops.
	require.True(t, d.Submit(wantINITools))
	require.True(t, d.Submit(wantINITools))

	done := make(chan bool, 1)
	go func() { done <- d.Submit(wantINITools) }()
	select {
	case accepted := <-done:
		require.False(t, accepted)
	case <-time.After(time.Second):
		t.Fatal("Submit blocked on a full queue")
	}
}
