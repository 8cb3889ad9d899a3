package ingest

import (
	"bufio"
	"log"
	"net"

	"pkgstats/internal/platform/metrics"
)

// maxLineBytes caps a single log line. CDN access records are well under a
// kilobyte; anything larger is a broken or hostile stream.
const maxLineBytes = 1024 * 1024

// Handler is the streaming protocol endpoint. It splits the incoming byte
// stream into lines, runs each through the parser synchronously, and hands
// recognized downloads to the dispatcher without waiting for persistence.
type Handler struct {
	parser     *LineParser
	dispatcher *Dispatcher
	metrics    *metrics.Metrics
	log        *log.Logger
}

func NewHandler(dispatcher *Dispatcher, m *metrics.Metrics, logger *log.Logger) *Handler {
	return &Handler{
		parser:     NewLineParser(),
		dispatcher: dispatcher,
		metrics:    m,
		log:        logger,
	}
}

// HandleConn consumes one connection's line stream until the transport
// closes. Each connection is a single intake flow; parsing never blocks and
// never waits on storage.
func (h *Handler) HandleConn(conn net.Conn) {
	defer conn.Close()

	h.metrics.ActiveConnections.Inc()
	defer h.metrics.ActiveConnections.Dec()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for scanner.Scan() {
		h.HandleLine(scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		h.log.Printf("read stream from %s: %v", conn.RemoteAddr(), err)
	}
}

// HandleLine processes one complete line: parse, and on a hit, enqueue the
// event. Unparsable lines and non-downloads are counted and dropped; neither
// outcome interrupts intake.
func (h *Handler) HandleLine(line string) {
	h.metrics.LinesReceived.Inc()

	ev, ok := h.parser.Parse(line)
	if !ok {
		h.metrics.LinesDiscarded.Inc()
		return
	}
	h.metrics.DownloadsParsed.Inc()
	h.dispatcher.Submit(*ev)
}
