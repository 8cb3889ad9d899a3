package ingest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
)

// Listener accepts syslog stream connections and runs one Handler read loop
// per connection.
type Listener struct {
	addr    string
	handler *Handler
	log     *log.Logger
}

func NewListener(addr string, handler *Handler, logger *log.Logger) *Listener {
	return &Listener{addr: addr, handler: handler, log: logger}
}

// Serve binds the address and accepts connections until ctx is cancelled.
// Connection handlers run on their own goroutines and finish independently.
func (l *Listener) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", l.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", l.addr, err)
	}

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	l.log.Printf("syslog stream listening on %s", l.addr)

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}
		go l.handler.HandleConn(conn)
	}
}
