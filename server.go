package exchange

import (
	"bufio"
	"context"
	"errors"
	"log/slog"
	"net"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/marketgrid/exchange/protocol"
)

// Server accepts trader connections and runs one session per connection:
// a read loop that decodes command lines and dispatches them to the engine,
// and a write loop that drains the connection's outbound buffer. The
// outbound side is registered as a Sink so the broadcaster can reach it.
type Server struct {
	addr        string
	engine      *Engine
	registry    *Registry
	outboundBuf int

	ln         net.Listener
	isShutdown atomic.Bool
	wg         sync.WaitGroup
}

// NewServer creates a server. outboundBuf is the per-connection outbound
// line buffer; a receiver that falls further behind than this loses
// notifications rather than stalling the exchange.
func NewServer(addr string, engine *Engine, registry *Registry, outboundBuf int) *Server {
	if outboundBuf <= 0 {
		outboundBuf = 256
	}
	return &Server{
		addr:        addr,
		engine:      engine,
		registry:    registry,
		outboundBuf: outboundBuf,
	}
}

// Listen binds the TCP listener. It must be called before Serve.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.ln = ln

	logger.Info("exchange server listening", slog.String("addr", ln.Addr().String()))
	return nil
}

// ListenAndServe binds the listener and accepts connections until the
// context is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve(ctx)
}

// Serve accepts connections until the context is cancelled, then closes the
// listener and waits for active sessions to finish.
func (s *Server) Serve(ctx context.Context) error {
	ln := s.ln

	go func() {
		<-ctx.Done()
		s.isShutdown.Store(true)
		_ = ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.isShutdown.Load() {
				s.wg.Wait()
				return nil
			}
			return err
		}

		s.wg.Add(1)
		go s.handleConn(conn)
	}
}

// Addr returns the listener address, once listening.
func (s *Server) Addr() net.Addr {
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// connSink is the outbound half of one session: a bounded line buffer
// drained by the session's write loop.
type connSink struct {
	out       chan string
	closed    chan struct{}
	closeOnce sync.Once
}

func newConnSink(buf int) *connSink {
	return &connSink{
		out:    make(chan string, buf),
		closed: make(chan struct{}),
	}
}

// Send enqueues a line without blocking. A closed session returns
// ErrSinkClosed; a full buffer returns ErrSinkFull and the line is dropped.
func (c *connSink) Send(line string) error {
	select {
	case <-c.closed:
		return ErrSinkClosed
	default:
	}

	select {
	case c.out <- line:
		return nil
	default:
		return ErrSinkFull
	}
}

func (c *connSink) close() {
	c.closeOnce.Do(func() {
		close(c.closed)
	})
}

func (s *Server) handleConn(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	sink := newConnSink(s.outboundBuf)
	connID := s.registry.Register(sink)
	defer s.registry.Deregister(connID)
	defer sink.close()

	go s.writeLoop(conn, sink)
	s.readLoop(conn, connID, sink)
}

func (s *Server) readLoop(conn net.Conn, connID string, sink *connSink) {
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}

		cmd, err := protocol.ParseCommand(line)
		if err != nil {
			_ = sink.Send(protocol.FormatReject(rejectReason(err), 0))
			continue
		}

		reply, err := s.engine.Handle(connID, cmd)
		if err != nil {
			_ = sink.Send(protocol.FormatReject(rejectReason(err), cmd.OrderID))
			continue
		}
		if reply != "" {
			_ = sink.Send(reply)
		}
	}

	if err := scanner.Err(); err != nil && !s.isShutdown.Load() {
		logger.Debug("connection read ended", slog.String("conn_id", connID), slog.String("err", err.Error()))
	}
}

func (s *Server) writeLoop(conn net.Conn, sink *connSink) {
	w := bufio.NewWriter(conn)
	for {
		select {
		case <-sink.closed:
			return
		case line := <-sink.out:
			if !writeLine(w, line) {
				sink.close()
				_ = conn.Close()
				return
			}

			// Drain whatever else is already queued before flushing.
			for more := true; more; {
				select {
				case line = <-sink.out:
					if !writeLine(w, line) {
						sink.close()
						_ = conn.Close()
						return
					}
				default:
					more = false
				}
			}

			if err := w.Flush(); err != nil {
				sink.close()
				_ = conn.Close()
				return
			}
		}
	}
}

func writeLine(w *bufio.Writer, line string) bool {
	if _, err := w.WriteString(line); err != nil {
		return false
	}
	if err := w.WriteByte('\n'); err != nil {
		return false
	}
	return true
}

// rejectReason maps an error to the reason token of a reject line.
func rejectReason(err error) string {
	switch {
	case errors.Is(err, protocol.ErrMalformedCommand):
		return "malformed_command"
	case errors.Is(err, ErrDuplicateOrder):
		return "duplicate_order"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrShutdown):
		return "shutdown"
	default:
		return "invalid"
	}
}
