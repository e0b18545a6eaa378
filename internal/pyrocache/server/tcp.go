package server

import (
	"bufio"
	"context"
	"errors"
	"log/slog"
	"net"
	"sync"

	"pyrocache/internal/pyrocache/commands"
	"pyrocache/internal/pyrocache/protocol"
)

// Longest accepted command line
const maxLineLength = commands.MaxValueLength + 64*1024

// Serves the line protocol: one whitespace separated command per line,
// replies and pub/sub messages written back as text lines.
type LineServer struct {
	addr       string
	dispatcher *Dispatcher
	metrics    *Metrics
	logger     *slog.Logger
}

func NewLineServer(addr string, dispatcher *Dispatcher, metrics *Metrics, logger *slog.Logger) *LineServer {
	return &LineServer{addr: addr, dispatcher: dispatcher, metrics: metrics, logger: logger}
}

func (s *LineServer) ListenAndServe(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.logger.Info("PyroCache server started", "addr", listener.Addr().String())
	return s.Serve(ctx, listener)
}

// Accepts connections on listener until ctx is done
func (s *LineServer) Serve(ctx context.Context, listener net.Listener) error {
	stop := context.AfterFunc(ctx, func() {
		listener.Close()
	})
	defer stop()

	var connections sync.WaitGroup
	defer connections.Wait()

	for {
		connection, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.logger.Warn("accept failed", "error", err)
			continue
		}

		connections.Add(1)
		go func() {
			defer connections.Done()
			s.HandleConnection(ctx, connection)
		}()
	}
}

// Serializes writes from the reply loop and the pub/sub forwarders
type lineWriter struct {
	mutex      sync.Mutex
	connection net.Conn
}

func (w *lineWriter) Push(line string) error {
	return w.write(line + "\n")
}

func (w *lineWriter) WriteReply(reply protocol.Reply) error {
	return w.write(reply.ToString())
}

func (w *lineWriter) write(text string) error {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	_, err := w.connection.Write([]byte(text))
	return err
}

func (s *LineServer) HandleConnection(ctx context.Context, connection net.Conn) {
	defer connection.Close()

	writer := &lineWriter{connection: connection}
	session := s.dispatcher.Engine().NewSession(ctx, writer)
	defer session.Close()

	s.metrics.clientConnected()
	defer s.metrics.clientDisconnected()

	// unblocks the reader once the session ends
	stop := context.AfterFunc(session.Context(), func() {
		connection.Close()
	})
	defer stop()

	lines := make(chan string)
	go func() {
		defer close(lines)
		// a closed connection cancels whatever command is still blocked
		defer session.Close()

		scanner := bufio.NewScanner(connection)
		scanner.Buffer(make([]byte, 64*1024), maxLineLength)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-session.Context().Done():
				return
			}
		}
		if err := scanner.Err(); err != nil && !errors.Is(err, net.ErrClosed) {
			s.logger.Debug("connection read failed", "session", session.ID, "error", err)
		}
	}()

	s.dispatcher.Serve(session, lines, writer.WriteReply)
}
