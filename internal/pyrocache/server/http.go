package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"pyrocache/internal/pyrocache/protocol"
)

// Serves /metrics and the /ws bridge. Each websocket text frame carries one
// command; replies and pub/sub messages come back as text frames.
type HTTPServer struct {
	server     *http.Server
	dispatcher *Dispatcher
	metrics    *Metrics
	logger     *slog.Logger
	upgrader   websocket.Upgrader
}

func NewHTTPServer(addr string, dispatcher *Dispatcher, metrics *Metrics, logger *slog.Logger) *HTTPServer {
	s := &HTTPServer{
		dispatcher: dispatcher,
		metrics:    metrics,
		logger:     logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}

	mux := http.NewServeMux()
	if metrics != nil {
		mux.Handle("/metrics", metrics.Handler())
	}
	mux.HandleFunc("/ws", s.handleWebsocket)

	s.server = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HTTPServer) ListenAndServe(ctx context.Context) error {
	s.server.BaseContext = func(net.Listener) context.Context {
		return ctx
	}

	stop := context.AfterFunc(ctx, func() {
		shutdownContext, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.server.Shutdown(shutdownContext)
	})
	defer stop()

	s.logger.Info("HTTP listener started", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type frameWriter struct {
	mutex      sync.Mutex
	connection *websocket.Conn
}

func (w *frameWriter) Push(line string) error {
	return w.write(line)
}

func (w *frameWriter) WriteReply(reply protocol.Reply) error {
	return w.write(reply.String())
}

func (w *frameWriter) write(text string) error {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	return w.connection.WriteMessage(websocket.TextMessage, []byte(text))
}

func (s *HTTPServer) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	connection, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer connection.Close()

	writer := &frameWriter{connection: connection}
	session := s.dispatcher.Engine().NewSession(r.Context(), writer)
	defer session.Close()

	s.metrics.clientConnected()
	defer s.metrics.clientDisconnected()

	stop := context.AfterFunc(session.Context(), func() {
		connection.Close()
	})
	defer stop()

	lines := make(chan string)
	go func() {
		defer close(lines)
		defer session.Close()

		for {
			_, message, err := connection.ReadMessage()
			if err != nil {
				return
			}
			select {
			case lines <- string(message):
			case <-session.Context().Done():
				return
			}
		}
	}()

	s.dispatcher.Serve(session, lines, writer.WriteReply)
}
