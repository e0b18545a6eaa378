package server

import (
	"context"
	"log/slog"

	"github.com/samber/lo"
	"github.com/tidwall/redcon"

	"pyrocache/internal/pyrocache/commands"
	"pyrocache/internal/pyrocache/protocol"
)

// Serves the same commands over RESP. Connections cannot stream, so the
// subscribe family is rejected here.
type RespServer struct {
	ctx        context.Context
	server     *redcon.Server
	dispatcher *Dispatcher
	metrics    *Metrics
	logger     *slog.Logger
	ready      chan struct{}
}

func NewRespServer(addr string, dispatcher *Dispatcher, metrics *Metrics, logger *slog.Logger) *RespServer {
	s := &RespServer{
		ctx:        context.Background(),
		dispatcher: dispatcher,
		metrics:    metrics,
		logger:     logger,
		ready:      make(chan struct{}),
	}
	s.server = redcon.NewServer(addr, s.handle, s.accept, s.closed)
	return s
}

// Closed once the listener is bound
func (s *RespServer) Ready() <-chan struct{} {
	return s.ready
}

func (s *RespServer) ListenAndServe(ctx context.Context) error {
	s.ctx = ctx

	signal := make(chan error, 1)
	go func() {
		if err := <-signal; err != nil {
			return
		}
		s.logger.Info("RESP listener started")
		close(s.ready)

		<-ctx.Done()
		s.server.Close()
	}()

	err := s.server.ListenServeAndSignal(signal)
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func (s *RespServer) accept(conn redcon.Conn) bool {
	conn.SetContext(s.dispatcher.Engine().NewSession(s.ctx, nil))
	s.metrics.clientConnected()
	return true
}

func (s *RespServer) closed(conn redcon.Conn, err error) {
	if session, ok := conn.Context().(*commands.Session); ok {
		session.Close()
		s.metrics.clientDisconnected()
	}
}

func (s *RespServer) handle(conn redcon.Conn, cmd redcon.Command) {
	session, ok := conn.Context().(*commands.Session)
	if !ok {
		conn.WriteError("ERR no session")
		return
	}

	fields := lo.Map(cmd.Args, func(arg []byte, _ int) string {
		return string(arg)
	})
	writeResp(conn, s.dispatcher.Dispatch(session.Context(), session, fields))
}

func writeResp(conn redcon.Conn, reply protocol.Reply) {
	switch reply.Kind {
	case protocol.NilReply:
		conn.WriteNull()
	case protocol.StatusReply:
		conn.WriteString(reply.Text)
	case protocol.IntegerReply:
		conn.WriteInt64(reply.Integer)
	case protocol.ErrorReply:
		conn.WriteError("ERR " + reply.Text)
	case protocol.ArrayReply:
		conn.WriteArray(len(reply.Items))
		for _, item := range reply.Items {
			writeResp(conn, item)
		}
	default:
		conn.WriteBulkString(reply.Text)
	}
}
