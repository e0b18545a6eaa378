// Package server exposes the command engine over the network: the line
// protocol on TCP, RESP through redcon and a websocket bridge over HTTP.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"pyrocache/internal/pyrocache/commands"
	"pyrocache/internal/pyrocache/entries"
	pyroerrors "pyrocache/internal/pyrocache/errors"
	"pyrocache/internal/pyrocache/protocol"
)

// Notified after every successful write
type ChangeRecorder interface {
	RecordChange()
}

type Dispatcher struct {
	registry commands.Registry
	engine   *commands.Engine
	changes  ChangeRecorder
	metrics  *Metrics
	logger   *slog.Logger
}

func NewDispatcher(engine *commands.Engine, changes ChangeRecorder, metrics *Metrics, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		registry: commands.NewRegistry(),
		engine:   engine,
		changes:  changes,
		metrics:  metrics,
		logger:   logger,
	}
}

func (d *Dispatcher) Engine() *commands.Engine {
	return d.engine
}

// Runs one command for session. fields holds the command name followed by
// its arguments.
func (d *Dispatcher) Dispatch(ctx context.Context, session *commands.Session, fields []string) protocol.Reply {
	if len(fields) == 0 {
		return protocol.Error("Invalid command!")
	}

	command, args, ok := d.registry.Resolve(fields)
	if !ok {
		return protocol.Failure(fmt.Errorf("unknown command '%v'", fields[0]))
	}

	if d.engine.Pause().Paused() && !command.AllowWhilePaused {
		return protocol.Status("PAUSED.")
	}

	if err := command.Validate(args); err != nil {
		return protocol.Error(err.Error())
	}

	if command.Streams && !session.CanPush() {
		return protocol.Failure(pyroerrors.ErrorStreamingUnsupported)
	}

	started := time.Now()
	request := commands.NewRequest(command.Name, args, session)
	reply := d.run(ctx, command, request)

	purged := 0
	for _, key := range request.PurgeKeys() {
		if d.engine.Store().RemoveIf(key, entries.Entry.IsExpired) {
			purged++
		}
	}

	if d.changes != nil && ((command.Writes && !reply.IsError()) || purged > 0) {
		d.changes.RecordChange()
	}

	elapsed := time.Since(started)
	d.metrics.observe(command.Name, reply.IsError(), elapsed)
	d.logger.Debug("command processed",
		"command", command.Name,
		"session", session.ID,
		"purged", purged,
		"duration", elapsed,
	)
	return reply
}

// Feeds command lines to the dispatcher until lines is closed, a reply
// cannot be written or the session ends.
func (d *Dispatcher) Serve(session *commands.Session, lines <-chan string, write func(protocol.Reply) error) {
	for {
		select {
		case <-session.Context().Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			reply := d.Dispatch(session.Context(), session, strings.Fields(line))
			if err := write(reply); err != nil {
				d.logger.Debug("reply not delivered", "session", session.ID, "error", err)
				return
			}
		}
	}
}

// A panicking handler fails its own command only
func (d *Dispatcher) run(ctx context.Context, command commands.Command, request *commands.Request) (reply protocol.Reply) {
	defer func() {
		if recovered := recover(); recovered != nil {
			d.logger.Error("command panicked",
				"command", command.Name,
				"session", request.Session.ID,
				"panic", recovered,
			)
			reply = protocol.Failure(fmt.Errorf("%s failed: %v", command.Name, recovered))
		}
	}()
	return command.Run(ctx, d.engine, request)
}
