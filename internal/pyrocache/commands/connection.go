package commands

import (
	"context"
	"time"

	"pyrocache/internal/pyrocache/protocol"
	"pyrocache/pkg/utils"
)

func handlePing(_ context.Context, _ *Engine, request *Request) protocol.Reply {
	if len(request.Args) == 1 {
		return protocol.Bulk(request.Args[0])
	}
	return protocol.Status("PONG")
}

func handleEcho(_ context.Context, _ *Engine, request *Request) protocol.Reply {
	return protocol.Bulk(request.Args[0])
}

func handleClientGetname(_ context.Context, _ *Engine, request *Request) protocol.Reply {
	name := request.Session.Name()
	if name == "" {
		return protocol.Nil()
	}
	return protocol.Bulk(name)
}

func handleClientSetname(_ context.Context, _ *Engine, request *Request) protocol.Reply {
	request.Session.name.Store(request.Args[0])
	return protocol.OK()
}

func handleClientID(_ context.Context, _ *Engine, request *Request) protocol.Reply {
	return protocol.Integer(int64(request.Session.ID))
}

// CLIENT PAUSE milliseconds
func handleClientPause(_ context.Context, engine *Engine, request *Request) protocol.Reply {
	milliseconds, _ := utils.FromStringToInt64(request.Args[0])
	engine.pause.Pause(time.Duration(milliseconds) * time.Millisecond)
	return protocol.OK()
}

func handleClientUnpause(_ context.Context, engine *Engine, _ *Request) protocol.Reply {
	engine.pause.Resume()
	return protocol.OK()
}

// AUTH username password
//
// Credentials come from configuration and gate nothing, the flag is only
// reported back on the session.
func handleAuth(_ context.Context, engine *Engine, request *Request) protocol.Reply {
	if request.Args[0] != engine.username || request.Args[1] != engine.password {
		return protocol.Error("Invalid credentials.")
	}
	request.Session.authenticated.Store(true)
	return protocol.Status("Successfully authenticated.")
}
