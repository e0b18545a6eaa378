package commands

import (
	"context"
	"strconv"
	"time"

	"github.com/samber/lo"

	"pyrocache/internal/pyrocache/entries"
	"pyrocache/internal/pyrocache/protocol"
)

func handleLpush(_ context.Context, engine *Engine, request *Request) protocol.Reply {
	list, ok := create(engine, request.Args[0], newList)
	if !ok {
		return protocol.Int(0)
	}
	return protocol.Int(list.PushLeft(request.Args[1:]...))
}

func handleRpush(_ context.Context, engine *Engine, request *Request) protocol.Reply {
	list, ok := create(engine, request.Args[0], newList)
	if !ok {
		return protocol.Int(0)
	}
	return protocol.Int(list.PushRight(request.Args[1:]...))
}

func handleLpop(_ context.Context, engine *Engine, request *Request) protocol.Reply {
	list, ok := lookup[*entries.ListEntry](engine, request, request.Args[0])
	if !ok {
		return protocol.Nil()
	}
	value, ok := list.PopLeft()
	if !ok {
		return protocol.Nil()
	}
	return protocol.Bulk(value)
}

func handleRpop(_ context.Context, engine *Engine, request *Request) protocol.Reply {
	list, ok := lookup[*entries.ListEntry](engine, request, request.Args[0])
	if !ok {
		return protocol.Nil()
	}
	value, ok := list.PopRight()
	if !ok {
		return protocol.Nil()
	}
	return protocol.Bulk(value)
}

func handleLrange(_ context.Context, engine *Engine, request *Request) protocol.Reply {
	list, ok := lookup[*entries.ListEntry](engine, request, request.Args[0])
	if !ok {
		return protocol.Array()
	}
	start, _ := strconv.Atoi(request.Args[1])
	stop, _ := strconv.Atoi(request.Args[2])
	return protocol.Strings(list.Range(start, stop))
}

func handleLindex(_ context.Context, engine *Engine, request *Request) protocol.Reply {
	list, ok := lookup[*entries.ListEntry](engine, request, request.Args[0])
	if !ok {
		return protocol.Nil()
	}
	index, _ := strconv.Atoi(request.Args[1])
	value, ok := list.Index(index)
	if !ok {
		return protocol.Nil()
	}
	return protocol.Bulk(value)
}

func handleLlen(_ context.Context, engine *Engine, request *Request) protocol.Reply {
	list, ok := lookup[*entries.ListEntry](engine, request, request.Args[0])
	if !ok {
		return protocol.Int(0)
	}
	return protocol.Int(list.Len())
}

func handleLset(_ context.Context, engine *Engine, request *Request) protocol.Reply {
	list, ok := lookup[*entries.ListEntry](engine, request, request.Args[0])
	if !ok {
		return protocol.Nil()
	}
	index, _ := strconv.Atoi(request.Args[1])
	if !list.Set(index, request.Args[2]) {
		return protocol.Error("Index out of range.")
	}
	return protocol.OK()
}

// LINSERT key BEFORE|AFTER pivot element
func handleLinsert(_ context.Context, engine *Engine, request *Request) protocol.Reply {
	list, ok := lookup[*entries.ListEntry](engine, request, request.Args[0])
	if !ok {
		return protocol.Int(0)
	}
	before := request.Args[1] == "BEFORE"
	return protocol.Int(list.Insert(before, request.Args[2], request.Args[3]))
}

// BRPOP key [key ...] timeout
//
// Pops the tail of the first non empty list. When all are empty it waits for
// a push on any of them, the timeout (0 waits until the session ends) or
// cancellation of ctx.
func handleBrpop(ctx context.Context, engine *Engine, request *Request) protocol.Reply {
	keys := request.Args[:len(request.Args)-1]
	seconds, _ := strconv.ParseFloat(request.Args[len(request.Args)-1], 64)

	pop := func() (protocol.Reply, bool) {
		for _, key := range keys {
			list, ok := lookup[*entries.ListEntry](engine, request, key)
			if !ok {
				continue
			}
			if value, ok := list.PopRight(); ok {
				return protocol.Array(protocol.Bulk(key), protocol.Bulk(value)), true
			}
		}
		return protocol.Nil(), false
	}

	if reply, ok := pop(); ok {
		return reply
	}

	wake := make(chan struct{}, 1)
	watched := 0
	for _, key := range lo.Uniq(keys) {
		list, ok := lookup[*entries.ListEntry](engine, request, key)
		if !ok {
			continue
		}
		unsubscribe := list.Subscribe(wake)
		defer unsubscribe()
		watched++
	}
	if watched == 0 {
		return protocol.Nil()
	}

	var deadline <-chan time.Time
	if seconds > 0 {
		timer := time.NewTimer(time.Duration(seconds * float64(time.Second)))
		defer timer.Stop()
		deadline = timer.C
	}

	for {
		// re-check after registering, a push may have raced the first attempt
		if reply, ok := pop(); ok {
			return reply
		}

		select {
		case <-wake:
		case <-deadline:
			return protocol.Nil()
		case <-ctx.Done():
			return protocol.Nil()
		}
	}
}
