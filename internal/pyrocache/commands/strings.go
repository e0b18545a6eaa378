package commands

import (
	"context"
	"math"
	"strconv"
	"time"

	"pyrocache/internal/pyrocache/entries"
	"pyrocache/internal/pyrocache/protocol"
	"pyrocache/pkg/utils"
)

func handleGet(_ context.Context, engine *Engine, request *Request) protocol.Reply {
	value, ok := lookup[*entries.StringEntry](engine, request, request.Args[0])
	if !ok {
		return protocol.Nil()
	}
	return protocol.Bulk(value.Value())
}

func parseSetOptions(args []string) (time.Duration, error) {
	switch len(args) {
	case 2:
		return 0, nil
	case 4:
		if args[2] != "EX" {
			return 0, ErrorSyntax
		}
		seconds, err := utils.FromStringToInt64(args[3])
		if err != nil {
			return 0, ErrorSeconds
		}
		if seconds <= 0 || !fitsDuration(seconds, time.Second) {
			return 0, ErrorExpiry
		}
		return time.Duration(seconds) * time.Second, nil
	default:
		return 0, ErrorParameterCount
	}
}

// SET key value [EX seconds]
func handleSet(_ context.Context, engine *Engine, request *Request) protocol.Reply {
	ttl, _ := parseSetOptions(request.Args)
	if ttl == 0 {
		ttl = engine.defaultTTL
	}

	entry := entries.NewString(request.Args[0], request.Args[1])
	if ttl > 0 {
		entry.SetTTL(ttl)
	}
	engine.store.Set(request.Args[0], entry)
	return protocol.OK()
}

// SETEX key seconds value
func handleSetex(_ context.Context, engine *Engine, request *Request) protocol.Reply {
	seconds, _ := utils.FromStringToInt64(request.Args[1])
	if seconds <= 0 {
		return protocol.Error(ErrorExpiry.Error())
	}

	entry := entries.NewString(request.Args[0], request.Args[2])
	entry.SetTTL(time.Duration(seconds) * time.Second)
	engine.store.Set(request.Args[0], entry)
	return protocol.OK()
}

func handleMget(_ context.Context, engine *Engine, request *Request) protocol.Reply {
	replies := make([]protocol.Reply, 0, len(request.Args))
	for _, key := range request.Args {
		if value, ok := lookup[*entries.StringEntry](engine, request, key); ok {
			replies = append(replies, protocol.Bulk(value.Value()))
		} else {
			replies = append(replies, protocol.Nil())
		}
	}
	return protocol.Array(replies...)
}

func handleMset(_ context.Context, engine *Engine, request *Request) protocol.Reply {
	for i := 0; i+1 < len(request.Args); i += 2 {
		engine.store.Set(request.Args[i], entries.NewString(request.Args[i], request.Args[i+1]))
	}
	return protocol.OK()
}

func handleAppend(_ context.Context, engine *Engine, request *Request) protocol.Reply {
	value, ok := create(engine, request.Args[0], newString)
	if !ok {
		return protocol.Int(0)
	}
	return protocol.Int(value.Append(request.Args[1]))
}

func handleStrlen(_ context.Context, engine *Engine, request *Request) protocol.Reply {
	value, ok := lookup[*entries.StringEntry](engine, request, request.Args[0])
	if !ok {
		return protocol.Int(0)
	}
	return protocol.Int(value.Len())
}

// A missing key counts from zero. Non integer content replies nil.
func incrementBy(engine *Engine, key string, delta int64) protocol.Reply {
	value, ok := create(engine, key, func(key string) *entries.StringEntry {
		return entries.NewString(key, "0")
	})
	if !ok {
		return protocol.Nil()
	}

	next, err := value.IncrBy(delta)
	if err != nil {
		return protocol.Nil()
	}
	return protocol.Integer(next)
}

func handleIncr(_ context.Context, engine *Engine, request *Request) protocol.Reply {
	return incrementBy(engine, request.Args[0], 1)
}

func handleDecr(_ context.Context, engine *Engine, request *Request) protocol.Reply {
	return incrementBy(engine, request.Args[0], -1)
}

func handleIncrby(_ context.Context, engine *Engine, request *Request) protocol.Reply {
	delta, _ := utils.FromStringToInt64(request.Args[1])
	return incrementBy(engine, request.Args[0], delta)
}

func handleDecrby(_ context.Context, engine *Engine, request *Request) protocol.Reply {
	delta, _ := utils.FromStringToInt64(request.Args[1])
	if delta == math.MinInt64 {
		return protocol.Nil()
	}
	return incrementBy(engine, request.Args[0], -delta)
}

// Replaces the value and returns the previous one. The new value has no ttl.
func handleGetset(_ context.Context, engine *Engine, request *Request) protocol.Reply {
	key := request.Args[0]

	previous := protocol.Nil()
	if existing, ok := lookupEntry(engine, request, key); ok {
		value, isString := existing.(*entries.StringEntry)
		if !isString {
			return protocol.Nil()
		}
		previous = protocol.Bulk(value.Value())
	}

	engine.store.Set(key, entries.NewString(key, request.Args[1]))
	return previous
}

// GETRANGE key start end, also served as SUBSTR
func handleGetrange(_ context.Context, engine *Engine, request *Request) protocol.Reply {
	value, ok := lookup[*entries.StringEntry](engine, request, request.Args[0])
	if !ok {
		return protocol.Bulk("")
	}
	start, _ := strconv.Atoi(request.Args[1])
	end, _ := strconv.Atoi(request.Args[2])
	return protocol.Bulk(value.GetRange(start, end))
}

func handleSetrange(_ context.Context, engine *Engine, request *Request) protocol.Reply {
	offset, _ := strconv.Atoi(request.Args[1])
	if offset < 0 {
		return protocol.Error(ErrorOffset.Error())
	}
	if offset > MaxValueLength-len(request.Args[2]) {
		return protocol.Error(ErrorValueTooLong.Error())
	}

	value, ok := create(engine, request.Args[0], newString)
	if !ok {
		return protocol.Int(0)
	}
	return protocol.Int(value.SetRange(offset, request.Args[2]))
}
