package commands

import (
	"context"

	"github.com/samber/lo"

	"pyrocache/internal/pyrocache/entries"
	"pyrocache/internal/pyrocache/protocol"
	"pyrocache/pkg/utils"
)

// HSET key field value [field value ...]
func handleHset(_ context.Context, engine *Engine, request *Request) protocol.Reply {
	hash, ok := create(engine, request.Args[0], newHash)
	if !ok {
		return protocol.Int(0)
	}

	pairs := make(map[string]string, len(request.Args)/2)
	for i := 1; i+1 < len(request.Args); i += 2 {
		pairs[request.Args[i]] = request.Args[i+1]
	}
	return protocol.Int(hash.SetMany(pairs))
}

func handleHget(_ context.Context, engine *Engine, request *Request) protocol.Reply {
	hash, ok := lookup[*entries.HashEntry](engine, request, request.Args[0])
	if !ok {
		return protocol.Nil()
	}
	value, ok := hash.Get(request.Args[1])
	if !ok {
		return protocol.Nil()
	}
	return protocol.Bulk(value)
}

func handleHmget(_ context.Context, engine *Engine, request *Request) protocol.Reply {
	hash, found := lookup[*entries.HashEntry](engine, request, request.Args[0])
	return protocol.Array(lo.Map(request.Args[1:], func(field string, _ int) protocol.Reply {
		if !found {
			return protocol.Nil()
		}
		value, ok := hash.Get(field)
		return lo.Ternary(ok, protocol.Bulk(value), protocol.Nil())
	})...)
}

func handleHgetall(_ context.Context, engine *Engine, request *Request) protocol.Reply {
	hash, ok := lookup[*entries.HashEntry](engine, request, request.Args[0])
	if !ok {
		return protocol.Array()
	}

	fields := hash.All()
	replies := make([]protocol.Reply, 0, len(fields)*2)
	for _, field := range sortedStrings(lo.Keys(fields)) {
		replies = append(replies, protocol.Bulk(field), protocol.Bulk(fields[field]))
	}
	return protocol.Array(replies...)
}

func handleHexists(_ context.Context, engine *Engine, request *Request) protocol.Reply {
	hash, ok := lookup[*entries.HashEntry](engine, request, request.Args[0])
	if !ok {
		return protocol.Int(0)
	}
	_, exists := hash.Get(request.Args[1])
	return protocol.Bool(exists)
}

func handleHlen(_ context.Context, engine *Engine, request *Request) protocol.Reply {
	hash, ok := lookup[*entries.HashEntry](engine, request, request.Args[0])
	if !ok {
		return protocol.Int(0)
	}
	return protocol.Int(hash.Len())
}

func handleHdel(_ context.Context, engine *Engine, request *Request) protocol.Reply {
	hash, ok := lookup[*entries.HashEntry](engine, request, request.Args[0])
	if !ok {
		return protocol.Int(0)
	}
	return protocol.Int(hash.Delete(request.Args[1:]...))
}

func handleHkeys(_ context.Context, engine *Engine, request *Request) protocol.Reply {
	hash, ok := lookup[*entries.HashEntry](engine, request, request.Args[0])
	if !ok {
		return protocol.Array()
	}
	return protocol.Strings(hash.Fields())
}

// Byte length of the field value
func handleHstrlen(_ context.Context, engine *Engine, request *Request) protocol.Reply {
	hash, ok := lookup[*entries.HashEntry](engine, request, request.Args[0])
	if !ok {
		return protocol.Int(0)
	}
	value, _ := hash.Get(request.Args[1])
	return protocol.Int(len(value))
}

// HINCRBY key field increment
func handleHincrby(_ context.Context, engine *Engine, request *Request) protocol.Reply {
	delta, _ := utils.FromStringToInt64(request.Args[2])

	hash, ok := create(engine, request.Args[0], newHash)
	if !ok {
		return protocol.Nil()
	}
	value, err := hash.IncrBy(request.Args[1], delta)
	if err != nil {
		return protocol.Nil()
	}
	return protocol.Integer(value)
}
