package commands

import (
	"context"

	"github.com/samber/lo"

	"pyrocache/internal/pyrocache/entries"
	"pyrocache/internal/pyrocache/protocol"
)

type setOperation func(first *entries.SetEntry, others ...*entries.SetEntry) *entries.SetEntry

var (
	setUnion     setOperation = (*entries.SetEntry).Union
	setIntersect setOperation = (*entries.SetEntry).Intersect
	setDiff      setOperation = (*entries.SetEntry).Diff
)

func handleSadd(_ context.Context, engine *Engine, request *Request) protocol.Reply {
	set, ok := create(engine, request.Args[0], newSet)
	if !ok {
		return protocol.Int(0)
	}
	return protocol.Int(set.Add(request.Args[1:]...))
}

func handleSrem(_ context.Context, engine *Engine, request *Request) protocol.Reply {
	set, ok := lookup[*entries.SetEntry](engine, request, request.Args[0])
	if !ok {
		return protocol.Int(0)
	}
	return protocol.Int(set.Remove(request.Args[1:]...))
}

func handleScard(_ context.Context, engine *Engine, request *Request) protocol.Reply {
	set, ok := lookup[*entries.SetEntry](engine, request, request.Args[0])
	if !ok {
		return protocol.Int(0)
	}
	return protocol.Int(set.Len())
}

func handleSmembers(_ context.Context, engine *Engine, request *Request) protocol.Reply {
	set, ok := lookup[*entries.SetEntry](engine, request, request.Args[0])
	if !ok {
		return protocol.Array()
	}
	return protocol.Strings(set.Members())
}

func handleSismember(_ context.Context, engine *Engine, request *Request) protocol.Reply {
	set, ok := lookup[*entries.SetEntry](engine, request, request.Args[0])
	if !ok {
		return protocol.Int(0)
	}
	return protocol.Bool(set.Contains(request.Args[1]))
}

func handleSmismember(_ context.Context, engine *Engine, request *Request) protocol.Reply {
	set, found := lookup[*entries.SetEntry](engine, request, request.Args[0])
	return protocol.Array(lo.Map(request.Args[1:], func(member string, _ int) protocol.Reply {
		return protocol.Bool(found && set.Contains(member))
	})...)
}

// Applies operation over the sets under keys, a missing key acting as an empty set.
func combineSets(engine *Engine, request *Request, keys []string, operation setOperation) *entries.SetEntry {
	operands := lo.Map(keys, func(key string, _ int) *entries.SetEntry {
		set, ok := lookup[*entries.SetEntry](engine, request, key)
		return lo.Ternary(ok, set, nil)
	})

	first := operands[0]
	if first == nil {
		first = entries.NewSet("")
	}
	return operation(first, operands[1:]...)
}

func setAlgebra(operation setOperation) HandlerFunc {
	return func(_ context.Context, engine *Engine, request *Request) protocol.Reply {
		return protocol.Strings(combineSets(engine, request, request.Args, operation).Members())
	}
}

// Stores the result under the first argument, replacing what was there.
func setAlgebraStore(operation setOperation) HandlerFunc {
	return func(_ context.Context, engine *Engine, request *Request) protocol.Reply {
		destination := request.Args[0]
		result := combineSets(engine, request, request.Args[1:], operation)
		return storeResult(engine, destination, result, result.Len())
	}
}

// SMOVE source destination member
func handleSmove(_ context.Context, engine *Engine, request *Request) protocol.Reply {
	source, ok := lookup[*entries.SetEntry](engine, request, request.Args[0])
	if !ok || !source.Contains(request.Args[2]) {
		return protocol.Int(0)
	}

	destination, ok := create(engine, request.Args[1], newSet)
	if !ok {
		return protocol.Int(0)
	}
	if source.Remove(request.Args[2]) == 0 {
		return protocol.Int(0)
	}
	destination.Add(request.Args[2])
	return protocol.Int(1)
}
