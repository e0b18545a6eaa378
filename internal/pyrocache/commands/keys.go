package commands

import (
	"context"
	"math"
	"slices"
	"sort"
	"strconv"
	"time"

	"github.com/samber/lo"

	"pyrocache/internal/pyrocache/entries"
	"pyrocache/internal/pyrocache/keyspace"
	"pyrocache/internal/pyrocache/protocol"
	"pyrocache/pkg/utils"
)

func handleDel(_ context.Context, engine *Engine, request *Request) protocol.Reply {
	removed := lo.CountBy(lo.Uniq(request.Args), func(key string) bool {
		entry, ok := engine.store.Remove(key)
		return ok && !entry.IsExpired()
	})
	return protocol.Int(removed)
}

func handleExists(_ context.Context, engine *Engine, request *Request) protocol.Reply {
	found := lo.CountBy(request.Args, func(key string) bool {
		_, ok := lookupEntry(engine, request, key)
		return ok
	})
	return protocol.Int(found)
}

// Applies an absolute deadline; one in the past deletes the key.
func expireAt(engine *Engine, request *Request, key string, deadline time.Time) protocol.Reply {
	entry, ok := lookupEntry(engine, request, key)
	if !ok {
		return protocol.Int(0)
	}
	if !deadline.After(time.Now()) {
		engine.store.Remove(key)
		return protocol.Int(1)
	}
	entry.ExpireAt(deadline)
	return protocol.Int(1)
}

func handleExpire(_ context.Context, engine *Engine, request *Request) protocol.Reply {
	seconds, _ := utils.FromStringToInt64(request.Args[1])
	return expireAt(engine, request, request.Args[0], time.Now().Add(time.Duration(seconds)*time.Second))
}

func handlePexpire(_ context.Context, engine *Engine, request *Request) protocol.Reply {
	milliseconds, _ := utils.FromStringToInt64(request.Args[1])
	return expireAt(engine, request, request.Args[0], time.Now().Add(time.Duration(milliseconds)*time.Millisecond))
}

func handleExpireat(_ context.Context, engine *Engine, request *Request) protocol.Reply {
	timestamp, _ := utils.FromStringToInt64(request.Args[1])
	return expireAt(engine, request, request.Args[0], time.Unix(timestamp, 0))
}

// -2 for a missing key, -1 when no ttl is set
func handleExpiretime(_ context.Context, engine *Engine, request *Request) protocol.Reply {
	entry, ok := lookupEntry(engine, request, request.Args[0])
	if !ok {
		return protocol.Integer(-2)
	}
	deadline, hasTTL := entry.ExpiresAt()
	if !hasTTL {
		return protocol.Integer(-1)
	}
	return protocol.Integer(deadline.Unix())
}

func handleTtl(_ context.Context, engine *Engine, request *Request) protocol.Reply {
	entry, ok := lookupEntry(engine, request, request.Args[0])
	if !ok {
		return protocol.Integer(-2)
	}
	deadline, hasTTL := entry.ExpiresAt()
	if !hasTTL {
		return protocol.Integer(-1)
	}
	return protocol.Integer(int64(math.Round(time.Until(deadline).Seconds())))
}

func handlePersist(_ context.Context, engine *Engine, request *Request) protocol.Reply {
	entry, ok := lookupEntry(engine, request, request.Args[0])
	if !ok {
		return protocol.Int(0)
	}
	return protocol.Bool(entry.Persist())
}

func handleRename(_ context.Context, engine *Engine, request *Request) protocol.Reply {
	source, destination := request.Args[0], request.Args[1]
	if _, ok := lookupEntry(engine, request, source); !ok {
		return protocol.Nil()
	}
	if source == destination {
		return protocol.OK()
	}
	if !engine.store.Rename(source, destination) {
		return protocol.Nil()
	}
	return protocol.OK()
}

// COPY source destination [REPLACE]
func handleCopy(_ context.Context, engine *Engine, request *Request) protocol.Reply {
	source, destination := request.Args[0], request.Args[1]
	replace := len(request.Args) == 3

	entry, ok := lookupEntry(engine, request, source)
	if !ok || source == destination {
		return protocol.Int(0)
	}

	clone := entry.Clone(destination)
	if replace {
		engine.store.Set(destination, clone)
		return protocol.Int(1)
	}
	return protocol.Bool(engine.store.SetIfAbsent(destination, clone))
}

func handleKeys(_ context.Context, engine *Engine, request *Request) protocol.Reply {
	items := engine.store.Select(keyspace.AndQuery{Queries: []keyspace.KeyQuery{
		keyspace.LiveQuery{},
		keyspace.NewPatternQuery(request.Args[0]),
	}})
	return protocol.Strings(keyspace.Keys(items))
}

func handleRandomkey(_ context.Context, engine *Engine, _ *Request) protocol.Reply {
	key, ok := engine.store.Random()
	if !ok {
		return protocol.Nil()
	}
	return protocol.Bulk(key)
}

func handleType(_ context.Context, engine *Engine, request *Request) protocol.Reply {
	entry, ok := lookupEntry(engine, request, request.Args[0])
	if !ok {
		return protocol.Status("none")
	}
	return protocol.Status(entry.Type().String())
}

func handleDbsize(_ context.Context, engine *Engine, _ *Request) protocol.Reply {
	return protocol.Int(engine.store.Len())
}

type sortOptions struct {
	descending  bool
	alpha       bool
	limited     bool
	offset      int
	count       int
	destination string
}

// SORT key [ASC|DESC] [ALPHA] [LIMIT offset count] [STORE destination]
func parseSortOptions(args []string) (sortOptions, error) {
	options := sortOptions{}
	if len(args) < 1 {
		return options, ErrorParameterCount
	}

	for i := 1; i < len(args); i++ {
		switch args[i] {
		case "ASC":
			options.descending = false
		case "DESC":
			options.descending = true
		case "ALPHA":
			options.alpha = true
		case "LIMIT":
			if i+2 >= len(args) {
				return options, ErrorParameterCount
			}
			offset, errOffset := strconv.Atoi(args[i+1])
			count, errCount := strconv.Atoi(args[i+2])
			if errOffset != nil || errCount != nil {
				return options, ErrorOffset
			}
			options.limited, options.offset, options.count = true, offset, count
			i += 2
		case "STORE":
			if i+1 >= len(args) {
				return options, ErrorParameterCount
			}
			if len(args[i+1]) > MaxKeyLength {
				return options, ErrorKeyTooLong
			}
			options.destination = args[i+1]
			i++
		default:
			return options, ErrorSyntax
		}
	}
	return options, nil
}

func sortableValues(entry entries.Entry) []string {
	switch typed := entry.(type) {
	case *entries.ListEntry:
		return typed.Values()
	case *entries.SetEntry:
		return typed.Members()
	case *entries.SortedSetEntry:
		return lo.Map(typed.Members(), func(member entries.ScoredMember, _ int) string {
			return member.Member
		})
	default:
		return []string{}
	}
}

// Orders list, set or sorted set elements numerically, or lexicographically with ALPHA.
func handleSort(_ context.Context, engine *Engine, request *Request) protocol.Reply {
	options, _ := parseSortOptions(request.Args)

	values := []string{}
	if entry, ok := lookupEntry(engine, request, request.Args[0]); ok {
		values = sortableValues(entry)
	}

	if options.alpha {
		slices.Sort(values)
	} else {
		numbers := make(map[string]float64, len(values))
		for _, value := range values {
			number, err := utils.FromStringToFloat64(value)
			if err != nil {
				return protocol.Error("One or more scores can't be converted into double.")
			}
			numbers[value] = number
		}
		sort.SliceStable(values, func(i, j int) bool {
			if numbers[values[i]] != numbers[values[j]] {
				return numbers[values[i]] < numbers[values[j]]
			}
			return values[i] < values[j]
		})
	}

	if options.descending {
		slices.Reverse(values)
	}
	if options.limited {
		values = paginate(values, options.offset, options.count)
	}

	if options.destination != "" {
		return storeResult(engine, options.destination, entries.NewList(options.destination, values...), len(values))
	}
	return protocol.Strings(values)
}

// Applies LIMIT offset count; a negative count keeps everything after offset.
func paginate[T any](values []T, offset, count int) []T {
	if offset < 0 || offset >= len(values) {
		return []T{}
	}
	values = values[offset:]
	if count >= 0 && count < len(values) {
		values = values[:count]
	}
	return values
}

func handleSave(ctx context.Context, engine *Engine, _ *Request) protocol.Reply {
	if err := engine.saver.Save(ctx); err != nil {
		return protocol.Failure(err)
	}
	return protocol.OK()
}

func handleBgsave(_ context.Context, engine *Engine, _ *Request) protocol.Reply {
	engine.saver.BackgroundSave()
	return protocol.Status("Background saving started")
}

func handleLastsave(_ context.Context, engine *Engine, _ *Request) protocol.Reply {
	lastSave := engine.saver.LastSave()
	if lastSave.IsZero() {
		return protocol.Integer(0)
	}
	return protocol.Integer(lastSave.Unix())
}
