package commands

import (
	"context"
	"strconv"

	"github.com/samber/lo"

	"pyrocache/internal/pyrocache/entries"
	"pyrocache/internal/pyrocache/protocol"
	"pyrocache/pkg/utils"
)

// Flat member, score, member, score... or members only
func scoredReply(members []entries.ScoredMember, withScores bool) protocol.Reply {
	replies := make([]protocol.Reply, 0, len(members)*2)
	for _, member := range members {
		replies = append(replies, protocol.Bulk(member.Member))
		if withScores {
			replies = append(replies, protocol.Score(member.Score))
		}
	}
	return protocol.Array(replies...)
}

// ZADD key score member [score member ...]
func handleZadd(_ context.Context, engine *Engine, request *Request) protocol.Reply {
	zset, ok := create(engine, request.Args[0], newSortedSet)
	if !ok {
		return protocol.Int(0)
	}

	added := 0
	for i := 1; i+1 < len(request.Args); i += 2 {
		score, _ := utils.FromStringToFloat64(request.Args[i])
		if zset.Add(score, request.Args[i+1]) {
			added++
		}
	}
	return protocol.Int(added)
}

func handleZcard(_ context.Context, engine *Engine, request *Request) protocol.Reply {
	zset, ok := lookup[*entries.SortedSetEntry](engine, request, request.Args[0])
	if !ok {
		return protocol.Int(0)
	}
	return protocol.Int(zset.Len())
}

func handleZscore(_ context.Context, engine *Engine, request *Request) protocol.Reply {
	zset, ok := lookup[*entries.SortedSetEntry](engine, request, request.Args[0])
	if !ok {
		return protocol.Nil()
	}
	score, ok := zset.Score(request.Args[1])
	if !ok {
		return protocol.Nil()
	}
	return protocol.Score(score)
}

func handleZmscore(_ context.Context, engine *Engine, request *Request) protocol.Reply {
	zset, found := lookup[*entries.SortedSetEntry](engine, request, request.Args[0])
	return protocol.Array(lo.Map(request.Args[1:], func(member string, _ int) protocol.Reply {
		if !found {
			return protocol.Nil()
		}
		score, ok := zset.Score(member)
		return lo.Ternary(ok, protocol.Score(score), protocol.Nil())
	})...)
}

func handleZrank(_ context.Context, engine *Engine, request *Request) protocol.Reply {
	zset, ok := lookup[*entries.SortedSetEntry](engine, request, request.Args[0])
	if !ok {
		return protocol.Nil()
	}
	rank, ok := zset.Rank(request.Args[1])
	if !ok {
		return protocol.Nil()
	}
	return protocol.Int(rank)
}

func handleZrem(_ context.Context, engine *Engine, request *Request) protocol.Reply {
	zset, ok := lookup[*entries.SortedSetEntry](engine, request, request.Args[0])
	if !ok {
		return protocol.Int(0)
	}
	return protocol.Int(zset.Remove(request.Args[1:]...))
}

const (
	rangeByIndex = iota
	rangeByScore
	rangeByLex
)

type zrangeOptions struct {
	mode       int
	reverse    bool
	withScores bool
	limited    bool
	offset     int
	count      int

	start, stop        int
	minScore, maxScore entries.ScoreBound
	minLex, maxLex     entries.LexBound
}

// ZRANGE key start stop [BYSCORE|BYLEX] [REV] [LIMIT offset count] [WITHSCORES]
func parseZrange(args []string) (zrangeOptions, error) {
	options := zrangeOptions{}
	if len(args) < 3 {
		return options, ErrorParameterCount
	}

	for i := 3; i < len(args); i++ {
		switch args[i] {
		case "BYSCORE":
			options.mode = rangeByScore
		case "BYLEX":
			options.mode = rangeByLex
		case "REV":
			options.reverse = true
		case "WITHSCORES":
			options.withScores = true
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
		default:
			return options, ErrorSyntax
		}
	}

	// with REV the score and lex bounds are given highest first
	low, high := args[1], args[2]
	if options.reverse {
		low, high = high, low
	}

	var err error
	switch options.mode {
	case rangeByIndex:
		if options.start, err = utils.FromStringToIndex(args[1]); err != nil {
			return options, ErrorStartIndex
		}
		if options.stop, err = utils.FromStringToIndex(args[2]); err != nil {
			return options, ErrorEndIndex
		}
	case rangeByScore:
		if options.minScore, err = entries.ParseScoreBound(low); err != nil {
			return options, ErrorScore
		}
		if options.maxScore, err = entries.ParseScoreBound(high); err != nil {
			return options, ErrorScore
		}
	case rangeByLex:
		if options.minLex, err = entries.ParseLexBound(low); err != nil {
			return options, ErrorSyntax
		}
		if options.maxLex, err = entries.ParseLexBound(high); err != nil {
			return options, ErrorSyntax
		}
	}
	return options, nil
}

func handleZrange(_ context.Context, engine *Engine, request *Request) protocol.Reply {
	options, _ := parseZrange(request.Args)

	zset, ok := lookup[*entries.SortedSetEntry](engine, request, request.Args[0])
	if !ok {
		return protocol.Array()
	}

	var members []entries.ScoredMember
	switch options.mode {
	case rangeByScore:
		members = zset.RangeByScore(options.minScore, options.maxScore, options.reverse)
	case rangeByLex:
		members = zset.RangeByLex(options.minLex, options.maxLex, options.reverse)
	default:
		members = zset.RangeByIndex(options.start, options.stop, options.reverse)
	}

	if options.limited {
		members = paginate(members, options.offset, options.count)
	}
	return scoredReply(members, options.withScores)
}

func parseScoreRange(args []string) ([2]entries.ScoreBound, error) {
	var bounds [2]entries.ScoreBound
	if len(args) != 3 {
		return bounds, ErrorParameterCount
	}
	for i := range bounds {
		bound, err := entries.ParseScoreBound(args[i+1])
		if err != nil {
			return bounds, ErrorScore
		}
		bounds[i] = bound
	}
	return bounds, nil
}

func handleZcount(_ context.Context, engine *Engine, request *Request) protocol.Reply {
	bounds, _ := parseScoreRange(request.Args)

	zset, ok := lookup[*entries.SortedSetEntry](engine, request, request.Args[0])
	if !ok {
		return protocol.Int(0)
	}
	return protocol.Int(zset.Count(bounds[0], bounds[1]))
}

// ZINCRBY key increment member
func handleZincrby(_ context.Context, engine *Engine, request *Request) protocol.Reply {
	delta, _ := utils.FromStringToFloat64(request.Args[1])

	zset, ok := create(engine, request.Args[0], newSortedSet)
	if !ok {
		return protocol.Nil()
	}
	score, err := zset.IncrBy(request.Args[2], delta)
	if err != nil {
		return protocol.Failure(err)
	}
	return protocol.Score(score)
}

func popCount(args []string, position int) int {
	if position >= len(args) {
		return 1
	}
	count, _ := strconv.Atoi(args[position])
	return count
}

func handleZpopmin(_ context.Context, engine *Engine, request *Request) protocol.Reply {
	zset, ok := lookup[*entries.SortedSetEntry](engine, request, request.Args[0])
	if !ok {
		return protocol.Array()
	}
	return scoredReply(zset.PopMin(popCount(request.Args, 1)), true)
}

func handleZpopmax(_ context.Context, engine *Engine, request *Request) protocol.Reply {
	zset, ok := lookup[*entries.SortedSetEntry](engine, request, request.Args[0])
	if !ok {
		return protocol.Array()
	}
	return scoredReply(zset.PopMax(popCount(request.Args, 1)), true)
}

type zmpopOptions struct {
	keys  []string
	max   bool
	count int
}

// ZMPOP numkeys key [key ...] MIN|MAX [COUNT count]
func parseZmpop(args []string) (zmpopOptions, error) {
	options := zmpopOptions{count: 1}
	if err := numKeysAt(0)(args); err != nil {
		return options, err
	}

	keys, rest := splitNumKeys(args, 0)
	options.keys = keys
	if len(rest) != 1 && len(rest) != 3 {
		return options, ErrorParameterCount
	}

	switch rest[0] {
	case "MIN":
	case "MAX":
		options.max = true
	default:
		return options, ErrorSyntax
	}

	if len(rest) == 3 {
		if rest[1] != "COUNT" {
			return options, ErrorSyntax
		}
		count, err := strconv.Atoi(rest[2])
		if err != nil || count < 1 {
			return options, ErrorCount
		}
		options.count = count
	}
	return options, nil
}

// Pops from the first non empty sorted set among the keys
func handleZmpop(_ context.Context, engine *Engine, request *Request) protocol.Reply {
	options, _ := parseZmpop(request.Args)

	for _, key := range options.keys {
		zset, ok := lookup[*entries.SortedSetEntry](engine, request, key)
		if !ok || zset.Len() == 0 {
			continue
		}

		popped := lo.Ternary(options.max, zset.PopMax, zset.PopMin)(options.count)
		pairs := lo.Map(popped, func(member entries.ScoredMember, _ int) protocol.Reply {
			return protocol.Array(protocol.Bulk(member.Member), protocol.Score(member.Score))
		})
		return protocol.Array(protocol.Bulk(key), protocol.Array(pairs...))
	}
	return protocol.Nil()
}

type sortedSetOperation func(first *entries.SortedSetEntry, others ...*entries.SortedSetEntry) *entries.SortedSetEntry

var (
	sortedSetUnion     sortedSetOperation = (*entries.SortedSetEntry).Union
	sortedSetDiff      sortedSetOperation = (*entries.SortedSetEntry).Diff
	sortedSetIntersect sortedSetOperation = (*entries.SortedSetEntry).Intersect
)

func combineSortedSets(engine *Engine, request *Request, keys []string, operation sortedSetOperation) *entries.SortedSetEntry {
	operands := lo.Map(keys, func(key string, _ int) *entries.SortedSetEntry {
		zset, ok := lookup[*entries.SortedSetEntry](engine, request, key)
		return lo.Ternary(ok, zset, nil)
	})

	first := operands[0]
	if first == nil {
		first = entries.NewSortedSet("")
	}
	return operation(first, operands[1:]...)
}

// numkeys key [key ...] [WITHSCORES]
func parseAlgebraWithScores(args []string) (bool, error) {
	if err := numKeysAt(0)(args); err != nil {
		return false, err
	}
	_, rest := splitNumKeys(args, 0)
	switch {
	case len(rest) == 0:
		return false, nil
	case len(rest) == 1 && rest[0] == "WITHSCORES":
		return true, nil
	}
	return false, ErrorSyntax
}

func sortedSetAlgebra(operation sortedSetOperation) HandlerFunc {
	return func(_ context.Context, engine *Engine, request *Request) protocol.Reply {
		withScores, _ := parseAlgebraWithScores(request.Args)
		keys, _ := splitNumKeys(request.Args, 0)
		result := combineSortedSets(engine, request, keys, operation)
		return scoredReply(result.Members(), withScores)
	}
}

// ZDIFFSTORE destination numkeys key [key ...]
func handleZdiffstore(_ context.Context, engine *Engine, request *Request) protocol.Reply {
	keys, _ := splitNumKeys(request.Args, 1)
	result := combineSortedSets(engine, request, keys, sortedSetDiff)
	return storeResult(engine, request.Args[0], result, result.Len())
}

// numkeys key [key ...] [LIMIT limit]
func parseZintercard(args []string) (int, error) {
	if err := numKeysAt(0)(args); err != nil {
		return 0, err
	}
	_, rest := splitNumKeys(args, 0)
	switch {
	case len(rest) == 0:
		return 0, nil
	case len(rest) == 2 && rest[0] == "LIMIT":
		limit, err := strconv.Atoi(rest[1])
		if err != nil || limit < 0 {
			return 0, ErrorCount
		}
		return limit, nil
	}
	return 0, ErrorSyntax
}

// Cardinality of the intersection, capped by LIMIT when it is non zero
func handleZintercard(_ context.Context, engine *Engine, request *Request) protocol.Reply {
	limit, _ := parseZintercard(request.Args)
	keys, _ := splitNumKeys(request.Args, 0)

	cardinality := combineSortedSets(engine, request, keys, sortedSetIntersect).Len()
	if limit > 0 && cardinality > limit {
		cardinality = limit
	}
	return protocol.Int(cardinality)
}
