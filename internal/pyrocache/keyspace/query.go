package keyspace

import (
	"path"
	"regexp"

	"github.com/samber/lo"

	"pyrocache/internal/pyrocache/entries"
)

type KeyQuery interface {
	Match(key string, entry entries.Entry) bool
}

// Matches keys against pattern read both as an unanchored regular
// expression and as a glob; either one matching is enough.
type PatternQuery struct {
	Pattern    string
	expression *regexp.Regexp
}

type TypeQuery struct {
	Type entries.EntryType
}

type LiveQuery struct{}

type AndQuery struct {
	Queries []KeyQuery
}

func NewPatternQuery(pattern string) PatternQuery {
	query := PatternQuery{Pattern: pattern}
	if expression, err := regexp.Compile(pattern); err == nil {
		query.expression = expression
	}
	return query
}

func (q PatternQuery) Match(key string, _ entries.Entry) bool {
	if q.expression != nil && q.expression.MatchString(key) {
		return true
	}
	matched, err := path.Match(q.Pattern, key)
	return err == nil && matched
}

func (q TypeQuery) Match(_ string, entry entries.Entry) bool {
	return entry.Type() == q.Type
}

func (q LiveQuery) Match(_ string, entry entries.Entry) bool {
	return !entry.IsExpired()
}

func (q AndQuery) Match(key string, entry entries.Entry) bool {
	return lo.EveryBy(q.Queries, func(subQuery KeyQuery) bool {
		return subQuery.Match(key, entry)
	})
}

// Items matching query, sorted by key
func (s *Store) Select(query KeyQuery) []Item {
	return lo.Filter(s.Items(), func(item Item, _ int) bool {
		return query.Match(item.Key, item.Entry)
	})
}

func Keys(items []Item) []string {
	return lo.Map(items, func(item Item, _ int) string {
		return item.Key
	})
}
