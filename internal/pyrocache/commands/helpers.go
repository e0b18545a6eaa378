package commands

import (
	"slices"
	"strings"

	"pyrocache/internal/pyrocache/entries"
	"pyrocache/internal/pyrocache/keyspace"
	"pyrocache/internal/pyrocache/protocol"
)

// Live entry under key. An expired entry reads as missing and is queued
// for purge on the request.
func lookupEntry(engine *Engine, request *Request, key string) (entries.Entry, bool) {
	entry, ok := engine.store.Get(key)
	if !ok {
		return nil, false
	}
	if entry.IsExpired() {
		request.Purge(key)
		return nil, false
	}
	entry.Touch()
	return entry, true
}

// Typed variant of lookupEntry, a different variant reads as missing.
func lookup[T entries.Entry](engine *Engine, request *Request, key string) (T, bool) {
	var zero T

	entry, ok := lookupEntry(engine, request, key)
	if !ok {
		return zero, false
	}
	typed, ok := entry.(T)
	if !ok {
		return zero, false
	}
	return typed, true
}

// Entry of type T under key, created when missing or expired.
func create[T entries.Entry](engine *Engine, key string, build func(key string) T) (T, bool) {
	entry, ok := keyspace.GetOrCreate(engine.store, key, build)
	if ok {
		entry.Touch()
	}
	return entry, ok
}

func newList(key string) *entries.ListEntry {
	return entries.NewList(key)
}

func newSet(key string) *entries.SetEntry {
	return entries.NewSet(key)
}

func newSortedSet(key string) *entries.SortedSetEntry {
	return entries.NewSortedSet(key)
}

func newHash(key string) *entries.HashEntry {
	return entries.NewHash(key, nil)
}

func newGeo(key string) *entries.GeoEntry {
	return entries.NewGeo(key, nil)
}

func newString(key string) *entries.StringEntry {
	return entries.NewString(key, "")
}

// Stores entry under key, or drops key when the result is empty.
func storeResult(engine *Engine, key string, entry entries.Entry, size int) protocol.Reply {
	if size == 0 {
		engine.store.Remove(key)
		return protocol.Int(0)
	}
	engine.store.Set(key, entry)
	return protocol.Int(size)
}

func upper(token string) string {
	return strings.ToUpper(token)
}

func sortedStrings(values []string) []string {
	slices.Sort(values)
	return values
}
