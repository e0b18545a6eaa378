// Package keyspace is the concurrent key to entry map shared by every session.
package keyspace

import (
	"sort"
	"sync"

	"github.com/samber/lo"

	"pyrocache/internal/pyrocache/entries"
)

type Item struct {
	Key   string
	Entry entries.Entry
}

type Store struct {
	storeMutex sync.RWMutex
	store      map[string]entries.Entry
}

func New() *Store {
	return &Store{store: make(map[string]entries.Entry)}
}

func (s *Store) Get(key string) (entries.Entry, bool) {
	s.storeMutex.RLock()
	defer s.storeMutex.RUnlock()
	entry, ok := s.store[key]
	return entry, ok
}

// Typed retrieval. Absence and a different variant both report false.
func Lookup[T entries.Entry](s *Store, key string) (T, bool) {
	var zero T

	entry, ok := s.Get(key)
	if !ok {
		return zero, false
	}
	typed, ok := entry.(T)
	if !ok {
		return zero, false
	}
	return typed, true
}

// Returns the live entry of type T under key, creating it when the key is
// free or holds an expired entry. A live entry of another type reports false.
func GetOrCreate[T entries.Entry](s *Store, key string, create func(key string) T) (T, bool) {
	var zero T

	s.storeMutex.Lock()
	defer s.storeMutex.Unlock()

	if existing, ok := s.store[key]; ok && !existing.IsExpired() {
		typed, ok := existing.(T)
		if !ok {
			return zero, false
		}
		return typed, true
	}

	created := create(key)
	s.store[key] = created
	return created, true
}

// Inserts or fully replaces the entry under key
func (s *Store) Set(key string, entry entries.Entry) {
	entry.SetKey(key)

	s.storeMutex.Lock()
	s.store[key] = entry
	s.storeMutex.Unlock()
}

// Inserts only when key is free or expired
func (s *Store) SetIfAbsent(key string, entry entries.Entry) bool {
	s.storeMutex.Lock()
	defer s.storeMutex.Unlock()

	if existing, ok := s.store[key]; ok && !existing.IsExpired() {
		return false
	}
	entry.SetKey(key)
	s.store[key] = entry
	return true
}

func (s *Store) Remove(key string) (entries.Entry, bool) {
	s.storeMutex.Lock()
	defer s.storeMutex.Unlock()

	entry, ok := s.store[key]
	delete(s.store, key)
	return entry, ok
}

// Removes key only while predicate holds for its current entry
func (s *Store) RemoveIf(key string, predicate func(entries.Entry) bool) bool {
	s.storeMutex.Lock()
	defer s.storeMutex.Unlock()

	entry, ok := s.store[key]
	if !ok || !predicate(entry) {
		return false
	}
	delete(s.store, key)
	return true
}

// Moves the entry under source to destination, overwriting it
func (s *Store) Rename(source, destination string) bool {
	s.storeMutex.Lock()
	defer s.storeMutex.Unlock()

	entry, ok := s.store[source]
	if !ok || entry.IsExpired() {
		return false
	}
	delete(s.store, source)
	entry.SetKey(destination)
	s.store[destination] = entry
	return true
}

func (s *Store) Contains(key string) bool {
	s.storeMutex.RLock()
	defer s.storeMutex.RUnlock()
	return lo.HasKey(s.store, key)
}

func (s *Store) Len() int {
	s.storeMutex.RLock()
	defer s.storeMutex.RUnlock()
	return len(s.store)
}

// Point in time copy of the keyspace sorted by key. Entries are shared, not copied.
func (s *Store) Items() []Item {
	s.storeMutex.RLock()
	items := lo.Map(lo.Entries(s.store), func(entry lo.Entry[string, entries.Entry], _ int) Item {
		return Item{Key: entry.Key, Entry: entry.Value}
	})
	s.storeMutex.RUnlock()

	sort.Slice(items, func(i, j int) bool {
		return items[i].Key < items[j].Key
	})
	return items
}

func (s *Store) Random() (string, bool) {
	s.storeMutex.RLock()
	defer s.storeMutex.RUnlock()

	for key, entry := range s.store {
		if !entry.IsExpired() {
			return key, true
		}
	}
	return "", false
}

// Swaps in a whole new keyspace, used when loading a snapshot
func (s *Store) Replace(items []Item) {
	store := make(map[string]entries.Entry, len(items))
	for _, item := range items {
		item.Entry.SetKey(item.Key)
		store[item.Key] = item.Entry
	}

	s.storeMutex.Lock()
	s.store = store
	s.storeMutex.Unlock()
}
