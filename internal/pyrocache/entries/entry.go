// Package entries holds the typed values stored under keyspace keys.
//
// Entry is a closed set: only the variants declared here implement it, and
// callers discriminate them with a type switch.
package entries

import (
	"time"

	"go.uber.org/atomic"
)

type EntryType uint8

const (
	StringType EntryType = iota
	ListType
	SetType
	SortedSetType
	HashType
	ChannelType
	GeospatialType
)

func (t EntryType) String() string {
	switch t {
	case StringType:
		return "string"
	case ListType:
		return "list"
	case SetType:
		return "set"
	case SortedSetType:
		return "zset"
	case HashType:
		return "hash"
	case ChannelType:
		return "channel"
	case GeospatialType:
		return "geo"
	default:
		return "unknown"
	}
}

func (t EntryType) Valid() bool {
	return t <= GeospatialType
}

type Entry interface {
	Key() string
	SetKey(key string)
	Type() EntryType
	CreatedAt() time.Time
	LastAccessed() time.Time
	Touch()
	IsExpired() bool
	TTL() (time.Duration, bool)
	SetTTL(ttl time.Duration)
	ExpireAt(deadline time.Time)
	ExpiresAt() (time.Time, bool)
	Persist() bool
	// Deep copy stored under a new key.
	Clone(key string) Entry

	sealed()
}

// Shared metadata embedded in every variant.
// The TTL is measured from creation, reads never extend it.
type metadata struct {
	key          atomic.String
	createdAt    time.Time
	lastAccessed atomic.Int64
	ttl          atomic.Int64
}

func (m *metadata) init(key string) {
	now := time.Now()
	m.key.Store(key)
	m.createdAt = now
	m.lastAccessed.Store(now.UnixNano())
}

func (m *metadata) copyFrom(source *metadata, key string) {
	m.key.Store(key)
	m.createdAt = source.createdAt
	m.lastAccessed.Store(time.Now().UnixNano())
	m.ttl.Store(source.ttl.Load())
}

func (m *metadata) sealed() {}

func (m *metadata) Key() string {
	return m.key.Load()
}

func (m *metadata) SetKey(key string) {
	m.key.Store(key)
}

func (m *metadata) CreatedAt() time.Time {
	return m.createdAt
}

func (m *metadata) LastAccessed() time.Time {
	return time.Unix(0, m.lastAccessed.Load())
}

func (m *metadata) Touch() {
	m.lastAccessed.Store(time.Now().UnixNano())
}

func (m *metadata) TTL() (time.Duration, bool) {
	ttl := m.ttl.Load()
	return time.Duration(ttl), ttl != 0
}

// A non positive ttl marks the entry as already expired.
func (m *metadata) SetTTL(ttl time.Duration) {
	deadline := time.Now().Add(ttl)
	m.ExpireAt(deadline)
}

func (m *metadata) ExpireAt(deadline time.Time) {
	ttl := deadline.Sub(m.createdAt)
	if ttl <= 0 {
		// zero means "no ttl", keep the smallest expired value instead
		ttl = -1
	}
	m.ttl.Store(int64(ttl))
}

func (m *metadata) ExpiresAt() (time.Time, bool) {
	ttl, ok := m.TTL()
	if !ok {
		return time.Time{}, false
	}
	return m.createdAt.Add(ttl), true
}

func (m *metadata) Persist() bool {
	return m.ttl.Swap(0) != 0
}

func (m *metadata) IsExpired() bool {
	deadline, ok := m.ExpiresAt()
	return ok && time.Now().After(deadline)
}
