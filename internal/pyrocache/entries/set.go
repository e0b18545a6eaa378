package entries

import (
	"slices"
	"sync"

	"github.com/samber/lo"
)

type SetEntry struct {
	metadata
	mutex   sync.RWMutex
	members map[string]struct{}
}

func NewSet(key string, members ...string) *SetEntry {
	entry := &SetEntry{members: make(map[string]struct{}, len(members))}
	entry.init(key)
	for _, member := range members {
		entry.members[member] = struct{}{}
	}
	return entry
}

func (s *SetEntry) Type() EntryType {
	return SetType
}

func (s *SetEntry) Clone(key string) Entry {
	clone := NewSet(key, s.Members()...)
	clone.copyFrom(&s.metadata, key)
	return clone
}

// Returns how many members were not already present
func (s *SetEntry) Add(members ...string) int {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	added := 0
	for _, member := range members {
		if _, exists := s.members[member]; !exists {
			s.members[member] = struct{}{}
			added++
		}
	}
	return added
}

func (s *SetEntry) Remove(members ...string) int {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	removed := 0
	for _, member := range members {
		if _, exists := s.members[member]; exists {
			delete(s.members, member)
			removed++
		}
	}
	return removed
}

func (s *SetEntry) Contains(member string) bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	_, exists := s.members[member]
	return exists
}

func (s *SetEntry) Len() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.members)
}

// Sorted copy of the members
func (s *SetEntry) Members() []string {
	s.mutex.RLock()
	members := lo.Keys(s.members)
	s.mutex.RUnlock()

	slices.Sort(members)
	return members
}

// The set operations below copy the receiver first and never mutate operands.
// A nil operand behaves as an empty set.

func (s *SetEntry) Union(others ...*SetEntry) *SetEntry {
	result := NewSet("", s.Members()...)
	for _, other := range others {
		if other != nil {
			result.Add(other.Members()...)
		}
	}
	return result
}

func (s *SetEntry) Intersect(others ...*SetEntry) *SetEntry {
	result := NewSet("", s.Members()...)
	for _, other := range others {
		if other == nil {
			return NewSet("")
		}
		for _, member := range result.Members() {
			if !other.Contains(member) {
				result.Remove(member)
			}
		}
	}
	return result
}

func (s *SetEntry) Diff(others ...*SetEntry) *SetEntry {
	result := NewSet("", s.Members()...)
	for _, other := range others {
		if other != nil {
			result.Remove(other.Members()...)
		}
	}
	return result
}
