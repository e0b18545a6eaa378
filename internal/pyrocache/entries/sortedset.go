package entries

import (
	"math"
	"slices"
	"sort"
	"sync"

	"github.com/samber/lo"

	"pyrocache/internal/pyrocache/errors"
	"pyrocache/pkg/utils"
)

type ScoredMember struct {
	Member string
	Score  float64
}

// Ordering of a sorted set: by score, ties broken by member.
func lessScored(a, b ScoredMember) bool {
	if a.Score != b.Score {
		return a.Score < b.Score
	}
	return a.Member < b.Member
}

type SortedSetEntry struct {
	metadata
	mutex   sync.RWMutex
	scores  map[string]float64
	ordered []ScoredMember
}

func NewSortedSet(key string, members ...ScoredMember) *SortedSetEntry {
	entry := &SortedSetEntry{scores: make(map[string]float64, len(members))}
	entry.init(key)
	for _, member := range members {
		entry.Add(member.Score, member.Member)
	}
	return entry
}

func (z *SortedSetEntry) Type() EntryType {
	return SortedSetType
}

func (z *SortedSetEntry) Clone(key string) Entry {
	clone := NewSortedSet(key, z.Members()...)
	clone.copyFrom(&z.metadata, key)
	return clone
}

func (z *SortedSetEntry) position(target ScoredMember) int {
	return sort.Search(len(z.ordered), func(i int) bool {
		return !lessScored(z.ordered[i], target)
	})
}

func (z *SortedSetEntry) insertLocked(member string, score float64) {
	target := ScoredMember{Member: member, Score: score}
	z.ordered = slices.Insert(z.ordered, z.position(target), target)
	z.scores[member] = score
}

func (z *SortedSetEntry) removeLocked(member string) bool {
	score, exists := z.scores[member]
	if !exists {
		return false
	}
	index := z.position(ScoredMember{Member: member, Score: score})
	z.ordered = slices.Delete(z.ordered, index, index+1)
	delete(z.scores, member)
	return true
}

// Sets the score of member. Returns true when member was not present before.
func (z *SortedSetEntry) Add(score float64, member string) bool {
	z.mutex.Lock()
	defer z.mutex.Unlock()

	current, exists := z.scores[member]
	if exists && current == score {
		return false
	}
	z.removeLocked(member)
	z.insertLocked(member, score)
	return !exists
}

// Adding opposite infinities fails and leaves the member untouched.
func (z *SortedSetEntry) IncrBy(member string, delta float64) (float64, error) {
	z.mutex.Lock()
	defer z.mutex.Unlock()

	score := z.scores[member] + delta
	if math.IsNaN(score) {
		return 0, errors.ErrorNotANumber
	}
	z.removeLocked(member)
	z.insertLocked(member, score)
	return score, nil
}

func (z *SortedSetEntry) Remove(members ...string) int {
	z.mutex.Lock()
	defer z.mutex.Unlock()

	return lo.CountBy(members, z.removeLocked)
}

func (z *SortedSetEntry) Score(member string) (float64, bool) {
	z.mutex.RLock()
	defer z.mutex.RUnlock()
	score, exists := z.scores[member]
	return score, exists
}

func (z *SortedSetEntry) Len() int {
	z.mutex.RLock()
	defer z.mutex.RUnlock()
	return len(z.ordered)
}

// Zero based position of member in ascending order
func (z *SortedSetEntry) Rank(member string) (int, bool) {
	z.mutex.RLock()
	defer z.mutex.RUnlock()

	score, exists := z.scores[member]
	if !exists {
		return 0, false
	}
	return z.position(ScoredMember{Member: member, Score: score}), true
}

func (z *SortedSetEntry) Count(min, max ScoreBound) int {
	z.mutex.RLock()
	defer z.mutex.RUnlock()

	return lo.CountBy(z.ordered, func(member ScoredMember) bool {
		return min.aboveMin(member.Score) && max.belowMax(member.Score)
	})
}

// Ascending copy of the members
func (z *SortedSetEntry) Members() []ScoredMember {
	z.mutex.RLock()
	defer z.mutex.RUnlock()
	return slices.Clone(z.ordered)
}

func (z *SortedSetEntry) view(reverse bool) []ScoredMember {
	members := z.Members()
	if reverse {
		slices.Reverse(members)
	}
	return members
}

// Inclusive index range over the ascending order, or the descending one when reverse
func (z *SortedSetEntry) RangeByIndex(start, stop int, reverse bool) []ScoredMember {
	members := z.view(reverse)

	from, to, ok := utils.NormalizeRange(start, stop, len(members))
	if !ok {
		return []ScoredMember{}
	}
	return members[from : to+1]
}

func (z *SortedSetEntry) RangeByScore(min, max ScoreBound, reverse bool) []ScoredMember {
	return lo.Filter(z.view(reverse), func(member ScoredMember, _ int) bool {
		return min.aboveMin(member.Score) && max.belowMax(member.Score)
	})
}

func (z *SortedSetEntry) RangeByLex(min, max LexBound, reverse bool) []ScoredMember {
	return lo.Filter(z.view(reverse), func(member ScoredMember, _ int) bool {
		return min.aboveMin(member.Member) && max.belowMax(member.Member)
	})
}

func (z *SortedSetEntry) PopMin(count int) []ScoredMember {
	z.mutex.Lock()
	defer z.mutex.Unlock()

	count = min(count, len(z.ordered))
	popped := slices.Clone(z.ordered[:count])
	for _, member := range popped {
		z.removeLocked(member.Member)
	}
	return popped
}

func (z *SortedSetEntry) PopMax(count int) []ScoredMember {
	z.mutex.Lock()
	defer z.mutex.Unlock()

	count = min(count, len(z.ordered))
	popped := make([]ScoredMember, 0, count)
	for i := 0; i < count; i++ {
		popped = append(popped, z.ordered[len(z.ordered)-1])
		z.removeLocked(popped[i].Member)
	}
	return popped
}

// Set algebra is left biased: a member keeps the score of the first operand
// holding it. Operands are never mutated and nil behaves as an empty set.
func (z *SortedSetEntry) Union(others ...*SortedSetEntry) *SortedSetEntry {
	result := NewSortedSet("", z.Members()...)
	for _, other := range others {
		if other == nil {
			continue
		}
		for _, member := range other.Members() {
			if _, exists := result.Score(member.Member); !exists {
				result.Add(member.Score, member.Member)
			}
		}
	}
	return result
}

func (z *SortedSetEntry) Diff(others ...*SortedSetEntry) *SortedSetEntry {
	result := NewSortedSet("", z.Members()...)
	for _, other := range others {
		if other == nil {
			continue
		}
		for _, member := range other.Members() {
			result.Remove(member.Member)
		}
	}
	return result
}

func (z *SortedSetEntry) Intersect(others ...*SortedSetEntry) *SortedSetEntry {
	members := lo.Filter(z.Members(), func(member ScoredMember, _ int) bool {
		return lo.EveryBy(others, func(other *SortedSetEntry) bool {
			if other == nil {
				return false
			}
			_, exists := other.Score(member.Member)
			return exists
		})
	})
	return NewSortedSet("", members...)
}
