package entries

import (
	"maps"
	"slices"
	"strconv"
	"sync"

	"github.com/samber/lo"

	"pyrocache/internal/pyrocache/errors"
	"pyrocache/pkg/utils"
)

type HashEntry struct {
	metadata
	mutex  sync.RWMutex
	fields map[string]string
}

func NewHash(key string, fields map[string]string) *HashEntry {
	entry := &HashEntry{fields: make(map[string]string, len(fields))}
	entry.init(key)
	maps.Copy(entry.fields, fields)
	return entry
}

func (h *HashEntry) Type() EntryType {
	return HashType
}

func (h *HashEntry) Clone(key string) Entry {
	clone := NewHash(key, h.All())
	clone.copyFrom(&h.metadata, key)
	return clone
}

// Returns true when field is new
func (h *HashEntry) Set(field, value string) bool {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	_, exists := h.fields[field]
	h.fields[field] = value
	return !exists
}

// Sets every pair and returns how many fields were created
func (h *HashEntry) SetMany(pairs map[string]string) int {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	created := 0
	for field, value := range pairs {
		if _, exists := h.fields[field]; !exists {
			created++
		}
		h.fields[field] = value
	}
	return created
}

func (h *HashEntry) Get(field string) (string, bool) {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	value, exists := h.fields[field]
	return value, exists
}

func (h *HashEntry) Delete(fields ...string) int {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	return lo.CountBy(fields, func(field string) bool {
		_, exists := h.fields[field]
		delete(h.fields, field)
		return exists
	})
}

func (h *HashEntry) Len() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.fields)
}

// Sorted field names
func (h *HashEntry) Fields() []string {
	h.mutex.RLock()
	fields := lo.Keys(h.fields)
	h.mutex.RUnlock()

	slices.Sort(fields)
	return fields
}

func (h *HashEntry) All() map[string]string {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return maps.Clone(h.fields)
}

// Adds delta to an integer field, a missing field counts as zero
func (h *HashEntry) IncrBy(field string, delta int64) (int64, error) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	current := int64(0)
	if raw, exists := h.fields[field]; exists {
		parsed, err := utils.FromStringToInt64(raw)
		if err != nil {
			return 0, errors.ErrorNotInteger
		}
		current = parsed
	}

	next := current + delta
	if (delta > 0 && next < current) || (delta < 0 && next > current) {
		return 0, errors.ErrorNotInteger
	}

	h.fields[field] = strconv.FormatInt(next, 10)
	return next, nil
}
