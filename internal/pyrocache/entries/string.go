package entries

import (
	"strconv"
	"strings"
	"sync"

	"pyrocache/internal/pyrocache/errors"
	"pyrocache/pkg/utils"
)

type StringEntry struct {
	metadata
	mutex sync.RWMutex
	value string
}

func NewString(key, value string) *StringEntry {
	entry := &StringEntry{value: value}
	entry.init(key)
	return entry
}

func (s *StringEntry) Type() EntryType {
	return StringType
}

func (s *StringEntry) Clone(key string) Entry {
	clone := &StringEntry{value: s.Value()}
	clone.copyFrom(&s.metadata, key)
	return clone
}

func (s *StringEntry) Value() string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.value
}

func (s *StringEntry) SetValue(value string) {
	s.mutex.Lock()
	s.value = value
	s.mutex.Unlock()
}

func (s *StringEntry) Len() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.value)
}

// Appends suffix and returns the new byte length
func (s *StringEntry) Append(suffix string) int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.value += suffix
	return len(s.value)
}

// Adds delta to the integer held by the entry.
// Fails with ErrorNotInteger when the value is not a base 10 int64.
func (s *StringEntry) IncrBy(delta int64) (int64, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	current, err := utils.FromStringToInt64(s.value)
	if err != nil {
		return 0, errors.ErrorNotInteger
	}

	next := current + delta
	if (delta > 0 && next < current) || (delta < 0 && next > current) {
		return 0, errors.ErrorNotInteger
	}

	s.value = strconv.FormatInt(next, 10)
	return next, nil
}

// Inclusive byte range, negative offsets count from the end
func (s *StringEntry) GetRange(start, end int) string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	from, to, ok := utils.NormalizeRange(start, end, len(s.value))
	if !ok {
		return ""
	}
	return s.value[from : to+1]
}

// Overwrites from offset, padding with zero bytes when offset is past the end.
// Returns the new byte length.
func (s *StringEntry) SetRange(offset int, patch string) int {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if len(patch) == 0 {
		return len(s.value)
	}

	if offset > len(s.value) {
		s.value += strings.Repeat("\x00", offset-len(s.value))
	}

	end := offset + len(patch)
	if end >= len(s.value) {
		s.value = s.value[:offset] + patch
	} else {
		s.value = s.value[:offset] + patch + s.value[end:]
	}
	return len(s.value)
}
