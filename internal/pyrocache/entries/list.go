package entries

import (
	"container/list"
	"sync"

	"pyrocache/pkg/utils"
)

type ListEntry struct {
	metadata
	mutex   sync.Mutex
	items   *list.List
	waiters map[uint64]chan<- struct{}
	nextID  uint64
}

func NewList(key string, values ...string) *ListEntry {
	entry := &ListEntry{
		items:   list.New(),
		waiters: make(map[uint64]chan<- struct{}),
	}
	entry.init(key)
	for _, value := range values {
		entry.items.PushBack(value)
	}
	return entry
}

func (l *ListEntry) Type() EntryType {
	return ListType
}

func (l *ListEntry) Clone(key string) Entry {
	clone := NewList(key, l.Values()...)
	clone.copyFrom(&l.metadata, key)
	return clone
}

func (l *ListEntry) Len() int {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return l.items.Len()
}

func (l *ListEntry) Values() []string {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	values := make([]string, 0, l.items.Len())
	for element := l.items.Front(); element != nil; element = element.Next() {
		values = append(values, element.Value.(string))
	}
	return values
}

// Walks to the element at index; negative indexes count from the tail.
// Caller holds the mutex.
func (l *ListEntry) elementAt(index int) *list.Element {
	length := l.items.Len()
	if index < 0 {
		index += length
	}
	if index < 0 || index >= length {
		return nil
	}

	if index < length/2 {
		element := l.items.Front()
		for i := 0; i < index; i++ {
			element = element.Next()
		}
		return element
	}

	element := l.items.Back()
	for i := length - 1; i > index; i-- {
		element = element.Prev()
	}
	return element
}

func (l *ListEntry) Index(index int) (string, bool) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	element := l.elementAt(index)
	if element == nil {
		return "", false
	}
	return element.Value.(string), true
}

func (l *ListEntry) Set(index int, value string) bool {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	element := l.elementAt(index)
	if element == nil {
		return false
	}
	element.Value = value
	return true
}

func (l *ListEntry) PushLeft(values ...string) int {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	for _, value := range values {
		l.items.PushFront(value)
	}
	l.notifyLocked()
	return l.items.Len()
}

func (l *ListEntry) PushRight(values ...string) int {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	for _, value := range values {
		l.items.PushBack(value)
	}
	l.notifyLocked()
	return l.items.Len()
}

func (l *ListEntry) PopLeft() (string, bool) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	element := l.items.Front()
	if element == nil {
		return "", false
	}
	return l.items.Remove(element).(string), true
}

func (l *ListEntry) PopRight() (string, bool) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	element := l.items.Back()
	if element == nil {
		return "", false
	}
	return l.items.Remove(element).(string), true
}

// Inserts value next to the first occurrence of pivot.
// Returns the new length, or -1 when pivot is absent.
func (l *ListEntry) Insert(before bool, pivot, value string) int {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	for element := l.items.Front(); element != nil; element = element.Next() {
		if element.Value.(string) != pivot {
			continue
		}
		if before {
			l.items.InsertBefore(value, element)
		} else {
			l.items.InsertAfter(value, element)
		}
		l.notifyLocked()
		return l.items.Len()
	}
	return -1
}

// Inclusive range, negative indexes count from the tail
func (l *ListEntry) Range(start, stop int) []string {
	values := l.Values()

	from, to, ok := utils.NormalizeRange(start, stop, len(values))
	if !ok {
		return []string{}
	}
	return values[from : to+1]
}

// Registers wake to receive a non blocking signal whenever an item is added.
// The returned function unregisters it and is safe to call more than once.
func (l *ListEntry) Subscribe(wake chan<- struct{}) func() {
	l.mutex.Lock()
	id := l.nextID
	l.nextID++
	l.waiters[id] = wake
	l.mutex.Unlock()

	return func() {
		l.mutex.Lock()
		delete(l.waiters, id)
		l.mutex.Unlock()
	}
}

func (l *ListEntry) Waiters() int {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return len(l.waiters)
}

func (l *ListEntry) notifyLocked() {
	for _, wake := range l.waiters {
		select {
		case wake <- struct{}{}:
		default:
		}
	}
}
