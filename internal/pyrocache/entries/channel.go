package entries

import (
	"context"
	"sync"

	"github.com/samber/lo"

	"pyrocache/internal/pyrocache/errors"
)

// Identifies a subscription inside a channel. Pattern is empty for a
// direct SUBSCRIBE and holds the originating pattern for PSUBSCRIBE.
type SubscriptionKey struct {
	Subscriber uint64
	Pattern    string
}

// A subscriber's private, unbounded view of a channel.
type Subscription struct {
	key     SubscriptionKey
	channel string

	mutex  sync.Mutex
	queue  []string
	wake   chan struct{}
	done   chan struct{}
	cancel sync.Once
}

func newSubscription(channel string, key SubscriptionKey) *Subscription {
	return &Subscription{
		key:     key,
		channel: channel,
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

func (s *Subscription) Key() SubscriptionKey {
	return s.key
}

func (s *Subscription) Channel() string {
	return s.channel
}

// Closed once the subscription is cancelled
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

func (s *Subscription) Cancel() {
	s.cancel.Do(func() {
		close(s.done)
	})
}

func (s *Subscription) Cancelled() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

func (s *Subscription) deliver(message string) bool {
	if s.Cancelled() {
		return false
	}

	s.mutex.Lock()
	s.queue = append(s.queue, message)
	s.mutex.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
	return true
}

// Blocks until a message is queued, the subscription is cancelled or ctx ends.
// Cancellation wins over messages still queued.
func (s *Subscription) Next(ctx context.Context) (string, error) {
	for {
		if s.Cancelled() {
			return "", errors.ErrorSubscriptionCancelled
		}

		s.mutex.Lock()
		if len(s.queue) > 0 {
			message := s.queue[0]
			s.queue[0] = ""
			s.queue = s.queue[1:]
			s.mutex.Unlock()
			return message, nil
		}
		s.mutex.Unlock()

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-s.done:
			return "", errors.ErrorSubscriptionCancelled
		case <-s.wake:
		}
	}
}

type ChannelEntry struct {
	metadata
	mutex         sync.RWMutex
	subscriptions map[SubscriptionKey]*Subscription
}

func NewChannel(key string) *ChannelEntry {
	entry := &ChannelEntry{subscriptions: make(map[SubscriptionKey]*Subscription)}
	entry.init(key)
	return entry
}

func (c *ChannelEntry) Type() EntryType {
	return ChannelType
}

// Subscriptions are transient and not carried over.
func (c *ChannelEntry) Clone(key string) Entry {
	clone := NewChannel(key)
	clone.copyFrom(&c.metadata, key)
	return clone
}

// Returns the existing subscription for key when there is one
func (c *ChannelEntry) Subscribe(key SubscriptionKey) (*Subscription, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if existing, ok := c.subscriptions[key]; ok {
		return existing, false
	}
	subscription := newSubscription(c.Key(), key)
	c.subscriptions[key] = subscription
	return subscription, true
}

func (c *ChannelEntry) Unsubscribe(key SubscriptionKey) bool {
	c.mutex.Lock()
	subscription, ok := c.subscriptions[key]
	delete(c.subscriptions, key)
	c.mutex.Unlock()

	if ok {
		subscription.Cancel()
	}
	return ok
}

// Fans message out to every live subscription and returns how many received it
func (c *ChannelEntry) Publish(message string) int {
	c.mutex.RLock()
	subscriptions := lo.Values(c.subscriptions)
	c.mutex.RUnlock()

	return lo.CountBy(subscriptions, func(subscription *Subscription) bool {
		return subscription.deliver(message)
	})
}

// Direct subscribers, pattern subscriptions excluded
func (c *ChannelEntry) Subscribers() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	return lo.CountBy(lo.Keys(c.subscriptions), func(key SubscriptionKey) bool {
		return key.Pattern == ""
	})
}

func (c *ChannelEntry) Subscriptions() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.subscriptions)
}
