package commands

import (
	"context"
	"sync"

	"github.com/samber/lo"
	"go.uber.org/atomic"

	"pyrocache/internal/pyrocache/entries"
	"pyrocache/internal/pyrocache/keyspace"
)

// Receives pub/sub payloads for a session, one line per message.
type Pusher interface {
	Push(line string) error
}

type subscriptionRef struct {
	channel string
	pattern string
}

// Per connection state: client name, authentication and subscriptions.
type Session struct {
	ID uint64

	engine        *Engine
	ctx           context.Context
	cancel        context.CancelFunc
	pusher        Pusher
	name          atomic.String
	authenticated atomic.Bool

	mutex         sync.Mutex
	closed        bool
	subscriptions map[subscriptionRef]*entries.ChannelEntry
	patterns      map[string]keyspace.PatternQuery
}

// Cancelled when the session closes
func (s *Session) Context() context.Context {
	return s.ctx
}

func (s *Session) Name() string {
	return s.name.Load()
}

func (s *Session) Authenticated() bool {
	return s.authenticated.Load()
}

func (s *Session) CanPush() bool {
	return s.pusher != nil
}

// Cancels every subscription and any command blocked on the session.
func (s *Session) Close() {
	s.mutex.Lock()
	if s.closed {
		s.mutex.Unlock()
		return
	}
	s.closed = true
	refs := lo.Entries(s.subscriptions)
	s.subscriptions = map[subscriptionRef]*entries.ChannelEntry{}
	s.patterns = map[string]keyspace.PatternQuery{}
	s.mutex.Unlock()

	s.engine.patterns.remove(s.ID)
	for _, ref := range refs {
		ref.Value.Unsubscribe(entries.SubscriptionKey{Subscriber: s.ID, Pattern: ref.Key.pattern})
	}
	s.cancel()
}

// Subscribes the session to channel and starts forwarding its messages.
func (s *Session) attach(channel *entries.ChannelEntry, pattern string) {
	s.mutex.Lock()
	if s.closed {
		s.mutex.Unlock()
		return
	}
	subscription, created := channel.Subscribe(entries.SubscriptionKey{Subscriber: s.ID, Pattern: pattern})
	s.subscriptions[subscriptionRef{channel: channel.Key(), pattern: pattern}] = channel
	s.mutex.Unlock()

	if created {
		go s.forward(subscription)
	}
}

func (s *Session) detach(channel, pattern string) bool {
	ref := subscriptionRef{channel: channel, pattern: pattern}

	s.mutex.Lock()
	entry, ok := s.subscriptions[ref]
	delete(s.subscriptions, ref)
	s.mutex.Unlock()

	if ok {
		entry.Unsubscribe(entries.SubscriptionKey{Subscriber: s.ID, Pattern: pattern})
	}
	return ok
}

func (s *Session) forward(subscription *entries.Subscription) {
	for {
		message, err := subscription.Next(s.ctx)
		if err != nil {
			return
		}
		if err := s.pusher.Push(message); err != nil {
			return
		}
	}
}

// Channels subscribed directly, sorted
func (s *Session) channels() []string {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	channels := lo.FilterMap(lo.Keys(s.subscriptions), func(ref subscriptionRef, _ int) (string, bool) {
		return ref.channel, ref.pattern == ""
	})
	return sortedStrings(channels)
}

func (s *Session) addPattern(pattern string) (keyspace.PatternQuery, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.closed {
		return keyspace.PatternQuery{}, false
	}
	query := keyspace.NewPatternQuery(pattern)
	s.patterns[pattern] = query
	return query, true
}

// Drops pattern and detaches every channel it matched
func (s *Session) removePattern(pattern string) bool {
	s.mutex.Lock()
	_, ok := s.patterns[pattern]
	delete(s.patterns, pattern)
	refs := lo.Filter(lo.Keys(s.subscriptions), func(ref subscriptionRef, _ int) bool {
		return ref.pattern == pattern
	})
	s.mutex.Unlock()

	for _, ref := range refs {
		s.detach(ref.channel, ref.pattern)
	}
	return ok
}

func (s *Session) patternList() []string {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return sortedStrings(lo.Keys(s.patterns))
}

func (s *Session) patternQueries() map[string]keyspace.PatternQuery {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return lo.Assign(s.patterns)
}

// Channels plus patterns, as reported in subscribe confirmations
func (s *Session) subscriptionCount() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	direct := lo.CountBy(lo.Keys(s.subscriptions), func(ref subscriptionRef) bool {
		return ref.pattern == ""
	})
	return direct + len(s.patterns)
}
