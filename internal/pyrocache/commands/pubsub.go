package commands

import (
	"context"
	"fmt"
	"sync"

	"github.com/samber/lo"

	"pyrocache/internal/pyrocache/entries"
	pyroerrors "pyrocache/internal/pyrocache/errors"
	"pyrocache/internal/pyrocache/keyspace"
	"pyrocache/internal/pyrocache/protocol"
)

// Sessions holding at least one pattern subscription. Channels created after
// a PSUBSCRIBE are attached to them here.
type patternRegistry struct {
	mutex    sync.RWMutex
	sessions map[uint64]*Session
}

func newPatternRegistry() *patternRegistry {
	return &patternRegistry{sessions: make(map[uint64]*Session)}
}

func (r *patternRegistry) add(session *Session) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.sessions[session.ID] = session
}

func (r *patternRegistry) remove(id uint64) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	delete(r.sessions, id)
}

func (r *patternRegistry) snapshot() []*Session {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return lo.Values(r.sessions)
}

func newChannel(key string) *entries.ChannelEntry {
	return entries.NewChannel(key)
}

// Channel under key, created on first use. Every registered pattern that
// matches the key gets attached, attaching twice is a no-op.
func (e *Engine) channel(key string) (*entries.ChannelEntry, bool) {
	channel, ok := create(e, key, newChannel)
	if !ok {
		return nil, false
	}

	for _, session := range e.patterns.snapshot() {
		for pattern, query := range session.patternQueries() {
			if query.Match(key, channel) {
				session.attach(channel, pattern)
			}
		}
	}
	return channel, true
}

// PUBLISH channel message
func handlePublish(_ context.Context, engine *Engine, request *Request) protocol.Reply {
	channel, ok := engine.channel(request.Args[0])
	if !ok {
		return protocol.Int(0)
	}
	return protocol.Int(channel.Publish(request.Args[1]))
}

// One confirmation per channel, a single one is not wrapped
func confirmations(replies []protocol.Reply) protocol.Reply {
	if len(replies) == 1 {
		return replies[0]
	}
	return protocol.Array(replies...)
}

func confirmation(kind, name string, count int) protocol.Reply {
	return protocol.Array(protocol.Bulk(kind), protocol.Bulk(name), protocol.Int(count))
}

// SUBSCRIBE channel [channel ...]
func handleSubscribe(_ context.Context, engine *Engine, request *Request) protocol.Reply {
	session := request.Session

	replies := make([]protocol.Reply, 0, len(request.Args))
	for _, name := range request.Args {
		channel, ok := engine.channel(name)
		if !ok {
			replies = append(replies, protocol.Failure(fmt.Errorf("%w: %s", pyroerrors.ErrorWrongType, name)))
			continue
		}
		session.attach(channel, "")
		replies = append(replies, confirmation("subscribe", name, session.subscriptionCount()))
	}
	return confirmations(replies)
}

// UNSUBSCRIBE [channel ...], no channel drops every direct subscription
func handleUnsubscribe(_ context.Context, _ *Engine, request *Request) protocol.Reply {
	session := request.Session

	names := request.Args
	if len(names) == 0 {
		names = session.channels()
	}
	if len(names) == 0 {
		return protocol.Array(protocol.Bulk("unsubscribe"), protocol.Nil(), protocol.Int(0))
	}

	return confirmations(lo.Map(names, func(name string, _ int) protocol.Reply {
		session.detach(name, "")
		return confirmation("unsubscribe", name, session.subscriptionCount())
	}))
}

// PSUBSCRIBE pattern [pattern ...]
func handlePsubscribe(_ context.Context, engine *Engine, request *Request) protocol.Reply {
	session := request.Session

	replies := make([]protocol.Reply, 0, len(request.Args))
	for _, pattern := range request.Args {
		query, ok := session.addPattern(pattern)
		if !ok {
			break
		}
		engine.patterns.add(session)

		channels := engine.store.Select(keyspace.AndQuery{Queries: []keyspace.KeyQuery{
			keyspace.LiveQuery{},
			keyspace.TypeQuery{Type: entries.ChannelType},
			query,
		}})
		for _, item := range channels {
			session.attach(item.Entry.(*entries.ChannelEntry), pattern)
		}
		replies = append(replies, confirmation("psubscribe", pattern, session.subscriptionCount()))
	}
	return confirmations(replies)
}

// PUNSUBSCRIBE [pattern ...], no pattern drops them all
func handlePunsubscribe(_ context.Context, engine *Engine, request *Request) protocol.Reply {
	session := request.Session

	patterns := request.Args
	if len(patterns) == 0 {
		patterns = session.patternList()
	}
	if len(patterns) == 0 {
		return protocol.Array(protocol.Bulk("punsubscribe"), protocol.Nil(), protocol.Int(0))
	}

	replies := lo.Map(patterns, func(pattern string, _ int) protocol.Reply {
		session.removePattern(pattern)
		return confirmation("punsubscribe", pattern, session.subscriptionCount())
	})
	if len(session.patternList()) == 0 {
		engine.patterns.remove(session.ID)
	}
	return confirmations(replies)
}

// PUBSUB CHANNELS [pattern]
func handlePubsubChannels(_ context.Context, engine *Engine, request *Request) protocol.Reply {
	queries := []keyspace.KeyQuery{keyspace.LiveQuery{}, keyspace.TypeQuery{Type: entries.ChannelType}}
	if len(request.Args) == 1 {
		queries = append(queries, keyspace.NewPatternQuery(request.Args[0]))
	}

	channels := engine.store.Select(keyspace.AndQuery{Queries: queries})
	active := lo.Filter(channels, func(item keyspace.Item, _ int) bool {
		return item.Entry.(*entries.ChannelEntry).Subscriptions() > 0
	})
	return protocol.Strings(keyspace.Keys(active))
}

// PUBSUB NUMSUB [channel ...] as flat channel, count pairs
func handlePubsubNumsub(_ context.Context, engine *Engine, request *Request) protocol.Reply {
	replies := make([]protocol.Reply, 0, len(request.Args)*2)
	for _, name := range request.Args {
		count := 0
		if channel, ok := lookup[*entries.ChannelEntry](engine, request, name); ok {
			count = channel.Subscribers()
		}
		replies = append(replies, protocol.Bulk(name), protocol.Int(count))
	}
	return protocol.Array(replies...)
}
