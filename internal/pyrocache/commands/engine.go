// Package commands implements every protocol verb against the keyspace.
package commands

import (
	"context"
	"time"

	"go.uber.org/atomic"

	"pyrocache/internal/pyrocache/entries"
	"pyrocache/internal/pyrocache/keyspace"
)

// Persistence hooks used by SAVE, BGSAVE and LASTSAVE
type Saver interface {
	Save(ctx context.Context) error
	BackgroundSave()
	LastSave() time.Time
}

type Options struct {
	Pause      *PauseGate
	Saver      Saver
	Username   string
	Password   string
	DefaultTTL time.Duration
}

// Engine carries the shared state every handler works against.
type Engine struct {
	store      *keyspace.Store
	pause      *PauseGate
	saver      Saver
	username   string
	password   string
	defaultTTL time.Duration
	clientIDs  atomic.Uint64
	patterns   *patternRegistry
}

func NewEngine(store *keyspace.Store, options Options) *Engine {
	engine := &Engine{
		store:      store,
		pause:      options.Pause,
		saver:      options.Saver,
		username:   options.Username,
		password:   options.Password,
		defaultTTL: options.DefaultTTL,
		patterns:   newPatternRegistry(),
	}

	if engine.pause == nil {
		engine.pause = NewPauseGate()
	}
	if engine.saver == nil {
		engine.saver = noopSaver{}
	}
	return engine
}

func (e *Engine) Store() *keyspace.Store {
	return e.store
}

func (e *Engine) Pause() *PauseGate {
	return e.pause
}

// Opens a session bound to ctx. pusher receives pub/sub messages and may be
// nil for transports that cannot stream.
func (e *Engine) NewSession(ctx context.Context, pusher Pusher) *Session {
	sessionContext, cancel := context.WithCancel(ctx)
	return &Session{
		ID:            e.clientIDs.Inc(),
		engine:        e,
		ctx:           sessionContext,
		cancel:        cancel,
		pusher:        pusher,
		subscriptions: make(map[subscriptionRef]*entries.ChannelEntry),
		patterns:      make(map[string]keyspace.PatternQuery),
	}
}

type noopSaver struct{}

func (noopSaver) Save(context.Context) error { return nil }
func (noopSaver) BackgroundSave()            {}
func (noopSaver) LastSave() time.Time        { return time.Time{} }
