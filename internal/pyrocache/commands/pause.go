package commands

import (
	"time"

	"go.uber.org/atomic"
)

// Server wide pause switch, set by CLIENT PAUSE and read by the dispatcher.
type PauseGate struct {
	until atomic.Int64
}

func NewPauseGate() *PauseGate {
	return &PauseGate{}
}

func (g *PauseGate) Pause(duration time.Duration) {
	g.until.Store(time.Now().Add(duration).UnixNano())
}

func (g *PauseGate) Resume() {
	g.until.Store(0)
}

func (g *PauseGate) Paused() bool {
	return time.Now().UnixNano() < g.until.Load()
}
