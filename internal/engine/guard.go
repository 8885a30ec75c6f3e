package engine

import "sync/atomic"

// callGuard detects reentrant mutation attempts. The engine is intended to
// be externally serialized; the guard turns a violated assumption into a
// clean error instead of corrupted state.
type callGuard struct {
	busy atomic.Bool
}

func (g *callGuard) enter() bool {
	return g.busy.CompareAndSwap(false, true)
}

func (g *callGuard) exit() {
	g.busy.Store(false)
}
