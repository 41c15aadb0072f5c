package core

import "sync/atomic"

// callGuard is a call-scoped exclusion flag. Normal request concurrency is
// already serialized by the Dispatcher; the guard only trips when an
// external collaborator (mover, price source, authorizer) calls back into
// the engine mid-call.
type callGuard struct {
	busy atomic.Bool
}

func (g *callGuard) enter() bool {
	return g.busy.CompareAndSwap(false, true)
}

func (g *callGuard) exit() {
	g.busy.Store(false)
}
