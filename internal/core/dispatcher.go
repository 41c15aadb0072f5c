package core

import "context"

// Dispatcher serializes engine commands onto a single goroutine. The engine
// is not safe for concurrent use; every external entry point submits a
// closure here and waits for it to run to completion.
type Dispatcher struct {
	cmds chan func()
}

func NewDispatcher(buffer int) *Dispatcher {
	return &Dispatcher{cmds: make(chan func(), buffer)}
}

// Run executes submitted commands one at a time until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-d.cmds:
			cmd()
		}
	}
}

// Do submits fn and blocks until it has run. A ctx error before submission
// means fn never ran; a ctx error after submission means fn may still run
// on the dispatcher goroutine, but the caller has stopped waiting.
func (d *Dispatcher) Do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	wrapped := func() {
		defer close(done)
		fn()
	}
	select {
	case d.cmds <- wrapped:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
