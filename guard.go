package pollingclient

import "go.uber.org/atomic"

// pollGuard lets exactly one poll cycle run at a time. A second caller does
// not wait: tryAcquire fails and the caller returns immediately.
type pollGuard struct {
	busy atomic.Bool
}

// tryAcquire flips the guard from idle to busy. On success the returned
// release func must be called exactly once, typically deferred.
func (g *pollGuard) tryAcquire() (release func(), ok bool) {
	if !g.busy.CompareAndSwap(false, true) {
		return nil, false
	}
	return func() { g.busy.Store(false) }, true
}

func (g *pollGuard) isBusy() bool { return g.busy.Load() }
