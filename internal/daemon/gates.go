package daemon

import "sync"

// gates bundles the daemon's process-wide synchronization primitives:
// a non-reentrant command mutex (tried, never waited on), a
// pointing-condition pair, a focus-condition pair, a force-stop flag,
// and a shared-memory access mutex. Lock ordering throughout the
// daemon is: command mutex -> pointing condition -> focus condition ->
// shared-memory mutex.
type gates struct {
	commandMu sync.Mutex

	pointingMu   sync.Mutex
	pointingCond *sync.Cond

	focusMu   sync.Mutex
	focusCond *sync.Cond

	shmMu sync.Mutex

	forceMu     sync.Mutex
	forceStopped bool
}

func newGates() *gates {
	g := &gates{}
	g.pointingCond = sync.NewCond(&g.pointingMu)
	g.focusCond = sync.NewCond(&g.focusMu)
	return g
}

// tryCommand attempts to acquire the command mutex without blocking. It
// returns a release function on success.
func (g *gates) tryCommand() (release func(), ok bool) {
	if !g.commandMu.TryLock() {
		return nil, false
	}
	return g.commandMu.Unlock, true
}

// acquireCommand blocks until the command mutex is free. Only stop uses
// this: it must serialize with any in-flight command's cleanup after
// issuing its pre-emptive Stop write.
func (g *gates) acquireCommand() (release func()) {
	g.commandMu.Lock()
	return g.commandMu.Unlock
}

func (g *gates) setForceStopped(v bool) {
	g.forceMu.Lock()
	g.forceStopped = v
	g.forceMu.Unlock()
}

func (g *gates) isForceStopped() bool {
	g.forceMu.Lock()
	defer g.forceMu.Unlock()
	return g.forceStopped
}
