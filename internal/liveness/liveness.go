// Package liveness detects whether the talon controller process is
// still alive, using a bounded ring buffer of its most recently
// observed time-of-day field plus a process existence probe.
package liveness

import (
	"golang.org/x/sys/unix"
)

// Monitor holds a bounded ring of recently observed controller
// time-of-day (MJD) values. The controller is declared alive iff the
// ring contains at least two distinct values (i.e. the field is
// actually advancing, not frozen on a stale segment) and its pid is
// still a live process.
type Monitor struct {
	capacity int
	ring     []float64
}

// New returns a Monitor with the given ring capacity (the number of
// recent ticks it remembers before declaring the controller dead).
func New(capacity int) *Monitor {
	if capacity < 1 {
		capacity = 1
	}
	return &Monitor{capacity: capacity}
}

// Push records the latest observed time-of-day value.
func (m *Monitor) Push(tod float64) {
	m.ring = append(m.ring, tod)
	if len(m.ring) > m.capacity {
		m.ring = m.ring[len(m.ring)-m.capacity:]
	}
}

// Reset empties the ring, e.g. after the controller is observed to die
// and is later respawned.
func (m *Monitor) Reset() {
	m.ring = nil
}

// hasDifferentValue reports whether the ring (as it stood before the
// current tick's value was pushed) contains a value different from tod,
// i.e. the field is actually advancing rather than frozen.
func (m *Monitor) hasDifferentValue(tod float64) bool {
	for _, v := range m.ring {
		if v != tod {
			return true
		}
	}
	return false
}

// Alive reports whether the controller at pid is alive: tod is positive,
// the ring (prior to this tick's Push) shows the tod field advancing,
// and the process still exists. Call Push(tod) after Alive to record
// this tick's value for the next check.
func (m *Monitor) Alive(pid int32, tod float64) bool {
	if tod <= 0 {
		return false
	}
	if !m.hasDifferentValue(tod) {
		return false
	}
	return ProcessAlive(pid)
}

// ProcessAlive probes whether pid names a live process, using the
// signal-0 convention (send no signal, just check permissions/existence).
func ProcessAlive(pid int32) bool {
	if pid <= 0 {
		return false
	}
	return unix.Kill(int(pid), 0) == nil
}
