package daemon

import (
	"time"

	"github.com/w1xm/talond/internal/coverrelay"
	"github.com/w1xm/talond/internal/state"
)

// coverPollInterval matches the cadence coverrelay itself polls the
// relay bank's discrete inputs at.
const coverPollInterval = 200 * time.Millisecond

// waitCoverState polls the cover's reported state until it reaches
// target or timeout elapses. The cover has no condition variable of
// its own -- its watch loop runs independently of the telemetry
// poller's locks -- so this polls rather than waiting on a cond.
func (d *Daemon) waitCoverState(target coverrelay.State, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(coverPollInterval)
	defer ticker.Stop()
	for {
		if d.cover.State() == target {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		<-ticker.C
	}
}

// waitPointing blocks on the pointing condition until the observed
// pointing state equals terminal, or until timeout elapses, or until a
// force-stop is observed. It re-arms (keeps waiting) when the observed
// state equals the declared intermediate state (a spurious early wake)
// and breaks otherwise.
//
// It returns success iff the observed state equals terminal and
// force_stopped is false and the pointing state is not Absent.
func (d *Daemon) waitPointing(intermediate, terminal state.Pointing, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	d.gates.pointingMu.Lock()
	defer d.gates.pointingMu.Unlock()
	for {
		snap := d.poller.current()
		if snap.Pointing == state.PointingAbsent {
			return false
		}
		if d.gates.isForceStopped() {
			return false
		}
		if snap.Pointing == terminal {
			return true
		}
		if snap.Pointing == intermediate {
			// Spurious early wake while still transiting through the
			// declared intermediate state: keep waiting.
		} else if snap.Pointing != state.PointingAbsent {
			// Observed some other unexpected state; this breaks out and
			// is treated as failure.
			return false
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return false
		}
		waitOnCondWithTimeout(d.gates.pointingCond, &d.gates.pointingMu, remaining)
	}
}

// waitFocusReached blocks until the focus position is within tolerance
// of targetMicrons, or force-stopped, or a full tick elapses with no
// change in focus microns (timeout). Used by telescope_focus.
func (d *Daemon) waitFocusReached(targetMicrons, toleranceMicrons float64, perTickTimeout time.Duration) bool {
	d.gates.focusMu.Lock()
	defer d.gates.focusMu.Unlock()
	for {
		snap := d.poller.current()
		if abs(snap.FocusMicrons-targetMicrons) < toleranceMicrons {
			return true
		}
		if d.gates.isForceStopped() {
			return false
		}
		before := snap.FocusMicrons
		if !waitOnCondWithTimeout(d.gates.focusCond, &d.gates.focusMu, perTickTimeout) {
			return false
		}
		after := d.poller.current().FocusMicrons
		if after == before {
			return false
		}
	}
}

// waitFocus blocks on the focus condition until the observed focus
// state equals terminal, re-arming while it equals intermediate, with
// the same shape as waitPointing but driven off focus_state rather
// than focus_state+index. Used by home/limits for the focus axis.
func (d *Daemon) waitFocus(intermediate, terminal state.Focus, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	d.gates.focusMu.Lock()
	defer d.gates.focusMu.Unlock()
	for {
		snap := d.poller.current()
		if d.gates.isForceStopped() {
			return false
		}
		if snap.Focus == terminal {
			return true
		}
		if snap.Focus != intermediate && snap.Focus != state.FocusAbsent {
			return false
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return false
		}
		waitOnCondWithTimeout(d.gates.focusCond, &d.gates.focusMu, remaining)
	}
}

// waitControllerAlive blocks on the pointing condition until the
// controller is observed to have come up (pointing != Absent), or
// until timeout elapses. Used by initialize, whose success condition
// is "pointing != Absent" rather than a specific terminal state.
func (d *Daemon) waitControllerAlive(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	d.gates.pointingMu.Lock()
	defer d.gates.pointingMu.Unlock()
	for {
		if d.poller.current().Pointing != state.PointingAbsent {
			return true
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return false
		}
		waitOnCondWithTimeout(d.gates.pointingCond, &d.gates.pointingMu, remaining)
	}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
