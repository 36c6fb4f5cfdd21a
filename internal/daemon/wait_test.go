package daemon

import (
	"testing"
	"time"

	"github.com/w1xm/talond/internal/state"
)

// setSnapshotAndBroadcastPointing installs a Snapshot and wakes anyone
// blocked in waitPointing/waitControllerAlive, mirroring what the
// poller does on a real tick.
func setSnapshotAndBroadcastPointing(d *Daemon, s Snapshot) {
	d.gates.pointingMu.Lock()
	setSnapshot(d, s)
	d.gates.pointingCond.Broadcast()
	d.gates.pointingMu.Unlock()
}

// setSnapshotAndBroadcastFocus is the focus-condition counterpart of
// setSnapshotAndBroadcastPointing.
func setSnapshotAndBroadcastFocus(d *Daemon, s Snapshot) {
	d.gates.focusMu.Lock()
	setSnapshot(d, s)
	d.gates.focusCond.Broadcast()
	d.gates.focusMu.Unlock()
}

func TestWaitPointingReturnsTrueOnTerminalState(t *testing.T) {
	d := newTestDaemon(t, baseCfg())
	setSnapshot(d, Snapshot{Pointing: state.PointingSlewing})
	go func() {
		time.Sleep(10 * time.Millisecond)
		setSnapshotAndBroadcastPointing(d, Snapshot{Pointing: state.PointingStopped})
	}()
	if !d.waitPointing(state.PointingSlewing, state.PointingStopped, time.Second) {
		t.Fatal("waitPointing: want true once terminal state is observed")
	}
}

func TestWaitPointingTimesOutWhileStuckInIntermediate(t *testing.T) {
	d := newTestDaemon(t, baseCfg())
	setSnapshot(d, Snapshot{Pointing: state.PointingSlewing})
	if d.waitPointing(state.PointingSlewing, state.PointingStopped, 20*time.Millisecond) {
		t.Fatal("waitPointing: want false on timeout")
	}
}

func TestWaitPointingFailsImmediatelyOnForceStop(t *testing.T) {
	d := newTestDaemon(t, baseCfg())
	setSnapshot(d, Snapshot{Pointing: state.PointingSlewing})
	d.gates.setForceStopped(true)
	defer d.gates.setForceStopped(false)
	if d.waitPointing(state.PointingSlewing, state.PointingStopped, time.Second) {
		t.Fatal("waitPointing: want false when force-stopped")
	}
}

func TestWaitPointingFailsOnUnexpectedState(t *testing.T) {
	d := newTestDaemon(t, baseCfg())
	setSnapshot(d, Snapshot{Pointing: state.PointingHoming})
	if d.waitPointing(state.PointingSlewing, state.PointingStopped, time.Second) {
		t.Fatal("waitPointing: want false on an unexpected observed state")
	}
}

func TestWaitFocusReturnsTrueOnTerminalState(t *testing.T) {
	d := newTestDaemon(t, baseCfg())
	setSnapshot(d, Snapshot{Focus: state.FocusHoming})
	go func() {
		time.Sleep(10 * time.Millisecond)
		setSnapshotAndBroadcastFocus(d, Snapshot{Focus: state.FocusReady})
	}()
	if !d.waitFocus(state.FocusHoming, state.FocusReady, time.Second) {
		t.Fatal("waitFocus: want true once terminal state is observed")
	}
}

func TestWaitFocusTimesOutWhileStuckInIntermediate(t *testing.T) {
	d := newTestDaemon(t, baseCfg())
	setSnapshot(d, Snapshot{Focus: state.FocusHoming})
	if d.waitFocus(state.FocusHoming, state.FocusReady, 20*time.Millisecond) {
		t.Fatal("waitFocus: want false on timeout")
	}
}

func TestWaitFocusFailsImmediatelyOnForceStop(t *testing.T) {
	d := newTestDaemon(t, baseCfg())
	setSnapshot(d, Snapshot{Focus: state.FocusHoming})
	d.gates.setForceStopped(true)
	defer d.gates.setForceStopped(false)
	if d.waitFocus(state.FocusHoming, state.FocusReady, time.Second) {
		t.Fatal("waitFocus: want false when force-stopped")
	}
}

func TestWaitFocusReachedReturnsTrueWhenAlreadyWithinTolerance(t *testing.T) {
	d := newTestDaemon(t, baseCfg())
	setSnapshot(d, Snapshot{FocusMicrons: 100.2})
	if !d.waitFocusReached(100, 1, time.Second) {
		t.Fatal("waitFocusReached: want true when already within tolerance")
	}
}

func TestWaitFocusReachedTimesOutWhenFrozen(t *testing.T) {
	d := newTestDaemon(t, baseCfg())
	setSnapshot(d, Snapshot{FocusMicrons: 0})
	if d.waitFocusReached(100, 1, 20*time.Millisecond) {
		t.Fatal("waitFocusReached: want false when focus position never moves")
	}
}

func TestWaitFocusReachedFailsImmediatelyOnForceStop(t *testing.T) {
	d := newTestDaemon(t, baseCfg())
	setSnapshot(d, Snapshot{FocusMicrons: 0})
	d.gates.setForceStopped(true)
	defer d.gates.setForceStopped(false)
	if d.waitFocusReached(100, 1, time.Second) {
		t.Fatal("waitFocusReached: want false when force-stopped")
	}
}

func TestWaitControllerAliveReturnsTrueOncePointingIsReported(t *testing.T) {
	d := newTestDaemon(t, baseCfg())
	setSnapshot(d, Snapshot{Pointing: state.PointingAbsent})
	go func() {
		time.Sleep(10 * time.Millisecond)
		setSnapshotAndBroadcastPointing(d, Snapshot{Pointing: state.PointingStopped})
	}()
	if !d.waitControllerAlive(time.Second) {
		t.Fatal("waitControllerAlive: want true once pointing leaves Absent")
	}
}

func TestWaitControllerAliveTimesOutWhileAbsent(t *testing.T) {
	d := newTestDaemon(t, baseCfg())
	setSnapshot(d, Snapshot{Pointing: state.PointingAbsent})
	if d.waitControllerAlive(20 * time.Millisecond) {
		t.Fatal("waitControllerAlive: want false on timeout")
	}
}
