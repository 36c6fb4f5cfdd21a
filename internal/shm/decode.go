package shm

import (
	"math"

	"github.com/w1xm/talond/internal/state"
)

const (
	flagHomed    = 0x200
	focusPresent = 0x01
	focusHoming  = 0x80
	focusLimit   = 0x100
	focusReady   = 0x200
)

// AxesHomed reports whether both mechanical axes (and the focus axis, if
// present) have a valid reference position.
func AxesHomed(t Telemetry) bool {
	focusOK := t.FocusState() == state.FocusAbsent || t.FocusFlags&focusReady != 0
	return t.RAFlags&flagHomed != 0 && t.DecFlags&flagHomed != 0 && focusOK
}

// FocusState decodes the focus axis state from FocusFlags, checking
// flags in priority order: NotHomed, then Homing, then Limiting, then
// Ready. The flags are mutually exclusive in practice but this order
// breaks ties deterministically if more than one is set.
func (t Telemetry) FocusState() state.Focus {
	if t.FocusFlags&focusPresent == 0 {
		return state.FocusAbsent
	}
	switch {
	case t.FocusFlags&focusHoming != 0:
		return state.FocusHoming
	case t.FocusFlags&focusLimit != 0:
		return state.FocusLimiting
	case t.FocusFlags&focusReady != 0:
		return state.FocusReady
	default:
		return state.FocusNotHomed
	}
}

// PointingState decodes the controller's reported pointing state,
// clamping unrecognized values to Absent rather than propagating a
// garbage enum downstream.
func (t Telemetry) PointingStateValue() state.Pointing {
	p := state.Pointing(t.PointingState)
	if p < state.PointingAbsent || p > state.PointingLimiting {
		return state.PointingAbsent
	}
	return p
}

// FocusMicrons computes the focus position in micrometres from the raw
// step count, current position, and df constant.
func (t Telemetry) FocusMicrons() float64 {
	if t.FocusDF == 0 {
		return 0
	}
	return float64(t.FocusStep) * t.FocusCPos / (2 * math.Pi * t.FocusDF)
}

// ClampAngle replaces a NaN angle with zero. The shared memory segment
// is untrusted input: the controller can publish transient
// garbage while motors settle, and propagating a NaN through the
// daemon's state machine would corrupt derived booleans downstream.
func ClampAngle(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return v
}
