// Package state defines the integer-valued enumerations reported by the
// talon controller through shared memory, and the label tables used to
// render them for clients. The wire values are fixed by the controller's
// ABI and must never be renumbered.
package state

// Pointing is the controller-reported motion state of the mount.
type Pointing int

const (
	PointingAbsent Pointing = iota
	PointingStopped
	PointingHunting
	PointingTracking
	PointingSlewing
	PointingHoming
	PointingLimiting
)

var pointingLabels = map[Pointing]string{
	PointingAbsent:   "ABSENT",
	PointingStopped:  "STOPPED",
	PointingSlewing:  "SLEWING",
	PointingHunting:  "HUNTING",
	PointingTracking: "TRACKING",
	PointingHoming:   "HOMING",
	PointingLimiting: "LIMITING",
}

// Label returns a human readable name for p, or "UNKNOWN" if p is not a
// recognized value.
func (p Pointing) Label() string {
	if l, ok := pointingLabels[p]; ok {
		return l
	}
	return "UNKNOWN"
}

// Focus is the controller-reported state of the focus axis.
type Focus int

const (
	FocusAbsent Focus = iota
	FocusNotHomed
	FocusHoming
	FocusLimiting
	FocusReady
)

var focusLabels = map[Focus]string{
	FocusAbsent:   "ABSENT",
	FocusNotHomed: "NOT_HOMED",
	FocusHoming:   "HOMING",
	FocusLimiting: "LIMITING",
	FocusReady:    "READY",
}

// Label returns a human readable name for f, or "UNKNOWN" if f is not a
// recognized value.
func (f Focus) Label() string {
	if l, ok := focusLabels[f]; ok {
		return l
	}
	return "UNKNOWN"
}
