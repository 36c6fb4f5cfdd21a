package daemon

import (
	"github.com/w1xm/talond/internal/state"
)

// Snapshot is the daemon's view of the controller's telemetry, mutated
// only by the telemetry poller while holding both condition locks. It
// is copied by value wherever it crosses a lock boundary (status reads,
// wait predicates) so callers never observe a partially-updated record.
type Snapshot struct {
	Pointing     state.Pointing
	PointingIdx  int32
	Focus        state.Focus
	FocusMicrons float64

	RAJ2000, DecJ2000       float64
	HAApparent, DecApparent float64
	Alt, Az                 float64
	LST                     float64

	AxesHomed bool

	ControllerPID int32
	ControllerMJD float64

	SiteLatitudeRad, SiteLongitudeRad, SiteElevationMeters float64
	SiteCaptured                                           bool

	// Prior-tick copies, to detect edges.
	LastPointing     state.Pointing
	LastPointingIdx  int32
	LastFocus        state.Focus
	LastFocusMicrons float64
}

// Alive reports whether the controller is currently considered present.
func (s Snapshot) Alive() bool {
	return s.Pointing != state.PointingAbsent
}
