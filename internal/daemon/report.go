package daemon

import (
	"github.com/w1xm/talond/internal/astro"
	"github.com/w1xm/talond/internal/state"
)

// coverLabel reports the configured cover's current state, or "" if no
// cover is configured, for inclusion in StatusRecord.
func (d *Daemon) coverLabel() string {
	if d.cover == nil {
		return ""
	}
	return d.cover.State().String()
}

// SiteInfo is the observatory site triple, present once the controller
// has come alive.
type SiteInfo struct {
	LatitudeRad, LongitudeRad, ElevationMeters float64
}

// AxesBlock holds the fields the status report only includes once the
// axes are homed.
type AxesBlock struct {
	RAJ2000Rad, DecJ2000Rad float64
	OffsetRaDeg, OffsetDecDeg float64
	HAApparentRad           float64
	AltRad, AzRad           float64
	SunSeparationDeg        float64
	MoonSeparationDeg       float64
}

// StatusRecord is the structured status record returned to clients.
// A nil pointer means the field was not populated for this snapshot:
// fields fill in progressively as the telescope comes up (site info,
// then axes-homed, then the axes block once homed).
type StatusRecord struct {
	Pointing      state.Pointing
	PointingLabel string

	Site *SiteInfo

	AxesHomed *bool
	LSTRad    *float64

	FocusState *state.Focus

	Axes *AxesBlock

	FocusMicrons *float64

	CoverState string `json:",omitempty"`
}

// Status implements the report_status RPC. It never
// fails: it projects whatever fields are currently valid in the latest
// snapshot. It takes neither the command mutex nor the access check,
// since status must remain readable even while a command is in flight
// or from a host outside the control list.
func (d *Daemon) Status() StatusRecord {
	snap := d.poller.current()
	rec := StatusRecord{
		Pointing:      snap.Pointing,
		PointingLabel: snap.Pointing.Label(),
		CoverState:    d.coverLabel(),
	}
	if snap.Pointing == state.PointingAbsent {
		return rec
	}
	if snap.SiteCaptured {
		rec.Site = &SiteInfo{
			LatitudeRad:     snap.SiteLatitudeRad,
			LongitudeRad:    snap.SiteLongitudeRad,
			ElevationMeters: snap.SiteElevationMeters,
		}
	}
	if snap.Pointing != state.PointingAbsent {
		homed := snap.AxesHomed
		rec.AxesHomed = &homed
		lst := snap.LST
		rec.LSTRad = &lst
	}
	if d.cfg.IsFull() {
		fs := snap.Focus
		rec.FocusState = &fs
	}
	if snap.AxesHomed {
		ra, dec := d.offset.Get()
		axes := &AxesBlock{
			RAJ2000Rad:   snap.RAJ2000,
			DecJ2000Rad:  snap.DecJ2000,
			OffsetRaDeg:  ra,
			OffsetDecDeg: dec,
			HAApparentRad: snap.HAApparent,
			AltRad:       snap.Alt,
			AzRad:        snap.Az,
		}
		if snap.SiteCaptured {
			if sunSep, moonSep, err := astro.SunMoonSeparation(snap.RAJ2000, snap.DecJ2000, snap.ControllerMJD); err == nil {
				axes.SunSeparationDeg = sunSep
				axes.MoonSeparationDeg = moonSep
			}
		}
		rec.Axes = axes
	}
	if snap.Focus != state.FocusAbsent {
		um := snap.FocusMicrons
		rec.FocusMicrons = &um
	}
	return rec
}
