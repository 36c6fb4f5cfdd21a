package daemon

import (
	"fmt"
	"math"

	"github.com/w1xm/talond/internal/astro"
)

// checkSoftLimits enforces the pre-admission HA/Dec soft limits: no
// Alt:/HA:/RA: command is written to Tel.in unless the computed HA and
// Dec lie within the configured soft limits.
func (d *Daemon) checkSoftLimits(haRad, decRad float64) error {
	haDeg := haRad * 180 / math.Pi
	decDeg := decRad * 180 / math.Pi
	lo, hi := d.cfg.HASoftLimits[0], d.cfg.HASoftLimits[1]
	if haDeg < lo || haDeg > hi {
		return fmt.Errorf("%w: ha=%.3f not in [%.3f,%.3f]", ErrOutsideHALimits, haDeg, lo, hi)
	}
	lo, hi = d.cfg.DecSoftLimits[0], d.cfg.DecSoftLimits[1]
	if decDeg < lo || decDeg > hi {
		return fmt.Errorf("%w: dec=%.3f not in [%.3f,%.3f]", ErrOutsideDecLimits, decDeg, lo, hi)
	}
	return nil
}

// altAzToHADec converts a requested (alt,az) target to (HA,dec) using
// the current local sidereal time, so the soft-limit check can be
// applied uniformly regardless of which coordinate frame the caller used.
func (d *Daemon) altAzToHADec(altRad, azRad float64) (haRad, decRad float64) {
	snap := d.poller.current()
	phi := snap.SiteLatitudeRad
	return astro.HorEqu(altRad, azRad, phi)
}

// raDecToHA converts a requested J2000 RA to an hour angle. It recomputes
// the local sidereal time from the captured site and the controller's
// last MJD via astro.SiderealTime rather than trusting the controller's
// own published LST field, falling back to that field only if the site
// hasn't been captured yet (immediately after coming alive, before the
// first telemetry tick).
func (d *Daemon) raDecToHA(raRad float64) (haRad float64) {
	snap := d.poller.current()
	lst := snap.LST
	if snap.SiteCaptured {
		obs := astro.Observatory{
			LatitudeRad:     snap.SiteLatitudeRad,
			LongitudeRad:    snap.SiteLongitudeRad,
			ElevationMeters: snap.SiteElevationMeters,
		}
		if computed, err := astro.SiderealTime(snap.ControllerMJD, obs); err == nil {
			lst = computed
		}
	}
	ha := lst - raRad
	for ha > math.Pi {
		ha -= 2 * math.Pi
	}
	for ha < -math.Pi {
		ha += 2 * math.Pi
	}
	return ha
}
