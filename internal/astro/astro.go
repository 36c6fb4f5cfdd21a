// Package astro wraps the external astronomical routines the daemon
// needs: converting between horizon (alt/az) and equatorial (HA/Dec)
// coordinates for soft-limit checking, and computing sun/moon angular
// separation for status reports. Coordinate frame rotation is computed
// directly; solar-system body positions are delegated to
// github.com/pebbe/novas, a binding for the US Naval Observatory's
// NOVAS library.
package astro

import (
	"math"

	"github.com/pebbe/novas"
)

// EquHor converts equatorial (ha, dec) to horizon (alt, az); phi is the
// observer's latitude. All angles are in radians.
func EquHor(ha, dec, phi float64) (alt, az float64) {
	sha, sdec, sphi := math.Sin(ha), math.Sin(dec), math.Sin(phi)
	cha, cdec, cphi := math.Cos(ha), math.Cos(dec), math.Cos(phi)

	sAlt := (sdec * sphi) + (cdec * cphi * cha)
	altR := math.Asin(sAlt)

	cAz := (sdec - (sphi * sAlt)) / (cphi * math.Cos(altR))
	azR := math.Acos(clamp(cAz, -1, 1))
	if sha > 0 {
		azR = 2*math.Pi - azR
	}
	return altR, azR
}

// HorEqu is the inverse of EquHor: converts horizon (alt, az) to
// equatorial (ha, dec).
func HorEqu(alt, az, phi float64) (ha, dec float64) {
	return EquHor(az, alt, phi)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Observatory identifies the site used for sidereal time and sun/moon
// geometry; captured once from shared memory when the controller comes
// alive.
type Observatory struct {
	LatitudeRad, LongitudeRad, ElevationMeters float64
}

// SiderealTime returns the apparent local sidereal time, in radians, at
// the given MJD and site. The controller publishes its own LST field
// directly (so the daemon normally does not need to compute this), but
// the limit-checking path for alt/az slews needs to derive HA from a
// requested RA without waiting for a telemetry tick.
func SiderealTime(mjd float64, obs Observatory) (float64, error) {
	gstHours, err := novas.SiderealTime(mjd + 2400000.5)
	if err != nil {
		return 0, err
	}
	lst := gstHours*math.Pi/12 + obs.LongitudeRad
	return math.Mod(lst+2*math.Pi, 2*math.Pi), nil
}

// SunMoonSeparation returns the angular separation, in degrees, between
// a target at (ra, dec) (radians, J2000) and the Sun and the Moon at the
// given MJD.
func SunMoonSeparation(ra, dec, mjd float64) (sunSepDeg, moonSepDeg float64, err error) {
	jdTT := mjd + 2400000.5
	sunRAHours, sunDecDeg, err := novas.SunPosition(jdTT)
	if err != nil {
		return 0, 0, err
	}
	moonRAHours, moonDecDeg, err := novas.MoonPosition(jdTT)
	if err != nil {
		return 0, 0, err
	}
	sunSepDeg = angularSeparationDeg(ra, dec, sunRAHours*math.Pi/12, sunDecDeg*math.Pi/180)
	moonSepDeg = angularSeparationDeg(ra, dec, moonRAHours*math.Pi/12, moonDecDeg*math.Pi/180)
	return sunSepDeg, moonSepDeg, nil
}

// angularSeparationDeg returns the great-circle angular separation, in
// degrees, between two equatorial positions given in radians.
func angularSeparationDeg(ra1, dec1, ra2, dec2 float64) float64 {
	cosSep := math.Sin(dec1)*math.Sin(dec2) + math.Cos(dec1)*math.Cos(dec2)*math.Cos(ra1-ra2)
	return math.Acos(clamp(cosSep, -1, 1)) * 180 / math.Pi
}
