package shm

import (
	"encoding/binary"
	"math"
)

// Offsets re-exports the byte offset table for use by tests and the
// virtual controller simulator that drives VirtualSegment.
var Offsets = struct {
	PID, MJD, LST                               int64
	RAJ2000, DecJ2000, HAApparent, DecApparent   int64
	Alt, Az, Latitude, Longitude, Elevation      int64
	PointingState, PointingIndex                int64
	RAFlags, DecFlags                           int64
	FocusFlags, FocusStep, FocusCPos, FocusDF    int64
}{
	PID: offPID, MJD: offMJD, LST: offLST,
	RAJ2000: offRAJ2000, DecJ2000: offDecJ2000,
	HAApparent: offHAApparent, DecApparent: offDecApparent,
	Alt: offAlt, Az: offAz,
	Latitude: offLatitude, Longitude: offLongitude, Elevation: offElevation,
	PointingState: offPointingState, PointingIndex: offPointingIndex,
	RAFlags: offRAFlags, DecFlags: offDecFlags,
	FocusFlags: offFocusFlags, FocusStep: offFocusStep,
	FocusCPos: offFocusCPos, FocusDF: offFocusDF,
}

// WriteDouble writes a float64 at off in IEEE-754 little-endian form.
func (v *VirtualSegment) WriteDouble(off int64, val float64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], math.Float64bits(val))
	v.WriteAt(b[:], off)
}

// WriteInt32 writes a 32-bit signed integer at off.
func (v *VirtualSegment) WriteInt32(off int64, val int32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(val))
	v.WriteAt(b[:], off)
}

// WriteUint16 writes a 16-bit bitfield at off.
func (v *VirtualSegment) WriteUint16(off int64, val uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], val)
	v.WriteAt(b[:], off)
}
