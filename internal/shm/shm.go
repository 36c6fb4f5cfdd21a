// Package shm attaches to the talon controller's SysV shared memory
// segment and exposes typed reads at fixed byte offsets. It is stateless
// across calls: every Read* call re-reads the segment.
//
// Offsets are taken from the controller's TelStatShm/MotorInfo/Now
// layout, as captured by compiling offsetof() probes into the talon
// utilities (see the offset table below); they are part of the
// controller's ABI and must not be changed without re-deriving them.
package shm

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// Key is the well-known SysV key of the talon telemetry segment.
const Key = 0x4e56361a

// Byte offsets into the segment. See package doc.
const (
	offPID         = 840
	offMJD         = 0
	offLST         = 152
	offRAJ2000     = 88
	offDecJ2000    = 96
	offHAApparent  = 112
	offDecApparent = 120
	offAlt         = 128
	offAz          = 136
	offLatitude    = 8
	offLongitude   = 16
	offElevation   = 48

	offPointingState = 808
	offPointingIndex = 812

	offRAFlags    = 257
	offDecFlags   = 377
	offFocusFlags = 617
	offFocusStep  = 620
	offFocusCPos  = 712
	offFocusDF    = 696

	// SegmentSize is large enough to cover every offset above plus its
	// field width; attach requests exactly this many bytes.
	SegmentSize = 968
)

// ErrControllerAbsent is returned when no segment exists under Key: the
// talon controller process has not started (or has died and been
// cleaned up).
var ErrControllerAbsent = errors.New("shm: controller shared memory segment not present")

// Segment is a read-only attachment to the talon shared memory segment.
// A Segment has no internal synchronization of its own; callers that
// share a Segment across goroutines must serialize access (the daemon
// does this with its shared-memory mutex).
type Segment interface {
	// ReadAt copies len(p) bytes starting at offset off into p.
	ReadAt(p []byte, off int64) (int, error)
	// Detach releases the segment attachment.
	Detach() error
}

// Reader decodes typed telemetry fields out of an attached Segment.
type Reader struct {
	seg Segment
}

// NewReader wraps an already-attached Segment.
func NewReader(seg Segment) *Reader {
	return &Reader{seg: seg}
}

func (r *Reader) readBytes(off int64, n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := r.seg.ReadAt(buf, off); err != nil {
		return nil, fmt.Errorf("shm: read at offset %d: %w", off, err)
	}
	return buf, nil
}

func (r *Reader) double(off int64) (float64, error) {
	b, err := r.readBytes(off, 8)
	if err != nil {
		return 0, err
	}
	return bytesToFloat64(b), nil
}

func (r *Reader) int32(off int64) (int32, error) {
	b, err := r.readBytes(off, 4)
	if err != nil {
		return 0, err
	}
	return bytesToInt32(b), nil
}

func (r *Reader) ushort(off int64) (uint16, error) {
	b, err := r.readBytes(off, 2)
	if err != nil {
		return 0, err
	}
	return bytesToUint16(b), nil
}

// Telemetry is the full set of fields the daemon needs on every poll
// tick, read in one batch so callers don't need to know the offset
// table.
type Telemetry struct {
	PID            int32
	MJD            float64
	LST            float64
	RAJ2000        float64
	DecJ2000       float64
	HAApparent     float64
	DecApparent    float64
	Alt            float64
	Az             float64
	Latitude       float64
	Longitude      float64
	Elevation      float64
	PointingState  int32
	PointingIndex  int32
	RAFlags        uint16
	DecFlags       uint16
	FocusFlags     uint16
	FocusStep      int32
	FocusCPos      float64
	FocusDF        float64
}

// ReadAll reads every field used by the daemon in one pass.
func (r *Reader) ReadAll() (Telemetry, error) {
	var t Telemetry
	var err error
	for _, f := range []struct {
		dst *float64
		off int64
	}{
		{&t.MJD, offMJD},
		{&t.LST, offLST},
		{&t.RAJ2000, offRAJ2000},
		{&t.DecJ2000, offDecJ2000},
		{&t.HAApparent, offHAApparent},
		{&t.DecApparent, offDecApparent},
		{&t.Alt, offAlt},
		{&t.Az, offAz},
		{&t.Latitude, offLatitude},
		{&t.Longitude, offLongitude},
		{&t.Elevation, offElevation},
		{&t.FocusCPos, offFocusCPos},
		{&t.FocusDF, offFocusDF},
	} {
		if *f.dst, err = r.double(f.off); err != nil {
			return Telemetry{}, err
		}
	}
	if t.PID, err = r.int32(offPID); err != nil {
		return Telemetry{}, err
	}
	if t.PointingState, err = r.int32(offPointingState); err != nil {
		return Telemetry{}, err
	}
	if t.PointingIndex, err = r.int32(offPointingIndex); err != nil {
		return Telemetry{}, err
	}
	if t.FocusStep, err = r.int32(offFocusStep); err != nil {
		return Telemetry{}, err
	}
	for _, f := range []struct {
		dst *uint16
		off int64
	}{
		{&t.RAFlags, offRAFlags},
		{&t.DecFlags, offDecFlags},
		{&t.FocusFlags, offFocusFlags},
	} {
		if *f.dst, err = r.ushort(f.off); err != nil {
			return Telemetry{}, err
		}
	}
	return t, nil
}

// The controller is compiled for a little-endian x86 host.
func bytesToFloat64(b []byte) float64 {
	return math.Float64frombits(binary.LittleEndian.Uint64(b))
}

func bytesToInt32(b []byte) int32 {
	return int32(binary.LittleEndian.Uint32(b))
}

func bytesToUint16(b []byte) uint16 {
	return binary.LittleEndian.Uint16(b)
}
