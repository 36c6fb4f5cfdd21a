//go:build linux

package shm

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// sysvSegment attaches to a real SysV shared memory segment.
type sysvSegment struct {
	id   int
	addr []byte
}

// Attach attaches to the shared memory segment published by the talon
// controller under Key. It returns ErrControllerAbsent if no segment
// with that key currently exists, matching the controller lifecycle:
// the segment only exists while the controller process is running.
func Attach() (Segment, error) {
	id, err := unix.SysvShmGet(Key, SegmentSize, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrControllerAbsent, err)
	}
	addr, err := unix.SysvShmAttach(id, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrControllerAbsent, err)
	}
	return &sysvSegment{id: id, addr: addr}, nil
}

func (s *sysvSegment) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off+int64(len(p)) > int64(len(s.addr)) {
		return 0, fmt.Errorf("shm: offset %d out of range", off)
	}
	return copy(p, s.addr[off:off+int64(len(p))]), nil
}

func (s *sysvSegment) Detach() error {
	return unix.SysvShmDetach(s.addr)
}
