package shm

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/w1xm/talond/internal/state"
)

// VirtualSegment is an in-process fake of the talon shared memory
// segment, used when the daemon is configured with virtual=true and in
// tests. It lets test code poke individual fields without a real
// controller process, and Drive lets virtual=true deployments do the
// same autonomously.
type VirtualSegment struct {
	mu  sync.Mutex
	buf [SegmentSize]byte
}

// NewVirtualSegment returns an empty segment (as if freshly attached to
// an idle controller).
func NewVirtualSegment() *VirtualSegment {
	return &VirtualSegment{}
}

// Drive starts a background loop simulating the smallest controller
// that satisfies the daemon's liveness and initialization checks: a
// live pid, a steadily advancing time-of-day, and a stopped,
// fully-homed mount with no focus axis. It publishes nothing resembling
// real pointing, slewing, or focus behavior -- commands still write to
// the comm-dir FIFOs as normal, they just have no simulated effect on
// the published telemetry. Call it once, before the daemon's first
// attach, when the config's virtual flag is set.
func (v *VirtualSegment) Drive(ctx context.Context, period time.Duration) {
	pid := int32(os.Getpid())
	go func() {
		ticker := time.NewTicker(period)
		defer ticker.Stop()
		var mjd float64
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			mjd++
			v.WriteInt32(offPID, pid)
			v.WriteDouble(offMJD, mjd)
			v.WriteInt32(offPointingState, int32(state.PointingStopped))
			v.WriteUint16(offRAFlags, flagHomed)
			v.WriteUint16(offDecFlags, flagHomed)
		}
	}()
}

func (v *VirtualSegment) ReadAt(p []byte, off int64) (int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return copy(p, v.buf[off:off+int64(len(p))]), nil
}

func (v *VirtualSegment) Detach() error {
	return nil
}

// WriteAt lets test/simulation code set raw bytes, mirroring how the
// real controller would publish telemetry.
func (v *VirtualSegment) WriteAt(p []byte, off int64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	copy(v.buf[off:off+int64(len(p))], p)
}
