package daemon

import (
	"context"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/w1xm/talond/internal/liveness"
	"github.com/w1xm/talond/internal/shm"
	"github.com/w1xm/talond/internal/state"
)

// earthRadiusMeters converts the controller's elevation field, which is
// published in Earth-radii units, to meters.
const earthRadiusMeters = 6.37816e6

// attacher is the subset of shm used by the poller, so tests can supply
// a fake that fails on demand.
type attacher func() (shm.Segment, error)

// poller is the Telemetry Poller: a single long-lived
// task that, at a configured cadence, acquires both condition locks,
// takes a snapshot via the shared-memory reader and the liveness
// monitor, computes derived booleans, and signals condition variables
// on change.
type poller struct {
	g         *gates
	attach    attacher
	monitor   *liveness.Monitor
	period    time.Duration
	commDir   string
	onControllerDeath func()

	segMu sync.Mutex
	seg   shm.Segment

	snapMu sync.RWMutex
	snap   Snapshot
}

func newPoller(g *gates, attach attacher, queryTimeoutIterations int, period time.Duration, commDir string, onControllerDeath func()) *poller {
	return &poller{
		g:                 g,
		attach:            attach,
		monitor:           liveness.New(queryTimeoutIterations),
		period:            period,
		commDir:           commDir,
		onControllerDeath: onControllerDeath,
	}
}

// current returns a copy of the latest snapshot.
func (p *poller) current() Snapshot {
	p.snapMu.RLock()
	defer p.snapMu.RUnlock()
	return p.snap
}

// Run executes the poll loop until ctx is canceled.
func (p *poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.tick()
		}
	}
}

func (p *poller) tick() {
	// Lock ordering: pointing condition, then focus
	// condition, then shared-memory mutex.
	p.g.pointingMu.Lock()
	defer p.g.pointingMu.Unlock()
	p.g.focusMu.Lock()
	defer p.g.focusMu.Unlock()

	wasAlive := p.current().Alive()

	t, shmErr := p.readTelemetry()

	p.snapMu.Lock()
	prev := p.snap
	next := prev
	next.LastPointing = prev.Pointing
	next.LastPointingIdx = prev.PointingIdx
	next.LastFocus = prev.Focus
	next.LastFocusMicrons = prev.FocusMicrons

	var alive bool
	var pid int32
	var tod float64
	if shmErr == nil {
		pid, tod = t.PID, t.MJD
		alive = p.monitor.Alive(pid, tod)
	}
	p.monitor.Push(tod)

	if alive {
		next.Pointing = t.PointingStateValue()
		next.PointingIdx = t.PointingIndex
		next.Focus = t.FocusState()
		next.FocusMicrons = t.FocusMicrons()
		next.RAJ2000 = shm.ClampAngle(t.RAJ2000)
		next.DecJ2000 = shm.ClampAngle(t.DecJ2000)
		next.HAApparent = shm.ClampAngle(t.HAApparent)
		next.DecApparent = shm.ClampAngle(t.DecApparent)
		next.Alt = shm.ClampAngle(t.Alt)
		next.Az = shm.ClampAngle(t.Az)
		next.LST = shm.ClampAngle(t.LST)
		next.AxesHomed = shm.AxesHomed(t)
		next.ControllerPID = pid
		next.ControllerMJD = tod
		if !wasAlive {
			next.SiteLatitudeRad = t.Latitude
			next.SiteLongitudeRad = t.Longitude
			next.SiteElevationMeters = t.Elevation * earthRadiusMeters
			next.SiteCaptured = true
		}
	} else {
		next.Pointing = state.PointingAbsent
		next.Focus = state.FocusAbsent
		next.ControllerPID = 0
		next.SiteCaptured = false
	}
	p.snap = next
	p.snapMu.Unlock()

	if next.PointingIdx != prev.PointingIdx {
		p.g.pointingCond.Broadcast()
	}
	if next.FocusMicrons != prev.FocusMicrons || next.Focus != prev.Focus {
		p.g.focusCond.Broadcast()
	}

	if wasAlive && !alive {
		p.onDeath()
	}
}

func (p *poller) readTelemetry() (shm.Telemetry, error) {
	p.segMu.Lock()
	defer p.segMu.Unlock()
	if p.seg == nil {
		seg, err := p.attach()
		if err != nil {
			return shm.Telemetry{}, err
		}
		p.seg = seg
	}
	r := shm.NewReader(p.seg)
	t, err := r.ReadAll()
	if err != nil {
		// The segment may have gone away under us; drop it so the next
		// tick re-attaches.
		p.seg.Detach()
		p.seg = nil
		return shm.Telemetry{}, err
	}
	return t, nil
}

// onDeath runs the recovery steps triggered by controller death: kill
// the auxiliary process tree, remove stale pipe files, zero the
// accumulated pointing offset, reset internal state, and notify anyone
// waiting on the pointing condition that the controller is gone.
func (p *poller) onDeath() {
	log.Printf("talond: controller no longer alive; cleaning up")
	p.monitor.Reset()
	p.segMu.Lock()
	if p.seg != nil {
		p.seg.Detach()
		p.seg = nil
	}
	p.segMu.Unlock()
	killAuxiliaryProcesses()
	cleanCommDir(p.commDir)
	if p.onControllerDeath != nil {
		p.onControllerDeath()
	}
	p.g.pointingCond.Broadcast()
}

// killAuxiliaryProcesses best-effort terminates the controller's helper
// daemon tree, mirroring the `killall rund` cleanup step run after a
// controller death. Failures are logged and ignored: the controller is
// already gone, so there is nothing useful to retry.
func killAuxiliaryProcesses() {
	if err := exec.Command("killall", "rund").Run(); err != nil {
		log.Printf("talond: killall rund: %v", err)
	}
}

// cleanCommDir best-effort removes every file under dir, ignoring
// individual failures (e.g. a concurrent process already removed one).
func cleanCommDir(dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		if err := os.Remove(filepath.Join(dir, e.Name())); err != nil {
			log.Printf("talond: removing %s: %v", e.Name(), err)
		}
	}
}
