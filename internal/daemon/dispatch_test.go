package daemon

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/w1xm/talond/internal/config"
	"github.com/w1xm/talond/internal/coverrelay"
	"github.com/w1xm/talond/internal/shm"
	"github.com/w1xm/talond/internal/state"
)

// fakeSpawner reports success or failure without starting any real
// process, so dispatch tests don't depend on an external binary.
type fakeSpawner struct {
	err error
}

func (f *fakeSpawner) Spawn(ctx context.Context) error { return f.err }

func newTestDaemon(t *testing.T, cfg *config.Config) *Daemon {
	t.Helper()
	if cfg.CommDir == "" {
		dir := t.TempDir()
		for _, name := range []string{"Tel.in", "Focus.in"} {
			if err := os.WriteFile(filepath.Join(dir, name), nil, 0600); err != nil {
				t.Fatal(err)
			}
		}
		cfg.CommDir = dir
	}
	if cfg.QueryTimeoutIterations == 0 {
		cfg.QueryTimeoutIterations = 2
	}
	seg := shm.NewVirtualSegment()
	attach := func() (shm.Segment, error) { return seg, nil }
	return New(cfg, attach, nil, &fakeSpawner{})
}

// setSnapshot installs a Snapshot directly, bypassing the poller, so
// dispatch tests can exercise each precondition deterministically.
func setSnapshot(d *Daemon, s Snapshot) {
	d.poller.snapMu.Lock()
	d.poller.snap = s
	d.poller.snapMu.Unlock()
}

func baseCfg() *config.Config {
	return &config.Config{
		Flavor:         config.Lite,
		ControlClients: []string{"127.0.0.1"},
		HASoftLimits:   [2]float64{-6, 6},
		DecSoftLimits:  [2]float64{-30, 90},
		Timeouts:       config.Timeouts{Initialization: 1, Slew: 1, Homing: 1, Limit: 1, Focus: 1},
	}
}

func TestCheckControlClientRejectsUnknownHost(t *testing.T) {
	d := newTestDaemon(t, baseCfg())
	err := d.Ping("10.0.0.9:1234")
	if !errors.Is(err, ErrInvalidControlIP) {
		t.Fatalf("Ping from unlisted host: err = %v, want ErrInvalidControlIP", err)
	}
}

func TestCheckControlClientAcceptsListedHost(t *testing.T) {
	d := newTestDaemon(t, baseCfg())
	if err := d.Ping("127.0.0.1:1234"); err != nil {
		t.Fatalf("Ping from listed host: err = %v, want nil", err)
	}
}

func TestInitializeRejectsAlreadyInitialized(t *testing.T) {
	d := newTestDaemon(t, baseCfg())
	setSnapshot(d, Snapshot{Pointing: state.PointingStopped})
	err := d.Initialize(context.Background(), "127.0.0.1:1")
	if !errors.Is(err, ErrTelescopeNotUninitialized) {
		t.Fatalf("Initialize while already initialized: err = %v, want ErrTelescopeNotUninitialized", err)
	}
}

func TestInitializeFailsWhenControllerNeverComesAlive(t *testing.T) {
	cfg := baseCfg()
	cfg.Timeouts.Initialization = 0.02
	d := newTestDaemon(t, cfg)
	// Snapshot stays Absent forever: the fake spawner never writes
	// telemetry, so waitControllerAlive must time out.
	err := d.Initialize(context.Background(), "127.0.0.1:1")
	if !errors.Is(err, ErrFailed) {
		t.Fatalf("Initialize with a controller that never comes alive: err = %v, want ErrFailed", err)
	}
}

func TestCommandBlockedWhileAnotherIsInFlight(t *testing.T) {
	d := newTestDaemon(t, baseCfg())
	setSnapshot(d, Snapshot{Pointing: state.PointingStopped, AxesHomed: true})
	release, ok := d.gates.tryCommand()
	if !ok {
		t.Fatal("tryCommand on an idle daemon: got false, want true")
	}
	defer release()
	err := d.Home("127.0.0.1:1")
	if !errors.Is(err, ErrBlocked) {
		t.Fatalf("Home while command mutex held: err = %v, want ErrBlocked", err)
	}
}

func TestSlewAltAzRejectsWhenNotHomed(t *testing.T) {
	d := newTestDaemon(t, baseCfg())
	setSnapshot(d, Snapshot{Pointing: state.PointingStopped, AxesHomed: false})
	err := d.SlewAltAz("127.0.0.1:1", 45, 90)
	if !errors.Is(err, ErrTelescopeNotHomed) {
		t.Fatalf("SlewAltAz before homing: err = %v, want ErrTelescopeNotHomed", err)
	}
}

func TestSlewHADecRejectsOutsideSoftLimits(t *testing.T) {
	cfg := baseCfg()
	cfg.HASoftLimits = [2]float64{-1, 1}
	d := newTestDaemon(t, cfg)
	setSnapshot(d, Snapshot{Pointing: state.PointingStopped, AxesHomed: true})
	err := d.SlewHADec("127.0.0.1:1", 10, 0)
	if !errors.Is(err, ErrOutsideHALimits) {
		t.Fatalf("SlewHADec outside ha_soft_limits: err = %v, want ErrOutsideHALimits", err)
	}
}

func TestOffsetRADecAccumulatesWhileTracking(t *testing.T) {
	d := newTestDaemon(t, baseCfg())
	setSnapshot(d, Snapshot{Pointing: state.PointingTracking, AxesHomed: true})
	if err := d.OffsetRADec("127.0.0.1:1", 0.01, -0.02); err != nil {
		t.Fatalf("OffsetRADec while tracking: err = %v, want nil", err)
	}
	ra, dec := d.offset.Get()
	if ra != 0.01 || dec != -0.02 {
		t.Fatalf("offset after OffsetRADec = (%v, %v), want (0.01, -0.02)", ra, dec)
	}
}

func TestOffsetRADecFailsWhenNotHomed(t *testing.T) {
	d := newTestDaemon(t, baseCfg())
	setSnapshot(d, Snapshot{Pointing: state.PointingTracking, AxesHomed: false})
	err := d.OffsetRADec("127.0.0.1:1", 0.01, 0.01)
	if !errors.Is(err, ErrTelescopeNotHomed) {
		t.Fatalf("OffsetRADec before homing: err = %v, want ErrTelescopeNotHomed", err)
	}
}

func TestParkRejectsUnknownPosition(t *testing.T) {
	d := newTestDaemon(t, baseCfg())
	setSnapshot(d, Snapshot{Pointing: state.PointingStopped, AxesHomed: true})
	err := d.Park("127.0.0.1:1", "nonexistent")
	if !errors.Is(err, ErrUnknownParkPosition) {
		t.Fatalf("Park to unknown position: err = %v, want ErrUnknownParkPosition", err)
	}
}

func TestTelescopeFocusRejectsOnLiteFlavor(t *testing.T) {
	d := newTestDaemon(t, baseCfg()) // Lite: no focus axis
	setSnapshot(d, Snapshot{Pointing: state.PointingStopped, AxesHomed: true, Focus: state.FocusReady})
	err := d.TelescopeFocus("127.0.0.1:1", 100)
	if !errors.Is(err, ErrFailed) {
		t.Fatalf("TelescopeFocus on Lite flavor: err = %v, want ErrFailed", err)
	}
}

func TestOpenCoverFailsWithNoCoverConfigured(t *testing.T) {
	d := newTestDaemon(t, baseCfg())
	setSnapshot(d, Snapshot{Pointing: state.PointingStopped})
	err := d.OpenCover("127.0.0.1:1")
	if !errors.Is(err, ErrFailed) {
		t.Fatalf("OpenCover with no cover configured: err = %v, want ErrFailed", err)
	}
}

// fakeCoverRelay reports whatever state its Open/Close calls last set,
// without a real Modbus link.
type fakeCoverRelay struct {
	mu    sync.Mutex
	state coverrelay.State
	stuck bool
}

func (c *fakeCoverRelay) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.stuck {
		c.state = coverrelay.Open
	}
	return nil
}

func (c *fakeCoverRelay) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.stuck {
		c.state = coverrelay.Closed
	}
	return nil
}

func (c *fakeCoverRelay) Stop() error { return nil }

func (c *fakeCoverRelay) State() coverrelay.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func TestOpenCoverSucceedsOnceRelayReportsOpen(t *testing.T) {
	cfg := baseCfg()
	cfg.Timeouts.Cover = 1
	d := newTestDaemon(t, cfg)
	d.SetCover(&fakeCoverRelay{})
	setSnapshot(d, Snapshot{Pointing: state.PointingStopped})
	if err := d.OpenCover("127.0.0.1:1"); err != nil {
		t.Fatalf("OpenCover: err = %v, want nil", err)
	}
}

func TestOpenCoverTimesOutWhenRelayNeverReportsOpen(t *testing.T) {
	cfg := baseCfg()
	cfg.Timeouts.Cover = 0.05
	d := newTestDaemon(t, cfg)
	d.SetCover(&fakeCoverRelay{stuck: true})
	setSnapshot(d, Snapshot{Pointing: state.PointingStopped})
	err := d.OpenCover("127.0.0.1:1")
	if !errors.Is(err, ErrFailed) {
		t.Fatalf("OpenCover with a stuck relay: err = %v, want ErrFailed", err)
	}
}

func TestStopRejectsWhenNotInitialized(t *testing.T) {
	d := newTestDaemon(t, baseCfg())
	setSnapshot(d, Snapshot{Pointing: state.PointingAbsent})
	err := d.Stop("127.0.0.1:1")
	if !errors.Is(err, ErrTelescopeNotInitialized) {
		t.Fatalf("Stop before initialize: err = %v, want ErrTelescopeNotInitialized", err)
	}
}

func TestStopWritesBothPipesAndSucceeds(t *testing.T) {
	d := newTestDaemon(t, baseCfg())
	setSnapshot(d, Snapshot{Pointing: state.PointingSlewing})
	if err := d.Stop("127.0.0.1:1"); err != nil {
		t.Fatalf("Stop: err = %v, want nil", err)
	}
	data, err := os.ReadFile(filepath.Join(d.cfg.CommDir, "Tel.in"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "Stop\n" {
		t.Errorf("Tel.in contents = %q, want %q", data, "Stop\n")
	}
}
