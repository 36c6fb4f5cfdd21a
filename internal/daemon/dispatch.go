package daemon

import (
	"context"
	"fmt"
	"math"
	"os"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/w1xm/talond/internal/config"
	"github.com/w1xm/talond/internal/coverrelay"
	"github.com/w1xm/talond/internal/fifo"
	"github.com/w1xm/talond/internal/state"
)

// command wraps the non-blocking command-mutex admission shared by
// every motion-style operation: it tries the command mutex with zero
// timeout, failing with ErrBlocked if another command is already
// in flight.
func (d *Daemon) command(callerAddr string, fn func() error) error {
	if err := d.checkControlClient(callerAddr); err != nil {
		return err
	}
	release, ok := d.gates.tryCommand()
	if !ok {
		return ErrBlocked
	}
	defer release()
	return fn()
}

// Initialize implements the initialize RPC.
func (d *Daemon) Initialize(ctx context.Context, callerAddr string) error {
	return d.command(callerAddr, func() error {
		if d.poller.current().Pointing != state.PointingAbsent {
			return ErrTelescopeNotUninitialized
		}
		if d.cfg.IsFull() {
			safe, err := d.interlock.Safe(ctx, d.cfg.Interlock.Key)
			if err != nil {
				return fmt.Errorf("%w: %v", ErrCannotCommunicateWithSecurity, err)
			}
			if !safe {
				return ErrSecuritySystemTripped
			}
		}
		if err := d.spawner.Spawn(ctx); err != nil {
			return fmt.Errorf("%w: spawning controller: %v", ErrFailed, err)
		}
		if !d.waitControllerAlive(d.timeoutFor(func(t config.Timeouts) float64 { return t.Initialization })) {
			return ErrFailed
		}
		return nil
	})
}

// Shutdown implements the shutdown RPC: requires
// pointing != Absent, sends SIGINT to the observed controller pid, and
// returns immediately -- the poller will observe the death.
func (d *Daemon) Shutdown(callerAddr string) error {
	return d.command(callerAddr, func() error {
		snap := d.poller.current()
		if snap.Pointing == state.PointingAbsent {
			return ErrTelescopeNotInitialized
		}
		proc, err := os.FindProcess(int(snap.ControllerPID))
		if err != nil {
			return fmt.Errorf("%w: %v", ErrFailed, err)
		}
		if err := proc.Signal(syscall.SIGINT); err != nil {
			return fmt.Errorf("%w: %v", ErrFailed, err)
		}
		return nil
	})
}

// Home implements the find_homes RPC: home HA, then Dec,
// then focus if present.
func (d *Daemon) Home(callerAddr string) error {
	return d.command(callerAddr, func() error {
		if d.poller.current().Pointing == state.PointingAbsent {
			return ErrTelescopeNotInitialized
		}
		if err := d.homeAxis("homeH"); err != nil {
			return err
		}
		if err := d.homeAxis("homeD"); err != nil {
			return err
		}
		if d.cfg.IsFull() && d.poller.current().Focus != state.FocusAbsent {
			if err := d.homeFocus(); err != nil {
				return err
			}
		}
		return nil
	})
}

func (d *Daemon) homeAxis(cmd string) error {
	if err := d.fifo.Write(fifo.Tel, cmd); err != nil {
		return fmt.Errorf("%w: %v", ErrFailed, err)
	}
	if !d.waitPointing(state.PointingHoming, state.PointingStopped, d.timeoutFor(func(t config.Timeouts) float64 { return t.Homing })) {
		return ErrFailed
	}
	return nil
}

func (d *Daemon) homeFocus() error {
	if err := d.fifo.Write(fifo.Focus, "home"); err != nil {
		return fmt.Errorf("%w: %v", ErrFailed, err)
	}
	if !d.waitFocus(state.FocusHoming, state.FocusReady, d.timeoutFor(func(t config.Timeouts) float64 { return t.Homing })) {
		return ErrFailed
	}
	return nil
}

// Limits implements the find_limits RPC: slew to zenith,
// HA limits, zenith, Dec limits, zenith, then focus limits if present.
func (d *Daemon) Limits(callerAddr string) error {
	return d.command(callerAddr, func() error {
		if !d.poller.current().AxesHomed {
			return ErrTelescopeNotHomed
		}
		zenith := func() error { return d.slewAltAz(math.Pi/2, 0) }
		if err := zenith(); err != nil {
			return err
		}
		if err := d.limitAxis("limitsH"); err != nil {
			return err
		}
		if err := zenith(); err != nil {
			return err
		}
		if err := d.limitAxis("limitsD"); err != nil {
			return err
		}
		if err := zenith(); err != nil {
			return err
		}
		if d.cfg.IsFull() && d.poller.current().Focus != state.FocusAbsent {
			if err := d.limitFocus(); err != nil {
				return err
			}
		}
		return nil
	})
}

func (d *Daemon) limitAxis(cmd string) error {
	if err := d.fifo.Write(fifo.Tel, cmd); err != nil {
		return fmt.Errorf("%w: %v", ErrFailed, err)
	}
	if !d.waitPointing(state.PointingLimiting, state.PointingStopped, d.timeoutFor(func(t config.Timeouts) float64 { return t.Limit })) {
		return ErrFailed
	}
	return nil
}

func (d *Daemon) limitFocus() error {
	if err := d.fifo.Write(fifo.Focus, "limits"); err != nil {
		return fmt.Errorf("%w: %v", ErrFailed, err)
	}
	if !d.waitFocus(state.FocusLimiting, state.FocusReady, d.timeoutFor(func(t config.Timeouts) float64 { return t.Limit })) {
		return ErrFailed
	}
	return nil
}

// SlewAltAz implements the slew_altaz RPC. alt, az are in
// degrees.
func (d *Daemon) SlewAltAz(callerAddr string, altDeg, azDeg float64) error {
	return d.command(callerAddr, func() error {
		if !d.poller.current().AxesHomed {
			return ErrTelescopeNotHomed
		}
		return d.slewAltAz(altDeg*math.Pi/180, azDeg*math.Pi/180)
	})
}

func (d *Daemon) slewAltAz(altRad, azRad float64) error {
	haRad, decRad := d.altAzToHADec(altRad, azRad)
	if err := d.checkSoftLimits(haRad, decRad); err != nil {
		return err
	}
	if err := d.fifo.Write(fifo.Tel, fmt.Sprintf("Alt: %v Az: %v", altRad, azRad)); err != nil {
		return fmt.Errorf("%w: %v", ErrFailed, err)
	}
	if !d.waitPointing(state.PointingSlewing, state.PointingStopped, d.timeoutFor(func(t config.Timeouts) float64 { return t.Slew })) {
		return ErrFailed
	}
	d.offset.Reset()
	return d.fifo.Write(fifo.Tel, "xdelta(0,0)")
}

// SlewHADec implements the slew_hadec RPC. ha, dec are
// in degrees.
func (d *Daemon) SlewHADec(callerAddr string, haDeg, decDeg float64) error {
	return d.command(callerAddr, func() error {
		if !d.poller.current().AxesHomed {
			return ErrTelescopeNotHomed
		}
		return d.slewHADec(haDeg*math.Pi/180, decDeg*math.Pi/180)
	})
}

func (d *Daemon) slewHADec(haRad, decRad float64) error {
	if err := d.checkSoftLimits(haRad, decRad); err != nil {
		return err
	}
	if err := d.fifo.Write(fifo.Tel, fmt.Sprintf("HA: %v Dec: %v", haRad, decRad)); err != nil {
		return fmt.Errorf("%w: %v", ErrFailed, err)
	}
	if !d.waitPointing(state.PointingSlewing, state.PointingStopped, d.timeoutFor(func(t config.Timeouts) float64 { return t.Slew })) {
		return ErrFailed
	}
	d.offset.Reset()
	return d.fifo.Write(fifo.Tel, "xdelta(0,0)")
}

// SlewRADec implements the slew_radec RPC. ra, dec are
// in degrees, J2000.
func (d *Daemon) SlewRADec(callerAddr string, raDeg, decDeg float64) error {
	return d.command(callerAddr, func() error {
		if !d.poller.current().AxesHomed {
			return ErrTelescopeNotHomed
		}
		haRad := d.raDecToHA(raDeg * math.Pi / 180)
		return d.slewHADec(haRad, decDeg*math.Pi/180)
	})
}

// TrackRADec implements the track_radec RPC: slews as
// SlewRADec, then issues the tracking command and waits for Tracking
// via Hunting.
func (d *Daemon) TrackRADec(callerAddr string, raDeg, decDeg float64) error {
	return d.command(callerAddr, func() error {
		if !d.poller.current().AxesHomed {
			return ErrTelescopeNotHomed
		}
		haRad := d.raDecToHA(raDeg * math.Pi / 180)
		decRad := decDeg * math.Pi / 180
		if err := d.checkSoftLimits(haRad, decRad); err != nil {
			return err
		}
		if err := d.fifo.Write(fifo.Tel, fmt.Sprintf("HA: %v Dec: %v", haRad, decRad)); err != nil {
			return fmt.Errorf("%w: %v", ErrFailed, err)
		}
		if !d.waitPointing(state.PointingSlewing, state.PointingStopped, d.timeoutFor(func(t config.Timeouts) float64 { return t.Slew })) {
			return ErrFailed
		}
		d.offset.Reset()
		if err := d.fifo.Write(fifo.Tel, "xdelta(0,0)"); err != nil {
			return fmt.Errorf("%w: %v", ErrFailed, err)
		}
		if err := d.fifo.Write(fifo.Tel, fmt.Sprintf("RA: %v Dec: %v Epoch: 2000", raDeg*math.Pi/180, decRad)); err != nil {
			return fmt.Errorf("%w: %v", ErrFailed, err)
		}
		if !d.waitPointing(state.PointingHunting, state.PointingTracking, d.timeoutFor(func(t config.Timeouts) float64 { return t.Slew })) {
			return ErrFailed
		}
		return nil
	})
}

// OffsetRADec implements the offset_radec RPC. deltaRa,
// deltaDec are in degrees.
func (d *Daemon) OffsetRADec(callerAddr string, deltaRaDeg, deltaDecDeg float64) error {
	return d.command(callerAddr, func() error {
		if !d.poller.current().AxesHomed {
			return ErrTelescopeNotHomed
		}
		switch d.poller.current().Pointing {
		case state.PointingTracking, state.PointingHunting:
			ra, dec := d.offset.Add(deltaRaDeg, deltaDecDeg)
			return d.fifo.Write(fifo.Tel, fmt.Sprintf("xdelta(%v,%v)", ra, dec))
		case state.PointingStopped:
			snap := d.poller.current()
			newHA := snap.HAApparent + deltaRaDeg*math.Pi/180
			newDec := snap.DecApparent + deltaDecDeg*math.Pi/180
			if err := d.slewHADec(newHA, newDec); err != nil {
				return err
			}
			d.offset.Add(deltaRaDeg, deltaDecDeg)
			return nil
		default:
			return ErrFailed
		}
	})
}

// Park implements the park RPC.
func (d *Daemon) Park(callerAddr, name string) error {
	return d.command(callerAddr, func() error {
		if !d.poller.current().AxesHomed {
			return ErrTelescopeNotHomed
		}
		pos, ok := d.cfg.ParkPositions[name]
		if !ok {
			return fmt.Errorf("%w: %q", ErrUnknownParkPosition, name)
		}
		haEnc, decEnc := pos.HAEnc, pos.DecEnc
		if pos.HasAltAz {
			haRad, decRad := d.altAzToHADec(pos.Alt*math.Pi/180, pos.Az*math.Pi/180)
			haEnc, decEnc = haRad, decRad
		}
		d.offset.Reset()
		if err := d.fifo.Write(fifo.Tel, fmt.Sprintf("park %v %v", haEnc, decEnc)); err != nil {
			return fmt.Errorf("%w: %v", ErrFailed, err)
		}
		if !d.waitPointing(state.PointingSlewing, state.PointingStopped, d.timeoutFor(func(t config.Timeouts) float64 { return t.Slew })) {
			return ErrFailed
		}
		return nil
	})
}

// TelescopeFocus implements the telescope_focus RPC,
// available only on the Full flavor.
func (d *Daemon) TelescopeFocus(callerAddr string, targetMicrons float64) error {
	return d.command(callerAddr, func() error {
		if !d.cfg.IsFull() {
			return ErrFailed
		}
		snap := d.poller.current()
		if !snap.AxesHomed || snap.Focus == state.FocusAbsent {
			return ErrTelescopeNotHomed
		}
		if abs(snap.FocusMicrons-targetMicrons) < d.cfg.FocusToleranceMicrons {
			return nil
		}
		delta := targetMicrons - snap.FocusMicrons
		if err := d.fifo.Write(fifo.Focus, fmt.Sprintf("%v", delta)); err != nil {
			return fmt.Errorf("%w: %v", ErrFailed, err)
		}
		perTick := d.timeoutFor(func(t config.Timeouts) float64 { return t.Focus })
		if !d.waitFocusReached(targetMicrons, d.cfg.FocusToleranceMicrons, perTick) {
			return ErrFailed
		}
		return nil
	})
}

// Stop implements the stop RPC. It bypasses the command
// mutex: it sets force_stopped, writes Stop to both FIFOs, then
// acquires the command mutex (waiting for any in-flight command's
// cleanup) before clearing force_stopped.
func (d *Daemon) Stop(callerAddr string) error {
	if err := d.checkControlClient(callerAddr); err != nil {
		return err
	}
	if d.poller.current().Pointing == state.PointingAbsent {
		return ErrTelescopeNotInitialized
	}
	d.gates.setForceStopped(true)
	// Tel.in and Focus.in are independent pipes to independent readers;
	// write both concurrently rather than serializing on whichever is
	// slower to drain, the same errgroup fan-out easycomm.go uses for
	// its per-socket watch loop. The Lite flavor has no Focus.in, so
	// only a double failure is fatal.
	var errTel, errFocus error
	var g errgroup.Group
	g.Go(func() error { errTel = d.fifo.Write(fifo.Tel, "Stop"); return nil })
	g.Go(func() error { errFocus = d.fifo.Write(fifo.Focus, "Stop"); return nil })
	g.Wait()
	release := d.gates.acquireCommand()
	d.gates.setForceStopped(false)
	release()
	if errTel != nil && errFocus != nil {
		return fmt.Errorf("%w: %v", ErrFailed, errTel)
	}
	return nil
}

// Ping implements the ping RPC: always succeeds.
func (d *Daemon) Ping(callerAddr string) error {
	return d.checkControlClient(callerAddr)
}

// OpenCover commands the mirror cover open, if one is configured, and
// waits up to Timeouts.Cover for the relay bank to report Open.
func (d *Daemon) OpenCover(callerAddr string) error {
	return d.command(callerAddr, func() error {
		if d.cover == nil {
			return ErrFailed
		}
		if err := d.cover.Open(); err != nil {
			return fmt.Errorf("%w: %v", ErrFailed, err)
		}
		if !d.waitCoverState(coverrelay.Open, d.timeoutFor(func(t config.Timeouts) float64 { return t.Cover })) {
			return ErrFailed
		}
		return nil
	})
}

// CloseCover commands the mirror cover closed, if one is configured,
// and waits up to Timeouts.Cover for the relay bank to report Closed.
func (d *Daemon) CloseCover(callerAddr string) error {
	return d.command(callerAddr, func() error {
		if d.cover == nil {
			return ErrFailed
		}
		if err := d.cover.Close(); err != nil {
			return fmt.Errorf("%w: %v", ErrFailed, err)
		}
		if !d.waitCoverState(coverrelay.Closed, d.timeoutFor(func(t config.Timeouts) float64 { return t.Cover })) {
			return ErrFailed
		}
		return nil
	})
}

