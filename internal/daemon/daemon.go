// Package daemon implements the talon control daemon's command
// dispatcher, telemetry poller, and status reporter.
package daemon

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/w1xm/talond/internal/config"
	"github.com/w1xm/talond/internal/coverrelay"
	"github.com/w1xm/talond/internal/fifo"
	"github.com/w1xm/talond/internal/shm"
)

// Interlock is the external security-system peer polled before
// initialize on the Full flavor. Implementations live in
// internal/security.
type Interlock interface {
	// Safe returns whether the interlock key currently reads true. A
	// non-nil error means communication with the peer failed.
	Safe(ctx context.Context, key string) (bool, error)
}

// Spawner starts the talon controller process.
// Implementations live in daemon's spawn.go (real) or tests (fake).
type Spawner interface {
	Spawn(ctx context.Context) error
}

// CoverRelay drives the mirror cover's relay bank (supplemented from
// the cover_timeout config field; see internal/coverrelay). It is
// optional: a Daemon with no cover configured leaves this nil and
// cover_open/cover_close report ErrFailed.
type CoverRelay interface {
	Open() error
	Close() error
	Stop() error
	State() coverrelay.State
}

// Daemon is the process-wide service instance: one Daemon is
// constructed at startup and owns the Snapshot, Offset, and all gates
// for the process lifetime.
type Daemon struct {
	cfg *config.Config

	gates  *gates
	poller *poller
	fifo   *fifo.Writer
	offset Offset

	interlock Interlock
	spawner   Spawner
	cover     CoverRelay
}

// New constructs a Daemon. attach is the shared-memory attach function
// (shm.Attach for production, a virtual/fake attacher for tests and
// virtual mode).
func New(cfg *config.Config, attach func() (shm.Segment, error), interlock Interlock, spawner Spawner) *Daemon {
	g := newGates()
	period := time.Duration(cfg.QueryDelaySeconds * float64(time.Second))
	d := &Daemon{
		cfg:       cfg,
		gates:     g,
		fifo:      fifo.New(cfg.CommDir),
		interlock: interlock,
		spawner:   spawner,
	}
	d.poller = newPoller(g, attach, cfg.QueryTimeoutIterations, period, cfg.CommDir, d.offset.Reset)
	return d
}

// SetCover attaches the optional mirror-cover relay. Call it once, after
// New and before Run, when the config names a cover_relay_port; a
// Daemon with no cover attached reports ErrFailed for cover_open and
// cover_close.
func (d *Daemon) SetCover(cover CoverRelay) {
	d.cover = cover
}

// Run starts the telemetry poller and blocks until ctx is canceled.
// Call this in its own goroutine from cmd/talond.
func (d *Daemon) Run(ctx context.Context) {
	d.poller.Run(ctx)
}

// checkControlClient enforces the access-control precondition common to
// every public operation except stop/ping/status.
func (d *Daemon) checkControlClient(callerAddr string) error {
	host, _, err := net.SplitHostPort(callerAddr)
	if err != nil {
		host = callerAddr
	}
	for _, allowed := range d.cfg.ControlClients {
		if allowed == host {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrInvalidControlIP, host)
}

func (d *Daemon) timeoutFor(field func(config.Timeouts) float64) time.Duration {
	return time.Duration(field(d.cfg.Timeouts) * float64(time.Second))
}
