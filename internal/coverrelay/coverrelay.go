// Package coverrelay drives the mirror cover's relay bank over Modbus
// RTU. It is adapted from sequencer/sequencer.go's reconnect-loop
// Modbus client in the reference corpus: same connection-supervision
// shape, repurposed from an antenna band sequencer to a single cover
// actuator with an open/closed/moving status register.
package coverrelay

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/goburrow/modbus"
)

// State is the cover's reported position.
type State int

const (
	Unknown State = iota
	Open
	Closed
	Moving
)

func (s State) String() string {
	switch s {
	case Open:
		return "OPEN"
	case Closed:
		return "CLOSED"
	case Moving:
		return "MOVING"
	default:
		return "UNKNOWN"
	}
}

// StatusCallback is invoked whenever the polled cover state changes.
type StatusCallback func(State)

// Relay supervises a Modbus RTU connection to the cover actuator relay
// bank and exposes Open/Close/Stop controls plus a polled state.
type Relay struct {
	handler  *modbus.RTUClientHandler
	client   modbus.Client
	callback StatusCallback

	mu    sync.Mutex
	state State
}

// Connect starts the reconnect loop against a Modbus RTU serial port.
func Connect(ctx context.Context, port string, baud int, callback StatusCallback) (*Relay, error) {
	handler := modbus.NewRTUClientHandler(port)
	handler.BaudRate = baud
	handler.DataBits = 8
	handler.Parity = "N"
	handler.StopBits = 1
	handler.Timeout = time.Second
	handler.SlaveId = 1
	r := &Relay{handler: handler, client: modbus.NewClient(handler), callback: callback}
	go r.reconnectLoop(ctx, port)
	return r, nil
}

func (r *Relay) reconnectLoop(ctx context.Context, port string) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Second):
		}
		if err := r.handler.Connect(); err != nil {
			log.Printf("coverrelay: opening %q: %v", port, err)
			continue
		}
		r.watch(ctx)
	}
}

func (r *Relay) watch(ctx context.Context) {
	defer r.handler.Close()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if err := r.pollOnce(); err != nil {
			log.Printf("coverrelay: polling: %v", err)
			return
		}
		time.Sleep(200 * time.Millisecond)
	}
}

func (r *Relay) pollOnce() error {
	results, err := r.client.ReadDiscreteInputs(0, 2)
	if err != nil {
		return err
	}
	open := results[0]&1 != 0
	closed := results[0]&2 != 0
	var s State
	switch {
	case open && !closed:
		s = Open
	case closed && !open:
		s = Closed
	default:
		s = Moving
	}
	r.mu.Lock()
	changed := s != r.state
	r.state = s
	r.mu.Unlock()
	if changed && r.callback != nil {
		r.callback(s)
	}
	return nil
}

// State returns the most recently polled cover state.
func (r *Relay) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Relay) writeCoil(coil int, value bool) error {
	var v uint16
	if value {
		v = 0xFF00
	}
	_, err := r.client.WriteSingleCoil(uint16(coil), v)
	return err
}

// Open commands the cover open.
func (r *Relay) Open() error { return r.writeCoil(0, true) }

// Close commands the cover closed.
func (r *Relay) Close() error { return r.writeCoil(1, true) }

// Stop de-energizes both relays.
func (r *Relay) Stop() error {
	if err := r.writeCoil(0, false); err != nil {
		return err
	}
	return r.writeCoil(1, false)
}
