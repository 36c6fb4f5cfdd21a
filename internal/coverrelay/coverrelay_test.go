package coverrelay

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goburrow/modbus"
)

// fakeModbusClient is an in-memory stand-in for the real Modbus RTU
// client, embedding the nil interface so any method pollOnce/writeCoil
// don't use is never called in these tests.
type fakeModbusClient struct {
	modbus.Client
	discreteInputs []byte
	discreteErr    error
	coils          map[uint16]uint16
}

func (f *fakeModbusClient) ReadDiscreteInputs(address, quantity uint16) ([]byte, error) {
	return f.discreteInputs, f.discreteErr
}

func (f *fakeModbusClient) WriteSingleCoil(address, value uint16) ([]byte, error) {
	if f.coils == nil {
		f.coils = map[uint16]uint16{}
	}
	f.coils[address] = value
	return nil, nil
}

func TestPollOnceDecodesOpenClosedMoving(t *testing.T) {
	tests := []struct {
		name string
		bits byte
		want State
	}{
		{"open", 0x1, Open},
		{"closed", 0x2, Closed},
		{"neither", 0x0, Moving},
		{"both", 0x3, Moving},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			fc := &fakeModbusClient{discreteInputs: []byte{tc.bits}}
			r := &Relay{client: fc}
			if err := r.pollOnce(); err != nil {
				t.Fatalf("pollOnce: %v", err)
			}
			if got := r.State(); got != tc.want {
				t.Fatalf("State() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestPollOnceInvokesCallbackOnlyOnChange(t *testing.T) {
	fc := &fakeModbusClient{discreteInputs: []byte{0x1}} // open
	var calls []State
	r := &Relay{client: fc, callback: func(s State) { calls = append(calls, s) }}
	for i := 0; i < 2; i++ {
		if err := r.pollOnce(); err != nil {
			t.Fatalf("pollOnce: %v", err)
		}
	}
	fc.discreteInputs = []byte{0x2} // closed
	if err := r.pollOnce(); err != nil {
		t.Fatalf("pollOnce: %v", err)
	}
	if len(calls) != 2 || calls[0] != Open || calls[1] != Closed {
		t.Fatalf("callback calls = %v, want [Open Closed] (no call on the repeated Open poll)", calls)
	}
}

func TestPollOnceReturnsTransportError(t *testing.T) {
	fc := &fakeModbusClient{discreteErr: errors.New("serial: timeout")}
	r := &Relay{client: fc}
	if err := r.pollOnce(); err == nil {
		t.Fatal("pollOnce: want an error when the transport read fails")
	}
}

func TestWatchStopsOnContextCancel(t *testing.T) {
	fc := &fakeModbusClient{discreteInputs: []byte{0x1}}
	r := &Relay{handler: modbus.NewRTUClientHandler("/dev/null"), client: fc}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.watch(ctx)
		close(done)
	}()
	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("watch did not return after its context was canceled")
	}
}

func TestOpenCloseStopWriteExpectedCoils(t *testing.T) {
	fc := &fakeModbusClient{}
	r := &Relay{client: fc}
	if err := r.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := r.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if fc.coils[0] != 0 || fc.coils[1] != 0 {
		t.Fatalf("coils after Stop = %v, want both de-energized", fc.coils)
	}
}
