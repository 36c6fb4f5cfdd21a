package shm

import (
	"math"
	"testing"

	"github.com/w1xm/talond/internal/state"
)

func readTelemetry(t *testing.T, seg *VirtualSegment) Telemetry {
	t.Helper()
	tel, err := NewReader(seg).ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	return tel
}

func TestAxesHomedRequiresBothAxes(t *testing.T) {
	seg := NewVirtualSegment()
	seg.WriteUint16(Offsets.RAFlags, 0x200)
	seg.WriteUint16(Offsets.DecFlags, 0)
	tel := readTelemetry(t, seg)
	if AxesHomed(tel) {
		t.Fatal("AxesHomed = true, want false (dec axis not homed)")
	}
	seg.WriteUint16(Offsets.DecFlags, 0x200)
	tel = readTelemetry(t, seg)
	if !AxesHomed(tel) {
		t.Fatal("AxesHomed = false, want true (focus absent, both axes homed)")
	}
}

func TestAxesHomedWithFocusPresent(t *testing.T) {
	seg := NewVirtualSegment()
	seg.WriteUint16(Offsets.RAFlags, 0x200)
	seg.WriteUint16(Offsets.DecFlags, 0x200)
	seg.WriteUint16(Offsets.FocusFlags, 0x01) // present, not ready
	tel := readTelemetry(t, seg)
	if AxesHomed(tel) {
		t.Fatal("AxesHomed = true, want false (focus present but not ready)")
	}
	seg.WriteUint16(Offsets.FocusFlags, 0x01|focusReady)
	tel = readTelemetry(t, seg)
	if !AxesHomed(tel) {
		t.Fatal("AxesHomed = false, want true (focus present and ready)")
	}
}

func TestFocusStateDecodingPriority(t *testing.T) {
	for _, test := range []struct {
		name  string
		flags uint16
		want  state.Focus
	}{
		{"absent", 0, state.FocusAbsent},
		{"not homed", 0x01, state.FocusNotHomed},
		{"homing", 0x01 | focusHoming, state.FocusHoming},
		{"homing takes priority over limiting", 0x01 | focusHoming | focusLimit, state.FocusHoming},
		{"limiting", 0x01 | focusLimit, state.FocusLimiting},
		{"limiting takes priority over ready", 0x01 | focusLimit | focusReady, state.FocusLimiting},
		{"ready", 0x01 | focusReady, state.FocusReady},
	} {
		seg := NewVirtualSegment()
		seg.WriteUint16(Offsets.FocusFlags, test.flags)
		tel := readTelemetry(t, seg)
		if got := tel.FocusState(); got != test.want {
			t.Errorf("%s: FocusState() = %v, want %v", test.name, got, test.want)
		}
	}
}

func TestFocusMicrons(t *testing.T) {
	seg := NewVirtualSegment()
	seg.WriteInt32(Offsets.FocusStep, 1000)
	seg.WriteDouble(Offsets.FocusCPos, 2.0)
	seg.WriteDouble(Offsets.FocusDF, 10.0)
	tel := readTelemetry(t, seg)
	want := 1000.0 * 2.0 / (2 * math.Pi * 10.0)
	if got := tel.FocusMicrons(); math.Abs(got-want) > 1e-9 {
		t.Errorf("FocusMicrons() = %v, want %v", got, want)
	}
}

func TestFocusMicronsZeroDF(t *testing.T) {
	seg := NewVirtualSegment()
	seg.WriteDouble(Offsets.FocusDF, 0)
	tel := readTelemetry(t, seg)
	if got := tel.FocusMicrons(); got != 0 {
		t.Errorf("FocusMicrons() = %v, want 0 with df=0", got)
	}
}

func TestPointingStateValueClampsUnknown(t *testing.T) {
	seg := NewVirtualSegment()
	seg.WriteInt32(Offsets.PointingState, 999)
	tel := readTelemetry(t, seg)
	if got := tel.PointingStateValue(); got != state.PointingAbsent {
		t.Errorf("PointingStateValue() = %v, want PointingAbsent for out-of-range value", got)
	}
}

func TestClampAngle(t *testing.T) {
	if got := ClampAngle(math.NaN()); got != 0 {
		t.Errorf("ClampAngle(NaN) = %v, want 0", got)
	}
	if got := ClampAngle(1.5); got != 1.5 {
		t.Errorf("ClampAngle(1.5) = %v, want 1.5", got)
	}
}
