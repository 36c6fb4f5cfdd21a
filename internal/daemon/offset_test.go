package daemon

import "testing"

func TestOffsetAccumulates(t *testing.T) {
	var o Offset
	if ra, dec := o.Get(); ra != 0 || dec != 0 {
		t.Fatalf("initial Get() = (%v, %v), want (0, 0)", ra, dec)
	}
	ra, dec := o.Add(0.01, -0.02)
	if ra != 0.01 || dec != -0.02 {
		t.Fatalf("Add() = (%v, %v), want (0.01, -0.02)", ra, dec)
	}
	ra, dec = o.Add(0.01, 0.03)
	if ra != 0.02 || dec != 0.01 {
		t.Fatalf("Add() second call = (%v, %v), want (0.02, 0.01)", ra, dec)
	}
}

func TestOffsetReset(t *testing.T) {
	var o Offset
	o.Add(1, 1)
	o.Reset()
	if ra, dec := o.Get(); ra != 0 || dec != 0 {
		t.Fatalf("Get() after Reset = (%v, %v), want (0, 0)", ra, dec)
	}
}
