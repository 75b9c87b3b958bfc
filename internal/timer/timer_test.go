package timer

import (
	"testing"
	"time"
)

func TestCountdownExpiresAndStops(t *testing.T) {
	tm := Down(2 * time.Second)
	tm.Start()

	if tm.Advance(time.Second) {
		t.Fatalf("expired after 1s of 2s")
	}
	if !tm.Advance(1500 * time.Millisecond) {
		t.Fatalf("want expiry once value crosses zero")
	}
	if tm.Value != 0 || tm.Running {
		t.Fatalf("expired timer: want value=0 running=false, got %v %v", tm.Value, tm.Running)
	}
	if tm.Advance(time.Second) {
		t.Fatalf("a stopped timer must not expire twice")
	}
}

func TestCountUpNeverExpires(t *testing.T) {
	tm := Up()
	tm.Start()
	for i := 0; i < 10; i++ {
		if tm.Advance(time.Minute) {
			t.Fatalf("count-up timer reported expiry")
		}
	}
	if tm.Value != 10*time.Minute {
		t.Fatalf("want 10m, got %v", tm.Value)
	}
}

func TestStoppedTimerIgnoresTicks(t *testing.T) {
	tm := Down(time.Second)
	tm.Advance(500 * time.Millisecond)
	if tm.Millis() != 1000 {
		t.Fatalf("stopped timer moved: %d", tm.Millis())
	}

	tm.Start()
	tm.Advance(250 * time.Millisecond)
	tm.Stop()
	tm.Advance(250 * time.Millisecond)
	if tm.Millis() != 750 {
		t.Fatalf("want 750ms after pause, got %d", tm.Millis())
	}
}
