package timer

import "time"

// Timer is a server-side stopwatch. It never reads the wall clock: the owner
// advances it with Advance on every tick, so tests drive time explicitly.
type Timer struct {
	Value     time.Duration
	CountDown bool
	Running   bool
}

// Down returns a stopped countdown starting at from.
func Down(from time.Duration) Timer {
	return Timer{Value: from, CountDown: true}
}

// Up returns a stopped timer counting up from zero.
func Up() Timer {
	return Timer{}
}

func (t *Timer) Start() { t.Running = true }

func (t *Timer) Stop() { t.Running = false }

// Advance moves a running timer by step and reports whether a countdown just
// reached zero. An expired countdown stops itself.
func (t *Timer) Advance(step time.Duration) bool {
	if !t.Running || step <= 0 {
		return false
	}
	if !t.CountDown {
		t.Value += step
		return false
	}
	t.Value -= step
	if t.Value <= 0 {
		t.Value = 0
		t.Running = false
		return true
	}
	return false
}

func (t Timer) Millis() int64 { return t.Value.Milliseconds() }
