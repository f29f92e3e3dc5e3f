package watchdog

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestStallWatchdogFiresWhenClockFrozen(t *testing.T) {
	var fired atomic.Bool
	var now atomic.Int64
	now.Store(int64(time.Second))
	w := NewStallWatchdog(
		func() time.Duration { return time.Duration(now.Load()) },
		func() bool { return true },
		func() bool { return false },
		func() { fired.Store(true) },
	)

	w.check() // establishes baseline sample
	if fired.Load() {
		t.Fatal("should not fire on the first sample")
	}

	w.lastSeenWall = time.Now().Add(-StallDeadline - time.Millisecond)
	w.check()
	if !fired.Load() {
		t.Fatal("expected stall watchdog to fire once the deadline elapses with no advancement")
	}
}

func TestStallWatchdogDoesNotFireWhenClockAdvances(t *testing.T) {
	var fired atomic.Bool
	var now atomic.Int64
	now.Store(0)
	w := NewStallWatchdog(
		func() time.Duration { return time.Duration(now.Load()) },
		func() bool { return true },
		func() bool { return false },
		func() { fired.Store(true) },
	)
	w.check()
	now.Store(int64(time.Millisecond))
	w.lastSeenWall = time.Now().Add(-StallDeadline - time.Millisecond)
	w.check()
	if fired.Load() {
		t.Fatal("should not fire when the clock advanced between checks")
	}
}

func TestStallWatchdogSkipsWhenNotEligible(t *testing.T) {
	var fired atomic.Bool
	w := NewStallWatchdog(
		func() time.Duration { return 0 },
		func() bool { return false },
		func() bool { return false },
		func() { fired.Store(true) },
	)
	w.lastSeenWall = time.Now().Add(-time.Hour)
	w.haveSample = true
	w.check()
	if fired.Load() {
		t.Fatal("should not fire while not eligible (not playing / no first frame / eof)")
	}
}

func TestSeekWatchdogArmDisarm(t *testing.T) {
	var fired atomic.Bool
	w := NewSeekWatchdog(func() { fired.Store(true) })
	stop := make(chan struct{})
	defer close(stop)
	go w.Run(stop)

	w.Arm()
	w.Disarm()
	time.Sleep(SeekDeadline + 100*time.Millisecond)
	if fired.Load() {
		t.Fatal("disarmed watchdog should not fire")
	}
}

func TestSeekWatchdogFiresOnTimeout(t *testing.T) {
	var fired atomic.Bool
	w := NewSeekWatchdog(func() { fired.Store(true) })
	w.deadline.Store(time.Now().Add(-time.Millisecond).UnixNano())
	stop := make(chan struct{})
	defer close(stop)
	go w.Run(stop)
	time.Sleep(100 * time.Millisecond)
	if !fired.Load() {
		t.Fatal("expected seek watchdog to fire for an already-elapsed deadline")
	}
}
