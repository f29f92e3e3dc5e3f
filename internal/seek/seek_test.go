package seek

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/erparts/avplay/internal/clock"
	"github.com/erparts/avplay/internal/queue"
)

type fakeSeeker struct{ calls []time.Duration }

func (f *fakeSeeker) SeekBackward(target time.Duration) error {
	f.calls = append(f.calls, target)
	return nil
}

func newTestController(t *testing.T) (*Controller, *atomic.Uint64, *fakeSeeker) {
	t.Helper()
	var epoch atomic.Uint64
	vp := queue.NewPacketQueue()
	ap := queue.NewPacketQueue()
	vf := queue.NewFrameQueue()
	af := queue.NewFrameQueue()
	ac := &clock.AudioClock{}
	vc := &clock.VideoClock{}
	fs := &fakeSeeker{}
	var closed, opened, paused, resumed bool
	c := New(&epoch, vp, ap, vf, af, ac, vc, fs,
		func() { paused = true }, func() { resumed = true },
		func() { closed = true }, func() { opened = true }, false)
	_ = closed
	_ = opened
	_ = paused
	_ = resumed
	return c, &epoch, fs
}

func TestSeekBumpsEpoch(t *testing.T) {
	c, epoch, _ := newTestController(t)
	before := epoch.Load()
	c.Request(2*time.Second, 10*time.Second, true)
	if epoch.Load() != before+1 {
		t.Fatalf("expected epoch to bump by 1, got %d -> %d", before, epoch.Load())
	}
	if !c.Current().InProgress {
		t.Fatal("expected seek to be in progress")
	}
}

func TestSeekClampsToDuration(t *testing.T) {
	c, _, fs := newTestController(t)
	c.Request(100*time.Second, 10*time.Second, true)
	if len(fs.calls) != 1 || fs.calls[0] != 10*time.Second {
		t.Fatalf("expected clamp to duration, got calls=%v", fs.calls)
	}
}

func TestSeekNegativeClampedToZero(t *testing.T) {
	c, _, fs := newTestController(t)
	c.Request(-5*time.Second, 10*time.Second, true)
	if len(fs.calls) != 1 || fs.calls[0] != 0 {
		t.Fatalf("expected clamp to 0, got calls=%v", fs.calls)
	}
}

func TestRapidScrubCoalescesPending(t *testing.T) {
	c, epoch, fs := newTestController(t)
	c.Request(1*time.Second, 10*time.Second, true)
	firstEpoch := epoch.Load()
	c.Request(2*time.Second, 10*time.Second, true)
	c.Request(3*time.Second, 10*time.Second, true)

	if epoch.Load() != firstEpoch {
		t.Fatalf("subsequent seeks while in-progress should not bump epoch yet, got %d -> %d", firstEpoch, epoch.Load())
	}
	if len(fs.calls) != 1 {
		t.Fatalf("expected only the first seek to reach the container, got %v", fs.calls)
	}

	c.Complete()
	if len(fs.calls) != 2 || fs.calls[1] != 3*time.Second {
		t.Fatalf("expected pending seek to coalesce to final target 3s, got %v", fs.calls)
	}
}

func TestDropVideoFrameBeforeTarget(t *testing.T) {
	c, _, _ := newTestController(t)
	c.Request(2*time.Second, 10*time.Second, true)
	if !c.DropVideoFrame(1 * time.Second) {
		t.Fatal("expected frame before target to be dropped")
	}
	if c.DropVideoFrame(2*time.Second + 10*time.Millisecond) {
		t.Fatal("expected frame at/after target to be kept")
	}
}

func TestAVIContainerForcesBackwardSeekOnly(t *testing.T) {
	var epoch atomic.Uint64
	vp := queue.NewPacketQueue()
	vf := queue.NewFrameQueue()
	ac := &clock.AudioClock{}
	vc := &clock.VideoClock{}
	fs := &fakeSeeker{}
	c := New(&epoch, vp, nil, vf, nil, ac, vc, fs, nil, nil, nil, nil, true)
	c.Request(2*time.Second, 10*time.Second, true)
	if c.Current().Exact {
		t.Fatal("expected exact mode to be forced off for AVI/FLV containers")
	}
	if c.DropVideoFrame(0) {
		t.Fatal("expected no phase-2 dropping when exact seeking is disabled")
	}
}

func TestCompleteClearsInProgress(t *testing.T) {
	c, _, _ := newTestController(t)
	c.Request(1*time.Second, 10*time.Second, true)
	c.Complete()
	if c.Current().InProgress {
		t.Fatal("expected seek to no longer be in progress after Complete")
	}
}
