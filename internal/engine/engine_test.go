package engine

import (
	"errors"
	"testing"
	"time"

	"github.com/erparts/avplay/internal/events"
	"github.com/erparts/avplay/internal/queue"
	"github.com/erparts/avplay/internal/render"
)

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()
	if opts.FitMode != render.FitContain {
		t.Errorf("expected FitContain, got %v", opts.FitMode)
	}
	if opts.Interpolation != render.InterpolationAuto {
		t.Errorf("expected InterpolationAuto, got %v", opts.Interpolation)
	}
	if opts.FrameQueueCapacity != queue.FrameCapacity {
		t.Errorf("expected FrameQueueCapacity = queue.FrameCapacity, got %d", opts.FrameQueueCapacity)
	}
	if opts.IgnoreAudio || opts.AvoidKeyframeOnly {
		t.Error("expected IgnoreAudio and AvoidKeyframeOnly to default false")
	}
}

func TestKindString(t *testing.T) {
	cases := map[Kind]string{
		KindInternal:     "internal",
		KindOpenFailed:   "openFailed",
		KindDecodeFailed: "decodeFailed",
		KindSurfaceLost:  "surfaceLost",
		KindClockStall:   "clockStall",
		KindSeekDeadlock: "seekDeadlock",
		KindAudioDead:    "audioDead",
		Kind(99):         "internal",
	}
	for kind, want := range cases {
		if got := kind.String(); got != want {
			t.Errorf("Kind(%d).String() = %q, want %q", kind, got, want)
		}
	}
}

func TestPlayerErrorFormatsWithAndWithoutCause(t *testing.T) {
	cause := errors.New("boom")
	withCause := newErr(KindOpenFailed, "open media", cause)
	if !errors.Is(withCause, cause) {
		t.Error("expected errors.Is to unwrap to the cause")
	}
	if got := withCause.Error(); got == "" {
		t.Fatal("expected non-empty error message")
	}

	withoutCause := newErr(KindDecodeFailed, "decoder stopped", nil)
	if withoutCause.Unwrap() != nil {
		t.Error("expected Unwrap to return nil when Cause is nil")
	}
	if got := withoutCause.Error(); got == "" {
		t.Fatal("expected non-empty error message")
	}
}

func TestEbitenSinkNilPlayerIsInert(t *testing.T) {
	s := &ebitenSink{}
	if got := s.Latency(); got != 0 {
		t.Errorf("expected zero latency with no player attached, got %v", got)
	}
	s.Pause()
	s.Resume()
	s.Flush()
	if err := s.Start(); err != nil {
		t.Errorf("Start with nil player should be a no-op, got %v", err)
	}
	if err := s.Stop(); err != nil {
		t.Errorf("Stop with nil player should be a no-op, got %v", err)
	}
	if s.IsPlaying() {
		t.Error("expected IsPlaying to report false with no player attached")
	}
}

func TestNewEventsChannelAndEmit(t *testing.T) {
	c := New(7, nil, DefaultOptions())
	c.emit(events.Event{Type: events.PlayStarted})

	select {
	case e := <-c.Events():
		if e.Token != 7 {
			t.Errorf("expected emit to stamp the context's token, got %d", e.Token)
		}
		if e.Type != events.PlayStarted {
			t.Errorf("expected PlayStarted, got %v", e.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("expected an event on the channel")
	}
}

func TestEmitSuppressedWhileDisposeInProgress(t *testing.T) {
	c := New(1, nil, DefaultOptions())
	c.fsm.BeginDispose()
	c.emit(events.Event{Type: events.PlayStarted})

	select {
	case e := <-c.Events():
		t.Fatalf("expected no event while dispose is in progress, got %v", e)
	default:
	}
}

func TestEmitDropsRatherThanBlocksWhenChannelFull(t *testing.T) {
	c := New(2, nil, DefaultOptions())
	for i := 0; i < cap(c.events)+1; i++ {
		c.emit(events.Event{Type: events.Position})
	}
	// the extra emit beyond capacity must not have blocked; draining should
	// yield exactly cap(c.events) queued events.
	drained := 0
	for {
		select {
		case <-c.events:
			drained++
			continue
		default:
		}
		break
	}
	if drained != cap(c.events) {
		t.Errorf("expected %d queued events, got %d", cap(c.events), drained)
	}
}

func TestOnFatalErrorTransitionsFSMAndEmitsError(t *testing.T) {
	c := New(3, nil, DefaultOptions())
	if err := c.fsm.Prepare(); err != nil {
		t.Fatalf("unexpected error from Prepare: %v", err)
	}
	c.fsm.MarkOpened()
	c.onFatalError(errors.New("decoder exploded"))

	select {
	case e := <-c.Events():
		if e.Type != events.Error {
			t.Errorf("expected an Error event, got %v", e.Type)
		}
		if e.Reason != KindDecodeFailed.String() {
			t.Errorf("expected reason %q, got %q", KindDecodeFailed.String(), e.Reason)
		}
	case <-time.After(time.Second):
		t.Fatal("expected an Error event")
	}
}

func TestPendingResumeToPlayingReflectsStoredFlag(t *testing.T) {
	c := New(4, nil, DefaultOptions())
	if c.pendingResumeToPlaying() {
		t.Error("expected false before any Seek call stores a value")
	}
	c.wasPlayingBeforeSeek.Store(true)
	if !c.pendingResumeToPlaying() {
		t.Error("expected true after storing true")
	}
}
