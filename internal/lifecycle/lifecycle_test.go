package lifecycle

import "testing"

func TestPrepareRejectedWhileDisposeInProgress(t *testing.T) {
	f := New()
	if err := f.Prepare(); err != nil {
		t.Fatalf("first prepare should succeed, got %v", err)
	}
	f.BeginDispose()
	if err := f.Prepare(); err != ErrDisposeInProgress {
		t.Fatalf("expected ErrDisposeInProgress, got %v", err)
	}
}

func TestPrepareRejectedUntilDisposeCompletes(t *testing.T) {
	f := New()
	_ = f.Prepare()
	f.MarkOpened()
	if err := f.Prepare(); err != ErrNotDisposed {
		t.Fatalf("expected ErrNotDisposed while still prepared, got %v", err)
	}
	f.BeginDispose()
	f.CompleteDispose()
	if err := f.Prepare(); err != nil {
		t.Fatalf("expected prepare to succeed after full dispose cycle, got %v", err)
	}
}

func TestPreparedEmittedOnlyOnce(t *testing.T) {
	f := New()
	if f.PreparedEmitted() {
		t.Fatal("expected first call to report not-yet-emitted")
	}
	if !f.PreparedEmitted() {
		t.Fatal("expected second call to report already-emitted")
	}
}

func TestPlayDeferredUntilGateOpens(t *testing.T) {
	f := New()
	_ = f.Prepare()
	f.MarkOpened()
	if err := f.Play(); err != ErrGateNotOpen {
		t.Fatalf("expected ErrGateNotOpen before gate opens, got %v", err)
	}
	if autoPlay := f.OpenAVSyncGate(); !autoPlay {
		t.Fatal("expected pending play to trigger auto-play on gate open")
	}
}

func TestOpenGateWithoutPendingPlayDoesNotAutoPlay(t *testing.T) {
	f := New()
	_ = f.Prepare()
	f.MarkOpened()
	if autoPlay := f.OpenAVSyncGate(); autoPlay {
		t.Fatal("expected no auto-play without a prior pending play()")
	}
}

func TestPlayPauseRoundTrip(t *testing.T) {
	f := New()
	_ = f.Prepare()
	f.MarkOpened()
	f.OpenAVSyncGate()
	if err := f.Play(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.State() != Playing {
		t.Fatalf("expected Playing, got %v", f.State())
	}
	f.Pause()
	if f.State() != Paused {
		t.Fatalf("expected Paused, got %v", f.State())
	}
}

func TestPauseNoopWhenNotPlaying(t *testing.T) {
	f := New()
	_ = f.Prepare()
	f.MarkOpened()
	f.Pause()
	if f.State() != Ready {
		t.Fatalf("expected pause on a non-playing state to be a no-op, got %v", f.State())
	}
}

func TestSeekRoundTrip(t *testing.T) {
	f := New()
	_ = f.Prepare()
	f.MarkOpened()
	f.OpenAVSyncGate()
	_ = f.Play()

	f.BeginSeek()
	if f.State() != Seeking || !f.SeekInProgress() {
		t.Fatalf("expected Seeking state with in-progress flag, got %v / %v", f.State(), f.SeekInProgress())
	}
	f.CompleteSeek(true)
	if f.State() != Playing || f.SeekInProgress() {
		t.Fatalf("expected resume to Playing with seek cleared, got %v / %v", f.State(), f.SeekInProgress())
	}
}

func TestSeekResumesToPausedWhenRequested(t *testing.T) {
	f := New()
	_ = f.Prepare()
	f.MarkOpened()
	f.BeginSeek()
	f.CompleteSeek(false)
	if f.State() != Paused {
		t.Fatalf("expected resume to Paused, got %v", f.State())
	}
}

func TestFirstFrameEmittedOnlyOnce(t *testing.T) {
	f := New()
	if !f.MarkFirstFrame() {
		t.Fatal("expected first call to report first-time")
	}
	if f.MarkFirstFrame() {
		t.Fatal("expected second call to report already-shown")
	}
	if !f.FirstFrameShown() {
		t.Fatal("expected FirstFrameShown to be true after MarkFirstFrame")
	}
}

func TestEOFReportsPlaybackCompletedOnce(t *testing.T) {
	f := New()
	_ = f.Prepare()
	f.MarkOpened()
	f.OpenAVSyncGate()
	_ = f.Play()

	if !f.OnEOF() {
		t.Fatal("expected first EOF to report shouldEmit=true")
	}
	if f.State() != Eof {
		t.Fatalf("expected Eof state, got %v", f.State())
	}
	if f.OnEOF() {
		t.Fatal("expected second EOF to report shouldEmit=false (already completed)")
	}
}

func TestErrorReportsWhetherWasPlaying(t *testing.T) {
	f := New()
	_ = f.Prepare()
	f.MarkOpened()
	f.OpenAVSyncGate()
	_ = f.Play()

	if wasPlaying := f.OnError(); !wasPlaying {
		t.Fatal("expected OnError to report wasPlaying=true")
	}
	if f.State() != Error {
		t.Fatalf("expected Error state, got %v", f.State())
	}
}

func TestErrorFromPausedReportsNotPlaying(t *testing.T) {
	f := New()
	_ = f.Prepare()
	f.MarkOpened()
	if wasPlaying := f.OnError(); wasPlaying {
		t.Fatal("expected OnError from a non-Playing state to report wasPlaying=false")
	}
}

func TestAppBackgroundForegroundTogglesMode(t *testing.T) {
	f := New()
	if f.Mode() != ModeAV {
		t.Fatalf("expected initial mode AV, got %v", f.Mode())
	}
	f.OnAppBackground()
	if f.Mode() != ModeAudioOnly {
		t.Fatalf("expected AudioOnly after background, got %v", f.Mode())
	}
	f.OnAppForeground()
	if f.Mode() != ModeAV {
		t.Fatalf("expected AV after foreground, got %v", f.Mode())
	}
}

func TestFrameStepModeRoundTrip(t *testing.T) {
	f := New()
	f.EnterFrameStep()
	if f.Mode() != ModeFrameStep {
		t.Fatalf("expected FrameStep mode, got %v", f.Mode())
	}
	f.ExitFrameStep()
	if f.Mode() != ModeAV {
		t.Fatalf("expected AV after exiting FrameStep, got %v", f.Mode())
	}
}

func TestDisposeInProgressBlocksUntilComplete(t *testing.T) {
	f := New()
	_ = f.Prepare()
	f.MarkOpened()
	f.OpenAVSyncGate()

	f.BeginDispose()
	if !f.DisposeInProgress() {
		t.Fatal("expected DisposeInProgress to report true")
	}
	if f.AVSyncGateOpen() {
		t.Fatal("expected BeginDispose to close the AVSync gate")
	}
	f.CompleteDispose()
	if f.DisposeInProgress() {
		t.Fatal("expected DisposeInProgress to clear after CompleteDispose")
	}
	if f.State() != Disposed {
		t.Fatalf("expected Disposed state, got %v", f.State())
	}
}

func TestDecodeStartedEmittedOnlyOnce(t *testing.T) {
	f := New()
	if !f.MarkDecodeStarted() {
		t.Fatal("expected first call to report first-time")
	}
	if f.MarkDecodeStarted() {
		t.Fatal("expected second call to report already-started")
	}
}
