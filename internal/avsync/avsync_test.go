package avsync

import (
	"testing"
	"time"

	"github.com/erparts/avplay/internal/clock"
)

func newTestState(hasAudio bool) *State {
	a := &clock.AudioClock{}
	v := &clock.VideoClock{}
	return NewForPrepare(hasAudio, a, v)
}

func TestNewForPrepareNoAudioMastersVideo(t *testing.T) {
	s := newTestState(false)
	if s.Master() != MasterVideo {
		t.Fatalf("expected video master with no audio stream, got %v", s.Master())
	}
}

func TestNewForPrepareWithAudioMastersAudio(t *testing.T) {
	s := newTestState(true)
	if s.Master() != MasterAudio {
		t.Fatalf("expected audio master when audio stream exists, got %v", s.Master())
	}
}

func TestForceVideoAfterSeekThenResolve(t *testing.T) {
	s := newTestState(true)
	s.ForceVideoAfterSeek()
	if s.Master() != MasterVideo {
		t.Fatalf("expected forced video master after seek, got %v", s.Master())
	}
	s.ResolvePostSeekMaster(true)
	if s.Master() != MasterAudio {
		t.Fatalf("expected master to revert to audio once healthy, got %v", s.Master())
	}
}

func TestClassifyWithinThresholdRenders(t *testing.T) {
	s := newTestState(true)
	s.Audio.UpdateAfterWrite(time.Second, 20*time.Millisecond, 0)
	action := s.Classify(time.Second+10*time.Millisecond, true, 33*time.Millisecond)
	if action != ActionRender {
		t.Fatalf("expected render within threshold, got %v", action)
	}
}

func TestClassifyAheadOfAudioDrops(t *testing.T) {
	s := newTestState(true)
	s.Audio.UpdateAfterWrite(time.Second, 20*time.Millisecond, 0)
	action := s.Classify(time.Second+100*time.Millisecond, true, 33*time.Millisecond)
	if action != ActionDrop {
		t.Fatalf("expected drop when video far ahead, got %v", action)
	}
}

func TestClassifyBehindAudioHolds(t *testing.T) {
	s := newTestState(true)
	s.Audio.UpdateAfterWrite(time.Second, 20*time.Millisecond, 0)
	action := s.Classify(time.Second-100*time.Millisecond, true, 33*time.Millisecond)
	if action != ActionHold {
		t.Fatalf("expected hold when video behind audio, got %v", action)
	}
}

func TestClassifyBadPTSDrops(t *testing.T) {
	s := newTestState(true)
	s.Audio.UpdateAfterWrite(time.Second, 0, 0)
	action := s.Classify(0, false, 33*time.Millisecond)
	if action != ActionDrop {
		t.Fatalf("expected drop on missing pts, got %v", action)
	}
}

func TestClassifyPTSRegressionDrops(t *testing.T) {
	s := newTestState(true)
	s.Audio.UpdateAfterWrite(time.Second, 0, 0)
	s.Classify(time.Second, true, 33*time.Millisecond)
	action := s.Classify(500*time.Millisecond, true, 33*time.Millisecond)
	if action != ActionDrop {
		t.Fatalf("expected drop on pts regression, got %v", action)
	}
}

func TestClassifyHardResyncOnDeepDrift(t *testing.T) {
	s := newTestState(true)
	s.Audio.UpdateAfterWrite(2*time.Second, 0, 0)
	action := s.Classify(1*time.Second, true, 33*time.Millisecond)
	if action != ActionHardResync {
		t.Fatalf("expected hard resync on >800ms drift, got %v", action)
	}
	if !s.Recovering() {
		t.Fatal("expected recovering to be set after hard resync")
	}
	s.ClearRecovering()
	if s.Recovering() {
		t.Fatal("expected recovering to clear")
	}
}

func TestClassifyForceRenderAfterProlongedHold(t *testing.T) {
	s := newTestState(true)
	s.Audio.UpdateAfterWrite(time.Second, 0, 0)
	// first hold marks holdStartedAt
	first := s.Classify(time.Second-100*time.Millisecond, true, 33*time.Millisecond)
	if first != ActionHold {
		t.Fatalf("expected initial hold, got %v", first)
	}
	s.holdStartedAt = time.Now().Add(-600 * time.Millisecond)
	second := s.Classify(time.Second-100*time.Millisecond, true, 33*time.Millisecond)
	if second != ActionRender {
		t.Fatalf("expected forced render after prolonged hold, got %v", second)
	}
}
