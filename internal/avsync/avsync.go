// Package avsync implements the A/V-sync core (C4): master clock
// selection and the drift classification table from spec.md §4.4. It is
// grounded on original_source/.../video_sync.c's decision shape — the
// teacher (erparts-go-avebi) has no audio/video drift correction at all,
// each controller runs its own independent reference clock.
package avsync

import (
	"sync"
	"time"

	"github.com/erparts/avplay/internal/clock"
)

// Master identifies which clock the render scheduler should treat as
// authoritative.
type Master int

const (
	MasterAudio Master = iota
	MasterVideo
)

func (m Master) String() string {
	if m == MasterAudio {
		return "audio"
	}
	return "video"
}

// Action is the per-frame decision the render scheduler must act on.
type Action int

const (
	ActionRender Action = iota
	ActionDrop
	ActionHold
	ActionHardResync
)

const (
	// baseDriftThreshold is the 40ms drift tolerance band (spec.md §4.4);
	// the scheduler widens it to max(this, frame_duration).
	baseDriftThreshold = 40 * time.Millisecond
	// hardResyncDriftThreshold triggers immediate hard resync regardless
	// of consecutive-drop count.
	hardResyncDriftThreshold = 800 * time.Millisecond
	// persistentHoldDriftThreshold is the "persistently behind" drift that
	// counts toward aggressive-drop + hard-resync escalation.
	persistentHoldDriftThreshold = -150 * time.Millisecond
	// maxPTSJump bounds a plausible PTS delta; anything larger is treated
	// as a broken timestamp and dropped.
	maxPTSJump = time.Second
	// forceRenderHoldDuration is the deadlock guard: continuous holding
	// for longer than this forces a render regardless of drift.
	forceRenderHoldDuration = 500 * time.Millisecond
	// consecutiveDropsForHardResync is the escalation threshold (§4.4).
	consecutiveDropsForHardResync = 5
)

// State tracks the mutable A/V-sync state (spec.md §3's AvSyncState) plus
// the bookkeeping needed to implement hysteresis (consecutive drops,
// continuous hold duration, video-first-after-seek). Classify runs on the
// render thread while SetAudioHealthy/ResolvePostSeekMaster/
// ForceVideoAfterSeek are called from engine goroutines and Master/
// MasterClockNow are read from the host thread via GetPosition, so every
// field below is guarded by mutex (spec.md §5: per-field mutex guarding,
// same discipline as internal/clock.Clock).
type State struct {
	Audio *clock.AudioClock
	Video *clock.VideoClock

	mutex sync.Mutex

	master       Master
	masterForced bool // true immediately after a seek, until first post-seek frame
	audioHealthy bool
	recovering   bool

	lastPTS         time.Duration
	havePTS         bool
	consecutiveDrop int
	holdStartedAt   time.Time
	holding         bool
}

// NewForPrepare returns the initial sync state per spec.md §4.4: Video
// master with immediate validity if the file has no audio, Audio master
// (unvalidated until the first sink write) otherwise.
func NewForPrepare(hasAudio bool, audioClock *clock.AudioClock, videoClock *clock.VideoClock) *State {
	s := &State{Audio: audioClock, Video: videoClock}
	if hasAudio {
		s.master = MasterAudio
	} else {
		s.master = MasterVideo
		s.audioHealthy = false
	}
	return s
}

// ForceVideoAfterSeek implements "video-first after seek" (spec.md §4.4):
// master is pinned to Video until ResolvePostSeekMaster is called.
func (s *State) ForceVideoAfterSeek() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.master = MasterVideo
	s.masterForced = true
	s.consecutiveDrop = 0
	s.holding = false
}

// ResolvePostSeekMaster switches back to Audio once the first post-seek
// frame has been presented, provided audio is healthy.
func (s *State) ResolvePostSeekMaster(audioHealthy bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if !s.masterForced {
		return
	}
	s.masterForced = false
	s.audioHealthy = audioHealthy
	if audioHealthy {
		s.master = MasterAudio
	} else {
		s.master = MasterVideo
	}
}

// SetAudioHealthy updates whether the audio path is currently usable as
// master (called when the audio renderer detects StoppedBySystem/Dead).
func (s *State) SetAudioHealthy(healthy bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.audioHealthy = healthy
	if s.masterForced {
		return
	}
	if healthy {
		s.master = MasterAudio
	} else {
		s.master = MasterVideo
	}
}

// Master returns the currently selected master.
func (s *State) Master() Master {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.master
}

// MasterClockNow returns get_master_clock()'s value (spec.md §4.4).
func (s *State) MasterClockNow() time.Duration {
	s.mutex.Lock()
	master := s.master
	s.mutex.Unlock()
	if master == MasterAudio {
		return s.Audio.Now()
	}
	return s.Video.Now()
}

// preconditions: mutex held.
func (s *State) noLockMasterClockNow() time.Duration {
	if s.master == MasterAudio {
		return s.Audio.Now()
	}
	return s.Video.Now()
}

// Classify implements the drop/hold/render/hard-resync decision table
// from spec.md §4.4 for a candidate video frame with the given pts.
func (s *State) Classify(pts time.Duration, hasPTS bool, frameDuration time.Duration) Action {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	threshold := baseDriftThreshold
	if frameDuration > threshold {
		threshold = frameDuration
	}

	if !hasPTS || (s.havePTS && (pts < s.lastPTS || pts-s.lastPTS > maxPTSJump)) {
		s.noLockOnDrop()
		return ActionDrop
	}
	s.havePTS = true
	s.lastPTS = pts

	master := s.noLockMasterClockNow()
	drift := pts - master

	if drift < persistentHoldDriftThreshold {
		s.consecutiveDrop++
		if drift < -hardResyncDriftThreshold || s.consecutiveDrop >= consecutiveDropsForHardResync {
			s.recovering = true
			s.consecutiveDrop = 0
			return ActionHardResync
		}
	}

	if drift > threshold {
		s.noLockOnDrop()
		return ActionDrop
	}

	if drift < -threshold {
		if !s.holding {
			s.holding = true
			s.holdStartedAt = time.Now()
		} else if time.Since(s.holdStartedAt) > forceRenderHoldDuration {
			s.holding = false
			s.consecutiveDrop = 0
			return ActionRender
		}
		return ActionHold
	}

	s.holding = false
	s.consecutiveDrop = 0
	return ActionRender
}

// preconditions: mutex held.
func (s *State) noLockOnDrop() {
	s.consecutiveDrop++
	if s.consecutiveDrop >= consecutiveDropsForHardResync {
		s.recovering = true
	}
}

// ClearRecovering is called once a frame has been shown at the new anchor
// following a hard resync (spec.md §4.9).
func (s *State) ClearRecovering() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.recovering = false
	s.consecutiveDrop = 0
	s.holding = false
}

// Recovering reports whether a hard resync is in progress.
func (s *State) Recovering() bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.recovering
}

// Drift returns video_pts - audio_clock_now for diagnostics.
func (s *State) Drift(videoPTS time.Duration) time.Duration {
	return videoPTS - s.Audio.Now()
}
