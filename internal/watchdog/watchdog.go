// Package watchdog implements the two supervisory timers of C12: the
// stall watchdog and the seek watchdog. Grounded on
// original_source/.../ffmpeg_player_lifecycle.c's watchdog timers;
// implemented here as plain goroutines with a time.Ticker, the idiomatic
// Go replacement for a pthread timer loop.
package watchdog

import (
	"sync/atomic"
	"time"
)

const (
	// StallCheckInterval is spec.md §4.9's "every 500ms" cadence.
	StallCheckInterval = 500 * time.Millisecond
	// StallDeadline is the master-clock advancement deadline.
	StallDeadline = 500 * time.Millisecond
	// SeekDeadline is spec.md §4.8's 1s firstFrameAfterSeek deadline.
	SeekDeadline = time.Second
)

// StallWatchdog runs only while the engine reports Playing, a first
// frame has been rendered, and EOF hasn't been reached (spec.md §4.9).
type StallWatchdog struct {
	masterClockNow   func() time.Duration
	isEligible       func() bool // Playing && firstFrameRendered && !eof
	audioWaitingFirstFrame func() bool
	onStall          func()

	lastSeen     time.Duration
	lastSeenWall time.Time
	haveSample   bool
}

func NewStallWatchdog(masterClockNow func() time.Duration, isEligible func() bool, audioWaitingFirstFrame func() bool, onStall func()) *StallWatchdog {
	return &StallWatchdog{masterClockNow: masterClockNow, isEligible: isEligible, audioWaitingFirstFrame: audioWaitingFirstFrame, onStall: onStall}
}

// Run ticks every StallCheckInterval until stopCh closes.
func (w *StallWatchdog) Run(stopCh <-chan struct{}) {
	ticker := time.NewTicker(StallCheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			w.check()
		}
	}
}

func (w *StallWatchdog) check() {
	if !w.isEligible() {
		w.haveSample = false
		return
	}
	now := w.masterClockNow()
	if !w.haveSample {
		w.lastSeen = now
		w.lastSeenWall = time.Now()
		w.haveSample = true
		return
	}
	if now != w.lastSeen {
		w.lastSeen = now
		w.lastSeenWall = time.Now()
		return
	}
	if time.Since(w.lastSeenWall) < StallDeadline {
		return
	}
	if w.audioWaitingFirstFrame != nil && w.audioWaitingFirstFrame() {
		return
	}
	if w.onStall != nil {
		w.onStall()
	}
	w.haveSample = false
}

// SeekWatchdog enforces the 1s firstFrameAfterSeek deadline.
type SeekWatchdog struct {
	deadline atomic.Int64 // unix nano deadline; 0 means inactive
	onTimeout func()
}

func NewSeekWatchdog(onTimeout func()) *SeekWatchdog {
	return &SeekWatchdog{onTimeout: onTimeout}
}

// Arm starts the deadline countdown (called when a seek begins).
func (w *SeekWatchdog) Arm() {
	w.deadline.Store(time.Now().Add(SeekDeadline).UnixNano())
}

// Disarm stops the countdown (called on firstFrameAfterSeek).
func (w *SeekWatchdog) Disarm() {
	w.deadline.Store(0)
}

// Run polls the deadline until stopCh closes.
func (w *SeekWatchdog) Run(stopCh <-chan struct{}) {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			d := w.deadline.Load()
			if d == 0 {
				continue
			}
			if time.Now().UnixNano() >= d {
				w.deadline.Store(0)
				if w.onTimeout != nil {
					w.onTimeout()
				}
			}
		}
	}
}
