// Package clock implements the engine's pts-with-drift clocks: a generic
// [Clock] plus the two specialisations the render scheduler and audio
// renderer update, [AudioClock] and [VideoClock].
//
// The continuity rules (pause/resume/speed changes never produce an
// observable jump in [Clock.Now]) follow the reference clock_set_speed /
// clock_pause / clock_get_time implementation: pts and the wall-clock
// anchor are always recomputed together under the lock.
package clock

import (
	"sync"
	"time"
)

const (
	MinSpeed = 0.5
	MaxSpeed = 3.0
)

// Clock is a monotonic pts-with-drift clock with speed and pause
// continuity. The engine uses it as its speed-aware position estimate;
// AudioClock and VideoClock below are separate types that do not use it.
type Clock struct {
	mutex       sync.Mutex
	pts         time.Duration
	lastUpdated time.Time
	active      bool
	paused      bool
	speed       float64
}

// New returns an inactive clock at speed 1.0.
func New() *Clock {
	return &Clock{speed: 1.0}
}

// Set anchors the clock to pts at the current wall time and activates it.
func (c *Clock) Set(pts time.Duration) {
	now := time.Now()
	c.mutex.Lock()
	c.pts = pts
	c.lastUpdated = now
	c.active = true
	c.mutex.Unlock()
}

// Reset moves the clock to pts, keeping the configured speed but clearing
// pause state. Its only caller is internal/engine's Context.Seek, which
// re-anchors the engine's speed clock at each seek target.
func (c *Clock) Reset(pts time.Duration) {
	now := time.Now()
	c.mutex.Lock()
	c.pts = pts
	c.lastUpdated = now
	c.active = pts >= 0
	c.paused = false
	c.mutex.Unlock()
}

// Pause freezes or resumes the clock without producing a jump: pausing
// folds elapsed wall time into pts first, so a later resume continues
// from exactly where playback left off.
func (c *Clock) Pause(pause bool) {
	now := time.Now()
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if pause && !c.paused {
		c.pts = c.noLockNow(now)
		c.lastUpdated = now
	} else if !pause && c.paused {
		c.lastUpdated = now
	}
	c.paused = pause
}

// SetSpeed clamps speed to [MinSpeed, MaxSpeed] and re-anchors pts/lastUpdated
// so the change is continuous.
func (c *Clock) SetSpeed(speed float64) {
	speed = clampSpeed(speed)
	now := time.Now()
	c.mutex.Lock()
	if c.active && !c.paused {
		c.pts = c.noLockNow(now)
		c.lastUpdated = now
	}
	c.speed = speed
	c.mutex.Unlock()
}

func clampSpeed(speed float64) float64 {
	if speed < MinSpeed {
		return MinSpeed
	}
	if speed > MaxSpeed {
		return MaxSpeed
	}
	return speed
}

// Speed returns the current speed multiplier.
func (c *Clock) Speed() float64 {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.speed
}

// Now returns pts + elapsed*speed, or 0 if inactive.
func (c *Clock) Now() time.Duration {
	now := time.Now()
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if !c.active {
		return 0
	}
	return c.noLockNow(now)
}

// preconditions: mutex held.
func (c *Clock) noLockNow(now time.Time) time.Duration {
	if c.paused {
		return c.pts
	}
	elapsed := now.Sub(c.lastUpdated)
	scaled := time.Duration(float64(elapsed) * c.speed)
	return c.pts + scaled
}

// IsActive reports whether the clock has been set at least once.
func (c *Clock) IsActive() bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.active
}

// AudioClock tracks the pts of the last successfully written audio buffer.
// Per spec.md §3 it is written only from the audio renderer's post-write
// code path (P2 in §8).
type AudioClock struct {
	mutex          sync.Mutex
	ptsSec         float64
	durationSec    float64
	latencySec     float64
	lastUpdateWall time.Time
	valid          bool
}

// UpdateAfterWrite must be called immediately after a successful sink
// write, never otherwise.
func (a *AudioClock) UpdateAfterWrite(framePTS, frameDuration time.Duration, sinkLatency time.Duration) {
	a.mutex.Lock()
	a.ptsSec = framePTS.Seconds()
	a.durationSec = frameDuration.Seconds()
	a.latencySec = sinkLatency.Seconds()
	a.lastUpdateWall = time.Now()
	a.valid = true
	a.mutex.Unlock()
}

// Now returns the estimated current audio playback position.
func (a *AudioClock) Now() time.Duration {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	if !a.valid {
		return 0
	}
	sec := a.ptsSec + a.durationSec - a.latencySec
	return time.Duration(sec * float64(time.Second))
}

// Valid reports whether at least one successful write has been observed.
func (a *AudioClock) Valid() bool {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	return a.valid
}

// Stalled reports whether the clock has not advanced for longer than
// threshold, per spec.md §3's 500ms stall definition.
func (a *AudioClock) Stalled(threshold time.Duration) bool {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	if !a.valid {
		return false
	}
	return time.Since(a.lastUpdateWall) > threshold
}

// Invalidate marks the clock invalid, used on seek (§4.8 step 3).
func (a *AudioClock) Invalidate() {
	a.mutex.Lock()
	a.valid = false
	a.mutex.Unlock()
}

// VideoClock tracks the pts of the last presented video frame. Per
// spec.md §3 it is written only by the render scheduler, after a swap.
type VideoClock struct {
	mutex        sync.Mutex
	ptsSec       float64
	valid        bool
	lastPresent  time.Time
}

// UpdateAfterSwap must be called immediately after a successful surface
// swap, never otherwise.
func (v *VideoClock) UpdateAfterSwap(pts time.Duration) {
	v.mutex.Lock()
	v.ptsSec = pts.Seconds()
	v.valid = true
	v.lastPresent = time.Now()
	v.mutex.Unlock()
}

// Now returns the pts of the last presented frame (video clocks do not
// extrapolate past the last swap; the render scheduler is the only place
// time "moves" for video).
func (v *VideoClock) Now() time.Duration {
	v.mutex.Lock()
	defer v.mutex.Unlock()
	if !v.valid {
		return 0
	}
	return time.Duration(v.ptsSec * float64(time.Second))
}

// Valid reports whether at least one frame has been presented.
func (v *VideoClock) Valid() bool {
	v.mutex.Lock()
	defer v.mutex.Unlock()
	return v.valid
}

// Stalled reports whether no swap has occurred for longer than threshold
// (spec.md §3's 700ms video stall threshold).
func (v *VideoClock) Stalled(threshold time.Duration) bool {
	v.mutex.Lock()
	defer v.mutex.Unlock()
	if !v.valid {
		return false
	}
	return time.Since(v.lastPresent) > threshold
}

// Invalidate marks the clock invalid, used on seek (§4.8 step 3).
func (v *VideoClock) Invalidate() {
	v.mutex.Lock()
	v.valid = false
	v.mutex.Unlock()
}
