// Package seek implements the two-phase seek controller (C9): admission
// with pending-seek coalescing, epoch bump, queue/clock reset, and the
// seek/AVSync gate interplay from spec.md §4.8. Grounded on
// original_source/.../ffmpeg_player.c's seek-request admission (the
// teacher's own Seek() implementations are single-phase and synchronous —
// videoOnlyController.Seek blocks and decodes inline;
// videoWithAudioController.Seek panics as unimplemented).
package seek

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/erparts/avplay/internal/clock"
	"github.com/erparts/avplay/internal/queue"
)

// Request mirrors spec.md §3's SeekRequest.
type Request struct {
	TargetPTS  time.Duration
	Exact      bool
	Seeking    bool
	InProgress bool
	DropAudio  bool
	DropVideo  bool
	SeekID     uint64
}

// ContainerSeeker performs the backward key-frame seek on the underlying
// container (reisen in production). Implemented by internal/decode's
// owner in internal/engine to avoid this package importing reisen.
type ContainerSeeker interface {
	// SeekBackward requests a backward seek to at-or-before target in the
	// video stream's time-base.
	SeekBackward(target time.Duration) error
}

// Controller implements the C9 seek protocol.
type Controller struct {
	mutex sync.Mutex

	epoch *atomic.Uint64

	current Request
	pending *Request

	videoPackets *queue.PacketQueue
	audioPackets *queue.PacketQueue
	videoFrames  *queue.FrameQueue
	audioFrames  *queue.FrameQueue

	audioClock *clock.AudioClock
	videoClock *clock.VideoClock

	container ContainerSeeker

	pauseAudio  func()
	resumeAudio func()

	closeSeekGate func()
	openSeekGate  func()

	avoidKeyframeOnly bool // true for AVI/FLV-style containers (§4.8 step 4)
}

// New wires a seek controller. Passing nil audioPackets/audioFrames skips
// the audio queue path.
func New(epoch *atomic.Uint64, videoPackets, audioPackets *queue.PacketQueue, videoFrames, audioFrames *queue.FrameQueue,
	audioClock *clock.AudioClock, videoClock *clock.VideoClock, container ContainerSeeker,
	pauseAudio, resumeAudio, closeSeekGate, openSeekGate func(), avoidKeyframeOnly bool) *Controller {
	return &Controller{
		epoch:             epoch,
		videoPackets:      videoPackets,
		audioPackets:      audioPackets,
		videoFrames:       videoFrames,
		audioFrames:       audioFrames,
		audioClock:        audioClock,
		videoClock:        videoClock,
		container:         container,
		pauseAudio:        pauseAudio,
		resumeAudio:       resumeAudio,
		closeSeekGate:     closeSeekGate,
		openSeekGate:      openSeekGate,
		avoidKeyframeOnly: avoidKeyframeOnly,
	}
}

// Request admits a new seek per spec.md §4.8 step 1: if one is already in
// progress, the new target is recorded as pending and coalesces with any
// previously pending request (rapid scrubbing, spec.md §8 scenario 4);
// otherwise it starts immediately.
func (c *Controller) Request(target, duration time.Duration, exact bool) {
	if target < 0 {
		target = 0
	}
	if target > duration {
		target = duration
	}

	c.mutex.Lock()
	if c.current.InProgress {
		c.pending = &Request{TargetPTS: target, Exact: exact}
		c.mutex.Unlock()
		return
	}
	c.mutex.Unlock()

	c.start(target, exact)
}

// start executes steps 2-5 of spec.md §4.8: epoch bump, abort+reset,
// container seek, and queue restart.
func (c *Controller) start(target time.Duration, exact bool) {
	if c.avoidKeyframeOnly {
		// AVI/FLV containers always use the backward key-frame seek;
		// phase-2 decode-and-drop does not apply (spec.md §4.8 step 4).
		exact = false
	}
	c.mutex.Lock()
	c.current = Request{TargetPTS: target, Exact: exact, Seeking: true, InProgress: true}
	c.mutex.Unlock()

	if c.closeSeekGate != nil {
		c.closeSeekGate()
	}

	newEpoch := c.epoch.Add(1)
	c.mutex.Lock()
	c.current.SeekID = newEpoch
	c.mutex.Unlock()

	c.videoPackets.Abort()
	if c.audioPackets != nil {
		c.audioPackets.Abort()
	}
	c.videoFrames.Abort()
	if c.audioFrames != nil {
		c.audioFrames.Abort()
	}
	c.videoFrames.Flush()
	if c.audioFrames != nil {
		c.audioFrames.Flush()
	}
	if c.pauseAudio != nil {
		c.pauseAudio()
	}

	// reset both clocks exactly here, nowhere else (spec.md §4.8 step 3).
	c.audioClock.Invalidate()
	c.videoClock.Invalidate()

	if c.container != nil {
		_ = c.container.SeekBackward(target) // backward/key-frame seek; exact handled by decode-and-drop
	}

	c.videoPackets.Flush()
	c.videoPackets.ResetAbort()
	if c.audioPackets != nil {
		c.audioPackets.Flush()
		c.audioPackets.ResetAbort()
	}
	c.videoFrames.ResetAbort()
	if c.audioFrames != nil {
		c.audioFrames.ResetAbort()
	}
}

// Current returns a snapshot of the seek request state.
func (c *Controller) Current() Request {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.current
}

// TargetAndInProgress is a convenience accessor used by the render
// scheduler's seekInFlight callback.
func (c *Controller) TargetAndInProgress() (time.Duration, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.current.TargetPTS, c.current.InProgress
}

// DropVideoFrame implements phase-2 exact-seek frame dropping in the
// video decoder: pts < target - 2ms must be discarded before reaching the
// frame queue.
func (c *Controller) DropVideoFrame(pts time.Duration) bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if !c.current.InProgress || !c.current.Exact {
		return false
	}
	const epsilon = 2 * time.Millisecond
	return pts < c.current.TargetPTS-epsilon
}

// Complete is called by the render scheduler on the first post-seek swap
// (spec.md §4.8 step 7): reopens the seek gate and runs any pending seek.
func (c *Controller) Complete() (hadPending bool) {
	c.mutex.Lock()
	c.current.Seeking = false
	c.current.InProgress = false
	pending := c.pending
	c.pending = nil
	c.mutex.Unlock()

	if c.openSeekGate != nil {
		c.openSeekGate()
	}
	if c.resumeAudio != nil {
		c.resumeAudio()
	}

	if pending != nil {
		c.start(pending.TargetPTS, pending.Exact)
		return true
	}
	return false
}
