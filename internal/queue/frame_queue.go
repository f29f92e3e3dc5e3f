package queue

import (
	"sync"
	"time"
)

// FrameCapacity is K in spec.md §3 ("K = 16 used").
const FrameCapacity = 16

// VideoQueueBackpressureCap is the hard cap the render scheduler enforces
// via [FrameQueue.DropOldest] (spec.md §4.2).
const VideoQueueBackpressureCap = 3

// saneDeltaMax is the upper bound for a PTS delta to be trusted as the new
// estimated frame duration (spec.md §3: "sane delta ∈ (0, 1 s]").
const saneDeltaMax = time.Second

// Frame is a decoded unit with the metadata the rest of the pipeline
// (sync core, render scheduler, seek controller) needs. Payload is an
// opaque pointer into caller-owned data (a cloned reisen frame, in
// production use) so the queue itself stays format-agnostic.
type Frame struct {
	Payload  any
	PTS      time.Duration
	Serial   uint64
	Duration time.Duration
}

// FrameQueue is a bounded ring buffer of [Frame] with synthetic-PTS
// recovery, abort/flush, and peek-without-removal semantics for the
// render scheduler's two-frame (current + next) lookahead.
type FrameQueue struct {
	mutex sync.Mutex
	cond  *sync.Cond

	buf        [FrameCapacity]Frame
	readIndex  int
	writeIndex int
	count      int
	aborted    bool

	lastPTS                time.Duration
	havePTS                bool
	estimatedFrameDuration time.Duration
}

// NewFrameQueue returns an empty, non-aborted frame queue.
func NewFrameQueue() *FrameQueue {
	q := &FrameQueue{}
	q.cond = sync.NewCond(&q.mutex)
	return q
}

// Push inserts frame at the tail, applying the synthetic-PTS fallback
// chain from spec.md §4.2 if frame.PTS is not set by the caller (callers
// signal "absent" by passing hasPTS=false). Blocks while full; returns
// false iff the queue is aborted (before the call or while waiting).
func (q *FrameQueue) Push(payload any, pts time.Duration, hasPTS bool, serial uint64) bool {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	for q.count == FrameCapacity && !q.aborted {
		q.cond.Wait()
	}
	if q.aborted {
		return false
	}

	if !hasPTS {
		if q.havePTS {
			pts = q.lastPTS + q.estimatedFrameDuration
		} else {
			pts = 0
		}
	} else if q.havePTS {
		delta := pts - q.lastPTS
		if delta > 0 && delta <= saneDeltaMax {
			q.estimatedFrameDuration = delta
		}
	}

	q.buf[q.writeIndex] = Frame{Payload: payload, PTS: pts, Serial: serial, Duration: q.estimatedFrameDuration}
	q.writeIndex = (q.writeIndex + 1) % FrameCapacity
	q.count++
	q.lastPTS = pts
	q.havePTS = true
	q.cond.Broadcast()
	return true
}

// Peek returns the current (oldest) frame without removing it. ok is
// false if the queue is empty; an aborted queue still returns its oldest
// frame.
func (q *FrameQueue) Peek() (Frame, bool) {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	if q.count == 0 {
		return Frame{}, false
	}
	return q.buf[q.readIndex], true
}

// PeekNext returns the frame after the current one, if any.
func (q *FrameQueue) PeekNext() (Frame, bool) {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	if q.count < 2 {
		return Frame{}, false
	}
	idx := (q.readIndex + 1) % FrameCapacity
	return q.buf[idx], true
}

// Advance releases the current frame, waking any producer blocked on a
// full queue.
func (q *FrameQueue) Advance() {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	if q.count == 0 {
		return
	}
	q.readIndex = (q.readIndex + 1) % FrameCapacity
	q.count--
	q.cond.Broadcast()
}

// DropOldest discards the current frame without presenting it; used by the
// render scheduler to enforce [VideoQueueBackpressureCap].
func (q *FrameQueue) DropOldest() (Frame, bool) {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	if q.count == 0 {
		return Frame{}, false
	}
	f := q.buf[q.readIndex]
	q.readIndex = (q.readIndex + 1) % FrameCapacity
	q.count--
	q.cond.Broadcast()
	return f, true
}

// Size returns the number of queued frames.
func (q *FrameQueue) Size() int {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	return q.count
}

// IsFull reports whether the queue is at capacity.
func (q *FrameQueue) IsFull() bool {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	return q.count == FrameCapacity
}

// Flush empties the queue and resets the synthetic-PTS state (spec.md
// §3: "on flush, last_pts resets").
func (q *FrameQueue) Flush() {
	q.mutex.Lock()
	q.readIndex = 0
	q.writeIndex = 0
	q.count = 0
	q.havePTS = false
	q.lastPTS = 0
	q.cond.Broadcast()
	q.mutex.Unlock()
}

// Abort wakes every blocked producer/consumer; they observe an aborted
// queue until ResetAbort is called.
func (q *FrameQueue) Abort() {
	q.mutex.Lock()
	q.aborted = true
	q.cond.Broadcast()
	q.mutex.Unlock()
}

// ResetAbort clears the aborted flag.
func (q *FrameQueue) ResetAbort() {
	q.mutex.Lock()
	q.aborted = false
	q.mutex.Unlock()
}
