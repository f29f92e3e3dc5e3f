// Package queue implements the two bounded, abortable pipeline structures
// the engine hands packets and frames through: [PacketQueue] (C1) and
// [FrameQueue] (C2). Both follow the mutex+condvar discipline spec.md §5
// asks for rather than a bare channel, since flush/peek/abort semantics
// don't map cleanly onto channel close/reopen.
package queue

import (
	"sync"

	"golang.org/x/sync/semaphore"
)

// maxQueueBytes is the soft byte budget a [PacketQueue] tracks via a
// weighted semaphore purely for backpressure diagnostics (spec.md §5:
// "packet-queue push never blocks" — so the semaphore is never used to
// block a producer, only to report when the queue is running hot).
const maxQueueBytes = 8 * 1024 * 1024

// Packet is a compressed unit produced by the demuxer and consumed exactly
// once by a decoder.
type Packet struct {
	StreamIndex int
	Data        []byte
	PTS         int64 // in stream time-base units, may be absent (see HasPTS)
	HasPTS      bool
	DTS         int64
	Size        int
	Epoch       uint64 // epoch serial in effect when this packet was read
}

type packetNode struct {
	pkt      Packet
	next     *packetNode
	weighted bool // true if this node's size was acquired against sem
}

// PacketQueue is a thread-safe FIFO of [Packet] values, abortable and
// exposing a running byte-size counter for diagnostics (spec.md §4.1).
type PacketQueue struct {
	mutex      sync.Mutex
	cond       *sync.Cond
	head       *packetNode
	tail       *packetNode
	size       int // byte size of queued packets
	count      int
	aborted    bool
	sem        *semaphore.Weighted
	overBudget bool
}

// NewPacketQueue returns an empty, non-aborted queue.
func NewPacketQueue() *PacketQueue {
	q := &PacketQueue{sem: semaphore.NewWeighted(maxQueueBytes)}
	q.cond = sync.NewCond(&q.mutex)
	return q
}

// Push appends pkt to the tail and wakes one waiting consumer. It never
// blocks (spec.md §5: "packet-queue push — never blocks"): if the byte
// budget is exhausted, TryAcquire simply fails and the push proceeds
// anyway, with OverBudget latching true for diagnostics.
func (q *PacketQueue) Push(pkt Packet) bool {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	if q.aborted {
		return false
	}
	weighted := q.sem.TryAcquire(int64(pkt.Size))
	q.overBudget = !weighted
	node := &packetNode{pkt: pkt, weighted: weighted}
	if q.tail == nil {
		q.head = node
		q.tail = node
	} else {
		q.tail.next = node
		q.tail = node
	}
	q.size += pkt.Size
	q.count++
	q.cond.Signal()
	return true
}

// Pop removes and returns the head packet, blocking until one is
// available or the queue is aborted. ok is false iff the queue is aborted
// and empty; packets queued before Abort are still returned.
func (q *PacketQueue) Pop() (pkt Packet, ok bool) {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	for q.head == nil && !q.aborted {
		q.cond.Wait()
	}
	if q.aborted && q.head == nil {
		return Packet{}, false
	}
	node := q.head
	q.head = node.next
	if q.head == nil {
		q.tail = nil
	}
	q.size -= node.pkt.Size
	q.count--
	if node.weighted {
		q.sem.Release(int64(node.pkt.Size))
	}
	return node.pkt, true
}

// Flush atomically drops every queued packet and wakes waiters (a blocked
// Pop re-checks the now empty queue and waits again unless it is aborted).
func (q *PacketQueue) Flush() {
	q.mutex.Lock()
	for n := q.head; n != nil; n = n.next {
		if n.weighted {
			q.sem.Release(int64(n.pkt.Size))
		}
	}
	q.head = nil
	q.tail = nil
	q.size = 0
	q.count = 0
	q.overBudget = false
	q.cond.Broadcast()
	q.mutex.Unlock()
}

// OverBudget reports whether the most recent push exceeded the soft byte
// budget, for the diagnostics surface.
func (q *PacketQueue) OverBudget() bool {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	return q.overBudget
}

// Abort sets the aborted flag and wakes every waiter; until ResetAbort is
// called, Pop returns ok=false as soon as the queue is empty.
func (q *PacketQueue) Abort() {
	q.mutex.Lock()
	q.aborted = true
	q.cond.Broadcast()
	q.mutex.Unlock()
}

// ResetAbort clears the aborted flag, allowing the queue to be reused
// (the seek controller calls this after flushing to restart the pipeline).
func (q *PacketQueue) ResetAbort() {
	q.mutex.Lock()
	q.aborted = false
	q.mutex.Unlock()
}

// Size returns the current byte-size total, for diagnostics.
func (q *PacketQueue) Size() int {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	return q.size
}

// Count returns the number of queued packets.
func (q *PacketQueue) Count() int {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	return q.count
}
