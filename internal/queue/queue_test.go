package queue

import (
	"sync"
	"testing"
	"time"
)

func TestPacketQueueFIFO(t *testing.T) {
	q := NewPacketQueue()
	q.Push(Packet{StreamIndex: 0, Size: 10})
	q.Push(Packet{StreamIndex: 0, Size: 20})
	if got := q.Size(); got != 30 {
		t.Fatalf("expected size 30, got %d", got)
	}
	p, ok := q.Pop()
	if !ok || p.Size != 10 {
		t.Fatalf("expected first packet size 10, got %+v ok=%v", p, ok)
	}
	if got := q.Size(); got != 20 {
		t.Fatalf("expected size 20 after pop, got %d", got)
	}
}

func TestPacketQueueAbortWakesBlockedPop(t *testing.T) {
	q := NewPacketQueue()
	done := make(chan bool, 1)
	go func() {
		_, ok := q.Pop()
		done <- ok
	}()
	time.Sleep(10 * time.Millisecond)
	q.Abort()
	select {
	case ok := <-done:
		if ok {
			t.Fatal("expected Pop to report aborted")
		}
	case <-time.After(time.Second):
		t.Fatal("Pop did not wake up after Abort")
	}
}

func TestPacketQueueFlush(t *testing.T) {
	q := NewPacketQueue()
	q.Push(Packet{Size: 5})
	q.Push(Packet{Size: 5})
	q.Flush()
	if got := q.Count(); got != 0 {
		t.Fatalf("expected 0 packets after flush, got %d", got)
	}
	if got := q.Size(); got != 0 {
		t.Fatalf("expected 0 size after flush, got %d", got)
	}
}

func TestFrameQueueSyntheticPTSFirstFrame(t *testing.T) {
	q := NewFrameQueue()
	q.Push("f0", 0, false, 1)
	f, ok := q.Peek()
	if !ok || f.PTS != 0 {
		t.Fatalf("expected synthesized pts 0, got %+v ok=%v", f, ok)
	}
}

func TestFrameQueueSyntheticPTSFollowsEstimatedDuration(t *testing.T) {
	q := NewFrameQueue()
	q.Push("f0", 0, true, 1)
	q.Push("f1", 33*time.Millisecond, true, 1)
	// third frame arrives with no PTS: should use last_pts + estimated duration
	q.Push("f2", 0, false, 1)
	q.Advance()
	q.Advance()
	f, ok := q.Peek()
	if !ok {
		t.Fatal("expected a frame")
	}
	want := 66 * time.Millisecond
	if f.PTS != want {
		t.Fatalf("expected synthesized pts %v, got %v", want, f.PTS)
	}
}

func TestFrameQueuePushBlocksWhenFull(t *testing.T) {
	q := NewFrameQueue()
	for i := 0; i < FrameCapacity; i++ {
		if !q.Push(i, time.Duration(i)*time.Millisecond, true, 1) {
			t.Fatalf("push %d should have succeeded", i)
		}
	}
	if !q.IsFull() {
		t.Fatal("expected queue to report full")
	}

	var wg sync.WaitGroup
	pushed := make(chan bool, 1)
	wg.Add(1)
	go func() {
		defer wg.Done()
		ok := q.Push(999, time.Second, true, 1)
		pushed <- ok
	}()

	select {
	case <-pushed:
		t.Fatal("push should have blocked on a full queue")
	case <-time.After(50 * time.Millisecond):
	}

	q.Advance()
	select {
	case ok := <-pushed:
		if !ok {
			t.Fatal("expected push to succeed after Advance freed a slot")
		}
	case <-time.After(time.Second):
		t.Fatal("push never unblocked after Advance")
	}
	wg.Wait()
}

func TestFrameQueueAbortUnblocksPush(t *testing.T) {
	q := NewFrameQueue()
	for i := 0; i < FrameCapacity; i++ {
		q.Push(i, time.Duration(i), true, 1)
	}
	result := make(chan bool, 1)
	go func() {
		result <- q.Push(1, 1, true, 1)
	}()
	time.Sleep(10 * time.Millisecond)
	q.Abort()
	select {
	case ok := <-result:
		if ok {
			t.Fatal("expected push to report aborted")
		}
	case <-time.After(time.Second):
		t.Fatal("push did not wake up after Abort")
	}
}

func TestFrameQueueDropOldestEnforcesBackpressureCap(t *testing.T) {
	q := NewFrameQueue()
	for i := 0; i < 5; i++ {
		q.Push(i, time.Duration(i)*time.Millisecond, true, 1)
	}
	for q.Size() > VideoQueueBackpressureCap {
		if _, ok := q.DropOldest(); !ok {
			t.Fatal("expected a frame to drop")
		}
	}
	if got := q.Size(); got != VideoQueueBackpressureCap {
		t.Fatalf("expected size %d, got %d", VideoQueueBackpressureCap, got)
	}
}

func TestFrameQueueFlushResetsLastPTS(t *testing.T) {
	q := NewFrameQueue()
	q.Push("f0", 500*time.Millisecond, true, 1)
	q.Flush()
	q.Push("f1", 0, false, 2)
	f, _ := q.Peek()
	if f.PTS != 0 {
		t.Fatalf("expected flush to reset synthetic pts base, got %v", f.PTS)
	}
}
