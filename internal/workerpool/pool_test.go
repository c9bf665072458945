package workerpool

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func drainNow(t *testing.T, p *Pool) {
	t.Helper()
	p.StopAccepting()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p.Drain(ctx)
}

func TestSubmitAndDrain(t *testing.T) {
	p := New(2, 10)
	var count atomic.Int32

	for i := 0; i < 5; i++ {
		ok := p.Submit(func() {
			count.Add(1)
		})
		if !ok {
			t.Fatalf("Submit %d failed", i)
		}
	}

	drainNow(t, p)

	if got := count.Load(); got != 5 {
		t.Fatalf("count = %d, want 5", got)
	}
}

func TestSubmitAfterStopAcceptingReturnsFalse(t *testing.T) {
	p := New(1, 1)
	drainNow(t, p)

	if p.Submit(func() {}) {
		t.Fatal("Submit after StopAccepting/Drain should return false")
	}
}

func TestQueueFullReturnsFalse(t *testing.T) {
	p := New(1, 1)
	// Block the worker
	blocker := make(chan struct{})
	p.Submit(func() { <-blocker })

	// Fill the queue
	time.Sleep(10 * time.Millisecond) // let worker pick up first task
	p.Submit(func() {})               // fills the queue (size 1)

	// This should fail — queue full
	if p.Submit(func() {}) {
		t.Fatal("Submit should return false when queue is full")
	}

	close(blocker)
	drainNow(t, p)
}

func TestDrainWithoutStopAcceptingAutoStops(t *testing.T) {
	p := New(1, 10)
	p.Submit(func() {})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	// Call Drain directly without StopAccepting — should auto-stop
	p.Drain(ctx)

	if p.Submit(func() {}) {
		t.Fatal("Submit should return false after auto-stopped Drain")
	}
}

func TestDrainRespectsContextDeadline(t *testing.T) {
	p := New(1, 10)
	blocker := make(chan struct{})
	p.Submit(func() { <-blocker })

	p.StopAccepting()
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	p.Drain(ctx)
	elapsed := time.Since(start)

	if elapsed > 500*time.Millisecond {
		t.Fatalf("Drain should have timed out in ~100ms, took %v", elapsed)
	}

	close(blocker) // cleanup
}

func TestSingleWorkerDrainDoesNotDeadlock(t *testing.T) {
	p := New(1, 10)
	var count atomic.Int32

	for i := 0; i < 5; i++ {
		p.Submit(func() {
			time.Sleep(1 * time.Millisecond)
			count.Add(1)
		})
	}

	drainNow(t, p)

	if got := count.Load(); got != 5 {
		t.Fatalf("single-worker drain: count = %d, want 5", got)
	}
}

func TestPanicRecovery(t *testing.T) {
	p := New(1, 10)
	var count atomic.Int32

	// Submit a panicking task
	p.Submit(func() {
		panic("test panic")
	})
	// Submit a normal task after
	p.Submit(func() {
		count.Add(1)
	})

	drainNow(t, p)

	if got := count.Load(); got != 1 {
		t.Fatalf("task after panic: count = %d, want 1", got)
	}
}

func TestSubmitLabeledTracksPerLabelStats(t *testing.T) {
	p := New(2, 10)

	for i := 0; i < 3; i++ {
		if !p.SubmitLabeled("transcode", func() {}) {
			t.Fatalf("SubmitLabeled(transcode) %d failed", i)
		}
	}
	for i := 0; i < 2; i++ {
		if !p.SubmitLabeled("present", func() {}) {
			t.Fatalf("SubmitLabeled(present) %d failed", i)
		}
	}

	drainNow(t, p)

	stats := p.Stats()
	if stats.Submitted["transcode"] != 3 {
		t.Fatalf("transcode submitted = %d, want 3", stats.Submitted["transcode"])
	}
	if stats.Submitted["present"] != 2 {
		t.Fatalf("present submitted = %d, want 2", stats.Submitted["present"])
	}
	if stats.Completed["transcode"] != 3 {
		t.Fatalf("transcode completed = %d, want 3", stats.Completed["transcode"])
	}
	if stats.Completed["present"] != 2 {
		t.Fatalf("present completed = %d, want 2", stats.Completed["present"])
	}
}

func TestSubmitLabeledPanicIsAttributedToItsLabel(t *testing.T) {
	p := New(1, 10)
	p.SubmitLabeled("transcode", func() { panic("boom") })
	drainNow(t, p)

	stats := p.Stats()
	if stats.Panicked["transcode"] != 1 {
		t.Fatalf("transcode panicked = %d, want 1", stats.Panicked["transcode"])
	}
}
