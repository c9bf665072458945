package workerpool

import (
	"context"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/lanternops/streamnode/internal/logging"
)

var log = logging.L("workerpool")

// Task is a unit of work submitted to the pool.
type Task func()

// job pairs a submitted task with the pump it came from, so Stats can break
// down load between the streamnode pipeline's encoder and display pumps
// instead of reporting one undifferentiated counter.
type job struct {
	label string
	task  Task
}

// Stats is a point-in-time snapshot of per-label task counts.
type Stats struct {
	Submitted map[string]uint64
	Completed map[string]uint64
	Rejected  map[string]uint64
	Panicked  map[string]uint64
}

// Pool is a bounded goroutine pool with a fixed-size task queue. Tasks are
// labeled (e.g. "transcode", "present") so a pipeline feeding more than one
// kind of work through the same pool can tell them apart in Stats.
type Pool struct {
	maxWorkers int
	queue      chan job
	wg         sync.WaitGroup
	accepting  atomic.Bool
	stopOnce   sync.Once
	closeOnce  sync.Once
	stopChan   chan struct{}

	mu        sync.Mutex
	submitted map[string]uint64
	completed map[string]uint64
	rejected  map[string]uint64
	panicked  map[string]uint64
}

// New creates a pool with maxWorkers goroutines and a task queue of queueSize.
func New(maxWorkers, queueSize int) *Pool {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}

	p := &Pool{
		maxWorkers: maxWorkers,
		queue:      make(chan job, queueSize),
		stopChan:   make(chan struct{}),
		submitted:  make(map[string]uint64),
		completed:  make(map[string]uint64),
		rejected:   make(map[string]uint64),
		panicked:   make(map[string]uint64),
	}
	p.accepting.Store(true)

	for i := 0; i < maxWorkers; i++ {
		go p.worker()
	}

	log.Info("worker pool started", "workers", maxWorkers, "queueSize", queueSize)
	return p
}

// Submit enqueues an unlabeled task, filed under "" in Stats. Returns false
// if the pool is stopped or the queue is full.
func (p *Pool) Submit(task Task) bool {
	return p.SubmitLabeled("", task)
}

// SubmitLabeled enqueues a task under label, so Stats can report submitted,
// completed, rejected, and panicked counts per pump (e.g. the streamnode
// pipeline's "transcode" and "present" pumps sharing one pool).
// wg.Add is called here (before enqueue) to prevent a race with Drain.
func (p *Pool) SubmitLabeled(label string, task Task) bool {
	if !p.accepting.Load() {
		return false
	}

	p.wg.Add(1)
	select {
	case p.queue <- job{label: label, task: task}:
		p.mu.Lock()
		p.submitted[label]++
		p.mu.Unlock()
		return true
	default:
		p.wg.Done() // undo the Add since task was not enqueued
		p.mu.Lock()
		p.rejected[label]++
		p.mu.Unlock()
		log.Warn("worker pool queue full, task rejected", "label", label)
		return false
	}
}

// Stats returns a snapshot of per-label submit/complete/reject/panic counts.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		Submitted: cloneCounts(p.submitted),
		Completed: cloneCounts(p.completed),
		Rejected:  cloneCounts(p.rejected),
		Panicked:  cloneCounts(p.panicked),
	}
}

func cloneCounts(m map[string]uint64) map[string]uint64 {
	out := make(map[string]uint64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// StopAccepting prevents new tasks from being submitted.
func (p *Pool) StopAccepting() {
	p.accepting.Store(false)
}

// Drain stops accepting new submissions (as StopAccepting does), then waits
// for all in-flight and queued tasks to complete, respecting the context
// deadline. After Drain returns, the queue channel is closed so worker
// goroutines exit.
func (p *Pool) Drain(ctx context.Context) {
	p.accepting.Store(false)
	p.stopOnce.Do(func() {
		close(p.stopChan)
	})

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info("worker pool drained", "stats", p.Stats())
	case <-ctx.Done():
		log.Warn("worker pool drain timed out", "stats", p.Stats())
	}

	// Close queue so worker goroutines exit and are not leaked
	p.closeOnce.Do(func() {
		close(p.queue)
	})
}

func (p *Pool) worker() {
	for {
		select {
		case j, ok := <-p.queue:
			if !ok {
				return
			}
			p.runJob(j)
		case <-p.stopChan:
			// Drain remaining queued tasks
			for {
				select {
				case j, ok := <-p.queue:
					if !ok {
						return
					}
					p.runJob(j)
				default:
					return
				}
			}
		}
	}
}

// runJob executes a single job with panic recovery. wg.Done is called here
// to match the wg.Add in Submit/SubmitLabeled.
func (p *Pool) runJob(j job) {
	defer p.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			p.mu.Lock()
			p.panicked[j.label]++
			p.mu.Unlock()
			log.Error("task panicked", "label", j.label, "panic", r, "stack", string(debug.Stack()))
		}
	}()
	j.task()
	p.mu.Lock()
	p.completed[j.label]++
	p.mu.Unlock()
}
