package anglefix

import (
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultTickRate is the interval between ticks when the scheduler drives itself (20 TPS).
const DefaultTickRate = 50 * time.Millisecond

// TickScheduler runs one-shot callbacks on a future simulation tick.
type TickScheduler interface {
	// CurrentTick returns the number of ticks processed so far.
	CurrentTick() uint64
	// RunOnTick schedules fn to run once tick has been reached.
	RunOnTick(tick uint64, fn func()) *TaskHandle
}

// Scheduler is a tick counter with a queue of callbacks keyed by tick.
// Callbacks run one at a time on the goroutine calling Tick, in the order they
// were scheduled within a tick.
type Scheduler struct {
	queue *taskQueue
	log   *slog.Logger

	// tickMu serialises Tick so callbacks never run concurrently
	tickMu     sync.Mutex
	tickNumber atomic.Uint64

	// Execution state
	tickRate time.Duration
	running  atomic.Bool
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// Compile-time check that Scheduler implements TickScheduler.
var _ TickScheduler = (*Scheduler)(nil)

// NewScheduler creates a scheduler that ticks every tickRate once started.
// A non-positive tickRate uses DefaultTickRate.
func NewScheduler(tickRate time.Duration, log *slog.Logger) *Scheduler {
	if tickRate <= 0 {
		tickRate = DefaultTickRate
	}
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{
		queue:    newTaskQueue(),
		log:      log,
		tickRate: tickRate,
	}
}

// CurrentTick returns the number of ticks processed so far.
func (s *Scheduler) CurrentTick() uint64 {
	return s.tickNumber.Load()
}

// RunOnTick schedules fn to run when the scheduler reaches tick.
// If tick has already been reached, fn runs on the next tick.
// Returns a TaskHandle that can be used to cancel the task.
func (s *Scheduler) RunOnTick(tick uint64, fn func()) *TaskHandle {
	if fn == nil {
		return nil
	}
	task := &scheduledTask{tick: tick, fn: fn}
	s.queue.Push(task)
	return &TaskHandle{task: task}
}

// Pending returns the number of queued tasks.
func (s *Scheduler) Pending() int {
	return s.queue.Len()
}

// Tick advances the scheduler by one tick and runs every task that is due.
func (s *Scheduler) Tick() {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()

	tick := s.tickNumber.Add(1)
	for _, task := range s.queue.PopDue(tick) {
		if task.cancelled.Load() {
			continue
		}
		s.execute(tick, task)
	}
}

// execute runs a single task with panic recovery.
func (s *Scheduler) execute(tick uint64, task *scheduledTask) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("anglefix: panic in scheduled task: %v", r)
			s.log.Error(err.Error(), "tick", tick, "stack", string(debug.Stack()))
		}
	}()
	task.fn()
}

// Start begins ticking every tickRate on a background goroutine.
func (s *Scheduler) Start() {
	if s.running.Swap(true) {
		return // Already running
	}
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	go s.tickLoop()
}

// Stop halts the tick loop and drops every pending task.
func (s *Scheduler) Stop() {
	if s.running.Swap(false) {
		close(s.stopCh)
		<-s.doneCh
	}
	s.queue.Clear()
}

// tickLoop is the main scheduler loop.
func (s *Scheduler) tickLoop() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.tickRate)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.Tick()
		}
	}
}
