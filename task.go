package anglefix

import (
	"sync"
	"sync/atomic"
)

// scheduledTask represents a callback scheduled for a future tick.
type scheduledTask struct {
	// tick is the tick the task should execute on
	tick uint64

	// seq orders tasks scheduled for the same tick
	seq uint64

	// fn is the callback to run
	fn func()

	// cancelled indicates if the task has been cancelled
	cancelled atomic.Bool

	// index is the heap index for efficient removal
	index int
}

// before reports whether t runs before o.
func (t *scheduledTask) before(o *scheduledTask) bool {
	if t.tick != o.tick {
		return t.tick < o.tick
	}
	return t.seq < o.seq
}

// taskQueue is a priority queue for scheduled tasks.
// It uses a binary heap for O(log n) insertion and removal.
type taskQueue struct {
	mu   sync.Mutex
	heap []*scheduledTask
	seq  uint64
}

// newTaskQueue creates a new task queue.
func newTaskQueue() *taskQueue {
	return &taskQueue{
		heap: make([]*scheduledTask, 0, 64),
	}
}

// compactHeap removes cancelled tasks from the heap and rebuilds the heap property.
func (q *taskQueue) compactHeap() {
	write := 0
	for read := 0; read < len(q.heap); read++ {
		if !q.heap[read].cancelled.Load() {
			q.heap[write] = q.heap[read]
			q.heap[write].index = write
			write++
		}
	}

	for i := write; i < len(q.heap); i++ {
		q.heap[i] = nil
	}
	q.heap = q.heap[:write]

	for i := len(q.heap)/2 - 1; i >= 0; i-- {
		q.down(i, len(q.heap))
	}
}

// Push adds a task to the queue with periodic cleanup to prevent memory leaks.
func (q *taskQueue) Push(task *scheduledTask) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.heap) > 100 && len(q.heap)%100 == 0 {
		q.compactHeap()
	}

	q.seq++
	task.seq = q.seq
	task.index = len(q.heap)
	q.heap = append(q.heap, task)
	q.up(task.index)
}

// PopDue removes and returns all live tasks due at or before tick, in execution order.
func (q *taskQueue) PopDue(tick uint64) []*scheduledTask {
	q.mu.Lock()
	defer q.mu.Unlock()

	var due []*scheduledTask
	for len(q.heap) > 0 && q.heap[0].tick <= tick {
		task := q.pop()
		if !task.cancelled.Load() {
			due = append(due, task)
		}
	}
	return due
}

// Len returns the number of tasks in the queue, including cancelled ones not yet compacted.
func (q *taskQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.heap)
}

// Clear removes all tasks from the queue.
func (q *taskQueue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, t := range q.heap {
		t.cancelled.Store(true)
	}
	q.heap = q.heap[:0]
}

// pop removes and returns the minimum task. Caller must hold lock.
func (q *taskQueue) pop() *scheduledTask {
	n := len(q.heap) - 1
	q.swap(0, n)
	q.down(0, n)
	task := q.heap[n]
	q.heap[n] = nil // Allow GC
	q.heap = q.heap[:n]
	task.index = -1
	return task
}

// up moves task at index up the heap.
func (q *taskQueue) up(i int) {
	for {
		parent := (i - 1) / 2
		if parent == i || !q.heap[i].before(q.heap[parent]) {
			break
		}
		q.swap(i, parent)
		i = parent
	}
}

// down moves task at index down the heap.
func (q *taskQueue) down(i, n int) {
	for {
		left := 2*i + 1
		if left >= n || left < 0 {
			break
		}
		j := left
		if right := left + 1; right < n && q.heap[right].before(q.heap[left]) {
			j = right
		}
		if !q.heap[j].before(q.heap[i]) {
			break
		}
		q.swap(i, j)
		i = j
	}
}

// swap swaps two tasks in the heap.
func (q *taskQueue) swap(i, j int) {
	q.heap[i], q.heap[j] = q.heap[j], q.heap[i]
	q.heap[i].index = i
	q.heap[j].index = j
}

// TaskHandle allows cancelling a scheduled task.
type TaskHandle struct {
	task *scheduledTask
}

// Cancel cancels the scheduled task. Cancelling a task that already ran is a no-op.
func (h *TaskHandle) Cancel() {
	if h != nil && h.task != nil {
		h.task.cancelled.Store(true)
	}
}

// Cancelled reports whether Cancel was called.
func (h *TaskHandle) Cancelled() bool {
	return h != nil && h.task != nil && h.task.cancelled.Load()
}

// Tick returns the tick the task is scheduled for.
func (h *TaskHandle) Tick() uint64 {
	if h == nil || h.task == nil {
		return 0
	}
	return h.task.tick
}
