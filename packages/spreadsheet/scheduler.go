package spreadsheet

import "sync"

// Future is the deferred result of an async function. it may be settled
// from any goroutine, callbacks run on the settling goroutine.
type Future struct {
	mu        sync.Mutex
	done      bool
	value     Primitive
	err       error
	callbacks []func(Primitive, error)
}

// NewFuture creates an unsettled future
func NewFuture() *Future {
	return &Future{}
}

// ResolvedFuture creates a future already settled with value
func ResolvedFuture(value Primitive) *Future {
	f := NewFuture()
	f.Resolve(value)
	return f
}

// Resolve settles the future with a value. later calls are ignored.
func (f *Future) Resolve(value Primitive) {
	f.settle(value, nil)
}

// Reject settles the future with an error. the cell shows #ERROR.
func (f *Future) Reject(err error) {
	f.settle(nil, err)
}

func (f *Future) settle(value Primitive, err error) {
	f.mu.Lock()
	if f.done {
		f.mu.Unlock()
		return
	}
	f.done = true
	f.value = value
	f.err = err
	callbacks := f.callbacks
	f.callbacks = nil
	f.mu.Unlock()

	for _, cb := range callbacks {
		cb(value, err)
	}
}

// Then registers cb to run once the future settles, immediately when it
// already has
func (f *Future) Then(cb func(Primitive, error)) {
	f.mu.Lock()
	if !f.done {
		f.callbacks = append(f.callbacks, cb)
		f.mu.Unlock()
		return
	}
	value, err := f.value, f.err
	f.mu.Unlock()
	cb(value, err)
}

// Done reports whether the future has settled
func (f *Future) Done() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.done
}

// Scheduler hands async re-entry work back to the goroutine owning the
// model
type Scheduler interface {
	Schedule(task func())
}

// TaskQueue is the default Scheduler. tasks pile up until the owner calls
// RunPending.
type TaskQueue struct {
	mu    sync.Mutex
	tasks []func()
	ready chan struct{}
}

// NewTaskQueue creates an empty queue
func NewTaskQueue() *TaskQueue {
	return &TaskQueue{ready: make(chan struct{}, 1)}
}

// Schedule enqueues a task, safe from any goroutine
func (q *TaskQueue) Schedule(task func()) {
	q.mu.Lock()
	q.tasks = append(q.tasks, task)
	q.mu.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
	}
}

// Ready is signaled when tasks were scheduled since the last receive
func (q *TaskQueue) Ready() <-chan struct{} {
	return q.ready
}

// Len returns the number of queued tasks
func (q *TaskQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

// RunPending runs queued tasks, including the ones they schedule, until
// the queue is empty. it returns the number of tasks run.
func (q *TaskQueue) RunPending() int {
	count := 0
	for {
		q.mu.Lock()
		tasks := q.tasks
		q.tasks = nil
		q.mu.Unlock()

		if len(tasks) == 0 {
			return count
		}
		for _, task := range tasks {
			task()
			count++
		}
	}
}
