package spreadsheet

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pendingFetches hands out one future per FETCH call
type pendingFetches struct {
	mu      sync.Mutex
	futures []*Future
}

func (p *pendingFetches) register(t *testing.T) *FunctionRegistry {
	t.Helper()
	registry := NewDefaultFunctionRegistry(&WallClock{}, &DefaultRandomGenerator{})
	require.NoError(t, registry.Register("FETCH", FunctionSpec{
		Args:    []Arg{{Name: "key", Types: []ArgType{ArgString}}},
		Returns: []ArgType{ArgAny},
		Async:   true,
		Compute: func(args ...Primitive) (Primitive, error) {
			p.mu.Lock()
			defer p.mu.Unlock()
			f := NewFuture()
			p.futures = append(p.futures, f)
			return f, nil
		},
	}))
	return registry
}

func (p *pendingFetches) at(i int) *Future {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.futures[i]
}

func (p *pendingFetches) len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.futures)
}

func TestFutureSettlesOnce(t *testing.T) {
	f := NewFuture()
	var got []Primitive
	f.Then(func(v Primitive, err error) { got = append(got, v) })
	assert.False(t, f.Done())

	f.Resolve("first")
	f.Resolve("second")
	f.Reject(errors.New("late"))
	assert.True(t, f.Done())

	f.Then(func(v Primitive, err error) { got = append(got, v) })
	assert.Equal(t, []Primitive{"first", "first"}, got)

	assert.True(t, ResolvedFuture(1.0).Done())
}

func TestTaskQueue(t *testing.T) {
	q := NewTaskQueue()
	var order []int
	q.Schedule(func() {
		order = append(order, 1)
		q.Schedule(func() { order = append(order, 3) })
	})
	q.Schedule(func() { order = append(order, 2) })

	select {
	case <-q.Ready():
	default:
		t.Fatal("queue not signaled")
	}
	assert.Equal(t, 2, q.Len())
	assert.Equal(t, 3, q.RunPending())
	assert.Equal(t, []int{1, 2, 3}, order)
	assert.Equal(t, 0, q.RunPending())
}

func TestAsyncFormulaResolution(t *testing.T) {
	fetches := &pendingFetches{}
	m := newTestModel(t, nil, WithFunctions(fetches.register(t)))
	notified := 0
	m.Subscribe(func() { notified++ })

	setContent(t, m, "Sheet1", "A1", `=FETCH("greeting")`)
	setContent(t, m, "Sheet1", "B1", `=A1&"!"`)
	require.Equal(t, 1, fetches.len())
	assert.Equal(t, CellStateWaiting, m.Getters().CellState("Sheet1", 0, 0))
	before := notified

	// settled off the model goroutine, applied by RunPending
	done := make(chan struct{})
	go func() {
		fetches.at(0).Resolve("hello")
		close(done)
	}()
	<-done
	assert.Nil(t, valueAt(m, "Sheet1", "A1"))

	assert.Equal(t, 1, m.RunPending())
	assert.Equal(t, "hello", valueAt(m, "Sheet1", "A1"))
	assert.Equal(t, "hello!", valueAt(m, "Sheet1", "B1"))
	assert.Equal(t, CellStateComputed, m.Getters().CellState("Sheet1", 0, 0))
	assert.Equal(t, before+1, notified)
	assert.Equal(t, 1, fetches.len(), "a settled call is not issued again")
}

func TestAsyncStaleResultIsDiscarded(t *testing.T) {
	fetches := &pendingFetches{}
	m := newTestModel(t, nil, WithFunctions(fetches.register(t)))

	setContent(t, m, "Sheet1", "A1", `=FETCH("old")`)
	setContent(t, m, "Sheet1", "A1", `=FETCH("new")`)
	require.Equal(t, 2, fetches.len())

	fetches.at(0).Resolve("stale")
	assert.Equal(t, 1, m.RunPending())
	assert.Equal(t, CellStateWaiting, m.Getters().CellState("Sheet1", 0, 0))
	assert.NotEqual(t, "stale", valueAt(m, "Sheet1", "A1"))

	fetches.at(1).Resolve("fresh")
	m.RunPending()
	assert.Equal(t, "fresh", valueAt(m, "Sheet1", "A1"))

	// a removed cell ignores its late result
	setContent(t, m, "Sheet1", "A2", `=FETCH("gone")`)
	require.True(t, m.Dispatch(DeleteContent{SheetID: "Sheet1", Target: []Zone{ZoneOf(0, 1)}}).IsSuccess())
	fetches.at(2).Resolve("late")
	m.RunPending()
	assert.Nil(t, valueAt(m, "Sheet1", "A2"))
}

func TestAsyncRewriteKeepsPreviousValue(t *testing.T) {
	fetches := &pendingFetches{}
	m := newTestModel(t, nil, WithFunctions(fetches.register(t)))

	setContent(t, m, "Sheet1", "A1", `=FETCH("k1")`)
	fetches.at(0).Resolve(21.0)
	m.RunPending()
	require.Equal(t, 21.0, valueAt(m, "Sheet1", "A1"))

	setContent(t, m, "Sheet1", "A1", `=FETCH("k2")`)
	assert.Equal(t, CellStateWaiting, m.Getters().CellState("Sheet1", 0, 0))
	assert.Equal(t, 21.0, valueAt(m, "Sheet1", "A1"))

	fetches.at(1).Resolve(42.0)
	m.RunPending()
	assert.Equal(t, 42.0, valueAt(m, "Sheet1", "A1"))
}

func TestAsyncRejectionShowsError(t *testing.T) {
	fetches := &pendingFetches{}
	m := newTestModel(t, nil, WithFunctions(fetches.register(t)))

	setContent(t, m, "Sheet1", "A1", `=FETCH("x")`)
	fetches.at(0).Reject(errors.New("unreachable"))
	m.RunPending()

	errVal, ok := valueAt(m, "Sheet1", "A1").(*SpreadsheetError)
	require.True(t, ok)
	assert.Equal(t, ErrorCodeError, errVal.ErrorCode)
	assert.Equal(t, "unreachable", errVal.Message)
}

type recordingScheduler struct {
	tasks []func()
}

func (s *recordingScheduler) Schedule(task func()) {
	s.tasks = append(s.tasks, task)
}

func TestCustomScheduler(t *testing.T) {
	fetches := &pendingFetches{}
	scheduler := &recordingScheduler{}
	m := newTestModel(t, nil, WithFunctions(fetches.register(t)), WithScheduler(scheduler))
	assert.Same(t, scheduler, m.Scheduler())

	setContent(t, m, "Sheet1", "A1", `=FETCH("x")`)
	fetches.at(0).Resolve(42.0)
	assert.Equal(t, 0, m.RunPending())
	require.Len(t, scheduler.tasks, 1)

	scheduler.tasks[0]()
	assert.Equal(t, 42.0, valueAt(m, "Sheet1", "A1"))
}
