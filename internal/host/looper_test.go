package host

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swordlegend/dava.engine/internal/errors"
)

// fakeRecorder counts host events
type fakeRecorder struct {
	mu          sync.Mutex
	tasks       map[string]int
	transitions []bool
	listeners   int
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{tasks: make(map[string]int)}
}

func (r *fakeRecorder) RecordVisibilityChange(visible bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transitions = append(r.transitions, visible)
}

func (r *fakeRecorder) SetListeners(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = n
}

func (r *fakeRecorder) RecordUITask(status string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks[status]++
}

func (r *fakeRecorder) taskCount(status string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tasks[status]
}

func TestLooperRunsTasksInOrder(t *testing.T) {
	t.Parallel()

	l := NewLooper(nil, nil)

	var got []int
	for i := range 100 {
		require.NoError(t, l.Post(func() { got = append(got, i) }))
	}
	l.Quit()
	require.NoError(t, l.Wait(t.Context()))

	require.Len(t, got, 100)
	for i, v := range got {
		assert.Equal(t, i, v)
	}
}

func TestLooperPostAfterQuit(t *testing.T) {
	t.Parallel()

	l := NewLooper(nil, nil)
	l.Quit()

	err := l.Post(func() {})
	require.ErrorIs(t, err, ErrHostClosed)
	require.NoError(t, l.Wait(t.Context()))
}

func TestLooperRejectsNilTask(t *testing.T) {
	t.Parallel()

	l := NewLooper(nil, nil)
	defer func() {
		l.Quit()
		<-l.Done()
	}()

	err := l.Post(nil)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
}

func TestLooperQuitDrainsQueue(t *testing.T) {
	t.Parallel()

	l := NewLooper(nil, nil)
	release := make(chan struct{})
	require.NoError(t, l.Post(func() { <-release }))

	ran := 0
	for range 10 {
		require.NoError(t, l.Post(func() { ran++ }))
	}
	l.Quit()
	close(release)

	require.NoError(t, l.Wait(t.Context()))
	assert.Equal(t, 10, ran)
	assert.Zero(t, l.Pending())
}

func TestLooperSurvivesPanics(t *testing.T) {
	t.Parallel()

	rec := newFakeRecorder()
	l := NewLooper(nil, rec)

	ran := false
	require.NoError(t, l.Post(func() { panic("listener exploded") }))
	require.NoError(t, l.Post(func() { ran = true }))
	l.Quit()
	require.NoError(t, l.Wait(t.Context()))

	assert.True(t, ran)
	assert.Equal(t, 1, rec.taskCount(TaskStatusPanic))
	assert.Equal(t, 1, rec.taskCount(TaskStatusOK))
}

func TestLooperPostNeverBlocks(t *testing.T) {
	t.Parallel()

	l := NewLooper(nil, nil)
	release := make(chan struct{})
	require.NoError(t, l.Post(func() { <-release }))

	done := make(chan struct{})
	go func() {
		defer close(done)
		for range 10_000 {
			_ = l.Post(func() {})
		}
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Post blocked while the looper was busy")
	}

	close(release)
	l.Quit()
	require.NoError(t, l.Wait(t.Context()))
}
