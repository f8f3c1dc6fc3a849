package lifecycle

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swordlegend/dava.engine/internal/errors"
	"github.com/swordlegend/dava.engine/internal/host"
)

// fakeDevice counts calls and can be told to fail
type fakeDevice struct {
	mu       sync.Mutex
	starts   int
	stops    int
	closes   int
	running  bool
	startErr error
	stopErr  error
}

func (d *fakeDevice) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.starts++
	if d.startErr != nil {
		return d.startErr
	}
	d.running = true
	return nil
}

func (d *fakeDevice) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stops++
	if d.stopErr != nil {
		return d.stopErr
	}
	d.running = false
	return nil
}

func (d *fakeDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closes++
	return nil
}

func (d *fakeDevice) counts() (starts, stops, closes int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.starts, d.stops, d.closes
}

func factoryFor(d *fakeDevice) DeviceFactory {
	return func() (Device, error) { return d, nil }
}

// fakeRecorder captures device operations
type fakeRecorder struct {
	mu      sync.Mutex
	ops     map[string]int
	running bool
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{ops: make(map[string]int)}
}

func (r *fakeRecorder) RecordDeviceOperation(op, status string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops[op+"/"+status]++
}

func (r *fakeRecorder) SetDeviceRunning(running bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.running = running
}

func (r *fakeRecorder) count(key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ops[key]
}

func newHost(t *testing.T, visible bool) *host.Activity {
	t.Helper()
	h := host.NewActivity(host.Config{Name: t.Name(), InitiallyVisible: visible})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		assert.NoError(t, h.Close(ctx))
	})
	return h
}

func newReadyAdapter(t *testing.T, h *host.Activity, d *fakeDevice, opts ...Option) *Adapter {
	t.Helper()
	a, err := New(h, factoryFor(d), opts...)
	require.NoError(t, err)
	require.NoError(t, a.Wait(t.Context()))
	return a
}

// onUI runs fn on the host UI context and waits for it
func onUI(t *testing.T, h *host.Activity, fn func()) {
	t.Helper()
	require.NoError(t, h.RunOnUISync(t.Context(), fn))
}

func TestVisibleAtConstructionStartsWithoutEvent(t *testing.T) {
	t.Parallel()

	h := newHost(t, true)
	d := &fakeDevice{}
	a := newReadyAdapter(t, h, d)

	starts, stops, _ := d.counts()
	assert.Equal(t, 1, starts, "device started exactly once")
	assert.Zero(t, stops)
	assert.Equal(t, Started, a.State())
	assert.True(t, a.HasDevice())
	assert.True(t, a.Registered())
}

func TestHiddenAtConstructionWaitsForFirstVisible(t *testing.T) {
	t.Parallel()

	h := newHost(t, false)
	d := &fakeDevice{}
	a := newReadyAdapter(t, h, d)

	starts, _, _ := d.counts()
	assert.Zero(t, starts)
	assert.Equal(t, Stopped, a.State())

	require.NoError(t, h.SetVisible(true))
	onUI(t, h, func() {})

	starts, _, _ = d.counts()
	assert.Equal(t, 1, starts, "device started exactly once")
	assert.Equal(t, Started, a.State())
}

func TestRepeatedVisibleThenHidden(t *testing.T) {
	t.Parallel()

	h := newHost(t, false)
	d := &fakeDevice{}
	a := newReadyAdapter(t, h, d)

	onUI(t, h, func() {
		a.OnVisible()
		a.OnVisible()
		a.OnHidden()
	})

	starts, stops, _ := d.counts()
	assert.GreaterOrEqual(t, starts, 1)
	assert.Equal(t, 1, stops)
	assert.Equal(t, Stopped, a.State())
}

func TestFinalStateFollowsLastEvent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		visible  bool
		events   string // v = OnVisible, h = OnHidden
		expected State
	}{
		{"no events, hidden host", false, "", Stopped},
		{"no events, visible host", true, "", Started},
		{"single visible", false, "v", Started},
		{"single hidden on visible host", true, "h", Stopped},
		{"toggle ends visible", false, "vhvhv", Started},
		{"toggle ends hidden", true, "hvhvh", Stopped},
		{"duplicates ends visible", false, "hhvv", Started},
		{"duplicates ends hidden", true, "vvhh", Stopped},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := newHost(t, tt.visible)
			a := newReadyAdapter(t, h, &fakeDevice{})

			onUI(t, h, func() {
				for _, e := range tt.events {
					if e == 'v' {
						a.OnVisible()
					} else {
						a.OnHidden()
					}
				}
			})

			assert.Equal(t, tt.expected, a.State())
		})
	}
}

func TestHostDrivenTransitions(t *testing.T) {
	t.Parallel()

	h := newHost(t, false)
	d := &fakeDevice{}
	a := newReadyAdapter(t, h, d)

	for i := range 5 {
		require.NoError(t, h.SetVisible(i%2 == 0))
	}
	onUI(t, h, func() {})

	starts, stops, _ := d.counts()
	assert.Equal(t, 3, starts)
	assert.Equal(t, 2, stops)
	assert.Equal(t, Started, a.State())
}

func TestNewRejectsUnavailableHost(t *testing.T) {
	t.Parallel()

	_, err := New(nil, factoryFor(&fakeDevice{}))
	require.ErrorIs(t, err, ErrHostUnavailable)

	h := host.NewActivity(host.Config{})
	require.NoError(t, h.Close(t.Context()))

	_, err = New(h, factoryFor(&fakeDevice{}))
	require.ErrorIs(t, err, ErrHostUnavailable)
	assert.True(t, errors.IsCategory(err, errors.CategoryHostUnavailable))
}

func TestNewRejectsNilFactory(t *testing.T) {
	t.Parallel()

	_, err := New(newHost(t, false), nil)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
}

func TestNewReturnsBeforeInitialization(t *testing.T) {
	t.Parallel()

	h := newHost(t, true)
	release := make(chan struct{})
	require.NoError(t, h.RunOnUI(func() { <-release }))

	d := &fakeDevice{}
	a, err := New(h, factoryFor(d))
	require.NoError(t, err)

	select {
	case <-a.Ready():
		t.Fatal("initialization ran while the UI context was busy")
	default:
	}
	assert.False(t, a.HasDevice())

	close(release)
	require.NoError(t, a.Wait(t.Context()))
	assert.Equal(t, Started, a.State())
}

func TestUnregisterAfterHostTeardown(t *testing.T) {
	t.Parallel()

	h := host.NewActivity(host.Config{InitiallyVisible: true})
	a := newReadyAdapter(t, h, &fakeDevice{})

	require.NoError(t, h.Close(t.Context()))

	assert.NotPanics(t, a.Unregister)
	assert.NotPanics(t, a.Unregister)
}

func TestUnregisterTwice(t *testing.T) {
	t.Parallel()

	h := newHost(t, false)
	a := newReadyAdapter(t, h, &fakeDevice{})
	require.Equal(t, 1, h.Listeners())

	a.Unregister()
	a.Unregister()

	assert.Zero(t, h.Listeners())
	assert.False(t, a.Registered())
}

func TestUnregisterBeforeInitializationSkipsRegistration(t *testing.T) {
	t.Parallel()

	h := newHost(t, true)
	release := make(chan struct{})
	require.NoError(t, h.RunOnUI(func() { <-release }))

	d := &fakeDevice{}
	a, err := New(h, factoryFor(d))
	require.NoError(t, err)
	a.Unregister()
	close(release)

	require.NoError(t, a.Wait(t.Context()))
	assert.Zero(t, h.Listeners())
	assert.False(t, a.HasDevice())
	starts, _, _ := d.counts()
	assert.Zero(t, starts)
}

func TestUnregisteredAdapterIgnoresHost(t *testing.T) {
	t.Parallel()

	h := newHost(t, false)
	d := &fakeDevice{}
	a := newReadyAdapter(t, h, d)
	a.Unregister()

	require.NoError(t, h.SetVisible(true))
	onUI(t, h, func() {})

	starts, _, _ := d.counts()
	assert.Zero(t, starts)
	assert.Equal(t, Stopped, a.State())
}

// gateListener blocks the UI context inside OnVisible until released
type gateListener struct {
	entered chan struct{}
	release chan struct{}
}

func (g *gateListener) OnVisible() {
	close(g.entered)
	<-g.release
}

func (g *gateListener) OnHidden() {}

func TestUnregisterDuringDispatchSkipsStart(t *testing.T) {
	t.Parallel()

	h := newHost(t, false)
	gate := &gateListener{entered: make(chan struct{}), release: make(chan struct{})}
	require.NoError(t, h.RegisterListener(gate))

	d := &fakeDevice{}
	a := newReadyAdapter(t, h, d)

	// The adapter is already in the dispatch snapshot when it unregisters.
	require.NoError(t, h.SetVisible(true))
	<-gate.entered
	a.Unregister()
	close(gate.release)
	onUI(t, h, func() {})

	starts, _, _ := d.counts()
	assert.Zero(t, starts)
	assert.Equal(t, Stopped, a.State())
	assert.False(t, a.Registered())
}

func TestFactoryFailure(t *testing.T) {
	t.Parallel()

	h := newHost(t, true)
	rec := newFakeRecorder()
	a, err := New(h, func() (Device, error) { return nil, fmt.Errorf("no output device") }, WithRecorder(rec))
	require.NoError(t, err)

	err = a.Wait(t.Context())
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryAudioDevice))
	assert.False(t, a.HasDevice())
	assert.Zero(t, h.Listeners())
	assert.Equal(t, 1, rec.count("create/error"))

	onUI(t, h, a.OnVisible)
	assert.Equal(t, Stopped, a.State())
}

func TestFactoryPanicIsReportedByWait(t *testing.T) {
	t.Parallel()

	h := newHost(t, true)
	rec := newFakeRecorder()
	a, err := New(h, func() (Device, error) { panic("driver crashed") }, WithRecorder(rec))
	require.NoError(t, err)

	err = a.Wait(t.Context())
	require.Error(t, err, "a panicking factory must not look like a successful initialization")
	assert.True(t, errors.IsCategory(err, errors.CategoryAudioDevice))
	assert.Contains(t, err.Error(), "driver crashed")
	assert.False(t, a.HasDevice())
	assert.False(t, a.Registered())
	assert.Zero(t, h.Listeners())
	assert.Equal(t, 1, rec.count("create/error"))
	assert.True(t, h.Alive(), "host keeps running")
}

func TestStartFailureKeepsStateStopped(t *testing.T) {
	t.Parallel()

	h := newHost(t, false)
	rec := newFakeRecorder()
	d := &fakeDevice{startErr: fmt.Errorf("device busy")}
	a := newReadyAdapter(t, h, d, WithRecorder(rec))

	require.NoError(t, h.SetVisible(true))
	onUI(t, h, func() {})

	assert.Equal(t, Stopped, a.State())
	require.Error(t, a.LastError())
	assert.Contains(t, a.LastError().Error(), "device busy")
	assert.True(t, errors.IsCategory(a.LastError(), errors.CategoryAudioDevice))
	assert.Equal(t, 1, rec.count("start/error"))

	d.mu.Lock()
	d.startErr = nil
	d.mu.Unlock()

	onUI(t, h, a.OnVisible)
	assert.Equal(t, Started, a.State())
	assert.Equal(t, 1, rec.count("start/ok"))
}

func TestStopFailureKeepsStateStarted(t *testing.T) {
	t.Parallel()

	h := newHost(t, true)
	d := &fakeDevice{stopErr: fmt.Errorf("stop timed out")}
	a := newReadyAdapter(t, h, d)

	require.NoError(t, h.SetVisible(false))
	onUI(t, h, func() {})

	assert.Equal(t, Started, a.State())
	require.Error(t, a.LastError())
}

func TestCloseReleasesDevice(t *testing.T) {
	t.Parallel()

	h := newHost(t, true)
	rec := newFakeRecorder()
	d := &fakeDevice{}
	a := newReadyAdapter(t, h, d, WithRecorder(rec))

	require.NoError(t, a.Close(t.Context()))

	starts, stops, closes := d.counts()
	assert.Equal(t, 1, starts)
	assert.Equal(t, 1, stops)
	assert.Equal(t, 1, closes)
	assert.Equal(t, Stopped, a.State())
	assert.False(t, a.HasDevice())
	assert.Zero(t, h.Listeners())
	assert.False(t, rec.running)

	require.NoError(t, a.Close(t.Context()), "second close is a no-op")
	_, _, closes = d.counts()
	assert.Equal(t, 1, closes)
}

func TestCloseAfterHostTeardownRunsInline(t *testing.T) {
	t.Parallel()

	h := host.NewActivity(host.Config{InitiallyVisible: true})
	d := &fakeDevice{}
	a := newReadyAdapter(t, h, d)

	require.NoError(t, h.Close(t.Context()))
	assert.Equal(t, Stopped, a.State(), "teardown hides the host first")

	require.NoError(t, a.Close(t.Context()))
	_, _, closes := d.counts()
	assert.Equal(t, 1, closes)
}

func TestCloseFromUITaskReturnsContextError(t *testing.T) {
	t.Parallel()

	h := newHost(t, true)
	d := &fakeDevice{}
	a := newReadyAdapter(t, h, d)

	var closeErr error
	onUI(t, h, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		closeErr = a.Close(ctx)
	})
	require.ErrorIs(t, closeErr, context.DeadlineExceeded)

	// The release queued behind the calling task still runs.
	onUI(t, h, func() {})
	_, _, closes := d.counts()
	assert.Equal(t, 1, closes)
	assert.False(t, a.HasDevice())
}

func TestIDIsUniqueAndOverridable(t *testing.T) {
	t.Parallel()

	h := newHost(t, false)
	a1 := newReadyAdapter(t, h, &fakeDevice{})
	a2 := newReadyAdapter(t, h, &fakeDevice{})
	a3 := newReadyAdapter(t, h, &fakeDevice{}, WithID("speaker"))

	assert.NotEmpty(t, a1.ID())
	assert.NotEqual(t, a1.ID(), a2.ID())
	assert.Equal(t, "speaker", a3.ID())
}

func TestConcurrentAdaptersAndVisibility(t *testing.T) {
	t.Parallel()

	h := newHost(t, false)

	const n = 20
	adapters := make([]*Adapter, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Go(func() {
			a, err := New(h, factoryFor(&fakeDevice{}))
			if assert.NoError(t, err) {
				adapters[i] = a
			}
		})
	}
	for i := range 10 {
		wg.Go(func() { _ = h.SetVisible(i%2 == 1) })
	}
	wg.Wait()

	require.NoError(t, h.SetVisible(true))
	onUI(t, h, func() {})

	for _, a := range adapters {
		require.NotNil(t, a)
		require.NoError(t, a.Wait(t.Context()))
		assert.Equal(t, Started, a.State())
	}

	for _, a := range adapters {
		wg.Go(a.Unregister)
	}
	wg.Wait()
	assert.Zero(t, h.Listeners())
}

func TestStateString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "stopped", Stopped.String())
	assert.Equal(t, "started", Started.String())
	assert.Equal(t, "unknown", State(7).String())
}
