// Package lifecycle binds an audio device to the visible/hidden lifecycle of
// a host activity.
//
// An Adapter starts its device when the host becomes visible and stops it when
// the host is hidden. Device creation and listener registration are deferred to
// the host's UI context. If the host is already visible when that deferred step
// runs, the visible transition has been missed, so the adapter starts the
// device right away instead of waiting for an event that will not come.
//
//	adapter, err := lifecycle.New(activity, factory)
//	if err != nil {
//	    return err
//	}
//	defer adapter.Close(ctx)
//
// Device failures are logged, counted and kept as LastError; the adapter state
// only changes when the device call succeeds.
package lifecycle

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/swordlegend/dava.engine/internal/errors"
	"github.com/swordlegend/dava.engine/internal/logger"
)

// Device operations reported to the Recorder.
const (
	OpCreate = "create"
	OpStart  = "start"
	OpStop   = "stop"
	OpClose  = "close"

	StatusOK    = "ok"
	StatusError = "error"
)

// ErrHostUnavailable matches, via errors.Is, every error returned for a nil or
// torn down host.
var ErrHostUnavailable = errors.New(nil).
	Component("lifecycle").
	Category(errors.CategoryHostUnavailable).
	Context("error", "host unavailable").
	Build()

// Adapter forwards host visibility to an audio device.
type Adapter struct {
	id       string
	host     Host
	factory  DeviceFactory
	log      logger.Logger
	recorder Recorder

	ready   chan struct{}
	initErr error

	// mu guards everything below and serialises device calls. It is held
	// across host registration so Unregister cannot interleave with the
	// deferred initialization.
	mu         sync.Mutex
	device     Device
	state      State
	released   bool
	registered bool
	lastErr    error
}

// New creates an adapter bound to h and schedules its initialization on the
// host's UI context. It returns before the device exists; use Wait or Ready
// to observe completion.
func New(h Host, factory DeviceFactory, opts ...Option) (*Adapter, error) {
	if h == nil {
		return nil, hostUnavailable("nil host")
	}
	if !h.Alive() {
		return nil, hostUnavailable("host torn down")
	}
	if factory == nil {
		return nil, errors.Newf("device factory is required").
			Component("lifecycle").
			Category(errors.CategoryValidation).
			Build()
	}

	a := &Adapter{
		id:      uuid.New().String(),
		host:    h,
		factory: factory,
		ready:   make(chan struct{}),
		state:   Stopped,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.log == nil {
		a.log = logger.Global().Module("lifecycle")
	} else {
		a.log = a.log.Module("lifecycle")
	}
	a.log = a.log.With(logger.String("adapter_id", a.id))

	if err := h.RunOnUI(a.initialize); err != nil {
		return nil, errors.New(err).
			Component("lifecycle").
			Category(errors.CategoryHostUnavailable).
			Context("operation", "schedule_init").
			Build()
	}

	a.log.Debug("adapter created, initialization scheduled")
	return a, nil
}

func hostUnavailable(reason string) error {
	return errors.Newf("host unavailable: %s", reason).
		Component("lifecycle").
		Category(errors.CategoryHostUnavailable).
		Context("reason", reason).
		Build()
}

// initialize runs on the UI context: create the device, register as listener
// and replay a visible transition that happened before registration.
func (a *Adapter) initialize() {
	defer close(a.ready)

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.released {
		a.log.Debug("adapter released before initialization, skipping registration")
		return
	}

	var dev Device
	err := a.deviceOp(OpCreate, func() error {
		var err error
		dev, err = a.factory()
		return err
	})
	if err != nil {
		a.initErr = err
		return
	}
	a.device = dev

	if err := a.host.RegisterListener(a); err != nil {
		a.initErr = errors.New(err).
			Component("lifecycle").
			Category(errors.CategoryHostUnavailable).
			Context("operation", "register_listener").
			Build()
		a.log.Warn("listener registration failed, releasing device", logger.Error(err))
		_ = a.closeDeviceLocked()
		return
	}
	a.registered = true

	if a.host.IsVisible() {
		a.log.Info("host already visible at registration, starting device")
		a.startLocked()
	}
}

// OnVisible starts the device. Called by the host on the UI context.
func (a *Adapter) OnVisible() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.released || a.device == nil {
		a.log.Debug("visible event after release or without device, ignoring")
		return
	}
	a.startLocked()
}

// OnHidden stops the device. Called by the host on the UI context.
func (a *Adapter) OnHidden() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.released || a.device == nil {
		a.log.Debug("hidden event after release or without device, ignoring")
		return
	}
	a.stopLocked()
}

func (a *Adapter) startLocked() {
	if err := a.deviceOp(OpStart, a.device.Start); err != nil {
		return
	}
	a.setStateLocked(Started)
}

func (a *Adapter) stopLocked() {
	if err := a.deviceOp(OpStop, a.device.Stop); err != nil {
		return
	}
	a.setStateLocked(Stopped)
}

func (a *Adapter) setStateLocked(s State) {
	if a.state != s {
		a.log.Info("device state changed",
			logger.String("from", a.state.String()),
			logger.String("to", s.String()))
	}
	a.state = s
	if a.recorder != nil {
		a.recorder.SetDeviceRunning(s == Started)
	}
}

// deviceOp runs one device call, recording its outcome. Must hold mu.
func (a *Adapter) deviceOp(op string, fn func() error) error {
	start := time.Now()
	err := callRecovered(fn)
	elapsed := time.Since(start)

	status := StatusOK
	if err != nil {
		status = StatusError
		err = errors.New(err).
			Component("lifecycle").
			Category(errors.CategoryAudioDevice).
			Context("operation", op+"_device").
			Context("adapter_id", a.id).
			Build()
		a.lastErr = err
		a.log.Error("device operation failed",
			logger.String("operation", op),
			logger.Duration("elapsed", elapsed),
			logger.Error(err))
	}

	if a.recorder != nil {
		a.recorder.RecordDeviceOperation(op, status, elapsed)
	}
	return err
}

// callRecovered runs fn and turns a panic into an error, so a misbehaving
// device cannot leave initialization without a recorded failure.
func callRecovered(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Newf("device call panicked: %v", r).
				Component("lifecycle").
				Category(errors.CategoryAudioDevice).
				Build()
		}
	}()
	return fn()
}

// Unregister removes the adapter from the host's listener set. It is a no-op
// when the host is torn down and safe to call more than once. Called before
// initialization ran, it makes the deferred step skip registration.
func (a *Adapter) Unregister() {
	a.mu.Lock()
	a.released = true
	registered := a.registered
	a.registered = false
	a.mu.Unlock()

	if !registered || !a.host.Alive() {
		return
	}
	a.host.UnregisterListener(a)
	a.log.Debug("adapter unregistered")
}

// Close unregisters the adapter, stops the device and releases it. The
// release runs on the UI context while the host is alive, inline otherwise.
// It returns the error of the release itself, not earlier device failures.
//
// Close must not be called from a UI task: the release is queued behind the
// caller, so Close blocks until ctx is done and returns ctx.Err(). The queued
// release still runs once the calling task returns.
func (a *Adapter) Close(ctx context.Context) error {
	a.Unregister()

	var closeErr error
	done := make(chan struct{})
	release := func() {
		defer close(done)
		a.mu.Lock()
		defer a.mu.Unlock()
		closeErr = a.closeDeviceLocked()
	}

	if a.host.Alive() && a.host.RunOnUI(release) == nil {
		select {
		case <-done:
			return closeErr
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	// Initialization was posted before teardown, so it still runs while the
	// host drains its queue.
	select {
	case <-a.ready:
	case <-ctx.Done():
		return ctx.Err()
	}
	release()
	return closeErr
}

// closeDeviceLocked stops and releases the device. Must hold mu.
func (a *Adapter) closeDeviceLocked() error {
	if a.device == nil {
		return nil
	}

	var errs []error
	if a.state == Started {
		errs = append(errs, a.deviceOp(OpStop, a.device.Stop))
	}
	if err := a.deviceOp(OpClose, a.device.Close); err != nil {
		errs = append(errs, err)
	} else {
		a.log.Debug("device released")
	}

	a.device = nil
	a.state = Stopped
	if a.recorder != nil {
		a.recorder.SetDeviceRunning(false)
	}
	return errors.Join(errs...)
}

// Wait blocks until deferred initialization finished and returns its error.
// An adapter released before initialization returns nil.
func (a *Adapter) Wait(ctx context.Context) error {
	select {
	case <-a.ready:
		return a.initErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Ready is closed when deferred initialization has finished.
func (a *Adapter) Ready() <-chan struct{} {
	return a.ready
}

// State returns the current device state.
func (a *Adapter) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// LastError returns the most recent device failure, or nil.
func (a *Adapter) LastError() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastErr
}

// HasDevice reports whether the device handle exists.
func (a *Adapter) HasDevice() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.device != nil
}

// Registered reports whether the adapter is currently a host listener.
func (a *Adapter) Registered() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.registered
}

// ID returns the adapter's unique identifier.
func (a *Adapter) ID() string {
	return a.id
}
