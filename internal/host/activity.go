// Package host provides the activity host an audio lifecycle adapter binds to:
// a visible/hidden lifecycle, a listener registry and a UI-affine task queue.
//
// All listener callbacks and all visibility changes happen on the host's
// looper goroutine, the "UI context". Other goroutines only post work to it.
package host

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/swordlegend/dava.engine/internal/errors"
	"github.com/swordlegend/dava.engine/internal/logger"
)

// Listener receives lifecycle transitions of a host activity.
type Listener interface {
	OnVisible()
	OnHidden()
}

// Recorder receives host events for metrics. Implementations must be safe
// for concurrent use.
type Recorder interface {
	RecordVisibilityChange(visible bool)
	SetListeners(n int)
	RecordUITask(status string)
}

// Config configures a new Activity.
type Config struct {
	Name             string
	InitiallyVisible bool
	Logger           logger.Logger
	Recorder         Recorder
}

// Activity is a host with a visible/hidden lifecycle. The zero value is not
// usable; construct with NewActivity.
type Activity struct {
	name     string
	looper   *Looper
	log      logger.Logger
	recorder Recorder

	closing atomic.Bool

	mu        sync.Mutex
	visible   bool
	torndown  bool
	listeners []Listener
}

// NewActivity creates an activity and starts its UI looper.
func NewActivity(cfg Config) *Activity {
	log := cfg.Logger
	if log == nil {
		log = logger.Global().Module("host")
	}
	name := cfg.Name
	if name == "" {
		name = "main"
	}
	log = log.With(logger.String("activity", name))

	return &Activity{
		name:     name,
		looper:   NewLooper(log, cfg.Recorder),
		log:      log,
		recorder: cfg.Recorder,
		visible:  cfg.InitiallyVisible,
	}
}

// Name returns the activity name.
func (a *Activity) Name() string {
	return a.name
}

// RunOnUI schedules task on the UI context and returns immediately.
func (a *Activity) RunOnUI(task func()) error {
	return a.looper.Post(task)
}

// RunOnUISync runs task on the UI context and waits for it to finish.
// It must not be called from a UI task.
func (a *Activity) RunOnUISync(ctx context.Context, task func()) error {
	done := make(chan struct{})
	if err := a.looper.Post(func() {
		defer close(done)
		task()
	}); err != nil {
		return err
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsVisible reports the visibility last applied on the UI context.
func (a *Activity) IsVisible() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.visible
}

// SetVisible schedules a visibility transition. Listeners are notified only
// when the visibility actually changes.
func (a *Activity) SetVisible(visible bool) error {
	if a.closing.Load() {
		return ErrHostClosed
	}
	return a.looper.Post(func() { a.applyVisibility(visible) })
}

// applyVisibility runs on the UI context. Listeners are called outside the
// lock from a snapshot, so they may register or unregister themselves.
// Transitions queued before Close but run after teardown are dropped.
func (a *Activity) applyVisibility(visible bool) {
	a.mu.Lock()
	if a.torndown || a.visible == visible {
		a.mu.Unlock()
		return
	}
	a.visible = visible
	snapshot := slices.Clone(a.listeners)
	a.mu.Unlock()

	a.log.Info("visibility changed",
		logger.Bool("visible", visible),
		logger.Int("listeners", len(snapshot)))
	if a.recorder != nil {
		a.recorder.RecordVisibilityChange(visible)
	}

	for _, l := range snapshot {
		if visible {
			l.OnVisible()
		} else {
			l.OnHidden()
		}
	}
}

// RegisterListener adds l to the listener set. Registering the same listener
// twice is ignored.
func (a *Activity) RegisterListener(l Listener) error {
	if l == nil {
		return errors.Newf("nil listener").
			Component("host").
			Category(errors.CategoryValidation).
			Build()
	}

	a.mu.Lock()
	if a.torndown {
		a.mu.Unlock()
		return ErrHostClosed
	}
	if slices.Contains(a.listeners, l) {
		a.mu.Unlock()
		return nil
	}
	a.listeners = append(a.listeners, l)
	n := len(a.listeners)
	a.mu.Unlock()

	a.log.Debug("listener registered", logger.Int("listeners", n))
	if a.recorder != nil {
		a.recorder.SetListeners(n)
	}
	return nil
}

// UnregisterListener removes l. Unknown listeners and torn down hosts are
// ignored.
func (a *Activity) UnregisterListener(l Listener) {
	a.mu.Lock()
	idx := slices.Index(a.listeners, l)
	if a.torndown || idx < 0 {
		a.mu.Unlock()
		return
	}
	a.listeners = slices.Delete(a.listeners, idx, idx+1)
	n := len(a.listeners)
	a.mu.Unlock()

	a.log.Debug("listener unregistered", logger.Int("listeners", n))
	if a.recorder != nil {
		a.recorder.SetListeners(n)
	}
}

// Listeners returns the number of registered listeners.
func (a *Activity) Listeners() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.listeners)
}

// Alive reports whether the host still accepts work. It turns false as soon
// as Close starts.
func (a *Activity) Alive() bool {
	return !a.closing.Load()
}

// Close hides the activity, notifying listeners, drops all listeners and
// stops the UI looper after the queued tasks ran. Calling Close again only
// waits for the looper.
func (a *Activity) Close(ctx context.Context) error {
	if a.closing.CompareAndSwap(false, true) {
		err := a.looper.Post(func() {
			a.applyVisibility(false)

			a.mu.Lock()
			a.torndown = true
			a.listeners = nil
			a.mu.Unlock()

			if a.recorder != nil {
				a.recorder.SetListeners(0)
			}
		})
		if err != nil {
			a.log.Warn("teardown task not scheduled", logger.Error(err))
		}
		a.looper.Quit()
	}

	if err := a.looper.Wait(ctx); err != nil {
		return errors.New(err).
			Component("host").
			Category(errors.CategoryTimeout).
			Context("operation", "close_activity").
			Build()
	}

	a.log.Info("activity closed")
	return nil
}
