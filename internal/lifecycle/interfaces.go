package lifecycle

import (
	"time"

	"github.com/swordlegend/dava.engine/internal/host"
)

// Host is the activity an adapter binds to. *host.Activity satisfies it.
type Host interface {
	// IsVisible reports the current visibility. Only meaningful on the UI context.
	IsVisible() bool
	// RunOnUI schedules task on the UI context without waiting for it.
	RunOnUI(task func()) error
	RegisterListener(l host.Listener) error
	UnregisterListener(l host.Listener)
	// Alive is false once the host has been torn down.
	Alive() bool
}

// Device is the audio device handle driven by the adapter.
type Device interface {
	Start() error
	Stop() error
	Close() error
}

// DeviceFactory creates the device during deferred initialization.
type DeviceFactory func() (Device, error)

// Recorder receives device operation outcomes for metrics.
type Recorder interface {
	RecordDeviceOperation(op, status string, elapsed time.Duration)
	SetDeviceRunning(running bool)
}
