package device

import (
	"sync"

	"github.com/swordlegend/dava.engine/internal/errors"
)

// Null is an in-memory device for headless runs and tests. Start and Stop are
// idempotent; every call is counted.
type Null struct {
	mu      sync.Mutex
	name    string
	running bool
	closed  bool
	starts  int
	stops   int
}

// NewNull creates a stopped null device.
func NewNull(name string) *Null {
	if name == "" {
		name = "null"
	}
	return &Null{name: name}
}

// Start marks the device running.
func (n *Null) Start() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return errClosed(n.name)
	}
	n.starts++
	n.running = true
	return nil
}

// Stop marks the device stopped.
func (n *Null) Stop() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return errClosed(n.name)
	}
	n.stops++
	n.running = false
	return nil
}

// Close releases the device. Further Start and Stop calls fail.
func (n *Null) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.closed = true
	n.running = false
	return nil
}

// Running reports whether the device is started.
func (n *Null) Running() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.running
}

// Counts returns how many times Start and Stop were called.
func (n *Null) Counts() (starts, stops int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.starts, n.stops
}

// Name returns the device name.
func (n *Null) Name() string {
	return n.name
}

func errClosed(name string) error {
	return errors.New(nil).
		Component("audio.device").
		Category(errors.CategoryState).
		Context("device_name", name).
		Context("error", "device closed").
		Build()
}
