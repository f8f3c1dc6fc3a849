package lifecycle

import "github.com/swordlegend/dava.engine/internal/logger"

// Option is a functional option for configuring the Adapter.
type Option func(*Adapter)

// WithLogger sets the logger the adapter scopes itself under.
func WithLogger(l logger.Logger) Option {
	return func(a *Adapter) {
		if l != nil {
			a.log = l
		}
	}
}

// WithRecorder sets the metrics recorder for device operations.
func WithRecorder(r Recorder) Option {
	return func(a *Adapter) {
		a.recorder = r
	}
}

// WithID overrides the generated adapter ID.
func WithID(id string) Option {
	return func(a *Adapter) {
		if id != "" {
			a.id = id
		}
	}
}
