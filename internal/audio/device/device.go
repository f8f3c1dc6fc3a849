// Package device provides the audio output devices driven by the lifecycle
// adapter: a malgo playback device and an in-memory null device.
package device

import (
	"github.com/swordlegend/dava.engine/internal/logger"
)

// Source fills playback buffers. Fill must write exactly len(dst) bytes and
// must not block; it runs on the audio callback thread.
type Source interface {
	Fill(dst []byte)
}

// Info describes an output device.
type Info struct {
	Index     int
	Name      string
	ID        string
	IsDefault bool
}

// Package level logger, fetched lazily so it picks up the configured logger
func getLogger() logger.Logger {
	return logger.Global().Module("audio.device")
}
