package device

import (
	"github.com/swordlegend/dava.engine/internal/audio/clip"
	"github.com/swordlegend/dava.engine/internal/conf"
	"github.com/swordlegend/dava.engine/internal/errors"
	"github.com/swordlegend/dava.engine/internal/lifecycle"
	"github.com/swordlegend/dava.engine/internal/logger"
)

// ringPeriods is how many device periods the clip ring holds
const ringPeriods = 4

// NewFactory returns a device factory for the configured backend. The clip,
// if any, is decoded once here and shared by every device the factory makes.
func NewFactory(settings *conf.AudioSettings, log logger.Logger) (lifecycle.DeviceFactory, error) {
	if settings == nil {
		return nil, errors.Newf("audio settings are required").
			Component("audio.device").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if log == nil {
		log = getLogger()
	} else {
		log = log.Module("audio.device")
	}

	source, err := newClipSource(settings, log)
	if err != nil {
		return nil, err
	}

	switch settings.Backend {
	case conf.BackendNone:
		return func() (lifecycle.Device, error) {
			log.Debug("creating null device")
			return NewNull(settings.Device), nil
		}, nil

	case conf.BackendMalgo, "":
		cfg := PlaybackConfig{
			DeviceName:   settings.Device,
			SampleRate:   uint32(settings.SampleRate),
			Channels:     uint32(settings.Channels),
			BufferFrames: uint32(settings.BufferFrames),
		}
		return func() (lifecycle.Device, error) {
			return NewPlayback(cfg, source, log)
		}, nil

	default:
		return nil, errors.Newf("unknown audio backend: %s", settings.Backend).
			Component("audio.device").
			Category(errors.CategoryConfiguration).
			Context("backend", settings.Backend).
			Build()
	}
}

// newClipSource loads the configured clip into a looping stream, or returns a
// nil Source for silence.
func newClipSource(settings *conf.AudioSettings, log logger.Logger) (Source, error) {
	if settings.Clip.Path == "" {
		return nil, nil
	}

	c, err := clip.Load(settings.Clip.Path)
	if err != nil {
		return nil, err
	}
	if settings.SampleRate > 0 && c.SampleRate != settings.SampleRate {
		log.Warn("clip sample rate differs from device rate, pitch will shift",
			logger.Int("clip_rate", c.SampleRate),
			logger.Int("device_rate", settings.SampleRate))
	}
	c = c.Convert(settings.Channels)

	ringFrames := settings.BufferFrames * ringPeriods
	log.Info("clip loaded",
		logger.String("path", settings.Clip.Path),
		logger.Duration("duration", c.Duration()),
		logger.Int("channels", c.Channels))

	return clip.NewStream(c, ringFrames, settings.Clip.Gain), nil
}
