package device

import (
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"

	"github.com/swordlegend/dava.engine/internal/errors"
	"github.com/swordlegend/dava.engine/internal/logger"
)

// PlaybackConfig configures a malgo playback device.
type PlaybackConfig struct {
	DeviceName   string // empty selects the default device
	SampleRate   uint32
	Channels     uint32
	BufferFrames uint32 // 0 lets the backend choose
}

// Playback is a malgo playback device. The data callback pulls S16LE audio
// from its Source, or plays silence when there is none.
type Playback struct {
	name   string
	config PlaybackConfig
	source Source
	log    logger.Logger

	mu     sync.Mutex
	ctx    *malgo.AllocatedContext
	device *malgo.Device

	frames atomic.Uint64 // frames requested by the backend
}

// NewPlayback initialises the malgo context and device. The device is
// created stopped.
func NewPlayback(cfg PlaybackConfig, source Source, log logger.Logger) (*Playback, error) {
	if log == nil {
		log = getLogger()
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 48000
	}
	if cfg.Channels == 0 {
		cfg.Channels = 2
	}

	ctx, err := initContext()
	if err != nil {
		return nil, err
	}

	infos, err := ctx.Devices(malgo.Playback)
	if err != nil {
		releaseContext(ctx)
		return nil, errors.New(err).
			Component("audio.device").
			Category(errors.CategoryAudioDevice).
			Context("operation", "enumerate_devices").
			Build()
	}

	info, err := SelectDevice(infos, cfg.DeviceName)
	if err != nil {
		releaseContext(ctx)
		return nil, err
	}

	p := &Playback{
		name:   info.Name(),
		config: cfg,
		source: source,
		log:    log.With(logger.String("device_name", info.Name())),
		ctx:    ctx,
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatS16
	deviceConfig.Playback.Channels = cfg.Channels
	deviceConfig.Playback.DeviceID = info.ID.Pointer()
	deviceConfig.SampleRate = cfg.SampleRate
	deviceConfig.PeriodSizeInFrames = cfg.BufferFrames
	deviceConfig.Alsa.NoMMap = 1

	device, err := malgo.InitDevice(ctx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: p.onData,
		Stop: p.onStop,
	})
	if err != nil {
		releaseContext(ctx)
		return nil, errors.New(err).
			Component("audio.device").
			Category(errors.CategoryAudioDevice).
			Context("operation", "init_device").
			Context("device_name", info.Name()).
			Build()
	}
	p.device = device

	p.log.Info("playback device initialized",
		logger.Uint32("sample_rate", device.SampleRate()),
		logger.Uint32("channels", cfg.Channels))
	return p, nil
}

// Start starts playback. Starting a running device is a no-op.
func (p *Playback) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.device == nil {
		return errClosed(p.name)
	}
	if p.device.IsStarted() {
		return nil
	}
	if err := p.device.Start(); err != nil {
		return errors.New(err).
			Component("audio.device").
			Category(errors.CategoryAudioDevice).
			Context("operation", "start_device").
			Context("device_name", p.name).
			Build()
	}
	p.log.Debug("playback started")
	return nil
}

// Stop stops playback. Stopping a stopped device is a no-op.
func (p *Playback) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.device == nil {
		return errClosed(p.name)
	}
	if !p.device.IsStarted() {
		return nil
	}
	if err := p.device.Stop(); err != nil {
		return errors.New(err).
			Component("audio.device").
			Category(errors.CategoryAudioDevice).
			Context("operation", "stop_device").
			Context("device_name", p.name).
			Build()
	}
	p.log.Debug("playback stopped", logger.Int64("frames", int64(p.frames.Load())))
	return nil
}

// Close uninitialises the device and the malgo context.
func (p *Playback) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.device != nil {
		p.device.Uninit()
		p.device = nil
	}
	if p.ctx != nil {
		releaseContext(p.ctx)
		p.ctx = nil
	}
	return nil
}

// Running reports whether the device is started.
func (p *Playback) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.device != nil && p.device.IsStarted()
}

// Name returns the selected device name.
func (p *Playback) Name() string {
	return p.name
}

// onData is the malgo data callback
func (p *Playback) onData(out, _ []byte, frameCount uint32) {
	p.frames.Add(uint64(frameCount))
	if p.source == nil {
		clear(out)
		return
	}
	p.source.Fill(out)
}

// onStop is called by malgo when the device stops, including unexpectedly
func (p *Playback) onStop() {
	p.log.Debug("device stop callback")
}
