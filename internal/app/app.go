// Package app wires the activity host, the audio lifecycle adapter and the
// control surfaces into one running service.
package app

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/swordlegend/dava.engine/internal/audio/device"
	"github.com/swordlegend/dava.engine/internal/conf"
	"github.com/swordlegend/dava.engine/internal/control/httpapi"
	"github.com/swordlegend/dava.engine/internal/control/mqttctl"
	"github.com/swordlegend/dava.engine/internal/errors"
	"github.com/swordlegend/dava.engine/internal/host"
	"github.com/swordlegend/dava.engine/internal/lifecycle"
	"github.com/swordlegend/dava.engine/internal/logger"
	"github.com/swordlegend/dava.engine/internal/observability"
)

// DefaultShutdownTimeout bounds the whole ordered shutdown.
const DefaultShutdownTimeout = 5 * time.Second

// App owns every long-lived component of the service.
type App struct {
	settings *conf.Settings
	log      logger.Logger

	metrics  *observability.Metrics
	activity *host.Activity
	adapter  *lifecycle.Adapter
	http     *httpapi.Server
	mqtt     *mqttctl.Subscriber

	version         string
	shutdownTimeout time.Duration
}

// Option is a functional option for configuring the App.
type Option func(*App)

// WithLogger sets the root logger components derive their module loggers from.
func WithLogger(l logger.Logger) Option {
	return func(a *App) {
		if l != nil {
			a.log = l
		}
	}
}

// WithVersion sets the version reported by the status endpoint.
func WithVersion(v string) Option {
	return func(a *App) {
		a.version = v
	}
}

// WithShutdownTimeout overrides DefaultShutdownTimeout.
func WithShutdownTimeout(d time.Duration) Option {
	return func(a *App) {
		if d > 0 {
			a.shutdownTimeout = d
		}
	}
}

// New builds the service. Nothing listens on the network until Run.
func New(settings *conf.Settings, opts ...Option) (*App, error) {
	if settings == nil {
		return nil, errors.ValidationError("settings are required")
	}

	a := &App{
		settings:        settings,
		log:             logger.Global().Module("app"),
		shutdownTimeout: DefaultShutdownTimeout,
	}
	for _, opt := range opts {
		opt(a)
	}

	if settings.Metrics.Enabled {
		m, err := observability.NewMetrics()
		if err != nil {
			return nil, err
		}
		a.metrics = m
	}

	hostCfg := host.Config{
		Name:             "main",
		InitiallyVisible: settings.Host.InitiallyVisible,
		Logger:           a.log.Module("host"),
	}
	if a.metrics != nil {
		hostCfg.Recorder = a.metrics.Lifecycle
	}
	a.activity = host.NewActivity(hostCfg)

	if err := a.buildAdapter(); err != nil {
		a.closeHost()
		return nil, err
	}

	if err := a.buildControl(); err != nil {
		a.shutdown()
		return nil, err
	}

	return a, nil
}

func (a *App) buildAdapter() error {
	factory, err := device.NewFactory(&a.settings.Audio, a.log)
	if err != nil {
		return err
	}

	opts := []lifecycle.Option{lifecycle.WithLogger(a.log)}
	if a.metrics != nil {
		opts = append(opts, lifecycle.WithRecorder(a.metrics.Lifecycle))
	}

	adapter, err := lifecycle.New(a.activity, factory, opts...)
	if err != nil {
		return err
	}
	a.adapter = adapter
	return nil
}

func (a *App) buildControl() error {
	if a.settings.Control.HTTP.Enabled {
		opts := []httpapi.Option{
			httpapi.WithLogger(a.log.Module("httpapi")),
			httpapi.WithVersion(a.version),
		}
		if a.metrics != nil {
			opts = append(opts, httpapi.WithMetricsHandler(a.metrics.Handler()))
		}
		a.http = httpapi.New(a.settings.Control.HTTP.Listen, a.activity, a.adapter, opts...)
	}

	if mq := a.settings.Control.MQTT; mq.Enabled {
		opts := []mqttctl.Option{mqttctl.WithLogger(a.log.Module("mqtt"))}
		if a.metrics != nil {
			opts = append(opts, mqttctl.WithRecorder(a.metrics.MQTT))
		}
		sub, err := mqttctl.New(mqttctl.Config{
			Broker:   mq.Broker,
			Topic:    mq.Topic,
			ClientID: mq.ClientID,
			Username: mq.Username,
			Password: mq.Password,
			QoS:      byte(mq.QoS),
		}, a.activity, opts...)
		if err != nil {
			return err
		}
		a.mqtt = sub
	}
	return nil
}

// Activity returns the host activity.
func (a *App) Activity() *host.Activity {
	return a.activity
}

// Adapter returns the lifecycle adapter.
func (a *App) Adapter() *lifecycle.Adapter {
	return a.adapter
}

// HTTP returns the control API server, or nil when it is disabled.
func (a *App) HTTP() *httpapi.Server {
	return a.http
}

// Run starts the control surfaces and blocks until ctx is cancelled or one of
// them fails, then shuts everything down in order.
func (a *App) Run(ctx context.Context) error {
	initCtx, cancel := context.WithTimeout(ctx, a.shutdownTimeout)
	err := a.adapter.Wait(initCtx)
	cancel()
	if err != nil {
		a.log.Error("audio device initialization failed", logger.Error(err))
		a.shutdown()
		return err
	}

	a.log.Info("audio lifecycle service started",
		logger.String("adapter_id", a.adapter.ID()),
		logger.String("backend", a.settings.Audio.Backend),
		logger.Bool("visible", a.activity.IsVisible()))

	g, gctx := errgroup.WithContext(ctx)

	if a.http != nil {
		g.Go(a.http.Start)
	}
	if a.mqtt != nil {
		g.Go(func() error {
			return a.mqtt.Start(gctx)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		a.shutdown()
		return nil
	})

	err = g.Wait()
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		return nil
	}
	return err
}

// shutdown stops control input first, then releases the device through the
// adapter and finally tears down the host.
func (a *App) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
	defer cancel()

	if a.http != nil {
		if err := a.http.Shutdown(ctx); err != nil {
			a.log.Warn("control api shutdown failed", logger.Error(err))
		}
	}
	if a.mqtt != nil {
		a.mqtt.Stop()
	}

	if a.adapter != nil {
		if err := a.adapter.Close(ctx); err != nil {
			a.log.Warn("adapter close failed", logger.Error(err))
		}
	}

	a.closeHostWith(ctx)
	a.log.Info("audio lifecycle service stopped")
}

func (a *App) closeHost() {
	ctx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
	defer cancel()
	a.closeHostWith(ctx)
}

func (a *App) closeHostWith(ctx context.Context) {
	if err := a.activity.Close(ctx); err != nil {
		a.log.Warn("host close failed", logger.Error(err))
	}
}

// Run builds the service from settings and runs it until ctx is done.
func Run(ctx context.Context, settings *conf.Settings, opts ...Option) error {
	a, err := New(settings, opts...)
	if err != nil {
		return err
	}
	return a.Run(ctx)
}
