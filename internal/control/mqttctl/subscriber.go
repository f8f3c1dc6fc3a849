// Package mqttctl drives host visibility from an MQTT topic.
package mqttctl

import (
	"context"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/swordlegend/dava.engine/internal/errors"
	"github.com/swordlegend/dava.engine/internal/logger"
)

const (
	defaultConnectTimeout    = 30 * time.Second
	defaultSubscribeTimeout  = 10 * time.Second
	disconnectQuiesceMillis  = 250
	defaultMaxReconnectDelay = 2 * time.Minute
)

// Target is what control messages act on. *host.Activity satisfies it.
type Target interface {
	SetVisible(visible bool) error
}

// Recorder receives subscriber events. *metrics.MQTTMetrics satisfies it.
type Recorder interface {
	UpdateConnectionStatus(connected bool)
	RecordMessage(result string, sizeBytes int)
	IncrementErrors()
	IncrementReconnectAttempts()
}

// Config holds the broker connection settings.
type Config struct {
	Broker         string
	Topic          string
	ClientID       string
	Username       string
	Password       string
	QoS            byte
	ConnectTimeout time.Duration
}

// Subscriber listens on a topic and applies visibility changes to a Target.
type Subscriber struct {
	config   Config
	target   Target
	log      logger.Logger
	recorder Recorder

	mu     sync.Mutex
	client mqtt.Client
}

// Option is a functional option for configuring the Subscriber.
type Option func(*Subscriber)

// WithLogger sets the subscriber's logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Subscriber) {
		if l != nil {
			s.log = l
		}
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(s *Subscriber) {
		s.recorder = r
	}
}

// New creates a subscriber. It does not connect until Start.
func New(cfg Config, target Target, opts ...Option) (*Subscriber, error) {
	if target == nil {
		return nil, errors.ValidationError("mqtt subscriber requires a target")
	}
	if cfg.Broker == "" || cfg.Topic == "" {
		return nil, errors.ValidationError("mqtt subscriber requires a broker and a topic")
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = defaultConnectTimeout
	}

	s := &Subscriber{
		config: cfg,
		target: target,
		log:    logger.Global().Module("mqtt"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With(logger.String("broker", cfg.Broker), logger.String("topic", cfg.Topic))
	return s, nil
}

func (s *Subscriber) clientOptions() *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(s.config.Broker)
	opts.SetClientID(s.config.ClientID)
	opts.SetUsername(s.config.Username)
	opts.SetPassword(s.config.Password)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetMaxReconnectInterval(defaultMaxReconnectDelay)
	opts.SetConnectTimeout(s.config.ConnectTimeout)
	opts.SetOnConnectHandler(s.onConnect)
	opts.SetConnectionLostHandler(s.onConnectionLost)
	opts.SetReconnectingHandler(s.onReconnecting)
	return opts
}

// Start connects to the broker. Subscription happens in the connect handler
// so it is renewed after every reconnect. Start returns once the first
// connection attempt finished or ctx is done.
func (s *Subscriber) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.client != nil {
		s.mu.Unlock()
		return nil
	}
	client := mqtt.NewClient(s.clientOptions())
	s.client = client
	s.mu.Unlock()

	s.log.Info("connecting to mqtt broker")

	token := client.Connect()
	select {
	case <-token.Done():
	case <-ctx.Done():
		return errors.New(ctx.Err()).
			Component("mqttctl").
			Category(errors.CategoryCancellation).
			Context("operation", "connect").
			Build()
	case <-time.After(s.config.ConnectTimeout):
		// With connect retry enabled paho keeps trying in the background.
		s.log.Warn("mqtt broker not reachable yet, retrying in background",
			logger.Duration("timeout", s.config.ConnectTimeout))
		return nil
	}

	if err := token.Error(); err != nil {
		s.recordError()
		return errors.New(err).
			Component("mqttctl").
			Category(errors.CategoryMQTTConnection).
			Context("operation", "connect").
			Build()
	}
	return nil
}

// Stop disconnects from the broker. Safe to call more than once.
func (s *Subscriber) Stop() {
	s.mu.Lock()
	client := s.client
	s.client = nil
	s.mu.Unlock()

	if client == nil {
		return
	}
	if client.IsConnected() {
		client.Unsubscribe(s.config.Topic).WaitTimeout(time.Second)
	}
	client.Disconnect(disconnectQuiesceMillis)
	if s.recorder != nil {
		s.recorder.UpdateConnectionStatus(false)
	}
	s.log.Info("mqtt subscriber stopped")
}

// IsConnected reports whether the client currently holds a broker connection.
func (s *Subscriber) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.client != nil && s.client.IsConnected()
}

func (s *Subscriber) onConnect(client mqtt.Client) {
	s.log.Info("connected to mqtt broker")
	if s.recorder != nil {
		s.recorder.UpdateConnectionStatus(true)
	}

	token := client.Subscribe(s.config.Topic, s.config.QoS, s.HandleMessage)
	if !token.WaitTimeout(defaultSubscribeTimeout) {
		s.log.Error("mqtt subscribe timed out")
		s.recordError()
		return
	}
	if err := token.Error(); err != nil {
		s.log.Error("mqtt subscribe failed", logger.Error(err))
		s.recordError()
		return
	}
	s.log.Debug("subscribed", logger.Int("qos", int(s.config.QoS)))
}

func (s *Subscriber) onConnectionLost(_ mqtt.Client, err error) {
	s.log.Warn("connection to mqtt broker lost", logger.Error(err))
	if s.recorder != nil {
		s.recorder.UpdateConnectionStatus(false)
	}
	s.recordError()
}

func (s *Subscriber) onReconnecting(_ mqtt.Client, _ *mqtt.ClientOptions) {
	s.log.Debug("reconnecting to mqtt broker")
	if s.recorder != nil {
		s.recorder.IncrementReconnectAttempts()
	}
}

func (s *Subscriber) recordError() {
	if s.recorder != nil {
		s.recorder.IncrementErrors()
	}
}

// HandleMessage applies one control message. It is the paho message callback.
func (s *Subscriber) HandleMessage(_ mqtt.Client, msg mqtt.Message) {
	payload := msg.Payload()
	result := s.apply(payload)

	if s.recorder != nil {
		s.recorder.RecordMessage(result, len(payload))
	}
}

func (s *Subscriber) apply(payload []byte) string {
	visible, err := ParsePayload(payload)
	if err != nil {
		s.log.Warn("ignoring control message", logger.Error(err))
		return ResultInvalid
	}

	if err := s.target.SetVisible(visible); err != nil {
		s.log.Warn("visibility change rejected",
			logger.Bool("visible", visible),
			logger.Error(err))
		return ResultRejected
	}

	s.log.Info("visibility set via mqtt", logger.Bool("visible", visible))
	if visible {
		return ResultVisible
	}
	return ResultHidden
}
