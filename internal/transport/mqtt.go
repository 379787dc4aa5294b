package transport

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTTSource delivers messages from an MQTT broker.
type MQTTSource struct {
	client mqtt.Client
	queue  *Queue
	filter string
	logger *slog.Logger
	now    func() time.Time
}

// DialMQTT connects to cfg.URL and subscribes to cfg.Filter().
func DialMQTT(cfg Config, q *Queue, logger *slog.Logger) (*MQTTSource, error) {
	s := newMQTTSource(q, cfg.Filter(), logger)

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.URL).
		SetClientID(cfg.ClientID).
		SetConnectTimeout(cfg.connectTimeout()).
		SetCleanSession(true)
	s.client = mqtt.NewClient(opts)

	token := s.client.Connect()
	if !token.WaitTimeout(cfg.connectTimeout()) {
		return nil, fmt.Errorf("mqtt connect %s: timed out after %s", cfg.URL, cfg.connectTimeout())
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", cfg.URL, err)
	}

	token = s.client.Subscribe(s.filter, cfg.QoS, s.handle)
	if !token.WaitTimeout(cfg.connectTimeout()) {
		s.client.Disconnect(250)
		return nil, fmt.Errorf("mqtt subscribe %s: timed out", s.filter)
	}
	if err := token.Error(); err != nil {
		s.client.Disconnect(250)
		return nil, fmt.Errorf("mqtt subscribe %s: %w", s.filter, err)
	}

	s.logger.Info("subscribed", "transport", KindMQTT, "url", cfg.URL, "filter", s.filter)
	return s, nil
}

func newMQTTSource(q *Queue, filter string, logger *slog.Logger) *MQTTSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &MQTTSource{queue: q, filter: filter, logger: logger, now: time.Now}
}

// handle runs on the paho callback goroutine.
func (s *MQTTSource) handle(_ mqtt.Client, m mqtt.Message) {
	if !s.queue.Push(Message{Topic: m.Topic(), Payload: DecodePayload(m.Payload()), Received: s.now()}) {
		s.logger.Debug("message after close", "topic", m.Topic())
	}
}

// Next implements Subscription.
func (s *MQTTSource) Next(ctx context.Context, maxWait time.Duration) (Message, bool, error) {
	return s.queue.Next(ctx, maxWait)
}

// Close unsubscribes, disconnects and closes the queue.
func (s *MQTTSource) Close() error {
	if s.client != nil && s.client.IsConnected() {
		s.client.Unsubscribe(s.filter).WaitTimeout(time.Second)
		s.client.Disconnect(250)
	}
	s.queue.Close()
	return nil
}
