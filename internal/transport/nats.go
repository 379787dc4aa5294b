package transport

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
)

// NATSSource delivers messages from a NATS subject tree. Subjects are
// reported as slash-separated topics so the router sees one topic shape
// regardless of the bus.
type NATSSource struct {
	conn   *nats.Conn
	sub    *nats.Subscription
	queue  *Queue
	logger *slog.Logger
	now    func() time.Time
}

// DialNATS connects to cfg.URL and subscribes to cfg.Filter().
func DialNATS(cfg Config, q *Queue, logger *slog.Logger) (*NATSSource, error) {
	s := newNATSSource(q, logger)

	opts := []nats.Option{nats.Timeout(cfg.connectTimeout())}
	if cfg.ClientID != "" {
		opts = append(opts, nats.Name(cfg.ClientID))
	}
	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect %s: %w", cfg.URL, err)
	}
	s.conn = conn

	filter := cfg.Filter()
	sub, err := conn.Subscribe(filter, s.handle)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("nats subscribe %s: %w", filter, err)
	}
	s.sub = sub

	s.logger.Info("subscribed", "transport", KindNATS, "url", cfg.URL, "filter", filter)
	return s, nil
}

func newNATSSource(q *Queue, logger *slog.Logger) *NATSSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &NATSSource{queue: q, logger: logger, now: time.Now}
}

// SubjectToTopic maps a dotted NATS subject to a slash topic.
func SubjectToTopic(subject string) string {
	return strings.ReplaceAll(subject, ".", "/")
}

// TopicToSubject is the inverse of SubjectToTopic.
func TopicToSubject(topic string) string {
	return strings.ReplaceAll(topic, "/", ".")
}

func (s *NATSSource) handle(m *nats.Msg) {
	topic := SubjectToTopic(m.Subject)
	if !s.queue.Push(Message{Topic: topic, Payload: DecodePayload(m.Data), Received: s.now()}) {
		s.logger.Debug("message after close", "topic", topic)
	}
}

// Next implements Subscription.
func (s *NATSSource) Next(ctx context.Context, maxWait time.Duration) (Message, bool, error) {
	return s.queue.Next(ctx, maxWait)
}

// Close unsubscribes and closes the connection and the queue.
func (s *NATSSource) Close() error {
	var err error
	if s.sub != nil {
		err = s.sub.Unsubscribe()
	}
	if s.conn != nil {
		s.conn.Close()
	}
	s.queue.Close()
	return err
}
