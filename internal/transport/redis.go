package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisSource delivers messages from Redis pub/sub channels matching a
// pattern.
type RedisSource struct {
	client     *redis.Client
	ownsClient bool
	pubsub     *redis.PubSub
	queue      *Queue
	logger     *slog.Logger
	now        func() time.Time
	done       chan struct{}
}

// DialRedis connects to cfg.URL (a redis:// URL or a bare host:port) and
// pattern-subscribes to cfg.Filter().
func DialRedis(ctx context.Context, cfg Config, q *Queue, logger *slog.Logger) (*RedisSource, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		opts = &redis.Options{Addr: cfg.URL}
	}
	opts.DialTimeout = cfg.connectTimeout()
	if cfg.ClientID != "" {
		opts.ClientName = cfg.ClientID
	}

	client := redis.NewClient(opts)
	s, err := SubscribeRedis(ctx, client, cfg.Filter(), q, logger)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	s.ownsClient = true
	return s, nil
}

// SubscribeRedis pattern-subscribes an existing client. The caller keeps
// ownership of client.
func SubscribeRedis(ctx context.Context, client *redis.Client, pattern string, q *Queue, logger *slog.Logger) (*RedisSource, error) {
	if logger == nil {
		logger = slog.Default()
	}

	pubsub := client.PSubscribe(ctx, pattern)
	// Wait for the subscription confirmation so no message published after
	// this call returns can be missed.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("redis psubscribe %s: %w", pattern, err)
	}

	s := &RedisSource{
		client: client,
		pubsub: pubsub,
		queue:  q,
		logger: logger,
		now:    time.Now,
		done:   make(chan struct{}),
	}
	go s.pump(pubsub.Channel())

	logger.Info("subscribed", "transport", KindRedis, "filter", pattern)
	return s, nil
}

func (s *RedisSource) pump(ch <-chan *redis.Message) {
	defer close(s.done)
	for m := range ch {
		if !s.queue.Push(Message{Topic: m.Channel, Payload: DecodePayload([]byte(m.Payload)), Received: s.now()}) {
			s.logger.Debug("message after close", "topic", m.Channel)
		}
	}
}

// Next implements Subscription.
func (s *RedisSource) Next(ctx context.Context, maxWait time.Duration) (Message, bool, error) {
	return s.queue.Next(ctx, maxWait)
}

// Close ends the subscription and waits for the delivery goroutine.
func (s *RedisSource) Close() error {
	err := s.pubsub.Close()
	<-s.done
	s.queue.Close()
	if s.ownsClient {
		err = errors.Join(err, s.client.Close())
	}
	return err
}
