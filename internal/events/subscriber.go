package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Subscriber delivers playlist events published on a redis channel.
type Subscriber struct {
	rdb     *redis.Client
	channel string
	logger  *logrus.Logger
}

// NewSubscriber connects to redis and verifies the connection.
func NewSubscriber(ctx context.Context, opts *redis.Options, channel string, logger *logrus.Logger) (*Subscriber, error) {
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Subscriber{rdb: rdb, channel: channel, logger: logger}, nil
}

// Run calls fn for every event until ctx is done. Messages that are not
// playlist events are skipped.
func (s *Subscriber) Run(ctx context.Context, fn func(Event)) error {
	sub := s.rdb.Subscribe(ctx, s.channel)
	defer sub.Close()

	// Wait for the subscription to be confirmed so no event is missed
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("redis subscribe: %w", err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil || event.Type == "" {
				s.logger.WithField("payload", msg.Payload).Debug("Ignoring non-playlist message")
				continue
			}
			fn(event)
		}
	}
}

// Close releases the redis connection.
func (s *Subscriber) Close() error {
	return s.rdb.Close()
}
