// Package events announces playlist changes on a redis pub/sub channel so
// other surfaces can refresh their lists.
package events

import (
	"context"
	"encoding/json"
	"fmt"

	"setlist/internal/metrics"
	"setlist/pkg/models"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Event types
const (
	PlaylistCreated = "playlist.created"
	PlaylistUpdated = "playlist.updated"
	PlaylistDeleted = "playlist.deleted"
)

// Event is the JSON envelope published on the channel.
type Event struct {
	Type    string       `json:"type"`
	Payload EventPayload `json:"payload"`
}

// EventPayload carries the affected playlist.
type EventPayload struct {
	Playlist models.Playlist `json:"playlist"`
}

// Publisher publishes playlist events.
type Publisher interface {
	Publish(ctx context.Context, eventType string, p *models.Playlist)
	Close() error
}

// RedisPublisher publishes to a redis channel. Publishing is best-effort:
// failures are logged and never returned to the request path.
type RedisPublisher struct {
	rdb     *redis.Client
	channel string
	logger  *logrus.Logger
}

// NewRedisPublisher connects to addr and verifies the connection.
func NewRedisPublisher(ctx context.Context, opts *redis.Options, channel string, logger *logrus.Logger) (*RedisPublisher, error) {
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisPublisher{rdb: rdb, channel: channel, logger: logger}, nil
}

// Publish sends the event on the configured channel.
func (p *RedisPublisher) Publish(ctx context.Context, eventType string, pl *models.Playlist) {
	data, err := json.Marshal(Event{Type: eventType, Payload: EventPayload{Playlist: *pl}})
	if err != nil {
		p.logger.WithError(err).Error("Failed to marshal playlist event")
		metrics.EventsPublished.WithLabelValues(eventType, metrics.StatusError).Inc()
		return
	}
	if err := p.rdb.Publish(ctx, p.channel, string(data)).Err(); err != nil {
		p.logger.WithError(err).WithFields(logrus.Fields{
			"type":        eventType,
			"playlist_id": pl.ID,
		}).Warn("Failed to publish playlist event")
		metrics.EventsPublished.WithLabelValues(eventType, metrics.StatusError).Inc()
		return
	}
	metrics.EventsPublished.WithLabelValues(eventType, metrics.StatusSuccess).Inc()
}

// Close releases the redis connection.
func (p *RedisPublisher) Close() error {
	return p.rdb.Close()
}

// Nop discards events. Used when redis is not configured.
type Nop struct{}

// Publish does nothing.
func (Nop) Publish(context.Context, string, *models.Playlist) {}

// Close does nothing.
func (Nop) Close() error { return nil }
