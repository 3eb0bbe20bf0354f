package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"setlist/pkg/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisPublisherPublishesEnvelope(t *testing.T) {
	mr := miniredis.RunT(t)
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	ctx := context.Background()
	pub, err := NewRedisPublisher(ctx, &redis.Options{Addr: mr.Addr()}, "broadcast", logger)
	require.NoError(t, err)
	defer pub.Close()

	sub := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer sub.Close()
	ps := sub.Subscribe(ctx, "broadcast")
	defer ps.Close()
	_, err = ps.Receive(ctx)
	require.NoError(t, err)

	pub.Publish(ctx, PlaylistCreated, &models.Playlist{ID: "p1", Name: "Road Trip", OwnerID: "u1"})

	select {
	case msg := <-ps.Channel():
		var ev Event
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &ev))
		assert.Equal(t, PlaylistCreated, ev.Type)
		assert.Equal(t, "p1", ev.Payload.Playlist.ID)
		assert.Equal(t, "Road Trip", ev.Payload.Playlist.Name)
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
	}
}

func TestNewRedisPublisherFailsWhenUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := NewRedisPublisher(ctx, &redis.Options{Addr: addr, MaxRetries: -1}, "broadcast", logrus.New())
	require.Error(t, err)
}

func TestPublishAfterServerGoneDoesNotPanic(t *testing.T) {
	mr := miniredis.RunT(t)
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	ctx := context.Background()
	pub, err := NewRedisPublisher(ctx, &redis.Options{Addr: mr.Addr(), MaxRetries: -1}, "broadcast", logger)
	require.NoError(t, err)
	defer pub.Close()

	mr.Close()
	pub.Publish(ctx, PlaylistDeleted, &models.Playlist{ID: "p1"})
}

func TestNopPublisher(t *testing.T) {
	var p Publisher = Nop{}
	p.Publish(context.Background(), PlaylistUpdated, &models.Playlist{})
	assert.NoError(t, p.Close())
}
