package notify

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"fraudwatch/core"
	"fraudwatch/util/goroutine"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestPublisher(t *testing.T, queueSize int) (*RedisPublisher, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	p := NewRedisPublisher(RedisOptions{
		Addr:      mr.Addr(),
		Channel:   "fraudwatch:alerts",
		QueueSize: queueSize,
	}, zaptest.NewLogger(t).Sugar())
	return p, mr
}

func TestRedisPublisher_Ping(t *testing.T) {
	p, _ := newTestPublisher(t, 4)
	defer p.Close()

	assert.NoError(t, p.Ping(context.Background()))
}

func TestRedisPublisher_PublishesJSON(t *testing.T) {
	p, mr := newTestPublisher(t, 4)

	ctx := context.Background()
	sub := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer sub.Close()
	pubsub := sub.Subscribe(ctx, "fraudwatch:alerts")
	defer pubsub.Close()
	_, err := pubsub.Receive(ctx)
	require.NoError(t, err)

	p.Start()
	alert := core.Alert{
		ID:          7,
		Type:        core.AlertWashTrading,
		Severity:    core.SeverityCritical,
		Description: "WASH_001 TSLA imb=0.000 buy=500 sell=500",
		LatencyUs:   1200,
		TimestampMs: 1700000000000,
	}
	require.True(t, p.Publish(alert))

	select {
	case msg := <-pubsub.Channel():
		var got core.Alert
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
		assert.Equal(t, alert, got)
	case <-time.After(2 * time.Second):
		t.Fatal("alert was not published")
	}

	require.NoError(t, p.Close())
}

func TestRedisPublisher_DropsWhenQueueFull(t *testing.T) {
	p, _ := newTestPublisher(t, 1)
	defer p.Close()

	// not started, so nothing drains the queue
	assert.True(t, p.Publish(core.Alert{ID: 1}))
	assert.False(t, p.Publish(core.Alert{ID: 2}))
	assert.Equal(t, 1, p.Pending())
}

func TestRedisPublisher_CloseDrainsAndRejects(t *testing.T) {
	goroutine.AssertNoLeaks(t)
	p, _ := newTestPublisher(t, 8)
	p.Start()
	p.Start()

	for i := 1; i <= 5; i++ {
		require.True(t, p.Publish(core.Alert{ID: uint64(i), Severity: core.SeverityMedium}))
	}
	require.NoError(t, p.Close())
	assert.Zero(t, p.Pending())

	assert.False(t, p.Publish(core.Alert{ID: 6}))
	assert.NoError(t, p.Close(), "second close is a no-op")
}

func TestRedisPublisher_UnreachableServer(t *testing.T) {
	p := NewRedisPublisher(RedisOptions{Addr: "127.0.0.1:1", Channel: "alerts"}, zaptest.NewLogger(t).Sugar())

	assert.Error(t, p.Ping(context.Background()))

	p.Start()
	assert.True(t, p.Publish(core.Alert{ID: 1}))
	assert.NoError(t, p.Close())
}

func TestRedisPublisher_BreakerPausesDelivery(t *testing.T) {
	p := NewRedisPublisher(RedisOptions{
		Addr:            "127.0.0.1:1",
		Channel:         "alerts",
		BreakerFailures: 2,
		BreakerCooldown: time.Hour,
	}, zaptest.NewLogger(t).Sugar())
	assert.Equal(t, BreakerClosed, p.BreakerState())

	p.Start()
	for i := 1; i <= 4; i++ {
		require.True(t, p.Publish(core.Alert{ID: uint64(i)}))
	}
	require.NoError(t, p.Close())

	assert.Equal(t, BreakerOpen, p.BreakerState())
}
