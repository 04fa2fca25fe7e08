package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/mortuary-api/pkg/circuitbreaker"
	"github.com/jwalitptl/mortuary-api/pkg/logger"
)

func newTestBroker(t *testing.T) (*RedisBroker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	broker, err := NewRedisBroker(context.Background(), Config{
		URL:           "redis://" + mr.Addr(),
		ChannelPrefix: "mortuary.",
	}, logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = broker.Close() })
	return broker, mr
}

func TestPublishSubscribe(t *testing.T) {
	broker, _ := newTestBroker(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := broker.Subscribe(ctx, "release.approved")
	require.NoError(t, err)

	require.NoError(t, broker.Publish(ctx, "release.approved", []byte(`{"release_id":1}`)))

	select {
	case msg := <-ch:
		assert.JSONEq(t, `{"release_id":1}`, string(msg))
	case <-time.After(2 * time.Second):
		t.Fatal("message not delivered")
	}

	cancel()
	assert.Eventually(t, func() bool {
		_, open := <-ch
		return !open
	}, 2*time.Second, 10*time.Millisecond)
}

func TestPublishUsesPrefix(t *testing.T) {
	broker, mr := newTestBroker(t)
	ctx := context.Background()

	raw := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	defer raw.Close()
	sub := raw.Subscribe(ctx, "mortuary.patient.registered")
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	require.NoError(t, broker.Publish(ctx, "patient.registered", []byte(`{}`)))

	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)
	assert.Equal(t, "mortuary.patient.registered", msg.Channel)
}

func TestPublishTripsBreaker(t *testing.T) {
	broker, mr := newTestBroker(t)
	ctx := context.Background()
	mr.Close()

	var err error
	for i := 0; i < 5; i++ {
		err = broker.Publish(ctx, "storage.assigned", []byte(`{}`))
		require.Error(t, err)
	}
	err = broker.Publish(ctx, "storage.assigned", []byte(`{}`))
	assert.ErrorIs(t, err, circuitbreaker.ErrOpen)
}

func TestNewRedisBrokerFailsFast(t *testing.T) {
	_, err := NewRedisBroker(context.Background(), Config{URL: "not a url"}, logger.Nop())
	assert.Error(t, err)
}
