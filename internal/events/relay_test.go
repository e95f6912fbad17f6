package events_test

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/phrazzld/taskboard/internal/events"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startRelay(t *testing.T, m *miniredis.Miniredis, registry *events.Registry) *events.RedisRelay {
	t.Helper()

	rc := redis.NewClient(&redis.Options{Addr: m.Addr()})
	t.Cleanup(func() { _ = rc.Close() })

	relay := events.NewRedisRelay(rc, "taskboard:events", registry, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- relay.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Error("relay did not stop")
		}
	})

	select {
	case <-relay.Ready():
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not subscribe")
	}
	return relay
}

func TestRedisRelayDeliversAcrossProcesses(t *testing.T) {
	m := miniredis.RunT(t)

	// Two registries stand in for two server processes sharing one Redis.
	local := events.NewRegistry(nil)
	remote := events.NewRegistry(nil)
	localSub, remoteSub := newRecording("local"), newRecording("remote")
	require.NoError(t, local.Register(localSub))
	require.NoError(t, remote.Register(remoteSub))

	publisher := startRelay(t, m, local)
	startRelay(t, m, remote)

	require.NoError(t, publisher.Publish(context.Background(), events.NewCreatedEvent(sampleTask())))

	for _, sub := range []*recordingSubscriber{localSub, remoteSub} {
		require.Eventually(t, func() bool {
			return len(sub.messages(t)) == 1
		}, 2*time.Second, 10*time.Millisecond, "subscriber %s", sub.id)
	}

	// Exactly once: nothing else arrives.
	time.Sleep(50 * time.Millisecond)
	msgs := localSub.messages(t)
	require.Len(t, msgs, 1)
	assert.Equal(t, "created", msgs[0]["event"])
	task := msgs[0]["task"].(map[string]any)
	assert.Equal(t, "To Do", task["status"])
}

func TestRedisRelayIgnoresMalformedMessages(t *testing.T) {
	m := miniredis.RunT(t)

	registry := events.NewRegistry(nil)
	sub := newRecording("s")
	require.NoError(t, registry.Register(sub))
	startRelay(t, m, registry)

	m.Publish("taskboard:events", "not json")
	m.Publish("taskboard:events", `{"event":"created"}`)
	m.Publish("taskboard:events", `{"event":"deleted","task_id":5}`)

	require.Eventually(t, func() bool {
		return len(sub.messages(t)) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, float64(5), sub.messages(t)[0]["task_id"])
}

func TestRedisRelayFallsBackToLocalDelivery(t *testing.T) {
	m := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: m.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rc.Close() })

	registry := events.NewRegistry(nil)
	sub := newRecording("s")
	require.NoError(t, registry.Register(sub))

	relay := events.NewRedisRelay(rc, "taskboard:events", registry, nil)
	m.Close()

	err := relay.Publish(context.Background(), events.NewDeletedEvent(7))
	assert.Error(t, err)
	require.Len(t, sub.messages(t), 1)
	assert.Equal(t, float64(7), sub.messages(t)[0]["task_id"])
}

func TestRedisRelayDeliversLocallyWhileUnsubscribed(t *testing.T) {
	m := miniredis.RunT(t)

	local := events.NewRegistry(nil)
	remote := events.NewRegistry(nil)
	localSub, remoteSub := newRecording("local"), newRecording("remote")
	require.NoError(t, local.Register(localSub))
	require.NoError(t, remote.Register(remoteSub))

	rc := redis.NewClient(&redis.Options{Addr: m.Addr()})
	t.Cleanup(func() { _ = rc.Close() })
	relay := events.NewRedisRelay(rc, "taskboard:events", local, nil)
	startRelay(t, m, remote)

	// Run has not been started, so Redis will not echo the event back.
	require.NoError(t, relay.Publish(context.Background(), events.NewDeletedEvent(1)))

	require.Len(t, localSub.messages(t), 1, "delivered to this process directly")
	assert.Equal(t, float64(1), localSub.messages(t)[0]["task_id"])
	require.Eventually(t, func() bool {
		return len(remoteSub.messages(t)) == 1
	}, 2*time.Second, 10*time.Millisecond, "still shared with other processes")
}

func TestRedisRelayResumesLocalDeliveryAfterStop(t *testing.T) {
	m := miniredis.RunT(t)

	registry := events.NewRegistry(nil)
	sub := newRecording("s")
	require.NoError(t, registry.Register(sub))

	rc := redis.NewClient(&redis.Options{Addr: m.Addr()})
	t.Cleanup(func() { _ = rc.Close() })
	relay := events.NewRedisRelay(rc, "taskboard:events", registry, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- relay.Run(ctx) }()
	select {
	case <-relay.Ready():
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not subscribe")
	}

	require.NoError(t, relay.Publish(context.Background(), events.NewDeletedEvent(1)))
	require.Eventually(t, func() bool {
		return len(sub.messages(t)) == 1
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not stop")
	}

	require.NoError(t, relay.Publish(context.Background(), events.NewDeletedEvent(2)))
	msgs := sub.messages(t)
	require.Len(t, msgs, 2)
	assert.Equal(t, float64(2), msgs[1]["task_id"])
}
