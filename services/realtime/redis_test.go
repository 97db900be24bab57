package realtimesvc

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"

	"github.com/fitprize/fitprize/core/realtime"
	"github.com/fitprize/fitprize/testutil"
)

func newTestBridge(t *testing.T) (*RedisBridge, *Hub) {
	// nothing listens on port 1: every publish fails right away
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1, DialTimeout: 100 * time.Millisecond})
	t.Cleanup(func() { _ = client.Close() })
	hub := NewHub(NewMetrics(prometheus.NewRegistry()), testutil.NopLogger{})
	return NewRedisBridge(client, "fitprize:test", hub, testutil.NopLogger{}), hub
}

func minutesEvent(classID string) realtime.Event {
	return realtime.Event{Name: realtime.EventClassMinutesUpdated, Payload: realtime.ClassMinutesUpdated{ClassID: classID}}
}

func TestRedisBridge_Emit_queues(t *testing.T) {
	b, hub := newTestBridge(t)

	start := time.Now()
	for i := 0; i < queueSize; i++ {
		b.Emit(realtime.ClassRoom("c1"), minutesEvent("c1"))
	}
	assert.Less(t, time.Since(start), time.Second)
	assert.Len(t, b.queue, queueSize)
	assert.Len(t, hub.broadcast, 0)

	// a full queue keeps the event local
	b.Emit(realtime.ClassRoom("c1"), minutesEvent("c1"))
	assert.Len(t, b.queue, queueSize)
	if assert.Len(t, hub.broadcast, 1) {
		env := <-hub.broadcast
		assert.Equal(t, realtime.ClassRoom("c1"), env.Room)
	}
}

func TestRedisBridge_publish_fallsBackToHub(t *testing.T) {
	b, hub := newTestBridge(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.publish(ctx) }()

	b.Emit(realtime.SchoolRoom("s1"), minutesEvent("c1"))
	select {
	case env := <-hub.broadcast:
		assert.Equal(t, realtime.SchoolRoom("s1"), env.Room)
		assert.Equal(t, realtime.EventClassMinutesUpdated, env.Name)
	case <-time.After(5 * time.Second):
		t.Fatal("event was not delivered locally")
	}

	cancel()
	assert.NoError(t, <-done)
}
