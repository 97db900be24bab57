package realtimesvc

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/fitprize/fitprize/core"
	"github.com/fitprize/fitprize/core/realtime"
)

const publishTimeout = 2 * time.Second

// RedisBridge shares events between server instances: Emit queues events that Run publishes
// on a redis channel, and Run delivers every published event to the local hub.
type RedisBridge struct {
	client  *redis.Client
	channel string
	hub     *Hub
	queue   chan realtime.Envelope
	logger  core.Logger
}

var _ realtime.Emitter = (*RedisBridge)(nil)

func NewRedisBridge(client *redis.Client, channel string, hub *Hub, logger core.Logger) *RedisBridge {
	return &RedisBridge{
		client:  client,
		channel: channel,
		hub:     hub,
		queue:   make(chan realtime.Envelope, queueSize),
		logger:  logger,
	}
}

// NewRedisClient connects to addr. It returns nil when addr is empty or the server does not answer,
// in which case events are only delivered locally.
func NewRedisClient(ctx context.Context, addr string, logger core.Logger) *redis.Client {
	if addr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn(fmt.Sprintf("redis unavailable at %s, realtime events stay local: %v", addr, err))
		_ = client.Close()
		return nil
	}
	return client
}

// Emit queues evt for publishing and never blocks.
// When the queue is full the event is only delivered to the local clients.
func (b *RedisBridge) Emit(room string, evt realtime.Event) {
	payload, err := json.Marshal(evt.Payload)
	if err != nil {
		b.logger.Error(fmt.Sprintf("encoding %s event: %v", evt.Name, err), err)
		return
	}
	env := realtime.Envelope{Room: room, Name: evt.Name, Payload: payload}
	select {
	case b.queue <- env:
	default:
		b.logger.Warn(fmt.Sprintf("redis publish queue full, %s event to %s stays local", env.Name, env.Room))
		b.hub.emit(env)
	}
}

// publish sends the queued events until ctx is done.
// An event that cannot be published is still delivered to the local clients.
func (b *RedisBridge) publish(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case env := <-b.queue:
			msg, err := json.Marshal(env)
			if err != nil {
				b.logger.Error(fmt.Sprintf("encoding %s envelope: %v", env.Name, err), err)
				continue
			}
			pctx, cancel := context.WithTimeout(ctx, publishTimeout)
			err = b.client.Publish(pctx, b.channel, msg).Err()
			cancel()
			if err != nil {
				b.logger.Warn(fmt.Sprintf("publishing %s event: %v", env.Name, err), err)
				b.hub.emit(env)
			}
		}
	}
}

// Run publishes the queued events and forwards the published ones to the hub until ctx is done.
func (b *RedisBridge) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return b.publish(gctx) })
	g.Go(func() error { return b.subscribe(gctx) })
	return g.Wait()
}

func (b *RedisBridge) subscribe(ctx context.Context) error {
	sub := b.client.Subscribe(ctx, b.channel)
	defer func() { _ = sub.Close() }()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var env realtime.Envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				b.logger.Warn(fmt.Sprintf("decoding realtime envelope: %v", err), err)
				continue
			}
			b.hub.emit(env)
		}
	}
}
