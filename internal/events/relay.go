package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/phrazzld/taskboard/internal/platform/logger"
	"github.com/redis/go-redis/v9"
	"github.com/sethvargo/go-retry"
)

// Broadcaster fans an event out to local subscribers. *Registry satisfies it.
type Broadcaster interface {
	Broadcast(ctx context.Context, event TaskEvent) (BroadcastResult, error)
}

// RedisRelay is a Publisher that shares events between server processes over
// a Redis pub/sub channel. While subscribed, Publish only writes to Redis and
// Run delivers every event seen on the channel, including this process's own,
// to the local Broadcaster, so each subscriber receives each event once.
type RedisRelay struct {
	client  redis.UniversalClient
	channel string
	local   Broadcaster
	logger  *slog.Logger

	readyOnce sync.Once
	ready     chan struct{}

	// subscribed is set while Run holds a confirmed subscription.
	subscribed atomic.Bool
}

// NewRedisRelay creates a relay on channel. It does not subscribe until Run.
func NewRedisRelay(client redis.UniversalClient, channel string, local Broadcaster, logger *slog.Logger) *RedisRelay {
	if client == nil {
		panic("redis client cannot be nil")
	}
	if local == nil {
		panic("local broadcaster cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &RedisRelay{
		client:  client,
		channel: channel,
		local:   local,
		logger: logger.With(
			slog.String("component", "redis_relay"),
			slog.String("channel", channel),
		),
		ready: make(chan struct{}),
	}
}

var _ Publisher = (*RedisRelay)(nil)

// Publish implements Publisher. While the relay holds no subscription, at
// startup or between reconnects, the event is also delivered to this
// process's subscribers directly, since Redis would not echo it back. When
// Redis is unreachable the event is delivered locally and the Redis error is
// returned.
func (r *RedisRelay) Publish(ctx context.Context, event TaskEvent) error {
	if err := event.Validate(); err != nil {
		return err
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode %s event: %w", event.Event, err)
	}

	subscribed := r.subscribed.Load()
	pubErr := r.client.Publish(ctx, r.channel, payload).Err()
	if pubErr == nil && subscribed {
		return nil
	}

	log := logger.FromContextOrDefault(ctx, r.logger)
	if pubErr != nil {
		log.Error("failed to publish event to redis, delivering locally",
			slog.String("event", string(event.Event)),
			slog.String("error", pubErr.Error()))
	} else {
		log.Warn("redis relay not subscribed, delivering locally",
			slog.String("event", string(event.Event)))
	}

	_, localErr := r.local.Broadcast(ctx, event)
	if pubErr != nil {
		pubErr = fmt.Errorf("redis publish: %w", pubErr)
	}
	return errors.Join(pubErr, localErr)
}

// Ready is closed once the first subscription to the channel is confirmed.
func (r *RedisRelay) Ready() <-chan struct{} {
	return r.ready
}

// Run subscribes to the channel and forwards events to the local Broadcaster
// until ctx is done. Lost subscriptions are re-established with capped
// exponential backoff.
func (r *RedisRelay) Run(ctx context.Context) error {
	newBackoff := func() retry.Backoff {
		return retry.WithCappedDuration(5*time.Second, retry.NewExponential(100*time.Millisecond))
	}
	backoff := newBackoff()

	for {
		subscribed, err := r.subscribeOnce(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if subscribed {
			backoff = newBackoff()
		}

		delay, stop := backoff.Next()
		if stop {
			return fmt.Errorf("redis relay stopped: %w", err)
		}
		r.logger.Warn("redis subscription lost, reconnecting",
			slog.Any("error", err),
			slog.Duration("retry_in", delay))

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
	}
}

func (r *RedisRelay) subscribeOnce(ctx context.Context) (bool, error) {
	sub := r.client.Subscribe(ctx, r.channel)
	defer func() { _ = sub.Close() }()

	if _, err := sub.Receive(ctx); err != nil {
		return false, fmt.Errorf("subscribe: %w", err)
	}
	r.subscribed.Store(true)
	defer r.subscribed.Store(false)
	r.readyOnce.Do(func() { close(r.ready) })
	r.logger.Info("subscribed to redis channel")

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return true, ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return true, errors.New("pubsub channel closed")
			}
			r.deliver(ctx, msg.Payload)
		}
	}
}

func (r *RedisRelay) deliver(ctx context.Context, payload string) {
	var event TaskEvent
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		r.logger.Error("unable to decode relayed event", slog.String("error", err.Error()))
		return
	}
	if err := event.Validate(); err != nil {
		r.logger.Error("discarding relayed event", slog.String("error", err.Error()))
		return
	}

	if _, err := r.local.Broadcast(ctx, event); err != nil {
		r.logger.Error("failed to broadcast relayed event",
			slog.String("event", string(event.Event)),
			slog.String("error", err.Error()))
	}
}
