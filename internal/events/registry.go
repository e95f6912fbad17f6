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
	"github.com/sourcegraph/conc/pool"
)

// Registry defaults.
const (
	DefaultSendTimeout        = 5 * time.Second
	DefaultMaxConcurrentSends = 32
)

// ErrRegistryClosed is returned by Register after Close.
var ErrRegistryClosed = errors.New("subscriber registry closed")

// BroadcastResult summarizes one fan-out.
type BroadcastResult struct {
	Attempted int
	Delivered int
	Failed    int
}

// Registry is the set of live subscribers of this process.
type Registry struct {
	mu          sync.RWMutex
	subscribers map[string]Subscriber
	closed      bool

	sendTimeout   time.Duration
	maxConcurrent int
	logger        *slog.Logger
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithSendTimeout bounds every single send attempt.
func WithSendTimeout(d time.Duration) RegistryOption {
	return func(r *Registry) {
		if d > 0 {
			r.sendTimeout = d
		}
	}
}

// WithMaxConcurrentSends bounds the number of sends in flight per broadcast.
func WithMaxConcurrentSends(n int) RegistryOption {
	return func(r *Registry) {
		if n > 0 {
			r.maxConcurrent = n
		}
	}
}

// NewRegistry creates an empty Registry.
func NewRegistry(logger *slog.Logger, opts ...RegistryOption) *Registry {
	if logger == nil {
		logger = slog.Default()
	}

	r := &Registry{
		subscribers:   make(map[string]Subscriber),
		sendTimeout:   DefaultSendTimeout,
		maxConcurrent: DefaultMaxConcurrentSends,
		logger:        logger.With(slog.String("component", "subscriber_registry")),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

var _ Publisher = (*Registry)(nil)

// Register adds sub. Registering an id that is already present replaces the
// previous subscriber.
func (r *Registry) Register(sub Subscriber) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrRegistryClosed
	}
	r.subscribers[sub.ID()] = sub

	r.logger.Debug("subscriber registered",
		slog.String("subscriber_id", sub.ID()),
		slog.Int("subscriber_count", len(r.subscribers)))
	return nil
}

// Unregister removes sub and reports whether it was present. It never closes
// the subscriber; the caller owns that.
func (r *Registry) Unregister(sub Subscriber) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.subscribers[sub.ID()]
	if !ok || current != sub {
		return false
	}
	delete(r.subscribers, sub.ID())

	r.logger.Debug("subscriber unregistered",
		slog.String("subscriber_id", sub.ID()),
		slog.Int("subscriber_count", len(r.subscribers)))
	return true
}

// Count returns the number of registered subscribers.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subscribers)
}

// Publish implements Publisher by broadcasting to local subscribers.
func (r *Registry) Publish(ctx context.Context, event TaskEvent) error {
	_, err := r.Broadcast(ctx, event)
	return err
}

// Broadcast encodes event once and sends it to every subscriber registered at
// the time of the call. Sends run concurrently, each bounded by the send
// timeout, and a subscriber whose send fails is unregistered and closed
// without affecting delivery to the others.
//
// Cancellation of ctx does not abort the fan-out: the mutation it reports has
// already committed.
func (r *Registry) Broadcast(ctx context.Context, event TaskEvent) (BroadcastResult, error) {
	log := logger.FromContextOrDefault(ctx, r.logger)

	if err := event.Validate(); err != nil {
		return BroadcastResult{}, err
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return BroadcastResult{}, fmt.Errorf("failed to encode %s event: %w", event.Event, err)
	}

	snapshot := r.snapshot()
	result := BroadcastResult{Attempted: len(snapshot)}
	if len(snapshot) == 0 {
		return result, nil
	}

	sendCtx := context.WithoutCancel(ctx)
	var delivered, failed atomic.Int64

	p := pool.New().WithMaxGoroutines(r.maxConcurrent)
	for _, sub := range snapshot {
		p.Go(func() {
			if err := r.send(sendCtx, sub, payload); err != nil {
				failed.Add(1)
				log.Warn("dropping subscriber after failed send",
					slog.String("subscriber_id", sub.ID()),
					slog.String("event", string(event.Event)),
					slog.String("error", err.Error()))
				r.drop(sub)
				return
			}
			delivered.Add(1)
		})
	}
	p.Wait()

	result.Delivered = int(delivered.Load())
	result.Failed = int(failed.Load())

	log.Debug("event broadcast",
		slog.String("event", string(event.Event)),
		slog.Int("attempted", result.Attempted),
		slog.Int("delivered", result.Delivered),
		slog.Int("failed", result.Failed))
	return result, nil
}

// Close unregisters and closes every subscriber. Later registrations fail.
func (r *Registry) Close() error {
	r.mu.Lock()
	subs := make([]Subscriber, 0, len(r.subscribers))
	for _, sub := range r.subscribers {
		subs = append(subs, sub)
	}
	r.subscribers = make(map[string]Subscriber)
	r.closed = true
	r.mu.Unlock()

	var errs []error
	for _, sub := range subs {
		if err := sub.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing subscriber %s: %w", sub.ID(), err))
		}
	}

	r.logger.Info("subscriber registry closed", slog.Int("closed_subscribers", len(subs)))
	return errors.Join(errs...)
}

func (r *Registry) snapshot() []Subscriber {
	r.mu.RLock()
	defer r.mu.RUnlock()

	subs := make([]Subscriber, 0, len(r.subscribers))
	for _, sub := range r.subscribers {
		subs = append(subs, sub)
	}
	return subs
}

func (r *Registry) send(ctx context.Context, sub Subscriber, payload []byte) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("subscriber panicked: %v", p)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, r.sendTimeout)
	defer cancel()
	return sub.Send(ctx, payload)
}

func (r *Registry) drop(sub Subscriber) {
	if r.Unregister(sub) {
		if err := sub.Close(); err != nil {
			r.logger.Debug("error closing dropped subscriber",
				slog.String("subscriber_id", sub.ID()),
				slog.String("error", err.Error()))
		}
	}
}
