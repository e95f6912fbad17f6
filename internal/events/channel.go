package events

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
)

// ErrSubscriberClosed is returned by Send on a closed subscriber.
var ErrSubscriberClosed = errors.New("subscriber closed")

// ChannelSubscriber is a Subscriber that queues payloads on a buffered
// channel for a reader goroutine, such as a Server-Sent Events handler.
// A Send blocks while the buffer is full until its context expires.
type ChannelSubscriber struct {
	id       string
	messages chan []byte
	done     chan struct{}
	once     sync.Once
}

// NewChannelSubscriber creates a subscriber with a random id and the given
// buffer size.
func NewChannelSubscriber(buffer int) *ChannelSubscriber {
	if buffer < 0 {
		buffer = 0
	}
	return &ChannelSubscriber{
		id:       uuid.NewString(),
		messages: make(chan []byte, buffer),
		done:     make(chan struct{}),
	}
}

// ID implements Subscriber.
func (s *ChannelSubscriber) ID() string { return s.id }

// Send implements Subscriber.
func (s *ChannelSubscriber) Send(ctx context.Context, payload []byte) error {
	select {
	case <-s.done:
		return ErrSubscriberClosed
	default:
	}

	select {
	case s.messages <- payload:
		return nil
	case <-s.done:
		return ErrSubscriberClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Messages returns the queue the reader drains.
func (s *ChannelSubscriber) Messages() <-chan []byte { return s.messages }

// Done is closed once the subscriber is closed.
func (s *ChannelSubscriber) Done() <-chan struct{} { return s.done }

// Close implements Subscriber.
func (s *ChannelSubscriber) Close() error {
	s.once.Do(func() { close(s.done) })
	return nil
}
