package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/phrazzld/taskboard/internal/events"
	"github.com/phrazzld/taskboard/internal/platform/logger"
)

// Push channel defaults.
const (
	DefaultWriteTimeout   = 10 * time.Second
	DefaultSSEBuffer      = 16
	DefaultSSEKeepAlive   = 25 * time.Second
	maxInboundMessageSize = 64 << 10
)

var errStreamingUnsupported = errors.New("response writer does not support flushing")

// SubscriberRegistry is the part of *events.Registry the push endpoints use.
type SubscriberRegistry interface {
	Register(sub events.Subscriber) error
	Unregister(sub events.Subscriber) bool
	Count() int
}

// RealtimeHandler serves the WebSocket and Server-Sent Events push channels.
type RealtimeHandler struct {
	registry  SubscriberRegistry
	upgrader  websocket.Upgrader
	keepAlive time.Duration
	logger    *slog.Logger
}

// NewRealtimeHandler creates a new RealtimeHandler
func NewRealtimeHandler(registry SubscriberRegistry, logger *slog.Logger) *RealtimeHandler {
	if registry == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("registry cannot be nil for RealtimeHandler")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &RealtimeHandler{
		registry: registry,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		keepAlive: DefaultSSEKeepAlive,
		logger:    logger.With(slog.String("component", "realtime_handler")),
	}
}

// ServeWebSocket handles GET /ws/tasks. The connection stays registered until
// the client closes it or a read or send fails. Inbound messages are read and
// discarded.
func (h *RealtimeHandler) ServeWebSocket(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error response.
		log.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	sub := newWebSocketSubscriber(conn)
	if err := h.registry.Register(sub); err != nil {
		log.Warn("rejecting websocket subscriber", slog.String("error", err.Error()))
		_ = sub.Close()
		return
	}
	log.Info("websocket subscriber connected",
		slog.String("subscriber_id", sub.ID()),
		slog.Int("subscriber_count", h.registry.Count()))

	defer func() {
		h.registry.Unregister(sub)
		_ = sub.Close()
		log.Info("websocket subscriber disconnected",
			slog.String("subscriber_id", sub.ID()),
			slog.Int("subscriber_count", h.registry.Count()))
	}()

	conn.SetReadLimit(maxInboundMessageSize)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug("websocket read failed", slog.String("error", err.Error()))
			}
			return
		}
	}
}

// ServeSSE handles GET /api/tasks/stream. Each event is written as one
// "data:" frame; a comment line is sent periodically to keep proxies from
// closing an idle stream.
func (h *RealtimeHandler) ServeSSE(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	flusher, ok := w.(http.Flusher)
	if !ok {
		HandleAPIError(w, r, errStreamingUnsupported, "Streaming unsupported")
		return
	}

	sub := events.NewChannelSubscriber(DefaultSSEBuffer)
	if err := h.registry.Register(sub); err != nil {
		HandleAPIError(w, r, err, "Server is shutting down")
		return
	}
	defer func() {
		h.registry.Unregister(sub)
		_ = sub.Close()
		log.Debug("sse subscriber disconnected", slog.String("subscriber_id", sub.ID()))
	}()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	log.Debug("sse subscriber connected", slog.String("subscriber_id", sub.ID()))

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-sub.Done():
			return
		case <-ticker.C:
			if _, err := w.Write([]byte(": keep-alive\n\n")); err != nil {
				return
			}
			flusher.Flush()
		case payload := <-sub.Messages():
			if _, err := w.Write([]byte("data: " + string(payload) + "\n\n")); err != nil {
				log.Debug("sse write failed", slog.String("error", err.Error()))
				return
			}
			flusher.Flush()
		}
	}
}

// webSocketSubscriber adapts a WebSocket connection to events.Subscriber.
// gorilla/websocket allows one concurrent writer, so writes are serialized.
type webSocketSubscriber struct {
	id   string
	conn *websocket.Conn

	writeMu   sync.Mutex
	closeOnce sync.Once
}

func newWebSocketSubscriber(conn *websocket.Conn) *webSocketSubscriber {
	return &webSocketSubscriber{id: uuid.NewString(), conn: conn}
}

func (s *webSocketSubscriber) ID() string { return s.id }

// Send writes payload as one text frame before the context deadline.
func (s *webSocketSubscriber) Send(ctx context.Context, payload []byte) error {
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(DefaultWriteTimeout)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return s.conn.WriteMessage(websocket.TextMessage, payload)
}

// Close sends a close frame when possible and releases the connection.
func (s *webSocketSubscriber) Close() error {
	var err error
	s.closeOnce.Do(func() {
		_ = s.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		err = s.conn.Close()
	})
	return err
}
