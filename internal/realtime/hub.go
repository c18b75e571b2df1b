package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"restohub-be/internal/logger"
	"restohub-be/internal/metrics"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"
)

var ErrHubClosed = errors.New("realtime hub is closed")

const defaultBuffer = 64

// Hub is the registry of connected display clients, keyed by connection id.
// Events only reach clients of the event's restaurant.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	closed  bool
	buffer  int

	allowedOrigin string

	meter     metric.Meter
	connected *metrics.UpDownCounter
	delivered *metrics.Counter
	dropped   *metrics.Counter
}

type HubOption func(*Hub)

// WithBuffer sets the per-client queue length; a full queue drops events.
func WithBuffer(n int) HubOption {
	return func(h *Hub) {
		if n > 0 {
			h.buffer = n
		}
	}
}

// WithAllowedOrigin restricts websocket upgrades to one browser origin.
func WithAllowedOrigin(origin string) HubOption {
	return func(h *Hub) {
		h.allowedOrigin = origin
	}
}

// WithMeter records connection and delivery counts on meter.
func WithMeter(meter metric.Meter) HubOption {
	return func(h *Hub) {
		if meter != nil {
			h.meter = meter
		}
	}
}

func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		clients: make(map[string]*Client),
		buffer:  defaultBuffer,
		meter:   noop.NewMeterProvider().Meter("realtime"),
	}
	for _, opt := range opts {
		opt(h)
	}
	if err := h.initInstruments(h.meter); err != nil {
		logger.L().Warn("realtime metrics unavailable", zap.Error(err))
		_ = h.initInstruments(noop.NewMeterProvider().Meter("realtime"))
	}
	return h
}

func (h *Hub) initInstruments(meter metric.Meter) error {
	var err error
	if h.connected, err = metrics.NewUpDownCounter(meter, "realtime_clients", "Connected display clients", "{client}"); err != nil {
		return err
	}
	if h.delivered, err = metrics.NewCounter(meter, "realtime_events_delivered_total", "Events queued to a display client", "{event}"); err != nil {
		return err
	}
	if h.dropped, err = metrics.NewCounter(meter, "realtime_events_dropped_total", "Events dropped on a full client queue", "{event}"); err != nil {
		return err
	}
	return nil
}

// newClient allocates a client with a fresh connection id and registers it.
func (h *Hub) newClient(restaurantID, userID int64) (*Client, error) {
	c := &Client{
		ID:           uuid.New().String(),
		RestaurantID: restaurantID,
		UserID:       userID,
		send:         make(chan []byte, h.buffer),
	}
	c.send <- helloMessage(c)

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, ErrHubClosed
	}
	h.clients[c.ID] = c
	h.connected.Add(context.Background(), 1)
	return c, nil
}

func helloMessage(c *Client) []byte {
	msg, _ := json.Marshal(NewEvent(EventConnected, c.RestaurantID, map[string]string{"id": c.ID}))
	return msg
}

// unregister removes the client and closes its queue. Safe to call twice.
func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c.ID]; !ok {
		return
	}
	delete(h.clients, c.ID)
	close(c.send)
	h.connected.Add(context.Background(), -1)
}

func (h *Hub) Publish(ctx context.Context, ev Event) {
	msg, err := json.Marshal(ev)
	if err != nil {
		logger.FromCtx(ctx).Error("failed to encode realtime event",
			zap.String("event", string(ev.Type)),
			zap.Error(err),
		)
		return
	}

	kind := attribute.String("event", string(ev.Type))

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, c := range h.clients {
		if c.RestaurantID != ev.RestaurantID {
			continue
		}
		select {
		case c.send <- msg:
			h.delivered.Inc(ctx, kind)
		default:
			h.dropped.Inc(ctx, kind)
			logger.FromCtx(ctx).Warn("client queue full, dropping event",
				zap.String("client_id", c.ID),
				zap.String("event", string(ev.Type)),
			)
		}
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for id, c := range h.clients {
		delete(h.clients, id)
		close(c.send)
		h.connected.Add(context.Background(), -1)
	}
}
