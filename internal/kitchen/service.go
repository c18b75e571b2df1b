package kitchen

import (
	"context"
	"sort"
	"time"

	"restohub-be/internal/logger"
	"restohub-be/internal/metrics"
	"restohub-be/internal/order"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"
)

// OrderLister is the read side the projector needs.
type OrderLister interface {
	ListOrders(ctx context.Context, restaurantID int64, filter order.ListFilter) ([]*order.Order, error)
}

type Service interface {
	GetQueue(ctx context.Context, restaurantID int64) ([]*order.Order, error)
}

type service struct {
	orders   OrderLister
	duration *metrics.Histogram
}

type Option func(*options)

type options struct {
	meter metric.Meter
}

// WithMeter records queue projection latency on meter.
func WithMeter(meter metric.Meter) Option {
	return func(o *options) {
		if meter != nil {
			o.meter = meter
		}
	}
}

func NewService(orders OrderLister, opts ...Option) Service {
	o := options{meter: noop.NewMeterProvider().Meter("kitchen")}
	for _, opt := range opts {
		opt(&o)
	}

	duration, err := metrics.NewHistogram(o.meter, "kitchen_queue_duration", "Time to build the kitchen queue")
	if err != nil {
		logger.L().Warn("kitchen metrics unavailable", zap.Error(err))
		duration, _ = metrics.NewHistogram(noop.NewMeterProvider().Meter("kitchen"), "kitchen_queue_duration", "")
	}
	return &service{orders: orders, duration: duration}
}

var queueStatuses = []order.OrderStatus{order.StatusOpen, order.StatusInProgress}

// GetQueue returns the restaurant's orders that still have pending or
// preparing items, oldest first. Each order carries only those items.
func (s *service) GetQueue(ctx context.Context, restaurantID int64) ([]*order.Order, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "GetQueue"),
	)
	start := time.Now()

	orders, err := s.orders.ListOrders(ctx, restaurantID, order.ListFilter{Statuses: queueStatuses})
	if err != nil {
		log.Error("failed to list orders", zap.Error(err))
		return nil, err
	}

	queue := make([]*order.Order, 0, len(orders))
	for _, o := range orders {
		active := make([]*order.OrderItem, 0, len(o.Items))
		for _, it := range o.Items {
			if it.Status.Active() {
				active = append(active, it)
			}
		}
		if len(active) == 0 {
			continue
		}

		// copy so the caller's order keeps all its items
		projected := *o
		projected.Items = active
		queue = append(queue, &projected)
	}

	sort.SliceStable(queue, func(i, j int) bool {
		if !queue[i].CreatedAt.Equal(queue[j].CreatedAt) {
			return queue[i].CreatedAt.Before(queue[j].CreatedAt)
		}
		return queue[i].ID < queue[j].ID
	})

	elapsed := time.Since(start)
	s.duration.RecordDuration(ctx, elapsed)

	log.Debug("GetQueue success",
		zap.Int("orders", len(queue)),
		zap.Duration("duration", elapsed),
	)
	return queue, nil
}
