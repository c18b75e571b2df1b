package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"restohub-be/internal/logger"
	"restohub-be/internal/metrics"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"
)

const (
	DefaultExchange = "kitchen.events"

	defaultSinkBuffer = 256
	publishTimeout    = 5 * time.Second
)

// AMQPChannel is the part of *amqp.Channel the sink needs.
type AMQPChannel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

type outbound struct {
	msg amqp.Publishing
	log *zap.Logger
}

// RabbitMQSink mirrors events onto a fanout exchange for other consumers
// (printers, analytics). Publish only enqueues; a single goroutine talks to
// the broker, and a full queue drops the event.
type RabbitMQSink struct {
	conn     *amqp.Connection
	ch       AMQPChannel
	exchange string

	mu     sync.RWMutex
	closed bool
	queue  chan outbound
	done   chan struct{}

	// cancels in-flight publishes once Close gives up waiting
	abort        context.CancelFunc
	base         context.Context
	drainTimeout time.Duration

	dropped *metrics.Counter
}

type SinkOption func(*sinkOptions)

type sinkOptions struct {
	buffer int
	meter  metric.Meter
}

// WithSinkBuffer sets how many events may wait for the broker.
func WithSinkBuffer(n int) SinkOption {
	return func(o *sinkOptions) {
		if n > 0 {
			o.buffer = n
		}
	}
}

// WithSinkMeter counts events dropped on a full queue.
func WithSinkMeter(meter metric.Meter) SinkOption {
	return func(o *sinkOptions) {
		if meter != nil {
			o.meter = meter
		}
	}
}

// DialRabbitMQ connects and declares the fanout exchange.
func DialRabbitMQ(url, exchange string, opts ...SinkOption) (*RabbitMQSink, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	sink, err := NewRabbitMQSink(ch, exchange, opts...)
	if err != nil {
		conn.Close()
		return nil, err
	}
	sink.conn = conn
	return sink, nil
}

func NewRabbitMQSink(ch AMQPChannel, exchange string, opts ...SinkOption) (*RabbitMQSink, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}
	o := sinkOptions{buffer: defaultSinkBuffer, meter: noop.NewMeterProvider().Meter("realtime")}
	for _, opt := range opts {
		opt(&o)
	}

	if err := ch.ExchangeDeclare(
		exchange,
		"fanout", // kind
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,
	); err != nil {
		return nil, fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
	}

	dropped, err := metrics.NewCounter(o.meter, "realtime_broker_dropped_total", "Events dropped before reaching the broker", "{event}")
	if err != nil {
		return nil, err
	}

	base, abort := context.WithCancel(context.Background())
	s := &RabbitMQSink{
		ch:           ch,
		exchange:     exchange,
		queue:        make(chan outbound, o.buffer),
		done:         make(chan struct{}),
		base:         base,
		abort:        abort,
		drainTimeout: publishTimeout,
		dropped:      dropped,
	}
	go s.run()
	return s, nil
}

// Publish never blocks on the broker.
func (s *RabbitMQSink) Publish(ctx context.Context, ev Event) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "realtime"),
		zap.String("event", string(ev.Type)),
	)

	body, err := json.Marshal(ev)
	if err != nil {
		log.Error("failed to encode event for broker", zap.Error(err))
		return
	}

	out := outbound{
		msg: amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
			Timestamp:   ev.OccurredAt,
			Headers:     amqp.Table{"restaurant_id": ev.RestaurantID},
		},
		log: log,
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		log.Warn("broker sink closed, dropping event")
		return
	}
	select {
	case s.queue <- out:
	default:
		s.dropped.Inc(ctx, attribute.String("event", string(ev.Type)))
		log.Warn("broker queue full, dropping event")
	}
}

func (s *RabbitMQSink) run() {
	defer close(s.done)

	for out := range s.queue {
		ctx, cancel := context.WithTimeout(s.base, publishTimeout)
		err := s.ch.PublishWithContext(ctx,
			s.exchange, // exchange
			"",         // routing key
			false,      // mandatory
			false,      // immediate
			out.msg)
		cancel()

		if err != nil {
			out.log.Warn("failed to publish event to broker", zap.Error(err))
			continue
		}
		out.log.Debug("event mirrored to broker")
	}
}

// Close flushes queued events, waiting at most drainTimeout before
// aborting the rest, then closes the channel and connection.
func (s *RabbitMQSink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.queue)
	s.mu.Unlock()

	select {
	case <-s.done:
	case <-time.After(s.drainTimeout):
		logger.L().Warn("broker sink drain timed out, aborting pending events",
			zap.Int("pending", len(s.queue)),
		)
		s.abort()
		<-s.done
	}
	s.abort()

	chErr := s.ch.Close()
	if s.conn != nil {
		return s.conn.Close()
	}
	return chErr
}
