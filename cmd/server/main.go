package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"restohub-be/internal/config"
	"restohub-be/internal/db"
	"restohub-be/internal/handler"
	"restohub-be/internal/kitchen"
	"restohub-be/internal/logger"
	"restohub-be/internal/metrics"
	"restohub-be/internal/middleware"
	"restohub-be/internal/order"
	"restohub-be/internal/product"
	"restohub-be/internal/realtime"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	serviceName     = "restohub-be"
	shutdownTimeout = 10 * time.Second
)

func main() {
	cfg := config.LoadConfig()
	logger.Init(cfg.AppEnv)
	defer logger.Sync()
	log := logger.L()

	database := db.InitDB(cfg)
	defer database.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	meters, err := metrics.NewProvider(ctx, metrics.Config{
		Enabled:        cfg.OTLPEndpoint != "",
		Endpoint:       cfg.OTLPEndpoint,
		ExportInterval: cfg.MetricsInterval,
		ServiceName:    serviceName,
		Insecure:       cfg.OTLPInsecure,
	})
	if err != nil {
		log.Fatal("failed to init metrics", zap.Error(err))
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := meters.Shutdown(flushCtx); err != nil {
			log.Warn("metrics flush failed", zap.Error(err))
		}
	}()
	meter := meters.Meter(serviceName)

	hub := realtime.NewHub(
		realtime.WithBuffer(cfg.WSBuffer),
		realtime.WithAllowedOrigin(cfg.CORSOrigin),
		realtime.WithMeter(meter),
	)
	notifier := realtime.Fanout{hub}

	if cfg.RabbitMQURL != "" {
		sink, err := realtime.DialRabbitMQ(cfg.RabbitMQURL, realtime.DefaultExchange,
			realtime.WithSinkBuffer(cfg.BrokerBuffer),
			realtime.WithSinkMeter(meter),
		)
		if err != nil {
			// the websocket hub still works without the broker
			log.Warn("rabbitmq mirror disabled", zap.Error(err))
		} else {
			defer sink.Close()
			notifier = append(notifier, sink)
			log.Info("mirroring events to rabbitmq", zap.String("exchange", realtime.DefaultExchange))
		}
	}

	productRepo := product.NewRepository(database)
	orderRepo := order.NewRepository(database)
	orderSvc := order.NewService(orderRepo, productRepo, notifier)
	kitchenSvc := kitchen.NewService(orderSvc, kitchen.WithMeter(meter))

	limiter := middleware.NewRateLimiter(cfg.InternalKey)
	defer limiter.Stop()

	srv := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           setupRouter(cfg, orderSvc, kitchenSvc, hub, limiter),
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.AppEnv))
	if err := run(ctx, srv, hub); err != nil {
		log.Fatal("server stopped with error", zap.Error(err))
	}
	log.Info("server stopped")
}

func setupRouter(
	cfg *config.Config,
	orders order.Service,
	queue kitchen.Service,
	hub *realtime.Hub,
	limiter *middleware.RateLimiter,
) http.Handler {
	return handler.NewRouter(handler.RouterDeps{
		Orders:     orders,
		Kitchen:    queue,
		Hub:        hub,
		Limiter:    limiter,
		JWTSecret:  cfg.JWTSecret,
		CORSOrigin: cfg.CORSOrigin,
	})
}

// run serves until ctx is cancelled, then disconnects realtime clients and
// drains in-flight requests.
func run(ctx context.Context, srv *http.Server, hub *realtime.Hub) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.L().Info("shutting down")

		// Hijacked websocket connections are not tracked by Shutdown.
		hub.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
