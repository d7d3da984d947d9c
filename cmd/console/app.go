package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"driver-console/internal/console/handler"
	"driver-console/internal/console/poll"
	"driver-console/internal/console/service"
	"driver-console/internal/console/state"
	"driver-console/internal/general/auth"
	"driver-console/internal/general/config"
	"driver-console/internal/general/events"
	"driver-console/internal/general/gateway"
	"driver-console/internal/general/geocode"
	"driver-console/internal/general/logger"
	"driver-console/internal/general/metrics"
	"driver-console/internal/general/rabbitmq"
)

// Run wires the console agent and blocks until ctx is cancelled.
func Run(ctx context.Context, configPath string, maxConcurrent int) error {
	// static request ID for startup logs
	log := logger.New("driver-console")
	ctx = log.WithRequestID(ctx, "startup-001")

	cfg, err := config.LoadFromFile(configPath)
	if err != nil {
		log.Error(ctx, "config_load_failed", "Failed to load configuration", err, nil)
		return err
	}

	metrics.Register()

	// session identity from the bearer token
	tokens := &auth.FileTokenSource{Path: cfg.Session.TokenFile}
	session, err := auth.NewSession(tokens)
	if err != nil {
		log.Error(ctx, "session_init_failed", "Failed to read driver identity from token", err, nil)
		return err
	}

	gw := gateway.New(cfg.Backend.BaseURL, cfg.BackendTimeout(), session, log)
	geocoder := geocode.New(cfg.Geocoder.BaseURL, cfg.Geocoder.RequestsPerSecond, log)

	// pick the push transport
	var channel events.Channel
	switch cfg.Events.Transport {
	case "rabbitmq":
		rmq, err := rabbitmq.Connect(ctx, cfg, log)
		if err != nil {
			log.Error(ctx, "rabbitmq_connection_failed", "Failed to connect to RabbitMQ", err, nil)
			return err
		}
		defer rmq.Close()
		channel = events.NewAMQPChannel(rmq, log)
	default:
		channel = events.NewWSChannel(cfg.Events.WebSocketURL, log)
	}

	store := state.NewStore()
	sched := poll.NewScheduler(log)

	svc := service.NewController(log, store, gw, geocoder, channel, sched, session.DriverID, cfg)
	if err := svc.Start(ctx); err != nil {
		log.Error(ctx, "controller_start_failed", "Failed to start console controller", err, nil)
		return err
	}
	defer svc.Stop()

	// HTTP surface for the UI and the metrics scrape
	mux := http.NewServeMux()
	httpHandler := handler.NewConsoleHTTPHandler(svc, log)
	httpHandler.RegisterRoutes(mux)
	mux.Handle("GET /metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	limitedHandler := withConcurrencyLimit(maxConcurrent, mux)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Console.Port),
		Handler:           limitedHandler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	log.Info(ctx, "service_started",
		fmt.Sprintf("Driver console started on port %d", cfg.Console.Port),
		map[string]any{"port": cfg.Console.Port, "driver_id": session.DriverID, "transport": cfg.Events.Transport},
	)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		// graceful HTTP shutdown on context cancel
		shCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		log.Info(ctx, "shutdown_started", "Draining HTTP server", nil)
		if err := srv.Shutdown(shCtx); err != nil && err != http.ErrServerClosed {
			log.Error(ctx, "http_shutdown_failed", "Failed to gracefully shut down HTTP server", err, nil)
		}
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			log.Error(ctx, "http_server_error", "HTTP server terminated with error", err, map[string]any{"port": cfg.Console.Port})
			return err
		}
		return nil
	}

	return nil
}

// withConcurrencyLimit wraps an http.Handler with a semaphore-based limiter.
// It controls how many HTTP requests can be in-progress at the same time.
func withConcurrencyLimit(n int, next http.Handler) http.Handler {
	if n <= 0 {
		return next
	}
	sem := make(chan struct{}, n)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case sem <- struct{}{}: // acquire
			defer func() { <-sem }() // release
			next.ServeHTTP(w, r)
		case <-r.Context().Done():
			// client canceled or server is shutting down
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		}
	})
}
