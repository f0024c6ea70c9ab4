package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"

	"webhook-relay/internal/budget"
	"webhook-relay/internal/common/logging"
	"webhook-relay/internal/config"
	"webhook-relay/internal/dlq"
	"webhook-relay/internal/facts"
	"webhook-relay/internal/handlers"
	"webhook-relay/internal/idempotency"
	"webhook-relay/internal/middleware"
	"webhook-relay/internal/monitor"
	"webhook-relay/internal/ratelimit"
	"webhook-relay/internal/relay"
	"webhook-relay/internal/retry"
	"webhook-relay/internal/scheduler"
	"webhook-relay/internal/server"
	"webhook-relay/internal/signature"
)

func main() {
	_ = godotenv.Load()
	nCPU := runtime.NumCPU()
	runtime.GOMAXPROCS(nCPU)
	fmt.Printf("Number of CPUs: %d\n", nCPU)

	// Load and validate configuration
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Initialize logging
	logging.InitGlobalLogger()
	logger := logging.GetGlobalLogger()
	defer logging.MustSync()

	ctx := context.Background()

	// Facts sink: Postgres when configured, discard otherwise
	var sink facts.Sink
	if cfg.FactsDatabaseURL != "" {
		pgSink, err := facts.NewPostgresSink(ctx, cfg.FactsDatabaseURL)
		if err != nil {
			log.Fatalf("Failed to initialize facts sink: %v", err)
		}
		sink = pgSink
	} else {
		sink = facts.NewNoopSink()
	}
	emitter := facts.NewEmitter(sink, logger)
	defer emitter.Close()

	// Idempotency store
	var backend idempotency.Backend
	switch cfg.IdempotencyBackend {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddress,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer client.Close()
		backend = idempotency.NewRedisBackend(client, "idem:")
	default:
		backend = idempotency.NewMemoryBackend(cfg.IdempotencyTTL, time.Hour)
	}
	store := idempotency.NewStore(backend, logger)

	// Dead-letter store
	dlqStore, err := dlq.NewSQLiteStore(cfg.DLQDatabasePath)
	if err != nil {
		log.Fatalf("Failed to initialize dead-letter store: %v", err)
	}
	defer dlqStore.Close()
	recorder := dlq.NewRecorder(dlqStore, logger)

	// Shared reliability state
	limiter, err := ratelimit.NewRegistry(ratelimit.Config{
		Capacity: cfg.RateLimitCapacity,
		Window:   cfg.RateLimitWindow,
		Enabled:  true,
	})
	if err != nil {
		log.Fatalf("Failed to initialize rate limiter: %v", err)
	}

	tracker := budget.NewTracker(budget.WithDefaultCap(cfg.RetryBudgetCap))

	monitorConfig := monitor.Config{
		WindowSize:           monitor.DefaultWindowSize,
		QueueDepthAlert:      cfg.QueueDepthAlert,
		QueueDepthEscalation: cfg.QueueDepthEscalation,
		Defaults: monitor.SLAConfig{
			P95LatencyMs:        cfg.SLAP95LatencyMs,
			ErrorRatePercent:    cfg.SLAErrorRatePercent,
			AvailabilityPercent: cfg.SLAAvailabilityPercent,
		},
	}
	mon, err := monitor.New(monitorConfig, emitter, logger)
	if err != nil {
		log.Fatalf("Failed to initialize SLA monitor: %v", err)
	}

	// Delivery forwarder
	relayConfig := relay.Config{
		Endpoint:    cfg.AgentEndpoint,
		ServiceName: cfg.AgentServiceName,
		Timeout:     cfg.ForwardTimeout,
		Policy: retry.Policy{
			MaxAttempts:   cfg.RetryMaxAttempts,
			BaseDelay:     cfg.RetryBaseDelay,
			MaxDelay:      cfg.RetryMaxDelay,
			BackoffFactor: cfg.RetryBackoffFactor,
			JitterFactor:  0.1,
		},
	}
	forwarder, err := relay.NewForwarder(relayConfig, limiter, tracker, mon, recorder, emitter, logger)
	if err != nil {
		log.Fatalf("Failed to initialize forwarder: %v", err)
	}

	verifier := signature.NewVerifier(cfg.WebhookSecret, logger)

	// Routes
	h := handlers.New(verifier, cfg.SignatureHeader, store, forwarder, tracker, mon, recorder, logger)
	router := mux.NewRouter()
	router.Use(middleware.RequestID, middleware.Logging)
	h.Register(router)

	// Periodic maintenance
	sched := scheduler.New(store, tracker, mon, emitter, logger)
	if err := sched.Start(); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	srv := server.New(router, cfg.Port)
	if err := srv.Start(); err != nil {
		log.Fatalf("Server failed to start: %v", err)
	}
	logger.Info("Webhook relay started",
		logging.Field{Key: "port", Value: cfg.Port},
		logging.Field{Key: "agent_endpoint", Value: cfg.AgentEndpoint},
		logging.Field{Key: "idempotency_backend", Value: cfg.IdempotencyBackend},
	)

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server exited")
}
