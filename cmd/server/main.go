// AICE relay server: chat ingress, broker result consumers and live viewer
// streams.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ashureev/aice-relay/internal/api"
	"github.com/ashureev/aice-relay/internal/broker"
	"github.com/ashureev/aice-relay/internal/cache"
	"github.com/ashureev/aice-relay/internal/config"
	"github.com/ashureev/aice-relay/internal/dropreply"
	"github.com/ashureev/aice-relay/internal/hub"
	"github.com/ashureev/aice-relay/internal/identity"
	"github.com/ashureev/aice-relay/internal/middleware"
	"github.com/ashureev/aice-relay/internal/pipeline"
	"github.com/ashureev/aice-relay/internal/store"
	"github.com/ashureev/aice-relay/internal/telemetry"
	"github.com/ashureev/aice-relay/internal/title"
	"github.com/ashureev/aice-relay/internal/turn"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, telemetry.Config{
		Enabled:     cfg.Telemetry.Enabled,
		Endpoint:    cfg.Telemetry.Endpoint,
		ServiceName: cfg.Telemetry.ServiceName,
	})
	if err != nil {
		slog.Error("Failed to initialize tracing", "error", err)
		os.Exit(1)
	}

	// Initialize dependencies.
	repo, err := openStore(ctx, cfg)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	if err := repo.Ping(ctx); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected", "postgres", cfg.DatabaseURL != "")

	kv, err := openCache(ctx, cfg)
	if err != nil {
		slog.Error("Failed to initialize cache", "error", err)
		os.Exit(1)
	}
	slog.Info("Cache ready", "redis", cfg.RedisURL != "")

	summarizer, closeSummarizer := openSummarizer(cfg, logger)

	// Initialize services.
	allocator := turn.NewAllocator(kv, repo, logger)

	h := hub.New(cfg.SSE.BufferSize, cfg.SSE.SendTimeout, logger)
	heartbeatCtx, stopHeartbeat := context.WithCancel(context.Background())
	h.StartHeartbeat(heartbeatCtx, cfg.SSE.HeartbeatInterval)

	titles := title.NewCoordinator(repo, kv, summarizer, title.Config{
		Workers:   cfg.Title.Workers,
		QueueSize: cfg.Title.QueueSize,
		Timeout:   cfg.Title.Timeout,
		GuardTTL:  cfg.Title.GuardTTL,
	}, logger)

	publisher, err := broker.NewKafkaPublisher(cfg.Kafka.Brokers, logger, pipeline.RecordPublish)
	if err != nil {
		slog.Error("Failed to initialize broker publisher", "error", err)
		os.Exit(1)
	}

	ingress := pipeline.NewIngress(repo, allocator,
		pipeline.NewEventPublisher(publisher, cfg.Kafka.RawTopic, logger),
		titles, h, cfg.Kafka.Producer, logger)
	consumers := pipeline.NewConsumers(repo, allocator, h, dropreply.New(nil), logger)

	topics := pipeline.Topics{
		Filter: cfg.Kafka.FilterTopic,
		Delta:  cfg.Kafka.DeltaTopic,
		Done:   cfg.Kafka.DoneTopic,
		Error:  cfg.Kafka.ErrorTopic,
	}
	sources := make(map[string]broker.Consumer)
	for _, topic := range []string{topics.Filter, topics.Delta, topics.Done, topics.Error} {
		c, err := broker.NewKafkaConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, topic, logger)
		if err != nil {
			slog.Error("Failed to initialize broker consumer", "topic", topic, "error", err)
			os.Exit(1)
		}
		sources[topic] = c
	}

	consumeCtx, stopConsumers := context.WithCancel(context.Background())
	consumeDone := make(chan error, 1)
	go func() {
		consumeDone <- consumers.Run(consumeCtx, topics, sources)
	}()
	slog.Info("Result consumers started", "group_id", cfg.Kafka.GroupID, "topics", len(sources))

	// Initialize handlers.
	chatHandler := api.NewChatHandler(repo, ingress, logger)
	streamHandler := hub.NewHandler(h, repo, hub.HandlerConfig{
		RetryDelay:     cfg.SSE.RetryDelay,
		OriginPatterns: cfg.AllowedOrigins(),
		IsDev:          cfg.IsDevelopment(),
	})
	extraChecks := map[string]api.Pinger{}
	if hc, ok := summarizer.(interface{ Health(context.Context) error }); ok {
		extraChecks["summarizer"] = api.PingFunc(hc.Health)
	}
	healthHandler := api.NewHealthHandler(repo, kv, cfg.Timeout.HealthCheck, extraChecks)

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(middleware.AccessLog(os.Stdout, identity.TokenQueryParam))
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/ping"))
	r.Use(middleware.CORS(cfg.AllowedOrigins()))
	r.Use(middleware.Metrics)

	// Public routes.
	healthHandler.RegisterHealth(r)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(identity.Middleware(repo, identity.Options{
			Secret:         cfg.Auth.JWTSecret,
			Issuer:         cfg.Auth.JWTIssuer,
			AllowDevHeader: cfg.IsDevelopment(),
		}))
		chatHandler.RegisterRoutes(r)
		streamHandler.RegisterRoutes(r)
	})

	if cfg.IsDevelopment() {
		r.Get("/api/debug/connections", streamHandler.HandleConnections)
	}

	// Create server.
	// Note: SSE connections require long timeouts (no WriteTimeout)
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      otelhttp.NewHandler(r, "aice-relay"),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,                 // 0 = no timeout for SSE support
		IdleTimeout:  120 * time.Second, // 2 minutes for idle connections
	}

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal or a consumer failure.
	select {
	case <-ctx.Done():
	case err := <-consumeDone:
		slog.Error("Result consumers stopped", "error", err)
		consumeDone <- err
	}
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	stopConsumers()
	if err := <-consumeDone; err != nil {
		slog.Warn("Consumer group exited with error", "error", err)
	}
	for topic, c := range sources {
		if err := c.Close(); err != nil {
			slog.Warn("Failed to close consumer", "topic", topic, "error", err)
		}
	}

	if err := titles.Close(); err != nil {
		slog.Warn("Title workers did not drain", "error", err)
	}
	closeSummarizer()

	stopHeartbeat()
	h.Close()

	if err := publisher.Close(); err != nil {
		slog.Error("Failed to flush broker publisher", "error", err)
	}
	if err := kv.Close(); err != nil {
		slog.Error("Failed to close cache", "error", err)
	}
	if err := repo.Close(); err != nil {
		slog.Error("Failed to close repository", "error", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		slog.Error("Failed to flush traces", "error", err)
	}

	slog.Info("Server stopped successfully")
}

// openStore uses Postgres when DATABASE_URL is set, SQLite otherwise.
func openStore(ctx context.Context, cfg *config.Config) (store.Repository, error) {
	if cfg.DatabaseURL != "" {
		return store.NewPostgres(ctx, cfg.DatabaseURL)
	}
	return store.NewSQLite(cfg.DBPath, store.RetryPolicy{
		MaxRetries: cfg.Retry.DatabaseMaxRetries,
		BaseDelay:  cfg.Retry.DatabaseRetryBaseDelay,
	})
}

// openCache uses Redis when REDIS_URL is set and a process-local cache
// otherwise.
func openCache(ctx context.Context, cfg *config.Config) (cache.Backend, error) {
	if cfg.RedisURL != "" {
		return cache.NewRedis(ctx, cfg.RedisURL)
	}
	slog.Warn("REDIS_URL not set, turn counters are process-local")
	return cache.NewMemory(), nil
}

// openSummarizer picks the gRPC summarizer, then the HTTP one. With neither
// configured, or when the gRPC service is unreachable, titles come from the
// local fallback.
func openSummarizer(cfg *config.Config, logger *slog.Logger) (title.Summarizer, func()) {
	if cfg.Title.GRPCAddr != "" {
		slog.Info("Attempting to connect to title service via gRPC", "address", cfg.Title.GRPCAddr)
		s, err := title.NewGRPCSummarizer(title.DefaultGRPCConfig(cfg.Title.GRPCAddr), logger)
		if err == nil {
			return s, s.Close
		}
		slog.Warn("Failed to connect to title service, falling back", "error", err)
	}
	if cfg.Title.APIURL != "" {
		return title.NewHTTPSummarizer(title.HTTPConfig{
			BaseURL: cfg.Title.APIURL,
			Path:    cfg.Title.APIPath,
			APIKey:  cfg.Title.APIKey,
			Model:   cfg.Title.Model,
			Timeout: cfg.Title.Timeout,
		}, logger), func() {}
	}
	slog.Info("Title summarizer disabled, using local fallback titles")
	return nil, func() {}
}
