package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/CDeX-Labs/CDeX-Duel-Service/config"
	"github.com/CDeX-Labs/CDeX-Duel-Service/internal/auth"
	"github.com/CDeX-Labs/CDeX-Duel-Service/internal/duel"
	"github.com/CDeX-Labs/CDeX-Duel-Service/internal/gateway"
	"github.com/CDeX-Labs/CDeX-Duel-Service/internal/hub"
	"github.com/CDeX-Labs/CDeX-Duel-Service/internal/judge"
	"github.com/CDeX-Labs/CDeX-Duel-Service/internal/kafka"
	"github.com/CDeX-Labs/CDeX-Duel-Service/internal/metrics"
	"github.com/CDeX-Labs/CDeX-Duel-Service/internal/middleware"
	"github.com/CDeX-Labs/CDeX-Duel-Service/internal/presence"
	redisclient "github.com/CDeX-Labs/CDeX-Duel-Service/internal/redis"
	"github.com/CDeX-Labs/CDeX-Duel-Service/internal/store"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

func main() {
	cfg := config.InitConfig(os.Getenv("APP_ENV") != "production")

	logger := zerolog.New(os.Stdout).With().
		Timestamp().
		Str("service", cfg.App.Name).
		Logger()

	if cfg.Auth.JWTSecret == "" {
		logger.Fatal().Msg("JWT_SECRET is required")
	}

	redisClient, err := redisclient.NewClient(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer redisClient.Close()

	m := metrics.New()
	validator := auth.NewJWTValidator(cfg.Auth.JWTSecret)
	dataStore := store.NewRedisStore(redisClient, logger)
	judgeClient := judge.NewClient(cfg.Judge.BaseURL, cfg.Judge.APIKey, cfg.Judge.APIHost, cfg.Judge.Timeout, logger)

	var producer *kafka.Producer
	var events duel.EventPublisher
	if cfg.Kafka.Enabled {
		producer = kafka.NewProducer(cfg.Kafka.Brokers, logger)
		events = producer
		defer producer.Close()
	}

	instanceID := uuid.New().String()[:8]
	presenceManager := presence.NewManager(redisClient, instanceID, logger)

	h := hub.NewHub(logger)
	registry := duel.NewRegistry(cfg.Duel.EvictionGrace, logger)
	coordinator := gateway.NewCoordinator(h, registry, validator, dataStore, judgeClient, events, presenceManager, m, cfg, logger)

	go h.Run()

	wsHandler := gateway.NewWebSocketHandler(h, coordinator, m, logger)
	rateLimiter := middleware.NewRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window, logger)

	mux := http.NewServeMux()
	mux.Handle("/v1/duel/ws", rateLimiter.Middleware(wsHandler))
	mux.HandleFunc("/healthz", gateway.HealthHandler())
	mux.HandleFunc("/readyz", gateway.ReadyHandler(h, registry))
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:    ":" + cfg.App.Port,
		Handler: mux,
	}

	go func() {
		logger.Info().Str("port", cfg.App.Port).Str("instanceId", instanceID).Msg("Code Duel server started")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down Code Duel server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("Server shutdown failed")
	}
}
