package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/planvault/planvault/internal/api"
	"github.com/planvault/planvault/pkg/auth"
	"github.com/planvault/planvault/pkg/logging"
	"github.com/planvault/planvault/pkg/plan"
	"github.com/planvault/planvault/pkg/schema"
	"github.com/planvault/planvault/pkg/store"
)

func main() {
	// Configuration from environment
	addr := getEnv("PLANVAULT_ADDR", ":8080")
	redisURL := getEnv("REDIS_URL", "localhost:6379")
	jwtSecret := getEnv("PLANVAULT_JWT_SECRET", "")
	tokenIssuer := getEnv("PLANVAULT_TOKEN_ISSUER", "planvault")

	logger := logging.Setup(logging.Config{
		Level:  logging.LogLevel(getEnv("LOG_LEVEL", "info")),
		Pretty: getEnv("LOG_PRETTY", "") == "true",
		Output: os.Stderr,
	}).With().Str("component", "planvault").Logger()

	if jwtSecret == "" {
		logger.Fatal().Msg("PLANVAULT_JWT_SECRET is required")
	}

	// Setup Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr: redisURL,
	})
	defer redisClient.Close()

	ctx := context.Background()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Str("redis", redisURL).Msg("Failed to connect to Redis")
	}
	logger.Info().Str("redis", redisURL).Msg("Connected to Redis")

	// Wire the service
	validator, err := schema.NewValidator()
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to compile plan schema")
	}

	planStore := store.NewRedisStore(redisClient)

	planService, err := plan.NewService(planStore, validator)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create plan service")
	}

	verifier, err := auth.NewJWTVerifier([]byte(jwtSecret), tokenIssuer)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create token verifier")
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           api.NewServer(planService, verifier, planStore, api.Config{}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	// Serve until interrupted, then drain in-flight requests.
	shutdownCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info().Str("addr", addr).Msg("Starting planvault server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("Server failed")
		}
	}()

	<-shutdownCtx.Done()
	logger.Info().Msg("Shutting down")

	drainCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(drainCtx); err != nil {
		logger.Error().Err(err).Msg("Shutdown did not complete cleanly")
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
