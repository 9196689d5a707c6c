// cmd/router/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"bedrock-router/internal/common/aws"
	"bedrock-router/internal/common/config"
	"bedrock-router/internal/common/database"
	"bedrock-router/internal/common/logger"
	intake "bedrock-router/internal/intake/sqs"
	"bedrock-router/internal/pipeline/batch"
	"bedrock-router/internal/pipeline/cachestore"
	"bedrock-router/internal/pipeline/invoke"
	"bedrock-router/internal/pipeline/route"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallback := logger.New("info", "console")
		fallback.Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting request router...",
		zap.String("environment", cfg.App.Environment),
		zap.String("version", cfg.App.Version),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Init Redis with retry ---
	var redis *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		redis, err = database.NewRedis(cfg.Cache.Redis)
		if err != nil {
			return err
		}
		return redis.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer redis.Close()
	zapLog.Info("Redis connected successfully")

	// --- Init AWS clients with retry ---
	var bedrock *aws.BedrockClient
	err = retryWithBackoff(func() error {
		var err error
		bedrock, err = aws.NewBedrockClient(ctx, cfg.Bedrock.Region)
		return err
	}, 5, 2*time.Second, zapLog, "Bedrock client initialization")
	if err != nil {
		zapLog.Fatal("bedrock client failed after retries", zap.Error(err))
	}

	var queue *aws.SQSClient
	err = retryWithBackoff(func() error {
		var err error
		queue, err = aws.NewSQSClient(ctx, cfg.Intake.Region, cfg.Intake.QueueURL)
		return err
	}, 5, 2*time.Second, zapLog, "SQS client initialization")
	if err != nil {
		zapLog.Fatal("sqs client failed after retries", zap.Error(err))
	}
	zapLog.Info("AWS clients initialized")

	// --- Assemble the pipeline ---
	store, err := cachestore.New(redis, cfg.Cache, log)
	if err != nil {
		zapLog.Fatal("cache store init failed", zap.Error(err))
	}
	defer store.Close()

	table := route.NewTable(cfg.Routing)
	zapLog.Info("Routing table loaded",
		zap.Strings("applications", table.Applications()),
		zap.Bool("wildcard", table.HasWildcard()),
	)

	invoker := invoke.NewInvoker(bedrock, cfg.Pipeline, log)
	coordinator := batch.NewCoordinator(store, table, invoker, *cfg, log)
	consumer := intake.NewConsumer(queue, coordinator, *cfg, log)

	// --- Health & Metrics Server ---
	go func() {
		http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{
				"status": "healthy",
				"time":   time.Now().Format(time.RFC3339),
			})
		})
		http.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
			if err := redis.Ping(r.Context()); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{
				"status": "ready",
				"time":   time.Now().Format(time.RFC3339),
			})
		})
		http.Handle("/metrics", promhttp.Handler())
		zapLog.Info("Health/Metrics server listening", zap.String("addr", cfg.App.MetricsAddr))
		if err := http.ListenAndServe(cfg.App.MetricsAddr, nil); err != nil {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Run until shutdown signal ---
	if err := consumer.Run(ctx); err != nil {
		zapLog.Error("consumer stopped with error", zap.Error(err))
	}

	zapLog.Info("Shutdown complete")
}
