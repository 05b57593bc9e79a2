package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/Bill1907/prepup/internal/bootstrap"
	"github.com/Bill1907/prepup/internal/queue"
	"github.com/Bill1907/prepup/internal/shared/config"
	"github.com/Bill1907/prepup/internal/shared/telemetry"
	"github.com/Bill1907/prepup/internal/workerproc"
)

const (
	defaultVisibilitySeconds  = 1200
	defaultWorkerConcurrency  = 4
	defaultShutdownTimeoutSec = 30
)

// consumer is implemented by every queue backend.
type consumer interface {
	Consume(ctx context.Context, concurrency int, handle queue.Handler) error
}

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	concurrency := envInt("RA_WORKER_CONCURRENCY", defaultWorkerConcurrency)
	shutdownTimeout := time.Duration(envInt("RA_SHUTDOWN_TIMEOUT_SECONDS", defaultShutdownTimeoutSec)) * time.Second

	client, err := buildConsumer(ctx, cfg)
	if err != nil {
		log.Fatalf("queue: %v", err)
	}

	app, err := bootstrap.BuildWithQueue(cfg, client)
	if err != nil {
		log.Fatalf("bootstrap build: %v", err)
	}
	defer app.Close()

	telemetry.Info("worker.started", map[string]any{
		"backend":     cfg.QueueBackend,
		"concurrency": concurrency,
	})
	if err := run(ctx, client, app.AnalysesService, concurrency, shutdownTimeout); err != nil {
		log.Fatalf("worker: %v", err)
	}
}

// queueClient is both a producer and a consumer.
type queueClient interface {
	queue.Client
	consumer
}

func buildConsumer(ctx context.Context, cfg config.Config) (queueClient, error) {
	switch cfg.QueueBackend {
	case "sqs":
		if strings.TrimSpace(cfg.SQSQueueURL) == "" {
			return nil, fmt.Errorf("RA_SQS_QUEUE_URL is required")
		}
		c, err := queue.NewSQSClient(ctx, cfg.AWSRegion, cfg.SQSQueueURL)
		if err != nil {
			return nil, err
		}
		c.VisibilitySeconds = envInt("RA_SQS_VISIBILITY_TIMEOUT_SECONDS", defaultVisibilitySeconds)
		return c, nil
	case "rabbitmq":
		return queue.NewRabbitClient(cfg.RabbitMQURL, cfg.RabbitMQQueue)
	case "":
		return nil, fmt.Errorf("QUEUE_BACKEND is required")
	default:
		return nil, fmt.Errorf("%w: %s", queue.ErrUnknownBackend, cfg.QueueBackend)
	}
}

// run consumes until ctx is cancelled, then waits up to shutdownTimeout for
// in-flight jobs.
func run(ctx context.Context, c consumer, processor workerproc.Processor, concurrency int, shutdownTimeout time.Duration) error {
	done := make(chan error, 1)
	go func() {
		done <- c.Consume(ctx, concurrency, func(jobCtx context.Context, body string) bool {
			return workerproc.Handle(jobCtx, processor, body)
		})
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
	}

	telemetry.Info("worker.shutdown", map[string]any{"timeout_ms": shutdownTimeout.Milliseconds()})
	select {
	case err := <-done:
		return err
	case <-time.After(shutdownTimeout):
		telemetry.Warn("worker.shutdown_timeout", map[string]any{})
		return nil
	}
}

func envInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return val
}
