package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/aws/aws-sdk-go-v2/otelaws"

	"github.com/reelworks/vod-pipeline/internal/catalog"
	"github.com/reelworks/vod-pipeline/internal/config"
	"github.com/reelworks/vod-pipeline/internal/engine"
	"github.com/reelworks/vod-pipeline/internal/logger"
	"github.com/reelworks/vod-pipeline/internal/observability"
	"github.com/reelworks/vod-pipeline/internal/pipeline"
	"github.com/reelworks/vod-pipeline/internal/queue"
	"github.com/reelworks/vod-pipeline/internal/storage"
)

const (
	TracerShutdownTimeout = 5 * time.Second
	AWSConfigTimeout      = 10 * time.Second
	MetricsReadTimeout    = 5 * time.Second
)

func main() {
	// Initialize logger
	log := logger.New()
	slog.SetDefault(log)

	// Load .env file if present
	if err := godotenv.Load(); err != nil {
		log.Info("No .env file found, using system environment variables")
	}

	// Load configuration
	cfg, err := config.LoadWorker()
	if err != nil {
		log.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Initialize tracer
	shutdownTracer := observability.InitTracer(context.Background(), "vod-worker", cfg.Observability.OTLPEndpoint, cfg.Environment)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), TracerShutdownTimeout)
		defer cancel()
		if err := shutdownTracer(ctx); err != nil {
			log.Error("Failed to shutdown tracer", "error", err)
		}
	}()

	// Initialize AWS clients
	awsCtx, awsCancel := context.WithTimeout(context.Background(), AWSConfigTimeout)
	defer awsCancel()

	awsCfg, err := awsconfig.LoadDefaultConfig(awsCtx, awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		log.Error("Failed to load AWS config", "error", err)
		os.Exit(1)
	}
	otelaws.AppendMiddlewares(&awsCfg.APIOptions)

	store := storage.NewClientFromAWSConfig(awsCfg)
	sqsClient := sqs.NewFromConfig(awsCfg)
	ddbClient := dynamodb.NewFromConfig(awsCfg)
	catalogStore := catalog.NewStoreFromClient(ddbClient, cfg.AWS.DynamoDBTable)
	jobQueue := queue.New(sqsClient, cfg.AWS.SQSQueueURL)

	workerID := fmt.Sprintf("worker-%s", uuid.New().String())

	processor := pipeline.NewProcessor(&pipeline.ProcessorConfig{
		Catalog:         catalogStore,
		Store:           store,
		Engine:          engine.NewFFmpeg(log),
		WorkerID:        workerID,
		WorkDir:         cfg.Worker.WorkDir,
		ProcessedBucket: cfg.AWS.ProcessedBucket,
		MaxDuration:     cfg.Worker.MaxSourceDuration,
		Logger:          log,
	})

	worker := pipeline.NewWorker(&pipeline.WorkerConfig{
		Jobs:          jobQueue,
		Processor:     processor,
		MaxConcurrent: cfg.Worker.MaxConcurrentJobs,
		Logger:        log,
	})

	// Expose metrics
	metricsServer := &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Worker.MetricsPort),
		Handler:     promhttp.Handler(),
		ReadTimeout: MetricsReadTimeout,
	}
	go func() {
		log.Info("Starting metrics server", "port", cfg.Worker.MetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Metrics server error", "error", err)
		}
	}()

	// Run the worker until interrupted
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("Worker started", "workerId", workerID)
	worker.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), TracerShutdownTimeout)
	defer cancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		log.Error("Metrics server forced to shutdown", "error", err)
	}

	log.Info("Worker shutdown complete")
}
