// cmd/function-host/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	gcs "cloud.google.com/go/storage"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"legal-rag-functions/internal/common/auth"
	"legal-rag-functions/internal/common/config"
	"legal-rag-functions/internal/common/database"
	commonhttp "legal-rag-functions/internal/common/http"
	"legal-rag-functions/internal/common/llm"
	"legal-rag-functions/internal/common/logger"
	"legal-rag-functions/internal/common/observability"
	"legal-rag-functions/internal/common/storage"
	"legal-rag-functions/internal/host"
	"legal-rag-functions/pkg/registry"

	submitchat "legal-rag-functions/internal/functions/chat/submit-chat"
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
			delay *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New("info", "console")
		bootLog.Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()

	// Wrap zap logger with our logger interface
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting function host...",
		zap.String("app", cfg.App.Name),
		zap.String("environment", cfg.App.Environment),
	)

	obs := observability.New(cfg.App.Name, cfg.Tracing)
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Identity ---
	// A credential failure must not stop the host: calls that need it answer 500.
	cred, err := auth.NewCredential(cfg.Identity)
	if err != nil {
		zapLog.Error("credential unavailable, backend calls will fail", zap.Error(err))
		cred = auth.Unavailable(err)
	}

	outbound := commonhttp.NewClient(0)
	readiness := map[string]commonhttp.ReadinessCheck{}
	backends := host.Backends{Readiness: readiness}

	// --- Storage ---
	var gcsClient *gcs.Client
	if cfg.Storage.ProjectID != "" || cfg.Storage.Provider == config.StorageProviderGCS {
		gcsClient, err = gcs.NewClient(ctx)
		if err != nil {
			zapLog.Error("GCS client initialization failed", zap.Error(err))
		} else {
			defer gcsClient.Close()
			zapLog.Info("GCS client initialized")
		}
	}

	var s3Client *s3.Client
	if cfg.Storage.AWSRegion != "" || cfg.Storage.Provider == config.StorageProviderS3 {
		s3Client, err = storage.NewS3Client(ctx, cfg.Storage.AWSRegion)
		if err != nil {
			zapLog.Error("S3 client initialization failed", zap.Error(err))
		} else {
			zapLog.Info("S3 client initialized", zap.String("region", cfg.Storage.AWSRegion))
		}
	}

	tagRouter := storage.NewRouter().Register(storage.ProviderAzure, storage.NewAzureTagReader(cred, nil))
	if gcsClient != nil {
		tagRouter.Register(storage.ProviderGCS, storage.NewGCSTagReader(gcsClient))
	}
	if s3Client != nil {
		tagRouter.Register(storage.ProviderS3, storage.NewS3TagReader(s3Client))
	}
	backends.Tags = tagRouter

	if lister := newContainerLister(cfg, cred, gcsClient, s3Client, zapLog); lister != nil {
		backends.Containers = lister
	}

	// --- Search + Chat ---
	if config.IsFunctionEnabled(cfg, config.FunctionSubmitChat) {
		var esClient *database.ElasticsearchClient
		err = retryWithBackoff(func() error {
			var err error
			esClient, err = database.NewElasticsearch(cfg.Search, outbound.Transport())
			if err != nil {
				return err
			}
			pingCtx, cancel := context.WithTimeout(ctx, config.GetDuration(cfg.Search.Timeout))
			defer cancel()
			// Test the connection
			return esClient.Ping(pingCtx)
		}, 5, 2*time.Second, zapLog, "Search service connection")

		if err != nil {
			// The first query reports the outage to the caller.
			zapLog.Error("search service unreachable after retries", zap.Error(err))
		} else {
			zapLog.Info("Search service connected successfully", zap.String("index", cfg.Search.Index))
		}

		if esClient != nil {
			backends.Searcher = submitchat.NewESSearcher(esClient, submitchat.LoadConfig(cfg.Search, cfg.Chat))
			readiness["search"] = func(ctx context.Context) error {
				exists, err := esClient.IndexExists(ctx)
				if err != nil {
					return err
				}
				if !exists {
					return fmt.Errorf("index %q not found", esClient.Index)
				}
				return nil
			}
		}

		backends.Chat = llm.NewClient(cfg.Chat, cred, outbound.HTTPClient())
		zapLog.Info("Chat client configured",
			zap.String("deployment", cfg.Chat.Deployment),
			zap.String("primeMode", cfg.Chat.PrimeMode),
		)
	}

	// --- Registry ---
	reg := registry.Default()
	if cfg.Server.ManifestPath != "" {
		reg, err = registry.LoadRegistry(cfg.Server.ManifestPath)
		if err != nil {
			zapLog.Fatal("function manifest load failed", zap.Error(err))
		}
	}
	if err := reg.Validate(); err != nil {
		zapLog.Fatal("function manifest invalid", zap.Error(err))
	}

	router, err := host.NewRouter(cfg, reg, backends, obs, log)
	if err != nil {
		zapLog.Fatal("router setup failed", zap.Error(err))
	}

	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  config.GetDuration(cfg.Server.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.Server.WriteTimeout),
	}

	go func() {
		zapLog.Info("Function host listening", zap.String("address", cfg.Server.Address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Fatal("Function host failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, draining invocations...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.Server.ShutdownTimeout))
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error shutting down function host", zap.Error(err))
	}

	zapLog.Info("Function host stopped gracefully")
}

func newContainerLister(cfg *config.Config, cred azcore.TokenCredential, gcsClient *gcs.Client, s3Client *s3.Client, log *zap.Logger) storage.ContainerLister {
	switch cfg.Storage.Provider {
	case config.StorageProviderS3:
		if s3Client == nil {
			return nil
		}
		return storage.NewS3BucketLister(s3Client)
	case config.StorageProviderGCS:
		if gcsClient == nil {
			return nil
		}
		return storage.NewGCSBucketLister(gcsClient, cfg.Storage.ProjectID)
	default:
		lister, err := storage.NewAzureContainerLister(cfg.Storage.ServiceURL(), cred, nil)
		if err != nil {
			log.Error("container lister initialization failed", zap.Error(err))
			return nil
		}
		return lister
	}
}
