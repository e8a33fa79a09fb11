package main

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"

	firebase "firebase.google.com/go/v4"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/joho/godotenv"

	"github.com/tinywideclouds/go-boomerang-push/internal/pipeline"
	"github.com/tinywideclouds/go-boomerang-push/internal/platform/fcm"
	"github.com/tinywideclouds/go-boomerang-push/internal/storage/cache"
	fsStore "github.com/tinywideclouds/go-boomerang-push/internal/storage/firestore"

	"github.com/tinywideclouds/go-boomerang-push/pushservice"
	"github.com/tinywideclouds/go-boomerang-push/pushservice/config"

	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"gopkg.in/yaml.v3"
)

//go:embed local.yaml
var configFile []byte

// shutdownTimeout bounds the drain of in-flight events after a stop signal.
const shutdownTimeout = 20 * time.Second

func main() {
	var logLevel slog.Level
	switch os.Getenv("LOG_LEVEL") {
	case "debug", "DEBUG":
		logLevel = slog.LevelDebug
	case "info", "INFO":
		logLevel = slog.LevelInfo
	case "warn", "WARN":
		logLevel = slog.LevelWarn
	case "error", "ERROR":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})).With("service", "go-boomerang-push")
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger); err != nil {
		logger.Error("Service exited with error", "err", err)
		stop()
		os.Exit(1)
	}
}

// run builds every client and the service, then serves until ctx is done.
// Returning instead of exiting lets the deferred client closes run.
func run(ctx context.Context, logger *slog.Logger) error {
	// A local .env only feeds the env overrides below; deployed environments have none.
	if err := godotenv.Load(); err != nil {
		logger.Debug("No .env file loaded", "err", err)
	}

	// --- Config Loading ---
	var yamlCfg config.YamlConfig
	if err := yaml.Unmarshal(configFile, &yamlCfg); err != nil {
		return fmt.Errorf("failed to unmarshal embedded yaml config: %w", err)
	}
	baseCfg, err := config.NewConfigFromYaml(&yamlCfg, logger)
	if err != nil {
		return fmt.Errorf("invalid embedded yaml config: %w", err)
	}
	cfg, err := config.UpdateConfigWithEnvOverrides(baseCfg, logger)
	if err != nil {
		return fmt.Errorf("config failed: %w", err)
	}

	var clientOpts []option.ClientOption
	if cfg.CredentialsFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	// --- Infrastructure Clients ---
	psClient, err := pubsub.NewClient(ctx, cfg.ProjectID, clientOpts...)
	if err != nil {
		return fmt.Errorf("pubsub client failed: %w", err)
	}
	defer psClient.Close()

	fsClient, err := firestore.NewClient(ctx, cfg.ProjectID, clientOpts...)
	if err != nil {
		return fmt.Errorf("firestore client failed: %w", err)
	}
	defer fsClient.Close()

	tokenStore := fsStore.NewFirestoreStore(fsClient)

	// --- Push Provider (FCM) ---
	fbApp, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.ProjectID}, clientOpts...)
	if err != nil {
		return fmt.Errorf("failed to initialize firebase app: %w", err)
	}
	fcmMessaging, err := fbApp.Messaging(ctx)
	if err != nil {
		return fmt.Errorf("failed to create fcm messaging client: %w", err)
	}
	fcmDispatcher := fcm.NewDispatcher(fcmMessaging, logger)

	// --- Listener ---
	listenerOpts := []pipeline.Option{pipeline.WithMaxConcurrentDeletes(cfg.MaxConcurrentDeletes)}
	if cfg.Redis.Enabled {
		logger.Info("Initializing Redis delivery guard...", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.DedupeTTL)
		redisClient, err := cache.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer redisClient.Close()
		listenerOpts = append(listenerOpts, pipeline.WithDeliveryGuard(cache.NewDeliveryGuard(redisClient, cfg.Redis.DedupeTTL)))
	} else {
		logger.Info("Delivery guard disabled; redelivered events will push again")
	}
	listener := pipeline.NewListener(tokenStore, fcmDispatcher, logger, listenerOpts...)

	// --- Consumer & Service ---
	consumer, err := newIngestionConsumer(ctx, cfg, psClient, logger)
	if err != nil {
		return fmt.Errorf("consumer creation failed: %w", err)
	}

	service, err := pushservice.New(cfg, consumer, listener, logger)
	if err != nil {
		return fmt.Errorf("service creation failed: %w", err)
	}

	return serve(ctx, service, shutdownTimeout, logger)
}

type lifecycle interface {
	Start(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

// serve starts svc and blocks until it stops on its own or ctx is done.
// On ctx done it calls Shutdown first so in-flight events finish; the
// context handed to Start is only cancelled after that.
func serve(ctx context.Context, svc lifecycle, timeout time.Duration, logger *slog.Logger) error {
	runCtx, cancelRun := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelRun()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting service...")
		errCh <- svc.Start(runCtx)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Stop signal received, draining...")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	shutdownErr := svc.Shutdown(shutdownCtx)
	cancelRun()

	if err := <-errCh; err != nil {
		return err
	}
	return shutdownErr
}

// newIngestionConsumer ensures the subscription for document-created events
// exists (with a dead-letter policy when a DLQ topic is configured) and
// returns a consumer for it. Without a topic the subscription must already exist.
func newIngestionConsumer(ctx context.Context, cfg *config.Config, psClient *pubsub.Client, logger *slog.Logger) (messagepipeline.MessageConsumer, error) {
	sub := convertPubsub(cfg.ProjectID, cfg.SubscriptionID, "subscriptions")

	if cfg.TopicID != "" {
		subConfig := &pubsubpb.Subscription{
			Name:                  sub,
			Topic:                 convertPubsub(cfg.ProjectID, cfg.TopicID, "topics"),
			AckDeadlineSeconds:    10,
			EnableMessageOrdering: false,
		}
		if cfg.SubscriptionDLQTopicID != "" {
			subConfig.DeadLetterPolicy = &pubsubpb.DeadLetterPolicy{
				DeadLetterTopic:     convertPubsub(cfg.ProjectID, cfg.SubscriptionDLQTopicID, "topics"),
				MaxDeliveryAttempts: 5,
			}
		}

		logger.Debug("Ensuring subscription exists", "sub", subConfig.Name, "topic", subConfig.Topic)
		_, err := psClient.SubscriptionAdminClient.CreateSubscription(ctx, subConfig)
		if err != nil {
			if status.Code(err) == codes.AlreadyExists {
				logger.Debug("Subscription already exists, skipping creation", "sub", subConfig.Name)
			} else {
				logger.Error("Failed to create subscription", "sub", subConfig.Name, "err", err)
				return nil, fmt.Errorf("could not create sub %s: %w", sub, err)
			}
		}
	}

	return messagepipeline.NewGooglePubsubConsumer(cfg.PubsubConsumerConfig, psClient, logger)
}

type PS string

func convertPubsub(project, id string, ps PS) string {
	return fmt.Sprintf("projects/%s/%s/%s", project, ps, id)
}
