// Package pushservice assembles the Boomerang push trigger: a Pub/Sub
// streaming pipeline and an HTTP endpoint, both feeding the same listener.
package pushservice

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/tinywideclouds/go-boomerang-push/internal/api"
	"github.com/tinywideclouds/go-boomerang-push/internal/pipeline"
	"github.com/tinywideclouds/go-boomerang-push/pkg/boomerang"
	"github.com/tinywideclouds/go-boomerang-push/pkg/dispatch"
	"github.com/tinywideclouds/go-boomerang-push/pushservice/config"
	"github.com/tinywideclouds/go-microservice-base/pkg/microservice"
)

type Wrapper struct {
	*microservice.BaseServer
	pipelineService *messagepipeline.StreamingService[boomerang.NotificationCreated]
	logger          *slog.Logger
}

// New assembles the service.
func New(
	cfg *config.Config,
	consumer messagepipeline.MessageConsumer,
	handler dispatch.NotificationHandler,
	logger *slog.Logger,
) (*Wrapper, error) {

	// 1. Base Server
	baseServer := microservice.NewBaseServer(logger, cfg.ListenAddr)

	// 2. Processor
	processor := pipeline.NewProcessor(handler, logger)

	// 3. Pipeline
	streamingService, err := messagepipeline.NewStreamingService(
		messagepipeline.StreamingServiceConfig{NumWorkers: cfg.NumPipelineWorkers},
		consumer,
		pipeline.DocumentEventTransformer,
		processor,
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create streaming service: %w", err)
	}

	// 4. API (push-style event delivery)
	triggerAPI := api.NewTriggerAPI(handler, logger)

	// Invoker authentication is enforced by the platform in front of the service.
	mux := baseServer.Mux()
	mux.Handle("POST /events/notification-created", http.HandlerFunc(triggerAPI.NotificationCreated))

	return &Wrapper{
		BaseServer:      baseServer,
		pipelineService: streamingService,
		logger:          logger,
	}, nil
}

func (w *Wrapper) Start(ctx context.Context) error {
	w.logger.Info("Core processing pipeline starting...")
	if err := w.pipelineService.Start(ctx); err != nil {
		return fmt.Errorf("failed to start processing service: %w", err)
	}
	w.SetReady(true)
	w.logger.Info("Service is now ready.")
	return w.BaseServer.Start()
}

func (w *Wrapper) Shutdown(ctx context.Context) error {
	w.logger.Info("Shutting down service components...")
	var finalErr error
	if err := w.pipelineService.Stop(ctx); err != nil {
		w.logger.Error("Processing pipeline shutdown failed.", "err", err)
		finalErr = err
	}
	if err := w.BaseServer.Shutdown(ctx); err != nil {
		w.logger.Error("HTTP server shutdown failed.", "err", err)
		finalErr = err
	}
	w.logger.Info("Service shutdown complete.")
	return finalErr
}
