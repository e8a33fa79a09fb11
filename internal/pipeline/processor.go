package pipeline

import (
	"context"
	"log/slog"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/tinywideclouds/go-boomerang-push/pkg/boomerang"
	"github.com/tinywideclouds/go-boomerang-push/pkg/dispatch"
)

// NewProcessor adapts a NotificationHandler to the streaming pipeline.
// A returned error Nacks the message so Pub/Sub redelivers it.
func NewProcessor(
	handler dispatch.NotificationHandler,
	logger *slog.Logger,
) messagepipeline.StreamProcessor[boomerang.NotificationCreated] {

	return func(ctx context.Context, original messagepipeline.Message, evt *boomerang.NotificationCreated) error {
		if _, err := handler.OnNotificationCreated(ctx, evt); err != nil {
			logger.Warn("Notification processing failed; message will be redelivered",
				"pubsub_msg_id", original.ID,
				"user_id", evt.UserID,
				"err", err,
			)
			return err
		}
		return nil
	}
}
