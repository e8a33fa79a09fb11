// Package pipeline contains the core processing for a created notification:
// fetch the recipient's tokens, build the message, send it, prune dead tokens.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tinywideclouds/go-boomerang-push/internal/message"
	"github.com/tinywideclouds/go-boomerang-push/pkg/boomerang"
	"github.com/tinywideclouds/go-boomerang-push/pkg/dispatch"
)

// Listener handles notification-created events. It holds no per-event state
// and is safe for concurrent use.
type Listener struct {
	store                dispatch.TokenStore
	dispatcher           dispatch.Dispatcher
	guard                dispatch.DeliveryGuard
	maxConcurrentDeletes int
	logger               *slog.Logger
}

type Option func(*Listener)

// WithDeliveryGuard skips items that were already pushed. Without a guard
// every delivered event is processed.
func WithDeliveryGuard(guard dispatch.DeliveryGuard) Option {
	return func(l *Listener) { l.guard = guard }
}

// WithMaxConcurrentDeletes bounds the token deletions in flight. Zero means unbounded.
func WithMaxConcurrentDeletes(n int) Option {
	return func(l *Listener) { l.maxConcurrentDeletes = n }
}

func NewListener(store dispatch.TokenStore, dispatcher dispatch.Dispatcher, logger *slog.Logger, opts ...Option) *Listener {
	l := &Listener{
		store:      store,
		dispatcher: dispatcher,
		logger:     logger.With("component", "Listener"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// OnNotificationCreated runs the fetch, build, send and cleanup sequence.
// Token-read and send failures are returned; the caller's runtime decides
// whether the event is redelivered.
func (l *Listener) OnNotificationCreated(ctx context.Context, evt *boomerang.NotificationCreated) (report boomerang.SendReport, err error) {
	logger := l.logger.With(
		"user_id", evt.UserID,
		"item_id", evt.ItemID,
		"event_id", evt.EventID,
	)

	if l.guard != nil {
		claimed, claimErr := l.guard.Claim(ctx, evt.UserID, evt.ItemID)
		switch {
		case claimErr != nil:
			// Fail open.
			logger.Warn("Delivery guard unavailable; processing anyway", "err", claimErr)
		case !claimed:
			logger.Info("Notification already delivered; skipping")
			return report, nil
		default:
			defer func() {
				if err == nil {
					return
				}
				if relErr := l.guard.Release(context.WithoutCancel(ctx), evt.UserID, evt.ItemID); relErr != nil {
					logger.Warn("Failed to release delivery claim", "err", relErr)
				}
			}()
		}
	}

	tokens, err := l.store.Fetch(ctx, evt.UserID)
	if err != nil {
		logger.Error("Failed to fetch device tokens", "err", err)
		return report, fmt.Errorf("failed to fetch device tokens: %w", err)
	}
	if len(tokens) == 0 {
		logger.Info("No device tokens registered for user; nothing to send")
		return report, nil
	}

	msg := message.Build(evt.UserID, evt.Item)

	report, err = l.SendAndCleanup(ctx, evt.UserID, tokens, msg)
	if err != nil {
		logger.Error("Push send failed", "tokens", len(tokens), "err", err)
		return report, fmt.Errorf("failed to send push: %w", err)
	}

	logger.Info("Push dispatched",
		"type", string(evt.Item.Type),
		"sent", report.Sent,
		"failed", report.Failed,
		"deleted", report.Deleted,
		"delete_failures", report.DeleteFailures,
	)
	return report, nil
}
