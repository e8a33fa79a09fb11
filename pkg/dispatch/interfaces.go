package dispatch

import (
	"context"

	"github.com/tinywideclouds/go-boomerang-push/pkg/boomerang"
)

// Dispatcher sends one message to a batch of device tokens in a single
// provider call and reports a result for every token, in token order.
type Dispatcher interface {
	Dispatch(ctx context.Context, tokens []string, msg boomerang.PushMessage) ([]boomerang.SendResult, error)
}

// TokenStore gives read and delete access to the device tokens registered
// under users/{userId}/deviceTokens. Tokens are registered by client devices;
// the trigger never writes them.
type TokenStore interface {
	// Fetch returns every registered token for the user. The slice may be empty.
	Fetch(ctx context.Context, userID string) ([]string, error)

	// Delete removes a single token record. Deleting an absent token is not an error.
	Delete(ctx context.Context, userID, token string) error
}

// DeliveryGuard records which notification items have already been pushed so
// that a redelivered trigger event does not notify the user twice.
type DeliveryGuard interface {
	// Claim returns true if the caller is the first to handle the item.
	Claim(ctx context.Context, userID, itemID string) (bool, error)

	// Release forgets a claim so a later redelivery can try again.
	Release(ctx context.Context, userID, itemID string) error
}

// NotificationHandler runs the fetch, build, send and cleanup sequence for one
// created notification item.
type NotificationHandler interface {
	OnNotificationCreated(ctx context.Context, evt *boomerang.NotificationCreated) (boomerang.SendReport, error)
}
