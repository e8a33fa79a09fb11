// Package fcm sends push messages through Firebase Cloud Messaging.
package fcm

import (
	"context"
	"fmt"
	"log/slog"

	"firebase.google.com/go/v4/messaging"
	"github.com/tinywideclouds/go-boomerang-push/pkg/boomerang"
)

// Provider classification codes attached to failed send results.
const (
	CodeRegistrationTokenNotRegistered = "messaging/registration-token-not-registered"
	CodeInvalidArgument                = "messaging/invalid-argument"
	CodeMismatchedCredential           = "messaging/mismatched-credential"
	CodeQuotaExceeded                  = "messaging/quota-exceeded"
	CodeThirdPartyAuthError            = "messaging/third-party-auth-error"
	CodeServerUnavailable              = "messaging/server-unavailable"
	CodeInternalError                  = "messaging/internal-error"
	CodeUnknownError                   = "messaging/unknown-error"
)

// MessagingClient defines the subset of the Firebase Messaging API we use.
// *messaging.Client satisfies it; tests substitute a mock.
type MessagingClient interface {
	SendEachForMulticast(ctx context.Context, msg *messaging.MulticastMessage) (*messaging.BatchResponse, error)
}

type Dispatcher struct {
	client MessagingClient
	logger *slog.Logger
}

func NewDispatcher(client MessagingClient, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		client: client,
		logger: logger.With("component", "FCMDispatcher"),
	}
}

// Dispatch sends msg to all tokens with one multicast call and returns one
// result per token, in the order given. A failure of the call itself is
// returned as an error; per-token failures are reported in the results.
func (d *Dispatcher) Dispatch(ctx context.Context, tokens []string, msg boomerang.PushMessage) ([]boomerang.SendResult, error) {
	if len(tokens) == 0 {
		return nil, nil
	}

	br, err := d.client.SendEachForMulticast(ctx, NewMulticastMessage(tokens, msg))
	if err != nil {
		return nil, fmt.Errorf("fcm multicast failed: %w", err)
	}

	results := make([]boomerang.SendResult, len(tokens))
	for idx, token := range tokens {
		results[idx].Token = token

		if idx >= len(br.Responses) || br.Responses[idx] == nil {
			// FCM answers every token; a short response list is a provider fault.
			results[idx].Code = CodeUnknownError
			continue
		}

		resp := br.Responses[idx]
		if resp.Success {
			results[idx].Success = true
			results[idx].MessageID = resp.MessageID
			continue
		}
		results[idx].Err = resp.Error
		results[idx].Code = ErrorCode(resp.Error)
	}

	d.logger.Debug("FCM multicast complete",
		"tokens", len(tokens),
		"success", br.SuccessCount,
		"failure", br.FailureCount,
	)
	return results, nil
}

// NewMulticastMessage builds the FCM envelope: the shared notification and
// data, APNs sound and badge, Android sound and priority.
func NewMulticastMessage(tokens []string, msg boomerang.PushMessage) *messaging.MulticastMessage {
	badge := msg.APNS.Badge
	return &messaging.MulticastMessage{
		Tokens: tokens,
		Data:   msg.Data,
		Notification: &messaging.Notification{
			Title: msg.Title,
			Body:  msg.Body,
		},
		APNS: &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{
					Sound: msg.APNS.Sound,
					Badge: &badge,
				},
			},
		},
		Android: &messaging.AndroidConfig{
			Priority: msg.Android.Priority,
			Notification: &messaging.AndroidNotification{
				Sound: msg.Android.Sound,
			},
		},
	}
}

// ErrorCode classifies a per-token send error into a provider code string.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case messaging.IsRegistrationTokenNotRegistered(err):
		return CodeRegistrationTokenNotRegistered
	case messaging.IsInvalidArgument(err):
		return CodeInvalidArgument
	case messaging.IsSenderIDMismatch(err):
		return CodeMismatchedCredential
	case messaging.IsQuotaExceeded(err):
		return CodeQuotaExceeded
	case messaging.IsThirdPartyAuthError(err):
		return CodeThirdPartyAuthError
	case messaging.IsUnavailable(err):
		return CodeServerUnavailable
	case messaging.IsInternal(err):
		return CodeInternalError
	default:
		return CodeUnknownError
	}
}
