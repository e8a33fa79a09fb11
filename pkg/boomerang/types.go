// Package boomerang contains the domain model shared by the push trigger:
// the notification documents written by the app, the push message built from
// them, and the per-token outcome of a multicast send.
package boomerang

import "time"

// NotificationType is the semantic tag of a notification item. The app writes
// the three known values below, but any other string is accepted.
type NotificationType string

const (
	TypeFollow  NotificationType = "follow"
	TypeLike    NotificationType = "like"
	TypeComment NotificationType = "comment"
)

// NotificationItem mirrors a document stored at notifications/{userId}/items/{itemId}.
// Optional fields are pointers so that a missing field is distinguishable from
// an empty string.
type NotificationItem struct {
	Type           NotificationType
	ActorUserID    *string
	ActorName      *string
	ActorAvatar    *string
	BoomerangID    *string
	BoomerangImage *string
	Text           *string
	CreatedAt      *time.Time
}

// NotificationCreated is a single trigger invocation: one newly created
// notification item and the user who owns it.
type NotificationCreated struct {
	EventID string
	UserID  string
	ItemID  string
	Item    NotificationItem
}

// APNSHints are the iOS delivery hints carried in the aps dictionary.
type APNSHints struct {
	Sound string
	Badge int
}

// AndroidHints are the Android delivery hints.
type AndroidHints struct {
	Sound    string
	Priority string
}

// PushMessage is the provider-agnostic description of what every device of
// the recipient receives.
type PushMessage struct {
	Title   string
	Body    string
	Data    map[string]string
	APNS    APNSHints
	Android AndroidHints
}

// SendResult is the provider's verdict for one token of a multicast send.
// Code is the provider classification string (e.g.
// "messaging/registration-token-not-registered") and is empty on success.
type SendResult struct {
	Token     string
	Success   bool
	MessageID string
	Code      string
	Err       error
}

// SendReport summarises one invocation.
type SendReport struct {
	Sent           int
	Failed         int
	Deleted        int
	DeleteFailures int
}
