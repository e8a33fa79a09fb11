// Package message turns a notification item into the push message shown on
// the recipient's devices.
package message

import "github.com/tinywideclouds/go-boomerang-push/pkg/boomerang"

const (
	defaultActorName = "Someone"
	defaultTitle     = "Boomerang"
	defaultBody      = "You have a new notification"

	defaultSound    = "default"
	apnsBadge       = 1
	androidPriority = "high"
)

// Data keys sent with every push. They are always present, empty when the
// source field is missing.
const (
	DataKeyType        = "type"
	DataKeyActorUserID = "actorUserId"
	DataKeyBoomerangID = "boomerangId"
)

// Build maps a notification item to its push message. The user ID is not
// used for the content; it identifies the recipient in callers' logs.
func Build(_ string, item boomerang.NotificationItem) boomerang.PushMessage {
	title, body := defaultTitle, defaultBody
	actor := valueOr(item.ActorName, defaultActorName)

	switch item.Type {
	case boomerang.TypeFollow:
		title = "New follower"
		body = actor + " followed you"
	case boomerang.TypeLike:
		title = "New like"
		body = actor + " liked your boomerang"
	case boomerang.TypeComment:
		title = "New comment"
		body = actor + " commented on your boomerang"
	}

	return boomerang.PushMessage{
		Title: title,
		Body:  body,
		Data: map[string]string{
			DataKeyType:        string(item.Type),
			DataKeyActorUserID: valueOr(item.ActorUserID, ""),
			DataKeyBoomerangID: valueOr(item.BoomerangID, ""),
		},
		APNS: boomerang.APNSHints{
			Sound: defaultSound,
			Badge: apnsBadge,
		},
		Android: boomerang.AndroidHints{
			Sound:    defaultSound,
			Priority: androidPriority,
		},
	}
}

func valueOr(s *string, fallback string) string {
	if s == nil {
		return fallback
	}
	return *s
}
