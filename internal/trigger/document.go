// Package trigger decodes Firestore document-created events for notification
// items into boomerang.NotificationCreated values.
//
// The event body is the JSON envelope Firestore emits for document triggers:
//
//	{"value": {"name": "projects/p/databases/(default)/documents/notifications/u1/items/i1",
//	           "fields": {"type": {"stringValue": "like"}, ...},
//	           "createTime": "2024-05-01T10:00:00Z"}}
package trigger

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tinywideclouds/go-boomerang-push/pkg/boomerang"
)

var (
	ErrMissingDocument     = errors.New("event carries no created document")
	ErrInvalidDocumentPath = errors.New("document is not a notification item")
)

// DocumentEvent is the Firestore trigger envelope. Only Value is read; a
// create event has no OldValue.
type DocumentEvent struct {
	OldValue   *Document   `json:"oldValue,omitempty"`
	Value      *Document   `json:"value"`
	UpdateMask *UpdateMask `json:"updateMask,omitempty"`
}

type UpdateMask struct {
	FieldPaths []string `json:"fieldPaths"`
}

type Document struct {
	Name       string           `json:"name"`
	Fields     map[string]Value `json:"fields"`
	CreateTime time.Time        `json:"createTime"`
	UpdateTime time.Time        `json:"updateTime"`
}

// Value is a Firestore typed value. Kinds a notification item never uses
// (maps, arrays, geo points, references) are ignored.
type Value struct {
	StringValue    *string    `json:"stringValue,omitempty"`
	TimestampValue *time.Time `json:"timestampValue,omitempty"`
	IntegerValue   *string    `json:"integerValue,omitempty"`
	BooleanValue   *bool      `json:"booleanValue,omitempty"`
	NullValue      *string    `json:"nullValue,omitempty"`
}

// Decode parses a document event and extracts the owning user and the item.
// EventID is left empty; the transport fills it in.
func Decode(payload []byte) (*boomerang.NotificationCreated, error) {
	var evt DocumentEvent
	if err := json.Unmarshal(payload, &evt); err != nil {
		return nil, fmt.Errorf("failed to unmarshal document event: %w", err)
	}
	if evt.Value == nil || evt.Value.Name == "" {
		return nil, ErrMissingDocument
	}

	userID, itemID, err := ParseItemPath(evt.Value.Name)
	if err != nil {
		return nil, err
	}

	return &boomerang.NotificationCreated{
		UserID: userID,
		ItemID: itemID,
		Item:   itemFromFields(evt.Value.Fields),
	}, nil
}

// ParseItemPath extracts userId and itemId from a document name shaped
// notifications/{userId}/items/{itemId}. Both the full resource name and the
// path relative to the database root are accepted.
func ParseItemPath(name string) (userID, itemID string, err error) {
	rel := name
	if i := strings.Index(name, "/documents/"); i >= 0 {
		rel = name[i+len("/documents/"):]
	}

	parts := strings.Split(rel, "/")
	if len(parts) != 4 || parts[0] != "notifications" || parts[2] != "items" || parts[1] == "" || parts[3] == "" {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidDocumentPath, name)
	}
	return parts[1], parts[3], nil
}

func itemFromFields(fields map[string]Value) boomerang.NotificationItem {
	item := boomerang.NotificationItem{
		ActorUserID:    stringField(fields, "actorUserId"),
		ActorName:      stringField(fields, "actorName"),
		ActorAvatar:    stringField(fields, "actorAvatar"),
		BoomerangID:    stringField(fields, "boomerangId"),
		BoomerangImage: stringField(fields, "boomerangImage"),
		Text:           stringField(fields, "text"),
	}
	if t := stringField(fields, "type"); t != nil {
		item.Type = boomerang.NotificationType(*t)
	}
	if v, ok := fields["createdAt"]; ok && v.TimestampValue != nil {
		ts := *v.TimestampValue
		item.CreatedAt = &ts
	}
	return item
}

// stringField returns nil for a missing field, an explicit null, or a value
// of another kind.
func stringField(fields map[string]Value, key string) *string {
	v, ok := fields[key]
	if !ok || v.StringValue == nil {
		return nil
	}
	s := *v.StringValue
	return &s
}
