package pipeline

import (
	"context"
	"fmt"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/tinywideclouds/go-boomerang-push/internal/trigger"
	"github.com/tinywideclouds/go-boomerang-push/pkg/boomerang"
)

// DocumentEventTransformer is a dataflow Transformer that decodes a Firestore
// document-created event carried in a Pub/Sub message.
//
// Undecodable payloads and documents outside notifications/{userId}/items
// return an error with skip=false. The StreamingService Nacks them and the
// subscription's dead-letter policy moves them aside. skip=true would Ack and
// drop them.
func DocumentEventTransformer(
	_ context.Context,
	msg *messagepipeline.Message,
) (*boomerang.NotificationCreated, bool, error) {
	evt, err := trigger.Decode(msg.Payload)
	if err != nil {
		return nil, false, fmt.Errorf("failed to decode document event from message %s: %w", msg.ID, err)
	}

	evt.EventID = msg.ID
	return evt, false, nil
}
