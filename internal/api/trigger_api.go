package api

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/tinywideclouds/go-boomerang-push/internal/trigger"
	"github.com/tinywideclouds/go-boomerang-push/pkg/dispatch"
	"github.com/tinywideclouds/go-microservice-base/pkg/response"
)

// maxEventBytes caps a document event body; Firestore documents are at most 1 MiB.
const maxEventBytes = 1 << 20

// eventIDHeader carries the CloudEvents id on push deliveries.
const eventIDHeader = "ce-id"

// TriggerAPI accepts document-created events pushed over HTTP.
type TriggerAPI struct {
	Handler dispatch.NotificationHandler
	Logger  *slog.Logger
}

func NewTriggerAPI(handler dispatch.NotificationHandler, logger *slog.Logger) *TriggerAPI {
	return &TriggerAPI{
		Handler: handler,
		Logger:  logger,
	}
}

// NotificationCreated decodes the event and runs the push for it.
// 400 means the event can never succeed; 500 asks the sender to retry.
func (api *TriggerAPI) NotificationCreated(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxEventBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.WriteJSONError(w, http.StatusRequestEntityTooLarge, "event too large")
			return
		}
		response.WriteJSONError(w, http.StatusBadRequest, "unreadable body")
		return
	}

	evt, err := trigger.Decode(body)
	if err != nil {
		api.Logger.Warn("NotificationCreated: rejecting event", "err", err)
		response.WriteJSONError(w, http.StatusBadRequest, "invalid document event")
		return
	}

	evt.EventID = r.Header.Get(eventIDHeader)
	if evt.EventID == "" {
		evt.EventID = uuid.NewString()
	}

	if _, err := api.Handler.OnNotificationCreated(ctx, evt); err != nil {
		api.Logger.Error("NotificationCreated: delivery failed", "event_id", evt.EventID, "err", err)
		response.WriteJSONError(w, http.StatusInternalServerError, "notification delivery failed")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
