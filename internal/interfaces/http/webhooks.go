package http

import (
	"context"
	"errors"
	"io"
	"net/http"

	"finhealth/internal/domain/banksync"
	"finhealth/internal/shared/apperr"
	"finhealth/internal/shared/logger"
)

type WebhookReceiver interface {
	ReceiveWebhook(ctx context.Context, raw []byte) (*banksync.Event, error)
}

// Dispatcher hands a recorded event to whatever applies it.
type Dispatcher interface {
	Dispatch(ctx context.Context, eventID, itemID string) error
}

type WebhookHandler struct {
	receiver   WebhookReceiver
	dispatcher Dispatcher
}

func NewWebhookHandler(receiver WebhookReceiver, dispatcher Dispatcher) *WebhookHandler {
	return &WebhookHandler{receiver: receiver, dispatcher: dispatcher}
}

// HandleAggregatorWebhook answers 200 for every body it could read so the
// aggregator does not retry. Events that were recorded but not dispatched
// are picked up by the startup replay. Bodies over maxBodyBytes are refused
// with 413 rather than recorded truncated.
func (h *WebhookHandler) HandleAggregatorWebhook(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			log.Warn().Int64("limit", tooLarge.Limit).Msg("Oversized webhook refused")
			writeJSON(w, http.StatusRequestEntityTooLarge, ErrorResponse{
				Code:    apperr.CodePayloadTooLarge,
				Message: "webhook body exceeds the size limit",
			})
			return
		}
		log.Warn().Err(err).Msg("Failed to read webhook body")
		writeJSON(w, http.StatusOK, map[string]bool{"received": true})
		return
	}

	ev, err := h.receiver.ReceiveWebhook(r.Context(), raw)
	if err != nil {
		if ev != nil {
			log.Warn().Err(err).Str("event_id", ev.ID).Msg("Webhook recorded but malformed, not dispatched")
		} else {
			log.Error().Err(err).Msg("Webhook not recorded")
		}
		writeJSON(w, http.StatusOK, map[string]bool{"received": true})
		return
	}

	if err := h.dispatcher.Dispatch(context.WithoutCancel(r.Context()), ev.ID, ev.ItemID); err != nil {
		log.Warn().Err(err).Str("event_id", ev.ID).Msg("Webhook recorded but not dispatched")
	}
	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}
