package handlers

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/astrobot/server/internal/dispatch"
	"github.com/astrobot/server/internal/model"
)

// Dispatcher runs one inbound message.
type Dispatcher interface {
	Dispatch(ctx context.Context, env model.Envelope) (dispatch.Result, error)
}

// WebhookHandler receives messages from the transport layer and answers with
// the intents to deliver.
type WebhookHandler struct {
	dispatcher Dispatcher
	logger     *zap.Logger
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(d Dispatcher, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{dispatcher: d, logger: logger}
}

// HandleWebhook handles POST /webhook
func (h *WebhookHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	var env model.Envelope
	if err := decodeJSON(w, r, &env); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := h.dispatcher.Dispatch(r.Context(), env)
	if errors.Is(err, dispatch.ErrInvalidEnvelope) {
		respondWithError(w, http.StatusUnprocessableEntity, "id and from are required")
		return
	}
	if err != nil {
		h.logger.Error("dispatch failed", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if res.Intents == nil {
		res.Intents = []model.OutboundIntent{}
	}
	respondJSON(w, http.StatusOK, res)
}
