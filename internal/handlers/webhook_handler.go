package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/nasiyabot/backend/internal/services"
	"github.com/nasiyabot/backend/internal/telegram"
	"go.uber.org/zap"
)

// WebhookHandler accepts updates pushed by the Bot API.
type WebhookHandler struct {
	dispatcher *telegram.Dispatcher
	logger     *zap.Logger
}

// NewWebhookHandler dispatches updates under ctx rather than the request context,
// since the response is written before the update is processed. Updates of one account are
// handled in the order they were received.
func NewWebhookHandler(ctx context.Context, handler telegram.UpdateHandler, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{
		dispatcher: telegram.NewDispatcher(ctx, handler, logger),
		logger:     logger.Named("webhook"),
	}
}

// ServeUpdate decodes one update and acknowledges it immediately.
func (h *WebhookHandler) ServeUpdate(w http.ResponseWriter, r *http.Request) {
	var update telegram.Update

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(&update); err != nil {
		h.logger.Warn("Invalid update body", zap.Error(err))
		services.SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		services.SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}
	if update.UpdateID == 0 {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, nil)
		return
	}

	h.dispatcher.Dispatch(update)
	w.WriteHeader(http.StatusOK)
}

// Wait blocks until every accepted update has been handled.
func (h *WebhookHandler) Wait() {
	h.dispatcher.Wait()
}

// Close waits for accepted updates and stops the per-account workers. The context passed to
// NewWebhookHandler must be cancelled first.
func (h *WebhookHandler) Close() {
	h.dispatcher.Close()
}
