package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/emmanuel-nwafor/foremade-backend-sub000/internal/gateway"
	"github.com/emmanuel-nwafor/foremade-backend-sub000/internal/service"
)

// WebhookHandler handles inbound events from the payment gateways.
type WebhookHandler struct {
	webhookSvc *service.WebhookService
}

func NewWebhookHandler(webhookSvc *service.WebhookService) *WebhookHandler {
	return &WebhookHandler{webhookSvc: webhookSvc}
}

// Handle processes POST /v1/webhooks/{gateway}. The raw body is read before
// anything else because signature verification covers the exact bytes sent.
func (h *WebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	gatewayKind := chi.URLParam(r, "gateway")

	body, err := io.ReadAll(r.Body)
	if err != nil {
		zap.L().Error("read webhook body failed", zap.Error(err))
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Failed to read request body")
		return
	}

	signature := r.Header.Get("X-Webhook-Signature")
	if signature == "" {
		signature = r.Header.Get("Stripe-Signature")
	}

	if err := h.webhookSvc.Process(r.Context(), gatewayKind, body, signature); err != nil {
		switch {
		case errors.Is(err, gateway.ErrInvalidSignature):
			RespondError(w, r, http.StatusUnauthorized, "webhook/invalid-signature", "Invalid signature")
		case errors.Is(err, gateway.ErrUnknownKind):
			RespondError(w, r, http.StatusNotFound, "webhook/unknown-gateway", "Unknown gateway")
		default:
			// Internal trouble: tell the provider to retry.
			zap.L().Error("process webhook failed", zap.Error(err), zap.String("gateway", gatewayKind))
			RespondError(w, r, http.StatusInternalServerError, "webhook/processing-failed", "Failed to process event")
		}
		return
	}

	RespondJSON(w, http.StatusOK, map[string]string{"status": "accepted"})
}
