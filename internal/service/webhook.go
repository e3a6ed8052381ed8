package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/emmanuel-nwafor/foremade-backend-sub000/internal/gateway"
	"github.com/emmanuel-nwafor/foremade-backend-sub000/internal/observability"
)

// WebhookService verifies inbound gateway events and routes them to the
// intake reconciler or the payout finalizer. Every accepted event is
// acknowledged; unverifiable payloads are the only rejection.
type WebhookService struct {
	gateways *gateway.Selector
	intake   *IntakeService
	payouts  *PayoutService
}

func NewWebhookService(gateways *gateway.Selector, intake *IntakeService, payouts *PayoutService) *WebhookService {
	return &WebhookService{
		gateways: gateways,
		intake:   intake,
		payouts:  payouts,
	}
}

// Process verifies the payload signature for the named gateway and
// dispatches the event. Verification happens before any parsing-derived
// decision: a bad signature returns gateway.ErrInvalidSignature and nothing
// else runs.
func (s *WebhookService) Process(ctx context.Context, gatewayKind string, payload []byte, signature string) error {
	gw, err := s.gateways.ForKind(gatewayKind)
	if err != nil {
		return err
	}

	ev, err := gw.VerifyInboundEvent(payload, signature)
	if err != nil {
		observability.IncrementWebhookEvent("signature_rejected")
		return err
	}

	switch ev.Event {
	case "charge.success", "payment_intent.succeeded":
		if err := s.intake.ReconcilePayment(ctx, ev); err != nil {
			return fmt.Errorf("reconcile payment event: %w", err)
		}
		return nil

	case "transfer.success", "transfer.failed", "transfer.reversed":
		if err := s.payouts.HandleTransferEvent(ctx, ev); err != nil {
			return fmt.Errorf("handle transfer event: %w", err)
		}
		return nil

	default:
		// Providers send many event types we never subscribed to. Ack them
		// so they stop retrying.
		observability.IncrementWebhookEvent("ignored_event")
		zap.L().Debug("ignoring unhandled gateway event",
			zap.String("gateway", gatewayKind),
			zap.String("event", ev.Event),
		)
		return nil
	}
}
