package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/stripe/stripe-go/v72"
	"github.com/stripe/stripe-go/v72/account"
	"github.com/stripe/stripe-go/v72/transfer"
	"github.com/stripe/stripe-go/v72/webhook"

	"github.com/emmanuel-nwafor/foremade-backend-sub000/internal/domain"
	"github.com/emmanuel-nwafor/foremade-backend-sub000/internal/models"
)

// CardGateway moves funds to a seller's connected account. Transfers are
// synchronous and terminal: there is no OTP step.
type CardGateway struct {
	webhookSecret string
	currency      string
}

// NewCardGateway configures the stripe client with the provider secret.
func NewCardGateway(secretKey, webhookSecret, currency string) *CardGateway {
	stripe.Key = secretKey
	return &CardGateway{
		webhookSecret: webhookSecret,
		currency:      currency,
	}
}

func (g *CardGateway) Kind() string { return domain.GatewayKindCard }

// OnboardPayee verifies the seller's connected account exists and can
// receive transfers. Account creation happens during seller onboarding
// outside this core; here we only confirm the stored id is live.
func (g *CardGateway) OnboardPayee(ctx context.Context, profile *models.PayoutProfile) (string, error) {
	if profile.RecipientCode == "" {
		return "", fmt.Errorf("%w: payout profile missing connected account id", models.ErrValidation)
	}
	params := &stripe.AccountParams{}
	params.Context = ctx
	acct, err := account.GetByID(profile.RecipientCode, params)
	if err != nil {
		return "", mapStripeError(err)
	}
	if !acct.PayoutsEnabled {
		return "", fmt.Errorf("%w: connected account has payouts disabled", ErrRejected)
	}
	return acct.ID, nil
}

// InitiateTransfer sends the amount to the connected account. The reference
// doubles as the idempotency key so a retried approval cannot double-pay.
func (g *CardGateway) InitiateTransfer(ctx context.Context, recipientCode string, amountMinor int64, reference, reason string) (*TransferHandle, error) {
	params := &stripe.TransferParams{
		Amount:      stripe.Int64(amountMinor),
		Currency:    stripe.String(g.currency),
		Destination: stripe.String(recipientCode),
		Description: stripe.String(reason),
	}
	params.Context = ctx
	params.SetIdempotencyKey(reference)
	params.AddMetadata("reference", reference)

	tr, err := transfer.New(params)
	if err != nil {
		return nil, mapStripeError(err)
	}
	return &TransferHandle{
		Reference:  reference,
		Status:     TransferStatusSuccess,
		GatewayRef: tr.ID,
	}, nil
}

// ConfirmTransfer is not part of the card flow; card transfers are terminal
// at initiation.
func (g *CardGateway) ConfirmTransfer(ctx context.Context, handle TransferHandle, otp string) (*TransferResult, error) {
	return nil, fmt.Errorf("%w: card transfers do not require confirmation", models.ErrValidation)
}

// VerifyInboundEvent authenticates the provider's signed-webhook header and
// decodes the charge payload into the common event shape.
func (g *CardGateway) VerifyInboundEvent(payload []byte, signature string) (*VerifiedEvent, error) {
	ev, err := webhook.ConstructEvent(payload, signature, g.webhookSecret)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	var obj struct {
		ID       string            `json:"id"`
		Amount   int64             `json:"amount"`
		Metadata map[string]string `json:"metadata"`
	}
	if err := json.Unmarshal(ev.Data.Raw, &obj); err != nil {
		return nil, fmt.Errorf("%w: malformed event object", models.ErrValidation)
	}

	return &VerifiedEvent{
		Event:       string(ev.Type),
		Reference:   obj.Metadata["reference"],
		AmountMinor: obj.Amount,
		GatewayRef:  obj.ID,
		Metadata: EventMetadata{
			SellerID:           obj.Metadata["sellerId"],
			HandlingFee:        metaInt(obj.Metadata, "handlingFee"),
			BuyerProtectionFee: metaInt(obj.Metadata, "buyerProtectionFee"),
			TaxFee:             metaInt(obj.Metadata, "taxFee"),
		},
	}, nil
}

func metaInt(meta map[string]string, key string) int64 {
	v, err := strconv.ParseInt(meta[key], 10, 64)
	if err != nil {
		return 0
	}
	return v
}

func mapStripeError(err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		if stripeErr.HTTPStatusCode >= 500 {
			return fmt.Errorf("%w: provider returned %d", ErrUnavailable, stripeErr.HTTPStatusCode)
		}
		return fmt.Errorf("%w: %s", ErrRejected, stripeErr.Msg)
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
