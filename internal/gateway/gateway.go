package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/emmanuel-nwafor/foremade-backend-sub000/internal/models"
)

var (
	// ErrUnavailable marks a network failure, timeout or provider 5xx.
	// Retryable; webhook redelivery from the provider is also relied upon.
	ErrUnavailable = errors.New("gateway unavailable")

	// ErrRejected marks a business-level provider refusal. Terminal; the
	// provider message is preserved in the wrapped error.
	ErrRejected = errors.New("gateway rejected")

	// ErrInvalidSignature marks a webhook whose signature did not match the
	// raw body. Terminal, never retried, logged as a potential forgery.
	ErrInvalidSignature = errors.New("invalid signature")

	// ErrUnknownKind marks a gateway kind with no registered adapter.
	ErrUnknownKind = errors.New("unsupported gateway kind")
)

const (
	TransferStatusSuccess     = "success"
	TransferStatusAwaitingOtp = "awaiting_otp"
	TransferStatusFailed      = "failed"
)

// TransferHandle identifies an initiated transfer at the provider.
type TransferHandle struct {
	Reference    string
	TransferCode string // bank-transfer OTP handle; empty for card transfers
	Status       string
	GatewayRef   string // provider settlement id when already terminal
}

// TransferResult is the terminal outcome of a confirmed transfer.
type TransferResult struct {
	Reference  string
	GatewayRef string
}

// EventMetadata is the fee breakdown carried on payment events.
type EventMetadata struct {
	SellerID           string `json:"sellerId"`
	HandlingFee        int64  `json:"handlingFee"`
	BuyerProtectionFee int64  `json:"buyerProtectionFee"`
	TaxFee             int64  `json:"taxFee"`
}

// VerifiedEvent is an inbound webhook event whose signature checked out.
type VerifiedEvent struct {
	Event       string
	Reference   string
	AmountMinor int64
	GatewayRef  string
	Metadata    EventMetadata
}

// FeeTotal returns the sum of all platform fees on the event.
func (e *VerifiedEvent) FeeTotal() int64 {
	return e.Metadata.HandlingFee + e.Metadata.BuyerProtectionFee + e.Metadata.TaxFee
}

// Gateway is the capability set shared by both payment providers. The card
// gateway resolves InitiateTransfer synchronously; the bank-transfer gateway
// may hand back an awaiting_otp handle that ConfirmTransfer finalizes.
type Gateway interface {
	Kind() string

	// OnboardPayee idempotently registers the seller with the provider and
	// returns the provider-side payee handle (transfer recipient code or
	// connected account id).
	OnboardPayee(ctx context.Context, profile *models.PayoutProfile) (string, error)

	// InitiateTransfer starts a payout to an onboarded payee.
	InitiateTransfer(ctx context.Context, recipientCode string, amountMinor int64, reference, reason string) (*TransferHandle, error)

	// ConfirmTransfer finalizes an awaiting_otp transfer with the
	// externally-delivered one-time passcode.
	ConfirmTransfer(ctx context.Context, handle TransferHandle, otp string) (*TransferResult, error)

	// VerifyInboundEvent authenticates a raw webhook body against its
	// signature header before any parsing, and decodes the event.
	VerifyInboundEvent(payload []byte, signature string) (*VerifiedEvent, error)
}

// Selector resolves the adapter for a gateway kind.
type Selector struct {
	gateways map[string]Gateway
}

// NewSelector builds a selector over the provided adapters.
func NewSelector(gateways ...Gateway) *Selector {
	byKind := make(map[string]Gateway, len(gateways))
	for _, gw := range gateways {
		byKind[gw.Kind()] = gw
	}
	return &Selector{gateways: byKind}
}

// ForKind returns the adapter registered for kind.
func (s *Selector) ForKind(kind string) (Gateway, error) {
	gw, ok := s.gateways[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	return gw, nil
}
