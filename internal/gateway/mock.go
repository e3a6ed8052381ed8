package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/emmanuel-nwafor/foremade-backend-sub000/internal/domain"
	"github.com/emmanuel-nwafor/foremade-backend-sub000/internal/models"
)

// MockGateway simulates a payment provider for local development and tests.
// Behavior is scriptable per call; the zero value approves everything.
type MockGateway struct {
	GatewayKind string
	// RequireOtp makes InitiateTransfer hand back an awaiting_otp handle.
	RequireOtp bool
	// AcceptOtp is the passcode ConfirmTransfer accepts. Empty accepts any.
	AcceptOtp string
	// InitiateErr / ConfirmErr / OnboardErr force failures.
	InitiateErr error
	ConfirmErr  error
	OnboardErr  error
	// WebhookSecret enables HMAC-SHA512 verification like the real adapter.
	WebhookSecret string

	mu            sync.Mutex
	initiateCalls int
	confirmCalls  int
}

// NewMockGateway creates a mock for the given kind.
func NewMockGateway(kind string) *MockGateway {
	if kind == "" {
		kind = domain.GatewayKindBankTransfer
	}
	return &MockGateway{GatewayKind: kind}
}

func (g *MockGateway) Kind() string { return g.GatewayKind }

// InitiateCalls reports how many transfers were initiated.
func (g *MockGateway) InitiateCalls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.initiateCalls
}

// ConfirmCalls reports how many confirmations were attempted.
func (g *MockGateway) ConfirmCalls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.confirmCalls
}

func (g *MockGateway) OnboardPayee(ctx context.Context, profile *models.PayoutProfile) (string, error) {
	if g.OnboardErr != nil {
		return "", g.OnboardErr
	}
	if profile.RecipientCode != "" {
		return profile.RecipientCode, nil
	}
	return fmt.Sprintf("RCP_MOCK_%05d", rand.Intn(100000)), nil
}

func (g *MockGateway) InitiateTransfer(ctx context.Context, recipientCode string, amountMinor int64, reference, reason string) (*TransferHandle, error) {
	g.mu.Lock()
	g.initiateCalls++
	g.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if g.InitiateErr != nil {
		return nil, g.InitiateErr
	}

	handle := &TransferHandle{
		Reference:  reference,
		GatewayRef: fmt.Sprintf("MOCK-%s-%05d", time.Now().Format("20060102"), rand.Intn(100000)),
	}
	if g.RequireOtp {
		handle.Status = TransferStatusAwaitingOtp
		handle.TransferCode = "TRF_MOCK_" + reference
	} else {
		handle.Status = TransferStatusSuccess
	}
	return handle, nil
}

func (g *MockGateway) ConfirmTransfer(ctx context.Context, handle TransferHandle, otp string) (*TransferResult, error) {
	g.mu.Lock()
	g.confirmCalls++
	g.mu.Unlock()

	if g.ConfirmErr != nil {
		return nil, g.ConfirmErr
	}
	if g.AcceptOtp != "" && otp != g.AcceptOtp {
		return nil, fmt.Errorf("%w: incorrect otp", ErrRejected)
	}
	return &TransferResult{
		Reference:  handle.Reference,
		GatewayRef: fmt.Sprintf("MOCK-FIN-%05d", rand.Intn(100000)),
	}, nil
}

func (g *MockGateway) VerifyInboundEvent(payload []byte, signature string) (*VerifiedEvent, error) {
	if g.WebhookSecret != "" {
		mac := hmac.New(sha512.New, []byte(g.WebhookSecret))
		mac.Write(payload)
		expected := hex.EncodeToString(mac.Sum(nil))
		if !hmac.Equal([]byte(expected), []byte(strings.TrimSpace(signature))) {
			return nil, ErrInvalidSignature
		}
	}

	var ev struct {
		Event string `json:"event"`
		Data  struct {
			Reference string        `json:"reference"`
			Amount    int64         `json:"amount"`
			ID        int64         `json:"id"`
			Metadata  EventMetadata `json:"metadata"`
		} `json:"data"`
	}
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, fmt.Errorf("%w: malformed event payload", models.ErrValidation)
	}
	return &VerifiedEvent{
		Event:       ev.Event,
		Reference:   ev.Data.Reference,
		AmountMinor: ev.Data.Amount,
		GatewayRef:  fmt.Sprintf("%d", ev.Data.ID),
		Metadata:    ev.Data.Metadata,
	}, nil
}
