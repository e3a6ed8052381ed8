package gateway

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/emmanuel-nwafor/foremade-backend-sub000/internal/domain"
	"github.com/emmanuel-nwafor/foremade-backend-sub000/internal/models"
)

// BankTransferGateway talks to the bank-transfer provider's REST API.
// Transfers are asynchronous: initiation may return an awaiting_otp handle
// whose one-time passcode is delivered out-of-band to the platform operator.
type BankTransferGateway struct {
	baseURL       string
	secretKey     string
	webhookSecret []byte
	currency      string
	client        *http.Client
}

// NewBankTransferGateway creates the adapter. timeout bounds every provider
// call; timeouts surface as ErrUnavailable.
func NewBankTransferGateway(baseURL, secretKey, webhookSecret, currency string, timeout time.Duration) *BankTransferGateway {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &BankTransferGateway{
		baseURL:       strings.TrimRight(baseURL, "/"),
		secretKey:     secretKey,
		webhookSecret: []byte(webhookSecret),
		currency:      currency,
		client:        &http.Client{Timeout: timeout},
	}
}

func (g *BankTransferGateway) Kind() string { return domain.GatewayKindBankTransfer }

type apiEnvelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type recipientData struct {
	RecipientCode string `json:"recipient_code"`
}

type transferData struct {
	Status       string `json:"status"`
	TransferCode string `json:"transfer_code"`
	Reference    string `json:"reference"`
	ID           int64  `json:"id"`
}

// OnboardPayee registers the seller's bank account as a transfer recipient.
// The provider de-duplicates on account number + bank code, so repeat calls
// return the same recipient code.
func (g *BankTransferGateway) OnboardPayee(ctx context.Context, profile *models.PayoutProfile) (string, error) {
	if profile.RecipientCode != "" {
		return profile.RecipientCode, nil
	}
	if profile.AccountNumber == "" || profile.BankCode == "" {
		return "", fmt.Errorf("%w: payout profile missing bank account details", models.ErrValidation)
	}

	body := map[string]string{
		"type":           "nuban",
		"name":           profile.AccountName,
		"account_number": profile.AccountNumber,
		"bank_code":      profile.BankCode,
		"currency":       g.currency,
	}
	var data recipientData
	if err := g.post(ctx, "/transferrecipient", body, &data); err != nil {
		return "", err
	}
	if data.RecipientCode == "" {
		return "", fmt.Errorf("%w: provider returned empty recipient code", ErrRejected)
	}
	return data.RecipientCode, nil
}

// InitiateTransfer starts a balance transfer to a recipient. A status of
// "otp" means the transfer must be finalized with ConfirmTransfer.
func (g *BankTransferGateway) InitiateTransfer(ctx context.Context, recipientCode string, amountMinor int64, reference, reason string) (*TransferHandle, error) {
	body := map[string]any{
		"source":    "balance",
		"amount":    amountMinor,
		"currency":  g.currency,
		"recipient": recipientCode,
		"reference": reference,
		"reason":    reason,
	}
	var data transferData
	if err := g.post(ctx, "/transfer", body, &data); err != nil {
		return nil, err
	}

	handle := &TransferHandle{
		Reference:    data.Reference,
		TransferCode: data.TransferCode,
		GatewayRef:   fmt.Sprintf("%d", data.ID),
	}
	switch data.Status {
	case "otp":
		handle.Status = TransferStatusAwaitingOtp
	case "success":
		handle.Status = TransferStatusSuccess
	case "failed", "reversed":
		handle.Status = TransferStatusFailed
	default:
		// "pending" and friends: the transfer is in flight at the provider;
		// the webhook or finalize call resolves it.
		handle.Status = TransferStatusAwaitingOtp
	}
	return handle, nil
}

// ConfirmTransfer finalizes an awaiting_otp transfer.
func (g *BankTransferGateway) ConfirmTransfer(ctx context.Context, handle TransferHandle, otp string) (*TransferResult, error) {
	if handle.TransferCode == "" {
		return nil, fmt.Errorf("%w: missing transfer code", models.ErrValidation)
	}
	body := map[string]string{
		"transfer_code": handle.TransferCode,
		"otp":           otp,
	}
	var data transferData
	if err := g.post(ctx, "/transfer/finalize_transfer", body, &data); err != nil {
		return nil, err
	}
	return &TransferResult{
		Reference:  data.Reference,
		GatewayRef: fmt.Sprintf("%d", data.ID),
	}, nil
}

type inboundEvent struct {
	Event string `json:"event"`
	Data  struct {
		Reference string        `json:"reference"`
		Amount    int64         `json:"amount"`
		ID        int64         `json:"id"`
		Metadata  EventMetadata `json:"metadata"`
	} `json:"data"`
}

// VerifyInboundEvent computes an HMAC-SHA512 over the exact raw body and
// compares it, constant-time, against the signature header. Mismatches are
// rejected before any parsing.
func (g *BankTransferGateway) VerifyInboundEvent(payload []byte, signature string) (*VerifiedEvent, error) {
	if len(g.webhookSecret) == 0 {
		return nil, fmt.Errorf("%w: webhook secret not configured", ErrInvalidSignature)
	}
	mac := hmac.New(sha512.New, g.webhookSecret)
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(strings.TrimSpace(signature))) {
		return nil, ErrInvalidSignature
	}

	var ev inboundEvent
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

func (g *BankTransferGateway) post(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+g.secretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: read response: %v", ErrUnavailable, err)
	}

	if resp.StatusCode >= 500 {
		return fmt.Errorf("%w: provider returned %d", ErrUnavailable, resp.StatusCode)
	}

	var env apiEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("%w: undecodable provider response (%d)", ErrUnavailable, resp.StatusCode)
	}
	if resp.StatusCode >= 400 || !env.Status {
		msg := env.Message
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return fmt.Errorf("%w: %s", ErrRejected, msg)
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decode provider data: %w", err)
		}
	}
	return nil
}
