package service_test

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emmanuel-nwafor/foremade-backend-sub000/internal/domain"
	"github.com/emmanuel-nwafor/foremade-backend-sub000/internal/gateway"
	"github.com/emmanuel-nwafor/foremade-backend-sub000/internal/service"
)

func signHMAC(secret string, payload []byte) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func newWebhookEnv(t *testing.T) (*testEnv, *service.WebhookService) {
	t.Helper()
	env := newTestEnv(t)
	env.bank.WebhookSecret = "whsec_test"
	selector := gateway.NewSelector(env.bank, env.card)
	return env, service.NewWebhookService(selector, env.intake, env.payouts)
}

func TestProcessRejectsBadSignatureBeforeDispatch(t *testing.T) {
	env, hooks := newWebhookEnv(t)
	sellerID := uuid.New()
	initiateSale(t, env, sellerID, "sale-1", 11000)

	payload := []byte(`{"event":"charge.success","data":{"reference":"sale-1","amount":11000}}`)
	err := hooks.Process(context.Background(), domain.GatewayKindBankTransfer, payload, "forged")
	assert.ErrorIs(t, err, gateway.ErrInvalidSignature)

	w := env.wallet(t, sellerID)
	assert.Zero(t, w.PendingMinor)
}

func TestProcessRoutesChargeSuccessToIntake(t *testing.T) {
	env, hooks := newWebhookEnv(t)
	sellerID := uuid.New()
	initiateSale(t, env, sellerID, "sale-1", 11000)

	payload := []byte(`{"event":"charge.success","data":{"reference":"sale-1","amount":11000,"id":7,"metadata":{"handlingFee":500,"buyerProtectionFee":300,"taxFee":200}}}`)
	sig := signHMAC("whsec_test", payload)
	require.NoError(t, hooks.Process(context.Background(), domain.GatewayKindBankTransfer, payload, sig))

	w := env.wallet(t, sellerID)
	assert.Equal(t, int64(10000), w.PendingMinor)

	// Provider redelivery carries the same signed payload.
	require.NoError(t, hooks.Process(context.Background(), domain.GatewayKindBankTransfer, payload, sig))
	w = env.wallet(t, sellerID)
	assert.Equal(t, int64(10000), w.PendingMinor)
}

func TestProcessAcksUnsubscribedEvents(t *testing.T) {
	_, hooks := newWebhookEnv(t)

	payload := []byte(`{"event":"customeridentification.success","data":{"reference":"x"}}`)
	err := hooks.Process(context.Background(), domain.GatewayKindBankTransfer, payload, signHMAC("whsec_test", payload))
	assert.NoError(t, err)
}

func TestProcessUnknownGatewayKind(t *testing.T) {
	_, hooks := newWebhookEnv(t)

	err := hooks.Process(context.Background(), "carrier-pigeon", []byte(`{}`), "")
	assert.ErrorIs(t, err, gateway.ErrUnknownKind)
}

func TestProcessRoutesTransferEventsToPayouts(t *testing.T) {
	env, hooks := newWebhookEnv(t)
	sellerID := uuid.New()
	env.fundAvailable(t, sellerID, 5000)
	env.saveBankProfile(t, sellerID, "RCP_abc")
	env.bank.RequireOtp = true

	tx, err := env.payouts.RequestPayout(context.Background(), service.RequestPayoutRequest{
		SellerID:    sellerID,
		AmountMinor: 3000,
		Reference:   "wd-1",
	})
	require.NoError(t, err)
	_, err = env.payouts.Approve(context.Background(), tx.ID, uuid.New())
	require.NoError(t, err)

	payload := []byte(fmt.Sprintf(`{"event":"transfer.success","data":{"reference":%q,"amount":3000,"id":42}}`, tx.Reference))
	sig := signHMAC("whsec_test", payload)
	require.NoError(t, hooks.Process(context.Background(), domain.GatewayKindBankTransfer, payload, sig))

	got, err := env.store.GetTransaction(context.Background(), tx.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TxStatusCompleted, got.Status)

	w := env.wallet(t, sellerID)
	assert.Equal(t, int64(2000), w.AvailableMinor)
	assert.Equal(t, int64(0), w.PendingMinor)
}
