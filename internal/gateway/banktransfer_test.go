package gateway_test

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emmanuel-nwafor/foremade-backend-sub000/internal/gateway"
	"github.com/emmanuel-nwafor/foremade-backend-sub000/internal/models"
)

const testWebhookSecret = "whsec_test_0123456789"

func newTestGateway(t *testing.T, handler http.HandlerFunc) *gateway.BankTransferGateway {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return gateway.NewBankTransferGateway(srv.URL, "sk_test_secret", testWebhookSecret, "NGN", 5*time.Second)
}

func signPayload(payload []byte) string {
	mac := hmac.New(sha512.New, []byte(testWebhookSecret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestOnboardPayeeCreatesRecipient(t *testing.T) {
	var gotAuth string
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/transferrecipient", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "nuban", body["type"])
		assert.Equal(t, "0123456789", body["account_number"])
		json.NewEncoder(w).Encode(map[string]any{
			"status": true,
			"data":   map[string]string{"recipient_code": "RCP_abc123"},
		})
	})

	profile := &models.PayoutProfile{
		BankCode:      "058",
		AccountNumber: "0123456789",
		AccountName:   "Test Seller",
	}
	code, err := gw.OnboardPayee(context.Background(), profile)
	require.NoError(t, err)
	assert.Equal(t, "RCP_abc123", code)
	assert.Equal(t, "Bearer sk_test_secret", gotAuth)
}

func TestOnboardPayeeReusesExistingCode(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no provider call expected")
	})

	code, err := gw.OnboardPayee(context.Background(), &models.PayoutProfile{RecipientCode: "RCP_existing"})
	require.NoError(t, err)
	assert.Equal(t, "RCP_existing", code)
}

func TestInitiateTransferOtpStatus(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/transfer", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "balance", body["source"])
		json.NewEncoder(w).Encode(map[string]any{
			"status": true,
			"data": map[string]any{
				"status":        "otp",
				"transfer_code": "TRF_xyz",
				"reference":     body["reference"],
				"id":            4711,
			},
		})
	})

	handle, err := gw.InitiateTransfer(context.Background(), "RCP_abc", 2000, "wd-1", "seller payout")
	require.NoError(t, err)
	assert.Equal(t, gateway.TransferStatusAwaitingOtp, handle.Status)
	assert.Equal(t, "TRF_xyz", handle.TransferCode)
	assert.Equal(t, "wd-1", handle.Reference)
}

func TestInitiateTransferProviderDown(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := gw.InitiateTransfer(context.Background(), "RCP_abc", 2000, "wd-1", "seller payout")
	assert.ErrorIs(t, err, gateway.ErrUnavailable)
}

func TestInitiateTransferProviderRefusal(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{
			"status":  false,
			"message": "insufficient balance",
		})
	})

	_, err := gw.InitiateTransfer(context.Background(), "RCP_abc", 2000, "wd-1", "seller payout")
	require.ErrorIs(t, err, gateway.ErrRejected)
	assert.Contains(t, err.Error(), "insufficient balance")
}

func TestConfirmTransferFinalizes(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/transfer/finalize_transfer", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "TRF_xyz", body["transfer_code"])
		assert.Equal(t, "123456", body["otp"])
		json.NewEncoder(w).Encode(map[string]any{
			"status": true,
			"data": map[string]any{
				"status":    "success",
				"reference": "wd-1",
				"id":        4711,
			},
		})
	})

	result, err := gw.ConfirmTransfer(context.Background(), gateway.TransferHandle{
		Reference:    "wd-1",
		TransferCode: "TRF_xyz",
	}, "123456")
	require.NoError(t, err)
	assert.Equal(t, "wd-1", result.Reference)
	assert.Equal(t, "4711", result.GatewayRef)
}

func TestVerifyInboundEventAcceptsValidSignature(t *testing.T) {
	gw := newTestGateway(t, nil)

	payload := []byte(`{"event":"charge.success","data":{"reference":"sale-1","amount":11000,"id":99,"metadata":{"sellerId":"s-1","handlingFee":500,"buyerProtectionFee":300,"taxFee":200}}}`)
	ev, err := gw.VerifyInboundEvent(payload, signPayload(payload))
	require.NoError(t, err)
	assert.Equal(t, "charge.success", ev.Event)
	assert.Equal(t, "sale-1", ev.Reference)
	assert.Equal(t, int64(11000), ev.AmountMinor)
	assert.Equal(t, int64(1000), ev.FeeTotal())
	assert.Equal(t, "99", ev.GatewayRef)
}

func TestVerifyInboundEventRejectsBadSignature(t *testing.T) {
	gw := newTestGateway(t, nil)

	payload := []byte(`{"event":"charge.success","data":{"reference":"sale-1","amount":11000}}`)
	_, err := gw.VerifyInboundEvent(payload, "deadbeef")
	assert.ErrorIs(t, err, gateway.ErrInvalidSignature)
}

func TestVerifyInboundEventRejectsTamperedBody(t *testing.T) {
	gw := newTestGateway(t, nil)

	payload := []byte(`{"event":"charge.success","data":{"reference":"sale-1","amount":11000}}`)
	sig := signPayload(payload)
	tampered := []byte(`{"event":"charge.success","data":{"reference":"sale-1","amount":99000}}`)
	_, err := gw.VerifyInboundEvent(tampered, sig)
	assert.ErrorIs(t, err, gateway.ErrInvalidSignature)
}
