package service_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emmanuel-nwafor/foremade-backend-sub000/internal/domain"
	"github.com/emmanuel-nwafor/foremade-backend-sub000/internal/gateway"
	"github.com/emmanuel-nwafor/foremade-backend-sub000/internal/models"
	"github.com/emmanuel-nwafor/foremade-backend-sub000/internal/repository/memory"
	"github.com/emmanuel-nwafor/foremade-backend-sub000/internal/service"
)

func requestPayout(t *testing.T, env *testEnv, sellerID uuid.UUID, reference string, amount int64) *models.Transaction {
	t.Helper()
	tx, err := env.payouts.RequestPayout(context.Background(), service.RequestPayoutRequest{
		SellerID:    sellerID,
		AmountMinor: amount,
		Reference:   reference,
	})
	require.NoError(t, err)
	return tx
}

func TestRequestPayoutHoldsFunds(t *testing.T) {
	env := newTestEnv(t)
	sellerID := uuid.New()
	env.saveBankProfile(t, sellerID, "RCP_1")
	env.fundAvailable(t, sellerID, 5000)

	tx := requestPayout(t, env, sellerID, "wd-1", 2000)
	assert.Equal(t, domain.TxStatusPending, tx.Status)
	assert.Equal(t, domain.TxTypeWithdrawal, tx.Type)

	w := env.wallet(t, sellerID)
	assert.Equal(t, int64(3000), w.AvailableMinor)
	assert.Equal(t, int64(2000), w.PendingMinor)

	// Same reference again: no second hold.
	again := requestPayout(t, env, sellerID, "wd-1", 2000)
	assert.Equal(t, tx.ID, again.ID)
	w = env.wallet(t, sellerID)
	assert.Equal(t, int64(3000), w.AvailableMinor)
	assert.Equal(t, int64(2000), w.PendingMinor)
}

func TestRequestPayoutInsufficientFunds(t *testing.T) {
	env := newTestEnv(t)
	sellerID := uuid.New()
	env.saveBankProfile(t, sellerID, "RCP_1")
	env.fundAvailable(t, sellerID, 500)

	_, err := env.payouts.RequestPayout(context.Background(), service.RequestPayoutRequest{
		SellerID:    sellerID,
		AmountMinor: 2000,
		Reference:   "wd-1",
	})
	assert.ErrorIs(t, err, models.ErrInsufficientFunds)

	w := env.wallet(t, sellerID)
	assert.Equal(t, int64(500), w.AvailableMinor)
}

func TestRequestPayoutWithoutProfile(t *testing.T) {
	env := newTestEnv(t)
	sellerID := uuid.New()
	env.fundAvailable(t, sellerID, 5000)

	_, err := env.payouts.RequestPayout(context.Background(), service.RequestPayoutRequest{
		SellerID:    sellerID,
		AmountMinor: 2000,
		Reference:   "wd-1",
	})
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestApproveCardPayoutCompletesSynchronously(t *testing.T) {
	env := newTestEnv(t)
	sellerID := uuid.New()
	adminID := uuid.New()
	env.saveCardProfile(t, sellerID, "acct_1")
	env.fundAvailable(t, sellerID, 5000)
	tx := requestPayout(t, env, sellerID, "wd-1", 2000)

	result, err := env.payouts.Approve(context.Background(), tx.ID, adminID)
	require.NoError(t, err)
	assert.Equal(t, domain.TxStatusCompleted, result.Status)
	require.NotNil(t, result.PayoutReference)

	w := env.wallet(t, sellerID)
	assert.Equal(t, int64(3000), w.AvailableMinor)
	assert.Equal(t, int64(0), w.PendingMinor)
	assert.Equal(t, 1, env.card.InitiateCalls())
}

func TestApproveBankPayoutParksInPendingOtp(t *testing.T) {
	env := newTestEnv(t)
	env.bank.RequireOtp = true
	env.bank.AcceptOtp = "123456"
	sellerID := uuid.New()
	adminID := uuid.New()
	env.saveBankProfile(t, sellerID, "RCP_1")
	env.fundAvailable(t, sellerID, 5000)
	tx := requestPayout(t, env, sellerID, "wd-1", 2000)

	result, err := env.payouts.Approve(context.Background(), tx.ID, adminID)
	require.NoError(t, err)
	assert.Equal(t, domain.TxStatusPendingOtp, result.Status)
	require.NotNil(t, result.TransferCode)

	// Funds stay held while awaiting the passcode.
	w := env.wallet(t, sellerID)
	assert.Equal(t, int64(2000), w.PendingMinor)

	// Wrong passcode: rejected, still awaiting.
	_, err = env.payouts.ConfirmOtp(context.Background(), tx.ID, "000000", &adminID)
	assert.ErrorIs(t, err, gateway.ErrRejected)
	current, err := env.store.GetTransaction(context.Background(), tx.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TxStatusPendingOtp, current.Status)

	// Correct passcode: settled and completed.
	final, err := env.payouts.ConfirmOtp(context.Background(), tx.ID, "123456", &adminID)
	require.NoError(t, err)
	assert.Equal(t, domain.TxStatusCompleted, final.Status)
	w = env.wallet(t, sellerID)
	assert.Equal(t, int64(3000), w.AvailableMinor)
	assert.Equal(t, int64(0), w.PendingMinor)
}

func TestApproveTwiceRefused(t *testing.T) {
	env := newTestEnv(t)
	env.bank.RequireOtp = true
	sellerID := uuid.New()
	adminID := uuid.New()
	env.saveBankProfile(t, sellerID, "RCP_1")
	env.fundAvailable(t, sellerID, 5000)
	tx := requestPayout(t, env, sellerID, "wd-1", 2000)

	_, err := env.payouts.Approve(context.Background(), tx.ID, adminID)
	require.NoError(t, err)

	_, err = env.payouts.Approve(context.Background(), tx.ID, adminID)
	assert.ErrorIs(t, err, service.ErrPayoutNotPending)
	assert.Equal(t, 1, env.bank.InitiateCalls())
}

func TestRejectReleasesHold(t *testing.T) {
	env := newTestEnv(t)
	sellerID := uuid.New()
	adminID := uuid.New()
	env.saveBankProfile(t, sellerID, "RCP_1")
	env.fundAvailable(t, sellerID, 5000)
	tx := requestPayout(t, env, sellerID, "wd-1", 2000)

	result, err := env.payouts.Reject(context.Background(), tx.ID, adminID, "kyc review")
	require.NoError(t, err)
	assert.Equal(t, domain.TxStatusRejected, result.Status)

	w := env.wallet(t, sellerID)
	assert.Equal(t, int64(5000), w.AvailableMinor)
	assert.Equal(t, int64(0), w.PendingMinor)
}

func TestRejectAfterApproveRefused(t *testing.T) {
	env := newTestEnv(t)
	env.bank.RequireOtp = true
	sellerID := uuid.New()
	adminID := uuid.New()
	env.saveBankProfile(t, sellerID, "RCP_1")
	env.fundAvailable(t, sellerID, 5000)
	tx := requestPayout(t, env, sellerID, "wd-1", 2000)

	_, err := env.payouts.Approve(context.Background(), tx.ID, adminID)
	require.NoError(t, err)

	_, err = env.payouts.Reject(context.Background(), tx.ID, adminID, "too late")
	assert.ErrorIs(t, err, service.ErrPayoutNotPending)

	w := env.wallet(t, sellerID)
	assert.Equal(t, int64(2000), w.PendingMinor)
}

func TestApproveGatewayUnavailableRequeues(t *testing.T) {
	env := newTestEnv(t)
	env.bank.InitiateErr = gateway.ErrUnavailable
	sellerID := uuid.New()
	adminID := uuid.New()
	env.saveBankProfile(t, sellerID, "RCP_1")
	env.fundAvailable(t, sellerID, 5000)
	tx := requestPayout(t, env, sellerID, "wd-1", 2000)

	_, err := env.payouts.Approve(context.Background(), tx.ID, adminID)
	assert.ErrorIs(t, err, gateway.ErrUnavailable)

	// Returned to pending with the hold intact, ready for another attempt.
	current, err := env.store.GetTransaction(context.Background(), tx.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TxStatusPending, current.Status)
	w := env.wallet(t, sellerID)
	assert.Equal(t, int64(2000), w.PendingMinor)

	env.bank.InitiateErr = nil
	result, err := env.payouts.Approve(context.Background(), tx.ID, adminID)
	require.NoError(t, err)
	assert.Equal(t, domain.TxStatusCompleted, result.Status)
}

func TestApproveGatewayRejectedFailsAndRefunds(t *testing.T) {
	env := newTestEnv(t)
	env.bank.InitiateErr = fmt.Errorf("%w: invalid recipient", gateway.ErrRejected)
	sellerID := uuid.New()
	adminID := uuid.New()
	env.saveBankProfile(t, sellerID, "RCP_1")
	env.fundAvailable(t, sellerID, 5000)
	tx := requestPayout(t, env, sellerID, "wd-1", 2000)

	_, err := env.payouts.Approve(context.Background(), tx.ID, adminID)
	assert.ErrorIs(t, err, gateway.ErrRejected)

	current, err := env.store.GetTransaction(context.Background(), tx.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TxStatusFailed, current.Status)

	w := env.wallet(t, sellerID)
	assert.Equal(t, int64(5000), w.AvailableMinor)
	assert.Equal(t, int64(0), w.PendingMinor)
}

func TestApproveOnboardsSellerWhenRecipientMissing(t *testing.T) {
	env := newTestEnv(t)
	sellerID := uuid.New()
	adminID := uuid.New()
	env.saveBankProfile(t, sellerID, "")
	env.fundAvailable(t, sellerID, 5000)
	tx := requestPayout(t, env, sellerID, "wd-1", 2000)

	result, err := env.payouts.Approve(context.Background(), tx.ID, adminID)
	require.NoError(t, err)
	assert.Equal(t, domain.TxStatusCompleted, result.Status)

	profile, err := env.store.GetPayoutProfile(context.Background(), sellerID)
	require.NoError(t, err)
	assert.NotEmpty(t, profile.RecipientCode)
}

func TestTransferWebhookFinalizesOtpPayout(t *testing.T) {
	env := newTestEnv(t)
	env.bank.RequireOtp = true
	sellerID := uuid.New()
	adminID := uuid.New()
	env.saveBankProfile(t, sellerID, "RCP_1")
	env.fundAvailable(t, sellerID, 5000)
	tx := requestPayout(t, env, sellerID, "wd-1", 2000)

	_, err := env.payouts.Approve(context.Background(), tx.ID, adminID)
	require.NoError(t, err)

	ev := &gateway.VerifiedEvent{
		Event:      "transfer.success",
		Reference:  "wd-1",
		GatewayRef: "tr-99",
	}
	require.NoError(t, env.payouts.HandleTransferEvent(context.Background(), ev))

	current, err := env.store.GetTransaction(context.Background(), tx.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TxStatusCompleted, current.Status)
	w := env.wallet(t, sellerID)
	assert.Equal(t, int64(0), w.PendingMinor)

	// Redelivery is a no-op on the terminal record.
	require.NoError(t, env.payouts.HandleTransferEvent(context.Background(), ev))
	w = env.wallet(t, sellerID)
	assert.Equal(t, int64(3000), w.AvailableMinor)
	assert.Equal(t, int64(0), w.PendingMinor)
}

func TestTransferWebhookFailureRefunds(t *testing.T) {
	env := newTestEnv(t)
	env.bank.RequireOtp = true
	sellerID := uuid.New()
	adminID := uuid.New()
	env.saveBankProfile(t, sellerID, "RCP_1")
	env.fundAvailable(t, sellerID, 5000)
	tx := requestPayout(t, env, sellerID, "wd-1", 2000)

	_, err := env.payouts.Approve(context.Background(), tx.ID, adminID)
	require.NoError(t, err)

	require.NoError(t, env.payouts.HandleTransferEvent(context.Background(), &gateway.VerifiedEvent{
		Event:     "transfer.failed",
		Reference: "wd-1",
	}))

	current, err := env.store.GetTransaction(context.Background(), tx.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TxStatusFailed, current.Status)
	w := env.wallet(t, sellerID)
	assert.Equal(t, int64(5000), w.AvailableMinor)
}

func seedManualReviewWithdrawal(t *testing.T, env *testEnv, sellerID uuid.UUID, amount int64) *models.Transaction {
	t.Helper()
	// Build the held-funds shape a stuck withdrawal leaves behind.
	env.fundAvailable(t, sellerID, amount)
	require.NoError(t, env.wallets.Hold(context.Background(), sellerID, amount))
	now := time.Now().UTC()
	tx := &models.Transaction{
		ID:          uuid.New(),
		UserID:      sellerID,
		Type:        domain.TxTypeWithdrawal,
		Status:      domain.TxStatusManualReview,
		AmountMinor: amount,
		Currency:    "NGN",
		Reference:   "wd-stuck-" + uuid.NewString()[:8],
		GatewayKind: domain.GatewayKindBankTransfer,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	require.NoError(t, env.store.CreateTransaction(context.Background(), tx))
	return tx
}

func TestResolveManualReviewConfirmSent(t *testing.T) {
	env := newTestEnv(t)
	sellerID := uuid.New()
	tx := seedManualReviewWithdrawal(t, env, sellerID, 2000)

	adminID := uuid.New()
	result, err := env.payouts.ResolveManualReview(context.Background(), service.ResolveManualReviewRequest{
		TransactionID: tx.ID,
		Decision:      service.DecisionConfirmSent,
		Reason:        "provider dashboard shows transfer settled",
		ActorID:       &adminID,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TxStatusCompleted, result.Status)

	w := env.wallet(t, sellerID)
	assert.Equal(t, int64(0), w.PendingMinor)
	assert.Equal(t, int64(0), w.AvailableMinor)
}

func TestResolveManualReviewRefundFailed(t *testing.T) {
	env := newTestEnv(t)
	sellerID := uuid.New()
	tx := seedManualReviewWithdrawal(t, env, sellerID, 2000)

	adminID := uuid.New()
	result, err := env.payouts.ResolveManualReview(context.Background(), service.ResolveManualReviewRequest{
		TransactionID: tx.ID,
		Decision:      service.DecisionRefundFailed,
		Reason:        "provider dashboard shows no transfer",
		ActorID:       &adminID,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TxStatusFailed, result.Status)

	w := env.wallet(t, sellerID)
	assert.Equal(t, int64(2000), w.AvailableMinor)
	assert.Equal(t, int64(0), w.PendingMinor)
}

func TestResolveManualReviewWrongDecisionForType(t *testing.T) {
	env := newTestEnv(t)
	sellerID := uuid.New()
	tx := seedManualReviewWithdrawal(t, env, sellerID, 2000)

	adminID := uuid.New()
	_, err := env.payouts.ResolveManualReview(context.Background(), service.ResolveManualReviewRequest{
		TransactionID: tx.ID,
		Decision:      service.DecisionRecredit,
		Reason:        "wrong decision for a withdrawal",
		ActorID:       &adminID,
	})
	assert.ErrorIs(t, err, service.ErrInvalidDecision)
}

func TestResolveManualReviewRequiresManualReviewState(t *testing.T) {
	env := newTestEnv(t)
	sellerID := uuid.New()
	env.saveBankProfile(t, sellerID, "RCP_1")
	env.fundAvailable(t, sellerID, 5000)
	tx := requestPayout(t, env, sellerID, "wd-1", 2000)

	adminID := uuid.New()
	_, err := env.payouts.ResolveManualReview(context.Background(), service.ResolveManualReviewRequest{
		TransactionID: tx.ID,
		Decision:      service.DecisionConfirmSent,
		Reason:        "not stuck",
		ActorID:       &adminID,
	})
	assert.ErrorIs(t, err, service.ErrNotInManualReview)
}

func newRacePayoutEnv(t *testing.T, rival *models.Transaction, sellerID uuid.UUID) (*rivalStore, *service.WalletService, *service.PayoutService) {
	t.Helper()
	store := &rivalStore{Store: memory.NewStore(), rival: rival}
	wallets := service.NewWalletService(store).WithRetry(20, time.Millisecond)
	bank := gateway.NewMockGateway(domain.GatewayKindBankTransfer)
	payouts := service.NewPayoutService(store, wallets, gateway.NewSelector(bank), "NGN")

	require.NoError(t, wallets.Credit(context.Background(), sellerID, 5000, domain.BucketAvailable))
	now := time.Now().UTC()
	require.NoError(t, store.SavePayoutProfile(context.Background(), &models.PayoutProfile{
		UserID:        sellerID,
		GatewayKind:   domain.GatewayKindBankTransfer,
		BankCode:      "058",
		AccountNumber: "0123456789",
		AccountName:   "Test Seller",
		RecipientCode: "RCP_1",
		CreatedAt:     now,
		UpdatedAt:     now,
	}))
	return store, wallets, payouts
}

func TestRequestPayoutCreateRaceAgainstDifferentAttempt(t *testing.T) {
	sellerID := uuid.New()
	rival := &models.Transaction{
		ID:          uuid.New(),
		UserID:      uuid.New(),
		Type:        domain.TxTypeWithdrawal,
		Status:      domain.TxStatusPending,
		AmountMinor: 999,
		Currency:    "NGN",
		Reference:   "wd-1",
		GatewayKind: domain.GatewayKindBankTransfer,
	}
	_, wallets, payouts := newRacePayoutEnv(t, rival, sellerID)

	_, err := payouts.RequestPayout(context.Background(), service.RequestPayoutRequest{
		SellerID:    sellerID,
		AmountMinor: 2000,
		Reference:   "wd-1",
	})
	assert.ErrorIs(t, err, models.ErrDuplicateReference)

	// The hold taken before the lost create was returned.
	w, err := wallets.GetWallet(context.Background(), sellerID)
	require.NoError(t, err)
	assert.Equal(t, int64(5000), w.AvailableMinor)
	assert.Equal(t, int64(0), w.PendingMinor)
}

func TestRequestPayoutCreateRaceAgainstIdenticalAttempt(t *testing.T) {
	sellerID := uuid.New()
	rival := &models.Transaction{
		ID:          uuid.New(),
		UserID:      sellerID,
		Type:        domain.TxTypeWithdrawal,
		Status:      domain.TxStatusPending,
		AmountMinor: 2000,
		Currency:    "NGN",
		Reference:   "wd-1",
		GatewayKind: domain.GatewayKindBankTransfer,
	}
	_, _, payouts := newRacePayoutEnv(t, rival, sellerID)

	tx, err := payouts.RequestPayout(context.Background(), service.RequestPayoutRequest{
		SellerID:    sellerID,
		AmountMinor: 2000,
		Reference:   "wd-1",
	})
	require.NoError(t, err)
	assert.Equal(t, rival.ID, tx.ID)
}
