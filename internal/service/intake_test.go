package service_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emmanuel-nwafor/foremade-backend-sub000/internal/domain"
	"github.com/emmanuel-nwafor/foremade-backend-sub000/internal/models"
	"github.com/emmanuel-nwafor/foremade-backend-sub000/internal/repository/memory"
	"github.com/emmanuel-nwafor/foremade-backend-sub000/internal/service"
)

func initiateSale(t *testing.T, env *testEnv, sellerID uuid.UUID, reference string, amount int64) *models.Transaction {
	t.Helper()
	tx, err := env.intake.InitiateSale(context.Background(), service.InitiateSaleRequest{
		SellerID:    sellerID,
		Reference:   reference,
		AmountMinor: amount,
		Currency:    "NGN",
		GatewayKind: domain.GatewayKindBankTransfer,
	})
	require.NoError(t, err)
	return tx
}

func TestInitiateSaleIdempotentOnReference(t *testing.T) {
	env := newTestEnv(t)
	sellerID := uuid.New()

	first := initiateSale(t, env, sellerID, "sale-1", 11000)
	second := initiateSale(t, env, sellerID, "sale-1", 11000)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, domain.TxStatusInitiated, second.Status)
}

func TestInitiateSaleRejectsReferenceReuse(t *testing.T) {
	env := newTestEnv(t)
	sellerID := uuid.New()
	initiateSale(t, env, sellerID, "sale-1", 11000)

	_, err := env.intake.InitiateSale(context.Background(), service.InitiateSaleRequest{
		SellerID:    sellerID,
		Reference:   "sale-1",
		AmountMinor: 9999,
		Currency:    "NGN",
		GatewayKind: domain.GatewayKindBankTransfer,
	})
	assert.ErrorIs(t, err, models.ErrDuplicateReference)
}

func TestReconcilePaymentCreditsNetOnce(t *testing.T) {
	env := newTestEnv(t)
	sellerID := uuid.New()
	sale := initiateSale(t, env, sellerID, "sale-1", 11000)

	ev := paymentEvent("sale-1", 11000, 500, 300, 200)
	require.NoError(t, env.intake.ReconcilePayment(context.Background(), ev))

	w := env.wallet(t, sellerID)
	assert.Equal(t, int64(10000), w.PendingMinor)
	assert.Equal(t, int64(0), w.AvailableMinor)

	tx, err := env.store.GetTransaction(context.Background(), sale.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TxStatusCompleted, tx.Status)
	require.NotNil(t, tx.NetMinor)
	assert.Equal(t, int64(10000), *tx.NetMinor)
	require.NotNil(t, tx.PayoutReference)

	// Redelivery of the same event must not credit again.
	require.NoError(t, env.intake.ReconcilePayment(context.Background(), ev))
	w = env.wallet(t, sellerID)
	assert.Equal(t, int64(10000), w.PendingMinor)
}

func TestReconcilePaymentUnknownReferenceIsNoop(t *testing.T) {
	env := newTestEnv(t)

	err := env.intake.ReconcilePayment(context.Background(), paymentEvent("ghost", 11000, 0, 0, 0))
	assert.NoError(t, err)
}

func TestReconcilePaymentAmountMismatchFailsSale(t *testing.T) {
	env := newTestEnv(t)
	sellerID := uuid.New()
	sale := initiateSale(t, env, sellerID, "sale-1", 11000)

	err := env.intake.ReconcilePayment(context.Background(), paymentEvent("sale-1", 9000, 0, 0, 0))
	assert.ErrorIs(t, err, models.ErrValidation)

	tx, err := env.store.GetTransaction(context.Background(), sale.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TxStatusFailed, tx.Status)
	require.NotNil(t, tx.Reason)

	w := env.wallet(t, sellerID)
	assert.Zero(t, w.PendingMinor)
}

func TestReconcilePaymentFeesExceedGross(t *testing.T) {
	env := newTestEnv(t)
	sellerID := uuid.New()
	sale := initiateSale(t, env, sellerID, "sale-1", 1000)

	err := env.intake.ReconcilePayment(context.Background(), paymentEvent("sale-1", 1000, 600, 400, 100))
	assert.ErrorIs(t, err, models.ErrValidation)

	tx, err := env.store.GetTransaction(context.Background(), sale.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TxStatusFailed, tx.Status)
}

func TestSettleSaleReleasesNetToAvailable(t *testing.T) {
	env := newTestEnv(t)
	sellerID := uuid.New()
	initiateSale(t, env, sellerID, "sale-1", 11000)
	require.NoError(t, env.intake.ReconcilePayment(context.Background(), paymentEvent("sale-1", 11000, 1000, 0, 0)))

	tx, err := env.intake.SettleSale(context.Background(), "sale-1", nil)
	require.NoError(t, err)
	assert.NotNil(t, tx.SettledAt)

	w := env.wallet(t, sellerID)
	assert.Equal(t, int64(10000), w.AvailableMinor)
	assert.Equal(t, int64(0), w.PendingMinor)

	// A second settlement attempt is refused by the set-once mark.
	_, err = env.intake.SettleSale(context.Background(), "sale-1", nil)
	assert.ErrorIs(t, err, service.ErrAlreadySettled)
	w = env.wallet(t, sellerID)
	assert.Equal(t, int64(10000), w.AvailableMinor)
}

func TestSettleSaleRequiresCompletedSale(t *testing.T) {
	env := newTestEnv(t)
	sellerID := uuid.New()
	initiateSale(t, env, sellerID, "sale-1", 11000)

	_, err := env.intake.SettleSale(context.Background(), "sale-1", nil)
	assert.ErrorIs(t, err, service.ErrSaleNotSettleable)
}

func TestInitiateSaleCreateRaceAgainstDifferentAttempt(t *testing.T) {
	sellerID := uuid.New()
	rival := &models.Transaction{
		ID:          uuid.New(),
		UserID:      uuid.New(),
		Type:        domain.TxTypeSale,
		Status:      domain.TxStatusInitiated,
		AmountMinor: 999,
		Currency:    "NGN",
		Reference:   "sale-1",
		GatewayKind: domain.GatewayKindBankTransfer,
	}
	store := &rivalStore{Store: memory.NewStore(), rival: rival}
	wallets := service.NewWalletService(store)
	intake := service.NewIntakeService(store, wallets)

	_, err := intake.InitiateSale(context.Background(), service.InitiateSaleRequest{
		SellerID:    sellerID,
		Reference:   "sale-1",
		AmountMinor: 11000,
		Currency:    "NGN",
		GatewayKind: domain.GatewayKindBankTransfer,
	})
	assert.ErrorIs(t, err, models.ErrDuplicateReference)
}
