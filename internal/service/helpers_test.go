package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/emmanuel-nwafor/foremade-backend-sub000/internal/domain"
	"github.com/emmanuel-nwafor/foremade-backend-sub000/internal/gateway"
	"github.com/emmanuel-nwafor/foremade-backend-sub000/internal/models"
	"github.com/emmanuel-nwafor/foremade-backend-sub000/internal/repository/memory"
	"github.com/emmanuel-nwafor/foremade-backend-sub000/internal/service"
)

type testEnv struct {
	store   *memory.Store
	wallets *service.WalletService
	intake  *service.IntakeService
	payouts *service.PayoutService
	bank    *gateway.MockGateway
	card    *gateway.MockGateway
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := memory.NewStore()
	wallets := service.NewWalletService(store).WithRetry(20, time.Millisecond)
	bank := gateway.NewMockGateway(domain.GatewayKindBankTransfer)
	card := gateway.NewMockGateway(domain.GatewayKindCard)
	selector := gateway.NewSelector(bank, card)
	return &testEnv{
		store:   store,
		wallets: wallets,
		intake:  service.NewIntakeService(store, wallets),
		payouts: service.NewPayoutService(store, wallets, selector, "NGN"),
		bank:    bank,
		card:    card,
	}
}

func (e *testEnv) fundAvailable(t *testing.T, userID uuid.UUID, amountMinor int64) {
	t.Helper()
	require.NoError(t, e.wallets.Credit(context.Background(), userID, amountMinor, domain.BucketAvailable))
}

func (e *testEnv) saveBankProfile(t *testing.T, userID uuid.UUID, recipientCode string) {
	t.Helper()
	now := time.Now().UTC()
	require.NoError(t, e.store.SavePayoutProfile(context.Background(), &models.PayoutProfile{
		UserID:        userID,
		GatewayKind:   domain.GatewayKindBankTransfer,
		BankCode:      "058",
		AccountNumber: "0123456789",
		AccountName:   "Test Seller",
		RecipientCode: recipientCode,
		CreatedAt:     now,
		UpdatedAt:     now,
	}))
}

func (e *testEnv) saveCardProfile(t *testing.T, userID uuid.UUID, recipientCode string) {
	t.Helper()
	now := time.Now().UTC()
	require.NoError(t, e.store.SavePayoutProfile(context.Background(), &models.PayoutProfile{
		UserID:        userID,
		GatewayKind:   domain.GatewayKindCard,
		AccountName:   "Test Seller",
		RecipientCode: recipientCode,
		CreatedAt:     now,
		UpdatedAt:     now,
	}))
}

func (e *testEnv) wallet(t *testing.T, userID uuid.UUID) *models.Wallet {
	t.Helper()
	w, err := e.wallets.GetWallet(context.Background(), userID)
	require.NoError(t, err)
	return w
}

// rivalStore lands a competing transaction just before the first create, so
// the duplicate-reference fallback path runs deterministically.
type rivalStore struct {
	*memory.Store
	rival *models.Transaction
	once  sync.Once
}

func (s *rivalStore) CreateTransaction(ctx context.Context, tx *models.Transaction) error {
	s.once.Do(func() {
		_ = s.Store.CreateTransaction(ctx, s.rival)
	})
	return s.Store.CreateTransaction(ctx, tx)
}

func paymentEvent(reference string, amount int64, handling, protection, tax int64) *gateway.VerifiedEvent {
	return &gateway.VerifiedEvent{
		Event:       "charge.success",
		Reference:   reference,
		AmountMinor: amount,
		GatewayRef:  "evt-1",
		Metadata: gateway.EventMetadata{
			HandlingFee:        handling,
			BuyerProtectionFee: protection,
			TaxFee:             tax,
		},
	}
}
