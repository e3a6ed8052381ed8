package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emmanuel-nwafor/foremade-backend-sub000/internal/domain"
	"github.com/emmanuel-nwafor/foremade-backend-sub000/internal/models"
	"github.com/emmanuel-nwafor/foremade-backend-sub000/internal/service"
)

func seedProcessing(t *testing.T, env *testEnv, age time.Duration) *models.Transaction {
	t.Helper()
	stamp := time.Now().UTC().Add(-age)
	tx := &models.Transaction{
		ID:          uuid.New(),
		UserID:      uuid.New(),
		Type:        domain.TxTypeSale,
		Status:      domain.TxStatusProcessing,
		AmountMinor: 1000,
		Currency:    "NGN",
		Reference:   "ref-" + uuid.NewString()[:8],
		GatewayKind: domain.GatewayKindBankTransfer,
		CreatedAt:   stamp,
		UpdatedAt:   stamp,
	}
	require.NoError(t, env.store.CreateTransaction(context.Background(), tx))
	return tx
}

func TestSweepEscalatesStaleProcessing(t *testing.T) {
	env := newTestEnv(t)
	stale := seedProcessing(t, env, time.Hour)
	fresh := seedProcessing(t, env, time.Minute)

	review := service.NewReviewService(env.store, 15*time.Minute)
	require.NoError(t, review.Run(context.Background()))

	got, err := env.store.GetTransaction(context.Background(), stale.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TxStatusManualReview, got.Status)
	require.NotNil(t, got.Reason)

	got, err = env.store.GetTransaction(context.Background(), fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TxStatusProcessing, got.Status)
}

func TestSweepNeverTouchesWallets(t *testing.T) {
	env := newTestEnv(t)
	tx := seedProcessing(t, env, time.Hour)
	env.fundAvailable(t, tx.UserID, 5000)

	review := service.NewReviewService(env.store, 15*time.Minute)
	require.NoError(t, review.Run(context.Background()))

	w := env.wallet(t, tx.UserID)
	assert.Equal(t, int64(5000), w.AvailableMinor)
	assert.Equal(t, int64(0), w.PendingMinor)
}

func TestSweepIsRepeatable(t *testing.T) {
	env := newTestEnv(t)
	stale := seedProcessing(t, env, time.Hour)

	review := service.NewReviewService(env.store, 15*time.Minute)
	require.NoError(t, review.Run(context.Background()))
	require.NoError(t, review.Run(context.Background()))

	got, err := env.store.GetTransaction(context.Background(), stale.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TxStatusManualReview, got.Status)
}
