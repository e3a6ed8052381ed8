package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/emmanuel-nwafor/foremade-backend-sub000/internal/domain"
	"github.com/emmanuel-nwafor/foremade-backend-sub000/internal/models"
	"github.com/emmanuel-nwafor/foremade-backend-sub000/internal/observability"
)

const (
	defaultWalletRetryAttempts = 5
	defaultWalletRetryBackoff  = 20 * time.Millisecond
)

// WalletService is the only component allowed to mutate wallet balances.
// Every mutation is one optimistic compare-and-apply against the wallet
// version; conflicts are retried with exponential backoff up to a bounded
// attempt count.
type WalletService struct {
	store       Store
	maxAttempts int
	baseBackoff time.Duration
}

// NewWalletService creates a wallet balance manager.
func NewWalletService(store Store) *WalletService {
	return &WalletService{
		store:       store,
		maxAttempts: defaultWalletRetryAttempts,
		baseBackoff: defaultWalletRetryBackoff,
	}
}

// WithRetry overrides the conflict retry budget.
func (s *WalletService) WithRetry(attempts int, backoff time.Duration) *WalletService {
	if attempts > 0 {
		s.maxAttempts = attempts
	}
	if backoff > 0 {
		s.baseBackoff = backoff
	}
	return s
}

// Credit adds amount to the given bucket, creating the wallet on first use.
func (s *WalletService) Credit(ctx context.Context, userID uuid.UUID, amountMinor int64, bucket string) error {
	if amountMinor <= 0 {
		return fmt.Errorf("%w: credit amount must be positive", models.ErrValidation)
	}
	switch bucket {
	case domain.BucketAvailable:
		return s.apply(ctx, userID, amountMinor, 0, true)
	case domain.BucketPending:
		return s.apply(ctx, userID, 0, amountMinor, true)
	default:
		return fmt.Errorf("%w: unknown bucket %q", models.ErrValidation, bucket)
	}
}

// Hold moves amount from availableBalance to pendingBalance. Fails with
// ErrInsufficientFunds when the available balance cannot cover it at apply
// time.
func (s *WalletService) Hold(ctx context.Context, userID uuid.UUID, amountMinor int64) error {
	if amountMinor <= 0 {
		return fmt.Errorf("%w: hold amount must be positive", models.ErrValidation)
	}
	return s.apply(ctx, userID, -amountMinor, amountMinor, false)
}

// Release is the reverse of Hold: pendingBalance back to availableBalance.
func (s *WalletService) Release(ctx context.Context, userID uuid.UUID, amountMinor int64) error {
	if amountMinor <= 0 {
		return fmt.Errorf("%w: release amount must be positive", models.ErrValidation)
	}
	return s.apply(ctx, userID, amountMinor, -amountMinor, false)
}

// SettleHold removes amount from pendingBalance permanently (paid out).
func (s *WalletService) SettleHold(ctx context.Context, userID uuid.UUID, amountMinor int64) error {
	if amountMinor <= 0 {
		return fmt.Errorf("%w: settle amount must be positive", models.ErrValidation)
	}
	return s.apply(ctx, userID, 0, -amountMinor, false)
}

// GetWallet returns the wallet, materializing an empty one for sellers who
// have not moved money yet.
func (s *WalletService) GetWallet(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	wallet, err := s.store.GetWallet(ctx, userID)
	if errors.Is(err, models.ErrNotFound) {
		return &models.Wallet{UserID: userID}, nil
	}
	return wallet, err
}

func (s *WalletService) apply(ctx context.Context, userID uuid.UUID, availableDelta, pendingDelta int64, createIfMissing bool) error {
	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		wallet, err := s.store.GetWallet(ctx, userID)
		if err != nil {
			if errors.Is(err, models.ErrNotFound) && createIfMissing {
				wallet = &models.Wallet{UserID: userID}
				if createErr := s.store.CreateWallet(ctx, wallet); createErr != nil {
					// Lost a creation race; re-read on the next attempt.
					continue
				}
			} else {
				return err
			}
		}

		applied, err := s.store.ApplyBalanceChange(ctx, userID, wallet.Version, availableDelta, pendingDelta)
		if err != nil {
			return err
		}
		if applied {
			return nil
		}

		observability.IncrementWalletConflict()
		backoff := s.baseBackoff << attempt
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}

	zap.L().Warn("wallet update exhausted retry budget",
		zap.String("user_id", userID.String()),
		zap.Int64("available_delta", availableDelta),
		zap.Int64("pending_delta", pendingDelta),
	)
	return models.ErrConcurrentUpdate
}
