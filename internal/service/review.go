package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/emmanuel-nwafor/foremade-backend-sub000/internal/domain"
	"github.com/emmanuel-nwafor/foremade-backend-sub000/internal/models"
	"github.com/emmanuel-nwafor/foremade-backend-sub000/internal/observability"
)

// ReviewService escalates transactions stuck mid-flight and checks the
// wallet invariants. It is the recovery half of the crash-window design:
// a claim that dies between its wallet write and its terminal status lands
// in processing forever, and only an operator may decide whether money
// actually moved.
type ReviewService struct {
	store    Store
	audit    *AuditService
	staleAge time.Duration
	batch    int32
}

// NewReviewService creates the stale-claim sweeper service.
func NewReviewService(store Store, staleAge time.Duration) *ReviewService {
	if staleAge <= 0 {
		staleAge = 15 * time.Minute
	}
	return &ReviewService{
		store:    store,
		audit:    NewAuditService(store),
		staleAge: staleAge,
		batch:    100,
	}
}

// Run performs one sweep pass.
func (s *ReviewService) Run(ctx context.Context) error {
	escalated, err := s.EscalateStale(ctx)
	if err != nil {
		return err
	}
	if escalated > 0 {
		zap.L().Warn("stale processing transactions escalated to manual review", zap.Int("count", escalated))
	}

	queued, err := s.store.CountByStatus(ctx, domain.TxStatusManualReview)
	if err != nil {
		return fmt.Errorf("count manual review queue: %w", err)
	}
	observability.SetManualReviewQueueSize(queued)

	negative, err := s.store.CountNegativeWallets(ctx)
	if err != nil {
		return fmt.Errorf("count negative wallets: %w", err)
	}
	observability.SetNegativeWalletCount(negative)
	if negative > 0 {
		zap.L().Error("wallet invariant violated: negative balances present", zap.Int64("wallets", negative))
	}
	return nil
}

// EscalateStale moves transactions that have sat in processing past the
// stale age into manual_review. Funds are never touched here; crediting or
// releasing on a guess is how balances go wrong.
func (s *ReviewService) EscalateStale(ctx context.Context) (int, error) {
	cutoff := time.Now().UTC().Add(-s.staleAge)
	stale, err := s.store.ListStaleByStatus(ctx, domain.TxStatusProcessing, cutoff, s.batch)
	if err != nil {
		return 0, fmt.Errorf("list stale processing transactions: %w", err)
	}

	reason := "stale processing claim"
	escalated := 0
	for i := range stale {
		tx := &stale[i]
		err := transition(ctx, s.store, s.audit, tx.ID, domain.TxStatusProcessing, domain.TxStatusManualReview, nil, "stale_claim_escalated", models.TransactionUpdate{Reason: &reason})
		if err != nil {
			if errors.Is(err, models.ErrConflict) {
				// The owning request finished between the list and the CAS.
				continue
			}
			return escalated, err
		}
		observability.IncrementManualReviewTransition("queued")
		escalated++
	}
	return escalated, nil
}
