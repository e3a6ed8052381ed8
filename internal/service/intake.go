package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/emmanuel-nwafor/foremade-backend-sub000/internal/domain"
	"github.com/emmanuel-nwafor/foremade-backend-sub000/internal/gateway"
	"github.com/emmanuel-nwafor/foremade-backend-sub000/internal/models"
	"github.com/emmanuel-nwafor/foremade-backend-sub000/internal/observability"
)

var (
	ErrSaleNotSettleable = errors.New("sale is not in a settleable state")
	ErrAlreadySettled    = errors.New("sale already settled")
)

// IntakeService turns verified gateway payment events into exactly one
// wallet credit and one transaction transition per reference.
type IntakeService struct {
	store   Store
	wallets *WalletService
	audit   *AuditService
}

// NewIntakeService creates the payment intake reconciler.
func NewIntakeService(store Store, wallets *WalletService) *IntakeService {
	return &IntakeService{
		store:   store,
		wallets: wallets,
		audit:   NewAuditService(store),
	}
}

// InitiateSaleRequest records a checkout intent awaiting gateway confirmation.
type InitiateSaleRequest struct {
	SellerID    uuid.UUID
	Reference   string
	AmountMinor int64
	Currency    string
	GatewayKind string
}

func (r InitiateSaleRequest) validate() error {
	if r.SellerID == uuid.Nil {
		return fmt.Errorf("%w: seller_id is required", models.ErrValidation)
	}
	if r.Reference == "" {
		return fmt.Errorf("%w: reference is required", models.ErrValidation)
	}
	if r.AmountMinor <= 0 {
		return fmt.Errorf("%w: amount must be positive", models.ErrValidation)
	}
	switch r.GatewayKind {
	case domain.GatewayKindCard, domain.GatewayKindBankTransfer:
		return nil
	default:
		return fmt.Errorf("%w: unknown gateway kind %q", models.ErrValidation, r.GatewayKind)
	}
}

// InitiateSale creates the initiated Sale record the reconciler later
// completes. Duplicate references return the existing record.
func (s *IntakeService) InitiateSale(ctx context.Context, req InitiateSaleRequest) (*models.Transaction, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	if existing, err := s.store.GetTransactionByReference(ctx, req.Reference); err == nil {
		if existing.Type != domain.TxTypeSale || existing.AmountMinor != req.AmountMinor || existing.UserID != req.SellerID {
			return nil, fmt.Errorf("%w: reference bound to a different attempt", models.ErrDuplicateReference)
		}
		return existing, nil
	} else if !errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("check sale reference: %w", err)
	}

	now := time.Now().UTC()
	tx := &models.Transaction{
		ID:          uuid.New(),
		UserID:      req.SellerID,
		Type:        domain.TxTypeSale,
		Status:      domain.TxStatusInitiated,
		AmountMinor: req.AmountMinor,
		Currency:    req.Currency,
		Reference:   req.Reference,
		GatewayKind: req.GatewayKind,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.CreateTransaction(ctx, tx); err != nil {
		if errors.Is(err, models.ErrDuplicateReference) {
			// Lost a creation race; the winner's record is authoritative, but
			// only when it describes the same attempt.
			winner, getErr := s.store.GetTransactionByReference(ctx, req.Reference)
			if getErr != nil {
				return nil, fmt.Errorf("load winning sale: %w", getErr)
			}
			if winner.Type != domain.TxTypeSale || winner.UserID != req.SellerID || winner.AmountMinor != req.AmountMinor {
				return nil, fmt.Errorf("%w: reference bound to a different attempt", models.ErrDuplicateReference)
			}
			return winner, nil
		}
		return nil, fmt.Errorf("create sale transaction: %w", err)
	}
	s.audit.Write(ctx, "transaction", tx.ID, nil, "sale_initiated", "", domain.TxStatusInitiated, nil)
	return tx, nil
}

// ReconcilePayment credits the seller's pending balance exactly once for a
// verified payment event. Unknown references and redelivered events resolve
// to no-ops, never duplicate side effects.
func (s *IntakeService) ReconcilePayment(ctx context.Context, ev *gateway.VerifiedEvent) error {
	tx, err := s.store.GetTransactionByReference(ctx, ev.Reference)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			// Event arrived before the intake record, or redelivered after
			// everything was reconciled under a pruned reference. Ack.
			observability.IncrementWebhookEvent("unknown_reference")
			zap.L().Info("payment event for unknown reference acknowledged", zap.String("reference", ev.Reference))
			return nil
		}
		return fmt.Errorf("load transaction by reference: %w", err)
	}
	if tx.Type != domain.TxTypeSale {
		observability.IncrementWebhookEvent("wrong_type")
		return nil
	}
	if tx.Status != domain.TxStatusInitiated {
		// Duplicate delivery after completion, or a concurrent delivery owns
		// the claim. Idempotent no-op either way.
		observability.IncrementWebhookEvent("duplicate_delivery")
		zap.L().Info("duplicate payment event acknowledged",
			zap.String("reference", ev.Reference),
			zap.String("status", tx.Status),
		)
		return nil
	}

	// Claim the event. Losing the CAS means another delivery got here first.
	if err := transition(ctx, s.store, s.audit, tx.ID, domain.TxStatusInitiated, domain.TxStatusProcessing, nil, "payment_event_claimed", models.TransactionUpdate{}); err != nil {
		if errors.Is(err, models.ErrConflict) {
			observability.IncrementWebhookEvent("duplicate_delivery")
			return nil
		}
		return err
	}

	if ev.AmountMinor != tx.AmountMinor {
		reason := fmt.Sprintf("event amount %d does not match intake amount %d", ev.AmountMinor, tx.AmountMinor)
		s.failSale(ctx, tx.ID, reason)
		return fmt.Errorf("%w: %s", models.ErrValidation, reason)
	}

	net := domain.NetOfFees(ev.AmountMinor, ev.Metadata.HandlingFee, ev.Metadata.BuyerProtectionFee, ev.Metadata.TaxFee)
	if net <= 0 {
		reason := fmt.Sprintf("net amount %d not creditable", net)
		s.failSale(ctx, tx.ID, reason)
		return fmt.Errorf("%w: %s", models.ErrValidation, reason)
	}

	if err := s.wallets.Credit(ctx, tx.UserID, net, domain.BucketPending); err != nil {
		// Leave the claim in place: the sweeper escalates stale processing
		// sales to manual review. Re-crediting automatically is how sellers
		// get paid twice.
		observability.IncrementWebhookEvent("credit_failed")
		zap.L().Error("sale credit failed; claim left for manual review",
			zap.Error(err),
			zap.String("reference", ev.Reference),
		)
		return fmt.Errorf("credit seller wallet: %w", err)
	}

	if err := transition(ctx, s.store, s.audit, tx.ID, domain.TxStatusProcessing, domain.TxStatusCompleted, nil, "sale_reconciled", models.TransactionUpdate{
		PayoutReference: &ev.GatewayRef,
		NetMinor:        &net,
	}); err != nil {
		zap.L().Error("sale credited but completion failed; awaiting manual review",
			zap.Error(err),
			zap.String("reference", ev.Reference),
		)
		return err
	}

	entry := &models.LedgerEntry{
		ID:            uuid.New(),
		TransactionID: tx.ID,
		UserID:        tx.UserID,
		Type:          domain.TxTypeSale,
		AmountMinor:   net,
		Bucket:        domain.BucketPending,
		Description:   "sale proceeds (net of platform fees)",
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.store.AppendEntry(ctx, entry); err != nil {
		// Read-model only; the authoritative record is already complete.
		zap.L().Warn("sale ledger entry append failed", zap.Error(err), zap.String("reference", ev.Reference))
	}

	observability.IncrementWebhookEvent("sale_credited")
	return nil
}

// SettleSale releases a completed sale's held net amount to the seller's
// available balance after the buyer-protection window. Guarded by a
// set-once settled mark so repeat calls are no-ops.
func (s *IntakeService) SettleSale(ctx context.Context, reference string, actorID *uuid.UUID) (*models.Transaction, error) {
	tx, err := s.store.GetTransactionByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	if tx.Type != domain.TxTypeSale || tx.Status != domain.TxStatusCompleted {
		return nil, ErrSaleNotSettleable
	}
	if tx.NetMinor == nil {
		return nil, fmt.Errorf("completed sale %s has no recorded net amount", tx.ID)
	}

	marked, err := s.store.MarkSettled(ctx, tx.ID, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("mark sale settled: %w", err)
	}
	if !marked {
		return nil, ErrAlreadySettled
	}

	if err := s.wallets.Release(ctx, tx.UserID, *tx.NetMinor); err != nil {
		zap.L().Error("sale settlement release failed after settled mark",
			zap.Error(err),
			zap.String("reference", reference),
		)
		return nil, fmt.Errorf("release settled sale funds: %w", err)
	}
	s.audit.Write(ctx, "transaction", tx.ID, actorID, "sale_settled", domain.TxStatusCompleted, domain.TxStatusCompleted, nil)

	return s.store.GetTransaction(ctx, tx.ID)
}

func (s *IntakeService) failSale(ctx context.Context, id uuid.UUID, reason string) {
	if err := transition(ctx, s.store, s.audit, id, domain.TxStatusProcessing, domain.TxStatusFailed, nil, "sale_failed", models.TransactionUpdate{Reason: &reason}); err != nil {
		zap.L().Error("failed to mark sale failed", zap.Error(err), zap.String("transaction_id", id.String()))
	}
}
