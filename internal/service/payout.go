package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/emmanuel-nwafor/foremade-backend-sub000/internal/domain"
	"github.com/emmanuel-nwafor/foremade-backend-sub000/internal/gateway"
	"github.com/emmanuel-nwafor/foremade-backend-sub000/internal/models"
	"github.com/emmanuel-nwafor/foremade-backend-sub000/internal/observability"
)

var (
	ErrPayoutNotFound       = errors.New("payout not found")
	ErrPayoutNotPending     = errors.New("payout is not pending")
	ErrPayoutNotAwaitingOtp = errors.New("payout is not awaiting otp")
	ErrNotInManualReview    = errors.New("transaction is not in manual review")
	ErrInvalidDecision      = errors.New("invalid manual review decision")
)

const defaultGatewayTimeout = 30 * time.Second

// PayoutService drives a seller withdrawal from request through admin
// approval, gateway transfer, OTP finalization and ledger settlement.
// Every transition is a compare-and-set on the stored status, so duplicate
// admin clicks and redelivered webhooks degrade to harmless conflicts.
type PayoutService struct {
	store          Store
	wallets        *WalletService
	gateways       *gateway.Selector
	audit          *AuditService
	currency       string
	gatewayTimeout time.Duration
}

// NewPayoutService creates the payout orchestrator.
func NewPayoutService(store Store, wallets *WalletService, gateways *gateway.Selector, currency string) *PayoutService {
	return &PayoutService{
		store:          store,
		wallets:        wallets,
		gateways:       gateways,
		audit:          NewAuditService(store),
		currency:       currency,
		gatewayTimeout: defaultGatewayTimeout,
	}
}

// WithGatewayTimeout bounds every provider call.
func (s *PayoutService) WithGatewayTimeout(timeout time.Duration) *PayoutService {
	if timeout > 0 {
		s.gatewayTimeout = timeout
	}
	return s
}

// RequestPayoutRequest holds the parameters for a seller withdrawal request.
type RequestPayoutRequest struct {
	SellerID    uuid.UUID
	AmountMinor int64
	Reference   string
}

// RequestPayout holds the funds and creates the pending withdrawal record.
// Duplicate references return the existing withdrawal unchanged.
func (s *PayoutService) RequestPayout(ctx context.Context, req RequestPayoutRequest) (*models.Transaction, error) {
	if req.AmountMinor <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", models.ErrValidation)
	}
	if req.Reference == "" {
		return nil, fmt.Errorf("%w: reference is required", models.ErrValidation)
	}
	if req.SellerID == uuid.Nil {
		return nil, fmt.Errorf("%w: seller_id is required", models.ErrValidation)
	}

	if existing, err := s.store.GetTransactionByReference(ctx, req.Reference); err == nil {
		if existing.Type != domain.TxTypeWithdrawal || existing.UserID != req.SellerID || existing.AmountMinor != req.AmountMinor {
			return nil, fmt.Errorf("%w: reference bound to a different attempt", models.ErrDuplicateReference)
		}
		return existing, nil
	} else if !errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("check withdrawal reference: %w", err)
	}

	profile, err := s.store.GetPayoutProfile(ctx, req.SellerID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, fmt.Errorf("%w: seller has no payout profile", models.ErrNotFound)
		}
		return nil, fmt.Errorf("load payout profile: %w", err)
	}

	if err := s.wallets.Hold(ctx, req.SellerID, req.AmountMinor); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrInsufficientFunds
		}
		return nil, err
	}

	now := time.Now().UTC()
	tx := &models.Transaction{
		ID:          uuid.New(),
		UserID:      req.SellerID,
		Type:        domain.TxTypeWithdrawal,
		Status:      domain.TxStatusPending,
		AmountMinor: req.AmountMinor,
		Currency:    s.currency,
		Reference:   req.Reference,
		GatewayKind: profile.GatewayKind,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.CreateTransaction(ctx, tx); err != nil {
		if releaseErr := s.wallets.Release(ctx, req.SellerID, req.AmountMinor); releaseErr != nil {
			zap.L().Error("failed to release hold after withdrawal create failure",
				zap.Error(releaseErr),
				zap.String("reference", req.Reference),
			)
		}
		if errors.Is(err, models.ErrDuplicateReference) {
			// Lost a creation race. The winner's record is only reusable when
			// it describes the same attempt.
			winner, getErr := s.store.GetTransactionByReference(ctx, req.Reference)
			if getErr != nil {
				return nil, fmt.Errorf("load winning withdrawal: %w", getErr)
			}
			if winner.Type != domain.TxTypeWithdrawal || winner.UserID != req.SellerID || winner.AmountMinor != req.AmountMinor {
				return nil, fmt.Errorf("%w: reference bound to a different attempt", models.ErrDuplicateReference)
			}
			return winner, nil
		}
		return nil, fmt.Errorf("create withdrawal transaction: %w", err)
	}

	s.audit.Write(ctx, "transaction", tx.ID, &req.SellerID, "payout_requested", "", domain.TxStatusPending, nil)
	observability.IncrementPayoutTransition("requested")
	return tx, nil
}

// Approve claims a pending withdrawal for the calling admin, onboards the
// seller with their gateway if needed, and initiates the transfer. The card
// path settles immediately; the bank-transfer path parks in pending_otp.
func (s *PayoutService) Approve(ctx context.Context, transactionID uuid.UUID, adminID uuid.UUID) (*models.Transaction, error) {
	tx, err := s.getWithdrawal(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if tx.Status != domain.TxStatusPending {
		return nil, fmt.Errorf("%w: status is %s", ErrPayoutNotPending, tx.Status)
	}

	// Claim. A second admin clicking approve loses this CAS and gets a
	// conflict, not a second transfer.
	if err := transition(ctx, s.store, s.audit, tx.ID, domain.TxStatusPending, domain.TxStatusProcessing, &adminID, "payout_approved", models.TransactionUpdate{}); err != nil {
		if errors.Is(err, models.ErrConflict) {
			return nil, fmt.Errorf("%w: already claimed", ErrPayoutNotPending)
		}
		return nil, err
	}

	recipientCode, gw, err := s.resolvePayee(ctx, tx.UserID)
	if err != nil {
		s.requeue(ctx, tx.ID, &adminID, "payee_resolution_failed")
		return nil, err
	}

	gwCtx, cancel := context.WithTimeout(ctx, s.gatewayTimeout)
	defer cancel()
	handle, err := gw.InitiateTransfer(gwCtx, recipientCode, tx.AmountMinor, tx.Reference, "seller payout")
	if err != nil {
		switch {
		case errors.Is(err, gateway.ErrRejected):
			s.failWithRelease(ctx, tx, &adminID, err.Error())
			observability.IncrementPayoutTransition("gateway_rejected")
			return nil, err
		default:
			// Network trouble and timeouts are retryable: hand the record
			// back to pending so the admin can approve again.
			s.requeue(ctx, tx.ID, &adminID, "gateway_unavailable")
			observability.IncrementPayoutTransition("gateway_unavailable")
			return nil, fmt.Errorf("%w: %v", gateway.ErrUnavailable, err)
		}
	}

	switch handle.Status {
	case gateway.TransferStatusAwaitingOtp:
		if err := transition(ctx, s.store, s.audit, tx.ID, domain.TxStatusProcessing, domain.TxStatusPendingOtp, &adminID, "awaiting_otp", models.TransactionUpdate{
			TransferCode: &handle.TransferCode,
		}); err != nil {
			s.markManualReview(ctx, tx.ID, &adminID, "transfer initiated but pending_otp persist failed: "+err.Error())
			return nil, err
		}
		observability.IncrementPayoutTransition("pending_otp")

	case gateway.TransferStatusSuccess:
		if err := s.settleAndComplete(ctx, tx, &adminID, handle.GatewayRef); err != nil {
			return nil, err
		}

	default:
		s.failWithRelease(ctx, tx, &adminID, "gateway reported transfer failed")
		return nil, fmt.Errorf("%w: transfer failed at initiation", gateway.ErrRejected)
	}

	return s.store.GetTransaction(ctx, tx.ID)
}

// ConfirmOtp finalizes a bank transfer parked in pending_otp. A wrong code
// leaves the withdrawal in pending_otp for another attempt.
func (s *PayoutService) ConfirmOtp(ctx context.Context, transactionID uuid.UUID, otp string, actorID *uuid.UUID) (*models.Transaction, error) {
	if strings.TrimSpace(otp) == "" {
		return nil, fmt.Errorf("%w: otp is required", models.ErrValidation)
	}
	tx, err := s.getWithdrawal(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if tx.Status != domain.TxStatusPendingOtp {
		return nil, fmt.Errorf("%w: status is %s", ErrPayoutNotAwaitingOtp, tx.Status)
	}
	if tx.TransferCode == nil || *tx.TransferCode == "" {
		return nil, fmt.Errorf("withdrawal %s has no transfer code", tx.ID)
	}

	if err := transition(ctx, s.store, s.audit, tx.ID, domain.TxStatusPendingOtp, domain.TxStatusProcessing, actorID, "otp_submitted", models.TransactionUpdate{}); err != nil {
		if errors.Is(err, models.ErrConflict) {
			return nil, fmt.Errorf("%w: already claimed", ErrPayoutNotAwaitingOtp)
		}
		return nil, err
	}

	gw, err := s.gateways.ForKind(tx.GatewayKind)
	if err != nil {
		s.backToPendingOtp(ctx, tx.ID, actorID, "gateway_unresolved")
		return nil, err
	}

	gwCtx, cancel := context.WithTimeout(ctx, s.gatewayTimeout)
	defer cancel()
	result, err := gw.ConfirmTransfer(gwCtx, gateway.TransferHandle{
		Reference:    tx.Reference,
		TransferCode: *tx.TransferCode,
	}, otp)
	if err != nil {
		// Both a wrong code and provider downtime return the withdrawal to
		// pending_otp; the gateway enforces its own attempt limit.
		s.backToPendingOtp(ctx, tx.ID, actorID, "otp_confirm_failed")
		observability.IncrementPayoutTransition("otp_failed")
		return nil, err
	}

	if err := s.settleAndComplete(ctx, tx, actorID, result.GatewayRef); err != nil {
		return nil, err
	}
	return s.store.GetTransaction(ctx, tx.ID)
}

// Reject declines a pending withdrawal and returns the held funds. Refused
// once Approve has claimed the record.
func (s *PayoutService) Reject(ctx context.Context, transactionID uuid.UUID, adminID uuid.UUID, reason string) (*models.Transaction, error) {
	tx, err := s.getWithdrawal(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if tx.Status != domain.TxStatusPending {
		return nil, fmt.Errorf("%w: status is %s", ErrPayoutNotPending, tx.Status)
	}

	if err := transition(ctx, s.store, s.audit, tx.ID, domain.TxStatusPending, domain.TxStatusProcessing, &adminID, "payout_reject_claimed", models.TransactionUpdate{}); err != nil {
		if errors.Is(err, models.ErrConflict) {
			return nil, fmt.Errorf("%w: already claimed", ErrPayoutNotPending)
		}
		return nil, err
	}

	if err := s.wallets.Release(ctx, tx.UserID, tx.AmountMinor); err != nil {
		// Claim stays in processing; the sweeper escalates it.
		zap.L().Error("release failed during payout rejection",
			zap.Error(err),
			zap.String("transaction_id", tx.ID.String()),
		)
		return nil, fmt.Errorf("release held funds: %w", err)
	}

	if reason == "" {
		reason = "rejected by admin"
	}
	if err := transition(ctx, s.store, s.audit, tx.ID, domain.TxStatusProcessing, domain.TxStatusRejected, &adminID, "payout_rejected", models.TransactionUpdate{Reason: &reason}); err != nil {
		return nil, err
	}
	observability.IncrementPayoutTransition("rejected")
	return s.store.GetTransaction(ctx, tx.ID)
}

// HandleTransferEvent finalizes an in-flight withdrawal from an inbound
// transfer webhook. Only records parked in pending_otp are acted on; the
// CAS claim keeps a concurrent ConfirmOtp call from double-settling.
func (s *PayoutService) HandleTransferEvent(ctx context.Context, ev *gateway.VerifiedEvent) error {
	tx, err := s.store.GetTransactionByReference(ctx, ev.Reference)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			observability.IncrementWebhookEvent("unknown_reference")
			return nil
		}
		return err
	}
	if tx.Type != domain.TxTypeWithdrawal {
		observability.IncrementWebhookEvent("transfer_event_noop")
		return nil
	}
	if domain.IsTerminalStatus(tx.Status) {
		// Redelivery for a withdrawal that already finished.
		observability.IncrementWebhookEvent("duplicate_delivery")
		return nil
	}
	if tx.Status != domain.TxStatusPendingOtp {
		observability.IncrementWebhookEvent("transfer_event_noop")
		return nil
	}

	if err := transition(ctx, s.store, s.audit, tx.ID, domain.TxStatusPendingOtp, domain.TxStatusProcessing, nil, "transfer_event_claimed", models.TransactionUpdate{}); err != nil {
		if errors.Is(err, models.ErrConflict) {
			observability.IncrementWebhookEvent("transfer_event_noop")
			return nil
		}
		return err
	}

	switch ev.Event {
	case "transfer.success":
		return s.settleAndComplete(ctx, tx, nil, ev.GatewayRef)
	case "transfer.failed", "transfer.reversed":
		s.failWithRelease(ctx, tx, nil, "gateway reported "+ev.Event)
		return nil
	default:
		s.backToPendingOtp(ctx, tx.ID, nil, "unhandled_transfer_event")
		return nil
	}
}

// ManualReviewDecision resolves a transaction stuck in manual_review.
type ManualReviewDecision string

const (
	// DecisionConfirmSent: the gateway transfer went out; settle the hold.
	DecisionConfirmSent ManualReviewDecision = "confirm_sent"
	// DecisionRefundFailed: the transfer never happened; return the funds.
	DecisionRefundFailed ManualReviewDecision = "refund_failed"
	// DecisionConfirmCredited: the sale credit landed; just complete.
	DecisionConfirmCredited ManualReviewDecision = "confirm_credited"
	// DecisionRecredit: the sale credit was lost; apply the stated amount.
	DecisionRecredit ManualReviewDecision = "recredit"
)

// ResolveManualReviewRequest carries an operator decision.
type ResolveManualReviewRequest struct {
	TransactionID uuid.UUID
	Decision      ManualReviewDecision
	Reason        string
	ActorID       *uuid.UUID
	// RecreditAmountMinor is required for DecisionRecredit.
	RecreditAmountMinor *int64
}

// ResolveManualReview finalizes a transaction the sweeper or a failed local
// finalization parked in manual_review.
func (s *PayoutService) ResolveManualReview(ctx context.Context, req ResolveManualReviewRequest) (*models.Transaction, error) {
	decision := ManualReviewDecision(strings.ToLower(strings.TrimSpace(string(req.Decision))))

	tx, err := s.store.GetTransaction(ctx, req.TransactionID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, ErrPayoutNotFound
		}
		return nil, err
	}
	if tx.Status != domain.TxStatusManualReview {
		return nil, ErrNotInManualReview
	}
	reason := req.Reason

	switch {
	case tx.Type == domain.TxTypeWithdrawal && decision == DecisionConfirmSent:
		if err := transition(ctx, s.store, s.audit, tx.ID, domain.TxStatusManualReview, domain.TxStatusCompleted, req.ActorID, "manual_review_confirmed", models.TransactionUpdate{Reason: &reason}); err != nil {
			return nil, err
		}
		if err := s.wallets.SettleHold(ctx, tx.UserID, tx.AmountMinor); err != nil {
			zap.L().Error("manual review settle failed after completion", zap.Error(err), zap.String("transaction_id", tx.ID.String()))
			return nil, err
		}

	case tx.Type == domain.TxTypeWithdrawal && decision == DecisionRefundFailed:
		if err := transition(ctx, s.store, s.audit, tx.ID, domain.TxStatusManualReview, domain.TxStatusFailed, req.ActorID, "manual_review_refunded", models.TransactionUpdate{Reason: &reason}); err != nil {
			return nil, err
		}
		if err := s.wallets.Release(ctx, tx.UserID, tx.AmountMinor); err != nil {
			zap.L().Error("manual review release failed after fail mark", zap.Error(err), zap.String("transaction_id", tx.ID.String()))
			return nil, err
		}

	case tx.Type == domain.TxTypeSale && decision == DecisionConfirmCredited:
		if err := transition(ctx, s.store, s.audit, tx.ID, domain.TxStatusManualReview, domain.TxStatusCompleted, req.ActorID, "manual_review_confirmed", models.TransactionUpdate{Reason: &reason}); err != nil {
			return nil, err
		}

	case tx.Type == domain.TxTypeSale && decision == DecisionRecredit:
		if req.RecreditAmountMinor == nil || *req.RecreditAmountMinor <= 0 {
			return nil, fmt.Errorf("%w: recredit amount is required", models.ErrValidation)
		}
		if err := transition(ctx, s.store, s.audit, tx.ID, domain.TxStatusManualReview, domain.TxStatusCompleted, req.ActorID, "manual_review_recredited", models.TransactionUpdate{
			Reason:   &reason,
			NetMinor: req.RecreditAmountMinor,
		}); err != nil {
			return nil, err
		}
		if err := s.wallets.Credit(ctx, tx.UserID, *req.RecreditAmountMinor, domain.BucketPending); err != nil {
			zap.L().Error("manual review recredit failed after completion", zap.Error(err), zap.String("transaction_id", tx.ID.String()))
			return nil, err
		}

	default:
		return nil, ErrInvalidDecision
	}

	observability.IncrementManualReviewTransition(string(decision))
	return s.store.GetTransaction(ctx, req.TransactionID)
}

// ListManualReview returns transactions waiting for operator action.
func (s *PayoutService) ListManualReview(ctx context.Context, limit, offset int32) ([]models.Transaction, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}
	if offset < 0 {
		offset = 0
	}
	return s.store.ListTransactionsByStatus(ctx, domain.TxStatusManualReview, limit, offset)
}

// ManualReviewQueueSize counts transactions awaiting operator action.
func (s *PayoutService) ManualReviewQueueSize(ctx context.Context) (int64, error) {
	return s.store.CountByStatus(ctx, domain.TxStatusManualReview)
}

// GetTransaction returns a single transaction.
func (s *PayoutService) GetTransaction(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	tx, err := s.store.GetTransaction(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, ErrPayoutNotFound
		}
		return nil, err
	}
	return tx, nil
}

func (s *PayoutService) getWithdrawal(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	tx, err := s.store.GetTransaction(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, ErrPayoutNotFound
		}
		return nil, err
	}
	if tx.Type != domain.TxTypeWithdrawal {
		return nil, fmt.Errorf("%w: transaction %s is not a withdrawal", models.ErrValidation, id)
	}
	return tx, nil
}

// resolvePayee loads the seller's payout profile, running the idempotent
// gateway onboarding call when no provider-side payee exists yet.
func (s *PayoutService) resolvePayee(ctx context.Context, sellerID uuid.UUID) (string, gateway.Gateway, error) {
	profile, err := s.store.GetPayoutProfile(ctx, sellerID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return "", nil, fmt.Errorf("%w: seller has no payout profile", models.ErrNotFound)
		}
		return "", nil, fmt.Errorf("load payout profile: %w", err)
	}

	gw, err := s.gateways.ForKind(profile.GatewayKind)
	if err != nil {
		return "", nil, err
	}

	if profile.RecipientCode == "" {
		gwCtx, cancel := context.WithTimeout(ctx, s.gatewayTimeout)
		defer cancel()
		code, err := gw.OnboardPayee(gwCtx, profile)
		if err != nil {
			return "", nil, fmt.Errorf("onboard payee: %w", err)
		}
		profile.RecipientCode = code
		profile.UpdatedAt = time.Now().UTC()
		if err := s.store.SavePayoutProfile(ctx, profile); err != nil {
			return "", nil, fmt.Errorf("save payout profile: %w", err)
		}
	}
	return profile.RecipientCode, gw, nil
}

// settleAndComplete removes the hold and marks the withdrawal completed.
// The transfer already left the building: local failures here park the
// record in manual_review with funds still held rather than risking a
// double spend.
func (s *PayoutService) settleAndComplete(ctx context.Context, tx *models.Transaction, actorID *uuid.UUID, gatewayRef string) error {
	if err := s.wallets.SettleHold(ctx, tx.UserID, tx.AmountMinor); err != nil {
		s.markManualReview(ctx, tx.ID, actorID, "transfer sent but settle failed: "+err.Error())
		return fmt.Errorf("settle hold: %w", err)
	}
	if err := transition(ctx, s.store, s.audit, tx.ID, domain.TxStatusProcessing, domain.TxStatusCompleted, actorID, "payout_completed", models.TransactionUpdate{
		PayoutReference: &gatewayRef,
	}); err != nil {
		s.markManualReview(ctx, tx.ID, actorID, "transfer sent and settled but completion failed")
		return err
	}

	entry := &models.LedgerEntry{
		ID:            uuid.New(),
		TransactionID: tx.ID,
		UserID:        tx.UserID,
		Type:          domain.TxTypeWithdrawal,
		AmountMinor:   -tx.AmountMinor,
		Bucket:        domain.BucketPending,
		Description:   "withdrawal paid out",
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.store.AppendEntry(ctx, entry); err != nil {
		zap.L().Warn("withdrawal ledger entry append failed", zap.Error(err), zap.String("transaction_id", tx.ID.String()))
	}

	observability.IncrementPayoutTransition("completed")
	return nil
}

func (s *PayoutService) failWithRelease(ctx context.Context, tx *models.Transaction, actorID *uuid.UUID, reason string) {
	if err := s.wallets.Release(ctx, tx.UserID, tx.AmountMinor); err != nil {
		zap.L().Error("release failed while failing payout; escalating",
			zap.Error(err),
			zap.String("transaction_id", tx.ID.String()),
		)
		s.markManualReview(ctx, tx.ID, actorID, "release failed: "+reason)
		return
	}
	if err := transition(ctx, s.store, s.audit, tx.ID, domain.TxStatusProcessing, domain.TxStatusFailed, actorID, "payout_failed", models.TransactionUpdate{Reason: &reason}); err != nil {
		zap.L().Error("failed to mark payout failed", zap.Error(err), zap.String("transaction_id", tx.ID.String()))
	}
	observability.IncrementPayoutTransition("failed")
}

func (s *PayoutService) requeue(ctx context.Context, id uuid.UUID, actorID *uuid.UUID, action string) {
	if err := transition(ctx, s.store, s.audit, id, domain.TxStatusProcessing, domain.TxStatusPending, actorID, action, models.TransactionUpdate{}); err != nil {
		zap.L().Error("failed to requeue payout", zap.Error(err), zap.String("transaction_id", id.String()))
	}
}

func (s *PayoutService) backToPendingOtp(ctx context.Context, id uuid.UUID, actorID *uuid.UUID, action string) {
	if err := transition(ctx, s.store, s.audit, id, domain.TxStatusProcessing, domain.TxStatusPendingOtp, actorID, action, models.TransactionUpdate{}); err != nil {
		zap.L().Error("failed to return payout to pending_otp", zap.Error(err), zap.String("transaction_id", id.String()))
	}
}

func (s *PayoutService) markManualReview(ctx context.Context, id uuid.UUID, actorID *uuid.UUID, reason string) {
	// The record may sit in processing (normal path) or pending_otp.
	for _, from := range []string{domain.TxStatusProcessing, domain.TxStatusPendingOtp} {
		err := transition(ctx, s.store, s.audit, id, from, domain.TxStatusManualReview, actorID, "manual_review_queued", models.TransactionUpdate{Reason: &reason})
		if err == nil {
			observability.IncrementManualReviewTransition("queued")
			return
		}
		if !errors.Is(err, models.ErrConflict) {
			zap.L().Error("failed to queue manual review", zap.Error(err), zap.String("transaction_id", id.String()))
			return
		}
	}
	zap.L().Error("manual review queue lost all CAS attempts", zap.String("transaction_id", id.String()))
}
