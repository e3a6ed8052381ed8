package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/emmanuel-nwafor/foremade-backend-sub000/internal/gateway"
	"github.com/emmanuel-nwafor/foremade-backend-sub000/internal/models"
	"github.com/emmanuel-nwafor/foremade-backend-sub000/internal/service"
)

// PayoutHandler handles HTTP requests for the withdrawal workflow.
type PayoutHandler struct {
	payoutSvc *service.PayoutService
}

// NewPayoutHandler creates a new PayoutHandler instance.
func NewPayoutHandler(payoutSvc *service.PayoutService) *PayoutHandler {
	return &PayoutHandler{payoutSvc: payoutSvc}
}

// CreatePayoutRequest represents the request body for a withdrawal request.
type CreatePayoutRequest struct {
	AmountMinor int64  `json:"amount_minor"`
	Reference   string `json:"reference"`
}

// CreatePayout handles POST /v1/payouts. The seller requests a withdrawal
// of their available balance; the amount is held until an admin decides.
func (h *PayoutHandler) CreatePayout(w http.ResponseWriter, r *http.Request) {
	actorID, _, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return
	}

	var req CreatePayoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}
	if req.Reference == "" {
		req.Reference = r.Header.Get("Idempotency-Key")
	}

	payout, err := h.payoutSvc.RequestPayout(r.Context(), service.RequestPayoutRequest{
		SellerID:    actorID,
		AmountMinor: req.AmountMinor,
		Reference:   req.Reference,
	})
	if err != nil {
		switch {
		case errors.Is(err, models.ErrValidation):
			RespondError(w, r, http.StatusBadRequest, "request/invalid-payout", err.Error())
		case errors.Is(err, models.ErrInsufficientFunds):
			RespondError(w, r, http.StatusBadRequest, "payout/insufficient-funds", "Insufficient available balance")
		case errors.Is(err, models.ErrNotFound):
			RespondError(w, r, http.StatusConflict, "payout/profile-missing", "Seller has no payout profile")
		case errors.Is(err, models.ErrDuplicateReference):
			RespondError(w, r, http.StatusConflict, "payout/reference-conflict", "reference bound to a different attempt")
		case errors.Is(err, models.ErrConcurrentUpdate):
			RespondError(w, r, http.StatusConflict, "payout/concurrent-update", "Wallet busy, retry the request")
		default:
			if status, problemType, message, ok := mapDBError(err); ok {
				RespondError(w, r, status, problemType, message)
				return
			}
			zap.L().Error("create payout failed", zap.Error(err))
			RespondError(w, r, http.StatusInternalServerError, "payout/create-failed", "Failed to create payout")
		}
		return
	}

	RespondJSON(w, http.StatusAccepted, renderTransaction(payout))
}

// GetPayout handles GET /v1/payouts/{id}. Sellers see their own
// withdrawals; admins see all.
func (h *PayoutHandler) GetPayout(w http.ResponseWriter, r *http.Request) {
	actorID, isAdmin, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return
	}

	payoutID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-payout-id", "Invalid payout ID")
		return
	}

	payout, err := h.payoutSvc.GetTransaction(r.Context(), payoutID)
	if err != nil {
		if errors.Is(err, service.ErrPayoutNotFound) {
			RespondError(w, r, http.StatusNotFound, "payout/not-found", "Payout not found")
			return
		}
		zap.L().Error("get payout failed", zap.Error(err), zap.String("payout_id", payoutID.String()))
		RespondError(w, r, http.StatusInternalServerError, "payout/read-failed", "Failed to get payout")
		return
	}
	if !isAdmin && payout.UserID != actorID {
		RespondError(w, r, http.StatusForbidden, "auth/insufficient-permissions", "insufficient permissions")
		return
	}

	RespondJSON(w, http.StatusOK, renderTransaction(payout))
}

// ApprovePayout handles POST /v1/payouts/{id}/approve (admin only).
func (h *PayoutHandler) ApprovePayout(w http.ResponseWriter, r *http.Request) {
	actorID, _, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return
	}
	payoutID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-payout-id", "Invalid payout ID")
		return
	}

	payout, err := h.payoutSvc.Approve(r.Context(), payoutID, actorID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPayoutNotFound):
			RespondError(w, r, http.StatusNotFound, "payout/not-found", "Payout not found")
		case errors.Is(err, service.ErrPayoutNotPending):
			RespondError(w, r, http.StatusConflict, "payout/not-pending", "Payout is not pending approval")
		case errors.Is(err, models.ErrNotFound):
			RespondError(w, r, http.StatusConflict, "payout/profile-missing", "Seller has no payout profile")
		case errors.Is(err, gateway.ErrUnavailable):
			RespondError(w, r, http.StatusBadGateway, "payout/gateway-unavailable", "Gateway unavailable, payout returned to pending")
		case errors.Is(err, gateway.ErrRejected):
			RespondError(w, r, http.StatusUnprocessableEntity, "payout/gateway-rejected", err.Error())
		default:
			zap.L().Error("approve payout failed", zap.Error(err), zap.String("payout_id", payoutID.String()))
			RespondError(w, r, http.StatusInternalServerError, "payout/approve-failed", "Failed to approve payout")
		}
		return
	}

	RespondJSON(w, http.StatusOK, renderTransaction(payout))
}

type rejectPayoutRequest struct {
	Reason string `json:"reason"`
}

// RejectPayout handles POST /v1/payouts/{id}/reject (admin only).
func (h *PayoutHandler) RejectPayout(w http.ResponseWriter, r *http.Request) {
	actorID, _, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return
	}
	payoutID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-payout-id", "Invalid payout ID")
		return
	}

	var req rejectPayoutRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	payout, err := h.payoutSvc.Reject(r.Context(), payoutID, actorID, strings.TrimSpace(req.Reason))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPayoutNotFound):
			RespondError(w, r, http.StatusNotFound, "payout/not-found", "Payout not found")
		case errors.Is(err, service.ErrPayoutNotPending):
			RespondError(w, r, http.StatusConflict, "payout/not-pending", "Payout is not pending approval")
		default:
			zap.L().Error("reject payout failed", zap.Error(err), zap.String("payout_id", payoutID.String()))
			RespondError(w, r, http.StatusInternalServerError, "payout/reject-failed", "Failed to reject payout")
		}
		return
	}

	RespondJSON(w, http.StatusOK, renderTransaction(payout))
}

type finalizePayoutRequest struct {
	Otp string `json:"otp"`
}

// FinalizePayout handles POST /v1/payouts/{id}/finalize (admin only). It
// submits the one-time passcode for a bank transfer parked in pending_otp.
func (h *PayoutHandler) FinalizePayout(w http.ResponseWriter, r *http.Request) {
	actorID, _, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return
	}
	payoutID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-payout-id", "Invalid payout ID")
		return
	}

	var req finalizePayoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}

	payout, err := h.payoutSvc.ConfirmOtp(r.Context(), payoutID, strings.TrimSpace(req.Otp), &actorID)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrValidation):
			RespondError(w, r, http.StatusBadRequest, "request/missing-otp", err.Error())
		case errors.Is(err, service.ErrPayoutNotFound):
			RespondError(w, r, http.StatusNotFound, "payout/not-found", "Payout not found")
		case errors.Is(err, service.ErrPayoutNotAwaitingOtp):
			RespondError(w, r, http.StatusConflict, "payout/not-awaiting-otp", "Payout is not awaiting OTP")
		case errors.Is(err, gateway.ErrRejected):
			RespondError(w, r, http.StatusUnprocessableEntity, "payout/otp-rejected", "OTP rejected, payout remains awaiting OTP")
		case errors.Is(err, gateway.ErrUnavailable):
			RespondError(w, r, http.StatusBadGateway, "payout/gateway-unavailable", "Gateway unavailable, retry finalization")
		default:
			zap.L().Error("finalize payout failed", zap.Error(err), zap.String("payout_id", payoutID.String()))
			RespondError(w, r, http.StatusInternalServerError, "payout/finalize-failed", "Failed to finalize payout")
		}
		return
	}

	RespondJSON(w, http.StatusOK, renderTransaction(payout))
}

// ListManualReview handles GET /v1/payouts/manual-review (admin only).
func (h *PayoutHandler) ListManualReview(w http.ResponseWriter, r *http.Request) {
	limit, offset, ok := pagination(r)
	if !ok {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-pagination", "limit must be positive and offset non-negative")
		return
	}

	items, err := h.payoutSvc.ListManualReview(r.Context(), limit, offset)
	if err != nil {
		zap.L().Error("list manual review failed", zap.Error(err))
		RespondError(w, r, http.StatusInternalServerError, "payout/manual-review-list-failed", "Failed to list manual review queue")
		return
	}
	total, err := h.payoutSvc.ManualReviewQueueSize(r.Context())
	if err != nil {
		zap.L().Warn("failed to compute manual review queue size", zap.Error(err))
		total = int64(len(items))
	}
	RespondJSON(w, http.StatusOK, map[string]any{
		"items":       renderTransactions(items),
		"limit":       limit,
		"offset":      offset,
		"count":       len(items),
		"total_count": total,
	})
}

type resolveManualReviewRequest struct {
	Decision            string `json:"decision"`
	Reason              string `json:"reason"`
	RecreditAmountMinor *int64 `json:"recredit_amount_minor,omitempty"`
}

// ResolveManualReview handles POST /v1/payouts/{id}/resolve (admin only).
func (h *PayoutHandler) ResolveManualReview(w http.ResponseWriter, r *http.Request) {
	actorID, _, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return
	}
	payoutID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-payout-id", "Invalid payout ID")
		return
	}

	var req resolveManualReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}
	req.Decision = strings.TrimSpace(strings.ToLower(req.Decision))
	req.Reason = strings.TrimSpace(req.Reason)
	if req.Decision == "" {
		RespondError(w, r, http.StatusBadRequest, "request/missing-decision", "decision is required")
		return
	}
	if req.Reason == "" {
		RespondError(w, r, http.StatusBadRequest, "request/missing-reason", "reason is required")
		return
	}

	result, err := h.payoutSvc.ResolveManualReview(r.Context(), service.ResolveManualReviewRequest{
		TransactionID:       payoutID,
		Decision:            service.ManualReviewDecision(req.Decision),
		Reason:              req.Reason,
		ActorID:             &actorID,
		RecreditAmountMinor: req.RecreditAmountMinor,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPayoutNotFound):
			RespondError(w, r, http.StatusNotFound, "payout/not-found", "Transaction not found")
		case errors.Is(err, service.ErrNotInManualReview):
			RespondError(w, r, http.StatusConflict, "payout/not-in-manual-review", "Transaction is not in manual review")
		case errors.Is(err, service.ErrInvalidDecision):
			RespondError(w, r, http.StatusBadRequest, "payout/invalid-decision", "decision is not valid for this transaction type")
		case errors.Is(err, models.ErrValidation):
			RespondError(w, r, http.StatusBadRequest, "request/invalid-resolution", err.Error())
		default:
			zap.L().Error("resolve manual review failed", zap.Error(err), zap.String("payout_id", payoutID.String()))
			RespondError(w, r, http.StatusInternalServerError, "payout/manual-review-resolve-failed", "Failed to resolve manual review")
		}
		return
	}

	RespondJSON(w, http.StatusOK, renderTransaction(result))
}
