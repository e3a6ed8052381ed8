package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/emmanuel-nwafor/foremade-backend-sub000/internal/models"
	"github.com/emmanuel-nwafor/foremade-backend-sub000/internal/service"
)

// WalletHandler exposes seller balances and transaction history.
type WalletHandler struct {
	walletSvc *service.WalletService
	store     service.Store
	currency  string
}

func NewWalletHandler(walletSvc *service.WalletService, store service.Store, currency string) *WalletHandler {
	return &WalletHandler{walletSvc: walletSvc, store: store, currency: currency}
}

func (h *WalletHandler) authorizeSubject(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	actorID, isAdmin, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return uuid.Nil, false
	}

	subjectID, err := uuid.Parse(chi.URLParam(r, "userId"))
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-user-id", "Invalid user ID")
		return uuid.Nil, false
	}
	if !isAdmin && subjectID != actorID {
		RespondError(w, r, http.StatusForbidden, "auth/insufficient-permissions", "insufficient permissions")
		return uuid.Nil, false
	}
	return subjectID, true
}

// GetWallet handles GET /v1/wallets/{userId}. Sellers with no wallet row
// yet see a zero balance, not a 404.
func (h *WalletHandler) GetWallet(w http.ResponseWriter, r *http.Request) {
	subjectID, ok := h.authorizeSubject(w, r)
	if !ok {
		return
	}

	wallet, err := h.walletSvc.GetWallet(r.Context(), subjectID)
	if err != nil {
		zap.L().Error("get wallet failed", zap.Error(err), zap.String("user_id", subjectID.String()))
		RespondError(w, r, http.StatusInternalServerError, "wallet/read-failed", "Failed to get wallet")
		return
	}

	RespondJSON(w, http.StatusOK, renderWallet(wallet, h.currency))
}

// ListTransactions handles GET /v1/wallets/{userId}/transactions.
func (h *WalletHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	subjectID, ok := h.authorizeSubject(w, r)
	if !ok {
		return
	}
	limit, offset, valid := pagination(r)
	if !valid {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-pagination", "limit must be positive and offset non-negative")
		return
	}

	items, err := h.store.ListTransactionsByUser(r.Context(), subjectID, limit, offset)
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			zap.L().Error("list transactions failed", zap.Error(err), zap.String("user_id", subjectID.String()))
			RespondError(w, r, http.StatusInternalServerError, "wallet/transactions-failed", "Failed to list transactions")
			return
		}
	}

	RespondJSON(w, http.StatusOK, map[string]any{
		"items":  renderTransactions(items),
		"limit":  limit,
		"offset": offset,
		"count":  len(items),
	})
}

// ListEntries handles GET /v1/wallets/{userId}/entries.
func (h *WalletHandler) ListEntries(w http.ResponseWriter, r *http.Request) {
	subjectID, ok := h.authorizeSubject(w, r)
	if !ok {
		return
	}
	limit, offset, valid := pagination(r)
	if !valid {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-pagination", "limit must be positive and offset non-negative")
		return
	}

	items, err := h.store.ListEntriesByUser(r.Context(), subjectID, limit, offset)
	if err != nil {
		zap.L().Error("list ledger entries failed", zap.Error(err), zap.String("user_id", subjectID.String()))
		RespondError(w, r, http.StatusInternalServerError, "wallet/entries-failed", "Failed to list ledger entries")
		return
	}

	RespondJSON(w, http.StatusOK, map[string]any{
		"items":  items,
		"limit":  limit,
		"offset": offset,
		"count":  len(items),
	})
}
