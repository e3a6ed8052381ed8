package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/emmanuel-nwafor/foremade-backend-sub000/internal/models"
	"github.com/emmanuel-nwafor/foremade-backend-sub000/internal/service"
)

// SaleHandler handles the checkout intake endpoints.
type SaleHandler struct {
	intakeSvc *service.IntakeService
	currency  string
}

func NewSaleHandler(intakeSvc *service.IntakeService, currency string) *SaleHandler {
	return &SaleHandler{intakeSvc: intakeSvc, currency: currency}
}

// CreateSaleRequest represents the request body for recording a checkout.
type CreateSaleRequest struct {
	SellerID    string `json:"seller_id"`
	Reference   string `json:"reference"`
	AmountMinor int64  `json:"amount_minor"`
	Currency    string `json:"currency"`
	GatewayKind string `json:"gateway_kind"`
}

// CreateSale handles POST /v1/sales. It records the checkout intent; the
// gateway webhook later completes it.
func (h *SaleHandler) CreateSale(w http.ResponseWriter, r *http.Request) {
	var req CreateSaleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}

	sellerID, err := uuid.Parse(req.SellerID)
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-seller-id", "Invalid seller_id")
		return
	}
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = h.currency
	}

	sale, err := h.intakeSvc.InitiateSale(r.Context(), service.InitiateSaleRequest{
		SellerID:    sellerID,
		Reference:   req.Reference,
		AmountMinor: req.AmountMinor,
		Currency:    currency,
		GatewayKind: req.GatewayKind,
	})
	if err != nil {
		switch {
		case errors.Is(err, models.ErrValidation):
			RespondError(w, r, http.StatusBadRequest, "request/invalid-sale", err.Error())
		case errors.Is(err, models.ErrDuplicateReference):
			RespondError(w, r, http.StatusConflict, "sale/reference-conflict", "reference bound to a different attempt")
		default:
			if status, problemType, message, ok := mapDBError(err); ok {
				RespondError(w, r, status, problemType, message)
				return
			}
			zap.L().Error("create sale failed", zap.Error(err))
			RespondError(w, r, http.StatusInternalServerError, "sale/create-failed", "Failed to record sale")
		}
		return
	}

	RespondJSON(w, http.StatusCreated, renderTransaction(sale))
}

// SettleSale handles POST /v1/sales/{reference}/settle (admin only). It
// releases a completed sale's held proceeds to the seller's available
// balance once the buyer-protection window has passed.
func (h *SaleHandler) SettleSale(w http.ResponseWriter, r *http.Request) {
	actorID, _, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return
	}

	reference := chi.URLParam(r, "reference")
	if reference == "" {
		RespondError(w, r, http.StatusBadRequest, "request/missing-reference", "reference is required")
		return
	}

	sale, err := h.intakeSvc.SettleSale(r.Context(), reference, &actorID)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrNotFound):
			RespondError(w, r, http.StatusNotFound, "sale/not-found", "Sale not found")
		case errors.Is(err, service.ErrSaleNotSettleable):
			RespondError(w, r, http.StatusConflict, "sale/not-settleable", "Sale is not in a settleable state")
		case errors.Is(err, service.ErrAlreadySettled):
			RespondError(w, r, http.StatusConflict, "sale/already-settled", "Sale already settled")
		default:
			zap.L().Error("settle sale failed", zap.Error(err), zap.String("reference", reference))
			RespondError(w, r, http.StatusInternalServerError, "sale/settle-failed", "Failed to settle sale")
		}
		return
	}

	RespondJSON(w, http.StatusOK, renderTransaction(sale))
}
