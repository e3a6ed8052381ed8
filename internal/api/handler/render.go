package handler

import (
	"github.com/emmanuel-nwafor/foremade-backend-sub000/internal/domain"
	"github.com/emmanuel-nwafor/foremade-backend-sub000/internal/models"
)

// transactionResponse augments the stored minor units with the
// business-currency display amounts.
type transactionResponse struct {
	*models.Transaction
	Amount string  `json:"amount"`
	Net    *string `json:"net,omitempty"`
}

func renderTransaction(tx *models.Transaction) transactionResponse {
	resp := transactionResponse{
		Transaction: tx,
		Amount:      domain.NewMoney(tx.AmountMinor, tx.Currency).String(),
	}
	if tx.NetMinor != nil {
		net := domain.NewMoney(*tx.NetMinor, tx.Currency).String()
		resp.Net = &net
	}
	return resp
}

func renderTransactions(items []models.Transaction) []transactionResponse {
	out := make([]transactionResponse, 0, len(items))
	for i := range items {
		out = append(out, renderTransaction(&items[i]))
	}
	return out
}

// walletResponse mirrors the wallet row plus display amounts in the
// platform currency.
type walletResponse struct {
	*models.Wallet
	Available string `json:"available"`
	Pending   string `json:"pending"`
	Currency  string `json:"currency"`
}

func renderWallet(w *models.Wallet, currency string) walletResponse {
	return walletResponse{
		Wallet:    w,
		Available: domain.NewMoney(w.AvailableMinor, currency).String(),
		Pending:   domain.NewMoney(w.PendingMinor, currency).String(),
		Currency:  currency,
	}
}
