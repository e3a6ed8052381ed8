package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/emmanuel-nwafor/foremade-backend-sub000/internal/models"
)

// TransactionStore is the durable transaction ledger. Status moves only via
// UpdateStatus, which applies the change iff the stored status equals
// expected — the compare-and-set that linearizes transitions per record.
type TransactionStore interface {
	CreateTransaction(ctx context.Context, tx *models.Transaction) error
	GetTransaction(ctx context.Context, id uuid.UUID) (*models.Transaction, error)
	GetTransactionByReference(ctx context.Context, reference string) (*models.Transaction, error)

	// UpdateStatus returns false (and no error) when the expected-status
	// precondition did not hold at apply time.
	UpdateStatus(ctx context.Context, id uuid.UUID, expected, next string, update models.TransactionUpdate) (bool, error)

	// MarkSettled sets settledAt iff it is unset. Returns false when the
	// transaction was already settled.
	MarkSettled(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)

	ListTransactionsByUser(ctx context.Context, userID uuid.UUID, limit, offset int32) ([]models.Transaction, error)
	ListTransactionsByStatus(ctx context.Context, status string, limit, offset int32) ([]models.Transaction, error)
	ListStaleByStatus(ctx context.Context, status string, cutoff time.Time, limit int32) ([]models.Transaction, error)
	CountByStatus(ctx context.Context, status string) (int64, error)
}

// WalletStore applies balance changes through a single optimistic
// compare-and-apply primitive keyed on the wallet version.
type WalletStore interface {
	GetWallet(ctx context.Context, userID uuid.UUID) (*models.Wallet, error)
	CreateWallet(ctx context.Context, wallet *models.Wallet) error

	// ApplyBalanceChange adds the deltas iff the stored version still equals
	// version and the resulting balances are non-negative. Returns false on
	// version conflict; models.ErrInsufficientFunds when a balance would go
	// negative.
	ApplyBalanceChange(ctx context.Context, userID uuid.UUID, version int64, availableDelta, pendingDelta int64) (bool, error)

	CountNegativeWallets(ctx context.Context) (int64, error)
}

// ProfileStore holds gateway-specific payee identities.
type ProfileStore interface {
	GetPayoutProfile(ctx context.Context, userID uuid.UUID) (*models.PayoutProfile, error)
	SavePayoutProfile(ctx context.Context, profile *models.PayoutProfile) error
}

// EntryStore appends seller-visible derived history records.
type EntryStore interface {
	AppendEntry(ctx context.Context, entry *models.LedgerEntry) error
	ListEntriesByUser(ctx context.Context, userID uuid.UUID, limit, offset int32) ([]models.LedgerEntry, error)
}

// AuditStore appends immutable state-transition records.
type AuditStore interface {
	AppendAudit(ctx context.Context, rec *models.AuditRecord) error
}

// RoleStore answers per-request authorization questions.
type RoleStore interface {
	IsAdmin(ctx context.Context, userID uuid.UUID) (bool, error)
	GrantRole(ctx context.Context, userID uuid.UUID, role string) error
}

// Store is the full data access contract required by services.
type Store interface {
	TransactionStore
	WalletStore
	ProfileStore
	EntryStore
	AuditStore
	RoleStore
}
