package models

import (
	"time"

	"github.com/google/uuid"
)

// Transaction is one record per money movement attempt. Records are never
// deleted; terminal statuses are final.
type Transaction struct {
	ID              uuid.UUID  `json:"id"`
	UserID          uuid.UUID  `json:"user_id"`
	Type            string     `json:"type"`   // "sale" or "withdrawal"
	Status          string     `json:"status"` // see domain constants
	AmountMinor     int64      `json:"amount_minor"`
	Currency        string     `json:"currency"`
	Reference       string     `json:"reference"` // globally unique per attempt
	GatewayKind     string     `json:"gateway_kind"`
	NetMinor        *int64     `json:"net_minor,omitempty"` // credited amount after platform fees
	TransferCode    *string    `json:"transfer_code,omitempty"`    // bank-transfer OTP handle
	PayoutReference *string    `json:"payout_reference,omitempty"` // gateway settlement id
	Reason          *string    `json:"reason,omitempty"`
	SettledAt       *time.Time `json:"settled_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// TransactionUpdate carries the optional fields a status transition may set.
type TransactionUpdate struct {
	TransferCode    *string
	PayoutReference *string
	Reason          *string
	NetMinor        *int64
}

// Wallet is the per-seller balance record. Balances are minor units and the
// version field linearizes all mutations.
type Wallet struct {
	UserID         uuid.UUID `json:"user_id"`
	AvailableMinor int64     `json:"available_minor"`
	PendingMinor   int64     `json:"pending_minor"`
	Version        int64     `json:"-"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// PayoutProfile is the gateway-specific payee identity for a seller.
type PayoutProfile struct {
	UserID        uuid.UUID `json:"user_id"`
	GatewayKind   string    `json:"gateway_kind"`
	BankCode      string    `json:"bank_code,omitempty"`
	AccountNumber string    `json:"account_number,omitempty"`
	AccountName   string    `json:"account_name,omitempty"`
	// RecipientCode is the bank gateway transfer-recipient handle, or the
	// card gateway connected-account id. Set by onboarding.
	RecipientCode string    `json:"recipient_code,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// LedgerEntry is an append-only, seller-visible history record derived from
// completed transactions. Read-model convenience, not authoritative.
type LedgerEntry struct {
	ID            uuid.UUID `json:"id"`
	TransactionID uuid.UUID `json:"transaction_id"`
	UserID        uuid.UUID `json:"user_id"`
	Type          string    `json:"type"`
	AmountMinor   int64     `json:"amount_minor"`
	Bucket        string    `json:"bucket"`
	Description   string    `json:"description"`
	CreatedAt     time.Time `json:"created_at"`
}

// AuditRecord is one immutable row of the state-transition audit trail.
type AuditRecord struct {
	EntityType string
	EntityID   uuid.UUID
	ActorID    *uuid.UUID
	Action     string
	PrevState  string
	NextState  string
	Metadata   []byte
	CreatedAt  time.Time
}
