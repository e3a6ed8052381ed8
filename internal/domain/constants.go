package domain

const (
	TxTypeSale       = "sale"
	TxTypeWithdrawal = "withdrawal"

	// Transaction statuses. "processing" is the persisted form of a claimed
	// transition: whichever caller wins the compare-and-set owns the record
	// until it lands in a follow-up state.
	TxStatusInitiated    = "initiated"
	TxStatusPending      = "pending"
	TxStatusProcessing   = "processing"
	TxStatusPendingOtp   = "pending_otp"
	TxStatusManualReview = "manual_review"
	TxStatusCompleted    = "completed"
	TxStatusFailed       = "failed"
	TxStatusRejected     = "rejected"

	GatewayKindCard         = "card"
	GatewayKindBankTransfer = "bank_transfer"

	BucketAvailable = "available"
	BucketPending   = "pending"

	RoleAdmin = "admin"
)

// IsTerminalStatus reports whether a transaction may never change again.
func IsTerminalStatus(status string) bool {
	switch status {
	case TxStatusCompleted, TxStatusFailed, TxStatusRejected:
		return true
	default:
		return false
	}
}
