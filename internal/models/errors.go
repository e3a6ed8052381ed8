package models

import "errors"

var (
	// ErrValidation marks a malformed request. Never retried.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound marks an unknown transaction, wallet or seller.
	ErrNotFound = errors.New("not found")

	// ErrInsufficientFunds marks a balance precondition failure at apply time.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrConcurrentUpdate marks an optimistic-lock conflict that survived the
	// bounded retry budget.
	ErrConcurrentUpdate = errors.New("concurrent update conflict")

	// ErrConflict marks a lost status compare-and-set: the transaction is not
	// in the state the caller required. Duplicate admin clicks and redelivered
	// webhooks land here and must degrade to no-ops.
	ErrConflict = errors.New("transaction state conflict")

	// ErrDuplicateReference marks a reference uniqueness violation.
	ErrDuplicateReference = errors.New("duplicate reference")
)
