package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/emmanuel-nwafor/foremade-backend-sub000/internal/domain"
	"github.com/emmanuel-nwafor/foremade-backend-sub000/internal/models"
)

var transactionTransitions = map[string]map[string]struct{}{
	domain.TxStatusInitiated: {
		domain.TxStatusProcessing: {},
		domain.TxStatusFailed:     {},
	},
	domain.TxStatusPending: {
		domain.TxStatusProcessing: {},
	},
	domain.TxStatusProcessing: {
		domain.TxStatusPending:      {},
		domain.TxStatusPendingOtp:   {},
		domain.TxStatusManualReview: {},
		domain.TxStatusCompleted:    {},
		domain.TxStatusFailed:       {},
		domain.TxStatusRejected:     {},
	},
	domain.TxStatusPendingOtp: {
		domain.TxStatusProcessing:   {},
		domain.TxStatusManualReview: {},
	},
	domain.TxStatusManualReview: {
		domain.TxStatusCompleted: {},
		domain.TxStatusFailed:    {},
	},
	domain.TxStatusCompleted: {},
	domain.TxStatusFailed:    {},
	domain.TxStatusRejected:  {},
}

func canTransition(current, next string) bool {
	nextStates, ok := transactionTransitions[current]
	if !ok {
		return false
	}
	_, ok = nextStates[next]
	return ok
}

// transition applies a compare-and-set status change and records the audit
// trail. Returns models.ErrConflict when the transaction was not in the
// expected state at apply time, so duplicate callers degrade to no-ops.
func transition(ctx context.Context, store Store, audit *AuditService, id uuid.UUID, expected, next string, actorID *uuid.UUID, action string, update models.TransactionUpdate) error {
	if !canTransition(expected, next) {
		return fmt.Errorf("invalid transaction state transition: %s -> %s", expected, next)
	}

	applied, err := store.UpdateStatus(ctx, id, expected, next, update)
	if err != nil {
		return fmt.Errorf("update transaction state: %w", err)
	}
	if !applied {
		return fmt.Errorf("%w: expected %s", models.ErrConflict, expected)
	}

	audit.Write(ctx, "transaction", id, actorID, action, expected, next, nil)
	return nil
}
