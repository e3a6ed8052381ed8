package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/emmanuel-nwafor/foremade-backend-sub000/internal/models"
)

const pgUniqueViolation = "23505"
const pgCheckViolation = "23514"

// Repository is the Postgres implementation of the service store contract.
// Status transitions and wallet mutations are single conditional UPDATEs, so
// the database row is the linearization point and no explicit locking is
// needed.
type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const transactionColumns = `id, user_id, type, status, amount_minor, currency, reference, gateway_kind,
	net_minor, transfer_code, payout_reference, reason, settled_at, created_at, updated_at`

func scanTransaction(row pgx.Row) (*models.Transaction, error) {
	tx := &models.Transaction{}
	err := row.Scan(
		&tx.ID, &tx.UserID, &tx.Type, &tx.Status, &tx.AmountMinor, &tx.Currency, &tx.Reference, &tx.GatewayKind,
		&tx.NetMinor, &tx.TransferCode, &tx.PayoutReference, &tx.Reason, &tx.SettledAt, &tx.CreatedAt, &tx.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("scan transaction: %w", err)
	}
	return tx, nil
}

func (r *Repository) CreateTransaction(ctx context.Context, tx *models.Transaction) error {
	query := `INSERT INTO transactions (id, user_id, type, status, amount_minor, currency, reference, gateway_kind, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := r.db.Exec(ctx, query,
		tx.ID, tx.UserID, tx.Type, tx.Status, tx.AmountMinor, tx.Currency, tx.Reference, tx.GatewayKind,
		tx.CreatedAt, tx.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return models.ErrDuplicateReference
		}
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	return nil
}

func (r *Repository) GetTransaction(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`
	return scanTransaction(r.db.QueryRow(ctx, query, id))
}

func (r *Repository) GetTransactionByReference(ctx context.Context, reference string) (*models.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE reference = $1`
	return scanTransaction(r.db.QueryRow(ctx, query, reference))
}

func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, expected, next string, update models.TransactionUpdate) (bool, error) {
	query := `UPDATE transactions
		SET status = $3,
			transfer_code = COALESCE($4, transfer_code),
			payout_reference = COALESCE($5, payout_reference),
			reason = COALESCE($6, reason),
			net_minor = COALESCE($7, net_minor),
			updated_at = NOW()
		WHERE id = $1 AND status = $2`
	tag, err := r.db.Exec(ctx, query, id, expected, next,
		update.TransferCode, update.PayoutReference, update.Reason, update.NetMinor)
	if err != nil {
		return false, fmt.Errorf("failed to update transaction status: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *Repository) MarkSettled(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	query := `UPDATE transactions SET settled_at = $2, updated_at = NOW() WHERE id = $1 AND settled_at IS NULL`
	tag, err := r.db.Exec(ctx, query, id, at)
	if err != nil {
		return false, fmt.Errorf("failed to mark transaction settled: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *Repository) listTransactions(ctx context.Context, query string, args ...any) ([]models.Transaction, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var out []models.Transaction
	for rows.Next() {
		var tx models.Transaction
		if err := rows.Scan(
			&tx.ID, &tx.UserID, &tx.Type, &tx.Status, &tx.AmountMinor, &tx.Currency, &tx.Reference, &tx.GatewayKind,
			&tx.NetMinor, &tx.TransferCode, &tx.PayoutReference, &tx.Reason, &tx.SettledAt, &tx.CreatedAt, &tx.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

func (r *Repository) ListTransactionsByUser(ctx context.Context, userID uuid.UUID, limit, offset int32) ([]models.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions
		WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	return r.listTransactions(ctx, query, userID, limit, offset)
}

func (r *Repository) ListTransactionsByStatus(ctx context.Context, status string, limit, offset int32) ([]models.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions
		WHERE status = $1 ORDER BY created_at ASC LIMIT $2 OFFSET $3`
	return r.listTransactions(ctx, query, status, limit, offset)
}

func (r *Repository) ListStaleByStatus(ctx context.Context, status string, cutoff time.Time, limit int32) ([]models.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions
		WHERE status = $1 AND updated_at < $2 ORDER BY updated_at ASC LIMIT $3`
	return r.listTransactions(ctx, query, status, cutoff, limit)
}

func (r *Repository) CountByStatus(ctx context.Context, status string) (int64, error) {
	var count int64
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM transactions WHERE status = $1`, status).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count transactions: %w", err)
	}
	return count, nil
}

func (r *Repository) GetWallet(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	wallet := &models.Wallet{}
	query := `SELECT user_id, available_minor, pending_minor, version, updated_at FROM wallets WHERE user_id = $1`
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&wallet.UserID, &wallet.AvailableMinor, &wallet.PendingMinor, &wallet.Version, &wallet.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}
	return wallet, nil
}

func (r *Repository) CreateWallet(ctx context.Context, wallet *models.Wallet) error {
	query := `INSERT INTO wallets (user_id, available_minor, pending_minor, version, updated_at)
		VALUES ($1, $2, $3, $4, NOW())`
	_, err := r.db.Exec(ctx, query, wallet.UserID, wallet.AvailableMinor, wallet.PendingMinor, wallet.Version)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return models.ErrConflict
		}
		return fmt.Errorf("failed to create wallet: %w", err)
	}
	return nil
}

func (r *Repository) ApplyBalanceChange(ctx context.Context, userID uuid.UUID, version int64, availableDelta, pendingDelta int64) (bool, error) {
	query := `UPDATE wallets
		SET available_minor = available_minor + $3,
			pending_minor = pending_minor + $4,
			version = version + 1,
			updated_at = NOW()
		WHERE user_id = $1 AND version = $2
			AND available_minor + $3 >= 0
			AND pending_minor + $4 >= 0`
	tag, err := r.db.Exec(ctx, query, userID, version, availableDelta, pendingDelta)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgCheckViolation {
			return false, models.ErrInsufficientFunds
		}
		return false, fmt.Errorf("failed to apply balance change: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}

	// Zero rows: the version moved, the balance guard refused, or the wallet
	// does not exist. Re-read to report which.
	wallet, err := r.GetWallet(ctx, userID)
	if err != nil {
		return false, err
	}
	if wallet.Version != version {
		return false, nil
	}
	return false, models.ErrInsufficientFunds
}

func (r *Repository) CountNegativeWallets(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM wallets WHERE available_minor < 0 OR pending_minor < 0`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count negative wallets: %w", err)
	}
	return count, nil
}

func (r *Repository) GetPayoutProfile(ctx context.Context, userID uuid.UUID) (*models.PayoutProfile, error) {
	profile := &models.PayoutProfile{}
	query := `SELECT user_id, gateway_kind, bank_code, account_number, account_name, recipient_code, created_at, updated_at
		FROM payout_profiles WHERE user_id = $1`
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&profile.UserID, &profile.GatewayKind, &profile.BankCode, &profile.AccountNumber,
		&profile.AccountName, &profile.RecipientCode, &profile.CreatedAt, &profile.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get payout profile: %w", err)
	}
	return profile, nil
}

func (r *Repository) SavePayoutProfile(ctx context.Context, profile *models.PayoutProfile) error {
	query := `INSERT INTO payout_profiles (user_id, gateway_kind, bank_code, account_number, account_name, recipient_code, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			gateway_kind = EXCLUDED.gateway_kind,
			bank_code = EXCLUDED.bank_code,
			account_number = EXCLUDED.account_number,
			account_name = EXCLUDED.account_name,
			recipient_code = EXCLUDED.recipient_code,
			updated_at = NOW()`
	_, err := r.db.Exec(ctx, query,
		profile.UserID, profile.GatewayKind, profile.BankCode, profile.AccountNumber,
		profile.AccountName, profile.RecipientCode,
	)
	if err != nil {
		return fmt.Errorf("failed to save payout profile: %w", err)
	}
	return nil
}

func (r *Repository) AppendEntry(ctx context.Context, entry *models.LedgerEntry) error {
	query := `INSERT INTO ledger_entries (id, transaction_id, user_id, type, amount_minor, bucket, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.db.Exec(ctx, query,
		entry.ID, entry.TransactionID, entry.UserID, entry.Type, entry.AmountMinor,
		entry.Bucket, entry.Description, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append ledger entry: %w", err)
	}
	return nil
}

func (r *Repository) ListEntriesByUser(ctx context.Context, userID uuid.UUID, limit, offset int32) ([]models.LedgerEntry, error) {
	query := `SELECT id, transaction_id, user_id, type, amount_minor, bucket, description, created_at
		FROM ledger_entries WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	rows, err := r.db.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []models.LedgerEntry
	for rows.Next() {
		var e models.LedgerEntry
		if err := rows.Scan(&e.ID, &e.TransactionID, &e.UserID, &e.Type, &e.AmountMinor, &e.Bucket, &e.Description, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *Repository) AppendAudit(ctx context.Context, rec *models.AuditRecord) error {
	query := `INSERT INTO audit_log (entity_type, entity_id, actor_id, action, prev_state, next_state, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.db.Exec(ctx, query,
		rec.EntityType, rec.EntityID, rec.ActorID, rec.Action, rec.PrevState, rec.NextState, rec.Metadata, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append audit record: %w", err)
	}
	return nil
}

func (r *Repository) IsAdmin(ctx context.Context, userID uuid.UUID) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM admin_roles WHERE user_id = $1 AND role = 'admin')`
	if err := r.db.QueryRow(ctx, query, userID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check admin role: %w", err)
	}
	return exists, nil
}

func (r *Repository) GrantRole(ctx context.Context, userID uuid.UUID, role string) error {
	query := `INSERT INTO admin_roles (user_id, role) VALUES ($1, $2) ON CONFLICT DO NOTHING`
	if _, err := r.db.Exec(ctx, query, userID, role); err != nil {
		return fmt.Errorf("failed to grant role: %w", err)
	}
	return nil
}
