// Package memory provides a mutex-guarded in-process store with the same
// compare-and-set semantics as the Postgres repository. It backs unit tests
// and local development without a database.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/emmanuel-nwafor/foremade-backend-sub000/internal/models"
)

type Store struct {
	mu           sync.Mutex
	transactions map[uuid.UUID]*models.Transaction
	byReference  map[string]uuid.UUID
	wallets      map[uuid.UUID]*models.Wallet
	profiles     map[uuid.UUID]*models.PayoutProfile
	entries      []models.LedgerEntry
	audits       []models.AuditRecord
	roles        map[uuid.UUID]map[string]struct{}
}

func NewStore() *Store {
	return &Store{
		transactions: make(map[uuid.UUID]*models.Transaction),
		byReference:  make(map[string]uuid.UUID),
		wallets:      make(map[uuid.UUID]*models.Wallet),
		profiles:     make(map[uuid.UUID]*models.PayoutProfile),
		roles:        make(map[uuid.UUID]map[string]struct{}),
	}
}

func cloneTransaction(tx *models.Transaction) *models.Transaction {
	cp := *tx
	cp.NetMinor = clonePtr(tx.NetMinor)
	cp.TransferCode = clonePtr(tx.TransferCode)
	cp.PayoutReference = clonePtr(tx.PayoutReference)
	cp.Reason = clonePtr(tx.Reason)
	cp.SettledAt = clonePtr(tx.SettledAt)
	return &cp
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func (s *Store) CreateTransaction(_ context.Context, tx *models.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byReference[tx.Reference]; exists {
		return models.ErrDuplicateReference
	}
	s.transactions[tx.ID] = cloneTransaction(tx)
	s.byReference[tx.Reference] = tx.ID
	return nil
}

func (s *Store) GetTransaction(_ context.Context, id uuid.UUID) (*models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.transactions[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return cloneTransaction(tx), nil
}

func (s *Store) GetTransactionByReference(_ context.Context, reference string) (*models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byReference[reference]
	if !ok {
		return nil, models.ErrNotFound
	}
	return cloneTransaction(s.transactions[id]), nil
}

func (s *Store) UpdateStatus(_ context.Context, id uuid.UUID, expected, next string, update models.TransactionUpdate) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.transactions[id]
	if !ok {
		return false, models.ErrNotFound
	}
	if tx.Status != expected {
		return false, nil
	}
	tx.Status = next
	if update.TransferCode != nil {
		tx.TransferCode = clonePtr(update.TransferCode)
	}
	if update.PayoutReference != nil {
		tx.PayoutReference = clonePtr(update.PayoutReference)
	}
	if update.Reason != nil {
		tx.Reason = clonePtr(update.Reason)
	}
	if update.NetMinor != nil {
		tx.NetMinor = clonePtr(update.NetMinor)
	}
	tx.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (s *Store) MarkSettled(_ context.Context, id uuid.UUID, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.transactions[id]
	if !ok {
		return false, models.ErrNotFound
	}
	if tx.SettledAt != nil {
		return false, nil
	}
	tx.SettledAt = &at
	tx.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (s *Store) listFiltered(match func(*models.Transaction) bool, less func(a, b *models.Transaction) bool, limit, offset int32) []models.Transaction {
	var all []*models.Transaction
	for _, tx := range s.transactions {
		if match(tx) {
			all = append(all, tx)
		}
	}
	sort.Slice(all, func(i, j int) bool { return less(all[i], all[j]) })

	var out []models.Transaction
	for i := int(offset); i < len(all) && len(out) < int(limit); i++ {
		out = append(out, *cloneTransaction(all[i]))
	}
	return out
}

func (s *Store) ListTransactionsByUser(_ context.Context, userID uuid.UUID, limit, offset int32) ([]models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listFiltered(
		func(tx *models.Transaction) bool { return tx.UserID == userID },
		func(a, b *models.Transaction) bool { return a.CreatedAt.After(b.CreatedAt) },
		limit, offset,
	), nil
}

func (s *Store) ListTransactionsByStatus(_ context.Context, status string, limit, offset int32) ([]models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listFiltered(
		func(tx *models.Transaction) bool { return tx.Status == status },
		func(a, b *models.Transaction) bool { return a.CreatedAt.Before(b.CreatedAt) },
		limit, offset,
	), nil
}

func (s *Store) ListStaleByStatus(_ context.Context, status string, cutoff time.Time, limit int32) ([]models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listFiltered(
		func(tx *models.Transaction) bool { return tx.Status == status && tx.UpdatedAt.Before(cutoff) },
		func(a, b *models.Transaction) bool { return a.UpdatedAt.Before(b.UpdatedAt) },
		limit, 0,
	), nil
}

func (s *Store) CountByStatus(_ context.Context, status string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int64
	for _, tx := range s.transactions {
		if tx.Status == status {
			count++
		}
	}
	return count, nil
}

func (s *Store) GetWallet(_ context.Context, userID uuid.UUID) (*models.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.wallets[userID]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *w
	return &cp, nil
}

func (s *Store) CreateWallet(_ context.Context, wallet *models.Wallet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.wallets[wallet.UserID]; exists {
		return models.ErrConflict
	}
	cp := *wallet
	s.wallets[wallet.UserID] = &cp
	return nil
}

func (s *Store) ApplyBalanceChange(_ context.Context, userID uuid.UUID, version int64, availableDelta, pendingDelta int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.wallets[userID]
	if !ok {
		return false, models.ErrNotFound
	}
	if w.Version != version {
		return false, nil
	}
	if w.AvailableMinor+availableDelta < 0 || w.PendingMinor+pendingDelta < 0 {
		return false, models.ErrInsufficientFunds
	}
	w.AvailableMinor += availableDelta
	w.PendingMinor += pendingDelta
	w.Version++
	w.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (s *Store) CountNegativeWallets(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int64
	for _, w := range s.wallets {
		if w.AvailableMinor < 0 || w.PendingMinor < 0 {
			count++
		}
	}
	return count, nil
}

func (s *Store) GetPayoutProfile(_ context.Context, userID uuid.UUID) (*models.PayoutProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[userID]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *Store) SavePayoutProfile(_ context.Context, profile *models.PayoutProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *profile
	s.profiles[profile.UserID] = &cp
	return nil
}

func (s *Store) AppendEntry(_ context.Context, entry *models.LedgerEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, *entry)
	return nil
}

func (s *Store) ListEntriesByUser(_ context.Context, userID uuid.UUID, limit, offset int32) ([]models.LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var matched []models.LedgerEntry
	for _, e := range s.entries {
		if e.UserID == userID {
			matched = append(matched, e)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })

	var out []models.LedgerEntry
	for i := int(offset); i < len(matched) && len(out) < int(limit); i++ {
		out = append(out, matched[i])
	}
	return out, nil
}

func (s *Store) AppendAudit(_ context.Context, rec *models.AuditRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audits = append(s.audits, *rec)
	return nil
}

// Audits returns a copy of the audit trail for assertions.
func (s *Store) Audits() []models.AuditRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.AuditRecord, len(s.audits))
	copy(out, s.audits)
	return out
}

func (s *Store) IsAdmin(_ context.Context, userID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.roles[userID]["admin"]
	return ok, nil
}

func (s *Store) GrantRole(_ context.Context, userID uuid.UUID, role string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.roles[userID] == nil {
		s.roles[userID] = make(map[string]struct{})
	}
	s.roles[userID][role] = struct{}{}
	return nil
}
