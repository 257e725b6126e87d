package ledger

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"ultrapay-backend/internal/models"
)

// MemoryLedger keeps everything in process memory. Contents are lost on
// restart.
type MemoryLedger struct {
	mu           sync.RWMutex
	transactions map[string]models.Transaction
	byWallet     map[string][]string
	stats        map[string]models.WalletStats
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		transactions: make(map[string]models.Transaction),
		byWallet:     make(map[string][]string),
		stats:        make(map[string]models.WalletStats),
	}
}

func (m *MemoryLedger) Name() string {
	return "memory"
}

func (m *MemoryLedger) Record(_ context.Context, tx models.Transaction) error {
	if tx.TransactionID == "" {
		return fmt.Errorf("transaction id is required")
	}
	tx = normalize(tx)

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.transactions[tx.TransactionID]; exists {
		return ErrDuplicateTransaction
	}
	m.transactions[tx.TransactionID] = tx
	if tx.WalletAddress != "" {
		m.byWallet[tx.WalletAddress] = append(m.byWallet[tx.WalletAddress], tx.TransactionID)
	}
	return nil
}

func (m *MemoryLedger) Get(_ context.Context, transactionID string) (*models.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tx, ok := m.transactions[transactionID]
	if !ok {
		return nil, ErrNotFound
	}
	return &tx, nil
}

func (m *MemoryLedger) ListByWallet(_ context.Context, wallet string, limit int) ([]models.Transaction, error) {
	wallet = models.NormalizeWallet(wallet)
	limit = ClampLimit(limit)

	m.mu.RLock()
	ids := m.byWallet[wallet]
	out := make([]models.Transaction, 0, len(ids))
	for _, id := range ids {
		out = append(out, m.transactions[id])
	}
	m.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryLedger) ToggleFavorite(_ context.Context, transactionID, wallet string) (bool, error) {
	wallet = models.NormalizeWallet(wallet)

	m.mu.Lock()
	defer m.mu.Unlock()

	tx, ok := m.transactions[transactionID]
	if !ok || tx.WalletAddress == "" || tx.WalletAddress != wallet {
		return false, ErrNotFound
	}
	tx.IsFavorite = !tx.IsFavorite
	m.transactions[transactionID] = tx
	return tx.IsFavorite, nil
}

func (m *MemoryLedger) IncrementWallet(_ context.Context, wallet string, amount decimal.Decimal, at time.Time) error {
	wallet = models.NormalizeWallet(wallet)
	if wallet == "" {
		return nil
	}
	at = at.UTC().Truncate(time.Microsecond)

	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.stats[wallet]
	if !ok {
		s = *emptyStats(wallet)
	}
	s.TotalSpent = s.TotalSpent.Add(amount)
	s.TotalGenerations++
	if s.LastGenerationAt == nil || at.After(*s.LastGenerationAt) {
		s.LastGenerationAt = &at
	}
	m.stats[wallet] = s
	return nil
}

func (m *MemoryLedger) WalletStats(_ context.Context, wallet string) (*models.WalletStats, error) {
	wallet = models.NormalizeWallet(wallet)

	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.stats[wallet]
	if !ok {
		return emptyStats(wallet), nil
	}
	return &s, nil
}

func (m *MemoryLedger) RecomputeWalletStats(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := make(map[string]models.WalletStats, len(m.byWallet))
	for wallet, ids := range m.byWallet {
		s := *emptyStats(wallet)
		for _, id := range ids {
			tx := m.transactions[id]
			s.TotalSpent = s.TotalSpent.Add(tx.Price)
			s.TotalGenerations++
			if s.LastGenerationAt == nil || tx.CreatedAt.After(*s.LastGenerationAt) {
				created := tx.CreatedAt
				s.LastGenerationAt = &created
			}
		}
		stats[wallet] = s
	}
	m.stats = stats
	return len(stats), nil
}

func (m *MemoryLedger) Ping(context.Context) error {
	return nil
}

func (m *MemoryLedger) Close() error {
	return nil
}
