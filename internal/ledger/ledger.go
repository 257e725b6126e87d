// Package ledger records completed generations and per-wallet aggregates.
//
// Two implementations share one contract: SQLLedger (Postgres or SQLite via
// sqlx) and MemoryLedger for processes without a database. Wallet addresses
// are normalized to lowercase before they are stored or compared.
package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"ultrapay-backend/internal/models"
)

const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 100
	maxPaymentHashLen   = 100
)

var (
	// ErrNotFound covers both missing transactions and wallet mismatches.
	ErrNotFound             = errors.New("transaction not found")
	ErrDuplicateTransaction = errors.New("duplicate transaction id")
	ErrUnavailable          = errors.New("ledger unavailable")
)

type Ledger interface {
	Record(ctx context.Context, tx models.Transaction) error
	Get(ctx context.Context, transactionID string) (*models.Transaction, error)
	ListByWallet(ctx context.Context, wallet string, limit int) ([]models.Transaction, error)
	ToggleFavorite(ctx context.Context, transactionID, wallet string) (bool, error)
	IncrementWallet(ctx context.Context, wallet string, amount decimal.Decimal, at time.Time) error
	WalletStats(ctx context.Context, wallet string) (*models.WalletStats, error)
	RecomputeWalletStats(ctx context.Context) (int, error)
	Ping(ctx context.Context) error
	Close() error
	Name() string
}

// ClampLimit applies the default and maximum history page size.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		return MaxHistoryLimit
	}
	return limit
}

// TruncatePaymentHash bounds an opaque settlement token for storage.
func TruncatePaymentHash(token string) string {
	if len(token) <= maxPaymentHashLen {
		return token
	}
	return token[:maxPaymentHashLen]
}

// normalize prepares a transaction for storage.
func normalize(tx models.Transaction) models.Transaction {
	tx.WalletAddress = models.NormalizeWallet(tx.WalletAddress)
	tx.PaymentHash = TruncatePaymentHash(tx.PaymentHash)
	if tx.Status == "" {
		tx.Status = models.TransactionStatusCompleted
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now()
	}
	tx.CreatedAt = tx.CreatedAt.UTC().Truncate(time.Microsecond)
	return tx
}

func emptyStats(wallet string) *models.WalletStats {
	return &models.WalletStats{
		WalletAddress: wallet,
		TotalSpent:    decimal.Zero,
	}
}
