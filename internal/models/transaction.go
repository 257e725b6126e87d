package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const TransactionStatusCompleted = "completed"

type Transaction struct {
	TransactionID string          `json:"transactionId" db:"transaction_id"`
	WalletAddress string          `json:"walletAddress" db:"wallet_address"`
	Prompt        string          `json:"prompt" db:"prompt"`
	Type          MediaType       `json:"type" db:"media_type"`
	Provider      string          `json:"provider" db:"provider_id"`
	ProviderName  string          `json:"providerName" db:"provider_name"`
	Price         decimal.Decimal `json:"price" db:"price"`
	PaymentHash   string          `json:"paymentHash" db:"payment_hash"`
	MediaURL      string          `json:"mediaUrl" db:"media_url"`
	IsFavorite    bool            `json:"isFavorite" db:"is_favorite"`
	Status        string          `json:"status" db:"status"`
	CreatedAt     time.Time       `json:"createdAt" db:"created_at"`
}

// WalletStats is the derived per-wallet aggregate. It is best-effort and
// may lag the transactions table until the reconcile job runs.
type WalletStats struct {
	WalletAddress    string          `json:"walletAddress" db:"wallet_address"`
	TotalSpent       decimal.Decimal `json:"totalSpent" db:"total_spent"`
	TotalGenerations int64           `json:"totalGenerations" db:"total_generations"`
	LastGenerationAt *time.Time      `json:"lastGeneration" db:"last_generation_at"`
}
