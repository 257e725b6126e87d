package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

type GenerateResponse struct {
	Success       bool            `json:"success"`
	TransactionID string          `json:"transactionId"`
	MediaURL      string          `json:"mediaUrl"`
	Type          MediaType       `json:"type"`
	Provider      string          `json:"provider"`
	ProviderName  string          `json:"providerName"`
	Price         decimal.Decimal `json:"price"`
}

type ProvidersResponse struct {
	Providers []Provider `json:"providers"`
}

type PriceRange struct {
	Min       *decimal.Decimal `json:"min"`
	Max       *decimal.Decimal `json:"max"`
	Providers []Provider       `json:"providers"`
}

type PricingResponse struct {
	Currency  string                     `json:"currency"`
	Providers map[string]decimal.Decimal `json:"providers"`
	ByType    map[MediaType]PriceRange   `json:"byType"`
}

type TransactionSummary struct {
	TransactionID string          `json:"transactionId"`
	Prompt        string          `json:"prompt"`
	Type          MediaType       `json:"type"`
	Provider      string          `json:"provider"`
	ProviderName  string          `json:"providerName"`
	Price         decimal.Decimal `json:"price"`
	MediaURL      string          `json:"mediaUrl"`
	IsFavorite    bool            `json:"isFavorite"`
	CreatedAt     time.Time       `json:"createdAt"`
}

func NewTransactionSummary(tx Transaction) TransactionSummary {
	return TransactionSummary{
		TransactionID: tx.TransactionID,
		Prompt:        tx.Prompt,
		Type:          tx.Type,
		Provider:      tx.Provider,
		ProviderName:  tx.ProviderName,
		Price:         tx.Price,
		MediaURL:      tx.MediaURL,
		IsFavorite:    tx.IsFavorite,
		CreatedAt:     tx.CreatedAt,
	}
}

type HistoryResponse struct {
	Success       bool                 `json:"success"`
	WalletAddress string               `json:"walletAddress"`
	Count         int                  `json:"count"`
	Transactions  []TransactionSummary `json:"transactions"`
}

type FavoriteResponse struct {
	Success       bool   `json:"success"`
	TransactionID string `json:"transactionId"`
	IsFavorite    bool   `json:"isFavorite"`
}

type StatsResponse struct {
	Success          bool            `json:"success"`
	WalletAddress    string          `json:"walletAddress"`
	TotalSpent       decimal.Decimal `json:"totalSpent"`
	TotalGenerations int64           `json:"totalGenerations"`
	LastGeneration   *time.Time      `json:"lastGeneration"`
}

type HealthResponse struct {
	Status    string    `json:"status"`
	Service   string    `json:"service"`
	Timestamp time.Time `json:"timestamp"`
}
