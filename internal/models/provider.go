package models

import (
	"strings"

	"github.com/shopspring/decimal"
)

func init() {
	// Prices are rendered as JSON numbers (0.1), not quoted strings.
	decimal.MarshalJSONWithoutQuotes = true
}

type MediaType string

const (
	MediaTypeImage MediaType = "image"
	MediaTypeVideo MediaType = "video"
)

// ParseMediaType accepts only the two supported media types, case-sensitively.
func ParseMediaType(s string) (MediaType, bool) {
	switch MediaType(s) {
	case MediaTypeImage, MediaTypeVideo:
		return MediaType(s), true
	}
	return "", false
}

// Extension is the object-store file extension used for the media type.
func (m MediaType) Extension() string {
	if m == MediaTypeVideo {
		return "mp4"
	}
	return "png"
}

// Provider describes one priced generation capability.
type Provider struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Type        MediaType       `json:"type"`
	Price       decimal.Decimal `json:"price"`
	Description string          `json:"description"`
	Model       string          `json:"model"`
}

// NormalizeWallet lowercases a wallet address for storage and comparison.
func NormalizeWallet(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}
