package models

type GenerateRequest struct {
	Prompt   string `json:"prompt" example:"a red fox in snow"`
	Type     string `json:"type" example:"image"`
	Provider string `json:"provider,omitempty" example:"nanobanana"`
	// Optional. Ignored when the payment facilitator reports the payer.
	WalletAddress string `json:"walletAddress,omitempty"`
}

type FavoriteRequest struct {
	WalletAddress string `json:"walletAddress" binding:"required"`
}
