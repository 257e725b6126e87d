package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"ultrapay-backend/internal/ledger"
	"ultrapay-backend/internal/models"
)

type HistoryHandler struct {
	ledger      ledger.Ledger
	development bool
	logger      zerolog.Logger
}

func NewHistoryHandler(l ledger.Ledger, development bool, logger zerolog.Logger) *HistoryHandler {
	return &HistoryHandler{
		ledger:      l,
		development: development,
		logger:      logger,
	}
}

// GetHistory godoc
// @Summary     Wallet history
// @Description Transactions for a wallet, newest first.
// @Tags        history
// @Produce     json
// @Param       walletAddress path string true "Wallet address"
// @Param       limit query int false "Page size (default 50, max 100)"
// @Success     200 {object} models.HistoryResponse
// @Failure     500 {object} models.ErrorResponse
// @Router      /history/{walletAddress} [get]
func (h *HistoryHandler) GetHistory(c *gin.Context) {
	wallet := models.NormalizeWallet(c.Param("walletAddress"))
	limit, _ := strconv.Atoi(c.Query("limit"))

	txs, err := h.ledger.ListByWallet(c.Request.Context(), wallet, limit)
	if err != nil {
		h.internalError(c, "failed to load history", err)
		return
	}

	summaries := make([]models.TransactionSummary, 0, len(txs))
	for _, tx := range txs {
		summaries = append(summaries, models.NewTransactionSummary(tx))
	}

	c.JSON(http.StatusOK, models.HistoryResponse{
		Success:       true,
		WalletAddress: wallet,
		Count:         len(summaries),
		Transactions:  summaries,
	})
}

// ToggleFavorite godoc
// @Summary     Toggle favorite
// @Description Flips the favorite flag. Only the owning wallet may do this; anything else is reported as not found.
// @Tags        history
// @Accept      json
// @Produce     json
// @Param       transactionId path string true "Transaction ID"
// @Param       request body models.FavoriteRequest true "Owner wallet"
// @Success     200 {object} models.FavoriteResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     404 {object} models.ErrorResponse
// @Router      /favorite/{transactionId} [patch]
func (h *HistoryHandler) ToggleFavorite(c *gin.Context) {
	var req models.FavoriteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "walletAddress is required"})
		return
	}

	transactionID := c.Param("transactionId")
	isFavorite, err := h.ledger.ToggleFavorite(c.Request.Context(), transactionID, req.WalletAddress)
	if errors.Is(err, ledger.ErrNotFound) {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "Transaction not found"})
		return
	}
	if err != nil {
		h.internalError(c, "failed to toggle favorite", err)
		return
	}

	c.JSON(http.StatusOK, models.FavoriteResponse{
		Success:       true,
		TransactionID: transactionID,
		IsFavorite:    isFavorite,
	})
}

// GetStats godoc
// @Summary     Wallet stats
// @Description Aggregate spend for a wallet. Unknown wallets report zeros.
// @Tags        history
// @Produce     json
// @Param       walletAddress path string true "Wallet address"
// @Success     200 {object} models.StatsResponse
// @Router      /stats/{walletAddress} [get]
func (h *HistoryHandler) GetStats(c *gin.Context) {
	stats, err := h.ledger.WalletStats(c.Request.Context(), c.Param("walletAddress"))
	if err != nil {
		h.internalError(c, "failed to load stats", err)
		return
	}

	c.JSON(http.StatusOK, models.StatsResponse{
		Success:          true,
		WalletAddress:    stats.WalletAddress,
		TotalSpent:       stats.TotalSpent,
		TotalGenerations: stats.TotalGenerations,
		LastGeneration:   stats.LastGenerationAt,
	})
}

func (h *HistoryHandler) internalError(c *gin.Context, msg string, err error) {
	h.logger.Error().Err(err).Str("path", c.FullPath()).Msg(msg)
	message := genericErrorMessage
	if h.development {
		message = err.Error()
	}
	c.JSON(http.StatusInternalServerError, models.ErrorResponse{
		Error:   "Internal server error",
		Message: message,
	})
}
