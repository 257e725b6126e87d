package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"ultrapay-backend/internal/ledger"
	"ultrapay-backend/internal/middleware"
	"ultrapay-backend/internal/providers"
)

type RouterConfig struct {
	Pipeline      Runner
	Registry      *providers.Registry
	Ledger        ledger.Ledger
	PublicBaseURL string
	Development   bool
	Logger        zerolog.Logger
}

// NewRouter wires every public route onto a gin engine.
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(cfg.Logger))
	router.Use(middleware.CORS())
	router.SetHTMLTemplate(ShareTemplate())

	baseURL := strings.TrimSuffix(cfg.PublicBaseURL, "/")

	generateHandler := NewGenerateHandler(cfg.Pipeline, baseURL+"/generate", cfg.Development, cfg.Logger)
	providersHandler := NewProvidersHandler(cfg.Registry)
	historyHandler := NewHistoryHandler(cfg.Ledger, cfg.Development, cfg.Logger)
	shareHandler := NewShareHandler(cfg.Ledger, baseURL, cfg.Logger)

	router.GET("/health", HealthHandler)
	router.GET("/providers", providersHandler.ListProviders)
	router.GET("/pricing", providersHandler.GetPricing)

	router.POST("/generate", generateHandler.Generate)

	router.GET("/history/:walletAddress", historyHandler.GetHistory)
	router.GET("/stats/:walletAddress", historyHandler.GetStats)
	router.PATCH("/favorite/:transactionId", historyHandler.ToggleFavorite)

	router.GET("/share/:transactionId", shareHandler.Share)

	return router
}
