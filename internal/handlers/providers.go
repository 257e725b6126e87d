package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"ultrapay-backend/internal/models"
	"ultrapay-backend/internal/providers"
)

type ProvidersHandler struct {
	registry *providers.Registry
}

func NewProvidersHandler(registry *providers.Registry) *ProvidersHandler {
	return &ProvidersHandler{
		registry: registry,
	}
}

// ListProviders godoc
// @Summary     List providers
// @Description Lists generation providers, optionally filtered by media type. Unknown types return every provider.
// @Tags        providers
// @Produce     json
// @Param       type query string false "image or video"
// @Success     200 {object} models.ProvidersResponse
// @Router      /providers [get]
func (h *ProvidersHandler) ListProviders(c *gin.Context) {
	list := h.registry.List()
	if t, ok := models.ParseMediaType(c.Query("type")); ok {
		list = h.registry.ListByMediaType(t)
	}
	c.JSON(http.StatusOK, models.ProvidersResponse{Providers: list})
}

// GetPricing godoc
// @Summary     Pricing summary
// @Tags        providers
// @Produce     json
// @Success     200 {object} models.PricingResponse
// @Router      /pricing [get]
func (h *ProvidersHandler) GetPricing(c *gin.Context) {
	c.JSON(http.StatusOK, h.registry.Pricing())
}
