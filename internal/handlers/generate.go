package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"ultrapay-backend/internal/models"
	"ultrapay-backend/internal/payment"
	"ultrapay-backend/internal/pipeline"
)

const genericErrorMessage = "An error occurred while processing your request"

// Runner executes the generation pipeline.
type Runner interface {
	Run(ctx context.Context, in pipeline.Input) (*pipeline.Result, error)
}

type GenerateHandler struct {
	pipeline    Runner
	resource    string
	development bool
	logger      zerolog.Logger
}

// NewGenerateHandler builds the POST /generate handler. resource is the
// absolute URL advertised in payment requirements.
func NewGenerateHandler(runner Runner, resource string, development bool, logger zerolog.Logger) *GenerateHandler {
	return &GenerateHandler{
		pipeline:    runner,
		resource:    resource,
		development: development,
		logger:      logger,
	}
}

// Generate godoc
// @Summary     Generate an image or video
// @Description Runs a paid generation. Without a valid X-PAYMENT header the response is 402 with x402 payment requirements.
// @Tags        generate
// @Accept      json
// @Produce     json
// @Param       X-PAYMENT header string false "base64 x402 payment payload"
// @Param       request body models.GenerateRequest true "Generation request"
// @Success     200 {object} models.GenerateResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     402 {object} payment.RequiredBody
// @Failure     502 {object} models.ErrorResponse
// @Failure     500 {object} models.ErrorResponse
// @Router      /generate [post]
func (h *GenerateHandler) Generate(c *gin.Context) {
	var req models.GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "Invalid request body",
			Message: err.Error(),
		})
		return
	}

	result, err := h.pipeline.Run(c.Request.Context(), pipeline.Input{
		Prompt:        req.Prompt,
		Type:          req.Type,
		Provider:      req.Provider,
		WalletAddress: req.WalletAddress,
		PaymentHeader: payment.HeaderFrom(c.Request.Header),
		Resource:      h.resource,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	if result.SettlementToken != "" {
		c.Header(payment.HeaderResponse, result.SettlementToken)
	}

	tx := result.Transaction
	c.JSON(http.StatusOK, models.GenerateResponse{
		Success:       true,
		TransactionID: tx.TransactionID,
		MediaURL:      tx.MediaURL,
		Type:          tx.Type,
		Provider:      tx.Provider,
		ProviderName:  tx.ProviderName,
		Price:         tx.Price,
	})
}

func (h *GenerateHandler) writeError(c *gin.Context, err error) {
	var perr *pipeline.Error
	if !errors.As(err, &perr) {
		h.logger.Error().Err(err).Msg("generate failed")
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "Internal server error",
			Message: h.message(err),
		})
		return
	}

	status := perr.HTTPStatus()
	switch {
	case perr.Kind == pipeline.KindPaymentRejected && perr.Challenge != nil:
		for k, v := range perr.Challenge.Headers {
			c.Header(k, v)
		}
		c.JSON(status, perr.Challenge.Body)

	case perr.Kind == pipeline.KindPaymentRejected:
		c.JSON(status, gin.H{"error": perr.Message})

	case status == http.StatusBadRequest:
		body := gin.H{"error": perr.Message}
		for k, v := range perr.Context {
			body[k] = v
		}
		c.JSON(status, body)

	case status == http.StatusBadGateway:
		if perr.RetryAfter > 0 {
			c.Header("Retry-After", strconv.Itoa(int(perr.RetryAfter.Seconds())))
		}
		body := gin.H{
			"error":   perr.Message,
			"message": h.message(perr.Err),
			"stage":   perr.Stage,
		}
		for k, v := range perr.Context {
			body[k] = v
		}
		c.JSON(status, body)

	default:
		h.logger.Error().Err(err).Str("stage", string(perr.Stage)).Msg("generate failed")
		c.JSON(status, models.ErrorResponse{
			Error:   "Internal server error",
			Message: h.message(err),
		})
	}
}

// message hides internal error text outside development.
func (h *GenerateHandler) message(err error) string {
	if h.development && err != nil {
		return err.Error()
	}
	return genericErrorMessage
}
