package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const errVerificationFailed = "payment verification failed"

// FacilitatorGate verifies and settles x402 payments through a facilitator's
// /verify and /settle endpoints.
type FacilitatorGate struct {
	cfg        Config
	baseURL    string
	httpClient *http.Client
	logger     zerolog.Logger
}

type facilitatorRequest struct {
	X402Version         int             `json:"x402Version"`
	PaymentPayload      json.RawMessage `json:"paymentPayload"`
	PaymentRequirements Requirements    `json:"paymentRequirements"`
}

type verifyResponse struct {
	IsValid       bool   `json:"isValid"`
	InvalidReason string `json:"invalidReason"`
	Payer         string `json:"payer"`
}

type settleResponse struct {
	Success     bool   `json:"success"`
	ErrorReason string `json:"errorReason"`
	Transaction string `json:"transaction"`
	Network     string `json:"network"`
	Payer       string `json:"payer"`
}

func NewFacilitatorGate(cfg Config, httpClient *http.Client, logger zerolog.Logger) *FacilitatorGate {
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: 30 * time.Second,
		}
	}
	return &FacilitatorGate{
		cfg:        cfg,
		baseURL:    strings.TrimSuffix(cfg.FacilitatorURL, "/"),
		httpClient: httpClient,
		logger:     logger,
	}
}

func (g *FacilitatorGate) Authorize(ctx context.Context, req PaymentRequest) (*Decision, error) {
	if req.Header == "" {
		return rejected(g.cfg.challenge(req, "X-PAYMENT header is required", false)), nil
	}

	raw, payload, ok := decodeHeader(req.Header)
	if !ok {
		return rejected(g.cfg.challenge(req, "invalid payment header", true)), nil
	}
	if payload.Network != "" && payload.Network != g.cfg.Network {
		return rejected(g.cfg.challenge(req, fmt.Sprintf("unsupported network %q", payload.Network), true)), nil
	}

	body := facilitatorRequest{
		X402Version:         x402Version,
		PaymentPayload:      raw,
		PaymentRequirements: g.cfg.requirements(req),
	}

	var verified verifyResponse
	if err := g.post(ctx, "/verify", body, &verified); err != nil {
		g.logger.Error().Err(err).Str("resource", req.Resource).Msg("facilitator verify failed")
		return rejected(g.cfg.challenge(req, errVerificationFailed, false)), nil
	}
	if !verified.IsValid {
		reason := verified.InvalidReason
		if reason == "" {
			reason = "payment is invalid"
		}
		return rejected(g.cfg.challenge(req, reason, true)), nil
	}

	var settled settleResponse
	if err := g.post(ctx, "/settle", body, &settled); err != nil {
		g.logger.Error().Err(err).Str("payer", verified.Payer).Msg("facilitator settle failed")
		return rejected(g.cfg.challenge(req, errVerificationFailed, false)), nil
	}
	if !settled.Success {
		reason := settled.ErrorReason
		if reason == "" {
			reason = "payment settlement failed"
		}
		return rejected(g.cfg.challenge(req, reason, true)), nil
	}

	payer := settled.Payer
	if payer == "" {
		payer = verified.Payer
	}
	g.logger.Info().
		Str("payer", payer).
		Str("transaction", settled.Transaction).
		Str("amount", req.Price.String()).
		Msg("payment settled")

	return &Decision{
		Authorized:      true,
		SettlementToken: settled.Transaction,
		Payer:           payer,
	}, nil
}

func (g *FacilitatorGate) post(ctx context.Context, path string, body any, out any) error {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	// Facilitators answer rejected payments with 400 and a JSON verdict.
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusBadRequest {
		return fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(respBody))
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to decode response (status %d): %w", resp.StatusCode, err)
	}
	return nil
}
