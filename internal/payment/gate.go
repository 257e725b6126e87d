// Package payment gates paid operations on an x402 payment proof. The gate
// never interprets settlement tokens beyond handing them back to the caller.
package payment

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"
)

// Request headers carrying the payment proof, in lookup order.
const (
	HeaderPayment       = "X-PAYMENT"
	HeaderPaymentLegacy = "X402-Payment"
	HeaderResponse      = "X-Payment-Response"
)

const (
	x402Version  = 1
	usdcDecimals = 6
)

// Default USDC contracts per network.
var defaultAssets = map[string]string{
	"base-sepolia": "0x036CbD53842c5426634e7929541eC2318f3dCF7e",
	"base":         "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913",
}

// Gate authorizes a paid action before it runs.
type Gate interface {
	Authorize(ctx context.Context, req PaymentRequest) (*Decision, error)
}

type PaymentRequest struct {
	// Header is the raw payment proof, empty when the caller sent none.
	Header      string
	Resource    string
	Description string
	MimeType    string
	Price       decimal.Decimal
}

// Decision is Authorized with a settlement token, or carries a Challenge.
type Decision struct {
	Authorized      bool
	SettlementToken string
	Payer           string
	Challenge       *Challenge
}

// Challenge is returned to the caller verbatim with a 402.
type Challenge struct {
	Headers map[string]string
	Body    RequiredBody
}

type RequiredBody struct {
	X402Version int            `json:"x402Version"`
	Error       string         `json:"error"`
	Accepts     []Requirements `json:"accepts"`
}

type Requirements struct {
	Scheme            string            `json:"scheme"`
	Network           string            `json:"network"`
	MaxAmountRequired string            `json:"maxAmountRequired"`
	Resource          string            `json:"resource"`
	Description       string            `json:"description"`
	MimeType          string            `json:"mimeType"`
	PayTo             string            `json:"payTo"`
	MaxTimeoutSeconds int               `json:"maxTimeoutSeconds"`
	Asset             string            `json:"asset"`
	Extra             map[string]string `json:"extra,omitempty"`
}

// Config describes where payments go and how they are verified.
type Config struct {
	PayTo          string
	FacilitatorURL string
	Network        string
	Asset          string
}

func (c Config) asset() string {
	if c.Asset != "" {
		return c.Asset
	}
	if a, ok := defaultAssets[c.Network]; ok {
		return a
	}
	return defaultAssets["base-sepolia"]
}

// HeaderFrom returns the payment proof from either accepted header.
func HeaderFrom(h http.Header) string {
	if v := strings.TrimSpace(h.Get(HeaderPayment)); v != "" {
		return v
	}
	return strings.TrimSpace(h.Get(HeaderPaymentLegacy))
}

// AtomicAmount converts a USD price into USDC base units.
func AtomicAmount(price decimal.Decimal) string {
	return price.Shift(usdcDecimals).Truncate(0).String()
}

func (c Config) requirements(req PaymentRequest) Requirements {
	mimeType := req.MimeType
	if mimeType == "" {
		mimeType = "application/json"
	}
	return Requirements{
		Scheme:            "exact",
		Network:           c.Network,
		MaxAmountRequired: AtomicAmount(req.Price),
		Resource:          req.Resource,
		Description:       req.Description,
		MimeType:          mimeType,
		PayTo:             c.PayTo,
		MaxTimeoutSeconds: 120,
		Asset:             c.asset(),
		Extra:             map[string]string{"name": "USDC", "version": "2"},
	}
}

func (c Config) challenge(req PaymentRequest, reason string, invalid bool) *Challenge {
	headers := map[string]string{
		"X-Payment-Required":    "true",
		"X-Payment-Amount":      req.Price.String(),
		"X-Payment-Currency":    "USD",
		"X-Payment-Recipient":   c.PayTo,
		"X-Payment-Description": req.Description,
		"X-Facilitator-URL":     c.FacilitatorURL,
	}
	if invalid {
		headers["X-Payment-Invalid"] = "true"
	}
	return &Challenge{
		Headers: headers,
		Body: RequiredBody{
			X402Version: x402Version,
			Error:       reason,
			Accepts:     []Requirements{c.requirements(req)},
		},
	}
}

func rejected(ch *Challenge) *Decision {
	return &Decision{Challenge: ch}
}

// paymentPayload is the subset of an exact-scheme EVM payload we read.
type paymentPayload struct {
	X402Version int    `json:"x402Version"`
	Scheme      string `json:"scheme"`
	Network     string `json:"network"`
	Payload     struct {
		Signature     string `json:"signature"`
		Authorization struct {
			From string `json:"from"`
		} `json:"authorization"`
	} `json:"payload"`
}

// decodeHeader base64-decodes the proof into its JSON document.
func decodeHeader(header string) (json.RawMessage, *paymentPayload, bool) {
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding} {
		raw, err := enc.DecodeString(header)
		if err != nil {
			continue
		}
		var p paymentPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, nil, false
		}
		return json.RawMessage(raw), &p, true
	}
	return nil, nil, false
}
