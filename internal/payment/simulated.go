package payment

import (
	"context"
)

// SimulatedGate accepts any non-empty payment header. Development only.
type SimulatedGate struct {
	cfg Config
}

func NewSimulatedGate(cfg Config) *SimulatedGate {
	return &SimulatedGate{cfg: cfg}
}

func (g *SimulatedGate) Authorize(_ context.Context, req PaymentRequest) (*Decision, error) {
	if req.Header == "" {
		return rejected(g.cfg.challenge(req, "X-PAYMENT header is required", false)), nil
	}

	var payer string
	if _, payload, ok := decodeHeader(req.Header); ok {
		payer = payload.Payload.Authorization.From
	}
	return &Decision{
		Authorized:      true,
		SettlementToken: req.Header,
		Payer:           payer,
	}, nil
}

var (
	_ Gate = (*FacilitatorGate)(nil)
	_ Gate = (*SimulatedGate)(nil)
)
