package main

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"ultrapay-backend/internal/config"
	"ultrapay-backend/internal/ledger"
	"ultrapay-backend/internal/payment"
	"ultrapay-backend/internal/storage"
)

func testConfig() *config.Config {
	return &config.Config{
		Environment:        config.EnvironmentDevelopment,
		PaymentMode:        config.PaymentModeFacilitator,
		X402WalletAddress:  "0x34033041a5944B8F10f8E4D8496Bfb84f1A293A8",
		X402FacilitatorURL: "https://facilitator.example/",
		X402Network:        "base-sepolia",
	}
}

func TestNewPaymentGate(t *testing.T) {
	cfg := testConfig()
	assert.IsType(t, &payment.FacilitatorGate{}, newPaymentGate(cfg, zerolog.Nop()))

	cfg.PaymentMode = config.PaymentModeSimulated
	assert.IsType(t, &payment.SimulatedGate{}, newPaymentGate(cfg, zerolog.Nop()))
}

func TestNewStorageBackend_FallsBackToInline(t *testing.T) {
	backend := newStorageBackend(testConfig(), zerolog.Nop())
	assert.IsType(t, &storage.InlineBackend{}, backend)
}

func TestNewLedger(t *testing.T) {
	cfg := testConfig()
	assert.IsType(t, &ledger.MemoryLedger{}, newLedger(cfg, zerolog.Nop()))

	cfg.DatabaseURL = "mysql://localhost/ultrapay"
	assert.IsType(t, &ledger.MemoryLedger{}, newLedger(cfg, zerolog.Nop()))

	cfg.DatabaseURL = "sqlite://:memory:"
	l := newLedger(cfg, zerolog.Nop())
	defer l.Close()
	assert.IsType(t, &ledger.SQLLedger{}, l)
}
