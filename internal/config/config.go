package config

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

const (
	PaymentModeFacilitator = "facilitator"
	PaymentModeSimulated   = "simulated"

	EnvironmentDevelopment = "development"
	EnvironmentProduction  = "production"
)

var walletPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

type Config struct {
	// Server
	Port          string `koanf:"port"`
	Environment   string `koanf:"environment"`
	LogLevel      string `koanf:"log_level"`
	PublicBaseURL string `koanf:"public_base_url"`

	// x402
	X402WalletAddress  string `koanf:"x402_wallet_address"`
	X402FacilitatorURL string `koanf:"x402_facilitator_url"`
	X402Network        string `koanf:"x402_network"`
	X402Asset          string `koanf:"x402_asset"`
	PaymentMode        string `koanf:"payment_mode"`

	// Supabase storage
	SupabaseURL           string `koanf:"supabase_url"`
	SupabaseServiceKey    string `koanf:"supabase_service_key"`
	SupabaseStorageBucket string `koanf:"supabase_storage_bucket"`

	// Ledger
	DatabaseURL string `koanf:"database_url"`

	// Generation
	HFToken           string        `koanf:"hf_token"`
	HFAPIURL          string        `koanf:"hf_api_url"`
	HFImageModel      string        `koanf:"hf_image_model"`
	HFSD35Model       string        `koanf:"hf_sd35_model"`
	DefaultProvider   string        `koanf:"default_provider"`
	GenerationTimeout time.Duration `koanf:"generation_timeout"`

	// Jobs and telemetry
	ReconcileSchedule string `koanf:"reconcile_schedule"`
	TracingEnabled    bool   `koanf:"tracing_enabled"`
}

// Environment variables read by Load; anything else is ignored.
var knownKeys = map[string]bool{
	"port": true, "environment": true, "node_env": true, "log_level": true, "public_base_url": true,
	"x402_wallet_address": true, "x402_facilitator_url": true, "x402_network": true, "x402_asset": true,
	"payment_mode": true, "supabase_url": true, "supabase_service_key": true, "supabase_storage_bucket": true,
	"database_url": true, "hf_token": true, "hf_api_url": true, "hf_image_model": true, "hf_sd35_model": true,
	"default_provider": true, "generation_timeout": true, "reconcile_schedule": true, "tracing_enabled": true,
}

func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(env.Provider("", ".", func(s string) string {
		key := strings.ToLower(s)
		if !knownKeys[key] {
			return ""
		}
		return key
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	if k.String("environment") == "" && k.String("node_env") != "" {
		_ = k.Set("environment", k.String("node_env"))
	}
	setDefault(k, "environment", EnvironmentDevelopment)
	development := k.String("environment") == EnvironmentDevelopment

	setDefault(k, "port", "3001")
	setDefault(k, "log_level", pick(development, "debug", "info"))
	setDefault(k, "public_base_url", "http://localhost:"+k.String("port"))
	setDefault(k, "x402_wallet_address", "0x34033041a5944B8F10f8E4D8496Bfb84f1A293A8")
	setDefault(k, "x402_facilitator_url", "https://facilitator.ultravioletadao.xyz/")
	setDefault(k, "x402_network", "base-sepolia")
	setDefault(k, "payment_mode", PaymentModeFacilitator)
	setDefault(k, "supabase_storage_bucket", "ultrapay-media")
	setDefault(k, "default_provider", "nanobanana")
	setDefault(k, "generation_timeout", "120s")
	setDefault(k, "reconcile_schedule", "@hourly")
	setDefault(k, "tracing_enabled", "false")

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if _, err := strconv.ParseUint(c.Port, 10, 16); err != nil {
		return fmt.Errorf("PORT must be a valid port number, got %q", c.Port)
	}
	if !walletPattern.MatchString(c.X402WalletAddress) {
		return fmt.Errorf("X402_WALLET_ADDRESS must be a 0x-prefixed 20-byte hex address")
	}
	switch c.PaymentMode {
	case PaymentModeSimulated:
		if !c.IsDevelopment() {
			return fmt.Errorf("PAYMENT_MODE=simulated is only allowed when ENVIRONMENT=development")
		}
	case PaymentModeFacilitator:
		u, err := url.Parse(c.X402FacilitatorURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("X402_FACILITATOR_URL must be an absolute URL")
		}
	default:
		return fmt.Errorf("PAYMENT_MODE must be %q or %q", PaymentModeFacilitator, PaymentModeSimulated)
	}
	if c.X402Network == "" {
		return fmt.Errorf("X402_NETWORK is required")
	}
	if c.DefaultProvider == "" {
		return fmt.Errorf("DEFAULT_PROVIDER is required")
	}
	if c.GenerationTimeout <= 0 {
		return fmt.Errorf("GENERATION_TIMEOUT must be positive")
	}
	if (c.SupabaseURL == "") != (c.SupabaseServiceKey == "") {
		return fmt.Errorf("SUPABASE_URL and SUPABASE_SERVICE_KEY must be set together")
	}
	return nil
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == EnvironmentDevelopment
}

// StorageConfigured reports whether durable object storage is available.
func (c *Config) StorageConfigured() bool {
	return c.SupabaseURL != "" && c.SupabaseServiceKey != ""
}

// ReconcileEnabled is false when RECONCILE_SCHEDULE is "off".
func (c *Config) ReconcileEnabled() bool {
	s := strings.ToLower(strings.TrimSpace(c.ReconcileSchedule))
	return s != "" && s != "off" && s != "disabled"
}

func setDefault(k *koanf.Koanf, key string, value string) {
	if k.String(key) == "" {
		_ = k.Set(key, value)
	}
}

func pick(cond bool, a, b string) string {
	if cond {
		return a
	}
	return b
}
