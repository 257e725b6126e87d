// @title           UltraPay Backend API
// @version         1.0.0
// @description     Pay-per-use AI image and video generation. POST /generate is gated by x402 micropayments settled in USDC.

// @contact.name   API Support
// @contact.email  support@example.com

// @license.name  MIT
// @license.url   https://opensource.org/licenses/MIT

// @host      localhost:3001
// @BasePath  /

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"ultrapay-backend/internal/config"
	"ultrapay-backend/internal/generators"
	"ultrapay-backend/internal/handlers"
	"ultrapay-backend/internal/jobs"
	"ultrapay-backend/internal/ledger"
	"ultrapay-backend/internal/logger"
	"ultrapay-backend/internal/payment"
	"ultrapay-backend/internal/pipeline"
	"ultrapay-backend/internal/providers"
	"ultrapay-backend/internal/storage"
	"ultrapay-backend/internal/telemetry"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		boot := logger.New("production", "info")
		boot.Fatal().Err(err).Msg("failed to load configuration")
	}

	log := logger.New(cfg.Environment, cfg.LogLevel)

	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.TracingEnabled {
		shutdown, err := telemetry.InitTracer(handlers.ServiceName, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize tracing")
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdown(sctx)
		}()
	}

	registry, err := providers.NewRegistry(providers.Default())
	if err != nil {
		log.Fatal().Err(err).Msg("invalid provider catalogue")
	}
	if _, ok := registry.Resolve(cfg.DefaultProvider); !ok {
		log.Fatal().Str("provider", cfg.DefaultProvider).Msg("DEFAULT_PROVIDER is not a known provider")
	}

	hf := generators.NewHuggingFaceClient(cfg.HFAPIURL, cfg.HFToken, nil)
	if !hf.Configured() {
		log.Warn().Msg("HF_TOKEN not set. Image providers will return synthetic media.")
	}
	dispatcher := generators.NewDefaultDispatcher(hf, generators.Options{
		ImageModel: cfg.HFImageModel,
		SD35Model:  cfg.HFSD35Model,
	}, cfg.GenerationTimeout, log)

	gate := newPaymentGate(cfg, log)
	backend := newStorageBackend(cfg, log)
	l := newLedger(cfg, log)
	defer l.Close()

	if cfg.ReconcileEnabled() {
		if _, err := jobs.ScheduleWalletReconcile(ctx, cfg.ReconcileSchedule, l, log.With().Str("job", "reconcile").Logger()); err != nil {
			log.Fatal().Err(err).Str("schedule", cfg.ReconcileSchedule).Msg("invalid RECONCILE_SCHEDULE")
		}
	}

	orchestrator := pipeline.NewOrchestrator(registry, gate, dispatcher, backend, l, cfg.DefaultProvider, log)

	router := handlers.NewRouter(handlers.RouterConfig{
		Pipeline:      orchestrator,
		Registry:      registry,
		Ledger:        l,
		PublicBaseURL: cfg.PublicBaseURL,
		Development:   cfg.IsDevelopment(),
		Logger:        log,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           otelhttp.NewHandler(router, "http.server"),
		ReadHeaderTimeout: 10 * time.Second,
		// Generation may take up to GENERATION_TIMEOUT.
		WriteTimeout: cfg.GenerationTimeout + 30*time.Second,
	}

	go func() {
		log.Info().
			Str("port", cfg.Port).
			Str("environment", cfg.Environment).
			Str("payment_mode", cfg.PaymentMode).
			Str("network", cfg.X402Network).
			Str("storage", backend.Name()).
			Str("ledger", l.Name()).
			Msg("UltraPay backend starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	sctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
	orchestrator.Wait()
}

func newPaymentGate(cfg *config.Config, log zerolog.Logger) payment.Gate {
	pcfg := payment.Config{
		PayTo:          cfg.X402WalletAddress,
		FacilitatorURL: cfg.X402FacilitatorURL,
		Network:        cfg.X402Network,
		Asset:          cfg.X402Asset,
	}
	if cfg.PaymentMode == config.PaymentModeSimulated {
		log.Warn().Msg("PAYMENT_MODE=simulated: any X-PAYMENT header is accepted")
		return payment.NewSimulatedGate(pcfg)
	}
	return payment.NewFacilitatorGate(pcfg, nil, log.With().Str("component", "payment").Logger())
}

func newStorageBackend(cfg *config.Config, log zerolog.Logger) storage.Backend {
	if !cfg.StorageConfigured() {
		log.Warn().Msg("Supabase storage not configured. Media will be returned as data URLs.")
		return storage.NewInlineBackend()
	}
	backend, err := storage.NewSupabaseBackend(cfg.SupabaseURL, cfg.SupabaseServiceKey, cfg.SupabaseStorageBucket)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize Supabase storage. Media will be returned as data URLs.")
		return storage.NewInlineBackend()
	}
	return backend
}

func newLedger(cfg *config.Config, log zerolog.Logger) ledger.Ledger {
	if cfg.DatabaseURL == "" {
		log.Warn().Msg("DATABASE_URL not set. Transactions are kept in memory and lost on restart.")
		return ledger.NewMemoryLedger()
	}
	l, err := ledger.NewSQLLedger(cfg.DatabaseURL, log)
	if err != nil {
		log.Warn().Err(err).Msg("Invalid DATABASE_URL. Falling back to the in-memory ledger.")
		return ledger.NewMemoryLedger()
	}

	// Connects lazily; a failure here is retried on first use.
	pctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := l.Ping(pctx); err != nil {
		log.Warn().Err(err).Msg("Ledger database not reachable yet")
	}
	return l
}
