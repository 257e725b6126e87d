// Package pipeline runs a paid generation request through its stages:
// validate, authorize, generate, store and record. Rejections before
// authorization have no side effects; failures after it never write a
// transaction.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/unicode/norm"

	"ultrapay-backend/internal/generators"
	"ultrapay-backend/internal/ledger"
	"ultrapay-backend/internal/models"
	"ultrapay-backend/internal/payment"
	"ultrapay-backend/internal/storage"
)

const (
	MinPromptLength = 3
	MaxPromptLength = 2000

	paymentDescription = "UltraPayx402 - AI Image/Video Generation"
	aggregateTimeout   = 10 * time.Second
)

type ProviderResolver interface {
	Resolve(id string) (models.Provider, bool)
	IDs() []string
}

type Generator interface {
	Generate(ctx context.Context, prompt, providerID string) (*generators.Artifact, error)
}

// Input is one POST /generate call.
type Input struct {
	Prompt        string
	Type          string
	Provider      string
	WalletAddress string
	PaymentHeader string
	Resource      string
}

type Result struct {
	Transaction     models.Transaction
	SettlementToken string
}

// Orchestrator is safe for concurrent use.
type Orchestrator struct {
	providers       ProviderResolver
	gate            payment.Gate
	generator       Generator
	storage         storage.Backend
	ledger          ledger.Ledger
	defaultProvider string
	logger          zerolog.Logger
	tracer          trace.Tracer

	aggregates sync.WaitGroup
	now        func() time.Time
}

func NewOrchestrator(
	providers ProviderResolver,
	gate payment.Gate,
	generator Generator,
	backend storage.Backend,
	l ledger.Ledger,
	defaultProvider string,
	logger zerolog.Logger,
) *Orchestrator {
	return &Orchestrator{
		providers:       providers,
		gate:            gate,
		generator:       generator,
		storage:         backend,
		ledger:          l,
		defaultProvider: defaultProvider,
		logger:          logger.With().Str("component", "pipeline").Logger(),
		tracer:          otel.Tracer("ultrapay-backend/pipeline"),
		now:             time.Now,
	}
}

func (o *Orchestrator) Run(ctx context.Context, in Input) (*Result, error) {
	transactionID := uuid.NewString()
	log := o.logger.With().Str("transaction_id", transactionID).Logger()

	ctx, span := o.tracer.Start(ctx, "pipeline.run", trace.WithAttributes(
		attribute.String("transaction.id", transactionID),
	))
	defer span.End()

	result, err := o.run(ctx, in, transactionID, log)
	if err != nil {
		var perr *Error
		if errors.As(err, &perr) {
			span.SetAttributes(attribute.String("pipeline.error_kind", string(perr.Kind)), attribute.String("pipeline.stage", string(perr.Stage)))
		}
		span.SetStatus(codes.Error, err.Error())
	}
	return result, err
}

func (o *Orchestrator) run(ctx context.Context, in Input, transactionID string, log zerolog.Logger) (*Result, error) {
	prompt, mediaType, provider, err := o.validate(ctx, in)
	if err != nil {
		return nil, err
	}

	decision, err := o.authorize(ctx, in, provider)
	if err != nil {
		return nil, err
	}

	wallet := models.NormalizeWallet(decision.Payer)
	if wallet == "" {
		wallet = models.NormalizeWallet(in.WalletAddress)
	}
	log = log.With().Str("provider", provider.ID).Str("wallet", wallet).Logger()
	log.Info().Str("price", provider.Price.String()).Msg("payment authorized, generating")

	// Paid work completes even if the caller goes away.
	workCtx := context.WithoutCancel(ctx)

	artifact, err := o.generate(workCtx, prompt, provider)
	if err != nil {
		log.Warn().Err(err).Msg("generation failed")
		return nil, err
	}

	mediaURL, err := o.store(workCtx, artifact, mediaType, transactionID)
	if err != nil {
		log.Error().Err(err).Msg("storage failed")
		return nil, err
	}

	tx := models.Transaction{
		TransactionID: transactionID,
		WalletAddress: wallet,
		Prompt:        prompt,
		Type:          mediaType,
		Provider:      provider.ID,
		ProviderName:  provider.Name,
		Price:         provider.Price,
		PaymentHash:   ledger.TruncatePaymentHash(decision.SettlementToken),
		MediaURL:      mediaURL,
		Status:        models.TransactionStatusCompleted,
		CreatedAt:     o.now().UTC().Truncate(time.Microsecond),
	}
	o.record(workCtx, tx, log)

	log.Info().Msg("generation completed")
	return &Result{Transaction: tx, SettlementToken: decision.SettlementToken}, nil
}

func (o *Orchestrator) validate(ctx context.Context, in Input) (string, models.MediaType, models.Provider, error) {
	_, span := o.tracer.Start(ctx, "pipeline.validate")
	defer span.End()

	if in.Prompt == "" || in.Type == "" {
		return "", "", models.Provider{}, validationError("Missing required fields: prompt, type", nil)
	}

	mediaType, ok := models.ParseMediaType(in.Type)
	if !ok {
		return "", "", models.Provider{}, validationError(`Type must be "image" or "video"`, nil)
	}

	prompt := strings.TrimSpace(norm.NFC.String(in.Prompt))

	if n := utf8.RuneCountInString(prompt); n < MinPromptLength || n > MaxPromptLength {
		return "", "", models.Provider{}, validationError(
			fmt.Sprintf("Prompt must be between %d and %d characters", MinPromptLength, MaxPromptLength), nil)
	}

	providerID := strings.TrimSpace(in.Provider)
	if providerID == "" {
		providerID = o.defaultProvider
	}
	provider, ok := o.providers.Resolve(providerID)
	if !ok {
		return "", "", models.Provider{}, validationError(
			fmt.Sprintf("Invalid provider: %s", providerID),
			map[string]any{"availableProviders": o.providers.IDs()})
	}
	if provider.Type != mediaType {
		return "", "", models.Provider{}, validationError(
			fmt.Sprintf("Provider %s does not support type %q", providerID, mediaType),
			map[string]any{"providerType": provider.Type})
	}

	span.SetAttributes(attribute.String("provider.id", provider.ID), attribute.String("media.type", string(mediaType)))
	return prompt, mediaType, provider, nil
}

func (o *Orchestrator) authorize(ctx context.Context, in Input, provider models.Provider) (*payment.Decision, error) {
	ctx, span := o.tracer.Start(ctx, "pipeline.authorize")
	defer span.End()

	decision, err := o.gate.Authorize(ctx, payment.PaymentRequest{
		Header:      in.PaymentHeader,
		Resource:    in.Resource,
		Description: paymentDescription,
		MimeType:    "application/json",
		Price:       provider.Price,
	})
	if err != nil {
		return nil, &Error{Kind: KindInternal, Stage: StageAuthorize, Message: "Payment verification error", Err: err}
	}
	if !decision.Authorized {
		message := "Payment required"
		if decision.Challenge != nil && decision.Challenge.Body.Error != "" {
			message = decision.Challenge.Body.Error
		}
		span.SetAttributes(attribute.Bool("payment.authorized", false))
		return nil, &Error{Kind: KindPaymentRejected, Stage: StageAuthorize, Message: message, Challenge: decision.Challenge}
	}
	span.SetAttributes(attribute.Bool("payment.authorized", true))
	return decision, nil
}

func (o *Orchestrator) generate(ctx context.Context, prompt string, provider models.Provider) (*generators.Artifact, error) {
	ctx, span := o.tracer.Start(ctx, "pipeline.generate", trace.WithAttributes(attribute.String("provider.id", provider.ID)))
	defer span.End()

	artifact, err := o.generator.Generate(ctx, prompt, provider.ID)
	if err == nil {
		span.SetAttributes(attribute.Int("artifact.bytes", len(artifact.Data)), attribute.String("artifact.mime_type", artifact.MimeType))
		return artifact, nil
	}
	span.SetStatus(codes.Error, err.Error())

	if errors.Is(err, generators.ErrUnsupportedProvider) {
		return nil, &Error{Kind: KindUnsupportedProvider, Stage: StageGenerate, Message: fmt.Sprintf("Unsupported provider: %s", provider.ID), Err: err}
	}

	var upstream *generators.UpstreamError
	if errors.As(err, &upstream) && upstream.Kind == generators.KindRateLimited {
		perr := &Error{
			Kind:       KindUpstreamRateLimited,
			Stage:      StageGenerate,
			Message:    "Generation provider is rate limited",
			RetryAfter: upstream.RetryAfter,
			Err:        err,
		}
		if upstream.RetryAfter > 0 {
			perr.Context = map[string]any{"retryAfter": int(upstream.RetryAfter.Round(time.Second) / time.Second)}
		}
		return nil, perr
	}
	return nil, &Error{Kind: KindUpstreamUnavailable, Stage: StageGenerate, Message: "Generation provider unavailable", Err: err}
}

func (o *Orchestrator) store(ctx context.Context, artifact *generators.Artifact, mediaType models.MediaType, transactionID string) (string, error) {
	ctx, span := o.tracer.Start(ctx, "pipeline.store", trace.WithAttributes(attribute.String("storage.backend", o.storage.Name())))
	defer span.End()

	url, err := o.storage.Store(ctx, storage.Object{
		Data:          artifact.Data,
		MimeType:      artifact.MimeType,
		MediaType:     mediaType,
		TransactionID: transactionID,
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return "", &Error{Kind: KindStorageUnavailable, Stage: StageStore, Message: "Storage unavailable", Err: err}
	}
	return url, nil
}

// record writes the transaction. A ledger failure is logged and swallowed:
// the caller has paid and the media exists.
func (o *Orchestrator) record(ctx context.Context, tx models.Transaction, log zerolog.Logger) {
	ctx, span := o.tracer.Start(ctx, "pipeline.record", trace.WithAttributes(attribute.String("ledger", o.ledger.Name())))
	defer span.End()

	if err := o.ledger.Record(ctx, tx); err != nil {
		span.SetStatus(codes.Error, err.Error())
		log.Error().Err(err).Str("media_url", truncateURL(tx.MediaURL)).Msg("failed to record transaction")
		return
	}

	if tx.WalletAddress == "" {
		return
	}
	o.aggregates.Add(1)
	go func() {
		defer o.aggregates.Done()
		actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), aggregateTimeout)
		defer cancel()
		if err := o.ledger.IncrementWallet(actx, tx.WalletAddress, tx.Price, tx.CreatedAt); err != nil {
			log.Warn().Err(err).Msg("failed to update wallet stats")
		}
	}()
}

// Wait blocks until in-flight wallet aggregate updates finish.
func (o *Orchestrator) Wait() {
	o.aggregates.Wait()
}

func truncateURL(u string) string {
	if len(u) > 80 {
		return u[:80] + "..."
	}
	return u
}
