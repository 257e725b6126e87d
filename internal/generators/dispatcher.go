package generators

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

const DefaultTimeout = 120 * time.Second

// Dispatcher routes a prompt to the generator registered for a provider id.
// It never retries; retry policy belongs to the caller.
type Dispatcher struct {
	generators map[string]Generator
	timeout    time.Duration
	logger     zerolog.Logger
}

func NewDispatcher(timeout time.Duration, logger zerolog.Logger) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Dispatcher{
		generators: make(map[string]Generator),
		timeout:    timeout,
		logger:     logger,
	}
}

// Options selects the Hugging Face models used by the image variants.
type Options struct {
	ImageModel string
	SD35Model  string
}

// NewDefaultDispatcher registers the five built-in variants.
func NewDefaultDispatcher(hf *HuggingFaceClient, opts Options, timeout time.Duration, logger zerolog.Logger) *Dispatcher {
	d := NewDispatcher(timeout, logger)
	d.Register(ProviderNanoBanana, NewNanoBanana(hf, opts.ImageModel))
	d.Register(ProviderSD35, NewSD35(hf, opts.SD35Model))
	d.Register(ProviderMidjourney, NewMidjourney())
	d.Register(ProviderVeo3, NewVeo3())
	d.Register(ProviderRunway, NewRunway())
	return d
}

// Register must be called before the dispatcher serves requests.
func (d *Dispatcher) Register(providerID string, g Generator) {
	d.generators[providerID] = g
}

func (d *Dispatcher) Supports(providerID string) bool {
	_, ok := d.generators[providerID]
	return ok
}

func (d *Dispatcher) Generate(ctx context.Context, prompt, providerID string) (*Artifact, error) {
	g, ok := d.generators[providerID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, providerID)
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	start := time.Now()
	artifact, err := g.Generate(ctx, prompt)
	elapsed := time.Since(start)

	if err != nil {
		var upstream *UpstreamError
		switch {
		case errors.As(err, &upstream):
		case errors.Is(ctx.Err(), context.DeadlineExceeded):
			upstream = Unavailable(providerID, fmt.Errorf("generation timed out after %s: %w", d.timeout, err))
		default:
			upstream = Unavailable(providerID, err)
		}
		d.logger.Warn().
			Err(upstream).
			Str("provider", providerID).
			Dur("elapsed", elapsed).
			Msg("generation failed")
		return nil, upstream
	}

	if artifact == nil || len(artifact.Data) == 0 || artifact.MimeType == "" {
		return nil, Unavailable(providerID, errors.New("provider returned an empty artifact"))
	}

	d.logger.Debug().
		Str("provider", providerID).
		Int("bytes", len(artifact.Data)).
		Str("mime_type", artifact.MimeType).
		Dur("elapsed", elapsed).
		Msg("generation completed")
	return artifact, nil
}
