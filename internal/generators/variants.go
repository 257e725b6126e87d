package generators

import (
	"context"

	"ultrapay-backend/internal/models"
)

// Provider ids of the built-in variants.
const (
	ProviderNanoBanana = "nanobanana"
	ProviderSD35       = "sd35"
	ProviderMidjourney = "midjourney"
	ProviderVeo3       = "veo3"
	ProviderRunway     = "runway"
)

// NanoBanana renders images through Hugging Face text-to-image.
type NanoBanana struct {
	hf        *HuggingFaceClient
	model     string
	synthetic *Synthetic
}

func NewNanoBanana(hf *HuggingFaceClient, model string) *NanoBanana {
	if model == "" {
		model = DefaultImageModel
	}
	return &NanoBanana{
		hf:        hf,
		model:     model,
		synthetic: NewSynthetic(ProviderNanoBanana, model, models.MediaTypeImage),
	}
}

func (g *NanoBanana) Generate(ctx context.Context, prompt string) (*Artifact, error) {
	return generateWithHuggingFace(ctx, g.hf, g.synthetic, ProviderNanoBanana, g.model, prompt)
}

// SD35 renders images with Stable Diffusion 3.5 on Hugging Face.
type SD35 struct {
	hf        *HuggingFaceClient
	model     string
	synthetic *Synthetic
}

func NewSD35(hf *HuggingFaceClient, model string) *SD35 {
	if model == "" {
		model = DefaultSD35Model
	}
	return &SD35{
		hf:        hf,
		model:     model,
		synthetic: NewSynthetic(ProviderSD35, model, models.MediaTypeImage),
	}
}

func (g *SD35) Generate(ctx context.Context, prompt string) (*Artifact, error) {
	return generateWithHuggingFace(ctx, g.hf, g.synthetic, ProviderSD35, g.model, prompt)
}

// Midjourney has no public API; it renders synthetic images.
type Midjourney struct{ *Synthetic }

func NewMidjourney() *Midjourney {
	return &Midjourney{NewSynthetic(ProviderMidjourney, "mj-v6", models.MediaTypeImage)}
}

// Veo3 renders synthetic video until a Veo endpoint is configured.
type Veo3 struct{ *Synthetic }

func NewVeo3() *Veo3 {
	return &Veo3{NewSynthetic(ProviderVeo3, "veo-3", models.MediaTypeVideo)}
}

// Runway renders synthetic video until a Runway endpoint is configured.
type Runway struct{ *Synthetic }

func NewRunway() *Runway {
	return &Runway{NewSynthetic(ProviderRunway, "gen-3", models.MediaTypeVideo)}
}

func generateWithHuggingFace(ctx context.Context, hf *HuggingFaceClient, fallback *Synthetic, provider, model, prompt string) (*Artifact, error) {
	if !hf.Configured() {
		return fallback.Generate(ctx, prompt)
	}
	data, mimeType, err := hf.TextToImage(ctx, provider, model, prompt)
	if err != nil {
		return nil, err
	}
	return &Artifact{
		Data:     data,
		MimeType: mimeType,
		Metadata: map[string]string{
			"provider": provider,
			"model":    model,
		},
	}, nil
}

var (
	_ Generator = (*NanoBanana)(nil)
	_ Generator = (*SD35)(nil)
	_ Generator = (*Midjourney)(nil)
	_ Generator = (*Veo3)(nil)
	_ Generator = (*Runway)(nil)
)
