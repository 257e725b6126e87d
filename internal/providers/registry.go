// Package providers holds the static catalogue of priced generation providers.
package providers

import (
	"fmt"

	"github.com/shopspring/decimal"
	"ultrapay-backend/internal/models"
)

// Default returns the built-in catalogue in display order.
func Default() []models.Provider {
	return []models.Provider{
		{ID: "nanobanana", Name: "NanoBanana", Type: models.MediaTypeImage, Price: decimal.RequireFromString("0.10"), Description: "Rapido y economico", Model: "nanobanana-v1"},
		{ID: "sd35", Name: "SD3.5", Type: models.MediaTypeImage, Price: decimal.RequireFromString("0.15"), Description: "Alta calidad, versatil", Model: "stable-diffusion-3.5"},
		{ID: "midjourney", Name: "Midjourney", Type: models.MediaTypeImage, Price: decimal.RequireFromString("0.20"), Description: "Artistico premium", Model: "mj-v6"},
		{ID: "veo3", Name: "Veo 3", Type: models.MediaTypeVideo, Price: decimal.RequireFromString("0.85"), Description: "Videos realistas", Model: "veo-3"},
		{ID: "runway", Name: "Runway Gen-3", Type: models.MediaTypeVideo, Price: decimal.RequireFromString("1.20"), Description: "Cinematografico", Model: "gen-3"},
	}
}

type Registry struct {
	byID    map[string]models.Provider
	ordered []models.Provider
}

func NewRegistry(entries []models.Provider) (*Registry, error) {
	r := &Registry{
		byID:    make(map[string]models.Provider, len(entries)),
		ordered: make([]models.Provider, 0, len(entries)),
	}
	for _, p := range entries {
		if p.ID == "" {
			return nil, fmt.Errorf("provider id is required")
		}
		if _, exists := r.byID[p.ID]; exists {
			return nil, fmt.Errorf("duplicate provider id %q", p.ID)
		}
		if _, ok := models.ParseMediaType(string(p.Type)); !ok {
			return nil, fmt.Errorf("provider %q has invalid media type %q", p.ID, p.Type)
		}
		if !p.Price.IsPositive() {
			return nil, fmt.Errorf("provider %q must have a positive price, got %s", p.ID, p.Price)
		}
		r.byID[p.ID] = p
		r.ordered = append(r.ordered, p)
	}
	return r, nil
}

// Resolve looks up a provider by id. Unknown ids report false.
func (r *Registry) Resolve(id string) (models.Provider, bool) {
	p, ok := r.byID[id]
	return p, ok
}

func (r *Registry) List() []models.Provider {
	out := make([]models.Provider, len(r.ordered))
	copy(out, r.ordered)
	return out
}

func (r *Registry) ListByMediaType(t models.MediaType) []models.Provider {
	out := make([]models.Provider, 0, len(r.ordered))
	for _, p := range r.ordered {
		if p.Type == t {
			out = append(out, p)
		}
	}
	return out
}

func (r *Registry) IDs() []string {
	ids := make([]string, len(r.ordered))
	for i, p := range r.ordered {
		ids[i] = p.ID
	}
	return ids
}

// Pricing summarizes prices per provider and the min/max range per media type.
// A media type with no providers reports null bounds.
func (r *Registry) Pricing() models.PricingResponse {
	resp := models.PricingResponse{
		Currency:  "USD",
		Providers: make(map[string]decimal.Decimal, len(r.ordered)),
		ByType:    make(map[models.MediaType]models.PriceRange, 2),
	}
	for _, p := range r.ordered {
		resp.Providers[p.ID] = p.Price
	}
	for _, t := range []models.MediaType{models.MediaTypeImage, models.MediaTypeVideo} {
		list := r.ListByMediaType(t)
		rng := models.PriceRange{Providers: list}
		for i := range list {
			price := list[i].Price
			if rng.Min == nil || price.LessThan(*rng.Min) {
				rng.Min = &price
			}
			if rng.Max == nil || price.GreaterThan(*rng.Max) {
				rng.Max = &price
			}
		}
		resp.ByType[t] = rng
	}
	return resp
}
