package services

import (
	"context"
	"fmt"
	"net/http"

	"wandernest-backend/internal/models"
)

// NewProviders builds one adapter per config entry, in order.
func NewProviders(ctx context.Context, configs []models.ProviderConfig, client *http.Client) ([]ChatProvider, error) {
	providers := make([]ChatProvider, 0, len(configs))
	for _, cfg := range configs {
		switch cfg.Name {
		case "ollama":
			providers = append(providers, NewOllamaProvider(cfg, client))
		case "gemini":
			p, err := NewGeminiProvider(ctx, cfg)
			if err != nil {
				CloseProviders(providers)
				return nil, err
			}
			providers = append(providers, p)
		default:
			if cfg.Endpoint == "" {
				CloseProviders(providers)
				return nil, fmt.Errorf("provider %q has no endpoint", cfg.Name)
			}
			providers = append(providers, NewOpenAICompatProvider(cfg, client))
		}
	}
	return providers, nil
}

// LocalSecondary returns the ollama adapter when the local fallback is
// enabled and ollama is not already the preferred provider.
func LocalSecondary(providers []ChatProvider, preferred string, enabled bool) ChatProvider {
	if !enabled || preferred == "ollama" {
		return nil
	}
	for _, p := range providers {
		if p.Name() == "ollama" {
			return p
		}
	}
	return nil
}

// CloseProviders releases adapters that hold client resources.
func CloseProviders(providers []ChatProvider) {
	for _, p := range providers {
		if c, ok := p.(interface{ Close() }); ok {
			c.Close()
		}
	}
}
