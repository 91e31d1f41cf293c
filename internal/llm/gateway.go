package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/DemianGo/laravel-rag-vertex-full-sub004/internal/config"
)

type gateway struct {
	providers        map[string]Provider
	defaultProvider  string
	fallbackProvider string
	embedProvider    string
	maxRetries       int
	generateTimeout  time.Duration
	embedTimeout     time.Duration
}

func NewGateway(cfg config.LLMConfig) Gateway {
	g := &gateway{
		providers:        make(map[string]Provider),
		defaultProvider:  cfg.DefaultProvider,
		fallbackProvider: cfg.FallbackProvider,
		embedProvider:    cfg.EmbedProvider,
		maxRetries:       cfg.MaxRetries,
		generateTimeout:  cfg.GenerateTimeout,
		embedTimeout:     cfg.EmbedTimeout,
	}

	if cfg.OpenAIKey != "" {
		g.providers["openai"] = NewOpenAIProvider(cfg.OpenAIKey)
	}
	if cfg.AnthropicKey != "" {
		g.providers["anthropic"] = NewAnthropicProvider(cfg.AnthropicKey)
	}
	if cfg.GeminiKey != "" {
		p, err := NewGeminiProvider(context.Background(), cfg.GeminiKey)
		if err != nil {
			slog.Warn("gemini provider unavailable", "error", err)
		} else {
			g.providers["gemini"] = p
		}
	}

	return g
}

func (g *gateway) Configured() bool {
	return len(g.providers) > 0
}

func (g *gateway) provider(name, purpose string) (Provider, error) {
	if name == "" {
		return nil, fmt.Errorf("no %s provider configured", purpose)
	}
	p, ok := g.providers[name]
	if !ok {
		return nil, fmt.Errorf("provider %q not configured", name)
	}
	return p, nil
}

func (g *gateway) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	name := req.Provider
	if name == "" {
		name = g.defaultProvider
	}

	resp, err := g.generateWithRetry(ctx, name, req)
	if err != nil && g.fallbackProvider != "" && g.fallbackProvider != name {
		slog.Warn("primary provider failed, trying fallback",
			"primary", name,
			"fallback", g.fallbackProvider,
			"error", err,
		)
		return g.generateWithRetry(ctx, g.fallbackProvider, req)
	}
	return resp, err
}

func (g *gateway) generateWithRetry(ctx context.Context, name string, req GenerateRequest) (*GenerateResponse, error) {
	p, err := g.provider(name, "generation")
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt <= g.maxRetries; attempt++ {
		if attempt > 0 {
			if err := sleepBackoff(ctx, attempt); err != nil {
				return nil, err
			}
			slog.Debug("retrying generation call", "provider", name, "attempt", attempt)
		}

		resp, err := g.callGenerate(ctx, p, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("all retries exhausted for %s: %w", name, lastErr)
}

func (g *gateway) callGenerate(ctx context.Context, p Provider, req GenerateRequest) (*GenerateResponse, error) {
	if g.generateTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.generateTimeout)
		defer cancel()
	}
	return p.Generate(ctx, req)
}

func (g *gateway) Embed(ctx context.Context, req EmbedRequest) (*EmbedResponse, error) {
	name := req.Provider
	if name == "" {
		name = g.embedProvider
	}

	p, err := g.provider(name, "embedding")
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt <= g.maxRetries; attempt++ {
		if attempt > 0 {
			if err := sleepBackoff(ctx, attempt); err != nil {
				return nil, err
			}
			slog.Debug("retrying embedding call", "provider", name, "attempt", attempt)
		}

		resp, err := g.callEmbed(ctx, p, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("all retries exhausted for %s: %w", name, lastErr)
}

func (g *gateway) callEmbed(ctx context.Context, p Provider, req EmbedRequest) (*EmbedResponse, error) {
	if g.embedTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.embedTimeout)
		defer cancel()
	}
	return p.Embed(ctx, req)
}

func sleepBackoff(ctx context.Context, attempt int) error {
	backoff := time.Duration(attempt*attempt) * 500 * time.Millisecond
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(backoff):
		return nil
	}
}
