package llm

import (
	"context"
	"errors"
)

// Provider abstracts one external model vendor (OpenAI, Anthropic, Gemini).
type Provider interface {
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)
	Embed(ctx context.Context, req EmbedRequest) (*EmbedResponse, error)
	Name() string
}

// Gateway routes calls to configured providers with retry and fallback.
type Gateway interface {
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)
	Embed(ctx context.Context, req EmbedRequest) (*EmbedResponse, error)

	// Configured reports whether any generation provider is registered.
	// With none, the engine runs in evidence-only mode.
	Configured() bool
}

// ErrEmbeddingNotSupported is returned by generation-only providers.
var ErrEmbeddingNotSupported = errors.New("provider does not support embeddings")

type Message struct {
	Role    string `json:"role"` // system, user, assistant
	Content string `json:"content"`
}

type GenerateRequest struct {
	Provider    string    `json:"provider,omitempty"`
	Model       string    `json:"model,omitempty"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type GenerateResponse struct {
	Provider     string `json:"provider"`
	Model        string `json:"model"`
	Content      string `json:"content"`
	InputTokens  int    `json:"input_tokens"`
	OutputTokens int    `json:"output_tokens"`
	TotalTokens  int    `json:"total_tokens"`
}

type EmbedRequest struct {
	Provider string   `json:"provider,omitempty"`
	Model    string   `json:"model,omitempty"`
	Input    []string `json:"input"`
}

type EmbedResponse struct {
	Provider   string      `json:"provider"`
	Model      string      `json:"model"`
	Embeddings [][]float32 `json:"embeddings"`
	Tokens     int         `json:"tokens"`
}
