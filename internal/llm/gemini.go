package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiProvider talks to the Google generative language API for both
// generation and embeddings.
type GeminiProvider struct {
	client *genai.Client
}

func NewGeminiProvider(ctx context.Context, apiKey string) (*GeminiProvider, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &GeminiProvider{client: client}, nil
}

func (p *GeminiProvider) Name() string { return "gemini" }

func (p *GeminiProvider) Close() error { return p.client.Close() }

func (p *GeminiProvider) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	modelName := req.Model
	if modelName == "" {
		modelName = "gemini-2.5-flash"
	}

	// A fresh model per call keeps per-request system instructions from
	// racing across goroutines.
	model := p.client.GenerativeModel(modelName)
	if req.Temperature > 0 {
		model.SetTemperature(float32(req.Temperature))
	}
	if req.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(req.MaxTokens))
	}

	var userParts []string
	for _, m := range req.Messages {
		if m.Role == "system" {
			model.SystemInstruction = &genai.Content{
				Parts: []genai.Part{genai.Text(m.Content)},
			}
			continue
		}
		userParts = append(userParts, m.Content)
	}

	resp, err := model.GenerateContent(ctx, genai.Text(strings.Join(userParts, "\n\n")))
	if err != nil {
		return nil, fmt.Errorf("gemini generate: %w", err)
	}

	var sb strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				sb.WriteString(string(text))
			}
		}
	}

	out := &GenerateResponse{
		Provider: "gemini",
		Model:    modelName,
		Content:  sb.String(),
	}
	if resp.UsageMetadata != nil {
		out.InputTokens = int(resp.UsageMetadata.PromptTokenCount)
		out.OutputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
		out.TotalTokens = int(resp.UsageMetadata.TotalTokenCount)
	}
	return out, nil
}

func (p *GeminiProvider) Embed(ctx context.Context, req EmbedRequest) (*EmbedResponse, error) {
	modelName := req.Model
	if modelName == "" {
		modelName = "text-embedding-004"
	}

	model := p.client.EmbeddingModel(modelName)
	batch := model.NewBatch()
	for _, text := range req.Input {
		batch.AddContent(genai.Text(text))
	}

	resp, err := model.BatchEmbedContents(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("gemini embedding: %w", err)
	}
	if len(resp.Embeddings) != len(req.Input) {
		return nil, fmt.Errorf("gemini embedding: got %d vectors for %d inputs", len(resp.Embeddings), len(req.Input))
	}

	embeddings := make([][]float32, len(resp.Embeddings))
	for i, e := range resp.Embeddings {
		values := make([]float32, len(e.Values))
		copy(values, e.Values)
		embeddings[i] = values
	}

	return &EmbedResponse{
		Provider:   "gemini",
		Model:      modelName,
		Embeddings: embeddings,
	}, nil
}
