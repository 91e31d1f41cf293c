package rag

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/DemianGo/laravel-rag-vertex-full-sub004/internal/llm"
	"github.com/DemianGo/laravel-rag-vertex-full-sub004/internal/vectorstore"
)

// StrictnessMax disables the generation model entirely: the answer is the
// retrieved evidence, verbatim.
const StrictnessMax = 3

// Answer is the synthesizer's output for one query.
type Answer struct {
	Text       string  `json:"text"`
	Mode       Mode    `json:"mode"`
	ChunksUsed int     `json:"chunks_used"`
	Confidence float64 `json:"confidence"`

	// Degraded marks an evidence-only answer produced because the
	// generation model call failed, not because the caller asked for it.
	Degraded bool `json:"degraded,omitempty"`

	Provider         string `json:"provider,omitempty"`
	Model            string `json:"model,omitempty"`
	GenerationTokens int    `json:"generation_tokens,omitempty"`
}

// SynthesizeRequest carries everything the synthesizer needs for one
// answer. Results arrive in retrieval rank order; for document_full the
// caller supplies every chunk of the document in ordinal order instead.
type SynthesizeRequest struct {
	Query      string
	Mode       Mode
	Strictness int
	Results    []vectorstore.SearchResult

	// SummaryWordLimit caps a document_full answer. Zero means return the
	// full text without a summarization call.
	SummaryWordLimit int
}

var modeInstructions = map[Mode]string{
	ModeDirect: "Answer the question directly and concisely using only the provided context. " +
		"If the context does not contain the answer, say that the documents do not cover it.",
	ModeSummary: "Write a concise summary of the provided context, focusing on what is relevant to the question.",
	ModeList: "Answer as a numbered list, one item per line, using only facts from the provided context.",
	ModeTable: "Answer as a markdown table built only from facts in the provided context. " +
		"Choose column headers that fit the question.",
}

// Synthesizer turns ranked evidence into a final answer, calling the
// generation gateway only when the mode and strictness allow it.
type Synthesizer struct {
	gateway   llm.Gateway
	model     string
	maxTokens int
}

func NewSynthesizer(gateway llm.Gateway, model string, maxTokens int) *Synthesizer {
	return &Synthesizer{gateway: gateway, model: model, maxTokens: maxTokens}
}

// Synthesize produces the answer for req. Generation failures never fail
// the request: the answer degrades to raw evidence with Degraded set.
func (s *Synthesizer) Synthesize(ctx context.Context, req SynthesizeRequest) (*Answer, error) {
	base := Answer{
		Mode:       req.Mode,
		ChunksUsed: len(req.Results),
		Confidence: confidence(req.Results),
	}

	if len(req.Results) == 0 {
		base.Text = "No relevant passages were found for this query."
		base.Confidence = 0
		return &base, nil
	}

	switch req.Mode {
	case ModeQuote:
		// Quotes are never rephrased, whatever the strictness.
		base.Text = joinContents(req.Results)
		return &base, nil

	case ModeDocumentFull:
		full := joinContents(req.Results)
		if req.SummaryWordLimit <= 0 || req.Strictness >= StrictnessMax {
			base.Text = full
			return &base, nil
		}
		instruction := fmt.Sprintf(
			"Summarize the following document in at most %d words, preserving its structure and order.",
			req.SummaryWordLimit)
		return s.generate(ctx, base, instruction, full, req.Query)
	}

	if req.Strictness >= StrictnessMax || !s.gateway.Configured() {
		base.Text = evidenceAnswer(req.Mode, req.Results)
		return &base, nil
	}

	instruction, ok := modeInstructions[req.Mode]
	if !ok {
		instruction = modeInstructions[ModeDirect]
	}
	return s.generate(ctx, base, instruction, buildContext(req.Results), req.Query)
}

func (s *Synthesizer) generate(ctx context.Context, base Answer, instruction, contextText, query string) (*Answer, error) {
	resp, err := s.gateway.Generate(ctx, llm.GenerateRequest{
		Model: s.model,
		Messages: []llm.Message{
			{Role: "system", Content: instruction + "\n\nContext:\n" + contextText},
			{Role: "user", Content: query},
		},
		MaxTokens: s.maxTokens,
	})
	if err != nil {
		slog.Warn("generation unavailable, returning raw evidence", "error", err)
		base.Text = contextText
		base.Degraded = true
		return &base, nil
	}

	base.Text = strings.TrimSpace(resp.Content)
	base.Provider = resp.Provider
	base.Model = resp.Model
	base.GenerationTokens = resp.TotalTokens
	return &base, nil
}

// buildContext numbers each passage so generated answers can reference
// sources by position.
func buildContext(results []vectorstore.SearchResult) string {
	var b strings.Builder
	for i, res := range results {
		fmt.Fprintf(&b, "[%d] %s\n\n", i+1, strings.TrimSpace(res.Content))
	}
	return strings.TrimSpace(b.String())
}

func joinContents(results []vectorstore.SearchResult) string {
	parts := make([]string, 0, len(results))
	for _, res := range results {
		parts = append(parts, strings.TrimSpace(res.Content))
	}
	return strings.Join(parts, "\n\n")
}

// evidenceAnswer renders an answer straight from retrieved chunks. List
// mode re-enumerates items found in the evidence; everything else is the
// evidence verbatim in rank order.
func evidenceAnswer(mode Mode, results []vectorstore.SearchResult) string {
	if mode == ModeList {
		if items := extractListItems(results); len(items) > 0 {
			var b strings.Builder
			for i, item := range items {
				fmt.Fprintf(&b, "%d. %s\n", i+1, item)
			}
			return strings.TrimSpace(b.String())
		}
	}
	return joinContents(results)
}

var listItemRe = regexp.MustCompile(`^\s*(?:\d+[.)]|[-*\x{2022}])\s+(.+)$`)

// extractListItems pulls enumerated or bulleted lines out of the evidence,
// in rank then line order, deduplicated.
func extractListItems(results []vectorstore.SearchResult) []string {
	var items []string
	seen := make(map[string]bool)
	for _, res := range results {
		for _, line := range strings.Split(res.Content, "\n") {
			m := listItemRe.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			item := strings.TrimSpace(m[1])
			if item == "" || seen[item] {
				continue
			}
			seen[item] = true
			items = append(items, item)
		}
	}
	return items
}

// confidence is the top retrieval score clamped to [0, 1].
func confidence(results []vectorstore.SearchResult) float64 {
	if len(results) == 0 {
		return 0
	}
	score := results[0].Score
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
