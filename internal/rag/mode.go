package rag

import (
	"fmt"
	"strings"

	"github.com/DemianGo/laravel-rag-vertex-full-sub004/internal/models"
)

// Mode is the classified shape of the expected answer.
type Mode string

const (
	ModeAuto         Mode = "auto"
	ModeDirect       Mode = "direct"
	ModeSummary      Mode = "summary"
	ModeList         Mode = "list"
	ModeQuote        Mode = "quote"
	ModeTable        Mode = "table"
	ModeDocumentFull Mode = "document_full"
)

func ParseMode(s string) (Mode, error) {
	if s == "" {
		return ModeAuto, nil
	}
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeAuto, ModeDirect, ModeSummary, ModeList, ModeQuote, ModeTable, ModeDocumentFull:
		return m, nil
	default:
		return "", fmt.Errorf("%w: unknown mode %q", models.ErrValidation, s)
	}
}

type modeRule struct {
	mode     Mode
	keywords []string
}

// Rules run top to bottom, most specific first. Keyword sets cover English
// and Portuguese since most tenant queries arrive in Portuguese.
var modeRules = []modeRule{
	{ModeDocumentFull, []string{
		"full document", "entire document", "whole document", "complete document",
		"documento completo", "documento inteiro", "texto completo", "documento todo",
	}},
	{ModeQuote, []string{
		"quote", "verbatim", "exact words", "word for word", "exact wording",
		"citação", "cite textualmente", "palavras exatas", "trecho exato",
		"literalmente", "ipsis litteris",
	}},
	{ModeTable, []string{
		"table", "tabular", "compare", "comparison", "side by side", "values for",
		"tabela", "comparar", "comparativo", "compare os", "lado a lado", "valores de",
	}},
	{ModeList, []string{
		"list", "liste", "lista", "listar", "enumerate", "enumere", "bullet",
		"steps", "which items", "what are the items",
		"passos", "etapas", "quais itens", "quais são os itens", "os itens", "tópicos",
	}},
	{ModeSummary, []string{
		"summarize", "summary", "summarise", "overview", "main points", "tl;dr",
		"resumo", "resuma", "resumir", "sumário", "visão geral", "principais pontos",
		"em poucas palavras",
	}},
}

// Classify maps a query to a response mode. An unrecognized query resolves
// to ModeDirect, never an error.
func Classify(query string) Mode {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return ModeDirect
	}
	for _, rule := range modeRules {
		for _, kw := range rule.keywords {
			if strings.Contains(q, kw) {
				return rule.mode
			}
		}
	}
	return ModeDirect
}
