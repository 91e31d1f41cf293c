package chunker

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

type Options struct {
	ChunkSize int // target chunk size in runes
	Overlap   int // runes carried over from the previous chunk
}

func DefaultOptions() Options {
	return Options{
		ChunkSize: 1000,
		Overlap:   200,
	}
}

// Chunk is one bounded-size fragment of a document. Ordinals are contiguous
// from 0 in input order.
type Chunk struct {
	Content string
	Ordinal int
}

// Split cuts text into ordered chunks, each within the size budget.
// Paragraph boundaries are preferred, then sentence boundaries, then
// whitespace; a run with no usable boundary is cut at the nearest
// whitespace inside the budget rather than mid-word. The result is fully
// determined by text and opts, so re-splitting the same input is
// idempotent.
func Split(text string, opts Options) []Chunk {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = 1000
	}
	if opts.Overlap < 0 || opts.Overlap >= opts.ChunkSize {
		opts.Overlap = 0
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	spans := splitSpans(text, opts.ChunkSize)

	var chunks []Chunk
	var current []string
	currentLen := 0

	flush := func() {
		if len(current) == 0 {
			return
		}
		chunks = append(chunks, Chunk{
			Content: strings.Join(current, " "),
			Ordinal: len(chunks),
		})

		// Carry trailing spans into the next chunk for context overlap.
		var carry []string
		carryLen := 0
		for i := len(current) - 1; i >= 0; i-- {
			n := utf8.RuneCountInString(current[i])
			if carryLen+n > opts.Overlap {
				break
			}
			carry = append([]string{current[i]}, carry...)
			carryLen += n + 1
		}
		current = carry
		currentLen = carryLen
	}

	for _, span := range spans {
		n := utf8.RuneCountInString(span)
		if currentLen > 0 && currentLen+n+1 > opts.ChunkSize {
			flush()
			// Overlap that would crowd out the new span is dropped.
			if currentLen+n+1 > opts.ChunkSize {
				current = nil
				currentLen = 0
			}
		}
		current = append(current, span)
		currentLen += n + 1
	}

	if len(current) > 0 {
		chunks = append(chunks, Chunk{
			Content: strings.Join(current, " "),
			Ordinal: len(chunks),
		})
	}

	return chunks
}

// splitSpans breaks text into pieces no larger than budget, preferring
// paragraph and sentence boundaries.
func splitSpans(text string, budget int) []string {
	var out []string
	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if utf8.RuneCountInString(para) <= budget {
			out = append(out, para)
			continue
		}
		for _, sent := range splitSentences(para) {
			sent = strings.TrimSpace(sent)
			if sent == "" {
				continue
			}
			if utf8.RuneCountInString(sent) <= budget {
				out = append(out, sent)
				continue
			}
			out = append(out, cutAtWhitespace(sent, budget)...)
		}
	}
	return out
}

func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	runes := []rune(text)
	for i, r := range runes {
		current.WriteRune(r)
		if (r == '.' || r == '!' || r == '?' || r == '\n') && i+1 < len(runes) && unicode.IsSpace(runes[i+1]) {
			sentences = append(sentences, current.String())
			current.Reset()
		}
	}

	if current.Len() > 0 {
		sentences = append(sentences, current.String())
	}

	return sentences
}

// cutAtWhitespace slices an oversized run into budget-sized pieces, cutting
// at the last whitespace inside the budget. Only a single token longer than
// the whole budget is ever cut mid-word.
func cutAtWhitespace(text string, budget int) []string {
	var out []string
	runes := []rune(text)

	for len(runes) > 0 {
		if len(runes) <= budget {
			piece := strings.TrimSpace(string(runes))
			if piece != "" {
				out = append(out, piece)
			}
			break
		}

		cut := -1
		for i := budget; i > 0; i-- {
			if unicode.IsSpace(runes[i]) {
				cut = i
				break
			}
		}
		if cut <= 0 {
			cut = budget
		}

		piece := strings.TrimSpace(string(runes[:cut]))
		if piece != "" {
			out = append(out, piece)
		}
		runes = []rune(strings.TrimSpace(string(runes[cut:])))
	}

	return out
}
