package tokenizer

import "strings"

// Estimate returns a rough token count for usage accounting. The engine
// only reports these counters outward; exact model-specific counts are the
// billing collaborator's problem.
func Estimate(text string) int {
	if strings.TrimSpace(text) == "" {
		return 0
	}
	words := strings.Fields(text)
	return max(len(words)*4/3, 1)
}
