package ollama

import "strings"

// EstimateTokens gives a rough token count for prompt sizing logs using a
// words-per-token heuristic. Exact tokenization is not required here.
func EstimateTokens(text string) int {
	words := len(strings.Fields(text))
	return int(float64(words) * 1.33)
}
