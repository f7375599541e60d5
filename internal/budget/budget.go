// Package budget sizes page text so a prompt fits a model's context window.
package budget

import (
	"math"
	"strconv"
	"strings"
	"unicode/utf8"
)

// charsPerToken is a conservative estimate for English text.
const charsPerToken = 4

// EstimateTokens returns the estimated token count of a string, never less
// than 1 for non-empty input.
func EstimateTokens(s string) int {
	if s == "" {
		return 0
	}
	return int(math.Ceil(float64(len(s)) / charsPerToken))
}

// ModelContextTokens returns an estimated maximum context window for a given
// model name. Unknown models fall back to 8192.
func ModelContextTokens(modelName string) int {
	name := strings.ToLower(strings.TrimSpace(modelName))
	if name == "" {
		return 8192
	}
	if v, ok := knownModelMax[name]; ok {
		return v
	}
	if n, ok := sizeSuffix(name); ok {
		return n
	}
	if strings.Contains(name, "-mini") {
		return 128_000
	}
	return 8192
}

// HeadroomTokens is the larger of 5% of the context or 512 tokens, kept free
// for message framing and tokenizer drift.
func HeadroomTokens(modelName string) int {
	dyn := int(math.Ceil(float64(ModelContextTokens(modelName)) * 0.05))
	return max(dyn, 512)
}

// InputTokens is how many tokens of page text fit once the fixed prompt parts
// and the output reservation are accounted for. Never negative.
func InputTokens(modelName string, reservedForOutput int, fixedPrompt string) int {
	remaining := ModelContextTokens(modelName) - HeadroomTokens(modelName) - max(reservedForOutput, 0) - EstimateTokens(fixedPrompt)
	return max(remaining, 0)
}

// Truncate cuts s to at most maxTokens estimated tokens, on a rune boundary,
// preferring to stop at the last whitespace. The second result reports
// whether anything was cut.
func Truncate(s string, maxTokens int) (string, bool) {
	limit := maxTokens * charsPerToken
	if maxTokens <= 0 {
		return "", s != ""
	}
	if len(s) <= limit {
		return s, false
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	head := s[:cut]
	if i := strings.LastIndexAny(head, " \n\t"); i > len(head)/2 {
		head = head[:i]
	}
	return strings.TrimSpace(head), true
}

// knownModelMax contains rough context sizes for common model identifiers.
var knownModelMax = map[string]int{
	"gpt-4o":        128_000,
	"gpt-4o-mini":   128_000,
	"gpt-4.1":       1_000_000,
	"gpt-4.1-mini":  1_000_000,
	"gpt-4-turbo":   128_000,
	"gpt-3.5-turbo": 16_384,

	"llama-3":   8_192,
	"llama-3.1": 128_000,

	// seq2seq summarizers served locally
	"flan-t5-small": 512,
	"flan-t5-base":  512,
	"t5-small":      512,

	"openai/gpt-oss-20b": 4_096,
	"gpt-oss-20b":        4_096,
}

// sizeSuffix understands names ending in a context size like "-128k" or "1m".
func sizeSuffix(name string) (int, bool) {
	var mult int
	switch {
	case strings.HasSuffix(name, "k"):
		mult = 1_000
	case strings.HasSuffix(name, "m"):
		mult = 1_000_000
	default:
		return 0, false
	}
	digits := name[:len(name)-1]
	start := len(digits)
	for start > 0 && digits[start-1] >= '0' && digits[start-1] <= '9' {
		start--
	}
	if start == len(digits) {
		return 0, false
	}
	n, err := strconv.Atoi(digits[start:])
	if err != nil || n <= 0 {
		return 0, false
	}
	return n * mult, true
}
