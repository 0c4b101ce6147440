// Package scoring provides the pure heuristic scorers used during
// distillation: response quality and style consistency. Both are
// deterministic, side-effect-free functions so large batches remain
// reproducible under test.
package scoring

import (
	"strings"
)

// ═══════════════════════════════════════════════════════════════════════════════
// QUALITY SCORER
// ═══════════════════════════════════════════════════════════════════════════════

// Score bounds for quality and style.
const (
	MinScore = 0.1
	MaxScore = 1.0
)

// genericOpeners are assistant-flavored openings that flag a response as
// generic rather than voiced.
var genericOpeners = []string{
	"certainly",
	"i'd be happy",
	"i would be happy",
	"of course!",
	"great question",
	"as an ai",
	"i'm here to help",
}

// fillerWords are overused LLM filler terms. Each occurrence costs a little.
var fillerWords = []string{
	"delve",
	"tapestry",
	"furthermore",
	"moreover",
	"in conclusion",
	"it's important to note",
	"navigate the complexities",
	"rich tapestry",
	"multifaceted",
}

// ScoreQuality scores a single teacher response against its originating
// prompt. The result is always in [0.1, 1.0].
//
// The heuristic rewards natural length, lexical diversity, naturalistic
// punctuation, and prompt engagement; it penalizes extreme lengths, generic
// assistant openers, and filler vocabulary.
func ScoreQuality(response, prompt string) float64 {
	score := 0.5

	words := strings.Fields(response)
	wordCount := len(words)

	// Length: 30-200 words reads natural, extremes read truncated or rambling
	switch {
	case wordCount >= 30 && wordCount <= 200:
		score += 0.15
	case wordCount < 15 || wordCount > 400:
		score -= 0.15
	}

	// Lexical diversity: unique lowercase tokens over total
	if wordCount > 0 {
		unique := make(map[string]struct{}, wordCount)
		for _, w := range words {
			unique[strings.ToLower(w)] = struct{}{}
		}
		diversity := float64(len(unique)) / float64(wordCount)
		if diversity > 0.65 {
			score += 0.1
		} else if diversity < 0.35 {
			score -= 0.1
		}
	}

	// Naturalistic punctuation
	if strings.Contains(response, ";") {
		score += 0.03
	}
	if strings.Contains(response, "—") {
		score += 0.03
	}
	if strings.Contains(response, "...") || strings.Contains(response, "…") {
		score += 0.03
	}

	lower := strings.ToLower(response)

	// Generic assistant openers
	for _, opener := range genericOpeners {
		if strings.HasPrefix(lower, opener) {
			score -= 0.1
			break
		}
	}

	// Filler vocabulary
	for _, filler := range fillerWords {
		if strings.Contains(lower, filler) {
			score -= 0.05
		}
	}

	// Prompt engagement: any 4+-letter prompt keyword reappearing
	if promptKeywordEcho(lower, prompt) {
		score += 0.05
	}

	return Clamp(score, MinScore, MaxScore)
}

// promptKeywordEcho reports whether any 4+-letter keyword from the prompt
// reappears in the (lowercased) response.
func promptKeywordEcho(responseLower, prompt string) bool {
	for _, kw := range strings.Fields(strings.ToLower(prompt)) {
		kw = strings.Trim(kw, ".,!?;:\"'()")
		if len(kw) >= 4 && strings.Contains(responseLower, kw) {
			return true
		}
	}
	return false
}

// Clamp constrains a value to [min, max].
func Clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
