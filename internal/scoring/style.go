package scoring

import (
	"strings"

	"github.com/normanking/revoice/internal/profile"
)

// ═══════════════════════════════════════════════════════════════════════════════
// STYLE CONSISTENCY SCORER
// ═══════════════════════════════════════════════════════════════════════════════

// informalMarkers and formalMarkers anchor the formality check. A profile
// with formality below 0.4 should read casual; above 0.6, formal.
var (
	informalMarkers = []string{"gonna", "kinda", "sorta", "yeah", "nah", "stuff", "y'know"}
	formalMarkers   = []string{"therefore", "furthermore", "consequently", "moreover", "thus", "hence"}
)

// ScoreStyle scores how well a single response matches the subject's voice
// profile. The result is always in [0.1, 1.0]. A nil profile yields the
// neutral baseline.
func ScoreStyle(response string, p *profile.Profile) float64 {
	if p == nil {
		return 0.5
	}

	score := 0.5
	lower := strings.ToLower(response)

	// Vocabulary: frequent words should appear, avoided words should not
	for _, w := range p.FrequentWords {
		if w != "" && strings.Contains(lower, strings.ToLower(w)) {
			score += 0.05
		}
	}
	for _, w := range p.AvoidedWords {
		if w != "" && strings.Contains(lower, strings.ToLower(w)) {
			score -= 0.1
		}
	}

	// Punctuation habits
	hasEmDash := strings.Contains(response, "—")
	if p.Punctuation.UsesEmDash == hasEmDash {
		score += 0.05
	} else {
		score -= 0.05
	}

	hasEllipsis := strings.Contains(response, "...") || strings.Contains(response, "…")
	if p.Punctuation.UsesEllipsis == hasEllipsis {
		score += 0.05
	} else {
		score -= 0.05
	}

	if p.Punctuation.NeverExclaims && strings.Contains(response, "!") {
		score -= 0.05
	}

	// Formality alignment
	informal := containsAny(lower, informalMarkers)
	formal := containsAny(lower, formalMarkers)
	switch {
	case p.Formality < 0.4:
		if informal {
			score += 0.05
		}
		if formal {
			score -= 0.05
		}
	case p.Formality > 0.6:
		if formal {
			score += 0.05
		}
		if informal {
			score -= 0.05
		}
	}

	return Clamp(score, MinScore, MaxScore)
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}
