package scoring

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/normanking/revoice/internal/profile"
)

func TestScoreQuality(t *testing.T) {
	natural := "Honestly, the hardest part of learning guitar wasn't the chords; " +
		"it was accepting that my hands would hurt for the first month. Once I got " +
		"past that, practice stopped feeling like a chore and started feeling like " +
		"a conversation with the instrument. I still play the same three songs most " +
		"nights, but they sound different every time, and that keeps it interesting " +
		"for me after all these years."

	tests := []struct {
		name     string
		response string
		prompt   string
		check    func(t *testing.T, score float64)
	}{
		{
			name:     "natural length scores above baseline",
			response: natural,
			prompt:   "Tell me about learning guitar",
			check: func(t *testing.T, score float64) {
				if score <= 0.5 {
					t.Errorf("expected score > 0.5, got %.3f", score)
				}
			},
		},
		{
			name:     "very short response penalized",
			response: "Sure, sounds good.",
			prompt:   "What do you think about remote work?",
			check: func(t *testing.T, score float64) {
				if score >= 0.5 {
					t.Errorf("expected score < 0.5, got %.3f", score)
				}
			},
		},
		{
			name:     "generic opener penalized",
			response: "Certainly! " + natural,
			prompt:   "Tell me about learning guitar",
			check: func(t *testing.T, score float64) {
				base := ScoreQuality(natural, "Tell me about learning guitar")
				if score >= base {
					t.Errorf("generic opener should lower score: %.3f >= %.3f", score, base)
				}
			},
		},
		{
			name:     "repetitive text penalized for low diversity",
			response: strings.Repeat("the same words over and over ", 20),
			prompt:   "Describe your day",
			check: func(t *testing.T, score float64) {
				if score >= 0.5 {
					t.Errorf("expected score < 0.5 for repetitive text, got %.3f", score)
				}
			},
		},
		{
			name:     "prompt keyword echo rewarded",
			response: natural,
			prompt:   "guitar practice habits",
			check: func(t *testing.T, score float64) {
				noEcho := ScoreQuality(natural, "zzz qqq")
				if score <= noEcho {
					t.Errorf("keyword echo should raise score: %.3f <= %.3f", score, noEcho)
				}
			},
		},
		{
			name:     "empty response stays in bounds",
			response: "",
			prompt:   "anything",
			check: func(t *testing.T, score float64) {
				if score < MinScore || score > MaxScore {
					t.Errorf("score %.3f out of bounds", score)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, ScoreQuality(tt.response, tt.prompt))
		})
	}
}

func TestScoreStyle(t *testing.T) {
	p := &profile.Profile{
		Name:          "test-subject",
		FrequentWords: []string{"honestly", "interesting"},
		AvoidedWords:  []string{"utilize", "synergy"},
		Punctuation: profile.PunctuationStyle{
			UsesEmDash:    false,
			UsesEllipsis:  false,
			NeverExclaims: true,
		},
		Formality: 0.3,
	}

	t.Run("matching vocabulary raises score", func(t *testing.T) {
		match := ScoreStyle("Honestly, that's kinda interesting to me.", p)
		miss := ScoreStyle("We should utilize synergy going forward!", p)
		if match <= miss {
			t.Errorf("matching response should outscore mismatched: %.3f <= %.3f", match, miss)
		}
	})

	t.Run("nil profile returns baseline", func(t *testing.T) {
		if got := ScoreStyle("anything", nil); got != 0.5 {
			t.Errorf("expected 0.5, got %.3f", got)
		}
	})

	t.Run("exclamation penalized when profile never exclaims", func(t *testing.T) {
		plain := ScoreStyle("Honestly, that works for me.", p)
		loud := ScoreStyle("Honestly, that works for me!", p)
		if loud >= plain {
			t.Errorf("exclamation should lower score: %.3f >= %.3f", loud, plain)
		}
	})
}

// Scores must hold their bounds for arbitrary inputs.
func TestScoreBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	vocab := []string{
		"the", "honestly", "utilize", "guitar", "—", "...", "!", ";",
		"certainly,", "delve", "furthermore", "gonna", "therefore", "same",
	}

	randomText := func(n int) string {
		words := make([]string, n)
		for i := range words {
			words[i] = vocab[rng.Intn(len(vocab))]
		}
		return strings.Join(words, " ")
	}

	profiles := []*profile.Profile{
		nil,
		{FrequentWords: vocab, AvoidedWords: vocab, Formality: 0.9,
			Punctuation: profile.PunctuationStyle{UsesEmDash: true, UsesEllipsis: true, NeverExclaims: true}},
		{AvoidedWords: vocab, Formality: 0.1},
	}

	for i := 0; i < 500; i++ {
		resp := randomText(rng.Intn(500))
		prompt := randomText(rng.Intn(20))

		if q := ScoreQuality(resp, prompt); q < MinScore || q > MaxScore {
			t.Fatalf("quality score %.3f out of [%.1f, %.1f] for input %q", q, MinScore, MaxScore, resp[:min(40, len(resp))])
		}
		for _, p := range profiles {
			if s := ScoreStyle(resp, p); s < MinScore || s > MaxScore {
				t.Fatalf("style score %.3f out of [%.1f, %.1f]", s, MinScore, MaxScore)
			}
		}
	}
}
