// Package profile defines the personality profile consumed by the migration
// pipeline. The profile is extracted elsewhere (the host application owns the
// extraction algorithm); this package only models, loads, and validates it.
package profile

import (
	"fmt"
	"strings"
)

// Profile is the vocabulary/punctuation/formality signature of a fine-tuned
// model's voice. Style scoring and prompt generation consume it opaquely.
type Profile struct {
	// Name identifies the subject voice (e.g., "ada-v2")
	Name string `yaml:"name" json:"name"`

	// FrequentWords are high-frequency vocabulary items characteristic of the voice
	FrequentWords []string `yaml:"frequent_words" json:"frequent_words"`

	// AvoidedWords are vocabulary items the voice never uses
	AvoidedWords []string `yaml:"avoided_words" json:"avoided_words"`

	// Punctuation captures punctuation-usage habits
	Punctuation PunctuationStyle `yaml:"punctuation" json:"punctuation"`

	// Formality is 0 (very informal) to 1 (very formal)
	Formality float64 `yaml:"formality" json:"formality"`

	// TopicDispositions maps topics to the voice's stance or interest level,
	// injected as context during prompt generation
	TopicDispositions map[string]string `yaml:"topic_dispositions" json:"topic_dispositions,omitempty"`

	// ConstitutionPrompt is the system prompt packaged with every SFT example
	ConstitutionPrompt string `yaml:"constitution_prompt" json:"constitution_prompt"`
}

// PunctuationStyle captures the punctuation habits of a voice.
type PunctuationStyle struct {
	// UsesEmDash is true when the voice habitually uses em dashes
	UsesEmDash bool `yaml:"uses_em_dash" json:"uses_em_dash"`
	// UsesEllipsis is true when the voice habitually trails with ellipses
	UsesEllipsis bool `yaml:"uses_ellipsis" json:"uses_ellipsis"`
	// NeverExclaims is true when the voice never uses exclamation marks
	NeverExclaims bool `yaml:"never_exclaims" json:"never_exclaims"`
}

// Validate checks that the profile is internally consistent.
func (p *Profile) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("profile name is required")
	}
	if p.Formality < 0 || p.Formality > 1 {
		return fmt.Errorf("formality must be in [0, 1], got %.2f", p.Formality)
	}
	for _, w := range p.FrequentWords {
		if strings.TrimSpace(w) == "" {
			return fmt.Errorf("frequent_words contains an empty entry")
		}
	}
	return nil
}

// VocabularySummary returns a short comma-joined summary of the voice's
// vocabulary for injection into generation prompts.
func (p *Profile) VocabularySummary() string {
	const maxWords = 15
	words := p.FrequentWords
	if len(words) > maxWords {
		words = words[:maxWords]
	}
	return strings.Join(words, ", ")
}

// DispositionSummary renders topic dispositions as "topic: stance" lines.
func (p *Profile) DispositionSummary() string {
	if len(p.TopicDispositions) == 0 {
		return ""
	}
	var sb strings.Builder
	for topic, stance := range p.TopicDispositions {
		sb.WriteString(fmt.Sprintf("- %s: %s\n", topic, stance))
	}
	return sb.String()
}
