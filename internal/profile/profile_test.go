package profile

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		profile Profile
		wantErr string
	}{
		{
			name:    "minimal valid profile",
			profile: Profile{Name: "ada-v2", Formality: 0.5},
		},
		{
			name:    "missing name",
			profile: Profile{Formality: 0.5},
			wantErr: "name is required",
		},
		{
			name:    "formality above one",
			profile: Profile{Name: "ada-v2", Formality: 1.5},
			wantErr: "formality must be in [0, 1]",
		},
		{
			name: "empty frequent word entry",
			profile: Profile{
				Name:          "ada-v2",
				Formality:     0.3,
				FrequentWords: []string{"honestly", "  "},
			},
			wantErr: "empty entry",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.profile.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestVocabularySummaryTruncates(t *testing.T) {
	p := Profile{Name: "v", Formality: 0.5}
	for i := 0; i < 30; i++ {
		p.FrequentWords = append(p.FrequentWords, "word")
	}

	summary := p.VocabularySummary()
	assert.Equal(t, 15, strings.Count(summary, "word"))
}

func TestDispositionSummary(t *testing.T) {
	p := Profile{Name: "v", Formality: 0.5}
	assert.Empty(t, p.DispositionSummary())

	p.TopicDispositions = map[string]string{"astronomy": "enthusiastic"}
	assert.Contains(t, p.DispositionSummary(), "- astronomy: enthusiastic")
}

func TestLoadFromYAML(t *testing.T) {
	data := []byte(`
name: ada-v2
formality: 0.35
frequent_words: [honestly, basically]
avoided_words: [utilize]
punctuation:
  uses_em_dash: true
  never_exclaims: true
constitution_prompt: "You are Ada."
topic_dispositions:
  cooking: curious
`)

	p, err := LoadFromYAML(data)
	require.NoError(t, err)

	assert.Equal(t, "ada-v2", p.Name)
	assert.InDelta(t, 0.35, p.Formality, 1e-9)
	assert.Equal(t, []string{"honestly", "basically"}, p.FrequentWords)
	assert.True(t, p.Punctuation.UsesEmDash)
	assert.True(t, p.Punctuation.NeverExclaims)
	assert.False(t, p.Punctuation.UsesEllipsis)
	assert.Equal(t, "You are Ada.", p.ConstitutionPrompt)
	assert.Equal(t, "curious", p.TopicDispositions["cooking"])
}

func TestLoadFromYAMLRejectsInvalid(t *testing.T) {
	_, err := LoadFromYAML([]byte("name: ada\nformality: 3.0\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid profile")
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles", "ada.yaml")
	orig := &Profile{
		Name:          "ada-v2",
		Formality:     0.6,
		FrequentWords: []string{"honestly"},
		Punctuation:   PunctuationStyle{UsesEllipsis: true},
	}

	require.NoError(t, orig.SaveToFile(path))

	loaded, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, orig, loaded)
}

func TestLoadFromFileMissing(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read profile file")
}
