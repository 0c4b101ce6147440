package corpus

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/normanking/revoice/internal/llm"
	"github.com/normanking/revoice/internal/profile"
	"github.com/normanking/revoice/pkg/types"
)

type fakeProvider struct {
	reply    string
	err      error
	calls    int
	lastUser string
}

func (f *fakeProvider) Chat(_ context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	f.calls++
	f.lastUser = req.Messages[len(req.Messages)-1].Content
	if f.err != nil {
		return nil, f.err
	}
	return &llm.ChatResponse{Content: f.reply}, nil
}

func (f *fakeProvider) Name() string    { return "fake" }
func (f *fakeProvider) Available() bool { return true }

func TestBasePromptsCoverAllCategories(t *testing.T) {
	seen := make(map[types.PromptCategory]int)
	for _, p := range BasePrompts() {
		seen[p.Category]++
	}
	for _, cat := range types.AllCategories() {
		if seen[cat] == 0 {
			t.Errorf("category %s has no base prompts", cat)
		}
	}
}

func TestParsePromptLines(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{
			name: "numbered list",
			in:   "1. What keeps you up at night?\n2. Do you believe in luck?",
			want: []string{"What keeps you up at night?", "Do you believe in luck?"},
		},
		{
			name: "bullets and blanks",
			in:   "- First prompt\n\n* Second prompt\n",
			want: []string{"First prompt", "Second prompt"},
		},
		{
			name: "quoted lines",
			in:   "\"How do you relax?\"",
			want: []string{"How do you relax?"},
		},
		{
			name: "numbered with paren",
			in:   "1) One\n2) Two",
			want: []string{"One", "Two"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParsePromptLines(tt.in)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d lines, want %d: %v", len(got), len(tt.want), got)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("line %d = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestGenerateFailureIsNotFatal(t *testing.T) {
	g := NewGenerator(&fakeProvider{err: errors.New("model offline")}, "test-model")
	target := len(BasePrompts()) + 16
	prompts := g.Generate(context.Background(), nil, target)

	if len(prompts) != len(BasePrompts()) {
		t.Errorf("expected base corpus only on total generation failure, got %d prompts", len(prompts))
	}
}

func TestGenerateFillsUpToTarget(t *testing.T) {
	g := NewGenerator(&fakeProvider{reply: "One prompt\nTwo prompt\nThree prompt\nFour prompt"}, "test-model")
	target := len(BasePrompts()) + 6
	prompts := g.Generate(context.Background(), nil, target)

	if len(prompts) != target {
		t.Errorf("got %d prompts, want exactly %d", len(prompts), target)
	}
}

func TestGenerateTruncatesToTarget(t *testing.T) {
	provider := &fakeProvider{reply: "Extra prompt"}
	g := NewGenerator(provider, "test-model")
	target := len(BasePrompts()) - 10
	prompts := g.Generate(context.Background(), nil, target)

	if len(prompts) != target {
		t.Errorf("got %d prompts, want %d", len(prompts), target)
	}
	if provider.calls != 0 {
		t.Errorf("no generation calls expected when the base corpus covers the target, got %d", provider.calls)
	}
}

func TestGenerateInjectsProfileContext(t *testing.T) {
	provider := &fakeProvider{reply: "A prompt"}
	g := NewGenerator(provider, "test-model")
	p := &profile.Profile{
		Name:              "ada-v2",
		Formality:         0.4,
		FrequentWords:     []string{"honestly", "basically"},
		TopicDispositions: map[string]string{"astronomy": "enthusiastic"},
	}

	g.Generate(context.Background(), p, len(BasePrompts())+2)

	if provider.calls == 0 {
		t.Fatal("expected at least one generation call")
	}
	if !strings.Contains(provider.lastUser, "honestly, basically") {
		t.Errorf("generation prompt missing profile vocabulary: %q", provider.lastUser)
	}
	if !strings.Contains(provider.lastUser, "astronomy: enthusiastic") {
		t.Errorf("generation prompt missing topic dispositions: %q", provider.lastUser)
	}
}
