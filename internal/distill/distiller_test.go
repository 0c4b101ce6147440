package distill

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/normanking/revoice/internal/llm"
	"github.com/normanking/revoice/internal/profile"
	"github.com/normanking/revoice/pkg/types"
)

// scriptedProvider returns a canned response per prompt text, or an error
// when the script maps the prompt to "".
type scriptedProvider struct {
	mu      sync.Mutex
	script  map[string]string
	defResp string
	calls   int
}

func (s *scriptedProvider) Chat(_ context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()

	prompt := req.Messages[len(req.Messages)-1].Content
	if reply, ok := s.script[prompt]; ok {
		if reply == "" {
			return nil, errors.New("scripted failure")
		}
		return &llm.ChatResponse{Content: reply}, nil
	}
	return &llm.ChatResponse{Content: s.defResp}, nil
}

func (s *scriptedProvider) Name() string    { return "scripted" }
func (s *scriptedProvider) Available() bool { return true }

func makePrompts(n int) []types.CorpusPrompt {
	prompts := make([]types.CorpusPrompt, n)
	for i := range prompts {
		prompts[i] = types.CorpusPrompt{
			Text:     "prompt-" + strings.Repeat("x", i+1),
			Category: types.CategoryPersonal,
		}
	}
	return prompts
}

const goodResponse = "Honestly, I think about this more than I should. There is something " +
	"about the question that keeps pulling me back, and every answer I land on feels " +
	"provisional at best. Still, here is where I stand today."

func TestDistillFailureIsolation(t *testing.T) {
	prompts := makePrompts(12)
	sp := &scriptedProvider{
		defResp: goodResponse,
		script: map[string]string{
			prompts[2].Text: "", // scripted call failure
			prompts[7].Text: "", // scripted call failure
			prompts[9].Text: "hi", // degenerate, below minimum length
		},
	}

	d := New(sp, "subject-model")
	pairs, err := d.Distill(context.Background(), prompts, nil, nil)
	if err != nil {
		t.Fatalf("Distill: %v", err)
	}

	if len(pairs) != 9 {
		t.Errorf("expected 9 surviving pairs (12 - 2 failures - 1 degenerate), got %d", len(pairs))
	}
	for _, pair := range pairs {
		if pair.ID == "" {
			t.Error("pair missing ID")
		}
		if pair.QualityScore < 0.1 || pair.QualityScore > 1.0 {
			t.Errorf("quality score %.3f out of bounds", pair.QualityScore)
		}
		if pair.StyleScore != nil {
			t.Error("style score set without a profile")
		}
	}
}

func TestDistillOrderFollowsCorpus(t *testing.T) {
	prompts := makePrompts(7)
	sp := &scriptedProvider{defResp: goodResponse}

	d := New(sp, "subject-model")
	pairs, err := d.Distill(context.Background(), prompts, nil, nil)
	if err != nil {
		t.Fatalf("Distill: %v", err)
	}

	if len(pairs) != len(prompts) {
		t.Fatalf("expected %d pairs, got %d", len(prompts), len(pairs))
	}
	for i, pair := range pairs {
		if pair.Prompt != prompts[i].Text {
			t.Errorf("pair %d prompt = %q, want %q", i, pair.Prompt, prompts[i].Text)
		}
	}
}

func TestDistillProgressPerBatch(t *testing.T) {
	prompts := makePrompts(11) // 3 batches: 5, 5, 1
	sp := &scriptedProvider{defResp: goodResponse}

	var reports [][2]int
	d := New(sp, "subject-model")
	_, err := d.Distill(context.Background(), prompts, nil, func(completed, total int) {
		reports = append(reports, [2]int{completed, total})
	})
	if err != nil {
		t.Fatalf("Distill: %v", err)
	}

	if len(reports) != 3 {
		t.Fatalf("expected 3 progress reports, got %d", len(reports))
	}
	want := [][2]int{{5, 11}, {10, 11}, {11, 11}}
	for i, r := range reports {
		if r != want[i] {
			t.Errorf("report %d = %v, want %v", i, r, want[i])
		}
	}
}

func TestDistillWithProfileSetsStyleScore(t *testing.T) {
	p := &profile.Profile{
		Name:          "subject",
		FrequentWords: []string{"honestly"},
		Formality:     0.3,
	}
	sp := &scriptedProvider{defResp: goodResponse}

	d := New(sp, "subject-model")
	pairs, err := d.Distill(context.Background(), makePrompts(3), p, nil)
	if err != nil {
		t.Fatalf("Distill: %v", err)
	}

	for _, pair := range pairs {
		if pair.StyleScore == nil {
			t.Fatal("expected style score when profile is supplied")
		}
		if *pair.StyleScore < 0.1 || *pair.StyleScore > 1.0 {
			t.Errorf("style score %.3f out of bounds", *pair.StyleScore)
		}
	}
}

func TestFilterByQuality(t *testing.T) {
	style := func(v float64) *float64 { return &v }
	pairs := []types.DistillationPair{
		{ID: "a", QualityScore: 0.9, StyleScore: style(0.8)},
		{ID: "b", QualityScore: 0.9, StyleScore: style(0.3)},
		{ID: "c", QualityScore: 0.4, StyleScore: style(0.9)},
		{ID: "d", QualityScore: 0.7}, // no style score
	}

	t.Run("quality only", func(t *testing.T) {
		got := FilterByQuality(pairs, 0.6, 0)
		if len(got) != 3 {
			t.Errorf("expected 3 pairs, got %d", len(got))
		}
	})

	t.Run("quality and style", func(t *testing.T) {
		got := FilterByQuality(pairs, 0.6, 0.5)
		if len(got) != 2 {
			t.Fatalf("expected 2 pairs, got %d", len(got))
		}
		if got[0].ID != "a" || got[1].ID != "d" {
			t.Errorf("unexpected survivors: %s, %s", got[0].ID, got[1].ID)
		}
	})

	t.Run("raising threshold never adds pairs", func(t *testing.T) {
		prev := len(FilterByQuality(pairs, 0, 0))
		for q := 0.1; q <= 1.0; q += 0.1 {
			n := len(FilterByQuality(pairs, q, 0))
			if n > prev {
				t.Errorf("filter at %.1f returned %d pairs, more than %d at lower threshold", q, n, prev)
			}
			prev = n
		}
	})
}
