package judge

import (
	"context"
	"errors"
	"testing"

	"github.com/normanking/revoice/internal/llm"
)

type fakeProvider struct {
	reply string
	err   error
	calls int
}

func (f *fakeProvider) Chat(_ context.Context, _ *llm.ChatRequest) (*llm.ChatResponse, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &llm.ChatResponse{Content: f.reply}, nil
}

func (f *fakeProvider) Name() string    { return "fake" }
func (f *fakeProvider) Available() bool { return true }

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "bare object",
			in:   `{"score": 0.8}`,
			want: `{"score": 0.8}`,
		},
		{
			name: "object wrapped in prose",
			in:   `Here is my assessment: {"score": 0.8, "reason": "fine"} hope that helps`,
			want: `{"score": 0.8, "reason": "fine"}`,
		},
		{
			name: "markdown fenced",
			in:   "```json\n{\"score\": 0.5}\n```",
			want: `{"score": 0.5}`,
		},
		{
			name: "nested objects balanced",
			in:   `{"outer": {"inner": 1}} trailing`,
			want: `{"outer": {"inner": 1}}`,
		},
		{
			name: "braces inside strings ignored",
			in:   `{"text": "a } brace"}`,
			want: `{"text": "a } brace"}`,
		},
		{
			name: "no json",
			in:   "I cannot score this.",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractJSON(tt.in); got != tt.want {
				t.Errorf("ExtractJSON(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseScalar(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want float64
	}{
		{"bare number", "0.7", 0.7},
		{"number with prose", "The reward is 0.4 overall.", 0.4},
		{"negative", "-0.3", -0.3},
		{"clamped high", "5.0", 1.0},
		{"clamped low", "-9", -1.0},
		{"no number falls back", "no idea", 0.0},
		{"punctuation stripped", "Score: 0.55.", 0.55},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseScalar(tt.in, 0.0, -1.0, 1.0); got != tt.want {
				t.Errorf("ParseScalar(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestAskScalarFallback(t *testing.T) {
	t.Run("provider error returns fallback", func(t *testing.T) {
		j := New(&fakeProvider{err: errors.New("unreachable")}, "test-model")
		if got := j.AskScalar(context.Background(), "sys", "user", 0.25, -1, 1); got != 0.25 {
			t.Errorf("expected fallback 0.25, got %v", got)
		}
	})

	t.Run("parseable reply wins over fallback", func(t *testing.T) {
		j := New(&fakeProvider{reply: "0.9"}, "test-model")
		if got := j.AskScalar(context.Background(), "sys", "user", 0.25, -1, 1); got != 0.9 {
			t.Errorf("expected 0.9, got %v", got)
		}
	})
}

func TestAskJSON(t *testing.T) {
	j := New(&fakeProvider{reply: `Sure: {"shift": 0.6, "needed": true}`}, "test-model")

	var out struct {
		Shift  float64 `json:"shift"`
		Needed bool    `json:"needed"`
	}
	if err := j.AskJSON(context.Background(), "sys", "user", &out); err != nil {
		t.Fatalf("AskJSON: %v", err)
	}
	if out.Shift != 0.6 || !out.Needed {
		t.Errorf("unexpected parse result: %+v", out)
	}
}
