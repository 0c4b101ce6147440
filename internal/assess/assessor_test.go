package assess

import (
	"context"
	"errors"
	"testing"

	"github.com/normanking/revoice/internal/judge"
	"github.com/normanking/revoice/internal/llm"
	"github.com/normanking/revoice/pkg/types"
)

type fakeProvider struct {
	reply string
	err   error
}

func (f *fakeProvider) Chat(_ context.Context, _ *llm.ChatRequest) (*llm.ChatResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &llm.ChatResponse{Content: f.reply}, nil
}

func (f *fakeProvider) Name() string    { return "fake" }
func (f *fakeProvider) Available() bool { return true }

func TestQuickCheck(t *testing.T) {
	tests := []struct {
		name  string
		state types.DataState
		want  bool
	}{
		{
			name:  "below pair floor refuses",
			state: types.DataState{AvailablePairCount: 49, FeedbackSinceLastTrain: 100},
			want:  false,
		},
		{
			name:  "significant growth trains",
			state: types.DataState{AvailablePairCount: 160, LastTrainedPairCount: 100},
			want:  true,
		},
		{
			name:  "marginal growth without feedback holds",
			state: types.DataState{AvailablePairCount: 120, LastTrainedPairCount: 100, FeedbackSinceLastTrain: 5},
			want:  false,
		},
		{
			name:  "feedback volume alone trains",
			state: types.DataState{AvailablePairCount: 110, LastTrainedPairCount: 100, FeedbackSinceLastTrain: 25},
			want:  true,
		},
		{
			name: "never trained uses default baseline",
			// 60 new pairs against the implicit baseline of 100 is > 50%
			state: types.DataState{AvailablePairCount: 60, LastTrainedPairCount: 0},
			want:  true,
		},
		{
			name:  "never trained below half of baseline holds",
			state: types.DataState{AvailablePairCount: 50, LastTrainedPairCount: 0},
			want:  false,
		},
	}

	a := New(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := a.QuickCheck(tt.state)
			if got.ShouldTrain != tt.want {
				t.Errorf("ShouldTrain = %v, want %v (%s)", got.ShouldTrain, tt.want, got.Reasoning)
			}
			if got.Reasoning == "" {
				t.Error("decision missing reasoning")
			}
		})
	}
}

func TestAssessFallbackOnJudgeFailure(t *testing.T) {
	j := judge.New(&fakeProvider{err: errors.New("judge offline")}, "judge-model")
	a := New(j)

	state := types.DataState{
		AvailablePairCount:     120,
		LastTrainedPairCount:   80,
		FeedbackSinceLastTrain: 15,
		PositiveFeedbackRate:   0.4,
		AvgQualityScore:        0.7,
		CurrentModelID:         "",
		LastTrainedAt:          "2024-01-01",
	}

	got := a.Assess(context.Background(), state)
	if !got.ShouldTrain {
		t.Error("expected ShouldTrain=true: 120 pairs with 40 new over a set of 80")
	}
	if !got.TrainFromBase {
		t.Error("expected TrainFromBase=true: no current model deployed")
	}
}

func TestAssessUsesJudgeWhenParseable(t *testing.T) {
	j := judge.New(&fakeProvider{
		reply: `{"should_train": true, "train_from_base": false, "reasoning": "solid growth", "confidence": 0.85, "recommended_min_quality": 0.65}`,
	}, "judge-model")
	a := New(j)

	got := a.Assess(context.Background(), types.DataState{AvailablePairCount: 10})
	if !got.ShouldTrain || got.TrainFromBase {
		t.Errorf("judge decision not honored: %+v", got)
	}
	if got.Confidence != 0.85 {
		t.Errorf("Confidence = %v, want 0.85", got.Confidence)
	}
}

func TestFallbackDecision(t *testing.T) {
	tests := []struct {
		name         string
		state        types.DataState
		wantTrain    bool
		wantFromBase bool
	}{
		{
			name:      "under pair floor never trains",
			state:     types.DataState{AvailablePairCount: 99, CurrentModelID: "m1"},
			wantTrain: false,
		},
		{
			name:      "never trained with enough pairs trains",
			state:     types.DataState{AvailablePairCount: 100, CurrentModelID: "m1"},
			wantTrain: true,
		},
		{
			name:      "available under thirty percent of huge last set holds",
			state:     types.DataState{AvailablePairCount: 120, LastTrainedPairCount: 500, CurrentModelID: "m1"},
			wantTrain: false,
		},
		{
			name:      "available over thirty percent of last set trains",
			state:     types.DataState{AvailablePairCount: 140, LastTrainedPairCount: 100, CurrentModelID: "m1"},
			wantTrain: true,
		},
		{
			name:         "no deployed model restarts from base",
			state:        types.DataState{AvailablePairCount: 10},
			wantTrain:    false,
			wantFromBase: true,
		},
		{
			name: "negative feedback restarts from base",
			state: types.DataState{
				AvailablePairCount: 10, CurrentModelID: "m1",
				PositiveFeedbackRate: 0.3, FeedbackSinceLastTrain: 20,
			},
			wantFromBase: true,
		},
		{
			name: "negative feedback with thin volume keeps current model",
			state: types.DataState{
				AvailablePairCount: 10, CurrentModelID: "m1",
				PositiveFeedbackRate: 0.3, FeedbackSinceLastTrain: 5,
			},
			wantFromBase: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FallbackDecision(tt.state)
			if got.ShouldTrain != tt.wantTrain {
				t.Errorf("ShouldTrain = %v, want %v", got.ShouldTrain, tt.wantTrain)
			}
			if got.TrainFromBase != tt.wantFromBase {
				t.Errorf("TrainFromBase = %v, want %v", got.TrainFromBase, tt.wantFromBase)
			}
		})
	}
}
