package collab

import (
	"context"
	"errors"
	"strings"
	"testing"
)

// TestFallbackEnrich verifies the deterministic enrichment rules.
func TestFallbackEnrich(t *testing.T) {
	f := NewFallback()

	e, err := f.Enrich(context.Background(), "  write a haiku  ", UserContext{})
	if err != nil {
		t.Fatalf("enrich: %v", err)
	}
	if e.RefinedGoal != "write a haiku" {
		t.Errorf("goal = %q", e.RefinedGoal)
	}
	if e.TargetAudience != "general" {
		t.Errorf("audience = %q, want default", e.TargetAudience)
	}
	if len(e.SuccessCriteria) == 0 {
		t.Error("expected success criteria")
	}

	// Audience preference is honored
	e, err = f.Enrich(context.Background(), "write a haiku", UserContext{
		Preferences: map[string]string{"audience": "children"},
	})
	if err != nil {
		t.Fatalf("enrich: %v", err)
	}
	if e.TargetAudience != "children" {
		t.Errorf("audience = %q, want children", e.TargetAudience)
	}
}

// TestFallbackGeneratePrompt verifies the template includes the enrichment.
func TestFallbackGeneratePrompt(t *testing.T) {
	f := NewFallback()
	prompt, err := f.GeneratePrompt(context.Background(), Enrichment{
		RefinedGoal:     "a haiku about rain",
		TargetAudience:  "poets",
		SuccessCriteria: []string{"5-7-5 structure"},
	}, "text")
	if err != nil {
		t.Fatalf("generate prompt: %v", err)
	}
	for _, want := range []string{"text", "a haiku about rain", "poets", "5-7-5 structure"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, prompt)
		}
	}
}

// TestFallbackRefineIsNoOp verifies refinement returns the original content.
func TestFallbackRefineIsNoOp(t *testing.T) {
	f := NewFallback()
	out, err := f.Refine(context.Background(), "original text", "make it rhyme")
	if err != nil {
		t.Fatalf("refine: %v", err)
	}
	if out != "original text" {
		t.Errorf("refine changed content: %q", out)
	}
}

// TestFallbackExtractInsights verifies marker-based sentiment, capped at one
// insight per polarity.
func TestFallbackExtractInsights(t *testing.T) {
	f := NewFallback()

	tests := []struct {
		name          string
		comment       string
		wantCount     int
		wantSentiment []string
	}{
		{"positive only", "I love the imagery, great work", 1, []string{"positive"}},
		{"negative only", "this is boring and confusing", 1, []string{"negative"}},
		{"both", "great opening but the ending is too long", 2, []string{"positive", "negative"}},
		{"neutral", "it exists", 0, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			insights, err := f.ExtractInsights(context.Background(), tt.comment)
			if err != nil {
				t.Fatalf("extract: %v", err)
			}
			if len(insights) != tt.wantCount {
				t.Fatalf("got %d insights, want %d", len(insights), tt.wantCount)
			}
			for i, s := range tt.wantSentiment {
				if insights[i].Sentiment != s {
					t.Errorf("insight[%d].Sentiment = %s, want %s", i, insights[i].Sentiment, s)
				}
			}
		})
	}
}

// failing is a collaborator that always errors, for exercising Resilient.
type failing struct{}

func (failing) Enrich(context.Context, string, UserContext) (Enrichment, error) {
	return Enrichment{}, errors.New("unavailable")
}
func (failing) GeneratePrompt(context.Context, Enrichment, string) (string, error) {
	return "", errors.New("unavailable")
}
func (failing) Refine(context.Context, string, string) (string, error) {
	return "", errors.New("unavailable")
}
func (failing) ExtractInsights(context.Context, string) ([]Insight, error) {
	return nil, errors.New("unavailable")
}

// TestResilientFallsBack verifies a failing primary never surfaces errors.
func TestResilientFallsBack(t *testing.T) {
	r := NewResilient(failing{})

	e, err := r.Enrich(context.Background(), "write a story", UserContext{})
	if err != nil {
		t.Fatalf("enrich must not fail: %v", err)
	}
	if e.RefinedGoal != "write a story" {
		t.Errorf("goal = %q", e.RefinedGoal)
	}

	out, err := r.Refine(context.Background(), "content", "feedback")
	if err != nil || out != "content" {
		t.Errorf("refine = %q, %v", out, err)
	}
}

// TestResilientNilPrimary verifies fallback-only operation.
func TestResilientNilPrimary(t *testing.T) {
	r := NewResilient(nil)
	prompt, err := r.GeneratePrompt(context.Background(), Enrichment{RefinedGoal: "x"}, "text")
	if err != nil {
		t.Fatalf("generate prompt: %v", err)
	}
	if prompt == "" {
		t.Error("expected non-empty prompt")
	}
}

// TestResilientPrefersPrimary verifies a healthy primary's answer is used.
type fixed struct{ *Fallback }

func (fixed) Enrich(context.Context, string, UserContext) (Enrichment, error) {
	return Enrichment{RefinedGoal: "from primary"}, nil
}

func TestResilientPrefersPrimary(t *testing.T) {
	r := NewResilient(fixed{NewFallback()})
	e, err := r.Enrich(context.Background(), "raw", UserContext{})
	if err != nil {
		t.Fatalf("enrich: %v", err)
	}
	if e.RefinedGoal != "from primary" {
		t.Errorf("goal = %q, want primary's answer", e.RefinedGoal)
	}
}
