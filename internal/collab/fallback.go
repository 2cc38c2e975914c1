package collab

import (
	"context"
	"fmt"
	"strings"
)

// Fallback is the deterministic, rule-based collaborator used when the LLM
// is unavailable. It never fails.
type Fallback struct{}

// NewFallback creates the rule-based collaborator.
func NewFallback() *Fallback { return &Fallback{} }

// Enrich derives a minimal enrichment from the raw request alone.
func (f *Fallback) Enrich(_ context.Context, rawIntent string, user UserContext) (Enrichment, error) {
	goal := strings.TrimSpace(rawIntent)
	audience := "general"
	if a, ok := user.Preferences["audience"]; ok && a != "" {
		audience = a
	}
	return Enrichment{
		RefinedGoal:    goal,
		TargetAudience: audience,
		SuccessCriteria: []string{
			"directly addresses the request",
			"coherent and complete",
		},
	}, nil
}

// GeneratePrompt assembles a plain template prompt.
func (f *Fallback) GeneratePrompt(_ context.Context, e Enrichment, contentType string) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Create %s content.\nGoal: %s\n", contentType, e.RefinedGoal)
	if e.TargetAudience != "" {
		fmt.Fprintf(&b, "Audience: %s\n", e.TargetAudience)
	}
	if e.ContextualBackground != "" {
		fmt.Fprintf(&b, "Background: %s\n", e.ContextualBackground)
	}
	if len(e.SuccessCriteria) > 0 {
		fmt.Fprintf(&b, "Success criteria: %s\n", strings.Join(e.SuccessCriteria, "; "))
	}
	return b.String(), nil
}

// Refine is an explicit no-op: without a generator there is nothing
// deterministic to rewrite, so the original content is returned.
func (f *Fallback) Refine(_ context.Context, content string, _ string) (string, error) {
	return content, nil
}

var (
	positiveMarkers = []string{"love", "great", "excellent", "perfect", "amazing", "good"}
	negativeMarkers = []string{"hate", "bad", "wrong", "boring", "confusing", "poor", "too long", "too short"}
)

// ExtractInsights scans the comment for sentiment markers. At most one
// positive and one negative insight are produced.
func (f *Fallback) ExtractInsights(_ context.Context, comment string) ([]Insight, error) {
	lower := strings.ToLower(comment)
	var out []Insight
	for _, m := range positiveMarkers {
		if strings.Contains(lower, m) {
			out = append(out, Insight{
				Text:      fmt.Sprintf("user comment mentions %q approvingly", m),
				Sentiment: "positive",
			})
			break
		}
	}
	for _, m := range negativeMarkers {
		if strings.Contains(lower, m) {
			out = append(out, Insight{
				Text:      fmt.Sprintf("user comment flags %q as a problem", m),
				Sentiment: "negative",
			})
			break
		}
	}
	return out, nil
}
