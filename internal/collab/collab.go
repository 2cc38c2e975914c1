// Package collab defines the narrow contracts for external language
// collaborators: intent enrichment, prompt generation, content refinement,
// and feedback insight extraction. Collaborators are assumed to sometimes be
// slow or unavailable; every call site goes through Resilient, which falls
// back to deterministic rules so the pipeline never aborts on collaborator
// failure.
package collab

import (
	"context"
)

// UserContext carries the requesting user's identity and lightweight
// preference hints. Profile storage itself is external.
type UserContext struct {
	UserID      string
	Preferences map[string]string
}

// Enrichment is the structured result of enriching a raw intent.
type Enrichment struct {
	RefinedGoal          string   `json:"refined_goal"`
	ContextualBackground string   `json:"contextual_background"`
	TargetAudience       string   `json:"target_audience"`
	SuccessCriteria      []string `json:"success_criteria"`
}

// Insight is one structured takeaway extracted from free-text feedback.
type Insight struct {
	Text      string `json:"text"`
	Sentiment string `json:"sentiment"` // "positive" or "negative"
}

// Collaborator is the external enrichment/generation contract.
type Collaborator interface {
	// Enrich turns a raw creative request into a structured enrichment.
	Enrich(ctx context.Context, rawIntent string, user UserContext) (Enrichment, error)

	// GeneratePrompt renders a generation prompt for an enriched goal.
	GeneratePrompt(ctx context.Context, enrichment Enrichment, contentType string) (string, error)

	// Refine produces a revised version of text content given feedback.
	Refine(ctx context.Context, content string, feedback string) (string, error)

	// ExtractInsights pulls up to two structured insights from a free-text
	// comment.
	ExtractInsights(ctx context.Context, comment string) ([]Insight, error)
}
