package collab

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
)

// LLM is a Collaborator backed by a langchaingo model. Structured outputs
// are requested as JSON and parsed strictly; parse failures surface as
// errors so Resilient can fall back.
type LLM struct {
	model llms.Model
}

// NewLLM wraps a langchaingo model.
func NewLLM(model llms.Model) *LLM {
	return &LLM{model: model}
}

func (l *LLM) complete(ctx context.Context, system, user string) (string, error) {
	messages := []llms.MessageContent{
		{
			Role:  llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{llms.TextPart(system)},
		},
		{
			Role:  llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{llms.TextPart(user)},
		},
	}
	resp, err := l.model.GenerateContent(ctx, messages)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("llm returned no choices")
	}
	return resp.Choices[0].Content, nil
}

// Enrich asks the model for a JSON enrichment of the raw request.
func (l *LLM) Enrich(ctx context.Context, rawIntent string, user UserContext) (Enrichment, error) {
	system := `You refine creative requests. Reply with JSON only:
{"refined_goal": "...", "contextual_background": "...", "target_audience": "...", "success_criteria": ["..."]}`
	prompt := "Request: " + rawIntent
	if len(user.Preferences) > 0 {
		var prefs []string
		for k, v := range user.Preferences {
			prefs = append(prefs, k+"="+v)
		}
		prompt += "\nKnown preferences: " + strings.Join(prefs, ", ")
	}

	raw, err := l.complete(ctx, system, prompt)
	if err != nil {
		return Enrichment{}, err
	}
	var e Enrichment
	if err := json.Unmarshal([]byte(extractJSON(raw)), &e); err != nil {
		return Enrichment{}, fmt.Errorf("parsing enrichment: %w", err)
	}
	if e.RefinedGoal == "" {
		return Enrichment{}, fmt.Errorf("enrichment missing refined goal")
	}
	return e, nil
}

// GeneratePrompt asks the model to write a generation prompt.
func (l *LLM) GeneratePrompt(ctx context.Context, e Enrichment, contentType string) (string, error) {
	system := "You write concise, concrete prompts for generation models. Reply with the prompt text only."
	user := fmt.Sprintf("Content type: %s\nGoal: %s\nAudience: %s\nCriteria: %s",
		contentType, e.RefinedGoal, e.TargetAudience, strings.Join(e.SuccessCriteria, "; "))
	out, err := l.complete(ctx, system, user)
	if err != nil {
		return "", err
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", fmt.Errorf("llm returned empty prompt")
	}
	return out, nil
}

// Refine asks the model for a revised version of the content.
func (l *LLM) Refine(ctx context.Context, content string, feedback string) (string, error) {
	system := "You revise content based on feedback. Reply with the revised content only, no commentary."
	user := fmt.Sprintf("Original content:\n%s\n\nFeedback:\n%s", content, feedback)
	out, err := l.complete(ctx, system, user)
	if err != nil {
		return "", err
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", fmt.Errorf("llm returned empty revision")
	}
	return out, nil
}

// ExtractInsights asks the model for at most two structured insights.
func (l *LLM) ExtractInsights(ctx context.Context, comment string) ([]Insight, error) {
	system := `You extract actionable insights from user feedback. Reply with JSON only:
[{"text": "...", "sentiment": "positive|negative"}]
At most two entries.`
	raw, err := l.complete(ctx, system, "Feedback comment: "+comment)
	if err != nil {
		return nil, err
	}
	var insights []Insight
	if err := json.Unmarshal([]byte(extractJSON(raw)), &insights); err != nil {
		return nil, fmt.Errorf("parsing insights: %w", err)
	}
	if len(insights) > 2 {
		insights = insights[:2]
	}
	return insights, nil
}

// extractJSON trims markdown code fences that chat models like to add
// around JSON payloads.
func extractJSON(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = s[:idx]
		}
	}
	return strings.TrimSpace(s)
}
