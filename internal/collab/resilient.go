package collab

import (
	"context"
	"log"
)

// Resilient routes every call to the primary collaborator and silently
// degrades to the fallback on any failure. A nil primary means fallback
// only. Collaborator unavailability never surfaces past this type.
type Resilient struct {
	primary  Collaborator
	fallback Collaborator
}

// NewResilient wires a primary (may be nil) over the rule-based fallback.
func NewResilient(primary Collaborator) *Resilient {
	return &Resilient{
		primary:  primary,
		fallback: NewFallback(),
	}
}

func (r *Resilient) Enrich(ctx context.Context, rawIntent string, user UserContext) (Enrichment, error) {
	if r.primary != nil {
		if e, err := r.primary.Enrich(ctx, rawIntent, user); err == nil {
			return e, nil
		} else {
			log.Printf("collaborator enrich failed, using fallback: %v", err)
		}
	}
	return r.fallback.Enrich(ctx, rawIntent, user)
}

func (r *Resilient) GeneratePrompt(ctx context.Context, e Enrichment, contentType string) (string, error) {
	if r.primary != nil {
		if p, err := r.primary.GeneratePrompt(ctx, e, contentType); err == nil {
			return p, nil
		} else {
			log.Printf("collaborator prompt generation failed, using fallback: %v", err)
		}
	}
	return r.fallback.GeneratePrompt(ctx, e, contentType)
}

func (r *Resilient) Refine(ctx context.Context, content string, feedback string) (string, error) {
	if r.primary != nil {
		if out, err := r.primary.Refine(ctx, content, feedback); err == nil {
			return out, nil
		} else {
			log.Printf("collaborator refine failed, using fallback: %v", err)
		}
	}
	return r.fallback.Refine(ctx, content, feedback)
}

func (r *Resilient) ExtractInsights(ctx context.Context, comment string) ([]Insight, error) {
	if r.primary != nil {
		if ins, err := r.primary.ExtractInsights(ctx, comment); err == nil {
			return ins, nil
		} else {
			log.Printf("collaborator insight extraction failed, using fallback: %v", err)
		}
	}
	return r.fallback.ExtractInsights(ctx, comment)
}
