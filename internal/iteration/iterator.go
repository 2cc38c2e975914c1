// Package iteration closes the feedback loop: it turns user reactions into
// structured learning points, requests refined content versions, and keeps
// per-content quality series. Its output feeds future planning as
// preference input.
package iteration

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/openatelier/atelier/internal/collab"
	"github.com/openatelier/atelier/internal/content"
)

// Sink is an optional durable mirror for feedback and quality metrics.
// Implemented by the persistence package; the in-memory state below stays
// canonical for the running session.
type Sink interface {
	SaveFeedback(ctx context.Context, fb Feedback) error
	AppendQuality(ctx context.Context, contentID string, m QualityMetric) error
}

// Iterator processes feedback and refinement requests.
type Iterator struct {
	collab collab.Collaborator
	sink   Sink // nil disables mirroring

	mu       sync.Mutex
	feedback map[string][]Feedback      // by content id
	quality  map[string][]QualityMetric // append-only series by content id
	points   []LearningPoint
}

// New creates an Iterator. sink may be nil.
func New(c collab.Collaborator, sink Sink) *Iterator {
	return &Iterator{
		collab:   c,
		sink:     sink,
		feedback: make(map[string][]Feedback),
		quality:  make(map[string][]QualityMetric),
	}
}

// ProcessFeedback stores the feedback and derives learning points. The
// collaborator is consulted for non-trivial comments; its failure is
// swallowed and simply yields no extra insights.
func (it *Iterator) ProcessFeedback(ctx context.Context, contentID string, fb Feedback, user collab.UserContext) ([]LearningPoint, error) {
	if fb.ContentID == "" {
		fb.ContentID = contentID
	}
	if fb.CreatedAt.IsZero() {
		fb.CreatedAt = time.Now()
	}
	if err := validateFeedback(fb); err != nil {
		return nil, err
	}

	it.mu.Lock()
	it.feedback[contentID] = append(it.feedback[contentID], fb)
	it.mu.Unlock()

	if it.sink != nil {
		if err := it.sink.SaveFeedback(ctx, fb); err != nil {
			log.Printf("feedback sink write failed: %v", err)
		}
	}

	points := derivePoints(fb)

	if comment := strings.TrimSpace(fb.Comment); len(comment) > 10 && it.collab != nil {
		insights, err := it.collab.ExtractInsights(ctx, comment)
		if err != nil {
			// Collaborator unavailability is not an error here.
			log.Printf("insight extraction unavailable: %v", err)
		}
		if len(insights) > 2 {
			insights = insights[:2]
		}
		for _, ins := range insights {
			impact := ImpactLow
			actionable := false
			if ins.Sentiment == "negative" {
				impact = ImpactMedium
				actionable = true
			}
			points = append(points, LearningPoint{
				Category:   CategoryUserPreference,
				Insight:    ins.Text,
				Impact:     impact,
				Actionable: actionable,
			})
		}
	}

	it.mu.Lock()
	it.points = append(it.points, points...)
	it.mu.Unlock()

	return points, nil
}

func validateFeedback(fb Feedback) error {
	check := func(name string, v *int) error {
		if v != nil && (*v < 1 || *v > 5) {
			return fmt.Errorf("feedback %s rating %d outside [1,5]", name, *v)
		}
		return nil
	}
	if err := check("overall", fb.Rating); err != nil {
		return err
	}
	if fb.Aspects != nil {
		for _, a := range []struct {
			name string
			v    *int
		}{
			{"relevance", fb.Aspects.Relevance},
			{"clarity", fb.Aspects.Clarity},
			{"creativity", fb.Aspects.Creativity},
			{"accuracy", fb.Aspects.Accuracy},
		} {
			if err := check(a.name, a.v); err != nil {
				return err
			}
		}
	}
	return nil
}

// derivePoints applies the rating rules: low overall ratings produce one
// high-impact negative point, high ratings one medium positive point,
// mid-range none; each extreme aspect rating produces its own point.
func derivePoints(fb Feedback) []LearningPoint {
	var points []LearningPoint

	if fb.Rating != nil {
		switch {
		case *fb.Rating <= 2:
			points = append(points, LearningPoint{
				Category:   CategoryUserPreference,
				Insight:    fmt.Sprintf("content %s rated %d/5; this style of output misses the user's expectations", fb.ContentID, *fb.Rating),
				Impact:     ImpactHigh,
				Actionable: true,
			})
		case *fb.Rating >= 4:
			points = append(points, LearningPoint{
				Category:   CategoryUserPreference,
				Insight:    fmt.Sprintf("content %s rated %d/5; the chosen capabilities suit this user", fb.ContentID, *fb.Rating),
				Impact:     ImpactMedium,
				Actionable: false,
			})
		}
	}

	if fb.Aspects != nil {
		aspects := []struct {
			name string
			v    *int
		}{
			{"relevance", fb.Aspects.Relevance},
			{"clarity", fb.Aspects.Clarity},
			{"creativity", fb.Aspects.Creativity},
			{"accuracy", fb.Aspects.Accuracy},
		}
		for _, a := range aspects {
			if a.v == nil {
				continue
			}
			switch {
			case *a.v <= 2:
				points = append(points, LearningPoint{
					Category:   CategoryCapabilityPerformance,
					Insight:    fmt.Sprintf("%s scored %d/5 for content %s", a.name, *a.v, fb.ContentID),
					Impact:     ImpactMedium,
					Actionable: true,
				})
			case *a.v >= 4:
				points = append(points, LearningPoint{
					Category:   CategoryCapabilityPerformance,
					Insight:    fmt.Sprintf("%s scored %d/5 for content %s", a.name, *a.v, fb.ContentID),
					Impact:     ImpactLow,
					Actionable: false,
				})
			}
		}
	}

	return points
}

// RefineContent requests a revised version of text-bearing content. The
// revision carries provenance back to the original. Non-text content is
// returned unchanged as an explicit no-op.
func (it *Iterator) RefineContent(ctx context.Context, c *content.GeneratedContent, fb Feedback) (*content.GeneratedContent, error) {
	if c == nil {
		return nil, fmt.Errorf("refine: content is nil")
	}
	if !c.IsText() {
		return c, nil
	}
	if it.collab == nil {
		// Same contract as insight extraction: no collaborator means no
		// revision, never a panic.
		return c, nil
	}

	summary := summarizeFeedback(fb)
	revised, err := it.collab.Refine(ctx, c.Body, summary)
	if err != nil {
		// Resilient collaborators do not fail, but a bare LLM might.
		return c, nil
	}

	out := content.New(c.IntentID, c.ContentType, revised, c.Format)
	out.Provenance = &content.Provenance{
		OriginalContentID:  c.ID,
		RefinementFeedback: summary,
	}
	return out, nil
}

func summarizeFeedback(fb Feedback) string {
	var parts []string
	if fb.Rating != nil {
		parts = append(parts, fmt.Sprintf("overall rating %d/5", *fb.Rating))
	}
	if fb.Aspects != nil {
		add := func(name string, v *int) {
			if v != nil {
				parts = append(parts, fmt.Sprintf("%s %d/5", name, *v))
			}
		}
		add("relevance", fb.Aspects.Relevance)
		add("clarity", fb.Aspects.Clarity)
		add("creativity", fb.Aspects.Creativity)
		add("accuracy", fb.Aspects.Accuracy)
	}
	if strings.TrimSpace(fb.Comment) != "" {
		parts = append(parts, "comment: "+strings.TrimSpace(fb.Comment))
	}
	if len(parts) == 0 {
		return "no specific feedback provided"
	}
	return strings.Join(parts, "; ")
}

// LearnFromInteraction infers low-impact preference signals when no
// explicit feedback is present, instead of failing.
func (it *Iterator) LearnFromInteraction(ctx context.Context, in Interaction, user collab.UserContext) ([]LearningPoint, error) {
	if in.Feedback != nil {
		return it.ProcessFeedback(ctx, in.ContentID, *in.Feedback, user)
	}

	var points []LearningPoint
	if in.ContentType != "" && in.ViewDuration > 10*time.Second {
		points = append(points, LearningPoint{
			Category:   CategoryUserPreference,
			Insight:    fmt.Sprintf("user engaged with %s content for %s", in.ContentType, in.ViewDuration.Round(time.Second)),
			Impact:     ImpactLow,
			Actionable: false,
		})
	}
	if in.ContentLength > 0 {
		size := "short"
		if in.ContentLength > 2000 {
			size = "long"
		} else if in.ContentLength > 500 {
			size = "medium"
		}
		points = append(points, LearningPoint{
			Category:   CategoryUserPreference,
			Insight:    fmt.Sprintf("user consumed %s-form content (%d chars)", size, in.ContentLength),
			Impact:     ImpactLow,
			Actionable: false,
		})
	}

	it.mu.Lock()
	it.points = append(it.points, points...)
	it.mu.Unlock()
	return points, nil
}

// RecordQuality appends one metric to the content's series. The series is
// append-only; no aggregation happens here.
func (it *Iterator) RecordQuality(ctx context.Context, contentID string, m QualityMetric) {
	if m.RecordedAt.IsZero() {
		m.RecordedAt = time.Now()
	}

	it.mu.Lock()
	it.quality[contentID] = append(it.quality[contentID], m)
	it.mu.Unlock()

	if it.sink != nil {
		if err := it.sink.AppendQuality(ctx, contentID, m); err != nil {
			log.Printf("quality sink write failed: %v", err)
		}
	}
}

// QualityHistory returns the recorded series for a content id, in order.
func (it *Iterator) QualityHistory(contentID string) []QualityMetric {
	it.mu.Lock()
	defer it.mu.Unlock()
	return append([]QualityMetric(nil), it.quality[contentID]...)
}

// FeedbackFor returns stored feedback for a content id.
func (it *Iterator) FeedbackFor(contentID string) []Feedback {
	it.mu.Lock()
	defer it.mu.Unlock()
	return append([]Feedback(nil), it.feedback[contentID]...)
}

// LearningPoints returns all derived points so far.
func (it *Iterator) LearningPoints() []LearningPoint {
	it.mu.Lock()
	defer it.mu.Unlock()
	return append([]LearningPoint(nil), it.points...)
}
