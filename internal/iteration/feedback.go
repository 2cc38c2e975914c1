package iteration

import (
	"time"
)

// AspectRatings are optional per-aspect scores, each in [1,5] when set.
type AspectRatings struct {
	Relevance  *int `json:"relevance,omitempty"`
	Clarity    *int `json:"clarity,omitempty"`
	Creativity *int `json:"creativity,omitempty"`
	Accuracy   *int `json:"accuracy,omitempty"`
}

// Feedback is one user's reaction to a piece of produced content.
type Feedback struct {
	ContentID string         `json:"content_id"`
	Rating    *int           `json:"rating,omitempty"` // [1,5]
	Aspects   *AspectRatings `json:"aspects,omitempty"`
	Comment   string         `json:"comment,omitempty"`
	UserID    string         `json:"user_id"`
	CreatedAt time.Time      `json:"created_at"`
}

// LearningCategory classifies a learning point.
type LearningCategory string

const (
	CategoryUserPreference        LearningCategory = "user_preference"
	CategoryCapabilityPerformance LearningCategory = "capability_performance"
	CategoryProcessOptimization   LearningCategory = "process_optimization"
)

// Impact grades how strongly a learning point should influence future
// planning.
type Impact string

const (
	ImpactLow    Impact = "low"
	ImpactMedium Impact = "medium"
	ImpactHigh   Impact = "high"
)

// LearningPoint is a structured insight derived from feedback, consumed as
// scoring/preference input by future planning.
type LearningPoint struct {
	Category   LearningCategory `json:"category"`
	Insight    string           `json:"insight"`
	Impact     Impact           `json:"impact"`
	Actionable bool             `json:"actionable"`
}

// QualityMetric is one point in a content's append-only quality series.
type QualityMetric struct {
	Score      float64   `json:"score"`
	Confidence float64   `json:"confidence"`
	Source     string    `json:"source"` // e.g. "invocation", "feedback"
	RecordedAt time.Time `json:"recorded_at"`
}

// Interaction is an implicit usage signal used when no explicit feedback
// exists.
type Interaction struct {
	ContentID     string
	ContentType   string
	ContentLength int
	ViewDuration  time.Duration
	Feedback      *Feedback // explicit feedback, if any
	UserID        string
}
